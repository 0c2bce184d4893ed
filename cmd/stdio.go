package cmd

import (
	"context"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
)

// runStdio serves MCP on stdin/stdout until the client disconnects or
// the process receives a signal.
func runStdio(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	ctx, cancel := signalContext()
	defer cancel()

	a, server, err := setup(logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.Close(context.Background()); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	logger.Info("serving", "transport", "stdio")
	if err := server.Run(ctx, &mcpsdk.StdioTransport{}); err != nil && ctx.Err() == nil {
		return fmt.Errorf("mcp server: %w", err)
	}

	logger.Info("shut down")
	return nil
}
