// Package cmd contains the CLI entry points. The default command serves
// MCP over stdio; `serve` exposes the same tools over streamable HTTP.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cookeng/handbook-mcp/internal/app"
	"github.com/cookeng/handbook-mcp/internal/config"
	"github.com/cookeng/handbook-mcp/internal/log"
	"github.com/cookeng/handbook-mcp/internal/mcp"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "handbook-mcp",
	Short: "MCP server for the Cook Engineering Handbook",
	Long: `handbook-mcp serves the Cook Engineering Handbook over the Model
Context Protocol. Without a subcommand it speaks MCP on stdio, the
transport Claude Desktop and most MCP clients expect.

The server starts instantly and without credentials; Weaviate and
OpenAI are first contacted by the tool call that needs them.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runStdio,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
}

// newLogger builds the process logger. Logs go to stderr only: on the
// stdio transport, stdout carries JSON-RPC frames and nothing else.
func newLogger() *slog.Logger {
	return log.New(log.Config{Level: parseLevel(logLevel), JSON: true})
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// setup loads configuration and wires the application.
func setup(logger *slog.Logger) (*app.App, *mcp.Server, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	a, err := app.Setup(cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("initializing application: %w", err)
	}

	server, err := mcp.NewServer(mcp.Config{
		Name:       "handbook-mcp",
		Version:    AppVersion,
		Dispatcher: a.Dispatcher,
		Logger:     logger,
	})
	if err != nil {
		_ = a.Close(context.Background())
		return nil, nil, fmt.Errorf("creating MCP server: %w", err)
	}

	return a, server, nil
}

// signalContext cancels on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
