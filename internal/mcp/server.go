// Package mcp exposes the handbook tools over the Model Context
// Protocol. It bridges the official SDK's tool interface to the
// dispatcher: the SDK handles protocol framing and tool listing, the
// dispatcher handles validation, lazy client construction and failure
// classification.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/cookeng/handbook-mcp/internal/tools"
)

// Server wraps the MCP SDK server around a tool dispatcher.
type Server struct {
	mcpServer  *mcp.Server
	dispatcher *tools.Dispatcher
	name       string
	version    string
	logger     *slog.Logger
}

// Config holds MCP server configuration.
type Config struct {
	Name       string
	Version    string
	Dispatcher *tools.Dispatcher
	Logger     *slog.Logger
}

// NewServer creates an MCP server serving the dispatcher's tools.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Name == "" {
		return nil, errors.New("server name is required")
	}
	if cfg.Version == "" {
		return nil, errors.New("server version is required")
	}
	if cfg.Dispatcher == nil {
		return nil, errors.New("dispatcher is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		mcpServer: mcp.NewServer(&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		}, nil),
		dispatcher: cfg.Dispatcher,
		name:       cfg.Name,
		version:    cfg.Version,
		logger:     logger,
	}
	s.registerTools()
	return s, nil
}

// Run starts the MCP server on the given transport. This is a blocking
// call that handles all MCP protocol communication.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	s.logger.Info("mcp server starting", "name", s.name, "version", s.version)
	return s.mcpServer.Run(ctx, transport)
}

// registerTools exposes every dispatched tool through the SDK. The raw
// handler form is used on purpose: arguments stay a JSON object all the
// way to the dispatcher, which owns schema validation and error
// classification. Typed SDK handlers would duplicate both.
func (s *Server) registerTools() {
	for _, t := range s.dispatcher.Tools() {
		s.mcpServer.AddTool(&mcp.Tool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.Input,
		}, s.toolHandler(t.Name))
	}
}

// toolHandler adapts one dispatcher tool to the SDK's handler shape.
// It never returns a Go error for tool-level failures; those become
// IsError results so the session survives them.
func (s *Server) toolHandler(name string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := map[string]any{}
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
				return &mcp.CallToolResult{
					Content: []mcp.Content{&mcp.TextContent{
						Text: fmt.Sprintf("[%s] arguments are not a JSON object: %v", tools.KindInvalidArgument, err),
					}},
					IsError: true,
				}, nil
			}
		}

		resp := s.dispatcher.Dispatch(ctx, tools.Request{Tool: name, Args: args})
		return responseToMCP(resp, s.logger), nil
	}
}
