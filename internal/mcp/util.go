package mcp

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/cookeng/handbook-mcp/internal/tools"
)

// Error detail whitelist: only the failure kind, the affected slot or
// field, and the request ID cross the protocol boundary. Messages are
// already written for clients; anything else (paths, env vars, wrapped
// upstream errors beyond their text) stays in the server logs.

// responseToMCP converts a dispatch response to an mcp.CallToolResult.
func responseToMCP(resp tools.Response, logger *slog.Logger) *mcp.CallToolResult {
	if logger == nil {
		logger = slog.Default()
	}

	if resp.Status == tools.StatusError {
		f := resp.Failure
		errorText := fmt.Sprintf("[%s] %s", f.Kind, f.Message)

		details := sanitizeFailure(f)
		if len(details) > 0 {
			detailsJSON, err := json.Marshal(details)
			if err != nil {
				logger.Warn("marshaling failure details", "error", err)
			} else {
				errorText += fmt.Sprintf("\nDetails: %s", string(detailsJSON))
			}
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: errorText}},
			IsError: true,
		}
	}

	if p, ok := resp.Data.(*tools.Payload); ok {
		return payloadToMCP(p)
	}
	return dataToMCP(resp.Data)
}

// payloadToMCP renders answer text plus any critical visuals. Images
// follow the text so clients that only show the first content block
// still get the answer.
func payloadToMCP(p *tools.Payload) *mcp.CallToolResult {
	content := []mcp.Content{&mcp.TextContent{Text: p.Text}}
	for _, img := range p.Images {
		content = append(content, &mcp.ImageContent{
			Data:     img.Data,
			MIMEType: img.MIMEType,
		})
	}
	return &mcp.CallToolResult{Content: content}
}

// dataToMCP converts arbitrary data to MCP text content via JSON
// marshaling. Plain strings pass through unquoted.
func dataToMCP(data any) *mcp.CallToolResult {
	switch v := data.(type) {
	case nil:
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: ""}},
		}
	case string:
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: v}},
		}
	}

	b, err := json.Marshal(data)
	if err != nil {
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: "marshal error"}},
			IsError: true,
		}
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(b)}},
	}
}

// sanitizeFailure keeps only the whitelisted failure fields.
func sanitizeFailure(f *tools.Failure) map[string]any {
	safe := make(map[string]any)
	if f.Slot != "" {
		safe["slot"] = f.Slot
	}
	if f.Field != "" {
		safe["field"] = f.Field
	}
	if f.RequestID != "" {
		safe["request_id"] = f.RequestID
	}
	return safe
}
