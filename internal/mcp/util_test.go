package mcp

import (
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cookeng/handbook-mcp/internal/log"
	"github.com/cookeng/handbook-mcp/internal/tools"
)

func textOf(t *testing.T, c mcp.Content) string {
	t.Helper()
	tc, ok := c.(*mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", c)
	return tc.Text
}

func TestResponseToMCPFailure(t *testing.T) {
	resp := tools.Response{
		Status: tools.StatusError,
		Failure: &tools.Failure{
			Kind:      tools.KindDependencyUnavailable,
			Message:   "dependency \"weaviate\" is unavailable: connection refused",
			Slot:      "weaviate",
			RequestID: "req-1",
		},
	}

	result := responseToMCP(resp, log.NewNop())

	assert.True(t, result.IsError)
	require.Len(t, result.Content, 1)
	text := textOf(t, result.Content[0])
	assert.Contains(t, text, "[dependency_unavailable]")
	assert.Contains(t, text, "connection refused")
	assert.Contains(t, text, `"slot":"weaviate"`)
	assert.Contains(t, text, `"request_id":"req-1"`)
}

func TestResponseToMCPPayload(t *testing.T) {
	t.Run("text only", func(t *testing.T) {
		resp := tools.Response{
			Status: tools.StatusOK,
			Data:   &tools.Payload{Text: "the answer"},
		}

		result := responseToMCP(resp, log.NewNop())

		assert.False(t, result.IsError)
		require.Len(t, result.Content, 1)
		assert.Equal(t, "the answer", textOf(t, result.Content[0]))
	})

	t.Run("text with images", func(t *testing.T) {
		resp := tools.Response{
			Status: tools.StatusOK,
			Data: &tools.Payload{
				Text: "see the wind zone map",
				Images: []tools.Image{
					{Data: []byte("pngbytes"), MIMEType: "image/png"},
				},
			},
		}

		result := responseToMCP(resp, log.NewNop())

		require.Len(t, result.Content, 2)
		assert.Equal(t, "see the wind zone map", textOf(t, result.Content[0]))
		img, ok := result.Content[1].(*mcp.ImageContent)
		require.True(t, ok)
		assert.Equal(t, []byte("pngbytes"), img.Data)
		assert.Equal(t, "image/png", img.MIMEType)
	})
}

func TestDataToMCP(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		result := dataToMCP(nil)
		assert.False(t, result.IsError)
		assert.Equal(t, "", textOf(t, result.Content[0]))
	})

	t.Run("string passes through", func(t *testing.T) {
		result := dataToMCP("plain text")
		assert.Equal(t, "plain text", textOf(t, result.Content[0]))
	})

	t.Run("struct marshaled to JSON", func(t *testing.T) {
		result := dataToMCP(map[string]any{"pages": 150})
		assert.JSONEq(t, `{"pages":150}`, textOf(t, result.Content[0]))
	})
}

func TestSanitizeFailure(t *testing.T) {
	safe := sanitizeFailure(&tools.Failure{
		Kind:      tools.KindInvalidArgument,
		Message:   "required argument \"query\" is missing",
		Field:     "query",
		RequestID: "req-2",
	})

	assert.Equal(t, map[string]any{
		"field":      "query",
		"request_id": "req-2",
	}, safe)
}
