package tools

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/cookeng/handbook-mcp/internal/clients"
	"github.com/cookeng/handbook-mcp/internal/manual"
)

// ToolGetPage is the direct page lookup tool name.
const ToolGetPage = "get_page_direct"

// GetPageInput defines the page lookup tool's arguments.
type GetPageInput struct {
	PageNumber int `json:"page_number" jsonschema:"Page number of the handbook page to retrieve"`
}

// NewGetPageTool builds the direct lookup tool. It needs only the
// handbook store — requesting the vision client here would construct a
// dependency the handler never uses.
func NewGetPageTool(maxPage int) *Tool {
	return &Tool{
		Name: ToolGetPage,
		Description: fmt.Sprintf("Retrieve a specific page from the Cook Engineering Handbook "+
			"by page number (1-%d). Use this when you know the exact page you need or when "+
			"search results reference a specific page.", maxPage),
		Input:   schemaFor[GetPageInput](),
		Clients: []string{SlotHandbook},
		Handler: func(ctx context.Context, args map[string]any, deps clients.Handles) (any, error) {
			in, err := DecodeArgs[GetPageInput](args)
			if err != nil {
				return nil, err
			}
			store, err := clients.HandleAs[*manual.Store](deps, SlotHandbook)
			if err != nil {
				return nil, err
			}

			chunks, err := store.Page(ctx, in.PageNumber)
			if err != nil {
				return nil, err
			}
			if len(chunks) == 0 {
				return &Payload{Text: fmt.Sprintf(
					"No content found for page %d. The manual contains pages 1-%d.",
					in.PageNumber, maxPage)}, nil
			}

			return pagePayload(in.PageNumber, chunks)
		},
	}
}

// pagePayload joins a page's sections into one text block and attaches
// its critical visuals as images.
func pagePayload(page int, chunks []manual.Chunk) (*Payload, error) {
	sections := make([]string, 0, len(chunks))
	var images []Image

	for _, c := range chunks {
		sections = append(sections, fmt.Sprintf("[%s]\n\n%s", c.Section, c.Content))

		if !c.HasCriticalVisual || c.Visual == "" {
			continue
		}
		raw, err := base64.StdEncoding.DecodeString(c.Visual)
		if err != nil {
			return nil, fmt.Errorf("decoding visual for page %d: %w", page, err)
		}
		images = append(images, Image{Data: raw, MIMEType: "image/png"})
	}

	return &Payload{
		Text: fmt.Sprintf("Content from Page %d:\n\n%s",
			page, strings.Join(sections, "\n\n---\n\n")),
		Images: images,
	}, nil
}
