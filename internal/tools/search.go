package tools

import (
	"context"
	"fmt"

	"github.com/cookeng/handbook-mcp/internal/answer"
	"github.com/cookeng/handbook-mcp/internal/clients"
	"github.com/cookeng/handbook-mcp/internal/manual"
)

// ToolSearchManual is the semantic search tool name.
const ToolSearchManual = "search_engineering_manual"

// noResultsMessage is returned for queries with no handbook matches.
const noResultsMessage = "No relevant information found in the engineering manual for your query."

// SearchManualInput defines the search tool's arguments.
type SearchManualInput struct {
	Query string `json:"query" jsonschema:"The technical question or search query"`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum number of handbook sections to retrieve (1-10, default 5)"`
}

// NewSearchManualTool builds the handbook search tool. defaultLimit is
// the configured retrieval count used when the caller sends none;
// caller-supplied values are clamped to 1..maxLimit.
func NewSearchManualTool(defaultLimit, maxLimit int) *Tool {
	return &Tool{
		Name: ToolSearchManual,
		Description: "Search the Cook Engineering Handbook for technical specifications, " +
			"formulas, charts, and guidelines. Use this for questions about fans, motors, " +
			"ductwork, HVAC systems, wind zones, seismic zones, etc. " +
			"Visual content like maps, charts, and diagrams is handled automatically.",
		Input:   schemaFor[SearchManualInput](),
		Clients: []string{SlotHandbook, SlotVision},
		Handler: func(ctx context.Context, args map[string]any, deps clients.Handles) (any, error) {
			in, err := DecodeArgs[SearchManualInput](args)
			if err != nil {
				return nil, err
			}
			store, err := clients.HandleAs[*manual.Store](deps, SlotHandbook)
			if err != nil {
				return nil, err
			}
			gen, err := clients.HandleAs[*answer.Generator](deps, SlotVision)
			if err != nil {
				return nil, err
			}

			limit := in.Limit
			switch {
			case limit <= 0:
				limit = defaultLimit
			case limit > maxLimit:
				limit = maxLimit
			}

			chunks, err := store.Search(ctx, in.Query, manual.WithLimit(limit))
			if err != nil {
				return nil, err
			}
			if len(chunks) == 0 {
				return &Payload{Text: noResultsMessage}, nil
			}

			text, err := gen.Answer(ctx, in.Query, chunks)
			if err != nil {
				return nil, fmt.Errorf("composing answer: %w", err)
			}
			return &Payload{Text: text}, nil
		},
	}
}
