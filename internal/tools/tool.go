// Package tools implements the tool invocation layer: named,
// schema-validated operations dispatched against lazily constructed
// external clients.
//
// A Tool declares which client slots it needs; Dispatcher drives every
// call through argument validation, the registry's EnsureReady gate and
// the handler, translating each failure mode into a structured Response.
// Dispatch never returns a Go error and never panics out — the hosting
// protocol always gets exactly one response per request.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/cookeng/handbook-mcp/internal/clients"
)

// Handler executes a tool's domain logic. It receives arguments that
// already passed schema validation and handles for every slot the tool
// declared in Clients.
type Handler func(ctx context.Context, args map[string]any, deps clients.Handles) (any, error)

// Tool is one named operation exposed to the host protocol.
type Tool struct {
	Name        string
	Description string
	Input       *jsonschema.Schema
	Clients     []string // slot names resolved before Handler runs
	Handler     Handler

	resolved *jsonschema.Resolved
}

// schemaFor infers the input schema for an argument struct, panicking on
// failure. Schemas are built from static struct definitions at wiring
// time; an error is a programmer mistake, caught by the tool's own tests.
func schemaFor[T any]() *jsonschema.Schema {
	s, err := jsonschema.For[T](nil)
	if err != nil {
		panic(fmt.Sprintf("BUG: inferring schema for %T: %v", *new(T), err))
	}
	return s
}

// DecodeArgs converts validated raw arguments into the tool's typed
// input struct.
func DecodeArgs[T any](args map[string]any) (T, error) {
	var in T
	raw, err := json.Marshal(args)
	if err != nil {
		return in, fmt.Errorf("encoding arguments: %w", err)
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return in, fmt.Errorf("decoding arguments: %w", err)
	}
	return in, nil
}
