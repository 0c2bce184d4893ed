package manual

import (
	"errors"
	"fmt"
	"strings"

	"github.com/weaviate/weaviate/entities/models"
)

// decodeResponse turns a GraphQL Get response into Chunks, preserving
// the server's ranking order. GraphQL-level errors arrive alongside
// (possibly partial) data; any error fails the whole call.
func (s *Store) decodeResponse(data map[string]models.JSONObject, gqlErrs []*models.GraphQLError) ([]Chunk, error) {
	if len(gqlErrs) > 0 {
		msgs := make([]string, 0, len(gqlErrs))
		for _, e := range gqlErrs {
			msgs = append(msgs, e.Message)
		}
		return nil, fmt.Errorf("graphql: %s", strings.Join(msgs, "; "))
	}

	get, ok := data["Get"].(map[string]any)
	if !ok {
		return nil, errors.New("graphql response has no Get block")
	}
	objects, ok := get[s.collection].([]any)
	if !ok {
		return nil, fmt.Errorf("graphql response has no %q objects", s.collection)
	}

	chunks := make([]Chunk, 0, len(objects))
	for _, obj := range objects {
		props, ok := obj.(map[string]any)
		if !ok {
			continue
		}
		chunks = append(chunks, decodeChunk(props))
	}
	return chunks, nil
}

// decodeChunk reads one object's properties, tolerating absent fields.
// GraphQL numbers arrive as float64.
func decodeChunk(props map[string]any) Chunk {
	c := Chunk{
		Content:           asString(props["content"]),
		Section:           asString(props["section"]),
		ContentType:       asString(props["content_type"]),
		Visual:            asString(props["visual_content"]),
		VisualDescription: asString(props["visual_description"]),
	}
	if page, ok := props["page"].(float64); ok {
		c.Page = int(page)
	}
	if visual, ok := props["has_critical_visual"].(bool); ok {
		c.HasCriticalVisual = visual
	}
	if add, ok := props["_additional"].(map[string]any); ok {
		if d, ok := add["distance"].(float64); ok {
			c.Distance = d
		}
	}
	return c
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
