package manual

// Chunk is one indexed fragment of the handbook: a section of text from
// a page, optionally flagged as carrying a critical visual (map, chart,
// diagram) stored as base64-encoded PNG.
type Chunk struct {
	Content           string  // section text
	Section           string  // section heading
	Page              int     // 1-based page number
	ContentType       string  // e.g. "text", "table", "chart"
	HasCriticalVisual bool    // true when Visual must be examined to answer
	Visual            string  // base64 PNG, present when HasCriticalVisual
	VisualDescription string  // short caption for the visual
	Distance          float64 // vector distance to the query, lower is closer
}

// DefaultLimit is how many chunks a search retrieves when the caller
// does not say otherwise.
const DefaultLimit = 5

// pageFetchLimit bounds how many chunks a direct page lookup returns.
// Pages rarely split into more than a handful of sections.
const pageFetchLimit = 10

// SearchOption configures a search using the functional options pattern.
type SearchOption func(*searchConfig)

type searchConfig struct {
	limit int
}

// WithLimit overrides DefaultLimit. Non-positive values keep the default.
func WithLimit(n int) SearchOption {
	return func(c *searchConfig) {
		if n > 0 {
			c.limit = n
		}
	}
}

func buildSearchConfig(opts []SearchOption) *searchConfig {
	cfg := &searchConfig{limit: DefaultLimit}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
