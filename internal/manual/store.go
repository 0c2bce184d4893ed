// Package manual provides search and direct lookup over the engineering
// handbook indexed in Weaviate.
//
// The handbook lives in a Weaviate Cloud collection whose objects carry
// the section text plus, for pages with maps, charts or diagrams, a
// base64 PNG of the visual. Connect performs the full network handshake
// (auth, readiness) and is the expensive, fallible step the client
// registry defers to first use.
package manual

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
)

// ErrNotConfigured indicates the Weaviate endpoint or API key is absent.
// Surfaced at construction time, i.e. at the first tool call that needs
// the store, never at process startup.
var ErrNotConfigured = errors.New("weaviate connection not configured")

// Config bundles everything needed to reach the handbook collection.
// Headers carry downstream provider keys (X-OpenAI-Api-Key for the
// embedding module, X-Cohere-Api-Key for rerank) that Weaviate forwards
// per request.
type Config struct {
	URL        string
	APIKey     string
	Headers    map[string]string
	Collection string
	Timeout    time.Duration
}

// Store runs queries against the handbook collection. Safe for
// concurrent use; after Connect succeeds the Store is immutable.
type Store struct {
	client     *weaviate.Client
	httpClient *http.Client
	collection string
	logger     *slog.Logger
}

// Connect builds the Weaviate client and verifies the cluster is ready.
// The readiness check is what makes construction fallible: bad URL, bad
// key or an unreachable cluster all fail here with a cause the caller
// can report per tool call.
func Connect(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: WEAVIATE_URL is not set", ErrNotConfigured)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: WEAVIATE_API_KEY is not set", ErrNotConfigured)
	}
	if cfg.Collection == "" {
		return nil, fmt.Errorf("%w: collection name is empty", ErrNotConfigured)
	}

	host, scheme, err := splitEndpoint(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing weaviate URL: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	httpClient := &http.Client{Timeout: timeout}

	client, err := weaviate.NewClient(weaviate.Config{
		Host:             host,
		Scheme:           scheme,
		AuthConfig:       auth.ApiKey{Value: cfg.APIKey},
		Headers:          cfg.Headers,
		ConnectionClient: httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("creating weaviate client: %w", err)
	}

	readyCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ready, err := client.Misc().ReadyChecker().Do(readyCtx)
	if err != nil {
		return nil, fmt.Errorf("weaviate readiness check: %w", err)
	}
	if !ready {
		return nil, fmt.Errorf("weaviate cluster at %s is not ready", host)
	}

	logger.Debug("connected to weaviate", "host", host, "collection", cfg.Collection)

	return &Store{
		client:     client,
		httpClient: httpClient,
		collection: cfg.Collection,
		logger:     logger,
	}, nil
}

// splitEndpoint turns a cluster URL (with or without scheme) into the
// host/scheme pair the client wants. Scheme defaults to https, matching
// Weaviate Cloud.
func splitEndpoint(raw string) (host, scheme string, err error) {
	if !strings.Contains(raw, "://") {
		return strings.TrimSuffix(raw, "/"), "https", nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", err
	}
	if u.Host == "" {
		return "", "", fmt.Errorf("no host in %q", raw)
	}
	return u.Host, u.Scheme, nil
}

// chunkFields lists the properties every query retrieves, plus the
// vector distance for ranking transparency.
func chunkFields() []graphql.Field {
	return []graphql.Field{
		{Name: "content"},
		{Name: "section"},
		{Name: "page"},
		{Name: "content_type"},
		{Name: "has_critical_visual"},
		{Name: "visual_content"},
		{Name: "visual_description"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "distance"}}},
	}
}

// Search runs a semantic (nearText) query over the handbook and returns
// the closest chunks, best match first.
func (s *Store) Search(ctx context.Context, query string, opts ...SearchOption) ([]Chunk, error) {
	cfg := buildSearchConfig(opts)

	nearText := s.client.GraphQL().NearTextArgBuilder().
		WithConcepts([]string{query})

	resp, err := s.client.GraphQL().Get().
		WithClassName(s.collection).
		WithNearText(nearText).
		WithLimit(cfg.limit).
		WithFields(chunkFields()...).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("searching handbook: %w", err)
	}

	chunks, err := s.decodeResponse(resp.Data, resp.Errors)
	if err != nil {
		return nil, fmt.Errorf("searching handbook: %w", err)
	}

	s.logger.Debug("handbook search", "query", query, "hits", len(chunks))
	return chunks, nil
}

// Page fetches every chunk belonging to one handbook page.
func (s *Store) Page(ctx context.Context, page int) ([]Chunk, error) {
	where := filters.Where().
		WithPath([]string{"page"}).
		WithOperator(filters.Equal).
		WithValueInt(int64(page))

	resp, err := s.client.GraphQL().Get().
		WithClassName(s.collection).
		WithWhere(where).
		WithLimit(pageFetchLimit).
		WithFields(chunkFields()...).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching page %d: %w", page, err)
	}

	chunks, err := s.decodeResponse(resp.Data, resp.Errors)
	if err != nil {
		return nil, fmt.Errorf("fetching page %d: %w", page, err)
	}

	s.logger.Debug("handbook page fetch", "page", page, "chunks", len(chunks))
	return chunks, nil
}

// Close releases pooled connections. Called by the client registry at
// process shutdown.
func (s *Store) Close() error {
	s.httpClient.CloseIdleConnections()
	return nil
}
