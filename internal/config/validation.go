package config

import (
	"fmt"
	"net/url"
)

// Validate checks structural configuration values and fails fast on
// nonsense. Credential presence is intentionally not checked here: a
// missing API key must surface at tool-call time as a dependency error,
// never as a startup failure.
func (c *Config) Validate() error {
	if c.Weaviate.URL != "" {
		u, err := url.Parse(c.Weaviate.URL)
		if err != nil || u.Host == "" && u.Opaque == "" && u.Path == "" {
			return fmt.Errorf("%w: %q", ErrInvalidWeaviateURL, c.Weaviate.URL)
		}
	}
	if c.Weaviate.ConnectTimeout <= 0 {
		return fmt.Errorf("%w: %d (must be positive seconds)",
			ErrInvalidConnectTimeout, c.Weaviate.ConnectTimeout)
	}

	if c.OpenAI.Model == "" {
		return fmt.Errorf("%w: model name must not be empty", ErrInvalidModel)
	}
	if c.OpenAI.MaxAnswerTokens < 1 || c.OpenAI.MaxAnswerTokens > 16384 {
		return fmt.Errorf("%w: %d (must be 1-16384)",
			ErrInvalidMaxTokens, c.OpenAI.MaxAnswerTokens)
	}

	if c.Manual.Collection == "" {
		return fmt.Errorf("%w: collection must not be empty", ErrInvalidCollection)
	}
	if c.Manual.MaxPage < 1 {
		return fmt.Errorf("%w: %d (must be positive)", ErrInvalidMaxPage, c.Manual.MaxPage)
	}
	if c.Manual.SearchLimit < 1 || c.Manual.SearchLimit > MaxSearchLimit {
		return fmt.Errorf("%w: %d (must be 1-%d)",
			ErrInvalidSearchLimit, c.Manual.SearchLimit, MaxSearchLimit)
	}

	return nil
}
