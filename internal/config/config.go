// Package config provides application configuration with multi-source
// priority.
//
// Sources (highest to lowest):
//  1. Environment variables (WEAVIATE_URL, WEAVIATE_API_KEY,
//     OPENAI_API_KEY, COHERE_KEY, HANDBOOK_* overrides)
//  2. Config file (~/.handbook-mcp/config.yaml, or ./config.yaml)
//  3. Default values
//
// Credentials are deliberately NOT required at load time. The server
// must finish its protocol handshake even when Weaviate or OpenAI are
// unreachable or unconfigured; client constructors read the credential
// fields when a tool call first needs them, and a missing key surfaces
// as a per-call dependency error, not a startup crash. Validate() checks
// structural values only.
//
// Security: secret fields are masked in MarshalJSON and String.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Sentinel errors for validation failures. Wrapped with context via
// fmt.Errorf("%w: ...") so callers can match with errors.Is.
var (
	// ErrInvalidWeaviateURL indicates the Weaviate endpoint is malformed.
	ErrInvalidWeaviateURL = errors.New("invalid weaviate URL")

	// ErrInvalidModel indicates the answer model name is empty.
	ErrInvalidModel = errors.New("invalid answer model")

	// ErrInvalidMaxTokens indicates the answer token budget is out of range.
	ErrInvalidMaxTokens = errors.New("invalid max answer tokens")

	// ErrInvalidCollection indicates the handbook collection name is empty.
	ErrInvalidCollection = errors.New("invalid collection name")

	// ErrInvalidMaxPage indicates the handbook page count is not positive.
	ErrInvalidMaxPage = errors.New("invalid max page")

	// ErrInvalidSearchLimit indicates the default search limit is out of range.
	ErrInvalidSearchLimit = errors.New("invalid search limit")

	// ErrInvalidConnectTimeout indicates the connect timeout is not positive.
	ErrInvalidConnectTimeout = errors.New("invalid connect timeout")
)

const (
	// DefaultAnswerModel is the vision-capable model used to compose
	// answers from search hits.
	DefaultAnswerModel = "gpt-4o"

	// DefaultMaxAnswerTokens caps a single generated answer.
	DefaultMaxAnswerTokens = 1500

	// DefaultCollection is the Weaviate collection holding the handbook.
	DefaultCollection = "Cook_Engineering_Manual"

	// DefaultMaxPage is the last page of the indexed handbook.
	DefaultMaxPage = 150

	// DefaultSearchLimit is how many chunks a search retrieves.
	DefaultSearchLimit = 5

	// MaxSearchLimit bounds caller-supplied result counts.
	MaxSearchLimit = 10
)

// WeaviateConfig holds the vector-search service connection parameters.
type WeaviateConfig struct {
	URL            string `mapstructure:"url" json:"url"`
	APIKey         string `mapstructure:"api_key" json:"api_key"` // SENSITIVE: masked in MarshalJSON
	ConnectTimeout int    `mapstructure:"connect_timeout" json:"connect_timeout"`
}

// OpenAIConfig holds the completion service parameters. The API key is
// also forwarded to Weaviate as the X-OpenAI-Api-Key header for the
// collection's embedding module.
type OpenAIConfig struct {
	APIKey          string `mapstructure:"api_key" json:"api_key"` // SENSITIVE: masked in MarshalJSON
	Model           string `mapstructure:"model" json:"model"`
	MaxAnswerTokens int    `mapstructure:"max_answer_tokens" json:"max_answer_tokens"`
}

// CohereConfig holds the rerank provider key forwarded to Weaviate as
// the X-Cohere-Api-Key header.
type CohereConfig struct {
	APIKey string `mapstructure:"api_key" json:"api_key"` // SENSITIVE: masked in MarshalJSON
}

// ManualConfig describes the indexed handbook.
type ManualConfig struct {
	Collection  string `mapstructure:"collection" json:"collection"`
	MaxPage     int    `mapstructure:"max_page" json:"max_page"`
	SearchLimit int    `mapstructure:"search_limit" json:"search_limit"`
}

// ServeConfig configures the optional HTTP transport.
type ServeConfig struct {
	Addr        string `mapstructure:"addr" json:"addr"`
	BearerToken string `mapstructure:"bearer_token" json:"bearer_token"` // SENSITIVE: masked in MarshalJSON
}

// Config stores the full application configuration.
type Config struct {
	Weaviate WeaviateConfig `mapstructure:"weaviate" json:"weaviate"`
	OpenAI   OpenAIConfig   `mapstructure:"openai" json:"openai"`
	Cohere   CohereConfig   `mapstructure:"cohere" json:"cohere"`
	Manual   ManualConfig   `mapstructure:"manual" json:"manual"`
	Serve    ServeConfig    `mapstructure:"serve" json:"serve"`
}

// Load loads configuration with priority: env > file > defaults.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}
	return load(filepath.Join(home, ".handbook-mcp"))
}

// load is the testable core of Load. A fresh viper instance keeps test
// runs independent of each other.
func load(configDir string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; the defaults plus environment
		// variables are a complete configuration.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("weaviate.connect_timeout", 15)

	v.SetDefault("openai.model", DefaultAnswerModel)
	v.SetDefault("openai.max_answer_tokens", DefaultMaxAnswerTokens)

	v.SetDefault("manual.collection", DefaultCollection)
	v.SetDefault("manual.max_page", DefaultMaxPage)
	v.SetDefault("manual.search_limit", DefaultSearchLimit)

	v.SetDefault("serve.addr", ":8080")
}

// bindEnvVariables binds environment variables explicitly. The credential
// names match what the handbook indexing pipeline already uses, so one
// .env works for both sides.
func bindEnvVariables(v *viper.Viper) {
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("weaviate.url", "WEAVIATE_URL")
	mustBind("weaviate.api_key", "WEAVIATE_API_KEY")
	mustBind("openai.api_key", "OPENAI_API_KEY")
	mustBind("cohere.api_key", "COHERE_KEY")

	mustBind("openai.model", "HANDBOOK_MODEL")
	mustBind("manual.collection", "HANDBOOK_COLLECTION")
	mustBind("serve.addr", "HANDBOOK_SERVE_ADDR")
	mustBind("serve.bearer_token", "HANDBOOK_BEARER_TOKEN")
}

// maskedValue is the placeholder for masked secrets. Full-width blocks
// avoid accidental substring matches against real secret material.
const maskedValue = "████████"

// maskSecret masks a secret for safe logging. Short secrets are fully
// masked; longer ones keep the first and last two characters for debug
// utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with secret masking. When adding
// a sensitive field, mask it here; the masking test will catch omissions.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.Weaviate.APIKey = maskSecret(a.Weaviate.APIKey)
	a.OpenAI.APIKey = maskSecret(a.OpenAI.APIKey)
	a.Cohere.APIKey = maskSecret(a.Cohere.APIKey)
	a.Serve.BearerToken = maskSecret(a.Serve.BearerToken)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
