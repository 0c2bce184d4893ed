// Package answer composes final answers for handbook queries by sending
// the retrieved chunks, including any critical visuals, to a
// vision-capable OpenAI chat model.
package answer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/cookeng/handbook-mcp/internal/manual"
)

// ErrNotConfigured indicates the OpenAI API key is absent. Like the
// store, this surfaces at first use, not at startup.
var ErrNotConfigured = errors.New("openai api key not configured")

const (
	// DefaultModel must be vision-capable: chunks flagged with critical
	// visuals are sent as image parts.
	DefaultModel = "gpt-4o"

	// DefaultMaxTokens caps one generated answer.
	DefaultMaxTokens = 1500
)

// Config holds the completion-service parameters.
type Config struct {
	APIKey    string
	Model     string
	MaxTokens int
}

// Generator produces handbook answers. Safe for concurrent use.
type Generator struct {
	client    openai.Client
	model     string
	maxTokens int64
	logger    *slog.Logger
}

// Connect validates the credentials and builds the client. The OpenAI
// client itself dials lazily, so the fallible part here is credential
// presence; bad keys surface on the first Answer call.
func Connect(cfg Config, logger *slog.Logger) (*Generator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: OPENAI_API_KEY is not set", ErrNotConfigured)
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	return &Generator{
		client:    openai.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:     model,
		maxTokens: int64(maxTokens),
		logger:    logger,
	}, nil
}

// Answer sends the question plus retrieved context to the model and
// returns the generated text. Chunks flagged as carrying a critical
// visual are attached as high-detail image parts so the model can read
// values off maps, charts and tables.
func (g *Generator) Answer(ctx context.Context, question string, chunks []manual.Chunk) (string, error) {
	parts := []openai.ChatCompletionContentPartUnionParam{
		openai.TextContentPart(buildPrompt(question, chunks)),
	}

	images := 0
	for _, c := range chunks {
		if !c.HasCriticalVisual || c.Visual == "" {
			continue
		}
		parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
			URL:    "data:image/png;base64," + c.Visual,
			Detail: "high",
		}))
		images++
	}

	g.logger.Debug("requesting answer", "model", g.model, "chunks", len(chunks), "images", images)

	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:     openai.ChatModel(g.model),
		MaxTokens: openai.Int(g.maxTokens),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(parts),
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
