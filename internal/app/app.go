// Package app wires the application together: configuration, the lazy
// client registry, the handbook tools and the dispatcher. The process
// must come up instantly and without credentials, so Setup declares
// client constructors but never runs them; Weaviate and OpenAI are
// first dialed by the tool call that needs them.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cookeng/handbook-mcp/internal/answer"
	"github.com/cookeng/handbook-mcp/internal/clients"
	"github.com/cookeng/handbook-mcp/internal/config"
	"github.com/cookeng/handbook-mcp/internal/manual"
	"github.com/cookeng/handbook-mcp/internal/tools"
)

// App is the application container.
type App struct {
	Config     *config.Config
	Registry   *clients.Registry
	Dispatcher *tools.Dispatcher

	logger *slog.Logger
}

// Setup builds the container from loaded configuration. It declares the
// client slots and registers the tools but performs no network I/O.
func Setup(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	registry := clients.New(logger)

	if err := registry.Declare(tools.SlotHandbook, handbookConstructor(cfg, logger)); err != nil {
		return nil, fmt.Errorf("declaring %s slot: %w", tools.SlotHandbook, err)
	}
	if err := registry.Declare(tools.SlotVision, visionConstructor(cfg, logger)); err != nil {
		return nil, fmt.Errorf("declaring %s slot: %w", tools.SlotVision, err)
	}

	dispatcher, err := tools.NewDispatcher(registry, logger)
	if err != nil {
		return nil, fmt.Errorf("creating dispatcher: %w", err)
	}
	if err := dispatcher.Register(tools.NewSearchManualTool(cfg.Manual.SearchLimit, config.MaxSearchLimit)); err != nil {
		return nil, fmt.Errorf("registering search tool: %w", err)
	}
	if err := dispatcher.Register(tools.NewGetPageTool(cfg.Manual.MaxPage)); err != nil {
		return nil, fmt.Errorf("registering page tool: %w", err)
	}

	registry.Seal()

	return &App{
		Config:     cfg,
		Registry:   registry,
		Dispatcher: dispatcher,
		logger:     logger,
	}, nil
}

// handbookConstructor dials Weaviate on first use. The vectorizer and
// reranker keys travel as headers because Weaviate modules call those
// services server-side on our behalf.
func handbookConstructor(cfg *config.Config, logger *slog.Logger) clients.Constructor {
	return func(ctx context.Context) (any, error) {
		headers := map[string]string{}
		if cfg.OpenAI.APIKey != "" {
			headers["X-OpenAI-Api-Key"] = cfg.OpenAI.APIKey
		}
		if cfg.Cohere.APIKey != "" {
			headers["X-Cohere-Api-Key"] = cfg.Cohere.APIKey
		}
		return manual.Connect(ctx, manual.Config{
			URL:        cfg.Weaviate.URL,
			APIKey:     cfg.Weaviate.APIKey,
			Headers:    headers,
			Collection: cfg.Manual.Collection,
			Timeout:    time.Duration(cfg.Weaviate.ConnectTimeout) * time.Second,
		}, logger)
	}
}

// visionConstructor builds the OpenAI answer generator on first use.
func visionConstructor(cfg *config.Config, logger *slog.Logger) clients.Constructor {
	return func(ctx context.Context) (any, error) {
		return answer.Connect(answer.Config{
			APIKey:    cfg.OpenAI.APIKey,
			Model:     cfg.OpenAI.Model,
			MaxTokens: cfg.OpenAI.MaxAnswerTokens,
		}, logger)
	}
}

// Close shuts down whatever clients were actually constructed.
func (a *App) Close(ctx context.Context) error {
	a.logger.Info("shutting down")
	return a.Registry.Close(ctx)
}
