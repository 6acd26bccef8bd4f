package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"

	"github.com/mirelabs/converse/internal/config"
	"github.com/mirelabs/converse/internal/conversation"
	"github.com/mirelabs/converse/internal/database"
	"github.com/mirelabs/converse/internal/gateway"
	"github.com/mirelabs/converse/internal/knowledge"
	"github.com/mirelabs/converse/internal/memory"
	"github.com/mirelabs/converse/internal/observability"
	"github.com/mirelabs/converse/internal/orchestrator"
	"github.com/mirelabs/converse/internal/tools"
)

// serviceName identifies this process in trace backends.
const serviceName = "converse"

// Setup creates and initializes the application.
// Returns an App with embedded cleanup — call Close() to release.
//
// ctx bounds background work spawned by components (title generation);
// canceling it begins shutdown.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, retErr error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}

	a := &App{Config: cfg, Logger: logger}

	// On error, clean up everything already initialized.
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	// Tracing must be registered before Genkit initialization so its
	// TracerProvider picks up the span processor.
	a.otelCleanup = provideOtelShutdown(ctx, cfg, logger)

	pool, err := database.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	a.Pool = pool

	if err := database.Migrate(pool); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		return nil, errors.New("initializing genkit")
	}
	a.Genkit = g

	embedder := googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found", cfg.EmbedderModel)
	}

	knowledgeDir, err := resolveKnowledgeDir(cfg)
	if err != nil {
		return nil, err
	}
	kb, err := knowledge.New(knowledgeDir, knowledge.NewEmbeddingFunc(embedder), logger)
	if err != nil {
		return nil, fmt.Errorf("opening knowledge store: %w", err)
	}
	a.Knowledge = kb

	a.Conversations = conversation.NewStore(pool, logger)
	a.Memory = memory.NewManager(a.Conversations, cfg.WindowSize, logger)

	registry, err := tools.DefaultRegistry(logger, kb)
	if err != nil {
		return nil, fmt.Errorf("building tool registry: %w", err)
	}
	a.Registry = registry

	gw, err := gateway.NewGenkit(g, cfg.ModelName, float64(cfg.Temperature), registry.Define(g), logger)
	if err != nil {
		return nil, fmt.Errorf("creating model gateway: %w", err)
	}
	a.Gateway = gw

	orch, err := orchestrator.New(orchestrator.Config{
		Gateway:           gw,
		Store:             a.Conversations,
		Memory:            a.Memory,
		Registry:          registry,
		SystemPrompt:      config.SystemPrompt(cfg.PromptID),
		MaxRounds:         cfg.MaxRounds,
		Logger:            logger,
		BackgroundContext: ctx,
	})
	if err != nil {
		return nil, fmt.Errorf("creating orchestrator: %w", err)
	}
	a.Orchestrator = orch

	return a, nil
}

// provideOtelShutdown sets up OTLP tracing when an endpoint is configured.
// Returns a no-op cleanup when tracing is disabled.
func provideOtelShutdown(ctx context.Context, cfg *config.Config, logger *slog.Logger) func() {
	if cfg.OTLPEndpoint == "" {
		return func() {}
	}

	shutdown, err := observability.Setup(ctx, observability.Config{
		Endpoint:    cfg.OTLPEndpoint,
		Environment: cfg.Environment,
		ServiceName: serviceName,
	}, logger)
	if err != nil || shutdown == nil {
		return func() {}
	}

	//nolint:contextcheck // Independent context: shutdown runs during teardown when parent is canceled
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down tracer provider", "error", err)
		}
	}
}

// resolveKnowledgeDir picks the on-disk location of the vector index.
func resolveKnowledgeDir(cfg *config.Config) (string, error) {
	if cfg.DataDir != "" {
		return filepath.Join(cfg.DataDir, "knowledge"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".converse", "knowledge"), nil
}
