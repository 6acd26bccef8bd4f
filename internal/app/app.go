// Package app provides application initialization and wiring.
//
// App is the container that connects configuration, Genkit, the database
// pool, the tool registry, the model gateway and the orchestration loop.
// Setup builds everything in dependency order; Close releases it in
// reverse.
package app

import (
	"log/slog"

	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mirelabs/converse/internal/config"
	"github.com/mirelabs/converse/internal/conversation"
	"github.com/mirelabs/converse/internal/gateway"
	"github.com/mirelabs/converse/internal/knowledge"
	"github.com/mirelabs/converse/internal/memory"
	"github.com/mirelabs/converse/internal/orchestrator"
	"github.com/mirelabs/converse/internal/tools"
)

// App is the core application container.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Genkit        *genkit.Genkit
	Pool          *pgxpool.Pool
	Conversations *conversation.Store
	Memory        *memory.Manager
	Knowledge     *knowledge.Store
	Registry      *tools.Registry
	Gateway       *gateway.Genkit
	Orchestrator  *orchestrator.Orchestrator

	otelCleanup func()
}

// Close gracefully shuts down all resources. Safe to call on a partially
// initialized App (Setup calls it on failure).
func (a *App) Close() error {
	if a.Logger != nil {
		a.Logger.Info("shutting down application")
	}

	// Waits for in-flight title generation.
	if a.Orchestrator != nil {
		a.Orchestrator.Close()
	}

	if a.Pool != nil {
		a.Pool.Close()
	}

	if a.otelCleanup != nil {
		a.otelCleanup()
	}

	return nil
}
