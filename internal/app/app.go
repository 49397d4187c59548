// Package app wires the application together: configuration, logging,
// database pool, Genkit providers, catalog store, retrieval router, and the
// conversation agent.
package app

import (
	"log/slog"

	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shopbot-ai/shopbot/internal/agent"
	"github.com/shopbot-ai/shopbot/internal/catalog"
	"github.com/shopbot-ai/shopbot/internal/config"
	"github.com/shopbot-ai/shopbot/internal/ingest"
	"github.com/shopbot-ai/shopbot/internal/retrieval"
)

// App holds the initialized application components.
type App struct {
	Config *config.Config
	Logger *slog.Logger
	Pool   *pgxpool.Pool
	Genkit *genkit.Genkit
	Store  *catalog.Store
	Router *retrieval.Router
	Agent  *agent.Agent
	Seeder *ingest.Seeder
}

// Close releases the application's resources. Safe to call on a partially
// initialized App.
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Pool != nil {
		a.Pool.Close()
		a.Pool = nil
	}
}
