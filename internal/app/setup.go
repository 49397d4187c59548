package app

import (
	"context"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/time/rate"

	"github.com/shopbot-ai/shopbot/db"
	"github.com/shopbot-ai/shopbot/internal/agent"
	"github.com/shopbot-ai/shopbot/internal/catalog"
	"github.com/shopbot-ai/shopbot/internal/config"
	"github.com/shopbot-ai/shopbot/internal/ingest"
	"github.com/shopbot-ai/shopbot/internal/log"
	"github.com/shopbot-ai/shopbot/internal/retrieval"
)

// Proactive rate limit for completion provider calls.
const (
	providerRate  rate.Limit = 10
	providerBurst            = 30
)

// pingTimeout bounds the startup connectivity check.
const pingTimeout = 5 * time.Second

// Setup creates and initializes the application. Call Close() to release.
func Setup(ctx context.Context, cfg *config.Config) (_ *App, retErr error) {
	a := &App{Config: cfg}

	// On error, release everything already initialized.
	defer func() {
		if retErr != nil {
			a.Close()
		}
	}()

	logger := log.New(log.Config{Level: cfg.SlogLevel(), JSON: cfg.LogJSON})
	a.Logger = logger

	pool, err := providePool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Pool = pool

	g := genkit.Init(ctx,
		genkit.WithPlugins(&googlegenai.GoogleAI{APIKey: cfg.GeminiAPIKey}),
	)
	a.Genkit = g

	model := genkit.LookupModel(g, cfg.ModelName)
	if model == nil {
		return nil, fmt.Errorf("model %q not found", cfg.ModelName)
	}
	textEmbedder := googlegenai.GoogleAIEmbedder(g, cfg.TextEmbedderModel)
	if textEmbedder == nil {
		return nil, fmt.Errorf("text embedder %q not found", cfg.TextEmbedderModel)
	}
	imageEmbedder := googlegenai.GoogleAIEmbedder(g, cfg.ImageEmbedderModel)
	if imageEmbedder == nil {
		return nil, fmt.Errorf("image embedder %q not found", cfg.ImageEmbedderModel)
	}

	store, err := catalog.NewStore(pool, logger.With("component", "catalog"))
	if err != nil {
		return nil, fmt.Errorf("creating catalog store: %w", err)
	}
	a.Store = store

	router, err := retrieval.NewRouter(textEmbedder, imageEmbedder, store,
		logger.With("component", "retrieval"))
	if err != nil {
		return nil, fmt.Errorf("creating retrieval router: %w", err)
	}
	a.Router = router

	registry, err := agent.NewRegistry(router, cfg.DefaultSearchLimit, config.MaxSearchLimit,
		logger.With("component", "registry"))
	if err != nil {
		return nil, fmt.Errorf("creating tool registry: %w", err)
	}
	tools := agent.DefineTools(g, registry)

	ag, err := agent.New(g, model, registry, tools,
		rate.NewLimiter(providerRate, providerBurst),
		logger.With("component", "agent"))
	if err != nil {
		return nil, fmt.Errorf("creating agent: %w", err)
	}
	a.Agent = ag

	seeder, err := ingest.New(router, store, cfg.ImagesPath,
		logger.With("component", "ingest"))
	if err != nil {
		return nil, fmt.Errorf("creating seeder: %w", err)
	}
	a.Seeder = seeder

	return a, nil
}

// providePool applies migrations and opens the connection pool.
func providePool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing postgres config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}
