package main

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/vendor-research/internal/catalog"
	"github.com/sells-group/vendor-research/internal/config"
	"github.com/sells-group/vendor-research/internal/extract"
	"github.com/sells-group/vendor-research/internal/pipeline"
	"github.com/sells-group/vendor-research/internal/research"
	"github.com/sells-group/vendor-research/internal/resilience"
	"github.com/sells-group/vendor-research/internal/store"
	anthropicpkg "github.com/sells-group/vendor-research/pkg/anthropic"
	"github.com/sells-group/vendor-research/pkg/firecrawl"
	"github.com/sells-group/vendor-research/pkg/jina"
	"github.com/sells-group/vendor-research/pkg/perplexity"
)

// appEnv holds the store, the orchestrator and what they were built from.
type appEnv struct {
	Store    store.Store
	Pipeline *pipeline.Orchestrator
	Catalog  *catalog.Catalog
	Breakers *resilience.Registry
	Redis    redis.UniversalClient // may be nil
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Redis != nil {
		_ = e.Redis.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initStore opens the configured store.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "vendors.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// openStore opens and migrates the store.
func openStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initEnv opens the store and builds the orchestrator. With requireResearch
// false a missing provider key leaves the orchestrator without a researcher,
// so research calls fail with pipeline.ErrConfig. Callers should defer
// env.Close().
func initEnv(ctx context.Context, requireResearch bool) (*appEnv, error) {
	mode := "store"
	if requireResearch {
		mode = "research"
	}
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}
	env := &appEnv{
		Store:    st,
		Breakers: resilience.NewRegistry(resilience.FromConfig(cfg.Research.BreakerThreshold, cfg.Research.BreakerResetSecs)),
	}

	env.Catalog, err = catalog.Load(cfg.Research.CatalogPath)
	if err != nil {
		env.Close()
		return nil, err
	}

	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			env.Close()
			return nil, eris.Wrap(err, "parse redis url")
		}
		env.Redis = redis.NewClient(opts)
	}

	var researcher research.Researcher
	if err := cfg.Validate("research"); err != nil {
		zap.L().Warn("research provider not configured, research requests will fail", zap.Error(err))
	} else {
		researcher, err = initResearcher(cfg, env.Breakers, env.Redis)
		if err != nil {
			env.Close()
			return nil, err
		}
	}

	env.Pipeline = pipeline.New(st, researcher, initExtractor(cfg),
		pipeline.WithCatalog(env.Catalog),
		pipeline.WithDefaultPhase(cfg.Research.DefaultPhase),
	)
	return env, nil
}

// initResearcher builds the configured provider behind a circuit breaker
// and, when rdb is set, a response cache.
func initResearcher(c *config.Config, reg *resilience.Registry, rdb redis.UniversalClient) (research.Researcher, error) {
	var base research.Researcher
	switch c.Research.Provider {
	case config.ProviderPerplexity:
		client := perplexity.NewClient(c.Perplexity.Key,
			perplexity.WithBaseURL(c.Perplexity.BaseURL),
			perplexity.WithModel(c.Perplexity.Model),
		)
		base = research.NewPerplexity(client, c.Perplexity.Recency)
	case config.ProviderFirecrawl:
		client := firecrawl.NewClient(c.Firecrawl.Key, firecrawl.WithBaseURL(c.Firecrawl.BaseURL))
		base = research.NewFirecrawl(client, c.Firecrawl.MaxPages, c.Firecrawl.Concurrency)
	case config.ProviderJina:
		var opts []jina.Option
		if c.Jina.SearchBaseURL != "" {
			opts = append(opts, jina.WithSearchBaseURL(c.Jina.SearchBaseURL))
		}
		base = research.NewJina(jina.NewClient(c.Jina.Key, opts...))
	default:
		return nil, eris.Errorf("unsupported research provider: %s", c.Research.Provider)
	}

	var r research.Researcher = research.NewGuarded(base, reg)
	if rdb != nil {
		r = research.NewCached(r, rdb, time.Duration(c.Research.CacheTTLMins)*time.Minute)
		zap.L().Info("research cache enabled", zap.Int("ttl_mins", c.Research.CacheTTLMins))
	}
	zap.L().Info("research provider ready", zap.String("provider", base.Name()))
	return r, nil
}

// initExtractor uses schema extraction when an Anthropic key is set and the
// pattern parser otherwise (and as its fallback).
func initExtractor(c *config.Config) extract.Strategy {
	fallback := extract.NewFallbackStrategy()
	if c.Anthropic.Key == "" {
		zap.L().Info("anthropic key not set, using pattern extraction only")
		return extract.NewChain(nil, fallback)
	}
	client := anthropicpkg.NewClient(c.Anthropic.Key)
	return extract.NewChain(extract.NewSchemaStrategy(client, c.Anthropic.Model, c.Anthropic.MaxTokens), fallback)
}
