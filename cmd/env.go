package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/prospector/internal/agent"
	"github.com/sells-group/prospector/internal/analysis"
	"github.com/sells-group/prospector/internal/monitoring"
	"github.com/sells-group/prospector/internal/normalize"
	"github.com/sells-group/prospector/internal/pipeline"
	"github.com/sells-group/prospector/internal/store"
	"github.com/sells-group/prospector/pkg/anthropic"
	"github.com/sells-group/prospector/pkg/renderer"
)

// appEnv holds the initialized store, pipeline, and analysis service shared
// by the serve/prospect/analyze commands.
type appEnv struct {
	Store    store.Store
	Executor *agent.Executor
	Pipeline *pipeline.Pipeline
	Analyzer *analysis.Service
	Metrics  *monitoring.Metrics
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initStore builds the configured storage backend and runs migrations.
func initStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	case "sqlite", "":
		st, err = store.NewSQLite(cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initApp sets up the store, external clients, agent executor, and pipeline.
// Callers should defer env.Close(). withMetrics registers Prometheus
// collectors, which only the long-running server wants.
func initApp(ctx context.Context, withMetrics bool) (*appEnv, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	aiClient, err := anthropic.NewClient(cfg.Anthropic.Key)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	reg, err := agent.NewRegistry(cfg.Anthropic, cfg.Agents)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	renderClient := renderer.NewClient(cfg.Renderer.URL, cfg.Renderer.Key,
		renderer.WithTimeout(time.Duration(cfg.Renderer.TimeoutSecs)*time.Second))

	exec := agent.NewExecutor(aiClient, reg, cfg.Anthropic.RequestsPerSec)

	var metrics *monitoring.Metrics
	if withMetrics {
		metrics = monitoring.Default()
		exec.SetMetrics(metrics)
	}

	p := pipeline.New(renderClient, normalize.New(exec), exec, st, metrics, cfg.Pipeline.MaxContentChars)
	analyzer := analysis.NewService(st, p, metrics, cfg.Cache.CacheTTL())

	return &appEnv{
		Store:    st,
		Executor: exec,
		Pipeline: p,
		Analyzer: analyzer,
		Metrics:  metrics,
	}, nil
}
