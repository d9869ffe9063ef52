package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"allycheck/internal/browser"
	"allycheck/internal/config"
	"allycheck/internal/engine"
	"allycheck/internal/logging"
	"allycheck/internal/mcp"
	"allycheck/internal/observability"
	"allycheck/internal/perception"
	"allycheck/internal/store"
	"allycheck/internal/tools"
	"allycheck/internal/tools/analysis"
	"allycheck/internal/tools/research"
)

// newModel builds the model client. Tests replace it.
var newModel = func(ctx context.Context, cfg *config.Config) (perception.ModelClient, error) {
	if err := cfg.RequireAPIKey(); err != nil {
		return nil, err
	}
	return perception.NewGeminiClient(ctx, perception.GeminiConfig{
		APIKey:  cfg.Model.APIKey,
		Timeout: cfg.GetModelTimeout(),
	})
}

// app holds the long-lived collaborators of one command invocation.
type app struct {
	cfg      *config.Config
	registry *tools.Registry
	browser  *browser.Manager
	mcp      *mcp.ClientManager
	store    *store.SQLStore
	prom     *prometheus.Registry
	metrics  *observability.Metrics

	closers []func() error
}

// newApp builds the tool registry. Nothing here dials the model, and the
// browser starts lazily on first use.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, registry: tools.NewRegistry()}

	cache, err := newCache(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if closer, ok := cache.(interface{ Close() error }); ok {
		a.closers = append(a.closers, closer.Close)
	}
	if err := research.RegisterAll(a.registry, research.NewFetcher(cache)); err != nil {
		return nil, fmt.Errorf("failed to register research tools: %w", err)
	}

	a.browser = browser.NewManager(cfg.Browser)
	a.closers = append(a.closers, a.browser.Shutdown)
	chrome := analysis.NewChrome(a.browser, cfg.Documents.EvidenceDir)
	if err := analysis.RegisterAll(a.registry, analysis.Deps{
		Auditor:   chrome,
		Capturer:  chrome,
		Documents: analysis.Documents{Root: cfg.Documents.Root},
	}); err != nil {
		return nil, fmt.Errorf("failed to register analysis tools: %w", err)
	}

	if len(cfg.MCP) > 0 {
		a.mcp = mcp.NewClientManager(cfg.Version, cfg.MCP)
		a.closers = append(a.closers, func() error { a.mcp.DisconnectAll(); return nil })
		if err := a.mcp.ConnectAll(ctx); err != nil {
			logging.BootWarn("Some MCP servers are unavailable: %v", err)
		}
		n, err := a.mcp.RegisterTools(ctx, a.registry)
		if err != nil {
			logging.BootWarn("MCP tool discovery incomplete: %v", err)
		}
		logging.Boot("Registered %d MCP tools", n)
	}

	logging.Boot("Tool registry ready: %d tools", a.registry.Count())
	return a, nil
}

func newCache(ctx context.Context, cfg *config.Config) (research.Cache, error) {
	if cfg.Research.RedisURL == "" {
		return research.NewMemoryCache(cfg.Research.CacheSize, cfg.GetCacheTTL()), nil
	}
	cache, err := research.NewRedisCache(ctx, cfg.Research.RedisURL, cfg.GetCacheTTL())
	if err != nil {
		logging.BootWarn("Redis cache unavailable, using memory cache: %v", err)
		return research.NewMemoryCache(cfg.Research.CacheSize, cfg.GetCacheTTL()), nil
	}
	return cache, nil
}

// engine opens the store and builds the audit engine.
func (a *app) engine(ctx context.Context) (*engine.Engine, error) {
	model, err := newModel(ctx, a.cfg)
	if err != nil {
		return nil, err
	}

	a.prom = prometheus.NewRegistry()
	a.prom.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = observability.New(a.prom)

	opts := []engine.Option{engine.WithConfig(a.cfg), engine.WithMetrics(a.metrics)}
	if dsn := a.cfg.Store.DSN; dsn != "" {
		st, err := store.Open(ctx, dsn)
		if err != nil {
			logging.BootWarn("Audit store unavailable, results will not be persisted: %v", err)
		} else {
			a.store = st
			a.closers = append(a.closers, st.Close)
			opts = append(opts, engine.WithStore(st))
		}
	}
	return engine.New(model, a.auditTools(), opts...)
}

// auditTools is the part of the registry offered to the model, narrowed by
// engine.tools when set. The tools and mcp commands keep the full registry.
func (a *app) auditTools() *tools.Registry {
	names := a.cfg.Engine.Tools
	sub := a.registry.Subset(names)
	if len(names) > 0 && sub.Count() < len(names) {
		for _, name := range names {
			if !a.registry.Has(name) {
				logging.BootWarn("engine.tools names unknown tool %q", name)
			}
		}
	}
	return sub
}

// Close releases everything in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
