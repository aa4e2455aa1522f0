// Package app assembles the fragcache components from configuration.
package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/IvanBrykalov/fragcache/cache"
	"github.com/IvanBrykalov/fragcache/internal/components"
	"github.com/IvanBrykalov/fragcache/internal/config"
	"github.com/IvanBrykalov/fragcache/internal/server"
	"github.com/IvanBrykalov/fragcache/manifest"
	"github.com/IvanBrykalov/fragcache/metrics/prom"
	"github.com/IvanBrykalov/fragcache/resolver"
	"github.com/IvanBrykalov/fragcache/store"
	"github.com/IvanBrykalov/fragcache/ui"
)

// App holds the wired components.
type App struct {
	Config   config.Config
	Logger   *slog.Logger
	Registry *prometheus.Registry
	Metrics  *prom.Adapter
	Resolver *resolver.Resolver
	Store    store.Store
	Handler  http.Handler

	health  func(context.Context) error
	closers []func() error
}

// New builds every component. Close releases what it opened.
func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}
	a := &App{Config: cfg, Logger: log, Registry: prometheus.NewRegistry()}
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.Metrics = prom.New(a.Registry, "fragcache", "", nil)

	res, err := NewResolver(cfg, log, a.Metrics, a.Metrics)
	if err != nil {
		return nil, err
	}
	a.Resolver = res

	if err := a.openStore(ctx); err != nil {
		return nil, err
	}

	a.Handler = server.New(server.Options{
		Resolver:   a.Resolver,
		Store:      a.Store,
		PayloadTTL: cfg.PayloadTTL,
		Logger:     log,
		Observer:   a.Metrics,
		Gatherer:   a.Registry,
		Health:     a.health,
	})
	return a, nil
}

// NewResolver builds the resolver with the shipped components and the
// configured module map. obs and metrics may be nil.
func NewResolver(cfg config.Config, log *slog.Logger, obs resolver.Observer, metrics cache.Metrics) (*resolver.Resolver, error) {
	comps := ui.NewRegistry()
	components.Register(comps)
	m, err := loadManifest(cfg.Manifest)
	if err != nil {
		return nil, err
	}
	log.Debug("module map loaded", "modules", len(m.ModuleMap), "path", cfg.Manifest)

	return resolver.New(resolver.Options{
		Capacity:   cfg.Capacity,
		Host:       resolver.HostBackend(m, comps),
		Client:     resolver.ClientBackend(comps),
		DigestKeys: cfg.DigestKeys,
		Logger:     log,
		Observer:   obs,
		Metrics:    metrics,
	}), nil
}

func loadManifest(path string) (*manifest.Manifest, error) {
	if path == "" {
		return manifest.FromReferences(components.References()...), nil
	}
	return manifest.Load(path)
}

func (a *App) openStore(ctx context.Context) error {
	if a.Config.RedisURL == "" {
		mem := store.NewMemory(store.MemoryOptions{Capacity: a.Config.StoreCapacity})
		a.Store = mem
		a.closers = append(a.closers, mem.Close)
		a.Logger.Info("payload store ready", "backend", "memory", "capacity", a.Config.StoreCapacity)
		return nil
	}
	client, err := store.Connect(ctx, a.Config.RedisURL, a.Config.RedisRetryAttempts, a.Config.RedisRetryInterval)
	if err != nil {
		return err
	}
	rs := store.NewRedis(client, "")
	a.Store = rs
	a.health = rs.Ping
	a.closers = append(a.closers, rs.Close)
	a.Logger.Info("payload store ready", "backend", "redis")
	return nil
}

// Close releases the store.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}
