// Package app composes the cache engine into a runnable daemon: it wires
// the namespace lock, cache database, simulated collaborator, and client
// facade through fx and drives a small demo workload over the feed.
package app

import (
	"context"
	"time"

	"github.com/matheus3301/optsync/internal/backend/sim"
	"github.com/matheus3301/optsync/internal/bus"
	"github.com/matheus3301/optsync/internal/client"
	"github.com/matheus3301/optsync/internal/config"
	"github.com/matheus3301/optsync/internal/entity"
	"github.com/matheus3301/optsync/internal/lock"
	"github.com/matheus3301/optsync/internal/logging"
	"github.com/matheus3301/optsync/internal/mutate"
	"github.com/matheus3301/optsync/internal/persist"
	"github.com/matheus3301/optsync/internal/session"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved namespace configuration passed to the fx module.
type Params struct {
	Namespace string
	CachePath string // optional override for testing; empty = use default
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("optsyncd",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideLock,
			provideDB,
			provideCache,
			provideBackend,
			provideRegistry,
			provideClient,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig() *config.Config {
	cfg, err := config.Load(session.ConfigPath())
	if err != nil {
		cfg = config.Default()
		_ = config.Save(session.ConfigPath(), cfg)
	}
	return cfg
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.Namespace), p.Namespace)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.Namespace); err != nil {
		return nil, err
	}
	logger.Info("acquiring namespace lock", zap.String("namespace", p.Namespace))
	l, err := lock.Acquire(session.Dir(p.Namespace))
	if err != nil {
		return nil, err
	}
	logger.Info("namespace lock acquired")
	return l, nil
}

func provideDB(p Params, logger *zap.Logger) (*persist.DB, error) {
	dbPath := p.CachePath
	if dbPath == "" {
		dbPath = session.CacheDBPath(p.Namespace)
	}
	db, err := persist.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("cache initialized", zap.String("path", dbPath))
	return db, nil
}

func provideCache(db *persist.DB, logger *zap.Logger) *persist.Adapter {
	return persist.NewAdapter(db, logger)
}

func provideBackend(cfg *config.Config) *sim.Backend[entity.Post] {
	be := sim.New[entity.Post](time.Duration(cfg.Sim.LatencyMS) * time.Millisecond)
	seedFeed(be, cfg.Sim)
	return be
}

func provideRegistry() *mutate.Registry[entity.Post] {
	return NewFeedRegistry()
}

func provideClient(p Params, cfg *config.Config, be *sim.Backend[entity.Post], reg *mutate.Registry[entity.Post], cache *persist.Adapter, b *bus.Bus, logger *zap.Logger) *client.Client[entity.Post] {
	return client.New[entity.Post](client.Options{
		Namespace: p.Namespace,
		Debounce:  time.Duration(cfg.Snapshot.DebounceMS) * time.Millisecond,
	}, be, reg, cache, b, logger)
}

func registerLifecycle(lc fx.Lifecycle, c *client.Client[entity.Post], db *persist.DB, lk *lock.Lock, logger *zap.Logger) {
	demoCtx, demoCancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			c.Hydrate()
			c.Start(context.Background())
			go runDemo(demoCtx, c, logger)
			return nil
		},
		OnStop: func(_ context.Context) error {
			demoCancel()
			c.Stop()
			if err := db.Close(); err != nil {
				logger.Warn("error closing cache db", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
