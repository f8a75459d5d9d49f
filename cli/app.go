// ABOUTME: Assembles the store, cache, adapters, coordinator, and provider from config
// ABOUTME: Shared by every command that touches the trust cache
package cli

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/harperreed/trustcache/cache"
	"github.com/harperreed/trustcache/charm"
	"github.com/harperreed/trustcache/config"
	"github.com/harperreed/trustcache/db"
	"github.com/harperreed/trustcache/provider"
	"github.com/harperreed/trustcache/sync"
)

// newKVClient opens the charm contact book. Tests swap in a local client.
var newKVClient = charm.NewClient

// App is one fully wired trust cache.
type App struct {
	Config      *config.Config
	Logger      *log.Logger
	Store       *db.Store
	Cache       *cache.TrustCache
	Coordinator *sync.Coordinator
	Provider    *provider.Provider
	KV          *charm.Client
}

// NewApp opens the database and builds every component described by cfg.
// Adapters that cannot be set up are registered disabled with a warning.
func NewApp(ctx context.Context, cfg *config.Config, logger *log.Logger) (*App, error) {
	store, err := db.Open(ctx, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	c, err := cache.New(store, cache.Options{
		MemoryEntries:           cfg.MemoryCacheEntries,
		HitRateWarningThreshold: cfg.HitRateWarningThreshold,
		Logger:                  logger,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}

	app := &App{
		Config: cfg,
		Logger: logger,
		Store:  store,
		Cache:  c,
	}

	adapters := []sync.ContactSourceAdapter{
		app.googleAdapter(ctx),
		app.kvAdapter(),
	}

	app.Coordinator = sync.NewCoordinator(c, store, adapters, sync.Options{
		CachingEnabled: cfg.CachingEnabled,
		ParallelFetch:  cfg.ParallelFetch,
		Logger:         logger,
	})
	app.Provider = provider.New(c, store, app.Coordinator, provider.Options{
		CachingEnabled:    cfg.CachingEnabled,
		TrustSignalExpiry: cfg.TrustSignalExpiry.Duration,
		Logger:            logger,
	})

	return app, nil
}

func (a *App) googleAdapter(ctx context.Context) sync.ContactSourceAdapter {
	if !a.Config.Google.Enabled {
		return sync.NewGoogleContactsAdapter(nil, false, a.Logger)
	}

	service, err := sync.NewPeopleClient(ctx, a.Config.Google.TokenPath)
	if err != nil {
		a.Logger.Warn("google contacts disabled", "error", err)
		return sync.NewGoogleContactsAdapter(nil, false, a.Logger)
	}
	return sync.NewGoogleContactsAdapter(service, true, a.Logger)
}

func (a *App) kvAdapter() sync.ContactSourceAdapter {
	if !a.Config.Charm.Enabled {
		return sync.NewKVContactsAdapter(nil, false, a.Logger)
	}

	kv, err := a.openKV()
	if err != nil {
		a.Logger.Warn("charm contact book disabled", "error", err)
		return sync.NewKVContactsAdapter(nil, false, a.Logger)
	}
	return sync.NewKVContactsAdapter(kv, true, a.Logger)
}

// openKV opens the charm contact book once per app.
func (a *App) openKV() (*charm.Client, error) {
	if a.KV != nil {
		return a.KV, nil
	}
	kv, err := newKVClient(&charm.Config{
		Host:     a.Config.Charm.Host,
		AutoSync: a.Config.Charm.AutoSync,
	})
	if err != nil {
		return nil, err
	}
	a.KV = kv
	return kv, nil
}

// Close releases the cache, KV client, and database.
func (a *App) Close() error {
	a.Cache.Close()
	if a.KV != nil {
		_ = a.KV.Close()
	}
	return a.Store.Close()
}

// openApp builds an App from the resolved global options.
func openApp(ctx context.Context, opts *globalOptions) (*App, error) {
	return NewApp(ctx, opts.cfg, opts.logger)
}
