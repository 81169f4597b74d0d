package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	"github.com/s0up4200/wpbs/bunny"
	"github.com/s0up4200/wpbs/config"
	"github.com/s0up4200/wpbs/filter"
	"github.com/s0up4200/wpbs/media"
	"github.com/s0up4200/wpbs/store"
	"github.com/s0up4200/wpbs/transient"
)

// application holds the handlers every command works with
type application struct {
	client      *bunny.Client
	collections *bunny.Collections
	videos      *bunny.Videos
	libraries   *bunny.Libraries
	zones       *bunny.StorageZones
	offloader   *media.Offloader
	links       store.LinkStore
	metadata    store.MetadataStore
	filters     *filter.Cache

	badgers map[string]*badger.DB
	closers []func() error
}

// newApplication builds the stores and handlers described by cfg
func newApplication(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*application, error) {
	app := &application{badgers: make(map[string]*badger.DB)}

	built := false
	defer func() {
		if !built {
			app.Close()
		}
	}()

	tstore, err := app.transientStore(ctx, cfg.Transient, logger)
	if err != nil {
		return nil, err
	}

	app.links, err = app.linkStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app.metadata, err = app.metadataStore(cfg.Metadata, logger)
	if err != nil {
		return nil, err
	}

	app.client, err = bunny.New(
		bunny.Credentials{AccessKey: cfg.Bunny.AccessKey, LibraryID: cfg.Bunny.LibraryID},
		tstore,
		logger.With().Str("component", "bunny").Logger(),
		clientOptions(cfg)...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bunny client: %w", err)
	}

	app.collections = bunny.NewCollections(app.client, app.links,
		bunny.WithCollectionPrefix(cfg.Collections.Prefix),
		bunny.WithLockTTL(cfg.Collections.LockTTL),
	)
	app.videos = bunny.NewVideos(app.client)
	app.libraries = bunny.NewLibraries(app.client)
	app.zones = bunny.NewStorageZones(app.client)
	app.offloader = media.NewOffloader(app.collections, app.videos, app.links, app.metadata,
		logger.With().Str("component", "offload").Logger(),
		media.WithDeleteLocal(cfg.Offload.DeleteLocal),
		media.WithConcurrency(cfg.Offload.Concurrency),
	)
	app.filters = filter.NewCache(filter.DefaultCacheSize, cfg.Collections.Prefix)

	built = true
	return app, nil
}

func clientOptions(cfg *config.Config) []bunny.Option {
	opts := []bunny.Option{
		bunny.WithEndpoints(bunny.Endpoints{Stream: cfg.Bunny.StreamURL, Account: cfg.Bunny.AccountURL}),
		bunny.WithTimeout(cfg.HTTP.Timeout),
		bunny.WithUploadTimeout(cfg.HTTP.UploadTimeout),
		bunny.WithMaxAttempts(cfg.Retry.MaxAttempts),
		bunny.WithBaseDelay(cfg.Retry.BaseDelay),
	}
	if cfg.Bunny.Auth == "bearer" {
		opts = append(opts, bunny.WithBearerAuth())
	}
	if cfg.RateLimit.RPS > 0 {
		opts = append(opts, bunny.WithRateLimit(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
	}
	if cfg.Breaker.Enabled {
		opts = append(opts, bunny.WithCircuitBreaker(bunny.BreakerConfig{
			FailureRatio: cfg.Breaker.FailureRatio,
			MinRequests:  cfg.Breaker.MinRequests,
			Timeout:      cfg.Breaker.Timeout,
		}))
	}
	return opts
}

func (a *application) transientStore(ctx context.Context, cfg config.TransientConfig, logger zerolog.Logger) (transient.Store, error) {
	switch cfg.Backend {
	case "redis":
		s, err := transient.NewRedisStore(ctx, transient.RedisConfig{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.Prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		a.closers = append(a.closers, s.Close)
		return s, nil
	case "badger":
		db, err := a.badger(cfg.Badger.Path, logger)
		if err != nil {
			return nil, err
		}
		return transient.NewBadgerStore(db), nil
	default:
		return transient.NewMemoryStore(), nil
	}
}

func (a *application) linkStore(ctx context.Context, cfg *config.Config) (store.LinkStore, error) {
	if cfg.Links.Backend != "postgres" {
		return store.NewMemoryLinks(), nil
	}

	links, err := store.NewPostgresLinks(ctx, cfg.Links.Postgres.DSN, cfg.Bunny.LibraryID)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}
	a.closers = append(a.closers, func() error {
		links.Close()
		return nil
	})
	if err := links.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to prepare link table: %w", err)
	}
	return links, nil
}

func (a *application) metadataStore(cfg config.MetadataConfig, logger zerolog.Logger) (store.MetadataStore, error) {
	if cfg.Backend != "badger" {
		return store.NewMemoryMetadata(), nil
	}
	db, err := a.badger(cfg.Badger.Path, logger)
	if err != nil {
		return nil, err
	}
	return store.NewBadgerMetadata(db), nil
}

// badger opens a database once per path so the transient and metadata
// stores can share a directory. An empty path is a private in-memory db.
func (a *application) badger(path string, logger zerolog.Logger) (*badger.DB, error) {
	if db, ok := a.badgers[path]; ok && path != "" {
		return db, nil
	}
	db, err := transient.OpenBadger(path, logger.With().Str("component", "badger").Logger())
	if err != nil {
		return nil, fmt.Errorf("failed to open Badger at %q: %w", path, err)
	}
	a.badgers[path] = db
	a.closers = append(a.closers, db.Close)
	return db, nil
}

// Close releases every store, most recently opened first
func (a *application) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
