package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/artpar/gqlswitch/internal/config"
	"github.com/artpar/gqlswitch/internal/dispatch"
	"github.com/artpar/gqlswitch/internal/endpoint"
	"github.com/artpar/gqlswitch/internal/kv"
	"github.com/artpar/gqlswitch/internal/kv/filesystem"
	"github.com/artpar/gqlswitch/internal/kv/sqlite"
	"github.com/artpar/gqlswitch/internal/schema"
	"github.com/artpar/gqlswitch/internal/selector"
)

// App is the application container with dependency injection.
type App struct {
	config     config.Config
	store      kv.Store
	ownsStore  bool
	logger     *slog.Logger
	controller *selector.Controller
	dispatcher *dispatch.Holder
	fetcher    *schema.Fetcher
	clientOpts []dispatch.Option
}

// Option is a function that configures the App.
type Option func(*App)

// WithStore injects a store instead of opening the configured one. The app
// does not close an injected store.
func WithStore(store kv.Store) Option {
	return func(a *App) {
		a.store = store
	}
}

// WithLogger sets the application logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *App) {
		a.logger = logger
	}
}

// WithClientOptions adds options for every dispatcher client built.
func WithClientOptions(opts ...dispatch.Option) Option {
	return func(a *App) {
		a.clientOpts = append(a.clientOpts, opts...)
	}
}

// New loads persisted state and wires the components together.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	a := &App{
		config: cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.store == nil {
		store, err := OpenStore(cfg.Store)
		if err != nil {
			return nil, err
		}
		a.store = store
		a.ownsStore = true
	}

	current := endpoint.NewCurrent(a.store, cfg.DefaultURL, a.logger)
	current.Load(ctx)

	history := endpoint.NewHistory(a.store, current,
		endpoint.WithMaxEntries(cfg.History.MaxEntries),
		endpoint.WithHistoryLogger(a.logger))
	history.Load(ctx)

	fetcher, err := schema.NewFetcher(cfg.Schema.CacheSize, a.logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create schema fetcher: %w", err)
	}
	a.fetcher = fetcher

	a.controller = selector.New(current, history,
		selector.WithLogger(a.logger),
		selector.WithCachedStatus(a.fetcher.Cached))

	clientOpts := append([]dispatch.Option{}, a.clientOpts...)
	if cfg.Request.Timeout > 0 {
		clientOpts = append(clientOpts, dispatch.WithTimeout(cfg.Request.Timeout))
	}
	a.dispatcher = dispatch.NewHolder(current.Get(), cfg.Headers, a.logger, clientOpts...)
	a.controller.OnEndpointChange(a.dispatcher.Rebuild)
	a.controller.OnEndpointChange(func(url string) {
		a.logger.Debug("endpoint changed",
			slog.String("endpoint", url),
			slog.Int("clients", a.dispatcher.Builds()))
	})

	a.logStore(ctx)
	a.logger.Debug("app ready",
		slog.String("endpoint", current.Get()),
		slog.Int("history", history.Len()),
		slog.String("store", cfg.Store.Driver))

	return a, nil
}

// OpenStore opens the store backend named by cfg.Driver.
func OpenStore(cfg config.StoreConfig) (kv.Store, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		store, err := sqlite.New(cfg.Path)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.DriverFile:
		store, err := filesystem.New(cfg.Path)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.DriverMemory:
		return kv.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: %q", kv.ErrUnknownDriver, cfg.Driver)
	}
}

// logStore records where state lives and what it holds.
func (a *App) logStore(ctx context.Context) {
	switch store := a.store.(type) {
	case *sqlite.Store:
		keys, err := store.Keys(ctx)
		if err != nil {
			a.logger.Warn("failed to list stored keys", slog.Any("error", err))
			return
		}
		a.logger.Debug("sqlite store opened", slog.Any("keys", keys))
	case *filesystem.Store:
		a.logger.Debug("file store opened", slog.String("path", store.Path()))
	}
}

// Config returns the application configuration.
func (a *App) Config() config.Config {
	return a.config
}

// Logger returns the application logger.
func (a *App) Logger() *slog.Logger {
	return a.logger
}

// Controller returns the endpoint selection controller.
func (a *App) Controller() *selector.Controller {
	return a.controller
}

// Dispatcher returns the client for the current endpoint.
func (a *App) Dispatcher() *dispatch.Client {
	return a.dispatcher.Client()
}

// Fetcher returns the schema fetcher.
func (a *App) Fetcher() *schema.Fetcher {
	return a.fetcher
}

// FetchSchema probes the current endpoint and records the result on the
// controller. The endpoint is read before the probe starts.
func (a *App) FetchSchema(ctx context.Context) schema.Status {
	a.controller.SetSchemaStatus(schema.Loading(a.controller.Current()))
	status := a.fetcher.Fetch(ctx, a.Dispatcher())
	a.controller.SetSchemaStatus(status)
	return status
}

// Close releases the store if the app opened it.
func (a *App) Close() error {
	if a.ownsStore && a.store != nil {
		return a.store.Close()
	}
	return nil
}
