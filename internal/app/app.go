// Package app provides the main application struct for centralized dependency management
// and lifecycle control of the file chat server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/spf13/afero"

	"filechat/config"
	"filechat/internal/cache"
	"filechat/internal/core"
	"filechat/internal/extract"
	"filechat/internal/prompt"
	"filechat/internal/providers"
	"filechat/internal/server"
	"filechat/internal/upload"

	// Import provider packages to trigger their init() registration
	_ "filechat/internal/providers/dummy"
	_ "filechat/internal/providers/gemini"
)

// App represents the main application with all its dependencies.
// It provides centralized lifecycle management for all components.
type App struct {
	config  *config.Config
	cache   cache.Cache
	gateway *providers.Limited
	server  *server.Server

	shutdownMu sync.Mutex
	shutdown   bool
}

// Options overrides collaborators, mainly for tests.
type Options struct {
	// Fs backs the upload directory. Defaults to the OS filesystem.
	Fs afero.Fs
}

// New creates a new App with all dependencies initialized.
// The caller must call Shutdown to release resources.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}

	app := &App{config: cfg}

	extractionCache, err := NewCache(cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}
	app.cache = extractionCache

	gateway, err := providers.Create(cfg.Provider)
	if err != nil {
		closeErr := app.cache.Close()
		if closeErr != nil {
			return nil, fmt.Errorf("failed to initialize provider: %w (also: cache close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize provider: %w", err)
	}
	app.gateway = providers.NewLimited(gateway, providers.LimitedConfig{
		Name:           cfg.Provider.Name,
		MaxConcurrency: cfg.Provider.MaxConcurrency,
		Timeout:        cfg.Provider.Timeout,
	})

	app.logStartupInfo()

	app.server = server.New(server.Deps{
		Gateway:   app.gateway,
		Store:     upload.NewStore(opts.Fs, cfg.Upload.Dir, cfg.Upload.MaxFileSize),
		Extractor: extract.New(opts.Fs, app.cache),
		Assembler: prompt.NewAssembler(cfg.Provider.SystemPrompt),
	}, &server.Config{
		Development:     cfg.Server.Development(),
		MetricsEnabled:  cfg.Metrics.Enabled,
		MetricsEndpoint: cfg.Metrics.Endpoint,
		BodySizeLimit:   cfg.Server.BodySizeLimit,
		Generation:      Generation(cfg.Provider),
	})

	return app, nil
}

// NewCache builds the extraction cache selected by cfg.
func NewCache(cfg config.CacheConfig) (cache.Cache, error) {
	return cache.New(cache.Config{
		Type: cfg.Type,
		Redis: cache.RedisConfig{
			URL:       cfg.RedisURL,
			KeyPrefix: cfg.KeyPrefix,
			TTL:       cfg.TTL,
		},
		Local: cache.LocalConfig{TTL: cfg.TTL},
	})
}

// Generation returns the sampling parameters for chat turns.
func Generation(cfg config.ProviderConfig) core.GenerationConfig {
	return core.GenerationConfig{
		Temperature:     cfg.Temperature,
		TopK:            cfg.TopK,
		TopP:            cfg.TopP,
		MaxOutputTokens: cfg.MaxOutputTokens,
	}
}

// Handler returns the HTTP handler of the server.
func (a *App) Handler() http.Handler {
	return a.server
}

// Start starts the HTTP server on the given address.
// This is a blocking call that returns when the server stops.
func (a *App) Start(addr string) error {
	if a.server == nil {
		return fmt.Errorf("server is not initialized")
	}
	slog.Info("starting server", "address", addr)
	if err := a.server.Start(addr); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			slog.Info("server stopped gracefully")
			return nil
		}
		return fmt.Errorf("server failed to start: %w", err)
	}
	return nil
}

// Shutdown stops the HTTP server, then closes the gateway and the cache.
// It is idempotent and returns the joined errors of every step.
func (a *App) Shutdown(ctx context.Context) error {
	a.shutdownMu.Lock()
	if a.shutdown {
		a.shutdownMu.Unlock()
		return nil
	}
	a.shutdown = true
	a.shutdownMu.Unlock()

	slog.Info("shutting down application...")

	var errs []error

	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			slog.Error("server shutdown error", "error", err)
			errs = append(errs, fmt.Errorf("server shutdown: %w", err))
		}
	}

	if a.gateway != nil {
		if err := a.gateway.Close(); err != nil {
			slog.Error("gateway close error", "error", err)
			errs = append(errs, fmt.Errorf("gateway close: %w", err))
		}
	}

	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			slog.Error("cache close error", "error", err)
			errs = append(errs, fmt.Errorf("cache close: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}

	slog.Info("application shutdown complete")
	return nil
}

// logStartupInfo logs the application configuration on startup.
func (a *App) logStartupInfo() {
	cfg := a.config

	slog.Info("provider configured",
		"provider", cfg.Provider.Name,
		"model", cfg.Provider.Model,
		"max_concurrency", cfg.Provider.MaxConcurrency,
		"timeout", cfg.Provider.Timeout,
	)
	if cfg.Provider.Name == "gemini" && cfg.Provider.APIKey == "" {
		slog.Warn("GEMINI_API_KEY not set - every model call will fail",
			"recommendation", "set GEMINI_API_KEY or GOOGLE_API_KEY, or PROVIDER=dummy for local testing")
	}

	slog.Info("uploads configured", "dir", cfg.Upload.Dir, "max_file_size", cfg.Upload.MaxFileSize)
	slog.Info("extraction cache configured", "type", cfg.Cache.Type)

	if cfg.Metrics.Enabled {
		slog.Info("prometheus metrics enabled", "endpoint", cfg.Metrics.Endpoint)
	} else {
		slog.Info("prometheus metrics disabled")
	}
}
