// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/noteban/internal/ai"
	"github.com/starford/noteban/internal/api"
	"github.com/starford/noteban/internal/profiles"
	"github.com/starford/noteban/internal/session"
	"github.com/starford/noteban/internal/sse"
)

// Run starts the HTTP service with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger := app.buildLogger(os.Stdout)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("default_notes_dir", cfg.Profiles.DefaultNotesDir),
		slog.String("log_level", cfg.App.LogLevel.String()))

	eng, err := bootstrap(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer eng.close()

	h := api.NewHandler(eng.mgr, eng.profiles, buildAI(cfg, logger), logger)
	apiRouter := api.NewRouter(h, cfg.Auth.AuthEnabled(), cfg.Auth.Token, eng.broker)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if eng.mgr.Current() == nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"starting"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes, including the /api/events stream, under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// engine bundles the long-lived pieces every subcommand builds the same way.
// The session manager owns its watcher goroutines, so there is nothing to
// supervise here beyond closing in the right order.
type engine struct {
	profiles *profiles.Store
	broker   *sse.Broker
	mgr      *session.Manager
}

func (e *engine) close() {
	e.mgr.Close()
	e.broker.Close()
}

// bootstrap opens the profile store and starts a session for the active
// profile, creating a default profile on first run.
func bootstrap(ctx context.Context, cfg *Config, logger *slog.Logger) (*engine, error) {
	dir := cfg.Profiles.Dir
	if dir == "" {
		var err error
		dir, err = profiles.DefaultDir()
		if err != nil {
			return nil, fmt.Errorf("resolve profiles dir: %w", err)
		}
	}

	ps, err := profiles.Open(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("open profile store: %w", err)
	}

	broker := sse.NewBroker(cfg.Watcher.TagThrottle())
	mgr := session.NewManager(ps, broker, cfg.Watcher.Debounce(), logger)
	if err := mgr.Start(ctx, cfg.Profiles.DefaultNotesDir); err != nil {
		broker.Close()
		return nil, err
	}

	p := mgr.Current().Profile()
	logger.Info("Session ready",
		slog.String("profile", p.Name),
		slog.String("notes_dir", p.NotesDir))

	return &engine{profiles: ps, broker: broker, mgr: mgr}, nil
}

// buildAI returns the tag suggestion client, or nil when suggestions are
// disabled.
func buildAI(cfg *Config, logger *slog.Logger) *ai.Client {
	if !cfg.AI.Enabled {
		return nil
	}
	return ai.New(ai.Options{
		BaseURL:          cfg.AI.BaseURL,
		Model:            cfg.AI.Model,
		Timeout:          cfg.AI.Timeout(),
		RequestRateLimit: cfg.AI.RequestRateLimit,
		RequestRateBurst: cfg.AI.RequestRateBurst,
	}, logger)
}

func newApplication(opts []Option) (*application, error) {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// buildLogger returns the injected logger, or a JSON logger on w at the
// configured level.
func (a *application) buildLogger(w io.Writer) *slog.Logger {
	if a.logger != nil {
		return a.logger
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: a.config.App.LogLevel}))
}
