// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/starford/stacks/internal/api"
	"github.com/starford/stacks/internal/cache"
	"github.com/starford/stacks/internal/mirror"
	"github.com/starford/stacks/internal/noteservice"
	"github.com/starford/stacks/internal/sse"
	"github.com/starford/stacks/internal/syncer"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	logger := app.logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: cfg.App.LogLevel,
		}))
	}
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("cache_path", cfg.Cache.Path),
		slog.Bool("remote_enabled", cfg.Remote.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Initialize the local cache.
	db, err := cache.Open(cfg.Cache.Path)
	if err != nil {
		return fmt.Errorf("init cache: %w", err)
	}
	defer db.Close()

	// Ensure the first bookshelf page exists.
	pages, err := db.ListBookshelves()
	if err != nil {
		return fmt.Errorf("list bookshelves: %w", err)
	}
	if len(pages) == 0 {
		if _, err := db.CreateBookshelf("bookshelf-1"); err != nil {
			return fmt.Errorf("create initial bookshelf: %w", err)
		}
	}

	// Initialize the remote mirror when configured.
	var m *mirror.Mirror
	if cfg.Remote.Enabled {
		redisOpts, err := redis.ParseURL(cfg.Remote.Redis.URL)
		if err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}
		docs := mirror.NewRedisDocs(redis.NewClient(redisOpts), logger)

		blobs, err := mirror.NewMinioBlobs(ctx,
			cfg.Remote.Minio.Endpoint,
			cfg.Remote.Minio.AccessKey,
			cfg.Remote.Minio.SecretKey,
			cfg.Remote.Minio.Bucket,
			cfg.Remote.Minio.UseSSL)
		if err != nil {
			return fmt.Errorf("init blob store: %w", err)
		}
		m = mirror.New(db, docs, blobs, logger)
	}

	coord := syncer.New(m, cfg.Remote.Enabled, logger)

	// SSE broker; remote batch applies become re-render events.
	broker := sse.NewBroker()
	defer broker.Close()
	coord.SetOnRemoteApplied(broker.PublishRemoteApplied)

	svc := noteservice.NewService(db, coord, noteservice.Options{
		AutoExpand: cfg.Options.AutoExpand,
		ThumbWidth: cfg.Options.ThumbWidth,
		Quality:    cfg.Options.Quality,
	}, logger)

	apiRouter := api.NewRouter(svc, coord, broker, cfg.Auth.AuthEnabled(), cfg.Auth.Token)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// The configured identity signs in at startup: subscribe to the remote
	// change feed, then push everything unsynced.
	if cfg.Remote.Enabled && cfg.Remote.UserID != "" {
		if err := coord.SignIn(gCtx, cfg.Remote.UserID); err != nil {
			logger.Warn("initial sign-in failed, running local-only", slog.String("error", err.Error()))
		}
	}
	defer coord.SignOut()

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
