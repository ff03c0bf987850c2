// Switchboard - multi-agent session orchestrator server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/mkraev/switchboard/internal/api"
	"github.com/mkraev/switchboard/internal/config"
	"github.com/mkraev/switchboard/internal/middleware"
	"github.com/mkraev/switchboard/internal/orchestrator"
	"github.com/mkraev/switchboard/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize transcript store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close transcript store", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Transcript store health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Transcript store connected")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orch := orchestrator.New(ctx, orchestrator.Options{
		LocalRoot:    cfg.LocalRoot,
		SandboxImage: cfg.SandboxImage,
		GitCloneURL:  cfg.GitCloneURL,
		RosterPath:   cfg.AgentsFile,
		Workers:      cfg.Workers,
		Repository:   repo,
	})
	slog.Info("Orchestrator initialized", "workers", cfg.Workers, "default_model", cfg.DefaultModel)

	// Initialize handlers.
	baseHandler := api.NewHandler(orch, repo)
	sessionHandler := api.NewSessionHandler(baseHandler, cfg.DefaultModel)
	healthHandler := api.NewHealthHandler(baseHandler)
	eventsHandler := api.NewEventsHandler(baseHandler)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))

	allowedOrigins := []string{"*"}
	if cfg.FrontendURL != "" {
		allowedOrigins = []string{cfg.FrontendURL}
	}
	r.Use(middleware.CORS(allowedOrigins))

	healthHandler.RegisterHealth(r)
	sessionHandler.RegisterRoutes(r)
	r.Get("/ws/events", eventsHandler.ServeHTTP)

	// Agent executions can take minutes; no write timeout on responses.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
