// PressAssist - Truepress JET 520HD+ service companion server
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
	"github.com/screentech/pressassist/internal/api"
	"github.com/screentech/pressassist/internal/config"
	"github.com/screentech/pressassist/internal/middleware"
	"github.com/screentech/pressassist/internal/provider"
	"github.com/screentech/pressassist/internal/servicelog"
	"github.com/screentech/pressassist/internal/session"
	"github.com/screentech/pressassist/internal/store"
	"github.com/screentech/pressassist/web"
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
	repo, err := store.NewSQLite(cfg.DBPath, store.Options{
		ResetCorruptRecords: cfg.ResetCorruptRecords,
	})
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	svclog, err := servicelog.New(servicelog.Config{
		Enabled:   cfg.ServiceLog.Enabled,
		Dir:       cfg.ServiceLog.Dir,
		QueueSize: cfg.ServiceLog.QueueSize,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize service logger", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := svclog.Close(); closeErr != nil {
			slog.Error("Failed to close service logger", "error", closeErr)
		}
	}()

	providerClient, err := provider.NewGeminiClient(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		slog.Error("Failed to initialize Gemini client", "error", err)
		os.Exit(1)
	}
	slog.Info("Gemini client initialized", "model", cfg.GeminiModel)

	hub := session.NewHub()
	mgr := session.NewManager(repo, providerClient, hub, svclog, cfg.Temperature)

	// Restore the session that was active before the last shutdown, if any.
	if _, err := mgr.Resume(context.Background()); err != nil {
		slog.Warn("Failed to resume previous session", "error", err)
	}

	// Initialize handlers.
	handler := api.NewHandler(mgr, cfg)
	wsHandler := api.NewTranscriptStreamHandler(hub, cfg.FrontendURL, cfg.IsDevelopment(), cfg.KeepaliveInterval)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(cfg.FrontendURL, cfg.IsDevelopment()))

	handler.RegisterRoutes(r)

	// WebSocket endpoint.
	r.Get("/ws/transcript", wsHandler.ServeHTTP)

	// Serve embedded frontend (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	// SSE chat streaming requires no write timeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

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
