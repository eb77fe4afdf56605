// Elenchus - college advising assistant server
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

	"github.com/ashureev/elenchus/internal/agent"
	"github.com/ashureev/elenchus/internal/api"
	"github.com/ashureev/elenchus/internal/config"
	"github.com/ashureev/elenchus/internal/logging"
	"github.com/ashureev/elenchus/internal/middleware"
	"github.com/ashureev/elenchus/internal/store"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	slog.SetDefault(logger)
	if envErr != nil {
		slog.Info("No .env file found, using environment variables")
	}

	slog.Info("Starting server", "port", cfg.Port, "assistant", cfg.AssistantName, "store", cfg.StoreBackend)

	// Initialize dependencies.
	repo, err := newRepository(cfg)
	if err != nil {
		slog.Error("Failed to initialize assistant store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Assistant store health check failed", "error", err)
		os.Exit(1)
	}

	backend := agent.NewOpenAIClient(cfg.OpenAI, logger)
	knowledge := agent.NewKnowledgeStore(backend, cfg.KnowledgePath, logger)
	provisioner := agent.NewProvisioner(repo, backend, knowledge, func(o *agent.ProvisionerOptions) {
		o.Model = cfg.OpenAI.Model
		o.InstructionsPath = cfg.InstructionsPath
		o.Logger = logger
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	assistantID, err := provisioner.Provision(ctx, cfg.AssistantName)
	if err != nil {
		slog.Error("Failed to provision assistant", "error", err)
		os.Exit(1)
	}

	svc, err := agent.NewService(backend, assistantID, func(o *agent.ServiceOptions) {
		o.PollInterval = cfg.PollInterval
		o.PollTimeout = cfg.PollTimeout
		o.Logger = logger
	})
	if err != nil {
		slog.Error("Failed to initialize conversation service", "error", err)
		os.Exit(1)
	}

	// Create server.
	// WriteTimeout must outlast the run poll deadline.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      newRouter(cfg, repo, svc, svc.AssistantID(), logger),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.WriteTimeout(),
		IdleTimeout:  120 * time.Second,
	}

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr, "assistant_id", assistantID)
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

// newRepository opens the configured assistant record backend.
func newRepository(cfg *config.Config) (store.Repository, error) {
	switch cfg.StoreBackend {
	case config.StoreBackendSQLite:
		repo, err := store.NewSQLite(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		return repo, nil
	default:
		repo, err := store.NewFileStore(cfg.ResourcesDir)
		if err != nil {
			return nil, err
		}
		return repo, nil
	}
}

func newRouter(cfg *config.Config, repo store.Repository, conv api.Conversations, assistantID string, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	api.NewHealthHandler(repo, assistantID, logger).RegisterHealth(r)
	api.NewChatHandler(conv, logger).RegisterRoutes(r)

	return r
}
