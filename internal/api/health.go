package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/elenchus/internal/store"
	"github.com/go-chi/chi/v5"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	repo        store.Repository
	assistantID string
	timeout     time.Duration
	logger      *slog.Logger
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(repo store.Repository, assistantID string, logger *slog.Logger) *HealthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthHandler{repo: repo, assistantID: assistantID, timeout: 5 * time.Second, logger: logger}
}

// Health returns the health status of the API and its dependencies.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	checks := map[string]string{"api": "ok", "assistant": "ok", "store": "ok"}
	status := map[string]interface{}{
		"status": "healthy",
		"checks": checks,
	}
	statusCode := http.StatusOK

	if h.assistantID == "" {
		checks["assistant"] = "not provisioned"
		status["status"] = "degraded"
		statusCode = http.StatusServiceUnavailable
	}
	if err := h.repo.Ping(ctx); err != nil {
		h.logger.Error("Health check failed", "error", err)
		checks["store"] = "unreachable"
		status["status"] = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	JSON(w, statusCode, status)
}

// RegisterHealth registers the health check route.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/api/health", h.Health)
}
