package handler

import (
	"log/slog"
	"net/http"
	"time"
)

// RegistryStatus reports the state of the tradable-pair registry.
type RegistryStatus interface {
	Len() int
	UpdatedAt() time.Time
}

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	registry RegistryStatus
	started  time.Time
	logger   *slog.Logger
}

// NewHealthHandler creates a HealthHandler. registry may be nil.
func NewHealthHandler(registry RegistryStatus, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{registry: registry, started: time.Now(), logger: logger}
}

// HealthCheck responds with a JSON status. The service reports "degraded"
// until the pair registry has been loaded.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(h.started).Round(time.Second).String(),
	}

	if h.registry != nil {
		pairs := h.registry.Len()
		body["tradable_pairs"] = pairs
		if updated := h.registry.UpdatedAt(); !updated.IsZero() {
			body["pairs_updated_at"] = updated.UTC().Format(time.RFC3339)
		}
		if pairs == 0 {
			body["status"] = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, body)
}
