package http

import (
	"context"
	"net/http"
	"time"
)

// Health handles GET /health: process liveness only.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready handles GET /ready: checks the backing stores. The cache is advisory,
// so only the database failing flips readiness.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{
		"database": "ok",
		"cache":    "ok",
	}
	status := http.StatusOK

	if err := h.storage.Ping(ctx); err != nil {
		checks["database"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	if err := h.cache.Ping(ctx); err != nil {
		checks["cache"] = err.Error()
	}

	writeJSON(w, status, checks)
}

// Metrics handles GET /metrics: processor counters plus uptime, as JSON.
func (h *Handler) Metrics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"uptime":    time.Since(h.startedAt).String(),
		"analytics": h.clicks.Stats(),
	})
}
