package http

import (
	"Linklytics-Backend/internal/auth"
	"Linklytics-Backend/internal/repository"
	"errors"
	"net/http"

	"go.uber.org/zap"
)

// LinkAnalytics handles GET /api/analytics/{alias}.
func (h *Handler) LinkAnalytics(w http.ResponseWriter, r *http.Request, alias string) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized: Please log in")
		return
	}
	if alias == "" {
		writeError(w, http.StatusNotFound, "Short URL not found")
		return
	}

	stats, err := h.analytics.LinkStats(r.Context(), userID, alias)
	if err != nil {
		if errors.Is(err, repository.ErrAliasNotFound) {
			writeError(w, http.StatusNotFound, "Short URL not found")
			return
		}
		h.log.Error("failed to get link analytics", zap.String("alias", alias), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// TopicAnalytics handles GET /api/analytics/topic/{topic}.
func (h *Handler) TopicAnalytics(w http.ResponseWriter, r *http.Request, topic string) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized: Please log in")
		return
	}
	if topic == "" {
		writeError(w, http.StatusNotFound, "Topic not found")
		return
	}

	stats, err := h.analytics.TopicStats(r.Context(), userID, topic)
	if err != nil {
		if errors.Is(err, repository.ErrTopicNotFound) {
			writeError(w, http.StatusNotFound, "Topic not found")
			return
		}
		h.log.Error("failed to get topic analytics", zap.String("topic", topic), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// OverallAnalytics handles GET /api/analytics/overall.
func (h *Handler) OverallAnalytics(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized: Please log in")
		return
	}

	stats, err := h.analytics.OverallStats(r.Context(), userID)
	if err != nil {
		h.log.Error("failed to get overall analytics", zap.Int64("user_id", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}
