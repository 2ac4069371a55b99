package http

import (
	"Linklytics-Backend/internal/auth"
	"Linklytics-Backend/internal/service"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// ShortenRequest is the body of POST /api/shorten.
type ShortenRequest struct {
	LongURL     string  `json:"longUrl"`
	CustomAlias string  `json:"customAlias,omitempty"`
	Topic       *string `json:"topic,omitempty"`
	ExpiresAt   *string `json:"expiresAt,omitempty"` // RFC 3339
}

// ShortenResponse is the body of a successful shorten.
type ShortenResponse struct {
	ShortURL  string    `json:"shortUrl"`
	Alias     string    `json:"alias"`
	CreatedAt time.Time `json:"createdAt"`
}

// Shorten handles POST /api/shorten.
func (h *Handler) Shorten(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized: Please log in")
		return
	}

	var req ShortenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var expiresAt *time.Time
	if req.ExpiresAt != nil && *req.ExpiresAt != "" {
		t, err := time.Parse(time.RFC3339, *req.ExpiresAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid expiresAt: expected RFC 3339 timestamp")
			return
		}
		if t.Before(time.Now()) {
			writeError(w, http.StatusBadRequest, "expiresAt must be in the future")
			return
		}
		expiresAt = &t
	}

	link, err := h.shortener.Shorten(r.Context(), userID, req.LongURL, req.CustomAlias, req.Topic, expiresAt)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidURL):
			writeError(w, http.StatusBadRequest, "Invalid URL")
		case errors.Is(err, service.ErrInvalidAlias):
			writeError(w, http.StatusBadRequest, "Invalid custom alias")
		case errors.Is(err, service.ErrAliasTaken):
			writeError(w, http.StatusBadRequest, "Custom alias already in use")
		default:
			h.log.Error("failed to shorten url", zap.Int64("user_id", userID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	writeJSON(w, http.StatusCreated, ShortenResponse{
		ShortURL:  h.baseURL + "/api/shorten/" + link.Alias,
		Alias:     link.Alias,
		CreatedAt: link.CreatedAt,
	})
}

// RecentURLs handles GET /api/recent-urls: a paged listing of the user's
// links.
func (h *Handler) RecentURLs(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized: Please log in")
		return
	}

	q := r.URL.Query()
	page := queryInt(q.Get("page"), 1)
	limit := queryInt(q.Get("limit"), 10)

	result, err := h.shortener.RecentLinks(r.Context(), userID, q.Get("topic"), q.Get("sortBy"), page, limit)
	if err != nil {
		h.log.Error("failed to list urls", zap.Int64("user_id", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Topics handles GET /api/topics.
func (h *Handler) Topics(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized: Please log in")
		return
	}

	topics, err := h.shortener.Topics(r.Context(), userID)
	if err != nil {
		h.log.Error("failed to list topics", zap.Int64("user_id", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"topics": topics})
}

func queryInt(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return def
	}
	return n
}
