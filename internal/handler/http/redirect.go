package http

import (
	"Linklytics-Backend/internal/analytics"
	"Linklytics-Backend/internal/auth"
	"Linklytics-Backend/internal/repository"
	"Linklytics-Backend/internal/service"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Redirect handles GET /api/shorten/{alias}: resolves the alias, registers
// the click and answers 302. Analytics recording is queued off the request
// path.
func (h *Handler) Redirect(w http.ResponseWriter, r *http.Request, alias string) {
	if alias == "" {
		writeError(w, http.StatusNotFound, "Short URL not found")
		return
	}

	link, err := h.shortener.Resolve(r.Context(), alias)
	if err != nil {
		if errors.Is(err, repository.ErrAliasNotFound) || errors.Is(err, service.ErrLinkExpired) {
			writeError(w, http.StatusNotFound, "Short URL not found")
			return
		}
		h.log.Error("failed to resolve alias", zap.String("alias", alias), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	// The click counter is the source of truth for totals, so a failed
	// increment fails the redirect rather than silently losing the click.
	if _, err := h.shortener.RegisterClick(r.Context(), alias); err != nil {
		h.log.Error("failed to register click", zap.String("alias", alias), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	ev := analytics.ClickEvent{
		LinkID:    link.ID,
		OwnerID:   link.UserID,
		Alias:     alias,
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
		At:        time.Now(),
	}
	if userID, ok := auth.GetUserIDFromContext(r.Context()); ok {
		ev.UserID = &userID
	}
	h.clicks.Submit(ev)

	http.Redirect(w, r, link.LongURL, http.StatusFound)
}
