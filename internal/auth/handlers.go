package auth

import (
	"Linklytics-Backend/internal/config"
	"Linklytics-Backend/internal/repository"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Handler serves the authentication endpoints: the Google OAuth flow, session
// checks and logout.
type Handler struct {
	oauth      *GoogleOAuth
	jwtService *JWTService
	storage    repository.Storage
	clientURL  string
	tokenTTL   time.Duration
	log        *zap.Logger
}

// NewHandler creates a new auth handler.
func NewHandler(oauth *GoogleOAuth, jwtService *JWTService, storage repository.Storage, cfg *config.Auth, log *zap.Logger) *Handler {
	return &Handler{
		oauth:      oauth,
		jwtService: jwtService,
		storage:    storage,
		clientURL:  cfg.ClientURL,
		tokenTTL:   cfg.TokenTTL,
		log:        log,
	}
}

// Login starts the OAuth flow: sets a state cookie and redirects the browser
// to the Google consent screen.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	state, err := randomState()
	if err != nil {
		h.log.Error("failed to generate oauth state", zap.Error(err))
		writeJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.oauth.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

// Callback finishes the OAuth flow: verifies state, exchanges the code for a
// Google profile, upserts the user and sets the session cookie.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != r.URL.Query().Get("state") {
		h.log.Warn("oauth state mismatch")
		writeJSONError(w, http.StatusBadRequest, "Invalid OAuth state")
		return
	}

	// State is single-use.
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})

	code := r.URL.Query().Get("code")
	if code == "" {
		writeJSONError(w, http.StatusBadRequest, "Missing authorization code")
		return
	}

	profile, err := h.oauth.Exchange(r.Context(), code)
	if err != nil {
		h.log.Error("oauth exchange failed", zap.Error(err))
		writeJSONError(w, http.StatusInternalServerError, "Authentication failed")
		return
	}

	user, err := h.storage.FindOrCreateUser(r.Context(), profile.ID, profile.Email, profile.Name, profile.Picture)
	if err != nil {
		h.log.Error("failed to upsert user", zap.String("email", profile.Email), zap.Error(err))
		writeJSONError(w, http.StatusInternalServerError, "Authentication failed")
		return
	}

	token, err := h.jwtService.GenerateToken(user.ID)
	if err != nil {
		h.log.Error("failed to generate token", zap.Int64("user_id", user.ID), zap.Error(err))
		writeJSONError(w, http.StatusInternalServerError, "Authentication failed")
		return
	}

	h.setSessionCookie(w, token)
	h.log.Info("user logged in", zap.Int64("user_id", user.ID), zap.String("email", user.Email))

	http.Redirect(w, r, h.clientURL+"/dashboard", http.StatusFound)
}

// Logout clears the session cookie. A request without a session is a 400.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if TokenFromRequest(r) == "" {
		writeJSONError(w, http.StatusBadRequest, "No active session")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"message": "Logged out successfully"})
}

// Check reports whether the request carries a valid session. Runs behind
// RequireAuth, so reaching it means the token validated.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"authenticated": true,
		"userId":        userID,
	})
}

// Profile returns the authenticated user's profile.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "Unauthorized: Please log in")
		return
	}

	user, err := h.storage.GetUserByID(r.Context(), userID)
	if errors.Is(err, repository.ErrUserNotFound) {
		writeJSONError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		h.log.Error("failed to load user", zap.Int64("user_id", userID), zap.Error(err))
		writeJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(user)
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.tokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})
}

func randomState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": message})
}
