package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestMiddleware(ttl time.Duration) (*Middleware, *JWTService) {
	svc := newTestJWT(ttl)
	return NewMiddleware(svc, zap.NewNop()), svc
}

func authedHandler(t *testing.T, wantUserID int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := GetUserIDFromContext(r.Context())
		require.True(t, ok)
		assert.Equal(t, wantUserID, userID)
		w.WriteHeader(http.StatusOK)
	}
}

func TestRequireAuth_CookieToken(t *testing.T) {
	mw, svc := newTestMiddleware(time.Hour)
	token, err := svc.GenerateToken(7)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/urls", nil)
	req.AddCookie(&http.Cookie{Name: TokenCookie, Value: token})
	rec := httptest.NewRecorder()

	mw.RequireAuth(authedHandler(t, 7))(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireAuth_BearerToken(t *testing.T) {
	mw, svc := newTestMiddleware(time.Hour)
	token, err := svc.GenerateToken(7)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/urls", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	mw.RequireAuth(authedHandler(t, 7))(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireAuth_MissingToken(t *testing.T) {
	mw, _ := newTestMiddleware(time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/api/urls", nil)
	rec := httptest.NewRecorder()

	mw.RequireAuth(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not be called")
	})(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Unauthorized: Please log in", body["message"])
}

func TestRequireAuth_ExpiredToken(t *testing.T) {
	mw, svc := newTestMiddleware(-time.Minute)
	token, err := svc.GenerateToken(7)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/urls", nil)
	req.AddCookie(&http.Cookie{Name: TokenCookie, Value: token})
	rec := httptest.NewRecorder()

	mw.RequireAuth(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not be called")
	})(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Token expired", body["message"])
}

func TestCORS_Preflight(t *testing.T) {
	mw, _ := newTestMiddleware(time.Hour)

	req := httptest.NewRequest(http.MethodOptions, "/api/shorten", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()

	mw.CORS(func(http.ResponseWriter, *http.Request) {
		t.Fatal("preflight must short-circuit")
	})(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}
