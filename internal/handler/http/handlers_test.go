package http

import (
	"Linklytics-Backend/internal/analytics"
	"Linklytics-Backend/internal/auth"
	"Linklytics-Backend/internal/cache"
	"Linklytics-Backend/internal/config"
	"Linklytics-Backend/internal/domain"
	"Linklytics-Backend/internal/ratelimit"
	"Linklytics-Backend/internal/repository/memory"
	"Linklytics-Backend/internal/service"
	"Linklytics-Backend/pkg/useragent"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testBaseURL = "http://localhost:8080"

// stubSink records submitted click events synchronously.
type stubSink struct {
	mu     sync.Mutex
	events []analytics.ClickEvent
}

func (s *stubSink) Submit(ev analytics.ClickEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *stubSink) Stats() analytics.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return analytics.Stats{Submitted: int64(len(s.events))}
}

func (s *stubSink) recorded() []analytics.ClickEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]analytics.ClickEvent(nil), s.events...)
}

type stubParser struct{}

func (stubParser) Parse(string) useragent.DeviceInfo {
	return useragent.DeviceInfo{Device: "Desktop", OS: "Windows", Browser: "Chrome"}
}

type testEnv struct {
	handler *Handler
	routes  http.Handler
	storage *memory.MemStorage
	jwt     *auth.JWTService
	sink    *stubSink
}

// fakeCounter implements ratelimit.Counter in memory.
type fakeCounter struct {
	mu     sync.Mutex
	counts map[string]int64
}

func (c *fakeCounter) Incr(_ context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[key]++
	return c.counts[key], nil
}

func (c *fakeCounter) Expire(context.Context, string, time.Duration) error { return nil }

func newTestEnv(t *testing.T, limit int) *testEnv {
	t.Helper()

	log := zap.NewNop()
	storage := memory.New()
	noop := cache.NewNoop()

	jwtService := auth.NewJWTService(&auth.JWTConfig{
		SecretKey: []byte("test-secret"),
		TokenTTL:  time.Hour,
		Issuer:    "linklytics",
	})
	authCfg := &config.Auth{ClientURL: "http://localhost:3000", TokenTTL: time.Hour}
	oauth := auth.NewGoogleOAuth(authCfg, log)
	authHandler := auth.NewHandler(oauth, jwtService, storage, authCfg, log)
	authMW := auth.NewMiddleware(jwtService, log)

	var limiter *ratelimit.Limiter
	if limit > 0 {
		limiter = ratelimit.New(&fakeCounter{counts: make(map[string]int64)}, limit, time.Hour, log)
	}

	shortener := service.NewShortener(storage, noop, 6, log)
	analyticsService := service.NewAnalytics(storage, noop, stubParser{}, testBaseURL, log)
	sink := &stubSink{}

	h := NewHandler(shortener, analyticsService, authHandler, authMW, limiter, storage, noop, sink, testBaseURL, log)

	return &testEnv{
		handler: h,
		routes:  h.Routes(),
		storage: storage,
		jwt:     jwtService,
		sink:    sink,
	}
}

func (e *testEnv) login(t *testing.T) (int64, string) {
	t.Helper()
	user, err := e.storage.FindOrCreateUser(context.Background(), "google-1", "a@example.com", "Alice", "")
	require.NoError(t, err)
	token, err := e.jwt.GenerateToken(user.ID)
	require.NoError(t, err)
	return user.ID, token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: auth.TokenCookie, Value: token})
	}
	rec := httptest.NewRecorder()
	e.routes.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestShorten_CreatesLink(t *testing.T) {
	env := newTestEnv(t, 0)
	_, token := env.login(t)

	rec := env.do(t, http.MethodPost, "/api/shorten", token, ShortenRequest{LongURL: "https://example.com/page"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp ShortenResponse
	decodeBody(t, rec, &resp)
	assert.Len(t, resp.Alias, 6)
	assert.Equal(t, testBaseURL+"/api/shorten/"+resp.Alias, resp.ShortURL)
	assert.False(t, resp.CreatedAt.IsZero())
}

func TestShorten_CustomAliasConflict(t *testing.T) {
	env := newTestEnv(t, 0)
	_, token := env.login(t)

	rec := env.do(t, http.MethodPost, "/api/shorten", token, ShortenRequest{LongURL: "https://example.com", CustomAlias: "mine"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/shorten", token, ShortenRequest{LongURL: "https://other.example", CustomAlias: "mine"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]string
	decodeBody(t, rec, &body)
	assert.Equal(t, "Custom alias already in use", body["message"])
}

func TestShorten_InvalidURL(t *testing.T) {
	env := newTestEnv(t, 0)
	_, token := env.login(t)

	rec := env.do(t, http.MethodPost, "/api/shorten", token, ShortenRequest{LongURL: "not-a-url"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestShorten_Unauthenticated(t *testing.T) {
	env := newTestEnv(t, 0)

	rec := env.do(t, http.MethodPost, "/api/shorten", "", ShortenRequest{LongURL: "https://example.com"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestShorten_RateLimited(t *testing.T) {
	env := newTestEnv(t, 10)
	_, token := env.login(t)

	for i := 0; i < 10; i++ {
		rec := env.do(t, http.MethodPost, "/api/shorten", token, ShortenRequest{LongURL: "https://example.com/page"})
		require.Equal(t, http.StatusCreated, rec.Code, "request %d", i+1)
	}

	rec := env.do(t, http.MethodPost, "/api/shorten", token, ShortenRequest{LongURL: "https://example.com/page"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRedirect(t *testing.T) {
	env := newTestEnv(t, 0)
	userID, token := env.login(t)

	rec := env.do(t, http.MethodPost, "/api/shorten", token, ShortenRequest{LongURL: "https://example.com/target", CustomAlias: "go-here"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/shorten/go-here", token, nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://example.com/target", rec.Header().Get("Location"))

	// The click counter moved and the event reached the sink.
	link, err := env.storage.GetLink(context.Background(), "go-here")
	require.NoError(t, err)
	assert.Equal(t, int64(1), link.Clicks)

	events := env.sink.recorded()
	require.Len(t, events, 1)
	assert.Equal(t, "go-here", events[0].Alias)
	require.NotNil(t, events[0].UserID)
	assert.Equal(t, userID, *events[0].UserID)
}

func TestRedirect_UnknownAlias(t *testing.T) {
	env := newTestEnv(t, 0)
	_, token := env.login(t)

	rec := env.do(t, http.MethodGet, "/api/shorten/nope", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRedirect_ExpiredLink(t *testing.T) {
	env := newTestEnv(t, 0)
	userID, token := env.login(t)

	past := time.Now().Add(-time.Minute)
	require.NoError(t, env.storage.SaveLink(context.Background(), &domain.ShortLink{
		Alias:     "stale",
		LongURL:   "https://example.com",
		UserID:    userID,
		ExpiresAt: &past,
	}))

	rec := env.do(t, http.MethodGet, "/api/shorten/stale", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecentURLs(t *testing.T) {
	env := newTestEnv(t, 0)
	_, token := env.login(t)

	for _, alias := range []string{"aa-one", "bb-two", "cc-three"} {
		rec := env.do(t, http.MethodPost, "/api/shorten", token, ShortenRequest{LongURL: "https://example.com", CustomAlias: alias})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := env.do(t, http.MethodGet, "/api/recent-urls?page=1&limit=2", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var page service.LinkPage
	decodeBody(t, rec, &page)
	assert.Equal(t, int64(3), page.Pagination.Total)
	assert.Len(t, page.Data, 2)
	assert.True(t, page.Pagination.HasNext)
	assert.False(t, page.Pagination.HasPrevious)
}

func TestTopics(t *testing.T) {
	env := newTestEnv(t, 0)
	_, token := env.login(t)

	topic := "marketing"
	rec := env.do(t, http.MethodPost, "/api/shorten", token, ShortenRequest{LongURL: "https://example.com", Topic: &topic})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/topics", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Topics []string `json:"topics"`
	}
	decodeBody(t, rec, &body)
	assert.Equal(t, []string{"marketing"}, body.Topics)
}

func TestLinkAnalyticsEndpoint(t *testing.T) {
	env := newTestEnv(t, 0)
	_, token := env.login(t)

	rec := env.do(t, http.MethodPost, "/api/shorten", token, ShortenRequest{LongURL: "https://example.com", CustomAlias: "tracked"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/analytics/tracked", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats service.LinkStats
	decodeBody(t, rec, &stats)
	assert.Zero(t, stats.TotalClicks)
	assert.Len(t, stats.ClicksByDate, domain.DateWindowDays)
}

func TestLinkAnalyticsEndpoint_UnknownAlias(t *testing.T) {
	env := newTestEnv(t, 0)
	_, token := env.login(t)

	rec := env.do(t, http.MethodGet, "/api/analytics/nope", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTopicAnalyticsEndpoint(t *testing.T) {
	env := newTestEnv(t, 0)
	_, token := env.login(t)

	topic := "docs"
	rec := env.do(t, http.MethodPost, "/api/shorten", token, ShortenRequest{LongURL: "https://example.com", CustomAlias: "doc-1", Topic: &topic})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/analytics/topic/docs", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats service.TopicStats
	decodeBody(t, rec, &stats)
	require.Len(t, stats.URLs, 1)
	assert.Equal(t, testBaseURL+"/api/shorten/doc-1", stats.URLs[0].ShortURL)
}

func TestTopicAnalyticsEndpoint_Unknown(t *testing.T) {
	env := newTestEnv(t, 0)
	_, token := env.login(t)

	rec := env.do(t, http.MethodGet, "/api/analytics/topic/nope", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOverallAnalyticsEndpoint(t *testing.T) {
	env := newTestEnv(t, 0)
	_, token := env.login(t)

	rec := env.do(t, http.MethodPost, "/api/shorten", token, ShortenRequest{LongURL: "https://example.com", CustomAlias: "first"})
	require.Equal(t, http.StatusCreated, rec.Code)

	// The literal route must not be captured by the alias wildcard.
	rec = env.do(t, http.MethodGet, "/api/analytics/overall", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats service.OverallStats
	decodeBody(t, rec, &stats)
	assert.Equal(t, int64(1), stats.TotalURLs)
}

func TestAuthCheckAndProfile(t *testing.T) {
	env := newTestEnv(t, 0)
	userID, token := env.login(t)

	rec := env.do(t, http.MethodGet, "/auth/check", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var check struct {
		Authenticated bool  `json:"authenticated"`
		UserID        int64 `json:"userId"`
	}
	decodeBody(t, rec, &check)
	assert.True(t, check.Authenticated)
	assert.Equal(t, userID, check.UserID)

	rec = env.do(t, http.MethodGet, "/auth/profile", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var user domain.User
	decodeBody(t, rec, &user)
	assert.Equal(t, "a@example.com", user.Email)
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t, 0)
	_, token := env.login(t)

	rec := env.do(t, http.MethodPost, "/auth/logout", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Without a session, logout is a 400.
	rec = env.do(t, http.MethodPost, "/auth/logout", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t, 0)

	rec := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetrics(t *testing.T) {
	env := newTestEnv(t, 0)
	_, token := env.login(t)

	rec := env.do(t, http.MethodPost, "/api/shorten", token, ShortenRequest{LongURL: "https://example.com", CustomAlias: "metric"})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = env.do(t, http.MethodGet, "/api/shorten/metric", token, nil)
	require.Equal(t, http.StatusFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Uptime    string          `json:"uptime"`
		Analytics analytics.Stats `json:"analytics"`
	}
	decodeBody(t, rec, &body)
	assert.NotEmpty(t, body.Uptime)
	assert.Equal(t, int64(1), body.Analytics.Submitted)
}

func TestAnalyticsEndpoints_RequireAuth(t *testing.T) {
	env := newTestEnv(t, 0)

	for _, path := range []string{"/api/analytics/overall", "/api/analytics/topic/x", "/api/analytics/abc", "/api/recent-urls", "/api/topics"} {
		rec := env.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "path %s", path)
	}
}
