// Package http wires the HTTP surface: the public shorten and redirect
// endpoints, the authenticated analytics and listing endpoints, the OAuth
// flow, and the operational probes.
package http

import (
	"Linklytics-Backend/internal/analytics"
	"Linklytics-Backend/internal/auth"
	"Linklytics-Backend/internal/cache"
	"Linklytics-Backend/internal/config"
	"Linklytics-Backend/internal/ratelimit"
	"Linklytics-Backend/internal/repository"
	"Linklytics-Backend/internal/service"
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ClickSink receives click events from the redirect path.
type ClickSink interface {
	Submit(ev analytics.ClickEvent)
	Stats() analytics.Stats
}

// Handler bundles the HTTP endpoints and their dependencies.
type Handler struct {
	shortener *service.ShortenerService
	analytics *service.AnalyticsService
	authH     *auth.Handler
	authMW    *auth.Middleware
	limiter   *ratelimit.Limiter // nil disables rate limiting
	storage   repository.Storage
	cache     cache.Cache
	clicks    ClickSink
	baseURL   string
	startedAt time.Time
	log       *zap.Logger
}

// NewHandler creates the HTTP handler set.
func NewHandler(
	shortener *service.ShortenerService,
	analyticsService *service.AnalyticsService,
	authH *auth.Handler,
	authMW *auth.Middleware,
	limiter *ratelimit.Limiter,
	storage repository.Storage,
	c cache.Cache,
	clicks ClickSink,
	baseURL string,
	log *zap.Logger,
) *Handler {
	return &Handler{
		shortener: shortener,
		analytics: analyticsService,
		authH:     authH,
		authMW:    authMW,
		limiter:   limiter,
		storage:   storage,
		cache:     c,
		clicks:    clicks,
		baseURL:   baseURL,
		startedAt: time.Now(),
		log:       log,
	}
}

// Routes builds the ServeMux. Method-qualified patterns dispatch exact paths
// before wildcards, so /api/analytics/overall wins over /api/analytics/{alias}.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	public := h.authMW.CORS
	private := func(next http.HandlerFunc) http.HandlerFunc {
		return h.authMW.CORS(h.authMW.RequireAuth(next))
	}
	limited := func(next http.HandlerFunc) http.HandlerFunc {
		if h.limiter == nil {
			return private(next)
		}
		return h.authMW.CORS(h.authMW.RequireAuth(h.limiter.Middleware(next)))
	}

	// Auth
	mux.HandleFunc("GET /auth/google", public(h.authH.Login))
	mux.HandleFunc("GET /auth/google/callback", public(h.authH.Callback))
	mux.HandleFunc("POST /auth/logout", public(h.authH.Logout))
	mux.HandleFunc("GET /auth/check", private(h.authH.Check))
	mux.HandleFunc("GET /auth/profile", private(h.authH.Profile))

	// Links
	mux.HandleFunc("POST /api/shorten", limited(h.Shorten))
	mux.HandleFunc("GET /api/shorten/{alias}", private(func(w http.ResponseWriter, r *http.Request) {
		h.Redirect(w, r, r.PathValue("alias"))
	}))
	mux.HandleFunc("GET /api/recent-urls", private(h.RecentURLs))
	mux.HandleFunc("GET /api/topics", private(h.Topics))

	// Analytics
	mux.HandleFunc("GET /api/analytics/overall", private(h.OverallAnalytics))
	mux.HandleFunc("GET /api/analytics/topic/{topic}", private(func(w http.ResponseWriter, r *http.Request) {
		h.TopicAnalytics(w, r, r.PathValue("topic"))
	}))
	mux.HandleFunc("GET /api/analytics/{alias}", private(func(w http.ResponseWriter, r *http.Request) {
		h.LinkAnalytics(w, r, r.PathValue("alias"))
	}))

	// Operational
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ready", h.Ready)
	mux.HandleFunc("GET /metrics", h.Metrics)

	return mux
}

// Server wraps the net/http server with lifecycle management.
type Server struct {
	httpServer *http.Server
	log        *zap.Logger
}

// NewServer creates the HTTP server for the handler set.
func NewServer(cfg *config.HTTPServer, handler *Handler, log *zap.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Address,
			Handler:      handler.Routes(),
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		log: log,
	}
}

// Start serves until the listener closes.
func (s *Server) Start() error {
	s.log.Info("http server listening", zap.String("address", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
