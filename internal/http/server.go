// Package http exposes the ledger engine as a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"simplemoney/internal/cache"
	"simplemoney/internal/log"
	"simplemoney/internal/middleware/ratelimit"
	"simplemoney/internal/middleware/security"
	"simplemoney/internal/middleware/trace"
	"simplemoney/internal/requestctx"
	"simplemoney/internal/services"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Options tune the server; zero values fall back to defaults.
type Options struct {
	RateLimitPerMinute int
	// CacheTTL bounds how stale a dashboard may be; 0 disables caching.
	CacheTTL       time.Duration
	TrustedProxies []string
}

type Server struct {
	http.Server

	ledger    *services.LedgerService
	logger    *log.Logger
	limiter   *ratelimit.Limiter
	clientIP  *security.ClientIP
	tracer    *trace.Middleware
	dashboard *cache.Loader[services.Dashboard]
	caches    *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, ledger *services.LedgerService, opts Options) *Server {
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		ledger:   ledger,
		logger:   log.ForComponent(log.ComponentHTTP),
		clientIP: security.NewClientIP(),
		caches:   cache.NewManager(),
	}
	for _, cidr := range opts.TrustedProxies {
		if err := s.clientIP.AddTrustedProxy(cidr); err != nil {
			s.logger.Warn("Ignoring trusted proxy", log.FieldError, err)
		}
	}

	rl := ratelimit.DefaultConfig()
	if opts.RateLimitPerMinute > 0 {
		rl.RequestsPerMinute = opts.RateLimitPerMinute
	}
	s.limiter = ratelimit.NewLimiter(rl)
	s.tracer = trace.NewMiddleware(s.clientIP.Extract)

	if opts.CacheTTL > 0 {
		lru := cache.NewLRUCache[services.Dashboard](1000, opts.CacheTTL)
		s.dashboard = cache.NewLoader[services.Dashboard](lru)
		s.caches.Register(lru)
		s.caches.StartCleanup(opts.CacheTTL * 10)
	}

	s.Handler = s.routes()
	return s
}

func (s *Server) routes() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("POST /api/transactions", s.handleAddTransaction)
	api.HandleFunc("GET /api/transactions", s.handleListTransactions)
	api.HandleFunc("PATCH /api/transactions/{id}", s.handleUpdateTransaction)
	api.HandleFunc("DELETE /api/transactions/{id}", s.handleRemoveTransaction)
	api.HandleFunc("GET /api/categories", s.handleCategories)

	api.HandleFunc("POST /api/goals", s.handleCreateGoal)
	api.HandleFunc("GET /api/goals", s.handleListGoals)
	api.HandleFunc("PATCH /api/goals/{id}", s.handleUpdateGoal)
	api.HandleFunc("DELETE /api/goals/{id}", s.handleRemoveGoal)
	api.HandleFunc("POST /api/goals/{id}/fund", s.handleFundGoal)

	api.HandleFunc("GET /api/challenges/catalog", s.handleCatalog)
	api.HandleFunc("GET /api/challenges", s.handleListChallenges)
	api.HandleFunc("POST /api/challenges", s.handleAcceptChallenge)
	api.HandleFunc("POST /api/challenges/{id}/abandon", s.handleAbandonChallenge)

	api.HandleFunc("POST /api/balance/topup", s.handleTopUp)
	api.HandleFunc("GET /api/profile", s.handleProfile)
	api.HandleFunc("GET /api/dashboard", s.handleDashboard)

	root := http.NewServeMux()
	root.HandleFunc("GET /healthz", s.handleHealth)
	root.HandleFunc("GET /readyz", s.handleReady)
	root.Handle("/api/", requestctx.Middleware(func(w http.ResponseWriter, r *http.Request) {
		BadRequestError("missing or invalid " + requestctx.HeaderUserID + " header").Write(w)
	})(log.Middleware(map[string]func(*http.Request) string{log.FieldUserID: userID})(api)))

	var h http.Handler = root
	h = otelhttp.NewHandler(h, "simplemoney.http")
	h = s.tracer.Middleware(h)
	h = s.limiter.Middleware(s.clientIP.Extract, func(w http.ResponseWriter, r *http.Request) {
		s.logger.WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, s.clientIP.Extract(r), log.FieldPath, r.URL.Path)
		TooManyRequestsError().Write(w)
	})(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	return h
}

// userID is set by requestctx.Middleware for every /api route.
func userID(r *http.Request) string {
	id, _ := requestctx.UserID(r.Context())
	return id
}

// invalidate drops the user's cached dashboard after a mutation.
func (s *Server) invalidate(userID string) {
	if s.dashboard != nil {
		s.dashboard.Invalidate(userID)
	}
}

// Shutdown stops background routines and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.stopBackground()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) stopBackground() {
	s.caches.Stop()
	s.limiter.Stop()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]string{"status": "ok"}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.ledger.Ping(ctx); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
		FromError(err).Write(w)
		return
	}
	NewJSONResponse().Body(map[string]string{"status": "ready"}).Write(w)
}
