// Package http serves the MoneyLens JSON API.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"moneylens/internal/auth"
	applog "moneylens/internal/log"
	"moneylens/internal/metrics"
	"moneylens/internal/middleware/ratelimit"
	"moneylens/internal/middleware/security"
	"moneylens/internal/middleware/trace"
	"moneylens/internal/services"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Config struct {
	Addr               string
	FrontendURL        string
	RateLimitPerMinute int
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
}

type Deps struct {
	Expenses *services.ExpenseService
	Users    *services.UserService
	Verifier auth.Verifier
	Pinger   Pinger
	Metrics  *metrics.Metrics
	Logger   *applog.Logger
}

type Server struct {
	http.Server
	expenses *services.ExpenseService
	users    *services.UserService
	pinger   Pinger
	metrics  *metrics.Metrics
	logger   *applog.Logger
	limiter  *ratelimit.Limiter
	detector *security.Detector

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(cfg Config, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	s := &Server{
		expenses: deps.Expenses,
		users:    deps.Users,
		pinger:   deps.Pinger,
		metrics:  deps.Metrics,
		logger:   logger,
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute}),
		detector: security.NewDetector(),
	}

	mux := http.NewServeMux()
	limited := s.limiter.Middleware(s.detector.ExtractClientIP, s.onRateLimited)
	protected := func(h http.HandlerFunc) http.Handler {
		return limited(auth.Middleware(deps.Verifier, writeError)(h))
	}

	mux.HandleFunc("GET /{$}", handleHome)
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics.Handler())
	}

	mux.Handle("POST /auth/register", limited(http.HandlerFunc(s.handleRegister)))
	mux.Handle("POST /auth/login", limited(http.HandlerFunc(s.handleLogin)))
	mux.Handle("GET /users/me", protected(s.handleMe))

	mux.Handle("POST /expenses", protected(s.handleCreateExpense))
	mux.Handle("GET /expenses", protected(s.handleListExpenses))
	mux.Handle("GET /expenses/stats", protected(s.handleStats))
	mux.Handle("PUT /expenses/{id}", protected(s.handleUpdateExpense))
	mux.Handle("DELETE /expenses/{id}", protected(s.handleDeleteExpense))

	// trace must wrap the mux directly so it can read the matched pattern.
	var handler http.Handler = trace.NewMiddleware(s.detector.ExtractClientIP, s.observe).Middleware(mux)
	handler = s.detector.Middleware(handler)
	handler = security.CORS(security.DefaultCORSConfig(cfg.FrontendURL))(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = applog.Middleware(logger)(handler)

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}
	return s
}

func (s *Server) observe(method, route string, status int, elapsed time.Duration) {
	s.metrics.ObserveRequest(method, route, status, elapsed)
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.detector.ExtractClientIP(r),
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, please try again later").Write(w)
}

// Shutdown stops the limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
