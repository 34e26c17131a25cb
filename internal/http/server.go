package http

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"kakeibo/internal/log"
	"kakeibo/internal/services"
)

// Pinger reports whether the data backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services are the application services the API exposes.
type Services struct {
	Seeder     *services.Seeder
	Categories *services.CategoryService
	Analytics  *services.AnalyticsService
	Ledger     *services.LedgerService
	Store      Pinger
}

type Config struct {
	Addr       string
	RateLimit  int
	RateWindow time.Duration

	// BootstrapTimeout bounds a detached seeding run. Zero means 30s.
	BootstrapTimeout time.Duration
	Now              func() time.Time
}

type appMetrics struct {
	totalRequests      int64
	transactionsLogged int64
	bootstraps         int64
	uptime             time.Time
}

type Server struct {
	http.Server
	svc             Services
	cfg             Config
	logger          *log.Logger
	structured      *log.StructuredLogger
	limiter         *limiter
	securityMetrics *securityMetrics
	appMetrics      *appMetrics
	shutdownOnce    sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(cfg Config, svc Services, logger *log.Logger) *Server {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.BootstrapTimeout <= 0 {
		cfg.BootstrapTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	mux := http.NewServeMux()
	s := &Server{
		svc:             svc,
		cfg:             cfg,
		logger:          logger,
		structured:      log.NewStructuredLogger(logger),
		limiter:         newLimiter(cfg.RateLimit, cfg.RateWindow),
		securityMetrics: &securityMetrics{},
		appMetrics:      &appMetrics{uptime: time.Now()},
	}
	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           log.Middleware(logger)(s.withMiddleware(mux)),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("POST /api/profiles", s.withUser(s.handleCreateProfile))
	mux.HandleFunc("POST /api/bootstrap", s.withUser(s.handleBootstrap))

	mux.HandleFunc("GET /api/categories", s.withUser(s.handleListCategories))
	mux.HandleFunc("POST /api/categories", s.withUser(s.handleCreateCategory))
	mux.HandleFunc("DELETE /api/categories/{id}", s.withUser(s.handleDeleteCategory))
	mux.HandleFunc("GET /api/categories/{id}/subcategories", s.withUser(s.handleListSubcategories))
	mux.HandleFunc("GET /api/subcategories", s.withUser(s.handleListAllSubcategories))

	mux.HandleFunc("GET /api/transactions", s.withUser(s.handleListTransactions))
	mux.HandleFunc("POST /api/transactions", s.withUser(s.handleCreateTransaction))

	mux.HandleFunc("GET /api/analytics/summary", s.withUser(s.handleSummary))
	mux.HandleFunc("GET /api/analytics/monthly", s.withUser(s.handleMonthly))
	mux.HandleFunc("GET /api/analytics/trend", s.withUser(s.handleTrend))
	mux.HandleFunc("GET /api/analytics/categories", s.withUser(s.handleCategoryBreakdown))
	mux.HandleFunc("GET /api/analytics/comparison", s.withUser(s.handleComparison))

	return s
}

// SecurityStats returns a snapshot of the security counters.
func (s *Server) SecurityStats() SecurityStats {
	return s.securityMetrics.snapshot()
}

// Shutdown stops the rate limiter janitor and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Close()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// withMiddleware adds request ids, security headers, rate limiting of POST
// requests and request logging around next.
func (s *Server) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		atomic.AddInt64(&s.appMetrics.totalRequests, 1)
		clientIP := extractClientIP(r)

		reqID := requestID(r)
		ctx := log.WithRequestID(r.Context(), reqID)
		r = r.WithContext(ctx)
		w.Header().Set("X-Request-ID", reqID)

		if reason := suspicionReason(r); reason != "" {
			s.securityMetrics.suspicious.Add(1)
			s.logger.WithComponent(log.ComponentSecurity).WarnContext(ctx, "Suspicious request detected",
				"reason", reason,
				log.FieldClientIP, clientIP,
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path,
				log.FieldUserAgent, r.Header.Get("User-Agent"))
		}

		setSecurityHeaders(w, r)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		if r.Method == http.MethodPost && !s.limiter.Allow(clientIP) {
			s.securityMetrics.rateLimited.Add(1)
			s.logger.WithComponent(log.ComponentRateLimit).WarnContext(ctx, "Rate limit exceeded",
				log.FieldClientIP, clientIP,
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path)
			rw.Header().Set("Retry-After", strconv.Itoa(s.limiter.RetryAfter()))
			WriteError(rw, r, http.StatusTooManyRequests, "rate limit exceeded, please try again later")
		} else {
			next.ServeHTTP(rw, r)
		}

		s.structured.LogHTTPEnd(ctx, r, rw.statusCode, time.Since(start).Milliseconds(), clientIP)
	})
}

func setSecurityHeaders(w http.ResponseWriter, r *http.Request) {
	h := w.Header()
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("X-Frame-Options", "DENY")
	h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
	h.Set("Referrer-Policy", "no-referrer")
	h.Set("Cross-Origin-Resource-Policy", "same-origin")
	h.Set("Cache-Control", "no-store")
	if r.TLS != nil {
		h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
	}
}

// withUser rejects requests without a usable user id header.
func (s *Server) withUser(next func(http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := userID(r)
		if id == "" {
			s.securityMetrics.missingUserIDs.Add(1)
			WriteError(w, r, http.StatusUnauthorized, fmt.Sprintf("missing or invalid %s header", UserIDHeader))
			return
		}
		next(w, r, id)
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.wroteHeader = true
	}
	return rw.ResponseWriter.Write(b)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
