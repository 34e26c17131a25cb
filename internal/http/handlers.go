package http

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"kakeibo/internal/log"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).Round(time.Second).String(),
	}).Write(w)
}

// handleReady checks that the data backend answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	code := http.StatusOK
	checks := make(map[string]any)

	switch {
	case s.svc.Store == nil:
		checks["store"] = "not_configured"
		status, code = "not_ready", http.StatusServiceUnavailable
	default:
		if err := s.svc.Store.Ping(ctx); err != nil {
			s.logger.WarnContext(ctx, "Readiness check failed",
				log.FieldError, err.Error(),
				log.FieldErrorType, log.ErrorTypeDatabase)
			checks["store"] = "failed"
			status, code = "not_ready", http.StatusServiceUnavailable
		} else {
			checks["store"] = "ok"
		}
	}

	if c := s.analyticsCacheSize(); c >= 0 {
		checks["cache"] = map[string]any{"entries": c, "status": "ok"}
	}

	NewJSONResponse().Status(code).Body(map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

func (s *Server) analyticsCacheSize() int {
	if s.svc.Analytics == nil || s.svc.Analytics.Cache() == nil {
		return -1
	}
	return s.svc.Analytics.Cache().Size()
}

type metric struct {
	name, kind, help string
	value            any
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	sec := s.securityMetrics.snapshot()
	activeClients := s.limiter.Clients()

	metrics := []metric{
		{"http_requests_total", "counter", "Total number of HTTP requests", atomic.LoadInt64(&s.appMetrics.totalRequests)},
		{"transactions_recorded_total", "counter", "Total number of transactions recorded", atomic.LoadInt64(&s.appMetrics.transactionsLogged)},
		{"bootstraps_total", "counter", "Total number of bootstrap requests", atomic.LoadInt64(&s.appMetrics.bootstraps)},
		{"rate_limit_hits_total", "counter", "Total rate limit hits", sec.RateLimitHits},
		{"suspicious_requests_total", "counter", "Total suspicious requests detected", sec.SuspiciousRequests},
		{"missing_user_id_total", "counter", "Total requests rejected for a missing user id", sec.MissingUserIDs},
		{"active_rate_limit_clients", "gauge", "Currently tracked rate limit clients", activeClients},
		{"uptime_seconds", "gauge", "Application uptime in seconds", int64(time.Since(s.appMetrics.uptime).Seconds())},
	}
	if s.svc.Analytics != nil && s.svc.Analytics.Cache() != nil {
		c := s.svc.Analytics.Cache()
		st := c.Stats()
		metrics = append(metrics,
			metric{"analytics_cache_entries", "gauge", "Current analytics cache entries", c.Size()},
			metric{"analytics_cache_hits_total", "counter", "Analytics cache hits", st.Hits},
			metric{"analytics_cache_misses_total", "counter", "Analytics cache misses", st.Misses},
			metric{"analytics_cache_evictions_total", "counter", "Analytics entries evicted by size", st.Evictions},
		)
	}

	w.WriteHeader(http.StatusOK)
	for _, m := range metrics {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %v\n\n", m.name, m.help, m.name, m.kind, m.name, m.value)
	}
}

func (s *Server) handleCreateProfile(w http.ResponseWriter, r *http.Request, userID string) {
	p, err := s.svc.Ledger.CreateProfile(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, log.OpCreate, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(toProfile(p)).Write(w)
}

// handleBootstrap seeds the default taxonomy. Seeding is best-effort, so the
// response is always 202 and carries what each step did. The run is detached
// from the request so a client disconnect cannot stop it halfway.
func (s *Server) handleBootstrap(w http.ResponseWriter, r *http.Request, userID string) {
	atomic.AddInt64(&s.appMetrics.bootstraps, 1)
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), s.cfg.BootstrapTimeout)
	defer cancel()

	res := s.svc.Seeder.Bootstrap(ctx, userID)
	NewJSONResponse().Status(http.StatusAccepted).Body(res).Write(w)
}
