package http

import (
	"net/http"

	"kakeibo/internal/core"
	"kakeibo/internal/log"
)

// All analytics endpoints take ?period= (thisMonth, lastMonth, thisYear,
// lastYear) or an explicit ?start=&end= pair. No range means thisMonth.

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request, userID string) {
	rng, ok := s.rangeParam(w, r)
	if !ok {
		return
	}
	sum, err := s.svc.Analytics.Summary(r.Context(), userID, rng)
	if err != nil {
		writeServiceError(w, r, log.OpAggregate, err)
		return
	}
	NewJSONResponse().Body(toSummary(sum)).Write(w)
}

func (s *Server) handleMonthly(w http.ResponseWriter, r *http.Request, userID string) {
	rng, ok := s.rangeParam(w, r)
	if !ok {
		return
	}
	series, err := s.svc.Analytics.Monthly(r.Context(), userID, rng)
	if err != nil {
		writeServiceError(w, r, log.OpAggregate, err)
		return
	}
	NewJSONResponse().Body(map[string]any{
		"range":  toRange(rng),
		"months": toMonths(series),
	}).Write(w)
}

// handleTrend returns the trailing months ending with the current one.
func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request, userID string) {
	series, err := s.svc.Analytics.Trend(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, log.OpAggregate, err)
		return
	}
	NewJSONResponse().Body(map[string]any{"months": toMonths(series)}).Write(w)
}

// handleCategoryBreakdown defaults to expenses when ?type= is absent.
func (s *Server) handleCategoryBreakdown(w http.ResponseWriter, r *http.Request, userID string) {
	rng, ok := s.rangeParam(w, r)
	if !ok {
		return
	}
	typ, err := ParseTypeParam(r.URL.Query())
	if err != nil {
		writeServiceError(w, r, log.OpAggregate, err)
		return
	}
	if typ == "" {
		typ = core.Expense
	}
	shares, err := s.svc.Analytics.Categories(r.Context(), userID, rng, typ)
	if err != nil {
		writeServiceError(w, r, log.OpAggregate, err)
		return
	}
	NewJSONResponse().Body(map[string]any{
		"range":      toRange(rng),
		"type":       typ.String(),
		"categories": toShares(shares),
	}).Write(w)
}

func (s *Server) handleComparison(w http.ResponseWriter, r *http.Request, userID string) {
	rng, ok := s.rangeParam(w, r)
	if !ok {
		return
	}
	cmp, err := s.svc.Analytics.Comparison(r.Context(), userID, rng)
	if err != nil {
		writeServiceError(w, r, log.OpAggregate, err)
		return
	}
	NewJSONResponse().Body(toComparison(rng, cmp)).Write(w)
}

func (s *Server) rangeParam(w http.ResponseWriter, r *http.Request) (core.DateRange, bool) {
	rng, err := ParseRange(r.URL.Query(), s.cfg.Now())
	if err != nil {
		writeServiceError(w, r, log.OpAggregate, err)
		return core.DateRange{}, false
	}
	return rng, true
}
