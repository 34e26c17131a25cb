package services

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"kakeibo/internal/cache"
	"kakeibo/internal/core"
	"kakeibo/internal/log"
	"kakeibo/internal/ports"
)

// TrendMonths is the length of the trailing monthly trend.
const TrendMonths = 6

// Summary is the headline view of one range.
type Summary struct {
	Range  core.DateRange
	Totals core.PeriodTotals
	Count  int
}

type AnalyticsConfig struct {
	// CacheTTL of zero disables caching.
	CacheTTL  time.Duration
	CacheSize int
	Now       func() time.Time
}

// AnalyticsService loads transactions and runs the aggregation functions on
// them. Cached results are shared between callers and must not be modified.
type AnalyticsService struct {
	txs    ports.TransactionLister
	cache  cache.Cache[any]
	now    func() time.Time
	logger *log.Logger
}

func NewAnalyticsService(txs ports.TransactionLister, cfg AnalyticsConfig, logger *log.Logger) *AnalyticsService {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	s := &AnalyticsService{txs: txs, now: cfg.Now, logger: logger.WithComponent(log.ComponentAnalytics)}
	if cfg.CacheTTL > 0 {
		size := cfg.CacheSize
		if size <= 0 {
			size = 256
		}
		s.cache = cache.NewLRUCache[any](size, cfg.CacheTTL)
	}
	return s
}

// Cache exposes the result cache for registration with a cache.Manager.
// It is nil when caching is disabled.
func (s *AnalyticsService) Cache() cache.Cache[any] {
	return s.cache
}

// Invalidate drops every cached result for userID.
func (s *AnalyticsService) Invalidate(userID string) {
	if s.cache == nil {
		return
	}
	if n := s.cache.DeletePrefix(userID + "|"); n > 0 {
		s.logger.Debug("Invalidated cached analytics", log.FieldUserID, userID, log.FieldCount, n)
	}
}

func (s *AnalyticsService) Summary(ctx context.Context, userID string, r core.DateRange) (Summary, error) {
	return cached(s, key(userID, "summary", r, ""), func() (Summary, error) {
		txs, err := s.load(ctx, userID, r)
		if err != nil {
			return Summary{}, err
		}
		return Summary{Range: r, Totals: core.Totals(txs), Count: len(txs)}, nil
	})
}

// Monthly returns one zero-filled entry per calendar month of r.
func (s *AnalyticsService) Monthly(ctx context.Context, userID string, r core.DateRange) ([]core.MonthSummary, error) {
	return cached(s, key(userID, "monthly", r, ""), func() ([]core.MonthSummary, error) {
		txs, err := s.load(ctx, userID, r)
		if err != nil {
			return nil, err
		}
		return core.MonthlySeries(txs, r), nil
	})
}

// Trend returns the monthly series of the TrendMonths months ending with the
// current month.
func (s *AnalyticsService) Trend(ctx context.Context, userID string) ([]core.MonthSummary, error) {
	months := core.TrailingMonths(core.DateOf(s.now()).YearMonth(), TrendMonths)
	r := core.DateRange{Start: months[0].FirstDay(), End: months[len(months)-1].LastDay()}
	return s.Monthly(ctx, userID, r)
}

// Categories returns the breakdown by category of transactions of type typ.
func (s *AnalyticsService) Categories(ctx context.Context, userID string, r core.DateRange, typ core.TransactionType) ([]core.CategoryShare, error) {
	if !typ.Valid() {
		return nil, core.ErrInvalidType
	}
	return cached(s, key(userID, "categories", r, typ.String()), func() ([]core.CategoryShare, error) {
		txs, err := s.load(ctx, userID, r)
		if err != nil {
			return nil, err
		}
		return core.CategoryBreakdown(txs, typ), nil
	})
}

// Comparison compares r with the same window one year earlier. Both windows
// are loaded concurrently.
func (s *AnalyticsService) Comparison(ctx context.Context, userID string, r core.DateRange) (core.Comparison, error) {
	return cached(s, key(userID, "comparison", r, ""), func() (core.Comparison, error) {
		var current, previous []core.Transaction
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			current, err = s.load(gctx, userID, r)
			return err
		})
		g.Go(func() error {
			var err error
			previous, err = s.load(gctx, userID, core.ComparisonWindow(r))
			return err
		})
		if err := g.Wait(); err != nil {
			return core.Comparison{}, err
		}
		return core.Compare(current, previous), nil
	})
}

// Report loads r once and builds every aggregate for export. It bypasses the cache.
func (s *AnalyticsService) Report(ctx context.Context, userID string, r core.DateRange) (core.Report, error) {
	txs, err := s.load(ctx, userID, r)
	if err != nil {
		return core.Report{}, err
	}
	return core.BuildReport(txs, r), nil
}

func (s *AnalyticsService) load(ctx context.Context, userID string, r core.DateRange) ([]core.Transaction, error) {
	if userID == "" {
		return nil, core.ErrEmptyUser
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	txs, err := s.txs.ListTransactions(ctx, userID, r, ports.TransactionFilter{})
	if err != nil {
		return nil, fmt.Errorf("list transactions %s: %w", r, err)
	}
	s.logger.DebugContext(ctx, "Loaded transactions",
		log.FieldOperation, log.OpAggregate,
		log.FieldUserID, userID,
		log.FieldRange, r.String(),
		log.FieldCount, len(txs))
	return txs, nil
}

func key(userID, kind string, r core.DateRange, extra string) string {
	return userID + "|" + kind + "|" + r.String() + "|" + extra
}

func cached[T any](s *AnalyticsService, k string, compute func() (T, error)) (T, error) {
	if s.cache != nil {
		if v, ok := s.cache.Get(k); ok {
			if t, ok := v.(T); ok {
				return t, nil
			}
		}
	}
	v, err := compute()
	if err != nil {
		return v, err
	}
	if s.cache != nil {
		s.cache.Set(k, v)
	}
	return v, nil
}
