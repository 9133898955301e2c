// Package stats computes the dashboard analytics for one user's expenses.
//
// The Engine fans the independent read queries of an aggregation out to the
// store concurrently and assembles the result only when all of them succeed.
// A failure in any query cancels the others and no partial Stats is
// returned.
package stats

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"moneylens/internal/cache"
	"moneylens/internal/core"
	"moneylens/internal/metrics"
	"moneylens/internal/query"
)

// Source is the read side a store must provide for aggregation. Every method
// must restrict itself to q.UserID and q.Range.
type Source interface {
	Summary(ctx context.Context, q query.StatsQuery) (Summary, error)
	CategoryBreakdown(ctx context.Context, q query.StatsQuery) ([]core.CategoryTotal, error)
	Trend(ctx context.Context, q query.StatsQuery) ([]core.TrendGroup, error)
	PaymentMethodBreakdown(ctx context.Context, q query.StatsQuery) ([]core.PaymentMethodTotal, error)
}

type Engine struct {
	source  Source
	cache   cache.Cache[core.Stats]
	metrics *metrics.Metrics
	logger  *slog.Logger

	// generations counts invalidations per user. A result is cached only if
	// no invalidation happened while it was computed.
	mu          sync.Mutex
	generations map[string]uint64
}

type Option func(*Engine)

// WithCache memoises results per query. Writes must call Invalidate.
func WithCache(c cache.Cache[core.Stats]) Option {
	return func(e *Engine) { e.cache = c }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func NewEngine(source Source, opts ...Option) *Engine {
	e := &Engine{source: source, logger: slog.Default(), generations: make(map[string]uint64)}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Compute returns the analytics for q.
func (e *Engine) Compute(ctx context.Context, q query.StatsQuery) (core.Stats, error) {
	if q.UserID == "" {
		return core.Stats{}, query.ErrNoOwner
	}

	key := q.CacheKey()
	if e.cache != nil {
		if st, ok := e.cache.Get(key); ok {
			e.metrics.StatsCacheHit()
			return st, nil
		}
		e.metrics.StatsCacheMiss()
	}

	gen := e.generation(q.UserID)
	start := time.Now()
	var (
		summary  Summary
		byCat    []core.CategoryTotal
		trend    []core.TrendGroup
		byMethod []core.PaymentMethodTotal
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if summary, err = e.source.Summary(gctx, q); err != nil {
			return fmt.Errorf("summary: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if byCat, err = e.source.CategoryBreakdown(gctx, q); err != nil {
			return fmt.Errorf("category breakdown: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if trend, err = e.source.Trend(gctx, q); err != nil {
			return fmt.Errorf("trend: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if byMethod, err = e.source.PaymentMethodBreakdown(gctx, q); err != nil {
			return fmt.Errorf("payment method breakdown: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		e.logger.ErrorContext(ctx, "Aggregation failed", "user_id", q.UserID, "error", err)
		return core.Stats{}, fmt.Errorf("compute stats: %w", err)
	}
	e.metrics.ObserveStats(time.Since(start))

	st := Assemble(summary, byCat, trend, byMethod)
	if e.cache != nil {
		e.mu.Lock()
		if e.generations[q.UserID] == gen {
			e.cache.Set(key, st)
		}
		e.mu.Unlock()
	}
	return st, nil
}

func (e *Engine) generation(userID string) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.generations[userID]
}

// Invalidate drops every cached result for userID.
func (e *Engine) Invalidate(userID string) {
	if e.cache == nil || userID == "" {
		return
	}
	e.mu.Lock()
	e.generations[userID]++
	e.mu.Unlock()
	if n := e.cache.DeletePrefix(query.OwnerPrefix(userID)); n > 0 {
		e.logger.Debug("Stats cache invalidated", "user_id", userID, "entries", n)
	}
}

// Assemble builds the response document from the query results. Nil slices
// become empty so the JSON always carries arrays.
func Assemble(s Summary, byCat []core.CategoryTotal, trend []core.TrendGroup, byMethod []core.PaymentMethodTotal) core.Stats {
	if byCat == nil {
		byCat = []core.CategoryTotal{}
	}
	if trend == nil {
		trend = []core.TrendGroup{}
	}
	if byMethod == nil {
		byMethod = []core.PaymentMethodTotal{}
	}
	return core.Stats{
		TotalSpending:          s.Total,
		AvgDailySpend:          s.AvgDaily(),
		CategoryBreakdown:      byCat,
		MonthlyTrend:           trend,
		ExpenseCount:           s.Count,
		TrendChange:            TrendChange(trend),
		PaymentMethodBreakdown: byMethod,
	}
}

// SliceSource aggregates an in-memory slice. It backs the memory store and
// serves as a reference for the database adapters.
type SliceSource func(ctx context.Context, q query.StatsQuery) ([]core.Expense, error)

func (f SliceSource) Summary(ctx context.Context, q query.StatsQuery) (Summary, error) {
	es, err := f(ctx, q)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(es), nil
}

func (f SliceSource) CategoryBreakdown(ctx context.Context, q query.StatsQuery) ([]core.CategoryTotal, error) {
	es, err := f(ctx, q)
	if err != nil {
		return nil, err
	}
	return ByCategory(es), nil
}

func (f SliceSource) Trend(ctx context.Context, q query.StatsQuery) ([]core.TrendGroup, error) {
	es, err := f(ctx, q)
	if err != nil {
		return nil, err
	}
	return WeeklyTrend(es), nil
}

func (f SliceSource) PaymentMethodBreakdown(ctx context.Context, q query.StatsQuery) ([]core.PaymentMethodTotal, error) {
	es, err := f(ctx, q)
	if err != nil {
		return nil, err
	}
	return ByPaymentMethod(es), nil
}
