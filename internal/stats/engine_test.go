package stats

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"moneylens/internal/cache"
	"moneylens/internal/core"
	"moneylens/internal/query"
)

type countingSource struct {
	SliceSource
	calls atomic.Int32
}

func newCountingSource(es []core.Expense) *countingSource {
	cs := &countingSource{}
	cs.SliceSource = func(_ context.Context, q query.StatsQuery) ([]core.Expense, error) {
		cs.calls.Add(1)
		var out []core.Expense
		for _, e := range es {
			if q.Matches(e) {
				out = append(out, e)
			}
		}
		return out, nil
	}
	return cs
}

type failingSource struct {
	SliceSource
}

func (failingSource) Trend(ctx context.Context, _ query.StatsQuery) ([]core.TrendGroup, error) {
	return nil, errors.New("trend pipeline exploded")
}

func statsQuery(t *testing.T, user, from, to string) query.StatsQuery {
	t.Helper()
	q, err := query.BuildStatsQuery(user, query.Params{StartDate: from, EndDate: to})
	if err != nil {
		t.Fatalf("BuildStatsQuery: %v", err)
	}
	return q
}

func TestEngineComputeScenario(t *testing.T) {
	es := []core.Expense{
		exp(1000, d(2024, 1, 1), core.CategoryDining, core.PaymentCash),
		exp(2000, d(2024, 1, 3), core.CategoryDining, core.PaymentCreditCard),
		{UserID: "u2", Amount: core.Money{Cents: 99900}, Date: d(2024, 1, 2), Category: core.CategoryDining, PaymentMethod: core.PaymentCash},
		exp(5000, d(2024, 1, 9), core.CategoryDining, core.PaymentCash),
	}
	eng := NewEngine(newCountingSource(es))

	st, err := eng.Compute(context.Background(), statsQuery(t, "u1", "2024-01-01", "2024-01-03"))
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if st.TotalSpending.Cents != 3000 || st.AvgDailySpend.Cents != 1000 || st.ExpenseCount != 2 {
		t.Fatalf("unexpected stats %+v", st)
	}
	if len(st.CategoryBreakdown) != 1 || st.CategoryBreakdown[0].Count != 2 {
		t.Fatalf("unexpected breakdown %+v", st.CategoryBreakdown)
	}
	if len(st.PaymentMethodBreakdown) != 2 {
		t.Fatalf("unexpected payment breakdown %+v", st.PaymentMethodBreakdown)
	}
}

func TestEngineEmptyRange(t *testing.T) {
	eng := NewEngine(newCountingSource(nil))
	st, err := eng.Compute(context.Background(), statsQuery(t, "u1", "", ""))
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if st.TotalSpending.Cents != 0 || st.AvgDailySpend.Cents != 0 || st.ExpenseCount != 0 {
		t.Fatalf("expected zeros, got %+v", st)
	}
	if st.CategoryBreakdown == nil || st.MonthlyTrend == nil || st.PaymentMethodBreakdown == nil {
		t.Fatalf("slices must be non-nil for JSON arrays")
	}
}

func TestEngineFailureReturnsNoPartialResult(t *testing.T) {
	src := failingSource{SliceSource: func(context.Context, query.StatsQuery) ([]core.Expense, error) {
		return []core.Expense{exp(100, d(2024, 1, 1), core.CategoryOther, core.PaymentCash)}, nil
	}}
	eng := NewEngine(src)
	st, err := eng.Compute(context.Background(), statsQuery(t, "u1", "", ""))
	if err == nil {
		t.Fatalf("expected error")
	}
	if st.ExpenseCount != 0 || st.CategoryBreakdown != nil {
		t.Fatalf("partial result leaked: %+v", st)
	}
}

func TestEngineRequiresOwner(t *testing.T) {
	eng := NewEngine(newCountingSource(nil))
	if _, err := eng.Compute(context.Background(), query.StatsQuery{}); !errors.Is(err, query.ErrNoOwner) {
		t.Fatalf("expected ErrNoOwner, got %v", err)
	}
}

func TestEngineCacheIsIdempotentAndInvalidated(t *testing.T) {
	es := []core.Expense{exp(1000, d(2024, 1, 1), core.CategoryDining, core.PaymentCash)}
	src := newCountingSource(es)
	eng := NewEngine(src, WithCache(cache.NewLRUCache[core.Stats](16, time.Minute)))
	q := statsQuery(t, "u1", "", "")

	first, err := eng.Compute(context.Background(), q)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	calls := src.calls.Load()

	second, err := eng.Compute(context.Background(), q)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if src.calls.Load() != calls {
		t.Fatalf("second call should be served from cache")
	}
	if first.TotalSpending != second.TotalSpending || first.ExpenseCount != second.ExpenseCount {
		t.Fatalf("repeated reads differ: %+v vs %+v", first, second)
	}

	eng.Invalidate("u1")
	if _, err := eng.Compute(context.Background(), q); err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if src.calls.Load() == calls {
		t.Fatalf("invalidation should force a recompute")
	}
}

func TestEngineDoesNotCacheResultRacingAWrite(t *testing.T) {
	var (
		mu       sync.Mutex
		es       = []core.Expense{exp(1000, d(2024, 1, 1), core.CategoryDining, core.PaymentCash)}
		blocking atomic.Bool
		entered  = make(chan struct{})
		once     sync.Once
		release  = make(chan struct{})
	)
	src := SliceSource(func(_ context.Context, q query.StatsQuery) ([]core.Expense, error) {
		mu.Lock()
		var out []core.Expense
		for _, e := range es {
			if q.Matches(e) {
				out = append(out, e)
			}
		}
		mu.Unlock()
		if blocking.Load() {
			once.Do(func() { close(entered) })
			<-release
		}
		return out, nil
	})
	eng := NewEngine(src, WithCache(cache.NewLRUCache[core.Stats](16, time.Minute)))
	q := statsQuery(t, "u1", "", "")

	blocking.Store(true)
	done := make(chan core.Stats, 1)
	go func() {
		st, err := eng.Compute(context.Background(), q)
		if err != nil {
			t.Errorf("Compute: %v", err)
		}
		done <- st
	}()

	<-entered
	mu.Lock()
	es = append(es, exp(2000, d(2024, 1, 3), core.CategoryDining, core.PaymentCash))
	mu.Unlock()
	eng.Invalidate("u1")
	blocking.Store(false)
	close(release)
	<-done

	after, err := eng.Compute(context.Background(), q)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if after.ExpenseCount != 2 || after.TotalSpending.Cents != 3000 {
		t.Fatalf("stats after write = count %d total %d, want 2 / 3000", after.ExpenseCount, after.TotalSpending.Cents)
	}
}
