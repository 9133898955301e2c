package stats

import (
	"math"
	"sort"
	"time"

	"moneylens/internal/core"
)

const day = 24 * time.Hour

// Summary is the scalar part of an aggregation: total, count and the
// earliest and latest expense dates present in the set.
type Summary struct {
	Total core.Money
	Count int64
	First time.Time
	Last  time.Time
}

// Summarize folds expenses into a Summary.
func Summarize(expenses []core.Expense) Summary {
	var s Summary
	for _, e := range expenses {
		s.Observe(e.Date, e.Amount)
	}
	return s
}

// Observe adds one expense to the summary.
func (s *Summary) Observe(date time.Time, amount core.Money) {
	s.Total = s.Total.Add(amount)
	s.Count++
	if s.First.IsZero() || date.Before(s.First) {
		s.First = date
	}
	if s.Last.IsZero() || date.After(s.Last) {
		s.Last = date
	}
}

// DaySpan is the number of UTC calendar days from the first to the last
// expense, inclusive, or 0 for an empty summary. Both ends are truncated to
// midnight, so expenses on one day always span 1.
func (s Summary) DaySpan() int64 {
	if s.Count == 0 {
		return 0
	}
	first := s.First.UTC().Truncate(day)
	last := s.Last.UTC().Truncate(day)
	return int64(last.Sub(first)/day) + 1
}

// AvgDaily divides the total by the day span, rounding half-up to the cent.
func (s Summary) AvgDaily() core.Money {
	span := s.DaySpan()
	if span == 0 {
		return core.Money{}
	}
	return core.Money{Cents: (s.Total.Cents*2 + span) / (2 * span)}
}

// TrendKey returns the (calendar year, calendar month, ISO week) bucket of t
// in UTC.
func TrendKey(t time.Time) (year, month, week int) {
	t = t.UTC()
	_, week = t.ISOWeek()
	return t.Year(), int(t.Month()), week
}

// ByCategory groups expenses per category ordered by descending total.
func ByCategory(expenses []core.Expense) []core.CategoryTotal {
	idx := map[core.Category]int{}
	out := []core.CategoryTotal{}
	for _, e := range expenses {
		i, ok := idx[e.Category]
		if !ok {
			i = len(out)
			idx[e.Category] = i
			out = append(out, core.CategoryTotal{Category: e.Category})
		}
		out[i].Total = out[i].Total.Add(e.Amount)
		out[i].Count++
	}
	SortCategories(out)
	return out
}

// ByPaymentMethod groups expenses per payment method ordered by descending
// total.
func ByPaymentMethod(expenses []core.Expense) []core.PaymentMethodTotal {
	idx := map[core.PaymentMethod]int{}
	out := []core.PaymentMethodTotal{}
	for _, e := range expenses {
		i, ok := idx[e.PaymentMethod]
		if !ok {
			i = len(out)
			idx[e.PaymentMethod] = i
			out = append(out, core.PaymentMethodTotal{PaymentMethod: e.PaymentMethod})
		}
		out[i].Total = out[i].Total.Add(e.Amount)
		out[i].Count++
	}
	SortPaymentMethods(out)
	return out
}

// TrendBuilder accumulates trend groups one observation at a time, for
// stores that stream rows rather than holding a slice.
type TrendBuilder struct {
	idx    map[[3]int]int
	groups []core.TrendGroup
}

func NewTrendBuilder() *TrendBuilder {
	return &TrendBuilder{idx: map[[3]int]int{}, groups: []core.TrendGroup{}}
}

func (b *TrendBuilder) Observe(date time.Time, amount core.Money) {
	y, m, w := TrendKey(date)
	key := [3]int{y, m, w}
	i, ok := b.idx[key]
	if !ok {
		i = len(b.groups)
		b.idx[key] = i
		b.groups = append(b.groups, core.TrendGroup{Year: y, Month: m, Week: w})
	}
	b.groups[i].Total = b.groups[i].Total.Add(amount)
	b.groups[i].Count++
}

// Groups returns the accumulated groups in ascending key order.
func (b *TrendBuilder) Groups() []core.TrendGroup {
	SortTrend(b.groups)
	return b.groups
}

// WeeklyTrend buckets expenses by TrendKey.
func WeeklyTrend(expenses []core.Expense) []core.TrendGroup {
	b := NewTrendBuilder()
	for _, e := range expenses {
		b.Observe(e.Date, e.Amount)
	}
	return b.Groups()
}

// TrendChange is the percent change from the second-to-last trend group to
// the last one. It is 0 with fewer than two groups or a zero baseline.
func TrendChange(groups []core.TrendGroup) float64 {
	if len(groups) < 2 {
		return 0
	}
	prev := groups[len(groups)-2].Total.Cents
	last := groups[len(groups)-1].Total.Cents
	if prev == 0 {
		return 0
	}
	pct := float64(last-prev) / float64(prev) * 100
	return math.Round(pct*100) / 100
}

func SortCategories(rows []core.CategoryTotal) {
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Total.Cents > rows[j].Total.Cents })
}

func SortPaymentMethods(rows []core.PaymentMethodTotal) {
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Total.Cents > rows[j].Total.Cents })
}

func SortTrend(groups []core.TrendGroup) {
	sort.Slice(groups, func(i, j int) bool {
		a, b := groups[i], groups[j]
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		if a.Month != b.Month {
			return a.Month < b.Month
		}
		return a.Week < b.Week
	})
}
