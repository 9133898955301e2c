package query

import (
	"errors"
	"net/url"
	"sort"
	"testing"
	"time"

	"moneylens/internal/core"
)

func TestBuildExpenseQueryDefaults(t *testing.T) {
	q, err := BuildExpenseQuery("u1", Params{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.UserID != "u1" || q.Sort != SortDate || q.Order != Desc || q.Limit != 100 || q.Skip != 0 {
		t.Fatalf("unexpected defaults: %+v", q)
	}
	if !q.Range.From.IsZero() || !q.Range.To.IsZero() {
		t.Fatalf("expected open range, got %+v", q.Range)
	}
}

func TestBuildExpenseQueryRequiresOwner(t *testing.T) {
	if _, err := BuildExpenseQuery("", Params{}); !errors.Is(err, ErrNoOwner) {
		t.Fatalf("expected ErrNoOwner, got %v", err)
	}
	if _, err := BuildStatsQuery("", Params{}); !errors.Is(err, ErrNoOwner) {
		t.Fatalf("expected ErrNoOwner, got %v", err)
	}
}

func TestBuildExpenseQuerySortAndOrder(t *testing.T) {
	cases := []struct {
		sort, order string
		wantSort    SortField
		wantOrder   Order
	}{
		{"amount", "asc", SortAmount, Asc},
		{"merchant", "ASC", SortMerchant, Asc},
		{"paymentMethod", "desc", SortPaymentMethod, Desc},
		{"password", "asc", SortDate, Asc},
		{"$where", "sideways", SortDate, Desc},
		{"", "", SortDate, Desc},
	}
	for _, tc := range cases {
		q, err := BuildExpenseQuery("u1", Params{Sort: tc.sort, Order: tc.order})
		if err != nil {
			t.Fatalf("sort=%q order=%q: %v", tc.sort, tc.order, err)
		}
		if q.Sort != tc.wantSort || q.Order != tc.wantOrder {
			t.Fatalf("sort=%q order=%q: got %s %s", tc.sort, tc.order, q.Sort, q.Order)
		}
	}
}

func TestBuildExpenseQueryPagination(t *testing.T) {
	cases := []struct {
		limit, skip string
		field       string
	}{
		{"abc", "", "limit"},
		{"-1", "", "limit"},
		{"0", "", "limit"},
		{"5000", "", "limit"},
		{"", "x", "skip"},
		{"", "-3", "skip"},
	}
	for _, tc := range cases {
		_, err := BuildExpenseQuery("u1", Params{Limit: tc.limit, Skip: tc.skip})
		verrs, ok := core.AsValidation(err)
		if !ok || len(verrs) != 1 || verrs[0].Field != tc.field {
			t.Fatalf("limit=%q skip=%q: expected %s error, got %v", tc.limit, tc.skip, tc.field, err)
		}
	}

	q, err := BuildExpenseQuery("u1", Params{Limit: "20", Skip: "40"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Limit != 20 || q.Skip != 40 {
		t.Fatalf("got limit=%d skip=%d", q.Limit, q.Skip)
	}
}

func TestBuildStatsQueryDateRange(t *testing.T) {
	q, err := BuildStatsQuery("u1", Params{StartDate: "2024-01-01", EndDate: "2024-01-03"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantFrom := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if !q.Range.From.Equal(wantFrom) {
		t.Fatalf("from = %v, want %v", q.Range.From, wantFrom)
	}
	lastInstant := time.Date(2024, 1, 3, 23, 59, 59, 0, time.UTC)
	if !q.Range.Contains(lastInstant) {
		t.Fatalf("date-only end bound should include the whole day, got %v", q.Range.To)
	}
	if q.Range.Contains(time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("range must not include the following day")
	}

	q, err = BuildStatsQuery("u1", Params{EndDate: "2024-01-03T10:00:00+02:00"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !q.Range.To.Equal(time.Date(2024, 1, 3, 8, 0, 0, 0, time.UTC)) {
		t.Fatalf("timestamp bound should be kept exactly, got %v", q.Range.To)
	}
}

func TestBuildStatsQueryRejectsBadDates(t *testing.T) {
	cases := []Params{
		{StartDate: "yesterday"},
		{EndDate: "2024-13-01"},
		{StartDate: "2024-02-01", EndDate: "2024-01-01"},
	}
	for _, p := range cases {
		if _, err := BuildStatsQuery("u1", p); err == nil {
			t.Fatalf("%+v: expected validation error", p)
		} else if _, ok := core.AsValidation(err); !ok {
			t.Fatalf("%+v: expected ValidationErrors, got %T", p, err)
		}
	}
}

func TestBuildStatsQueryRejectsInvertedRange(t *testing.T) {
	_, err := BuildStatsQuery("u1", Params{StartDate: "2024-03-01", EndDate: "2024-02-28"})
	verrs, ok := core.AsValidation(err)
	if !ok || len(verrs) != 1 || verrs[0].Field != "startDate" {
		t.Fatalf("expected a single startDate error, got %v", err)
	}

	if _, err := BuildStatsQuery("u1", Params{StartDate: "2024-03-01", EndDate: "2024-03-01"}); err != nil {
		t.Fatalf("single-day range should be accepted, got %v", err)
	}
}

func TestMatchesScopesByOwner(t *testing.T) {
	q, _ := BuildExpenseQuery("u1", Params{Category: "Dining"})
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mine := core.Expense{UserID: "u1", Category: core.CategoryDining, Date: day}
	theirs := core.Expense{UserID: "u2", Category: core.CategoryDining, Date: day}
	other := core.Expense{UserID: "u1", Category: core.CategoryTransport, Date: day}

	if !q.Matches(mine) || q.Matches(theirs) || q.Matches(other) {
		t.Fatalf("owner/category scoping broken")
	}

	unknown, _ := BuildExpenseQuery("u1", Params{Category: "Travel"})
	if unknown.Matches(mine) {
		t.Fatalf("unknown category should match nothing")
	}
}

func TestLessOrdersWithStableTieBreak(t *testing.T) {
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	items := []core.Expense{
		{ID: "b", Amount: core.Money{Cents: 500}, Date: day},
		{ID: "a", Amount: core.Money{Cents: 500}, Date: day},
		{ID: "c", Amount: core.Money{Cents: 100}, Date: day.Add(time.Hour)},
	}
	q, _ := BuildExpenseQuery("u1", Params{Sort: "amount", Order: "asc"})
	sort.Slice(items, func(i, j int) bool { return q.Less(items[i], items[j]) })
	if items[0].ID != "c" || items[1].ID != "a" || items[2].ID != "b" {
		t.Fatalf("unexpected order: %s %s %s", items[0].ID, items[1].ID, items[2].ID)
	}

	q, _ = BuildExpenseQuery("u1", Params{})
	sort.Slice(items, func(i, j int) bool { return q.Less(items[i], items[j]) })
	if items[0].ID != "c" {
		t.Fatalf("default order should be newest first, got %s", items[0].ID)
	}
}

func TestParamsFromValues(t *testing.T) {
	v := url.Values{"startDate": {" 2024-01-01 "}, "limit": {"5"}, "order": {"asc"}}
	p := ParamsFromValues(v)
	if p.StartDate != "2024-01-01" || p.Limit != "5" || p.Order != "asc" {
		t.Fatalf("unexpected params: %+v", p)
	}
}

func TestCacheKeyIsOwnerPrefixed(t *testing.T) {
	a, _ := BuildStatsQuery("u1", Params{StartDate: "2024-01-01"})
	b, _ := BuildStatsQuery("u1", Params{StartDate: "2024-01-02"})
	if a.CacheKey() == b.CacheKey() {
		t.Fatalf("different ranges must not share a key")
	}
	if got := a.CacheKey()[:len(OwnerPrefix("u1"))]; got != OwnerPrefix("u1") {
		t.Fatalf("key %q not prefixed by owner", a.CacheKey())
	}
}
