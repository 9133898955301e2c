// Package query turns raw request parameters into validated, owner-scoped
// query descriptions that every store adapter understands.
//
// A query can only be built with a caller id; store adapters add the exact
// owner constraint to every predicate they derive from it.
package query

import (
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jinzhu/now"

	"moneylens/internal/core"
)

const (
	DefaultLimit = 100
	DefaultSkip  = 0
	// MaxLimit caps page size so one request cannot scan an entire collection.
	MaxLimit = 1000
)

// ErrNoOwner is returned when a query is built without a caller id.
var ErrNoOwner = errors.New("query: owner is required")

type (
	SortField string
	Order     string
)

const (
	SortDate          SortField = "date"
	SortAmount        SortField = "amount"
	SortMerchant      SortField = "merchant"
	SortCategory      SortField = "category"
	SortPaymentMethod SortField = "paymentMethod"

	Asc  Order = "asc"
	Desc Order = "desc"
)

var sortable = map[SortField]struct{}{
	SortDate: {}, SortAmount: {}, SortMerchant: {}, SortCategory: {}, SortPaymentMethod: {},
}

// Params holds the raw, unparsed filter values of a request.
type Params struct {
	StartDate string
	EndDate   string
	Category  string
	Sort      string
	Order     string
	Limit     string
	Skip      string
}

// ParamsFromValues reads the listing and stats parameters from a URL query.
func ParamsFromValues(v url.Values) Params {
	return Params{
		StartDate: strings.TrimSpace(v.Get("startDate")),
		EndDate:   strings.TrimSpace(v.Get("endDate")),
		Category:  strings.TrimSpace(v.Get("category")),
		Sort:      strings.TrimSpace(v.Get("sort")),
		Order:     strings.TrimSpace(v.Get("order")),
		Limit:     strings.TrimSpace(v.Get("limit")),
		Skip:      strings.TrimSpace(v.Get("skip")),
	}
}

// Range is an inclusive time interval. A zero bound is open.
type Range struct {
	From time.Time
	To   time.Time
}

func (r Range) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && t.After(r.To) {
		return false
	}
	return true
}

// ExpenseQuery describes one page of a user's expense listing.
type ExpenseQuery struct {
	UserID   string
	Range    Range
	Category core.Category // empty means any
	Sort     SortField
	Order    Order
	Limit    int
	Skip     int
}

// StatsQuery describes the expense set the aggregation engine summarises.
type StatsQuery struct {
	UserID string
	Range  Range
}

// BuildExpenseQuery validates p and returns the listing query for userID.
func BuildExpenseQuery(userID string, p Params) (ExpenseQuery, error) {
	if userID == "" {
		return ExpenseQuery{}, ErrNoOwner
	}
	var errs core.ValidationErrors
	rng := parseRange(p, &errs)

	q := ExpenseQuery{
		UserID:   userID,
		Range:    rng,
		Category: core.Category(p.Category),
		Sort:     SortDate,
		Order:    Desc,
		Limit:    DefaultLimit,
		Skip:     DefaultSkip,
	}
	if _, ok := sortable[SortField(p.Sort)]; ok {
		q.Sort = SortField(p.Sort)
	}
	if strings.EqualFold(p.Order, string(Asc)) {
		q.Order = Asc
	}
	if p.Limit != "" {
		n, err := strconv.Atoi(p.Limit)
		switch {
		case err != nil:
			errs.Add("limit", "limit must be an integer")
		case n < 1 || n > MaxLimit:
			errs.Add("limit", "limit must be between 1 and "+strconv.Itoa(MaxLimit))
		default:
			q.Limit = n
		}
	}
	if p.Skip != "" {
		n, err := strconv.Atoi(p.Skip)
		switch {
		case err != nil:
			errs.Add("skip", "skip must be an integer")
		case n < 0:
			errs.Add("skip", "skip must be zero or greater")
		default:
			q.Skip = n
		}
	}
	if err := errs.OrNil(); err != nil {
		return ExpenseQuery{}, err
	}
	return q, nil
}

// BuildStatsQuery validates the date range of p and returns the stats query
// for userID. Category, sort and pagination parameters are ignored.
func BuildStatsQuery(userID string, p Params) (StatsQuery, error) {
	if userID == "" {
		return StatsQuery{}, ErrNoOwner
	}
	var errs core.ValidationErrors
	rng := parseRange(p, &errs)
	if err := errs.OrNil(); err != nil {
		return StatsQuery{}, err
	}
	return StatsQuery{UserID: userID, Range: rng}, nil
}

// Matches reports whether e belongs to the query's result set.
func (q ExpenseQuery) Matches(e core.Expense) bool {
	return matches(q.UserID, q.Range, q.Category, e)
}

// Matches reports whether e belongs to the stats set.
func (q StatsQuery) Matches(e core.Expense) bool {
	return matches(q.UserID, q.Range, "", e)
}

// CacheKey identifies the result set for memoisation. It starts with the
// owner id so a user's entries can be dropped by prefix.
func (q StatsQuery) CacheKey() string {
	return OwnerPrefix(q.UserID) + formatBound(q.Range.From) + "|" + formatBound(q.Range.To)
}

// OwnerPrefix is the cache key prefix shared by all of a user's stats entries.
func OwnerPrefix(userID string) string {
	return userID + "|"
}

// Less orders two expenses by the query's sort field and direction. Ties
// fall back to id so pagination is stable.
func (q ExpenseQuery) Less(a, b core.Expense) bool {
	c := compare(q.Sort, a, b)
	if c == 0 {
		c = strings.Compare(a.ID, b.ID)
	}
	if q.Order == Asc {
		return c < 0
	}
	return c > 0
}

func compare(field SortField, a, b core.Expense) int {
	switch field {
	case SortAmount:
		return cmpInt(a.Amount.Cents, b.Amount.Cents)
	case SortMerchant:
		return strings.Compare(a.Merchant, b.Merchant)
	case SortCategory:
		return strings.Compare(string(a.Category), string(b.Category))
	case SortPaymentMethod:
		return strings.Compare(string(a.PaymentMethod), string(b.PaymentMethod))
	default:
		return a.Date.Compare(b.Date)
	}
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func matches(owner string, rng Range, cat core.Category, e core.Expense) bool {
	if e.UserID != owner {
		return false
	}
	if cat != "" && e.Category != cat {
		return false
	}
	return rng.Contains(e.Date)
}

func parseRange(p Params, errs *core.ValidationErrors) Range {
	var rng Range
	if p.StartDate != "" {
		t, _, err := ParseDate(p.StartDate)
		if err != nil {
			errs.Add("startDate", "startDate must be YYYY-MM-DD or RFC 3339")
		} else {
			rng.From = t
		}
	}
	if p.EndDate != "" {
		t, dateOnly, err := ParseDate(p.EndDate)
		if err != nil {
			errs.Add("endDate", "endDate must be YYYY-MM-DD or RFC 3339")
		} else {
			if dateOnly {
				t = now.With(t).EndOfDay()
			}
			rng.To = t
		}
	}
	if !rng.From.IsZero() && !rng.To.IsZero() && rng.From.After(rng.To) {
		errs.Add("startDate", "startDate must not be after endDate")
	}
	return rng
}

// ParseDate accepts a calendar date (interpreted in UTC) or an RFC 3339
// timestamp. dateOnly reports which form matched.
func ParseDate(s string) (t time.Time, dateOnly bool, err error) {
	if t, err := time.ParseInLocation(time.DateOnly, s, time.UTC); err == nil {
		return t, true, nil
	}
	t, err = time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false, err
	}
	return t.UTC(), false, nil
}

func formatBound(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return strconv.FormatInt(t.UnixMilli(), 10)
}
