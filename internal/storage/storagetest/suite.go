// Package storagetest holds the behaviour every storage.Store must share.
// Adapter packages run it from their own tests:
//
//	suite.Run(t, &storagetest.StoreSuite{NewStore: func(t *testing.T) storage.Store { ... }})
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"moneylens/internal/core"
	"moneylens/internal/query"
	"moneylens/internal/stats"
	"moneylens/internal/storage"
)

type StoreSuite struct {
	suite.Suite

	// NewStore returns an empty store. It is called before every test.
	NewStore func(t *testing.T) storage.Store

	store storage.Store
	ctx   context.Context
}

func (s *StoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = s.NewStore(s.T())
}

func (s *StoreSuite) TearDownTest() {
	if s.store != nil {
		s.Require().NoError(s.store.Close())
	}
}

func Day(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func (s *StoreSuite) add(user string, cents int64, date time.Time, cat core.Category, pm core.PaymentMethod, merchant string) core.Expense {
	e, err := s.store.CreateExpense(s.ctx, core.Expense{
		UserID:        user,
		Amount:        core.Money{Cents: cents},
		Category:      cat,
		Merchant:      merchant,
		Date:          date,
		PaymentMethod: pm,
	})
	s.Require().NoError(err)
	return e
}

func (s *StoreSuite) list(user string, p query.Params) []core.Expense {
	q, err := query.BuildExpenseQuery(user, p)
	s.Require().NoError(err)
	out, err := s.store.ListExpenses(s.ctx, q)
	s.Require().NoError(err)
	return out
}

func (s *StoreSuite) statsFor(user string, p query.Params) core.Stats {
	q, err := query.BuildStatsQuery(user, p)
	s.Require().NoError(err)
	st, err := stats.NewEngine(s.store).Compute(s.ctx, q)
	s.Require().NoError(err)
	return st
}

func (s *StoreSuite) TestCreateAssignsIdentity() {
	e := s.add("u1", 1250, Day(2024, 1, 1), core.CategoryDining, core.PaymentCash, "Cafe")
	s.NotEmpty(e.ID)
	s.False(e.CreatedAt.IsZero())
	s.False(e.UpdatedAt.IsZero())

	got := s.list("u1", query.Params{})
	s.Require().Len(got, 1)
	s.Equal(e.ID, got[0].ID)
	s.Equal(int64(1250), got[0].Amount.Cents)
	s.Equal(core.PaymentCash, got[0].PaymentMethod)
	s.True(got[0].Date.Equal(Day(2024, 1, 1)))
}

func (s *StoreSuite) TestListIsOwnerScoped() {
	s.add("u1", 100, Day(2024, 1, 1), core.CategoryDining, core.PaymentCash, "A")
	s.add("u2", 200, Day(2024, 1, 1), core.CategoryDining, core.PaymentCash, "B")

	got := s.list("u1", query.Params{})
	s.Require().Len(got, 1)
	s.Equal("u1", got[0].UserID)
}

func (s *StoreSuite) TestListFiltersSortsAndPaginates() {
	s.add("u1", 300, Day(2024, 1, 1), core.CategoryDining, core.PaymentCash, "Bistro")
	s.add("u1", 100, Day(2024, 1, 2), core.CategoryTransport, core.PaymentCash, "Metro")
	s.add("u1", 200, Day(2024, 1, 3), core.CategoryDining, core.PaymentCreditCard, "Deli")
	s.add("u1", 400, Day(2024, 2, 1), core.CategoryDining, core.PaymentCash, "Late")

	byDate := s.list("u1", query.Params{})
	s.Require().Len(byDate, 4)
	s.Equal("Late", byDate[0].Merchant)
	s.Equal("Bistro", byDate[3].Merchant)

	ranged := s.list("u1", query.Params{StartDate: "2024-01-01", EndDate: "2024-01-03"})
	s.Len(ranged, 3)

	dining := s.list("u1", query.Params{Category: "Dining", Sort: "amount", Order: "asc"})
	s.Require().Len(dining, 3)
	s.Equal(int64(200), dining[0].Amount.Cents)
	s.Equal(int64(400), dining[2].Amount.Cents)

	page := s.list("u1", query.Params{Sort: "merchant", Order: "asc", Limit: "2", Skip: "1"})
	s.Require().Len(page, 2)
	s.Equal("Deli", page[0].Merchant)
	s.Equal("Late", page[1].Merchant)

	s.Empty(s.list("u1", query.Params{Skip: "10"}))
	s.Empty(s.list("u1", query.Params{Category: "Travel"}))
}

func (s *StoreSuite) TestUpdateReplacesFields() {
	e := s.add("u1", 100, Day(2024, 1, 1), core.CategoryDining, core.PaymentCash, "A")

	updated, err := s.store.UpdateExpense(s.ctx, "u1", e.ID, func(x *core.Expense) error {
		x.Amount = core.Money{Cents: 999}
		x.Merchant = "B"
		return nil
	})
	s.Require().NoError(err)
	s.Equal(e.ID, updated.ID)
	s.Equal("u1", updated.UserID)
	s.Equal(int64(999), updated.Amount.Cents)

	got := s.list("u1", query.Params{})
	s.Require().Len(got, 1)
	s.Equal("B", got[0].Merchant)
	s.Equal(core.CategoryDining, got[0].Category)
}

func (s *StoreSuite) TestUpdateMutateErrorAbortsWrite() {
	e := s.add("u1", 100, Day(2024, 1, 1), core.CategoryDining, core.PaymentCash, "A")
	boom := errors.New("rejected")

	_, err := s.store.UpdateExpense(s.ctx, "u1", e.ID, func(x *core.Expense) error {
		x.Merchant = "changed"
		return boom
	})
	s.ErrorIs(err, boom)
	s.Equal("A", s.list("u1", query.Params{})[0].Merchant)
}

func (s *StoreSuite) TestUpdateAndDeleteAreOwnerScoped() {
	e := s.add("u1", 100, Day(2024, 1, 1), core.CategoryDining, core.PaymentCash, "A")

	_, err := s.store.UpdateExpense(s.ctx, "u2", e.ID, func(*core.Expense) error { return nil })
	s.ErrorIs(err, storage.ErrNotFound)

	s.ErrorIs(s.store.DeleteExpense(s.ctx, "u2", e.ID), storage.ErrNotFound)
	s.Len(s.list("u1", query.Params{}), 1, "foreign delete must leave the record intact")

	s.ErrorIs(s.store.DeleteExpense(s.ctx, "u1", "does-not-exist"), storage.ErrNotFound)

	s.Require().NoError(s.store.DeleteExpense(s.ctx, "u1", e.ID))
	s.Empty(s.list("u1", query.Params{}))
	s.ErrorIs(s.store.DeleteExpense(s.ctx, "u1", e.ID), storage.ErrNotFound)
}

func (s *StoreSuite) TestStatsScenario() {
	s.add("u1", 1000, Day(2024, 1, 1), core.CategoryDining, core.PaymentCash, "A")
	s.add("u1", 2000, Day(2024, 1, 3), core.CategoryDining, core.PaymentCreditCard, "B")
	s.add("u2", 5000, Day(2024, 1, 2), core.CategoryDining, core.PaymentCash, "C")

	st := s.statsFor("u1", query.Params{StartDate: "2024-01-01", EndDate: "2024-01-03"})
	s.Equal(int64(3000), st.TotalSpending.Cents)
	s.Equal(int64(1000), st.AvgDailySpend.Cents)
	s.Equal(int64(2), st.ExpenseCount)
	s.Require().Len(st.CategoryBreakdown, 1)
	s.Equal(core.CategoryDining, st.CategoryBreakdown[0].Category)
	s.Equal(int64(3000), st.CategoryBreakdown[0].Total.Cents)
	s.Equal(int64(2), st.CategoryBreakdown[0].Count)
	s.Require().Len(st.MonthlyTrend, 1)
	s.Equal(core.TrendGroup{Year: 2024, Month: 1, Week: 1, Total: core.Money{Cents: 3000}, Count: 2}, st.MonthlyTrend[0])
	s.Len(st.PaymentMethodBreakdown, 2)
}

func (s *StoreSuite) TestStatsPartitionAndCountParity() {
	s.add("u1", 500, Day(2024, 1, 1), core.CategoryDining, core.PaymentCash, "A")
	s.add("u1", 700, Day(2024, 1, 9), core.CategoryTransport, core.PaymentDebitCard, "B")
	s.add("u1", 700, Day(2024, 2, 14), core.CategoryHealthcare, core.PaymentCash, "C")
	s.add("u1", 50, Day(2024, 3, 1), core.CategoryDining, core.PaymentDigitalWallet, "D")

	p := query.Params{StartDate: "2024-01-01", EndDate: "2024-02-28"}
	st := s.statsFor("u1", p)

	var catSum, trendSum int64
	for _, c := range st.CategoryBreakdown {
		catSum += c.Total.Cents
	}
	for _, g := range st.MonthlyTrend {
		trendSum += g.Total.Cents
	}
	s.Equal(st.TotalSpending.Cents, catSum)
	s.Equal(st.TotalSpending.Cents, trendSum)
	for i := 1; i < len(st.CategoryBreakdown); i++ {
		s.GreaterOrEqual(st.CategoryBreakdown[i-1].Total.Cents, st.CategoryBreakdown[i].Total.Cents)
	}

	listed := s.list("u1", query.Params{StartDate: p.StartDate, EndDate: p.EndDate, Limit: "1000"})
	s.Equal(int64(len(listed)), st.ExpenseCount)
}

func (s *StoreSuite) TestStatsEmpty() {
	st := s.statsFor("nobody", query.Params{})
	s.Equal(int64(0), st.TotalSpending.Cents)
	s.Equal(int64(0), st.AvgDailySpend.Cents)
	s.Equal(int64(0), st.ExpenseCount)
	s.Empty(st.CategoryBreakdown)
	s.Empty(st.MonthlyTrend)
}

func (s *StoreSuite) TestUsers() {
	u, err := s.store.CreateUser(s.ctx, core.User{Name: "Ada", Email: "ada@example.com", PasswordHash: "hash"})
	s.Require().NoError(err)
	s.NotEmpty(u.ID)
	s.False(u.CreatedAt.IsZero())

	_, err = s.store.CreateUser(s.ctx, core.User{Name: "Other", Email: "ada@example.com", PasswordHash: "x"})
	s.ErrorIs(err, storage.ErrDuplicateEmail)

	byEmail, err := s.store.UserByEmail(s.ctx, "ada@example.com")
	s.Require().NoError(err)
	s.Equal(u.ID, byEmail.ID)
	s.Equal("hash", byEmail.PasswordHash)

	byID, err := s.store.UserByID(s.ctx, u.ID)
	s.Require().NoError(err)
	s.Equal("Ada", byID.Name)

	_, err = s.store.UserByEmail(s.ctx, "missing@example.com")
	s.ErrorIs(err, storage.ErrNotFound)
}

func (s *StoreSuite) TestPing() {
	s.NoError(s.store.Ping(s.ctx))
}
