// Package memory is an in-process Store used for development and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"moneylens/internal/core"
	"moneylens/internal/query"
	"moneylens/internal/stats"
	"moneylens/internal/storage"
)

type Store struct {
	stats.SliceSource

	mu       sync.RWMutex
	expenses map[string]core.Expense
	users    map[string]core.User
	emails   map[string]string // email -> user id
	now      func() time.Time
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	s := &Store{
		expenses: map[string]core.Expense{},
		users:    map[string]core.User{},
		emails:   map[string]string{},
		now:      func() time.Time { return time.Now().UTC() },
	}
	s.SliceSource = s.matching
	return s
}

func (s *Store) matching(_ context.Context, q query.StatsQuery) ([]core.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Expense
	for _, e := range s.expenses {
		if q.Matches(e) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) CreateExpense(_ context.Context, e core.Expense) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	e.ID = uuid.NewString()
	e.Date = e.Date.UTC()
	e.CreatedAt, e.UpdatedAt = now, now
	s.expenses[e.ID] = e
	return e, nil
}

func (s *Store) ListExpenses(_ context.Context, q query.ExpenseQuery) ([]core.Expense, error) {
	s.mu.RLock()
	matched := make([]core.Expense, 0)
	for _, e := range s.expenses {
		if q.Matches(e) {
			matched = append(matched, e)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return q.Less(matched[i], matched[j]) })

	if q.Skip >= len(matched) {
		return []core.Expense{}, nil
	}
	end := q.Skip + q.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[q.Skip:end], nil
}

func (s *Store) UpdateExpense(_ context.Context, userID, id string, mutate func(*core.Expense) error) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.expenses[id]
	if !ok || e.UserID != userID {
		return core.Expense{}, storage.ErrNotFound
	}
	if err := mutate(&e); err != nil {
		return core.Expense{}, err
	}
	e.ID, e.UserID = id, userID
	e.Date = e.Date.UTC()
	e.UpdatedAt = s.now()
	s.expenses[id] = e
	return e, nil
}

func (s *Store) DeleteExpense(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.expenses[id]
	if !ok || e.UserID != userID {
		return storage.ErrNotFound
	}
	delete(s.expenses, id)
	return nil
}

func (s *Store) CreateUser(_ context.Context, u core.User) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.emails[u.Email]; taken {
		return core.User{}, storage.ErrDuplicateEmail
	}
	u.ID = uuid.NewString()
	u.CreatedAt = s.now()
	s.users[u.ID] = u
	s.emails[u.Email] = u.ID
	return u, nil
}

func (s *Store) UserByEmail(_ context.Context, email string) (core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.emails[email]
	if !ok {
		return core.User{}, storage.ErrNotFound
	}
	return s.users[id], nil
}

func (s *Store) UserByID(_ context.Context, id string) (core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return core.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }
