// Package storage declares the record store ports and the errors adapters
// return. Implementations live in the memory, sqlite and mongo subpackages.
package storage

import (
	"context"
	"errors"

	"moneylens/internal/core"
	"moneylens/internal/query"
	"moneylens/internal/stats"
)

var (
	// ErrNotFound is returned for missing records and for records owned by
	// someone else. Callers cannot tell the two apart.
	ErrNotFound = errors.New("record not found")

	ErrDuplicateEmail = errors.New("email already registered")
)

type (
	// ExpenseStore persists expenses. Every method is scoped to an owner.
	ExpenseStore interface {
		// CreateExpense assigns ID and timestamps and returns the stored record.
		CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error)

		ListExpenses(ctx context.Context, q query.ExpenseQuery) ([]core.Expense, error)

		// UpdateExpense loads the record owned by userID, lets mutate change
		// it and persists the result. An error from mutate aborts the write.
		UpdateExpense(ctx context.Context, userID, id string, mutate func(*core.Expense) error) (core.Expense, error)

		DeleteExpense(ctx context.Context, userID, id string) error

		stats.Source
	}

	UserStore interface {
		// CreateUser fails with ErrDuplicateEmail when the email is taken.
		CreateUser(ctx context.Context, u core.User) (core.User, error)
		UserByEmail(ctx context.Context, email string) (core.User, error)
		UserByID(ctx context.Context, id string) (core.User, error)
	}

	Store interface {
		ExpenseStore
		UserStore
		Ping(ctx context.Context) error
		Close() error
	}
)
