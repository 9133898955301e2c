package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"moneylens/internal/amqp"
	"moneylens/internal/core"
	"moneylens/internal/metrics"
	"moneylens/internal/query"
	"moneylens/internal/stats"
	"moneylens/internal/storage"
)

// EventPublisher announces committed writes. *amqp.Client satisfies it.
type EventPublisher interface {
	PublishExpenseEvent(ctx context.Context, ev amqp.ExpenseEvent) error
}

// ExpenseService orchestrates expense writes, listings and analytics for one
// caller at a time. Writes go to the store first; events and cache
// invalidation follow and never fail the request.
type ExpenseService struct {
	store     storage.ExpenseStore
	engine    *stats.Engine
	publisher EventPublisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

type ExpenseServiceOption func(*ExpenseService)

// WithPublisher enables change events. Without one, writes only log a warning.
func WithPublisher(p EventPublisher) ExpenseServiceOption {
	return func(s *ExpenseService) { s.publisher = p }
}

func WithServiceMetrics(m *metrics.Metrics) ExpenseServiceOption {
	return func(s *ExpenseService) { s.metrics = m }
}

func WithServiceLogger(l *slog.Logger) ExpenseServiceOption {
	return func(s *ExpenseService) { s.logger = l }
}

func NewExpenseService(store storage.ExpenseStore, engine *stats.Engine, opts ...ExpenseServiceOption) *ExpenseService {
	s := &ExpenseService{
		store:  store,
		engine: engine,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateExpense stores e for userID. The owner in e is ignored; a missing
// date defaults to the creation time.
func (s *ExpenseService) CreateExpense(ctx context.Context, userID string, e core.Expense) (core.Expense, error) {
	e.ID = ""
	e.UserID = userID
	if e.Date.IsZero() {
		e.Date = s.now()
	}
	e.Date = e.Date.UTC()
	e.Normalize()
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	created, err := s.store.CreateExpense(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}

	s.afterWrite(ctx, amqp.EventExpenseCreated, created)
	return created, nil
}

func (s *ExpenseService) ListExpenses(ctx context.Context, userID string, p query.Params) ([]core.Expense, error) {
	q, err := query.BuildExpenseQuery(userID, p)
	if err != nil {
		return nil, err
	}
	items, err := s.store.ListExpenses(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return items, nil
}

// UpdateExpense applies patch to the record id owned by userID. The merged
// record is validated before anything is written.
func (s *ExpenseService) UpdateExpense(ctx context.Context, userID, id string, patch core.ExpensePatch) (core.Expense, error) {
	if patch.IsEmpty() {
		return core.Expense{}, core.NewValidationError("body", "at least one field must be provided")
	}

	updated, err := s.store.UpdateExpense(ctx, userID, id, func(e *core.Expense) error {
		patch.Apply(e)
		return e.Validate()
	})
	if err != nil {
		if _, ok := core.AsValidation(err); ok {
			return core.Expense{}, err
		}
		return core.Expense{}, fmt.Errorf("update expense %s: %w", id, err)
	}

	s.afterWrite(ctx, amqp.EventExpenseUpdated, updated)
	return updated, nil
}

func (s *ExpenseService) DeleteExpense(ctx context.Context, userID, id string) error {
	if err := s.store.DeleteExpense(ctx, userID, id); err != nil {
		return fmt.Errorf("delete expense %s: %w", id, err)
	}
	s.afterWrite(ctx, amqp.EventExpenseDeleted, core.Expense{ID: id, UserID: userID})
	return nil
}

// Stats computes the dashboard analytics for userID over the range in p.
func (s *ExpenseService) Stats(ctx context.Context, userID string, p query.Params) (core.Stats, error) {
	q, err := query.BuildStatsQuery(userID, p)
	if err != nil {
		return core.Stats{}, err
	}
	return s.engine.Compute(ctx, q)
}

func (s *ExpenseService) afterWrite(ctx context.Context, t amqp.EventType, e core.Expense) {
	s.engine.Invalidate(e.UserID)
	s.metrics.ExpenseWrite(string(t))

	if err := s.publish(ctx, amqp.NewExpenseEvent(t, e)); err != nil {
		s.metrics.EventPublished(false)
		s.logger.ErrorContext(ctx, "Failed to publish expense event",
			"type", t,
			"expense_id", e.ID,
			"error", err)
	}
}

func (s *ExpenseService) publish(ctx context.Context, ev amqp.ExpenseEvent) error {
	if s.publisher == nil {
		s.logger.DebugContext(ctx, "AMQP publisher not configured, skipping event", "type", ev.Type)
		return nil
	}
	if err := s.publisher.PublishExpenseEvent(ctx, ev); err != nil {
		return err
	}
	s.metrics.EventPublished(true)
	return nil
}
