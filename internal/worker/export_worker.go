// Package worker turns expense events into ledger rows.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"moneylens/internal/amqp"
	"moneylens/internal/sheets"
)

// EventRecorder counts consumed events.
type EventRecorder interface {
	EventConsumed(ok bool)
}

// ExportWorker appends one ledger row per consumed expense event.
type ExportWorker struct {
	exporter sheets.Exporter
	metrics  EventRecorder
	logger   *slog.Logger
}

type Option func(*ExportWorker)

func WithLogger(l *slog.Logger) Option {
	return func(w *ExportWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

func NewExportWorker(exporter sheets.Exporter, metrics EventRecorder, opts ...Option) *ExportWorker {
	w := &ExportWorker{exporter: exporter, metrics: metrics, logger: slog.Default()}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// HandleExpenseEvent matches the handler signature of
// amqp.Client.ConsumeExpenseEvents. A returned error requeues the message.
func (w *ExportWorker) HandleExpenseEvent(ctx context.Context, ev *amqp.ExpenseEvent) error {
	w.logger.InfoContext(ctx, "Processing expense event",
		"type", ev.Type,
		"expense_id", ev.ExpenseID,
		"user_id", ev.UserID)

	ref, err := w.exporter.AppendRows(ctx, []sheets.LedgerRow{RowFromEvent(ev)})
	w.record(err == nil)
	if err != nil {
		return fmt.Errorf("export %s %s: %w", ev.Type, ev.ExpenseID, err)
	}

	w.logger.InfoContext(ctx, "Exported expense event",
		"type", ev.Type,
		"expense_id", ev.ExpenseID,
		"range", ref)
	return nil
}

func (w *ExportWorker) record(ok bool) {
	if w.metrics != nil {
		w.metrics.EventConsumed(ok)
	}
}

// RowFromEvent flattens an event. Deletions carry only the ids.
func RowFromEvent(ev *amqp.ExpenseEvent) sheets.LedgerRow {
	row := sheets.LedgerRow{
		Timestamp: ev.Timestamp,
		Event:     string(ev.Type),
		ExpenseID: ev.ExpenseID,
		UserID:    ev.UserID,
	}
	if e := ev.Expense; e != nil {
		row.Date = e.Date
		row.Amount = e.Amount
		row.Category = e.Category
		row.Merchant = e.Merchant
		row.PaymentMethod = e.PaymentMethod
		row.Description = e.Description
	}
	return row
}

// LogExporter writes rows to the log instead of a spreadsheet.
type LogExporter struct {
	logger *slog.Logger
}

func NewLogExporter(logger *slog.Logger) *LogExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogExporter{logger: logger}
}

func (e *LogExporter) AppendRows(ctx context.Context, rows []sheets.LedgerRow) (string, error) {
	for _, r := range rows {
		e.logger.InfoContext(ctx, "Ledger row",
			"event", r.Event,
			"expense_id", r.ExpenseID,
			"user_id", r.UserID,
			"amount", r.Amount.String())
	}
	return "log", nil
}
