package worker

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moneylens/internal/amqp"
	"moneylens/internal/core"
	"moneylens/internal/sheets"
	"moneylens/internal/sheets/memory"
)

type countingRecorder struct{ ok, failed int }

func (c *countingRecorder) EventConsumed(ok bool) {
	if ok {
		c.ok++
	} else {
		c.failed++
	}
}

type failingExporter struct{}

func (failingExporter) AppendRows(context.Context, []sheets.LedgerRow) (string, error) {
	return "", errors.New("quota exceeded")
}

func sampleExpense() core.Expense {
	return core.Expense{
		ID:            "e1",
		UserID:        "u1",
		Amount:        core.Money{Cents: 4200},
		Category:      core.CategoryGroceries,
		Merchant:      "Market",
		Date:          time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC),
		PaymentMethod: core.PaymentDebitCard,
		Description:   "weekly shop",
	}
}

func TestHandleExpenseEventExportsRow(t *testing.T) {
	exp := memory.New()
	rec := &countingRecorder{}
	w := NewExportWorker(exp, rec)

	ev := amqp.NewExpenseEvent(amqp.EventExpenseCreated, sampleExpense())
	require.NoError(t, w.HandleExpenseEvent(context.Background(), &ev))

	rows := exp.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, "expense.created", rows[0].Event)
	assert.Equal(t, int64(4200), rows[0].Amount.Cents)
	assert.Equal(t, core.CategoryGroceries, rows[0].Category)
	assert.Equal(t, "weekly shop", rows[0].Description)
	assert.Equal(t, 1, rec.ok)
}

func TestHandleExpenseEventDeletionCarriesIDsOnly(t *testing.T) {
	exp := memory.New()
	w := NewExportWorker(exp, nil)

	ev := amqp.NewExpenseEvent(amqp.EventExpenseDeleted, sampleExpense())
	require.NoError(t, w.HandleExpenseEvent(context.Background(), &ev))

	rows := exp.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, "e1", rows[0].ExpenseID)
	assert.True(t, rows[0].Date.IsZero())
	assert.Empty(t, rows[0].Merchant)
}

func TestHandleExpenseEventExporterFailure(t *testing.T) {
	rec := &countingRecorder{}
	w := NewExportWorker(failingExporter{}, rec)

	ev := amqp.NewExpenseEvent(amqp.EventExpenseUpdated, sampleExpense())
	err := w.HandleExpenseEvent(context.Background(), &ev)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
	assert.Equal(t, 1, rec.failed)
}

func TestRowFromEventValues(t *testing.T) {
	ev := amqp.NewExpenseEvent(amqp.EventExpenseCreated, sampleExpense())
	ev.Timestamp = time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)

	values := RowFromEvent(&ev).Values()
	require.Len(t, values, len(sheets.Header))
	assert.Equal(t, "2024-03-09T12:00:00Z", values[0])
	assert.Equal(t, "2024-03-09", values[4])
	assert.Equal(t, "42.00", values[5])
	assert.Equal(t, "Debit Card", values[8])
}

func TestLogExporter(t *testing.T) {
	var buf bytes.Buffer
	exp := NewLogExporter(slog.New(slog.NewTextHandler(&buf, nil)))

	ref, err := exp.AppendRows(context.Background(), []sheets.LedgerRow{{Event: "expense.created", ExpenseID: "e9", Amount: core.Money{Cents: 5}}})
	require.NoError(t, err)
	assert.Equal(t, "log", ref)
	assert.Contains(t, buf.String(), "expense_id=e9")
	assert.Contains(t, buf.String(), "amount=0.05")
}

func TestExportWorkerLogsThroughInjectedLogger(t *testing.T) {
	var buf bytes.Buffer
	w := NewExportWorker(memory.New(), nil, WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))

	ev := amqp.NewExpenseEvent(amqp.EventExpenseCreated, sampleExpense())
	require.NoError(t, w.HandleExpenseEvent(context.Background(), &ev))

	out := buf.String()
	assert.Contains(t, out, "Processing expense event")
	assert.Contains(t, out, "Exported expense event")
	assert.Contains(t, out, "expense_id=e1")
}
