// Package sheets defines the spreadsheet ledger that expense events are
// exported to. Adapters live in the google and memory subpackages.
package sheets

import (
	"context"
	"time"

	"moneylens/internal/core"
)

// Header is the first row of a ledger sheet, in column order.
var Header = []any{
	"Timestamp", "Event", "Expense ID", "User ID", "Date",
	"Amount", "Category", "Merchant", "Payment Method", "Description",
}

// LedgerRow is one exported change. Deleted expenses carry only ids.
type LedgerRow struct {
	Timestamp     time.Time
	Event         string
	ExpenseID     string
	UserID        string
	Date          time.Time
	Amount        core.Money
	Category      core.Category
	Merchant      string
	PaymentMethod core.PaymentMethod
	Description   string
}

// Values renders r in Header order. Dates are ISO strings so the sheet
// neither reformats nor localises them.
func (r LedgerRow) Values() []any {
	date, amount := "", ""
	if !r.Date.IsZero() {
		date = r.Date.UTC().Format(time.DateOnly)
		amount = r.Amount.String()
	}
	return []any{
		r.Timestamp.UTC().Format(time.RFC3339),
		r.Event,
		r.ExpenseID,
		r.UserID,
		date,
		amount,
		string(r.Category),
		r.Merchant,
		string(r.PaymentMethod),
		r.Description,
	}
}

// Exporter appends rows to the ledger and returns a reference to where they
// landed.
type Exporter interface {
	AppendRows(ctx context.Context, rows []LedgerRow) (ref string, err error)
}
