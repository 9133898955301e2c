// Package memory is an in-process ledger exporter for development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"moneylens/internal/sheets"
)

type Exporter struct {
	mu   sync.Mutex
	rows []sheets.LedgerRow
}

var _ sheets.Exporter = (*Exporter)(nil)

func New() *Exporter {
	return &Exporter{}
}

// AppendRows records rows and returns a synthetic A1 reference.
func (e *Exporter) AppendRows(_ context.Context, rows []sheets.LedgerRow) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(rows) == 0 {
		return "", nil
	}
	// Row 1 is the header.
	first := len(e.rows) + 2
	e.rows = append(e.rows, rows...)
	return fmt.Sprintf("mem!A%d:J%d", first, first+len(rows)-1), nil
}

// Rows returns a copy of everything appended so far.
func (e *Exporter) Rows() []sheets.LedgerRow {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]sheets.LedgerRow(nil), e.rows...)
}
