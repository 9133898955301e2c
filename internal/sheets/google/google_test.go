package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	goption "google.golang.org/api/option"

	"moneylens/internal/core"
	"moneylens/internal/sheets"
)

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("GOOGLE_SPREADSHEET_ID", "")
	_, err := ConfigFromEnv()
	require.Error(t, err)
	assert.Equal(t, "missing GOOGLE_SPREADSHEET_ID", err.Error())

	t.Setenv("GOOGLE_SPREADSHEET_ID", "sheet-1")
	t.Setenv("GOOGLE_SHEET_NAME", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	_, err = ConfigFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing service account credentials")

	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", `{"type":"service_account"}`)
	cfg, err := ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "Ledger", cfg.SheetName)
	assert.JSONEq(t, `{"type":"service_account"}`, string(cfg.CredentialsJSON))
}

func TestYearPrefixedName(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"Ledger", "2025 Ledger"},
		{"2024 Ledger", "2024 Ledger"},
		{"  Ledger  ", "2025 Ledger"},
		{"", ""},
		{"12345", "2025 12345"},
	}
	for _, tt := range tests {
		if got := yearPrefixedName(tt.base, 2025); got != tt.want {
			t.Errorf("yearPrefixedName(%q) = %q, want %q", tt.base, got, tt.want)
		}
	}
}

func TestQuoteSheet(t *testing.T) {
	assert.Equal(t, "Ledger", quoteSheet("Ledger"))
	assert.Equal(t, "'2025 Ledger'", quoteSheet("2025 Ledger"))
	assert.Equal(t, "'Bob''s'", quoteSheet("Bob's"))
}

// fakeSheets answers the two Values calls the client makes.
type fakeSheets struct {
	mu       sync.Mutex
	existing [][]any
	appended [][]any
	gets     int
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodGet && strings.Contains(r.URL.Path, "/values/"):
		f.gets++
		_ = json.NewEncoder(w).Encode(map[string]any{"values": f.existing})
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, ":append"):
		body, _ := io.ReadAll(r.Body)
		var vr struct {
			Values [][]any `json:"values"`
		}
		_ = json.Unmarshal(body, &vr)
		f.appended = append(f.appended, vr.Values...)
		f.existing = append(f.existing, vr.Values...)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"updates": map[string]any{"updatedRange": "'2025 Ledger'!A1:J2", "updatedRows": len(vr.Values)},
		})
	default:
		http.Error(w, "unexpected "+r.Method+" "+r.URL.Path, http.StatusNotFound)
	}
}

func newTestClient(t *testing.T, fake *fakeSheets) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c, err := NewClient(context.Background(),
		Config{SpreadsheetID: "sheet-1", SheetName: "2025 Ledger"},
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
	)
	require.NoError(t, err)
	return c
}

func TestAppendRowsWritesHeaderOnce(t *testing.T) {
	fake := &fakeSheets{}
	c := newTestClient(t, fake)
	ctx := context.Background()

	row := sheets.LedgerRow{
		Timestamp:     time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		Event:         "expense.created",
		ExpenseID:     "e1",
		UserID:        "u1",
		Date:          time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Amount:        core.Money{Cents: 1250},
		Category:      core.CategoryDining,
		Merchant:      "Trattoria",
		PaymentMethod: core.PaymentCash,
	}

	ref, err := c.AppendRows(ctx, []sheets.LedgerRow{row})
	require.NoError(t, err)
	assert.Equal(t, "'2025 Ledger'!A1:J2", ref)

	_, err = c.AppendRows(ctx, []sheets.LedgerRow{{Timestamp: row.Timestamp, Event: "expense.deleted", ExpenseID: "e1", UserID: "u1"}})
	require.NoError(t, err)

	require.Len(t, fake.appended, 3)
	assert.Equal(t, "Timestamp", fake.appended[0][0])
	assert.Equal(t, "12.50", fake.appended[1][5])
	assert.Equal(t, "2025-01-01", fake.appended[1][4])
	assert.Equal(t, "", fake.appended[2][5])
	assert.Equal(t, 1, fake.gets, "header should be checked once")
}

func TestAppendRowsSkipsHeaderOnExistingSheet(t *testing.T) {
	fake := &fakeSheets{existing: [][]any{{"Timestamp"}}}
	c := newTestClient(t, fake)

	_, err := c.AppendRows(context.Background(), []sheets.LedgerRow{{Event: "expense.deleted", ExpenseID: "e1", UserID: "u1"}})
	require.NoError(t, err)
	require.Len(t, fake.appended, 1)
	assert.Equal(t, "expense.deleted", fake.appended[0][1])
}

func TestAppendRowsEmpty(t *testing.T) {
	fake := &fakeSheets{}
	c := newTestClient(t, fake)
	ref, err := c.AppendRows(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, ref)
	assert.Zero(t, fake.gets)
}
