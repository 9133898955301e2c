// Package google exports the expense ledger to a Google Sheets spreadsheet.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"moneylens/internal/sheets"
)

const lastColumn = "J"

type Config struct {
	SpreadsheetID string
	// SheetName is the tab base name; the current year is prefixed unless
	// the name already starts with one.
	SheetName       string
	CredentialsJSON []byte
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string

	mu            sync.Mutex
	headerChecked bool
}

var _ sheets.Exporter = (*Client)(nil)

// ConfigFromEnv reads GOOGLE_SPREADSHEET_ID, GOOGLE_SHEET_NAME (default
// "Ledger") and service account credentials from
// GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS.
func ConfigFromEnv() (Config, error) {
	cfg := Config{
		SpreadsheetID: strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID")),
		SheetName:     strings.TrimSpace(os.Getenv("GOOGLE_SHEET_NAME")),
	}
	if cfg.SpreadsheetID == "" {
		return Config{}, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if cfg.SheetName == "" {
		cfg.SheetName = "Ledger"
	}

	creds, err := credentialsFromEnv()
	if err != nil {
		return Config{}, err
	}
	cfg.CredentialsJSON = creds
	return cfg, nil
}

func credentialsFromEnv() ([]byte, error) {
	if inline := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")); inline != "" {
		return []byte(inline), nil
	}
	path := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if path == "" {
		path = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if path == "" {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return b, nil
}

// NewFromEnv creates a client from ConfigFromEnv.
func NewFromEnv(ctx context.Context) (*Client, error) {
	cfg, err := ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	return NewClient(ctx, cfg)
}

// NewClient builds a Sheets client. Extra options are appended after the
// credentials, so tests can point it at a fake endpoint.
func NewClient(ctx context.Context, cfg Config, opts ...goption.ClientOption) (*Client, error) {
	if cfg.SpreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	clientOpts := []goption.ClientOption{goption.WithScopes(gsheet.SpreadsheetsScope)}
	if len(cfg.CredentialsJSON) > 0 {
		clientOpts = append(clientOpts, goption.WithCredentialsJSON(cfg.CredentialsJSON))
	}
	clientOpts = append(clientOpts, opts...)

	svc, err := gsheet.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	name := yearPrefixedName(cfg.SheetName, time.Now().Year())
	slog.InfoContext(ctx, "Google Sheets exporter ready", "spreadsheet_id", cfg.SpreadsheetID, "sheet", name)
	return &Client{svc: svc, spreadsheetID: cfg.SpreadsheetID, sheetName: name}, nil
}

// AppendRows appends rows below the last used row. The header row is written
// first when the sheet is empty.
func (c *Client) AppendRows(ctx context.Context, rows []sheets.LedgerRow) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	if len(rows) == 0 {
		return "", nil
	}

	values := make([][]any, 0, len(rows)+1)
	needHeader, err := c.needsHeader(ctx)
	if err != nil {
		return "", err
	}
	if needHeader {
		values = append(values, sheets.Header)
	}
	for _, r := range rows {
		values = append(values, r.Values())
	}

	rng := fmt.Sprintf("%s!A:%s", quoteSheet(c.sheetName), lastColumn)
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, &gsheet.ValueRange{Values: values}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("append to %s: %w", c.sheetName, err)
	}

	c.mu.Lock()
	c.headerChecked = true
	c.mu.Unlock()

	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		return resp.Updates.UpdatedRange, nil
	}
	return rng, nil
}

func (c *Client) needsHeader(ctx context.Context) (bool, error) {
	c.mu.Lock()
	checked := c.headerChecked
	c.mu.Unlock()
	if checked {
		return false, nil
	}

	rng := fmt.Sprintf("%s!A1:%s1", quoteSheet(c.sheetName), lastColumn)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return false, fmt.Errorf("read header of %s: %w", c.sheetName, err)
	}
	return len(resp.Values) == 0, nil
}

func (c *Client) SheetName() string {
	return c.sheetName
}

// quoteSheet wraps names containing spaces or punctuation in single quotes,
// as A1 notation requires.
func quoteSheet(name string) string {
	if strings.ContainsAny(name, " '!:") {
		return "'" + strings.ReplaceAll(name, "'", "''") + "'"
	}
	return name
}

func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
