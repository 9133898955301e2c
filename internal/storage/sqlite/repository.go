// Package sqlite is the embedded SQL Store. Dates are stored as UTC unix
// milliseconds so range predicates compare integers.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"moneylens/internal/core"
	"moneylens/internal/query"
	"moneylens/internal/stats"
	"moneylens/internal/storage"
)

const expenseColumns = "id, user_id, amount_cents, category, merchant, date, payment_method, description, created_at, updated_at"

var sortColumns = map[query.SortField]string{
	query.SortDate:          "date",
	query.SortAmount:        "amount_cents",
	query.SortMerchant:      "merchant",
	query.SortCategory:      "category",
	query.SortPaymentMethod: "payment_method",
}

type Repository struct {
	db  *sql.DB
	now func() time.Time
}

var _ storage.Store = (*Repository)(nil)

// Open creates the database file if needed, applies migrations and returns
// a ready Repository.
func Open(dbPath string) (*Repository, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}
	dsn := dbPath + "?_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, err
	}

	slog.Info("SQLite store ready", "path", dbPath)
	return &Repository{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	now := r.now()
	e.ID = uuid.NewString()
	e.Date = e.Date.UTC()
	e.CreatedAt, e.UpdatedAt = now, now

	stmt, args, err := sq.Insert("expenses").
		Columns("id", "user_id", "amount_cents", "category", "merchant", "date", "payment_method", "description", "created_at", "updated_at").
		Values(e.ID, e.UserID, e.Amount.Cents, string(e.Category), e.Merchant, toMillis(e.Date), string(e.PaymentMethod), e.Description, toMillis(now), toMillis(now)).
		ToSql()
	if err != nil {
		return core.Expense{}, fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, stmt, args...); err != nil {
		return core.Expense{}, fmt.Errorf("insert expense: %w", err)
	}
	return truncate(e), nil
}

func (r *Repository) ListExpenses(ctx context.Context, q query.ExpenseQuery) ([]core.Expense, error) {
	dir := "DESC"
	if q.Order == query.Asc {
		dir = "ASC"
	}
	col, ok := sortColumns[q.Sort]
	if !ok {
		col = "date"
	}

	b := sq.Select(expenseColumns).
		From("expenses").
		Where(expenseFilter(q.UserID, q.Range, q.Category)).
		OrderBy(col+" "+dir, "id "+dir).
		Limit(uint64(q.Limit)).
		Offset(uint64(q.Skip))

	stmt, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	out := make([]core.Expense, 0)
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *Repository) UpdateExpense(ctx context.Context, userID, id string, mutate func(*core.Expense) error) (core.Expense, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Expense{}, fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback()

	stmt, args, err := sq.Select(expenseColumns).From("expenses").
		Where(sq.Eq{"id": id, "user_id": userID}).ToSql()
	if err != nil {
		return core.Expense{}, fmt.Errorf("build select: %w", err)
	}
	e, err := scanExpense(tx.QueryRowContext(ctx, stmt, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, storage.ErrNotFound
	}
	if err != nil {
		return core.Expense{}, err
	}

	if err := mutate(&e); err != nil {
		return core.Expense{}, err
	}
	e.ID, e.UserID = id, userID
	e.Date = e.Date.UTC()
	e.UpdatedAt = r.now()

	stmt, args, err = sq.Update("expenses").SetMap(map[string]any{
		"amount_cents":   e.Amount.Cents,
		"category":       string(e.Category),
		"merchant":       e.Merchant,
		"date":           toMillis(e.Date),
		"payment_method": string(e.PaymentMethod),
		"description":    e.Description,
		"updated_at":     toMillis(e.UpdatedAt),
	}).Where(sq.Eq{"id": id, "user_id": userID}).ToSql()
	if err != nil {
		return core.Expense{}, fmt.Errorf("build update: %w", err)
	}
	if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
		return core.Expense{}, fmt.Errorf("update expense: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return core.Expense{}, fmt.Errorf("commit update: %w", err)
	}
	return truncate(e), nil
}

func (r *Repository) DeleteExpense(ctx context.Context, userID, id string) error {
	stmt, args, err := sq.Delete("expenses").Where(sq.Eq{"id": id, "user_id": userID}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	res, err := r.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *Repository) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	u.ID = uuid.NewString()
	u.CreatedAt = r.now()

	stmt, args, err := sq.Insert("users").
		Columns("id", "name", "email", "password_hash", "created_at").
		Values(u.ID, u.Name, u.Email, u.PasswordHash, toMillis(u.CreatedAt)).
		ToSql()
	if err != nil {
		return core.User{}, fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, stmt, args...); err != nil {
		if isUniqueViolation(err) {
			return core.User{}, storage.ErrDuplicateEmail
		}
		return core.User{}, fmt.Errorf("insert user: %w", err)
	}
	u.CreatedAt = fromMillis(toMillis(u.CreatedAt))
	return u, nil
}

func (r *Repository) UserByEmail(ctx context.Context, email string) (core.User, error) {
	return r.userWhere(ctx, sq.Eq{"email": email})
}

func (r *Repository) UserByID(ctx context.Context, id string) (core.User, error) {
	return r.userWhere(ctx, sq.Eq{"id": id})
}

func (r *Repository) userWhere(ctx context.Context, pred sq.Eq) (core.User, error) {
	stmt, args, err := sq.Select("id", "name", "email", "password_hash", "created_at").
		From("users").Where(pred).ToSql()
	if err != nil {
		return core.User{}, fmt.Errorf("build select: %w", err)
	}
	var (
		u       core.User
		created int64
	)
	err = r.db.QueryRowContext(ctx, stmt, args...).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, storage.ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("select user: %w", err)
	}
	u.CreatedAt = fromMillis(created)
	return u, nil
}

// Summary implements stats.Source.
func (r *Repository) Summary(ctx context.Context, q query.StatsQuery) (stats.Summary, error) {
	stmt, args, err := sq.Select("COALESCE(SUM(amount_cents), 0)", "COUNT(*)", "MIN(date)", "MAX(date)").
		From("expenses").Where(expenseFilter(q.UserID, q.Range, "")).ToSql()
	if err != nil {
		return stats.Summary{}, fmt.Errorf("build summary: %w", err)
	}
	var (
		s           stats.Summary
		first, last sql.NullInt64
	)
	if err := r.db.QueryRowContext(ctx, stmt, args...).Scan(&s.Total.Cents, &s.Count, &first, &last); err != nil {
		return stats.Summary{}, fmt.Errorf("summary: %w", err)
	}
	if first.Valid {
		s.First = fromMillis(first.Int64)
		s.Last = fromMillis(last.Int64)
	}
	return s, nil
}

// CategoryBreakdown implements stats.Source.
func (r *Repository) CategoryBreakdown(ctx context.Context, q query.StatsQuery) ([]core.CategoryTotal, error) {
	rows, err := r.groupBy(ctx, q, "category")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []core.CategoryTotal{}
	for rows.Next() {
		var c core.CategoryTotal
		if err := rows.Scan(&c.Category, &c.Total.Cents, &c.Count); err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// PaymentMethodBreakdown implements stats.Source.
func (r *Repository) PaymentMethodBreakdown(ctx context.Context, q query.StatsQuery) ([]core.PaymentMethodTotal, error) {
	rows, err := r.groupBy(ctx, q, "payment_method")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []core.PaymentMethodTotal{}
	for rows.Next() {
		var p core.PaymentMethodTotal
		if err := rows.Scan(&p.PaymentMethod, &p.Total.Cents, &p.Count); err != nil {
			return nil, fmt.Errorf("scan payment method total: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Trend implements stats.Source. SQLite has no ISO week function, so rows
// are bucketed in Go.
func (r *Repository) Trend(ctx context.Context, q query.StatsQuery) ([]core.TrendGroup, error) {
	stmt, args, err := sq.Select("date", "amount_cents").From("expenses").
		Where(expenseFilter(q.UserID, q.Range, "")).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build trend: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("trend: %w", err)
	}
	defer rows.Close()

	b := stats.NewTrendBuilder()
	for rows.Next() {
		var (
			ms    int64
			cents int64
		)
		if err := rows.Scan(&ms, &cents); err != nil {
			return nil, fmt.Errorf("scan trend row: %w", err)
		}
		b.Observe(fromMillis(ms), core.Money{Cents: cents})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return b.Groups(), nil
}

func (r *Repository) groupBy(ctx context.Context, q query.StatsQuery, column string) (*sql.Rows, error) {
	stmt, args, err := sq.Select(column, "SUM(amount_cents) AS total", "COUNT(*)").
		From("expenses").
		Where(expenseFilter(q.UserID, q.Range, "")).
		GroupBy(column).
		OrderBy("total DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build %s breakdown: %w", column, err)
	}
	rows, err := r.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("%s breakdown: %w", column, err)
	}
	return rows, nil
}

// expenseFilter always carries the owner equality.
func expenseFilter(userID string, rng query.Range, cat core.Category) sq.And {
	and := sq.And{sq.Eq{"user_id": userID}}
	if !rng.From.IsZero() {
		and = append(and, sq.GtOrEq{"date": toMillis(rng.From)})
	}
	if !rng.To.IsZero() {
		and = append(and, sq.LtOrEq{"date": toMillis(rng.To)})
	}
	if cat != "" {
		and = append(and, sq.Eq{"category": string(cat)})
	}
	return and
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(row rowScanner) (core.Expense, error) {
	var (
		e                      core.Expense
		date, created, updated int64
	)
	err := row.Scan(&e.ID, &e.UserID, &e.Amount.Cents, &e.Category, &e.Merchant, &date, &e.PaymentMethod, &e.Description, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, err
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("scan expense: %w", err)
	}
	e.Date = fromMillis(date)
	e.CreatedAt = fromMillis(created)
	e.UpdatedAt = fromMillis(updated)
	return e, nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}

func toMillis(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

// truncate drops sub-millisecond precision so returned records equal what a
// later read yields.
func truncate(e core.Expense) core.Expense {
	e.Date = fromMillis(toMillis(e.Date))
	e.CreatedAt = fromMillis(toMillis(e.CreatedAt))
	e.UpdatedAt = fromMillis(toMillis(e.UpdatedAt))
	return e
}
