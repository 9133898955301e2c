// Package mongo is the document-database Store. Expenses and users live in
// the "expenses" and "users" collections; analytics run as server-side
// aggregation pipelines.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"moneylens/internal/core"
	"moneylens/internal/query"
	"moneylens/internal/stats"
	"moneylens/internal/storage"
)

const (
	expensesCollection = "expenses"
	usersCollection    = "users"
)

type Store struct {
	client   *mongo.Client
	expenses *mongo.Collection
	users    *mongo.Collection
	now      func() time.Time
}

var _ storage.Store = (*Store)(nil)

// Open connects to uri, selects database and ensures the indexes exist.
func Open(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(database)
	s := &Store{
		client:   client,
		expenses: db.Collection(expensesCollection),
		users:    db.Collection(usersCollection),
		now:      func() time.Time { return time.Now().UTC() },
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	slog.Info("MongoDB store ready", "database", database)
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.expenses.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}, {Key: "date", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("create expense index: %w", err)
	}
	_, err = s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create user email index: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Store) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	now := s.now().Truncate(time.Millisecond)
	e.CreatedAt, e.UpdatedAt = now, now
	e.Date = e.Date.UTC().Truncate(time.Millisecond)

	doc := toExpenseDoc(e)
	doc.ID = primitive.NewObjectID()
	if _, err := s.expenses.InsertOne(ctx, doc); err != nil {
		return core.Expense{}, fmt.Errorf("insert expense: %w", err)
	}
	return doc.toCore(), nil
}

func (s *Store) ListExpenses(ctx context.Context, q query.ExpenseQuery) ([]core.Expense, error) {
	opts := options.Find().
		SetSort(listSort(q)).
		SetSkip(int64(q.Skip)).
		SetLimit(int64(q.Limit))

	cur, err := s.expenses.Find(ctx, expenseFilter(q.UserID, q.Range, q.Category), opts)
	if err != nil {
		return nil, fmt.Errorf("find expenses: %w", err)
	}
	var docs []expenseDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode expenses: %w", err)
	}
	out := make([]core.Expense, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toCore())
	}
	return out, nil
}

func (s *Store) UpdateExpense(ctx context.Context, userID, id string, mutate func(*core.Expense) error) (core.Expense, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return core.Expense{}, storage.ErrNotFound
	}
	filter := bson.D{{Key: "_id", Value: oid}, {Key: "userId", Value: userID}}

	var doc expenseDoc
	if err := s.expenses.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return core.Expense{}, storage.ErrNotFound
		}
		return core.Expense{}, fmt.Errorf("find expense: %w", err)
	}

	e := doc.toCore()
	if err := mutate(&e); err != nil {
		return core.Expense{}, err
	}
	e.ID, e.UserID = id, userID
	e.Date = e.Date.UTC().Truncate(time.Millisecond)
	e.UpdatedAt = s.now().Truncate(time.Millisecond)

	set := bson.D{
		{Key: "amountCents", Value: e.Amount.Cents},
		{Key: "category", Value: string(e.Category)},
		{Key: "merchant", Value: e.Merchant},
		{Key: "date", Value: e.Date},
		{Key: "paymentMethod", Value: string(e.PaymentMethod)},
		{Key: "description", Value: e.Description},
		{Key: "updatedAt", Value: e.UpdatedAt},
	}
	res, err := s.expenses.UpdateOne(ctx, filter, bson.D{{Key: "$set", Value: set}})
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense: %w", err)
	}
	if res.MatchedCount == 0 {
		return core.Expense{}, storage.ErrNotFound
	}
	return e, nil
}

func (s *Store) DeleteExpense(ctx context.Context, userID, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return storage.ErrNotFound
	}
	res, err := s.expenses.DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}, {Key: "userId", Value: userID}})
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if res.DeletedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	doc := userDoc{
		ID:           primitive.NewObjectID(),
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		CreatedAt:    s.now().Truncate(time.Millisecond),
	}
	if _, err := s.users.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return core.User{}, storage.ErrDuplicateEmail
		}
		return core.User{}, fmt.Errorf("insert user: %w", err)
	}
	return doc.toCore(), nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (core.User, error) {
	return s.findUser(ctx, bson.D{{Key: "email", Value: email}})
}

func (s *Store) UserByID(ctx context.Context, id string) (core.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return core.User{}, storage.ErrNotFound
	}
	return s.findUser(ctx, bson.D{{Key: "_id", Value: oid}})
}

func (s *Store) findUser(ctx context.Context, filter bson.D) (core.User, error) {
	var doc userDoc
	if err := s.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return core.User{}, storage.ErrNotFound
		}
		return core.User{}, fmt.Errorf("find user: %w", err)
	}
	return doc.toCore(), nil
}

// Summary implements stats.Source.
func (s *Store) Summary(ctx context.Context, q query.StatsQuery) (stats.Summary, error) {
	var rows []summaryRow
	if err := s.aggregate(ctx, summaryPipeline(q), &rows); err != nil {
		return stats.Summary{}, fmt.Errorf("summary: %w", err)
	}
	if len(rows) == 0 {
		return stats.Summary{}, nil
	}
	r := rows[0]
	return stats.Summary{
		Total: core.Money{Cents: r.Total},
		Count: r.Count,
		First: r.First.UTC(),
		Last:  r.Last.UTC(),
	}, nil
}

// CategoryBreakdown implements stats.Source.
func (s *Store) CategoryBreakdown(ctx context.Context, q query.StatsQuery) ([]core.CategoryTotal, error) {
	var rows []groupRow
	if err := s.aggregate(ctx, breakdownPipeline(q, "category"), &rows); err != nil {
		return nil, fmt.Errorf("category breakdown: %w", err)
	}
	out := make([]core.CategoryTotal, 0, len(rows))
	for _, r := range rows {
		out = append(out, core.CategoryTotal{Category: core.Category(r.Key), Total: core.Money{Cents: r.Total}, Count: r.Count})
	}
	return out, nil
}

// PaymentMethodBreakdown implements stats.Source.
func (s *Store) PaymentMethodBreakdown(ctx context.Context, q query.StatsQuery) ([]core.PaymentMethodTotal, error) {
	var rows []groupRow
	if err := s.aggregate(ctx, breakdownPipeline(q, "paymentMethod"), &rows); err != nil {
		return nil, fmt.Errorf("payment method breakdown: %w", err)
	}
	out := make([]core.PaymentMethodTotal, 0, len(rows))
	for _, r := range rows {
		out = append(out, core.PaymentMethodTotal{PaymentMethod: core.PaymentMethod(r.Key), Total: core.Money{Cents: r.Total}, Count: r.Count})
	}
	return out, nil
}

// Trend implements stats.Source.
func (s *Store) Trend(ctx context.Context, q query.StatsQuery) ([]core.TrendGroup, error) {
	var rows []trendRow
	if err := s.aggregate(ctx, trendPipeline(q), &rows); err != nil {
		return nil, fmt.Errorf("trend: %w", err)
	}
	out := make([]core.TrendGroup, 0, len(rows))
	for _, r := range rows {
		out = append(out, core.TrendGroup{
			Year:  r.Key.Year,
			Month: r.Key.Month,
			Week:  r.Key.Week,
			Total: core.Money{Cents: r.Total},
			Count: r.Count,
		})
	}
	return out, nil
}

func (s *Store) aggregate(ctx context.Context, pipeline mongo.Pipeline, out any) error {
	cur, err := s.expenses.Aggregate(ctx, pipeline)
	if err != nil {
		return err
	}
	return cur.All(ctx, out)
}
