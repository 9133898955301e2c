package mongo

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"moneylens/internal/core"
)

type expenseDoc struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	UserID        string             `bson:"userId"`
	AmountCents   int64              `bson:"amountCents"`
	Category      string             `bson:"category"`
	Merchant      string             `bson:"merchant"`
	Date          time.Time          `bson:"date"`
	PaymentMethod string             `bson:"paymentMethod"`
	Description   string             `bson:"description,omitempty"`
	CreatedAt     time.Time          `bson:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt"`
}

type userDoc struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Name         string             `bson:"name"`
	Email        string             `bson:"email"`
	PasswordHash string             `bson:"password"`
	CreatedAt    time.Time          `bson:"createdAt"`
}

// groupRow decodes a {_id, total, count} aggregation result.
type groupRow struct {
	Key   string `bson:"_id"`
	Total int64  `bson:"total"`
	Count int64  `bson:"count"`
}

type trendRow struct {
	Key struct {
		Year  int `bson:"year"`
		Month int `bson:"month"`
		Week  int `bson:"week"`
	} `bson:"_id"`
	Total int64 `bson:"total"`
	Count int64 `bson:"count"`
}

type summaryRow struct {
	Total int64     `bson:"total"`
	Count int64     `bson:"count"`
	First time.Time `bson:"first"`
	Last  time.Time `bson:"last"`
}

func toExpenseDoc(e core.Expense) expenseDoc {
	return expenseDoc{
		UserID:        e.UserID,
		AmountCents:   e.Amount.Cents,
		Category:      string(e.Category),
		Merchant:      e.Merchant,
		Date:          e.Date.UTC(),
		PaymentMethod: string(e.PaymentMethod),
		Description:   e.Description,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
}

func (d expenseDoc) toCore() core.Expense {
	return core.Expense{
		ID:            d.ID.Hex(),
		UserID:        d.UserID,
		Amount:        core.Money{Cents: d.AmountCents},
		Category:      core.Category(d.Category),
		Merchant:      d.Merchant,
		Date:          d.Date.UTC(),
		PaymentMethod: core.PaymentMethod(d.PaymentMethod),
		Description:   d.Description,
		CreatedAt:     d.CreatedAt.UTC(),
		UpdatedAt:     d.UpdatedAt.UTC(),
	}
}

func (d userDoc) toCore() core.User {
	return core.User{
		ID:           d.ID.Hex(),
		Name:         d.Name,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		CreatedAt:    d.CreatedAt.UTC(),
	}
}
