package core

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
)

const (
	CategoryGroceries     Category = "Groceries"
	CategoryTransport     Category = "Transport"
	CategoryUtilities     Category = "Utilities"
	CategoryDining        Category = "Dining"
	CategoryShopping      Category = "Shopping"
	CategoryEntertainment Category = "Entertainment"
	CategoryHealthcare    Category = "Healthcare"
	CategoryEducation     Category = "Education"
	CategoryOther         Category = "Other"
)

const (
	PaymentCash          PaymentMethod = "Cash"
	PaymentCreditCard    PaymentMethod = "Credit Card"
	PaymentDebitCard     PaymentMethod = "Debit Card"
	PaymentDigitalWallet PaymentMethod = "Digital Wallet"
	PaymentBankTransfer  PaymentMethod = "Bank Transfer"
)

// MaxDescriptionLength bounds Expense.Description after trimming.
const MaxDescriptionLength = 500

// MinPasswordLength is the shortest password accepted at registration.
const MinPasswordLength = 6

// MaxPasswordLength is the bcrypt input limit in bytes.
const MaxPasswordLength = 72

type (
	// Category is the closed set of spending categories.
	Category string

	// PaymentMethod is the closed set of ways an expense was paid.
	PaymentMethod string

	Expense struct {
		ID            string        `json:"id"`
		UserID        string        `json:"userId"`
		Amount        Money         `json:"amount"`
		Category      Category      `json:"category"`
		Merchant      string        `json:"merchant"`
		Date          time.Time     `json:"date"`
		PaymentMethod PaymentMethod `json:"paymentMethod"`
		Description   string        `json:"description,omitempty"`
		CreatedAt     time.Time     `json:"createdAt"`
		UpdatedAt     time.Time     `json:"updatedAt"`
	}

	// ExpensePatch carries the fields of an update request. Nil fields are
	// left untouched.
	ExpensePatch struct {
		Amount        *Money         `json:"amount,omitempty"`
		Category      *Category      `json:"category,omitempty"`
		Merchant      *string        `json:"merchant,omitempty"`
		Date          *time.Time     `json:"date,omitempty"`
		PaymentMethod *PaymentMethod `json:"paymentMethod,omitempty"`
		Description   *string        `json:"description,omitempty"`
	}

	User struct {
		ID           string    `json:"id"`
		Name         string    `json:"name"`
		Email        string    `json:"email"`
		PasswordHash string    `json:"-"`
		CreatedAt    time.Time `json:"createdAt"`
	}

	Registration struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	Credentials struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidCategory = errors.New("invalid category")
	ErrInvalidPayment  = errors.New("invalid payment method")
	ErrEmptyMerchant   = errors.New("empty merchant")
)

// Categories lists every valid Category in display order.
var Categories = []Category{
	CategoryGroceries, CategoryTransport, CategoryUtilities, CategoryDining,
	CategoryShopping, CategoryEntertainment, CategoryHealthcare,
	CategoryEducation, CategoryOther,
}

// PaymentMethods lists every valid PaymentMethod.
var PaymentMethods = []PaymentMethod{
	PaymentCash, PaymentCreditCard, PaymentDebitCard, PaymentDigitalWallet, PaymentBankTransfer,
}

func (c Category) Valid() bool {
	for _, v := range Categories {
		if c == v {
			return true
		}
	}
	return false
}

func (p PaymentMethod) Valid() bool {
	for _, v := range PaymentMethods {
		if p == v {
			return true
		}
	}
	return false
}

func (m Money) Validate() error {
	if m.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Normalize trims free-text fields in place.
func (e *Expense) Normalize() {
	e.Merchant = strings.TrimSpace(e.Merchant)
	e.Description = strings.TrimSpace(e.Description)
}

// Validate checks every field and reports all problems at once.
// Callers should Normalize first.
func (e Expense) Validate() error {
	var errs ValidationErrors
	if e.UserID == "" {
		errs.Add("userId", "owner is required")
	}
	if err := e.Amount.Validate(); err != nil {
		errs.Add("amount", "amount must be zero or greater")
	}
	if !e.Category.Valid() {
		errs.Add("category", fmt.Sprintf("category must be one of %s", joinValues(Categories)))
	}
	if e.Merchant == "" {
		errs.Add("merchant", "merchant is required")
	}
	if e.Date.IsZero() {
		errs.Add("date", "date is required")
	}
	if !e.PaymentMethod.Valid() {
		errs.Add("paymentMethod", fmt.Sprintf("paymentMethod must be one of %s", joinValues(PaymentMethods)))
	}
	if len([]rune(e.Description)) > MaxDescriptionLength {
		errs.Add("description", fmt.Sprintf("description too long (max %d characters)", MaxDescriptionLength))
	}
	return errs.OrNil()
}

// Apply copies the non-nil fields of p onto e. Owner, id and timestamps are
// never touched.
func (p ExpensePatch) Apply(e *Expense) {
	if p.Amount != nil {
		e.Amount = *p.Amount
	}
	if p.Category != nil {
		e.Category = *p.Category
	}
	if p.Merchant != nil {
		e.Merchant = *p.Merchant
	}
	if p.Date != nil {
		e.Date = p.Date.UTC()
	}
	if p.PaymentMethod != nil {
		e.PaymentMethod = *p.PaymentMethod
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	e.Normalize()
}

// IsEmpty reports whether the patch would change nothing.
func (p ExpensePatch) IsEmpty() bool {
	return p.Amount == nil && p.Category == nil && p.Merchant == nil &&
		p.Date == nil && p.PaymentMethod == nil && p.Description == nil
}

func (r *Registration) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
}

func (r Registration) Validate() error {
	var errs ValidationErrors
	if r.Name == "" {
		errs.Add("name", "name is required")
	}
	if addr, err := mail.ParseAddress(r.Email); err != nil || addr.Address != r.Email {
		errs.Add("email", "a valid email is required")
	}
	if len(r.Password) < MinPasswordLength {
		errs.Add("password", fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	} else if len(r.Password) > MaxPasswordLength {
		errs.Add("password", fmt.Sprintf("password must be at most %d bytes", MaxPasswordLength))
	}
	return errs.OrNil()
}

func (c Credentials) Validate() error {
	var errs ValidationErrors
	if strings.TrimSpace(c.Email) == "" {
		errs.Add("email", "email is required")
	}
	if c.Password == "" {
		errs.Add("password", "password is required")
	}
	return errs.OrNil()
}

func joinValues[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}
