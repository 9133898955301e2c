package http

import (
	"net/http"
	"strings"
	"time"

	"moneylens/internal/auth"
	"moneylens/internal/core"
	applog "moneylens/internal/log"
	"moneylens/internal/query"
)

// expenseRequest is the body of create and update calls. Every field is
// optional at the decoding stage; create and update apply their own rules.
type expenseRequest struct {
	Amount        *core.Money `json:"amount"`
	Category      *string     `json:"category"`
	Merchant      *string     `json:"merchant"`
	Date          *string     `json:"date"`
	PaymentMethod *string     `json:"paymentMethod"`
	Description   *string     `json:"description"`
}

func (req expenseRequest) date(errs *core.ValidationErrors) *time.Time {
	if req.Date == nil || strings.TrimSpace(*req.Date) == "" {
		return nil
	}
	t, _, err := query.ParseDate(strings.TrimSpace(*req.Date))
	if err != nil {
		errs.Add("date", "date must be YYYY-MM-DD or RFC 3339")
		return nil
	}
	return &t
}

// toExpense builds a new record. A missing amount is reported here because
// the zero Money is a valid amount.
func (req expenseRequest) toExpense() (core.Expense, error) {
	var errs core.ValidationErrors
	var e core.Expense
	if req.Amount == nil {
		errs.Add("amount", "amount is required")
	} else {
		e.Amount = *req.Amount
	}
	if req.Category != nil {
		e.Category = core.Category(*req.Category)
	}
	if req.Merchant != nil {
		e.Merchant = *req.Merchant
	}
	if d := req.date(&errs); d != nil {
		e.Date = *d
	}
	if req.PaymentMethod != nil {
		e.PaymentMethod = core.PaymentMethod(*req.PaymentMethod)
	}
	if req.Description != nil {
		e.Description = *req.Description
	}
	return e, errs.OrNil()
}

func (req expenseRequest) toPatch() (core.ExpensePatch, error) {
	var errs core.ValidationErrors
	p := core.ExpensePatch{
		Amount:      req.Amount,
		Merchant:    req.Merchant,
		Description: req.Description,
		Date:        req.date(&errs),
	}
	if req.Category != nil {
		c := core.Category(*req.Category)
		p.Category = &c
	}
	if req.PaymentMethod != nil {
		m := core.PaymentMethod(*req.PaymentMethod)
		p.PaymentMethod = &m
	}
	return p, errs.OrNil()
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())

	var req expenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	e, err := req.toExpense()
	if err != nil {
		writeError(w, r, err)
		return
	}

	created, err := s.expenses.CreateExpense(r.Context(), id.UserID, e)
	if err != nil {
		writeError(w, r, err)
		return
	}

	applog.FromContext(r.Context()).InfoContext(r.Context(), "Expense created",
		applog.NewFields().
			WithUser(id.UserID).
			WithExpense(created.ID, created.Amount.Cents, string(created.Category)).
			WithOperation(applog.OpCreate).
			ToSlice()...)
	NewJSONResponse().Status(http.StatusCreated).Payload(created).Write(w)
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())

	items, err := s.expenses.ListExpenses(r.Context(), id.UserID, query.ParamsFromValues(r.URL.Query()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if items == nil {
		items = []core.Expense{}
	}
	NewJSONResponse().Payload(items).Write(w)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())
	expenseID := r.PathValue("id")

	var req expenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		writeError(w, r, err)
		return
	}

	updated, err := s.expenses.UpdateExpense(r.Context(), id.UserID, expenseID, patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Payload(updated).Write(w)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())

	if err := s.expenses.DeleteExpense(r.Context(), id.UserID, r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Payload(map[string]string{"message": "Expense deleted successfully"}).Write(w)
}
