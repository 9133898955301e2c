package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"moneylens/internal/core"
)

type EventType string

const (
	EventExpenseCreated EventType = "expense.created"
	EventExpenseUpdated EventType = "expense.updated"
	EventExpenseDeleted EventType = "expense.deleted"
)

// ExpenseEvent announces a committed expense write. Expense is nil for
// deletions.
type ExpenseEvent struct {
	Type      EventType     `json:"type"`
	ExpenseID string        `json:"expenseId"`
	UserID    string        `json:"userId"`
	Expense   *core.Expense `json:"expense,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

func NewExpenseEvent(t EventType, e core.Expense) ExpenseEvent {
	ev := ExpenseEvent{
		Type:      t,
		ExpenseID: e.ID,
		UserID:    e.UserID,
		Timestamp: time.Now().UTC(),
	}
	if t != EventExpenseDeleted {
		ev.Expense = &e
	}
	return ev
}

func (m ExpenseEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseEventFromJSON decodes and sanity-checks a message body.
func ExpenseEventFromJSON(data []byte) (*ExpenseEvent, error) {
	var ev ExpenseEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	switch ev.Type {
	case EventExpenseCreated, EventExpenseUpdated:
		if ev.Expense == nil {
			return nil, fmt.Errorf("%s event without expense", ev.Type)
		}
	case EventExpenseDeleted:
	default:
		return nil, fmt.Errorf("unknown event type %q", ev.Type)
	}
	if ev.ExpenseID == "" || ev.UserID == "" {
		return nil, fmt.Errorf("event missing expense or user id")
	}
	return &ev, nil
}
