package types

import "time"

// EventKind classifies a financial event as money coming in or going out.
type EventKind string

const (
	EventKindIncome  EventKind = "income"
	EventKindExpense EventKind = "expense"
)

// Valid reports whether k is a known event kind.
func (k EventKind) Valid() bool {
	return k == EventKindIncome || k == EventKindExpense
}

// Event represents a single financial event recorded by a user.
type Event struct {
	// ID is the unique identifier of the event.
	ID int64 `json:"id" db:"id"`

	// UserID identifies the user who owns the event.
	UserID string `json:"user_id" db:"user_id"`

	// Title is a short human-readable label.
	Title string `json:"title" db:"title"`

	// Description holds optional free-form notes.
	Description string `json:"description" db:"description"`

	// AmountCents is the monetary amount in minor currency units.
	AmountCents int64 `json:"amount_cents" db:"amount_cents"`

	// Currency is the ISO 4217 code, e.g. "EUR".
	Currency string `json:"currency" db:"currency"`

	// Category is a user-chosen grouping such as "rent" or "salary".
	Category string `json:"category" db:"category"`

	// Kind is either income or expense.
	Kind EventKind `json:"kind" db:"kind"`

	// OccurredAt is when the event happened, as reported by the user.
	OccurredAt time.Time `json:"occurred_at" db:"occurred_at"`

	// ReceiptKey is the object storage key of the attached receipt, if any.
	ReceiptKey string `json:"receipt_key,omitempty" db:"receipt_key"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// EventFilter narrows and orders an event listing.
type EventFilter struct {
	UserID   string
	Kind     EventKind
	Category string
	From     *time.Time
	To       *time.Time
	Sort     string
	Desc     bool
	Offset   int
	Limit    int
}
