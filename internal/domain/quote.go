package domain

import (
	"time"

	"github.com/google/uuid"
)

// Quote statuses
const (
	QuoteStatusNew      = "new"
	QuoteStatusInReview = "in_review"
	QuoteStatusQuoted   = "quoted"
	QuoteStatusClosed   = "closed"
)

// QuoteStatuses lists every quote status
var QuoteStatuses = []string{QuoteStatusNew, QuoteStatusInReview, QuoteStatusQuoted, QuoteStatusClosed}

// quoteTransitions maps a status to the statuses it may move to
var quoteTransitions = map[string][]string{
	QuoteStatusNew:      {QuoteStatusInReview, QuoteStatusClosed},
	QuoteStatusInReview: {QuoteStatusQuoted, QuoteStatusClosed},
	QuoteStatusQuoted:   {QuoteStatusClosed},
	QuoteStatusClosed:   {},
}

// CanTransitionQuote reports whether a quote may move from one status to another.
// Re-applying the current status is allowed so admin notes can be edited.
func CanTransitionQuote(from, to string) bool {
	if from == to {
		_, known := quoteTransitions[from]
		return known
	}
	for _, next := range quoteTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// QuoteRequest is a customer inquiry for pricing on one or more products
type QuoteRequest struct {
	ID           uuid.UUID   `json:"id" db:"id"`
	CustomerName string      `json:"customer_name" db:"customer_name"`
	Email        string      `json:"email" db:"email"`
	Phone        string      `json:"phone" db:"phone"`
	Company      string      `json:"company" db:"company"`
	Message      string      `json:"message" db:"message"`
	Status       string      `json:"status" db:"status"`
	AdminNotes   string      `json:"admin_notes" db:"admin_notes"`
	Items        []QuoteItem `json:"items"`
	CreatedAt    time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at" db:"updated_at"`
}

// QuoteItem is one requested product line. ProductID becomes nil if the product is deleted;
// ProductName keeps the name the customer saw.
type QuoteItem struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	QuoteID     uuid.UUID  `json:"quote_id" db:"quote_id"`
	ProductID   *uuid.UUID `json:"product_id" db:"product_id"`
	ProductName string     `json:"product_name" db:"product_name"`
	Quantity    int        `json:"quantity" db:"quantity"`
	Notes       string     `json:"notes" db:"notes"`
}
