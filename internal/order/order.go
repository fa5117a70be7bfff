package order

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusPending   Status = "pending"
	StatusOnHold    Status = "on-hold"
	StatusPaid      Status = "paid"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// ErrNotFound is returned when an order does not exist.
var ErrNotFound = errors.New("order: not found")

// Billing is the buyer's billing contact and address.
type Billing struct {
	FirstName  string `json:"first_name,omitempty"`
	LastName   string `json:"last_name,omitempty"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Address1   string `json:"address_1,omitempty"`
	Address2   string `json:"address_2,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postcode,omitempty"`
	Country    string `json:"country,omitempty"`
}

// Order is a shop order as seen by the payment gateway.
type Order struct {
	ID            int64
	Status        Status
	Total         decimal.Decimal
	Currency      string
	CustomerID    int64
	SessionID     string
	Billing       Billing
	TransactionID string
	StatusReason  string
	PaidAt        *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NeedsPayment reports whether the buyer may (re)start a payment for the order.
func (o Order) NeedsPayment() bool {
	return o.Status == StatusPending || o.Status == StatusFailed
}

// Note is an audit entry attached to an order.
type Note struct {
	OrderID   int64
	Body      string
	CreatedAt time.Time
}

// Transition describes a compare-and-set status change. The change is applied
// only when the current status is one of From, and Note is recorded only when
// the change is applied.
type Transition struct {
	To            Status
	From          []Status
	TransactionID string
	Reason        string
	Note          string
}

func (t Transition) allows(current Status) bool {
	return slices.Contains(t.From, current)
}

// PaymentComplete marks an order paid with the processor transaction id. A
// cancelled order is still accepted because the buyer has been charged.
func PaymentComplete(transactionID, note string) Transition {
	return Transition{
		To:            StatusPaid,
		From:          []Status{StatusPending, StatusOnHold, StatusFailed, StatusCancelled},
		TransactionID: transactionID,
		Note:          note,
	}
}

// PaymentFailed marks an unpaid order failed.
func PaymentFailed(reason string) Transition {
	return Transition{
		To:     StatusFailed,
		From:   []Status{StatusPending, StatusOnHold},
		Reason: reason,
		Note:   reason,
	}
}

// PaymentOnHold parks a pending order for manual review.
func PaymentOnHold(reason string) Transition {
	return Transition{
		To:     StatusOnHold,
		From:   []Status{StatusPending},
		Reason: reason,
		Note:   reason,
	}
}

// CancelledByCustomer cancels an order the buyer abandoned before paying.
func CancelledByCustomer() Transition {
	return Transition{
		To:     StatusCancelled,
		From:   []Status{StatusPending, StatusFailed},
		Reason: "Order cancelled by customer.",
		Note:   "Order cancelled by customer.",
	}
}

// Store owns order records and their status transitions.
type Store interface {
	Get(ctx context.Context, id int64) (Order, error)
	// Transition applies t atomically and reports whether the status changed.
	Transition(ctx context.Context, id int64, t Transition) (bool, error)
	Notes(ctx context.Context, id int64) ([]Note, error)
}
