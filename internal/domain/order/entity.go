package order

import (
	"encoding/json"
	"time"

	"storefront/internal/domain/checkout"
	"storefront/internal/pkg/errs"
	"storefront/internal/pkg/money"

	"github.com/google/uuid"
)

var (
	ErrNoItems      = errs.New("order must have at least one item")
	ErrInvalidTotal = errs.New("order total must not be negative")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// CanTransitionTo enforces the forward-only lifecycle:
// pending may become completed or failed, terminal states never move.
func (s Status) CanTransitionTo(next Status) bool {
	return s == StatusPending && (next == StatusCompleted || next == StatusFailed)
}

type Item struct {
	ProductID uuid.UUID
	Quantity  int32
	UnitPrice money.Cents
}

type Order struct {
	id              uuid.UUID
	userID          uuid.UUID
	totalCents      money.Cents
	status          Status
	sessionID       string
	shippingAddress json.RawMessage
	items           []Item
	createdAt       time.Time
}

// NewSettled builds the order materialized from a paid session. The total
// comes from the processor's reported charge, not from the snapshot.
func NewSettled(userID uuid.UUID, sessionID string, total money.Cents, snapshot *checkout.CartSnapshot, shippingAddress json.RawMessage, now time.Time) (*Order, error) {
	if total < 0 {
		return nil, ErrInvalidTotal
	}
	snapItems := snapshot.Items()
	if len(snapItems) == 0 {
		return nil, ErrNoItems
	}
	items := make([]Item, len(snapItems))
	for i, it := range snapItems {
		items[i] = Item{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		}
	}
	return &Order{
		id:              uuid.New(),
		userID:          userID,
		totalCents:      total,
		status:          StatusCompleted,
		sessionID:       sessionID,
		shippingAddress: shippingAddress,
		items:           items,
		createdAt:       now,
	}, nil
}

// NewStockFailed records a paid session whose materialization was aborted
// by a stock shortfall. No items are attached; the row exists so manual
// reconciliation can find the collected money.
func NewStockFailed(userID uuid.UUID, sessionID string, total money.Cents, now time.Time) *Order {
	return &Order{
		id:         uuid.New(),
		userID:     userID,
		totalCents: total,
		status:     StatusFailed,
		sessionID:  sessionID,
		createdAt:  now,
	}
}

func (o *Order) ID() uuid.UUID                     { return o.id }
func (o *Order) UserID() uuid.UUID                 { return o.userID }
func (o *Order) Total() money.Cents                { return o.totalCents }
func (o *Order) Status() Status                    { return o.status }
func (o *Order) SessionID() string                 { return o.sessionID }
func (o *Order) ShippingAddress() json.RawMessage  { return o.shippingAddress }
func (o *Order) Items() []Item                     { return o.items }
func (o *Order) CreatedAt() time.Time              { return o.createdAt }

// ItemSum returns the conservation total: sum of unit_price * quantity.
func (o *Order) ItemSum() money.Cents {
	var sum money.Cents
	for _, it := range o.items {
		sum += it.UnitPrice * money.Cents(it.Quantity)
	}
	return sum
}
