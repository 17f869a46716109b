package shared

import (
	"context"
	"encoding/json"
	"time"

	"storefront/internal/domain/order"

	"github.com/google/uuid"
)

type UnitOfWork interface {
	// Within: Full transaction for write operations with retry logic
	Within(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// Reads: Single-query reads using implicit transactions
	Reads() CommandReads
}

// Tx exposes the transaction-bound repositories. Everything reached
// through one Tx commits or rolls back as a unit.
type Tx interface {
	Orders() OrderRepository
	Products() ProductRepository
	Carts() CartRepository
}

type CommandReads interface {
	OrderBySessionID(ctx context.Context, sessionID string) (*OrderSnapshot, error)
	CartItemsByUser(ctx context.Context, userID uuid.UUID) ([]CartItemSnapshot, error)
	// ProductByID returns (nil, nil) for unknown products.
	ProductByID(ctx context.Context, id uuid.UUID) (*ProductSnapshot, error)
}

// Minimal snapshot for command read operations
type OrderSnapshot struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	TotalCents int64
	Status     order.Status
	SessionID  string
	CreatedAt  time.Time
}

// ProductSnapshot is the catalog view used to price request lines that
// arrive without an explicit price.
type ProductSnapshot struct {
	ID         uuid.UUID
	Name       string
	PriceCents int64
	ImageURL   string
	Stock      int32
}

type CartItemSnapshot struct {
	ProductID      uuid.UUID
	ProductName    string
	UnitPriceCents int64
	Quantity       int32
	ImageURL       *string
}

type OrderRepository interface {
	Create(ctx context.Context, o *order.Order) error
	CreateItems(ctx context.Context, orderID uuid.UUID, items []order.Item) error
}

type ProductRepository interface {
	DecrementStock(ctx context.Context, productID uuid.UUID, quantity int32) error
}

type CartRepository interface {
	ClearByUser(ctx context.Context, userID uuid.UUID) (int64, error)
}

// PaymentGateway is the processor boundary. The processor owns the
// money-movement truth; nothing behind this interface touches the store.
type PaymentGateway interface {
	CreateSession(ctx context.Context, params CreateSessionParams) (*PaymentSession, error)
	RetrieveSession(ctx context.Context, sessionID string) (*SessionStatus, error)
	// FindOrCreateCustomer is best-effort: a failure downgrades the
	// session to a customer-less one, it does not fail checkout.
	FindOrCreateCustomer(ctx context.Context, email string, userID uuid.UUID) (string, error)
}

type SessionLineItem struct {
	Name           string
	Description    string
	ImageURL       string
	UnitPriceCents int64
	Quantity       int32
}

type CreateSessionParams struct {
	CustomerID string
	LineItems  []SessionLineItem
	SuccessURL string
	CancelURL  string
	Metadata   map[string]string
}

type PaymentSession struct {
	ID  string
	URL string
}

const (
	PaymentStatusPaid   = "paid"
	PaymentStatusUnpaid = "unpaid"
)

type SessionStatus struct {
	ID               string
	PaymentStatus    string
	AmountTotalCents int64
	Metadata         map[string]string
	ShippingAddress  json.RawMessage
}

func (s *SessionStatus) Paid() bool {
	return s.PaymentStatus == PaymentStatusPaid
}
