package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"storefront/internal/domain/order"
	"storefront/internal/infra"
	"storefront/internal/infra/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type OrderRecord struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	TotalCents      int64
	Status          string
	SessionID       string
	ShippingAddress json.RawMessage
	CreatedAt       time.Time
}

type OrderRepository struct {
	db db.DBTX
}

func NewOrderRepository(dbtx db.DBTX) *OrderRepository {
	return &OrderRepository{db: dbtx}
}

// Create inserts the order row keyed by its session id. The unique
// constraint on stripe_session_id is the idempotency guard: a concurrent
// settlement losing the race surfaces as KindDuplicateKey, never as a
// second order.
func (r *OrderRepository) Create(ctx context.Context, tx db.DBTX, o *order.Order) error {
	const q = `
INSERT INTO orders (id, user_id, total_cents, status, stripe_session_id, shipping_address, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`
	// Guest orders carry no user; the column stays NULL for them.
	userID := uuid.NullUUID{UUID: o.UserID(), Valid: o.UserID() != uuid.Nil}
	_, err := tx.Exec(ctx, q,
		o.ID(), userID, o.Total().Int64(), string(o.Status()), o.SessionID(), o.ShippingAddress(), o.CreatedAt())
	if err != nil {
		return infra.WrapRepoErr("failed to create order", err)
	}
	return nil
}

func (r *OrderRepository) CreateItems(ctx context.Context, tx db.DBTX, orderID uuid.UUID, items []order.Item) error {
	const q = `
INSERT INTO order_items (id, order_id, product_id, quantity, unit_price_cents)
VALUES ($1, $2, $3, $4, $5)
`
	for _, it := range items {
		if _, err := tx.Exec(ctx, q, uuid.New(), orderID, it.ProductID, it.Quantity, it.UnitPrice.Int64()); err != nil {
			return infra.WrapRepoErr("failed to create order item", err)
		}
	}
	return nil
}

func (r *OrderRepository) FindBySessionID(ctx context.Context, dbtx db.DBTX, sessionID string) (*OrderRecord, error) {
	const q = `
SELECT id, user_id, total_cents, status, stripe_session_id, shipping_address, created_at
FROM orders
WHERE stripe_session_id = $1
`
	var rec OrderRecord
	var userID uuid.NullUUID
	err := dbtx.QueryRow(ctx, q, sessionID).Scan(
		&rec.ID, &userID, &rec.TotalCents, &rec.Status, &rec.SessionID, &rec.ShippingAddress, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, infra.WrapRepoErr("failed to find order by session", err)
	}
	rec.UserID = userID.UUID
	return &rec, nil
}
