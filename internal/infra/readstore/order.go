package readstore

import (
	"context"
	"errors"

	"storefront/internal/infra"
	"storefront/internal/infra/db"
	"storefront/internal/usecase/queries"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type OrderReadStore struct {
	db db.DBTX
}

func NewOrderReadStore(dbtx db.DBTX) *OrderReadStore {
	return &OrderReadStore{db: dbtx}
}

func (r *OrderReadStore) FindByID(ctx context.Context, id uuid.UUID) (*queries.OrderView, error) {
	const q = `
SELECT id, user_id, total_cents, status, stripe_session_id, shipping_address, created_at
FROM orders
WHERE id = $1
`
	var view queries.OrderView
	var userID uuid.NullUUID
	err := r.db.QueryRow(ctx, q, id).Scan(
		&view.ID, &userID, &view.TotalCents, &view.Status, &view.SessionID, &view.ShippingAddress, &view.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, infra.WrapRepoErr("order not found", err)
		}
		return nil, infra.WrapRepoErr("failed to find order", err)
	}
	view.UserID = userID.UUID

	items, err := r.fetchItems(ctx, view.ID)
	if err != nil {
		return nil, err
	}
	view.Items = items
	return &view, nil
}

func (r *OrderReadStore) fetchItems(ctx context.Context, orderID uuid.UUID) ([]queries.OrderItemView, error) {
	const q = `
SELECT oi.product_id, COALESCE(p.name, ''), oi.quantity, oi.unit_price_cents
FROM order_items oi
LEFT JOIN products p ON p.id = oi.product_id
WHERE oi.order_id = $1
ORDER BY oi.id
`
	rows, err := r.db.Query(ctx, q, orderID)
	if err != nil {
		return nil, infra.WrapRepoErr("failed to query order items", err)
	}
	defer rows.Close()

	var items []queries.OrderItemView
	for rows.Next() {
		var it queries.OrderItemView
		if err := rows.Scan(&it.ProductID, &it.ProductName, &it.Quantity, &it.UnitPriceCents); err != nil {
			return nil, infra.WrapRepoErr("failed to scan order item", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, infra.WrapRepoErr("failed to read order items", err)
	}
	return items, nil
}

var _ queries.OrderReadStore = (*OrderReadStore)(nil)
