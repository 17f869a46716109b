package repository

import (
	"context"

	"storefront/internal/infra"
	"storefront/internal/infra/db"

	"github.com/google/uuid"
)

type CartItemRecord struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	ProductID      uuid.UUID
	ProductName    string
	UnitPriceCents int64
	Quantity       int32
	ImageURL       *string
}

type CartRepository struct {
	db db.DBTX
}

func NewCartRepository(dbtx db.DBTX) *CartRepository {
	return &CartRepository{db: dbtx}
}

func (r *CartRepository) ItemsByUser(ctx context.Context, userID uuid.UUID) ([]CartItemRecord, error) {
	const q = `
SELECT ci.id, ci.user_id, ci.product_id, p.name, p.price_cents, ci.quantity, p.image_url
FROM cart_items ci
JOIN products p ON p.id = ci.product_id
WHERE ci.user_id = $1
ORDER BY ci.created_at
`
	rows, err := r.db.Query(ctx, q, userID)
	if err != nil {
		return nil, infra.WrapRepoErr("failed to query cart items", err)
	}
	defer rows.Close()

	var items []CartItemRecord
	for rows.Next() {
		var it CartItemRecord
		if err := rows.Scan(&it.ID, &it.UserID, &it.ProductID, &it.ProductName, &it.UnitPriceCents, &it.Quantity, &it.ImageURL); err != nil {
			return nil, infra.WrapRepoErr("failed to scan cart item", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, infra.WrapRepoErr("failed to read cart items", err)
	}
	return items, nil
}

// ClearByUser removes the live cart rows after settlement. Zero rows is
// not an error: guests and already-cleared carts both land here.
func (r *CartRepository) ClearByUser(ctx context.Context, tx db.DBTX, userID uuid.UUID) (int64, error) {
	const q = `
DELETE FROM cart_items
WHERE user_id = $1
`
	tag, err := tx.Exec(ctx, q, userID)
	if err != nil {
		return 0, infra.WrapRepoErr("failed to clear cart", err)
	}
	return tag.RowsAffected(), nil
}
