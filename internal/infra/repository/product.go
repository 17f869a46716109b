package repository

import (
	"context"

	"storefront/internal/infra"
	"storefront/internal/infra/db"

	"github.com/google/uuid"
)

type ProductRecord struct {
	ID         uuid.UUID
	Name       string
	PriceCents int64
	ImageURL   string
	Stock      int32
}

type ProductRepository struct {
	db db.DBTX
}

func NewProductRepository(dbtx db.DBTX) *ProductRepository {
	return &ProductRepository{db: dbtx}
}

func (r *ProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*ProductRecord, error) {
	const q = `
SELECT id, name, price_cents, image_url, stock
FROM products
WHERE id = $1
`
	var p ProductRecord
	if err := r.db.QueryRow(ctx, q, id).Scan(&p.ID, &p.Name, &p.PriceCents, &p.ImageURL, &p.Stock); err != nil {
		return nil, infra.WrapRepoErr("failed to find product", err)
	}
	return &p, nil
}

// DecrementStock applies a conditional decrement: the update only matches
// when enough stock remains, so two sessions racing for the last unit
// serialize on the row and exactly one wins.
func (r *ProductRepository) DecrementStock(ctx context.Context, tx db.DBTX, productID uuid.UUID, quantity int32) error {
	const q = `
UPDATE products
SET stock = stock - $2
WHERE id = $1 AND stock >= $2
`
	tag, err := tx.Exec(ctx, q, productID, quantity)
	if err != nil {
		return infra.WrapRepoErr("failed to decrement stock", err)
	}
	if tag.RowsAffected() == 0 {
		return infra.NewRepoErr(infra.KindInsufficientStock, "insufficient stock for product "+productID.String())
	}
	return nil
}
