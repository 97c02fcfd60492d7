package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const getActivePromotionForProduct = `
SELECT id, product_id, discount_percentage, discount_value, expires_at, created_at
FROM promotions
WHERE product_id = $1
  AND (expires_at IS NULL OR expires_at > $2)
ORDER BY created_at DESC
LIMIT 1
`

type GetActivePromotionForProductParams struct {
	ProductID uuid.UUID
	Now       time.Time
}

// GetActivePromotionForProduct returns the newest unexpired promotion for a
// product, pgx.ErrNoRows when there is none.
func (q *Queries) GetActivePromotionForProduct(ctx context.Context, arg GetActivePromotionForProductParams) (Promotion, error) {
	return scanPromotion(q.db.QueryRow(ctx, getActivePromotionForProduct, arg.ProductID, arg.Now))
}

const createPromotion = `
INSERT INTO promotions (product_id, discount_percentage, discount_value, expires_at)
VALUES ($1, $2, $3, $4)
RETURNING id, product_id, discount_percentage, discount_value, expires_at, created_at
`

type CreatePromotionParams struct {
	ProductID          uuid.UUID
	DiscountPercentage pgtype.Numeric
	DiscountValue      pgtype.Numeric
	ExpiresAt          pgtype.Timestamptz
}

func (q *Queries) CreatePromotion(ctx context.Context, arg CreatePromotionParams) (Promotion, error) {
	return scanPromotion(q.db.QueryRow(ctx, createPromotion,
		arg.ProductID, arg.DiscountPercentage, arg.DiscountValue, arg.ExpiresAt))
}

const deletePromotion = `
DELETE FROM promotions WHERE id = $1
`

func (q *Queries) DeletePromotion(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, deletePromotion, id)
	return err
}

const listActivePromotions = `
SELECT id, product_id, discount_percentage, discount_value, expires_at, created_at
FROM promotions
WHERE expires_at IS NULL OR expires_at > $1
ORDER BY created_at DESC
`

func (q *Queries) ListActivePromotions(ctx context.Context, now time.Time) ([]Promotion, error) {
	rows, err := q.db.Query(ctx, listActivePromotions, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var promos []Promotion
	for rows.Next() {
		p, err := scanPromotion(rows)
		if err != nil {
			return nil, err
		}
		promos = append(promos, p)
	}
	return promos, rows.Err()
}

func scanPromotion(row rowScanner) (Promotion, error) {
	var p Promotion
	err := row.Scan(&p.ID, &p.ProductID, &p.DiscountPercentage, &p.DiscountValue, &p.ExpiresAt, &p.CreatedAt)
	return p, err
}
