package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sabordecasa/api/internal/database"
	"github.com/shopspring/decimal"
)

// PricingStore defines the DB methods needed to resolve prices.
// Satisfied by *database.Queries (and its WithTx variant).
type PricingStore interface {
	GetActivePromotionForProduct(ctx context.Context, arg database.GetActivePromotionForProductParams) (database.Promotion, error)
}

// ResolvedPrice is the outcome of promotion resolution for one product line.
// FinalPrice is what gets frozen into the order item.
type ResolvedPrice struct {
	FinalPrice     decimal.Decimal
	DiscountAmount decimal.Decimal
	HadPromotion   bool
}

// Pricing resolves unit prices at order time. At most one active promotion
// applies per product; percentage wins over fixed value when both are set.
type Pricing struct {
	now func() time.Time
}

func NewPricing() *Pricing {
	return &Pricing{now: time.Now}
}

// ResolveUnitPrice applies the newest unexpired promotion for the product to
// basePrice. The result never goes below zero.
func (p *Pricing) ResolveUnitPrice(ctx context.Context, store PricingStore, productID uuid.UUID, basePrice decimal.Decimal) (ResolvedPrice, error) {
	promo, err := store.GetActivePromotionForProduct(ctx, database.GetActivePromotionForProductParams{
		ProductID: productID,
		Now:       p.now(),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ResolvedPrice{FinalPrice: basePrice}, nil
		}
		return ResolvedPrice{}, DBErr("get active promotion", err)
	}

	discount := decimal.Zero
	pct := numericToDecimal(promo.DiscountPercentage)
	fixed := numericToDecimal(promo.DiscountValue)
	switch {
	case promo.DiscountPercentage.Valid && pct.IsPositive():
		discount = basePrice.Mul(pct).Div(decimal.NewFromInt(100))
	case promo.DiscountValue.Valid && fixed.IsPositive():
		discount = fixed
	default:
		return ResolvedPrice{FinalPrice: basePrice}, nil
	}

	final := basePrice.Sub(discount)
	if final.IsNegative() {
		final = decimal.Zero
		discount = basePrice
	}
	return ResolvedPrice{FinalPrice: final, DiscountAmount: discount, HadPromotion: true}, nil
}

// ExtraUnitPrice prices an extra or base modification from the ingredient's
// additional_price, falling back to its regular price. Product promotions
// never apply here.
func ExtraUnitPrice(ing database.Ingredient) decimal.Decimal {
	if ing.AdditionalPrice.Valid {
		return numericToDecimal(ing.AdditionalPrice)
	}
	return numericToDecimal(ing.Price)
}
