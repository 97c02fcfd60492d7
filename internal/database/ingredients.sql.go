package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const getIngredient = `
SELECT id, name, price, additional_price, current_stock, min_stock_threshold,
	stock_unit, base_portion_quantity, base_portion_unit, is_available, stock_status
FROM ingredients
WHERE id = $1
`

func (q *Queries) GetIngredient(ctx context.Context, id uuid.UUID) (Ingredient, error) {
	return scanIngredient(q.db.QueryRow(ctx, getIngredient, id))
}

const getIngredientForUpdate = getIngredient + ` FOR UPDATE`

// GetIngredientForUpdate locks the ingredient row so concurrent deductions
// serialize on the same stock counter.
func (q *Queries) GetIngredientForUpdate(ctx context.Context, id uuid.UUID) (Ingredient, error) {
	return scanIngredient(q.db.QueryRow(ctx, getIngredientForUpdate, id))
}

const updateIngredientStock = `
UPDATE ingredients
SET current_stock = $2, stock_status = $3
WHERE id = $1
`

type UpdateIngredientStockParams struct {
	ID           uuid.UUID
	CurrentStock pgtype.Numeric
	StockStatus  string
}

func (q *Queries) UpdateIngredientStock(ctx context.Context, arg UpdateIngredientStockParams) error {
	_, err := q.db.Exec(ctx, updateIngredientStock, arg.ID, arg.CurrentStock, arg.StockStatus)
	return err
}

const deductIngredientStock = `
UPDATE ingredients
SET current_stock = current_stock - $2,
	stock_status = CASE
		WHEN current_stock - $2 <= 0 THEN 'out_of_stock'
		WHEN current_stock - $2 <= min_stock_threshold THEN 'low'
		ELSE 'ok'
	END
WHERE id = $1 AND current_stock >= $2
`

type DeductIngredientStockParams struct {
	ID       uuid.UUID
	Quantity pgtype.Numeric
}

// DeductIngredientStock decrements stock only when enough remains; zero rows
// affected means insufficient stock at deduction time.
func (q *Queries) DeductIngredientStock(ctx context.Context, arg DeductIngredientStockParams) (int64, error) {
	tag, err := q.db.Exec(ctx, deductIngredientStock, arg.ID, arg.Quantity)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const addIngredientStock = `
UPDATE ingredients
SET current_stock = current_stock + $2,
	stock_status = CASE
		WHEN current_stock + $2 <= 0 THEN 'out_of_stock'
		WHEN current_stock + $2 <= min_stock_threshold THEN 'low'
		ELSE 'ok'
	END
WHERE id = $1
`

type AddIngredientStockParams struct {
	ID       uuid.UUID
	Quantity pgtype.Numeric
}

func (q *Queries) AddIngredientStock(ctx context.Context, arg AddIngredientStockParams) error {
	_, err := q.db.Exec(ctx, addIngredientStock, arg.ID, arg.Quantity)
	return err
}

const listUnavailableIngredients = `
SELECT id, name, price, additional_price, current_stock, min_stock_threshold,
	stock_unit, base_portion_quantity, base_portion_unit, is_available, stock_status
FROM ingredients
WHERE id = ANY($1) AND is_available = FALSE
`

func (q *Queries) ListUnavailableIngredients(ctx context.Context, ids []uuid.UUID) ([]Ingredient, error) {
	rows, err := q.db.Query(ctx, listUnavailableIngredients, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectIngredients(rows)
}

const listLowStockIngredients = `
SELECT id, name, price, additional_price, current_stock, min_stock_threshold,
	stock_unit, base_portion_quantity, base_portion_unit, is_available, stock_status
FROM ingredients
WHERE stock_status IN ('low', 'out_of_stock')
ORDER BY current_stock ASC
`

func (q *Queries) ListLowStockIngredients(ctx context.Context) ([]Ingredient, error) {
	rows, err := q.db.Query(ctx, listLowStockIngredients)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectIngredients(rows)
}

const listProductIngredients = `
SELECT product_id, ingredient_id, portions, min_quantity, max_quantity
FROM product_ingredients
WHERE product_id = $1
`

func (q *Queries) ListProductIngredients(ctx context.Context, productID uuid.UUID) ([]ProductIngredient, error) {
	rows, err := q.db.Query(ctx, listProductIngredients, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var recipe []ProductIngredient
	for rows.Next() {
		var pi ProductIngredient
		if err := rows.Scan(&pi.ProductID, &pi.IngredientID, &pi.Portions, &pi.MinQuantity, &pi.MaxQuantity); err != nil {
			return nil, err
		}
		recipe = append(recipe, pi)
	}
	return recipe, rows.Err()
}

const getProduct = `
SELECT id, name, description, price, cost_price, is_active
FROM products
WHERE id = $1
`

func (q *Queries) GetProduct(ctx context.Context, id uuid.UUID) (Product, error) {
	var p Product
	err := q.db.QueryRow(ctx, getProduct, id).
		Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.CostPrice, &p.IsActive)
	return p, err
}

const listActiveProducts = `
SELECT id, name, description, price, cost_price, is_active
FROM products
WHERE is_active = TRUE
ORDER BY name
`

func (q *Queries) ListActiveProducts(ctx context.Context) ([]Product, error) {
	rows, err := q.db.Query(ctx, listActiveProducts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var products []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.CostPrice, &p.IsActive); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

const listIngredients = `
SELECT id, name, price, additional_price, current_stock, min_stock_threshold,
	stock_unit, base_portion_quantity, base_portion_unit, is_available, stock_status
FROM ingredients
ORDER BY name
`

func (q *Queries) ListIngredients(ctx context.Context) ([]Ingredient, error) {
	rows, err := q.db.Query(ctx, listIngredients)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectIngredients(rows)
}

const setIngredientAvailability = `
UPDATE ingredients SET is_available = $2 WHERE id = $1
`

type SetIngredientAvailabilityParams struct {
	ID          uuid.UUID
	IsAvailable bool
}

func (q *Queries) SetIngredientAvailability(ctx context.Context, arg SetIngredientAvailabilityParams) error {
	_, err := q.db.Exec(ctx, setIngredientAvailability, arg.ID, arg.IsAvailable)
	return err
}

const getProductRecipeCost = `
SELECT COALESCE(SUM(pi.portions * i.price), 0)
FROM product_ingredients pi
JOIN ingredients i ON pi.ingredient_id = i.id
WHERE pi.product_id = $1
`

// GetProductRecipeCost sums portions x ingredient price, used as the COGS
// fallback when a product carries no cost_price.
func (q *Queries) GetProductRecipeCost(ctx context.Context, productID uuid.UUID) (pgtype.Numeric, error) {
	var n pgtype.Numeric
	err := q.db.QueryRow(ctx, getProductRecipeCost, productID).Scan(&n)
	return n, err
}

// --- Temporary reservations ---

const createReservation = `
INSERT INTO temporary_reservations (cart_id, ingredient_id, quantity, expires_at)
VALUES ($1, $2, $3, $4)
RETURNING id, cart_id, ingredient_id, quantity, expires_at
`

type CreateReservationParams struct {
	CartID       uuid.UUID
	IngredientID uuid.UUID
	Quantity     pgtype.Numeric
	ExpiresAt    time.Time
}

func (q *Queries) CreateReservation(ctx context.Context, arg CreateReservationParams) (TemporaryReservation, error) {
	var r TemporaryReservation
	err := q.db.QueryRow(ctx, createReservation, arg.CartID, arg.IngredientID, arg.Quantity, arg.ExpiresAt).
		Scan(&r.ID, &r.CartID, &r.IngredientID, &r.Quantity, &r.ExpiresAt)
	return r, err
}

const sumActiveReservations = `
SELECT COALESCE(SUM(quantity), 0)
FROM temporary_reservations
WHERE ingredient_id = $1
  AND expires_at > $2
  AND ($3::uuid IS NULL OR cart_id <> $3)
`

type SumActiveReservationsParams struct {
	IngredientID  uuid.UUID
	Now           time.Time
	ExcludeCartID pgtype.UUID
}

func (q *Queries) SumActiveReservations(ctx context.Context, arg SumActiveReservationsParams) (pgtype.Numeric, error) {
	var n pgtype.Numeric
	err := q.db.QueryRow(ctx, sumActiveReservations, arg.IngredientID, arg.Now, arg.ExcludeCartID).Scan(&n)
	return n, err
}

const deleteExpiredReservations = `
DELETE FROM temporary_reservations WHERE expires_at <= $1
`

func (q *Queries) DeleteExpiredReservations(ctx context.Context, now time.Time) error {
	_, err := q.db.Exec(ctx, deleteExpiredReservations, now)
	return err
}

const deleteReservationsByCart = `
DELETE FROM temporary_reservations WHERE cart_id = $1
`

func (q *Queries) DeleteReservationsByCart(ctx context.Context, cartID uuid.UUID) error {
	_, err := q.db.Exec(ctx, deleteReservationsByCart, cartID)
	return err
}

func scanIngredient(row rowScanner) (Ingredient, error) {
	var i Ingredient
	err := row.Scan(
		&i.ID, &i.Name, &i.Price, &i.AdditionalPrice, &i.CurrentStock,
		&i.MinStockThreshold, &i.StockUnit, &i.BasePortionQuantity,
		&i.BasePortionUnit, &i.IsAvailable, &i.StockStatus,
	)
	return i, err
}

func collectIngredients(rows interface {
	rowScanner
	Next() bool
	Err() error
}) ([]Ingredient, error) {
	var out []Ingredient
	for rows.Next() {
		i, err := scanIngredient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	return out, rows.Err()
}
