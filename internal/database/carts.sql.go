package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const createCart = `
INSERT INTO carts (user_id)
VALUES ($1)
RETURNING id, user_id, created_at, updated_at
`

// CreateCart accepts a null user for guest carts.
func (q *Queries) CreateCart(ctx context.Context, userID pgtype.UUID) (Cart, error) {
	return scanCart(q.db.QueryRow(ctx, createCart, userID))
}

const getCart = `
SELECT id, user_id, created_at, updated_at
FROM carts
WHERE id = $1
`

func (q *Queries) GetCart(ctx context.Context, id uuid.UUID) (Cart, error) {
	return scanCart(q.db.QueryRow(ctx, getCart, id))
}

const getCartByUser = `
SELECT id, user_id, created_at, updated_at
FROM carts
WHERE user_id = $1
`

func (q *Queries) GetCartByUser(ctx context.Context, userID uuid.UUID) (Cart, error) {
	return scanCart(q.db.QueryRow(ctx, getCartByUser, userID))
}

const claimCart = `
UPDATE carts
SET user_id = $2, updated_at = now()
WHERE id = $1 AND user_id IS NULL
RETURNING id, user_id, created_at, updated_at
`

type ClaimCartParams struct {
	ID     uuid.UUID
	UserID uuid.UUID
}

// ClaimCart attaches a guest cart to a user. The WHERE clause means claiming
// an already-owned cart returns pgx.ErrNoRows.
func (q *Queries) ClaimCart(ctx context.Context, arg ClaimCartParams) (Cart, error) {
	return scanCart(q.db.QueryRow(ctx, claimCart, arg.ID, arg.UserID))
}

const touchCart = `
UPDATE carts SET updated_at = now() WHERE id = $1
`

func (q *Queries) TouchCart(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, touchCart, id)
	return err
}

const deleteCart = `
DELETE FROM carts WHERE id = $1
`

func (q *Queries) DeleteCart(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, deleteCart, id)
	return err
}

const createCartItem = `
INSERT INTO cart_items (cart_id, product_id, quantity, notes)
VALUES ($1, $2, $3, $4)
RETURNING id, cart_id, product_id, quantity, notes
`

type CreateCartItemParams struct {
	CartID    uuid.UUID
	ProductID uuid.UUID
	Quantity  int32
	Notes     pgtype.Text
}

func (q *Queries) CreateCartItem(ctx context.Context, arg CreateCartItemParams) (CartItem, error) {
	var i CartItem
	err := q.db.QueryRow(ctx, createCartItem, arg.CartID, arg.ProductID, arg.Quantity, arg.Notes).
		Scan(&i.ID, &i.CartID, &i.ProductID, &i.Quantity, &i.Notes)
	return i, err
}

const updateCartItemQuantity = `
UPDATE cart_items
SET quantity = $2
WHERE id = $1
RETURNING id, cart_id, product_id, quantity, notes
`

type UpdateCartItemQuantityParams struct {
	ID       uuid.UUID
	Quantity int32
}

func (q *Queries) UpdateCartItemQuantity(ctx context.Context, arg UpdateCartItemQuantityParams) (CartItem, error) {
	var i CartItem
	err := q.db.QueryRow(ctx, updateCartItemQuantity, arg.ID, arg.Quantity).
		Scan(&i.ID, &i.CartID, &i.ProductID, &i.Quantity, &i.Notes)
	return i, err
}

const getCartItem = `
SELECT id, cart_id, product_id, quantity, notes
FROM cart_items
WHERE id = $1
`

func (q *Queries) GetCartItem(ctx context.Context, id uuid.UUID) (CartItem, error) {
	var i CartItem
	err := q.db.QueryRow(ctx, getCartItem, id).
		Scan(&i.ID, &i.CartID, &i.ProductID, &i.Quantity, &i.Notes)
	return i, err
}

const deleteCartItem = `
DELETE FROM cart_items WHERE id = $1
`

func (q *Queries) DeleteCartItem(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, deleteCartItem, id)
	return err
}

const listCartItems = `
SELECT id, cart_id, product_id, quantity, notes
FROM cart_items
WHERE cart_id = $1
ORDER BY id
`

func (q *Queries) ListCartItems(ctx context.Context, cartID uuid.UUID) ([]CartItem, error) {
	rows, err := q.db.Query(ctx, listCartItems, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CartItem
	for rows.Next() {
		var i CartItem
		if err := rows.Scan(&i.ID, &i.CartID, &i.ProductID, &i.Quantity, &i.Notes); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const clearCartItems = `
DELETE FROM cart_items WHERE cart_id = $1
`

func (q *Queries) ClearCartItems(ctx context.Context, cartID uuid.UUID) error {
	_, err := q.db.Exec(ctx, clearCartItems, cartID)
	return err
}

const createCartItemExtra = `
INSERT INTO cart_item_extras (cart_item_id, ingredient_id, type, quantity, delta)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, cart_item_id, ingredient_id, type, quantity, delta
`

type CreateCartItemExtraParams struct {
	CartItemID   uuid.UUID
	IngredientID uuid.UUID
	Type         string
	Quantity     pgtype.Numeric
	Delta        pgtype.Numeric
}

func (q *Queries) CreateCartItemExtra(ctx context.Context, arg CreateCartItemExtraParams) (CartItemExtra, error) {
	var e CartItemExtra
	err := q.db.QueryRow(ctx, createCartItemExtra,
		arg.CartItemID, arg.IngredientID, arg.Type, arg.Quantity, arg.Delta).
		Scan(&e.ID, &e.CartItemID, &e.IngredientID, &e.Type, &e.Quantity, &e.Delta)
	return e, err
}

const listCartItemExtras = `
SELECT id, cart_item_id, ingredient_id, type, quantity, delta
FROM cart_item_extras
WHERE cart_item_id = $1
ORDER BY id
`

func (q *Queries) ListCartItemExtras(ctx context.Context, cartItemID uuid.UUID) ([]CartItemExtra, error) {
	rows, err := q.db.Query(ctx, listCartItemExtras, cartItemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var extras []CartItemExtra
	for rows.Next() {
		var e CartItemExtra
		if err := rows.Scan(&e.ID, &e.CartItemID, &e.IngredientID, &e.Type, &e.Quantity, &e.Delta); err != nil {
			return nil, err
		}
		extras = append(extras, e)
	}
	return extras, rows.Err()
}

func scanCart(row rowScanner) (Cart, error) {
	var c Cart
	err := row.Scan(&c.ID, &c.UserID, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}
