package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const createOrder = `
INSERT INTO orders (
	user_id, address_id, table_id, order_type, status,
	total_amount, discount_amount, delivery_fee, points_redeemed,
	payment_method, change_for_amount, confirmation_code,
	cpf_on_invoice, notes
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
RETURNING id, user_id, address_id, table_id, order_type, status,
	previous_status, total_amount, discount_amount, delivery_fee,
	points_redeemed, payment_method, change_for_amount, confirmation_code,
	cpf_on_invoice, notes, created_at, updated_at
`

type CreateOrderParams struct {
	UserID           uuid.UUID
	AddressID        pgtype.UUID
	TableID          pgtype.UUID
	OrderType        string
	Status           string
	TotalAmount      pgtype.Numeric
	DiscountAmount   pgtype.Numeric
	DeliveryFee      pgtype.Numeric
	PointsRedeemed   int64
	PaymentMethod    string
	ChangeForAmount  pgtype.Numeric
	ConfirmationCode string
	CpfOnInvoice     pgtype.Text
	Notes            pgtype.Text
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, createOrder,
		arg.UserID, arg.AddressID, arg.TableID, arg.OrderType, arg.Status,
		arg.TotalAmount, arg.DiscountAmount, arg.DeliveryFee, arg.PointsRedeemed,
		arg.PaymentMethod, arg.ChangeForAmount, arg.ConfirmationCode,
		arg.CpfOnInvoice, arg.Notes,
	)
	return scanOrder(row)
}

const getOrder = `
SELECT id, user_id, address_id, table_id, order_type, status,
	previous_status, total_amount, discount_amount, delivery_fee,
	points_redeemed, payment_method, change_for_amount, confirmation_code,
	cpf_on_invoice, notes, created_at, updated_at
FROM orders
WHERE id = $1
`

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder, id))
}

const getOrderForUpdate = getOrder + ` FOR UPDATE`

// GetOrderForUpdate locks the order row for the duration of the caller's
// transaction; status transitions go through this to serialize updates.
func (q *Queries) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderForUpdate, id))
}

const updateOrderStatus = `
UPDATE orders
SET status = $2, previous_status = $3, updated_at = now()
WHERE id = $1
RETURNING id, user_id, address_id, table_id, order_type, status,
	previous_status, total_amount, discount_amount, delivery_fee,
	points_redeemed, payment_method, change_for_amount, confirmation_code,
	cpf_on_invoice, notes, created_at, updated_at
`

type UpdateOrderStatusParams struct {
	ID             uuid.UUID
	Status         string
	PreviousStatus pgtype.Text
}

func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderStatus, arg.ID, arg.Status, arg.PreviousStatus))
}

const updateOrderTotals = `
UPDATE orders
SET total_amount = $2, discount_amount = $3, change_for_amount = $4, updated_at = now()
WHERE id = $1
`

type UpdateOrderTotalsParams struct {
	ID              uuid.UUID
	TotalAmount     pgtype.Numeric
	DiscountAmount  pgtype.Numeric
	ChangeForAmount pgtype.Numeric
}

func (q *Queries) UpdateOrderTotals(ctx context.Context, arg UpdateOrderTotalsParams) error {
	_, err := q.db.Exec(ctx, updateOrderTotals, arg.ID, arg.TotalAmount, arg.DiscountAmount, arg.ChangeForAmount)
	return err
}

const listOrdersByUser = `
SELECT id, user_id, address_id, table_id, order_type, status,
	previous_status, total_amount, discount_amount, delivery_fee,
	points_redeemed, payment_method, change_for_amount, confirmation_code,
	cpf_on_invoice, notes, created_at, updated_at
FROM orders
WHERE user_id = $1
ORDER BY created_at DESC
`

func (q *Queries) ListOrdersByUser(ctx context.Context, userID uuid.UUID) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrdersByUser, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

const listOrders = `
SELECT id, user_id, address_id, table_id, order_type, status,
	previous_status, total_amount, discount_amount, delivery_fee,
	points_redeemed, payment_method, change_for_amount, confirmation_code,
	cpf_on_invoice, notes, created_at, updated_at
FROM orders
WHERE ($1::text IS NULL OR status = $1)
  AND ($2::timestamptz IS NULL OR created_at >= $2)
  AND ($3::timestamptz IS NULL OR created_at < $3)
ORDER BY created_at DESC
LIMIT $4 OFFSET $5
`

type ListOrdersParams struct {
	Status    pgtype.Text
	StartDate pgtype.Timestamptz
	EndDate   pgtype.Timestamptz
	Limit     int32
	Offset    int32
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrders, arg.Status, arg.StartDate, arg.EndDate, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

const createOrderItem = `
INSERT INTO order_items (order_id, product_id, quantity, unit_price)
VALUES ($1, $2, $3, $4)
RETURNING id, order_id, product_id, quantity, unit_price
`

type CreateOrderItemParams struct {
	OrderID   uuid.UUID
	ProductID uuid.UUID
	Quantity  int32
	UnitPrice pgtype.Numeric
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	var i OrderItem
	err := q.db.QueryRow(ctx, createOrderItem, arg.OrderID, arg.ProductID, arg.Quantity, arg.UnitPrice).
		Scan(&i.ID, &i.OrderID, &i.ProductID, &i.Quantity, &i.UnitPrice)
	return i, err
}

const listOrderItemsByOrder = `
SELECT id, order_id, product_id, quantity, unit_price
FROM order_items
WHERE order_id = $1
ORDER BY id
`

func (q *Queries) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, listOrderItemsByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderItem
	for rows.Next() {
		var i OrderItem
		if err := rows.Scan(&i.ID, &i.OrderID, &i.ProductID, &i.Quantity, &i.UnitPrice); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const createOrderItemExtra = `
INSERT INTO order_item_extras (order_item_id, ingredient_id, type, quantity, delta, unit_price)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, order_item_id, ingredient_id, type, quantity, delta, unit_price
`

type CreateOrderItemExtraParams struct {
	OrderItemID  uuid.UUID
	IngredientID uuid.UUID
	Type         string
	Quantity     pgtype.Numeric
	Delta        pgtype.Numeric
	UnitPrice    pgtype.Numeric
}

func (q *Queries) CreateOrderItemExtra(ctx context.Context, arg CreateOrderItemExtraParams) (OrderItemExtra, error) {
	var e OrderItemExtra
	err := q.db.QueryRow(ctx, createOrderItemExtra,
		arg.OrderItemID, arg.IngredientID, arg.Type, arg.Quantity, arg.Delta, arg.UnitPrice).
		Scan(&e.ID, &e.OrderItemID, &e.IngredientID, &e.Type, &e.Quantity, &e.Delta, &e.UnitPrice)
	return e, err
}

const listOrderItemExtrasByItem = `
SELECT id, order_item_id, ingredient_id, type, quantity, delta, unit_price
FROM order_item_extras
WHERE order_item_id = $1
ORDER BY id
`

func (q *Queries) ListOrderItemExtrasByItem(ctx context.Context, orderItemID uuid.UUID) ([]OrderItemExtra, error) {
	rows, err := q.db.Query(ctx, listOrderItemExtrasByItem, orderItemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var extras []OrderItemExtra
	for rows.Next() {
		var e OrderItemExtra
		if err := rows.Scan(&e.ID, &e.OrderItemID, &e.IngredientID, &e.Type, &e.Quantity, &e.Delta, &e.UnitPrice); err != nil {
			return nil, err
		}
		extras = append(extras, e)
	}
	return extras, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.UserID, &o.AddressID, &o.TableID, &o.OrderType, &o.Status,
		&o.PreviousStatus, &o.TotalAmount, &o.DiscountAmount, &o.DeliveryFee,
		&o.PointsRedeemed, &o.PaymentMethod, &o.ChangeForAmount, &o.ConfirmationCode,
		&o.CpfOnInvoice, &o.Notes, &o.CreatedAt, &o.UpdatedAt,
	)
	return o, err
}
