package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const createFinancialMovement = `
INSERT INTO financial_movements (
	type, value, category, subcategory, description,
	movement_date, payment_status, payment_method, order_id
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id, type, value, category, subcategory, description,
	movement_date, payment_status, payment_method, order_id, reconciled, created_at
`

type CreateFinancialMovementParams struct {
	Type          string
	Value         pgtype.Numeric
	Category      string
	Subcategory   pgtype.Text
	Description   pgtype.Text
	MovementDate  time.Time
	PaymentStatus string
	PaymentMethod pgtype.Text
	OrderID       pgtype.UUID
}

func (q *Queries) CreateFinancialMovement(ctx context.Context, arg CreateFinancialMovementParams) (FinancialMovement, error) {
	return scanMovement(q.db.QueryRow(ctx, createFinancialMovement,
		arg.Type, arg.Value, arg.Category, arg.Subcategory, arg.Description,
		arg.MovementDate, arg.PaymentStatus, arg.PaymentMethod, arg.OrderID,
	))
}

const listFinancialMovementsByOrder = `
SELECT id, type, value, category, subcategory, description,
	movement_date, payment_status, payment_method, order_id, reconciled, created_at
FROM financial_movements
WHERE order_id = $1
ORDER BY created_at
`

func (q *Queries) ListFinancialMovementsByOrder(ctx context.Context, orderID uuid.UUID) ([]FinancialMovement, error) {
	rows, err := q.db.Query(ctx, listFinancialMovementsByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMovements(rows)
}

const listFinancialMovements = `
SELECT id, type, value, category, subcategory, description,
	movement_date, payment_status, payment_method, order_id, reconciled, created_at
FROM financial_movements
WHERE ($1::text IS NULL OR type = $1)
  AND ($2::timestamptz IS NULL OR movement_date >= $2)
  AND ($3::timestamptz IS NULL OR movement_date < $3)
ORDER BY movement_date DESC
LIMIT $4 OFFSET $5
`

type ListFinancialMovementsParams struct {
	Type      pgtype.Text
	StartDate pgtype.Timestamptz
	EndDate   pgtype.Timestamptz
	Limit     int32
	Offset    int32
}

func (q *Queries) ListFinancialMovements(ctx context.Context, arg ListFinancialMovementsParams) ([]FinancialMovement, error) {
	rows, err := q.db.Query(ctx, listFinancialMovements,
		arg.Type, arg.StartDate, arg.EndDate, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMovements(rows)
}

const getOrderItemCosts = `
SELECT oi.id, oi.product_id, oi.quantity, p.cost_price
FROM order_items oi
JOIN products p ON oi.product_id = p.id
WHERE oi.order_id = $1
ORDER BY oi.id
`

// OrderItemCostRow carries what COGS needs per order line.
type OrderItemCostRow struct {
	OrderItemID uuid.UUID
	ProductID   uuid.UUID
	Quantity    int32
	CostPrice   pgtype.Numeric
}

func (q *Queries) GetOrderItemCosts(ctx context.Context, orderID uuid.UUID) ([]OrderItemCostRow, error) {
	rows, err := q.db.Query(ctx, getOrderItemCosts, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []OrderItemCostRow
	for rows.Next() {
		var r OrderItemCostRow
		if err := rows.Scan(&r.OrderItemID, &r.ProductID, &r.Quantity, &r.CostPrice); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const getOrderExtraCosts = `
SELECT oie.order_item_id, oie.type, oie.quantity, oie.delta, oi.quantity,
	i.price, i.stock_unit, i.base_portion_unit
FROM order_item_extras oie
JOIN order_items oi ON oie.order_item_id = oi.id
JOIN ingredients i ON oie.ingredient_id = i.id
WHERE oi.order_id = $1
ORDER BY oie.id
`

// OrderExtraCostRow carries an extra/base-mod line with the ingredient data
// needed to cost it, including units for kg->g style conversion.
type OrderExtraCostRow struct {
	OrderItemID     uuid.UUID
	Type            string
	Quantity        pgtype.Numeric
	Delta           pgtype.Numeric
	ItemQuantity    int32
	IngredientPrice pgtype.Numeric
	StockUnit       string
	BasePortionUnit string
}

func (q *Queries) GetOrderExtraCosts(ctx context.Context, orderID uuid.UUID) ([]OrderExtraCostRow, error) {
	rows, err := q.db.Query(ctx, getOrderExtraCosts, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []OrderExtraCostRow
	for rows.Next() {
		var r OrderExtraCostRow
		if err := rows.Scan(&r.OrderItemID, &r.Type, &r.Quantity, &r.Delta, &r.ItemQuantity,
			&r.IngredientPrice, &r.StockUnit, &r.BasePortionUnit); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanMovement(row rowScanner) (FinancialMovement, error) {
	var m FinancialMovement
	err := row.Scan(
		&m.ID, &m.Type, &m.Value, &m.Category, &m.Subcategory, &m.Description,
		&m.MovementDate, &m.PaymentStatus, &m.PaymentMethod, &m.OrderID,
		&m.Reconciled, &m.CreatedAt,
	)
	return m, err
}

func collectMovements(rows interface {
	rowScanner
	Next() bool
	Err() error
}) ([]FinancialMovement, error) {
	var out []FinancialMovement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
