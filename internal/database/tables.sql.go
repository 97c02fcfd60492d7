package database

import (
	"context"

	"github.com/google/uuid"
)

const createTable = `
INSERT INTO restaurant_tables (name, status)
VALUES ($1, 'available')
RETURNING id, name, status, current_order_id, created_at, updated_at
`

func (q *Queries) CreateTable(ctx context.Context, name string) (RestaurantTable, error) {
	return scanTable(q.db.QueryRow(ctx, createTable, name))
}

const getTable = `
SELECT id, name, status, current_order_id, created_at, updated_at
FROM restaurant_tables
WHERE id = $1
`

func (q *Queries) GetTable(ctx context.Context, id uuid.UUID) (RestaurantTable, error) {
	return scanTable(q.db.QueryRow(ctx, getTable, id))
}

const getTableByName = `
SELECT id, name, status, current_order_id, created_at, updated_at
FROM restaurant_tables
WHERE upper(trim(name)) = upper(trim($1))
`

func (q *Queries) GetTableByName(ctx context.Context, name string) (RestaurantTable, error) {
	return scanTable(q.db.QueryRow(ctx, getTableByName, name))
}

const listTables = `
SELECT id, name, status, current_order_id, created_at, updated_at
FROM restaurant_tables
ORDER BY name
`

func (q *Queries) ListTables(ctx context.Context) ([]RestaurantTable, error) {
	rows, err := q.db.Query(ctx, listTables)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tables []RestaurantTable
	for rows.Next() {
		t, err := scanTable(rows)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

const occupyTable = `
UPDATE restaurant_tables
SET status = 'occupied', current_order_id = $2, updated_at = now()
WHERE id = $1 AND status = 'available'
RETURNING id, name, status, current_order_id, created_at, updated_at
`

type OccupyTableParams struct {
	ID      uuid.UUID
	OrderID uuid.UUID
}

// OccupyTable binds a table to an order. The WHERE clause enforces the
// precondition atomically: pgx.ErrNoRows means the table was missing or
// already occupied.
func (q *Queries) OccupyTable(ctx context.Context, arg OccupyTableParams) (RestaurantTable, error) {
	return scanTable(q.db.QueryRow(ctx, occupyTable, arg.ID, arg.OrderID))
}

const releaseTable = `
UPDATE restaurant_tables
SET status = 'available', current_order_id = NULL, updated_at = now()
WHERE id = $1
RETURNING id, name, status, current_order_id, created_at, updated_at
`

func (q *Queries) ReleaseTable(ctx context.Context, id uuid.UUID) (RestaurantTable, error) {
	return scanTable(q.db.QueryRow(ctx, releaseTable, id))
}

const updateTableStatus = `
UPDATE restaurant_tables
SET status = $2, updated_at = now()
WHERE id = $1
RETURNING id, name, status, current_order_id, created_at, updated_at
`

type UpdateTableStatusParams struct {
	ID     uuid.UUID
	Status string
}

func (q *Queries) UpdateTableStatus(ctx context.Context, arg UpdateTableStatusParams) (RestaurantTable, error) {
	return scanTable(q.db.QueryRow(ctx, updateTableStatus, arg.ID, arg.Status))
}

const deleteTable = `
DELETE FROM restaurant_tables
WHERE id = $1 AND status <> 'occupied' AND current_order_id IS NULL
`

// DeleteTable refuses to remove an occupied table; the caller checks the
// returned count.
func (q *Queries) DeleteTable(ctx context.Context, id uuid.UUID) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteTable, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanTable(row rowScanner) (RestaurantTable, error) {
	var t RestaurantTable
	err := row.Scan(&t.ID, &t.Name, &t.Status, &t.CurrentOrderID, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}
