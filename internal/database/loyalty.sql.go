package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const upsertLoyaltyAccount = `
INSERT INTO loyalty_points (user_id, accumulated_points, spent_points)
VALUES ($1, 0, 0)
ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
RETURNING user_id, accumulated_points, spent_points, points_expiration_date
`

// UpsertLoyaltyAccount lazily creates the account row on first access.
func (q *Queries) UpsertLoyaltyAccount(ctx context.Context, userID uuid.UUID) (LoyaltyAccount, error) {
	return scanLoyaltyAccount(q.db.QueryRow(ctx, upsertLoyaltyAccount, userID))
}

const getLoyaltyAccountForUpdate = `
SELECT user_id, accumulated_points, spent_points, points_expiration_date
FROM loyalty_points
WHERE user_id = $1
FOR UPDATE
`

func (q *Queries) GetLoyaltyAccountForUpdate(ctx context.Context, userID uuid.UUID) (LoyaltyAccount, error) {
	return scanLoyaltyAccount(q.db.QueryRow(ctx, getLoyaltyAccountForUpdate, userID))
}

const addLoyaltyPoints = `
UPDATE loyalty_points
SET accumulated_points = accumulated_points + $2, points_expiration_date = $3
WHERE user_id = $1
`

type AddLoyaltyPointsParams struct {
	UserID         uuid.UUID
	Points         int64
	ExpirationDate pgtype.Date
}

func (q *Queries) AddLoyaltyPoints(ctx context.Context, arg AddLoyaltyPointsParams) error {
	_, err := q.db.Exec(ctx, addLoyaltyPoints, arg.UserID, arg.Points, arg.ExpirationDate)
	return err
}

const spendLoyaltyPoints = `
UPDATE loyalty_points
SET spent_points = spent_points + $2
WHERE user_id = $1
`

type SpendLoyaltyPointsParams struct {
	UserID uuid.UUID
	Points int64
}

func (q *Queries) SpendLoyaltyPoints(ctx context.Context, arg SpendLoyaltyPointsParams) error {
	_, err := q.db.Exec(ctx, spendLoyaltyPoints, arg.UserID, arg.Points)
	return err
}

const expireLoyaltyPoints = `
UPDATE loyalty_points
SET spent_points = accumulated_points
WHERE user_id = $1
`

func (q *Queries) ExpireLoyaltyPoints(ctx context.Context, userID uuid.UUID) error {
	_, err := q.db.Exec(ctx, expireLoyaltyPoints, userID)
	return err
}

const insertLoyaltyHistory = `
INSERT INTO loyalty_points_history (user_id, order_id, points, reason)
VALUES ($1, $2, $3, $4)
RETURNING id, user_id, order_id, points, reason, created_at
`

type InsertLoyaltyHistoryParams struct {
	UserID  uuid.UUID
	OrderID pgtype.UUID
	Points  int64
	Reason  string
}

func (q *Queries) InsertLoyaltyHistory(ctx context.Context, arg InsertLoyaltyHistoryParams) (LoyaltyHistory, error) {
	var h LoyaltyHistory
	err := q.db.QueryRow(ctx, insertLoyaltyHistory, arg.UserID, arg.OrderID, arg.Points, arg.Reason).
		Scan(&h.ID, &h.UserID, &h.OrderID, &h.Points, &h.Reason, &h.CreatedAt)
	return h, err
}

const listLoyaltyHistory = `
SELECT id, user_id, order_id, points, reason, created_at
FROM loyalty_points_history
WHERE user_id = $1
ORDER BY created_at DESC
`

func (q *Queries) ListLoyaltyHistory(ctx context.Context, userID uuid.UUID) ([]LoyaltyHistory, error) {
	rows, err := q.db.Query(ctx, listLoyaltyHistory, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var history []LoyaltyHistory
	for rows.Next() {
		var h LoyaltyHistory
		if err := rows.Scan(&h.ID, &h.UserID, &h.OrderID, &h.Points, &h.Reason, &h.CreatedAt); err != nil {
			return nil, err
		}
		history = append(history, h)
	}
	return history, rows.Err()
}

const listExpiredLoyaltyAccounts = `
SELECT user_id, accumulated_points, spent_points, points_expiration_date
FROM loyalty_points
WHERE points_expiration_date < $1
  AND accumulated_points > spent_points
`

// ListExpiredLoyaltyAccounts feeds the batch expiration sweep (cron path).
func (q *Queries) ListExpiredLoyaltyAccounts(ctx context.Context, asOf pgtype.Date) ([]LoyaltyAccount, error) {
	rows, err := q.db.Query(ctx, listExpiredLoyaltyAccounts, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []LoyaltyAccount
	for rows.Next() {
		a, err := scanLoyaltyAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func scanLoyaltyAccount(row rowScanner) (LoyaltyAccount, error) {
	var a LoyaltyAccount
	err := row.Scan(&a.UserID, &a.AccumulatedPoints, &a.SpentPoints, &a.PointsExpirationDate)
	return a, err
}
