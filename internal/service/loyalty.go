package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/sabordecasa/api/internal/database"
	"github.com/sabordecasa/api/internal/enum"
	"github.com/shopspring/decimal"
)

const (
	defaultPointsExpirationDays = 60
	defaultRedeemRate           = "0.10" // currency per point
)

// LoyaltyStore defines the DB methods the loyalty ledger needs.
// Satisfied by *database.Queries (and its WithTx variant).
type LoyaltyStore interface {
	UpsertLoyaltyAccount(ctx context.Context, userID uuid.UUID) (database.LoyaltyAccount, error)
	GetLoyaltyAccountForUpdate(ctx context.Context, userID uuid.UUID) (database.LoyaltyAccount, error)
	AddLoyaltyPoints(ctx context.Context, arg database.AddLoyaltyPointsParams) error
	SpendLoyaltyPoints(ctx context.Context, arg database.SpendLoyaltyPointsParams) error
	ExpireLoyaltyPoints(ctx context.Context, userID uuid.UUID) error
	InsertLoyaltyHistory(ctx context.Context, arg database.InsertLoyaltyHistoryParams) (database.LoyaltyHistory, error)
	ListLoyaltyHistory(ctx context.Context, userID uuid.UUID) ([]database.LoyaltyHistory, error)
	ListExpiredLoyaltyAccounts(ctx context.Context, asOf pgtype.Date) ([]database.LoyaltyAccount, error)
}

// NewLoyaltyStore creates a LoyaltyStore from a DBTX (pool or tx).
type NewLoyaltyStore func(db database.DBTX) LoyaltyStore

// loyaltySettings is the slice of the settings cache the ledger reads.
type loyaltySettings interface {
	GetDecimal(ctx context.Context, key string, def decimal.Decimal) (decimal.Decimal, error)
}

// LoyaltyLedger accrues, redeems and expires customer points. Points live in
// a running balance row (accumulated, spent) plus an append-only signed
// history that always sums to accumulated - spent.
type LoyaltyLedger struct {
	pool     TxBeginner
	newStore NewLoyaltyStore
	settings loyaltySettings
	now      func() time.Time
}

func NewLoyaltyLedger(pool TxBeginner, newStore NewLoyaltyStore, settings loyaltySettings) *LoyaltyLedger {
	return &LoyaltyLedger{pool: pool, newStore: newStore, settings: settings, now: time.Now}
}

// expiredPoints is the pure expiration rule: the full outstanding balance
// lapses once points_expiration_date has passed.
func expiredPoints(acc database.LoyaltyAccount, asOf time.Time) int64 {
	if !acc.PointsExpirationDate.Valid {
		return 0
	}
	if !acc.PointsExpirationDate.Time.Before(asOf) {
		return 0
	}
	balance := acc.AccumulatedPoints - acc.SpentPoints
	if balance <= 0 {
		return 0
	}
	return balance
}

// applyExpiration zeroes a lapsed balance and records the compensating
// negative history row. Returns the balance after expiration.
func (l *LoyaltyLedger) applyExpiration(ctx context.Context, store LoyaltyStore, acc database.LoyaltyAccount) (int64, error) {
	expired := expiredPoints(acc, l.now())
	if expired == 0 {
		return acc.AccumulatedPoints - acc.SpentPoints, nil
	}
	if err := store.ExpireLoyaltyPoints(ctx, acc.UserID); err != nil {
		return 0, DBErr("expire loyalty points", err)
	}
	if _, err := store.InsertLoyaltyHistory(ctx, database.InsertLoyaltyHistoryParams{
		UserID: acc.UserID,
		Points: -expired,
		Reason: enum.LoyaltyReasonExpired,
	}); err != nil {
		return 0, DBErr("insert expiration history", err)
	}
	return 0, nil
}

// Balance returns the user's current balance, creating the account row on
// first access and lazily expiring a stale balance.
func (l *LoyaltyLedger) Balance(ctx context.Context, userID uuid.UUID) (int64, error) {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return 0, DBErr("begin tx", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := l.newStore(tx)
	if _, err := store.UpsertLoyaltyAccount(ctx, userID); err != nil {
		return 0, DBErr("upsert loyalty account", err)
	}
	acc, err := store.GetLoyaltyAccountForUpdate(ctx, userID)
	if err != nil {
		return 0, DBErr("lock loyalty account", err)
	}
	balance, err := l.applyExpiration(ctx, store, acc)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, DBErr("commit tx", err)
	}
	return balance, nil
}

// EarnPoints accrues floor(total) points within the caller's transaction and
// extends the expiration window. Called only on the delivered transition.
func (l *LoyaltyLedger) EarnPoints(ctx context.Context, db database.DBTX, userID, orderID uuid.UUID, total decimal.Decimal) (int64, error) {
	points := total.IntPart()
	if points <= 0 {
		return 0, nil
	}
	store := l.newStore(db)
	if _, err := store.UpsertLoyaltyAccount(ctx, userID); err != nil {
		return 0, DBErr("upsert loyalty account", err)
	}

	days, err := l.settings.GetDecimal(ctx, enum.SettingPointsExpirationDays,
		decimal.NewFromInt(defaultPointsExpirationDays))
	if err != nil {
		return 0, err
	}
	expiration := l.now().AddDate(0, 0, int(days.IntPart()))

	if err := store.AddLoyaltyPoints(ctx, database.AddLoyaltyPointsParams{
		UserID:         userID,
		Points:         points,
		ExpirationDate: pgtype.Date{Time: expiration, Valid: true},
	}); err != nil {
		return 0, DBErr("add loyalty points", err)
	}
	if _, err := store.InsertLoyaltyHistory(ctx, database.InsertLoyaltyHistoryParams{
		UserID:  userID,
		OrderID: pgtype.UUID{Bytes: orderID, Valid: true},
		Points:  points,
		Reason:  enum.LoyaltyReasonEarned,
	}); err != nil {
		return 0, DBErr("insert accrual history", err)
	}
	return points, nil
}

// Redeem debits points within the caller's transaction and returns the
// currency discount they are worth. Rejects requests above the current
// balance (after lazy expiration).
func (l *LoyaltyLedger) Redeem(ctx context.Context, db database.DBTX, userID uuid.UUID, points int64, orderID pgtype.UUID) (decimal.Decimal, error) {
	if points <= 0 {
		return decimal.Zero, E(CodeValidationError, "points_to_redeem must be > 0")
	}
	store := l.newStore(db)
	if _, err := store.UpsertLoyaltyAccount(ctx, userID); err != nil {
		return decimal.Zero, DBErr("upsert loyalty account", err)
	}
	acc, err := store.GetLoyaltyAccountForUpdate(ctx, userID)
	if err != nil {
		return decimal.Zero, DBErr("lock loyalty account", err)
	}
	balance, err := l.applyExpiration(ctx, store, acc)
	if err != nil {
		return decimal.Zero, err
	}
	if points > balance {
		return decimal.Zero, E(CodeValidationError,
			"cannot redeem %d points, balance is %d", points, balance)
	}

	if err := store.SpendLoyaltyPoints(ctx, database.SpendLoyaltyPointsParams{
		UserID: userID,
		Points: points,
	}); err != nil {
		return decimal.Zero, DBErr("spend loyalty points", err)
	}
	if _, err := store.InsertLoyaltyHistory(ctx, database.InsertLoyaltyHistoryParams{
		UserID:  userID,
		OrderID: orderID,
		Points:  -points,
		Reason:  enum.LoyaltyReasonRedeemed,
	}); err != nil {
		return decimal.Zero, DBErr("insert redemption history", err)
	}

	rate, err := l.settings.GetDecimal(ctx, enum.SettingRedeemConversionRate,
		decimal.RequireFromString(defaultRedeemRate))
	if err != nil {
		return decimal.Zero, err
	}
	return rate.Mul(decimal.NewFromInt(points)), nil
}

// ExpireInactiveAccounts is the batch sweep counterpart to the lazy check,
// meant to run from cron. Returns how many accounts were expired.
func (l *LoyaltyLedger) ExpireInactiveAccounts(ctx context.Context) (int, error) {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return 0, DBErr("begin tx", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := l.newStore(tx)
	accounts, err := store.ListExpiredLoyaltyAccounts(ctx, pgtype.Date{Time: l.now(), Valid: true})
	if err != nil {
		return 0, DBErr("list expired accounts", err)
	}
	expired := 0
	for _, acc := range accounts {
		balance, err := l.applyExpiration(ctx, store, acc)
		if err != nil {
			return 0, fmt.Errorf("expire account %s: %w", acc.UserID, err)
		}
		if balance == 0 {
			expired++
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, DBErr("commit tx", err)
	}
	return expired, nil
}

// History returns the signed point ledger, newest first.
func (l *LoyaltyLedger) History(ctx context.Context, db database.DBTX, userID uuid.UUID) ([]database.LoyaltyHistory, error) {
	rows, err := l.newStore(db).ListLoyaltyHistory(ctx, userID)
	if err != nil {
		return nil, DBErr("list loyalty history", err)
	}
	return rows, nil
}
