package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sabordecasa/api/internal/database"
	"github.com/sabordecasa/api/internal/enum"
)

// TableStore defines the DB methods for table management.
// Satisfied by *database.Queries (and its WithTx variant).
type TableStore interface {
	CreateTable(ctx context.Context, name string) (database.RestaurantTable, error)
	GetTable(ctx context.Context, id uuid.UUID) (database.RestaurantTable, error)
	GetTableByName(ctx context.Context, name string) (database.RestaurantTable, error)
	ListTables(ctx context.Context) ([]database.RestaurantTable, error)
	OccupyTable(ctx context.Context, arg database.OccupyTableParams) (database.RestaurantTable, error)
	ReleaseTable(ctx context.Context, id uuid.UUID) (database.RestaurantTable, error)
	UpdateTableStatus(ctx context.Context, arg database.UpdateTableStatusParams) (database.RestaurantTable, error)
	DeleteTable(ctx context.Context, id uuid.UUID) (int64, error)
}

// NewTableStore creates a TableStore from a DBTX (pool or tx).
type NewTableStore func(db database.DBTX) TableStore

// TableBinder manages physical tables and their binding to dine-in orders.
// Occupy and Release take the caller's DBTX so binding shares the order
// transaction.
type TableBinder struct {
	newStore NewTableStore
}

func NewTableBinder(newStore NewTableStore) *TableBinder {
	return &TableBinder{newStore: newStore}
}

// Occupy binds the table to an order. Fails with TABLE_NOT_AVAILABLE when the
// table is missing or not currently available; never silently succeeds on an
// occupied table.
func (b *TableBinder) Occupy(ctx context.Context, db database.DBTX, tableID, orderID uuid.UUID) (database.RestaurantTable, error) {
	t, err := b.newStore(db).OccupyTable(ctx, database.OccupyTableParams{ID: tableID, OrderID: orderID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.RestaurantTable{}, E(CodeTableNotAvailable, "table %s is not available", tableID)
		}
		return database.RestaurantTable{}, DBErr("occupy table", err)
	}
	return t, nil
}

// Release makes the table available again and clears the order binding.
func (b *TableBinder) Release(ctx context.Context, db database.DBTX, tableID uuid.UUID) error {
	if _, err := b.newStore(db).ReleaseTable(ctx, tableID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return E(CodeNotFound, "table %s not found", tableID)
		}
		return DBErr("release table", err)
	}
	return nil
}

// Create adds a table with a unique name. The lookup is case and whitespace
// insensitive, so "mesa 1" cannot join an existing "Mesa 1"; the unique index
// still backstops concurrent creates.
func (b *TableBinder) Create(ctx context.Context, db database.DBTX, name string) (database.RestaurantTable, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return database.RestaurantTable{}, E(CodeValidationError, "table name is required")
	}
	store := b.newStore(db)
	if _, err := store.GetTableByName(ctx, name); err == nil {
		return database.RestaurantTable{}, E(CodeValidationError, "table name %q is already in use", name)
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return database.RestaurantTable{}, DBErr("get table by name", err)
	}
	t, err := store.CreateTable(ctx, name)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return database.RestaurantTable{}, E(CodeValidationError, "table name %q is already in use", name)
		}
		return database.RestaurantTable{}, DBErr("create table", err)
	}
	return t, nil
}

func (b *TableBinder) Get(ctx context.Context, db database.DBTX, id uuid.UUID) (database.RestaurantTable, error) {
	t, err := b.newStore(db).GetTable(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.RestaurantTable{}, E(CodeNotFound, "table %s not found", id)
		}
		return database.RestaurantTable{}, DBErr("get table", err)
	}
	return t, nil
}

func (b *TableBinder) List(ctx context.Context, db database.DBTX) ([]database.RestaurantTable, error) {
	tables, err := b.newStore(db).ListTables(ctx)
	if err != nil {
		return nil, DBErr("list tables", err)
	}
	return tables, nil
}

// SetStatus moves a table between the staff-managed states. Occupied is only
// reachable through Occupy, and an occupied table must be released first.
func (b *TableBinder) SetStatus(ctx context.Context, db database.DBTX, id uuid.UUID, status string) (database.RestaurantTable, error) {
	switch status {
	case enum.TableStatusAvailable, enum.TableStatusCleaning, enum.TableStatusReserved:
	case enum.TableStatusOccupied:
		return database.RestaurantTable{}, E(CodeValidationError, "occupied is set by order binding, not directly")
	default:
		return database.RestaurantTable{}, E(CodeValidationError, "invalid table status %q", status)
	}

	store := b.newStore(db)
	current, err := store.GetTable(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.RestaurantTable{}, E(CodeNotFound, "table %s not found", id)
		}
		return database.RestaurantTable{}, DBErr("get table", err)
	}
	if current.Status == enum.TableStatusOccupied {
		return database.RestaurantTable{}, E(CodeTableNotAvailable, "table %q is occupied", current.Name)
	}
	t, err := store.UpdateTableStatus(ctx, database.UpdateTableStatusParams{ID: id, Status: status})
	if err != nil {
		return database.RestaurantTable{}, DBErr("update table status", err)
	}
	return t, nil
}

// Delete removes a table unless it is occupied.
func (b *TableBinder) Delete(ctx context.Context, db database.DBTX, id uuid.UUID) error {
	affected, err := b.newStore(db).DeleteTable(ctx, id)
	if err != nil {
		return DBErr("delete table", err)
	}
	if affected == 0 {
		return E(CodeTableNotAvailable, "table %s is occupied or does not exist", id)
	}
	return nil
}
