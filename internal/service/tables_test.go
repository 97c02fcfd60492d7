package service

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sabordecasa/api/internal/database"
	"github.com/sabordecasa/api/internal/enum"
)

type mockTableStore struct {
	createTableFn       func(ctx context.Context, name string) (database.RestaurantTable, error)
	getTableFn          func(ctx context.Context, id uuid.UUID) (database.RestaurantTable, error)
	getTableByNameFn    func(ctx context.Context, name string) (database.RestaurantTable, error)
	listTablesFn        func(ctx context.Context) ([]database.RestaurantTable, error)
	occupyTableFn       func(ctx context.Context, arg database.OccupyTableParams) (database.RestaurantTable, error)
	releaseTableFn      func(ctx context.Context, id uuid.UUID) (database.RestaurantTable, error)
	updateTableStatusFn func(ctx context.Context, arg database.UpdateTableStatusParams) (database.RestaurantTable, error)
	deleteTableFn       func(ctx context.Context, id uuid.UUID) (int64, error)
}

func (m *mockTableStore) CreateTable(ctx context.Context, name string) (database.RestaurantTable, error) {
	if m.createTableFn == nil {
		panic("unexpected CreateTable call")
	}
	return m.createTableFn(ctx, name)
}

func (m *mockTableStore) GetTable(ctx context.Context, id uuid.UUID) (database.RestaurantTable, error) {
	if m.getTableFn == nil {
		panic("unexpected GetTable call")
	}
	return m.getTableFn(ctx, id)
}

func (m *mockTableStore) GetTableByName(ctx context.Context, name string) (database.RestaurantTable, error) {
	if m.getTableByNameFn == nil {
		panic("unexpected GetTableByName call")
	}
	return m.getTableByNameFn(ctx, name)
}

func (m *mockTableStore) ListTables(ctx context.Context) ([]database.RestaurantTable, error) {
	if m.listTablesFn == nil {
		panic("unexpected ListTables call")
	}
	return m.listTablesFn(ctx)
}

func (m *mockTableStore) OccupyTable(ctx context.Context, arg database.OccupyTableParams) (database.RestaurantTable, error) {
	if m.occupyTableFn == nil {
		panic("unexpected OccupyTable call")
	}
	return m.occupyTableFn(ctx, arg)
}

func (m *mockTableStore) ReleaseTable(ctx context.Context, id uuid.UUID) (database.RestaurantTable, error) {
	if m.releaseTableFn == nil {
		panic("unexpected ReleaseTable call")
	}
	return m.releaseTableFn(ctx, id)
}

func (m *mockTableStore) UpdateTableStatus(ctx context.Context, arg database.UpdateTableStatusParams) (database.RestaurantTable, error) {
	if m.updateTableStatusFn == nil {
		panic("unexpected UpdateTableStatus call")
	}
	return m.updateTableStatusFn(ctx, arg)
}

func (m *mockTableStore) DeleteTable(ctx context.Context, id uuid.UUID) (int64, error) {
	if m.deleteTableFn == nil {
		panic("unexpected DeleteTable call")
	}
	return m.deleteTableFn(ctx, id)
}

func newTableBinder(store *mockTableStore) *TableBinder {
	return NewTableBinder(func(db database.DBTX) TableStore { return store })
}

func TestOccupyTable(t *testing.T) {
	tableID := uuid.New()
	orderID := uuid.New()
	store := &mockTableStore{
		occupyTableFn: func(_ context.Context, arg database.OccupyTableParams) (database.RestaurantTable, error) {
			if arg.ID != tableID || arg.OrderID != orderID {
				t.Errorf("occupy params: %+v", arg)
			}
			return database.RestaurantTable{ID: arg.ID, Status: enum.TableStatusOccupied}, nil
		},
	}

	tab, err := newTableBinder(store).Occupy(context.Background(), nil, tableID, orderID)
	if err != nil {
		t.Fatalf("Occupy: %v", err)
	}
	if tab.Status != enum.TableStatusOccupied {
		t.Errorf("status: got %q, want occupied", tab.Status)
	}
}

func TestOccupyTable_NotAvailable(t *testing.T) {
	store := &mockTableStore{
		occupyTableFn: func(_ context.Context, _ database.OccupyTableParams) (database.RestaurantTable, error) {
			return database.RestaurantTable{}, pgx.ErrNoRows
		},
	}

	_, err := newTableBinder(store).Occupy(context.Background(), nil, uuid.New(), uuid.New())
	if CodeOf(err) != CodeTableNotAvailable {
		t.Fatalf("code: got %v, want %v", CodeOf(err), CodeTableNotAvailable)
	}
}

func TestReleaseTable_NotFound(t *testing.T) {
	store := &mockTableStore{
		releaseTableFn: func(_ context.Context, _ uuid.UUID) (database.RestaurantTable, error) {
			return database.RestaurantTable{}, pgx.ErrNoRows
		},
	}

	err := newTableBinder(store).Release(context.Background(), nil, uuid.New())
	if CodeOf(err) != CodeNotFound {
		t.Fatalf("code: got %v, want %v", CodeOf(err), CodeNotFound)
	}
}

func TestCreateTable(t *testing.T) {
	store := &mockTableStore{
		getTableByNameFn: func(_ context.Context, _ string) (database.RestaurantTable, error) {
			return database.RestaurantTable{}, pgx.ErrNoRows
		},
		createTableFn: func(_ context.Context, name string) (database.RestaurantTable, error) {
			return database.RestaurantTable{ID: uuid.New(), Name: name, Status: enum.TableStatusAvailable}, nil
		},
	}
	b := newTableBinder(store)

	tab, err := b.Create(context.Background(), nil, "  Mesa 04  ")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if tab.Name != "Mesa 04" {
		t.Errorf("name: got %q, want trimmed", tab.Name)
	}

	_, err = b.Create(context.Background(), nil, "   ")
	if CodeOf(err) != CodeValidationError {
		t.Fatalf("empty name code: got %v, want %v", CodeOf(err), CodeValidationError)
	}
}

func TestCreateTable_DuplicateName(t *testing.T) {
	// The name lookup hits, so the insert never runs; createTableFn left nil.
	store := &mockTableStore{
		getTableByNameFn: func(_ context.Context, _ string) (database.RestaurantTable, error) {
			return database.RestaurantTable{ID: uuid.New(), Name: "MESA 01"}, nil
		},
	}

	_, err := newTableBinder(store).Create(context.Background(), nil, "mesa 01")
	if CodeOf(err) != CodeValidationError {
		t.Fatalf("code: got %v, want %v", CodeOf(err), CodeValidationError)
	}
	if !strings.Contains(err.Error(), "already in use") {
		t.Errorf("message: %v", err)
	}
}

func TestCreateTable_DuplicateNameRace(t *testing.T) {
	// Lookup misses but a concurrent create wins the unique index.
	store := &mockTableStore{
		getTableByNameFn: func(_ context.Context, _ string) (database.RestaurantTable, error) {
			return database.RestaurantTable{}, pgx.ErrNoRows
		},
		createTableFn: func(_ context.Context, _ string) (database.RestaurantTable, error) {
			return database.RestaurantTable{}, &pgconn.PgError{Code: "23505"}
		},
	}

	_, err := newTableBinder(store).Create(context.Background(), nil, "Mesa 01")
	if CodeOf(err) != CodeValidationError {
		t.Fatalf("code: got %v, want %v", CodeOf(err), CodeValidationError)
	}
	if !strings.Contains(err.Error(), "already in use") {
		t.Errorf("message: %v", err)
	}
}

func TestSetTableStatus(t *testing.T) {
	tableID := uuid.New()
	store := &mockTableStore{
		getTableFn: func(_ context.Context, id uuid.UUID) (database.RestaurantTable, error) {
			return database.RestaurantTable{ID: id, Name: "Mesa 02", Status: enum.TableStatusAvailable}, nil
		},
		updateTableStatusFn: func(_ context.Context, arg database.UpdateTableStatusParams) (database.RestaurantTable, error) {
			return database.RestaurantTable{ID: arg.ID, Status: arg.Status}, nil
		},
	}

	tab, err := newTableBinder(store).SetStatus(context.Background(), nil, tableID, enum.TableStatusCleaning)
	if err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if tab.Status != enum.TableStatusCleaning {
		t.Errorf("status: got %q, want cleaning", tab.Status)
	}
}

func TestSetTableStatus_Rejections(t *testing.T) {
	occupiedStore := func() *mockTableStore {
		return &mockTableStore{
			getTableFn: func(_ context.Context, id uuid.UUID) (database.RestaurantTable, error) {
				return database.RestaurantTable{ID: id, Name: "Mesa 03", Status: enum.TableStatusOccupied}, nil
			},
		}
	}

	tests := []struct {
		name   string
		store  *mockTableStore
		status string
		want   Code
	}{
		{"unknown status", &mockTableStore{}, "broken", CodeValidationError},
		{"occupied set directly", &mockTableStore{}, enum.TableStatusOccupied, CodeValidationError},
		{"currently occupied", occupiedStore(), enum.TableStatusAvailable, CodeTableNotAvailable},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := newTableBinder(tc.store).SetStatus(context.Background(), nil, uuid.New(), tc.status)
			if CodeOf(err) != tc.want {
				t.Fatalf("code: got %v, want %v", CodeOf(err), tc.want)
			}
		})
	}
}

func TestDeleteTable(t *testing.T) {
	store := &mockTableStore{
		deleteTableFn: func(_ context.Context, _ uuid.UUID) (int64, error) { return 1, nil },
	}
	if err := newTableBinder(store).Delete(context.Background(), nil, uuid.New()); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	store.deleteTableFn = func(_ context.Context, _ uuid.UUID) (int64, error) { return 0, nil }
	err := newTableBinder(store).Delete(context.Background(), nil, uuid.New())
	if CodeOf(err) != CodeTableNotAvailable {
		t.Fatalf("code: got %v, want %v", CodeOf(err), CodeTableNotAvailable)
	}
}
