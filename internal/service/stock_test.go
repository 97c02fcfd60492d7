package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/sabordecasa/api/internal/database"
	"github.com/sabordecasa/api/internal/enum"
	"github.com/shopspring/decimal"
)

type mockStockStore struct {
	getIngredientFn              func(ctx context.Context, id uuid.UUID) (database.Ingredient, error)
	getIngredientForUpdateFn     func(ctx context.Context, id uuid.UUID) (database.Ingredient, error)
	listProductIngredientsFn     func(ctx context.Context, productID uuid.UUID) ([]database.ProductIngredient, error)
	listUnavailableIngredientsFn func(ctx context.Context, ids []uuid.UUID) ([]database.Ingredient, error)
	listLowStockIngredientsFn    func(ctx context.Context) ([]database.Ingredient, error)
	sumActiveReservationsFn      func(ctx context.Context, arg database.SumActiveReservationsParams) (pgtype.Numeric, error)
	deleteExpiredReservationsFn  func(ctx context.Context, now time.Time) error
	deductIngredientStockFn      func(ctx context.Context, arg database.DeductIngredientStockParams) (int64, error)
	addIngredientStockFn         func(ctx context.Context, arg database.AddIngredientStockParams) error
	createReservationFn          func(ctx context.Context, arg database.CreateReservationParams) (database.TemporaryReservation, error)
	deleteReservationsByCartFn   func(ctx context.Context, cartID uuid.UUID) error
	listOrderItemsByOrderFn      func(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	listOrderItemExtrasByItemFn  func(ctx context.Context, orderItemID uuid.UUID) ([]database.OrderItemExtra, error)
}

func (m *mockStockStore) GetIngredient(ctx context.Context, id uuid.UUID) (database.Ingredient, error) {
	if m.getIngredientFn == nil {
		panic("unexpected GetIngredient call")
	}
	return m.getIngredientFn(ctx, id)
}

func (m *mockStockStore) GetIngredientForUpdate(ctx context.Context, id uuid.UUID) (database.Ingredient, error) {
	if m.getIngredientForUpdateFn == nil {
		panic("unexpected GetIngredientForUpdate call")
	}
	return m.getIngredientForUpdateFn(ctx, id)
}

func (m *mockStockStore) ListProductIngredients(ctx context.Context, productID uuid.UUID) ([]database.ProductIngredient, error) {
	if m.listProductIngredientsFn == nil {
		panic("unexpected ListProductIngredients call")
	}
	return m.listProductIngredientsFn(ctx, productID)
}

func (m *mockStockStore) ListUnavailableIngredients(ctx context.Context, ids []uuid.UUID) ([]database.Ingredient, error) {
	if m.listUnavailableIngredientsFn == nil {
		panic("unexpected ListUnavailableIngredients call")
	}
	return m.listUnavailableIngredientsFn(ctx, ids)
}

func (m *mockStockStore) ListLowStockIngredients(ctx context.Context) ([]database.Ingredient, error) {
	if m.listLowStockIngredientsFn == nil {
		panic("unexpected ListLowStockIngredients call")
	}
	return m.listLowStockIngredientsFn(ctx)
}

func (m *mockStockStore) SumActiveReservations(ctx context.Context, arg database.SumActiveReservationsParams) (pgtype.Numeric, error) {
	if m.sumActiveReservationsFn == nil {
		panic("unexpected SumActiveReservations call")
	}
	return m.sumActiveReservationsFn(ctx, arg)
}

func (m *mockStockStore) DeleteExpiredReservations(ctx context.Context, now time.Time) error {
	if m.deleteExpiredReservationsFn == nil {
		panic("unexpected DeleteExpiredReservations call")
	}
	return m.deleteExpiredReservationsFn(ctx, now)
}

func (m *mockStockStore) DeductIngredientStock(ctx context.Context, arg database.DeductIngredientStockParams) (int64, error) {
	if m.deductIngredientStockFn == nil {
		panic("unexpected DeductIngredientStock call")
	}
	return m.deductIngredientStockFn(ctx, arg)
}

func (m *mockStockStore) AddIngredientStock(ctx context.Context, arg database.AddIngredientStockParams) error {
	if m.addIngredientStockFn == nil {
		panic("unexpected AddIngredientStock call")
	}
	return m.addIngredientStockFn(ctx, arg)
}

func (m *mockStockStore) CreateReservation(ctx context.Context, arg database.CreateReservationParams) (database.TemporaryReservation, error) {
	if m.createReservationFn == nil {
		panic("unexpected CreateReservation call")
	}
	return m.createReservationFn(ctx, arg)
}

func (m *mockStockStore) DeleteReservationsByCart(ctx context.Context, cartID uuid.UUID) error {
	if m.deleteReservationsByCartFn == nil {
		panic("unexpected DeleteReservationsByCart call")
	}
	return m.deleteReservationsByCartFn(ctx, cartID)
}

func (m *mockStockStore) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error) {
	if m.listOrderItemsByOrderFn == nil {
		panic("unexpected ListOrderItemsByOrder call")
	}
	return m.listOrderItemsByOrderFn(ctx, orderID)
}

func (m *mockStockStore) ListOrderItemExtrasByItem(ctx context.Context, orderItemID uuid.UUID) ([]database.OrderItemExtra, error) {
	if m.listOrderItemExtrasByItemFn == nil {
		panic("unexpected ListOrderItemExtrasByItem call")
	}
	return m.listOrderItemExtrasByItemFn(ctx, orderItemID)
}

func newStockLedger(store *mockStockStore) *StockLedger {
	return NewStockLedger(func(db database.DBTX) StockStore { return store })
}

func recipeLine(ingredientID uuid.UUID, portions string) database.ProductIngredient {
	return database.ProductIngredient{IngredientID: ingredientID, Portions: num(portions)}
}

func TestRequiredQuantities(t *testing.T) {
	ingX := uuid.New()
	ingY := uuid.New()
	ingZ := uuid.New()
	productP := uuid.New()
	productQ := uuid.New()

	store := &mockStockStore{
		listProductIngredientsFn: func(_ context.Context, productID uuid.UUID) ([]database.ProductIngredient, error) {
			if productID == productP {
				return []database.ProductIngredient{recipeLine(ingX, "1.5"), recipeLine(ingY, "1")}, nil
			}
			return []database.ProductIngredient{recipeLine(ingY, "2")}, nil
		},
	}

	items := []StockItem{
		{ProductID: productP, Quantity: 2, Extras: []StockExtra{
			{IngredientID: ingX, Type: enum.ExtraTypeBase, Delta: decimal.RequireFromString("0.5")},
			{IngredientID: ingZ, Type: enum.ExtraTypeExtra, Quantity: decimal.NewFromInt(1)},
		}},
		{ProductID: productQ, Quantity: 1},
		// the delta wipes out this item's demand for X entirely
		{ProductID: productP, Quantity: 1, Extras: []StockExtra{
			{IngredientID: ingX, Type: enum.ExtraTypeBase, Delta: decimal.NewFromInt(-2)},
		}},
	}

	got, err := requiredQuantities(context.Background(), store, items)
	if err != nil {
		t.Fatalf("requiredQuantities: %v", err)
	}
	want := map[uuid.UUID]string{ingX: "4", ingY: "5", ingZ: "2"}
	if len(got) != len(want) {
		t.Fatalf("ingredients: got %d, want %d", len(got), len(want))
	}
	for id, w := range want {
		if !got[id].Equal(decimal.RequireFromString(w)) {
			t.Errorf("ingredient %s: got %s, want %s", id, got[id], w)
		}
	}
}

func TestStockDemand(t *testing.T) {
	tests := []struct {
		name     string
		ing      database.Ingredient
		portions string
		want     string
	}{
		{"kg stock, g portions", database.Ingredient{StockUnit: "kg", BasePortionUnit: "g", BasePortionQuantity: num("100")}, "8", "0.8"},
		{"same unit", database.Ingredient{StockUnit: "g", BasePortionUnit: "g", BasePortionQuantity: num("50")}, "2", "100"},
		{"zero portion size defaults to one", database.Ingredient{StockUnit: "un", BasePortionUnit: "un"}, "3", "3"},
		{"l stock, ml portions", database.Ingredient{StockUnit: "l", BasePortionUnit: "ml", BasePortionQuantity: num("200")}, "5", "1"},
	}
	for _, tc := range tests {
		got := stockDemand(tc.ing, decimal.RequireFromString(tc.portions))
		if !got.Equal(decimal.RequireFromString(tc.want)) {
			t.Errorf("%s: got %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestSortedIngredientIDs(t *testing.T) {
	m := map[uuid.UUID]decimal.Decimal{
		uuid.New(): decimal.NewFromInt(1),
		uuid.New(): decimal.NewFromInt(2),
		uuid.New(): decimal.NewFromInt(3),
	}
	ids := sortedIngredientIDs(m)
	if len(ids) != 3 {
		t.Fatalf("ids: got %d, want 3", len(ids))
	}
	for i := 1; i < len(ids); i++ {
		if ids[i-1].String() >= ids[i].String() {
			t.Fatalf("ids not sorted: %v", ids)
		}
	}
}

func validateFixture(ing database.Ingredient, reserved string) (*mockStockStore, []StockItem) {
	store := &mockStockStore{
		listProductIngredientsFn: func(_ context.Context, _ uuid.UUID) ([]database.ProductIngredient, error) {
			return []database.ProductIngredient{recipeLine(ing.ID, "4")}, nil
		},
		listUnavailableIngredientsFn: func(_ context.Context, _ []uuid.UUID) ([]database.Ingredient, error) {
			return nil, nil
		},
		getIngredientFn: func(_ context.Context, id uuid.UUID) (database.Ingredient, error) {
			return ing, nil
		},
		sumActiveReservationsFn: func(_ context.Context, _ database.SumActiveReservationsParams) (pgtype.Numeric, error) {
			return num(reserved), nil
		},
		deleteExpiredReservationsFn: func(_ context.Context, _ time.Time) error { return nil },
	}
	return store, []StockItem{{ProductID: uuid.New(), Quantity: 2}}
}

func TestValidateForItems(t *testing.T) {
	ing := database.Ingredient{
		ID: uuid.New(), Name: "Arroz", StockUnit: "kg", BasePortionUnit: "g",
		BasePortionQuantity: num("100"), CurrentStock: num("1.0"), IsAvailable: true,
	}
	// demand: 4 portions x 2 qty x 100g = 0.8 kg

	store, items := validateFixture(ing, "0.1")
	if err := newStockLedger(store).ValidateForItems(context.Background(), nil, items, pgtype.UUID{}); err != nil {
		t.Fatalf("ValidateForItems: %v", err)
	}

	store, items = validateFixture(ing, "0.3")
	err := newStockLedger(store).ValidateForItems(context.Background(), nil, items, pgtype.UUID{})
	if CodeOf(err) != CodeInsufficientStock {
		t.Fatalf("code: got %v, want %v", CodeOf(err), CodeInsufficientStock)
	}
}

func TestValidateForItems_ExcludesOwnCart(t *testing.T) {
	ing := database.Ingredient{
		ID: uuid.New(), Name: "Arroz", StockUnit: "kg", BasePortionUnit: "g",
		BasePortionQuantity: num("100"), CurrentStock: num("1.0"), IsAvailable: true,
	}
	cartID := uuid.New()
	var gotExclude pgtype.UUID

	store, items := validateFixture(ing, "0")
	inner := store.sumActiveReservationsFn
	store.sumActiveReservationsFn = func(ctx context.Context, arg database.SumActiveReservationsParams) (pgtype.Numeric, error) {
		gotExclude = arg.ExcludeCartID
		return inner(ctx, arg)
	}

	exclude := pgtype.UUID{Bytes: cartID, Valid: true}
	if err := newStockLedger(store).ValidateForItems(context.Background(), nil, items, exclude); err != nil {
		t.Fatalf("ValidateForItems: %v", err)
	}
	if !gotExclude.Valid || gotExclude.Bytes != cartID {
		t.Errorf("exclude cart: %+v", gotExclude)
	}
}

func TestValidateForItems_UnavailableIngredient(t *testing.T) {
	ing := database.Ingredient{ID: uuid.New(), Name: "Camarao", StockUnit: "kg", BasePortionUnit: "g"}
	store, items := validateFixture(ing, "0")
	store.listUnavailableIngredientsFn = func(_ context.Context, _ []uuid.UUID) ([]database.Ingredient, error) {
		return []database.Ingredient{ing}, nil
	}

	err := newStockLedger(store).ValidateForItems(context.Background(), nil, items, pgtype.UUID{})
	if CodeOf(err) != CodeIngredientUnavailable {
		t.Fatalf("code: got %v, want %v", CodeOf(err), CodeIngredientUnavailable)
	}
}

func deductFixture(ing database.Ingredient) *mockStockStore {
	itemID := uuid.New()
	return &mockStockStore{
		listOrderItemsByOrderFn: func(_ context.Context, _ uuid.UUID) ([]database.OrderItem, error) {
			return []database.OrderItem{{ID: itemID, ProductID: uuid.New(), Quantity: 2}}, nil
		},
		listOrderItemExtrasByItemFn: func(_ context.Context, _ uuid.UUID) ([]database.OrderItemExtra, error) {
			return nil, nil
		},
		listProductIngredientsFn: func(_ context.Context, _ uuid.UUID) ([]database.ProductIngredient, error) {
			return []database.ProductIngredient{recipeLine(ing.ID, "1")}, nil
		},
		// deduct and restock must take the row lock; a plain read panics
		getIngredientForUpdateFn: func(_ context.Context, _ uuid.UUID) (database.Ingredient, error) {
			return ing, nil
		},
	}
}

func TestDeductForOrder(t *testing.T) {
	ing := database.Ingredient{
		ID: uuid.New(), Name: "Feijao", StockUnit: "kg", BasePortionUnit: "g",
		BasePortionQuantity: num("250"),
	}
	store := deductFixture(ing)
	var deducted decimal.Decimal
	store.deductIngredientStockFn = func(_ context.Context, arg database.DeductIngredientStockParams) (int64, error) {
		deducted = numericToDecimal(arg.Quantity)
		return 1, nil
	}

	if err := newStockLedger(store).DeductForOrder(context.Background(), nil, uuid.New()); err != nil {
		t.Fatalf("DeductForOrder: %v", err)
	}
	// 2 items x 1 portion x 250g = 0.5 kg
	if !deducted.Equal(decimal.RequireFromString("0.5")) {
		t.Errorf("deducted: got %s, want 0.5", deducted)
	}
}

func TestDeductForOrder_InsufficientAtDeduction(t *testing.T) {
	ing := database.Ingredient{ID: uuid.New(), Name: "Feijao", StockUnit: "g", BasePortionUnit: "g", BasePortionQuantity: num("10")}
	store := deductFixture(ing)
	store.deductIngredientStockFn = func(_ context.Context, _ database.DeductIngredientStockParams) (int64, error) {
		return 0, nil
	}

	err := newStockLedger(store).DeductForOrder(context.Background(), nil, uuid.New())
	if CodeOf(err) != CodeInsufficientStock {
		t.Fatalf("code: got %v, want %v", CodeOf(err), CodeInsufficientStock)
	}
}

func TestRestockForOrder(t *testing.T) {
	ing := database.Ingredient{
		ID: uuid.New(), Name: "Feijao", StockUnit: "kg", BasePortionUnit: "g",
		BasePortionQuantity: num("250"),
	}
	store := deductFixture(ing)
	var restocked decimal.Decimal
	store.addIngredientStockFn = func(_ context.Context, arg database.AddIngredientStockParams) error {
		restocked = numericToDecimal(arg.Quantity)
		return nil
	}

	if err := newStockLedger(store).RestockForOrder(context.Background(), nil, uuid.New()); err != nil {
		t.Fatalf("RestockForOrder: %v", err)
	}
	if !restocked.Equal(decimal.RequireFromString("0.5")) {
		t.Errorf("restocked: got %s, want 0.5", restocked)
	}
}

func TestReserveForCart(t *testing.T) {
	ingX := uuid.New()
	ingY := uuid.New()
	cartID := uuid.New()
	fixedNow := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	var cleared bool
	var created []database.CreateReservationParams
	store := &mockStockStore{
		listProductIngredientsFn: func(_ context.Context, _ uuid.UUID) ([]database.ProductIngredient, error) {
			// Y demands nothing, so no hold should be created for it
			return []database.ProductIngredient{recipeLine(ingX, "1"), recipeLine(ingY, "0")}, nil
		},
		getIngredientFn: func(_ context.Context, id uuid.UUID) (database.Ingredient, error) {
			return database.Ingredient{ID: id, StockUnit: "g", BasePortionUnit: "g", BasePortionQuantity: num("100")}, nil
		},
		deleteReservationsByCartFn: func(_ context.Context, id uuid.UUID) error {
			if id != cartID {
				t.Errorf("cleared cart: got %s, want %s", id, cartID)
			}
			cleared = true
			return nil
		},
		createReservationFn: func(_ context.Context, arg database.CreateReservationParams) (database.TemporaryReservation, error) {
			created = append(created, arg)
			return database.TemporaryReservation{ID: uuid.New()}, nil
		},
	}

	l := newStockLedger(store)
	l.now = func() time.Time { return fixedNow }

	items := []StockItem{{ProductID: uuid.New(), Quantity: 2}}
	if err := l.ReserveForCart(context.Background(), nil, cartID, items); err != nil {
		t.Fatalf("ReserveForCart: %v", err)
	}
	if !cleared {
		t.Error("expected previous holds to be cleared")
	}
	if len(created) != 1 {
		t.Fatalf("reservations: got %d, want 1", len(created))
	}
	r := created[0]
	if r.IngredientID != ingX || r.CartID != cartID {
		t.Errorf("reservation: %+v", r)
	}
	if !numericToDecimal(r.Quantity).Equal(decimal.RequireFromString("200")) {
		t.Errorf("reserved quantity: got %s, want 200", numericToDecimal(r.Quantity))
	}
	if !r.ExpiresAt.Equal(fixedNow.Add(reservationTTL)) {
		t.Errorf("expiry: got %v, want %v", r.ExpiresAt, fixedNow.Add(reservationTTL))
	}
}
