package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/sabordecasa/api/internal/database"
	"github.com/sabordecasa/api/internal/enum"
	"github.com/shopspring/decimal"
)

// reservationTTL bounds how long a cart may hold ingredient stock before the
// hold stops counting against other checkouts.
const reservationTTL = 15 * time.Minute

// StockStore defines the DB methods the stock ledger needs.
// Satisfied by *database.Queries (and its WithTx variant).
type StockStore interface {
	GetIngredient(ctx context.Context, id uuid.UUID) (database.Ingredient, error)
	GetIngredientForUpdate(ctx context.Context, id uuid.UUID) (database.Ingredient, error)
	ListProductIngredients(ctx context.Context, productID uuid.UUID) ([]database.ProductIngredient, error)
	ListUnavailableIngredients(ctx context.Context, ids []uuid.UUID) ([]database.Ingredient, error)
	ListLowStockIngredients(ctx context.Context) ([]database.Ingredient, error)
	SumActiveReservations(ctx context.Context, arg database.SumActiveReservationsParams) (pgtype.Numeric, error)
	DeleteExpiredReservations(ctx context.Context, now time.Time) error
	DeductIngredientStock(ctx context.Context, arg database.DeductIngredientStockParams) (int64, error)
	AddIngredientStock(ctx context.Context, arg database.AddIngredientStockParams) error
	CreateReservation(ctx context.Context, arg database.CreateReservationParams) (database.TemporaryReservation, error)
	DeleteReservationsByCart(ctx context.Context, cartID uuid.UUID) error
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	ListOrderItemExtrasByItem(ctx context.Context, orderItemID uuid.UUID) ([]database.OrderItemExtra, error)
}

// NewStockStore creates a StockStore from a DBTX (pool or tx).
type NewStockStore func(db database.DBTX) StockStore

// StockItem is one product line as the stock ledger sees it.
type StockItem struct {
	ProductID uuid.UUID
	Quantity  int32
	Extras    []StockExtra
}

// StockExtra is one ingredient modification on a line. Type "extra" carries
// Quantity, type "base" carries a signed Delta against the recipe amount.
type StockExtra struct {
	IngredientID uuid.UUID
	Type         string
	Quantity     decimal.Decimal
	Delta        decimal.Decimal
}

// StockLedger validates, deducts and restores ingredient stock. Every method
// takes the caller's DBTX so deduction can run inside the order transaction.
type StockLedger struct {
	newStore NewStockStore
	now      func() time.Time
}

func NewStockLedger(newStore NewStockStore) *StockLedger {
	return &StockLedger{newStore: newStore, now: time.Now}
}

// requiredQuantities aggregates per-ingredient demand across all items. Each
// item contributes recipe portions x quantity, adjusted by base-modification
// deltas (floored at zero per item) plus extras.
func requiredQuantities(ctx context.Context, store StockStore, items []StockItem) (map[uuid.UUID]decimal.Decimal, error) {
	total := make(map[uuid.UUID]decimal.Decimal)
	for _, item := range items {
		qty := decimal.NewFromInt32(item.Quantity)

		recipe, err := store.ListProductIngredients(ctx, item.ProductID)
		if err != nil {
			return nil, DBErr("list product ingredients", err)
		}
		perItem := make(map[uuid.UUID]decimal.Decimal, len(recipe))
		for _, line := range recipe {
			perItem[line.IngredientID] = numericToDecimal(line.Portions).Mul(qty)
		}
		for _, ex := range item.Extras {
			switch ex.Type {
			case enum.ExtraTypeBase:
				perItem[ex.IngredientID] = perItem[ex.IngredientID].Add(ex.Delta.Mul(qty))
			case enum.ExtraTypeExtra:
				perItem[ex.IngredientID] = perItem[ex.IngredientID].Add(ex.Quantity.Mul(qty))
			}
		}
		for id, need := range perItem {
			if need.IsNegative() {
				continue
			}
			total[id] = total[id].Add(need)
		}
	}
	return total, nil
}

// stockDemand converts a portion-count demand into the ingredient's stock
// unit: portions times base_portion_quantity, scaled when the stock unit is
// a larger measure than the portion unit (kg vs g, l vs ml).
func stockDemand(ing database.Ingredient, portions decimal.Decimal) decimal.Decimal {
	per := numericToDecimal(ing.BasePortionQuantity)
	if per.IsZero() {
		per = decimal.NewFromInt(1)
	}
	return portions.Mul(per).Div(unitFactor(ing.StockUnit, ing.BasePortionUnit))
}

// sortedIngredientIDs gives a stable lock order across concurrent checkouts.
func sortedIngredientIDs(m map[uuid.UUID]decimal.Decimal) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

// ValidateForItems checks that every required ingredient has enough stock
// after subtracting other carts' unexpired reservations. excludeCartID keeps
// a checkout from being blocked by its own holds.
func (l *StockLedger) ValidateForItems(ctx context.Context, db database.DBTX, items []StockItem, excludeCartID pgtype.UUID) error {
	store := l.newStore(db)
	now := l.now()

	if err := store.DeleteExpiredReservations(ctx, now); err != nil {
		return DBErr("purge expired reservations", err)
	}

	required, err := requiredQuantities(ctx, store, items)
	if err != nil {
		return err
	}
	if len(required) == 0 {
		return nil
	}

	ids := sortedIngredientIDs(required)
	unavailable, err := store.ListUnavailableIngredients(ctx, ids)
	if err != nil {
		return DBErr("list unavailable ingredients", err)
	}
	if len(unavailable) > 0 {
		return E(CodeIngredientUnavailable, "ingredient %q is unavailable", unavailable[0].Name)
	}

	for _, id := range ids {
		ing, err := store.GetIngredient(ctx, id)
		if err != nil {
			return DBErr(fmt.Sprintf("get ingredient %s", id), err)
		}
		reserved, err := store.SumActiveReservations(ctx, database.SumActiveReservationsParams{
			IngredientID:  id,
			Now:           now,
			ExcludeCartID: excludeCartID,
		})
		if err != nil {
			return DBErr("sum reservations", err)
		}
		need := stockDemand(ing, required[id])
		available := numericToDecimal(ing.CurrentStock).Sub(numericToDecimal(reserved))
		if available.LessThan(need) {
			return E(CodeInsufficientStock, "insufficient stock for %q: need %s %s, have %s",
				ing.Name, need.String(), ing.StockUnit, available.String())
		}
	}
	return nil
}

// DeductForOrder recomputes demand from the persisted order rows and
// decrements each ingredient conditionally. It is the authoritative check:
// validation may be stale by the time the order transaction runs.
func (l *StockLedger) DeductForOrder(ctx context.Context, db database.DBTX, orderID uuid.UUID) error {
	store := l.newStore(db)
	required, err := l.orderRequirements(ctx, store, orderID)
	if err != nil {
		return err
	}
	// Rows are locked in sorted id order so concurrent deductions cannot
	// deadlock against each other.
	for _, id := range sortedIngredientIDs(required) {
		ing, err := store.GetIngredientForUpdate(ctx, id)
		if err != nil {
			return DBErr(fmt.Sprintf("lock ingredient %s", id), err)
		}
		affected, err := store.DeductIngredientStock(ctx, database.DeductIngredientStockParams{
			ID:       id,
			Quantity: decimalToQtyNumeric(stockDemand(ing, required[id])),
		})
		if err != nil {
			return DBErr(fmt.Sprintf("deduct stock for ingredient %s", id), err)
		}
		if affected == 0 {
			return E(CodeInsufficientStock, "insufficient stock for %q at deduction time", ing.Name)
		}
	}
	return nil
}

// RestockForOrder reverses DeductForOrder with the same quantities.
func (l *StockLedger) RestockForOrder(ctx context.Context, db database.DBTX, orderID uuid.UUID) error {
	store := l.newStore(db)
	required, err := l.orderRequirements(ctx, store, orderID)
	if err != nil {
		return err
	}
	for _, id := range sortedIngredientIDs(required) {
		ing, err := store.GetIngredientForUpdate(ctx, id)
		if err != nil {
			return DBErr(fmt.Sprintf("lock ingredient %s", id), err)
		}
		if err := store.AddIngredientStock(ctx, database.AddIngredientStockParams{
			ID:       id,
			Quantity: decimalToQtyNumeric(stockDemand(ing, required[id])),
		}); err != nil {
			return DBErr(fmt.Sprintf("restock ingredient %s", id), err)
		}
	}
	return nil
}

func (l *StockLedger) orderRequirements(ctx context.Context, store StockStore, orderID uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	dbItems, err := store.ListOrderItemsByOrder(ctx, orderID)
	if err != nil {
		return nil, DBErr("list order items", err)
	}
	items := make([]StockItem, 0, len(dbItems))
	for _, it := range dbItems {
		extras, err := store.ListOrderItemExtrasByItem(ctx, it.ID)
		if err != nil {
			return nil, DBErr("list order item extras", err)
		}
		si := StockItem{ProductID: it.ProductID, Quantity: it.Quantity}
		for _, ex := range extras {
			si.Extras = append(si.Extras, StockExtra{
				IngredientID: ex.IngredientID,
				Type:         ex.Type,
				Quantity:     numericToDecimal(ex.Quantity),
				Delta:        numericToDecimal(ex.Delta),
			})
		}
		items = append(items, si)
	}
	return requiredQuantities(ctx, store, items)
}

// ReserveForCart holds the items' ingredient demand for the cart, replacing
// any previous holds, so concurrent checkouts see it during validation.
func (l *StockLedger) ReserveForCart(ctx context.Context, db database.DBTX, cartID uuid.UUID, items []StockItem) error {
	store := l.newStore(db)
	required, err := requiredQuantities(ctx, store, items)
	if err != nil {
		return err
	}
	if err := store.DeleteReservationsByCart(ctx, cartID); err != nil {
		return DBErr("clear cart reservations", err)
	}
	expiresAt := l.now().Add(reservationTTL)
	for _, id := range sortedIngredientIDs(required) {
		if required[id].IsZero() {
			continue
		}
		ing, err := store.GetIngredient(ctx, id)
		if err != nil {
			return DBErr(fmt.Sprintf("get ingredient %s", id), err)
		}
		if _, err := store.CreateReservation(ctx, database.CreateReservationParams{
			CartID:       cartID,
			IngredientID: id,
			Quantity:     decimalToQtyNumeric(stockDemand(ing, required[id])),
			ExpiresAt:    expiresAt,
		}); err != nil {
			return DBErr("create reservation", err)
		}
	}
	return nil
}

// ReleaseCartReservations drops a cart's holds, used once the cart converts
// into an order (the deduction becomes the permanent record).
func (l *StockLedger) ReleaseCartReservations(ctx context.Context, db database.DBTX, cartID uuid.UUID) error {
	if err := l.newStore(db).DeleteReservationsByCart(ctx, cartID); err != nil {
		return DBErr("delete cart reservations", err)
	}
	return nil
}

// LowStock lists ingredients at or below their threshold, for the back
// office alert screen.
func (l *StockLedger) LowStock(ctx context.Context, db database.DBTX) ([]database.Ingredient, error) {
	out, err := l.newStore(db).ListLowStockIngredients(ctx)
	if err != nil {
		return nil, DBErr("list low stock", err)
	}
	return out, nil
}
