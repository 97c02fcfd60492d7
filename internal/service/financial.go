package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/sabordecasa/api/internal/database"
	"github.com/sabordecasa/api/internal/enum"
	"github.com/shopspring/decimal"
)

// FinancialStore defines the DB methods financial posting needs.
// Satisfied by *database.Queries (and its WithTx variant).
type FinancialStore interface {
	GetOrderItemCosts(ctx context.Context, orderID uuid.UUID) ([]database.OrderItemCostRow, error)
	GetOrderExtraCosts(ctx context.Context, orderID uuid.UUID) ([]database.OrderExtraCostRow, error)
	GetProductRecipeCost(ctx context.Context, productID uuid.UUID) (pgtype.Numeric, error)
	CreateFinancialMovement(ctx context.Context, arg database.CreateFinancialMovementParams) (database.FinancialMovement, error)
	ListFinancialMovements(ctx context.Context, arg database.ListFinancialMovementsParams) ([]database.FinancialMovement, error)
	ListFinancialMovementsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.FinancialMovement, error)
}

// NewFinancialStore creates a FinancialStore from a DBTX (pool or tx).
type NewFinancialStore func(db database.DBTX) FinancialStore

// PostingResult holds the movements created for a delivered order. CMV is nil
// when the computed cost was zero.
type PostingResult struct {
	Revenue database.FinancialMovement
	CMV     *database.FinancialMovement
}

// FinancialPoster writes REVENUE and CMV movements for delivered orders. It
// runs inside the caller's transaction so a posting failure rolls back the
// status change too.
type FinancialPoster struct {
	newStore NewFinancialStore
}

func NewFinancialPoster(newStore NewFinancialStore) *FinancialPoster {
	return &FinancialPoster{newStore: newStore}
}

// unitFactor converts an ingredient price quoted per stock_unit into the base
// portion unit used by recipes and extras (kg to g, l to ml).
func unitFactor(stockUnit, baseUnit string) decimal.Decimal {
	s := strings.ToLower(strings.TrimSpace(stockUnit))
	b := strings.ToLower(strings.TrimSpace(baseUnit))
	if s == b {
		return decimal.NewFromInt(1)
	}
	if (s == "kg" && b == "g") || (s == "l" && b == "ml") {
		return decimal.NewFromInt(1000)
	}
	return decimal.NewFromInt(1)
}

// OrderCOGS computes cost of goods sold from the persisted order rows:
// product cost_price (recipe cost when absent) times quantity, plus the
// ingredient cost of extras and positive base-modification deltas.
func (f *FinancialPoster) OrderCOGS(ctx context.Context, db database.DBTX, orderID uuid.UUID) (decimal.Decimal, error) {
	store := f.newStore(db)

	items, err := store.GetOrderItemCosts(ctx, orderID)
	if err != nil {
		return decimal.Zero, DBErr("get order item costs", err)
	}
	cogs := decimal.Zero
	for _, it := range items {
		unitCost := numericToDecimal(it.CostPrice)
		if !it.CostPrice.Valid {
			rc, err := store.GetProductRecipeCost(ctx, it.ProductID)
			if err != nil {
				return decimal.Zero, DBErr("get recipe cost", err)
			}
			unitCost = numericToDecimal(rc)
		}
		cogs = cogs.Add(unitCost.Mul(decimal.NewFromInt32(it.Quantity)))
	}

	extras, err := store.GetOrderExtraCosts(ctx, orderID)
	if err != nil {
		return decimal.Zero, DBErr("get order extra costs", err)
	}
	for _, ex := range extras {
		var units decimal.Decimal
		switch ex.Type {
		case enum.ExtraTypeExtra:
			units = numericToDecimal(ex.Quantity)
		case enum.ExtraTypeBase:
			delta := numericToDecimal(ex.Delta)
			if !delta.IsPositive() {
				continue
			}
			units = delta
		default:
			continue
		}
		pricePerUnit := numericToDecimal(ex.IngredientPrice).
			Div(unitFactor(ex.StockUnit, ex.BasePortionUnit))
		cogs = cogs.Add(units.Mul(pricePerUnit).Mul(decimal.NewFromInt32(ex.ItemQuantity)))
	}
	return cogs, nil
}

// RegisterOrderRevenueAndCMV posts the revenue movement for the order total
// and, when cost is positive, the matching CMV movement, both dated at
// paymentDate.
func (f *FinancialPoster) RegisterOrderRevenueAndCMV(ctx context.Context, db database.DBTX, order database.Order, paymentDate time.Time) (*PostingResult, error) {
	store := f.newStore(db)

	revenue, err := store.CreateFinancialMovement(ctx, database.CreateFinancialMovementParams{
		Type:          enum.MovementTypeRevenue,
		Value:         order.TotalAmount,
		Category:      "vendas",
		Description:   pgtype.Text{String: "pedido " + order.ConfirmationCode, Valid: true},
		MovementDate:  paymentDate,
		PaymentStatus: enum.PaymentStatusPaid,
		PaymentMethod: pgtype.Text{String: order.PaymentMethod, Valid: true},
		OrderID:       pgtype.UUID{Bytes: order.ID, Valid: true},
	})
	if err != nil {
		return nil, DBErr("create revenue movement", err)
	}

	cogs, err := f.OrderCOGS(ctx, db, order.ID)
	if err != nil {
		return nil, err
	}
	result := &PostingResult{Revenue: revenue}
	if cogs.IsPositive() {
		cmv, err := store.CreateFinancialMovement(ctx, database.CreateFinancialMovementParams{
			Type:          enum.MovementTypeCMV,
			Value:         decimalToNumeric(cogs),
			Category:      "cmv",
			Description:   pgtype.Text{String: "custo pedido " + order.ConfirmationCode, Valid: true},
			MovementDate:  paymentDate,
			PaymentStatus: enum.PaymentStatusPaid,
			OrderID:       pgtype.UUID{Bytes: order.ID, Valid: true},
		})
		if err != nil {
			return nil, DBErr("create cmv movement", err)
		}
		result.CMV = &cmv
	}
	return result, nil
}

// HasPostingsForOrder reports whether the order already has movements,
// guarding against duplicate posting on repeated delivered transitions.
func (f *FinancialPoster) HasPostingsForOrder(ctx context.Context, db database.DBTX, orderID uuid.UUID) (bool, error) {
	rows, err := f.newStore(db).ListFinancialMovementsByOrder(ctx, orderID)
	if err != nil {
		return false, DBErr("list movements by order", err)
	}
	return len(rows) > 0, nil
}

// List exposes the movement journal with optional type and date filters.
func (f *FinancialPoster) List(ctx context.Context, db database.DBTX, arg database.ListFinancialMovementsParams) ([]database.FinancialMovement, error) {
	rows, err := f.newStore(db).ListFinancialMovements(ctx, arg)
	if err != nil {
		return nil, DBErr("list movements", err)
	}
	return rows, nil
}
