package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/sabordecasa/api/internal/database"
	"github.com/sabordecasa/api/internal/enum"
	"github.com/sabordecasa/api/internal/validate"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// OrderStore defines the DB methods needed to orchestrate orders.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	UpdateOrderTotals(ctx context.Context, arg database.UpdateOrderTotalsParams) error
	ListOrdersByUser(ctx context.Context, userID uuid.UUID) ([]database.Order, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	CreateOrderItemExtra(ctx context.Context, arg database.CreateOrderItemExtraParams) (database.OrderItemExtra, error)
	ListOrderItemExtrasByItem(ctx context.Context, orderItemID uuid.UUID) ([]database.OrderItemExtra, error)
	GetProduct(ctx context.Context, id uuid.UUID) (database.Product, error)
	GetIngredient(ctx context.Context, id uuid.UUID) (database.Ingredient, error)
	ListProductIngredients(ctx context.Context, productID uuid.UUID) ([]database.ProductIngredient, error)
	GetActivePromotionForProduct(ctx context.Context, arg database.GetActivePromotionForProductParams) (database.Promotion, error)
	GetActiveAddressForUser(ctx context.Context, arg database.GetActiveAddressForUserParams) (database.Address, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (database.User, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
type NewOrderStore func(db database.DBTX) OrderStore

// Collaborator slices the orchestrator consumes. Each takes the caller's
// DBTX so the whole operation shares one transaction.
type orderStock interface {
	ValidateForItems(ctx context.Context, db database.DBTX, items []StockItem, excludeCartID pgtype.UUID) error
	DeductForOrder(ctx context.Context, db database.DBTX, orderID uuid.UUID) error
	RestockForOrder(ctx context.Context, db database.DBTX, orderID uuid.UUID) error
}

type orderPricing interface {
	ResolveUnitPrice(ctx context.Context, store PricingStore, productID uuid.UUID, basePrice decimal.Decimal) (ResolvedPrice, error)
}

type orderLoyalty interface {
	Redeem(ctx context.Context, db database.DBTX, userID uuid.UUID, points int64, orderID pgtype.UUID) (decimal.Decimal, error)
	EarnPoints(ctx context.Context, db database.DBTX, userID, orderID uuid.UUID, total decimal.Decimal) (int64, error)
}

type orderTables interface {
	Occupy(ctx context.Context, db database.DBTX, tableID, orderID uuid.UUID) (database.RestaurantTable, error)
	Release(ctx context.Context, db database.DBTX, tableID uuid.UUID) error
}

type orderFinancial interface {
	RegisterOrderRevenueAndCMV(ctx context.Context, db database.DBTX, order database.Order, paymentDate time.Time) (*PostingResult, error)
	HasPostingsForOrder(ctx context.Context, db database.DBTX, orderID uuid.UUID) (bool, error)
}

type orderSettings interface {
	GetDecimal(ctx context.Context, key string, def decimal.Decimal) (decimal.Decimal, error)
}

type storeHoursChecker interface {
	IsStoreOpen(ctx context.Context) (bool, string, error)
}

type orderCart interface {
	Get(ctx context.Context, db database.DBTX, cartID uuid.UUID) (database.Cart, error)
	Lines(ctx context.Context, db database.DBTX, cartID uuid.UUID) ([]CartLine, error)
	Clear(ctx context.Context, db database.DBTX, cartID uuid.UUID) error
}

// Notifier pushes realtime events. At-most-once, post-commit only.
type Notifier interface {
	Emit(event string, payload any)
}

// Mailer sends customer emails, best-effort after commit.
type Mailer interface {
	SendOrderConfirmation(ctx context.Context, email string, order database.Order) error
}

// Realtime event names.
const (
	EventNewKitchenOrder    = "new_kitchen_order"
	EventOrderStatusUpdated = "order_status_updated"
)

// allowedTransitions is the forward state machine. Cancellation and
// un-cancellation run through their own operations, not this map.
var allowedTransitions = map[string][]string{
	enum.OrderStatusPending:     {enum.OrderStatusConfirmed, enum.OrderStatusPreparing},
	enum.OrderStatusActiveTable: {enum.OrderStatusConfirmed, enum.OrderStatusPreparing},
	enum.OrderStatusConfirmed:   {enum.OrderStatusPreparing},
	enum.OrderStatusPreparing:   {enum.OrderStatusReady},
	enum.OrderStatusReady:       {enum.OrderStatusOnTheWay, enum.OrderStatusDelivered},
	enum.OrderStatusOnTheWay:    {enum.OrderStatusDelivered},
}

// CreateOrderItemRequest is a single product line in the order.
type CreateOrderItemRequest struct {
	ProductID string
	Quantity  int32
	Extras    []CartExtraRequest
}

// CreateOrderRequest is the validated input for creating an order.
type CreateOrderRequest struct {
	UserID         uuid.UUID
	OrderType      string
	AddressID      string
	TableID        string
	PaymentMethod  string
	AmountPaid     string // cash only
	PointsToRedeem int64
	CpfOnInvoice   string
	Notes          string
	Items          []CreateOrderItemRequest
}

// CreateOrderFromCartRequest converts a cart into an order.
type CreateOrderFromCartRequest struct {
	CartID string
	CreateOrderRequest
}

// OrderItemDetails is an item with its extras.
type OrderItemDetails struct {
	Item   database.OrderItem
	Extras []database.OrderItemExtra
}

// OrderDetails is the full order graph.
type OrderDetails struct {
	Order database.Order
	Items []OrderItemDetails
}

// OrderServiceDeps wires the orchestrator's collaborators.
type OrderServiceDeps struct {
	Pool      TxBeginner
	DB        database.DBTX
	NewStore  NewOrderStore
	Stock     orderStock
	Pricing   orderPricing
	Loyalty   orderLoyalty
	Tables    orderTables
	Financial orderFinancial
	Settings  orderSettings
	Hours     storeHoursChecker
	Cart      orderCart
	Notifier  Notifier
	Mailer    Mailer
	Log       logrus.FieldLogger
}

// OrderService runs order creation and the fulfillment state machine. Every
// top-level operation is one database transaction; post-commit side effects
// are best-effort and never fail the operation.
type OrderService struct {
	deps OrderServiceDeps
	now  func() time.Time
}

func NewOrderService(deps OrderServiceDeps) *OrderService {
	return &OrderService{deps: deps, now: time.Now}
}

// pricedExtra is a validated extra with its frozen unit price.
type pricedExtra struct {
	StockExtra
	unitPrice decimal.Decimal
}

// pricedItem is a fully priced order line ready to insert.
type pricedItem struct {
	productID uuid.UUID
	quantity  int32
	unitPrice decimal.Decimal
	lineTotal decimal.Decimal
	extras    []pricedExtra
}

// CreateOrder validates, prices and persists an order atomically: stock
// validation, promotion pricing, loyalty redemption, table binding and stock
// deduction either all happen or none do.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*OrderDetails, error) {
	return s.createOrder(ctx, req, pgtype.UUID{})
}

// CreateOrderFromCart resolves the cart into items, creates the order, then
// clears the cart and its reservations post-commit.
func (s *OrderService) CreateOrderFromCart(ctx context.Context, req CreateOrderFromCartRequest) (*OrderDetails, error) {
	cartID, err := uuid.Parse(req.CartID)
	if err != nil {
		return nil, E(CodeValidationError, "invalid cart_id")
	}
	cart, err := s.deps.Cart.Get(ctx, s.deps.DB, cartID)
	if err != nil {
		return nil, err
	}
	// A user may only check out their own cart; guest carts are open.
	if cart.UserID.Valid && cart.UserID.Bytes != req.UserID {
		return nil, E(CodeForbidden, "cart belongs to another user")
	}
	lines, err := s.deps.Cart.Lines(ctx, s.deps.DB, cartID)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, E(CodeValidationError, "cart is empty")
	}

	req.Items = req.Items[:0]
	for _, line := range lines {
		item := CreateOrderItemRequest{ProductID: line.ProductID.String(), Quantity: line.Quantity}
		for _, ex := range line.Extras {
			item.Extras = append(item.Extras, CartExtraRequest{
				IngredientID: ex.IngredientID.String(),
				Type:         ex.Type,
				Quantity:     ex.Quantity.String(),
				Delta:        ex.Delta.String(),
			})
		}
		req.Items = append(req.Items, item)
	}

	details, err := s.createOrder(ctx, req.CreateOrderRequest, pgtype.UUID{Bytes: cartID, Valid: true})
	if err != nil {
		return nil, err
	}
	if err := s.deps.Cart.Clear(ctx, s.deps.DB, cartID); err != nil {
		s.deps.Log.WithError(err).WithField("cart_id", cartID).
			Warn("failed to clear cart after order creation")
	}
	return details, nil
}

func (s *OrderService) createOrder(ctx context.Context, req CreateOrderRequest, sourceCartID pgtype.UUID) (*OrderDetails, error) {
	if err := validateOrderTypeFields(req); err != nil {
		return nil, err
	}
	if len(req.Items) == 0 {
		return nil, E(CodeValidationError, "items are required")
	}
	if !isValidPaymentMethod(req.PaymentMethod) {
		return nil, E(CodeValidationError, "invalid payment_method %q", req.PaymentMethod)
	}
	if req.CpfOnInvoice != "" && !validate.CPF(req.CpfOnInvoice) {
		return nil, E(CodeInvalidCPF, "invalid CPF")
	}

	open, reason, err := s.deps.Hours.IsStoreOpen(ctx)
	if err != nil {
		return nil, err
	}
	if !open {
		return nil, E(CodeStoreClosed, "%s", reason)
	}

	tx, err := s.deps.Pool.Begin(ctx)
	if err != nil {
		return nil, DBErr("begin tx", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck
	store := s.deps.NewStore(tx)

	addressID, err := s.resolveAddress(ctx, store, req)
	if err != nil {
		return nil, err
	}
	tableID := pgtype.UUID{}
	if req.TableID != "" {
		tid, err := uuid.Parse(req.TableID)
		if err != nil {
			return nil, E(CodeValidationError, "invalid table_id")
		}
		tableID = pgtype.UUID{Bytes: tid, Valid: true}
	}

	items, stockItems, err := s.priceItems(ctx, store, req.Items)
	if err != nil {
		return nil, err
	}

	if err := s.deps.Stock.ValidateForItems(ctx, tx, stockItems, sourceCartID); err != nil {
		return nil, err
	}

	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.lineTotal)
	}
	deliveryFee := decimal.Zero
	if req.OrderType == enum.OrderTypeDelivery {
		deliveryFee, err = s.deps.Settings.GetDecimal(ctx, enum.SettingDeliveryFee, decimal.Zero)
		if err != nil {
			return nil, err
		}
	}
	total := subtotal.Add(deliveryFee)

	status := enum.OrderStatusPending
	if req.OrderType == enum.OrderTypeOnSite && tableID.Valid {
		status = enum.OrderStatusActiveTable
	}

	cpf := pgtype.Text{}
	if req.CpfOnInvoice != "" {
		cpf = pgtype.Text{String: req.CpfOnInvoice, Valid: true}
	}
	notes := pgtype.Text{}
	if req.Notes != "" {
		notes = pgtype.Text{String: req.Notes, Valid: true}
	}

	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		UserID:           req.UserID,
		AddressID:        addressID,
		TableID:          tableID,
		OrderType:        req.OrderType,
		Status:           status,
		TotalAmount:      decimalToNumeric(total),
		DiscountAmount:   decimalToNumeric(decimal.Zero),
		DeliveryFee:      decimalToNumeric(deliveryFee),
		PointsRedeemed:   0,
		PaymentMethod:    req.PaymentMethod,
		ChangeForAmount:  pgtype.Numeric{},
		ConfirmationCode: confirmationCode(),
		CpfOnInvoice:     cpf,
		Notes:            notes,
	})
	if err != nil {
		return nil, DBErr("create order", err)
	}

	if tableID.Valid {
		if _, err := s.deps.Tables.Occupy(ctx, tx, uuid.UUID(tableID.Bytes), order.ID); err != nil {
			return nil, err
		}
	}

	discount := decimal.Zero
	if req.PointsToRedeem > 0 {
		discount, err = s.deps.Loyalty.Redeem(ctx, tx, req.UserID, req.PointsToRedeem,
			pgtype.UUID{Bytes: order.ID, Valid: true})
		if err != nil {
			return nil, err
		}
		if discount.GreaterThan(total) {
			return nil, E(CodeValidationError,
				"redemption discount %s exceeds order total %s", discount.StringFixed(2), total.StringFixed(2))
		}
		total = total.Sub(discount)
	}

	change := pgtype.Numeric{}
	if req.PaymentMethod == enum.PaymentMethodCash {
		paid, err := decimal.NewFromString(req.AmountPaid)
		if err != nil {
			return nil, E(CodeValidationError, "invalid amount_paid")
		}
		if paid.LessThan(total) {
			return nil, E(CodeValidationError,
				"amount_paid %s is less than total %s", paid.StringFixed(2), total.StringFixed(2))
		}
		change = decimalToNumeric(paid.Sub(total))
	}

	if err := store.UpdateOrderTotals(ctx, database.UpdateOrderTotalsParams{
		ID:              order.ID,
		TotalAmount:     decimalToNumeric(total),
		DiscountAmount:  decimalToNumeric(discount),
		ChangeForAmount: change,
	}); err != nil {
		return nil, DBErr("update order totals", err)
	}
	order.TotalAmount = decimalToNumeric(total)
	order.DiscountAmount = decimalToNumeric(discount)
	order.ChangeForAmount = change
	order.PointsRedeemed = req.PointsToRedeem

	var details []OrderItemDetails
	for _, it := range items {
		item, err := store.CreateOrderItem(ctx, database.CreateOrderItemParams{
			OrderID:   order.ID,
			ProductID: it.productID,
			Quantity:  it.quantity,
			UnitPrice: decimalToNumeric(it.unitPrice),
		})
		if err != nil {
			return nil, DBErr("create order item", err)
		}
		var extras []database.OrderItemExtra
		for _, ex := range it.extras {
			row, err := store.CreateOrderItemExtra(ctx, database.CreateOrderItemExtraParams{
				OrderItemID:  item.ID,
				IngredientID: ex.IngredientID,
				Type:         ex.Type,
				Quantity:     decimalToQtyNumeric(ex.Quantity),
				Delta:        decimalToQtyNumeric(ex.Delta),
				UnitPrice:    decimalToNumeric(ex.unitPrice),
			})
			if err != nil {
				return nil, DBErr("create order item extra", err)
			}
			extras = append(extras, row)
		}
		details = append(details, OrderItemDetails{Item: item, Extras: extras})
	}

	if err := s.deps.Stock.DeductForOrder(ctx, tx, order.ID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, DBErr("commit tx", err)
	}

	s.afterCreate(ctx, order)
	return &OrderDetails{Order: order, Items: details}, nil
}

// afterCreate runs the fire-and-forget side effects: kitchen event and
// confirmation email. Failures are logged and swallowed.
func (s *OrderService) afterCreate(ctx context.Context, order database.Order) {
	s.deps.Notifier.Emit(EventNewKitchenOrder, map[string]any{
		"order_id":          order.ID,
		"order_type":        order.OrderType,
		"status":            order.Status,
		"confirmation_code": order.ConfirmationCode,
	})
	user, err := s.deps.NewStore(s.deps.DB).GetUserByID(ctx, order.UserID)
	if err != nil {
		s.deps.Log.WithError(err).WithField("order_id", order.ID).
			Warn("could not load user for confirmation email")
		return
	}
	if err := s.deps.Mailer.SendOrderConfirmation(ctx, user.Email, order); err != nil {
		s.deps.Log.WithError(err).WithField("order_id", order.ID).
			Warn("confirmation email failed")
	}
}

func (s *OrderService) resolveAddress(ctx context.Context, store OrderStore, req CreateOrderRequest) (pgtype.UUID, error) {
	if req.OrderType != enum.OrderTypeDelivery {
		return pgtype.UUID{}, nil
	}
	aid, err := uuid.Parse(req.AddressID)
	if err != nil {
		return pgtype.UUID{}, E(CodeValidationError, "invalid address_id")
	}
	if _, err := store.GetActiveAddressForUser(ctx, database.GetActiveAddressForUserParams{
		ID:     aid,
		UserID: req.UserID,
	}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return pgtype.UUID{}, E(CodeValidationError, "address does not belong to user or is inactive")
		}
		return pgtype.UUID{}, DBErr("get address", err)
	}
	return pgtype.UUID{Bytes: aid, Valid: true}, nil
}

// priceItems validates every line and freezes its prices: promotion-resolved
// unit price plus extras priced from ingredient additional_price.
func (s *OrderService) priceItems(ctx context.Context, store OrderStore, reqs []CreateOrderItemRequest) ([]pricedItem, []StockItem, error) {
	var items []pricedItem
	var stockItems []StockItem

	for i, req := range reqs {
		if req.Quantity <= 0 {
			return nil, nil, E(CodeValidationError, "items[%d]: quantity must be > 0", i)
		}
		productID, err := uuid.Parse(req.ProductID)
		if err != nil {
			return nil, nil, E(CodeValidationError, "items[%d]: invalid product_id", i)
		}
		product, err := store.GetProduct(ctx, productID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, nil, E(CodeNotFound, "items[%d]: product not found", i)
			}
			return nil, nil, DBErr("get product", err)
		}
		if !product.IsActive {
			return nil, nil, E(CodeValidationError, "items[%d]: product %q is not available", i, product.Name)
		}

		extras, err := validateItemExtras(ctx, store, productID, req.Extras)
		if err != nil {
			return nil, nil, err
		}

		resolved, err := s.deps.Pricing.ResolveUnitPrice(ctx, store, productID, numericToDecimal(product.Price))
		if err != nil {
			return nil, nil, err
		}

		qty := decimal.NewFromInt32(req.Quantity)
		lineTotal := resolved.FinalPrice.Mul(qty)
		item := pricedItem{
			productID: productID,
			quantity:  req.Quantity,
			unitPrice: resolved.FinalPrice,
		}
		for _, ex := range extras {
			ing, err := store.GetIngredient(ctx, ex.IngredientID)
			if err != nil {
				return nil, nil, DBErr("get ingredient", err)
			}
			unit := ExtraUnitPrice(ing)
			// Removals are free; only added quantity is charged.
			switch ex.Type {
			case enum.ExtraTypeExtra:
				lineTotal = lineTotal.Add(unit.Mul(ex.Quantity).Mul(qty))
			case enum.ExtraTypeBase:
				if ex.Delta.IsPositive() {
					lineTotal = lineTotal.Add(unit.Mul(ex.Delta).Mul(qty))
				}
			}
			item.extras = append(item.extras, pricedExtra{StockExtra: ex, unitPrice: unit})
		}
		item.lineTotal = lineTotal
		items = append(items, item)
		stockItems = append(stockItems, StockItem{ProductID: productID, Quantity: req.Quantity, Extras: extras})
	}
	return items, stockItems, nil
}

// UpdateOrderStatus advances the fulfillment state machine. The external
// vocabulary is normalized first ("completed" means delivered; "on_the_way"
// downgrades to ready for pickup orders). Re-applying the current status is a
// no-op. The delivered transition posts financials and accrues loyalty points
// inside the same transaction.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, newStatus string) (*database.Order, error) {
	tx, err := s.deps.Pool.Begin(ctx)
	if err != nil {
		return nil, DBErr("begin tx", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck
	store := s.deps.NewStore(tx)

	order, err := store.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, E(CodeNotFound, "order %s not found", orderID)
		}
		return nil, DBErr("get order", err)
	}

	target := normalizeStatus(newStatus, order.OrderType)
	if target == "" {
		return nil, E(CodeValidationError, "invalid status %q", newStatus)
	}
	if order.Status == target {
		return &order, nil
	}
	if order.Status == enum.OrderStatusDelivered || order.Status == enum.OrderStatusCancelled {
		return nil, E(CodeValidationError, "order is %s; use cancel/uncancel operations", order.Status)
	}
	if !transitionAllowed(order.Status, target) {
		return nil, E(CodeValidationError, "cannot transition from %s to %s", order.Status, target)
	}

	if target == enum.OrderStatusDelivered {
		posted, err := s.deps.Financial.HasPostingsForOrder(ctx, tx, order.ID)
		if err != nil {
			return nil, err
		}
		if !posted {
			if _, err := s.deps.Financial.RegisterOrderRevenueAndCMV(ctx, tx, order, s.now()); err != nil {
				return nil, err
			}
			if _, err := s.deps.Loyalty.EarnPoints(ctx, tx, order.UserID, order.ID,
				numericToDecimal(order.TotalAmount)); err != nil {
				return nil, err
			}
		}
		if order.TableID.Valid {
			if err := s.deps.Tables.Release(ctx, tx, uuid.UUID(order.TableID.Bytes)); err != nil {
				return nil, err
			}
		}
	}

	updated, err := store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
		ID:             order.ID,
		Status:         target,
		PreviousStatus: order.PreviousStatus,
	})
	if err != nil {
		return nil, DBErr("update order status", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, DBErr("commit tx", err)
	}

	s.deps.Notifier.Emit(EventOrderStatusUpdated, map[string]any{
		"order_id": updated.ID,
		"status":   updated.Status,
	})
	return &updated, nil
}

// CancelOrder cancels a non-delivered order, remembering the prior status
// for uncancel. Customers may only cancel their own pending orders. The
// bound table is released and stock is restored best-effort after commit.
func (s *OrderService) CancelOrder(ctx context.Context, orderID, actorID uuid.UUID, isManager bool) (*database.Order, error) {
	tx, err := s.deps.Pool.Begin(ctx)
	if err != nil {
		return nil, DBErr("begin tx", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck
	store := s.deps.NewStore(tx)

	order, err := store.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, E(CodeNotFound, "order %s not found", orderID)
		}
		return nil, DBErr("get order", err)
	}
	if order.Status == enum.OrderStatusDelivered {
		return nil, E(CodeValidationError, "delivered orders cannot be cancelled")
	}
	if order.Status == enum.OrderStatusCancelled {
		return &order, nil
	}
	if !isManager {
		if order.UserID != actorID {
			return nil, E(CodeForbidden, "order belongs to another user")
		}
		if order.Status != enum.OrderStatusPending {
			return nil, E(CodeForbidden, "customers may only cancel pending orders")
		}
	}

	if order.TableID.Valid {
		if err := s.deps.Tables.Release(ctx, tx, uuid.UUID(order.TableID.Bytes)); err != nil {
			return nil, err
		}
	}
	updated, err := store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
		ID:             order.ID,
		Status:         enum.OrderStatusCancelled,
		PreviousStatus: pgtype.Text{String: order.Status, Valid: true},
	})
	if err != nil {
		return nil, DBErr("update order status", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, DBErr("commit tx", err)
	}

	// Restock is deliberately best-effort here, unlike the creation path:
	// a cancellation must not be blocked by a stock bookkeeping failure.
	if err := s.deps.Stock.RestockForOrder(ctx, s.deps.DB, order.ID); err != nil {
		s.deps.Log.WithError(err).WithField("order_id", order.ID).
			Error("restock after cancellation failed")
	}
	s.deps.Notifier.Emit(EventOrderStatusUpdated, map[string]any{
		"order_id": updated.ID,
		"status":   updated.Status,
	})
	return &updated, nil
}

// UncancelOrder returns a cancelled order to its prior status (confirmed as
// fallback), re-deducting stock; insufficient stock fails the transition.
// A dine-in order also needs its table to still be free.
func (s *OrderService) UncancelOrder(ctx context.Context, orderID uuid.UUID) (*database.Order, error) {
	tx, err := s.deps.Pool.Begin(ctx)
	if err != nil {
		return nil, DBErr("begin tx", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck
	store := s.deps.NewStore(tx)

	order, err := store.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, E(CodeNotFound, "order %s not found", orderID)
		}
		return nil, DBErr("get order", err)
	}
	if order.Status != enum.OrderStatusCancelled {
		return nil, E(CodeValidationError, "only cancelled orders can be uncancelled")
	}

	target := enum.OrderStatusConfirmed
	if order.PreviousStatus.Valid && order.PreviousStatus.String != "" {
		target = order.PreviousStatus.String
	}

	if err := s.deps.Stock.DeductForOrder(ctx, tx, order.ID); err != nil {
		return nil, err
	}
	if target == enum.OrderStatusActiveTable && order.TableID.Valid {
		if _, err := s.deps.Tables.Occupy(ctx, tx, uuid.UUID(order.TableID.Bytes), order.ID); err != nil {
			return nil, err
		}
	}

	updated, err := store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
		ID:             order.ID,
		Status:         target,
		PreviousStatus: pgtype.Text{},
	})
	if err != nil {
		return nil, DBErr("update order status", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, DBErr("commit tx", err)
	}

	s.deps.Notifier.Emit(EventOrderStatusUpdated, map[string]any{
		"order_id": updated.ID,
		"status":   updated.Status,
	})
	return &updated, nil
}

// GetOrderDetails loads the full order graph. Non-staff callers only see
// their own orders.
func (s *OrderService) GetOrderDetails(ctx context.Context, orderID, actorID uuid.UUID, isStaff bool) (*OrderDetails, error) {
	store := s.deps.NewStore(s.deps.DB)
	order, err := store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, E(CodeNotFound, "order %s not found", orderID)
		}
		return nil, DBErr("get order", err)
	}
	if !isStaff && order.UserID != actorID {
		return nil, E(CodeForbidden, "order belongs to another user")
	}

	items, err := store.ListOrderItemsByOrder(ctx, order.ID)
	if err != nil {
		return nil, DBErr("list order items", err)
	}
	details := &OrderDetails{Order: order}
	for _, it := range items {
		extras, err := store.ListOrderItemExtrasByItem(ctx, it.ID)
		if err != nil {
			return nil, DBErr("list order item extras", err)
		}
		details.Items = append(details.Items, OrderItemDetails{Item: it, Extras: extras})
	}
	return details, nil
}

// ListForUser returns the customer's order history, newest first.
func (s *OrderService) ListForUser(ctx context.Context, userID uuid.UUID) ([]database.Order, error) {
	orders, err := s.deps.NewStore(s.deps.DB).ListOrdersByUser(ctx, userID)
	if err != nil {
		return nil, DBErr("list orders by user", err)
	}
	return orders, nil
}

// List returns orders filtered by status and date range, for the back office.
func (s *OrderService) List(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error) {
	orders, err := s.deps.NewStore(s.deps.DB).ListOrders(ctx, arg)
	if err != nil {
		return nil, DBErr("list orders", err)
	}
	return orders, nil
}

// --- Helpers ---

func validateOrderTypeFields(req CreateOrderRequest) error {
	switch req.OrderType {
	case enum.OrderTypeDelivery:
		if req.AddressID == "" {
			return E(CodeValidationError, "address_id is required for delivery orders")
		}
		if req.TableID != "" {
			return E(CodeValidationError, "table_id is not valid for delivery orders")
		}
	case enum.OrderTypePickup:
		if req.AddressID != "" || req.TableID != "" {
			return E(CodeValidationError, "pickup orders take neither address_id nor table_id")
		}
	case enum.OrderTypeOnSite:
		if req.AddressID != "" {
			return E(CodeValidationError, "address_id is not valid for on_site orders")
		}
	default:
		return E(CodeValidationError, "invalid order_type %q", req.OrderType)
	}
	return nil
}

func isValidPaymentMethod(s string) bool {
	switch s {
	case enum.PaymentMethodCash, enum.PaymentMethodCredit,
		enum.PaymentMethodDebit, enum.PaymentMethodPix:
		return true
	}
	return false
}

// normalizeStatus maps the external vocabulary onto stored statuses. Returns
// "" for unknown input.
func normalizeStatus(s, orderType string) string {
	if s == "completed" {
		return enum.OrderStatusDelivered
	}
	if s == enum.OrderStatusOnTheWay && orderType != enum.OrderTypeDelivery {
		return enum.OrderStatusReady
	}
	switch s {
	case enum.OrderStatusPending, enum.OrderStatusActiveTable, enum.OrderStatusConfirmed,
		enum.OrderStatusPreparing, enum.OrderStatusReady, enum.OrderStatusOnTheWay,
		enum.OrderStatusDelivered, enum.OrderStatusCancelled:
		return s
	}
	return ""
}

func transitionAllowed(from, to string) bool {
	for _, t := range allowedTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// confirmationCode returns 8 random uppercase alphanumerics.
func confirmationCode() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the process is in serious trouble.
		panic(fmt.Sprintf("confirmation code: %v", err))
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf)
}
