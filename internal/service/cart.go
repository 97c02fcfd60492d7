package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/sabordecasa/api/internal/database"
	"github.com/sabordecasa/api/internal/enum"
	"github.com/shopspring/decimal"
)

// CartStore defines the DB methods the cart service needs.
// Satisfied by *database.Queries (and its WithTx variant).
type CartStore interface {
	CreateCart(ctx context.Context, userID pgtype.UUID) (database.Cart, error)
	GetCart(ctx context.Context, id uuid.UUID) (database.Cart, error)
	GetCartByUser(ctx context.Context, userID uuid.UUID) (database.Cart, error)
	ClaimCart(ctx context.Context, arg database.ClaimCartParams) (database.Cart, error)
	TouchCart(ctx context.Context, id uuid.UUID) error
	DeleteCart(ctx context.Context, id uuid.UUID) error
	CreateCartItem(ctx context.Context, arg database.CreateCartItemParams) (database.CartItem, error)
	GetCartItem(ctx context.Context, id uuid.UUID) (database.CartItem, error)
	UpdateCartItemQuantity(ctx context.Context, arg database.UpdateCartItemQuantityParams) (database.CartItem, error)
	DeleteCartItem(ctx context.Context, id uuid.UUID) error
	ListCartItems(ctx context.Context, cartID uuid.UUID) ([]database.CartItem, error)
	ClearCartItems(ctx context.Context, cartID uuid.UUID) error
	CreateCartItemExtra(ctx context.Context, arg database.CreateCartItemExtraParams) (database.CartItemExtra, error)
	ListCartItemExtras(ctx context.Context, cartItemID uuid.UUID) ([]database.CartItemExtra, error)
	GetProduct(ctx context.Context, id uuid.UUID) (database.Product, error)
	ListProductIngredients(ctx context.Context, productID uuid.UUID) ([]database.ProductIngredient, error)
}

// NewCartStore creates a CartStore from a DBTX (pool or tx).
type NewCartStore func(db database.DBTX) CartStore

// cartStock is the slice of the stock ledger the cart needs: checkout-time
// validation and reservation holds.
type cartStock interface {
	ValidateForItems(ctx context.Context, db database.DBTX, items []StockItem, excludeCartID pgtype.UUID) error
	ReserveForCart(ctx context.Context, db database.DBTX, cartID uuid.UUID, items []StockItem) error
	ReleaseCartReservations(ctx context.Context, db database.DBTX, cartID uuid.UUID) error
}

// CartExtraRequest is one requested ingredient modification on a cart item.
type CartExtraRequest struct {
	IngredientID string
	Type         string
	Quantity     string
	Delta        string
}

// AddCartItemRequest adds a product line to a cart. CartID empty means the
// user's own cart (created on demand); guests must pass the cart id they got
// from CreateGuestCart.
type AddCartItemRequest struct {
	CartID    string
	UserID    pgtype.UUID
	ProductID string
	Quantity  int32
	Notes     string
	Extras    []CartExtraRequest
}

// CartLine is a cart item resolved for checkout or display.
type CartLine struct {
	ItemID    uuid.UUID
	ProductID uuid.UUID
	Quantity  int32
	Notes     string
	Extras    []StockExtra
}

// CartView is a cart with its resolved lines.
type CartView struct {
	Cart  database.Cart
	Lines []CartLine
}

// CartService stages items before checkout. Adding an item validates the
// product's ingredient rules and current stock, then refreshes the cart's
// temporary reservations.
type CartService struct {
	pool     TxBeginner
	newStore NewCartStore
	stock    cartStock
}

func NewCartService(pool TxBeginner, newStore NewCartStore, stock cartStock) *CartService {
	return &CartService{pool: pool, newStore: newStore, stock: stock}
}

// GetOrCreateForUser returns the user's single active cart.
func (s *CartService) GetOrCreateForUser(ctx context.Context, db database.DBTX, userID uuid.UUID) (database.Cart, error) {
	store := s.newStore(db)
	cart, err := store.GetCartByUser(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return database.Cart{}, DBErr("get cart by user", err)
	}
	cart, err = store.CreateCart(ctx, pgtype.UUID{Bytes: userID, Valid: true})
	if err != nil {
		return database.Cart{}, DBErr("create cart", err)
	}
	return cart, nil
}

// CreateGuestCart opens an anonymous cart addressed by id only.
func (s *CartService) CreateGuestCart(ctx context.Context, db database.DBTX) (database.Cart, error) {
	cart, err := s.newStore(db).CreateCart(ctx, pgtype.UUID{})
	if err != nil {
		return database.Cart{}, DBErr("create guest cart", err)
	}
	return cart, nil
}

// ClaimGuestCart reassigns a guest cart to the user on login. Rejected when
// the user already has a cart with items in it.
func (s *CartService) ClaimGuestCart(ctx context.Context, cartID, userID uuid.UUID) (database.Cart, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Cart{}, DBErr("begin tx", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)
	existing, err := store.GetCartByUser(ctx, userID)
	if err == nil {
		items, err := store.ListCartItems(ctx, existing.ID)
		if err != nil {
			return database.Cart{}, DBErr("list cart items", err)
		}
		if len(items) > 0 {
			return database.Cart{}, E(CodeValidationError, "user already has a cart with items")
		}
		if err := store.DeleteCart(ctx, existing.ID); err != nil {
			return database.Cart{}, DBErr("delete empty cart", err)
		}
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return database.Cart{}, DBErr("get cart by user", err)
	}

	cart, err := store.ClaimCart(ctx, database.ClaimCartParams{ID: cartID, UserID: userID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Cart{}, E(CodeNotFound, "guest cart %s not found or already claimed", cartID)
		}
		return database.Cart{}, DBErr("claim cart", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return database.Cart{}, DBErr("commit tx", err)
	}
	return cart, nil
}

// AddItem validates the product's ingredient rules and stock, merges with an
// identical existing line when possible, and refreshes the cart's holds.
func (s *CartService) AddItem(ctx context.Context, req AddCartItemRequest) (*CartView, error) {
	if req.Quantity <= 0 {
		return nil, E(CodeValidationError, "quantity must be > 0")
	}
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		return nil, E(CodeValidationError, "invalid product_id")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, DBErr("begin tx", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck
	store := s.newStore(tx)

	cart, err := s.resolveCart(ctx, tx, store, req)
	if err != nil {
		return nil, err
	}

	product, err := store.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, E(CodeNotFound, "product %s not found", productID)
		}
		return nil, DBErr("get product", err)
	}
	if !product.IsActive {
		return nil, E(CodeValidationError, "product %q is not available", product.Name)
	}

	extras, err := validateItemExtras(ctx, store, productID, req.Extras)
	if err != nil {
		return nil, err
	}

	// The whole cart must fit current stock, not just the new line.
	lines, err := s.lines(ctx, store, cart.ID)
	if err != nil {
		return nil, err
	}
	stockItems := linesToStockItems(lines)
	stockItems = append(stockItems, StockItem{ProductID: productID, Quantity: req.Quantity, Extras: extras})
	exclude := pgtype.UUID{Bytes: cart.ID, Valid: true}
	if err := s.stock.ValidateForItems(ctx, tx, stockItems, exclude); err != nil {
		return nil, err
	}

	if merged := findIdenticalLine(lines, productID, req.Notes, extras); merged != nil {
		if _, err := store.UpdateCartItemQuantity(ctx, database.UpdateCartItemQuantityParams{
			ID:       merged.ItemID,
			Quantity: merged.Quantity + req.Quantity,
		}); err != nil {
			return nil, DBErr("merge cart item", err)
		}
	} else {
		notes := pgtype.Text{}
		if req.Notes != "" {
			notes = pgtype.Text{String: req.Notes, Valid: true}
		}
		item, err := store.CreateCartItem(ctx, database.CreateCartItemParams{
			CartID:    cart.ID,
			ProductID: productID,
			Quantity:  req.Quantity,
			Notes:     notes,
		})
		if err != nil {
			return nil, DBErr("create cart item", err)
		}
		for _, ex := range extras {
			if _, err := store.CreateCartItemExtra(ctx, database.CreateCartItemExtraParams{
				CartItemID:   item.ID,
				IngredientID: ex.IngredientID,
				Type:         ex.Type,
				Quantity:     decimalToQtyNumeric(ex.Quantity),
				Delta:        decimalToQtyNumeric(ex.Delta),
			}); err != nil {
				return nil, DBErr("create cart item extra", err)
			}
		}
	}

	if err := s.stock.ReserveForCart(ctx, tx, cart.ID, stockItems); err != nil {
		return nil, err
	}
	if err := store.TouchCart(ctx, cart.ID); err != nil {
		return nil, DBErr("touch cart", err)
	}

	view, err := s.view(ctx, store, cart.ID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, DBErr("commit tx", err)
	}
	return view, nil
}

// UpdateItemQuantity changes a line's quantity; zero removes the line. The
// new cart contents are revalidated against stock before committing.
func (s *CartService) UpdateItemQuantity(ctx context.Context, cartItemID uuid.UUID, quantity int32) (*CartView, error) {
	if quantity < 0 {
		return nil, E(CodeValidationError, "quantity must be >= 0")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, DBErr("begin tx", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck
	store := s.newStore(tx)

	item, err := store.GetCartItem(ctx, cartItemID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, E(CodeNotFound, "cart item %s not found", cartItemID)
		}
		return nil, DBErr("get cart item", err)
	}

	if quantity == 0 {
		if err := store.DeleteCartItem(ctx, cartItemID); err != nil {
			return nil, DBErr("delete cart item", err)
		}
	} else {
		if _, err := store.UpdateCartItemQuantity(ctx, database.UpdateCartItemQuantityParams{
			ID:       cartItemID,
			Quantity: quantity,
		}); err != nil {
			return nil, DBErr("update cart item quantity", err)
		}
	}

	lines, err := s.lines(ctx, store, item.CartID)
	if err != nil {
		return nil, err
	}
	stockItems := linesToStockItems(lines)
	exclude := pgtype.UUID{Bytes: item.CartID, Valid: true}
	if err := s.stock.ValidateForItems(ctx, tx, stockItems, exclude); err != nil {
		return nil, err
	}
	if err := s.stock.ReserveForCart(ctx, tx, item.CartID, stockItems); err != nil {
		return nil, err
	}
	if err := store.TouchCart(ctx, item.CartID); err != nil {
		return nil, DBErr("touch cart", err)
	}

	view, err := s.view(ctx, store, item.CartID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, DBErr("commit tx", err)
	}
	return view, nil
}

// View returns the cart with its lines, outside any transaction.
func (s *CartService) View(ctx context.Context, db database.DBTX, cartID uuid.UUID) (*CartView, error) {
	return s.view(ctx, s.newStore(db), cartID)
}

// Get loads the cart row, so callers can check ownership before acting on it.
func (s *CartService) Get(ctx context.Context, db database.DBTX, cartID uuid.UUID) (database.Cart, error) {
	cart, err := s.newStore(db).GetCart(ctx, cartID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Cart{}, E(CodeNotFound, "cart %s not found", cartID)
		}
		return database.Cart{}, DBErr("get cart", err)
	}
	return cart, nil
}

// Lines resolves the cart's items for checkout, within the caller's DBTX.
func (s *CartService) Lines(ctx context.Context, db database.DBTX, cartID uuid.UUID) ([]CartLine, error) {
	return s.lines(ctx, s.newStore(db), cartID)
}

// Clear empties the cart and drops its reservations, used after the cart
// converts into an order.
func (s *CartService) Clear(ctx context.Context, db database.DBTX, cartID uuid.UUID) error {
	if err := s.newStore(db).ClearCartItems(ctx, cartID); err != nil {
		return DBErr("clear cart items", err)
	}
	return s.stock.ReleaseCartReservations(ctx, db, cartID)
}

func (s *CartService) resolveCart(ctx context.Context, db database.DBTX, store CartStore, req AddCartItemRequest) (database.Cart, error) {
	if req.CartID != "" {
		id, err := uuid.Parse(req.CartID)
		if err != nil {
			return database.Cart{}, E(CodeValidationError, "invalid cart_id")
		}
		cart, err := store.GetCart(ctx, id)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return database.Cart{}, E(CodeNotFound, "cart %s not found", id)
			}
			return database.Cart{}, DBErr("get cart", err)
		}
		// A user may only touch their own cart; guest carts are open.
		if cart.UserID.Valid && (!req.UserID.Valid || cart.UserID.Bytes != req.UserID.Bytes) {
			return database.Cart{}, E(CodeForbidden, "cart belongs to another user")
		}
		return cart, nil
	}
	if req.UserID.Valid {
		return s.GetOrCreateForUser(ctx, db, uuid.UUID(req.UserID.Bytes))
	}
	return s.CreateGuestCart(ctx, db)
}

// recipeLister is the single query both cart and order extras validation
// need.
type recipeLister interface {
	ListProductIngredients(ctx context.Context, productID uuid.UUID) ([]database.ProductIngredient, error)
}

// validateItemExtras enforces the product's ingredient rules: an extra must
// name an ingredient offered for the product but outside its base recipe,
// with quantity inside the configured range; a base modification must target
// a recipe ingredient with a nonzero delta.
func validateItemExtras(ctx context.Context, store recipeLister, productID uuid.UUID, reqs []CartExtraRequest) ([]StockExtra, error) {
	if len(reqs) == 0 {
		return nil, nil
	}
	recipe, err := store.ListProductIngredients(ctx, productID)
	if err != nil {
		return nil, DBErr("list product ingredients", err)
	}
	rules := make(map[uuid.UUID]database.ProductIngredient, len(recipe))
	for _, line := range recipe {
		rules[line.IngredientID] = line
	}

	var out []StockExtra
	for i, req := range reqs {
		ingredientID, err := uuid.Parse(req.IngredientID)
		if err != nil {
			return nil, E(CodeValidationError, "extras[%d]: invalid ingredient_id", i)
		}
		rule, known := rules[ingredientID]
		if !known {
			return nil, E(CodeValidationError, "extras[%d]: ingredient not offered for this product", i)
		}
		inBaseRecipe := numericToDecimal(rule.Portions).IsPositive()

		switch req.Type {
		case enum.ExtraTypeExtra:
			if inBaseRecipe {
				return nil, E(CodeValidationError, "extras[%d]: ingredient is part of the base recipe, use a base modification", i)
			}
			qty, err := decimal.NewFromString(req.Quantity)
			if err != nil || !qty.IsPositive() {
				return nil, E(CodeValidationError, "extras[%d]: quantity must be > 0", i)
			}
			min := decimal.NewFromInt32(rule.MinQuantity)
			if qty.LessThan(min) {
				return nil, E(CodeValidationError, "extras[%d]: quantity below minimum %d", i, rule.MinQuantity)
			}
			if rule.MaxQuantity > 0 && qty.GreaterThan(decimal.NewFromInt32(rule.MaxQuantity)) {
				return nil, E(CodeValidationError, "extras[%d]: quantity above maximum %d", i, rule.MaxQuantity)
			}
			out = append(out, StockExtra{IngredientID: ingredientID, Type: req.Type, Quantity: qty})

		case enum.ExtraTypeBase:
			if !inBaseRecipe {
				return nil, E(CodeValidationError, "extras[%d]: ingredient is not part of the base recipe", i)
			}
			delta, err := decimal.NewFromString(req.Delta)
			if err != nil || delta.IsZero() {
				return nil, E(CodeValidationError, "extras[%d]: delta must be nonzero", i)
			}
			out = append(out, StockExtra{IngredientID: ingredientID, Type: req.Type, Delta: delta})

		default:
			return nil, E(CodeValidationError, "extras[%d]: invalid type %q", i, req.Type)
		}
	}
	return out, nil
}

func (s *CartService) lines(ctx context.Context, store CartStore, cartID uuid.UUID) ([]CartLine, error) {
	items, err := store.ListCartItems(ctx, cartID)
	if err != nil {
		return nil, DBErr("list cart items", err)
	}
	lines := make([]CartLine, 0, len(items))
	for _, it := range items {
		extras, err := store.ListCartItemExtras(ctx, it.ID)
		if err != nil {
			return nil, DBErr(fmt.Sprintf("list extras for item %s", it.ID), err)
		}
		line := CartLine{ItemID: it.ID, ProductID: it.ProductID, Quantity: it.Quantity, Notes: it.Notes.String}
		for _, ex := range extras {
			line.Extras = append(line.Extras, StockExtra{
				IngredientID: ex.IngredientID,
				Type:         ex.Type,
				Quantity:     numericToDecimal(ex.Quantity),
				Delta:        numericToDecimal(ex.Delta),
			})
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func (s *CartService) view(ctx context.Context, store CartStore, cartID uuid.UUID) (*CartView, error) {
	cart, err := store.GetCart(ctx, cartID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, E(CodeNotFound, "cart %s not found", cartID)
		}
		return nil, DBErr("get cart", err)
	}
	lines, err := s.lines(ctx, store, cartID)
	if err != nil {
		return nil, err
	}
	return &CartView{Cart: cart, Lines: lines}, nil
}

func linesToStockItems(lines []CartLine) []StockItem {
	items := make([]StockItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, StockItem{ProductID: l.ProductID, Quantity: l.Quantity, Extras: l.Extras})
	}
	return items
}

func findIdenticalLine(lines []CartLine, productID uuid.UUID, notes string, extras []StockExtra) *CartLine {
	for i := range lines {
		l := &lines[i]
		if l.ProductID != productID || l.Notes != notes || len(l.Extras) != len(extras) {
			continue
		}
		match := true
		for j := range extras {
			a, b := l.Extras[j], extras[j]
			if a.IngredientID != b.IngredientID || a.Type != b.Type ||
				!a.Quantity.Equal(b.Quantity) || !a.Delta.Equal(b.Delta) {
				match = false
				break
			}
		}
		if match {
			return l
		}
	}
	return nil
}
