package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type User struct {
	ID             uuid.UUID
	Email          string
	HashedPassword string
	FullName       string
	Role           string
	CreatedAt      time.Time
}

type Address struct {
	ID       uuid.UUID
	UserID   uuid.UUID
	Street   string
	Number   string
	IsActive bool
}

type Product struct {
	ID          uuid.UUID
	Name        string
	Description pgtype.Text
	Price       pgtype.Numeric
	CostPrice   pgtype.Numeric
	IsActive    bool
}

// ProductIngredient is one recipe line: how much of an ingredient a single
// serving of the product uses, and the allowed extra-quantity range.
type ProductIngredient struct {
	ProductID    uuid.UUID
	IngredientID uuid.UUID
	Portions     pgtype.Numeric
	MinQuantity  int32
	MaxQuantity  int32
}

type Ingredient struct {
	ID                  uuid.UUID
	Name                string
	Price               pgtype.Numeric
	AdditionalPrice     pgtype.Numeric
	CurrentStock        pgtype.Numeric
	MinStockThreshold   pgtype.Numeric
	StockUnit           string
	BasePortionQuantity pgtype.Numeric
	BasePortionUnit     string
	IsAvailable         bool
	StockStatus         string
}

type Promotion struct {
	ID                 uuid.UUID
	ProductID          uuid.UUID
	DiscountPercentage pgtype.Numeric
	DiscountValue      pgtype.Numeric
	ExpiresAt          pgtype.Timestamptz
	CreatedAt          time.Time
}

type Order struct {
	ID               uuid.UUID
	UserID           uuid.UUID
	AddressID        pgtype.UUID
	TableID          pgtype.UUID
	OrderType        string
	Status           string
	PreviousStatus   pgtype.Text
	TotalAmount      pgtype.Numeric
	DiscountAmount   pgtype.Numeric
	DeliveryFee      pgtype.Numeric
	PointsRedeemed   int64
	PaymentMethod    string
	ChangeForAmount  pgtype.Numeric
	ConfirmationCode string
	CpfOnInvoice     pgtype.Text
	Notes            pgtype.Text
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type OrderItem struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	ProductID uuid.UUID
	Quantity  int32
	UnitPrice pgtype.Numeric
}

// OrderItemExtra is one ingredient modification: type "extra" adds an
// ingredient on top of the recipe, type "base" changes a recipe ingredient's
// quantity by Delta (negative = removal).
type OrderItemExtra struct {
	ID           uuid.UUID
	OrderItemID  uuid.UUID
	IngredientID uuid.UUID
	Type         string
	Quantity     pgtype.Numeric
	Delta        pgtype.Numeric
	UnitPrice    pgtype.Numeric
}

type Cart struct {
	ID        uuid.UUID
	UserID    pgtype.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

type CartItem struct {
	ID        uuid.UUID
	CartID    uuid.UUID
	ProductID uuid.UUID
	Quantity  int32
	Notes     pgtype.Text
}

type CartItemExtra struct {
	ID           uuid.UUID
	CartItemID   uuid.UUID
	IngredientID uuid.UUID
	Type         string
	Quantity     pgtype.Numeric
	Delta        pgtype.Numeric
}

// TemporaryReservation is a short-lived, cart-scoped hold on ingredient stock
// consulted during checkout validation to avoid over-commit between
// concurrent carts.
type TemporaryReservation struct {
	ID           uuid.UUID
	CartID       uuid.UUID
	IngredientID uuid.UUID
	Quantity     pgtype.Numeric
	ExpiresAt    time.Time
}

type LoyaltyAccount struct {
	UserID               uuid.UUID
	AccumulatedPoints    int64
	SpentPoints          int64
	PointsExpirationDate pgtype.Date
}

type LoyaltyHistory struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	OrderID   pgtype.UUID
	Points    int64
	Reason    string
	CreatedAt time.Time
}

type RestaurantTable struct {
	ID             uuid.UUID
	Name           string
	Status         string
	CurrentOrderID pgtype.UUID
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type FinancialMovement struct {
	ID            uuid.UUID
	Type          string
	Value         pgtype.Numeric
	Category      string
	Subcategory   pgtype.Text
	Description   pgtype.Text
	MovementDate  time.Time
	PaymentStatus string
	PaymentMethod pgtype.Text
	OrderID       pgtype.UUID
	Reconciled    bool
	CreatedAt     time.Time
}

type Setting struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}

type StoreHour struct {
	DayOfWeek   int32
	OpeningTime pgtype.Time
	ClosingTime pgtype.Time
	IsOpen      bool
}
