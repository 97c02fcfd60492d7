package enum

// ── Order lifecycle (CHECK constrained in DB) ──

const (
	OrderStatusPending     = "pending"
	OrderStatusActiveTable = "active_table"
	OrderStatusConfirmed   = "confirmed"
	OrderStatusPreparing   = "preparing"
	OrderStatusReady       = "ready"
	OrderStatusOnTheWay    = "on_the_way"
	OrderStatusDelivered   = "delivered"
	OrderStatusCancelled   = "cancelled"
)

const (
	OrderTypeDelivery = "delivery"
	OrderTypePickup   = "pickup"
	OrderTypeOnSite   = "on_site"
)

const (
	ExtraTypeExtra = "extra"
	ExtraTypeBase  = "base"
)

// ── Tables ──

const (
	TableStatusAvailable = "available"
	TableStatusOccupied  = "occupied"
	TableStatusCleaning  = "cleaning"
	TableStatusReserved  = "reserved"
)

// ── Stock ──

const (
	StockStatusOK         = "ok"
	StockStatusLow        = "low"
	StockStatusOutOfStock = "out_of_stock"
)

// ── Financial movements ──

const (
	MovementTypeRevenue = "REVENUE"
	MovementTypeExpense = "EXPENSE"
	MovementTypeCMV     = "CMV"
	MovementTypeTax     = "TAX"
)

const (
	PaymentStatusPaid    = "paid"
	PaymentStatusPending = "pending"
)

// ── Configurable labels (no DB constraint) ──

const (
	UserRoleCustomer  = "customer"
	UserRoleManager   = "manager"
	UserRoleAttendant = "attendant"
	UserRoleKitchen   = "kitchen"
)

const (
	PaymentMethodCash   = "cash"
	PaymentMethodCredit = "credit"
	PaymentMethodDebit  = "debit"
	PaymentMethodPix    = "pix"
)

// Settings keys recognized by the orchestrator.
const (
	SettingDeliveryFee          = "taxa_entrega"
	SettingRedeemConversionRate = "taxa_conversao_resgate_clube"
	SettingPointsExpirationDays = "prazo_expiracao_pontos"
)

// ── Loyalty history reasons ──

const (
	LoyaltyReasonEarned   = "earned"
	LoyaltyReasonRedeemed = "redeemed"
	LoyaltyReasonExpired  = "expired"
)
