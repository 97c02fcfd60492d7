package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/sabordecasa/api/internal/database"
	"github.com/sabordecasa/api/internal/enum"
	"github.com/sabordecasa/api/internal/middleware"
	"github.com/sabordecasa/api/internal/service"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*service.OrderDetails, error)
	CreateOrderFromCart(ctx context.Context, req service.CreateOrderFromCartRequest) (*service.OrderDetails, error)
	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, newStatus string) (*database.Order, error)
	CancelOrder(ctx context.Context, orderID, actorID uuid.UUID, isManager bool) (*database.Order, error)
	UncancelOrder(ctx context.Context, orderID uuid.UUID) (*database.Order, error)
	GetOrderDetails(ctx context.Context, orderID, actorID uuid.UUID, isStaff bool) (*service.OrderDetails, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]database.Order, error)
	List(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	svc OrderServicer
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc OrderServicer) *OrderHandler {
	return &OrderHandler{svc: svc}
}

// --- Request / Response types ---

type orderExtraRequest struct {
	IngredientID string `json:"ingredient_id"`
	Type         string `json:"type"`
	Quantity     string `json:"quantity"`
	Delta        string `json:"delta"`
}

type createOrderItemRequest struct {
	ProductID string              `json:"product_id"`
	Quantity  int32               `json:"quantity"`
	Extras    []orderExtraRequest `json:"extras"`
}

type createOrderRequest struct {
	OrderType      string                   `json:"order_type"`
	AddressID      string                   `json:"address_id"`
	TableID        string                   `json:"table_id"`
	PaymentMethod  string                   `json:"payment_method"`
	AmountPaid     string                   `json:"amount_paid"`
	PointsToRedeem int64                    `json:"points_to_redeem"`
	CpfOnInvoice   string                   `json:"cpf_on_invoice"`
	Notes          string                   `json:"notes"`
	Items          []createOrderItemRequest `json:"items"`
}

type createOrderFromCartRequest struct {
	CartID string `json:"cart_id"`
	createOrderRequest
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type orderResponse struct {
	ID               uuid.UUID  `json:"id"`
	UserID           uuid.UUID  `json:"user_id"`
	AddressID        *string    `json:"address_id"`
	TableID          *string    `json:"table_id"`
	OrderType        string     `json:"order_type"`
	Status           string     `json:"status"`
	PreviousStatus   *string    `json:"previous_status"`
	TotalAmount      string     `json:"total_amount"`
	DiscountAmount   string     `json:"discount_amount"`
	DeliveryFee      string     `json:"delivery_fee"`
	PointsRedeemed   int64      `json:"points_redeemed"`
	PaymentMethod    string     `json:"payment_method"`
	ChangeForAmount  *string    `json:"change_for_amount"`
	ConfirmationCode string     `json:"confirmation_code"`
	CpfOnInvoice     *string    `json:"cpf_on_invoice"`
	Notes            *string    `json:"notes"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

type orderExtraResponse struct {
	ID           uuid.UUID `json:"id"`
	IngredientID uuid.UUID `json:"ingredient_id"`
	Type         string    `json:"type"`
	Quantity     string    `json:"quantity"`
	Delta        string    `json:"delta"`
	UnitPrice    string    `json:"unit_price"`
}

type orderItemResponse struct {
	ID        uuid.UUID            `json:"id"`
	ProductID uuid.UUID            `json:"product_id"`
	Quantity  int32                `json:"quantity"`
	UnitPrice string               `json:"unit_price"`
	Extras    []orderExtraResponse `json:"extras"`
}

type orderDetailResponse struct {
	orderResponse
	Items []orderItemResponse `json:"items"`
}

type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// --- Handlers ---

// Create handles POST /orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	details, err := h.svc.CreateOrder(r.Context(), toServiceOrderRequest(claims.UserID, req))
	if err != nil {
		writeServiceError(w, "create order", err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderDetailResponse(details))
}

// CreateFromCart handles POST /orders/from-cart.
func (h *OrderHandler) CreateFromCart(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req createOrderFromCartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.CartID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "cart_id is required"})
		return
	}

	details, err := h.svc.CreateOrderFromCart(r.Context(), service.CreateOrderFromCartRequest{
		CartID:             req.CartID,
		CreateOrderRequest: toServiceOrderRequest(claims.UserID, req.createOrderRequest),
	})
	if err != nil {
		writeServiceError(w, "create order from cart", err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderDetailResponse(details))
}

// List handles GET /orders (staff only, filtered).
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 100 {
		limit = 100
	}
	offset := 0
	if s := r.URL.Query().Get("offset"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = v
		}
	}

	params := database.ListOrdersParams{
		Limit:  int32(limit),
		Offset: int32(offset),
	}
	if s := r.URL.Query().Get("status"); s != "" {
		params.Status = pgtype.Text{String: s, Valid: true}
	}
	if s := r.URL.Query().Get("start_date"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid start_date format, use YYYY-MM-DD"})
			return
		}
		params.StartDate = pgtype.Timestamptz{Time: t, Valid: true}
	}
	if s := r.URL.Query().Get("end_date"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid end_date format, use YYYY-MM-DD"})
			return
		}
		params.EndDate = pgtype.Timestamptz{Time: t, Valid: true}
	}

	orders, err := h.svc.List(r.Context(), params)
	if err != nil {
		writeServiceError(w, "list orders", err)
		return
	}
	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = toOrderResponse(o)
	}
	writeJSON(w, http.StatusOK, orderListResponse{Orders: resp, Limit: limit, Offset: offset})
}

// ListMine handles GET /orders/mine (the caller's order history).
func (h *OrderHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	orders, err := h.svc.ListForUser(r.Context(), claims.UserID)
	if err != nil {
		writeServiceError(w, "list my orders", err)
		return
	}
	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = toOrderResponse(o)
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": resp})
}

// Get handles GET /orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	details, err := h.svc.GetOrderDetails(r.Context(), orderID, claims.UserID, middleware.IsStaff(claims))
	if err != nil {
		writeServiceError(w, "get order", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDetailResponse(details))
}

// UpdateStatus handles PATCH /orders/{id}/status (staff only).
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status is required"})
		return
	}

	order, err := h.svc.UpdateOrderStatus(r.Context(), orderID, req.Status)
	if err != nil {
		writeServiceError(w, "update order status", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(*order))
}

// Cancel handles DELETE /orders/{id}.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	order, err := h.svc.CancelOrder(r.Context(), orderID, claims.UserID, claims.Role == enum.UserRoleManager)
	if err != nil {
		writeServiceError(w, "cancel order", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(*order))
}

// Uncancel handles POST /orders/{id}/uncancel (manager only).
func (h *OrderHandler) Uncancel(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	order, err := h.svc.UncancelOrder(r.Context(), orderID)
	if err != nil {
		writeServiceError(w, "uncancel order", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(*order))
}

// --- Mapping helpers ---

func toServiceOrderRequest(userID uuid.UUID, req createOrderRequest) service.CreateOrderRequest {
	items := make([]service.CreateOrderItemRequest, len(req.Items))
	for i, item := range req.Items {
		extras := make([]service.CartExtraRequest, len(item.Extras))
		for j, ex := range item.Extras {
			extras[j] = service.CartExtraRequest{
				IngredientID: ex.IngredientID,
				Type:         ex.Type,
				Quantity:     ex.Quantity,
				Delta:        ex.Delta,
			}
		}
		items[i] = service.CreateOrderItemRequest{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Extras:    extras,
		}
	}
	return service.CreateOrderRequest{
		UserID:         userID,
		OrderType:      req.OrderType,
		AddressID:      req.AddressID,
		TableID:        req.TableID,
		PaymentMethod:  req.PaymentMethod,
		AmountPaid:     req.AmountPaid,
		PointsToRedeem: req.PointsToRedeem,
		CpfOnInvoice:   req.CpfOnInvoice,
		Notes:          req.Notes,
		Items:          items,
	}
}

func toOrderResponse(o database.Order) orderResponse {
	return orderResponse{
		ID:               o.ID,
		UserID:           o.UserID,
		AddressID:        uuidPtr(o.AddressID),
		TableID:          uuidPtr(o.TableID),
		OrderType:        o.OrderType,
		Status:           o.Status,
		PreviousStatus:   textPtr(o.PreviousStatus),
		TotalAmount:      numericString(o.TotalAmount),
		DiscountAmount:   numericString(o.DiscountAmount),
		DeliveryFee:      numericString(o.DeliveryFee),
		PointsRedeemed:   o.PointsRedeemed,
		PaymentMethod:    o.PaymentMethod,
		ChangeForAmount:  numericPtr(o.ChangeForAmount),
		ConfirmationCode: o.ConfirmationCode,
		CpfOnInvoice:     textPtr(o.CpfOnInvoice),
		Notes:            textPtr(o.Notes),
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
	}
}

func toOrderDetailResponse(d *service.OrderDetails) orderDetailResponse {
	resp := orderDetailResponse{orderResponse: toOrderResponse(d.Order)}
	for _, it := range d.Items {
		item := orderItemResponse{
			ID:        it.Item.ID,
			ProductID: it.Item.ProductID,
			Quantity:  it.Item.Quantity,
			UnitPrice: numericString(it.Item.UnitPrice),
		}
		for _, ex := range it.Extras {
			item.Extras = append(item.Extras, orderExtraResponse{
				ID:           ex.ID,
				IngredientID: ex.IngredientID,
				Type:         ex.Type,
				Quantity:     numericString(ex.Quantity),
				Delta:        numericString(ex.Delta),
				UnitPrice:    numericString(ex.UnitPrice),
			})
		}
		resp.Items = append(resp.Items, item)
	}
	return resp
}
