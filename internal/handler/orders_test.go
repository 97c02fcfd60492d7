package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/sabordecasa/api/internal/auth"
	"github.com/sabordecasa/api/internal/database"
	"github.com/sabordecasa/api/internal/enum"
	"github.com/sabordecasa/api/internal/handler"
	"github.com/sabordecasa/api/internal/middleware"
	"github.com/sabordecasa/api/internal/service"
)

// --- Mock service ---

type mockOrderService struct {
	createFn       func(ctx context.Context, req service.CreateOrderRequest) (*service.OrderDetails, error)
	createCartFn   func(ctx context.Context, req service.CreateOrderFromCartRequest) (*service.OrderDetails, error)
	updateStatusFn func(ctx context.Context, orderID uuid.UUID, newStatus string) (*database.Order, error)
	cancelFn       func(ctx context.Context, orderID, actorID uuid.UUID, isManager bool) (*database.Order, error)
	uncancelFn     func(ctx context.Context, orderID uuid.UUID) (*database.Order, error)
	getFn          func(ctx context.Context, orderID, actorID uuid.UUID, isStaff bool) (*service.OrderDetails, error)
	listForUserFn  func(ctx context.Context, userID uuid.UUID) ([]database.Order, error)
	listFn         func(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
}

func (m *mockOrderService) CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*service.OrderDetails, error) {
	return m.createFn(ctx, req)
}

func (m *mockOrderService) CreateOrderFromCart(ctx context.Context, req service.CreateOrderFromCartRequest) (*service.OrderDetails, error) {
	return m.createCartFn(ctx, req)
}

func (m *mockOrderService) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, newStatus string) (*database.Order, error) {
	return m.updateStatusFn(ctx, orderID, newStatus)
}

func (m *mockOrderService) CancelOrder(ctx context.Context, orderID, actorID uuid.UUID, isManager bool) (*database.Order, error) {
	return m.cancelFn(ctx, orderID, actorID, isManager)
}

func (m *mockOrderService) UncancelOrder(ctx context.Context, orderID uuid.UUID) (*database.Order, error) {
	return m.uncancelFn(ctx, orderID)
}

func (m *mockOrderService) GetOrderDetails(ctx context.Context, orderID, actorID uuid.UUID, isStaff bool) (*service.OrderDetails, error) {
	return m.getFn(ctx, orderID, actorID, isStaff)
}

func (m *mockOrderService) ListForUser(ctx context.Context, userID uuid.UUID) ([]database.Order, error) {
	return m.listForUserFn(ctx, userID)
}

func (m *mockOrderService) List(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error) {
	return m.listFn(ctx, arg)
}

// --- Helpers ---

// newOrderRouter mirrors the production route wiring so role gating is part
// of what gets tested.
func newOrderRouter(svc handler.OrderServicer) http.Handler {
	h := handler.NewOrderHandler(svc)
	staffOnly := middleware.RequireRole(enum.UserRoleManager, enum.UserRoleAttendant, enum.UserRoleKitchen)
	managerOnly := middleware.RequireRole(enum.UserRoleManager)

	r := chi.NewRouter()
	r.Route("/orders", func(r chi.Router) {
		r.Use(middleware.Authenticate(testSecret))
		r.Post("/", h.Create)
		r.Post("/from-cart", h.CreateFromCart)
		r.Get("/mine", h.ListMine)
		r.Get("/{id}", h.Get)
		r.Delete("/{id}", h.Cancel)
		r.With(staffOnly).Get("/", h.List)
		r.With(staffOnly).Patch("/{id}/status", h.UpdateStatus)
		r.With(managerOnly).Post("/{id}/uncancel", h.Uncancel)
	})
	return r
}

func tokenFor(t *testing.T, userID uuid.UUID, role string) string {
	t.Helper()
	token, err := auth.GenerateToken(testSecret, userID, role)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return token
}

func jsonBody(t *testing.T, body interface{}) io.Reader {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	return bytes.NewReader(b)
}

func doJSON(t *testing.T, router http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, jsonBody(t, body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func mustNumeric(t *testing.T, s string) pgtype.Numeric {
	t.Helper()
	var n pgtype.Numeric
	if err := n.Scan(s); err != nil {
		t.Fatalf("scan numeric %q: %v", s, err)
	}
	return n
}

func makeOrder(t *testing.T, userID uuid.UUID, status string) database.Order {
	t.Helper()
	return database.Order{
		ID:               uuid.New(),
		UserID:           userID,
		OrderType:        enum.OrderTypeDelivery,
		Status:           status,
		TotalAmount:      mustNumeric(t, "57.80"),
		DiscountAmount:   mustNumeric(t, "0.00"),
		DeliveryFee:      mustNumeric(t, "8.00"),
		PaymentMethod:    enum.PaymentMethodPix,
		ConfirmationCode: "AB12CD",
	}
}

// --- Create ---

func TestCreateOrder_UserIDComesFromToken(t *testing.T) {
	userID := uuid.New()
	var got service.CreateOrderRequest
	svc := &mockOrderService{
		createFn: func(_ context.Context, req service.CreateOrderRequest) (*service.OrderDetails, error) {
			got = req
			return &service.OrderDetails{Order: makeOrder(t, req.UserID, enum.OrderStatusPending)}, nil
		},
	}

	rr := doJSON(t, newOrderRouter(svc), "POST", "/orders", tokenFor(t, userID, enum.UserRoleCustomer), map[string]interface{}{
		"order_type":     enum.OrderTypeDelivery,
		"address_id":     uuid.NewString(),
		"payment_method": enum.PaymentMethodPix,
		"items": []map[string]interface{}{
			{"product_id": uuid.NewString(), "quantity": 2},
		},
	})

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}
	if got.UserID != userID {
		t.Errorf("service saw user %s, want %s", got.UserID, userID)
	}
	if len(got.Items) != 1 || got.Items[0].Quantity != 2 {
		t.Errorf("items not forwarded: %+v", got.Items)
	}
}

func TestCreateOrder_Unauthenticated(t *testing.T) {
	svc := &mockOrderService{}

	rr := doJSON(t, newOrderRouter(svc), "POST", "/orders", "", map[string]interface{}{
		"order_type": enum.OrderTypeDelivery,
	})

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestCreateOrder_StoreClosed(t *testing.T) {
	svc := &mockOrderService{
		createFn: func(_ context.Context, _ service.CreateOrderRequest) (*service.OrderDetails, error) {
			return nil, service.E(service.CodeStoreClosed, "store is closed")
		},
	}

	rr := doJSON(t, newOrderRouter(svc), "POST", "/orders", tokenFor(t, uuid.New(), enum.UserRoleCustomer), map[string]interface{}{
		"order_type":     enum.OrderTypeDelivery,
		"payment_method": enum.PaymentMethodPix,
	})

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusUnprocessableEntity, rr.Body.String())
	}
}

func TestCreateOrder_InsufficientStock(t *testing.T) {
	svc := &mockOrderService{
		createFn: func(_ context.Context, _ service.CreateOrderRequest) (*service.OrderDetails, error) {
			return nil, service.E(service.CodeInsufficientStock, "not enough arroz")
		},
	}

	rr := doJSON(t, newOrderRouter(svc), "POST", "/orders", tokenFor(t, uuid.New(), enum.UserRoleCustomer), map[string]interface{}{
		"order_type":     enum.OrderTypePickup,
		"payment_method": enum.PaymentMethodCash,
		"amount_paid":    "100.00",
	})

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusUnprocessableEntity)
	}
}

func TestCreateOrderFromCart_RequiresCartID(t *testing.T) {
	svc := &mockOrderService{}

	rr := doJSON(t, newOrderRouter(svc), "POST", "/orders/from-cart", tokenFor(t, uuid.New(), enum.UserRoleCustomer), map[string]interface{}{
		"order_type":     enum.OrderTypeDelivery,
		"payment_method": enum.PaymentMethodPix,
	})

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestCreateOrderFromCart_ForwardsCartID(t *testing.T) {
	cartID := uuid.NewString()
	var got service.CreateOrderFromCartRequest
	svc := &mockOrderService{
		createCartFn: func(_ context.Context, req service.CreateOrderFromCartRequest) (*service.OrderDetails, error) {
			got = req
			return &service.OrderDetails{Order: makeOrder(t, req.UserID, enum.OrderStatusPending)}, nil
		},
	}

	rr := doJSON(t, newOrderRouter(svc), "POST", "/orders/from-cart", tokenFor(t, uuid.New(), enum.UserRoleCustomer), map[string]interface{}{
		"cart_id":        cartID,
		"order_type":     enum.OrderTypePickup,
		"payment_method": enum.PaymentMethodCredit,
	})

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}
	if got.CartID != cartID {
		t.Errorf("cart_id: got %s, want %s", got.CartID, cartID)
	}
}

// --- List / Get ---

func TestListOrders_StaffOnly(t *testing.T) {
	svc := &mockOrderService{
		listFn: func(_ context.Context, _ database.ListOrdersParams) ([]database.Order, error) {
			return nil, nil
		},
	}
	router := newOrderRouter(svc)

	rr := doJSON(t, router, "GET", "/orders", tokenFor(t, uuid.New(), enum.UserRoleCustomer), nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("customer status: got %d, want %d", rr.Code, http.StatusForbidden)
	}

	rr = doJSON(t, router, "GET", "/orders", tokenFor(t, uuid.New(), enum.UserRoleAttendant), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("attendant status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
}

func TestListOrders_FiltersAndLimitCap(t *testing.T) {
	var got database.ListOrdersParams
	svc := &mockOrderService{
		listFn: func(_ context.Context, arg database.ListOrdersParams) ([]database.Order, error) {
			got = arg
			return nil, nil
		},
	}

	rr := doJSON(t, newOrderRouter(svc), "GET",
		"/orders?limit=500&offset=40&status=preparing&start_date=2026-01-01&end_date=2026-01-31",
		tokenFor(t, uuid.New(), enum.UserRoleManager), nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if got.Limit != 100 {
		t.Errorf("limit: got %d, want capped at 100", got.Limit)
	}
	if got.Offset != 40 {
		t.Errorf("offset: got %d, want 40", got.Offset)
	}
	if !got.Status.Valid || got.Status.String != enum.OrderStatusPreparing {
		t.Errorf("status filter not forwarded: %+v", got.Status)
	}
	if !got.StartDate.Valid || !got.EndDate.Valid {
		t.Errorf("date filters not forwarded: start=%+v end=%+v", got.StartDate, got.EndDate)
	}
}

func TestListOrders_BadStartDate(t *testing.T) {
	svc := &mockOrderService{}

	rr := doJSON(t, newOrderRouter(svc), "GET", "/orders?start_date=31-01-2026",
		tokenFor(t, uuid.New(), enum.UserRoleManager), nil)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestGetOrder_NotFound(t *testing.T) {
	svc := &mockOrderService{
		getFn: func(_ context.Context, _, _ uuid.UUID, _ bool) (*service.OrderDetails, error) {
			return nil, service.E(service.CodeNotFound, "order not found")
		},
	}

	rr := doJSON(t, newOrderRouter(svc), "GET", "/orders/"+uuid.NewString(),
		tokenFor(t, uuid.New(), enum.UserRoleCustomer), nil)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestGetOrder_ForbiddenForOtherCustomer(t *testing.T) {
	svc := &mockOrderService{
		getFn: func(_ context.Context, _, _ uuid.UUID, isStaff bool) (*service.OrderDetails, error) {
			if isStaff {
				t.Error("customer token flagged as staff")
			}
			return nil, service.E(service.CodeForbidden, "not your order")
		},
	}

	rr := doJSON(t, newOrderRouter(svc), "GET", "/orders/"+uuid.NewString(),
		tokenFor(t, uuid.New(), enum.UserRoleCustomer), nil)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusForbidden)
	}
}

func TestGetOrder_StaffFlagForwarded(t *testing.T) {
	var sawStaff bool
	svc := &mockOrderService{
		getFn: func(_ context.Context, _, _ uuid.UUID, isStaff bool) (*service.OrderDetails, error) {
			sawStaff = isStaff
			return &service.OrderDetails{Order: makeOrder(t, uuid.New(), enum.OrderStatusPreparing)}, nil
		},
	}

	rr := doJSON(t, newOrderRouter(svc), "GET", "/orders/"+uuid.NewString(),
		tokenFor(t, uuid.New(), enum.UserRoleKitchen), nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if !sawStaff {
		t.Error("kitchen token not flagged as staff")
	}
}

// --- Status transitions ---

func TestUpdateOrderStatus_Forwarded(t *testing.T) {
	orderID := uuid.New()
	svc := &mockOrderService{
		updateStatusFn: func(_ context.Context, id uuid.UUID, newStatus string) (*database.Order, error) {
			if id != orderID {
				t.Errorf("order id: got %s, want %s", id, orderID)
			}
			if newStatus != enum.OrderStatusReady {
				t.Errorf("status: got %s, want ready", newStatus)
			}
			o := makeOrder(t, uuid.New(), enum.OrderStatusReady)
			o.ID = orderID
			return &o, nil
		},
	}

	rr := doJSON(t, newOrderRouter(svc), "PATCH", "/orders/"+orderID.String()+"/status",
		tokenFor(t, uuid.New(), enum.UserRoleKitchen), map[string]string{"status": enum.OrderStatusReady})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
}

func TestUpdateOrderStatus_InvalidTransition(t *testing.T) {
	svc := &mockOrderService{
		updateStatusFn: func(_ context.Context, _ uuid.UUID, _ string) (*database.Order, error) {
			return nil, service.E(service.CodeValidationError, "cannot move from delivered to pending")
		},
	}

	rr := doJSON(t, newOrderRouter(svc), "PATCH", "/orders/"+uuid.NewString()+"/status",
		tokenFor(t, uuid.New(), enum.UserRoleAttendant), map[string]string{"status": enum.OrderStatusPending})

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestUpdateOrderStatus_MissingStatus(t *testing.T) {
	svc := &mockOrderService{}

	rr := doJSON(t, newOrderRouter(svc), "PATCH", "/orders/"+uuid.NewString()+"/status",
		tokenFor(t, uuid.New(), enum.UserRoleAttendant), map[string]string{})

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

// --- Cancel / Uncancel ---

func TestCancelOrder_ManagerFlag(t *testing.T) {
	var sawManager bool
	svc := &mockOrderService{
		cancelFn: func(_ context.Context, orderID, _ uuid.UUID, isManager bool) (*database.Order, error) {
			sawManager = isManager
			o := makeOrder(t, uuid.New(), enum.OrderStatusCancelled)
			o.ID = orderID
			return &o, nil
		},
	}
	router := newOrderRouter(svc)

	rr := doJSON(t, router, "DELETE", "/orders/"+uuid.NewString(),
		tokenFor(t, uuid.New(), enum.UserRoleCustomer), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("customer status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if sawManager {
		t.Error("customer cancel flagged as manager")
	}

	rr = doJSON(t, router, "DELETE", "/orders/"+uuid.NewString(),
		tokenFor(t, uuid.New(), enum.UserRoleManager), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("manager status: got %d, want %d", rr.Code, http.StatusOK)
	}
	if !sawManager {
		t.Error("manager cancel not flagged as manager")
	}
}

func TestUncancelOrder_ManagerOnly(t *testing.T) {
	svc := &mockOrderService{
		uncancelFn: func(_ context.Context, orderID uuid.UUID) (*database.Order, error) {
			o := makeOrder(t, uuid.New(), enum.OrderStatusPending)
			o.ID = orderID
			return &o, nil
		},
	}
	router := newOrderRouter(svc)

	rr := doJSON(t, router, "POST", "/orders/"+uuid.NewString()+"/uncancel",
		tokenFor(t, uuid.New(), enum.UserRoleAttendant), nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("attendant status: got %d, want %d", rr.Code, http.StatusForbidden)
	}

	rr = doJSON(t, router, "POST", "/orders/"+uuid.NewString()+"/uncancel",
		tokenFor(t, uuid.New(), enum.UserRoleManager), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("manager status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
}

func TestListMine_ReturnsCallersOrders(t *testing.T) {
	userID := uuid.New()
	svc := &mockOrderService{
		listForUserFn: func(_ context.Context, id uuid.UUID) ([]database.Order, error) {
			if id != userID {
				t.Errorf("listed for %s, want %s", id, userID)
			}
			return []database.Order{makeOrder(t, id, enum.OrderStatusDelivered)}, nil
		},
	}

	rr := doJSON(t, newOrderRouter(svc), "GET", "/orders/mine",
		tokenFor(t, userID, enum.UserRoleCustomer), nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	orders, ok := resp["orders"].([]interface{})
	if !ok || len(orders) != 1 {
		t.Fatalf("expected 1 order, got %v", resp["orders"])
	}
}
