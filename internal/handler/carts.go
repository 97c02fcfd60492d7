package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/sabordecasa/api/internal/database"
	"github.com/sabordecasa/api/internal/middleware"
	"github.com/sabordecasa/api/internal/service"
)

// CartServicer defines the service methods needed by cart handlers.
type CartServicer interface {
	CreateGuestCart(ctx context.Context, db database.DBTX) (database.Cart, error)
	GetOrCreateForUser(ctx context.Context, db database.DBTX, userID uuid.UUID) (database.Cart, error)
	ClaimGuestCart(ctx context.Context, cartID, userID uuid.UUID) (database.Cart, error)
	AddItem(ctx context.Context, req service.AddCartItemRequest) (*service.CartView, error)
	UpdateItemQuantity(ctx context.Context, cartItemID uuid.UUID, quantity int32) (*service.CartView, error)
	View(ctx context.Context, db database.DBTX, cartID uuid.UUID) (*service.CartView, error)
	Clear(ctx context.Context, db database.DBTX, cartID uuid.UUID) error
}

// CartHandler handles cart endpoints. Guest carts work without
// authentication; claiming one requires a logged-in user.
type CartHandler struct {
	svc CartServicer
	db  database.DBTX
}

// NewCartHandler creates a new CartHandler.
func NewCartHandler(svc CartServicer, db database.DBTX) *CartHandler {
	return &CartHandler{svc: svc, db: db}
}

// RegisterRoutes registers cart endpoints on the given Chi router.
func (h *CartHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/mine", h.GetMine)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/items", h.AddItem)
	r.Patch("/items/{itemID}", h.UpdateItemQuantity)
	r.Post("/{id}/claim", h.Claim)
	r.Delete("/{id}/items", h.Clear)
}

// --- Request / Response types ---

type addCartItemRequest struct {
	ProductID string              `json:"product_id"`
	Quantity  int32               `json:"quantity"`
	Notes     string              `json:"notes"`
	Extras    []orderExtraRequest `json:"extras"`
}

type updateCartItemRequest struct {
	Quantity int32 `json:"quantity"`
}

type cartExtraResponse struct {
	IngredientID uuid.UUID `json:"ingredient_id"`
	Type         string    `json:"type"`
	Quantity     string    `json:"quantity"`
	Delta        string    `json:"delta"`
}

type cartLineResponse struct {
	ID        uuid.UUID           `json:"id"`
	ProductID uuid.UUID           `json:"product_id"`
	Quantity  int32               `json:"quantity"`
	Notes     string              `json:"notes"`
	Extras    []cartExtraResponse `json:"extras"`
}

type cartResponse struct {
	ID        uuid.UUID          `json:"id"`
	UserID    *string            `json:"user_id"`
	Items     []cartLineResponse `json:"items"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// --- Handlers ---

// Create handles POST /carts. Anonymous callers get a guest cart; logged-in
// callers get their single active cart.
func (h *CartHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())

	var cart database.Cart
	var err error
	if claims != nil {
		cart, err = h.svc.GetOrCreateForUser(r.Context(), h.db, claims.UserID)
	} else {
		cart, err = h.svc.CreateGuestCart(r.Context(), h.db)
	}
	if err != nil {
		writeServiceError(w, "create cart", err)
		return
	}
	writeJSON(w, http.StatusCreated, toCartResponse(&service.CartView{Cart: cart}))
}

// GetMine handles GET /carts/mine.
func (h *CartHandler) GetMine(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	cart, err := h.svc.GetOrCreateForUser(r.Context(), h.db, claims.UserID)
	if err != nil {
		writeServiceError(w, "get my cart", err)
		return
	}
	view, err := h.svc.View(r.Context(), h.db, cart.ID)
	if err != nil {
		writeServiceError(w, "get my cart", err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(view))
}

// Get handles GET /carts/{id}.
func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	cartID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid cart ID"})
		return
	}

	view, err := h.svc.View(r.Context(), h.db, cartID)
	if err != nil {
		writeServiceError(w, "get cart", err)
		return
	}
	if view.Cart.UserID.Valid {
		claims := middleware.ClaimsFromContext(r.Context())
		if claims == nil || view.Cart.UserID.Bytes != claims.UserID {
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "cart belongs to another user"})
			return
		}
	}
	writeJSON(w, http.StatusOK, toCartResponse(view))
}

// AddItem handles POST /carts/{id}/items.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	cartID := chi.URLParam(r, "id")
	var req addCartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	userID := pgtype.UUID{}
	if claims := middleware.ClaimsFromContext(r.Context()); claims != nil {
		userID = pgtype.UUID{Bytes: claims.UserID, Valid: true}
	}

	extras := make([]service.CartExtraRequest, len(req.Extras))
	for i, ex := range req.Extras {
		extras[i] = service.CartExtraRequest{
			IngredientID: ex.IngredientID,
			Type:         ex.Type,
			Quantity:     ex.Quantity,
			Delta:        ex.Delta,
		}
	}

	view, err := h.svc.AddItem(r.Context(), service.AddCartItemRequest{
		CartID:    cartID,
		UserID:    userID,
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
		Notes:     req.Notes,
		Extras:    extras,
	})
	if err != nil {
		writeServiceError(w, "add cart item", err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(view))
}

// UpdateItemQuantity handles PATCH /carts/items/{itemID}. Quantity zero
// removes the line.
func (h *CartHandler) UpdateItemQuantity(w http.ResponseWriter, r *http.Request) {
	itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid cart item ID"})
		return
	}
	var req updateCartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	view, err := h.svc.UpdateItemQuantity(r.Context(), itemID, req.Quantity)
	if err != nil {
		writeServiceError(w, "update cart item", err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(view))
}

// Claim handles POST /carts/{id}/claim, attaching a guest cart to the caller.
func (h *CartHandler) Claim(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}
	cartID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid cart ID"})
		return
	}

	cart, err := h.svc.ClaimGuestCart(r.Context(), cartID, claims.UserID)
	if err != nil {
		writeServiceError(w, "claim cart", err)
		return
	}
	view, err := h.svc.View(r.Context(), h.db, cart.ID)
	if err != nil {
		writeServiceError(w, "claim cart", err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(view))
}

// Clear handles DELETE /carts/{id}/items.
func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	cartID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid cart ID"})
		return
	}

	view, err := h.svc.View(r.Context(), h.db, cartID)
	if err != nil {
		writeServiceError(w, "clear cart", err)
		return
	}
	if view.Cart.UserID.Valid {
		claims := middleware.ClaimsFromContext(r.Context())
		if claims == nil || view.Cart.UserID.Bytes != claims.UserID {
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "cart belongs to another user"})
			return
		}
	}

	if err := h.svc.Clear(r.Context(), h.db, cartID); err != nil {
		writeServiceError(w, "clear cart", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toCartResponse(view *service.CartView) cartResponse {
	resp := cartResponse{
		ID:        view.Cart.ID,
		UserID:    uuidPtr(view.Cart.UserID),
		Items:     []cartLineResponse{},
		CreatedAt: view.Cart.CreatedAt,
		UpdatedAt: view.Cart.UpdatedAt,
	}
	for _, line := range view.Lines {
		lr := cartLineResponse{
			ID:        line.ItemID,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Notes:     line.Notes,
		}
		for _, ex := range line.Extras {
			lr.Extras = append(lr.Extras, cartExtraResponse{
				IngredientID: ex.IngredientID,
				Type:         ex.Type,
				Quantity:     ex.Quantity.String(),
				Delta:        ex.Delta.String(),
			})
		}
		resp.Items = append(resp.Items, lr)
	}
	return resp
}
