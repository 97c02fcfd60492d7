package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/sabordecasa/api/internal/database"
	"github.com/sabordecasa/api/internal/service"
	"github.com/shopspring/decimal"
)

// PromotionStore defines the database methods needed by promotion handlers.
// Satisfied by *database.Queries.
type PromotionStore interface {
	CreatePromotion(ctx context.Context, arg database.CreatePromotionParams) (database.Promotion, error)
	DeletePromotion(ctx context.Context, id uuid.UUID) error
	ListActivePromotions(ctx context.Context, now time.Time) ([]database.Promotion, error)
	GetProduct(ctx context.Context, id uuid.UUID) (database.Product, error)
}

// PromotionHandler manages product promotions and price resolution.
type PromotionHandler struct {
	store   PromotionStore
	pricing *service.Pricing
}

// NewPromotionHandler creates a new PromotionHandler.
func NewPromotionHandler(store PromotionStore, pricing *service.Pricing) *PromotionHandler {
	return &PromotionHandler{store: store, pricing: pricing}
}

// RegisterRoutes registers promotion management endpoints (manager only).
func (h *PromotionHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.ListActive)
	r.Post("/", h.Create)
	r.Delete("/{id}", h.Delete)
}

type createPromotionRequest struct {
	ProductID          string  `json:"product_id"`
	DiscountPercentage *string `json:"discount_percentage"`
	DiscountValue      *string `json:"discount_value"`
	ExpiresAt          *string `json:"expires_at"` // RFC 3339
}

type promotionResponse struct {
	ID                 uuid.UUID  `json:"id"`
	ProductID          uuid.UUID  `json:"product_id"`
	DiscountPercentage *string    `json:"discount_percentage"`
	DiscountValue      *string    `json:"discount_value"`
	ExpiresAt          *time.Time `json:"expires_at"`
	CreatedAt          time.Time  `json:"created_at"`
}

type resolvedPriceResponse struct {
	ProductID      uuid.UUID `json:"product_id"`
	BasePrice      string    `json:"base_price"`
	FinalPrice     string    `json:"final_price"`
	DiscountAmount string    `json:"discount_amount"`
	HadPromotion   bool      `json:"had_promotion"`
}

// ListActive handles GET /promotions.
func (h *PromotionHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	promos, err := h.store.ListActivePromotions(r.Context(), time.Now())
	if err != nil {
		writeServiceError(w, "list promotions", err)
		return
	}
	resp := make([]promotionResponse, len(promos))
	for i, p := range promos {
		resp[i] = toPromotionResponse(p)
	}
	writeJSON(w, http.StatusOK, map[string]any{"promotions": resp})
}

// Create handles POST /promotions.
func (h *PromotionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createPromotionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product_id"})
		return
	}
	if req.DiscountPercentage == nil && req.DiscountValue == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "discount_percentage or discount_value is required"})
		return
	}

	params := database.CreatePromotionParams{ProductID: productID}
	if req.DiscountPercentage != nil {
		pct, err := decimal.NewFromString(*req.DiscountPercentage)
		if err != nil || pct.IsNegative() || pct.GreaterThan(decimal.NewFromInt(100)) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "discount_percentage must be between 0 and 100"})
			return
		}
		params.DiscountPercentage.Scan(pct.StringFixed(2)) //nolint:errcheck
	}
	if req.DiscountValue != nil {
		v, err := decimal.NewFromString(*req.DiscountValue)
		if err != nil || v.IsNegative() {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "discount_value must be >= 0"})
			return
		}
		params.DiscountValue.Scan(v.StringFixed(2)) //nolint:errcheck
	}
	if req.ExpiresAt != nil {
		t, err := time.Parse(time.RFC3339, *req.ExpiresAt)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid expires_at, use RFC 3339"})
			return
		}
		params.ExpiresAt = pgtype.Timestamptz{Time: t, Valid: true}
	}

	if _, err := h.store.GetProduct(r.Context(), productID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
			return
		}
		writeServiceError(w, "create promotion", err)
		return
	}

	promo, err := h.store.CreatePromotion(r.Context(), params)
	if err != nil {
		writeServiceError(w, "create promotion", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPromotionResponse(promo))
}

// Delete handles DELETE /promotions/{id}.
func (h *PromotionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid promotion ID"})
		return
	}
	if err := h.store.DeletePromotion(r.Context(), id); err != nil {
		writeServiceError(w, "delete promotion", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ResolvePrice handles GET /products/{id}/price, the promotion-aware unit
// price the order would freeze right now.
func (h *PromotionHandler) ResolvePrice(store service.PricingStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product ID"})
			return
		}
		product, err := h.store.GetProduct(r.Context(), productID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
				return
			}
			writeServiceError(w, "resolve price", err)
			return
		}

		base, err := decimal.NewFromString(numericString(product.Price))
		if err != nil {
			base = decimal.Zero
		}
		resolved, err := h.pricing.ResolveUnitPrice(r.Context(), store, productID, base)
		if err != nil {
			writeServiceError(w, "resolve price", err)
			return
		}
		writeJSON(w, http.StatusOK, resolvedPriceResponse{
			ProductID:      productID,
			BasePrice:      base.StringFixed(2),
			FinalPrice:     resolved.FinalPrice.StringFixed(2),
			DiscountAmount: resolved.DiscountAmount.StringFixed(2),
			HadPromotion:   resolved.HadPromotion,
		})
	}
}

func toPromotionResponse(p database.Promotion) promotionResponse {
	resp := promotionResponse{
		ID:                 p.ID,
		ProductID:          p.ProductID,
		DiscountPercentage: numericPtr(p.DiscountPercentage),
		DiscountValue:      numericPtr(p.DiscountValue),
		CreatedAt:          p.CreatedAt,
	}
	if p.ExpiresAt.Valid {
		t := p.ExpiresAt.Time
		resp.ExpiresAt = &t
	}
	return resp
}
