package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sabordecasa/api/internal/database"
	"github.com/sabordecasa/api/internal/service"
	"github.com/shopspring/decimal"
)

// ProductStore defines the database methods needed by menu handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type ProductStore interface {
	ListActiveProducts(ctx context.Context) ([]database.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (database.Product, error)
	ListProductIngredients(ctx context.Context, productID uuid.UUID) ([]database.ProductIngredient, error)
	GetIngredient(ctx context.Context, id uuid.UUID) (database.Ingredient, error)
	GetActivePromotionForProduct(ctx context.Context, arg database.GetActivePromotionForProductParams) (database.Promotion, error)
}

// ProductHandler serves the customer-facing menu.
type ProductHandler struct {
	store   ProductStore
	pricing *service.Pricing
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(store ProductStore, pricing *service.Pricing) *ProductHandler {
	return &ProductHandler{store: store, pricing: pricing}
}

// RegisterRoutes registers menu endpoints on the given Chi router.
func (h *ProductHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
}

type productResponse struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Description    *string   `json:"description"`
	Price          string    `json:"price"`
	FinalPrice     string    `json:"final_price"`
	DiscountAmount string    `json:"discount_amount"`
	HadPromotion   bool      `json:"had_promotion"`
}

type recipeLineResponse struct {
	IngredientID uuid.UUID `json:"ingredient_id"`
	Name         string    `json:"name"`
	Portions     string    `json:"portions"`
	MinQuantity  int32     `json:"min_quantity"`
	MaxQuantity  int32     `json:"max_quantity"`
	ExtraPrice   string    `json:"extra_price"`
	IsAvailable  bool      `json:"is_available"`
}

type productDetailResponse struct {
	productResponse
	Ingredients []recipeLineResponse `json:"ingredients"`
}

// List handles GET /products, the active menu with promotion-resolved prices.
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.store.ListActiveProducts(r.Context())
	if err != nil {
		writeServiceError(w, "list products", err)
		return
	}

	resp := make([]productResponse, 0, len(products))
	for _, p := range products {
		pr, err := h.toProductResponse(r, p)
		if err != nil {
			writeServiceError(w, "list products", err)
			return
		}
		resp = append(resp, pr)
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": resp})
}

// Get handles GET /products/{id}, the product with its recipe and the
// ingredients offered as extras.
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
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
		writeServiceError(w, "get product", err)
		return
	}

	pr, err := h.toProductResponse(r, product)
	if err != nil {
		writeServiceError(w, "get product", err)
		return
	}
	detail := productDetailResponse{productResponse: pr}

	recipe, err := h.store.ListProductIngredients(r.Context(), productID)
	if err != nil {
		writeServiceError(w, "get product", err)
		return
	}
	for _, line := range recipe {
		ing, err := h.store.GetIngredient(r.Context(), line.IngredientID)
		if err != nil {
			writeServiceError(w, "get product", err)
			return
		}
		detail.Ingredients = append(detail.Ingredients, recipeLineResponse{
			IngredientID: line.IngredientID,
			Name:         ing.Name,
			Portions:     numericString(line.Portions),
			MinQuantity:  line.MinQuantity,
			MaxQuantity:  line.MaxQuantity,
			ExtraPrice:   service.ExtraUnitPrice(ing).StringFixed(2),
			IsAvailable:  ing.IsAvailable,
		})
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *ProductHandler) toProductResponse(r *http.Request, p database.Product) (productResponse, error) {
	base, err := decimal.NewFromString(numericString(p.Price))
	if err != nil {
		base = decimal.Zero
	}
	resolved, err := h.pricing.ResolveUnitPrice(r.Context(), h.store, p.ID, base)
	if err != nil {
		return productResponse{}, err
	}
	return productResponse{
		ID:             p.ID,
		Name:           p.Name,
		Description:    textPtr(p.Description),
		Price:          base.StringFixed(2),
		FinalPrice:     resolved.FinalPrice.StringFixed(2),
		DiscountAmount: resolved.DiscountAmount.StringFixed(2),
		HadPromotion:   resolved.HadPromotion,
	}, nil
}
