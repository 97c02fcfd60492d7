package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sabordecasa/api/internal/database"
	"github.com/sabordecasa/api/internal/enum"
	"github.com/sabordecasa/api/internal/match"
	"github.com/sabordecasa/api/internal/service"
	"github.com/shopspring/decimal"
)

// IngredientStore defines the database methods needed by stock handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type IngredientStore interface {
	ListIngredients(ctx context.Context) ([]database.Ingredient, error)
	GetIngredient(ctx context.Context, id uuid.UUID) (database.Ingredient, error)
	AddIngredientStock(ctx context.Context, arg database.AddIngredientStockParams) error
	UpdateIngredientStock(ctx context.Context, arg database.UpdateIngredientStockParams) error
	SetIngredientAvailability(ctx context.Context, arg database.SetIngredientAvailabilityParams) error
}

// StockHandler exposes the ingredient inventory to the back office.
type StockHandler struct {
	svc   *service.StockLedger
	store IngredientStore
	db    database.DBTX
}

// NewStockHandler creates a new StockHandler.
func NewStockHandler(svc *service.StockLedger, store IngredientStore, db database.DBTX) *StockHandler {
	return &StockHandler{svc: svc, store: store, db: db}
}

// RegisterRoutes registers stock endpoints on the given Chi router.
func (h *StockHandler) RegisterRoutes(r chi.Router) {
	r.Get("/ingredients", h.ListIngredients)
	r.Get("/low", h.LowStock)
	r.Post("/ingredients/{id}/restock", h.Restock)
	r.Put("/ingredients/{id}/stock", h.SetStock)
	r.Post("/restock-line", h.RestockLine)
	r.Patch("/ingredients/{id}/availability", h.SetAvailability)
}

type restockRequest struct {
	Quantity string `json:"quantity"`
}

type setAvailabilityRequest struct {
	IsAvailable bool `json:"is_available"`
}

type ingredientStockResponse struct {
	ID                uuid.UUID `json:"id"`
	Name              string    `json:"name"`
	CurrentStock      string    `json:"current_stock"`
	MinStockThreshold string    `json:"min_stock_threshold"`
	StockUnit         string    `json:"stock_unit"`
	StockStatus       string    `json:"stock_status"`
	IsAvailable       bool      `json:"is_available"`
}

// ListIngredients handles GET /stock/ingredients.
func (h *StockHandler) ListIngredients(w http.ResponseWriter, r *http.Request) {
	ingredients, err := h.store.ListIngredients(r.Context())
	if err != nil {
		writeServiceError(w, "list ingredients", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ingredients": toIngredientResponses(ingredients)})
}

// LowStock handles GET /stock/low, listing ingredients at or below their
// threshold.
func (h *StockHandler) LowStock(w http.ResponseWriter, r *http.Request) {
	ingredients, err := h.svc.LowStock(r.Context(), h.db)
	if err != nil {
		writeServiceError(w, "list low stock", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ingredients": toIngredientResponses(ingredients)})
}

// Restock handles POST /stock/ingredients/{id}/restock, registering a
// received delivery.
func (h *StockHandler) Restock(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid ingredient ID"})
		return
	}
	var req restockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	qty, err := decimal.NewFromString(req.Quantity)
	if err != nil || !qty.IsPositive() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "quantity must be > 0"})
		return
	}

	params := database.AddIngredientStockParams{ID: id}
	params.Quantity.Scan(qty.StringFixed(3)) //nolint:errcheck
	if err := h.store.AddIngredientStock(r.Context(), params); err != nil {
		writeServiceError(w, "restock ingredient", err)
		return
	}

	ing, err := h.store.GetIngredient(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "ingredient not found"})
			return
		}
		writeServiceError(w, "restock ingredient", err)
		return
	}
	writeJSON(w, http.StatusOK, toIngredientResponses([]database.Ingredient{ing})[0])
}

type setStockRequest struct {
	CurrentStock string `json:"current_stock"`
}

// SetStock handles PUT /stock/ingredients/{id}/stock, an absolute correction
// after a physical recount. stock_status is rederived from the new count.
func (h *StockHandler) SetStock(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid ingredient ID"})
		return
	}
	var req setStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	qty, err := decimal.NewFromString(req.CurrentStock)
	if err != nil || qty.IsNegative() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "current_stock must be >= 0"})
		return
	}

	ing, err := h.store.GetIngredient(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "ingredient not found"})
			return
		}
		writeServiceError(w, "set stock", err)
		return
	}

	threshold, _ := decimal.NewFromString(numericString(ing.MinStockThreshold))
	status := enum.StockStatusOK
	switch {
	case !qty.IsPositive():
		status = enum.StockStatusOutOfStock
	case qty.LessThanOrEqual(threshold):
		status = enum.StockStatusLow
	}

	params := database.UpdateIngredientStockParams{ID: id, StockStatus: status}
	params.CurrentStock.Scan(qty.StringFixed(3)) //nolint:errcheck
	if err := h.store.UpdateIngredientStock(r.Context(), params); err != nil {
		writeServiceError(w, "set stock", err)
		return
	}

	ing, err = h.store.GetIngredient(r.Context(), id)
	if err != nil {
		writeServiceError(w, "set stock", err)
		return
	}
	writeJSON(w, http.StatusOK, toIngredientResponses([]database.Ingredient{ing})[0])
}

type restockLineRequest struct {
	Line string `json:"line"`
}

// RestockLine handles POST /stock/restock-line, registering a delivery from a
// free-text line like "5kg arroz". Ambiguous or unmatched lines come back
// with candidates instead of changing stock.
func (h *StockHandler) RestockLine(w http.ResponseWriter, r *http.Request) {
	var req restockLineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Line) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "line is required"})
		return
	}

	ingredients, err := h.store.ListIngredients(r.Context())
	if err != nil {
		writeServiceError(w, "restock line", err)
		return
	}
	catalog := make([]match.Ingredient, len(ingredients))
	for i, ing := range ingredients {
		catalog[i] = match.Ingredient{ID: ing.ID, Name: ing.Name, Unit: ing.StockUnit}
	}

	result := match.New(catalog).Match(req.Line)
	switch result.Status {
	case match.Matched:
	case match.Ambiguous:
		names := make([]string, len(result.Candidates))
		for i, c := range result.Candidates {
			names[i] = c.Name
		}
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":      "line matches more than one ingredient",
			"candidates": names,
		})
		return
	default:
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "no ingredient matches the line"})
		return
	}
	if result.Qty <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "quantity must be > 0"})
		return
	}

	params := database.AddIngredientStockParams{ID: result.Ingredient.ID}
	params.Quantity.Scan(decimal.NewFromFloat(result.Qty).StringFixed(3)) //nolint:errcheck
	if err := h.store.AddIngredientStock(r.Context(), params); err != nil {
		writeServiceError(w, "restock line", err)
		return
	}

	ing, err := h.store.GetIngredient(r.Context(), result.Ingredient.ID)
	if err != nil {
		writeServiceError(w, "restock line", err)
		return
	}
	writeJSON(w, http.StatusOK, toIngredientResponses([]database.Ingredient{ing})[0])
}

// SetAvailability handles PATCH /stock/ingredients/{id}/availability, the
// manual kill switch independent of the stock counter.
func (h *StockHandler) SetAvailability(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid ingredient ID"})
		return
	}
	var req setAvailabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if err := h.store.SetIngredientAvailability(r.Context(), database.SetIngredientAvailabilityParams{
		ID:          id,
		IsAvailable: req.IsAvailable,
	}); err != nil {
		writeServiceError(w, "set ingredient availability", err)
		return
	}

	ing, err := h.store.GetIngredient(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "ingredient not found"})
			return
		}
		writeServiceError(w, "set ingredient availability", err)
		return
	}
	writeJSON(w, http.StatusOK, toIngredientResponses([]database.Ingredient{ing})[0])
}

func toIngredientResponses(ingredients []database.Ingredient) []ingredientStockResponse {
	resp := make([]ingredientStockResponse, len(ingredients))
	for i, ing := range ingredients {
		resp[i] = ingredientStockResponse{
			ID:                ing.ID,
			Name:              ing.Name,
			CurrentStock:      numericString(ing.CurrentStock),
			MinStockThreshold: numericString(ing.MinStockThreshold),
			StockUnit:         ing.StockUnit,
			StockStatus:       ing.StockStatus,
			IsAvailable:       ing.IsAvailable,
		}
	}
	return resp
}
