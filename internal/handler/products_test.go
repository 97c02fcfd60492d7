package handler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/sabordecasa/api/internal/database"
	"github.com/sabordecasa/api/internal/handler"
	"github.com/sabordecasa/api/internal/service"
)

// --- Mock store ---

type mockProductStore struct {
	products    map[uuid.UUID]database.Product
	ingredients map[uuid.UUID]database.Ingredient
	recipes     map[uuid.UUID][]database.ProductIngredient
	promotions  map[uuid.UUID]database.Promotion
}

func newMockProductStore() *mockProductStore {
	return &mockProductStore{
		products:    make(map[uuid.UUID]database.Product),
		ingredients: make(map[uuid.UUID]database.Ingredient),
		recipes:     make(map[uuid.UUID][]database.ProductIngredient),
		promotions:  make(map[uuid.UUID]database.Promotion),
	}
}

func (m *mockProductStore) ListActiveProducts(_ context.Context) ([]database.Product, error) {
	var out []database.Product
	for _, p := range m.products {
		if p.IsActive {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockProductStore) GetProduct(_ context.Context, id uuid.UUID) (database.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return database.Product{}, pgx.ErrNoRows
	}
	return p, nil
}

func (m *mockProductStore) ListProductIngredients(_ context.Context, productID uuid.UUID) ([]database.ProductIngredient, error) {
	return m.recipes[productID], nil
}

func (m *mockProductStore) GetIngredient(_ context.Context, id uuid.UUID) (database.Ingredient, error) {
	ing, ok := m.ingredients[id]
	if !ok {
		return database.Ingredient{}, pgx.ErrNoRows
	}
	return ing, nil
}

func (m *mockProductStore) GetActivePromotionForProduct(_ context.Context, arg database.GetActivePromotionForProductParams) (database.Promotion, error) {
	promo, ok := m.promotions[arg.ProductID]
	if !ok {
		return database.Promotion{}, pgx.ErrNoRows
	}
	if promo.ExpiresAt.Valid && promo.ExpiresAt.Time.Before(arg.Now) {
		return database.Promotion{}, pgx.ErrNoRows
	}
	return promo, nil
}

// --- Helpers ---

func newProductRouter(store *mockProductStore) http.Handler {
	h := handler.NewProductHandler(store, service.NewPricing())
	r := chi.NewRouter()
	r.Route("/products", h.RegisterRoutes)
	return r
}

func makeProduct(t *testing.T, name, price string) database.Product {
	t.Helper()
	return database.Product{
		ID:       uuid.New(),
		Name:     name,
		Price:    mustNumeric(t, price),
		IsActive: true,
	}
}

// --- Tests ---

func TestListProducts_OnlyActive(t *testing.T) {
	store := newMockProductStore()
	active := makeProduct(t, "Prato Executivo", "32.90")
	inactive := makeProduct(t, "Feijoada de Sabado", "45.00")
	inactive.IsActive = false
	store.products[active.ID] = active
	store.products[inactive.ID] = inactive

	rr := doJSON(t, newProductRouter(store), "GET", "/products", "", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	products, ok := resp["products"].([]interface{})
	if !ok || len(products) != 1 {
		t.Fatalf("expected 1 product, got %v", resp["products"])
	}
	first := products[0].(map[string]interface{})
	if first["name"] != "Prato Executivo" {
		t.Errorf("name: got %v, want Prato Executivo", first["name"])
	}
	if first["final_price"] != "32.90" {
		t.Errorf("final_price: got %v, want 32.90", first["final_price"])
	}
	if first["had_promotion"] != false {
		t.Errorf("had_promotion: got %v, want false", first["had_promotion"])
	}
}

func TestListProducts_PromotionApplied(t *testing.T) {
	store := newMockProductStore()
	product := makeProduct(t, "Marmita da Casa", "24.90")
	store.products[product.ID] = product
	store.promotions[product.ID] = database.Promotion{
		ID:                 uuid.New(),
		ProductID:          product.ID,
		DiscountPercentage: mustNumeric(t, "10"),
		ExpiresAt:          pgtype.Timestamptz{Time: time.Now().Add(24 * time.Hour), Valid: true},
	}

	rr := doJSON(t, newProductRouter(store), "GET", "/products", "", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	products := resp["products"].([]interface{})
	first := products[0].(map[string]interface{})
	if first["final_price"] != "22.41" {
		t.Errorf("final_price: got %v, want 22.41", first["final_price"])
	}
	if first["discount_amount"] != "2.49" {
		t.Errorf("discount_amount: got %v, want 2.49", first["discount_amount"])
	}
	if first["had_promotion"] != true {
		t.Errorf("had_promotion: got %v, want true", first["had_promotion"])
	}
}

func TestListProducts_ExpiredPromotionIgnored(t *testing.T) {
	store := newMockProductStore()
	product := makeProduct(t, "Marmita da Casa", "24.90")
	store.products[product.ID] = product
	store.promotions[product.ID] = database.Promotion{
		ID:                 uuid.New(),
		ProductID:          product.ID,
		DiscountPercentage: mustNumeric(t, "10"),
		ExpiresAt:          pgtype.Timestamptz{Time: time.Now().Add(-time.Hour), Valid: true},
	}

	rr := doJSON(t, newProductRouter(store), "GET", "/products", "", nil)

	resp := decodeResponse(t, rr)
	products := resp["products"].([]interface{})
	first := products[0].(map[string]interface{})
	if first["final_price"] != "24.90" {
		t.Errorf("final_price: got %v, want base 24.90", first["final_price"])
	}
	if first["had_promotion"] != false {
		t.Errorf("had_promotion: got %v, want false", first["had_promotion"])
	}
}

func TestGetProduct_WithRecipe(t *testing.T) {
	store := newMockProductStore()
	product := makeProduct(t, "Prato Executivo", "32.90")
	store.products[product.ID] = product

	queijo := database.Ingredient{
		ID:              uuid.New(),
		Name:            "Queijo",
		Price:           mustNumeric(t, "4.00"),
		AdditionalPrice: mustNumeric(t, "3.50"),
		IsAvailable:     true,
	}
	arroz := database.Ingredient{
		ID:          uuid.New(),
		Name:        "Arroz",
		Price:       mustNumeric(t, "2.00"),
		IsAvailable: false,
	}
	store.ingredients[queijo.ID] = queijo
	store.ingredients[arroz.ID] = arroz
	store.recipes[product.ID] = []database.ProductIngredient{
		{ProductID: product.ID, IngredientID: arroz.ID, Portions: mustNumeric(t, "2"), MaxQuantity: 2},
		{ProductID: product.ID, IngredientID: queijo.ID, Portions: mustNumeric(t, "0"), MinQuantity: 1, MaxQuantity: 3},
	}

	rr := doJSON(t, newProductRouter(store), "GET", "/products/"+product.ID.String(), "", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	ingredients, ok := resp["ingredients"].([]interface{})
	if !ok || len(ingredients) != 2 {
		t.Fatalf("expected 2 recipe lines, got %v", resp["ingredients"])
	}

	byName := make(map[string]map[string]interface{})
	for _, raw := range ingredients {
		line := raw.(map[string]interface{})
		byName[line["name"].(string)] = line
	}

	// additional_price wins over the regular price for extras
	if byName["Queijo"]["extra_price"] != "3.50" {
		t.Errorf("queijo extra_price: got %v, want 3.50", byName["Queijo"]["extra_price"])
	}
	// falls back to the regular price when additional_price is null
	if byName["Arroz"]["extra_price"] != "2.00" {
		t.Errorf("arroz extra_price: got %v, want 2.00", byName["Arroz"]["extra_price"])
	}
	if byName["Arroz"]["is_available"] != false {
		t.Errorf("arroz is_available: got %v, want false", byName["Arroz"]["is_available"])
	}
}

func TestGetProduct_NotFound(t *testing.T) {
	rr := doJSON(t, newProductRouter(newMockProductStore()), "GET", "/products/"+uuid.NewString(), "", nil)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestGetProduct_InvalidID(t *testing.T) {
	rr := doJSON(t, newProductRouter(newMockProductStore()), "GET", "/products/not-a-uuid", "", nil)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}
