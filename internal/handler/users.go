package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sabordecasa/api/internal/database"
	"github.com/sabordecasa/api/internal/enum"
	"github.com/sabordecasa/api/internal/middleware"
	"golang.org/x/crypto/bcrypt"
)

// UserStore defines the database methods needed by user handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type UserStore interface {
	ListUsers(ctx context.Context) ([]database.User, error)
	CreateUser(ctx context.Context, arg database.CreateUserParams) (database.User, error)
	ListAddressesForUser(ctx context.Context, userID uuid.UUID) ([]database.Address, error)
	CreateAddress(ctx context.Context, arg database.CreateAddressParams) (database.Address, error)
	DeactivateAddress(ctx context.Context, arg database.DeactivateAddressParams) (int64, error)
}

// UserHandler handles staff user management and customer addresses.
type UserHandler struct {
	store UserStore
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(store UserStore) *UserHandler {
	return &UserHandler{store: store}
}

// RegisterStaffRoutes registers staff management endpoints (manager only).
func (h *UserHandler) RegisterStaffRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.CreateStaff)
}

// RegisterAddressRoutes registers the caller's address endpoints.
func (h *UserHandler) RegisterAddressRoutes(r chi.Router) {
	r.Get("/", h.ListAddresses)
	r.Post("/", h.CreateAddress)
	r.Delete("/{id}", h.DeleteAddress)
}

// --- Request / Response types ---

type createStaffRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

type staffResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

type createAddressRequest struct {
	Street string `json:"street"`
	Number string `json:"number"`
}

type addressResponse struct {
	ID     uuid.UUID `json:"id"`
	Street string    `json:"street"`
	Number string    `json:"number"`
}

// --- Handlers ---

// List handles GET /users.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		log.Printf("ERROR: list users: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	resp := make([]staffResponse, len(users))
	for i, u := range users {
		resp[i] = staffResponse{
			ID:        u.ID,
			Email:     u.Email,
			FullName:  u.FullName,
			Role:      u.Role,
			CreatedAt: u.CreatedAt,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": resp})
}

// CreateStaff handles POST /users, creating an attendant, kitchen or manager
// account.
func (h *UserHandler) CreateStaff(w http.ResponseWriter, r *http.Request) {
	var req createStaffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" || req.FullName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email, password and full_name are required"})
		return
	}
	if len(req.Password) < 8 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "password must be at least 8 characters"})
		return
	}
	switch req.Role {
	case enum.UserRoleManager, enum.UserRoleAttendant, enum.UserRoleKitchen:
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "role must be manager, attendant or kitchen"})
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("ERROR: hash password: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	user, err := h.store.CreateUser(r.Context(), database.CreateUserParams{
		Email:          req.Email,
		HashedPassword: string(hashed),
		FullName:       req.FullName,
		Role:           req.Role,
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "email already registered"})
			return
		}
		log.Printf("ERROR: create staff user: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, staffResponse{
		ID:        user.ID,
		Email:     user.Email,
		FullName:  user.FullName,
		Role:      user.Role,
		CreatedAt: user.CreatedAt,
	})
}

// ListAddresses handles GET /addresses for the caller.
func (h *UserHandler) ListAddresses(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	addresses, err := h.store.ListAddressesForUser(r.Context(), claims.UserID)
	if err != nil {
		log.Printf("ERROR: list addresses: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	resp := make([]addressResponse, len(addresses))
	for i, a := range addresses {
		resp[i] = addressResponse{ID: a.ID, Street: a.Street, Number: a.Number}
	}
	writeJSON(w, http.StatusOK, map[string]any{"addresses": resp})
}

// CreateAddress handles POST /addresses for the caller.
func (h *UserHandler) CreateAddress(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req createAddressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	req.Street = strings.TrimSpace(req.Street)
	req.Number = strings.TrimSpace(req.Number)
	if req.Street == "" || req.Number == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "street and number are required"})
		return
	}

	address, err := h.store.CreateAddress(r.Context(), database.CreateAddressParams{
		UserID: claims.UserID,
		Street: req.Street,
		Number: req.Number,
	})
	if err != nil {
		log.Printf("ERROR: create address: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusCreated, addressResponse{ID: address.ID, Street: address.Street, Number: address.Number})
}

// DeleteAddress handles DELETE /addresses/{id} for the caller. Addresses are
// deactivated, not removed, so past orders keep their reference.
func (h *UserHandler) DeleteAddress(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid address ID"})
		return
	}

	affected, err := h.store.DeactivateAddress(r.Context(), database.DeactivateAddressParams{
		ID:     id,
		UserID: claims.UserID,
	})
	if err != nil {
		log.Printf("ERROR: deactivate address: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if affected == 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "address not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
