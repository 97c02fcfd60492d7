package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sabordecasa/api/internal/database"
	"github.com/sabordecasa/api/internal/service"
)

// TableHandler exposes the restaurant floor board to staff.
type TableHandler struct {
	svc *service.TableBinder
	db  database.DBTX
}

// NewTableHandler creates a new TableHandler.
func NewTableHandler(svc *service.TableBinder, db database.DBTX) *TableHandler {
	return &TableHandler{svc: svc, db: db}
}

// RegisterRoutes registers table endpoints on the given Chi router.
func (h *TableHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}/status", h.UpdateStatus)
	r.Delete("/{id}", h.Delete)
}

type createTableRequest struct {
	Name string `json:"name"`
}

type updateTableStatusRequest struct {
	Status string `json:"status"`
}

type tableResponse struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Status         string    `json:"status"`
	CurrentOrderID *string   `json:"current_order_id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// List handles GET /tables.
func (h *TableHandler) List(w http.ResponseWriter, r *http.Request) {
	tables, err := h.svc.List(r.Context(), h.db)
	if err != nil {
		writeServiceError(w, "list tables", err)
		return
	}
	resp := make([]tableResponse, len(tables))
	for i, t := range tables {
		resp[i] = toTableResponse(t)
	}
	writeJSON(w, http.StatusOK, map[string]any{"tables": resp})
}

// Create handles POST /tables.
func (h *TableHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	table, err := h.svc.Create(r.Context(), h.db, req.Name)
	if err != nil {
		writeServiceError(w, "create table", err)
		return
	}
	writeJSON(w, http.StatusCreated, toTableResponse(table))
}

// Get handles GET /tables/{id}.
func (h *TableHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table ID"})
		return
	}

	table, err := h.svc.Get(r.Context(), h.db, id)
	if err != nil {
		writeServiceError(w, "get table", err)
		return
	}
	writeJSON(w, http.StatusOK, toTableResponse(table))
}

// UpdateStatus handles PATCH /tables/{id}/status for the staff-managed
// states. Occupied is only ever set by order binding.
func (h *TableHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table ID"})
		return
	}
	var req updateTableStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	table, err := h.svc.SetStatus(r.Context(), h.db, id, req.Status)
	if err != nil {
		writeServiceError(w, "update table status", err)
		return
	}
	writeJSON(w, http.StatusOK, toTableResponse(table))
}

// Delete handles DELETE /tables/{id}.
func (h *TableHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table ID"})
		return
	}

	if err := h.svc.Delete(r.Context(), h.db, id); err != nil {
		writeServiceError(w, "delete table", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toTableResponse(t database.RestaurantTable) tableResponse {
	return tableResponse{
		ID:             t.ID,
		Name:           t.Name,
		Status:         t.Status,
		CurrentOrderID: uuidPtr(t.CurrentOrderID),
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
}
