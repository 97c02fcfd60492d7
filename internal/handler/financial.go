package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/sabordecasa/api/internal/database"
	"github.com/sabordecasa/api/internal/service"
)

// FinancialHandler exposes the movement journal to managers.
type FinancialHandler struct {
	svc *service.FinancialPoster
	db  database.DBTX
}

// NewFinancialHandler creates a new FinancialHandler.
func NewFinancialHandler(svc *service.FinancialPoster, db database.DBTX) *FinancialHandler {
	return &FinancialHandler{svc: svc, db: db}
}

// RegisterRoutes registers financial endpoints on the given Chi router.
func (h *FinancialHandler) RegisterRoutes(r chi.Router) {
	r.Get("/movements", h.ListMovements)
}

type movementResponse struct {
	ID            uuid.UUID `json:"id"`
	Type          string    `json:"type"`
	Value         string    `json:"value"`
	Category      string    `json:"category"`
	Subcategory   *string   `json:"subcategory"`
	Description   *string   `json:"description"`
	MovementDate  time.Time `json:"movement_date"`
	PaymentStatus string    `json:"payment_status"`
	PaymentMethod *string   `json:"payment_method"`
	OrderID       *string   `json:"order_id"`
	Reconciled    bool      `json:"reconciled"`
	CreatedAt     time.Time `json:"created_at"`
}

// ListMovements handles GET /financial/movements with optional type and date
// filters.
func (h *FinancialHandler) ListMovements(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 200 {
		limit = 200
	}
	offset := 0
	if s := r.URL.Query().Get("offset"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = v
		}
	}

	params := database.ListFinancialMovementsParams{
		Limit:  int32(limit),
		Offset: int32(offset),
	}
	if s := r.URL.Query().Get("type"); s != "" {
		params.Type = pgtype.Text{String: s, Valid: true}
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

	movements, err := h.svc.List(r.Context(), h.db, params)
	if err != nil {
		writeServiceError(w, "list financial movements", err)
		return
	}
	resp := make([]movementResponse, len(movements))
	for i, m := range movements {
		resp[i] = movementResponse{
			ID:            m.ID,
			Type:          m.Type,
			Value:         numericString(m.Value),
			Category:      m.Category,
			Subcategory:   textPtr(m.Subcategory),
			Description:   textPtr(m.Description),
			MovementDate:  m.MovementDate,
			PaymentStatus: m.PaymentStatus,
			PaymentMethod: textPtr(m.PaymentMethod),
			OrderID:       uuidPtr(m.OrderID),
			Reconciled:    m.Reconciled,
			CreatedAt:     m.CreatedAt,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"movements": resp,
		"limit":     limit,
		"offset":    offset,
	})
}
