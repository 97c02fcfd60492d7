package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sabordecasa/api/internal/database"
	"github.com/sabordecasa/api/internal/middleware"
	"github.com/sabordecasa/api/internal/service"
)

// LoyaltyHandler exposes the customer points ledger.
type LoyaltyHandler struct {
	svc *service.LoyaltyLedger
	db  database.DBTX
}

// NewLoyaltyHandler creates a new LoyaltyHandler.
func NewLoyaltyHandler(svc *service.LoyaltyLedger, db database.DBTX) *LoyaltyHandler {
	return &LoyaltyHandler{svc: svc, db: db}
}

// RegisterRoutes registers loyalty endpoints on the given Chi router.
func (h *LoyaltyHandler) RegisterRoutes(r chi.Router) {
	r.Get("/balance", h.Balance)
	r.Get("/history", h.History)
}

type loyaltyHistoryResponse struct {
	ID        uuid.UUID `json:"id"`
	OrderID   *string   `json:"order_id"`
	Points    int64     `json:"points"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// Balance handles GET /loyalty/balance for the caller.
func (h *LoyaltyHandler) Balance(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	balance, err := h.svc.Balance(r.Context(), claims.UserID)
	if err != nil {
		writeServiceError(w, "get loyalty balance", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"balance": balance})
}

// History handles GET /loyalty/history for the caller, newest first.
func (h *LoyaltyHandler) History(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	rows, err := h.svc.History(r.Context(), h.db, claims.UserID)
	if err != nil {
		writeServiceError(w, "get loyalty history", err)
		return
	}
	resp := make([]loyaltyHistoryResponse, len(rows))
	for i, row := range rows {
		resp[i] = loyaltyHistoryResponse{
			ID:        row.ID,
			OrderID:   uuidPtr(row.OrderID),
			Points:    row.Points,
			Reason:    row.Reason,
			CreatedAt: row.CreatedAt,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": resp})
}

// ExpireSweep handles POST /loyalty/expire (manager only), the batch
// counterpart to the lazy per-account expiration.
func (h *LoyaltyHandler) ExpireSweep(w http.ResponseWriter, r *http.Request) {
	count, err := h.svc.ExpireInactiveAccounts(r.Context())
	if err != nil {
		writeServiceError(w, "expire loyalty accounts", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"expired_accounts": count})
}
