package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/sabordecasa/api/internal/service"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

// writeServiceError maps the service error taxonomy to HTTP statuses:
// business rejections are 422, bad input 400, the rest as expected.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	var se *service.Error
	if !errors.As(err, &se) {
		log.Printf("ERROR: %s: %v", op, err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Code: string(service.CodeUnknownError), Error: "internal server error"})
		return
	}

	var status int
	switch se.Code {
	case service.CodeValidationError, service.CodeInvalidCPF:
		status = http.StatusBadRequest
	case service.CodeStoreClosed, service.CodeTableNotAvailable,
		service.CodeInsufficientStock, service.CodeIngredientUnavailable:
		status = http.StatusUnprocessableEntity
	case service.CodeNotFound:
		status = http.StatusNotFound
	case service.CodeForbidden:
		status = http.StatusForbidden
	default:
		log.Printf("ERROR: %s: %v", op, err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Code: string(service.CodeDatabaseError), Error: "internal server error"})
		return
	}
	writeJSON(w, status, errorResponse{Code: string(se.Code), Error: se.Message})
}

// --- pgtype to response helpers ---

func numericString(n pgtype.Numeric) string {
	if !n.Valid {
		return "0"
	}
	v, err := n.Value()
	if err != nil || v == nil {
		return "0"
	}
	return v.(string)
}

func numericPtr(n pgtype.Numeric) *string {
	if !n.Valid {
		return nil
	}
	s := numericString(n)
	return &s
}

func textPtr(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	return &t.String
}

func uuidPtr(u pgtype.UUID) *string {
	if !u.Valid {
		return nil
	}
	s := pgUUIDString(u)
	return &s
}

func pgUUIDString(u pgtype.UUID) string {
	v, _ := u.Value()
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
