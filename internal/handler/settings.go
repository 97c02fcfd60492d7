package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/sabordecasa/api/internal/database"
	"github.com/sabordecasa/api/internal/service"
)

// SettingsStore defines the database methods needed by the settings screen.
// Satisfied by *database.Queries.
type SettingsStore interface {
	ListSettings(ctx context.Context) ([]database.Setting, error)
}

// SettingsHandler manages store configuration and the opening schedule.
type SettingsHandler struct {
	store    SettingsStore
	settings *service.SettingsCache
	hours    *service.StoreHours
}

// NewSettingsHandler creates a new SettingsHandler.
func NewSettingsHandler(store SettingsStore, settings *service.SettingsCache, hours *service.StoreHours) *SettingsHandler {
	return &SettingsHandler{store: store, settings: settings, hours: hours}
}

// RegisterRoutes registers settings endpoints on the given Chi router.
func (h *SettingsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Put("/{key}", h.Set)
	r.Get("/store-hours", h.ListStoreHours)
	r.Put("/store-hours/{day}", h.SetStoreHour)
}

type setSettingRequest struct {
	Value string `json:"value"`
}

type settingResponse struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

type storeHourRequest struct {
	OpeningTime string `json:"opening_time"` // HH:MM
	ClosingTime string `json:"closing_time"` // HH:MM
	IsOpen      bool   `json:"is_open"`
}

type storeHourResponse struct {
	DayOfWeek   int32  `json:"day_of_week"`
	OpeningTime string `json:"opening_time"`
	ClosingTime string `json:"closing_time"`
	IsOpen      bool   `json:"is_open"`
}

// List handles GET /settings.
func (h *SettingsHandler) List(w http.ResponseWriter, r *http.Request) {
	rows, err := h.store.ListSettings(r.Context())
	if err != nil {
		writeServiceError(w, "list settings", err)
		return
	}
	resp := make([]settingResponse, len(rows))
	for i, s := range rows {
		resp[i] = settingResponse{Key: s.Key, Value: s.Value, UpdatedAt: s.UpdatedAt}
	}
	writeJSON(w, http.StatusOK, map[string]any{"settings": resp})
}

// Set handles PUT /settings/{key}.
func (h *SettingsHandler) Set(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if key == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "setting key is required"})
		return
	}
	var req setSettingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	s, err := h.settings.Set(r.Context(), key, req.Value)
	if err != nil {
		writeServiceError(w, "set setting", err)
		return
	}
	writeJSON(w, http.StatusOK, settingResponse{Key: s.Key, Value: s.Value, UpdatedAt: s.UpdatedAt})
}

// ListStoreHours handles GET /settings/store-hours.
func (h *SettingsHandler) ListStoreHours(w http.ResponseWriter, r *http.Request) {
	rows, err := h.hours.List(r.Context())
	if err != nil {
		writeServiceError(w, "list store hours", err)
		return
	}
	resp := make([]storeHourResponse, len(rows))
	for i, row := range rows {
		resp[i] = toStoreHourResponse(row)
	}
	writeJSON(w, http.StatusOK, map[string]any{"store_hours": resp})
}

// SetStoreHour handles PUT /settings/store-hours/{day}. Days use Go weekday
// numbering with Sunday as 0.
func (h *SettingsHandler) SetStoreHour(w http.ResponseWriter, r *http.Request) {
	day, err := strconv.Atoi(chi.URLParam(r, "day"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid day, use 0 (Sunday) to 6 (Saturday)"})
		return
	}
	var req storeHourRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	opening, err := parseClockTime(req.OpeningTime)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid opening_time, use HH:MM"})
		return
	}
	closing, err := parseClockTime(req.ClosingTime)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid closing_time, use HH:MM"})
		return
	}

	row, err := h.hours.Set(r.Context(), database.UpsertStoreHourParams{
		DayOfWeek:   int32(day),
		OpeningTime: opening,
		ClosingTime: closing,
		IsOpen:      req.IsOpen,
	})
	if err != nil {
		writeServiceError(w, "set store hour", err)
		return
	}
	writeJSON(w, http.StatusOK, toStoreHourResponse(row))
}

func toStoreHourResponse(row database.StoreHour) storeHourResponse {
	return storeHourResponse{
		DayOfWeek:   row.DayOfWeek,
		OpeningTime: formatClockTime(row.OpeningTime),
		ClosingTime: formatClockTime(row.ClosingTime),
		IsOpen:      row.IsOpen,
	}
}

// parseClockTime converts "HH:MM" into a pgtype.Time (microseconds since
// midnight).
func parseClockTime(s string) (pgtype.Time, error) {
	if s == "" {
		return pgtype.Time{}, nil
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return pgtype.Time{}, err
	}
	micros := int64(t.Hour())*3600e6 + int64(t.Minute())*60e6
	return pgtype.Time{Microseconds: micros, Valid: true}, nil
}

func formatClockTime(t pgtype.Time) string {
	if !t.Valid {
		return ""
	}
	total := t.Microseconds / 1e6
	return time.Date(0, 1, 1, int(total/3600), int(total%3600/60), 0, 0, time.UTC).Format("15:04")
}
