package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sabordecasa/api/internal/database"
	"github.com/shopspring/decimal"
)

const defaultCacheTTL = 60 * time.Second

// SettingsStore defines the DB methods the settings cache needs.
// Satisfied by *database.Queries.
type SettingsStore interface {
	ListSettings(ctx context.Context) ([]database.Setting, error)
	UpsertSetting(ctx context.Context, arg database.UpsertSettingParams) (database.Setting, error)
}

// SettingsCache reads the settings table through a TTL cache. All getters
// refresh lazily when the snapshot is stale; Invalidate forces a refetch on
// the next read.
type SettingsCache struct {
	store SettingsStore
	ttl   time.Duration
	now   func() time.Time

	mu        sync.RWMutex
	values    map[string]string
	fetchedAt time.Time
}

func NewSettingsCache(store SettingsStore, ttl time.Duration) *SettingsCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &SettingsCache{store: store, ttl: ttl, now: time.Now}
}

func (c *SettingsCache) snapshot(ctx context.Context) (map[string]string, error) {
	c.mu.RLock()
	if c.values != nil && c.now().Sub(c.fetchedAt) < c.ttl {
		v := c.values
		c.mu.RUnlock()
		return v, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.values != nil && c.now().Sub(c.fetchedAt) < c.ttl {
		return c.values, nil
	}
	rows, err := c.store.ListSettings(ctx)
	if err != nil {
		return nil, DBErr("list settings", err)
	}
	values := make(map[string]string, len(rows))
	for _, s := range rows {
		values[s.Key] = s.Value
	}
	c.values = values
	c.fetchedAt = c.now()
	return values, nil
}

// Get returns the raw value and whether the key exists.
func (c *SettingsCache) Get(ctx context.Context, key string) (string, bool, error) {
	values, err := c.snapshot(ctx)
	if err != nil {
		return "", false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

// GetDecimal parses the setting as a decimal, falling back to def when the
// key is absent or malformed.
func (c *SettingsCache) GetDecimal(ctx context.Context, key string, def decimal.Decimal) (decimal.Decimal, error) {
	v, ok, err := c.Get(ctx, key)
	if err != nil {
		return decimal.Zero, err
	}
	if !ok {
		return def, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return def, nil
	}
	return d, nil
}

// Set writes through the store and invalidates the cache.
func (c *SettingsCache) Set(ctx context.Context, key, value string) (database.Setting, error) {
	s, err := c.store.UpsertSetting(ctx, database.UpsertSettingParams{Key: key, Value: value})
	if err != nil {
		return database.Setting{}, DBErr("upsert setting", err)
	}
	c.Invalidate()
	return s, nil
}

func (c *SettingsCache) Invalidate() {
	c.mu.Lock()
	c.values = nil
	c.mu.Unlock()
}

// StoreHoursStore defines the DB methods the store-hours checker needs.
type StoreHoursStore interface {
	ListStoreHours(ctx context.Context) ([]database.StoreHour, error)
	UpsertStoreHour(ctx context.Context, arg database.UpsertStoreHourParams) (database.StoreHour, error)
}

// StoreHours caches the weekly opening schedule and answers "is the store
// open right now". Days use time.Weekday numbering (Sunday = 0).
type StoreHours struct {
	store StoreHoursStore
	ttl   time.Duration
	now   func() time.Time

	mu        sync.RWMutex
	byDay     map[int32]database.StoreHour
	fetchedAt time.Time
}

func NewStoreHours(store StoreHoursStore, ttl time.Duration) *StoreHours {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &StoreHours{store: store, ttl: ttl, now: time.Now}
}

func (h *StoreHours) schedule(ctx context.Context) (map[int32]database.StoreHour, error) {
	h.mu.RLock()
	if h.byDay != nil && h.now().Sub(h.fetchedAt) < h.ttl {
		m := h.byDay
		h.mu.RUnlock()
		return m, nil
	}
	h.mu.RUnlock()

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.byDay != nil && h.now().Sub(h.fetchedAt) < h.ttl {
		return h.byDay, nil
	}
	rows, err := h.store.ListStoreHours(ctx)
	if err != nil {
		return nil, DBErr("list store hours", err)
	}
	byDay := make(map[int32]database.StoreHour, len(rows))
	for _, r := range rows {
		byDay[r.DayOfWeek] = r
	}
	h.byDay = byDay
	h.fetchedAt = h.now()
	return byDay, nil
}

// IsStoreOpen reports whether orders are accepted at the current time. A day
// without a schedule row counts as closed. A closing time earlier than the
// opening time means the window crosses midnight.
func (h *StoreHours) IsStoreOpen(ctx context.Context) (bool, string, error) {
	byDay, err := h.schedule(ctx)
	if err != nil {
		return false, "", err
	}
	now := h.now()
	nowMicros := int64(now.Hour())*3600e6 + int64(now.Minute())*60e6 + int64(now.Second())*1e6

	day, ok := byDay[int32(now.Weekday())]
	if ok && day.IsOpen && day.OpeningTime.Valid && day.ClosingTime.Valid {
		open, close := day.OpeningTime.Microseconds, day.ClosingTime.Microseconds
		if open <= close {
			if nowMicros >= open && nowMicros < close {
				return true, "", nil
			}
		} else if nowMicros >= open {
			return true, "", nil
		}
	}

	// An overnight window started yesterday may still be running.
	prev, ok := byDay[int32((now.Weekday()+6)%7)]
	if ok && prev.IsOpen && prev.OpeningTime.Valid && prev.ClosingTime.Valid &&
		prev.OpeningTime.Microseconds > prev.ClosingTime.Microseconds &&
		nowMicros < prev.ClosingTime.Microseconds {
		return true, "", nil
	}

	return false, fmt.Sprintf("store is closed on %s at %s", now.Weekday(), now.Format("15:04")), nil
}

// List returns the full schedule, for the settings screen.
func (h *StoreHours) List(ctx context.Context) ([]database.StoreHour, error) {
	rows, err := h.store.ListStoreHours(ctx)
	if err != nil {
		return nil, DBErr("list store hours", err)
	}
	return rows, nil
}

// Set updates one day and invalidates the cache.
func (h *StoreHours) Set(ctx context.Context, arg database.UpsertStoreHourParams) (database.StoreHour, error) {
	if arg.DayOfWeek < 0 || arg.DayOfWeek > 6 {
		return database.StoreHour{}, E(CodeValidationError, "day_of_week must be 0..6")
	}
	row, err := h.store.UpsertStoreHour(ctx, arg)
	if err != nil {
		return database.StoreHour{}, DBErr("upsert store hour", err)
	}
	h.Invalidate()
	return row, nil
}

func (h *StoreHours) Invalidate() {
	h.mu.Lock()
	h.byDay = nil
	h.mu.Unlock()
}
