package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const listSettings = `
SELECT key, value, updated_at
FROM settings
ORDER BY key
`

func (q *Queries) ListSettings(ctx context.Context) ([]Setting, error) {
	rows, err := q.db.Query(ctx, listSettings)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var settings []Setting
	for rows.Next() {
		var s Setting
		if err := rows.Scan(&s.Key, &s.Value, &s.UpdatedAt); err != nil {
			return nil, err
		}
		settings = append(settings, s)
	}
	return settings, rows.Err()
}

const getSetting = `
SELECT key, value, updated_at
FROM settings
WHERE key = $1
`

func (q *Queries) GetSetting(ctx context.Context, key string) (Setting, error) {
	var s Setting
	err := q.db.QueryRow(ctx, getSetting, key).Scan(&s.Key, &s.Value, &s.UpdatedAt)
	return s, err
}

const upsertSetting = `
INSERT INTO settings (key, value, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
RETURNING key, value, updated_at
`

type UpsertSettingParams struct {
	Key   string
	Value string
}

func (q *Queries) UpsertSetting(ctx context.Context, arg UpsertSettingParams) (Setting, error) {
	var s Setting
	err := q.db.QueryRow(ctx, upsertSetting, arg.Key, arg.Value).Scan(&s.Key, &s.Value, &s.UpdatedAt)
	return s, err
}

const listStoreHours = `
SELECT day_of_week, opening_time, closing_time, is_open
FROM store_hours
ORDER BY day_of_week
`

func (q *Queries) ListStoreHours(ctx context.Context) ([]StoreHour, error) {
	rows, err := q.db.Query(ctx, listStoreHours)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var hours []StoreHour
	for rows.Next() {
		var h StoreHour
		if err := rows.Scan(&h.DayOfWeek, &h.OpeningTime, &h.ClosingTime, &h.IsOpen); err != nil {
			return nil, err
		}
		hours = append(hours, h)
	}
	return hours, rows.Err()
}

const upsertStoreHour = `
INSERT INTO store_hours (day_of_week, opening_time, closing_time, is_open)
VALUES ($1, $2, $3, $4)
ON CONFLICT (day_of_week) DO UPDATE
SET opening_time = EXCLUDED.opening_time,
    closing_time = EXCLUDED.closing_time,
    is_open = EXCLUDED.is_open
RETURNING day_of_week, opening_time, closing_time, is_open
`

type UpsertStoreHourParams struct {
	DayOfWeek   int32
	OpeningTime pgtype.Time
	ClosingTime pgtype.Time
	IsOpen      bool
}

func (q *Queries) UpsertStoreHour(ctx context.Context, arg UpsertStoreHourParams) (StoreHour, error) {
	var h StoreHour
	err := q.db.QueryRow(ctx, upsertStoreHour,
		arg.DayOfWeek, arg.OpeningTime, arg.ClosingTime, arg.IsOpen).
		Scan(&h.DayOfWeek, &h.OpeningTime, &h.ClosingTime, &h.IsOpen)
	return h, err
}
