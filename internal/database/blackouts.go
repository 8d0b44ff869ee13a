package database

import (
	"context"
	"database/sql"
	"time"

	"seatreserve/internal/interval"
	"seatreserve/internal/models"
)

func scanBlackout(row rowScanner) (*models.BlackoutWindow, error) {
	var w models.BlackoutWindow
	var start, end, createdAt int64
	if err := row.Scan(&w.ID, &start, &end, &w.Source, &createdAt); err != nil {
		return nil, err
	}
	w.Start = fromMicros(start)
	w.End = fromMicros(end)
	w.CreatedAt = fromMicros(createdAt)
	return &w, nil
}

func insertBlackout(ctx context.Context, q querier, iv interval.Interval, source string, now time.Time) (*models.BlackoutWindow, error) {
	result, err := q.ExecContext(ctx,
		`INSERT INTO blackouts (start_time, end_time, source, created_at) VALUES (?, ?, ?, ?)`,
		micros(iv.Start), micros(iv.End), source, micros(now),
	)
	if err != nil {
		return nil, storeError("insert blackout", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, storeError("get last insert id", err)
	}
	return &models.BlackoutWindow{
		ID:        id,
		Start:     fromMicros(micros(iv.Start)),
		End:       fromMicros(micros(iv.End)),
		Source:    source,
		CreatedAt: fromMicros(micros(now)),
	}, nil
}

// AddBlackout inserts iv unconditionally. Existing bookings inside it stay.
func (db *DB) AddBlackout(ctx context.Context, iv interval.Interval, source string, now time.Time) (*models.BlackoutWindow, error) {
	if err := interval.CheckRange(iv); err != nil {
		return nil, err
	}
	return insertBlackout(ctx, db, iv, source, now)
}

// InsertBlackoutIfFree inserts iv unless an existing window already overlaps
// it. Returns nil when nothing was written.
func (db *DB) InsertBlackoutIfFree(ctx context.Context, iv interval.Interval, source string, now time.Time) (*models.BlackoutWindow, error) {
	if err := interval.CheckRange(iv); err != nil {
		return nil, err
	}

	var window *models.BlackoutWindow
	err := db.withTx(ctx, "insert blackout", func(tx *sql.Tx) error {
		covered, err := conflictsWithBlackout(ctx, tx, iv)
		if err != nil || covered {
			return err
		}
		window, err = insertBlackout(ctx, tx, iv, source, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return window, nil
}

// ListBlackouts returns windows overlapping iv ordered by start.
func (db *DB) ListBlackouts(ctx context.Context, iv interval.Interval) ([]*models.BlackoutWindow, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, start_time, end_time, source, created_at FROM blackouts
         WHERE start_time < ? AND end_time > ? ORDER BY start_time, id`,
		micros(iv.End), micros(iv.Start),
	)
	if err != nil {
		return nil, storeError("list blackouts", err)
	}
	defer rows.Close()

	var windows []*models.BlackoutWindow
	for rows.Next() {
		w, err := scanBlackout(rows)
		if err != nil {
			return nil, storeError("scan blackout", err)
		}
		windows = append(windows, w)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("list blackouts", err)
	}
	return windows, nil
}
