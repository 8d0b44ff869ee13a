package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"seatreserve/internal/interval"
	"seatreserve/internal/models"
)

// The checks below take the open transaction so that their answer still holds
// when the caller writes.

func conflictsWithBookings(ctx context.Context, q querier, seatID int64, iv interval.Interval, excluding *models.BookingKey) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM bookings
              WHERE seat_id = ? AND start_time < ? AND end_time > ?`
	args := []any{seatID, micros(iv.End), micros(iv.Start)}
	if excluding != nil {
		query += ` AND NOT (user_name = ? AND start_time = ? AND end_time = ?)`
		args = append(args, excluding.User, micros(excluding.Start), micros(excluding.End))
	}
	query += `)`

	var exists bool
	if err := q.QueryRowContext(ctx, query, args...).Scan(&exists); err != nil {
		return false, storeError("check booking overlap", err)
	}
	return exists, nil
}

func conflictsWithBlackout(ctx context.Context, q querier, iv interval.Interval) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM blackouts WHERE start_time < ? AND end_time > ?)`

	var exists bool
	if err := q.QueryRowContext(ctx, query, micros(iv.End), micros(iv.Start)).Scan(&exists); err != nil {
		return false, storeError("check blackout overlap", err)
	}
	return exists, nil
}

func seatAvailable(ctx context.Context, q querier, seatID int64) (bool, error) {
	var available bool
	err := q.QueryRowContext(ctx, `SELECT available FROM seats WHERE id = ?`, seatID).Scan(&available)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrSeatNotFound
	}
	if err != nil {
		return false, storeError("read seat", err)
	}
	return available, nil
}

// hasUnfinishedSameDay reports whether user already holds a booking that starts
// inside day and has not ended at now.
func hasUnfinishedSameDay(ctx context.Context, q querier, user string, day interval.Interval, now time.Time, excluding *models.BookingKey) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM bookings
              WHERE user_name = ? AND start_time >= ? AND start_time < ? AND end_time > ?`
	args := []any{user, micros(day.Start), micros(day.End), micros(now)}
	if excluding != nil {
		query += ` AND NOT (user_name = ? AND start_time = ? AND end_time = ?)`
		args = append(args, excluding.User, micros(excluding.Start), micros(excluding.End))
	}
	query += `)`

	var exists bool
	if err := q.QueryRowContext(ctx, query, args...).Scan(&exists); err != nil {
		return false, storeError("check same-day bookings", err)
	}
	return exists, nil
}

// checkAdmissible runs every admission rule for iv on seatID in order of precedence.
func (db *DB) checkAdmissible(ctx context.Context, q querier, user string, seatID int64, iv interval.Interval, now time.Time, excluding *models.BookingKey) error {
	available, err := seatAvailable(ctx, q, seatID)
	if err != nil {
		return err
	}
	if !available {
		return ErrSeatUnavailable
	}

	overlap, err := conflictsWithBookings(ctx, q, seatID, iv, excluding)
	if err != nil {
		return err
	}
	if overlap {
		return ErrBookingOverlap
	}

	closed, err := conflictsWithBlackout(ctx, q, iv)
	if err != nil {
		return err
	}
	if closed {
		return ErrBlackoutOverlap
	}

	stacked, err := hasUnfinishedSameDay(ctx, q, user, interval.DayBounds(iv.Start, db.loc), now, excluding)
	if err != nil {
		return err
	}
	if stacked {
		return ErrSameDayBooking
	}
	return nil
}
