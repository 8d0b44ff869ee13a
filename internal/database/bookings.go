package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"seatreserve/internal/interval"
	"seatreserve/internal/models"
)

const bookingColumns = `id, user_name, seat_id, start_time, end_time, created_at, updated_at`

func scanBooking(row rowScanner) (*models.Booking, error) {
	var b models.Booking
	var start, end, createdAt, updatedAt int64
	if err := row.Scan(&b.ID, &b.User, &b.SeatID, &start, &end, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	b.Start = fromMicros(start)
	b.End = fromMicros(end)
	b.CreatedAt = fromMicros(createdAt)
	b.UpdatedAt = fromMicros(updatedAt)
	return &b, nil
}

func (db *DB) validateInterval(iv interval.Interval, now time.Time) error {
	if err := interval.Validate(iv, now); err != nil {
		return err
	}
	return interval.WithinSingleDay(iv, db.loc)
}

// CreateBooking grants iv on seatID to user, or explains why it cannot.
func (db *DB) CreateBooking(ctx context.Context, user string, seatID int64, iv interval.Interval, now time.Time) (*models.Booking, error) {
	if err := db.validateInterval(iv, now); err != nil {
		return nil, err
	}

	booking := &models.Booking{
		User:      user,
		SeatID:    seatID,
		Start:     fromMicros(micros(iv.Start)),
		End:       fromMicros(micros(iv.End)),
		CreatedAt: fromMicros(micros(now)),
		UpdatedAt: fromMicros(micros(now)),
	}

	err := db.withTx(ctx, "create booking", func(tx *sql.Tx) error {
		if err := db.checkAdmissible(ctx, tx, user, seatID, iv, now, nil); err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx, `INSERT INTO bookings (
                user_name, seat_id, start_time, end_time, created_at, updated_at
            ) VALUES (?, ?, ?, ?, ?, ?)`,
			user, seatID, micros(iv.Start), micros(iv.End), micros(now), micros(now),
		)
		if isConstraint(err) {
			return fmt.Errorf("%w: %v", ErrConflict, err)
		}
		if err != nil {
			return storeError("insert booking", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return storeError("get last insert id", err)
		}
		booking.ID = id
		return nil
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

// ModifyBooking moves user's booking at current to next on the same seat.
func (db *DB) ModifyBooking(ctx context.Context, user string, current, next interval.Interval, now time.Time) (*models.Booking, error) {
	if err := db.validateInterval(next, now); err != nil {
		return nil, err
	}

	var booking *models.Booking
	err := db.withTx(ctx, "modify booking", func(tx *sql.Tx) error {
		existing, err := findBooking(ctx, tx, user, current)
		if err != nil {
			return err
		}

		key := existing.Key()
		if err := db.checkAdmissible(ctx, tx, user, existing.SeatID, next, now, &key); err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx,
			`UPDATE bookings SET start_time = ?, end_time = ?, updated_at = ? WHERE id = ?`,
			micros(next.Start), micros(next.End), micros(now), existing.ID,
		)
		if isConstraint(err) {
			return fmt.Errorf("%w: %v", ErrConflict, err)
		}
		if err != nil {
			return storeError("update booking", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return storeError("get rows affected", err)
		}
		if rows == 0 {
			return ErrBookingNotFound
		}

		existing.Start = fromMicros(micros(next.Start))
		existing.End = fromMicros(micros(next.End))
		existing.UpdatedAt = fromMicros(micros(now))
		booking = existing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

func findBooking(ctx context.Context, q querier, user string, iv interval.Interval) (*models.Booking, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE user_name = ? AND start_time = ? AND end_time = ?`,
		user, micros(iv.Start), micros(iv.End),
	)
	booking, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, storeError("find booking", err)
	}
	return booking, nil
}

// CancelBooking deletes user's booking at iv and returns what was removed.
func (db *DB) CancelBooking(ctx context.Context, user string, iv interval.Interval) (*models.Booking, error) {
	row := db.QueryRowContext(ctx,
		`DELETE FROM bookings WHERE user_name = ? AND start_time = ? AND end_time = ?
         RETURNING `+bookingColumns,
		user, micros(iv.Start), micros(iv.End),
	)
	booking, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, storeError("cancel booking", err)
	}
	return booking, nil
}

// ListActiveBookings returns user's bookings that end after from, earliest first.
func (db *DB) ListActiveBookings(ctx context.Context, user string, from time.Time) ([]*models.Booking, error) {
	return db.queryBookings(ctx, "list active bookings",
		`SELECT `+bookingColumns+` FROM bookings WHERE user_name = ? AND end_time > ? ORDER BY start_time, id`,
		user, micros(from),
	)
}

// SeatBookings lists bookings on seatID overlapping iv.
func (db *DB) SeatBookings(ctx context.Context, seatID int64, iv interval.Interval) ([]*models.Booking, error) {
	if _, err := seatAvailable(ctx, db, seatID); err != nil {
		return nil, err
	}
	return db.queryBookings(ctx, "list seat bookings",
		`SELECT `+bookingColumns+` FROM bookings
         WHERE seat_id = ? AND start_time < ? AND end_time > ? ORDER BY start_time`,
		seatID, micros(iv.End), micros(iv.Start),
	)
}

// BookingsBetween lists every booking overlapping iv, grouped by seat.
func (db *DB) BookingsBetween(ctx context.Context, iv interval.Interval) ([]*models.Booking, error) {
	return db.queryBookings(ctx, "list bookings",
		`SELECT `+bookingColumns+` FROM bookings
         WHERE start_time < ? AND end_time > ? ORDER BY seat_id, start_time`,
		micros(iv.End), micros(iv.Start),
	)
}

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	row := db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	booking, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, storeError("get booking", err)
	}
	return booking, nil
}

func (db *DB) queryBookings(ctx context.Context, op, query string, args ...any) ([]*models.Booking, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeError(op, err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, storeError(op+": scan", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError(op, err)
	}
	return bookings, nil
}
