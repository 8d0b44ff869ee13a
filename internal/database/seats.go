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

// ProvisionSeats makes sure seats 1..count exist. Existing rows keep their
// availability flag and nothing is ever deleted. Returns how many were added.
func (db *DB) ProvisionSeats(ctx context.Context, count int) (int, error) {
	inserted := 0
	err := db.withTx(ctx, "provision seats", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO seats (id, available, info) VALUES (?, 1, '')`)
		if err != nil {
			return storeError("prepare seat insert", err)
		}
		defer stmt.Close()

		for id := 1; id <= count; id++ {
			result, err := stmt.ExecContext(ctx, id)
			if err != nil {
				return storeError("insert seat", err)
			}
			n, err := result.RowsAffected()
			if err != nil {
				return storeError("get rows affected", err)
			}
			inserted += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if inserted > 0 {
		db.logger.Info().Int("inserted", inserted).Int("pool_size", count).Msg("seats provisioned")
	}
	return inserted, nil
}

// UpsertSeat writes seat metadata, creating the row when missing. Reports
// whether the seat was new.
func (db *DB) UpsertSeat(ctx context.Context, seat *models.Seat) (bool, error) {
	if seat.ID <= 0 {
		return false, fmt.Errorf("invalid seat id %d", seat.ID)
	}

	var existed bool
	err := db.withTx(ctx, "upsert seat", func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM seats WHERE id = ?)`, seat.ID).Scan(&existed); err != nil {
			return storeError("check seat", err)
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO seats (id, available, info) VALUES (?, ?, ?)
             ON CONFLICT(id) DO UPDATE SET available = excluded.available, info = excluded.info`,
			seat.ID, seat.Available, seat.Info,
		)
		if err != nil {
			return storeError("upsert seat", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return !existed, nil
}

func scanSeat(row rowScanner) (*models.Seat, error) {
	var s models.Seat
	if err := row.Scan(&s.ID, &s.Available, &s.Info); err != nil {
		return nil, err
	}
	return &s, nil
}

func (db *DB) GetSeat(ctx context.Context, id int64) (*models.Seat, error) {
	seat, err := scanSeat(db.QueryRowContext(ctx, `SELECT id, available, info FROM seats WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSeatNotFound
	}
	if err != nil {
		return nil, storeError("get seat", err)
	}
	return seat, nil
}

func (db *DB) ListSeats(ctx context.Context) ([]*models.Seat, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, available, info FROM seats ORDER BY id`)
	if err != nil {
		return nil, storeError("list seats", err)
	}
	defer rows.Close()

	var seats []*models.Seat
	for rows.Next() {
		seat, err := scanSeat(rows)
		if err != nil {
			return nil, storeError("scan seat", err)
		}
		seats = append(seats, seat)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("list seats", err)
	}
	return seats, nil
}

// SetSeatAvailability flips the administrative flag. A booking transaction in
// flight holds the write lock, so the toggle lands either before its check or
// after its commit.
func (db *DB) SetSeatAvailability(ctx context.Context, id int64, available bool) error {
	result, err := db.ExecContext(ctx, `UPDATE seats SET available = ? WHERE id = ?`, available, id)
	if err != nil {
		return storeError("set seat availability", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return storeError("get rows affected", err)
	}
	if rows == 0 {
		return ErrSeatNotFound
	}
	return nil
}

// statusQuery classifies seats over a range: disabled or blacked out wins over
// booked, booked wins over free. A single statement reads one snapshot.
const statusQuery = `
    SELECT s.id,
        CASE
            WHEN s.available = 0 THEN 'unavailable'
            WHEN EXISTS (SELECT 1 FROM blackouts w
                         WHERE w.start_time < ? AND w.end_time > ?) THEN 'unavailable'
            WHEN EXISTS (SELECT 1 FROM bookings b
                         WHERE b.seat_id = s.id AND b.start_time < ? AND b.end_time > ?) THEN 'borrowed'
            ELSE 'available'
        END
    FROM seats s`

// pointRange turns an instant into the one-microsecond range it falls into.
// With integer microseconds, overlapping [at, at+1µs) is the same as covering at.
func pointRange(at time.Time) interval.Interval {
	return interval.New(at, at.Add(time.Microsecond))
}

func statusArgs(iv interval.Interval) []any {
	end, start := micros(iv.End), micros(iv.Start)
	return []any{end, start, end, start}
}

func (db *DB) StatusAt(ctx context.Context, seatID int64, at time.Time) (models.SeatStatus, error) {
	return db.StatusOver(ctx, seatID, pointRange(at))
}

func (db *DB) StatusOver(ctx context.Context, seatID int64, iv interval.Interval) (models.SeatStatus, error) {
	var (
		id     int64
		status string
	)
	args := append(statusArgs(iv), seatID)
	err := db.QueryRowContext(ctx, statusQuery+` WHERE s.id = ?`, args...).Scan(&id, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrSeatNotFound
	}
	if err != nil {
		return "", storeError("read seat status", err)
	}
	return models.SeatStatus(status), nil
}

func (db *DB) AllStatusAt(ctx context.Context, at time.Time) ([]models.SeatState, error) {
	return db.AllStatusOver(ctx, pointRange(at))
}

func (db *DB) AllStatusOver(ctx context.Context, iv interval.Interval) ([]models.SeatState, error) {
	rows, err := db.QueryContext(ctx, statusQuery+` ORDER BY s.id`, statusArgs(iv)...)
	if err != nil {
		return nil, storeError("read status table", err)
	}
	defer rows.Close()

	var states []models.SeatState
	for rows.Next() {
		var (
			st     models.SeatState
			status string
		)
		if err := rows.Scan(&st.SeatID, &status); err != nil {
			return nil, storeError("scan seat status", err)
		}
		st.Status = models.SeatStatus(status)
		states = append(states, st)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("read status table", err)
	}
	return states, nil
}
