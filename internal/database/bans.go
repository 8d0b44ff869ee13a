package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"seatreserve/internal/interval"
	"seatreserve/internal/models"
)

// SetBan writes the user's single ban row, replacing any previous one in the
// same statement.
func (db *DB) SetBan(ctx context.Context, ban *models.Ban, now time.Time) error {
	if err := interval.CheckRange(interval.New(ban.Start, ban.End)); err != nil {
		return err
	}

	query := `INSERT INTO bans (user_name, start_time, end_time, reason, updated_at)
              VALUES (?, ?, ?, ?, ?)
              ON CONFLICT(user_name) DO UPDATE SET
                  start_time = excluded.start_time,
                  end_time = excluded.end_time,
                  reason = excluded.reason,
                  updated_at = excluded.updated_at`
	_, err := db.ExecContext(ctx, query, ban.User, micros(ban.Start), micros(ban.End), ban.Reason, micros(now))
	if err != nil {
		return storeError("set ban", err)
	}
	ban.UpdatedAt = fromMicros(micros(now))
	return nil
}

func (db *DB) LiftBan(ctx context.Context, user string) error {
	result, err := db.ExecContext(ctx, `DELETE FROM bans WHERE user_name = ?`, user)
	if err != nil {
		return storeError("lift ban", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return storeError("get rows affected", err)
	}
	if rows == 0 {
		return ErrBanNotFound
	}
	return nil
}

func (db *DB) GetBan(ctx context.Context, user string) (*models.Ban, error) {
	var ban models.Ban
	var start, end, updatedAt int64
	err := db.QueryRowContext(ctx,
		`SELECT user_name, start_time, end_time, reason, updated_at FROM bans WHERE user_name = ?`, user,
	).Scan(&ban.User, &start, &end, &ban.Reason, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBanNotFound
	}
	if err != nil {
		return nil, storeError("get ban", err)
	}
	ban.Start = fromMicros(start)
	ban.End = fromMicros(end)
	ban.UpdatedAt = fromMicros(updatedAt)
	return &ban, nil
}

// IsBanned reports whether user has a ban with start <= at < end.
func (db *DB) IsBanned(ctx context.Context, user string, at time.Time) (bool, error) {
	var banned bool
	err := db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM bans WHERE user_name = ? AND start_time <= ? AND end_time > ?)`,
		user, micros(at), micros(at),
	).Scan(&banned)
	if err != nil {
		return false, storeError("check ban", err)
	}
	return banned, nil
}
