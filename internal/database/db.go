package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"seatreserve/internal/config"
	"seatreserve/internal/domain"
	"seatreserve/internal/models"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

// DB is the transactional store behind seats, bookings, blackout windows and bans.
// Every write transaction starts with BEGIN IMMEDIATE, so admissibility checks and
// the write that follows them run under the database write lock.
type DB struct {
	*sql.DB
	path   string
	loc    *time.Location
	logger *zerolog.Logger
}

var _ domain.Repository = (*DB)(nil)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

// NewDB opens path with default settings in the local time zone.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	return Open(config.DatabaseConfig{Path: path}, time.Local, logger)
}

func Open(cfg config.DatabaseConfig, loc *time.Location, logger *zerolog.Logger) (*DB, error) {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	memory := isMemoryPath(cfg.Path)
	if !memory {
		// Создаем директорию для БД, если её нет
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	busy := cfg.BusyTimeoutMS
	if busy <= 0 {
		busy = models.DefaultBusyTimeoutMS
	}

	sqlDB, err := sql.Open("sqlite3", buildDSN(cfg.Path, busy, memory))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	switch {
	case memory:
		// каждое новое соединение к :memory: получает свою пустую базу
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetConnMaxLifetime(0)
	case cfg.MaxOpenConns > 0:
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := &DB{DB: sqlDB, path: cfg.Path, loc: loc, logger: logger}
	if err := db.createTables(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", cfg.Path).Msg("database initialized")
	return db, nil
}

func isMemoryPath(path string) bool {
	return path == ":memory:" || strings.HasPrefix(path, ":memory:?") || strings.Contains(path, "mode=memory")
}

func buildDSN(path string, busyTimeoutMS int, memory bool) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	dsn := fmt.Sprintf("%s%s_txlock=immediate&_busy_timeout=%d&_foreign_keys=on", path, sep, busyTimeoutMS)
	if !memory {
		dsn += "&_journal_mode=WAL"
	}
	return dsn
}

// Path returns the file the database was opened from.
func (db *DB) Path() string {
	return db.path
}

// Location is the zone used for calendar-day rules.
func (db *DB) Location() *time.Location {
	return db.loc
}

func (db *DB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS seats (
            id INTEGER PRIMARY KEY,
            available BOOLEAN NOT NULL DEFAULT 1,
            info TEXT NOT NULL DEFAULT ''
        )`,
		`CREATE TABLE IF NOT EXISTS bookings (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            user_name TEXT NOT NULL,
            seat_id INTEGER NOT NULL REFERENCES seats(id),
            start_time INTEGER NOT NULL,
            end_time INTEGER NOT NULL,
            created_at INTEGER NOT NULL,
            updated_at INTEGER NOT NULL,
            CHECK (start_time < end_time)
        )`,
		`CREATE TABLE IF NOT EXISTS blackouts (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            start_time INTEGER NOT NULL,
            end_time INTEGER NOT NULL,
            source TEXT NOT NULL,
            created_at INTEGER NOT NULL,
            CHECK (start_time < end_time)
        )`,
		`CREATE TABLE IF NOT EXISTS bans (
            user_name TEXT PRIMARY KEY,
            start_time INTEGER NOT NULL,
            end_time INTEGER NOT NULL,
            reason TEXT NOT NULL DEFAULT '',
            updated_at INTEGER NOT NULL
        )`,

		// (user, start, end) адресует бронь при изменении и отмене
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_bookings_identity ON bookings(user_name, start_time, end_time)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_seat_time ON bookings(seat_id, start_time, end_time)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_user_end ON bookings(user_name, end_time)`,
		`CREATE INDEX IF NOT EXISTS idx_blackouts_time ON blackouts(start_time, end_time)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", trimSQL(query), err)
		}
	}
	return nil
}

// withTx runs fn inside a write transaction and commits when it returns nil.
// Any error, including context cancellation, rolls the transaction back.
func (db *DB) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return storeError(op+": begin transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return storeError(op+": commit", err)
	}
	return nil
}

func micros(t time.Time) int64 {
	return t.UnixMicro()
}

func fromMicros(v int64) time.Time {
	return time.UnixMicro(v).UTC()
}

func trimSQL(q string) string {
	return strings.Join(strings.Fields(q), " ")
}
