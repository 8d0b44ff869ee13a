package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

var (
	// ErrConflict covers every overlap-style refusal: another booking, a
	// blackout window or the same-day rule.
	ErrConflict        = errors.New("conflict")
	ErrBookingOverlap  = fmt.Errorf("%w: seat is already booked in this interval", ErrConflict)
	ErrBlackoutOverlap = fmt.Errorf("%w: interval overlaps a blackout window", ErrConflict)
	ErrSameDayBooking  = fmt.Errorf("%w: user already holds an unfinished booking on that day", ErrConflict)

	ErrRejected        = errors.New("rejected")
	ErrSeatUnavailable = fmt.Errorf("%w: seat is unavailable", ErrRejected)

	ErrNotFound        = errors.New("not found")
	ErrSeatNotFound    = fmt.Errorf("seat %w", ErrNotFound)
	ErrBookingNotFound = fmt.Errorf("booking %w", ErrNotFound)
	ErrBanNotFound     = fmt.Errorf("ban %w", ErrNotFound)

	ErrStoreUnavailable = errors.New("store unavailable")
)

// StoreError is an infrastructure failure of the store. It matches both
// ErrStoreUnavailable and the underlying driver error.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() []error {
	return []error{ErrStoreUnavailable, e.Err}
}

func storeError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

// IsBusy reports whether err is a SQLite lock wait that ran out of time.
func IsBusy(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}

func isConstraint(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint
}

// IsCanceled reports whether the caller gave up before the store answered.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
