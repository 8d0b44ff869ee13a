package service

import (
	"errors"

	"seatreserve/internal/database"
	"seatreserve/internal/interval"
	"seatreserve/internal/metrics"
)

var (
	ErrForbidden   = errors.New("user is banned")
	ErrRateLimited = errors.New("too many booking attempts")
	ErrInvalidUser = errors.New("user is required")
)

// IsInvalid reports errors caused by malformed input.
func IsInvalid(err error) bool {
	return errors.Is(err, interval.ErrInvalid) || errors.Is(err, ErrInvalidUser)
}

// outcome classifies err for metrics.
func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeCommitted
	case IsInvalid(err):
		return metrics.OutcomeInvalid
	case errors.Is(err, database.ErrConflict):
		return metrics.OutcomeConflict
	case errors.Is(err, database.ErrRejected):
		return metrics.OutcomeRejected
	case errors.Is(err, database.ErrNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, ErrForbidden):
		return metrics.OutcomeForbidden
	case errors.Is(err, ErrRateLimited):
		return metrics.OutcomeRateLimited
	case database.IsCanceled(err):
		return metrics.OutcomeCanceled
	default:
		return metrics.OutcomeError
	}
}
