package service

import (
	"context"
	"time"

	"seatreserve/internal/clock"
	"seatreserve/internal/domain"
	"seatreserve/internal/interval"
	"seatreserve/internal/models"
)

// AvailabilityService answers read-only seat status questions.
type AvailabilityService struct {
	repo  domain.AvailabilityRepository
	clock clock.Clock
	loc   *time.Location
}

func NewAvailabilityService(repo domain.AvailabilityRepository, clk clock.Clock, loc *time.Location) *AvailabilityService {
	if loc == nil {
		loc = time.Local
	}
	return &AvailabilityService{repo: repo, clock: clk, loc: loc}
}

func (s *AvailabilityService) at(t time.Time) time.Time {
	if t.IsZero() {
		return s.clock.Now()
	}
	return t
}

func validRange(iv interval.Interval) error {
	return interval.CheckRange(iv)
}

func validInstant(t time.Time) error {
	if !interval.InRange(t) {
		return interval.ErrOutOfRange
	}
	return nil
}

// StatusAt reports the seat status at an instant; zero means now.
func (s *AvailabilityService) StatusAt(ctx context.Context, seatID int64, at time.Time) (models.SeatStatus, error) {
	at = s.at(at)
	if err := validInstant(at); err != nil {
		return "", err
	}
	return s.repo.StatusAt(ctx, seatID, at)
}

func (s *AvailabilityService) StatusOver(ctx context.Context, seatID int64, iv interval.Interval) (models.SeatStatus, error) {
	if err := validRange(iv); err != nil {
		return "", err
	}
	return s.repo.StatusOver(ctx, seatID, iv)
}

func (s *AvailabilityService) AllStatusAt(ctx context.Context, at time.Time) ([]models.SeatState, error) {
	at = s.at(at)
	if err := validInstant(at); err != nil {
		return nil, err
	}
	return s.repo.AllStatusAt(ctx, at)
}

func (s *AvailabilityService) AllStatusOver(ctx context.Context, iv interval.Interval) ([]models.SeatState, error) {
	if err := validRange(iv); err != nil {
		return nil, err
	}
	return s.repo.AllStatusOver(ctx, iv)
}

// SeatBookings lists what is booked on seatID during the local calendar day of day.
func (s *AvailabilityService) SeatBookings(ctx context.Context, seatID int64, day time.Time) ([]*models.Booking, error) {
	bounds := interval.DayBounds(s.at(day), s.loc)
	if err := validRange(bounds); err != nil {
		return nil, err
	}
	return s.repo.SeatBookings(ctx, seatID, bounds)
}

func (s *AvailabilityService) ListSeats(ctx context.Context) ([]*models.Seat, error) {
	return s.repo.ListSeats(ctx)
}
