package domain

import (
	"context"
	"time"

	"seatreserve/internal/interval"
	"seatreserve/internal/models"
)

type BookingRepository interface {
	CreateBooking(ctx context.Context, user string, seatID int64, iv interval.Interval, now time.Time) (*models.Booking, error)
	ModifyBooking(ctx context.Context, user string, current, next interval.Interval, now time.Time) (*models.Booking, error)
	CancelBooking(ctx context.Context, user string, iv interval.Interval) (*models.Booking, error)
	ListActiveBookings(ctx context.Context, user string, from time.Time) ([]*models.Booking, error)
	BookingsBetween(ctx context.Context, iv interval.Interval) ([]*models.Booking, error)
}

type AvailabilityRepository interface {
	ListSeats(ctx context.Context) ([]*models.Seat, error)
	StatusAt(ctx context.Context, seatID int64, at time.Time) (models.SeatStatus, error)
	StatusOver(ctx context.Context, seatID int64, iv interval.Interval) (models.SeatStatus, error)
	AllStatusAt(ctx context.Context, at time.Time) ([]models.SeatState, error)
	AllStatusOver(ctx context.Context, iv interval.Interval) ([]models.SeatState, error)
	SeatBookings(ctx context.Context, seatID int64, iv interval.Interval) ([]*models.Booking, error)
	SetSeatAvailability(ctx context.Context, seatID int64, available bool) error
}

type BanRepository interface {
	IsBanned(ctx context.Context, user string, at time.Time) (bool, error)
	SetBan(ctx context.Context, ban *models.Ban, now time.Time) error
	LiftBan(ctx context.Context, user string) error
	GetBan(ctx context.Context, user string) (*models.Ban, error)
}

type BlackoutRepository interface {
	AddBlackout(ctx context.Context, iv interval.Interval, source string, now time.Time) (*models.BlackoutWindow, error)
	ListBlackouts(ctx context.Context, iv interval.Interval) ([]*models.BlackoutWindow, error)
}

// Repository is everything the services need from the store.
type Repository interface {
	BookingRepository
	AvailabilityRepository
	BanRepository
	BlackoutRepository
	PingContext(ctx context.Context) error
}

type EventPublisher interface {
	PublishJSON(eventType, key string, payload any) error
}
