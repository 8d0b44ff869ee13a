package models

import (
	"time"

	"seatreserve/internal/interval"
)

type Booking struct {
	ID        int64     `json:"id"`
	User      string    `json:"user"`
	SeatID    int64     `json:"seat_id"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (b *Booking) Interval() interval.Interval {
	return interval.New(b.Start, b.End)
}

// BookingKey identifies a booking the way callers address it for modify and cancel.
type BookingKey struct {
	User  string
	Start time.Time
	End   time.Time
}

func (b *Booking) Key() BookingKey {
	return BookingKey{User: b.User, Start: b.Start, End: b.End}
}
