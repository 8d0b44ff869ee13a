package models

import (
	"time"

	"seatreserve/internal/interval"
)

type SeatStatus string

const (
	SeatAvailable   SeatStatus = "available"
	SeatBorrowed    SeatStatus = "borrowed"
	SeatUnavailable SeatStatus = "unavailable"
)

type Seat struct {
	ID        int64  `json:"id" yaml:"id"`
	Available bool   `json:"available" yaml:"available"`
	Info      string `json:"info,omitempty" yaml:"info"`
}

// SeatState is one row of the status table.
type SeatState struct {
	SeatID int64      `json:"seat_id"`
	Status SeatStatus `json:"status"`
}

type BlackoutWindow struct {
	ID        int64     `json:"id"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

func (w *BlackoutWindow) Interval() interval.Interval {
	return interval.New(w.Start, w.End)
}

type Ban struct {
	User      string    `json:"user"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Reason    string    `json:"reason,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ActiveAt reports whether at lies in [Start, End).
func (b *Ban) ActiveAt(at time.Time) bool {
	return !at.Before(b.Start) && at.Before(b.End)
}
