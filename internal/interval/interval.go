// Package interval holds the pure half-open interval rules used by the
// booking engine. Nothing here touches storage or the wall clock.
package interval

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalid is the parent of every interval validation failure.
	ErrInvalid = errors.New("invalid interval")

	ErrInvalidInterval = fmt.Errorf("%w: end must be after start", ErrInvalid)
	ErrPastStart       = fmt.Errorf("%w: start is in the past", ErrInvalid)
	ErrSpansDays       = fmt.Errorf("%w: start and end must be on the same day", ErrInvalid)
	ErrOutOfRange      = fmt.Errorf("%w: time is outside years 1-9999", ErrInvalid)
)

// Instants are stored as unix microseconds; everything outside
// [MinTime, MaxTime) is rejected before it reaches storage.
var (
	MinTime = time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC)
	MaxTime = time.Date(10000, time.January, 1, 0, 0, 0, 0, time.UTC)
)

// Interval is the half-open range [Start, End).
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// New builds an interval without validating it.
func New(start, end time.Time) Interval {
	return Interval{Start: start, End: end}
}

func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// Contains reports whether t lies in [Start, End).
func (i Interval) Contains(t time.Time) bool {
	return !t.Before(i.Start) && t.Before(i.End)
}

func (i Interval) String() string {
	return fmt.Sprintf("[%s, %s)", i.Start.Format(time.RFC3339), i.End.Format(time.RFC3339))
}

// Overlaps reports whether a and b share at least one instant.
// Touching intervals (a.End == b.Start) do not overlap.
func Overlaps(a, b Interval) bool {
	start := a.Start
	if b.Start.After(start) {
		start = b.Start
	}
	end := a.End
	if b.End.Before(end) {
		end = b.End
	}
	return start.Before(end)
}

// SameDay reports whether a and b start on the same calendar date in loc.
func SameDay(a, b Interval, loc *time.Location) bool {
	ay, am, ad := a.Start.In(loc).Date()
	by, bm, bd := b.Start.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

// IsFuture reports whether i starts at or after now.
func IsFuture(i Interval, now time.Time) bool {
	return !i.Start.Before(now)
}

// InRange reports whether t lies in [MinTime, MaxTime).
func InRange(t time.Time) bool {
	return !t.Before(MinTime) && t.Before(MaxTime)
}

// FromUnix converts unix seconds, refusing values outside [MinTime, MaxTime).
func FromUnix(secs int64) (time.Time, error) {
	if secs < MinTime.Unix() || secs >= MaxTime.Unix() {
		return time.Time{}, ErrOutOfRange
	}
	return time.Unix(secs, 0).UTC(), nil
}

// CheckRange rejects intervals with an unrepresentable bound and empty or
// inverted intervals. It does not look at the wall clock.
func CheckRange(i Interval) error {
	if !InRange(i.Start) || !InRange(i.End) {
		return ErrOutOfRange
	}
	if !i.End.After(i.Start) {
		return ErrInvalidInterval
	}
	return nil
}

// Validate is CheckRange plus the rule that i must not start before now.
func Validate(i Interval, now time.Time) error {
	if err := CheckRange(i); err != nil {
		return err
	}
	if !IsFuture(i, now) {
		return ErrPastStart
	}
	return nil
}

// WithinSingleDay requires i to sit inside one calendar day of loc. An end
// exactly at the following midnight still belongs to the start's day.
func WithinSingleDay(i Interval, loc *time.Location) error {
	day := DayBounds(i.Start, loc)
	if i.End.After(day.End) {
		return ErrSpansDays
	}
	return nil
}

// DayBounds returns [00:00, next 00:00) of the calendar day containing t in loc.
func DayBounds(t time.Time, loc *time.Location) Interval {
	local := t.In(loc)
	y, m, d := local.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, loc)
	return Interval{Start: start, End: start.AddDate(0, 0, 1)}
}

// OnDay builds the interval [day+from, day+to) where day is the calendar date
// of date in loc. Hours may be 24 to mean the following midnight.
func OnDay(date time.Time, loc *time.Location, fromHour, toHour int) Interval {
	day := DayBounds(date, loc)
	return Interval{
		Start: atHour(day, fromHour),
		End:   atHour(day, toHour),
	}
}

func atHour(day Interval, hour int) time.Time {
	if hour >= 24 {
		return day.End
	}
	y, m, d := day.Start.Date()
	return time.Date(y, m, d, hour, 0, 0, 0, day.Start.Location())
}
