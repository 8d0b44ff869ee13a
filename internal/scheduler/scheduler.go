// Package scheduler keeps the blackout calendar filled with closed hours a
// few days ahead.
package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"seatreserve/internal/clock"
	"seatreserve/internal/config"
	"seatreserve/internal/events"
	"seatreserve/internal/interval"
	"seatreserve/internal/metrics"
	"seatreserve/internal/models"

	"github.com/rs/zerolog"
)

// Rules are the opening hours; everything outside them is closed.
type Rules struct {
	WeekdayOpenHour  int
	WeekdayCloseHour int
	WeekendOpenHour  int
	WeekendCloseHour int
	HorizonDays      int
}

func DefaultRules() Rules {
	return Rules{
		WeekdayOpenHour:  models.DefaultWeekdayOpenHour,
		WeekdayCloseHour: models.DefaultWeekdayCloseHour,
		WeekendOpenHour:  models.DefaultWeekendOpenHour,
		WeekendCloseHour: models.DefaultWeekendCloseHour,
		HorizonDays:      models.DefaultBlackoutHorizonDays,
	}
}

func RulesFromConfig(cfg config.BlackoutConfig) Rules {
	return Rules{
		WeekdayOpenHour:  cfg.WeekdayOpenHour,
		WeekdayCloseHour: cfg.WeekdayCloseHour,
		WeekendOpenHour:  cfg.WeekendOpenHour,
		WeekendCloseHour: cfg.WeekendCloseHour,
		HorizonDays:      cfg.HorizonDays,
	}
}

func isWeekend(d time.Weekday) bool {
	return d == time.Saturday || d == time.Sunday
}

// ClosedWindows returns the closed intervals of the calendar day containing
// date in loc: from midnight to opening and from closing to the next midnight.
func ClosedWindows(date time.Time, loc *time.Location, rules Rules) []interval.Interval {
	open, closeAt := rules.WeekdayOpenHour, rules.WeekdayCloseHour
	if isWeekend(date.In(loc).Weekday()) {
		open, closeAt = rules.WeekendOpenHour, rules.WeekendCloseHour
	}

	var windows []interval.Interval
	if open > 0 {
		windows = append(windows, interval.OnDay(date, loc, 0, open))
	}
	if closeAt < 24 {
		windows = append(windows, interval.OnDay(date, loc, closeAt, 24))
	}
	return windows
}

// Store is the write path the scheduler needs.
type Store interface {
	InsertBlackoutIfFree(ctx context.Context, iv interval.Interval, source string, now time.Time) (*models.BlackoutWindow, error)
}

type Scheduler struct {
	store  Store
	rules  Rules
	loc    *time.Location
	clock  clock.Clock
	bus    *events.EventBus
	logger *zerolog.Logger
	retry  RetryPolicy

	// after is time.After, replaceable in tests.
	after func(d time.Duration) <-chan time.Time
}

func New(store Store, rules Rules, loc *time.Location, clk clock.Clock, bus *events.EventBus, logger *zerolog.Logger) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		store:  store,
		rules:  rules,
		loc:    loc,
		clock:  clk,
		bus:    bus,
		logger: logger,
		retry:  DefaultRetryPolicy(),
		after:  time.After,
	}
}

// WithRetry replaces the policy used after a failed tick.
func (s *Scheduler) WithRetry(policy RetryPolicy) *Scheduler {
	s.retry = policy
	return s
}

// RunFor inserts the closed windows of date that are not yet covered and
// returns how many were written. Running it again for the same date writes nothing.
func (s *Scheduler) RunFor(ctx context.Context, date time.Time) (int, error) {
	inserted := 0
	for _, iv := range ClosedWindows(date, s.loc, s.rules) {
		window, err := s.store.InsertBlackoutIfFree(ctx, iv, models.BlackoutSourceScheduler, s.clock.Now())
		if err != nil {
			return inserted, fmt.Errorf("insert closed window %s: %w", iv, err)
		}
		if window == nil {
			continue
		}
		inserted++

		payload := events.BlackoutEventPayload{
			BlackoutID: window.ID,
			Start:      window.Start,
			End:        window.End,
			Source:     window.Source,
		}
		if err := s.bus.PublishJSON(events.EventBlackoutInserted, strconv.FormatInt(window.ID, 10), payload); err != nil {
			s.logger.Error().Err(err).Int64("blackout_id", window.ID).Msg("publish event error")
		}
	}
	return inserted, nil
}

// Tick fills every day from today through today+HorizonDays. The first
// failed write ends the tick; the next tick retries.
func (s *Scheduler) Tick(ctx context.Context) (int, error) {
	today := interval.DayBounds(s.clock.Now(), s.loc).Start

	total := 0
	for d := 0; d <= s.rules.HorizonDays; d++ {
		date := today.AddDate(0, 0, d)
		n, err := s.RunFor(ctx, date)
		total += n
		if err != nil {
			metrics.AddBlackoutsInserted(total)
			metrics.IncSchedulerRun(false)
			return total, fmt.Errorf("blackout tick for %s: %w", date.Format("2006-01-02"), err)
		}
	}

	metrics.AddBlackoutsInserted(total)
	metrics.IncSchedulerRun(true)
	return total, nil
}

// Start runs a tick now and then after every local midnight until ctx is done.
// With a non-zero retry policy a failed tick is retried with backoff, never
// past the next midnight.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info().
		Int("horizon_days", s.rules.HorizonDays).
		Str("location", s.loc.String()).
		Msg("blackout scheduler started")

	attempt := 0
	for {
		err := s.runTick(ctx)
		wait := untilNextMidnight(s.clock.Now(), s.loc)
		if err != nil && attempt < s.retry.MaxRetries {
			attempt++
			if d := s.retry.NextDelay(attempt); d < wait {
				wait = d
			}
		} else {
			attempt = 0
		}

		select {
		case <-ctx.Done():
			s.logger.Info().Msg("blackout scheduler stopped")
			return
		case <-s.after(wait):
		}
	}
}

func (s *Scheduler) runTick(ctx context.Context) error {
	n, err := s.Tick(ctx)
	if err != nil {
		s.logger.Error().Err(err).Int("inserted", n).Msg("blackout tick failed")
		return err
	}
	s.logger.Info().Int("inserted", n).Msg("blackout tick done")
	return nil
}

func untilNextMidnight(now time.Time, loc *time.Location) time.Duration {
	next := interval.DayBounds(now, loc).End
	return next.Sub(now)
}
