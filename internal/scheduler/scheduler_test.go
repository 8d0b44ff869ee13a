package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"seatreserve/internal/clock"
	"seatreserve/internal/config"
	"seatreserve/internal/database"
	"seatreserve/internal/events"
	"seatreserve/internal/interval"
	"seatreserve/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// saturday
var saturday = time.Date(2025, 3, 8, 12, 0, 0, 0, time.UTC)

func setupDB(t *testing.T) *database.DB {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.Open(config.DatabaseConfig{Path: ":memory:"}, time.UTC, &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newScheduler(store Store, now time.Time) (*Scheduler, *clock.Fake, *events.EventBus) {
	logger := zerolog.Nop()
	clk := clock.NewFake(now)
	bus := events.NewEventBus()
	return New(store, DefaultRules(), time.UTC, clk, bus, &logger), clk, bus
}

func at(day time.Time, hour int) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, hour, 0, 0, 0, time.UTC)
}

func TestClosedWindows(t *testing.T) {
	rules := DefaultRules()

	t.Run("weekday", func(t *testing.T) {
		monday := time.Date(2025, 3, 3, 15, 0, 0, 0, time.UTC)
		windows := ClosedWindows(monday, time.UTC, rules)
		require.Len(t, windows, 2)
		assert.Equal(t, interval.New(at(monday, 0), at(monday, 8)), windows[0])
		assert.Equal(t, interval.New(at(monday, 22), at(monday, 0).AddDate(0, 0, 1)), windows[1])
	})

	t.Run("weekend", func(t *testing.T) {
		windows := ClosedWindows(saturday, time.UTC, rules)
		require.Len(t, windows, 2)
		assert.Equal(t, interval.New(at(saturday, 0), at(saturday, 9)), windows[0])
		assert.Equal(t, interval.New(at(saturday, 17), at(saturday, 0).AddDate(0, 0, 1)), windows[1])
	})

	t.Run("weekday depends on the location", func(t *testing.T) {
		loc := time.FixedZone("UTC+8", 8*3600)
		// friday 20:00 UTC is saturday 04:00 at UTC+8
		friday := time.Date(2025, 3, 7, 20, 0, 0, 0, time.UTC)
		windows := ClosedWindows(friday, loc, rules)
		require.Len(t, windows, 2)
		assert.Equal(t, 9*time.Hour, windows[0].Duration())
		assert.Equal(t, time.Saturday, windows[0].Start.In(loc).Weekday())
	})

	t.Run("round the clock opening has no windows", func(t *testing.T) {
		open := Rules{WeekdayOpenHour: 0, WeekdayCloseHour: 24, WeekendOpenHour: 0, WeekendCloseHour: 24}
		assert.Empty(t, ClosedWindows(saturday, time.UTC, open))
	})
}

func TestRunFor_SaturdayIsIdempotent(t *testing.T) {
	db := setupDB(t)
	s, _, bus := newScheduler(db, saturday.Add(-72*time.Hour))

	var published int
	bus.Subscribe(events.EventBlackoutInserted, func(*events.Event) error { published++; return nil })

	ctx := context.Background()
	n, err := s.RunFor(ctx, saturday)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, published)

	n, err = s.RunFor(ctx, saturday)
	require.NoError(t, err)
	assert.Zero(t, n)

	windows, err := db.ListBlackouts(ctx, interval.DayBounds(saturday, time.UTC))
	require.NoError(t, err)
	require.Len(t, windows, 2)
	assert.True(t, windows[0].Start.Equal(at(saturday, 0)))
	assert.True(t, windows[0].End.Equal(at(saturday, 9)))
	assert.True(t, windows[1].Start.Equal(at(saturday, 17)))
	assert.True(t, windows[1].End.Equal(at(saturday, 0).AddDate(0, 0, 1)))
	assert.Equal(t, models.BlackoutSourceScheduler, windows[0].Source)
}

func TestRunFor_SkipsWindowsAlreadyCovered(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	_, err := db.AddBlackout(ctx, interval.New(at(saturday, 6), at(saturday, 10)), models.BlackoutSourceAdmin, saturday)
	require.NoError(t, err)

	s, _, _ := newScheduler(db, saturday)
	n, err := s.RunFor(ctx, saturday)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "morning window overlaps the admin window")
}

func TestTick_FillsHorizon(t *testing.T) {
	db := setupDB(t)
	monday := time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC)
	s, clk, _ := newScheduler(db, monday)
	ctx := context.Background()

	n, err := s.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 8, n, "today plus three days, two windows each")

	n, err = s.Tick(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	clk.Advance(24 * time.Hour)
	n, err = s.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "one new day enters the horizon")
}

type failingStore struct {
	calls int
}

func (f *failingStore) InsertBlackoutIfFree(context.Context, interval.Interval, string, time.Time) (*models.BlackoutWindow, error) {
	f.calls++
	return nil, database.ErrStoreUnavailable
}

func TestTick_StopsOnFirstFailure(t *testing.T) {
	store := &failingStore{}
	s, _, _ := newScheduler(store, saturday)

	n, err := s.Tick(context.Background())
	assert.Zero(t, n)
	assert.True(t, errors.Is(err, database.ErrStoreUnavailable))
	assert.Equal(t, 1, store.calls)
}

func TestStart_TicksAtMidnightAndStops(t *testing.T) {
	db := setupDB(t)
	monday := time.Date(2025, 3, 3, 18, 30, 0, 0, time.UTC)
	s, clk, _ := newScheduler(db, monday)

	waits := make(chan time.Duration, 4)
	fire := make(chan time.Time)
	s.after = func(d time.Duration) <-chan time.Time {
		waits <- d
		return fire
	}

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.Start(ctx)
	}()

	assert.Equal(t, 5*time.Hour+30*time.Minute, <-waits)

	clk.Set(time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC))
	fire <- clk.Now()
	assert.Equal(t, 24*time.Hour, <-waits)

	cancel()
	wg.Wait()

	windows, err := db.ListBlackouts(context.Background(), interval.New(monday, monday.AddDate(0, 0, 10)))
	require.NoError(t, err)
	// the second tick added the day that entered the horizon
	assert.Len(t, windows, 9)
}

func TestUntilNextMidnight(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)
	now := time.Date(2025, 3, 3, 15, 0, 0, 0, time.UTC) // 23:00 local
	assert.Equal(t, time.Hour, untilNextMidnight(now, loc))
}
