package database

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"seatreserve/internal/config"
	"seatreserve/internal/interval"
	"seatreserve/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupFileDB(t *testing.T, seats int) *DB {
	t.Helper()
	logger := zerolog.Nop()
	cfg := config.DatabaseConfig{
		Path:          filepath.Join(t.TempDir(), "concurrency.db"),
		BusyTimeoutMS: 10000,
		MaxOpenConns:  8,
	}
	db, err := Open(cfg, time.UTC, &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.ProvisionSeats(context.Background(), seats)
	require.NoError(t, err)
	return db
}

func TestConcurrentBooking_SameInterval(t *testing.T) {
	db := setupFileDB(t, 3)
	ctx := context.Background()

	const numGoroutines = 10
	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	results := make(chan error, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()
			// every candidate overlaps every other one
			iv := interval.New(
				testNow.Add(time.Hour+time.Duration(id)*time.Minute),
				testNow.Add(2*time.Hour+time.Duration(id)*time.Minute),
			)
			_, err := db.CreateBooking(ctx, fmt.Sprintf("user-%d", id), 1, iv, testNow)
			results <- err
		}(i)
	}

	wg.Wait()
	close(results)

	successCount := 0
	for err := range results {
		if err == nil {
			successCount++
			continue
		}
		assert.True(t, errors.Is(err, ErrConflict), "unexpected error: %v", err)
	}

	assert.Equal(t, 1, successCount, "only one overlapping booking may commit")

	bookings, err := db.SeatBookings(ctx, 1, interval.DayBounds(testNow, time.UTC))
	require.NoError(t, err)
	assert.Len(t, bookings, 1)
}

func TestConcurrentBooking_CommittedSetNeverOverlaps(t *testing.T) {
	db := setupFileDB(t, 3)
	ctx := context.Background()

	const numGoroutines = 24
	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()
			// staggered 40 minute slots every 15 minutes, spread over two seats
			start := testNow.Add(time.Hour + time.Duration(id%12)*15*time.Minute)
			iv := interval.New(start, start.Add(40*time.Minute))
			_, _ = db.CreateBooking(ctx, fmt.Sprintf("user-%d", id), int64(1+id%2), iv, testNow)
		}(i)
	}
	wg.Wait()

	day := interval.DayBounds(testNow, time.UTC)
	for _, seatID := range []int64{1, 2} {
		bookings, err := db.SeatBookings(ctx, seatID, day)
		require.NoError(t, err)
		require.NotEmpty(t, bookings)

		for i := 0; i < len(bookings); i++ {
			for j := i + 1; j < len(bookings); j++ {
				assert.False(t, interval.Overlaps(bookings[i].Interval(), bookings[j].Interval()),
					"seat %d: %s overlaps %s", seatID, bookings[i].Interval(), bookings[j].Interval())
			}
		}
	}
}

func assertNoOverlap(t *testing.T, bookings []*models.Booking) {
	t.Helper()
	for i := 0; i < len(bookings); i++ {
		for j := i + 1; j < len(bookings); j++ {
			if bookings[i].SeatID != bookings[j].SeatID {
				continue
			}
			assert.False(t, interval.Overlaps(bookings[i].Interval(), bookings[j].Interval()),
				"seat %d: %s overlaps %s", bookings[i].SeatID, bookings[i].Interval(), bookings[j].Interval())
		}
	}
}

func TestConcurrentModify_RacesCreateIntoSameSlot(t *testing.T) {
	ctx := context.Background()

	for round := 0; round < 5; round++ {
		db := setupFileDB(t, 1)

		original := interval.New(testNow.Add(time.Hour), testNow.Add(2*time.Hour))
		_, err := db.CreateBooking(ctx, "mover", 1, original, testNow)
		require.NoError(t, err)

		target := interval.New(testNow.Add(4*time.Hour), testNow.Add(5*time.Hour))

		const creators = 8
		var wg sync.WaitGroup
		wg.Add(creators + 1)
		results := make(chan error, creators+1)

		go func() {
			defer wg.Done()
			_, err := db.ModifyBooking(ctx, "mover", original, target, testNow)
			results <- err
		}()
		for i := 0; i < creators; i++ {
			go func(id int) {
				defer wg.Done()
				_, err := db.CreateBooking(ctx, fmt.Sprintf("user-%d", id), 1, target, testNow)
				results <- err
			}(i)
		}
		wg.Wait()
		close(results)

		successCount := 0
		for err := range results {
			if err == nil {
				successCount++
				continue
			}
			assert.ErrorIs(t, err, ErrBookingOverlap)
		}
		assert.Equal(t, 1, successCount, "round %d: exactly one writer may take the slot", round)

		bookings, err := db.BookingsBetween(ctx, interval.DayBounds(testNow, time.UTC))
		require.NoError(t, err)
		assertNoOverlap(t, bookings)

		inTarget := 0
		for _, b := range bookings {
			if interval.Overlaps(b.Interval(), target) {
				inTarget++
			}
		}
		assert.Equal(t, 1, inTarget)
	}
}

func TestConcurrentAvailability_BlocksLaterCreates(t *testing.T) {
	db := setupFileDB(t, 1)
	ctx := context.Background()

	const creators = 12
	var (
		wg      sync.WaitGroup
		flipped atomic.Bool
	)
	wg.Add(creators + 1)

	type attempt struct {
		afterFlip bool
		err       error
	}
	results := make(chan attempt, creators)

	go func() {
		defer wg.Done()
		time.Sleep(2 * time.Millisecond)
		if err := db.SetSeatAvailability(ctx, 1, false); err == nil {
			flipped.Store(true)
		}
	}()

	for i := 0; i < creators; i++ {
		go func(id int) {
			defer wg.Done()
			time.Sleep(time.Duration(id) * 500 * time.Microsecond)
			// one hour slots from 11:00, disjoint from each other
			start := testNow.Add(time.Duration(id+1) * time.Hour)
			after := flipped.Load()
			_, err := db.CreateBooking(ctx, fmt.Sprintf("user-%d", id), 1, interval.New(start, start.Add(time.Hour)), testNow)
			results <- attempt{afterFlip: after, err: err}
		}(i)
	}
	wg.Wait()
	close(results)
	require.True(t, flipped.Load())

	committed := 0
	for res := range results {
		if res.err == nil {
			committed++
			assert.False(t, res.afterFlip, "booking committed after the seat was disabled")
			continue
		}
		assert.ErrorIs(t, res.err, ErrSeatUnavailable)
		assert.ErrorIs(t, res.err, ErrRejected)
	}

	bookings, err := db.SeatBookings(ctx, 1, interval.DayBounds(testNow, time.UTC))
	require.NoError(t, err)
	assert.Len(t, bookings, committed)

	_, err = db.CreateBooking(ctx, "late", 1, interval.New(testNow.Add(13*time.Hour), testNow.Add(13*time.Hour+30*time.Minute)), testNow)
	assert.ErrorIs(t, err, ErrSeatUnavailable)
}

func TestConcurrentSameDay_OneUserManySeats(t *testing.T) {
	const seats = 6
	db := setupFileDB(t, seats)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(seats)
	results := make(chan error, seats)

	for i := 0; i < seats; i++ {
		go func(seatID int64) {
			defer wg.Done()
			start := testNow.Add(time.Duration(seatID) * time.Hour)
			_, err := db.CreateBooking(ctx, "solo", seatID, interval.New(start, start.Add(30*time.Minute)), testNow)
			results <- err
		}(int64(i + 1))
	}
	wg.Wait()
	close(results)

	successCount := 0
	for err := range results {
		if err == nil {
			successCount++
			continue
		}
		assert.ErrorIs(t, err, ErrSameDayBooking)
		assert.ErrorIs(t, err, ErrConflict)
	}
	assert.Equal(t, 1, successCount)

	active, err := db.ListActiveBookings(ctx, "solo", testNow)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}
