package database

import (
	"context"
	"testing"
	"time"

	"seatreserve/internal/interval"
	"seatreserve/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateBooking_Scenarios(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SetSeatAvailability(ctx, 6, false))

	t.Run("A free seat is granted", func(t *testing.T) {
		b, err := db.CreateBooking(ctx, "userA", 5, hours(1, 2), testNow)
		require.NoError(t, err)
		assert.NotZero(t, b.ID)
		assert.Equal(t, int64(5), b.SeatID)
		assertSameInstant(t, hours(1, 2).Start, b.Start)
	})

	t.Run("B overlapping request conflicts", func(t *testing.T) {
		_, err := db.CreateBooking(ctx, "userB", 5, hours(1.5, 2.5), testNow)
		assert.ErrorIs(t, err, ErrConflict)
		assert.ErrorIs(t, err, ErrBookingOverlap)
	})

	t.Run("C disabled seat is rejected", func(t *testing.T) {
		_, err := db.CreateBooking(ctx, "userC", 6, hours(1, 2), testNow)
		assert.ErrorIs(t, err, ErrRejected)
		assert.ErrorIs(t, err, ErrSeatUnavailable)
	})

	t.Run("touching booking is accepted", func(t *testing.T) {
		_, err := db.CreateBooking(ctx, "userB", 5, hours(2, 3), testNow)
		assert.NoError(t, err)
	})

	t.Run("unknown seat", func(t *testing.T) {
		_, err := db.CreateBooking(ctx, "userD", 999, hours(1, 2), testNow)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestCreateBooking_Boundary(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	_, err := db.CreateBooking(ctx, "early", 1, interval.New(testNow.Add(-time.Microsecond), testNow.Add(time.Hour)), testNow)
	assert.ErrorIs(t, err, interval.ErrPastStart)
	assert.ErrorIs(t, err, interval.ErrInvalid)

	_, err = db.CreateBooking(ctx, "exact", 1, interval.New(testNow, testNow.Add(time.Hour)), testNow)
	assert.NoError(t, err)

	_, err = db.CreateBooking(ctx, "empty", 2, hours(1, 1), testNow)
	assert.ErrorIs(t, err, interval.ErrInvalidInterval)

	_, err = db.CreateBooking(ctx, "overnight", 2, hours(13, 15), testNow)
	assert.ErrorIs(t, err, interval.ErrSpansDays)
}

func TestCreateBooking_BlackoutConflict(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	_, err := db.AddBlackout(ctx, hours(4, 6), models.BlackoutSourceAdmin, testNow)
	require.NoError(t, err)

	_, err = db.CreateBooking(ctx, "alice", 1, hours(5, 7), testNow)
	assert.ErrorIs(t, err, ErrBlackoutOverlap)
	assert.ErrorIs(t, err, ErrConflict)

	_, err = db.CreateBooking(ctx, "alice", 1, hours(6, 7), testNow)
	assert.NoError(t, err, "booking that starts when the blackout ends is fine")
}

func TestCreateBooking_SameDayRule(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	_, err := db.CreateBooking(ctx, "alice", 1, hours(1, 2), testNow)
	require.NoError(t, err)

	_, err = db.CreateBooking(ctx, "alice", 2, hours(3, 4), testNow)
	assert.ErrorIs(t, err, ErrSameDayBooking)
	assert.ErrorIs(t, err, ErrConflict)

	// next day is a different calendar day
	_, err = db.CreateBooking(ctx, "alice", 2, hours(25, 26), testNow)
	assert.NoError(t, err)

	// once the first booking has ended the user may book again that day
	later := testNow.Add(2*time.Hour + time.Minute)
	_, err = db.CreateBooking(ctx, "alice", 3, hours(3, 4), later)
	assert.NoError(t, err)
}

func TestModifyBooking(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	_, err := db.CreateBooking(ctx, "userA", 5, hours(1, 2), testNow)
	require.NoError(t, err)

	t.Run("D booking on another seat does not block", func(t *testing.T) {
		_, err := db.CreateBooking(ctx, "userB", 6, hours(3.5, 4.5), testNow)
		require.NoError(t, err)

		b, err := db.ModifyBooking(ctx, "userA", hours(1, 2), hours(3, 4), testNow)
		require.NoError(t, err)
		assert.Equal(t, int64(5), b.SeatID)
		assertSameInstant(t, hours(3, 4).Start, b.Start)
	})

	t.Run("overlap with own old interval is allowed", func(t *testing.T) {
		_, err := db.ModifyBooking(ctx, "userA", hours(3, 4), hours(3.5, 4.5), testNow)
		require.NoError(t, err)
	})

	t.Run("overlap with another user on the same seat conflicts", func(t *testing.T) {
		_, err := db.CreateBooking(ctx, "userC", 5, hours(6, 7), testNow)
		require.NoError(t, err)

		_, err = db.ModifyBooking(ctx, "userA", hours(3.5, 4.5), hours(6.5, 7.5), testNow)
		assert.ErrorIs(t, err, ErrBookingOverlap)
	})

	t.Run("missing booking", func(t *testing.T) {
		_, err := db.ModifyBooking(ctx, "userA", hours(1, 2), hours(8, 9), testNow)
		assert.ErrorIs(t, err, ErrBookingNotFound)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("invalid new interval", func(t *testing.T) {
		_, err := db.ModifyBooking(ctx, "userA", hours(3.5, 4.5), hours(-1, 1), testNow)
		assert.ErrorIs(t, err, interval.ErrPastStart)
	})

	t.Run("seat disabled after booking", func(t *testing.T) {
		require.NoError(t, db.SetSeatAvailability(ctx, 5, false))
		defer func() { require.NoError(t, db.SetSeatAvailability(ctx, 5, true)) }()

		_, err := db.ModifyBooking(ctx, "userA", hours(3.5, 4.5), hours(4, 5), testNow)
		assert.ErrorIs(t, err, ErrSeatUnavailable)
	})
}

func TestBookingRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	iv := hours(1, 2)

	created, err := db.CreateBooking(ctx, "alice", 3, iv, testNow)
	require.NoError(t, err)

	active, err := db.ListActiveBookings(ctx, "alice", iv.Start)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, created.ID, active[0].ID)
	assertSameInstant(t, iv.Start, active[0].Start)
	assertSameInstant(t, iv.End, active[0].End)

	got, err := db.GetBooking(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.User)

	cancelled, err := db.CancelBooking(ctx, "alice", iv)
	require.NoError(t, err)
	assert.Equal(t, created.ID, cancelled.ID)

	active, err = db.ListActiveBookings(ctx, "alice", iv.Start)
	require.NoError(t, err)
	assert.Empty(t, active)

	_, err = db.CancelBooking(ctx, "alice", iv)
	assert.ErrorIs(t, err, ErrBookingNotFound)

	_, err = db.GetBooking(ctx, created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListActiveBookings_ExcludesFinished(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	_, err := db.CreateBooking(ctx, "alice", 1, hours(1, 2), testNow)
	require.NoError(t, err)
	_, err = db.CreateBooking(ctx, "alice", 1, hours(25, 26), testNow)
	require.NoError(t, err)

	active, err := db.ListActiveBookings(ctx, "alice", testNow.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, active, 1)
	assertSameInstant(t, hours(25, 26).Start, active[0].Start)
}

func TestSeatBookingsAndBookingsBetween(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	_, err := db.CreateBooking(ctx, "a", 2, hours(1, 2), testNow)
	require.NoError(t, err)
	_, err = db.CreateBooking(ctx, "b", 2, hours(3, 4), testNow)
	require.NoError(t, err)
	_, err = db.CreateBooking(ctx, "c", 4, hours(1, 2), testNow)
	require.NoError(t, err)

	day := interval.DayBounds(testNow, time.UTC)

	seat2, err := db.SeatBookings(ctx, 2, day)
	require.NoError(t, err)
	require.Len(t, seat2, 2)
	assert.True(t, seat2[0].Start.Before(seat2[1].Start))

	_, err = db.SeatBookings(ctx, 404, day)
	assert.ErrorIs(t, err, ErrSeatNotFound)

	all, err := db.BookingsBetween(ctx, day)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, int64(2), all[0].SeatID)
	assert.Equal(t, int64(4), all[2].SeatID)
}
