package database

import (
	"context"
	"testing"

	"seatreserve/internal/interval"
	"seatreserve/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertBlackoutIfFree(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	w, err := db.InsertBlackoutIfFree(ctx, hours(12, 14), models.BlackoutSourceScheduler, testNow)
	require.NoError(t, err)
	require.NotNil(t, w)
	assert.NotZero(t, w.ID)

	w, err = db.InsertBlackoutIfFree(ctx, hours(12, 14), models.BlackoutSourceScheduler, testNow)
	require.NoError(t, err)
	assert.Nil(t, w, "same window is not duplicated")

	w, err = db.InsertBlackoutIfFree(ctx, hours(13, 15), models.BlackoutSourceScheduler, testNow)
	require.NoError(t, err)
	assert.Nil(t, w, "partially covered window is skipped")

	w, err = db.InsertBlackoutIfFree(ctx, hours(14, 15), models.BlackoutSourceScheduler, testNow)
	require.NoError(t, err)
	assert.NotNil(t, w, "touching window is new")

	_, err = db.InsertBlackoutIfFree(ctx, hours(2, 1), models.BlackoutSourceScheduler, testNow)
	assert.ErrorIs(t, err, interval.ErrInvalidInterval)

	windows, err := db.ListBlackouts(ctx, hours(0, 24))
	require.NoError(t, err)
	require.Len(t, windows, 2)
	assert.Equal(t, models.BlackoutSourceScheduler, windows[0].Source)
	assertSameInstant(t, hours(12, 14).Start, windows[0].Start)
}

func TestAddBlackout(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	w, err := db.AddBlackout(ctx, hours(1, 2), models.BlackoutSourceAdmin, testNow)
	require.NoError(t, err)
	assert.NotZero(t, w.ID)

	// admin windows are not deduplicated
	_, err = db.AddBlackout(ctx, hours(1, 2), models.BlackoutSourceAdmin, testNow)
	require.NoError(t, err)

	_, err = db.AddBlackout(ctx, hours(2, 2), models.BlackoutSourceAdmin, testNow)
	assert.ErrorIs(t, err, interval.ErrInvalidInterval)

	windows, err := db.ListBlackouts(ctx, hours(3, 4))
	require.NoError(t, err)
	assert.Empty(t, windows)
}
