package export

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"seatreserve/internal/interval"
	"seatreserve/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type fakeSource struct {
	seats    []*models.Seat
	bookings []*models.Booking
	err      error
	asked    interval.Interval
}

func (s *fakeSource) ListSeats(context.Context) ([]*models.Seat, error) {
	return s.seats, s.err
}

func (s *fakeSource) BookingsBetween(_ context.Context, iv interval.Interval) ([]*models.Booking, error) {
	s.asked = iv
	return s.bookings, s.err
}

func at(day, hour, minute int) time.Time {
	return time.Date(2025, 3, day, hour, minute, 0, 0, time.UTC)
}

func newSource() *fakeSource {
	return &fakeSource{
		seats: []*models.Seat{
			{ID: 1, Available: true},
			{ID: 2, Available: false},
			{ID: 3, Available: true},
		},
		bookings: []*models.Booking{
			{ID: 2, User: "bob", SeatID: 1, Start: at(3, 14, 0), End: at(3, 15, 30)},
			{ID: 1, User: "alice", SeatID: 1, Start: at(3, 9, 0), End: at(3, 10, 0)},
			{ID: 3, User: "carol", SeatID: 3, Start: at(4, 12, 0), End: at(4, 13, 0)},
			{ID: 4, User: "ghost", SeatID: 42, Start: at(4, 12, 0), End: at(4, 13, 0)},
		},
	}
}

func TestBuild(t *testing.T) {
	logger := zerolog.Nop()
	src := newSource()
	e := New(src, t.TempDir(), time.UTC, &logger)

	f, err := e.Build(context.Background(), at(3, 0, 0), at(4, 0, 0))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, at(3, 0, 0), src.asked.Start)
	assert.Equal(t, at(5, 0, 0), src.asked.End)

	cell := func(name string) string {
		v, err := f.GetCellValue(sheetName, name)
		require.NoError(t, err)
		return v
	}

	assert.Equal(t, "Period: 03.03.2025 - 04.03.2025", cell("A1"))
	assert.Equal(t, "03.03 Mon", cell("B2"))
	assert.Equal(t, "04.03 Tue", cell("C2"))
	assert.Equal(t, "", cell("D2"))

	assert.Equal(t, "Seat 1", cell("A3"))
	assert.Equal(t, "Seat 2 (closed)", cell("A4"))
	assert.Equal(t, "Seat 3", cell("A5"))

	assert.Equal(t, "09:00-10:00 alice\n14:00-15:30 bob", cell("B3"))
	assert.Equal(t, "", cell("C3"))
	assert.Equal(t, "12:00-13:00 carol", cell("C5"))

	assert.Equal(t, []string{sheetName}, f.GetSheetList())
}

func TestBuild_Errors(t *testing.T) {
	logger := zerolog.Nop()
	ctx := context.Background()

	e := New(newSource(), t.TempDir(), time.UTC, &logger)
	_, err := e.Build(ctx, at(4, 0, 0), at(2, 0, 0))
	assert.ErrorIs(t, err, interval.ErrInvalidInterval)

	_, err = e.Build(ctx, at(1, 0, 0), at(1, 0, 0).AddDate(0, 3, 0))
	assert.ErrorIs(t, err, ErrRangeTooLong)
	assert.ErrorIs(t, err, interval.ErrInvalid)

	broken := &fakeSource{err: errors.New("disk gone")}
	_, err = New(broken, t.TempDir(), time.UTC, &logger).Build(ctx, at(3, 0, 0), at(3, 0, 0))
	assert.ErrorContains(t, err, "disk gone")
}

func TestSaveAndWrite(t *testing.T) {
	logger := zerolog.Nop()
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "exports")
	e := New(newSource(), dir, time.UTC, &logger)

	path, err := e.Save(ctx, at(3, 0, 0), at(4, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "bookings_2025-03-03_to_2025-03-04.xlsx"), path)
	_, err = os.Stat(path)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, e.Write(ctx, &buf, at(3, 0, 0), at(3, 0, 0)))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	v, err := f.GetCellValue(sheetName, "B3")
	require.NoError(t, err)
	assert.Equal(t, "09:00-10:00 alice\n14:00-15:30 bob", v)
}
