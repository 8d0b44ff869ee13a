package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"seatreserve/internal/interval"
	"seatreserve/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const (
	sheetName = "Bookings"
	maxDays   = 62
)

var ErrRangeTooLong = fmt.Errorf("%w: export range exceeds %d days", interval.ErrInvalid, maxDays)

// Source is what the export reads from the store.
type Source interface {
	ListSeats(ctx context.Context) ([]*models.Seat, error)
	BookingsBetween(ctx context.Context, iv interval.Interval) ([]*models.Booking, error)
}

// Exporter renders bookings as a seat x day grid.
type Exporter struct {
	src    Source
	dir    string
	loc    *time.Location
	logger *zerolog.Logger
}

func New(src Source, dir string, loc *time.Location, logger *zerolog.Logger) *Exporter {
	if loc == nil {
		loc = time.Local
	}
	return &Exporter{src: src, dir: dir, loc: loc, logger: logger}
}

// Range returns the local days [from, to] as one interval.
func (e *Exporter) Range(from, to time.Time) (interval.Interval, error) {
	iv := interval.New(interval.DayBounds(from, e.loc).Start, interval.DayBounds(to, e.loc).End)
	if !iv.End.After(iv.Start) {
		return iv, interval.ErrInvalidInterval
	}
	if iv.Duration() > maxDays*24*time.Hour+time.Hour {
		return iv, ErrRangeTooLong
	}
	return iv, nil
}

// Build assembles the workbook. The caller closes it.
func (e *Exporter) Build(ctx context.Context, from, to time.Time) (*excelize.File, error) {
	iv, err := e.Range(from, to)
	if err != nil {
		return nil, err
	}

	seats, err := e.src.ListSeats(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting seats: %w", err)
	}
	bookings, err := e.src.BookingsBetween(ctx, iv)
	if err != nil {
		return nil, fmt.Errorf("error getting bookings: %w", err)
	}

	f := excelize.NewFile()
	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	lastDay := iv.End.Add(-time.Nanosecond).In(e.loc)
	_ = f.SetCellValue(sheetName, "A1", fmt.Sprintf("Period: %s - %s",
		iv.Start.In(e.loc).Format("02.01.2006"), lastDay.Format("02.01.2006")))

	columns := e.writeDateHeaders(f, iv)
	rows := e.writeSeatHeaders(f, seats)
	e.writeBookings(f, bookings, columns, rows)

	_ = f.SetColWidth(sheetName, "A", "A", 18)
	if len(columns) > 0 {
		lastCol, _ := excelize.ColumnNumberToName(len(columns) + 1)
		_ = f.SetColWidth(sheetName, "B", lastCol, 22)
		_ = f.MergeCell(sheetName, "A1", lastCol+"1")
	}

	title, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheetName, "A1", "A1", title)

	return f, nil
}

// Write streams the workbook for [from, to] to w.
func (e *Exporter) Write(ctx context.Context, w io.Writer, from, to time.Time) error {
	f, err := e.Build(ctx, from, to)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

// Save writes the workbook under the export directory and returns its path.
func (e *Exporter) Save(ctx context.Context, from, to time.Time) (string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	f, err := e.Build(ctx, from, to)
	if err != nil {
		return "", err
	}
	defer f.Close()

	fileName := FileName(from.In(e.loc), to.In(e.loc))
	filePath := filepath.Join(e.dir, fileName)
	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}

	e.logger.Info().Str("file_path", filePath).Msg("excel export created")
	return filePath, nil
}

func FileName(from, to time.Time) string {
	return fmt.Sprintf("bookings_%s_to_%s.xlsx", from.Format("2006-01-02"), to.Format("2006-01-02"))
}

func (e *Exporter) writeDateHeaders(f *excelize.File, iv interval.Interval) map[string]int {
	style, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})

	columns := make(map[string]int)
	col := 2
	for day := iv.Start.In(e.loc); day.Before(iv.End); day = day.AddDate(0, 0, 1) {
		cell, _ := excelize.CoordinatesToCellName(col, 2)
		_ = f.SetCellValue(sheetName, cell, day.Format("02.01 Mon"))
		_ = f.SetCellStyle(sheetName, cell, cell, style)
		columns[day.Format("2006-01-02")] = col
		col++
	}
	return columns
}

func (e *Exporter) writeSeatHeaders(f *excelize.File, seats []*models.Seat) map[int64]int {
	open, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E2EFDA"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	closed, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#FFC7CE"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})

	rows := make(map[int64]int, len(seats))
	for i, seat := range seats {
		row := i + 3
		cell, _ := excelize.CoordinatesToCellName(1, row)
		label, style := fmt.Sprintf("Seat %d", seat.ID), open
		if !seat.Available {
			label, style = label+" (closed)", closed
		}
		_ = f.SetCellValue(sheetName, cell, label)
		_ = f.SetCellStyle(sheetName, cell, cell, style)
		rows[seat.ID] = row
	}
	return rows
}

func (e *Exporter) writeBookings(f *excelize.File, bookings []*models.Booking, columns map[string]int, rows map[int64]int) {
	sort.Slice(bookings, func(i, j int) bool {
		return bookings[i].Start.Before(bookings[j].Start)
	})

	cells := make(map[string][]string)
	for _, b := range bookings {
		start := b.Start.In(e.loc)
		col, ok := columns[start.Format("2006-01-02")]
		if !ok {
			continue
		}
		row, ok := rows[b.SeatID]
		if !ok {
			e.logger.Warn().Int64("seat_id", b.SeatID).Int64("booking_id", b.ID).Msg("booking on unknown seat skipped")
			continue
		}
		cell, _ := excelize.CoordinatesToCellName(col, row)
		cells[cell] = append(cells[cell], fmt.Sprintf("%s-%s %s",
			start.Format("15:04"), b.End.In(e.loc).Format("15:04"), b.User))
	}

	booked, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#FFEB9C"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "top", WrapText: true},
	})
	for cell, lines := range cells {
		_ = f.SetCellValue(sheetName, cell, strings.Join(lines, "\n"))
		_ = f.SetCellStyle(sheetName, cell, cell, booked)
	}
}
