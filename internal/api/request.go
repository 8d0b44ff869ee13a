package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"seatreserve/internal/interval"

	"github.com/go-playground/validator/v10"
)

var errBadRequest = errors.New("bad request")

// Timestamp accepts unix seconds or an RFC3339 string.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := parseTime(s)
		if err != nil {
			return err
		}
		t.Time = parsed
		return nil
	}

	secs, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("timestamp must be unix seconds or RFC3339: %s", data)
	}
	parsed, err := interval.FromUnix(secs)
	if err != nil {
		return fmt.Errorf("timestamp %d: %w", secs, err)
	}
	t.Time = parsed
	return nil
}

func parseTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return interval.FromUnix(secs)
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp must be unix seconds or RFC3339: %q", raw)
	}
	if !interval.InRange(t) {
		return time.Time{}, interval.ErrOutOfRange
	}
	return t, nil
}

// parseDate reads YYYY-MM-DD in loc, falling back to a timestamp.
func parseDate(raw string, loc *time.Location) (time.Time, error) {
	if d, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(raw), loc); err == nil {
		if !interval.InRange(d) {
			return time.Time{}, interval.ErrOutOfRange
		}
		return d, nil
	}
	return parseTime(raw)
}

// queryTime returns the zero time when name is absent.
func queryTime(q url.Values, name string) (time.Time, error) {
	raw := q.Get(name)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := parseTime(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s: %v", errBadRequest, name, err)
	}
	return t, nil
}

func queryDate(q url.Values, name string, loc *time.Location) (time.Time, error) {
	raw := q.Get(name)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := parseDate(raw, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s: %v", errBadRequest, name, err)
	}
	return t, nil
}

type intervalRequest struct {
	Start *Timestamp `json:"start" validate:"required"`
	End   *Timestamp `json:"end" validate:"required"`
}

func (r intervalRequest) Interval() interval.Interval {
	return interval.New(r.Start.Time, r.End.Time)
}

type createBookingRequest struct {
	SeatID int64 `json:"seat_id" validate:"required,gt=0"`
	intervalRequest
}

type modifyBookingRequest struct {
	Start    *Timestamp `json:"start" validate:"required"`
	End      *Timestamp `json:"end" validate:"required"`
	NewStart *Timestamp `json:"new_start" validate:"required"`
	NewEnd   *Timestamp `json:"new_end" validate:"required"`
}

type seatAvailabilityRequest struct {
	Available *bool `json:"available" validate:"required"`
}

type banRequest struct {
	intervalRequest
	Reason string `json:"reason" validate:"max=500"`
}

type requestDecoder struct {
	validate *validator.Validate
}

func newRequestDecoder() *requestDecoder {
	return &requestDecoder{validate: validator.New()}
}

// decode reads a JSON body into dst and validates it.
func (d *requestDecoder) decode(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err)
	}
	if err := d.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", errBadRequest, strings.Join(fields, "; "))
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}
