package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"seatreserve/internal/export"
	"seatreserve/internal/interval"
	"seatreserve/internal/models"

	"github.com/julienschmidt/httprouter"
)

type userHandle func(w http.ResponseWriter, r *http.Request, ps httprouter.Params, user string)

// withUser resolves the caller from the user header and runs the ban gate.
func (s *HTTPServer) withUser(next userHandle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		user := strings.TrimSpace(r.Header.Get(s.userHeader))
		if user == "" {
			writeError(w, http.StatusUnauthorized, "missing user header")
			return
		}
		if err := s.svc.Bans.Authorize(r.Context(), user); err != nil {
			s.writeFailure(w, r, err)
			return
		}
		next(w, r, ps, user)
	}
}

func seatID(ps httprouter.Params) (int64, error) {
	id, err := strconv.ParseInt(ps.ByName("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid seat id %q", errBadRequest, ps.ByName("id"))
	}
	return id, nil
}

// queryRange reads either ?start=&end= or ?at=. ok is false for a point query.
func queryRange(r *http.Request) (at time.Time, iv interval.Interval, ok bool, err error) {
	q := r.URL.Query()
	if q.Has("start") || q.Has("end") {
		start, err := queryTime(q, "start")
		if err != nil {
			return at, iv, false, err
		}
		end, err := queryTime(q, "end")
		if err != nil {
			return at, iv, false, err
		}
		if start.IsZero() || end.IsZero() {
			return at, iv, false, fmt.Errorf("%w: start and end go together", errBadRequest)
		}
		return at, interval.New(start, end), true, nil
	}
	at, err = queryTime(q, "at")
	return at, iv, false, err
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if s.svc.Store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.svc.Store.PingContext(ctx); err != nil {
			loggerFrom(r, s.logger).Error().Err(err).Msg("health check failed")
			writeError(w, http.StatusServiceUnavailable, "store unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleAllStatus(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	at, iv, isRange, err := queryRange(r)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}

	var states []models.SeatState
	if isRange {
		states, err = s.svc.Availability.AllStatusOver(r.Context(), iv)
	} else {
		states, err = s.svc.Availability.AllStatusAt(r.Context(), at)
	}
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"seats": states})
}

func (s *HTTPServer) handleSeatStatus(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := seatID(ps)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	at, iv, isRange, err := queryRange(r)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}

	var status models.SeatStatus
	if isRange {
		status, err = s.svc.Availability.StatusOver(r.Context(), id, iv)
	} else {
		status, err = s.svc.Availability.StatusAt(r.Context(), id, at)
	}
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.SeatState{SeatID: id, Status: status})
}

func (s *HTTPServer) handleSeatBookings(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := seatID(ps)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	day, err := queryDate(r.URL.Query(), "date", s.loc)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}

	bookings, err := s.svc.Availability.SeatBookings(r.Context(), id, day)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"seat_id": id, "bookings": bookings})
}

func (s *HTTPServer) handleIsBanned(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	user := ps.ByName("user")
	banned, err := s.svc.Bans.IsBanned(r.Context(), user, time.Time{})
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user, "banned": banned})
}

func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request, _ httprouter.Params, user string) {
	var req createBookingRequest
	if err := s.decoder.decode(r, &req); err != nil {
		s.writeFailure(w, r, err)
		return
	}

	booking, err := s.svc.Bookings.Create(r.Context(), user, req.SeatID, req.Interval())
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

func (s *HTTPServer) handleModifyBooking(w http.ResponseWriter, r *http.Request, _ httprouter.Params, user string) {
	var req modifyBookingRequest
	if err := s.decoder.decode(r, &req); err != nil {
		s.writeFailure(w, r, err)
		return
	}

	current := interval.New(req.Start.Time, req.End.Time)
	next := interval.New(req.NewStart.Time, req.NewEnd.Time)
	booking, err := s.svc.Bookings.Modify(r.Context(), user, current, next)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleCancelBooking(w http.ResponseWriter, r *http.Request, _ httprouter.Params, user string) {
	_, iv, isRange, err := queryRange(r)
	if err == nil && !isRange {
		err = fmt.Errorf("%w: start and end are required", errBadRequest)
	}
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}

	if err := s.svc.Bookings.Cancel(r.Context(), user, iv); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleListBookings(w http.ResponseWriter, r *http.Request, _ httprouter.Params, user string) {
	from, err := queryTime(r.URL.Query(), "from")
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}

	bookings, err := s.svc.Bookings.ListActive(r.Context(), user, from)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user, "bookings": bookings})
}

func (s *HTTPServer) handleSetSeatAvailability(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := seatID(ps)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	var req seatAvailabilityRequest
	if err := s.decoder.decode(r, &req); err != nil {
		s.writeFailure(w, r, err)
		return
	}

	if err := s.svc.Admin.SetSeatAvailability(r.Context(), id, *req.Available); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleSetBan(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req banRequest
	if err := s.decoder.decode(r, &req); err != nil {
		s.writeFailure(w, r, err)
		return
	}

	ban := &models.Ban{
		User:   ps.ByName("user"),
		Start:  req.Start.Time,
		End:    req.End.Time,
		Reason: req.Reason,
	}
	if err := s.svc.Bans.SetBan(r.Context(), ban); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ban)
}

func (s *HTTPServer) handleLiftBan(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := s.svc.Bans.LiftBan(r.Context(), ps.ByName("user")); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleAddBlackout(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req intervalRequest
	if err := s.decoder.decode(r, &req); err != nil {
		s.writeFailure(w, r, err)
		return
	}

	window, err := s.svc.Admin.AddBlackout(r.Context(), req.Interval())
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, window)
}

func (s *HTTPServer) handleListBlackouts(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	q := r.URL.Query()
	from, err := queryTime(q, "from")
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	to, err := queryTime(q, "to")
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}

	windows, err := s.svc.Admin.ListBlackouts(r.Context(), from, to)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"blackouts": windows})
}

// handleExport streams an .xlsx for the days [from, to]; both default to the
// current week starting today.
func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if s.svc.Export == nil {
		writeError(w, http.StatusNotFound, "export is disabled")
		return
	}

	q := r.URL.Query()
	from, err := queryDate(q, "from", s.loc)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	to, err := queryDate(q, "to", s.loc)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	if from.IsZero() {
		from = s.svc.Clock.Now().In(s.loc)
	}
	if to.IsZero() {
		to = from.AddDate(0, 0, 6)
	}

	var buf bytes.Buffer
	if err := s.svc.Export.Write(r.Context(), &buf, from, to); err != nil {
		s.writeFailure(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(from.In(s.loc), to.In(s.loc))))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
