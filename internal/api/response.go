package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"seatreserve/internal/database"
	"seatreserve/internal/service"
)

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// statusFor maps engine errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case service.IsInvalid(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, database.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, database.ErrRejected):
		return http.StatusLocked
	case errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrRateLimited):
		return http.StatusTooManyRequests
	case database.IsCanceled(err), errors.Is(err, database.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *HTTPServer) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	message := err.Error()
	if database.IsCanceled(err) {
		// клиент ушёл или истёк дедлайн: хранилище исправно
		loggerFrom(r, s.logger).Warn().Err(err).Str("path", r.URL.Path).Msg("request canceled")
		writeError(w, code, "request canceled")
		return
	}
	if code >= http.StatusInternalServerError {
		loggerFrom(r, s.logger).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		if code == http.StatusInternalServerError {
			message = "internal server error"
		} else {
			message = "store unavailable, retry later"
		}
	}
	writeError(w, code, message)
}
