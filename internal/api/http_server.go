package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"seatreserve/internal/clock"
	"seatreserve/internal/config"
	"seatreserve/internal/export"
	"seatreserve/internal/service"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"
)

// Pinger reports store health.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Services are the engine operations the HTTP API adapts.
type Services struct {
	Bookings     *service.BookingService
	Availability *service.AvailabilityService
	Bans         *service.BanService
	Admin        *service.AdminService
	Export       *export.Exporter
	Store        Pinger
	Clock        clock.Clock
}

// HTTPServer exposes the booking engine over JSON/HTTP.
type HTTPServer struct {
	cfg        config.APIConfig
	svc        Services
	loc        *time.Location
	userHeader string
	auth       *HTTPAuth
	decoder    *requestDecoder
	logger     *zerolog.Logger
	server     *http.Server
}

func NewHTTPServer(cfg config.APIConfig, svc Services, loc *time.Location, logger *zerolog.Logger) *HTTPServer {
	if loc == nil {
		loc = time.Local
	}
	if svc.Clock == nil {
		svc.Clock = clock.System()
	}
	userHeader := strings.TrimSpace(cfg.HTTP.HeaderUser)
	if userHeader == "" {
		userHeader = "x-user"
	}

	s := &HTTPServer{
		cfg:        cfg,
		svc:        svc,
		loc:        loc,
		userHeader: userHeader,
		auth:       NewHTTPAuth(cfg),
		decoder:    newRequestDecoder(),
		logger:     logger,
	}

	handler := requestID(logger, loggingMiddleware(logger, s.auth.Wrap(s.routes())))

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	return s
}

func (s *HTTPServer) routes() *httprouter.Router {
	router := httprouter.New()
	router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	router.MethodNotAllowed = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	router.PanicHandler = func(w http.ResponseWriter, r *http.Request, v any) {
		loggerFrom(r, s.logger).Error().Interface("panic", v).Str("path", r.URL.Path).Msg("handler panic")
		writeError(w, http.StatusInternalServerError, "internal server error")
	}

	s.handle(router, http.MethodGet, "/healthz", "", s.handleHealth)

	s.handle(router, http.MethodGet, "/api/v1/seats", PermReadStatus, s.handleAllStatus)
	s.handle(router, http.MethodGet, "/api/v1/seats/:id/status", PermReadStatus, s.handleSeatStatus)
	s.handle(router, http.MethodGet, "/api/v1/seats/:id/bookings", PermReadStatus, s.handleSeatBookings)
	s.handle(router, http.MethodGet, "/api/v1/bans/:user", PermReadStatus, s.handleIsBanned)

	s.handle(router, http.MethodPost, "/api/v1/bookings", PermWriteBookings, s.withUser(s.handleCreateBooking))
	s.handle(router, http.MethodPatch, "/api/v1/bookings", PermWriteBookings, s.withUser(s.handleModifyBooking))
	s.handle(router, http.MethodDelete, "/api/v1/bookings", PermWriteBookings, s.withUser(s.handleCancelBooking))
	s.handle(router, http.MethodGet, "/api/v1/bookings", PermWriteBookings, s.withUser(s.handleListBookings))

	s.handle(router, http.MethodPut, "/api/v1/admin/seats/:id/availability", PermAdmin, s.handleSetSeatAvailability)
	s.handle(router, http.MethodPut, "/api/v1/admin/bans/:user", PermAdmin, s.handleSetBan)
	s.handle(router, http.MethodDelete, "/api/v1/admin/bans/:user", PermAdmin, s.handleLiftBan)
	s.handle(router, http.MethodPost, "/api/v1/admin/blackouts", PermAdmin, s.handleAddBlackout)
	s.handle(router, http.MethodGet, "/api/v1/admin/blackouts", PermAdmin, s.handleListBlackouts)
	s.handle(router, http.MethodGet, "/api/v1/admin/export", PermAdmin, s.handleExport)

	return router
}

func (s *HTTPServer) handle(router *httprouter.Router, method, path, perm string, h httprouter.Handle) {
	router.Handle(method, path, instrument(method+" "+path, s.auth.Require(perm, h)))
}

func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return errors.New("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
