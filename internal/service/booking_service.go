package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"seatreserve/internal/clock"
	"seatreserve/internal/domain"
	"seatreserve/internal/events"
	"seatreserve/internal/interval"
	"seatreserve/internal/metrics"
	"seatreserve/internal/models"
	"seatreserve/internal/repository"

	"github.com/rs/zerolog"
)

// RateLimit bounds booking attempts per user.
type RateLimit struct {
	Attempts int
	Window   time.Duration
}

type BookingService struct {
	repo      domain.BookingRepository
	eventBus  domain.EventPublisher
	limiter   repository.RateLimiter
	rateLimit RateLimit
	clock     clock.Clock
	logger    *zerolog.Logger
}

// NewBookingService wires the booking lifecycle. limiter may be nil to disable
// attempt limiting.
func NewBookingService(
	repo domain.BookingRepository,
	eventBus domain.EventPublisher,
	limiter repository.RateLimiter,
	rateLimit RateLimit,
	clk clock.Clock,
	logger *zerolog.Logger,
) *BookingService {
	return &BookingService{
		repo:      repo,
		eventBus:  eventBus,
		limiter:   limiter,
		rateLimit: rateLimit,
		clock:     clk,
		logger:    logger,
	}
}

func normalizeUser(user string) (string, error) {
	user = strings.TrimSpace(user)
	if user == "" {
		return "", ErrInvalidUser
	}
	return user, nil
}

func (s *BookingService) checkRateLimit(ctx context.Context, user string) error {
	if s.limiter == nil || s.rateLimit.Attempts <= 0 {
		return nil
	}
	allowed, err := s.limiter.CheckRateLimit(ctx, user, s.rateLimit.Attempts, s.rateLimit.Window)
	if err != nil {
		// лимитер недоступен: не блокируем бронирование
		s.logger.Warn().Err(err).Str("user", user).Msg("rate limit check failed")
		return nil
	}
	if !allowed {
		return ErrRateLimited
	}
	return nil
}

// Create books iv on seatID for user.
func (s *BookingService) Create(ctx context.Context, user string, seatID int64, iv interval.Interval) (booking *models.Booking, err error) {
	started := time.Now()
	defer func() { s.observe("create", user, err, started) }()

	if user, err = normalizeUser(user); err != nil {
		return nil, err
	}
	now := s.clock.Now()
	if err = interval.Validate(iv, now); err != nil {
		return nil, err
	}
	if err = s.checkRateLimit(ctx, user); err != nil {
		return nil, err
	}

	booking, err = s.repo.CreateBooking(ctx, user, seatID, iv, now)
	if err != nil {
		return nil, err
	}

	s.publishEvent(events.EventBookingCreated, booking, nil)
	return booking, nil
}

// Modify moves user's booking at current to next, keeping the seat.
func (s *BookingService) Modify(ctx context.Context, user string, current, next interval.Interval) (booking *models.Booking, err error) {
	started := time.Now()
	defer func() { s.observe("modify", user, err, started) }()

	if user, err = normalizeUser(user); err != nil {
		return nil, err
	}
	if err = interval.CheckRange(current); err != nil {
		return nil, err
	}
	now := s.clock.Now()
	if err = interval.Validate(next, now); err != nil {
		return nil, err
	}
	if err = s.checkRateLimit(ctx, user); err != nil {
		return nil, err
	}

	booking, err = s.repo.ModifyBooking(ctx, user, current, next, now)
	if err != nil {
		return nil, err
	}

	s.publishEvent(events.EventBookingModified, booking, &current)
	return booking, nil
}

func (s *BookingService) Cancel(ctx context.Context, user string, iv interval.Interval) (err error) {
	started := time.Now()
	defer func() { s.observe("cancel", user, err, started) }()

	if user, err = normalizeUser(user); err != nil {
		return err
	}
	if err = interval.CheckRange(iv); err != nil {
		return err
	}

	booking, err := s.repo.CancelBooking(ctx, user, iv)
	if err != nil {
		return err
	}

	s.publishEvent(events.EventBookingCancelled, booking, nil)
	return nil
}

// ListActive returns user's bookings ending after from; a zero from means now.
func (s *BookingService) ListActive(ctx context.Context, user string, from time.Time) ([]*models.Booking, error) {
	user, err := normalizeUser(user)
	if err != nil {
		return nil, err
	}
	if from.IsZero() {
		from = s.clock.Now()
	}
	if err := validInstant(from); err != nil {
		return nil, err
	}
	return s.repo.ListActiveBookings(ctx, user, from)
}

func (s *BookingService) observe(op, user string, err error, started time.Time) {
	result := outcome(err)
	metrics.ObserveBooking(op, result, time.Since(started))

	switch result {
	case metrics.OutcomeCommitted:
		s.logger.Info().Str("op", op).Str("user", user).Msg("booking committed")
	case metrics.OutcomeError:
		s.logger.Error().Err(err).Str("op", op).Str("user", user).Msg("booking store failure")
	default:
		s.logger.Warn().Err(err).Str("op", op).Str("user", user).Str("outcome", result).Msg("booking refused")
	}
}

func (s *BookingService) publishEvent(eventType string, booking *models.Booking, previous *interval.Interval) {
	if s.eventBus == nil || booking == nil {
		return
	}

	payload := events.BookingEventPayload{
		BookingID: booking.ID,
		User:      booking.User,
		SeatID:    booking.SeatID,
		Start:     booking.Start,
		End:       booking.End,
	}
	if previous != nil {
		payload.PreviousStart = &previous.Start
		payload.PreviousEnd = &previous.End
	}

	if err := s.eventBus.PublishJSON(eventType, seatKey(booking.SeatID), payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("booking_id", booking.ID).Msg("publish event error")
	}
}

func seatKey(seatID int64) string {
	return "seat-" + strconv.FormatInt(seatID, 10)
}
