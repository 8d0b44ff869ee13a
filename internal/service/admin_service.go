package service

import (
	"context"
	"strconv"
	"time"

	"seatreserve/internal/clock"
	"seatreserve/internal/domain"
	"seatreserve/internal/events"
	"seatreserve/internal/interval"
	"seatreserve/internal/models"

	"github.com/rs/zerolog"
)

// AdminService holds the administrative writes: seat flags and manual blackout windows.
type AdminService struct {
	seats     domain.AvailabilityRepository
	blackouts domain.BlackoutRepository
	eventBus  domain.EventPublisher
	clock     clock.Clock
	logger    *zerolog.Logger
}

func NewAdminService(
	seats domain.AvailabilityRepository,
	blackouts domain.BlackoutRepository,
	eventBus domain.EventPublisher,
	clk clock.Clock,
	logger *zerolog.Logger,
) *AdminService {
	return &AdminService{seats: seats, blackouts: blackouts, eventBus: eventBus, clock: clk, logger: logger}
}

func (s *AdminService) SetSeatAvailability(ctx context.Context, seatID int64, available bool) error {
	if err := s.seats.SetSeatAvailability(ctx, seatID, available); err != nil {
		return err
	}

	s.logger.Info().Int64("seat_id", seatID).Bool("available", available).Msg("seat availability changed")
	s.publish(events.EventSeatAvailabilityChanged, seatKey(seatID), events.SeatEventPayload{SeatID: seatID, Available: available})
	return nil
}

// AddBlackout closes every seat during iv starting immediately.
func (s *AdminService) AddBlackout(ctx context.Context, iv interval.Interval) (*models.BlackoutWindow, error) {
	if err := validRange(iv); err != nil {
		return nil, err
	}

	window, err := s.blackouts.AddBlackout(ctx, iv, models.BlackoutSourceAdmin, s.clock.Now())
	if err != nil {
		return nil, err
	}

	s.logger.Info().Int64("blackout_id", window.ID).Time("start", window.Start).Time("end", window.End).Msg("blackout added")
	s.publish(events.EventBlackoutInserted, strconv.FormatInt(window.ID, 10), events.BlackoutEventPayload{
		BlackoutID: window.ID,
		Start:      window.Start,
		End:        window.End,
		Source:     window.Source,
	})
	return window, nil
}

// ListBlackouts returns windows overlapping [from, to). Zero bounds default to
// now and a week after from.
func (s *AdminService) ListBlackouts(ctx context.Context, from, to time.Time) ([]*models.BlackoutWindow, error) {
	if from.IsZero() {
		from = s.clock.Now()
	}
	if to.IsZero() {
		to = from.AddDate(0, 0, 7)
	}
	iv := interval.New(from, to)
	if err := validRange(iv); err != nil {
		return nil, err
	}
	return s.blackouts.ListBlackouts(ctx, iv)
}

func (s *AdminService) publish(eventType, key string, payload any) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.PublishJSON(eventType, key, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Msg("publish event error")
	}
}
