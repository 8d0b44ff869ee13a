package service

import (
	"context"
	"strings"
	"time"

	"seatreserve/internal/clock"
	"seatreserve/internal/domain"
	"seatreserve/internal/events"
	"seatreserve/internal/models"

	"github.com/rs/zerolog"
)

type BanService struct {
	repo     domain.BanRepository
	eventBus domain.EventPublisher
	clock    clock.Clock
	logger   *zerolog.Logger
}

func NewBanService(repo domain.BanRepository, eventBus domain.EventPublisher, clk clock.Clock, logger *zerolog.Logger) *BanService {
	return &BanService{repo: repo, eventBus: eventBus, clock: clk, logger: logger}
}

func (s *BanService) IsBanned(ctx context.Context, user string, at time.Time) (bool, error) {
	if at.IsZero() {
		at = s.clock.Now()
	}
	return s.repo.IsBanned(ctx, strings.TrimSpace(user), at)
}

// Authorize is the session gate: it fails with ErrForbidden while user is banned.
func (s *BanService) Authorize(ctx context.Context, user string) error {
	user, err := normalizeUser(user)
	if err != nil {
		return err
	}
	banned, err := s.repo.IsBanned(ctx, user, s.clock.Now())
	if err != nil {
		return err
	}
	if banned {
		s.logger.Warn().Str("user", user).Msg("banned user rejected")
		return ErrForbidden
	}
	return nil
}

func (s *BanService) SetBan(ctx context.Context, ban *models.Ban) error {
	user, err := normalizeUser(ban.User)
	if err != nil {
		return err
	}
	ban.User = user

	if err := s.repo.SetBan(ctx, ban, s.clock.Now()); err != nil {
		return err
	}

	s.logger.Info().Str("user", ban.User).Time("start", ban.Start).Time("end", ban.End).Msg("ban set")
	s.publish(events.EventBanSet, events.BanEventPayload{User: ban.User, Start: &ban.Start, End: &ban.End, Reason: ban.Reason})
	return nil
}

func (s *BanService) LiftBan(ctx context.Context, user string) error {
	user, err := normalizeUser(user)
	if err != nil {
		return err
	}
	if err := s.repo.LiftBan(ctx, user); err != nil {
		return err
	}

	s.logger.Info().Str("user", user).Msg("ban lifted")
	s.publish(events.EventBanLifted, events.BanEventPayload{User: user})
	return nil
}

func (s *BanService) GetBan(ctx context.Context, user string) (*models.Ban, error) {
	return s.repo.GetBan(ctx, strings.TrimSpace(user))
}

func (s *BanService) publish(eventType string, payload events.BanEventPayload) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.PublishJSON(eventType, "user-"+payload.User, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Str("user", payload.User).Msg("publish event error")
	}
}
