package digest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"tg-news-bot/internal/domain"
	"tg-news-bot/internal/infra/metrics"
)

// ErrNoFreshNews возвращается, когда для пользователя нет непросмотренных новостей.
var ErrNoFreshNews = errors.New("нет свежих новостей для дайджеста")

// Sender доставляет готовый дайджест пользователю.
type Sender interface {
	SendDigest(ctx context.Context, user domain.User, text string) error
}

// Service реализует построение и рассылку ежедневных дайджестов.
type Service struct {
	users      domain.UserRepo
	news       domain.NewsRepo
	views      domain.ViewRepo
	sender     Sender
	bizMetrics domain.BusinessMetricRepo
	maxItems   int
	log        zerolog.Logger
}

// NewService создаёт сервис дайджестов.
func NewService(users domain.UserRepo, news domain.NewsRepo, views domain.ViewRepo, sender Sender, bizMetrics domain.BusinessMetricRepo, maxItems int, logger zerolog.Logger) *Service {
	if maxItems <= 0 {
		maxItems = 5
	}
	return &Service{
		users:      users,
		news:       news,
		views:      views,
		sender:     sender,
		bizMetrics: bizMetrics,
		maxItems:   maxItems,
		log:        logger.With().Str("component", "digest").Logger(),
	}
}

// DispatchDaily рассылает дайджест всем подписанным пользователям.
// Сбой доставки одному пользователю не прерывает рассылку остальным.
func (s *Service) DispatchDaily(ctx context.Context) error {
	recipients, err := s.users.ListDigestRecipients()
	if err != nil {
		return fmt.Errorf("список получателей: %w", err)
	}

	for _, user := range recipients {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.DispatchTo(ctx, user); err != nil && !errors.Is(err, ErrNoFreshNews) {
			s.log.Error().Err(err).Int64("user_id", user.ID).Msg("не удалось доставить дайджест")
		}
	}
	return nil
}

// DispatchTo строит и отправляет дайджест одному пользователю.
// Просмотры фиксируются только после успешной отправки.
func (s *Service) DispatchTo(ctx context.Context, user domain.User) error {
	start := time.Now()
	items, err := s.news.ListUnseenApproved(user.ID, s.maxItems)
	if err != nil {
		return fmt.Errorf("выборка новостей: %w", err)
	}
	if len(items) == 0 {
		return ErrNoFreshNews
	}

	text := FormatDigest(items)
	metrics.DigestBuildSeconds.Observe(time.Since(start).Seconds())

	if err := s.sender.SendDigest(ctx, user, text); err != nil {
		return fmt.Errorf("отправка дайджеста: %w", err)
	}

	for _, item := range items {
		if err := s.views.MarkViewed(user.ID, item.ID); err != nil {
			s.log.Error().Err(err).Int64("user_id", user.ID).Int64("news_id", item.ID).Msg("не удалось отметить просмотр")
		}
	}

	if s.bizMetrics != nil {
		userID := user.ID
		_ = s.bizMetrics.RecordBusinessMetric(ctx, domain.BusinessMetric{
			Event:    domain.BusinessMetricEventDigestDelivered,
			UserID:   &userID,
			Metadata: map[string]any{"items_count": len(items)},
		})
	}
	return nil
}
