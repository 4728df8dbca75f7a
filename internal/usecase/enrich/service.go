package enrich

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"tg-news-bot/internal/domain"
	"tg-news-bot/internal/usecase/ailimit"
)

// ErrTooFrequent возвращается, когда пользователь запрашивает AI чаще окна.
var ErrTooFrequent = errors.New("слишком частые AI-запросы")

// Service выполняет AI-обогащение новостей по запросу пользователя.
type Service struct {
	news    domain.NewsRepo
	ai      domain.TextAI
	limiter *ailimit.Limiter
	log     zerolog.Logger
}

// NewService создаёт сервис обогащения.
func NewService(news domain.NewsRepo, ai domain.TextAI, limiter *ailimit.Limiter, logger zerolog.Logger) *Service {
	return &Service{
		news:    news,
		ai:      ai,
		limiter: limiter,
		log:     logger.With().Str("component", "enrich").Logger(),
	}
}

// SummarizeNews возвращает краткое содержание новости. Готовое резюме
// отдаётся из базы без обращения к модели и не тратит окно пользователя.
// При отказе лимитера возвращает остаток окна до следующей попытки.
func (s *Service) SummarizeNews(ctx context.Context, user domain.User, newsID int64) (string, time.Duration, error) {
	item, err := s.news.GetNews(newsID)
	if err != nil {
		return "", 0, fmt.Errorf("получение новости: %w", err)
	}
	if item.AISummary != "" {
		return item.AISummary, 0, nil
	}

	if ok, wait := s.limiter.Allow(user); !ok {
		return "", wait, ErrTooFrequent
	}

	summary, err := s.ai.SummarizeNews(ctx, item)
	if err != nil {
		return "", 0, fmt.Errorf("генерация резюме: %w", err)
	}

	topics, err := s.ai.ClassifyTopics(ctx, item)
	if err != nil {
		s.log.Warn().Err(err).Int64("news_id", newsID).Msg("темы определить не удалось")
		topics = nil
	}

	if err := s.news.SaveAIEnrichment(newsID, summary, topics); err != nil {
		s.log.Error().Err(err).Int64("news_id", newsID).Msg("не удалось сохранить AI-обогащение")
	}
	return summary, 0, nil
}
