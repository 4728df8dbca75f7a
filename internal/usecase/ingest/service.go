package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"tg-news-bot/internal/domain"
	"tg-news-bot/internal/infra/metrics"
)

// ErrIncompleteRecord возвращается, когда у записи нет заголовка или URL.
var ErrIncompleteRecord = errors.New("запись не содержит обязательных полей")

const defaultParseTimeout = 30 * time.Second

// maxParseFailures — сколько обходов подряд источник может падать до отключения.
const maxParseFailures = 5

// Service реализует сбор, дедупликацию и сохранение новостей.
type Service struct {
	sources      domain.SourceRepo
	news         domain.NewsRepo
	stats        domain.StatsRepo
	parsers      domain.ParserRegistry
	publisher    domain.Publisher
	log          zerolog.Logger
	parseTimeout time.Duration
	now          func() time.Time
	failures     map[int64]int
}

// NewService создаёт сервис сбора.
func NewService(sources domain.SourceRepo, news domain.NewsRepo, stats domain.StatsRepo, parsers domain.ParserRegistry, publisher domain.Publisher, logger zerolog.Logger) *Service {
	return &Service{
		sources:      sources,
		news:         news,
		stats:        stats,
		parsers:      parsers,
		publisher:    publisher,
		log:          logger.With().Str("component", "ingest").Logger(),
		parseTimeout: defaultParseTimeout,
		now:          func() time.Time { return time.Now().UTC() },
		failures:     make(map[int64]int),
	}
}

// IngestRecord сохраняет нормализованную запись. Новость от источника без
// владельца сразу одобряется, пользовательская отправка ждёт модерации.
// Возвращает nil без ошибки, если новость с таким URL уже существует.
func (s *Service) IngestRecord(ctx context.Context, rec domain.NormalizedRecord, sourceID, ownerID *int64) (*domain.NewsItem, error) {
	if !rec.Valid() {
		return nil, ErrIncompleteRecord
	}

	published := rec.PublishedAt
	if published.IsZero() {
		published = s.now()
	}
	expiresAt := published.Add(domain.DefaultNewsTTL)

	moderation := domain.ModerationApproved
	if ownerID != nil {
		moderation = domain.ModerationPending
	}

	item := domain.NewsItem{
		SourceID:    sourceID,
		Title:       strings.TrimSpace(rec.Title),
		Content:     strings.TrimSpace(rec.Content),
		SourceURL:   strings.TrimSpace(rec.SourceURL),
		ImageURL:    rec.ImageURL,
		Lang:        rec.Lang,
		PublishedAt: published,
		ExpiresAt:   &expiresAt,
		Moderation:  moderation,
	}

	saved, created, err := s.news.CreateNews(item)
	if err != nil {
		return nil, fmt.Errorf("сохранение новости: %w", err)
	}
	if !created {
		s.log.Debug().Str("url", item.SourceURL).Msg("новость уже существует, пропускаем")
		return nil, nil
	}

	metrics.NewsIngestedTotal.WithLabelValues(string(saved.Moderation)).Inc()
	return &saved, nil
}

// IngestSource разбирает один источник и сохраняет его свежую публикацию.
// У источника с владельцем запись уходит на модерацию. Возвращает nil без
// ошибки, если свежих публикаций нет или новость уже известна.
func (s *Service) IngestSource(ctx context.Context, src domain.Source) (*domain.NewsItem, error) {
	if err := validateSource(src); err != nil {
		return nil, err
	}
	parser, ok := s.parsers.ParserFor(src.Kind)
	if !ok {
		return nil, fmt.Errorf("нет парсера для типа источника %q", src.Kind)
	}

	parseCtx, cancel := context.WithTimeout(ctx, s.parseTimeout)
	rec, err := parser.Parse(parseCtx, src)
	cancel()
	if err != nil {
		metrics.SourceParseErrors.WithLabelValues(string(src.Kind)).Inc()
		return nil, fmt.Errorf("разбор источника: %w", err)
	}
	if rec == nil {
		s.markParsed(src.ID)
		return nil, nil
	}

	item, err := s.IngestRecord(ctx, *rec, &src.ID, src.OwnerUserID)
	if err != nil {
		return nil, err
	}
	if item != nil {
		s.incrementStats(src.ID)
	}
	s.markParsed(src.ID)
	return item, nil
}

// RunCycle обходит активные источники. Ошибка одного источника не прерывает
// обход остальных.
func (s *Service) RunCycle(ctx context.Context) error {
	metrics.IngestCyclesTotal.Inc()

	sources, err := s.sources.ListActiveSources()
	if err != nil {
		return fmt.Errorf("список источников: %w", err)
	}
	if len(sources) == 0 {
		s.log.Info().Msg("активных источников нет, обход пропущен")
		return nil
	}

	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.processSource(ctx, src)
	}
	return nil
}

func (s *Service) processSource(ctx context.Context, src domain.Source) {
	if err := validateSource(src); err != nil {
		s.log.Warn().Err(err).Int64("source_id", src.ID).Msg("источник пропущен")
		return
	}

	parser, ok := s.parsers.ParserFor(src.Kind)
	if !ok {
		s.log.Warn().Str("kind", string(src.Kind)).Int64("source_id", src.ID).Msg("нет парсера для типа источника")
		return
	}

	parseCtx, cancel := context.WithTimeout(ctx, s.parseTimeout)
	rec, err := parser.Parse(parseCtx, src)
	cancel()
	if err != nil {
		metrics.SourceParseErrors.WithLabelValues(string(src.Kind)).Inc()
		s.log.Error().Err(err).Str("url", src.URL).Msg("ошибка разбора источника")
		s.recordFailure(src)
		return
	}
	delete(s.failures, src.ID)

	if rec == nil {
		s.log.Debug().Str("url", src.URL).Msg("свежих публикаций нет")
		s.markParsed(src.ID)
		return
	}

	item, err := s.IngestRecord(ctx, *rec, &src.ID, src.OwnerUserID)
	if err != nil {
		s.log.Error().Err(err).Str("url", src.URL).Msg("не удалось сохранить новость")
		return
	}

	if item != nil {
		s.incrementStats(src.ID)
		if item.Moderation == domain.ModerationApproved {
			if err := s.publisher.PublishNews(ctx, *item); err != nil {
				s.log.Error().Err(err).Int64("news_id", item.ID).Msg("не удалось поставить публикацию в очередь")
			}
		}
	}

	s.markParsed(src.ID)
}

func (s *Service) recordFailure(src domain.Source) {
	s.failures[src.ID]++
	if s.failures[src.ID] < maxParseFailures {
		return
	}
	delete(s.failures, src.ID)
	if err := s.sources.SetSourceStatus(src.ID, domain.SourceStatusInactive); err != nil {
		s.log.Error().Err(err).Int64("source_id", src.ID).Msg("не удалось отключить источник")
		return
	}
	s.log.Warn().Int64("source_id", src.ID).Str("url", src.URL).Msg("источник отключён после серии ошибок разбора")
}

func (s *Service) incrementStats(sourceID int64) {
	if err := s.stats.IncrementPublished(sourceID); err != nil {
		s.log.Error().Err(err).Int64("source_id", sourceID).Msg("не удалось обновить статистику источника")
	}
}

func (s *Service) markParsed(sourceID int64) {
	if err := s.sources.MarkSourceParsed(sourceID, s.now()); err != nil {
		s.log.Error().Err(err).Int64("source_id", sourceID).Msg("не удалось обновить время обхода")
	}
}

// SweepExpired удаляет устаревшие новости и возвращает их количество.
func (s *Service) SweepExpired(ctx context.Context) (int64, error) {
	deleted, err := s.news.DeleteExpired(s.now())
	if err != nil {
		return 0, fmt.Errorf("удаление устаревших новостей: %w", err)
	}
	if deleted > 0 {
		metrics.NewsExpiredTotal.Add(float64(deleted))
		s.log.Info().Int64("deleted", deleted).Msg("устаревшие новости удалены")
	}
	return deleted, nil
}

func validateSource(src domain.Source) error {
	if strings.TrimSpace(src.URL) == "" {
		return errors.New("пустой URL источника")
	}
	if strings.TrimSpace(src.Name) == "" {
		return errors.New("пустое имя источника")
	}
	known := false
	for _, kind := range domain.KnownSourceKinds {
		if src.Kind == kind {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("неизвестный тип источника %q", src.Kind)
	}
	return nil
}
