package users

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"tg-news-bot/internal/domain"
	"tg-news-bot/internal/usecase/ingest"
)

var (
	// ErrSourceLimit возвращается при превышении лимита источников тарифа.
	ErrSourceLimit = errors.New("превышен лимит источников")
	// ErrURLInvalid возвращается на некорректную ссылку источника.
	ErrURLInvalid = errors.New("некорректная ссылка")
)

var urlRegex = regexp.MustCompile(`(?i)^https?://[^\s/$.?#].[^\s]*$`)

// Service управляет пользователями и их источниками.
type Service struct {
	users    domain.UserRepo
	sources  domain.SourceRepo
	feedback domain.FeedbackRepo
	ingest   *ingest.Service
	adminIDs map[int64]struct{}
	log      zerolog.Logger
}

// NewService создаёт сервис пользователей. adminIDs перечисляет Telegram ID
// администраторов из конфигурации.
func NewService(users domain.UserRepo, sources domain.SourceRepo, feedback domain.FeedbackRepo, ingestSvc *ingest.Service, adminIDs []int64, logger zerolog.Logger) *Service {
	ids := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		ids[id] = struct{}{}
	}
	return &Service{
		users:    users,
		sources:  sources,
		feedback: feedback,
		ingest:   ingestSvc,
		adminIDs: ids,
		log:      logger.With().Str("component", "users").Logger(),
	}
}

// Register сохраняет пользователя по профилю Telegram и выдаёт права
// администратора по списку из конфигурации.
func (s *Service) Register(ctx context.Context, profile domain.TelegramProfile) (domain.User, bool, error) {
	user, created, err := s.users.UpsertByTGID(profile)
	if err != nil {
		return domain.User{}, false, fmt.Errorf("сохранение пользователя: %w", err)
	}
	if _, ok := s.adminIDs[profile.TGUserID]; ok && !user.IsAdmin {
		if err := s.users.SetAdmin(user.ID, true); err != nil {
			return domain.User{}, false, fmt.Errorf("выдача прав администратора: %w", err)
		}
		user.IsAdmin = true
	}
	return user, created, nil
}

// Resolve возвращает пользователя по Telegram ID и отмечает его активность.
func (s *Service) Resolve(ctx context.Context, tgUserID int64) (domain.User, error) {
	user, err := s.users.GetByTGID(tgUserID)
	if err != nil {
		return domain.User{}, fmt.Errorf("получение пользователя: %w", err)
	}
	if err := s.users.TouchLastActive(user.ID); err != nil {
		s.log.Error().Err(err).Int64("user_id", user.ID).Msg("не удалось отметить активность")
	}
	return user, nil
}

// SetDigestEnabled включает или выключает ежедневный дайджест пользователя.
func (s *Service) SetDigestEnabled(ctx context.Context, tgUserID int64, enabled bool) error {
	user, err := s.users.GetByTGID(tgUserID)
	if err != nil {
		return fmt.Errorf("получение пользователя: %w", err)
	}
	if err := s.users.SetDigestEnabled(user.ID, enabled); err != nil {
		return fmt.Errorf("переключение дайджеста: %w", err)
	}
	return nil
}

// SubmitSource регистрирует пользовательский источник и сразу пробует
// забрать из него свежую публикацию. Записи пользовательских источников
// уходят на модерацию.
func (s *Service) SubmitSource(ctx context.Context, user domain.User, rawURL string) (domain.Source, *domain.NewsItem, error) {
	rawURL = strings.TrimSpace(rawURL)
	if !urlRegex.MatchString(rawURL) {
		return domain.Source{}, nil, ErrURLInvalid
	}

	count, err := s.sources.CountUserSources(user.ID)
	if err != nil {
		return domain.Source{}, nil, fmt.Errorf("подсчёт источников: %w", err)
	}
	if limit := user.Plan().SourceLimit; limit > 0 && count >= limit {
		return domain.Source{}, nil, ErrSourceLimit
	}

	ownerID := user.ID
	meta := domain.SourceMeta{
		OwnerUserID: &ownerID,
		Name:        sourceName(rawURL),
		URL:         rawURL,
		Kind:        GuessKind(rawURL),
	}
	source, err := s.sources.UpsertSource(meta)
	if err != nil {
		return domain.Source{}, nil, fmt.Errorf("сохранение источника: %w", err)
	}

	item, err := s.ingest.IngestSource(ctx, source)
	if err != nil {
		s.log.Warn().Err(err).Str("url", rawURL).Msg("источник добавлен, но первую публикацию забрать не удалось")
		return source, nil, nil
	}
	return source, item, nil
}

// SaveFeedback сохраняет отзыв пользователя.
func (s *Service) SaveFeedback(ctx context.Context, user domain.User, chatID int64, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return errors.New("пустой отзыв")
	}
	fb := domain.Feedback{UserID: user.ID, ChatID: chatID, Message: text}
	if _, err := s.feedback.SaveFeedback(fb); err != nil {
		return fmt.Errorf("сохранение отзыва: %w", err)
	}
	return nil
}

// GuessKind определяет тип источника по его адресу.
func GuessKind(rawURL string) domain.SourceKind {
	lower := strings.ToLower(rawURL)
	switch {
	case strings.Contains(lower, "t.me/"):
		return domain.SourceKindChat
	case strings.Contains(lower, "vk.com/"), strings.Contains(lower, "x.com/"), strings.Contains(lower, "twitter.com/"):
		return domain.SourceKindSocial
	case strings.Contains(lower, "/rss"), strings.Contains(lower, "/feed"),
		strings.HasSuffix(lower, ".xml"), strings.HasSuffix(lower, ".rss"), strings.HasSuffix(lower, ".atom"):
		return domain.SourceKindRSS
	default:
		return domain.SourceKindWeb
	}
}

// sourceName строит короткое имя источника из хоста ссылки.
func sourceName(rawURL string) string {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(rawURL, "https://"), "http://")
	if i := strings.IndexByte(trimmed, '/'); i > 0 {
		trimmed = trimmed[:i]
	}
	return strings.TrimPrefix(trimmed, "www.")
}
