package users

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"tg-news-bot/internal/domain"
	"tg-news-bot/internal/usecase/ingest"
)

type stubStore struct {
	users       map[int64]*domain.User
	nextUserID  int64
	sourceCount int
	sources     []domain.Source
	news        map[string]domain.NewsItem
	feedback    []domain.Feedback
	touched     []int64
}

func newStubStore() *stubStore {
	return &stubStore{
		users: make(map[int64]*domain.User),
		news:  make(map[string]domain.NewsItem),
	}
}

func (s *stubStore) UpsertByTGID(profile domain.TelegramProfile) (domain.User, bool, error) {
	if user, ok := s.users[profile.TGUserID]; ok {
		return *user, false, nil
	}
	s.nextUserID++
	user := &domain.User{ID: s.nextUserID, TGUserID: profile.TGUserID, Username: profile.Username, Role: domain.UserRoleFree}
	s.users[profile.TGUserID] = user
	return *user, true, nil
}

func (s *stubStore) GetByTGID(tgUserID int64) (domain.User, error) {
	user, ok := s.users[tgUserID]
	if !ok {
		return domain.User{}, errors.New("пользователь не найден")
	}
	return *user, nil
}

func (s *stubStore) ListDigestRecipients() ([]domain.User, error) { return nil, nil }

func (s *stubStore) SetDigestEnabled(userID int64, enabled bool) error {
	for _, user := range s.users {
		if user.ID == userID {
			user.DigestEnabled = enabled
			return nil
		}
	}
	return errors.New("пользователь не найден")
}

func (s *stubStore) TouchLastActive(userID int64) error {
	s.touched = append(s.touched, userID)
	return nil
}

func (s *stubStore) UpdateRole(userID int64, role domain.UserRole) error { return nil }

func (s *stubStore) SetAdmin(userID int64, admin bool) error {
	for _, user := range s.users {
		if user.ID == userID {
			user.IsAdmin = admin
			return nil
		}
	}
	return errors.New("пользователь не найден")
}

func (s *stubStore) UpsertSource(meta domain.SourceMeta) (domain.Source, error) {
	for i, existing := range s.sources {
		if existing.URL != meta.URL {
			continue
		}
		existing.Name = meta.Name
		existing.Kind = meta.Kind
		existing.Status = domain.SourceStatusActive
		existing.LastParsedAt = nil
		s.sources[i] = existing
		return existing, nil
	}
	src := domain.Source{
		ID:          int64(len(s.sources) + 1),
		OwnerUserID: meta.OwnerUserID,
		Name:        meta.Name,
		URL:         meta.URL,
		Kind:        meta.Kind,
		Status:      domain.SourceStatusActive,
	}
	s.sources = append(s.sources, src)
	return src, nil
}

func (s *stubStore) ListActiveSources() ([]domain.Source, error) { return s.sources, nil }

func (s *stubStore) CountUserSources(ownerUserID int64) (int, error) { return s.sourceCount, nil }

func (s *stubStore) MarkSourceParsed(sourceID int64, at time.Time) error { return nil }

func (s *stubStore) SetSourceStatus(sourceID int64, status domain.SourceStatus) error { return nil }

func (s *stubStore) CreateNews(item domain.NewsItem) (domain.NewsItem, bool, error) {
	if existing, ok := s.news[item.SourceURL]; ok {
		return existing, false, nil
	}
	item.ID = int64(len(s.news) + 1)
	s.news[item.SourceURL] = item
	return item, true, nil
}

func (s *stubStore) GetNews(id int64) (domain.NewsItem, error) {
	return domain.NewsItem{}, errors.New("не используется")
}

func (s *stubStore) ListPendingIDs() ([]int64, error) { return nil, nil }

func (s *stubStore) SetModerationStatus(id int64, status domain.ModerationStatus) error { return nil }

func (s *stubStore) SaveAIEnrichment(id int64, summary string, topics []string) error { return nil }

func (s *stubStore) DeleteExpired(now time.Time) (int64, error) { return 0, nil }

func (s *stubStore) ListUnseenApproved(userID int64, limit int) ([]domain.NewsItem, error) {
	return nil, nil
}

func (s *stubStore) IncrementPublished(sourceID int64) error { return nil }

func (s *stubStore) ListSourceStats() ([]domain.SourceStat, error) { return nil, nil }

func (s *stubStore) SaveFeedback(fb domain.Feedback) (domain.Feedback, error) {
	fb.ID = int64(len(s.feedback) + 1)
	s.feedback = append(s.feedback, fb)
	return fb, nil
}

type fakeParser struct {
	rec *domain.NormalizedRecord
	err error
}

func (p *fakeParser) Parse(ctx context.Context, src domain.Source) (*domain.NormalizedRecord, error) {
	return p.rec, p.err
}

type fakeRegistry struct {
	parsers map[domain.SourceKind]domain.SourceParser
}

func (r *fakeRegistry) ParserFor(kind domain.SourceKind) (domain.SourceParser, bool) {
	p, ok := r.parsers[kind]
	return p, ok
}

type noopPublisher struct{}

func (noopPublisher) PublishNews(ctx context.Context, item domain.NewsItem) error { return nil }

func newFixture(store *stubStore, webParser domain.SourceParser, adminIDs ...int64) *Service {
	registry := &fakeRegistry{parsers: map[domain.SourceKind]domain.SourceParser{}}
	if webParser != nil {
		registry.parsers[domain.SourceKindWeb] = webParser
	}
	ingestSvc := ingest.NewService(store, store, store, registry, noopPublisher{}, zerolog.Nop())
	return NewService(store, store, store, ingestSvc, adminIDs, zerolog.Nop())
}

func TestRegisterGrantsAdmin(t *testing.T) {
	store := newStubStore()
	svc := newFixture(store, nil, 555)

	user, created, err := svc.Register(context.Background(), domain.TelegramProfile{TGUserID: 555, Username: "boss"})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !created {
		t.Errorf("пользователь должен быть создан")
	}
	if !user.IsAdmin {
		t.Errorf("пользователь из списка администраторов должен получить права")
	}

	other, _, err := svc.Register(context.Background(), domain.TelegramProfile{TGUserID: 777})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if other.IsAdmin {
		t.Errorf("обычный пользователь не должен получать права")
	}
}

func TestRegisterIsIdempotent(t *testing.T) {
	store := newStubStore()
	svc := newFixture(store, nil)

	first, created, _ := svc.Register(context.Background(), domain.TelegramProfile{TGUserID: 1})
	if !created {
		t.Fatalf("первый вызов должен создать пользователя")
	}
	second, created, _ := svc.Register(context.Background(), domain.TelegramProfile{TGUserID: 1})
	if created {
		t.Fatalf("повторный вызов не должен создавать пользователя")
	}
	if first.ID != second.ID {
		t.Fatalf("идентификатор должен сохраняться: %d != %d", first.ID, second.ID)
	}
}

func TestResolveTouchesActivity(t *testing.T) {
	store := newStubStore()
	svc := newFixture(store, nil)
	created, _, err := svc.Register(context.Background(), domain.TelegramProfile{TGUserID: 42})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	user, err := svc.Resolve(context.Background(), 42)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if user.ID != created.ID {
		t.Fatalf("ожидали пользователя %d, получили %d", created.ID, user.ID)
	}
	if len(store.touched) != 1 || store.touched[0] != created.ID {
		t.Errorf("активность должна быть отмечена, получили %v", store.touched)
	}

	if _, err := svc.Resolve(context.Background(), 99); err == nil {
		t.Fatalf("неизвестный пользователь должен возвращать ошибку")
	}
}

func TestSubmitSourcePendingModeration(t *testing.T) {
	store := newStubStore()
	parser := &fakeParser{rec: &domain.NormalizedRecord{
		Title:     "Статья",
		Content:   "Текст статьи",
		SourceURL: "https://example.org/news/1",
	}}
	svc := newFixture(store, parser)
	user := domain.User{ID: 5, TGUserID: 50, Role: domain.UserRoleFree}

	source, item, err := svc.SubmitSource(context.Background(), user, "https://example.org/blog")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if source.OwnerUserID == nil || *source.OwnerUserID != 5 {
		t.Errorf("источник должен принадлежать пользователю, получили %+v", source.OwnerUserID)
	}
	if item == nil {
		t.Fatalf("ожидали сохранённую новость")
	}
	if item.Moderation != domain.ModerationPending {
		t.Errorf("пользовательская запись должна ждать модерации, получили %s", item.Moderation)
	}
}

func TestSubmitSourceInvalidURL(t *testing.T) {
	svc := newFixture(newStubStore(), nil)

	_, _, err := svc.SubmitSource(context.Background(), domain.User{ID: 1}, "не ссылка")
	if !errors.Is(err, ErrURLInvalid) {
		t.Fatalf("ожидали ErrURLInvalid, получили %v", err)
	}
}

func TestSubmitSourceLimit(t *testing.T) {
	store := newStubStore()
	store.sourceCount = domain.PlanForRole(domain.UserRoleFree).SourceLimit
	svc := newFixture(store, nil)

	_, _, err := svc.SubmitSource(context.Background(), domain.User{ID: 1, Role: domain.UserRoleFree}, "https://example.org")
	if !errors.Is(err, ErrSourceLimit) {
		t.Fatalf("ожидали ErrSourceLimit, получили %v", err)
	}
}

func TestSubmitSourceReactivatesAndClearsParseMark(t *testing.T) {
	store := newStubStore()
	stale := time.Now().Add(-48 * time.Hour)
	store.sources = append(store.sources, domain.Source{
		ID:           1,
		URL:          "https://example.org/blog",
		Kind:         domain.SourceKindWeb,
		Status:       domain.SourceStatusInactive,
		LastParsedAt: &stale,
	})
	svc := newFixture(store, &fakeParser{rec: &domain.NormalizedRecord{
		Title:     "Статья",
		Content:   "Текст статьи",
		SourceURL: "https://example.org/news/2",
	}})

	source, item, err := svc.SubmitSource(context.Background(), domain.User{ID: 5}, "https://example.org/blog")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if source.Status != domain.SourceStatusActive {
		t.Errorf("повторная регистрация должна вернуть источник в строй, получили %s", source.Status)
	}
	if source.LastParsedAt != nil {
		t.Errorf("отметка обхода должна сброситься, получили %v", source.LastParsedAt)
	}
	if item == nil {
		t.Errorf("после сброса отметки публикация должна забираться")
	}
}

func TestSubmitSourceParserFailureKeepsSource(t *testing.T) {
	store := newStubStore()
	parser := &fakeParser{err: errors.New("сайт недоступен")}
	svc := newFixture(store, parser)

	source, item, err := svc.SubmitSource(context.Background(), domain.User{ID: 1}, "https://example.org")
	if err != nil {
		t.Fatalf("ошибка разбора не должна ломать добавление: %v", err)
	}
	if source.ID == 0 {
		t.Errorf("источник должен быть сохранён")
	}
	if item != nil {
		t.Errorf("новости быть не должно, получили %+v", item)
	}
}

func TestGuessKind(t *testing.T) {
	cases := []struct {
		url  string
		want domain.SourceKind
	}{
		{"https://example.org/rss.xml", domain.SourceKindRSS},
		{"https://example.org/feed", domain.SourceKindRSS},
		{"https://t.me/somechat", domain.SourceKindChat},
		{"https://vk.com/somepage", domain.SourceKindSocial},
		{"https://example.org/news", domain.SourceKindWeb},
	}
	for _, tc := range cases {
		if got := GuessKind(tc.url); got != tc.want {
			t.Errorf("GuessKind(%q) = %s, ожидали %s", tc.url, got, tc.want)
		}
	}
}

func TestSetDigestEnabled(t *testing.T) {
	store := newStubStore()
	svc := newFixture(store, nil)
	if _, _, err := svc.Register(context.Background(), domain.TelegramProfile{TGUserID: 1}); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	if err := svc.SetDigestEnabled(context.Background(), 1, true); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !store.users[1].DigestEnabled {
		t.Fatalf("дайджест должен быть включён")
	}
}

func TestSaveFeedback(t *testing.T) {
	store := newStubStore()
	svc := newFixture(store, nil)

	if err := svc.SaveFeedback(context.Background(), domain.User{ID: 1}, 100, "  отличный бот  "); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(store.feedback) != 1 || store.feedback[0].Message != "отличный бот" {
		t.Fatalf("отзыв должен быть сохранён без пробелов, получили %+v", store.feedback)
	}
	if err := svc.SaveFeedback(context.Background(), domain.User{ID: 1}, 100, "   "); err == nil {
		t.Fatalf("пустой отзыв должен отклоняться")
	}
}
