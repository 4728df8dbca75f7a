package enrich

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"tg-news-bot/internal/domain"
	"tg-news-bot/internal/usecase/ailimit"
)

type stubNewsRepo struct {
	items     map[int64]*domain.NewsItem
	saveCalls int
	saveErr   error
}

func newStubNewsRepo(items ...domain.NewsItem) *stubNewsRepo {
	r := &stubNewsRepo{items: make(map[int64]*domain.NewsItem)}
	for i := range items {
		item := items[i]
		r.items[item.ID] = &item
	}
	return r
}

func (r *stubNewsRepo) CreateNews(item domain.NewsItem) (domain.NewsItem, bool, error) {
	return item, true, nil
}

func (r *stubNewsRepo) GetNews(id int64) (domain.NewsItem, error) {
	item, ok := r.items[id]
	if !ok {
		return domain.NewsItem{}, errors.New("новость не найдена")
	}
	return *item, nil
}

func (r *stubNewsRepo) ListPendingIDs() ([]int64, error) { return nil, nil }

func (r *stubNewsRepo) SetModerationStatus(id int64, status domain.ModerationStatus) error {
	return nil
}

func (r *stubNewsRepo) SaveAIEnrichment(id int64, summary string, topics []string) error {
	r.saveCalls++
	if r.saveErr != nil {
		return r.saveErr
	}
	if item, ok := r.items[id]; ok {
		item.AISummary = summary
		item.AITopics = topics
	}
	return nil
}

func (r *stubNewsRepo) DeleteExpired(now time.Time) (int64, error) { return 0, nil }

func (r *stubNewsRepo) ListUnseenApproved(userID int64, limit int) ([]domain.NewsItem, error) {
	return nil, nil
}

type fakeAI struct {
	summary string
	topics  []string
	err     error
	calls   int
}

func (a *fakeAI) SummarizeNews(ctx context.Context, item domain.NewsItem) (string, error) {
	a.calls++
	if a.err != nil {
		return "", a.err
	}
	return a.summary, nil
}

func (a *fakeAI) ClassifyTopics(ctx context.Context, item domain.NewsItem) ([]string, error) {
	return a.topics, nil
}

func TestSummarizeNewsEnrichesAndPersists(t *testing.T) {
	repo := newStubNewsRepo(domain.NewsItem{ID: 1, Title: "Новость", Content: "Текст"})
	ai := &fakeAI{summary: "Краткое резюме", topics: []string{"технологии"}}
	svc := NewService(repo, ai, ailimit.New(0), zerolog.Nop())

	summary, wait, err := svc.SummarizeNews(context.Background(), domain.User{ID: 1}, 1)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if summary != "Краткое резюме" || wait != 0 {
		t.Fatalf("неожиданный результат: %q, %v", summary, wait)
	}
	if repo.items[1].AISummary != "Краткое резюме" {
		t.Errorf("резюме должно быть сохранено")
	}
	if len(repo.items[1].AITopics) != 1 {
		t.Errorf("темы должны быть сохранены, получили %v", repo.items[1].AITopics)
	}
}

func TestSummarizeNewsReturnsCached(t *testing.T) {
	repo := newStubNewsRepo(domain.NewsItem{ID: 1, AISummary: "Уже готово"})
	ai := &fakeAI{summary: "Новое"}
	svc := NewService(repo, ai, ailimit.New(0), zerolog.Nop())

	summary, _, err := svc.SummarizeNews(context.Background(), domain.User{ID: 1}, 1)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if summary != "Уже готово" {
		t.Fatalf("ожидали кешированное резюме, получили %q", summary)
	}
	if ai.calls != 0 {
		t.Fatalf("модель не должна вызываться для готового резюме")
	}
}

func TestSummarizeNewsRateLimited(t *testing.T) {
	repo := newStubNewsRepo(
		domain.NewsItem{ID: 1, Title: "Первая", Content: "Текст"},
		domain.NewsItem{ID: 2, Title: "Вторая", Content: "Текст"},
	)
	ai := &fakeAI{summary: "Резюме"}
	svc := NewService(repo, ai, ailimit.New(time.Minute), zerolog.Nop())
	user := domain.User{ID: 1}

	if _, _, err := svc.SummarizeNews(context.Background(), user, 1); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	_, wait, err := svc.SummarizeNews(context.Background(), user, 2)
	if !errors.Is(err, ErrTooFrequent) {
		t.Fatalf("ожидали ErrTooFrequent, получили %v", err)
	}
	if wait <= 0 {
		t.Fatalf("остаток окна должен быть положительным, получили %v", wait)
	}
}

func TestSummarizeNewsPremiumSkipsLimit(t *testing.T) {
	repo := newStubNewsRepo(
		domain.NewsItem{ID: 1, Title: "Первая", Content: "Текст"},
		domain.NewsItem{ID: 2, Title: "Вторая", Content: "Текст"},
	)
	ai := &fakeAI{summary: "Резюме"}
	svc := NewService(repo, ai, ailimit.New(time.Minute), zerolog.Nop())
	user := domain.User{ID: 1, Role: domain.UserRolePremium}

	for _, id := range []int64{1, 2} {
		if _, _, err := svc.SummarizeNews(context.Background(), user, id); err != nil {
			t.Fatalf("премиальный пользователь не должен ждать окно: %v", err)
		}
	}
}

func TestSummarizeNewsAIError(t *testing.T) {
	repo := newStubNewsRepo(domain.NewsItem{ID: 1, Title: "Новость", Content: "Текст"})
	ai := &fakeAI{err: errors.New("квота исчерпана")}
	svc := NewService(repo, ai, ailimit.New(0), zerolog.Nop())

	if _, _, err := svc.SummarizeNews(context.Background(), domain.User{ID: 1}, 1); err == nil {
		t.Fatalf("ожидали ошибку модели")
	}
	if repo.saveCalls != 0 {
		t.Fatalf("обогащение не должно сохраняться при ошибке модели")
	}
}
