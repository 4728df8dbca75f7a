package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"tg-news-bot/internal/domain"
)

type stubAdminRepo struct {
	stats       domain.SystemStats
	news        map[int64]*domain.NewsItem
	listResp    []domain.NewsItem
	sourceStats []domain.SourceStat
	roles       map[int64]domain.UserRole
}

func (r *stubAdminRepo) SystemStats() (domain.SystemStats, error) { return r.stats, nil }

func (r *stubAdminRepo) ListNews(status domain.ModerationStatus, limit, offset int) ([]domain.NewsItem, error) {
	return r.listResp, nil
}

func (r *stubAdminRepo) CreateNews(item domain.NewsItem) (domain.NewsItem, bool, error) {
	return item, true, nil
}

func (r *stubAdminRepo) GetNews(id int64) (domain.NewsItem, error) {
	item, ok := r.news[id]
	if !ok {
		return domain.NewsItem{}, errors.New("новость не найдена")
	}
	return *item, nil
}

func (r *stubAdminRepo) ListPendingIDs() ([]int64, error) { return nil, nil }

func (r *stubAdminRepo) SetModerationStatus(id int64, status domain.ModerationStatus) error {
	item, ok := r.news[id]
	if !ok {
		return errors.New("новость не найдена")
	}
	item.Moderation = status
	return nil
}

func (r *stubAdminRepo) SaveAIEnrichment(id int64, summary string, topics []string) error {
	return nil
}

func (r *stubAdminRepo) DeleteExpired(now time.Time) (int64, error) { return 0, nil }

func (r *stubAdminRepo) ListUnseenApproved(userID int64, limit int) ([]domain.NewsItem, error) {
	return nil, nil
}

func (r *stubAdminRepo) UpsertByTGID(profile domain.TelegramProfile) (domain.User, bool, error) {
	return domain.User{}, false, nil
}
func (r *stubAdminRepo) GetByTGID(tgUserID int64) (domain.User, error) { return domain.User{}, nil }
func (r *stubAdminRepo) ListDigestRecipients() ([]domain.User, error)  { return nil, nil }
func (r *stubAdminRepo) SetDigestEnabled(int64, bool) error            { return nil }
func (r *stubAdminRepo) TouchLastActive(int64) error                   { return nil }
func (r *stubAdminRepo) SetAdmin(int64, bool) error                    { return nil }

func (r *stubAdminRepo) UpdateRole(userID int64, role domain.UserRole) error {
	if _, ok := r.roles[userID]; !ok {
		return errors.New("пользователь не найден")
	}
	r.roles[userID] = role
	return nil
}

func (r *stubAdminRepo) IncrementPublished(int64) error { return nil }
func (r *stubAdminRepo) ListSourceStats() ([]domain.SourceStat, error) {
	return r.sourceStats, nil
}

const testKey = "secret-key"

func newTestServer(repo *stubAdminRepo) *httptest.Server {
	router := chi.NewRouter()
	api := NewAdminAPI(repo, repo, repo, repo, zerolog.Nop())
	api.Mount(router, testKey)
	return httptest.NewServer(router)
}

func doRequest(t *testing.T, method, url, key, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("не удалось собрать запрос: %v", err)
	}
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("не удалось выполнить запрос: %v", err)
	}
	return resp
}

func TestStatsRequiresAPIKey(t *testing.T) {
	srv := newTestServer(&stubAdminRepo{})
	defer srv.Close()

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/admin/stats", "", "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("ожидали 401, получили %d", resp.StatusCode)
	}
}

func TestStatsReturnsSummary(t *testing.T) {
	repo := &stubAdminRepo{stats: domain.SystemStats{Users: 10, News: 42, PendingNews: 3, Sources: 7, ViewsToday: 100}}
	srv := newTestServer(repo)
	defer srv.Close()

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/admin/stats", testKey, "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ожидали 200, получили %d", resp.StatusCode)
	}
	var payload statsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("не удалось разобрать ответ: %v", err)
	}
	if payload.Users != 10 || payload.News != 42 || payload.PendingNews != 3 {
		t.Fatalf("неожиданная сводка: %+v", payload)
	}
}

func TestListNewsRejectsUnknownStatus(t *testing.T) {
	srv := newTestServer(&stubAdminRepo{})
	defer srv.Close()

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/admin/news?status=whatever", testKey, "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("ожидали 400, получили %d", resp.StatusCode)
	}
}

func TestSetStatusUpdatesNews(t *testing.T) {
	repo := &stubAdminRepo{news: map[int64]*domain.NewsItem{
		7: {ID: 7, Moderation: domain.ModerationPending},
	}}
	srv := newTestServer(repo)
	defer srv.Close()

	resp := doRequest(t, http.MethodPut, srv.URL+"/api/admin/news/7/status", testKey, `{"status":"approved"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ожидали 200, получили %d", resp.StatusCode)
	}
	if repo.news[7].Moderation != domain.ModerationApproved {
		t.Fatalf("статус должен быть обновлён, получили %s", repo.news[7].Moderation)
	}
}

func TestSetStatusUnknownNews(t *testing.T) {
	srv := newTestServer(&stubAdminRepo{news: map[int64]*domain.NewsItem{}})
	defer srv.Close()

	resp := doRequest(t, http.MethodPut, srv.URL+"/api/admin/news/99/status", testKey, `{"status":"rejected"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("ожидали 404, получили %d", resp.StatusCode)
	}
}

func TestSourceStats(t *testing.T) {
	repo := &stubAdminRepo{sourceStats: []domain.SourceStat{
		{SourceID: 1, PublishedCount: 12},
		{SourceID: 2, PublishedCount: 3},
	}}
	srv := newTestServer(repo)
	defer srv.Close()

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/admin/sources/stats", testKey, "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ожидали 200, получили %d", resp.StatusCode)
	}
	var payload []sourceStatResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("не удалось разобрать ответ: %v", err)
	}
	if len(payload) != 2 || payload[0].PublishedCount != 12 {
		t.Fatalf("неожиданная статистика: %+v", payload)
	}
}

func TestSetRoleUpdatesUser(t *testing.T) {
	repo := &stubAdminRepo{roles: map[int64]domain.UserRole{5: domain.UserRoleFree}}
	srv := newTestServer(repo)
	defer srv.Close()

	resp := doRequest(t, http.MethodPut, srv.URL+"/api/admin/users/5/role", testKey, `{"role":"premium"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ожидали 200, получили %d", resp.StatusCode)
	}
	if repo.roles[5] != domain.UserRolePremium {
		t.Fatalf("роль должна быть обновлена, получили %s", repo.roles[5])
	}
}

func TestSetRoleRejectsUnknownRole(t *testing.T) {
	repo := &stubAdminRepo{roles: map[int64]domain.UserRole{5: domain.UserRoleFree}}
	srv := newTestServer(repo)
	defer srv.Close()

	resp := doRequest(t, http.MethodPut, srv.URL+"/api/admin/users/5/role", testKey, `{"role":"vip"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("ожидали 400, получили %d", resp.StatusCode)
	}
}
