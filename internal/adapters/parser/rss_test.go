package parser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"tg-news-bot/internal/domain"
)

const feedXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Новости дня</title>
    <language>ru-RU</language>
    <item>
      <title>Старая новость</title>
      <link>https://example.org/old</link>
      <description>Вчерашний текст</description>
      <pubDate>Mon, 02 Jun 2025 10:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Свежая &lt;b&gt;новость&lt;/b&gt;</title>
      <link>https://example.org/fresh</link>
      <description>&lt;p&gt;Свежий   текст&lt;/p&gt;</description>
      <enclosure url="https://example.org/img.jpg" type="image/jpeg" length="1"/>
      <pubDate>Tue, 03 Jun 2025 10:00:00 GMT</pubDate>
    </item>
  </channel>
</rss>`

func newFeedServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(feedXML))
	}))
}

func TestRSSParsesLatestItem(t *testing.T) {
	srv := newFeedServer(t)
	defer srv.Close()

	p := NewRSS(srv.Client(), zerolog.Nop())
	record, err := p.Parse(context.Background(), domain.Source{URL: srv.URL, Kind: domain.SourceKindRSS})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if record == nil {
		t.Fatalf("ожидали запись")
	}
	if record.Title != "Свежая новость" {
		t.Errorf("неожиданный заголовок: %q", record.Title)
	}
	if record.Content != "Свежий текст" {
		t.Errorf("текст должен быть очищен от разметки: %q", record.Content)
	}
	if record.SourceURL != "https://example.org/fresh" {
		t.Errorf("ожидали ссылку свежей записи, получили %q", record.SourceURL)
	}
	if record.ImageURL != "https://example.org/img.jpg" {
		t.Errorf("картинка должна браться из enclosure, получили %q", record.ImageURL)
	}
	if record.Lang != "ru" {
		t.Errorf("язык должен быть приведён к короткой форме, получили %q", record.Lang)
	}
	want := time.Date(2025, 6, 3, 10, 0, 0, 0, time.UTC)
	if !record.PublishedAt.Equal(want) {
		t.Errorf("неожиданная дата публикации: %v", record.PublishedAt)
	}
}

func TestRSSSkipsSeenItems(t *testing.T) {
	srv := newFeedServer(t)
	defer srv.Close()

	lastParsed := time.Date(2025, 6, 4, 0, 0, 0, 0, time.UTC)
	p := NewRSS(srv.Client(), zerolog.Nop())
	record, err := p.Parse(context.Background(), domain.Source{
		URL:          srv.URL,
		Kind:         domain.SourceKindRSS,
		LastParsedAt: &lastParsed,
	})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if record != nil {
		t.Fatalf("старые записи не должны возвращаться, получили %+v", record)
	}
}

func TestRSSEmptyFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<?xml version="1.0"?><rss version="2.0"><channel><title>Пусто</title></channel></rss>`))
	}))
	defer srv.Close()

	p := NewRSS(srv.Client(), zerolog.Nop())
	record, err := p.Parse(context.Background(), domain.Source{URL: srv.URL, Kind: domain.SourceKindRSS})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if record != nil {
		t.Fatalf("пустая лента должна давать nil, получили %+v", record)
	}
}

func TestRSSFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewRSS(srv.Client(), zerolog.Nop())
	if _, err := p.Parse(context.Background(), domain.Source{URL: srv.URL, Kind: domain.SourceKindRSS}); err == nil {
		t.Fatalf("ожидали ошибку загрузки")
	}
}
