package parser

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"tg-news-bot/internal/domain"
	"tg-news-bot/internal/infra/metrics"
)

const webContentMaxRunes = 4000

// Web извлекает свежую публикацию со страницы сайта по метаразметке
// Open Graph и тексту статьи.
type Web struct {
	client *http.Client
	log    zerolog.Logger
}

// NewWeb создаёт парсер веб-страниц.
func NewWeb(client *http.Client, logger zerolog.Logger) *Web {
	return &Web{
		client: defaultHTTPClient(client),
		log:    logger.With().Str("component", "web_parser").Logger(),
	}
}

var _ domain.SourceParser = (*Web)(nil)

// Parse загружает страницу источника и собирает нормализованную запись.
func (p *Web) Parse(ctx context.Context, src domain.Source) (*domain.NormalizedRecord, error) {
	doc, err := p.fetchDocument(ctx, src.URL)
	if err != nil {
		return nil, err
	}

	title := metaContent(doc, "og:title")
	if title == "" {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	publishedAt := parsePublishedAt(metaContent(doc, "article:published_time"))
	if !publishedAt.IsZero() && !isFresh(src, publishedAt) {
		return nil, nil
	}

	pageURL := canonicalURL(doc, src.URL)
	record := &domain.NormalizedRecord{
		Title:       stripHTML(title),
		Content:     extractContent(doc),
		SourceURL:   pageURL,
		ImageURL:    resolveURL(src.URL, metaContent(doc, "og:image")),
		Lang:        pageLang(doc),
		PublishedAt: publishedAt,
	}
	return record, nil
}

func (p *Web) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("сборка запроса: %w", err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)

	start := time.Now()
	resp, err := p.client.Do(req)
	metrics.ObserveNetworkRequest("web_parser", "fetch_page", pageURL, start, err)
	if err != nil {
		return nil, fmt.Errorf("загрузка страницы: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("страница вернула %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("разбор HTML: %w", err)
	}
	return doc, nil
}

func metaContent(doc *goquery.Document, property string) string {
	sel := fmt.Sprintf(`meta[property=%q], meta[name=%q]`, property, property)
	content, _ := doc.Find(sel).First().Attr("content")
	return strings.TrimSpace(content)
}

// extractContent берёт og:description, а при его отсутствии абзацы
// из article, main или всего документа.
func extractContent(doc *goquery.Document) string {
	if desc := metaContent(doc, "og:description"); desc != "" {
		return clipRunes(stripHTML(desc), webContentMaxRunes)
	}

	for _, scope := range []string{"article p", "main p", "p"} {
		var parts []string
		doc.Find(scope).Each(func(_ int, s *goquery.Selection) {
			if text := strings.TrimSpace(s.Text()); text != "" {
				parts = append(parts, text)
			}
		})
		if len(parts) > 0 {
			return clipRunes(stripHTML(strings.Join(parts, "\n\n")), webContentMaxRunes)
		}
	}
	return ""
}

func canonicalURL(doc *goquery.Document, fallback string) string {
	if href, ok := doc.Find(`link[rel="canonical"]`).First().Attr("href"); ok {
		if resolved := resolveURL(fallback, href); resolved != "" {
			return resolved
		}
	}
	if ogURL := metaContent(doc, "og:url"); ogURL != "" {
		return ogURL
	}
	return fallback
}

func pageLang(doc *goquery.Document) string {
	lang, _ := doc.Find("html").Attr("lang")
	return normalizeLang(lang)
}

// resolveURL достраивает относительную ссылку до абсолютной.
func resolveURL(base, ref string) string {
	if ref == "" {
		return ""
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return ref
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return baseURL.ResolveReference(refURL).String()
}

func parsePublishedAt(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05Z0700", "2006-01-02"} {
		if at, err := time.Parse(layout, value); err == nil {
			return at.UTC()
		}
	}
	return time.Time{}
}

func clipRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return strings.TrimSpace(string(runes[:limit])) + "…"
}
