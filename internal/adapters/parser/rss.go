package parser

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"

	"tg-news-bot/internal/domain"
	"tg-news-bot/internal/infra/metrics"
)

var imgExpr = regexp.MustCompile(`<img[^>]+src=["']([^"']+)["']`)

// RSS извлекает последнюю запись RSS/Atom ленты.
type RSS struct {
	feed *gofeed.Parser
	log  zerolog.Logger
}

// NewRSS создаёт парсер лент поверх переданного HTTP-клиента.
func NewRSS(client *http.Client, logger zerolog.Logger) *RSS {
	fp := gofeed.NewParser()
	fp.Client = defaultHTTPClient(client)
	fp.UserAgent = defaultUserAgent
	return &RSS{
		feed: fp,
		log:  logger.With().Str("component", "rss_parser").Logger(),
	}
}

var _ domain.SourceParser = (*RSS)(nil)

// Parse загружает ленту и возвращает самую свежую запись. Возвращает nil,
// если лента пуста или новее последнего обхода ничего не появилось.
func (p *RSS) Parse(ctx context.Context, src domain.Source) (*domain.NormalizedRecord, error) {
	start := time.Now()
	feed, err := p.feed.ParseURLWithContext(src.URL, ctx)
	metrics.ObserveNetworkRequest("rss_parser", "fetch_feed", src.URL, start, err)
	if err != nil {
		return nil, fmt.Errorf("загрузка ленты: %w", err)
	}
	if len(feed.Items) == 0 {
		return nil, nil
	}

	item := latestItem(feed.Items)
	publishedAt := itemPublishedAt(item)
	if !isFresh(src, publishedAt) {
		return nil, nil
	}

	record := &domain.NormalizedRecord{
		Title:       stripHTML(item.Title),
		Content:     stripHTML(itemContent(item)),
		SourceURL:   item.Link,
		ImageURL:    itemImage(item),
		Lang:        normalizeLang(feed.Language),
		PublishedAt: publishedAt,
	}
	return record, nil
}

// latestItem выбирает запись с максимальной датой публикации. Ленты без
// дат отдают записи в обратном хронологическом порядке, поэтому при
// равенстве остаётся первая.
func latestItem(items []*gofeed.Item) *gofeed.Item {
	latest := items[0]
	latestAt := itemPublishedAt(latest)
	for _, item := range items[1:] {
		if at := itemPublishedAt(item); at.After(latestAt) {
			latest = item
			latestAt = at
		}
	}
	return latest
}

func itemPublishedAt(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return item.PublishedParsed.UTC()
	}
	if item.UpdatedParsed != nil {
		return item.UpdatedParsed.UTC()
	}
	return time.Time{}
}

func itemContent(item *gofeed.Item) string {
	if item.Content != "" {
		return item.Content
	}
	return item.Description
}

// itemImage ищет картинку в enclosure, медиа ленты или в HTML описания.
func itemImage(item *gofeed.Item) string {
	for _, enc := range item.Enclosures {
		if enc.URL != "" {
			return enc.URL
		}
	}
	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}
	if m := imgExpr.FindStringSubmatch(item.Content + item.Description); m != nil {
		return m[1]
	}
	return ""
}
