package parser

import (
	"html"
	"net/http"
	"regexp"
	"strings"
	"time"

	"tg-news-bot/internal/domain"
)

const defaultUserAgent = "tg-news-bot/1.0"

// Registry хранит парсеры по типу источника.
type Registry struct {
	parsers map[domain.SourceKind]domain.SourceParser
}

// NewRegistry создаёт пустой реестр парсеров.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[domain.SourceKind]domain.SourceParser)}
}

// Register привязывает парсер к типу источника.
func (r *Registry) Register(kind domain.SourceKind, p domain.SourceParser) {
	r.parsers[kind] = p
}

// ParserFor возвращает парсер для типа источника.
func (r *Registry) ParserFor(kind domain.SourceKind) (domain.SourceParser, bool) {
	p, ok := r.parsers[kind]
	return p, ok
}

var _ domain.ParserRegistry = (*Registry)(nil)

func defaultHTTPClient(client *http.Client) *http.Client {
	if client == nil {
		return &http.Client{Timeout: 20 * time.Second}
	}
	return client
}

var (
	tagExpr        = regexp.MustCompile(`<[^>]*>`)
	whitespaceExpr = regexp.MustCompile(`\s+`)
)

// stripHTML убирает разметку и схлопывает пробелы.
func stripHTML(s string) string {
	s = tagExpr.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	return strings.TrimSpace(whitespaceExpr.ReplaceAllString(s, " "))
}

// normalizeLang приводит код языка к короткой форме: "ru-RU" -> "ru".
func normalizeLang(lang string) string {
	lang = strings.TrimSpace(strings.ToLower(lang))
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	return lang
}

// isFresh сообщает, опубликована ли запись после последнего обхода источника.
func isFresh(src domain.Source, publishedAt time.Time) bool {
	if src.LastParsedAt == nil {
		return true
	}
	return publishedAt.After(*src.LastParsedAt)
}
