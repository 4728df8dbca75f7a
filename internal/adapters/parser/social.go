package parser

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"tg-news-bot/internal/domain"
)

// Social читает публикации социальных сетей. Публичных API без авторизации
// у поддерживаемых сетей нет, поэтому парсер отдаёт имитацию последнего
// поста профиля.
type Social struct {
	log zerolog.Logger
	now func() time.Time
}

// NewSocial создаёт парсер социальных сетей.
func NewSocial(logger zerolog.Logger) *Social {
	return &Social{
		log: logger.With().Str("component", "social_parser").Logger(),
		now: func() time.Time { return time.Now().UTC() },
	}
}

var _ domain.SourceParser = (*Social)(nil)

// Parse возвращает имитацию последнего поста профиля.
func (p *Social) Parse(ctx context.Context, src domain.Source) (*domain.NormalizedRecord, error) {
	platform, handle := profileParts(src.URL)
	p.log.Debug().Str("url", src.URL).Str("platform", platform).Msg("имитация разбора социальной сети")
	published := p.now()
	if !isFresh(src, published) {
		return nil, nil
	}
	return &domain.NormalizedRecord{
		Title:       fmt.Sprintf("Последний пост из %s профиля %s", platform, handle),
		Content:     fmt.Sprintf("Это имитация содержимого поста из %s. Для настоящего разбора нужна интеграция с API платформы.", platform),
		SourceURL:   src.URL,
		ImageURL:    "https://placehold.co/600x400?text=" + url.QueryEscape(platform),
		PublishedAt: published,
		Lang:        "ru",
	}, nil
}

// profileParts выделяет название платформы и имя профиля из ссылки.
func profileParts(rawURL string) (string, string) {
	platform, handle := "social", ""
	if u, err := url.Parse(rawURL); err == nil {
		host := strings.TrimPrefix(u.Hostname(), "www.")
		if i := strings.IndexByte(host, '.'); i > 0 {
			platform = host[:i]
		}
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		handle = parts[len(parts)-1]
	}
	if handle == "" {
		handle = rawURL
	}
	return platform, handle
}
