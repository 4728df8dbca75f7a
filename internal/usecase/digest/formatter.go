package digest

import (
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	"tg-news-bot/internal/domain"
)

const teaserMaxRunes = 200

// FormatDigest формирует текстовое представление дайджеста для отправки пользователю.
func FormatDigest(items []domain.NewsItem) string {
	var builder strings.Builder
	builder.WriteString("🗞 <b>Дайджест новостей</b>")

	for idx, item := range items {
		builder.WriteString("\n\n")

		title := escapeHTML(strings.TrimSpace(item.Title))
		if url := strings.TrimSpace(item.SourceURL); url != "" {
			title = fmt.Sprintf("<a href=\"%s\">%s</a>", html.EscapeString(url), title)
		}
		builder.WriteString(fmt.Sprintf("<b>%d.</b> %s", idx+1, title))

		if teaser := buildTeaser(item); teaser != "" {
			builder.WriteString("\n" + escapeHTML(teaser))
		}
	}

	return strings.TrimSpace(builder.String())
}

// buildTeaser выбирает краткий анонс: AI-сводку, либо начало текста новости.
func buildTeaser(item domain.NewsItem) string {
	teaser := strings.TrimSpace(item.AISummary)
	if teaser == "" {
		teaser = strings.TrimSpace(item.Content)
	}
	return clipRunes(teaser, teaserMaxRunes)
}

func clipRunes(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:limit])) + "…"
}

func escapeHTML(s string) string {
	return html.EscapeString(s)
}
