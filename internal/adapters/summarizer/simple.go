package summarizer

import (
	"context"
	"strings"
	"unicode/utf8"

	"tg-news-bot/internal/domain"
)

// Simple реализует TextAI эвристикой без внешних запросов. Используется,
// когда ключ Gemini не задан.
type Simple struct{}

// NewSimple создаёт эвристического провайдера.
func NewSimple() *Simple {
	return &Simple{}
}

var _ domain.TextAI = (*Simple)(nil)

// SummarizeNews возвращает первые предложения текста новости.
func (s *Simple) SummarizeNews(ctx context.Context, item domain.NewsItem) (string, error) {
	text := strings.TrimSpace(item.Content)
	if text == "" {
		text = strings.TrimSpace(item.Title)
	}
	if text == "" {
		return "Новость без текста", nil
	}
	words := strings.Fields(text)
	summary := strings.Join(words[:min(len(words), 40)], " ")
	return clipRunes(summary, 240), nil
}

// ClassifyTopics отдаёт одну общую тему.
func (s *Simple) ClassifyTopics(ctx context.Context, item domain.NewsItem) ([]string, error) {
	return []string{"общее"}, nil
}

func clipRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + "…"
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
