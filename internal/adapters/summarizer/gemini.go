package summarizer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tg-news-bot/internal/domain"
	"tg-news-bot/internal/infra/gemini"
)

type generateClient interface {
	GenerateContent(ctx context.Context, model string, req gemini.GenerateContentRequest) (gemini.GenerateContentResponse, error)
}

// Gemini реализует генеративные запросы через Gemini generateContent.
type Gemini struct {
	client  generateClient
	model   string
	timeout time.Duration
}

// NewGemini создаёт AI-провайдера поверх клиента Gemini.
func NewGemini(client generateClient, model string, timeout time.Duration) *Gemini {
	if model == "" {
		model = "gemini-2.0-flash-lite"
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Gemini{client: client, model: model, timeout: timeout}
}

var _ domain.TextAI = (*Gemini)(nil)

// SummarizeNews строит краткое содержание новости.
func (g *Gemini) SummarizeNews(ctx context.Context, item domain.NewsItem) (string, error) {
	text := newsText(item)
	if text == "" {
		return "", fmt.Errorf("суммаризация: у новости нет текста")
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	prompt := fmt.Sprintf(`Подготовь краткое резюме новости на русском языке, не больше трёх предложений.
Сохраняй факты из текста и не выдумывай ничего нового. Верни только текст резюме без пояснений.
Текст новости:
%s`, clipRunes(text, 3000))

	answer, err := g.generate(ctx, prompt, 300)
	if err != nil {
		return "", fmt.Errorf("суммаризация: %w", err)
	}
	return answer, nil
}

// ClassifyTopics подбирает новости короткий список тем.
func (g *Gemini) ClassifyTopics(ctx context.Context, item domain.NewsItem) ([]string, error) {
	text := newsText(item)
	if text == "" {
		return nil, fmt.Errorf("классификация: у новости нет текста")
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	prompt := fmt.Sprintf(`Определи от одной до трёх тем новости.
Верни темы одной строкой через запятую, без пояснений и нумерации, например: политика, экономика.
Текст новости:
%s`, clipRunes(text, 3000))

	answer, err := g.generate(ctx, prompt, 60)
	if err != nil {
		return nil, fmt.Errorf("классификация: %w", err)
	}
	return splitTopics(answer), nil
}

func (g *Gemini) generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	req := gemini.GenerateContentRequest{
		Contents: []gemini.Content{
			{Role: "user", Parts: []gemini.Part{{Text: prompt}}},
		},
		GenerationConfig: &gemini.GenerationConfig{
			Temperature:     0.2,
			MaxOutputTokens: maxTokens,
		},
	}
	resp, err := g.client.GenerateContent(ctx, g.model, req)
	if err != nil {
		return "", err
	}
	answer := resp.Text()
	if answer == "" {
		return "", fmt.Errorf("пустой ответ модели")
	}
	return answer, nil
}

func newsText(item domain.NewsItem) string {
	parts := make([]string, 0, 2)
	if title := strings.TrimSpace(item.Title); title != "" {
		parts = append(parts, title)
	}
	if content := strings.TrimSpace(item.Content); content != "" {
		parts = append(parts, content)
	}
	return strings.Join(parts, "\n\n")
}

// splitTopics разбирает ответ модели в список тем.
func splitTopics(answer string) []string {
	answer = strings.ReplaceAll(answer, "\n", ",")
	raw := strings.Split(answer, ",")
	topics := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, t := range raw {
		t = strings.ToLower(strings.Trim(strings.TrimSpace(t), ".;"))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		topics = append(topics, t)
	}
	return topics
}
