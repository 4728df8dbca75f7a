package summarizer

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"tg-news-bot/internal/domain"
	"tg-news-bot/internal/infra/gemini"
)

type fakeClient struct {
	answer string
	err    error
	gotReq gemini.GenerateContentRequest
}

func (f *fakeClient) GenerateContent(ctx context.Context, model string, req gemini.GenerateContentRequest) (gemini.GenerateContentResponse, error) {
	f.gotReq = req
	if f.err != nil {
		return gemini.GenerateContentResponse{}, f.err
	}
	return gemini.GenerateContentResponse{
		Candidates: []gemini.Candidate{
			{Content: gemini.Content{Parts: []gemini.Part{{Text: f.answer}}}},
		},
	}, nil
}

var newsItem = domain.NewsItem{
	Title:   "Запущен новый сервис",
	Content: "Компания объявила о запуске нового сервиса для пользователей.",
}

func TestSummarizeNews(t *testing.T) {
	client := &fakeClient{answer: "  Компания запустила сервис.  "}
	g := NewGemini(client, "", 0)

	summary, err := g.SummarizeNews(context.Background(), newsItem)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if summary != "Компания запустила сервис." {
		t.Fatalf("неожиданное резюме: %q", summary)
	}
	if len(client.gotReq.Contents) != 1 {
		t.Fatalf("ожидали один блок контента, получили %d", len(client.gotReq.Contents))
	}
}

func TestSummarizeNewsEmptyItem(t *testing.T) {
	g := NewGemini(&fakeClient{answer: "что-то"}, "", 0)

	if _, err := g.SummarizeNews(context.Background(), domain.NewsItem{}); err == nil {
		t.Fatalf("ожидали ошибку на пустой новости")
	}
}

func TestSummarizeNewsClientError(t *testing.T) {
	g := NewGemini(&fakeClient{err: errors.New("квота исчерпана")}, "", 0)

	if _, err := g.SummarizeNews(context.Background(), newsItem); err == nil {
		t.Fatalf("ожидали ошибку клиента")
	}
}

func TestClassifyTopicsParsesList(t *testing.T) {
	client := &fakeClient{answer: "Технологии, Бизнес,  технологии.\nОбщество"}
	g := NewGemini(client, "", 0)

	topics, err := g.ClassifyTopics(context.Background(), newsItem)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	want := []string{"технологии", "бизнес", "общество"}
	if !reflect.DeepEqual(topics, want) {
		t.Fatalf("ожидали %v, получили %v", want, topics)
	}
}

func TestSimpleSummarizer(t *testing.T) {
	s := NewSimple()

	summary, err := s.SummarizeNews(context.Background(), newsItem)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if summary == "" {
		t.Fatalf("резюме не должно быть пустым")
	}

	topics, err := s.ClassifyTopics(context.Background(), newsItem)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(topics) == 0 {
		t.Fatalf("темы не должны быть пустыми")
	}
}
