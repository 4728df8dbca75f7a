package parser

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"tg-news-bot/internal/domain"
)

func TestSocialReturnsImitationPost(t *testing.T) {
	p := NewSocial(zerolog.Nop())
	now := time.Date(2025, 6, 3, 10, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	record, err := p.Parse(context.Background(), domain.Source{
		URL:  "https://vk.com/some_user",
		Kind: domain.SourceKindSocial,
	})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if record == nil {
		t.Fatalf("ожидали запись")
	}
	if !strings.Contains(record.Title, "some_user") {
		t.Errorf("заголовок должен содержать имя профиля, получили %q", record.Title)
	}
	if !strings.Contains(record.Title, "vk") {
		t.Errorf("заголовок должен содержать платформу, получили %q", record.Title)
	}
	if record.SourceURL != "https://vk.com/some_user" {
		t.Errorf("ссылка должна совпадать с профилем, получили %q", record.SourceURL)
	}
	if record.ImageURL == "" {
		t.Errorf("ожидали картинку-заглушку")
	}
	if !record.PublishedAt.Equal(now) {
		t.Errorf("неожиданная дата публикации: %v", record.PublishedAt)
	}
}

func TestSocialSkipsSeenProfile(t *testing.T) {
	p := NewSocial(zerolog.Nop())
	now := time.Date(2025, 6, 3, 10, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	lastParsed := now.Add(time.Hour)
	record, err := p.Parse(context.Background(), domain.Source{
		URL:          "https://vk.com/some_user",
		Kind:         domain.SourceKindSocial,
		LastParsedAt: &lastParsed,
	})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if record != nil {
		t.Fatalf("обойдённый профиль не должен отдавать запись, получили %+v", record)
	}
}

func TestProfileParts(t *testing.T) {
	cases := []struct {
		url      string
		platform string
		handle   string
	}{
		{"https://vk.com/some_user", "vk", "some_user"},
		{"https://www.instagram.com/blogger", "instagram", "blogger"},
		{"https://x.com/a/b", "x", "b"},
	}
	for _, tc := range cases {
		platform, handle := profileParts(tc.url)
		if platform != tc.platform || handle != tc.handle {
			t.Errorf("profileParts(%q) = (%q, %q), ожидали (%q, %q)", tc.url, platform, handle, tc.platform, tc.handle)
		}
	}
}
