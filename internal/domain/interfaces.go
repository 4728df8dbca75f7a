package domain

import (
	"context"
	"errors"
	"time"
)

// SourceParser извлекает последнюю публикацию источника.
// Возвращает nil без ошибки, если свежей публикации нет.
type SourceParser interface {
	Parse(ctx context.Context, src Source) (*NormalizedRecord, error)
}

// ParserRegistry выбирает парсер по типу источника.
type ParserRegistry interface {
	ParserFor(kind SourceKind) (SourceParser, bool)
}

// TextAI выполняет генеративные запросы к языковой модели.
type TextAI interface {
	SummarizeNews(ctx context.Context, item NewsItem) (string, error)
	ClassifyTopics(ctx context.Context, item NewsItem) ([]string, error)
}

// Publisher отправляет одобренную новость в канал публикации.
type Publisher interface {
	PublishNews(ctx context.Context, item NewsItem) error
}

// SourceRepo управляет источниками.
type SourceRepo interface {
	UpsertSource(meta SourceMeta) (Source, error)
	ListActiveSources() ([]Source, error)
	CountUserSources(ownerUserID int64) (int, error)
	MarkSourceParsed(sourceID int64, at time.Time) error
	SetSourceStatus(sourceID int64, status SourceStatus) error
}

// NewsRepo управляет новостями.
type NewsRepo interface {
	// CreateNews сохраняет новость и возвращает признак создания.
	// При конфликте по source_url возвращает существующую запись и false.
	CreateNews(item NewsItem) (NewsItem, bool, error)
	GetNews(id int64) (NewsItem, error)
	ListPendingIDs() ([]int64, error)
	SetModerationStatus(id int64, status ModerationStatus) error
	SaveAIEnrichment(id int64, summary string, topics []string) error
	DeleteExpired(now time.Time) (int64, error)
	ListUnseenApproved(userID int64, limit int) ([]NewsItem, error)
}

// ViewRepo фиксирует просмотры новостей.
type ViewRepo interface {
	MarkViewed(userID, newsID int64) error
}

// StatsRepo ведёт счётчики публикаций по источникам.
type StatsRepo interface {
	IncrementPublished(sourceID int64) error
	ListSourceStats() ([]SourceStat, error)
}

// UserRepo управляет пользователями.
type UserRepo interface {
	UpsertByTGID(profile TelegramProfile) (User, bool, error)
	GetByTGID(tgUserID int64) (User, error)
	ListDigestRecipients() ([]User, error)
	SetDigestEnabled(userID int64, enabled bool) error
	TouchLastActive(userID int64) error
	UpdateRole(userID int64, role UserRole) error
	SetAdmin(userID int64, admin bool) error
}

// AdminStatsRepo собирает сводку для административного API.
type AdminStatsRepo interface {
	SystemStats() (SystemStats, error)
	ListNews(status ModerationStatus, limit, offset int) ([]NewsItem, error)
}

// WorkflowKind различает пошаговые сценарии бота.
type WorkflowKind string

const (
	WorkflowBrowse     WorkflowKind = "browse"
	WorkflowModeration WorkflowKind = "moderation"
)

// SessionStore хранит состояние пошаговых сценариев.
type SessionStore interface {
	SaveSession(userID int64, kind WorkflowKind, state []byte, ttl time.Duration) error
	LoadSession(userID int64, kind WorkflowKind) ([]byte, error)
	DeleteSession(userID int64, kind WorkflowKind) error
}

// ErrSessionNotFound возвращается, когда состояние сценария отсутствует.
var ErrSessionNotFound = errors.New("состояние сценария не найдено")

// Cache защищает действие от повторного запуска в пределах TTL.
type Cache interface {
	Once(key string, ttl time.Duration, fn func() error) error
}
