package domain

import "time"

// SourceKind определяет тип источника новостей.
type SourceKind string

const (
	SourceKindWeb    SourceKind = "web"
	SourceKindRSS    SourceKind = "rss"
	SourceKindChat   SourceKind = "chat"
	SourceKindSocial SourceKind = "social"
)

// KnownSourceKinds перечисляет поддерживаемые типы источников.
var KnownSourceKinds = []SourceKind{SourceKindWeb, SourceKindRSS, SourceKindChat, SourceKindSocial}

// SourceStatus определяет состояние источника.
type SourceStatus string

const (
	SourceStatusActive   SourceStatus = "active"
	SourceStatusInactive SourceStatus = "inactive"
)

// ModerationStatus определяет статус модерации новости.
type ModerationStatus string

const (
	ModerationPending  ModerationStatus = "pending"
	ModerationApproved ModerationStatus = "approved"
	ModerationRejected ModerationStatus = "rejected"
)

// DefaultNewsTTL — срок жизни новости от даты публикации.
const DefaultNewsTTL = 5 * 24 * time.Hour

// Source описывает источник новостей.
type Source struct {
	ID            int64
	OwnerUserID   *int64
	Name          string
	URL           string
	Kind          SourceKind
	Status        SourceStatus
	LastParsedAt  *time.Time
	ParseInterval time.Duration
	CreatedAt     time.Time
}

// SourceMeta содержит данные для регистрации источника.
type SourceMeta struct {
	OwnerUserID *int64
	Name        string
	URL         string
	Kind        SourceKind
}

// NewsItem представляет одну новость.
type NewsItem struct {
	ID          int64
	SourceID    *int64
	Title       string
	Content     string
	SourceURL   string
	ImageURL    string
	Lang        string
	PublishedAt time.Time
	ExpiresAt   *time.Time
	Moderation  ModerationStatus
	AISummary   string
	AITopics    []string
	CreatedAt   time.Time
}

// NormalizedRecord — результат разбора источника до сохранения.
type NormalizedRecord struct {
	Title       string
	Content     string
	SourceURL   string
	ImageURL    string
	Lang        string
	PublishedAt time.Time
}

// Valid сообщает, достаточно ли полей для сохранения записи.
func (r NormalizedRecord) Valid() bool {
	return r.Title != "" && r.SourceURL != ""
}

// User описывает пользователя Telegram в системе.
type User struct {
	ID            int64
	TGUserID      int64
	Username      string
	FirstName     string
	Locale        string
	Role          UserRole
	IsAdmin       bool
	DigestEnabled bool
	DigestDaily   bool
	LastActiveAt  time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TelegramProfile содержит данные профиля из апдейта Telegram.
type TelegramProfile struct {
	TGUserID  int64
	Username  string
	FirstName string
	Locale    string
}

// ViewRecord фиксирует просмотр новости пользователем.
type ViewRecord struct {
	UserID   int64
	NewsID   int64
	ViewedAt time.Time
}

// SourceStat хранит счётчик опубликованных новостей источника.
type SourceStat struct {
	SourceID       int64
	PublishedCount int64
}

// SystemStats — сводка для административного API.
type SystemStats struct {
	Users       int64
	News        int64
	PendingNews int64
	Sources     int64
	ViewsToday  int64
}
