package domain

import (
	"context"
	"time"
)

// BusinessMetric описывает бизнесовое событие, которое сохраняется для последующего анализа.
type BusinessMetric struct {
	Event      string
	UserID     *int64
	SourceID   *int64
	NewsID     *int64
	Metadata   map[string]any
	OccurredAt time.Time
}

const (
	// BusinessMetricEventUserRegistered фиксирует регистрацию нового пользователя.
	BusinessMetricEventUserRegistered = "user_registered"
	// BusinessMetricEventSourceAdded фиксирует добавление источника.
	BusinessMetricEventSourceAdded = "source_added"
	// BusinessMetricEventNewsIngested фиксирует сохранение новой новости.
	BusinessMetricEventNewsIngested = "news_ingested"
	// BusinessMetricEventNewsModerated фиксирует решение модератора.
	BusinessMetricEventNewsModerated = "news_moderated"
	// BusinessMetricEventNewsPublished фиксирует публикацию новости в канал.
	BusinessMetricEventNewsPublished = "news_published"
	// BusinessMetricEventDigestDelivered фиксирует успешную доставку дайджеста пользователю.
	BusinessMetricEventDigestDelivered = "digest_delivered"
)

// BusinessMetricRepo сохраняет бизнесовые события.
type BusinessMetricRepo interface {
	RecordBusinessMetric(ctx context.Context, metric BusinessMetric) error
}
