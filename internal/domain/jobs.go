package domain

import (
	"context"
	"time"
)

// PublishJobCause описывает причину постановки публикации в очередь.
type PublishJobCause string

const (
	// PublishCauseIngest — новость прошла автоматическую модерацию при сборе.
	PublishCauseIngest PublishJobCause = "ingest"
	// PublishCauseModeration — новость одобрена администратором.
	PublishCauseModeration PublishJobCause = "moderation"
)

// PublishJob содержит задачу на публикацию новости в канал.
type PublishJob struct {
	ID          string          `json:"job_id,omitempty"`
	NewsID      int64           `json:"news_id"`
	Title       string          `json:"title"`
	SourceURL   string          `json:"source_url"`
	ImageURL    string          `json:"image_url,omitempty"`
	Summary     string          `json:"summary,omitempty"`
	RequestedAt time.Time       `json:"requested_at"`
	Cause       PublishJobCause `json:"cause"`
}

// PublishQueue описывает очередь публикаций.
type PublishQueue interface {
	Enqueue(ctx context.Context, job PublishJob) error
	Receive(ctx context.Context) (PublishJob, PublishAckFunc, error)
}

// PublishAckFunc подтверждает обработку или запрашивает повтор доставки задачи.
type PublishAckFunc func(success bool) error
