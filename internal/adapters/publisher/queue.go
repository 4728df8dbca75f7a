package publisher

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"tg-news-bot/internal/domain"
)

// Queue реализует публикацию новостей через очередь задач. Саму отправку
// в канал выполняет потребитель очереди в шлюзе бота.
type Queue struct {
	queue domain.PublishQueue
	cause domain.PublishJobCause
	log   zerolog.Logger
	now   func() time.Time
}

// NewQueue создаёт издателя поверх очереди. cause помечает, кто решил
// опубликовать новость.
func NewQueue(queue domain.PublishQueue, cause domain.PublishJobCause, logger zerolog.Logger) *Queue {
	return &Queue{
		queue: queue,
		cause: cause,
		log:   logger.With().Str("component", "publisher").Logger(),
		now:   time.Now,
	}
}

var _ domain.Publisher = (*Queue)(nil)

// PublishNews ставит одобренную новость в очередь публикации.
func (q *Queue) PublishNews(ctx context.Context, item domain.NewsItem) error {
	job := domain.PublishJob{
		ID:          uuid.NewString(),
		NewsID:      item.ID,
		Title:       item.Title,
		SourceURL:   item.SourceURL,
		ImageURL:    item.ImageURL,
		Summary:     item.AISummary,
		RequestedAt: q.now().UTC(),
		Cause:       q.cause,
	}
	if err := q.queue.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("постановка публикации: %w", err)
	}
	q.log.Info().Str("job_id", job.ID).Int64("news_id", item.ID).Str("cause", string(q.cause)).Msg("новость поставлена в очередь публикации")
	return nil
}
