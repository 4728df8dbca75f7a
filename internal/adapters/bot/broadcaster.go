package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"tg-news-bot/internal/domain"
	"tg-news-bot/internal/infra/metrics"
)

// Broadcaster читает очередь публикаций и отправляет новости в канал.
type Broadcaster struct {
	bot       api
	queue     domain.PublishQueue
	channelID int64
	log       zerolog.Logger
}

// NewBroadcaster создаёт потребителя очереди публикаций.
func NewBroadcaster(botAPI api, queue domain.PublishQueue, channelID int64, logger zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		bot:       botAPI,
		queue:     queue,
		channelID: channelID,
		log:       logger.With().Str("component", "broadcaster").Logger(),
	}
}

// Run обрабатывает задачи до отмены контекста. Неудачная отправка
// возвращает задачу в очередь.
func (b *Broadcaster) Run(ctx context.Context) error {
	for {
		job, ack, err := b.queue.Receive(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return fmt.Errorf("чтение очереди публикаций: %w", err)
		}

		sendErr := b.publish(job)
		if sendErr != nil {
			b.log.Error().Err(sendErr).Str("job_id", job.ID).Int64("news_id", job.NewsID).Msg("не удалось опубликовать новость")
		} else {
			metrics.NewsPublishedTotal.Inc()
			b.log.Info().Str("job_id", job.ID).Int64("news_id", job.NewsID).Msg("новость опубликована в канале")
		}
		if err := ack(sendErr == nil); err != nil {
			b.log.Error().Err(err).Str("job_id", job.ID).Msg("не удалось подтвердить задачу")
		}
	}
}

func (b *Broadcaster) publish(job domain.PublishJob) error {
	msg := tgbotapi.NewMessage(b.channelID, formatBroadcast(job))
	msg.ParseMode = tgbotapi.ModeHTML

	start := time.Now()
	_, err := b.bot.Send(msg)
	metrics.ObserveNetworkRequest("telegram_bot", "publish_news", strconv.FormatInt(b.channelID, 10), start, err)
	if err != nil {
		metrics.BotSendErrors.Inc()
	}
	return err
}

// formatBroadcast строит HTML-сообщение публикации для канала.
func formatBroadcast(job domain.PublishJob) string {
	text := fmt.Sprintf("📢 <b>%s</b>", html.EscapeString(job.Title))
	if job.Summary != "" {
		text += "\n\n" + html.EscapeString(job.Summary)
	}
	text += fmt.Sprintf("\n\n<a href=%q>Читать полностью</a>", job.SourceURL)
	return text
}
