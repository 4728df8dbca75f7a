package bot

import (
	"context"
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"tg-news-bot/internal/domain"
	"tg-news-bot/internal/infra/metrics"
	"tg-news-bot/internal/usecase/digest"
)

// DigestSender доставляет дайджест в личный чат пользователя.
type DigestSender struct {
	bot api
	log zerolog.Logger
}

// NewDigestSender создаёт отправителя дайджестов.
func NewDigestSender(botAPI api, logger zerolog.Logger) *DigestSender {
	return &DigestSender{
		bot: botAPI,
		log: logger.With().Str("component", "digest_sender").Logger(),
	}
}

var _ digest.Sender = (*DigestSender)(nil)

// SendDigest отправляет текст дайджеста пользователю. Длинный дайджест
// уходит несколькими сообщениями, ошибка любой части прерывает доставку.
func (s *DigestSender) SendDigest(ctx context.Context, user domain.User, text string) error {
	for _, part := range SplitMessage(text) {
		msg := tgbotapi.NewMessage(user.TGUserID, part)
		msg.ParseMode = tgbotapi.ModeHTML
		msg.DisableWebPagePreview = true

		start := time.Now()
		_, err := s.bot.Send(msg)
		metrics.ObserveNetworkRequest("telegram_bot", "send_digest", strconv.FormatInt(user.TGUserID, 10), start, err)
		if err != nil {
			metrics.BotSendErrors.Inc()
			return fmt.Errorf("отправка дайджеста: %w", err)
		}
	}
	return nil
}
