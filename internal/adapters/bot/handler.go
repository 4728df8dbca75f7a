package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"tg-news-bot/internal/domain"
	"tg-news-bot/internal/infra/metrics"
	"tg-news-bot/internal/usecase/browse"
	"tg-news-bot/internal/usecase/enrich"
	"tg-news-bot/internal/usecase/moderation"
	"tg-news-bot/internal/usecase/users"
)

type api interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Handler обслуживает вебхук бота.
type Handler struct {
	bot          api
	log          zerolog.Logger
	usersUC      *users.Service
	browseUC     *browse.Service
	moderationUC *moderation.Service
	enrichUC     *enrich.Service
}

// NewHandler создаёт обработчик.
func NewHandler(botAPI api, logger zerolog.Logger, usersUC *users.Service, browseUC *browse.Service, moderationUC *moderation.Service, enrichUC *enrich.Service) *Handler {
	return &Handler{
		bot:          botAPI,
		log:          logger.With().Str("component", "bot").Logger(),
		usersUC:      usersUC,
		browseUC:     browseUC,
		moderationUC: moderationUC,
		enrichUC:     enrichUC,
	}
}

// HandleUpdate обрабатывает входящий апдейт.
func (h *Handler) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message != nil {
		h.handleMessage(ctx, upd.Message)
	} else if upd.CallbackQuery != nil {
		h.handleCallback(ctx, upd.CallbackQuery)
	}
}

func (h *Handler) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		h.reply(msg.Chat.ID, "Не удалось определить пользователя", nil)
		return
	}
	user, err := h.registerUser(ctx, msg.From)
	if err != nil {
		h.log.Error().Err(err).Int64("tg_user_id", msg.From.ID).Msg("не удалось сохранить профиль")
		h.reply(msg.Chat.ID, "Не удалось сохранить профиль, попробуйте позже", nil)
		return
	}

	text := strings.TrimSpace(msg.Text)
	switch {
	case strings.HasPrefix(text, "/start"):
		h.reply(msg.Chat.ID, h.buildStartMessage(user), h.mainKeyboard(user))
	case strings.HasPrefix(text, "/help"):
		h.reply(msg.Chat.ID, h.buildHelpMessage(user), h.mainKeyboard(user))
	case strings.HasPrefix(text, "/news"):
		h.handleNews(ctx, msg.Chat.ID, user)
	case strings.HasPrefix(text, "/moderate"):
		h.handleModerate(ctx, msg.Chat.ID, user)
	case strings.HasPrefix(text, "/addsource"):
		rawURL := strings.TrimSpace(strings.TrimPrefix(text, "/addsource"))
		h.handleAddSource(ctx, msg.Chat.ID, user, rawURL)
	case strings.HasPrefix(text, "/digest_on"):
		h.handleDigestToggle(ctx, msg.Chat.ID, user, true)
	case strings.HasPrefix(text, "/digest_off"):
		h.handleDigestToggle(ctx, msg.Chat.ID, user, false)
	case strings.HasPrefix(text, "/summary"):
		arg := strings.TrimSpace(strings.TrimPrefix(text, "/summary"))
		h.handleSummaryCommand(ctx, msg.Chat.ID, user, arg)
	case strings.HasPrefix(text, "/feedback"):
		payload := strings.TrimSpace(strings.TrimPrefix(text, "/feedback"))
		h.handleFeedback(ctx, msg.Chat.ID, user, payload)
	default:
		h.reply(msg.Chat.ID, "Неизвестная команда. Используйте /help", nil)
	}
}

func (h *Handler) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.From == nil || cb.Message == nil {
		return
	}
	user, err := h.usersUC.Resolve(ctx, cb.From.ID)
	if err != nil {
		user, err = h.registerUser(ctx, cb.From)
		if err != nil {
			h.log.Error().Err(err).Int64("tg_user_id", cb.From.ID).Msg("не удалось сохранить профиль")
			return
		}
	}
	chatID := cb.Message.Chat.ID

	data := cb.Data
	switch {
	case data == "news_start":
		h.handleNews(ctx, chatID, user)
	case data == "mod_start":
		h.handleModerate(ctx, chatID, user)
	case data == "news_next":
		h.stepBrowse(ctx, chatID, user, h.browseUC.Next)
	case data == "news_prev":
		h.stepBrowse(ctx, chatID, user, h.browseUC.Prev)
	case data == "news_stop":
		if err := h.browseUC.Stop(ctx, user); err != nil {
			h.log.Error().Err(err).Int64("user_id", user.ID).Msg("не удалось закрыть ленту")
		}
		h.reply(chatID, "Лента закрыта. Открыть заново — команда /news", nil)
	case data == "mod_approve":
		h.stepModeration(ctx, chatID, user, h.moderationUC.Approve, "Новость одобрена и уходит в канал")
	case data == "mod_reject":
		h.stepModeration(ctx, chatID, user, h.moderationUC.Reject, "Новость отклонена")
	case data == "mod_next":
		h.stepModeration(ctx, chatID, user, h.moderationUC.Next, "")
	case data == "mod_prev":
		h.stepModeration(ctx, chatID, user, h.moderationUC.Prev, "")
	case strings.HasPrefix(data, "sum:"):
		h.handleSummary(ctx, chatID, user, parseNewsID(data))
	}

	start := time.Now()
	_, err = h.bot.Request(tgbotapi.NewCallback(cb.ID, ""))
	metrics.ObserveNetworkRequest("telegram_bot", "answer_callback", strconv.FormatInt(cb.From.ID, 10), start, err)
	if err != nil {
		h.log.Error().Err(err).Msg("не удалось ответить на callback")
	}
}

func (h *Handler) registerUser(ctx context.Context, from *tgbotapi.User) (domain.User, error) {
	profile := domain.TelegramProfile{
		TGUserID:  from.ID,
		Username:  from.UserName,
		FirstName: from.FirstName,
		Locale:    from.LanguageCode,
	}
	user, _, err := h.usersUC.Register(ctx, profile)
	return user, err
}

func (h *Handler) handleNews(ctx context.Context, chatID int64, user domain.User) {
	page, err := h.browseUC.Start(ctx, user)
	if err != nil {
		if errors.Is(err, browse.ErrNoNews) {
			h.reply(chatID, "Свежих новостей пока нет, загляните позже", nil)
			return
		}
		h.log.Error().Err(err).Int64("user_id", user.ID).Msg("не удалось открыть ленту")
		h.reply(chatID, "Не удалось открыть ленту, попробуйте позже", nil)
		return
	}
	h.reply(chatID, formatNewsPage(page), newsKeyboard(page))
}

func (h *Handler) stepBrowse(ctx context.Context, chatID int64, user domain.User, step func(context.Context, domain.User) (browse.Page, error)) {
	page, err := step(ctx, user)
	if err != nil {
		switch {
		case errors.Is(err, browse.ErrAtStart):
			h.reply(chatID, "Это первая новость", nil)
		case errors.Is(err, browse.ErrAtEnd):
			h.reply(chatID, "Это последняя новость. Новая подборка — команда /news", nil)
		case errors.Is(err, browse.ErrBrowseNotStarted):
			h.reply(chatID, "Лента закрыта. Откройте её заново командой /news", nil)
		default:
			h.log.Error().Err(err).Int64("user_id", user.ID).Msg("ошибка листания ленты")
			h.reply(chatID, "Не удалось показать новость, попробуйте позже", nil)
		}
		return
	}
	h.reply(chatID, formatNewsPage(page), newsKeyboard(page))
}

func (h *Handler) handleModerate(ctx context.Context, chatID int64, user domain.User) {
	review, err := h.moderationUC.Start(ctx, user)
	if err != nil {
		switch {
		case errors.Is(err, moderation.ErrNotAdmin):
			h.reply(chatID, "Модерация доступна только администраторам", nil)
		case errors.Is(err, moderation.ErrNoPending):
			h.reply(chatID, "Очередь модерации пуста", nil)
		default:
			h.log.Error().Err(err).Int64("user_id", user.ID).Msg("не удалось открыть очередь модерации")
			h.reply(chatID, "Не удалось открыть очередь модерации", nil)
		}
		return
	}
	h.reply(chatID, formatReview(review), moderationKeyboard())
}

func (h *Handler) stepModeration(ctx context.Context, chatID int64, user domain.User, step func(context.Context, domain.User) (moderation.Review, error), prefix string) {
	review, err := step(ctx, user)
	if err != nil {
		switch {
		case errors.Is(err, moderation.ErrNotAdmin):
			h.reply(chatID, "Модерация доступна только администраторам", nil)
		case errors.Is(err, moderation.ErrAtStart):
			h.reply(chatID, "Это первая новость в очереди", nil)
		case errors.Is(err, moderation.ErrAtEnd):
			h.reply(chatID, "Это последняя новость в очереди", nil)
		case errors.Is(err, moderation.ErrQueueDrained):
			message := "Очередь модерации закончилась"
			if prefix != "" {
				message = prefix + ". " + message
			}
			h.reply(chatID, message, nil)
		case errors.Is(err, moderation.ErrItemGone):
			h.reply(chatID, "Новость уже обработана. Очередь закончилась", nil)
		case errors.Is(err, moderation.ErrReviewNotStarted):
			h.reply(chatID, "Сначала откройте очередь командой /moderate", nil)
		default:
			h.log.Error().Err(err).Int64("user_id", user.ID).Msg("ошибка модерации")
			h.reply(chatID, "Не удалось обработать новость, попробуйте позже", nil)
		}
		return
	}
	text := formatReview(review)
	if prefix != "" {
		text = prefix + "\n\n" + text
	}
	h.reply(chatID, text, moderationKeyboard())
}

func (h *Handler) handleAddSource(ctx context.Context, chatID int64, user domain.User, rawURL string) {
	if rawURL == "" {
		h.reply(chatID, "Отправьте ссылку: /addsource https://example.org/rss", nil)
		return
	}
	source, item, err := h.usersUC.SubmitSource(ctx, user, rawURL)
	if err != nil {
		switch {
		case errors.Is(err, users.ErrURLInvalid):
			h.reply(chatID, "Некорректная ссылка. Пример: /addsource https://example.org/rss", nil)
		case errors.Is(err, users.ErrSourceLimit):
			plan := user.Plan()
			h.reply(chatID, fmt.Sprintf("Тариф %s позволяет добавить до %d источников.", plan.Name, plan.SourceLimit), nil)
		default:
			h.log.Error().Err(err).Int64("user_id", user.ID).Msg("не удалось добавить источник")
			h.reply(chatID, "Не удалось добавить источник, попробуйте позже", nil)
		}
		return
	}
	message := fmt.Sprintf("Источник %s добавлен.", source.Name)
	if item != nil {
		message += " Первая публикация отправлена на модерацию."
	}
	h.reply(chatID, message, nil)
}

func (h *Handler) handleDigestToggle(ctx context.Context, chatID int64, user domain.User, enabled bool) {
	if err := h.usersUC.SetDigestEnabled(ctx, user.TGUserID, enabled); err != nil {
		h.log.Error().Err(err).Int64("user_id", user.ID).Msg("не удалось переключить дайджест")
		h.reply(chatID, "Не удалось обновить настройку, попробуйте позже", nil)
		return
	}
	if enabled {
		h.reply(chatID, "Ежедневный дайджест включён", nil)
	} else {
		h.reply(chatID, "Ежедневный дайджест выключен", nil)
	}
}

func (h *Handler) handleSummaryCommand(ctx context.Context, chatID int64, user domain.User, arg string) {
	if arg == "" {
		h.reply(chatID, "Нажмите кнопку \"🤖 Резюме\" под новостью или отправьте /summary <номер новости>", nil)
		return
	}
	newsID, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || newsID <= 0 {
		h.reply(chatID, "Некорректный номер новости", nil)
		return
	}
	h.handleSummary(ctx, chatID, user, newsID)
}

func (h *Handler) handleSummary(ctx context.Context, chatID int64, user domain.User, newsID int64) {
	if newsID == 0 {
		h.reply(chatID, "Некорректный номер новости", nil)
		return
	}
	summary, wait, err := h.enrichUC.SummarizeNews(ctx, user, newsID)
	if err != nil {
		if errors.Is(err, enrich.ErrTooFrequent) {
			seconds := int(wait.Round(time.Second).Seconds())
			if seconds < 1 {
				seconds = 1
			}
			h.reply(chatID, fmt.Sprintf("Слишком часто. Следующий AI-запрос через %d сек.", seconds), nil)
			return
		}
		h.log.Error().Err(err).Int64("news_id", newsID).Msg("не удалось построить резюме")
		h.reply(chatID, "Не удалось построить резюме, попробуйте позже", nil)
		return
	}
	h.reply(chatID, "🤖 "+summary, nil)
}

func (h *Handler) handleFeedback(ctx context.Context, chatID int64, user domain.User, payload string) {
	if payload == "" {
		h.reply(chatID, "Напишите отзыв после команды: /feedback очень удобный бот", nil)
		return
	}
	if err := h.usersUC.SaveFeedback(ctx, user, chatID, payload); err != nil {
		h.log.Error().Err(err).Int64("user_id", user.ID).Msg("не удалось сохранить отзыв")
		h.reply(chatID, "Не удалось сохранить отзыв, попробуйте позже", nil)
		return
	}
	h.reply(chatID, "Спасибо за отзыв!", nil)
}

func (h *Handler) reply(chatID int64, text string, keyboard *tgbotapi.InlineKeyboardMarkup) {
	parts := SplitMessage(text)
	for i, part := range parts {
		msg := tgbotapi.NewMessage(chatID, part)
		msg.ParseMode = tgbotapi.ModeHTML
		msg.DisableWebPagePreview = false
		if i == len(parts)-1 && keyboard != nil {
			msg.ReplyMarkup = keyboard
		}
		start := time.Now()
		_, err := h.bot.Send(msg)
		metrics.ObserveNetworkRequest("telegram_bot", "send_message", strconv.FormatInt(chatID, 10), start, err)
		if err != nil {
			metrics.BotSendErrors.Inc()
			h.log.Error().Err(err).Msg("не удалось отправить сообщение")
			return
		}
	}
}

// formatNewsPage строит HTML-карточку новости для ленты.
func formatNewsPage(page browse.Page) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📰 <b>%s</b>\n", html.EscapeString(page.Item.Title)))
	b.WriteString(fmt.Sprintf("Новость %d из %d\n\n", page.Position, page.Total))
	if page.Item.AISummary != "" {
		b.WriteString(html.EscapeString(page.Item.AISummary))
	} else if page.Item.Content != "" {
		b.WriteString(html.EscapeString(clipRunes(page.Item.Content, 500)))
	}
	b.WriteString(fmt.Sprintf("\n\n<a href=%q>Читать источник</a>", page.Item.SourceURL))
	return b.String()
}

// formatReview строит HTML-карточку новости для модератора.
func formatReview(review moderation.Review) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🛠 Модерация: %d из %d\n\n", review.Position, review.Total))
	b.WriteString(fmt.Sprintf("<b>%s</b>\n", html.EscapeString(review.Item.Title)))
	if review.Item.Content != "" {
		b.WriteString(html.EscapeString(clipRunes(review.Item.Content, 700)))
		b.WriteString("\n")
	}
	b.WriteString(fmt.Sprintf("\n<a href=%q>Источник</a>", review.Item.SourceURL))
	return b.String()
}

func newsKeyboard(page browse.Page) *tgbotapi.InlineKeyboardMarkup {
	nav := tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("⬅️", "news_prev"),
		tgbotapi.NewInlineKeyboardButtonData("➡️", "news_next"),
	)
	actions := tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🤖 Резюме", fmt.Sprintf("sum:%d", page.Item.ID)),
		tgbotapi.NewInlineKeyboardButtonData("✖ Закрыть", "news_stop"),
	)
	markup := tgbotapi.NewInlineKeyboardMarkup(nav, actions)
	return &markup
}

func moderationKeyboard() *tgbotapi.InlineKeyboardMarkup {
	markup := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Одобрить", "mod_approve"),
			tgbotapi.NewInlineKeyboardButtonData("❌ Отклонить", "mod_reject"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⬅️", "mod_prev"),
			tgbotapi.NewInlineKeyboardButtonData("➡️", "mod_next"),
		),
	)
	return &markup
}

func (h *Handler) mainKeyboard(user domain.User) *tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📰 Новости", "news_start"),
		),
	}
	if user.IsAdmin {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🛠 Модерация", "mod_start"),
		))
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &markup
}

func (h *Handler) buildStartMessage(user domain.User) string {
	plan := user.Plan()
	limitLine := "Источники без ограничений."
	if plan.SourceLimit > 0 {
		limitLine = fmt.Sprintf("Вам доступно до %d собственных источников.", plan.SourceLimit)
	}
	lines := []string{
		"👋 Добро пожаловать в новостного бота!",
		"",
		fmt.Sprintf("Ваш тариф: %s.", plan.Name),
		"",
		"Что умеет бот:",
		"• /news — листать свежие новости.",
		"• /addsource https://example.org/rss — добавить свой источник.",
		"  " + limitLine,
		"• /digest_on — получать ежедневный дайджест, /digest_off — отключить.",
		"• Кнопка \"🤖 Резюме\" под новостью строит краткое содержание.",
	}
	if user.IsAdmin {
		lines = append(lines, "• /moderate — очередь модерации.")
	}
	lines = append(lines, "", "Полный список команд: /help")
	return strings.Join(lines, "\n")
}

func (h *Handler) buildHelpMessage(user domain.User) string {
	sections := []string{
		"📖 Команды:",
		"",
		"• /news — открыть подборку непрочитанных новостей.",
		"• /addsource <ссылка> — добавить сайт, RSS-ленту или чат.",
		"• /digest_on, /digest_off — управление ежедневным дайджестом.",
		"• /summary <номер> — краткое содержание новости.",
		"• /feedback <текст> — отправить отзыв.",
	}
	if user.IsAdmin {
		sections = append(sections,
			"",
			"Администраторам:",
			"• /moderate — модерация присланных новостей.",
		)
	}
	return strings.Join(sections, "\n")
}

func parseNewsID(data string) int64 {
	parts := strings.Split(data, ":")
	if len(parts) != 2 {
		return 0
	}
	id, _ := strconv.ParseInt(parts[1], 10, 64)
	return id
}

func clipRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return strings.TrimSpace(string(runes[:limit])) + "…"
}
