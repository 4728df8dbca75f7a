package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"tg-news-bot/internal/adapters/bot"
	"tg-news-bot/internal/adapters/httpapi"
	"tg-news-bot/internal/adapters/parser"
	"tg-news-bot/internal/adapters/publisher"
	"tg-news-bot/internal/adapters/repo"
	"tg-news-bot/internal/adapters/summarizer"
	"tg-news-bot/internal/domain"
	"tg-news-bot/internal/infra/cache"
	"tg-news-bot/internal/infra/config"
	"tg-news-bot/internal/infra/db"
	"tg-news-bot/internal/infra/gemini"
	infrahttp "tg-news-bot/internal/infra/http"
	"tg-news-bot/internal/infra/log"
	"tg-news-bot/internal/infra/metrics"
	"tg-news-bot/internal/infra/queue"
	"tg-news-bot/internal/usecase/ailimit"
	"tg-news-bot/internal/usecase/browse"
	"tg-news-bot/internal/usecase/enrich"
	"tg-news-bot/internal/usecase/ingest"
	"tg-news-bot/internal/usecase/moderation"
	"tg-news-bot/internal/usecase/users"
)

func main() {
	cfg := config.Load()
	logger := log.NewLogger(cfg.AppEnv)
	metrics.MustRegister(prometheus.DefaultRegisterer)

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось подключиться к БД")
	}
	defer pool.Close()

	repoAdapter := repo.NewPostgres(pool)

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	sessions := cache.NewRedisSessions(redisClient)

	publishQueue, closeQueue, err := buildPublishQueue(cfg, redisClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось подключиться к очереди публикаций")
	}
	defer closeQueue()

	registry := parser.NewRegistry()
	httpClient := &http.Client{Timeout: 20 * time.Second}
	registry.Register(domain.SourceKindRSS, parser.NewRSS(httpClient, logger))
	registry.Register(domain.SourceKindWeb, parser.NewWeb(httpClient, logger))
	registry.Register(domain.SourceKindSocial, parser.NewSocial(logger))
	if cfg.Telegram.APIID != 0 && cfg.Telegram.APIHash != "" {
		registry.Register(domain.SourceKindChat, parser.NewChat(cfg.Telegram.APIID, cfg.Telegram.APIHash, &parser.SessionInMemory{}, logger))
	}

	ingestPublisher := publisher.NewQueue(publishQueue, domain.PublishCauseIngest, logger)
	ingestService := ingest.NewService(repoAdapter, repoAdapter, repoAdapter, registry, ingestPublisher, logger)

	var textAI domain.TextAI
	if cfg.Gemini.APIKey != "" {
		geminiClient := gemini.NewClient(cfg.Gemini.APIKey, cfg.Gemini.BaseURL, 30*time.Second)
		textAI = summarizer.NewGemini(geminiClient, cfg.Gemini.Model, 15*time.Second)
	} else {
		logger.Warn().Msg("ключ Gemini не задан, работает упрощённый суммаризатор")
		textAI = summarizer.NewSimple()
	}
	limiter := ailimit.New(time.Duration(cfg.Limits.AIWindowSeconds) * time.Second)

	usersService := users.NewService(repoAdapter, repoAdapter, repoAdapter, ingestService, cfg.Telegram.AdminIDs, logger)
	browseService := browse.NewService(repoAdapter, repoAdapter, sessions, cfg.Limits.BrowseWindow, logger)
	moderationPublisher := publisher.NewQueue(publishQueue, domain.PublishCauseModeration, logger)
	moderationService := moderation.NewService(repoAdapter, sessions, moderationPublisher, logger)
	enrichService := enrich.NewService(repoAdapter, textAI, limiter, logger)

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось создать бота")
	}
	if cfg.Telegram.WebhookURL != "" {
		wh, err := tgbotapi.NewWebhook(cfg.Telegram.WebhookURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("неверный URL вебхука")
		}
		if _, err := botAPI.Request(wh); err != nil {
			logger.Fatal().Err(err).Msg("не удалось установить вебхук")
		}
	}

	handler := bot.NewHandler(botAPI, logger, usersService, browseService, moderationService, enrichService)
	broadcaster := bot.NewBroadcaster(botAPI, publishQueue, cfg.Telegram.ChannelID, logger)

	srv := infrahttp.NewServer(logger)
	srv.Router.Post("/bot/webhook", func(w http.ResponseWriter, r *http.Request) {
		var update tgbotapi.Update
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			infrahttp.WriteError(w, http.StatusBadRequest, err)
			return
		}
		handler.HandleUpdate(r.Context(), update)
		w.WriteHeader(http.StatusOK)
	})
	httpapi.NewAdminAPI(repoAdapter, repoAdapter, repoAdapter, repoAdapter, logger).Mount(srv.Router, cfg.AdminAPIKey)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	go func() {
		if err := broadcaster.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("публикация в канал остановлена с ошибкой")
		}
	}()
	go func() {
		if err := srv.Start(":" + strconv.Itoa(cfg.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("HTTP сервер остановлен")
		}
	}()

	logger.Info().Msg("бот-гейтвей запущен")
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	logger.Info().Msg("бот-гейтвей остановлен")
}

func buildPublishQueue(cfg config.AppConfig, redisClient *redis.Client) (domain.PublishQueue, func(), error) {
	if cfg.Rabbit.URL != "" {
		q, err := queue.NewRabbitPublishQueue(cfg.Rabbit.URL, cfg.Rabbit.Queue)
		if err != nil {
			return nil, nil, err
		}
		return q, func() { _ = q.Close() }, nil
	}
	return queue.NewRedisPublishQueue(redisClient, cfg.Rabbit.Queue), func() {}, nil
}
