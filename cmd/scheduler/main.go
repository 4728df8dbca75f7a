package main

import (
	"context"
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
	"tg-news-bot/internal/adapters/parser"
	"tg-news-bot/internal/adapters/publisher"
	"tg-news-bot/internal/adapters/repo"
	"tg-news-bot/internal/domain"
	"tg-news-bot/internal/infra/cache"
	"tg-news-bot/internal/infra/config"
	"tg-news-bot/internal/infra/db"
	infrahttp "tg-news-bot/internal/infra/http"
	"tg-news-bot/internal/infra/log"
	"tg-news-bot/internal/infra/metrics"
	"tg-news-bot/internal/infra/queue"
	"tg-news-bot/internal/usecase/digest"
	"tg-news-bot/internal/usecase/ingest"
	"tg-news-bot/internal/usecase/schedule"
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

	registry := parser.NewRegistry()
	httpClient := &http.Client{Timeout: 20 * time.Second}
	registry.Register(domain.SourceKindRSS, parser.NewRSS(httpClient, logger))
	registry.Register(domain.SourceKindWeb, parser.NewWeb(httpClient, logger))
	registry.Register(domain.SourceKindSocial, parser.NewSocial(logger))
	if cfg.Telegram.APIID != 0 && cfg.Telegram.APIHash != "" {
		registry.Register(domain.SourceKindChat, parser.NewChat(cfg.Telegram.APIID, cfg.Telegram.APIHash, &parser.SessionInMemory{}, logger))
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	dispatchGuard := cache.NewRedis(redisClient)

	publishQueue, closeQueue, err := buildPublishQueue(cfg, redisClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось подключиться к очереди публикаций")
	}
	defer closeQueue()

	publisherAdapter := publisher.NewQueue(publishQueue, domain.PublishCauseIngest, logger)
	ingestService := ingest.NewService(repoAdapter, repoAdapter, repoAdapter, registry, publisherAdapter, logger)

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось создать бота")
	}
	digestService := digest.NewService(repoAdapter, repoAdapter, repoAdapter, bot.NewDigestSender(botAPI, logger), repoAdapter, cfg.Limits.DigestItems, logger)

	ingestCron, err := schedule.ParseCron(cfg.Schedules.Ingest)
	if err != nil {
		logger.Fatal().Err(err).Str("expr", cfg.Schedules.Ingest).Msg("неверное расписание обхода источников")
	}
	sweepCron, err := schedule.ParseCron(cfg.Schedules.Sweep)
	if err != nil {
		logger.Fatal().Err(err).Str("expr", cfg.Schedules.Sweep).Msg("неверное расписание очистки")
	}
	digestCron, err := schedule.ParseCron(cfg.Schedules.Digest)
	if err != nil {
		logger.Fatal().Err(err).Str("expr", cfg.Schedules.Digest).Msg("неверное расписание дайджеста")
	}

	loop := schedule.NewLoop(schedule.RealClock{}, logger,
		schedule.Task{Name: "ingest", Schedule: ingestCron, Run: ingestService.RunCycle},
		schedule.Task{Name: "sweep", Schedule: sweepCron, Run: func(ctx context.Context) error {
			_, err := ingestService.SweepExpired(ctx)
			return err
		}},
		schedule.Task{Name: "digest", Schedule: digestCron, Run: func(ctx context.Context) error {
			// Один запуск рассылки на календарную дату.
			key := "digest_dispatch:" + schedule.RealClock{}.Now().UTC().Format("2006-01-02")
			return dispatchGuard.Once(key, 23*time.Hour, func() error {
				return digestService.DispatchDaily(ctx)
			})
		}},
	)

	srv := infrahttp.NewServer(logger)
	go func() {
		if err := srv.Start(":" + strconv.Itoa(cfg.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("HTTP сервер остановлен")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	logger.Info().Msg("планировщик запущен")
	if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("планировщик остановлен с ошибкой")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	logger.Info().Msg("планировщик остановлен")
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
