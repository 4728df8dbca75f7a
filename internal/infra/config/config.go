package config

import (
	"log"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	TZ     string `envconfig:"TZ" default:"Europe/Amsterdam"`
	Port   int    `envconfig:"PORT" default:"8080"`

	Telegram struct {
		Token      string  `envconfig:"TG_BOT_TOKEN"`
		WebhookURL string  `envconfig:"TG_WEBHOOK_URL"`
		ChannelID  int64   `envconfig:"TG_CHANNEL_ID"`
		AdminIDs   []int64 `envconfig:"TG_ADMIN_IDS"`
		APIID      int     `envconfig:"TG_API_ID"`
		APIHash    string  `envconfig:"TG_API_HASH"`
	} `envconfig:""`

	PGDSN string `envconfig:"PG_DSN"`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	Rabbit struct {
		URL   string `envconfig:"RABBIT_URL"`
		Queue string `envconfig:"RABBIT_PUBLISH_QUEUE" default:"publish_jobs"`
	} `envconfig:""`

	Gemini struct {
		APIKey  string `envconfig:"GEMINI_API_KEY"`
		BaseURL string `envconfig:"GEMINI_BASE_URL"`
		Model   string `envconfig:"GEMINI_MODEL" default:"gemini-2.0-flash-lite"`
	} `envconfig:""`

	Schedules struct {
		Ingest string `envconfig:"INGEST_CRON" default:"*/30 * * * *"`
		Sweep  string `envconfig:"SWEEP_CRON" default:"0 3 * * *"`
		Digest string `envconfig:"DIGEST_CRON" default:"0 9 * * *"`
	} `envconfig:""`

	Limits struct {
		DigestItems     int `envconfig:"DIGEST_MAX_ITEMS" default:"5"`
		BrowseWindow    int `envconfig:"BROWSE_WINDOW" default:"100"`
		AIWindowSeconds int `envconfig:"AI_WINDOW_SECONDS" default:"5"`
	} `envconfig:""`

	AdminAPIKey string `envconfig:"ADMIN_API_KEY"`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
