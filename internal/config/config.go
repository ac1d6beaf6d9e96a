package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	BackendSQL   = "sql"
	BackendRedis = "redis"

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var (
	ErrRedisRequired   = errors.New("REDIS_ADDR is required for the redis settings backend and the telegram channel")
	ErrMissingWebhook  = errors.New("WEBHOOK_URL is required when DEV_POLLING is false")
	ErrMissingDatabase = errors.New("DB_DSN is required")
)

type Config struct {
	BotToken   string
	DevPolling bool
	// Idle Telegram chat sessions are closed after this.
	ChatSessionTTL time.Duration

	HTTP      HTTPConfig
	Webhook   WebhookConfig
	Redis     RedisConfig
	DB        DBConfig
	Settings  SettingsConfig
	Providers ProvidersConfig
	Voice     VoiceConfig
	Home      HomeConfig
	Log       LogConfig
}

type HTTPConfig struct {
	ListenAddr     string
	HealthPath     string
	MetricsPath    string
	WSPath         string
	AllowedOrigins []string
}

type WebhookConfig struct {
	PublicURL      string
	SecretPath     string
	SecretToken    string
	WebhookTimeout time.Duration
}

type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	UpdateTTL time.Duration
	WizardTTL time.Duration
}

type DBConfig struct {
	Driver      string
	DSN         string
	AutoMigrate bool
}

type SettingsConfig struct {
	Backend string
}

// ProvidersConfig holds the endpoints of every built-in adapter.
type ProvidersConfig struct {
	Timeout       time.Duration
	LocateTimeout time.Duration

	WeatherURL         string
	WeatherCustomerURL string
	NewsFeedURL        string
	NewsAPIURL         string
	CurrencyURL        string
	TimeURL            string
	TimeLabel          string
	QuoteURL           string
	JokeURL            string
	SearchURL          string

	// User-defined adapters only reach public addresses unless
	// CustomAllowPrivate is set; a non-empty host list narrows them further.
	CustomAllowedHosts []string
	CustomAllowPrivate bool
}

type VoiceConfig struct {
	Locale         string
	Command        string
	CaptureTimeout time.Duration
}

// HomeConfig is the fixed position reported by the terminal geolocation capability.
type HomeConfig struct {
	Set       bool
	Latitude  float64
	Longitude float64
}

type LogConfig struct {
	Level string
}

func (c *Config) TelegramEnabled() bool {
	return strings.TrimSpace(c.BotToken) != ""
}

func (c *Config) RedisEnabled() bool {
	return strings.TrimSpace(c.Redis.Addr) != ""
}

func Load() (*Config, error) {
	cfg := &Config{
		BotToken:       mustEnv("BOT_TOKEN", ""),
		DevPolling:     mustBool("DEV_POLLING", true),
		ChatSessionTTL: mustDuration("TELEGRAM_SESSION_TTL", 2*time.Hour),
		HTTP: HTTPConfig{
			ListenAddr:     mustEnv("HTTP_LISTEN_ADDR", ":8080"),
			HealthPath:     mustEnv("HEALTH_PATH", "/healthz"),
			MetricsPath:    mustEnv("METRICS_PATH", "/metrics"),
			WSPath:         mustEnv("WS_PATH", "/ws"),
			AllowedOrigins: mustList("WS_ALLOWED_ORIGINS"),
		},
		Webhook: WebhookConfig{
			PublicURL:      mustEnv("WEBHOOK_URL", ""),
			SecretPath:     strings.Trim(mustEnv("WEBHOOK_SECRET_PATH", "telegram"), "/"),
			SecretToken:    mustEnv("WEBHOOK_SECRET_TOKEN", ""),
			WebhookTimeout: mustDuration("WEBHOOK_TIMEOUT", 8*time.Second),
		},
		Redis: RedisConfig{
			Addr:      mustEnv("REDIS_ADDR", ""),
			Password:  mustEnv("REDIS_PASSWORD", ""),
			DB:        mustInt("REDIS_DB", 0),
			UpdateTTL: mustDuration("UPDATE_DEDUPE_TTL", 6*time.Hour),
			WizardTTL: mustDuration("WIZARD_TTL", 20*time.Minute),
		},
		DB: DBConfig{
			Driver:      strings.ToLower(mustEnv("DB_DRIVER", DriverSQLite)),
			DSN:         mustEnv("DB_DSN", "orsi.db"),
			AutoMigrate: mustBool("AUTO_MIGRATE", true),
		},
		Settings: SettingsConfig{
			Backend: strings.ToLower(mustEnv("SETTINGS_BACKEND", BackendSQL)),
		},
		Providers: ProvidersConfig{
			Timeout:            mustDuration("PROVIDER_TIMEOUT", 10*time.Second),
			LocateTimeout:      mustDuration("LOCATE_TIMEOUT", 30*time.Second),
			WeatherURL:         mustEnv("WEATHER_URL", "https://api.open-meteo.com/v1/forecast"),
			WeatherCustomerURL: mustEnv("WEATHER_CUSTOMER_URL", "https://customer-api.open-meteo.com/v1/forecast"),
			NewsFeedURL:        mustEnv("NEWS_FEED_URL", "https://g1.globo.com/rss/g1/"),
			NewsAPIURL:         mustEnv("NEWSAPI_URL", "https://newsapi.org/v2/top-headlines?country=br"),
			CurrencyURL:        mustEnv("CURRENCY_URL", "https://api.exchangerate-api.com/v4/latest/USD"),
			TimeURL:            mustEnv("TIME_URL", "https://worldtimeapi.org/api/timezone/America/Sao_Paulo"),
			TimeLabel:          mustEnv("TIME_LABEL", "São Paulo"),
			QuoteURL:           mustEnv("QUOTE_URL", "https://api.quotable.io/random"),
			JokeURL:            mustEnv("JOKE_URL", "https://v2.jokeapi.dev/joke/Any?lang=pt&type=single"),
			SearchURL:          mustEnv("SEARCH_URL", "https://www.google.com/search"),
			CustomAllowedHosts: mustList("CUSTOM_API_ALLOWED_HOSTS"),
			CustomAllowPrivate: mustBool("CUSTOM_API_ALLOW_PRIVATE", false),
		},
		Voice: VoiceConfig{
			Locale:         mustEnv("VOICE_LOCALE", "pt-BR"),
			Command:        mustEnv("VOICE_COMMAND", ""),
			CaptureTimeout: mustDuration("CAPTURE_TIMEOUT", 60*time.Second),
		},
		Log: LogConfig{
			Level: strings.ToLower(mustEnv("LOG_LEVEL", "info")),
		},
	}

	lat, latOK := mustFloat("HOME_LATITUDE")
	lon, lonOK := mustFloat("HOME_LONGITUDE")
	if latOK && lonOK {
		cfg.Home = HomeConfig{Set: true, Latitude: lat, Longitude: lon}
	}

	switch cfg.DB.Driver {
	case "sqlite3":
		cfg.DB.Driver = DriverSQLite
	case "pgx":
		cfg.DB.Driver = DriverPostgres
	}
	if cfg.DB.Driver != DriverSQLite && cfg.DB.Driver != DriverPostgres {
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DB.Driver)
	}
	if cfg.Settings.Backend != BackendSQL && cfg.Settings.Backend != BackendRedis {
		return nil, fmt.Errorf("unsupported SETTINGS_BACKEND %q", cfg.Settings.Backend)
	}
	if cfg.Settings.Backend == BackendSQL && cfg.DB.DSN == "" {
		return nil, ErrMissingDatabase
	}
	if (cfg.Settings.Backend == BackendRedis || cfg.TelegramEnabled()) && !cfg.RedisEnabled() {
		return nil, ErrRedisRequired
	}
	if cfg.TelegramEnabled() && !cfg.DevPolling && cfg.Webhook.PublicURL == "" {
		return nil, ErrMissingWebhook
	}

	return cfg, nil
}

func mustEnv(key string, def string) string {
	if v := os.Getenv(key); v != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func mustInt(key string, def int) int {
	v := mustEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func mustBool(key string, def bool) bool {
	v := mustEnv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func mustDuration(key string, def time.Duration) time.Duration {
	v := mustEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func mustFloat(key string) (float64, bool) {
	v := mustEnv(key, "")
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func mustList(key string) []string {
	v := mustEnv(key, "")
	if v == "" {
		return nil
	}
	out := make([]string, 0)
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
