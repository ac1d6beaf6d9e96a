package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"orsi/internal/config"
	"orsi/internal/metrics"
	"orsi/internal/providers/registry"
	"orsi/internal/redisstore"
	"orsi/internal/router"
	"orsi/internal/session"
	"orsi/internal/settings"
	"orsi/internal/storage"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "orsi",
		Short:        "ORSI, assistente pessoal em português",
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newChatCmd(), newSettingsCmd())
	return root
}

// app holds the components shared by every surface.
type app struct {
	cfg     *config.Config
	store   *storage.Store
	rdb     *redis.Client
	metrics *metrics.Metrics
	session session.Config
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, metrics: metrics.Global()}

	if cfg.RedisEnabled() {
		a.rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := a.rdb.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
	}

	var kv settings.KV
	switch cfg.Settings.Backend {
	case config.BackendRedis:
		kv = redisstore.NewKV(a.rdb)
	default:
		store, err := storage.Open(ctx, cfg.DB.Driver, cfg.DB.DSN, cfg.DB.AutoMigrate)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("initialize storage: %w", err)
		}
		a.store = store
		kv = store
	}

	set, _ := registry.Build(registry.BuildOptions{
		Providers:  cfg.Providers,
		HTTPClient: &http.Client{},
	})
	a.session = session.Config{
		Router: router.New(router.Config{
			Providers: set,
			Logger:    log.Logger,
			Metrics:   a.metrics,
		}),
		Store:          settings.NewStore(kv),
		Custom:         registry.NewCustomOptions(cfg.Providers),
		Logger:         log.Logger,
		Metrics:        a.metrics,
		Locale:         cfg.Voice.Locale,
		CaptureTimeout: cfg.Voice.CaptureTimeout,
	}
	return a, nil
}

func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close storage")
		}
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
}

func setupLogger(level string, w io.Writer) {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(parseLogLevel(level))
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
}

func parseLogLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

func sanitizeTelegramErr(err error, token string) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if strings.TrimSpace(token) == "" {
		return msg
	}

	msg = strings.ReplaceAll(msg, token, "<redacted-token>")
	if idx := strings.Index(token, ":"); idx > 0 {
		botID := token[:idx]
		msg = strings.ReplaceAll(msg, "/bot"+botID+":", "/bot<redacted>:")
		msg = strings.ReplaceAll(msg, "bot"+botID+"/", "bot<redacted>/")
	}
	return msg
}
