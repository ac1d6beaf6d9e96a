package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"orsi/internal/config"
	"orsi/internal/redisstore"
	"orsi/internal/telegram"
	"orsi/internal/web"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the websocket chat and, with BOT_TOKEN set, the Telegram bot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			setupLogger(cfg.Log.Level, os.Stdout)
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(parent context.Context, cfg *config.Config) error {
	log.Info().
		Str("settings_backend", cfg.Settings.Backend).
		Bool("telegram", cfg.TelegramEnabled()).
		Bool("dev_polling", cfg.DevPolling).
		Msg("starting orsi")

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	errCh := make(chan error, 2)
	mux := http.NewServeMux()
	mux.HandleFunc(cfg.HTTP.HealthPath, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle(cfg.HTTP.MetricsPath, promhttp.Handler())
	mux.Handle(cfg.HTTP.WSPath, web.NewHandler(web.Config{
		Session:        a.session,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		Logger:         log.Logger,
		Metrics:        a.metrics,
	}))

	var updater *ext.Updater
	var service *telegram.Service
	if cfg.TelegramEnabled() {
		updater, service, err = startTelegram(cfg, a, mux)
		if err != nil {
			return err
		}
		defer service.Close()
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTP.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.HTTP.ListenAddr).Str("ws_path", cfg.HTTP.WSPath).Msg("http server started")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("runtime error")
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if updater != nil {
		if err := updater.Stop(); err != nil {
			log.Error().Err(err).Msg("failed to stop updater")
		}
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to stop http server")
	}

	log.Info().Msg("stopped")
	return nil
}

func startTelegram(cfg *config.Config, a *app, mux *http.ServeMux) (*ext.Updater, *telegram.Service, error) {
	bot, err := gotgbot.NewBot(cfg.BotToken, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("create telegram bot: %s", sanitizeTelegramErr(err, cfg.BotToken))
	}
	log.Info().Str("bot_username", bot.User.Username).Int64("bot_id", bot.User.Id).Msg("telegram bot initialized")

	logTelegramErr := func(err error) {
		log.Error().Str("component", "telegram").Msg(sanitizeTelegramErr(err, cfg.BotToken))
	}
	dispatcher := ext.NewDispatcher(&ext.DispatcherOpts{
		MaxRoutines:      100,
		UnhandledErrFunc: logTelegramErr,
		Processor: telegram.DedupeProcessor{
			Dedupe:  redisstore.NewUpdateDeduplicator(a.rdb, cfg.Redis.UpdateTTL),
			Metrics: a.metrics,
			Logger:  log.Logger,
		},
	})
	service := telegram.NewService(telegram.Config{
		Session:    a.session,
		Redis:      a.rdb,
		Logger:     log.Logger,
		Metrics:    a.metrics,
		WizardTTL:  cfg.Redis.WizardTTL,
		SessionTTL: cfg.ChatSessionTTL,
	})
	service.Register(dispatcher)
	updater := ext.NewUpdater(dispatcher, &ext.UpdaterOpts{
		UnhandledErrFunc: logTelegramErr,
	})

	if cfg.DevPolling {
		if err := updater.StartPolling(bot, &ext.PollingOpts{
			EnableWebhookDeletion: true,
			DropPendingUpdates:    true,
			GetUpdatesOpts: &gotgbot.GetUpdatesOpts{
				Timeout: 50,
				RequestOpts: &gotgbot.RequestOpts{
					Timeout: 60 * time.Second,
				},
			},
		}); err != nil {
			service.Close()
			return nil, nil, fmt.Errorf("start polling: %s", sanitizeTelegramErr(err, cfg.BotToken))
		}
		log.Info().Msg("polling mode started")
		return updater, service, nil
	}

	path := cfg.Webhook.SecretPath
	if path == "" {
		path = "telegram"
	}
	if err := updater.AddWebhook(bot, path, &ext.AddWebhookOpts{SecretToken: cfg.Webhook.SecretToken}); err != nil {
		service.Close()
		return nil, nil, fmt.Errorf("configure webhook handler: %w", err)
	}
	webhookURL := strings.TrimSuffix(cfg.Webhook.PublicURL, "/") + "/" + path
	if _, err := bot.SetWebhook(webhookURL, &gotgbot.SetWebhookOpts{
		DropPendingUpdates: false,
		SecretToken:        cfg.Webhook.SecretToken,
	}); err != nil {
		service.Close()
		return nil, nil, fmt.Errorf("set telegram webhook: %s", sanitizeTelegramErr(err, cfg.BotToken))
	}
	log.Info().Str("webhook_url", webhookURL).Msg("webhook registered")

	handler := updater.GetHandlerFunc("/")
	mux.HandleFunc("/"+path, http.TimeoutHandler(handler, cfg.Webhook.WebhookTimeout, "timeout").ServeHTTP)
	return updater, service, nil
}
