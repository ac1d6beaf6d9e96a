package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"orsi/internal/config"
	"orsi/internal/providers"
	"orsi/internal/terminal"
	"orsi/internal/voice"
)

func newChatCmd() *cobra.Command {
	var partition string
	var history string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to ORSI in the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			setupLogger(cfg.Log.Level, os.Stderr)

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer cancel()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			var synth voice.Synthesizer
			if cfg.Voice.Command != "" {
				synth = &voice.CommandSynthesizer{Command: cfg.Voice.Command}
			}
			repl := terminal.New(ctx, terminal.Config{
				Session:   a.session,
				Partition: partition,
				Locator: terminal.HomeLocator{
					Position: providers.Position{Latitude: cfg.Home.Latitude, Longitude: cfg.Home.Longitude},
					Set:      cfg.Home.Set,
				},
				Opener:      terminal.BrowserOpener{},
				Synthesizer: synth,
				HistoryFile: history,
				Out:         cmd.OutOrStdout(),
				Logger:      log.Logger,
			})
			return repl.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&partition, "partition", "terminal", "settings partition used by this terminal")
	cmd.Flags().StringVar(&history, "history", defaultHistoryFile(), "line history file, empty to disable")
	return cmd
}

func defaultHistoryFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "orsi", "history")
}
