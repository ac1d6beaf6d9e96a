package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"orsi/internal/config"
	"orsi/internal/settings"
	"orsi/internal/storage"
)

// newSettingsCmd inspects the SQL settings backend.
func newSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Inspect stored settings (sql backend)",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List partitions with saved settings",
			Args:  cobra.NoArgs,
			RunE: withStore(func(ctx context.Context, store *storage.Store, out io.Writer, _ []string) error {
				parts, err := store.ListPartitions(ctx)
				if err != nil {
					return err
				}
				for _, p := range parts {
					fmt.Fprintln(out, p)
				}
				return nil
			}),
		},
		&cobra.Command{
			Use:   "show <partition>",
			Short: "Print the effective settings of a partition",
			Args:  cobra.ExactArgs(1),
			RunE: withStore(func(ctx context.Context, store *storage.Store, out io.Writer, args []string) error {
				return showSettings(ctx, store, out, args[0])
			}),
		},
		&cobra.Command{
			Use:   "reset <partition>",
			Short: "Delete the saved settings of a partition",
			Args:  cobra.ExactArgs(1),
			RunE: withStore(func(ctx context.Context, store *storage.Store, out io.Writer, args []string) error {
				if err := store.DeleteValue(ctx, args[0], settings.StorageKey); err != nil {
					if errors.Is(err, storage.ErrNotFound) {
						return fmt.Errorf("partition %q has no saved settings", args[0])
					}
					return err
				}
				fmt.Fprintf(out, "settings of %s reset to defaults\n", args[0])
				return nil
			}),
		},
	)
	return cmd
}

func withStore(fn func(ctx context.Context, store *storage.Store, out io.Writer, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if cfg.Settings.Backend != config.BackendSQL {
			return fmt.Errorf("settings commands need SETTINGS_BACKEND=%s", config.BackendSQL)
		}
		store, err := storage.Open(cmd.Context(), cfg.DB.Driver, cfg.DB.DSN, cfg.DB.AutoMigrate)
		if err != nil {
			return fmt.Errorf("initialize storage: %w", err)
		}
		defer store.Close()
		return fn(cmd.Context(), store, cmd.OutOrStdout(), args)
	}
}

func showSettings(ctx context.Context, store *storage.Store, out io.Writer, partition string) error {
	s := settings.Defaults()
	raw, err := store.GetValue(ctx, partition, settings.StorageKey)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return err
	default:
		if s, err = settings.Decode([]byte(raw)); err != nil {
			return fmt.Errorf("decode settings of %s: %w", partition, err)
		}
	}
	if s.WeatherAPIKey != "" {
		s.WeatherAPIKey = "****"
	}
	if s.NewsAPIKey != "" {
		s.NewsAPIKey = "****"
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}
