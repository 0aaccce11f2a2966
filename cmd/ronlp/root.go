package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/example/go-ronlp/internal/config"
	"github.com/example/go-ronlp/internal/diacritics"
	"github.com/example/go-ronlp/internal/dictstore"
	"github.com/example/go-ronlp/internal/server"
	"github.com/spf13/cobra"
)

var (
	cfgFile   string
	activeCfg config.Config
)

func NewRootCmd() *cobra.Command {
	defaults := config.DefaultConfig()

	cmd := &cobra.Command{
		Use:           "ronlp",
		Short:         "Romanian diacritics restoration and sentence similarity",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := config.Load(config.LoadOptions{
				Cmd:        cmd,
				ConfigFile: cfgFile,
				Defaults:   defaults,
			})
			if err != nil {
				return err
			}
			activeCfg = loaded
			setupLogger(loaded.LogLevel)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Optional config file (yaml|toml|json)")
	config.RegisterFlags(cmd.PersistentFlags(), defaults)

	cmd.AddCommand(newDiacriticsCmd())
	cmd.AddCommand(newSimilarityCmd())
	cmd.AddCommand(newModelCmd())
	cmd.AddCommand(newDatasetCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newHealthCmd())
	cmd.AddCommand(newDoctorCmd())

	return cmd
}

// setupLogger configures the process-wide slog default logger.
func setupLogger(levelStr string) {
	lvl, err := server.ParseLogLevel(levelStr)
	if err != nil {
		lvl = slog.LevelInfo
	}
	h := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(h))
}

func requireConfig() (config.Config, error) {
	if activeCfg.Store.Backend == "" {
		return config.Config{}, fmt.Errorf("configuration not loaded")
	}
	return activeCfg, nil
}

// loadDictionary reads the dictionary from the configured store. A store
// without a dictionary yields nil, which disables correction.
func loadDictionary(ctx context.Context, cfg config.Config) (*diacritics.Dictionary, error) {
	store, err := dictstore.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer func() { _ = store.Close() }()

	dict, err := store.Load(ctx)
	if errors.Is(err, dictstore.ErrNotFound) {
		slog.Warn("no diacritics dictionary; correction disabled", "backend", cfg.Store.Backend)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load dictionary: %w", err)
	}

	return dict, nil
}
