package main

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/example/go-ronlp/internal/config"
	"github.com/example/go-ronlp/internal/server"
	"github.com/example/go-ronlp/internal/similarity"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var noDiacritics bool
	var noSimilarity bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			restorer, scorer, closeAll, err := openPipelines(ctx, cfg, !noDiacritics, !noSimilarity)
			if err != nil {
				return err
			}
			defer closeAll()

			return server.New(cfg, restorer, scorer).Start(ctx)
		},
	}

	cmd.Flags().BoolVar(&noDiacritics, "no-diacritics", false, "Do not load the diacritics pipeline")
	cmd.Flags().BoolVar(&noSimilarity, "no-similarity", false, "Do not load the similarity pipeline")

	return cmd
}

// openPipelines loads the enabled pipelines. A pipeline whose model fails to
// load is logged and left disabled; at least one must come up.
func openPipelines(ctx context.Context, cfg config.Config, withDiacritics, withSimilarity bool) (server.Restorer, server.Scorer, func(), error) {
	var (
		restorer server.Restorer
		scorer   server.Scorer
		closers  []func()
	)

	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if withDiacritics {
		r, closeFn, err := openRestorer(ctx, cfg)
		if err != nil {
			slog.Warn("diacritics pipeline disabled", "error", err)
		} else {
			restorer = r
			closers = append(closers, closeFn)
		}
	}

	if withSimilarity {
		svc, err := similarity.Open(cfg)
		if err != nil {
			slog.Warn("similarity pipeline disabled", "error", err)
		} else {
			scorer = svc
			closers = append(closers, svc.Close)
		}
	}

	if restorer == nil && scorer == nil {
		closeAll()
		return nil, nil, nil, errors.New("no pipeline could be loaded; run `ronlp doctor`")
	}

	return restorer, scorer, closeAll, nil
}
