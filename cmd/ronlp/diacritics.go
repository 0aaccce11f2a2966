package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/example/go-ronlp/internal/config"
	"github.com/example/go-ronlp/internal/diacritics"
	"github.com/example/go-ronlp/internal/dictstore"
	"github.com/spf13/cobra"
)

func newDiacriticsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diacritics",
		Short: "Build the mandatory-diacritics dictionary and restore text",
	}

	cmd.AddCommand(newDiacriticsTrainCmd())
	cmd.AddCommand(newDiacriticsRestoreCmd())
	cmd.AddCommand(newDiacriticsDumpCmd())

	return cmd
}

func newDiacriticsTrainCmd() *cobra.Command {
	var corpus string
	var banned string

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Build the mandatory-diacritics dictionary from a corpus",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			dict, err := buildDictionary(corpus, banned, cfg.Diacritics)
			if err != nil {
				return err
			}

			store, err := dictstore.Open(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.Save(cmd.Context(), dict); err != nil {
				return fmt.Errorf("save dictionary: %w", err)
			}

			meta := dict.Metadata()
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "dictionary: %d entries from %d texts (%d words), backend %s\n",
				dict.Len(), meta.CorpusTexts, meta.CorpusWords, cfg.Store.Backend)
			return err
		},
	}

	cmd.Flags().StringVar(&corpus, "corpus", "", "Corpus file (plain text lines or JSON Lines with a \"text\" field)")
	cmd.Flags().StringVar(&banned, "banned", "", "Base letters never expanded when matching variants, e.g. \"a\"")
	_ = cmd.MarkFlagRequired("corpus")

	return cmd
}

func buildDictionary(corpus, banned string, dc config.DiacriticsConfig) (*diacritics.Dictionary, error) {
	opts := diacritics.BuilderOptionsFrom(dc)
	opts.Banned = []rune(banned)

	b := diacritics.NewBuilder(opts)
	n, err := diacritics.ReadCorpus(corpus, dc.CorpusFormat, func(text string) error {
		b.Add(text)
		return nil
	})
	if err != nil {
		return nil, err
	}

	texts, words := b.Stats()
	slog.Info("corpus read", "path", corpus, "lines", n, "texts", texts, "words", words)

	return b.Build(), nil
}

func newDiacriticsRestoreCmd() *cobra.Command {
	var inPath string
	var outPath string

	cmd := &cobra.Command{
		Use:   "restore [TEXT]",
		Short: "Restore diacritics in a file or a single line",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && (inPath == "" || outPath == "") {
				return errors.New("either TEXT or both --in and --out are required")
			}

			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			restorer, closeFn, err := openRestorer(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeFn()

			return runRestore(ctx, restorer, args, inPath, outPath, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&inPath, "in", "", "Input text file, one text per line")
	cmd.Flags().StringVar(&outPath, "out", "", "Output file")

	return cmd
}

func openRestorer(ctx context.Context, cfg config.Config) (*diacritics.Restorer, func(), error) {
	dict, err := loadDictionary(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	gen, err := diacritics.OpenGenerator(cfg.Paths.DiacriticsModelDir, cfg.Runtime, cfg.Diacritics)
	if err != nil {
		return nil, nil, err
	}

	return diacritics.NewRestorer(gen, dict, diacritics.OptionsFrom(cfg.Diacritics)), gen.Close, nil
}

func runRestore(ctx context.Context, r *diacritics.Restorer, args []string, inPath, outPath string, w io.Writer) error {
	if len(args) == 1 {
		out, err := r.Restore(ctx, args[0])
		if err != nil {
			return err
		}

		_, err = fmt.Fprintln(w, out)
		return err
	}

	lines, err := r.RestoreFile(ctx, inPath, outPath)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "restored %d lines -> %s\n", lines, outPath)
	return err
}

func newDiacriticsDumpCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print every surface form the dictionary corrects, tab-separated from its fixed form",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			dict, err := loadDictionary(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			if dict == nil {
				return errors.New("no dictionary in the configured store; run diacritics train first")
			}

			return dumpDictionary(dict, limit, cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Skip words with more than this many variants (0 prints all)")

	return cmd
}

func dumpDictionary(dict *diacritics.Dictionary, limit int, w io.Writer) error {
	bw := bufio.NewWriter(w)

	var werr error
	dict.Entries(limit, func(surface, form string) bool {
		_, werr = fmt.Fprintf(bw, "%s\t%s\n", surface, form)
		return werr == nil
	})
	if werr != nil {
		return werr
	}

	return bw.Flush()
}
