package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/go-ronlp/internal/config"
	"github.com/example/go-ronlp/internal/diacritics"
	"github.com/example/go-ronlp/internal/doctor"
	"github.com/example/go-ronlp/internal/onnx"
	"github.com/example/go-ronlp/internal/siamese"
	"github.com/example/go-ronlp/internal/similarity"
	"github.com/spf13/cobra"
)

func newDoctorCmd() *cobra.Command {
	var skipRuntime bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run local runtime, model and dictionary checks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			result := doctor.Run(doctorConfig(cmd.Context(), cfg, skipRuntime), out)

			if result.Failed() {
				for _, f := range result.Failures() {
					fmt.Fprintf(cmd.ErrOrStderr(), "FAIL: %s\n", f)
				}

				return errors.New("doctor checks failed")
			}

			_, _ = fmt.Fprintln(out, "doctor checks passed")

			return nil
		},
	}

	cmd.Flags().BoolVar(&skipRuntime, "skip-runtime", false, "Skip the ONNX Runtime library check")

	return cmd
}

func doctorConfig(ctx context.Context, cfg config.Config, skipRuntime bool) doctor.Config {
	return doctor.Config{
		RuntimeVersion: func() (string, error) { return probeRuntime(cfg.Runtime) },
		SkipRuntime:    skipRuntime,
		Models: []doctor.ModelDir{
			{
				Name: "diacritics",
				Dir:  cfg.Paths.DiacriticsModelDir,
				Files: []string{
					onnx.ManifestName,
					diacritics.SentencePieceFile,
					diacritics.TokenizerFile,
					diacritics.ModelConfigFile,
				},
			},
			{
				Name:  "embedder",
				Dir:   cfg.Paths.EmbedderModelDir,
				Files: []string{onnx.ManifestName, similarity.VocabFile},
			},
		},
		Dictionary: func() (string, error) {
			dict, err := loadDictionary(ctx, cfg)
			if err != nil {
				return "", err
			}
			if dict == nil {
				return "", fmt.Errorf("no dictionary in %s store; run `ronlp diacritics train`", cfg.Store.Backend)
			}

			return fmt.Sprintf("%d entries (%s store)", dict.Len(), cfg.Store.Backend), nil
		},
		Checkpoints: []string{siamese.CheckpointPath(cfg.Paths.SimilarityModelDir)},
	}
}

func probeRuntime(rt config.RuntimeConfig) (string, error) {
	info, err := onnx.DetectRuntime(rt)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s (%s)", info.LibraryPath, info.Version), nil
}
