package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/example/go-ronlp/internal/model"
	"github.com/spf13/cobra"
)

func newModelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Model acquisition and verification commands",
	}

	cmd.AddCommand(newModelDownloadCmd())
	cmd.AddCommand(newModelExportCmd())
	cmd.AddCommand(newModelVerifyCmd())
	return cmd
}

func newModelDownloadCmd() *cobra.Command {
	var repo string
	var outDir string

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download tokenizer assets and model config from Hugging Face",
		Long: "Download the pinned files of a model repository. Known repositories: " +
			strings.Join(model.KnownRepos(), ", "),
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			if outDir == "" {
				outDir = defaultModelDir(repo, cfg.Paths.DiacriticsModelDir, cfg.Paths.EmbedderModelDir)
			}

			err = model.Download(model.DownloadOptions{
				Repo:     repo,
				OutDir:   outDir,
				HFToken:  cfg.Hub.Token,
				CacheDir: cfg.Hub.CacheDir,
				Stdout:   cmd.OutOrStdout(),
			})
			if err != nil {
				return fmt.Errorf("model download failed: %w", err)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&repo, "repo", model.DiacriticsRepo, "Hugging Face model repository")
	cmd.Flags().StringVar(&outDir, "out-dir", "", "Target directory (default: the configured model dir for the repo)")

	return cmd
}

func newModelExportCmd() *cobra.Command {
	var repo string
	var outDir string
	var pythonBin string
	var opset int

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a model repository to ONNX graphs plus manifest.json",
		Long: "Export a Hugging Face checkpoint to ONNX with the optimum exporter and write the graph manifest.\n\n" +
			"This is a tooling command and requires Python with optimum[exporters], torch and transformers.\n" +
			"Known repositories: " + strings.Join(model.ExportRepos(), ", "),
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			if outDir == "" {
				outDir = defaultModelDir(repo, cfg.Paths.DiacriticsModelDir, cfg.Paths.EmbedderModelDir)
			}

			err = model.Export(model.ExportOptions{
				Repo:      repo,
				OutDir:    outDir,
				PythonBin: pythonBin,
				Opset:     opset,
				HFToken:   cfg.Hub.Token,
				Stdout:    cmd.OutOrStdout(),
				Stderr:    os.Stderr,
			})
			if err != nil {
				return fmt.Errorf(
					"model export failed: %w\nhint: this command requires Python tooling (optimum[exporters], torch, transformers)",
					err,
				)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&repo, "repo", model.DiacriticsRepo, "Hugging Face model repository")
	cmd.Flags().StringVar(&outDir, "out-dir", "", "Target directory (default: the configured model dir for the repo)")
	cmd.Flags().StringVar(&pythonBin, "python-bin", "", "Python interpreter for the exporter (auto-detected from optimum-cli by default)")
	cmd.Flags().IntVar(&opset, "opset", 0, "ONNX opset (0 keeps the exporter default)")

	return cmd
}

// defaultModelDir picks the configured directory of the pipeline that uses
// repo.
func defaultModelDir(repo, diacriticsDir, embedderDir string) string {
	if repo == model.EmbedderRepo {
		return embedderDir
	}

	return diacriticsDir
}

func newModelVerifyCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Load every graph of a model directory and run it once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			dirs := []string{dir}
			if dir == "" {
				dirs = []string{cfg.Paths.DiacriticsModelDir, cfg.Paths.EmbedderModelDir}
			}

			for _, d := range dirs {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "verifying %s\n", d)

				err := model.Verify(cmd.Context(), model.VerifyOptions{
					Dir:     d,
					Runtime: cfg.Runtime,
					Stdout:  cmd.OutOrStdout(),
					Stderr:  os.Stderr,
				})
				if err != nil {
					return fmt.Errorf("model verify failed: %w", err)
				}
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Model directory (default: both configured model dirs)")

	return cmd
}
