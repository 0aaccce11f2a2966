package main

import (
	"fmt"

	"github.com/example/go-ronlp/internal/dataset"
	"github.com/spf13/cobra"
)

func newDatasetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dataset",
		Short: "Similarity dataset commands",
	}

	cmd.AddCommand(newDatasetFetchCmd())

	return cmd
}

func newDatasetFetchCmd() *cobra.Command {
	var repo string
	var files []string
	var outDir string

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download dataset splits from the Hugging Face hub",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			paths, err := dataset.Fetch(dataset.FetchOptions{
				Repo:     repo,
				Files:    files,
				OutDir:   outDir,
				Token:    cfg.Hub.Token,
				CacheDir: cfg.Hub.CacheDir,
			})
			if err != nil {
				return err
			}

			for _, p := range paths {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), p); err != nil {
					return err
				}
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&repo, "repo", dataset.DefaultRepo, "Hugging Face dataset repository")
	cmd.Flags().StringSliceVar(&files, "file", nil, "Repository file to fetch (repeatable)")
	cmd.Flags().StringVar(&outDir, "out-dir", "data", "Directory to copy the files into")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}
