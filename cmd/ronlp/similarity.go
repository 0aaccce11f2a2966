package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/example/go-ronlp/internal/dataset"
	"github.com/example/go-ronlp/internal/similarity"
	"github.com/spf13/cobra"
)

func newSimilarityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "similarity",
		Short: "Train, evaluate and query the siamese similarity model",
	}

	cmd.AddCommand(newSimilarityTrainCmd())
	cmd.AddCommand(newSimilarityEvalCmd())
	cmd.AddCommand(newSimilarityScoreCmd())

	return cmd
}

func newSimilarityTrainCmd() *cobra.Command {
	var trainPath string
	var validPath string
	var modelDir string

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train the siamese reducer on frozen sentence embeddings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			if modelDir == "" {
				modelDir = cfg.Paths.SimilarityModelDir
			}

			train, err := dataset.Load(trainPath)
			if err != nil {
				return err
			}

			valid, err := dataset.Load(validPath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			emb, err := similarity.OpenEmbedder(cfg.Paths.EmbedderModelDir, cfg.Runtime, cfg.Similarity.MaxSeqLen)
			if err != nil {
				return err
			}
			defer emb.Close()

			res, err := similarity.NewTrainer(emb, similarity.TrainerConfigFrom(cfg.Similarity)).
				Train(ctx, train, valid, modelDir)
			if err != nil {
				return err
			}

			return printTrainResult(cmd, res)
		},
	}

	cmd.Flags().StringVar(&trainPath, "train", "", "Training pairs (csv, tsv or parquet)")
	cmd.Flags().StringVar(&validPath, "valid", "", "Validation pairs (csv, tsv or parquet)")
	cmd.Flags().StringVar(&modelDir, "model-dir", "", "Checkpoint directory (default: paths.similarity_model_dir)")
	_ = cmd.MarkFlagRequired("train")
	_ = cmd.MarkFlagRequired("valid")

	return cmd
}

func printTrainResult(cmd *cobra.Command, res similarity.Result) error {
	w := cmd.OutOrStdout()
	if !res.Saved {
		_, err := fmt.Fprintf(w, "trained %d epochs (loss %.4f); validation pearson never exceeded 0, no checkpoint written\n",
			res.Epochs, res.FinalLoss)
		return err
	}

	_, err := fmt.Fprintf(w, "trained %d epochs (loss %.4f); best pearson %.4f at epoch %d -> %s\n",
		res.Epochs, res.FinalLoss, res.BestPearson, res.BestEpoch, res.Checkpoint)
	return err
}

func newSimilarityEvalCmd() *cobra.Command {
	var testPath string

	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Report the Pearson correlation on a test set",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			pairs, err := dataset.Load(testPath)
			if err != nil {
				return err
			}

			svc, err := similarity.Open(cfg)
			if err != nil {
				return err
			}
			defer svc.Close()

			pearson, err := svc.Evaluate(cmd.Context(), pairs)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "pearson: %.4f (%d pairs)\n", pearson, len(pairs))
			return err
		},
	}

	cmd.Flags().StringVar(&testPath, "test", "", "Test pairs (csv, tsv or parquet)")
	_ = cmd.MarkFlagRequired("test")

	return cmd
}

func newSimilarityScoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "score TEXT_A TEXT_B",
		Short: "Score the similarity of two texts in [0, 5]",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			svc, err := similarity.Open(cfg)
			if err != nil {
				return err
			}
			defer svc.Close()

			score, err := svc.Score(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%.4f\n", score)
			return err
		},
	}
}
