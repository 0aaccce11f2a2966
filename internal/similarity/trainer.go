package similarity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/example/go-ronlp/internal/config"
	"github.com/example/go-ronlp/internal/dataset"
	"github.com/example/go-ronlp/internal/siamese"
)

// TrainerConfig is the siamese training schedule.
type TrainerConfig struct {
	Epochs       int
	BatchSize    int
	LearningRate float64
	EvalEvery    int
	Seed         uint64
	Sizes        []int
	EmbedBatch   int
	EmbedWorkers int
}

// DefaultTrainerConfig is Adadelta at lr 0.007, batches of 100, evaluated every 10 epochs.
func DefaultTrainerConfig() TrainerConfig {
	return TrainerConfig{
		Epochs:       3000,
		BatchSize:    100,
		LearningRate: 0.007,
		EvalEvery:    10,
		Seed:         42,
		Sizes:        siamese.DefaultSizes(),
		EmbedBatch:   DefaultEmbedBatch,
		EmbedWorkers: 2,
	}
}

// TrainerConfigFrom applies the configured schedule on top of the defaults.
func TrainerConfigFrom(sc config.SimilarityConfig) TrainerConfig {
	c := DefaultTrainerConfig()
	if sc.Epochs > 0 {
		c.Epochs = sc.Epochs
	}
	if sc.BatchSize > 0 {
		c.BatchSize = sc.BatchSize
	}
	if sc.LearningRate > 0 {
		c.LearningRate = sc.LearningRate
	}
	if sc.EvalEvery > 0 {
		c.EvalEvery = sc.EvalEvery
	}
	c.Seed = sc.Seed

	return c
}

func (c TrainerConfig) validate() error {
	switch {
	case c.Epochs < 1:
		return fmt.Errorf("similarity: epochs must be positive, got %d", c.Epochs)
	case c.BatchSize < 1:
		return fmt.Errorf("similarity: batch size must be positive, got %d", c.BatchSize)
	case c.EvalEvery < 1:
		return fmt.Errorf("similarity: eval interval must be positive, got %d", c.EvalEvery)
	case c.LearningRate <= 0:
		return fmt.Errorf("similarity: learning rate must be positive, got %v", c.LearningRate)
	}

	return nil
}

// Result summarizes a training run.
type Result struct {
	Epochs      int
	FinalLoss   float64
	BestPearson float64
	BestEpoch   int
	Saved       bool
	Checkpoint  string
}

// Trainer fits a siamese network on cached embeddings.
type Trainer struct {
	embedder Embedder
	cfg      TrainerConfig
	logger   *slog.Logger
}

// NewTrainer returns a trainer that logs through slog.Default.
func NewTrainer(emb Embedder, cfg TrainerConfig) *Trainer {
	if len(cfg.Sizes) == 0 {
		cfg.Sizes = siamese.DefaultSizes()
	}

	return &Trainer{embedder: emb, cfg: cfg, logger: slog.Default()}
}

// Train embeds both datasets once, then runs the epoch loop. Every EvalEvery
// epochs (starting with the first) it evaluates on valid and writes the
// checkpoint to dir whenever Pearson improves on the best so far, which
// starts at 0.
func (t *Trainer) Train(ctx context.Context, train, valid []dataset.Pair, dir string) (Result, error) {
	if err := t.cfg.validate(); err != nil {
		return Result{}, err
	}

	if len(train) == 0 {
		return Result{}, errors.New("similarity: empty training set")
	}

	started := time.Now()

	trainEmb, err := EmbedPairs(ctx, t.embedder, train, t.cfg.EmbedBatch, t.cfg.EmbedWorkers)
	if err != nil {
		return Result{}, fmt.Errorf("embed training set: %w", err)
	}

	validEmb, err := EmbedPairs(ctx, t.embedder, valid, t.cfg.EmbedBatch, t.cfg.EmbedWorkers)
	if err != nil {
		return Result{}, fmt.Errorf("embed validation set: %w", err)
	}

	t.logger.Info("embeddings cached",
		"train", trainEmb.Len(),
		"valid", validEmb.Len(),
		"elapsed", time.Since(started).Round(time.Millisecond),
	)

	net, err := siamese.New(t.cfg.Sizes, t.cfg.Seed)
	if err != nil {
		return Result{}, err
	}

	if err := trainEmb.checkDim(net.InputDim()); err != nil {
		return Result{}, err
	}

	if err := validEmb.checkDim(net.InputDim()); err != nil {
		return Result{}, err
	}

	targets := make([]float64, len(trainEmb.Scores))
	for i, s := range trainEmb.Scores {
		targets[i] = s / siamese.MaxScore
	}

	opt := siamese.NewAdadelta(t.cfg.LearningRate)
	res := Result{Checkpoint: siamese.CheckpointPath(dir)}

	for epoch := range t.cfg.Epochs {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		running := 0.0
		batches := 0
		for start := 0; start < len(targets); start += t.cfg.BatchSize {
			end := min(start+t.cfg.BatchSize, len(targets))

			loss, err := net.TrainStep(trainEmb.A[start:end], trainEmb.B[start:end], targets[start:end], opt)
			if err != nil {
				return res, fmt.Errorf("epoch %d: %w", epoch, err)
			}

			running += loss
			batches++
		}

		res.Epochs = epoch + 1
		res.FinalLoss = running / float64(batches)

		if epoch%t.cfg.EvalEvery != 0 || validEmb.Len() < 2 {
			continue
		}

		pearson, err := evaluate(net, validEmb)
		if err != nil {
			return res, fmt.Errorf("epoch %d: evaluate: %w", epoch, err)
		}

		t.logger.Info("epoch", "epoch", epoch, "loss", res.FinalLoss, "pearson", pearson, "best", res.BestPearson)

		if pearson <= res.BestPearson {
			continue
		}

		res.BestPearson = pearson
		res.BestEpoch = epoch

		meta := map[string]string{
			"epoch":   strconv.Itoa(epoch),
			"pearson": strconv.FormatFloat(pearson, 'f', 6, 64),
		}
		if err := net.Save(dir, meta); err != nil {
			return res, err
		}

		res.Saved = true
	}

	t.logger.Info("training finished",
		"epochs", res.Epochs,
		"best_pearson", res.BestPearson,
		"best_epoch", res.BestEpoch,
		"saved", res.Saved,
		"elapsed", time.Since(started).Round(time.Millisecond),
	)

	return res, nil
}
