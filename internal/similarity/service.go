package similarity

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/example/go-ronlp/internal/config"
	"github.com/example/go-ronlp/internal/dataset"
	"github.com/example/go-ronlp/internal/siamese"
)

// ErrDimensionMismatch is returned when embeddings do not match the input
// width of the siamese network.
var ErrDimensionMismatch = errors.New("similarity: embedding dimension mismatch")

// DefaultEmbedBatch is the number of texts sent to the embedder per call.
const DefaultEmbedBatch = 32

// Service scores sentence pairs.
type Service struct {
	embedder   Embedder
	net        *siamese.Network
	embedBatch int
}

// NewService combines an embedder with a trained network.
func NewService(emb Embedder, net *siamese.Network) *Service {
	return &Service{embedder: emb, net: net, embedBatch: DefaultEmbedBatch}
}

// Open loads the siamese checkpoint and the embedder model named by cfg.
func Open(cfg config.Config) (*Service, error) {
	net, _, err := siamese.Load(cfg.Paths.SimilarityModelDir)
	if err != nil {
		return nil, err
	}

	emb, err := OpenEmbedder(cfg.Paths.EmbedderModelDir, cfg.Runtime, cfg.Similarity.MaxSeqLen)
	if err != nil {
		return nil, err
	}

	return NewService(emb, net), nil
}

// Score returns the similarity of a and b in [0, 5].
func (s *Service) Score(ctx context.Context, a, b string) (float64, error) {
	vecs, err := s.embedder.Embed(ctx, []string{a, b})
	if err != nil {
		return 0, fmt.Errorf("embed pair: %w", err)
	}

	if len(vecs) != 2 {
		return 0, fmt.Errorf("embed pair: got %d vectors", len(vecs))
	}

	dim := s.net.InputDim()
	if len(vecs[0]) != dim || len(vecs[1]) != dim {
		return 0, fmt.Errorf("%w: got %d and %d, network expects %d", ErrDimensionMismatch, len(vecs[0]), len(vecs[1]), dim)
	}

	return s.net.Score(vecs[0], vecs[1])
}

// Evaluate returns the Pearson correlation between predicted and human
// scores over pairs.
func (s *Service) Evaluate(ctx context.Context, pairs []dataset.Pair) (float64, error) {
	if len(pairs) < 2 {
		return 0, fmt.Errorf("similarity: need at least 2 pairs to evaluate, got %d", len(pairs))
	}

	emb, err := EmbedPairs(ctx, s.embedder, pairs, s.embedBatch, 1)
	if err != nil {
		return 0, err
	}

	return evaluate(s.net, emb)
}

// Close releases the embedder.
func (s *Service) Close() {
	if s.embedder != nil {
		s.embedder.Close()
	}
}

func evaluate(net *siamese.Network, emb Embedded) (float64, error) {
	if err := emb.checkDim(net.InputDim()); err != nil {
		return 0, err
	}

	preds, err := net.Predict(emb.A, emb.B)
	if err != nil {
		return 0, err
	}

	floats.Scale(siamese.MaxScore, preds)

	return Pearson(preds, emb.Scores), nil
}

// Pearson returns the correlation of x and y. Undefined correlations (fewer
// than two points or a constant series) are reported as 0.
func Pearson(x, y []float64) float64 {
	if len(x) < 2 || len(x) != len(y) {
		return 0
	}

	r := stat.Correlation(x, y, nil)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}

	return r
}
