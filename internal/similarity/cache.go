package similarity

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/example/go-ronlp/internal/dataset"
)

// Embedded holds the cached sentence vectors of a dataset.
type Embedded struct {
	A      [][]float64
	B      [][]float64
	Scores []float64
}

// Len returns the number of pairs.
func (e Embedded) Len() int { return len(e.Scores) }

// EmbedPairs computes the embeddings of every pair once, batchSize texts per
// embedder call and at most workers calls in flight.
func EmbedPairs(ctx context.Context, emb Embedder, pairs []dataset.Pair, batchSize, workers int) (Embedded, error) {
	if batchSize < 1 {
		batchSize = 1
	}

	texts := make([]string, 0, 2*len(pairs))
	for _, p := range pairs {
		texts = append(texts, p.TextA, p.TextB)
	}

	vecs := make([][]float64, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}

	for start := 0; start < len(texts); start += batchSize {
		end := min(start+batchSize, len(texts))

		g.Go(func() error {
			out, err := emb.Embed(gctx, texts[start:end])
			if err != nil {
				return fmt.Errorf("embed texts %d-%d: %w", start, end-1, err)
			}

			if len(out) != end-start {
				return fmt.Errorf("embed texts %d-%d: got %d vectors", start, end-1, len(out))
			}

			copy(vecs[start:end], out)

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Embedded{}, err
	}

	e := Embedded{
		A:      make([][]float64, len(pairs)),
		B:      make([][]float64, len(pairs)),
		Scores: dataset.Scores(pairs),
	}

	for i := range pairs {
		e.A[i] = vecs[2*i]
		e.B[i] = vecs[2*i+1]
	}

	return e, nil
}

// checkDim reports ErrDimensionMismatch when any vector has a width other
// than dim.
func (e Embedded) checkDim(dim int) error {
	for i := range e.A {
		if len(e.A[i]) != dim || len(e.B[i]) != dim {
			return fmt.Errorf("%w: pair %d has widths %d and %d, network expects %d",
				ErrDimensionMismatch, i, len(e.A[i]), len(e.B[i]), dim)
		}
	}

	return nil
}
