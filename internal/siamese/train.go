package siamese

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// TrainStep runs one optimizer step on a batch of embedding pairs with
// targets in [0, 1] and returns the mean loss before the update.
func (n *Network) TrainStep(a, b [][]float64, targets []float64, opt *Adadelta) (float64, error) {
	if len(a) == 0 || len(a) != len(b) || len(a) != len(targets) {
		return 0, fmt.Errorf("siamese: batch sizes differ: %d, %d, %d", len(a), len(b), len(targets))
	}

	xa, err := n.batchMatrix(a)
	if err != nil {
		return 0, err
	}

	xb, err := n.batchMatrix(b)
	if err != nil {
		return 0, err
	}

	loss, grads := n.lossAndGrads(xa, xb, targets)
	opt.Step(n.params(), layerParams(grads))

	return loss, nil
}

// Predict returns |cos| in [0, 1] for every pair of a batch.
func (n *Network) Predict(a, b [][]float64) ([]float64, error) {
	if len(a) != len(b) {
		return nil, fmt.Errorf("siamese: batch sizes differ: %d, %d", len(a), len(b))
	}

	if len(a) == 0 {
		return []float64{}, nil
	}

	xa, err := n.batchMatrix(a)
	if err != nil {
		return nil, err
	}

	xb, err := n.batchMatrix(b)
	if err != nil {
		return nil, err
	}

	ua := n.forward(xa)
	ub := n.forward(xb)

	_, _, _, preds := pairLoss(ua[len(ua)-1], ub[len(ub)-1], make([]float64, len(a)))

	return preds, nil
}

func (n *Network) lossAndGrads(xa, xb *mat.Dense, targets []float64) (float64, []Layer) {
	actsA := n.forward(xa)
	actsB := n.forward(xb)

	loss, du, dv, _ := pairLoss(actsA[len(actsA)-1], actsB[len(actsB)-1], targets)

	grads := n.zeroGrads()
	n.backward(actsA, du, grads)
	n.backward(actsB, dv, grads)

	return loss, grads
}

func (n *Network) batchMatrix(rows [][]float64) (*mat.Dense, error) {
	dim := n.InputDim()
	data := make([]float64, 0, len(rows)*dim)

	for i, r := range rows {
		if len(r) != dim {
			return nil, fmt.Errorf("siamese: row %d has %d values, want %d", i, len(r), dim)
		}

		data = append(data, r...)
	}

	return mat.NewDense(len(rows), dim, data), nil
}

func (n *Network) params() [][]float64 {
	return layerParams(n.layers)
}

func layerParams(layers []Layer) [][]float64 {
	out := make([][]float64, 0, 2*len(layers))
	for _, l := range layers {
		out = append(out, l.Weight.RawMatrix().Data, l.Bias)
	}

	return out
}
