// Package siamese implements the shared reduction network of the similarity
// pipeline: two sentence embeddings pass through the same feed-forward
// layers and their absolute cosine similarity, scaled to [0, 5], is the
// score.
package siamese

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// Default layer sizes: 768 → 384 → 256 → 128.
const (
	InputDim  = 768
	Hidden1   = 384
	Hidden2   = 256
	OutputDim = 128

	// MaxScore is the upper bound of similarity scores.
	MaxScore = 5.0

	cosineEps = 1e-8
)

// DefaultSizes returns the default layer widths, 768 to 128.
func DefaultSizes() []int {
	return []int{InputDim, Hidden1, Hidden2, OutputDim}
}

// Layer is a fully connected layer with weights stored [out, in].
type Layer struct {
	Weight *mat.Dense
	Bias   []float64
}

func (l Layer) dims() (out, in int) {
	return l.Weight.Dims()
}

// Network is a stack of linear layers with ReLU between them and no
// activation after the last one. It is safe for concurrent inference but not
// for concurrent training.
type Network struct {
	layers []Layer
}

// New returns a network with PyTorch-style uniform initialization
// U(-1/sqrt(in), 1/sqrt(in)) for weights and biases, seeded for
// reproducibility.
func New(sizes []int, seed uint64) (*Network, error) {
	if len(sizes) < 2 {
		return nil, fmt.Errorf("siamese: need at least two layer sizes, got %v", sizes)
	}

	for _, s := range sizes {
		if s < 1 {
			return nil, fmt.Errorf("siamese: invalid layer sizes %v", sizes)
		}
	}

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	n := &Network{layers: make([]Layer, len(sizes)-1)}
	for i := range n.layers {
		in, out := sizes[i], sizes[i+1]
		bound := 1 / math.Sqrt(float64(in))

		w := make([]float64, out*in)
		for j := range w {
			w[j] = (rng.Float64()*2 - 1) * bound
		}

		b := make([]float64, out)
		for j := range b {
			b[j] = (rng.Float64()*2 - 1) * bound
		}

		n.layers[i] = Layer{Weight: mat.NewDense(out, in, w), Bias: b}
	}

	return n, nil
}

// FromLayers builds a network from explicit layers, checking that adjacent
// widths agree.
func FromLayers(layers []Layer) (*Network, error) {
	if len(layers) == 0 {
		return nil, errors.New("siamese: no layers")
	}

	for i, l := range layers {
		if l.Weight == nil {
			return nil, fmt.Errorf("siamese: layer %d has no weights", i+1)
		}

		out, in := l.dims()
		if len(l.Bias) != out {
			return nil, fmt.Errorf("siamese: layer %d bias has %d values, want %d", i+1, len(l.Bias), out)
		}

		if i > 0 {
			prevOut, _ := layers[i-1].dims()
			if prevOut != in {
				return nil, fmt.Errorf("siamese: layer %d expects %d inputs but layer %d outputs %d", i+1, in, i, prevOut)
			}
		}
	}

	return &Network{layers: layers}, nil
}

// Sizes returns the layer widths from input to output.
func (n *Network) Sizes() []int {
	_, in := n.layers[0].dims()
	sizes := []int{in}

	for _, l := range n.layers {
		out, _ := l.dims()
		sizes = append(sizes, out)
	}

	return sizes
}

// InputDim returns the expected embedding width.
func (n *Network) InputDim() int {
	_, in := n.layers[0].dims()
	return in
}

// Reduce maps one embedding through the network.
func (n *Network) Reduce(x []float64) ([]float64, error) {
	if len(x) != n.InputDim() {
		return nil, fmt.Errorf("siamese: input has %d values, want %d", len(x), n.InputDim())
	}

	acts := n.forward(mat.NewDense(1, len(x), append([]float64(nil), x...)))

	return mat.Row(nil, 0, acts[len(acts)-1]), nil
}

// Forward returns the absolute cosine similarity of the reduced vectors, in
// [0, 1].
func (n *Network) Forward(a, b []float64) (float64, error) {
	ra, err := n.Reduce(a)
	if err != nil {
		return 0, err
	}

	rb, err := n.Reduce(b)
	if err != nil {
		return 0, err
	}

	return math.Abs(cosine(ra, rb)), nil
}

// Score returns Forward scaled to [0, MaxScore].
func (n *Network) Score(a, b []float64) (float64, error) {
	p, err := n.Forward(a, b)
	if err != nil {
		return 0, err
	}

	return math.Min(MaxScore, math.Max(0, p*MaxScore)), nil
}

// forward runs a batch [rows, in] and returns the activations of every layer,
// starting with the input itself.
func (n *Network) forward(x *mat.Dense) []*mat.Dense {
	acts := make([]*mat.Dense, 0, len(n.layers)+1)
	acts = append(acts, x)

	cur := x
	for i, l := range n.layers {
		rows, _ := cur.Dims()
		out, _ := l.dims()

		z := mat.NewDense(rows, out, nil)
		z.Mul(cur, l.Weight.T())

		last := i == len(n.layers)-1
		z.Apply(func(_, c int, v float64) float64 {
			v += l.Bias[c]
			if !last && v < 0 {
				return 0
			}

			return v
		}, z)

		acts = append(acts, z)
		cur = z
	}

	return acts
}

// backward propagates dOut [rows, out] through the activations of a forward
// pass and accumulates weight and bias gradients into grads.
func (n *Network) backward(acts []*mat.Dense, dOut *mat.Dense, grads []Layer) {
	delta := dOut
	for i := len(n.layers) - 1; i >= 0; i-- {
		l := n.layers[i]

		if i < len(n.layers)-1 {
			z := acts[i+1]
			delta.Apply(func(r, c int, v float64) float64 {
				if z.At(r, c) <= 0 {
					return 0
				}

				return v
			}, delta)
		}

		var gw mat.Dense
		gw.Mul(delta.T(), acts[i])
		grads[i].Weight.Add(grads[i].Weight, &gw)

		rows, cols := delta.Dims()
		for c := range cols {
			sum := 0.0
			for r := range rows {
				sum += delta.At(r, c)
			}
			grads[i].Bias[c] += sum
		}

		if i > 0 {
			var prev mat.Dense
			prev.Mul(delta, l.Weight)
			delta = &prev
		}
	}
}

func (n *Network) zeroGrads() []Layer {
	grads := make([]Layer, len(n.layers))
	for i, l := range n.layers {
		out, in := l.dims()
		grads[i] = Layer{Weight: mat.NewDense(out, in, nil), Bias: make([]float64, out)}
	}

	return grads
}

func cosine(a, b []float64) float64 {
	dot, na, nb := 0.0, 0.0, 0.0
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}

	return dot / math.Max(math.Sqrt(na)*math.Sqrt(nb), cosineEps)
}
