package siamese

import (
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"

	"github.com/example/go-ronlp/internal/safetensors"
)

// CheckpointName is the fixed file name of a saved network inside its
// directory.
const CheckpointName = "model.safetensors"

// CheckpointPath returns the checkpoint file inside dir.
func CheckpointPath(dir string) string {
	return filepath.Join(dir, CheckpointName)
}

// Save writes the network weights to dir/model.safetensors, creating dir if
// needed. Weights are stored [out, in] as float32 under l{i}.weight and
// l{i}.bias.
func (n *Network) Save(dir string, metadata map[string]string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("siamese: create checkpoint dir: %w", err)
	}

	tensors := make([]safetensors.Tensor, 0, 2*len(n.layers))
	for i, l := range n.layers {
		out, in := l.dims()

		tensors = append(tensors,
			safetensors.Tensor{
				Name:  weightName(i),
				Shape: []int64{int64(out), int64(in)},
				Data:  toFloat32(l.Weight.RawMatrix().Data),
			},
			safetensors.Tensor{
				Name:  biasName(i),
				Shape: []int64{int64(out)},
				Data:  toFloat32(l.Bias),
			},
		)
	}

	if err := safetensors.WriteFile(CheckpointPath(dir), tensors, metadata); err != nil {
		return fmt.Errorf("siamese: save checkpoint: %w", err)
	}

	return nil
}

// Load reads dir/model.safetensors. Layer sizes come from the stored shapes.
func Load(dir string) (*Network, map[string]string, error) {
	store, err := safetensors.OpenStore(CheckpointPath(dir))
	if err != nil {
		return nil, nil, fmt.Errorf("siamese: open checkpoint: %w", err)
	}
	defer store.Close()

	var layers []Layer
	for i := 0; store.Has(weightName(i)); i++ {
		w, err := store.Tensor(weightName(i))
		if err != nil {
			return nil, nil, fmt.Errorf("siamese: %w", err)
		}

		if len(w.Shape) != 2 {
			return nil, nil, fmt.Errorf("siamese: %s has shape %v, want 2 dims", w.Name, w.Shape)
		}

		out, in := int(w.Shape[0]), int(w.Shape[1])

		b, err := store.TensorWithShape(biasName(i), []int64{int64(out)})
		if err != nil {
			return nil, nil, fmt.Errorf("siamese: %w", err)
		}

		layers = append(layers, Layer{
			Weight: mat.NewDense(out, in, toFloat64(w.Data)),
			Bias:   toFloat64(b.Data),
		})
	}

	if len(layers) == 0 {
		return nil, nil, fmt.Errorf("siamese: checkpoint %s has no layers", CheckpointPath(dir))
	}

	n, err := FromLayers(layers)
	if err != nil {
		return nil, nil, err
	}

	return n, store.Metadata(), nil
}

func weightName(i int) string { return fmt.Sprintf("l%d.weight", i+1) }
func biasName(i int) string   { return fmt.Sprintf("l%d.bias", i+1) }

func toFloat32(src []float64) []float32 {
	dst := make([]float32, len(src))
	for i, v := range src {
		dst[i] = float32(v)
	}

	return dst
}

func toFloat64(src []float32) []float64 {
	dst := make([]float64, len(src))
	for i, v := range src {
		dst[i] = float64(v)
	}

	return dst
}
