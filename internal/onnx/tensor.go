package onnx

import (
	"fmt"
	"math"
	"strings"
)

type TensorDType string

const (
	DTypeFloat32 TensorDType = "float32"
	DTypeInt64   TensorDType = "int64"
)

// Tensor is a dense row-major float32 or int64 array with its shape.
type Tensor struct {
	dtype TensorDType
	shape []int64
	data  any
}

func NewTensor[T ~int64 | ~float32](data []T, shape []int64) (*Tensor, error) {
	if err := validateShapeAgainstData(shape, len(data)); err != nil {
		return nil, err
	}

	t := &Tensor{shape: append([]int64(nil), shape...)}

	var zero T
	switch any(zero).(type) {
	case float32:
		t.dtype = DTypeFloat32
		t.data = convertSlice[T, float32](data)
	case int64:
		t.dtype = DTypeInt64
		t.data = convertSlice[T, int64](data)
	default:
		return nil, fmt.Errorf("unsupported tensor data type %T", zero)
	}

	return t, nil
}

func convertSlice[T ~int64 | ~float32, U int64 | float32](in []T) []U {
	out := make([]U, len(in))
	for i, v := range in {
		out[i] = U(v)
	}

	return out
}

// NewZeroTensor allocates a zero tensor from manifest metadata. Symbolic
// dimensions resolve to 1.
func NewZeroTensor(dtype string, shape []any) (*Tensor, error) {
	canonical, err := canonicalDType(dtype)
	if err != nil {
		return nil, err
	}

	resolved, err := resolveShape(shape)
	if err != nil {
		return nil, err
	}

	count, err := elementCount(resolved)
	if err != nil {
		return nil, err
	}

	if canonical == DTypeInt64 {
		return NewTensor(make([]int64, count), resolved)
	}

	return NewTensor(make([]float32, count), resolved)
}

func (t *Tensor) DType() TensorDType {
	return t.dtype
}

func (t *Tensor) Shape() []int64 {
	return append([]int64(nil), t.shape...)
}

// Data returns a copy of the backing slice.
func (t *Tensor) Data() any {
	switch v := t.data.(type) {
	case []float32:
		return append([]float32(nil), v...)
	case []int64:
		return append([]int64(nil), v...)
	default:
		return nil
	}
}

// ExtractFloat32 copies float32 data out of a tensor or a raw slice.
func ExtractFloat32(output any) ([]float32, error) {
	return extract[float32](output, DTypeFloat32)
}

// ExtractInt64 copies int64 data out of a tensor or a raw slice.
func ExtractInt64(output any) ([]int64, error) {
	return extract[int64](output, DTypeInt64)
}

func extract[T int64 | float32](output any, want TensorDType) ([]T, error) {
	switch out := output.(type) {
	case nil:
		return nil, fmt.Errorf("output is nil")
	case []T:
		return append([]T(nil), out...), nil
	case *Tensor:
		if out == nil {
			return nil, fmt.Errorf("expected *Tensor output, got nil")
		}
		if out.dtype != want {
			return nil, fmt.Errorf("expected %s tensor, got %s", want, out.dtype)
		}
		data, ok := out.data.([]T)
		if !ok {
			return nil, fmt.Errorf("%s tensor has unexpected backing type %T", want, out.data)
		}

		return append([]T(nil), data...), nil
	default:
		return nil, fmt.Errorf("expected []%s output, got %T", want, output)
	}
}

func canonicalDType(raw string) (TensorDType, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.TrimPrefix(normalized, "tensor(")
	normalized = strings.TrimSuffix(normalized, ")")

	switch normalized {
	case "float", "float32":
		return DTypeFloat32, nil
	case "int64", "long":
		return DTypeInt64, nil
	default:
		return "", fmt.Errorf("unsupported tensor dtype %q", raw)
	}
}

func resolveShape(shape []any) ([]int64, error) {
	out := make([]int64, len(shape))
	for i, dim := range shape {
		var v int64
		switch d := dim.(type) {
		case float64:
			if d != math.Trunc(d) {
				return nil, fmt.Errorf("shape[%d]=%v is not an integer", i, d)
			}
			v = int64(d)
		case int:
			v = int64(d)
		case int64:
			v = d
		case string:
			if strings.TrimSpace(d) == "" {
				return nil, fmt.Errorf("shape[%d] has empty symbolic dimension", i)
			}
			v = 1
		default:
			return nil, fmt.Errorf("shape[%d] has unsupported type %T", i, dim)
		}

		if v < 1 {
			return nil, fmt.Errorf("shape[%d]=%v is not positive", i, dim)
		}
		out[i] = v
	}

	return out, nil
}

func validateShapeAgainstData(shape []int64, dataLen int) error {
	count, err := elementCount(shape)
	if err != nil {
		return err
	}

	if count != dataLen {
		return fmt.Errorf("shape %v expects %d elements, got %d", shape, count, dataLen)
	}

	return nil
}

func elementCount(shape []int64) (int, error) {
	count := int64(1)
	for i, dim := range shape {
		if dim < 1 {
			return 0, fmt.Errorf("shape[%d]=%d is not positive", i, dim)
		}
		if count > math.MaxInt64/dim {
			return 0, fmt.Errorf("shape %v overflows element count", shape)
		}
		count *= dim
	}

	if count > int64(math.MaxInt) {
		return 0, fmt.Errorf("shape %v exceeds platform int capacity", shape)
	}

	return int(count), nil
}
