package onnx

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/shota3506/onnxruntime-purego/onnxruntime"
)

// DefaultAPIVersion is the ORT C API version requested when none is set.
const DefaultAPIVersion = 23

// RunnerConfig holds ORT library settings for creating runners.
type RunnerConfig struct {
	LibraryPath string
	APIVersion  uint32
}

// ortHandle is an ORT runtime and logging env shared by the runners of one
// engine. The last release closes both.
type ortHandle struct {
	mu      sync.Mutex
	refs    int
	runtime *ort.Runtime
	env     *ort.Env
}

func openORT(cfg RunnerConfig, envName string) (*ortHandle, error) {
	if cfg.APIVersion == 0 {
		cfg.APIVersion = DefaultAPIVersion
	}

	runtime, err := ort.NewRuntime(cfg.LibraryPath, cfg.APIVersion)
	if err != nil {
		return nil, fmt.Errorf("ort runtime (lib=%q api=%d): %w", cfg.LibraryPath, cfg.APIVersion, err)
	}

	env, err := runtime.NewEnv("ronlp-"+envName, ort.LoggingLevelWarning)
	if err != nil {
		_ = runtime.Close()
		return nil, fmt.Errorf("ort env: %w", err)
	}

	return &ortHandle{refs: 1, runtime: runtime, env: env}, nil
}

func (h *ortHandle) acquire() {
	h.mu.Lock()
	h.refs++
	h.mu.Unlock()
}

func (h *ortHandle) release() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.refs--
	if h.refs > 0 {
		return
	}

	h.env.Close()
	_ = h.runtime.Close()
}

// Runner wraps an ORT session for a single ONNX graph.
type Runner struct {
	name    string
	ort     *ortHandle
	session *ort.Session
	meta    Session
}

// NewRunner creates a runner with its own ORT runtime.
func NewRunner(meta Session, cfg RunnerConfig) (*Runner, error) {
	h, err := openORT(cfg, meta.Name)
	if err != nil {
		return nil, fmt.Errorf("runner %q: %w", meta.Name, err)
	}
	defer h.release()

	return newRunner(h, meta)
}

// newRunner opens meta's graph on a shared handle. The runner holds its own
// reference to h.
func newRunner(h *ortHandle, meta Session) (*Runner, error) {
	session, err := h.runtime.NewSession(h.env, meta.Path, nil)
	if err != nil {
		return nil, fmt.Errorf("ort session for %q (%s): %w", meta.Name, meta.Path, err)
	}

	h.acquire()

	return &Runner{name: meta.Name, ort: h, session: session, meta: meta}, nil
}

// Run checks inputs against the manifest entry, then executes the graph.
func (r *Runner) Run(ctx context.Context, inputs map[string]*Tensor) (map[string]*Tensor, error) {
	if r.session == nil {
		return nil, fmt.Errorf("run %q: runner is closed", r.name)
	}

	if err := r.meta.checkInputs(inputs); err != nil {
		return nil, fmt.Errorf("run %q: %w", r.name, err)
	}

	ortInputs := make(map[string]*ort.Value, len(inputs))
	defer closeORTValues(ortInputs)

	for name, t := range inputs {
		v, err := tensorToORT(r.ort.runtime, t)
		if err != nil {
			return nil, fmt.Errorf("input %q: %w", name, err)
		}

		ortInputs[name] = v
	}

	ortOutputs, err := r.session.Run(ctx, ortInputs)
	if err != nil {
		return nil, fmt.Errorf("run %q: %w", r.name, err)
	}
	defer closeORTValues(ortOutputs)

	results := make(map[string]*Tensor, len(ortOutputs))
	for name, v := range ortOutputs {
		t, err := ortToTensor(v)
		if err != nil {
			return nil, fmt.Errorf("output %q: %w", name, err)
		}

		results[name] = t
	}

	return results, nil
}

// Close releases the session and the runner's runtime reference. Safe to
// call multiple times.
func (r *Runner) Close() {
	if r.session == nil {
		return
	}

	r.session.Close()
	r.session = nil
	r.ort.release()
}

func (r *Runner) Name() string {
	return r.name
}

// Session returns the manifest entry the runner was built from.
func (r *Runner) Session() Session {
	return r.meta
}

func tensorToORT(runtime *ort.Runtime, t *Tensor) (*ort.Value, error) {
	switch data := t.data.(type) {
	case []float32:
		return ort.NewTensorValue(runtime, data, t.Shape())
	case []int64:
		return ort.NewTensorValue(runtime, data, t.Shape())
	default:
		return nil, fmt.Errorf("unsupported tensor dtype %T", data)
	}
}

func ortToTensor(v *ort.Value) (*Tensor, error) {
	elemType, err := v.GetTensorElementType()
	if err != nil {
		return nil, fmt.Errorf("get element type: %w", err)
	}

	switch elemType {
	case ort.ONNXTensorElementDataTypeFloat:
		data, shape, err := ort.GetTensorData[float32](v)
		if err != nil {
			return nil, err
		}

		return NewTensor(data, shape)
	case ort.ONNXTensorElementDataTypeInt64:
		data, shape, err := ort.GetTensorData[int64](v)
		if err != nil {
			return nil, err
		}

		return NewTensor(data, shape)
	default:
		return nil, fmt.Errorf("unsupported ORT element type %d", elemType)
	}
}

func closeORTValues(vals map[string]*ort.Value) {
	for _, v := range vals {
		if v != nil {
			v.Close()
		}
	}
}
