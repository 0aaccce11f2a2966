package onnx

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/example/go-ronlp/internal/config"
)

// Engine owns the runners of every graph in a model directory.
type Engine struct {
	runners  map[string]GraphRunner
	sessions *SessionManager
}

// NewEngine loads the manifest at manifestPath and opens one ORT session per
// graph. All sessions share one runtime and env.
func NewEngine(manifestPath string, cfg RunnerConfig) (*Engine, error) {
	sm, err := NewSessionManager(manifestPath)
	if err != nil {
		return nil, err
	}

	h, err := openORT(cfg, filepath.Base(filepath.Dir(manifestPath)))
	if err != nil {
		return nil, err
	}
	defer h.release()

	e := &Engine{runners: make(map[string]GraphRunner), sessions: sm}
	for _, s := range sm.Sessions() {
		r, err := newRunner(h, s)
		if err != nil {
			e.Close()
			return nil, err
		}

		e.runners[s.Name] = r
	}

	return e, nil
}

// OpenModelDir bootstraps ONNX Runtime and opens the engine of a model
// directory laid out as manifest.json plus graphs.
func OpenModelDir(dir string, rt config.RuntimeConfig) (*Engine, error) {
	info, err := Bootstrap(rt)
	if err != nil {
		return nil, fmt.Errorf("bootstrap onnx runtime: %w", err)
	}

	e, err := NewEngine(ManifestPath(dir), RunnerConfig{LibraryPath: info.LibraryPath})
	if err != nil {
		return nil, fmt.Errorf("open model %s: %w", dir, err)
	}

	return e, nil
}

// Runner returns the runner of the named graph.
func (e *Engine) Runner(name string) (GraphRunner, bool) {
	r, ok := e.runners[name]

	return r, ok
}

// Session returns manifest metadata for the named graph. Engines built from
// external runners have none.
func (e *Engine) Session(name string) (Session, bool) {
	if e.sessions == nil {
		return Session{}, false
	}

	return e.sessions.Session(name)
}

// Names returns the graph names in sorted order.
func (e *Engine) Names() []string {
	names := make([]string, 0, len(e.runners))
	for name := range e.runners {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// Close releases every runner. Safe to call multiple times.
func (e *Engine) Close() {
	for name, r := range e.runners {
		r.Close()
		delete(e.runners, name)
	}
}

func (e *Engine) requireRunner(name string) (GraphRunner, error) {
	r, ok := e.runners[name]
	if !ok {
		return nil, fmt.Errorf("graph %q not loaded (have %v)", name, e.Names())
	}

	return r, nil
}
