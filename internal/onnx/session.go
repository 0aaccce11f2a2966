package onnx

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ManifestName is the file name of the graph manifest inside a model
// directory.
const ManifestName = "manifest.json"

type NodeInfo struct {
	Name  string `json:"name"`
	DType string `json:"dtype"`
	Shape []any  `json:"shape"`
}

// Session describes one graph of a manifest.
type Session struct {
	Name string
	Path string

	Inputs  []NodeInfo
	Outputs []NodeInfo
}

// HasInput reports whether the graph declares an input called name.
func (s Session) HasInput(name string) bool {
	for _, in := range s.Inputs {
		if in.Name == name {
			return true
		}
	}

	return false
}

// checkInputs matches inputs against the declared graph inputs by name,
// dtype and rank. A graph without declared inputs accepts any feed.
func (s Session) checkInputs(inputs map[string]*Tensor) error {
	if len(s.Inputs) == 0 {
		return nil
	}

	for _, in := range s.Inputs {
		t, ok := inputs[in.Name]
		if !ok || t == nil {
			return fmt.Errorf("missing input %q", in.Name)
		}

		if want, err := canonicalDType(in.DType); err == nil && t.dtype != want {
			return fmt.Errorf("input %q is %s, manifest declares %s", in.Name, t.dtype, want)
		}

		if len(in.Shape) > 0 && len(t.shape) != len(in.Shape) {
			return fmt.Errorf("input %q has rank %d, manifest declares %d", in.Name, len(t.shape), len(in.Shape))
		}
	}

	if len(inputs) > len(s.Inputs) {
		for name := range inputs {
			if !s.HasInput(name) {
				return fmt.Errorf("unknown input %q (graph takes %s)", name, nodeNames(s.Inputs))
			}
		}
	}

	return nil
}

// SessionManager indexes the graphs of one manifest.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]Session
	order    []string
}

type onnxManifest struct {
	Graphs []ManifestGraph `json:"graphs"`
}

// ManifestGraph is one graph entry of manifest.json. Filename is relative to
// the manifest's directory unless absolute.
type ManifestGraph struct {
	Name     string     `json:"name"`
	Filename string     `json:"filename"`
	Inputs   []NodeInfo `json:"inputs"`
	Outputs  []NodeInfo `json:"outputs"`
}

// WriteManifest writes graphs as manifest.json into modelDir.
func WriteManifest(modelDir string, graphs []ManifestGraph) error {
	if len(graphs) == 0 {
		return errors.New("manifest needs at least one graph")
	}

	data, err := json.MarshalIndent(onnxManifest{Graphs: graphs}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode ONNX manifest: %w", err)
	}

	if err := os.WriteFile(ManifestPath(modelDir), append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write ONNX manifest: %w", err)
	}

	return nil
}

// ManifestPath returns the manifest location inside a model directory.
func ManifestPath(modelDir string) string {
	return filepath.Join(modelDir, ManifestName)
}

// NewSessionManager reads the manifest at manifestPath and checks that every
// listed graph file exists. Relative file names resolve against the
// manifest's directory.
func NewSessionManager(manifestPath string) (*SessionManager, error) {
	if manifestPath == "" {
		return nil, errors.New("manifest path is required")
	}

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("read ONNX manifest: %w", err)
	}

	var manifest onnxManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("decode ONNX manifest: %w", err)
	}

	if len(manifest.Graphs) == 0 {
		return nil, errors.New("ONNX manifest has no graphs")
	}

	baseDir := filepath.Dir(manifestPath)
	sm := &SessionManager{
		sessions: make(map[string]Session, len(manifest.Graphs)),
		order:    make([]string, 0, len(manifest.Graphs)),
	}

	for _, g := range manifest.Graphs {
		if g.Name == "" {
			return nil, errors.New("manifest graph has empty name")
		}

		if g.Filename == "" {
			return nil, fmt.Errorf("manifest graph %q has empty filename", g.Name)
		}

		if _, exists := sm.sessions[g.Name]; exists {
			return nil, fmt.Errorf("duplicate session name %q in manifest", g.Name)
		}

		sessionPath := g.Filename
		if !filepath.IsAbs(sessionPath) {
			sessionPath = filepath.Join(baseDir, g.Filename)
		}

		sessionPath = filepath.Clean(sessionPath)
		if _, err := os.Stat(sessionPath); err != nil {
			return nil, fmt.Errorf("session file for %q: %w", g.Name, err)
		}

		sm.sessions[g.Name] = Session{
			Name:    g.Name,
			Path:    sessionPath,
			Inputs:  append([]NodeInfo(nil), g.Inputs...),
			Outputs: append([]NodeInfo(nil), g.Outputs...),
		}
		sm.order = append(sm.order, g.Name)

		slog.Debug(
			"loaded ONNX session",
			"name", g.Name,
			"path", sessionPath,
			"inputs", nodeNames(g.Inputs),
			"outputs", nodeNames(g.Outputs),
		)
	}

	return sm, nil
}

func (m *SessionManager) Session(name string) (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[name]

	return s, ok
}

// Sessions returns the graphs in manifest order.
func (m *SessionManager) Sessions() []Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Session, 0, len(m.order))
	for _, name := range m.order {
		s := m.sessions[name]
		s.Inputs = append([]NodeInfo(nil), s.Inputs...)
		s.Outputs = append([]NodeInfo(nil), s.Outputs...)
		out = append(out, s)
	}

	return out
}

func nodeNames(nodes []NodeInfo) string {
	names := make([]string, 0, len(nodes))
	for _, n := range nodes {
		names = append(names, n.Name)
	}

	return strings.Join(names, ",")
}
