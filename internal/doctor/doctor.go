// Package doctor provides environment preflight checks for ronlp.
package doctor

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/example/go-ronlp/internal/onnx"
)

// PassMark and FailMark are the prefix symbols printed for each check result.
const (
	PassMark = "✓"
	FailMark = "✗"
)

// VersionFunc returns a version string or an error if the component is unavailable.
type VersionFunc func() (string, error)

// ModelDir names a model directory and the assets it must contain.
type ModelDir struct {
	Name  string
	Dir   string
	Files []string
}

// Config holds injectable dependencies for each doctor check.
type Config struct {
	// RuntimeVersion reports the ONNX Runtime library in use as "path (version)"
	// or just the version.
	RuntimeVersion VersionFunc
	// SkipRuntime skips the ONNX Runtime check.
	SkipRuntime bool
	// Models lists model directories to verify on disk.
	Models []ModelDir
	// Dictionary loads the diacritics dictionary and describes it.
	Dictionary VersionFunc
	// Checkpoints lists files that must exist, such as the siamese weights.
	Checkpoints []string
}

// Result collects the outcome of all checks.
type Result struct {
	failures []string
}

// Failed returns true if any check failed.
func (r *Result) Failed() bool { return len(r.failures) > 0 }

// Failures returns the list of failure messages.
func (r *Result) Failures() []string { return append([]string(nil), r.failures...) }

// AddFailure appends an external failure message to the result.
func (r *Result) AddFailure(msg string) { r.failures = append(r.failures, msg) }

func (r *Result) fail(msg string) { r.failures = append(r.failures, msg) }

// Run executes all configured checks and writes human-readable output to w.
// Each check line is prefixed with PassMark or FailMark.
func Run(cfg Config, w io.Writer) Result {
	var res Result

	// ---- ONNX Runtime -----------------------------------------------------
	switch {
	case cfg.SkipRuntime:
		fmt.Fprintf(w, "%s onnx runtime: skipped\n", PassMark)
	case cfg.RuntimeVersion == nil:
		res.fail("onnx runtime: no probe configured")
		fmt.Fprintf(w, "%s onnx runtime: no probe configured\n", FailMark)
	default:
		ver, err := cfg.RuntimeVersion()
		if err != nil {
			res.fail(fmt.Sprintf("onnx runtime: %v", err))
			fmt.Fprintf(w, "%s onnx runtime: not found (%v)\n", FailMark, err)
		} else if verErr := checkRuntimeVersion(ver); verErr != nil {
			res.fail(fmt.Sprintf("onnx runtime: %v", verErr))
			fmt.Fprintf(w, "%s onnx runtime %s: %v\n", FailMark, ver, verErr)
		} else {
			fmt.Fprintf(w, "%s onnx runtime: %s\n", PassMark, ver)
		}
	}

	// ---- model directories ------------------------------------------------
	for _, m := range cfg.Models {
		var missing []string
		for _, f := range m.Files {
			if _, err := os.Stat(filepath.Join(m.Dir, f)); err != nil {
				missing = append(missing, f)
			}
		}

		if len(missing) > 0 {
			res.fail(fmt.Sprintf("%s model %q: missing %s", m.Name, m.Dir, strings.Join(missing, ", ")))
			fmt.Fprintf(w, "%s %s model %s: missing %s\n", FailMark, m.Name, m.Dir, strings.Join(missing, ", "))
		} else {
			fmt.Fprintf(w, "%s %s model: %s\n", PassMark, m.Name, m.Dir)
		}
	}

	// ---- dictionary -------------------------------------------------------
	if cfg.Dictionary != nil {
		desc, err := cfg.Dictionary()
		if err != nil {
			res.fail(fmt.Sprintf("dictionary: %v", err))
			fmt.Fprintf(w, "%s dictionary: %v\n", FailMark, err)
		} else {
			fmt.Fprintf(w, "%s dictionary: %s\n", PassMark, desc)
		}
	}

	// ---- checkpoints ------------------------------------------------------
	for _, path := range cfg.Checkpoints {
		if _, err := os.Stat(path); err != nil {
			res.fail(fmt.Sprintf("checkpoint %q: %v", path, err))
			fmt.Fprintf(w, "%s checkpoint %s: not found\n", FailMark, path)
		} else {
			fmt.Fprintf(w, "%s checkpoint: %s\n", PassMark, path)
		}
	}

	return res
}

// checkRuntimeVersion returns an error if ver is older than the ORT API
// version the runners request. A trailing "(x.y.z)" is accepted, and an
// unknown version passes.
func checkRuntimeVersion(ver string) error {
	if i := strings.LastIndex(ver, "("); i >= 0 && strings.HasSuffix(ver, ")") {
		ver = ver[i+1 : len(ver)-1]
	}

	ver = strings.TrimPrefix(strings.TrimSpace(ver), "v")
	if ver == "" || ver == "unknown" {
		return nil
	}

	major, minor, err := parseMajorMinor(ver)
	if err != nil {
		return fmt.Errorf("cannot parse %q: %w", ver, err)
	}
	if major != 1 {
		return fmt.Errorf("requires ONNX Runtime 1.x, got %d", major)
	}
	if minor < onnx.DefaultAPIVersion {
		return fmt.Errorf("requires ONNX Runtime >=1.%d, got 1.%d", onnx.DefaultAPIVersion, minor)
	}
	return nil
}

func parseMajorMinor(ver string) (major, minor int, err error) {
	parts := strings.SplitN(ver, ".", 3)
	if len(parts) < 2 {
		return 0, 0, fmt.Errorf("unexpected version format %q", ver)
	}
	major, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("bad major in %q: %w", ver, err)
	}
	minor, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("bad minor in %q: %w", ver, err)
	}
	return major, minor, nil
}
