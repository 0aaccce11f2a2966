package model

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/example/go-ronlp/internal/config"
	"github.com/example/go-ronlp/internal/onnx"
)

type VerifyOptions struct {
	Dir     string
	Runtime config.RuntimeConfig
	Stdout  io.Writer
	Stderr  io.Writer
}

var runNativeVerify = runNativeVerifyImpl

// Verify checks a model directory's graph manifest: every declared input
// must yield a valid zero tensor, and every graph must load and run once on
// those tensors.
func Verify(ctx context.Context, opts VerifyOptions) error {
	if opts.Dir == "" {
		return errors.New("model dir is required")
	}

	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}

	if opts.Stderr == nil {
		opts.Stderr = io.Discard
	}

	sm, err := onnx.NewSessionManager(onnx.ManifestPath(opts.Dir))
	if err != nil {
		return fmt.Errorf("load sessions: %w", err)
	}

	sessions := sm.Sessions()
	if len(sessions) == 0 {
		return fmt.Errorf("manifest in %s lists no graphs", opts.Dir)
	}

	for _, session := range sessions {
		if _, err := zeroInputs(session); err != nil {
			return err
		}
	}

	return runNativeVerify(ctx, sessions, opts)
}

func runNativeVerifyImpl(ctx context.Context, sessions []onnx.Session, opts VerifyOptions) error {
	info, err := onnx.Bootstrap(opts.Runtime)
	if err != nil {
		return fmt.Errorf("bootstrap onnx runtime: %w", err)
	}

	var failures []string

	for _, session := range sessions {
		err := runSessionSmoke(ctx, session, onnx.RunnerConfig{LibraryPath: info.LibraryPath})
		if err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "FAIL %s: %v\n", session.Name, err)
			failures = append(failures, session.Name)

			continue
		}

		_, _ = fmt.Fprintf(opts.Stdout, "PASS %s\n", session.Name)
	}

	if len(failures) > 0 {
		return fmt.Errorf("verify failed for %d graph(s): %s", len(failures), strings.Join(failures, ", "))
	}

	return nil
}

func runSessionSmoke(ctx context.Context, session onnx.Session, cfg onnx.RunnerConfig) error {
	r, err := onnx.NewRunner(session, cfg)
	if err != nil {
		return err
	}
	defer r.Close()

	inputs, err := zeroInputs(session)
	if err != nil {
		return err
	}

	if _, err := r.Run(ctx, inputs); err != nil {
		return fmt.Errorf("run inference: %w", err)
	}

	return nil
}

func zeroInputs(session onnx.Session) (map[string]*onnx.Tensor, error) {
	inputs := make(map[string]*onnx.Tensor, len(session.Inputs))
	for _, input := range session.Inputs {
		t, err := onnx.NewZeroTensor(input.DType, input.Shape)
		if err != nil {
			return nil, fmt.Errorf("graph %q input %q invalid: %w", session.Name, input.Name, err)
		}

		inputs[input.Name] = t
	}

	return inputs, nil
}
