package onnx

import (
	"context"
	"reflect"
	"strings"
	"testing"
)

// fakeRunner is a GraphRunner backed by a function.
type fakeRunner struct {
	name   string
	fn     func(ctx context.Context, inputs map[string]*Tensor) (map[string]*Tensor, error)
	closed bool
}

func (f *fakeRunner) Run(ctx context.Context, inputs map[string]*Tensor) (map[string]*Tensor, error) {
	return f.fn(ctx, inputs)
}

func (f *fakeRunner) Name() string { return f.name }

func (f *fakeRunner) Close() { f.closed = true }

func TestNewEngineWithRunners_CopiesInputMap(t *testing.T) {
	r := &fakeRunner{name: "encoder"}

	orig := map[string]GraphRunner{"encoder": r}
	e := NewEngineWithRunners(orig)

	delete(orig, "encoder")

	got, ok := e.Runner("encoder")
	if !ok || got != r {
		t.Fatal("expected copied runner to survive map mutation")
	}

	if _, ok := e.Session("encoder"); ok {
		t.Fatal("external runners carry no session metadata")
	}
}

func TestEngineCloseClosesRunners(t *testing.T) {
	a := &fakeRunner{name: "a"}
	b := &fakeRunner{name: "b"}

	e := NewEngineWithRunners(map[string]GraphRunner{"b": b, "a": a})

	if !reflect.DeepEqual(e.Names(), []string{"a", "b"}) {
		t.Fatalf("unexpected names: %v", e.Names())
	}

	e.Close()
	e.Close()

	if !a.closed || !b.closed {
		t.Fatal("expected all runners closed")
	}

	if len(e.Names()) != 0 {
		t.Fatal("expected no runners after Close")
	}
}

func TestRequireRunner(t *testing.T) {
	e := NewEngineWithRunners(map[string]GraphRunner{"encoder": &fakeRunner{name: "encoder"}})

	_, err := e.requireRunner("decoder")
	if err == nil || !strings.Contains(err.Error(), `"decoder"`) {
		t.Fatalf("expected missing graph error, got %v", err)
	}
}
