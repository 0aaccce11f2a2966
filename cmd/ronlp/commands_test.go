package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/example/go-ronlp/internal/config"
	"github.com/example/go-ronlp/internal/diacritics"
	"github.com/example/go-ronlp/internal/doctor"
	"github.com/example/go-ronlp/internal/model"
	"github.com/example/go-ronlp/internal/onnx"
	"github.com/example/go-ronlp/internal/siamese"
	"github.com/example/go-ronlp/internal/similarity"
	"github.com/spf13/cobra"
)

func touch(t *testing.T, dir string, names ...string) {
	t.Helper()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func doctorTestConfig(t *testing.T) config.Config {
	t.Helper()

	root := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Paths.DiacriticsModelDir = filepath.Join(root, "diacritics")
	cfg.Paths.EmbedderModelDir = filepath.Join(root, "embedder")
	cfg.Paths.SimilarityModelDir = filepath.Join(root, "similarity")
	cfg.Paths.DictionaryPath = filepath.Join(root, "dict.json")

	return cfg
}

func TestDoctorConfig_ReportsMissingAssets(t *testing.T) {
	cfg := doctorTestConfig(t)

	var out bytes.Buffer
	res := doctor.Run(doctorConfig(context.Background(), cfg, true), &out)

	if !res.Failed() {
		t.Fatal("expected failures for an empty workspace")
	}

	for _, want := range []string{"diacritics model", "embedder model", "dictionary", "checkpoint"} {
		found := false
		for _, f := range res.Failures() {
			if strings.Contains(f, want) {
				found = true
			}
		}
		if !found {
			t.Errorf("no failure mentioning %q: %v", want, res.Failures())
		}
	}
}

func TestDoctorConfig_AllPresent(t *testing.T) {
	cfg := doctorTestConfig(t)

	touch(t, cfg.Paths.DiacriticsModelDir, onnx.ManifestName, diacritics.SentencePieceFile,
		diacritics.TokenizerFile, diacritics.ModelConfigFile)
	touch(t, cfg.Paths.EmbedderModelDir, onnx.ManifestName, similarity.VocabFile)

	net, err := siamese.New([]int{4, 2}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := net.Save(cfg.Paths.SimilarityModelDir, nil); err != nil {
		t.Fatal(err)
	}

	if _, err := runRoot(t, "diacritics", "train", "--corpus", writeCorpus(t, "o țară frumoasă\n"),
		"--paths-dictionary-path", cfg.Paths.DictionaryPath); err != nil {
		t.Fatalf("train: %v", err)
	}

	var out bytes.Buffer
	res := doctor.Run(doctorConfig(context.Background(), cfg, true), &out)
	if res.Failed() {
		t.Fatalf("unexpected failures: %v\n%s", res.Failures(), out.String())
	}
}

func writeCorpus(t *testing.T, text string) string {
	t.Helper()

	p := filepath.Join(t.TempDir(), "corpus.txt")
	if err := os.WriteFile(p, []byte(text), 0o644); err != nil {
		t.Fatal(err)
	}

	return p
}

func TestProbeRuntime_MissingLibrary(t *testing.T) {
	_, err := probeRuntime(config.RuntimeConfig{ORTLibraryPath: filepath.Join(t.TempDir(), "libonnxruntime.so")})
	if err == nil {
		t.Fatal("expected error for a missing library")
	}
}

func TestProbeRuntime_ReportsVersion(t *testing.T) {
	lib := filepath.Join(t.TempDir(), "libonnxruntime.so.1.23.2")
	if err := os.WriteFile(lib, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := probeRuntime(config.RuntimeConfig{ORTLibraryPath: lib})
	if err != nil {
		t.Fatalf("probeRuntime: %v", err)
	}
	if !strings.HasSuffix(got, "(1.23.2)") {
		t.Errorf("probeRuntime = %q", got)
	}
}

func TestDefaultModelDir(t *testing.T) {
	tests := []struct {
		repo string
		want string
	}{
		{model.DiacriticsRepo, "d"},
		{model.EmbedderRepo, "e"},
		{"other/repo", "d"},
	}

	for _, tt := range tests {
		if got := defaultModelDir(tt.repo, "d", "e"); got != tt.want {
			t.Errorf("defaultModelDir(%q) = %q; want %q", tt.repo, got, tt.want)
		}
	}
}

func TestOpenPipelines_NoneEnabled(t *testing.T) {
	_, _, _, err := openPipelines(context.Background(), config.DefaultConfig(), false, false)
	if err == nil {
		t.Fatal("expected error when no pipeline is enabled")
	}
}

func TestPrintTrainResult(t *testing.T) {
	tests := []struct {
		name string
		res  similarity.Result
		want string
	}{
		{"saved", similarity.Result{Epochs: 10, Saved: true, BestPearson: 0.81, BestEpoch: 4, Checkpoint: "m/model.safetensors"}, "best pearson 0.8100 at epoch 4"},
		{"not saved", similarity.Result{Epochs: 10}, "no checkpoint written"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := &cobra.Command{}
			var out bytes.Buffer
			cmd.SetOut(&out)

			if err := printTrainResult(cmd, tt.res); err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(out.String(), tt.want) {
				t.Errorf("output = %q; want %q", out.String(), tt.want)
			}
		})
	}
}
