package similarity

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/example/go-ronlp/internal/config"
	"github.com/example/go-ronlp/internal/dataset"
	"github.com/example/go-ronlp/internal/siamese"
)

// hashEmbedder returns a deterministic pseudo-random vector per text.
type hashEmbedder struct {
	dim int
	err error

	mu     sync.Mutex
	calls  int
	closed bool
}

func (h *hashEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	h.mu.Lock()
	h.calls++
	h.mu.Unlock()

	if h.err != nil {
		return nil, h.err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([][]float64, len(texts))
	for i, t := range texts {
		out[i] = hashVector(t, h.dim)
	}

	return out, nil
}

func (h *hashEmbedder) Close() { h.closed = true }

func hashVector(s string, dim int) []float64 {
	f := fnv.New64a()
	_, _ = f.Write([]byte(s))
	seed := f.Sum64()

	rng := rand.New(rand.NewPCG(seed, seed>>1))
	v := make([]float64, dim)
	for i := range v {
		v[i] = rng.NormFloat64()
	}

	return v
}

func smallNetwork(t *testing.T, in int) *siamese.Network {
	t.Helper()

	n, err := siamese.New([]int{in, 6, 3}, 1)
	if err != nil {
		t.Fatalf("siamese.New: %v", err)
	}

	return n
}

func TestPadBatch(t *testing.T) {
	ids, mask := padBatch([][]int64{{2, 7, 3}, {2, 3}}, 3, 0)

	wantIDs := []int64{2, 7, 3, 2, 3, 0}
	wantMask := []int64{1, 1, 1, 1, 1, 0}

	for i := range wantIDs {
		if ids[i] != wantIDs[i] || mask[i] != wantMask[i] {
			t.Fatalf("padBatch = %v %v, want %v %v", ids, mask, wantIDs, wantMask)
		}
	}
}

func TestMeanPoolIgnoresPadding(t *testing.T) {
	// batch 2, seqLen 2, hidden 2
	hidden := []float32{
		1, 2, 3, 4,
		5, 6, 100, 100,
	}
	mask := []int64{1, 1, 1, 0}

	got := meanPool(hidden, mask, 2, 2, 2)

	want := [][]float64{{2, 3}, {5, 6}}
	for b := range want {
		for k := range want[b] {
			if math.Abs(got[b][k]-want[b][k]) > 1e-9 {
				t.Fatalf("meanPool = %v, want %v", got, want)
			}
		}
	}
}

func TestLoadWordPieceOptions(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    [2]bool
		wantErr bool
	}{
		{"missing file", "", [2]bool{true, true}, false},
		{"uncased keeps accents", `{"do_lower_case": true, "strip_accents": false}`, [2]bool{true, false}, false},
		{"cased", `{"do_lower_case": false}`, [2]bool{false, false}, false},
		{"null strip follows lowercase", `{"do_lower_case": true, "strip_accents": null}`, [2]bool{true, true}, false},
		{"invalid", `{"do_lower_case": `, [2]bool{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), TokenizerConfigFile)
			if tt.content != "" {
				if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
					t.Fatalf("write: %v", err)
				}
			}

			got, err := loadWordPieceOptions(path)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}

			if err != nil {
				t.Fatalf("loadWordPieceOptions: %v", err)
			}

			if got.Lowercase != tt.want[0] || got.StripAccents != tt.want[1] {
				t.Fatalf("options = %+v, want lowercase=%v strip=%v", got, tt.want[0], tt.want[1])
			}
		})
	}
}

func TestEmbedPairsKeepsOrder(t *testing.T) {
	emb := &hashEmbedder{dim: 4}
	pairs := []dataset.Pair{
		{TextA: "a", TextB: "b", Score: 1},
		{TextA: "c", TextB: "d", Score: 2},
		{TextA: "e", TextB: "f", Score: 3},
		{TextA: "g", TextB: "h", Score: 4},
		{TextA: "i", TextB: "j", Score: 5},
	}

	got, err := EmbedPairs(context.Background(), emb, pairs, 3, 3)
	if err != nil {
		t.Fatalf("EmbedPairs: %v", err)
	}

	if got.Len() != len(pairs) {
		t.Fatalf("Len = %d, want %d", got.Len(), len(pairs))
	}

	for i, p := range pairs {
		if got.A[i][0] != hashVector(p.TextA, 4)[0] || got.B[i][0] != hashVector(p.TextB, 4)[0] {
			t.Fatalf("pair %d embedded out of order", i)
		}

		if got.Scores[i] != p.Score {
			t.Fatalf("score %d = %v, want %v", i, got.Scores[i], p.Score)
		}
	}

	if emb.calls != 4 {
		t.Fatalf("embedder calls = %d, want 4", emb.calls)
	}
}

func TestEmbedPairsPropagatesError(t *testing.T) {
	boom := errors.New("boom")
	emb := &hashEmbedder{dim: 4, err: boom}

	_, err := EmbedPairs(context.Background(), emb, []dataset.Pair{{TextA: "a", TextB: "b"}}, 2, 1)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
}

func TestServiceScore(t *testing.T) {
	emb := &hashEmbedder{dim: 8}
	svc := NewService(emb, smallNetwork(t, 8))

	ctx := context.Background()

	ab, err := svc.Score(ctx, "Ana are mere.", "Ana are pere.")
	if err != nil {
		t.Fatalf("Score: %v", err)
	}

	ba, err := svc.Score(ctx, "Ana are pere.", "Ana are mere.")
	if err != nil {
		t.Fatalf("Score: %v", err)
	}

	if ab < 0 || ab > 5 {
		t.Fatalf("Score = %v outside [0, 5]", ab)
	}

	if math.Abs(ab-ba) > 1e-12 {
		t.Fatalf("Score not symmetric: %v vs %v", ab, ba)
	}

	same, err := svc.Score(ctx, "x", "x")
	if err != nil {
		t.Fatalf("Score: %v", err)
	}

	if math.Abs(same-5) > 1e-9 {
		t.Fatalf("Score(x, x) = %v, want 5", same)
	}

	svc.Close()
	if !emb.closed {
		t.Fatal("Close did not close the embedder")
	}
}

func TestServiceScoreDimensionMismatch(t *testing.T) {
	svc := NewService(&hashEmbedder{dim: 5}, smallNetwork(t, 8))

	_, err := svc.Score(context.Background(), "a", "b")
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("err = %v, want ErrDimensionMismatch", err)
	}
}

func TestServiceEvaluate(t *testing.T) {
	svc := NewService(&hashEmbedder{dim: 8}, smallNetwork(t, 8))

	if _, err := svc.Evaluate(context.Background(), []dataset.Pair{{TextA: "a", TextB: "b"}}); err == nil {
		t.Fatal("expected error for a single pair")
	}

	pairs := []dataset.Pair{
		{TextA: "a", TextB: "a", Score: 5},
		{TextA: "b", TextB: "b", Score: 5},
		{TextA: "a", TextB: "c", Score: 0},
		{TextA: "d", TextB: "e", Score: 0},
	}

	r, err := svc.Evaluate(context.Background(), pairs)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if r <= 0 || r > 1 {
		t.Fatalf("Pearson = %v, want in (0, 1]", r)
	}
}

func TestPearson(t *testing.T) {
	tests := []struct {
		name string
		x, y []float64
		want float64
	}{
		{"perfect", []float64{1, 2, 3}, []float64{2, 4, 6}, 1},
		{"inverse", []float64{1, 2, 3}, []float64{3, 2, 1}, -1},
		{"constant", []float64{1, 1, 1}, []float64{1, 2, 3}, 0},
		{"too short", []float64{1}, []float64{1}, 0},
		{"length mismatch", []float64{1, 2}, []float64{1}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Pearson(tt.x, tt.y); math.Abs(got-tt.want) > 1e-12 {
				t.Fatalf("Pearson = %v, want %v", got, tt.want)
			}
		})
	}
}

func trainingPairs() (train, valid []dataset.Pair) {
	words := []string{"casa", "masa", "apa", "soare", "luna", "munte", "mare", "vant"}

	for i, w := range words {
		train = append(train,
			dataset.Pair{TextA: w, TextB: w, Score: 5},
			dataset.Pair{TextA: w, TextB: words[(i+3)%len(words)], Score: 0.5},
		)
	}

	valid = []dataset.Pair{
		{TextA: "ploaie", TextB: "ploaie", Score: 5},
		{TextA: "zapada", TextB: "zapada", Score: 5},
		{TextA: "ploaie", TextB: "zapada", Score: 0},
		{TextA: "nor", TextB: "padure", Score: 0},
	}

	return train, valid
}

func TestTrainerSavesBestCheckpoint(t *testing.T) {
	train, valid := trainingPairs()
	dir := filepath.Join(t.TempDir(), "sim")

	cfg := DefaultTrainerConfig()
	cfg.Epochs = 12
	cfg.BatchSize = 5
	cfg.EvalEvery = 4
	cfg.LearningRate = 1
	cfg.Sizes = []int{6, 5, 3}
	cfg.EmbedBatch = 3

	res, err := NewTrainer(&hashEmbedder{dim: 6}, cfg).Train(context.Background(), train, valid, dir)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}

	if res.Epochs != 12 {
		t.Fatalf("Epochs = %d, want 12", res.Epochs)
	}

	if math.IsNaN(res.FinalLoss) || res.FinalLoss <= 0 {
		t.Fatalf("FinalLoss = %v", res.FinalLoss)
	}

	// Identical pairs always score highest, so validation correlation is
	// positive from the first evaluation.
	if !res.Saved || res.BestPearson <= 0 {
		t.Fatalf("Result = %+v, want a saved checkpoint", res)
	}

	if res.BestEpoch%cfg.EvalEvery != 0 {
		t.Fatalf("BestEpoch = %d is not an evaluation epoch", res.BestEpoch)
	}

	net, meta, err := siamese.Load(dir)
	if err != nil {
		t.Fatalf("siamese.Load: %v", err)
	}

	if net.InputDim() != 6 {
		t.Fatalf("InputDim = %d, want 6", net.InputDim())
	}

	if meta["pearson"] == "" || meta["epoch"] == "" {
		t.Fatalf("metadata = %v", meta)
	}
}

func TestTrainerValidation(t *testing.T) {
	train, valid := trainingPairs()
	emb := &hashEmbedder{dim: 6}

	tests := []struct {
		name   string
		mutate func(*TrainerConfig)
		train  []dataset.Pair
		target error
	}{
		{"zero epochs", func(c *TrainerConfig) { c.Epochs = 0 }, train, nil},
		{"zero batch", func(c *TrainerConfig) { c.BatchSize = 0 }, train, nil},
		{"zero eval interval", func(c *TrainerConfig) { c.EvalEvery = 0 }, train, nil},
		{"empty training set", func(*TrainerConfig) {}, nil, nil},
		{"dimension mismatch", func(c *TrainerConfig) { c.Sizes = []int{7, 3} }, train, ErrDimensionMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultTrainerConfig()
			cfg.Epochs = 2
			cfg.Sizes = []int{6, 3}
			tt.mutate(&cfg)

			_, err := NewTrainer(emb, cfg).Train(context.Background(), tt.train, valid, t.TempDir())
			if err == nil {
				t.Fatal("expected error")
			}

			if tt.target != nil && !errors.Is(err, tt.target) {
				t.Fatalf("err = %v, want %v", err, tt.target)
			}
		})
	}
}

func TestTrainerHonorsCancellation(t *testing.T) {
	train, valid := trainingPairs()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := DefaultTrainerConfig()
	cfg.Sizes = []int{6, 3}

	_, err := NewTrainer(&hashEmbedder{dim: 6}, cfg).Train(ctx, train, valid, t.TempDir())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestTrainerConfigFrom(t *testing.T) {
	c := TrainerConfigFrom(config.SimilarityConfig{Epochs: 7, BatchSize: 0, LearningRate: 0.5, EvalEvery: 2, Seed: 9})

	if c.Epochs != 7 || c.BatchSize != 100 || c.LearningRate != 0.5 || c.EvalEvery != 2 || c.Seed != 9 {
		t.Fatalf("TrainerConfigFrom = %+v", c)
	}
}

func TestOpenEmbedder_RejectsOversizedVocabulary(t *testing.T) {
	dir := t.TempDir()

	vocab := "[PAD]\n[UNK]\n[CLS]\n[SEP]\ncasa\nmare\n"
	if err := os.WriteFile(filepath.Join(dir, VocabFile), []byte(vocab), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ModelConfigFile), []byte(`{"vocab_size": 4}`), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := OpenEmbedder(dir, config.DefaultConfig().Runtime, 32)
	if err == nil || !strings.Contains(err.Error(), "model vocabulary holds 4") {
		t.Fatalf("OpenEmbedder error = %v; want vocabulary mismatch", err)
	}
}

func TestLoadModelVocabSize(t *testing.T) {
	dir := t.TempDir()

	if n, err := loadModelVocabSize(filepath.Join(dir, "missing.json")); err != nil || n != 0 {
		t.Fatalf("missing config = %d, %v; want 0, nil", n, err)
	}

	path := filepath.Join(dir, ModelConfigFile)
	if err := os.WriteFile(path, []byte(`{"vocab_size": 50000, "hidden_size": 768}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if n, err := loadModelVocabSize(path); err != nil || n != 50000 {
		t.Fatalf("loadModelVocabSize = %d, %v; want 50000", n, err)
	}

	if err := os.WriteFile(path, []byte(`{`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadModelVocabSize(path); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}
