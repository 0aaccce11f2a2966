// Package similarity scores Romanian sentence pairs with frozen mean-pooled
// transformer embeddings and a trained siamese reduction network.
package similarity

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/gjson"

	"github.com/example/go-ronlp/internal/config"
	"github.com/example/go-ronlp/internal/onnx"
	"github.com/example/go-ronlp/internal/text"
	"github.com/example/go-ronlp/internal/tokenizer"
)

// Embedder turns texts into fixed-size sentence vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
	Close()
}

// Asset names inside an embedder model directory.
const (
	VocabFile           = "vocab.txt"
	TokenizerConfigFile = "tokenizer_config.json"
	ModelConfigFile     = "config.json"
)

// ONNXEmbedder mean-pools the last hidden state of a BERT encoder graph over
// the attention mask.
type ONNXEmbedder struct {
	engine    *onnx.Engine
	encoder   *onnx.Encoder
	tok       *tokenizer.WordPieceTokenizer
	maxSeqLen int
}

// NewONNXEmbedder wraps an engine whose manifest provides an encoder graph.
// The embedder owns the engine.
func NewONNXEmbedder(engine *onnx.Engine, tok *tokenizer.WordPieceTokenizer, maxSeqLen int) (*ONNXEmbedder, error) {
	enc, err := onnx.NewEncoder(engine)
	if err != nil {
		return nil, err
	}

	return &ONNXEmbedder{engine: engine, encoder: enc, tok: tok, maxSeqLen: maxSeqLen}, nil
}

// OpenEmbedder loads the vocabulary and encoder graph from dir.
func OpenEmbedder(dir string, rt config.RuntimeConfig, maxSeqLen int) (*ONNXEmbedder, error) {
	opts, err := loadWordPieceOptions(filepath.Join(dir, TokenizerConfigFile))
	if err != nil {
		return nil, err
	}

	tok, err := tokenizer.NewWordPieceTokenizer(filepath.Join(dir, VocabFile), opts)
	if err != nil {
		return nil, fmt.Errorf("load embedder vocabulary: %w", err)
	}

	modelVocab, err := loadModelVocabSize(filepath.Join(dir, ModelConfigFile))
	if err != nil {
		return nil, err
	}

	if err := tokenizer.CheckVocabulary(tok.VocabSize(), modelVocab); err != nil {
		return nil, fmt.Errorf("embedder model %s: %w", dir, err)
	}

	engine, err := onnx.OpenModelDir(dir, rt)
	if err != nil {
		return nil, err
	}

	e, err := NewONNXEmbedder(engine, tok, maxSeqLen)
	if err != nil {
		engine.Close()
		return nil, err
	}

	return e, nil
}

// loadModelVocabSize reads vocab_size from config.json. A missing file or
// field yields 0.
func loadModelVocabSize(path string) (int, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return 0, nil
	}

	if err != nil {
		return 0, fmt.Errorf("read model config: %w", err)
	}

	if !gjson.ValidBytes(data) {
		return 0, fmt.Errorf("model config %s: invalid JSON", path)
	}

	return int(gjson.GetBytes(data, "vocab_size").Int()), nil
}

// loadWordPieceOptions reads do_lower_case and strip_accents. A missing file
// means an uncased model; accents are stripped only when strip_accents says
// so or is absent on a lowercasing tokenizer.
func loadWordPieceOptions(path string) (tokenizer.WordPieceOptions, error) {
	opts := tokenizer.WordPieceOptions{Lowercase: true, StripAccents: true}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return opts, nil
	}

	if err != nil {
		return opts, fmt.Errorf("read tokenizer config: %w", err)
	}

	if !gjson.ValidBytes(data) {
		return opts, fmt.Errorf("tokenizer config %s: invalid JSON", path)
	}

	if v := gjson.GetBytes(data, "do_lower_case"); v.Exists() {
		opts.Lowercase = v.Bool()
	}

	opts.StripAccents = opts.Lowercase
	if v := gjson.GetBytes(data, "strip_accents"); v.Exists() && v.Type != gjson.Null {
		opts.StripAccents = v.Bool()
	}

	return opts, nil
}

// Embed encodes texts as one padded batch.
func (e *ONNXEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return [][]float64{}, nil
	}

	encoded := make([][]int64, len(texts))
	seqLen := 0
	for i, t := range texts {
		ids, err := e.tok.EncodeForModel(text.FixCedilla(t), e.maxSeqLen)
		if err != nil {
			return nil, fmt.Errorf("tokenize text %d: %w", i, err)
		}

		encoded[i] = ids
		seqLen = max(seqLen, len(ids))
	}

	ids, mask := padBatch(encoded, seqLen, e.tok.PadID())

	hidden, size, err := e.encoder.Forward(ctx, ids, mask, len(texts), seqLen)
	if err != nil {
		return nil, err
	}

	return meanPool(hidden, mask, len(texts), seqLen, size), nil
}

// Close releases the encoder graph.
func (e *ONNXEmbedder) Close() {
	if e.engine != nil {
		e.engine.Close()
	}
}

func padBatch(rows [][]int64, seqLen int, pad int64) (ids, mask []int64) {
	ids = make([]int64, len(rows)*seqLen)
	mask = make([]int64, len(rows)*seqLen)

	for i, row := range rows {
		base := i * seqLen
		for j := range seqLen {
			if j < len(row) {
				ids[base+j] = row[j]
				mask[base+j] = 1
			} else {
				ids[base+j] = pad
			}
		}
	}

	return ids, mask
}

// meanPool averages hidden [batch, seqLen, size] over positions whose mask
// is set.
func meanPool(hidden []float32, mask []int64, batch, seqLen, size int) [][]float64 {
	out := make([][]float64, batch)

	for b := range batch {
		vec := make([]float64, size)
		count := 0.0

		for s := range seqLen {
			if mask[b*seqLen+s] == 0 {
				continue
			}

			count++
			row := hidden[(b*seqLen+s)*size : (b*seqLen+s+1)*size]
			for k, v := range row {
				vec[k] += float64(v)
			}
		}

		if count > 0 {
			for k := range vec {
				vec[k] /= count
			}
		}

		out[b] = vec
	}

	return out
}
