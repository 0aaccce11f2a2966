package diacritics

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/go-ronlp/internal/tokenizer"
)

// Seq2SeqModel is an encoder-decoder model decoding greedily from token ids.
type Seq2SeqModel interface {
	Generate(ctx context.Context, inputIDs []int64, maxNewTokens int) ([]int64, error)
}

// ModelGeneratorConfig bounds the model input and output.
type ModelGeneratorConfig struct {
	MaxInputTokens int
	MaxNewTokens   int
	EOSTokenID     int64
}

// ModelGenerator is a Generator backed by a tokenizer and a seq2seq model.
type ModelGenerator struct {
	tok   tokenizer.Tokenizer
	model Seq2SeqModel
	cfg   ModelGeneratorConfig
}

func NewModelGenerator(tok tokenizer.Tokenizer, model Seq2SeqModel, cfg ModelGeneratorConfig) (*ModelGenerator, error) {
	if tok == nil || model == nil {
		return nil, errors.New("model generator needs a tokenizer and a model")
	}
	if cfg.MaxInputTokens < 2 {
		cfg.MaxInputTokens = 256
	}
	if cfg.MaxNewTokens < 1 {
		cfg.MaxNewTokens = 256
	}

	return &ModelGenerator{tok: tok, model: model, cfg: cfg}, nil
}

// Generate encodes line, truncates it to MaxInputTokens including the
// end-of-sequence token, decodes greedily and detokenizes the result without
// special tokens.
func (g *ModelGenerator) Generate(ctx context.Context, line string) (string, error) {
	ids, err := g.tok.Encode(line)
	if err != nil {
		return "", fmt.Errorf("encode: %w", err)
	}

	if len(ids) > g.cfg.MaxInputTokens-1 {
		ids = ids[:g.cfg.MaxInputTokens-1]
	}
	ids = append(ids[:len(ids):len(ids)], g.cfg.EOSTokenID)

	out, err := g.model.Generate(ctx, ids, g.cfg.MaxNewTokens)
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}

	decoded, err := g.tok.Decode(out)
	if err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}

	return decoded, nil
}
