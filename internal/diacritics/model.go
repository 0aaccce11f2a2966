package diacritics

import (
	"fmt"
	"path/filepath"

	"github.com/example/go-ronlp/internal/config"
	"github.com/example/go-ronlp/internal/onnx"
	"github.com/example/go-ronlp/internal/tokenizer"
)

// Asset names inside a diacritics model directory.
const (
	SentencePieceFile = "spiece.model"
	TokenizerFile     = "tokenizer.json"
	ModelConfigFile   = "config.json"
)

// defaultChunkChars keeps most sentences within the model input window.
const defaultChunkChars = 400

// ONNXGenerator is a ModelGenerator over an exported encoder/decoder pair.
type ONNXGenerator struct {
	*ModelGenerator
	engine *onnx.Engine
}

// OpenGenerator loads the SentencePiece tokenizer, the generation ids from
// config.json and the encoder/decoder graphs of dir.
func OpenGenerator(dir string, rt config.RuntimeConfig, dc config.DiacriticsConfig) (*ONNXGenerator, error) {
	tok, err := tokenizer.NewSentencePieceTokenizer(
		filepath.Join(dir, SentencePieceFile),
		filepath.Join(dir, TokenizerFile),
	)
	if err != nil {
		return nil, fmt.Errorf("load diacritics tokenizer: %w", err)
	}

	gen, err := onnx.LoadGenerationConfig(filepath.Join(dir, ModelConfigFile))
	if err != nil {
		return nil, err
	}

	if err := tokenizer.CheckVocabulary(tok.VocabSize(), gen.VocabSize); err != nil {
		return nil, fmt.Errorf("diacritics model %s: %w", dir, err)
	}

	engine, err := onnx.OpenModelDir(dir, rt)
	if err != nil {
		return nil, err
	}

	s2s, err := onnx.NewSeq2Seq(engine, gen)
	if err != nil {
		engine.Close()
		return nil, err
	}

	mg, err := NewModelGenerator(tok, s2s, ModelGeneratorConfig{
		MaxInputTokens: dc.MaxInputTokens,
		MaxNewTokens:   dc.MaxNewTokens,
		EOSTokenID:     gen.EOSTokenID,
	})
	if err != nil {
		engine.Close()
		return nil, err
	}

	return &ONNXGenerator{ModelGenerator: mg, engine: engine}, nil
}

// Close releases the ORT sessions.
func (g *ONNXGenerator) Close() {
	if g.engine != nil {
		g.engine.Close()
	}
}

// OptionsFrom maps configuration onto restorer options.
func OptionsFrom(dc config.DiacriticsConfig) Options {
	return Options{
		AlignToInput:   dc.AlignToInput,
		FixPunctuation: dc.FixPunctuation,
		MaxChunkChars:  defaultChunkChars,
	}
}

// BuilderOptionsFrom maps configuration onto dictionary builder options.
func BuilderOptionsFrom(dc config.DiacriticsConfig) BuilderOptions {
	return BuilderOptions{
		Threshold: dc.Threshold,
		MinCount:  dc.MinCount,
	}
}
