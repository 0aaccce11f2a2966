package onnx

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/tidwall/gjson"
)

// Graph and tensor names of encoder-decoder exports.
const (
	GraphEncoder = "encoder"
	GraphDecoder = "decoder"

	inputIDs             = "input_ids"
	attentionMask        = "attention_mask"
	tokenTypeIDs         = "token_type_ids"
	encoderAttentionMask = "encoder_attention_mask"
	encoderHiddenStates  = "encoder_hidden_states"
	lastHiddenState      = "last_hidden_state"
	logitsOutput         = "logits"
)

// GenerationConfig holds the special token ids used by greedy decoding.
type GenerationConfig struct {
	DecoderStartTokenID int64
	EOSTokenID          int64
	PadTokenID          int64
	// VocabSize is the decoder output width; 0 when config.json omits it.
	VocabSize int
}

// DefaultGenerationConfig returns the T5 family ids.
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{DecoderStartTokenID: 0, EOSTokenID: 1, PadTokenID: 0}
}

// LoadGenerationConfig reads the token ids from a Hugging Face config.json.
// Missing fields keep their T5 defaults; a list-valued eos_token_id uses its
// first element.
func LoadGenerationConfig(path string) (GenerationConfig, error) {
	cfg := DefaultGenerationConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read model config: %w", err)
	}

	if !gjson.ValidBytes(data) {
		return cfg, fmt.Errorf("model config %s is not valid JSON", path)
	}

	if v := gjson.GetBytes(data, "decoder_start_token_id"); v.Exists() {
		cfg.DecoderStartTokenID = v.Int()
	}

	if v := gjson.GetBytes(data, "pad_token_id"); v.Exists() {
		cfg.PadTokenID = v.Int()
	}

	cfg.VocabSize = int(gjson.GetBytes(data, "vocab_size").Int())

	if v := gjson.GetBytes(data, "eos_token_id"); v.Exists() {
		if v.IsArray() {
			v = v.Get("0")
		}
		cfg.EOSTokenID = v.Int()
	}

	return cfg, nil
}

// Seq2Seq runs greedy encoder-decoder generation. The decoder graph is run
// on the full prefix every step, without a key/value cache.
type Seq2Seq struct {
	encoder GraphRunner
	decoder GraphRunner
	gen     GenerationConfig
}

// NewSeq2Seq binds the encoder and decoder graphs of e.
func NewSeq2Seq(e *Engine, gen GenerationConfig) (*Seq2Seq, error) {
	enc, err := e.requireRunner(GraphEncoder)
	if err != nil {
		return nil, err
	}

	dec, err := e.requireRunner(GraphDecoder)
	if err != nil {
		return nil, err
	}

	return &Seq2Seq{encoder: enc, decoder: dec, gen: gen}, nil
}

// Generate encodes ids once and decodes greedily until the end-of-sequence
// token or maxNewTokens tokens. The returned ids exclude the decoder start
// and end-of-sequence tokens.
func (s *Seq2Seq) Generate(ctx context.Context, ids []int64, maxNewTokens int) ([]int64, error) {
	if len(ids) == 0 {
		return nil, errors.New("generate: input ids must not be empty")
	}

	if maxNewTokens < 1 {
		return nil, fmt.Errorf("generate: max new tokens must be >= 1, got %d", maxNewTokens)
	}

	n := int64(len(ids))

	idsT, err := NewTensor(ids, []int64{1, n})
	if err != nil {
		return nil, err
	}

	mask := make([]int64, n)
	for i := range mask {
		mask[i] = 1
	}

	maskT, err := NewTensor(mask, []int64{1, n})
	if err != nil {
		return nil, err
	}

	encOut, err := s.encoder.Run(ctx, map[string]*Tensor{inputIDs: idsT, attentionMask: maskT})
	if err != nil {
		return nil, fmt.Errorf("encoder: %w", err)
	}

	hidden, err := outputTensor(encOut, lastHiddenState)
	if err != nil {
		return nil, fmt.Errorf("encoder: %w", err)
	}

	decoded := []int64{s.gen.DecoderStartTokenID}
	for step := range maxNewTokens {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		decT, err := NewTensor(decoded, []int64{1, int64(len(decoded))})
		if err != nil {
			return nil, err
		}

		out, err := s.decoder.Run(ctx, map[string]*Tensor{
			inputIDs:             decT,
			encoderAttentionMask: maskT,
			encoderHiddenStates:  hidden,
		})
		if err != nil {
			return nil, fmt.Errorf("decoder step %d: %w", step, err)
		}

		logits, err := outputTensor(out, logitsOutput)
		if err != nil {
			return nil, fmt.Errorf("decoder step %d: %w", step, err)
		}

		next, err := argmaxLast(logits)
		if err != nil {
			return nil, fmt.Errorf("decoder step %d: %w", step, err)
		}

		if next == s.gen.EOSTokenID {
			break
		}

		decoded = append(decoded, next)
	}

	return decoded[1:], nil
}

// argmaxLast returns the argmax over the vocabulary of the last position of
// logits shaped [1, T, V].
func argmaxLast(logits *Tensor) (int64, error) {
	shape := logits.Shape()
	if len(shape) != 3 || shape[0] != 1 || shape[1] < 1 || shape[2] < 1 {
		return 0, fmt.Errorf("logits shape %v, want [1, T, V]", shape)
	}

	data, err := ExtractFloat32(logits)
	if err != nil {
		return 0, err
	}

	vocab := int(shape[2])
	row := data[len(data)-vocab:]

	best := 0
	for i, v := range row {
		if v > row[best] {
			best = i
		}
	}

	return int64(best), nil
}

// outputTensor picks the named output, falling back to the only output when
// the graph uses a different name.
func outputTensor(outputs map[string]*Tensor, name string) (*Tensor, error) {
	if t, ok := outputs[name]; ok && t != nil {
		return t, nil
	}

	if len(outputs) == 1 {
		for _, t := range outputs {
			if t != nil {
				return t, nil
			}
		}
	}

	return nil, fmt.Errorf("missing output %q", name)
}
