package onnx

import (
	"context"
	"fmt"
)

// Encoder runs a BERT-style encoder graph and returns its token embeddings.
type Encoder struct {
	runner     GraphRunner
	tokenTypes bool
}

// NewEncoder binds the encoder graph of e. token_type_ids are fed when the
// manifest declares them.
func NewEncoder(e *Engine) (*Encoder, error) {
	r, err := e.requireRunner(GraphEncoder)
	if err != nil {
		return nil, err
	}

	enc := &Encoder{runner: r}
	if s, ok := e.Session(GraphEncoder); ok {
		enc.tokenTypes = s.HasInput(tokenTypeIDs)
	}

	return enc, nil
}

// Forward runs a padded batch. ids and mask are row-major [batch, seqLen].
// It returns last_hidden_state flattened as [batch, seqLen, hidden] and the
// hidden size.
func (e *Encoder) Forward(ctx context.Context, ids, mask []int64, batch, seqLen int) ([]float32, int, error) {
	if batch < 1 || seqLen < 1 {
		return nil, 0, fmt.Errorf("encoder: empty batch %dx%d", batch, seqLen)
	}

	shape := []int64{int64(batch), int64(seqLen)}

	idsT, err := NewTensor(ids, shape)
	if err != nil {
		return nil, 0, fmt.Errorf("encoder input_ids: %w", err)
	}

	maskT, err := NewTensor(mask, shape)
	if err != nil {
		return nil, 0, fmt.Errorf("encoder attention_mask: %w", err)
	}

	inputs := map[string]*Tensor{inputIDs: idsT, attentionMask: maskT}
	if e.tokenTypes {
		types, err := NewTensor(make([]int64, batch*seqLen), shape)
		if err != nil {
			return nil, 0, err
		}
		inputs[tokenTypeIDs] = types
	}

	out, err := e.runner.Run(ctx, inputs)
	if err != nil {
		return nil, 0, fmt.Errorf("encoder: %w", err)
	}

	hidden, err := outputTensor(out, lastHiddenState)
	if err != nil {
		return nil, 0, fmt.Errorf("encoder: %w", err)
	}

	hs := hidden.Shape()
	if len(hs) != 3 || hs[0] != int64(batch) || hs[1] != int64(seqLen) {
		return nil, 0, fmt.Errorf("encoder: output shape %v, want [%d, %d, H]", hs, batch, seqLen)
	}

	data, err := ExtractFloat32(hidden)
	if err != nil {
		return nil, 0, fmt.Errorf("encoder: %w", err)
	}

	return data, int(hs[2]), nil
}
