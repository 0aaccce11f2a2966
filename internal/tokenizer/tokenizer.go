// Package tokenizer turns text into the token ids expected by the exported
// transformer graphs and back. SentencePiece serves the mT5 diacritics model,
// WordPiece the BERT sentence encoder.
package tokenizer

import "fmt"

// Tokenizer encodes text into model token ids and decodes ids back to text.
type Tokenizer interface {
	// Encode tokenizes text without adding special tokens.
	Encode(text string) ([]int64, error)
	// Decode joins ids into text, skipping special tokens.
	Decode(ids []int64) (string, error)
}

// CheckVocabulary fails when a tokenizer with pieces entries can emit ids
// outside a model vocabulary of modelVocab rows. A non-positive modelVocab
// skips the check.
func CheckVocabulary(pieces, modelVocab int) error {
	if modelVocab > 0 && pieces > modelVocab {
		return fmt.Errorf("tokenizer has %d pieces but the model vocabulary holds %d", pieces, modelVocab)
	}

	return nil
}
