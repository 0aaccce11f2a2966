package tokenizer

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/tidwall/gjson"
	gosp "github.com/vikesh-raj/go-sentencepiece-encoder/sentencepiece"
)

// ErrEmptyPath is returned when a tokenizer is constructed with an empty path.
var ErrEmptyPath = errors.New("tokenizer model path must not be empty")

const spaceMarker = "▁"

// SentencePieceTokenizer encodes with a UNIGRAM SentencePiece model and
// decodes with the piece table of the matching Hugging Face tokenizer.json.
type SentencePieceTokenizer struct {
	proc    gosp.Sentencepiece
	pieces  []string
	special map[int64]bool
}

// NewSentencePieceTokenizer loads the SentencePiece model at modelPath and
// the vocabulary at vocabPath (tokenizer.json).
func NewSentencePieceTokenizer(modelPath, vocabPath string) (*SentencePieceTokenizer, error) {
	if modelPath == "" || vocabPath == "" {
		return nil, ErrEmptyPath
	}

	proc, err := gosp.NewSentencepieceFromFile(modelPath, false)
	if err != nil {
		return nil, fmt.Errorf("load sentencepiece model %q: %w", modelPath, err)
	}

	data, err := os.ReadFile(vocabPath)
	if err != nil {
		return nil, fmt.Errorf("read tokenizer vocabulary: %w", err)
	}

	pieces, special, err := parsePieceTable(data)
	if err != nil {
		return nil, fmt.Errorf("parse tokenizer vocabulary %q: %w", vocabPath, err)
	}

	return &SentencePieceTokenizer{proc: proc, pieces: pieces, special: special}, nil
}

// parsePieceTable reads model.vocab ([piece, score] pairs in id order) and
// added_tokens from a tokenizer.json document.
func parsePieceTable(data []byte) ([]string, map[int64]bool, error) {
	if !gjson.ValidBytes(data) {
		return nil, nil, errors.New("invalid JSON")
	}

	vocab := gjson.GetBytes(data, "model.vocab")
	if !vocab.IsArray() {
		return nil, nil, errors.New("model.vocab is not a piece list")
	}

	var pieces []string
	vocab.ForEach(func(_, entry gjson.Result) bool {
		pieces = append(pieces, entry.Get("0").String())
		return true
	})
	if len(pieces) == 0 {
		return nil, nil, errors.New("model.vocab is empty")
	}

	special := make(map[int64]bool)
	gjson.GetBytes(data, "added_tokens").ForEach(func(_, tok gjson.Result) bool {
		id := tok.Get("id").Int()
		for int(id) >= len(pieces) {
			pieces = append(pieces, "")
		}
		pieces[id] = tok.Get("content").String()
		if tok.Get("special").Bool() {
			special[id] = true
		}
		return true
	})

	return pieces, special, nil
}

// Encode tokenizes text and returns SentencePiece token IDs as int64.
func (t *SentencePieceTokenizer) Encode(text string) ([]int64, error) {
	if text == "" {
		return []int64{}, nil
	}

	ids := t.proc.TokenizeToIDs(text)

	result := make([]int64, len(ids))
	for i, id := range ids {
		result[i] = int64(id)
	}

	return result, nil
}

// Decode concatenates the pieces of ids, turning the word-boundary marker
// into spaces. Special tokens are skipped.
func (t *SentencePieceTokenizer) Decode(ids []int64) (string, error) {
	var b strings.Builder
	for _, id := range ids {
		if id < 0 || int(id) >= len(t.pieces) {
			return "", fmt.Errorf("token id %d outside vocabulary of %d", id, len(t.pieces))
		}
		if t.special[id] {
			continue
		}
		b.WriteString(t.pieces[id])
	}

	text := strings.ReplaceAll(b.String(), spaceMarker, " ")

	return strings.TrimLeft(text, " "), nil
}

// VocabSize returns the number of known pieces.
func (t *SentencePieceTokenizer) VocabSize() int {
	return len(t.pieces)
}
