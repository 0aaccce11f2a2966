package tokenizer

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	maxWordChars   = 100
	continuePrefix = "##"
)

// Special BERT tokens.
const (
	TokenCLS = "[CLS]"
	TokenSEP = "[SEP]"
	TokenPAD = "[PAD]"
	TokenUNK = "[UNK]"
)

// WordPieceOptions configures basic tokenization before WordPiece matching.
type WordPieceOptions struct {
	Lowercase    bool
	StripAccents bool
}

// WordPieceTokenizer implements the BERT WordPiece scheme over a vocab.txt
// file (one piece per line, id = line number).
type WordPieceTokenizer struct {
	vocab  map[string]int64
	pieces []string
	opts   WordPieceOptions

	clsID, sepID, padID, unkID int64
}

// NewWordPieceTokenizer loads vocab.txt from vocabPath.
func NewWordPieceTokenizer(vocabPath string, opts WordPieceOptions) (*WordPieceTokenizer, error) {
	if vocabPath == "" {
		return nil, ErrEmptyPath
	}

	f, err := os.Open(vocabPath)
	if err != nil {
		return nil, fmt.Errorf("open wordpiece vocabulary: %w", err)
	}
	defer f.Close()

	var pieces []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		pieces = append(pieces, strings.TrimRight(sc.Text(), "\r"))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read wordpiece vocabulary %q: %w", vocabPath, err)
	}

	return NewWordPieceTokenizerFromPieces(pieces, opts)
}

// NewWordPieceTokenizerFromPieces builds a tokenizer from an in-memory piece
// list. The list must contain [CLS], [SEP], [PAD] and [UNK].
func NewWordPieceTokenizerFromPieces(pieces []string, opts WordPieceOptions) (*WordPieceTokenizer, error) {
	t := &WordPieceTokenizer{
		vocab:  make(map[string]int64, len(pieces)),
		pieces: pieces,
		opts:   opts,
	}
	for i, p := range pieces {
		if _, dup := t.vocab[p]; !dup {
			t.vocab[p] = int64(i)
		}
	}

	for _, sp := range []struct {
		name string
		dst  *int64
	}{
		{TokenCLS, &t.clsID},
		{TokenSEP, &t.sepID},
		{TokenPAD, &t.padID},
		{TokenUNK, &t.unkID},
	} {
		id, ok := t.vocab[sp.name]
		if !ok {
			return nil, fmt.Errorf("wordpiece vocabulary lacks %s", sp.name)
		}
		*sp.dst = id
	}

	return t, nil
}

// PadID returns the id of [PAD].
func (t *WordPieceTokenizer) PadID() int64 { return t.padID }

// VocabSize returns the number of pieces.
func (t *WordPieceTokenizer) VocabSize() int { return len(t.pieces) }

// Encode tokenizes text into WordPiece ids without [CLS]/[SEP].
func (t *WordPieceTokenizer) Encode(text string) ([]int64, error) {
	ids := []int64{}
	for _, word := range t.basicTokens(text) {
		ids = append(ids, t.wordPieces(word)...)
	}

	return ids, nil
}

// EncodeForModel wraps the encoded text in [CLS] ... [SEP], truncating the
// content so the whole sequence fits in maxLen. maxLen <= 2 disables
// truncation.
func (t *WordPieceTokenizer) EncodeForModel(text string, maxLen int) ([]int64, error) {
	ids, err := t.Encode(text)
	if err != nil {
		return nil, err
	}

	if maxLen > 2 && len(ids) > maxLen-2 {
		ids = ids[:maxLen-2]
	}

	out := make([]int64, 0, len(ids)+2)
	out = append(out, t.clsID)
	out = append(out, ids...)
	out = append(out, t.sepID)

	return out, nil
}

// Decode joins pieces, gluing "##" continuations to the previous piece.
func (t *WordPieceTokenizer) Decode(ids []int64) (string, error) {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		if id < 0 || int(id) >= len(t.pieces) {
			return "", fmt.Errorf("token id %d outside vocabulary of %d", id, len(t.pieces))
		}
		switch id {
		case t.clsID, t.sepID, t.padID:
			continue
		}
		parts = append(parts, t.pieces[id])
	}

	return strings.ReplaceAll(strings.Join(parts, " "), " "+continuePrefix, ""), nil
}

func (t *WordPieceTokenizer) basicTokens(text string) []string {
	if t.opts.Lowercase {
		text = strings.ToLower(text)
	}
	if t.opts.StripAccents {
		chain := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
		if out, _, err := transform.String(chain, text); err == nil {
			text = out
		}
	}

	var (
		words []string
		cur   strings.Builder
	)
	flush := func() {
		if cur.Len() > 0 {
			words = append(words, cur.String())
			cur.Reset()
		}
	}
	for _, r := range text {
		switch {
		case unicode.IsSpace(r) || unicode.IsControl(r):
			flush()
		case isPunct(r):
			flush()
			words = append(words, string(r))
		default:
			cur.WriteRune(r)
		}
	}
	flush()

	return words
}

// wordPieces applies greedy longest-match-first over a single word.
func (t *WordPieceTokenizer) wordPieces(word string) []int64 {
	chars := []rune(word)
	if len(chars) > maxWordChars {
		return []int64{t.unkID}
	}

	var ids []int64
	for start := 0; start < len(chars); {
		end := len(chars)
		found := int64(-1)
		for end > start {
			piece := string(chars[start:end])
			if start > 0 {
				piece = continuePrefix + piece
			}
			if id, ok := t.vocab[piece]; ok {
				found = id
				break
			}
			end--
		}
		if found < 0 {
			return []int64{t.unkID}
		}
		ids = append(ids, found)
		start = end
	}

	return ids
}

func isPunct(r rune) bool {
	if (r >= 33 && r <= 47) || (r >= 58 && r <= 64) || (r >= 91 && r <= 96) || (r >= 123 && r <= 126) {
		return true
	}

	return unicode.IsPunct(r)
}
