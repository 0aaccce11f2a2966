package text

import (
	"strings"
	"unicode"
)

// ChunkBySentence splits text at sentence boundaries (., !, ?) into chunks of
// at most maxChars bytes, grouping consecutive sentences. Concatenating the
// chunks yields text exactly: separators stay attached to the preceding
// chunk. Sentences longer than maxChars are kept whole. A maxChars of 0
// disables splitting.
func ChunkBySentence(text string, maxChars int) []string {
	if maxChars <= 0 || len(text) <= maxChars {
		return []string{text}
	}

	sentences := splitSentences(text)
	if len(sentences) <= 1 {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder

	for _, s := range sentences {
		if current.Len() > 0 && current.Len()+len(strings.TrimRightFunc(s, unicode.IsSpace)) > maxChars {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		current.WriteString(s)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}

	return chunks
}

// splitSentences cuts text after each run of terminators followed by
// whitespace, keeping that whitespace with the sentence. "3.14" is not a
// boundary. No bytes are dropped.
func splitSentences(text string) []string {
	var sentences []string
	start := 0
	inTerminators, sawSpace := false, false

	for i, r := range text {
		switch {
		case r == '.' || r == '!' || r == '?':
			if sawSpace {
				sentences = append(sentences, text[start:i])
				start = i
			}
			inTerminators, sawSpace = true, false
		case unicode.IsSpace(r):
			if inTerminators {
				sawSpace = true
			}
		default:
			if sawSpace {
				sentences = append(sentences, text[start:i])
				start = i
			}
			inTerminators, sawSpace = false, false
		}
	}

	if start < len(text) {
		sentences = append(sentences, text[start:])
	}

	return sentences
}
