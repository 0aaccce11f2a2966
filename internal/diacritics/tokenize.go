package diacritics

import (
	"regexp"
	"strings"
	"unicode"
)

// Token is a word or punctuation run and its byte span in the source text.
type Token struct {
	Text  string
	Start int
	End   int
}

// IsWord reports whether the token starts with a letter or digit.
func (t Token) IsWord() bool {
	for _, r := range t.Text {
		return unicode.IsLetter(r) || unicode.IsNumber(r) || r == '_'
	}

	return false
}

var (
	wordPunctPattern = regexp.MustCompile(`[\p{L}\p{M}\p{N}_]+|[^\p{L}\p{M}\p{N}_\s]+`)
	letterRunPattern = regexp.MustCompile(`[\p{L}\p{M}]+`)
)

// Tokenize splits s into maximal runs of word characters (letters, digits,
// underscore) and maximal runs of other non-space characters.
func Tokenize(s string) []Token {
	return findTokens(wordPunctPattern, s)
}

// Words returns the maximal letter runs of s.
func Words(s string) []Token {
	return findTokens(letterRunPattern, s)
}

func findTokens(re *regexp.Regexp, s string) []Token {
	locs := re.FindAllStringIndex(s, -1)
	tokens := make([]Token, 0, len(locs))
	for _, loc := range locs {
		tokens = append(tokens, Token{Text: s[loc[0]:loc[1]], Start: loc[0], End: loc[1]})
	}

	return tokens
}

// FixPunctuation removes the space left before a sentence-final period.
func FixPunctuation(s string) string {
	return strings.ReplaceAll(s, " .", ".")
}
