package diacritics

import (
	"strings"
	"unicode"
)

// alignWindow bounds how far ahead in the output a matching word is searched.
const alignWindow = 8

// Align projects the diacritics of output onto input. Every input word takes
// the letters of the next output word whose stripped form equals its own
// (ignoring case); the input's case, spacing and punctuation are kept and
// words without a match are copied unchanged. The result differs from input
// only at letters that carry or lose diacritics.
func Align(input, output string) string {
	in := Words(input)
	out := Words(output)
	if len(in) == 0 || len(out) == 0 {
		return input
	}

	var b strings.Builder
	b.Grow(len(input) + len(input)/4)

	last, j := 0, 0
	for _, w := range in {
		key := Strip(w.Text)
		match := -1
		for k := j; k < len(out) && k < j+alignWindow; k++ {
			if strings.EqualFold(Strip(out[k].Text), key) {
				match = k
				break
			}
		}
		if match < 0 {
			continue
		}
		j = match + 1

		transferred, ok := transferDiacritics(w.Text, out[match].Text)
		if !ok || transferred == w.Text {
			continue
		}
		b.WriteString(input[last:w.Start])
		b.WriteString(transferred)
		last = w.End
	}
	b.WriteString(input[last:])

	return b.String()
}

// transferDiacritics rewrites dst with the letters of src position by
// position, keeping dst's case. Only positions where both runes strip to the
// same letter change.
func transferDiacritics(dst, src string) (string, bool) {
	dr := []rune(dst)
	sr := []rune(src)
	if len(dr) != len(sr) {
		return dst, false
	}

	for i, r := range dr {
		s := sr[i]
		if unicode.ToLower(stripRune(s)) != unicode.ToLower(stripRune(r)) {
			return dst, false
		}
		if unicode.IsUpper(r) {
			s = unicode.ToUpper(s)
		} else {
			s = unicode.ToLower(s)
		}
		dr[i] = s
	}

	return string(dr), true
}
