// Package diacritics restores Romanian diacritics: a sequence-to-sequence
// model proposes an accented line and a mandatory-diacritics dictionary,
// built from corpus statistics, corrects the words it is certain about.
package diacritics

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// stripTable maps every accented Romanian letter, including the legacy
// cedilla forms, to its base letter.
var stripTable = map[rune]rune{
	'ț': 't', 'ș': 's', 'Ț': 'T', 'Ș': 'S',
	'ţ': 't', 'ş': 's', 'Ţ': 'T', 'Ş': 'S',
	'Ă': 'A', 'ă': 'a', 'Â': 'A', 'â': 'a',
	'Î': 'I', 'î': 'i',
}

var stripper = runes.Map(stripRune)

func stripRune(r rune) rune {
	if base, ok := stripTable[r]; ok {
		return base
	}

	return r
}

// Strip removes Romanian diacritics. It maps rune for rune, so the result
// has the same rune count as s.
func Strip(s string) string {
	out, _, err := transform.String(stripper, s)
	if err != nil {
		return strings.Map(stripRune, s)
	}

	return out
}

// GenerationMap lists, per base letter, the letters a position may take when
// enumerating accented variants. The base letter comes first.
type GenerationMap map[rune][]rune

// DefaultGenerationMap returns the Romanian generation map.
func DefaultGenerationMap() GenerationMap {
	return GenerationMap{
		't': {'t', 'ț'},
		's': {'s', 'ș'},
		'T': {'T', 'Ț'},
		'S': {'S', 'Ș'},
		'A': {'A', 'Ă', 'Â'},
		'a': {'a', 'ă', 'â'},
		'I': {'I', 'Î'},
		'i': {'i', 'î'},
	}
}

// Clone returns a deep copy of m.
func (m GenerationMap) Clone() GenerationMap {
	out := make(GenerationMap, len(m))
	for k, v := range m {
		out[k] = append([]rune(nil), v...)
	}

	return out
}

func (m GenerationMap) allows(base, r rune) bool {
	if base == r {
		return true
	}
	for _, v := range m[base] {
		if v == r {
			return true
		}
	}

	return false
}

// Capitalize upper-cases the first rune of word and lower-cases the rest.
func Capitalize(word string) string {
	if word == "" {
		return word
	}

	r, size := utf8.DecodeRuneInString(word)

	return strings.ToUpper(string(r)) + strings.ToLower(word[size:])
}
