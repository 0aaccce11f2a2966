package text

import (
	"errors"
	"strings"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ErrEmptyText is returned when the input text is empty or whitespace-only.
var ErrEmptyText = errors.New("text is empty")

// Normalize prepares raw request text for a pipeline.
// It trims surrounding whitespace, normalizes line endings to \n,
// and rejects empty or whitespace-only input.
func Normalize(s string) (string, error) {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	s = strings.TrimSpace(s)

	if s == "" {
		return "", ErrEmptyText
	}

	return s, nil
}

// FixCedilla replaces the legacy cedilla letters ţ ş Ţ Ş with the
// comma-below forms ț ș Ț Ș. Other runes are left untouched.
func FixCedilla(s string) string {
	return strings.Map(cedillaToComma, s)
}

// Canonical composes s to NFC and then applies FixCedilla. Decomposed input
// such as "s" + U+0327 therefore ends up as "ș" as well.
func Canonical(s string) string {
	t := transform.Chain(norm.NFC, runes.Map(cedillaToComma))
	out, _, err := transform.String(t, s)
	if err != nil {
		return FixCedilla(norm.NFC.String(s))
	}

	return out
}

func cedillaToComma(r rune) rune {
	switch r {
	case 'ţ':
		return 'ț'
	case 'ş':
		return 'ș'
	case 'Ţ':
		return 'Ț'
	case 'Ş':
		return 'Ș'
	default:
		return r
	}
}
