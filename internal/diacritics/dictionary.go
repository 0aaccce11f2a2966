package diacritics

import (
	"sort"
	"strings"
	"time"
)

// Metadata describes how a dictionary was built.
type Metadata struct {
	Threshold   float64   `json:"threshold"`
	MinCount    int       `json:"min_count"`
	CorpusTexts int       `json:"corpus_texts"`
	CorpusWords int       `json:"corpus_words"`
	FixedWords  int       `json:"fixed_words"`
	Banned      string    `json:"banned,omitempty"`
	BuiltAt     time.Time `json:"built_at"`
}

// Dictionary maps stripped word forms to their mandatory accented form. Any
// variant of a stored key (a permutation of the key under the generation map)
// is corrected to that key's form. A Dictionary is immutable once built and
// safe for concurrent lookups.
type Dictionary struct {
	forms    map[string]string
	permuter *Permuter
	meta     Metadata
}

// NewDictionary builds a Dictionary from stripped keys to accented forms.
// Pairs whose form does not strip back to its key are dropped.
func NewDictionary(forms map[string]string, meta Metadata) *Dictionary {
	banned := []rune(meta.Banned)
	d := &Dictionary{
		forms:    make(map[string]string, len(forms)),
		permuter: NewPermuter(DefaultGenerationMap(), banned...),
		meta:     meta,
	}
	for k, v := range forms {
		if Strip(v) != k {
			continue
		}
		d.forms[k] = v
	}
	d.meta.FixedWords = len(d.forms)

	return d
}

// Lookup returns the mandatory form for token, if the token is a variant of a
// fixed word. Matching is exact and case-sensitive.
func (d *Dictionary) Lookup(token string) (string, bool) {
	if d == nil || token == "" {
		return "", false
	}

	key := Strip(token)
	form, ok := d.forms[key]
	if !ok {
		return "", false
	}
	if !d.permuter.IsVariant(token, key) {
		return "", false
	}

	return form, true
}

// Correct replaces every token of text found in the dictionary with its
// mandatory form. Bytes outside replaced tokens are copied unchanged.
func (d *Dictionary) Correct(text string) string {
	if d == nil || len(d.forms) == 0 {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))

	last := 0
	for _, tok := range Tokenize(text) {
		if !tok.IsWord() {
			continue
		}
		form, ok := d.Lookup(tok.Text)
		if !ok || form == tok.Text {
			continue
		}
		b.WriteString(text[last:tok.Start])
		b.WriteString(form)
		last = tok.End
	}
	b.WriteString(text[last:])

	return b.String()
}

// Len returns the number of fixed words.
func (d *Dictionary) Len() int {
	if d == nil {
		return 0
	}

	return len(d.forms)
}

// Metadata returns the build metadata.
func (d *Dictionary) Metadata() Metadata {
	return d.meta
}

// Forms returns a copy of the stripped key to accented form mapping.
func (d *Dictionary) Forms() map[string]string {
	out := make(map[string]string, len(d.forms))
	for k, v := range d.forms {
		out[k] = v
	}

	return out
}

// Keys returns the stripped keys in sorted order.
func (d *Dictionary) Keys() []string {
	keys := make([]string, 0, len(d.forms))
	for k := range d.forms {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return keys
}

// Entries calls fn for every explicit surface form the dictionary corrects,
// in key order, until fn returns false. Keys with more than limit variants
// are skipped when limit is positive.
func (d *Dictionary) Entries(limit int, fn func(surface, form string) bool) {
	for _, key := range d.Keys() {
		if limit > 0 && d.permuter.Count(key) > limit {
			continue
		}
		form := d.forms[key]
		for _, p := range d.permuter.Permutations(key) {
			if !fn(p, form) {
				return
			}
		}
	}
}
