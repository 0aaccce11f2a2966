package diacritics

import (
	"sort"
	"strings"
	"time"

	"github.com/example/go-ronlp/internal/text"
)

const DefaultThreshold = 0.95

// BuilderOptions configures dictionary construction.
type BuilderOptions struct {
	// Threshold is the share of a stripped form's occurrences its most
	// frequent accented form must reach. Zero means DefaultThreshold.
	Threshold float64
	// MinCount is the minimum number of occurrences of a stripped form.
	MinCount int
	// Banned base letters are never expanded when matching variants.
	Banned []rune
}

// Builder accumulates corpus statistics for a Dictionary. It is not safe for
// concurrent use.
type Builder struct {
	opts   BuilderOptions
	counts map[string]map[string]int
	texts  int
	words  int
	now    func() time.Time
}

func NewBuilder(opts BuilderOptions) *Builder {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.MinCount < 1 {
		opts.MinCount = 1
	}

	return &Builder{
		opts:   opts,
		counts: make(map[string]map[string]int),
		now:    time.Now,
	}
}

// Add counts the words of one corpus text. The first word is lower-cased
// since its capitalization only marks the start of the text.
func (b *Builder) Add(raw string) {
	words := Words(text.Canonical(raw))
	if len(words) == 0 {
		return
	}
	b.texts++

	for i, w := range words {
		word := w.Text
		if i == 0 {
			word = strings.ToLower(word)
		}

		key := Strip(word)
		forms, ok := b.counts[key]
		if !ok {
			forms = make(map[string]int, 1)
			b.counts[key] = forms
		}
		forms[word]++
		b.words++
	}
}

// Build fixes every stripped form whose leading accented form reaches the
// threshold. Each fixed word also contributes its capitalized form, unless
// the capitalized key was itself seen in the corpus: a seen key is fixed
// only by its own statistics.
func (b *Builder) Build() *Dictionary {
	keys := make([]string, 0, len(b.counts))
	for k := range b.counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	own := make(map[string]string)
	var winners []string
	for _, key := range keys {
		form, ok := b.winner(b.counts[key])
		if !ok {
			continue
		}
		own[key] = form
		winners = append(winners, form)
	}

	forms := make(map[string]string, len(own)*2)
	for k, v := range own {
		forms[k] = v
	}
	for _, w := range winners {
		capital := Capitalize(w)
		key := Strip(capital)
		if _, seen := b.counts[key]; seen {
			continue
		}
		if _, exists := forms[key]; exists {
			continue
		}
		forms[key] = capital
	}

	return NewDictionary(forms, Metadata{
		Threshold:   b.opts.Threshold,
		MinCount:    b.opts.MinCount,
		CorpusTexts: b.texts,
		CorpusWords: b.words,
		Banned:      string(b.opts.Banned),
		BuiltAt:     b.now().UTC(),
	})
}

// winner returns the most frequent form if it passes the threshold. Ties
// resolve to the lexicographically smaller form.
func (b *Builder) winner(forms map[string]int) (string, bool) {
	total := 0
	best, bestCount := "", 0
	for form, n := range forms {
		total += n
		if n > bestCount || (n == bestCount && form < best) {
			best, bestCount = form, n
		}
	}

	if total < b.opts.MinCount {
		return "", false
	}
	if float64(bestCount) < b.opts.Threshold*float64(total) {
		return "", false
	}

	return best, true
}

// Stats reports the number of texts and words added so far.
func (b *Builder) Stats() (texts, words int) {
	return b.texts, b.words
}
