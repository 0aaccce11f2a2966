package diacritics

// Permuter enumerates accented variants of a word.
type Permuter struct {
	gen    GenerationMap
	banned map[rune]bool
}

// NewPermuter returns a Permuter over gen. Banned base letters are never
// expanded and always keep their own value.
func NewPermuter(gen GenerationMap, banned ...rune) *Permuter {
	p := &Permuter{gen: gen.Clone(), banned: make(map[rune]bool, len(banned))}
	for _, r := range banned {
		p.banned[r] = true
	}

	return p
}

// Permutations enumerates the accented variants of word with the default
// generation map.
func Permutations(word string) []string {
	return NewPermuter(DefaultGenerationMap()).Permutations(word)
}

// Count returns how many variants Permutations would produce for word.
func (p *Permuter) Count(word string) int {
	n := 1
	for _, r := range Strip(word) {
		n *= len(p.options(r))
	}

	return n
}

// Permutations returns every string obtained by substituting, at each rune
// position, any variant of that position's stripped letter. The first
// position varies slowest and variants follow generation-map order, so the
// stripped word always comes first.
func (p *Permuter) Permutations(word string) []string {
	base := []rune(Strip(word))
	if len(base) == 0 {
		return []string{""}
	}

	choices := make([][]rune, len(base))
	for i, r := range base {
		choices[i] = p.options(r)
	}

	out := make([]string, 0, p.Count(word))
	idx := make([]int, len(base))
	buf := make([]rune, len(base))

	for {
		for i, c := range idx {
			buf[i] = choices[i][c]
		}
		out = append(out, string(buf))

		pos := len(idx) - 1
		for pos >= 0 {
			idx[pos]++
			if idx[pos] < len(choices[pos]) {
				break
			}
			idx[pos] = 0
			pos--
		}
		if pos < 0 {
			return out
		}
	}
}

// IsVariant reports whether word is one of the permutations of key, where key
// is already stripped.
func (p *Permuter) IsVariant(word, key string) bool {
	wr := []rune(word)
	kr := []rune(key)
	if len(wr) != len(kr) {
		return false
	}

	for i, r := range wr {
		base := kr[i]
		if r == base {
			continue
		}
		if p.banned[base] || !p.gen.allows(base, r) {
			return false
		}
	}

	return true
}

func (p *Permuter) options(r rune) []rune {
	if p.banned[r] {
		return []rune{r}
	}
	if v, ok := p.gen[r]; ok && len(v) > 0 {
		return v
	}

	return []rune{r}
}
