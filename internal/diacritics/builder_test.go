package diacritics

import (
	"testing"
	"time"
)

func addN(b *Builder, text string, n int) {
	for range n {
		b.Add(text)
	}
}

func TestBuilder_ThresholdReached(t *testing.T) {
	b := NewBuilder(BuilderOptions{})
	addN(b, "în țară", 19)
	addN(b, "în tara", 1)

	d := b.Build()

	got, ok := d.Lookup("tara")
	if !ok || got != "țară" {
		t.Errorf("Lookup(tara) = %q, %v; want țară (19/20 reaches 0.95)", got, ok)
	}

	got, ok = d.Lookup("Tara")
	if !ok || got != "Țară" {
		t.Errorf("Lookup(Tara) = %q, %v; want Țară", got, ok)
	}

	got, ok = d.Lookup("in")
	if !ok || got != "în" {
		t.Errorf("Lookup(in) = %q, %v; want în", got, ok)
	}
}

func TestBuilder_ThresholdMissed(t *testing.T) {
	b := NewBuilder(BuilderOptions{})
	addN(b, "în țară", 18)
	addN(b, "în tara", 2)

	d := b.Build()

	if _, ok := d.Lookup("tara"); ok {
		t.Error("tara fixed although 18/20 is below 0.95")
	}

	if _, ok := d.Lookup("Tara"); ok {
		t.Error("capitalized form fixed for a word that failed the threshold")
	}
}

func TestBuilder_CustomThreshold(t *testing.T) {
	b := NewBuilder(BuilderOptions{Threshold: 0.8})
	addN(b, "în țară", 8)
	addN(b, "în tara", 2)

	if _, ok := b.Build().Lookup("tara"); !ok {
		t.Error("tara not fixed at 8/10 with threshold 0.8")
	}
}

func TestBuilder_FirstWordLowercased(t *testing.T) {
	b := NewBuilder(BuilderOptions{})
	b.Add("Școala e aproape")
	b.Add("merg la școala")

	d := b.Build()

	got, ok := d.Lookup("scoala")
	if !ok || got != "școala" {
		t.Errorf("Lookup(scoala) = %q, %v; want școala", got, ok)
	}

	if _, ok := b.counts["Scoala"]; ok {
		t.Error("first word of a text was counted with its capital")
	}
}

func TestBuilder_OwnStatisticsBeatCapitalized(t *testing.T) {
	b := NewBuilder(BuilderOptions{})
	addN(b, "e mare", 5)
	addN(b, "e Mâre", 5)

	d := b.Build()

	got, ok := d.Lookup("Mare")
	if !ok || got != "Mâre" {
		t.Errorf("Lookup(Mare) = %q, %v; want Mâre from its own statistics", got, ok)
	}

	got, ok = d.Lookup("mare")
	if !ok || got != "mare" {
		t.Errorf("Lookup(mare) = %q, %v; want mare", got, ok)
	}
}

func TestBuilder_MinCount(t *testing.T) {
	b := NewBuilder(BuilderOptions{MinCount: 3})
	addN(b, "o țară", 2)
	addN(b, "o fată", 3)

	d := b.Build()

	if _, ok := d.Lookup("tara"); ok {
		t.Error("tara fixed below MinCount")
	}

	if _, ok := d.Lookup("fata"); !ok {
		t.Error("fata not fixed at MinCount")
	}
}

func TestBuilder_TieBreaksLexicographically(t *testing.T) {
	b := NewBuilder(BuilderOptions{Threshold: 0.5})
	b.Add("o tara")
	b.Add("o țară")

	got, ok := b.Build().Lookup("țară")
	if !ok || got != "tara" {
		t.Errorf("Lookup(țară) = %q, %v; want tara", got, ok)
	}
}

func TestBuilder_NoFixedWordFailsThreshold(t *testing.T) {
	corpus := []string{
		"în țară se află munți",
		"în tara lor",
		"fata are o fată",
		"se află în casă",
		"casa e mare",
		"o casă mare în țară",
	}

	b := NewBuilder(BuilderOptions{})
	for _, c := range corpus {
		b.Add(c)
	}

	d := b.Build()

	for key, forms := range b.counts {
		total, best := 0, 0
		for _, n := range forms {
			total += n
			best = max(best, n)
		}

		form, ok := d.Forms()[key]
		if !ok {
			continue
		}

		if float64(forms[form]) < DefaultThreshold*float64(total) {
			t.Errorf("key %q fixed to %q with %d/%d occurrences", key, form, forms[form], total)
		}
	}

	for _, key := range []string{"tara", "fata", "casa"} {
		if _, ok := d.Forms()[key]; ok {
			t.Errorf("ambiguous key %q was fixed", key)
		}
	}
}

func TestBuilder_SeenCapitalKeyKeepsOwnStatistics(t *testing.T) {
	b := NewBuilder(BuilderOptions{})
	addN(b, "o țară", 4)
	b.Add("azi Tara mare")
	b.Add("azi Țara mare")

	d := b.Build()

	got, ok := d.Lookup("țară")
	if !ok || got != "țară" {
		t.Fatalf("Lookup(țară) = %q, %v; want țară", got, ok)
	}

	if got, ok := d.Lookup("Tara"); ok {
		t.Errorf("Lookup(Tara) = %q; Tara split 1/1 in the corpus and must stay unfixed", got)
	}

	if _, ok := d.Forms()["Tara"]; ok {
		t.Error("capitalized winner stored under a key that failed the threshold")
	}
}

func TestBuilder_Metadata(t *testing.T) {
	b := NewBuilder(BuilderOptions{Banned: []rune("a")})
	b.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }

	b.Add("în țară")
	b.Add("")
	b.Add("123 !!")
	b.Add("o fată frumoasă")

	texts, words := b.Stats()
	if texts != 2 || words != 5 {
		t.Fatalf("Stats = %d texts, %d words; want 2, 5", texts, words)
	}

	meta := b.Build().Metadata()

	if meta.Threshold != DefaultThreshold || meta.MinCount != 1 {
		t.Errorf("threshold/min_count = %v/%d", meta.Threshold, meta.MinCount)
	}

	if meta.CorpusTexts != 2 || meta.CorpusWords != 5 {
		t.Errorf("corpus = %d texts, %d words", meta.CorpusTexts, meta.CorpusWords)
	}

	if meta.Banned != "a" {
		t.Errorf("Banned = %q; want a", meta.Banned)
	}

	if !meta.BuiltAt.Equal(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("BuiltAt = %v", meta.BuiltAt)
	}

	if meta.FixedWords == 0 {
		t.Error("FixedWords = 0")
	}
}

func TestBuilder_CedillaCountsAsComma(t *testing.T) {
	b := NewBuilder(BuilderOptions{})
	b.Add("o ţară")
	b.Add("o țară")

	got, ok := b.Build().Lookup("tara")
	if !ok || got != "țară" {
		t.Errorf("Lookup(tara) = %q, %v; want țară", got, ok)
	}
}
