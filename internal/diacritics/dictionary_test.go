package diacritics

import (
	"slices"
	"testing"
)

func newTestDictionary(meta Metadata) *Dictionary {
	return NewDictionary(map[string]string{
		"tara": "țară",
		"Tara": "Țară",
		"fata": "fată",
		"in":   "în",
		"bad":  "țară",
	}, meta)
}

func TestNewDictionary_DropsMismatchedPairs(t *testing.T) {
	d := newTestDictionary(Metadata{})

	if d.Len() != 4 {
		t.Fatalf("Len = %d; want 4", d.Len())
	}

	if _, ok := d.Forms()["bad"]; ok {
		t.Error("pair whose form does not strip to its key was kept")
	}

	if d.Metadata().FixedWords != 4 {
		t.Errorf("Metadata().FixedWords = %d; want 4", d.Metadata().FixedWords)
	}
}

func TestDictionaryLookup(t *testing.T) {
	d := newTestDictionary(Metadata{})

	cases := []struct {
		token string
		want  string
		ok    bool
	}{
		{"tara", "țară", true},
		{"țara", "țară", true},
		{"tară", "țară", true},
		{"țară", "țară", true},
		{"Tara", "Țară", true},
		{"TARA", "", false},
		{"fata", "fată", true},
		{"in", "în", true},
		{"mare", "", false},
		{"", "", false},
		{",", "", false},
	}
	for _, tc := range cases {
		got, ok := d.Lookup(tc.token)
		if ok != tc.ok || got != tc.want {
			t.Errorf("Lookup(%q) = %q, %v; want %q, %v", tc.token, got, ok, tc.want, tc.ok)
		}
	}
}

func TestDictionaryLookup_Banned(t *testing.T) {
	d := newTestDictionary(Metadata{Banned: "a"})

	if _, ok := d.Lookup("tară"); ok {
		t.Error("Lookup(tară) matched although 'a' is banned")
	}

	got, ok := d.Lookup("țara")
	if !ok || got != "țară" {
		t.Errorf("Lookup(țara) = %q, %v; want țară, true", got, ok)
	}
}

func TestDictionaryCorrect(t *testing.T) {
	d := newTestDictionary(Metadata{})

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"replaces words", "tara mea , fata", "țară mea , fată"},
		{"keeps spacing", "tara  ,fata\t!", "țară  ,fată\t!"},
		{"capitalized", "Tara e mare", "Țară e mare"},
		{"untouched", "nimic de schimbat", "nimic de schimbat"},
		{"substring not matched", "tarabă", "tarabă"},
		{"empty", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := d.Correct(tc.in); got != tc.want {
				t.Errorf("Correct(%q) = %q; want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestDictionaryCorrect_OnlySubstitutedSpansChange(t *testing.T) {
	d := newTestDictionary(Metadata{})

	in := "  in  tara,fata ... și  altele "
	got := d.Correct(in)

	if Strip(got) != Strip(in) {
		t.Errorf("Correct changed more than diacritics: %q -> %q", in, got)
	}

	if got != "  în  țară,fată ... și  altele " {
		t.Errorf("Correct(%q) = %q", in, got)
	}
}

func TestDictionary_NilSafe(t *testing.T) {
	var d *Dictionary

	if d.Len() != 0 {
		t.Error("nil dictionary has entries")
	}

	if _, ok := d.Lookup("tara"); ok {
		t.Error("nil dictionary matched")
	}

	if got := d.Correct("tara"); got != "tara" {
		t.Errorf("nil Correct = %q", got)
	}
}

func TestDictionaryKeys(t *testing.T) {
	d := newTestDictionary(Metadata{})

	want := []string{"Tara", "fata", "in", "tara"}
	if got := d.Keys(); !slices.Equal(got, want) {
		t.Errorf("Keys = %q; want %q", got, want)
	}
}

func TestDictionaryEntries(t *testing.T) {
	d := NewDictionary(map[string]string{"tara": "țară", "in": "în"}, Metadata{})

	surfaces := map[string]string{}
	d.Entries(0, func(surface, form string) bool {
		surfaces[surface] = form
		return true
	})

	if len(surfaces) != 18+2 {
		t.Fatalf("Entries produced %d surfaces; want 20", len(surfaces))
	}

	for _, s := range []string{"tara", "tară", "țara", "țară"} {
		if surfaces[s] != "țară" {
			t.Errorf("surface %q -> %q; want țară", s, surfaces[s])
		}
	}

	if surfaces["în"] != "în" || surfaces["in"] != "în" {
		t.Errorf("surfaces of in = %q, %q", surfaces["in"], surfaces["în"])
	}
}

func TestDictionaryEntries_LimitAndStop(t *testing.T) {
	d := NewDictionary(map[string]string{"tara": "țară", "in": "în"}, Metadata{})

	var limited []string
	d.Entries(10, func(surface, _ string) bool {
		limited = append(limited, surface)
		return true
	})

	if !slices.Equal(limited, []string{"in", "în"}) {
		t.Errorf("Entries(limit=10) = %q; want only the variants of in", limited)
	}

	calls := 0
	d.Entries(0, func(string, string) bool {
		calls++
		return calls < 3
	})

	if calls != 3 {
		t.Errorf("Entries kept calling after false: %d calls", calls)
	}
}
