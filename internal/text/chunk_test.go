package text

import (
	"strings"
	"testing"
)

func TestChunkBySentence(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		maxChars int
		want     []string
	}{
		{
			name:     "zero disables splitting",
			text:     "Prima. A doua.",
			maxChars: 0,
			want:     []string{"Prima. A doua."},
		},
		{
			name:     "short text stays whole",
			text:     "Prima. A doua.",
			maxChars: 100,
			want:     []string{"Prima. A doua."},
		},
		{
			name:     "splits keeping separators",
			text:     "Prima propozitie. A doua propozitie! A treia?",
			maxChars: 20,
			want:     []string{"Prima propozitie. ", "A doua propozitie! ", "A treia?"},
		},
		{
			name:     "groups sentences under the limit",
			text:     "Unu. Doi. Trei. Patru.",
			maxChars: 10,
			want:     []string{"Unu. Doi. ", "Trei. ", "Patru."},
		},
		{
			name:     "decimal point is not a boundary",
			text:     "Pretul este 3.14 lei. Gata.",
			maxChars: 12,
			want:     []string{"Pretul este 3.14 lei. ", "Gata."},
		},
		{
			name:     "oversized single sentence kept whole",
			text:     "O propozitie foarte lunga fara punct",
			maxChars: 5,
			want:     []string{"O propozitie foarte lunga fara punct"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ChunkBySentence(tt.text, tt.maxChars)
			if len(got) != len(tt.want) {
				t.Fatalf("ChunkBySentence() = %q, want %q", got, tt.want)
			}

			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("chunk[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestChunkBySentence_Lossless(t *testing.T) {
	inputs := []string{
		"Ana are mere.  Ion are pere!\tFinal?",
		"...   ",
		"Fara terminator",
		"A. B. C. D. E. F. G.",
	}

	for _, in := range inputs {
		for _, limit := range []int{1, 3, 8, 1000} {
			chunks := ChunkBySentence(in, limit)
			if joined := strings.Join(chunks, ""); joined != in {
				t.Errorf("ChunkBySentence(%q, %d) joined = %q", in, limit, joined)
			}
		}
	}
}
