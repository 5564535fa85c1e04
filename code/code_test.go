package code

import (
	"strings"
	"testing"
)

func TestGenerateShape(t *testing.T) {
	for i := 0; i < 100; i++ {
		c, err := Generate()
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if len(c) != Length {
			t.Fatalf("length = %d, want %d (%q)", len(c), Length, c)
		}
		for _, r := range c {
			if !strings.ContainsRune(Alphabet, r) {
				t.Fatalf("code %q contains %q outside alphabet", c, r)
			}
		}
	}
}

func TestGenerateUniqueness(t *testing.T) {
	seen := make(map[string]bool, 1000)
	for i := 0; i < 1000; i++ {
		c, err := Generate()
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if seen[c] {
			t.Fatalf("duplicate code generated: %q", c)
		}
		seen[c] = true
	}
}

func TestAlphabetExcludesAmbiguousCharacters(t *testing.T) {
	for _, r := range "0O1lIi" {
		if strings.ContainsRune(Alphabet, r) {
			t.Errorf("alphabet contains ambiguous character %q", r)
		}
	}
}

func TestValidShape(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"K7mPq2Rs", true},
		{"abc234", true},
		{"abcdefghjkmn", true},
		{"abc23", false},
		{"abcdefghjkmnp", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := ValidShape(tt.input); got != tt.want {
			t.Errorf("ValidShape(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
