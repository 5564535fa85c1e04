package wallet

import "testing"

const addr = "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B"

func TestIsValid(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"checksummed", addr, true},
		{"lowercase", "0xab5801a7d398351b8be11c439e05c5b3259aec9b", true},
		{"uppercase hex", "0xAB5801A7D398351B8BE11C439E05C5B3259AEC9B", true},
		{"missing prefix", "ab5801a7d398351b8be11c439e05c5b3259aec9b", false},
		{"too short", "0xab5801", false},
		{"too long", addr + "00", false},
		{"non-hex", "0xzz5801a7d398351b8be11c439e05c5b3259aec9b", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValid(tt.input); got != tt.want {
				t.Errorf("IsValid(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeAndEqual(t *testing.T) {
	if Normalize("  "+addr+" ") != "0xab5801a7d398351b8be11c439e05c5b3259aec9b" {
		t.Errorf("Normalize did not lowercase and trim: %q", Normalize("  "+addr+" "))
	}
	if !Equal(addr, "0xAB5801A7D398351B8BE11C439E05C5B3259AEC9B") {
		t.Error("Equal should be case-insensitive")
	}
	if Equal(addr, "0xab5801a7d398351b8be11c439e05c5b3259aec9c") {
		t.Error("Equal matched different addresses")
	}
}

func TestMask(t *testing.T) {
	got := Mask(addr)
	want := "0xAb58...eC9B"
	if got != want {
		t.Errorf("Mask = %q, want %q", got, want)
	}
	if Mask("short") != "short" {
		t.Errorf("Mask should pass through short strings")
	}
}

func TestFragmentsIn(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		want bool
	}{
		{"both fragments", "Verify wallet 0xAb58...eC9B for invite access", true},
		{"leading only", "Verify wallet 0xAb58 for invite access", false},
		{"trailing only", "Verify wallet ...eC9B for invite access", false},
		{"neither", "Verify my wallet", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FragmentsIn(tt.msg, addr); got != tt.want {
				t.Errorf("FragmentsIn(%q) = %v, want %v", tt.msg, got, tt.want)
			}
		})
	}
}
