package normalize

import (
	"testing"
)

func TestBIN(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain bin", "1234567", "1234567"},
		{"float artifact", "1234567.0", "1234567"},
		{"surrounding whitespace", " 2129098 ", "2129098"},
		{"empty", "", ""},
		{"nan token", "nan", ""},
		{"NaN mixed case", "NaN", ""},
		{"none token", "None", ""},
		{"non numeric passes through", "UNKNOWN-BIN", "UNKNOWN-BIN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BIN(tt.input); got != tt.want {
				t.Errorf("BIN(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestBINIdempotent(t *testing.T) {
	inputs := []string{"1234567", "1234567.0", "", "nan", "UNKNOWN-BIN", " 42 "}

	for _, input := range inputs {
		once := BIN(input)
		twice := BIN(once)
		if once != twice {
			t.Errorf("BIN not idempotent for %q: %q != %q", input, once, twice)
		}
	}
}

func TestPlaceholderBIN(t *testing.T) {
	tests := []struct {
		bin  string
		want bool
	}{
		{"1000000", true},
		{"3000000", true},
		{"5000000", true},
		{"1234567", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsPlaceholderBIN(tt.bin); got != tt.want {
			t.Errorf("IsPlaceholderBIN(%q) = %v, want %v", tt.bin, got, tt.want)
		}
	}

	if UsableBIN("1000000") {
		t.Error("placeholder BIN must not be usable")
	}
	if UsableBIN("") {
		t.Error("empty BIN must not be usable")
	}
	if !UsableBIN("1234567") {
		t.Error("real BIN must be usable")
	}
}
