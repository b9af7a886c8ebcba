package normalize

import (
	"testing"
)

func TestAddress(t *testing.T) {
	tests := []struct {
		name  string
		parts []string
		want  string
	}{
		{
			name:  "number and street",
			parts: []string{"655", "MORRIS AVENUE"},
			want:  "655 MORRIS AVENUE",
		},
		{
			name:  "missing house number",
			parts: []string{"", "MORRIS AVENUE"},
			want:  "MORRIS AVENUE",
		},
		{
			name:  "nan component skipped",
			parts: []string{"nan", "GLENMORE AVENUE"},
			want:  "GLENMORE AVENUE",
		},
		{
			name:  "all missing",
			parts: []string{"", "nan"},
			want:  "N/A",
		},
		{
			name:  "no parts",
			parts: nil,
			want:  "N/A",
		},
		{
			name:  "whitespace trimmed",
			parts: []string{" 12 ", " BROADWAY "},
			want:  "12 BROADWAY",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Address(tt.parts...); got != tt.want {
				t.Errorf("Address(%v) = %v, want %v", tt.parts, got, tt.want)
			}
		})
	}
}

func TestStreetName(t *testing.T) {
	if got := StreetName("  Morris Ave "); got != "MORRIS AVE" {
		t.Errorf("StreetName = %v, want MORRIS AVE", got)
	}
}

func TestHouseNumber(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"655.0", "655"},
		{"655", "655"},
		{"12A", "12A"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := HouseNumber(tt.input); got != tt.want {
			t.Errorf("HouseNumber(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
