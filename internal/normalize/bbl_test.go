package normalize

import (
	"testing"
)

func TestParseBBL(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantOK      bool
		wantBorough string
		wantBlock   string
		wantLot     string
	}{
		{
			name:        "manhattan parcel",
			input:       "1012340056",
			wantOK:      true,
			wantBorough: "MANHATTAN",
			wantBlock:   "01234",
			wantLot:     "0056",
		},
		{
			name:        "bronx parcel",
			input:       "2024410001",
			wantOK:      true,
			wantBorough: "BRONX",
			wantBlock:   "02441",
			wantLot:     "0001",
		},
		{
			name:        "brooklyn condo billing lot",
			input:       "3024727504",
			wantOK:      true,
			wantBorough: "BROOKLYN",
			wantBlock:   "02472",
			wantLot:     "7504",
		},
		{
			name:        "float artifact from spreadsheet export",
			input:       "4009870022.0",
			wantOK:      true,
			wantBorough: "QUEENS",
			wantBlock:   "00987",
			wantLot:     "0022",
		},
		{
			name:   "too short",
			input:  "301234",
			wantOK: false,
		},
		{
			name:   "too long",
			input:  "30123456789",
			wantOK: false,
		},
		{
			name:   "invalid borough digit",
			input:  "9012340056",
			wantOK: false,
		},
		{
			name:   "empty",
			input:  "",
			wantOK: false,
		},
		{
			name:   "nan token",
			input:  "nan",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bbl, ok := ParseBBL(tt.input)

			if ok != tt.wantOK {
				t.Fatalf("ParseBBL(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if !tt.wantOK {
				return
			}

			if bbl.Borough != tt.wantBorough {
				t.Errorf("Borough = %v, want %v", bbl.Borough, tt.wantBorough)
			}
			if bbl.Block != tt.wantBlock {
				t.Errorf("Block = %v, want %v", bbl.Block, tt.wantBlock)
			}
			if bbl.Lot != tt.wantLot {
				t.Errorf("Lot = %v, want %v", bbl.Lot, tt.wantLot)
			}
		})
	}
}

func TestParseBBLRoundTrip(t *testing.T) {
	// For all valid 10-digit parcels, recomposition must reproduce the input.
	inputs := []string{
		"1000010001",
		"2024410001",
		"3024727504",
		"3024720070",
		"4138650100",
		"5080500001",
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			bbl, ok := ParseBBL(input)
			if !ok {
				t.Fatalf("ParseBBL(%q) failed", input)
			}
			if got := bbl.String(); got != input {
				t.Errorf("round trip = %v, want %v", got, input)
			}
		})
	}
}

func TestBBLPaddingVariants(t *testing.T) {
	bbl, ok := ParseBBL("3024720070")
	if !ok {
		t.Fatal("ParseBBL failed")
	}

	if got := bbl.PaddedLot(); got != "00070" {
		t.Errorf("PaddedLot = %v, want 00070", got)
	}
	if got := bbl.UnpaddedBlock(); got != "2472" {
		t.Errorf("UnpaddedBlock = %v, want 2472", got)
	}
	if got := bbl.UnpaddedLot(); got != "70" {
		t.Errorf("UnpaddedLot = %v, want 70", got)
	}
}

func TestCheckBorough(t *testing.T) {
	tests := []struct {
		name           string
		bbl            string
		borough        string
		wantConsistent bool
		wantDerived    string
	}{
		{"matching borough", "2024410001", "BRONX", true, "BRONX"},
		{"matching with case and space", "3024727504", " brooklyn ", true, "BROOKLYN"},
		{"mismatched borough", "2024410001", "BROOKLYN", false, "BRONX"},
		{"unparseable bbl", "12345", "QUEENS", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			consistent, derived := CheckBorough(tt.bbl, tt.borough)
			if consistent != tt.wantConsistent {
				t.Errorf("consistent = %v, want %v", consistent, tt.wantConsistent)
			}
			if derived != tt.wantDerived {
				t.Errorf("derived = %v, want %v", derived, tt.wantDerived)
			}
		})
	}
}

func TestPad10(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"2024410001", "2024410001"},
		{"24410001", "0024410001"},
		{"2024410001.0", "2024410001"},
		{"", ""},
		{"nan", ""},
		{"not-a-bbl", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := Pad10(tt.input); got != tt.want {
				t.Errorf("Pad10(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
