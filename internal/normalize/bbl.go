package normalize

import (
	"strconv"
	"strings"
)

// Borough code table for the leading BBL digit. Two historical variants of
// this table circulated with Bronx and Brooklyn swapped; this is the real
// parcel numbering convention.
var boroughNames = map[byte]string{
	'1': "MANHATTAN",
	'2': "BRONX",
	'3': "BROOKLYN",
	'4': "QUEENS",
	'5': "STATEN ISLAND",
}

// BBL is a decomposed Borough-Block-Lot parcel identifier.
// Block and Lot hold the canonical zero-padded widths (5 and 4 digits)
// so that String() round-trips to the original 10-digit form.
type BBL struct {
	BoroughCode string // single digit "1".."5"
	Borough     string // upper-case borough name
	Block       string // 5 digits, zero-padded
	Lot         string // 4 digits, zero-padded
}

// ParseBBL decomposes a raw parcel identifier. It fails unless the
// canonicalized string is exactly 10 characters with a valid borough digit.
func ParseBBL(raw string) (BBL, bool) {
	s := canonicalNumeric(raw)
	if len(s) != 10 {
		return BBL{}, false
	}

	borough, ok := boroughNames[s[0]]
	if !ok {
		return BBL{}, false
	}

	return BBL{
		BoroughCode: s[:1],
		Borough:     borough,
		Block:       s[1:6],
		Lot:         s[6:],
	}, true
}

// String recomposes the 10-digit BBL.
func (b BBL) String() string {
	return b.BoroughCode + b.Block + b.Lot
}

// PaddedLot returns the lot zero-padded to 5 digits, the width the legacy
// permit system expects in its lot column.
func (b BBL) PaddedLot() string {
	return zfill(b.Lot, 5)
}

// UnpaddedBlock returns the block without leading zeros, as the modern
// permit system stores it.
func (b BBL) UnpaddedBlock() string {
	return stripZeros(b.Block)
}

// UnpaddedLot returns the lot without leading zeros.
func (b BBL) UnpaddedLot() string {
	return stripZeros(b.Lot)
}

// CheckBorough decomposes raw and reports whether its borough digit agrees
// with the stated borough name (case-insensitive, trimmed). The derived
// borough name is returned for diagnostics. A mismatch is a data quality
// signal, not a reason to reject the parcel.
func CheckBorough(raw, expected string) (consistent bool, derived string) {
	bbl, ok := ParseBBL(raw)
	if !ok {
		return false, ""
	}
	want := strings.ToUpper(strings.TrimSpace(expected))
	return bbl.Borough == want, bbl.Borough
}

// Pad10 canonicalizes a parcel identifier and left-pads it to 10 digits.
// The condominium lot map stores both base and billing BBLs in this form.
// Non-numeric input yields "".
func Pad10(raw string) string {
	s := canonicalNumeric(raw)
	if s == "" {
		return ""
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return ""
		}
	}
	return zfill(s, 10)
}

func zfill(s string, width int) string {
	for len(s) < width {
		s = "0" + s
	}
	return s
}

func stripZeros(s string) string {
	n, err := strconv.Atoi(s)
	if err != nil {
		return s
	}
	return strconv.Itoa(n)
}
