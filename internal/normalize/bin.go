package normalize

import (
	"strconv"
	"strings"
)

// missing values as exported by spreadsheet tooling
var missingTokens = map[string]bool{
	"":     true,
	"nan":  true,
	"none": true,
	"null": true,
	"n/a":  true,
}

// canonicalNumeric converts a numeric-looking identifier to its canonical
// decimal-integer string, dropping float artifacts such as a trailing ".0".
// Missing-value tokens become "". Anything else passes through unchanged.
func canonicalNumeric(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if missingTokens[strings.ToLower(trimmed)] {
		return ""
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return strconv.FormatInt(int64(f), 10)
	}
	return trimmed
}

// BIN normalizes a Building Identification Number to a clean string.
// Returns "" when the value is missing or NaN-like. The function is
// idempotent: BIN(BIN(x)) == BIN(x).
func BIN(raw string) string {
	return canonicalNumeric(raw)
}

// Placeholder BINs carry only the borough digit and match nothing real.
var placeholderBINs = map[string]bool{
	"1000000": true,
	"2000000": true,
	"3000000": true,
	"4000000": true,
	"5000000": true,
}

// IsPlaceholderBIN reports whether bin is one of the five borough
// placeholder values (1000000, 2000000, ...).
func IsPlaceholderBIN(bin string) bool {
	return placeholderBINs[bin]
}

// UsableBIN reports whether bin is present and not a placeholder.
func UsableBIN(bin string) bool {
	return bin != "" && !IsPlaceholderBIN(bin)
}
