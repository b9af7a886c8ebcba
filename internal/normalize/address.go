package normalize

import "strings"

// Address concatenates the non-missing address components in the order
// given, separated by single spaces. Returns the "N/A" sentinel when no
// component carries a value.
func Address(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" || missingTokens[strings.ToLower(trimmed)] {
			continue
		}
		kept = append(kept, trimmed)
	}
	if len(kept) == 0 {
		return "N/A"
	}
	return strings.Join(kept, " ")
}

// StreetName upper-cases and trims a street name for querying. The permit
// systems store street names in upper case with inconsistent spacing.
func StreetName(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// HouseNumber trims a house number, dropping float artifacts.
func HouseNumber(s string) string {
	return canonicalNumeric(s)
}
