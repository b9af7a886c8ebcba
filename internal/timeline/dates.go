// Package timeline turns matched buildings, permits, and certificates
// of occupancy into dated construction milestone events.
package timeline

import (
	"strings"
	"time"
)

// dateLayouts covers the formats the upstream systems emit. ISO-8601
// timestamps are cut down to their date part before parsing.
var dateLayouts = []string{
	"01/02/2006",
	"2006-01-02",
	"01-02-2006",
	"2006/01/02",
}

// ParseDate parses a raw date value from any source system. Unparseable
// values report ok=false; they are treated as absent, never as errors.
func ParseDate(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" || strings.EqualFold(s, "nan") {
		return time.Time{}, false
	}
	if i := strings.IndexByte(s, 'T'); i >= 0 {
		s = s[:i]
	}
	if i := strings.IndexByte(s, ' '); i >= 0 {
		s = s[:i]
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// earliestDate returns the raw value of the earliest parseable date among
// the candidates, in candidate order for ties.
func earliestDate(candidates ...string) (string, bool) {
	var bestRaw string
	var best time.Time
	found := false
	for _, raw := range candidates {
		t, ok := ParseDate(raw)
		if !ok {
			continue
		}
		if !found || t.Before(best) {
			best = t
			bestRaw = raw
			found = true
		}
	}
	return bestRaw, found
}

// latestDate returns the raw value of the latest parseable date among the
// candidates.
func latestDate(candidates ...string) (string, bool) {
	var bestRaw string
	var best time.Time
	found := false
	for _, raw := range candidates {
		t, ok := ParseDate(raw)
		if !ok {
			continue
		}
		if !found || t.After(best) {
			best = t
			bestRaw = raw
			found = true
		}
	}
	return bestRaw, found
}
