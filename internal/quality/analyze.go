package quality

import (
	"time"

	"github.com/nyc-housing-linkage/internal/normalize"
	"github.com/nyc-housing-linkage/internal/sources"
	"github.com/nyc-housing-linkage/internal/timeline"
)

// AnalyzeBuildings runs the completeness and consistency checks over a
// building snapshot and accumulates the findings.
func (t *Tracker) AnalyzeBuildings(buildings []sources.Building) {
	now := time.Now()
	seenBIN := make(map[string]bool)
	seenBBL := make(map[string]bool)

	for _, b := range buildings {
		t.TotalRecords++

		bin := normalize.BIN(b.BIN)
		if bin != "" {
			t.RecordsWithBIN++
			if seenBIN[bin] {
				t.DuplicateBINs++
			}
			seenBIN[bin] = true
		} else {
			t.MissingBINs++
		}

		if bbl, ok := normalize.ParseBBL(b.BBL); ok {
			t.RecordsWithBBL++
			if seenBBL[bbl.String()] {
				t.DuplicateBBLs++
			}
			seenBBL[bbl.String()] = true
			if b.Borough != "" {
				consistent, _ := normalize.CheckBorough(b.BBL, b.Borough)
				t.RecordBoroughCheck(consistent)
			}
		} else {
			t.MissingBBLs++
		}

		if normalize.HouseNumber(b.HouseNumber) != "" && normalize.StreetName(b.StreetName) != "" {
			t.RecordsWithAddress++
		} else {
			t.MissingAddresses++
		}

		startOK := t.checkDate(b.ProjectStartDate, now)
		completionOK := t.checkDate(b.ProjectCompletionDate, now)
		if !startOK {
			t.MissingStartDates++
		}
		if !completionOK {
			t.MissingCompletionDates++
		}
		if startOK && completionOK {
			t.RecordsWithProjectDates++
		}
	}
}

// checkDate counts invalid and future dates, reporting whether the value
// is a usable past-or-present date.
func (t *Tracker) checkDate(raw string, now time.Time) bool {
	if raw == "" {
		return false
	}
	parsed, ok := timeline.ParseDate(raw)
	if !ok {
		t.InvalidDates++
		return false
	}
	if parsed.After(now) {
		t.FutureDates++
		return false
	}
	return true
}
