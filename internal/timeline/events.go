package timeline

import (
	"fmt"
	"strings"

	"github.com/nyc-housing-linkage/internal/normalize"
	"github.com/nyc-housing-linkage/internal/sources"
)

// Source labels carried on timeline rows.
const (
	SourceHPD      = "HPD"
	SourceLegacy   = "DOB"
	SourceModern   = "DOB NOW"
	SourceLegacyCO = "DOB_CO"
	SourceModernCO = "DOB_NOW_CO"
)

// Event is one dated milestone on a building's construction timeline.
type Event struct {
	BIN     string
	Address string
	Date    string // raw value as sourced
	Source  string
	Event   string
	Detail  string
}

// FromBuildings extracts the HPD financing milestones. Buildings without
// a usable BIN contribute nothing: a borough placeholder like "1000000"
// is shared by every unresolved building in the borough, and keying
// events on it would merge unrelated buildings' timelines.
func FromBuildings(buildings []sources.Building) []Event {
	var events []Event
	for _, b := range buildings {
		bin := normalize.BIN(b.BIN)
		if !normalize.UsableBIN(bin) {
			continue
		}
		address := normalize.Address(b.HouseNumber, b.StreetName)
		project := b.ProjectName
		if project == "" {
			project = "N/A"
		}
		detail := "Project: " + project

		if b.ProjectStartDate != "" {
			events = append(events, Event{
				BIN: bin, Address: address, Date: b.ProjectStartDate,
				Source: SourceHPD, Event: "HPD financing submitted", Detail: detail,
			})
		}
		if b.ProjectCompletionDate != "" {
			events = append(events, Event{
				BIN: bin, Address: address, Date: b.ProjectCompletionDate,
				Source: SourceHPD, Event: "HPD financing completed", Detail: detail,
			})
		}
	}
	return events
}

// FromLegacyFilings extracts permit milestones from BISWEB records.
// When one building carries several jobs, the most recently filed job is
// authoritative; within it the earliest parseable date of each candidate
// set feeds the timeline.
func FromLegacyFilings(filings []sources.LegacyFiling) []Event {
	byBIN := make(map[string][]sources.LegacyFiling)
	for _, f := range filings {
		bin := normalize.BIN(f.BIN)
		if bin == "" {
			continue
		}
		byBIN[bin] = append(byBIN[bin], f)
	}

	var events []Event
	for bin, records := range byBIN {
		for _, f := range authoritativeLegacyJob(records) {
			jobType := f.JobType
			if jobType == "" {
				jobType = "NB"
			}
			address := normalize.Address(f.HouseNumber, f.StreetName)
			detail := "Job: " + orNA(f.Job)

			if date, ok := earliestDate(f.PreFilingDate, f.Paid, f.Assigned, f.LatestAction, f.DOBRunDate); ok {
				events = append(events, Event{
					BIN: bin, Address: address, Date: date, Source: SourceLegacy,
					Event: fmt.Sprintf("%s %s Application submitted", SourceLegacy, jobType), Detail: detail,
				})
			}
			if date, ok := earliestDate(f.FullyPermitted, f.Approved, f.SignoffDate); ok {
				events = append(events, Event{
					BIN: bin, Address: address, Date: date, Source: SourceLegacy,
					Event: fmt.Sprintf("%s %s Application approved", SourceLegacy, jobType), Detail: detail,
				})
			}
		}
	}
	return events
}

// authoritativeLegacyJob picks the records of the most recently filed job
// for one building. Jobs with no parseable filing date lose to any job
// that has one; if none do, every record stays.
func authoritativeLegacyJob(records []sources.LegacyFiling) []sources.LegacyFiling {
	filingDate := func(f sources.LegacyFiling) (string, bool) {
		return earliestDate(f.PreFilingDate, f.Paid, f.Assigned, f.LatestAction, f.DOBRunDate)
	}

	var bestJob string
	var bestDate string
	found := false
	for _, f := range records {
		raw, ok := filingDate(f)
		if !ok {
			continue
		}
		if !found {
			bestJob, bestDate, found = f.Job, raw, true
			continue
		}
		if later, ok := latestDate(bestDate, raw); ok && later == raw && raw != bestDate {
			bestJob, bestDate = f.Job, raw
		}
	}
	if !found {
		return records
	}

	var out []sources.LegacyFiling
	for _, f := range records {
		if f.Job == bestJob {
			out = append(out, f)
		}
	}
	return out
}

// FromModernFilings extracts permit milestones from DOB NOW records,
// with the same most-recent-job tie-break as the legacy system.
func FromModernFilings(filings []sources.ModernFiling) []Event {
	byBIN := make(map[string][]sources.ModernFiling)
	for _, f := range filings {
		bin := normalize.BIN(f.BIN)
		if bin == "" {
			continue
		}
		byBIN[bin] = append(byBIN[bin], f)
	}

	var events []Event
	for bin, records := range byBIN {
		for _, f := range authoritativeModernJob(records) {
			jobType := f.JobType
			if jobType == "" {
				jobType = "New Building"
			}
			address := normalize.Address(f.HouseNumber, f.StreetName)
			detail := "Job: " + orNA(f.JobFilingNumber)

			if date, ok := earliestDate(f.FilingDate, f.FirstPermitDate); ok {
				events = append(events, Event{
					BIN: bin, Address: address, Date: date, Source: SourceModern,
					Event: fmt.Sprintf("%s %s Application submitted", SourceModern, jobType), Detail: detail,
				})
			}
			if date, ok := earliestDate(f.ApprovedDate, f.FirstPermitDate); ok {
				events = append(events, Event{
					BIN: bin, Address: address, Date: date, Source: SourceModern,
					Event: fmt.Sprintf("%s %s Application approved", SourceModern, jobType), Detail: detail,
				})
			}
		}
	}
	return events
}

func authoritativeModernJob(records []sources.ModernFiling) []sources.ModernFiling {
	var best sources.ModernFiling
	var bestDate string
	found := false
	for _, f := range records {
		raw, ok := earliestDate(f.FilingDate, f.FirstPermitDate)
		if !ok {
			continue
		}
		if !found {
			best, bestDate, found = f, raw, true
			continue
		}
		if later, ok := latestDate(bestDate, raw); ok && later == raw && raw != bestDate {
			best, bestDate = f, raw
		}
	}
	if !found {
		return records
	}
	return []sources.ModernFiling{best}
}

// COClass is the milestone classification of a certificate of occupancy.
type COClass string

const (
	COInitial COClass = "Initial"
	COFinal   COClass = "Final"
	COOther   COClass = "Other"
)

// ClassifyModernCO maps a DOB NOW c_of_o_filing_type to a milestone
// class: anything mentioning Final is a final certificate; Initial and
// Renewal filings count as initial; the rest are retained as Other.
func ClassifyModernCO(filingType string) COClass {
	switch {
	case strings.Contains(filingType, "Final"):
		return COFinal
	case strings.Contains(filingType, "Initial"), strings.Contains(filingType, "Renewal"):
		return COInitial
	default:
		return COOther
	}
}

// ClassifyLegacyCO maps a legacy issue_type: exactly "Final" is final,
// everything else is initial.
func ClassifyLegacyCO(issueType string) COClass {
	if strings.TrimSpace(issueType) == "Final" {
		return COFinal
	}
	return COInitial
}

// FromModernCOs extracts occupancy milestones from DOB NOW CO records.
func FromModernCOs(records []sources.ModernCO) []Event {
	var events []Event
	for _, r := range records {
		bin := normalize.BIN(r.BIN)
		if bin == "" || r.IssuanceDate == "" {
			continue
		}
		class := ClassifyModernCO(r.FilingType)
		events = append(events, Event{
			BIN: bin, Address: "N/A", Date: r.IssuanceDate, Source: SourceModernCO,
			Event:  fmt.Sprintf("Certificate of Occupancy issued (%s)", class),
			Detail: fmt.Sprintf("Job: %s, Status: %s, Type: %s", orNA(r.JobFilingName), orNA(r.Status), class),
		})
	}
	return events
}

// FromLegacyCOs extracts occupancy milestones from legacy CO records.
func FromLegacyCOs(records []sources.LegacyCO) []Event {
	var events []Event
	for _, r := range records {
		bin := normalize.BIN(r.BIN)
		if bin == "" || r.IssueDate == "" {
			continue
		}
		class := ClassifyLegacyCO(r.IssueType)
		events = append(events, Event{
			BIN: bin, Address: "N/A", Date: r.IssueDate, Source: SourceLegacyCO,
			Event:  fmt.Sprintf("Certificate of Occupancy issued (%s)", class),
			Detail: fmt.Sprintf("Job: %s, Status: %s, Type: %s", orNA(r.JobNumber), orNA(r.ApplicationStatus), class),
		})
	}
	return events
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}
