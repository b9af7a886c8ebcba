package store

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/nyc-housing-linkage/internal/matcher"
	"github.com/nyc-housing-linkage/internal/sources"
	"github.com/nyc-housing-linkage/internal/timeline"
)

// Source tags used in the combined permit and CO snapshots, matching the
// labels the timeline extractors expect.
const (
	permitSourceLegacy = "DOB_Job_Applications"
	permitSourceModern = "DOB_NOW"
	coSourceLegacy     = "DOB_CO"
	coSourceModern     = "DOB_NOW_CO"
)

var buildingHeader = []string{
	"Building ID", "Project ID", "Project Name", "Project Start Date",
	"Project Completion Date", "Building Completion Date", "Number", "Street",
	"Borough", "Postcode", "BBL", "BIN", "Reporting Construction Type",
	"Total Units", "Financing Type",
}

// SaveBuildings writes the building snapshot, including any financing
// classification already assigned.
func SaveBuildings(path string, buildings []sources.Building) error {
	return writeCSV(path, buildingHeader, len(buildings), func(i int) []string {
		b := buildings[i]
		return []string{
			b.BuildingID, b.ProjectID, b.ProjectName, b.ProjectStartDate,
			b.ProjectCompletionDate, b.BuildingCompletionDate, b.HouseNumber, b.StreetName,
			b.Borough, b.Postcode, b.BBL, b.BIN, b.ConstructionType,
			b.TotalUnits, b.FinancingType,
		}
	})
}

// LoadBuildings reads a building snapshot back.
func LoadBuildings(path string) ([]sources.Building, error) {
	rows, idx, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	buildings := make([]sources.Building, 0, len(rows))
	for _, row := range rows {
		buildings = append(buildings, sources.Building{
			BuildingID:             idx.get(row, "Building ID"),
			ProjectID:              idx.get(row, "Project ID"),
			ProjectName:            idx.get(row, "Project Name"),
			ProjectStartDate:       idx.get(row, "Project Start Date"),
			ProjectCompletionDate:  idx.get(row, "Project Completion Date"),
			BuildingCompletionDate: idx.get(row, "Building Completion Date"),
			HouseNumber:            idx.get(row, "Number"),
			StreetName:             idx.get(row, "Street"),
			Borough:                idx.get(row, "Borough"),
			Postcode:               idx.get(row, "Postcode"),
			BBL:                    idx.get(row, "BBL"),
			BIN:                    idx.get(row, "BIN"),
			ConstructionType:       idx.get(row, "Reporting Construction Type"),
			TotalUnits:             idx.get(row, "Total Units"),
			FinancingType:          idx.get(row, "Financing Type"),
		})
	}
	return buildings, nil
}

// permitHeader is the union of both permit systems' columns plus a source
// tag, the shape of the combined filings snapshot.
var permitHeader = []string{
	"source", "bin_normalized",
	"bin__", "job__", "doc__", "job_type", "borough", "block", "lot",
	"house__", "street_name", "pre__filing_date", "paid", "approved",
	"assigned", "fully_paid", "fully_permitted", "latest_action_date",
	"dobrundate", "signoff_date",
	"bin", "job_filing_number", "house_no", "filing_date",
	"first_permit_date", "approved_date", "current_status_date",
}

// SavePermits writes both permit systems' filings into one combined
// snapshot; each row fills only its own system's columns.
func SavePermits(path string, legacy []sources.LegacyFiling, modern []sources.ModernFiling) error {
	total := len(legacy) + len(modern)
	return writeCSV(path, permitHeader, total, func(i int) []string {
		if i < len(legacy) {
			f := legacy[i]
			return []string{
				permitSourceLegacy, f.BIN,
				f.BIN, f.Job, f.Doc, f.JobType, f.Borough, f.Block, f.Lot,
				f.HouseNumber, f.StreetName, f.PreFilingDate, f.Paid, f.Approved,
				f.Assigned, f.FullyPaid, f.FullyPermitted, f.LatestAction,
				f.DOBRunDate, f.SignoffDate,
				"", "", "", "", "", "", "",
			}
		}
		f := modern[i-len(legacy)]
		return []string{
			permitSourceModern, f.BIN,
			"", "", "", f.JobType, f.Borough, f.Block, f.Lot,
			"", f.StreetName, "", "", "",
			"", "", "", "",
			"", "",
			f.BIN, f.JobFilingNumber, f.HouseNumber, f.FilingDate,
			f.FirstPermitDate, f.ApprovedDate, f.CurrentStatus,
		}
	})
}

// LoadPermits splits a combined filings snapshot back into the two
// systems' typed records.
func LoadPermits(path string) ([]sources.LegacyFiling, []sources.ModernFiling, error) {
	rows, idx, err := readCSV(path)
	if err != nil {
		return nil, nil, err
	}
	var legacy []sources.LegacyFiling
	var modern []sources.ModernFiling
	for _, row := range rows {
		switch idx.get(row, "source") {
		case permitSourceModern:
			modern = append(modern, sources.ModernFiling{
				BIN:             idx.get(row, "bin"),
				JobFilingNumber: idx.get(row, "job_filing_number"),
				JobType:         idx.get(row, "job_type"),
				Borough:         idx.get(row, "borough"),
				Block:           idx.get(row, "block"),
				Lot:             idx.get(row, "lot"),
				HouseNumber:     idx.get(row, "house_no"),
				StreetName:      idx.get(row, "street_name"),
				FilingDate:      idx.get(row, "filing_date"),
				FirstPermitDate: idx.get(row, "first_permit_date"),
				ApprovedDate:    idx.get(row, "approved_date"),
				CurrentStatus:   idx.get(row, "current_status_date"),
			})
		default:
			legacy = append(legacy, sources.LegacyFiling{
				BIN:            idx.get(row, "bin__"),
				Job:            idx.get(row, "job__"),
				Doc:            idx.get(row, "doc__"),
				JobType:        idx.get(row, "job_type"),
				Borough:        idx.get(row, "borough"),
				Block:          idx.get(row, "block"),
				Lot:            idx.get(row, "lot"),
				HouseNumber:    idx.get(row, "house__"),
				StreetName:     idx.get(row, "street_name"),
				PreFilingDate:  idx.get(row, "pre__filing_date"),
				Paid:           idx.get(row, "paid"),
				Approved:       idx.get(row, "approved"),
				Assigned:       idx.get(row, "assigned"),
				FullyPaid:      idx.get(row, "fully_paid"),
				FullyPermitted: idx.get(row, "fully_permitted"),
				LatestAction:   idx.get(row, "latest_action_date"),
				DOBRunDate:     idx.get(row, "dobrundate"),
				SignoffDate:    idx.get(row, "signoff_date"),
			})
		}
	}
	return legacy, modern, nil
}

var coHeader = []string{
	"source", "bin_normalized",
	"bin", "c_of_o_issuance_date", "c_of_o_filing_type", "c_of_o_status", "job_filing_name",
	"bin_number", "c_o_issue_date", "issue_type", "job_number", "application_status_raw",
}

// SaveCOs writes both CO systems' records into one combined snapshot.
func SaveCOs(path string, legacy []sources.LegacyCO, modern []sources.ModernCO) error {
	total := len(legacy) + len(modern)
	return writeCSV(path, coHeader, total, func(i int) []string {
		if i < len(modern) {
			r := modern[i]
			return []string{
				coSourceModern, r.BIN,
				r.BIN, r.IssuanceDate, r.FilingType, r.Status, r.JobFilingName,
				"", "", "", "", "",
			}
		}
		r := legacy[i-len(modern)]
		return []string{
			coSourceLegacy, r.BIN,
			"", "", "", "", "",
			r.BIN, r.IssueDate, r.IssueType, r.JobNumber, r.ApplicationStatus,
		}
	})
}

// LoadCOs splits a combined CO snapshot back into typed records.
func LoadCOs(path string) ([]sources.LegacyCO, []sources.ModernCO, error) {
	rows, idx, err := readCSV(path)
	if err != nil {
		return nil, nil, err
	}
	var legacy []sources.LegacyCO
	var modern []sources.ModernCO
	for _, row := range rows {
		switch idx.get(row, "source") {
		case coSourceModern:
			modern = append(modern, sources.ModernCO{
				BIN:           idx.get(row, "bin"),
				IssuanceDate:  idx.get(row, "c_of_o_issuance_date"),
				FilingType:    idx.get(row, "c_of_o_filing_type"),
				Status:        idx.get(row, "c_of_o_status"),
				JobFilingName: idx.get(row, "job_filing_name"),
			})
		default:
			legacy = append(legacy, sources.LegacyCO{
				BIN:               idx.get(row, "bin_number"),
				IssueDate:         idx.get(row, "c_o_issue_date"),
				IssueType:         idx.get(row, "issue_type"),
				JobNumber:         idx.get(row, "job_number"),
				ApplicationStatus: idx.get(row, "application_status_raw"),
			})
		}
	}
	return legacy, modern, nil
}

var timelineHeader = []string{"BIN", "Address", "Date", "Source", "Event", "Additional_Info"}

// SaveTimeline writes an assembled timeline.
func SaveTimeline(path string, events []timeline.Event) error {
	return writeCSV(path, timelineHeader, len(events), func(i int) []string {
		e := events[i]
		return []string{e.BIN, e.Address, e.Date, e.Source, e.Event, e.Detail}
	})
}

// LoadTimeline reads an assembled timeline back.
func LoadTimeline(path string) ([]timeline.Event, error) {
	rows, idx, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	events := make([]timeline.Event, 0, len(rows))
	for _, row := range rows {
		events = append(events, timeline.Event{
			BIN:     idx.get(row, "BIN"),
			Address: idx.get(row, "Address"),
			Date:    idx.get(row, "Date"),
			Source:  idx.get(row, "Source"),
			Event:   idx.get(row, "Event"),
			Detail:  idx.get(row, "Additional_Info"),
		})
	}
	return events, nil
}

var matchHeader = []string{
	"Building ID", "Project ID", "BIN", "BBL",
	"Legacy Tier", "Modern Tier", "Legacy Records", "Modern Records", "Unmatchable",
}

// SaveMatches writes the per-building match provenance.
func SaveMatches(path string, matches []matcher.BuildingMatch) error {
	return writeCSV(path, matchHeader, len(matches), func(i int) []string {
		m := matches[i]
		unmatchable := ""
		if m.Unmatchable {
			unmatchable = "true"
		}
		return []string{
			m.BuildingID, m.ProjectID, m.BIN, m.BBL,
			string(m.LegacyTier), string(m.ModernTier),
			fmt.Sprintf("%d", m.LegacyCount), fmt.Sprintf("%d", m.ModernCount), unmatchable,
		}
	})
}

// headerIndex maps column names to positions for order-independent reads.
type headerIndex map[string]int

func (h headerIndex) get(row []string, column string) string {
	i, ok := h[column]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

func writeCSV(path string, header []string, n int, rowAt func(int) []string) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i := 0; i < n; i++ {
		if err := w.Write(rowAt(i)); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}
	w.Flush()
	return w.Error()
}

func readCSV(path string) ([][]string, headerIndex, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, headerIndex{}, nil
	}

	idx := make(headerIndex, len(records[0]))
	for i, name := range records[0] {
		idx[name] = i
	}
	return records[1:], idx, nil
}
