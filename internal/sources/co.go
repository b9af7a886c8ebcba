package sources

import (
	"context"
	"fmt"
	"sort"

	"github.com/nyc-housing-linkage/internal/normalize"
	"github.com/nyc-housing-linkage/internal/opendata"
)

// ModernCO is a DOB NOW certificate-of-occupancy row.
type ModernCO struct {
	BIN           string `json:"bin"`
	IssuanceDate  string `json:"c_of_o_issuance_date"`
	FilingType    string `json:"c_of_o_filing_type"`
	Status        string `json:"c_of_o_status"`
	JobFilingName string `json:"job_filing_name"`
}

// LegacyCO is a row from the older DOB certificate-of-occupancy system.
type LegacyCO struct {
	BIN               string `json:"bin_number"`
	IssueDate         string `json:"c_o_issue_date"`
	IssueType         string `json:"issue_type"`
	JobNumber         string `json:"job_number"`
	ApplicationStatus string `json:"application_status_raw"`
}

// OccupancySource queries both certificate-of-occupancy systems by BIN.
// These systems are smaller and rate-limited harder than the permit
// systems, hence the smaller batches.
type OccupancySource struct {
	Client *opendata.Client
	Debug  bool
}

// ModernByBIN queries the DOB NOW CO dataset for the given BINs.
func (s *OccupancySource) ModernByBIN(ctx context.Context, bins []string) ([]ModernCO, BatchStats) {
	var all []ModernCO
	var stats BatchStats
	for _, batch := range batches(bins, coBatchSize) {
		stats.Batches++
		where := fmt.Sprintf("(%s)", orFilter("bin", batch))
		var rows []ModernCO
		if err := s.Client.Query(ctx, s.Debug, DatasetModernCO, where, queryLimit, &rows); err != nil {
			logBatchError(DatasetModernCO, stats.Batches, err)
			stats.Failed++
			continue
		}
		all = append(all, rows...)
	}
	return all, stats
}

// OccupancyBINs collects the distinct usable BINs worth a certificate
// lookup: every building with its own usable BIN, whether or not a permit
// matched it, plus BINs surfaced on the matched filings (how parcel- and
// address-tier buildings get theirs).
func OccupancyBINs(buildings []Building, legacy []LegacyFiling, modern []ModernFiling) []string {
	seen := make(map[string]bool)
	var bins []string
	add := func(raw string) {
		bin := normalize.BIN(raw)
		if bin == "" || seen[bin] || !normalize.UsableBIN(bin) {
			return
		}
		seen[bin] = true
		bins = append(bins, bin)
	}
	for _, b := range buildings {
		add(b.BIN)
	}
	for _, f := range legacy {
		add(f.BIN)
	}
	for _, f := range modern {
		add(f.BIN)
	}
	sort.Strings(bins)
	return bins
}

// LegacyByBIN queries the legacy CO dataset for the given BINs.
func (s *OccupancySource) LegacyByBIN(ctx context.Context, bins []string) ([]LegacyCO, BatchStats) {
	var all []LegacyCO
	var stats BatchStats
	for _, batch := range batches(bins, coBatchSize) {
		stats.Batches++
		where := fmt.Sprintf("(%s)", orFilter("bin_number", batch))
		var rows []LegacyCO
		if err := s.Client.Query(ctx, s.Debug, DatasetLegacyCO, where, queryLimit, &rows); err != nil {
			logBatchError(DatasetLegacyCO, stats.Batches, err)
			stats.Failed++
			continue
		}
		all = append(all, rows...)
	}
	return all, stats
}
