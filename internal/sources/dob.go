package sources

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/nyc-housing-linkage/internal/normalize"
	"github.com/nyc-housing-linkage/internal/opendata"
)

// LegacyFiling is a BISWEB job application row. Column names carry the
// upstream system's double-underscore quirks verbatim.
type LegacyFiling struct {
	BIN            string `json:"bin__"`
	Job            string `json:"job__"`
	Doc            string `json:"doc__"`
	JobType        string `json:"job_type"`
	Borough        string `json:"borough"`
	Block          string `json:"block"`
	Lot            string `json:"lot"`
	HouseNumber    string `json:"house__"`
	StreetName     string `json:"street_name"`
	PreFilingDate  string `json:"pre__filing_date"`
	Paid           string `json:"paid"`
	Approved       string `json:"approved"`
	Assigned       string `json:"assigned"`
	FullyPaid      string `json:"fully_paid"`
	FullyPermitted string `json:"fully_permitted"`
	LatestAction   string `json:"latest_action_date"`
	DOBRunDate     string `json:"dobrundate"`
	SignoffDate    string `json:"signoff_date"`
}

// ModernFiling is a DOB NOW job application row.
type ModernFiling struct {
	BIN             string `json:"bin"`
	JobFilingNumber string `json:"job_filing_number"`
	JobType         string `json:"job_type"`
	Borough         string `json:"borough"`
	Block           string `json:"block"`
	Lot             string `json:"lot"`
	HouseNumber     string `json:"house_no"`
	StreetName      string `json:"street_name"`
	FilingDate      string `json:"filing_date"`
	FirstPermitDate string `json:"first_permit_date"`
	ApprovedDate    string `json:"approved_date"`
	CurrentStatus   string `json:"current_status_date"`
}

// AddressQuery is one structured address to search a permit system for.
type AddressQuery struct {
	Borough     string
	HouseNumber string
	StreetName  string
}

// PermitSource queries both DOB permit systems for New Building filings.
// The two systems disagree on nearly everything: column names, the
// job-type literal, and block/lot padding.
type PermitSource struct {
	Client *opendata.Client
	Debug  bool
}

// LegacyByBIN queries BISWEB for NB filings on the given BINs.
func (s *PermitSource) LegacyByBIN(ctx context.Context, bins []string) ([]LegacyFiling, BatchStats) {
	var all []LegacyFiling
	var stats BatchStats
	for _, batch := range batches(bins, binBatchSize) {
		stats.Batches++
		where := fmt.Sprintf("job_type='NB' AND (%s)", orFilter("bin__", batch))
		var rows []LegacyFiling
		if err := s.Client.Query(ctx, s.Debug, DatasetLegacyJobs, where, queryLimit, &rows); err != nil {
			logBatchError(DatasetLegacyJobs, stats.Batches, err)
			stats.Failed++
			continue
		}
		all = append(all, rows...)
	}
	return all, stats
}

// ModernByBIN queries DOB NOW for New Building filings on the given BINs.
func (s *PermitSource) ModernByBIN(ctx context.Context, bins []string) ([]ModernFiling, BatchStats) {
	var all []ModernFiling
	var stats BatchStats
	for _, batch := range batches(bins, binBatchSize) {
		stats.Batches++
		where := fmt.Sprintf("job_type='New Building' AND (%s)", orFilter("bin", batch))
		var rows []ModernFiling
		if err := s.Client.Query(ctx, s.Debug, DatasetModernJobs, where, queryLimit, &rows); err != nil {
			logBatchError(DatasetModernJobs, stats.Batches, err)
			stats.Failed++
			continue
		}
		all = append(all, rows...)
	}
	return all, stats
}

// LegacyByParcel queries BISWEB by parcel triple. BISWEB wants padded
// block (5) and lot (5) values.
func (s *PermitSource) LegacyByParcel(ctx context.Context, parcels []normalize.BBL) ([]LegacyFiling, BatchStats) {
	conditions := make([]string, 0, len(parcels))
	for _, p := range parcels {
		conditions = append(conditions, fmt.Sprintf(
			"(job_type='NB' AND borough='%s' AND block='%s' AND lot='%s')",
			escapeQuotes(p.Borough), p.Block, p.PaddedLot()))
	}

	var all []LegacyFiling
	var stats BatchStats
	for _, batch := range batches(conditions, parcelBatchSize) {
		stats.Batches++
		where := strings.Join(batch, " OR ")
		var rows []LegacyFiling
		if err := s.Client.Query(ctx, s.Debug, DatasetLegacyJobs, where, queryLimit, &rows); err != nil {
			logBatchError(DatasetLegacyJobs, stats.Batches, err)
			stats.Failed++
			continue
		}
		all = append(all, rows...)
	}
	return all, stats
}

// ModernByParcel queries DOB NOW by parcel triple. DOB NOW wants unpadded
// block and lot values, the opposite of BISWEB.
func (s *PermitSource) ModernByParcel(ctx context.Context, parcels []normalize.BBL) ([]ModernFiling, BatchStats) {
	conditions := make([]string, 0, len(parcels))
	for _, p := range parcels {
		conditions = append(conditions, fmt.Sprintf(
			"(job_type='New Building' AND borough='%s' AND block='%s' AND lot='%s')",
			escapeQuotes(p.Borough), p.UnpaddedBlock(), p.UnpaddedLot()))
	}

	var all []ModernFiling
	var stats BatchStats
	for _, batch := range batches(conditions, parcelBatchSize) {
		stats.Batches++
		where := strings.Join(batch, " OR ")
		var rows []ModernFiling
		if err := s.Client.Query(ctx, s.Debug, DatasetModernJobs, where, queryLimit, &rows); err != nil {
			logBatchError(DatasetModernJobs, stats.Batches, err)
			stats.Failed++
			continue
		}
		all = append(all, rows...)
	}
	return all, stats
}

// LegacyByAddress searches BISWEB one address at a time, the last-resort
// lookup when neither BIN nor parcel matched.
func (s *PermitSource) LegacyByAddress(ctx context.Context, addrs []AddressQuery) ([]LegacyFiling, BatchStats) {
	var all []LegacyFiling
	var stats BatchStats
	for _, a := range addrs {
		if a.Borough == "" || a.HouseNumber == "" || a.StreetName == "" {
			continue
		}
		stats.Batches++
		where := fmt.Sprintf("job_type='NB' AND borough='%s' AND house__='%s' AND street_name LIKE '%%%s%%'",
			escapeQuotes(a.Borough), escapeQuotes(a.HouseNumber), escapeQuotes(strings.ToUpper(strings.TrimSpace(a.StreetName))))
		var rows []LegacyFiling
		if err := s.Client.Query(ctx, s.Debug, DatasetLegacyJobs, where, queryLimit, &rows); err != nil {
			logBatchError(DatasetLegacyJobs, stats.Batches, err)
			stats.Failed++
			continue
		}
		all = append(all, rows...)
	}
	return all, stats
}

// ModernByAddress searches DOB NOW one address at a time.
func (s *PermitSource) ModernByAddress(ctx context.Context, addrs []AddressQuery) ([]ModernFiling, BatchStats) {
	var all []ModernFiling
	var stats BatchStats
	for _, a := range addrs {
		if a.Borough == "" || a.HouseNumber == "" || a.StreetName == "" {
			continue
		}
		stats.Batches++
		where := fmt.Sprintf("job_type='New Building' AND borough='%s' AND house_no='%s' AND street_name LIKE '%%%s%%'",
			escapeQuotes(a.Borough), escapeQuotes(a.HouseNumber), escapeQuotes(strings.ToUpper(strings.TrimSpace(a.StreetName))))
		var rows []ModernFiling
		if err := s.Client.Query(ctx, s.Debug, DatasetModernJobs, where, queryLimit, &rows); err != nil {
			logBatchError(DatasetModernJobs, stats.Batches, err)
			stats.Failed++
			continue
		}
		all = append(all, rows...)
	}
	return all, stats
}

// ReduceToInitialLegacy keeps, per job number, only the records carrying
// the lowest document number (the initial filing, conventionally "01").
// A job whose records carry no document number at all keeps everything;
// a hard filter must never erase an otherwise valid match.
func ReduceToInitialLegacy(filings []LegacyFiling) []LegacyFiling {
	lowest := make(map[string]string)
	for _, f := range filings {
		if f.Job == "" || f.Doc == "" {
			continue
		}
		cur, ok := lowest[f.Job]
		if !ok || docLess(f.Doc, cur) {
			lowest[f.Job] = f.Doc
		}
	}

	var out []LegacyFiling
	for _, f := range filings {
		want, ok := lowest[f.Job]
		if f.Job == "" || !ok || f.Doc == want {
			out = append(out, f)
		}
	}
	return out
}

// docLess orders document numbers numerically when possible, falling
// back to string order.
func docLess(a, b string) bool {
	na, errA := strconv.Atoi(strings.TrimSpace(a))
	nb, errB := strconv.Atoi(strings.TrimSpace(b))
	if errA == nil && errB == nil {
		return na < nb
	}
	return a < b
}

// ReduceToInitialModern keeps, per job, only the initial "-I1" filings.
// Jobs with no initial filing keep all their records, same fallback as
// the legacy reduction.
func ReduceToInitialModern(filings []ModernFiling) []ModernFiling {
	hasInitial := make(map[string]bool)
	for _, f := range filings {
		if strings.HasSuffix(f.JobFilingNumber, "-I1") {
			hasInitial[modernJobKey(f.JobFilingNumber)] = true
		}
	}

	var out []ModernFiling
	for _, f := range filings {
		if !hasInitial[modernJobKey(f.JobFilingNumber)] || strings.HasSuffix(f.JobFilingNumber, "-I1") {
			out = append(out, f)
		}
	}
	return out
}

// modernJobKey strips the filing-sequence suffix from a DOB NOW filing
// number, e.g. "M00093579-I1" and "M00093579-P1" share job "M00093579".
func modernJobKey(filingNumber string) string {
	if i := strings.LastIndex(filingNumber, "-"); i > 0 {
		return filingNumber[:i]
	}
	return filingNumber
}

// MatchedLegacyBINs returns the distinct normalized BINs present in the
// filings, used to decide which buildings still need a fallback tier.
func MatchedLegacyBINs(filings []LegacyFiling) map[string]bool {
	out := make(map[string]bool)
	for _, f := range filings {
		if bin := normalize.BIN(f.BIN); bin != "" {
			out[bin] = true
		}
	}
	return out
}

// MatchedModernBINs returns the distinct normalized BINs present in the
// filings.
func MatchedModernBINs(filings []ModernFiling) map[string]bool {
	out := make(map[string]bool)
	for _, f := range filings {
		if bin := normalize.BIN(f.BIN); bin != "" {
			out[bin] = true
		}
	}
	return out
}

// SortLegacyByJob orders filings by job then document number, a stable
// order for snapshots and tests.
func SortLegacyByJob(filings []LegacyFiling) {
	sort.SliceStable(filings, func(i, j int) bool {
		if filings[i].Job != filings[j].Job {
			return filings[i].Job < filings[j].Job
		}
		return docLess(filings[i].Doc, filings[j].Doc)
	})
}
