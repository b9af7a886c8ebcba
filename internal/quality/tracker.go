package quality

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// StageCount records how many records survived a pipeline stage.
type StageCount struct {
	Stage   string
	Records int
	Note    string
}

// Tracker accumulates data quality metrics for a single pipeline run.
// It is an explicit per-run object: construct one, pass it to each stage,
// render the report at the end. Append-only; nothing is reconciled against
// raw data after the run.
type Tracker struct {
	RunID uuid.UUID

	startedAt time.Time
	endedAt   time.Time

	// completeness
	TotalRecords            int
	RecordsWithBIN          int
	RecordsWithBBL          int
	RecordsWithAddress      int
	RecordsWithProjectDates int
	MissingBINs             int
	MissingBBLs             int
	MissingAddresses        int
	MissingStartDates       int
	MissingCompletionDates  int

	// consistency
	BBLBoroughChecks  int
	BBLBoroughValid   int
	BBLBoroughInvalid int
	DuplicateBINs     int
	DuplicateBBLs     int
	InvalidDates      int
	FutureDates       int

	// match performance
	MatchAttempts int
	MatchesByTier map[string]int
	Unmatchable   int

	// permit results
	PermitsFound   int
	NBPermitsFound int
	PermitTypes    map[string]int
	BoroughCounts  map[string]int

	// remote source activity
	APICalls  int
	APIErrors int

	stages []StageCount
}

// NewTracker creates a tracker for a fresh run.
func NewTracker() *Tracker {
	return &Tracker{
		RunID:         uuid.New(),
		MatchesByTier: make(map[string]int),
		PermitTypes:   make(map[string]int),
		BoroughCounts: make(map[string]int),
	}
}

// StartProcessing marks the start of the run.
func (t *Tracker) StartProcessing() {
	t.startedAt = time.Now()
}

// EndProcessing marks the end of the run.
func (t *Tracker) EndProcessing() {
	t.endedAt = time.Now()
}

// RecordStage appends a pipeline-stage record count.
func (t *Tracker) RecordStage(stage string, records int, note string) {
	t.stages = append(t.stages, StageCount{Stage: stage, Records: records, Note: note})
}

// Stages returns the recorded pipeline stages in order.
func (t *Tracker) Stages() []StageCount {
	return t.stages
}

// RecordBoroughCheck counts one BBL-borough consistency check.
func (t *Tracker) RecordBoroughCheck(consistent bool) {
	t.BBLBoroughChecks++
	if consistent {
		t.BBLBoroughValid++
	} else {
		t.BBLBoroughInvalid++
	}
}

// RecordMatch counts one building resolved at the named tier.
func (t *Tracker) RecordMatch(tier string) {
	t.MatchAttempts++
	t.MatchesByTier[tier]++
}

// RecordUnmatchable counts one building with no usable identifier at all.
func (t *Tracker) RecordUnmatchable() {
	t.MatchAttempts++
	t.Unmatchable++
}

// RecordPermit counts one retrieved permit record.
func (t *Tracker) RecordPermit(jobType, borough string) {
	t.PermitsFound++
	if strings.Contains(jobType, "NB") || strings.Contains(jobType, "New Building") {
		t.NBPermitsFound++
	}
	if jobType != "" {
		t.PermitTypes[jobType]++
	}
	if borough != "" {
		t.BoroughCounts[borough]++
	}
}

// RecordAPIActivity adds remote call and error counts, typically copied
// from a record source client at the end of a stage.
func (t *Tracker) RecordAPIActivity(calls, errors int) {
	t.APICalls += calls
	t.APIErrors += errors
}

// Report renders the human-readable quality report.
func (t *Tracker) Report() string {
	var b strings.Builder
	divider := strings.Repeat("=", 80)
	rule := strings.Repeat("-", 40)

	fmt.Fprintln(&b, divider)
	fmt.Fprintln(&b, "HOUSING DATA QUALITY REPORT")
	fmt.Fprintf(&b, "Run: %s\n", t.RunID)
	fmt.Fprintln(&b, divider)

	if !t.startedAt.IsZero() && !t.endedAt.IsZero() {
		fmt.Fprintf(&b, "Processing Time: %.1f seconds\n", t.endedAt.Sub(t.startedAt).Seconds())
	}
	fmt.Fprintln(&b)

	fmt.Fprintln(&b, "DATA COMPLETENESS")
	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "Total Records: %d\n", t.TotalRecords)
	writeRate(&b, "BINs Present", t.RecordsWithBIN, t.TotalRecords)
	fmt.Fprintf(&b, "    Missing: %d\n", t.MissingBINs)
	writeRate(&b, "BBLs Present", t.RecordsWithBBL, t.TotalRecords)
	fmt.Fprintf(&b, "    Missing: %d\n", t.MissingBBLs)
	writeRate(&b, "Addresses Complete", t.RecordsWithAddress, t.TotalRecords)
	fmt.Fprintf(&b, "    Missing: %d\n", t.MissingAddresses)
	writeRate(&b, "Project Dates Complete", t.RecordsWithProjectDates, t.TotalRecords)
	fmt.Fprintln(&b)

	fmt.Fprintln(&b, "DATA CONSISTENCY")
	fmt.Fprintln(&b, rule)
	if t.BBLBoroughChecks > 0 {
		writeRate(&b, "BBL-Borough Consistency", t.BBLBoroughValid, t.BBLBoroughChecks)
		if t.BBLBoroughInvalid > 0 {
			fmt.Fprintf(&b, "  Inconsistencies Found: %d\n", t.BBLBoroughInvalid)
		}
	}
	if t.DuplicateBINs > 0 {
		fmt.Fprintf(&b, "Duplicate BINs: %d\n", t.DuplicateBINs)
	}
	if t.DuplicateBBLs > 0 {
		fmt.Fprintf(&b, "Duplicate BBLs: %d\n", t.DuplicateBBLs)
	}
	if t.InvalidDates+t.FutureDates > 0 {
		fmt.Fprintf(&b, "Date Validation Issues: %d\n", t.InvalidDates+t.FutureDates)
		if t.InvalidDates > 0 {
			fmt.Fprintf(&b, "  Invalid Dates: %d\n", t.InvalidDates)
		}
		if t.FutureDates > 0 {
			fmt.Fprintf(&b, "  Future Dates: %d\n", t.FutureDates)
		}
	}
	fmt.Fprintln(&b)

	fmt.Fprintln(&b, "MATCH PERFORMANCE")
	fmt.Fprintln(&b, rule)
	if t.MatchAttempts > 0 {
		tiers := make([]string, 0, len(t.MatchesByTier))
		for tier := range t.MatchesByTier {
			tiers = append(tiers, tier)
		}
		sort.Strings(tiers)
		matched := 0
		for _, tier := range tiers {
			writeRate(&b, "Matched via "+tier, t.MatchesByTier[tier], t.MatchAttempts)
			matched += t.MatchesByTier[tier]
		}
		writeRate(&b, "Total Matched", matched, t.MatchAttempts)
		if t.Unmatchable > 0 {
			writeRate(&b, "Unmatchable (no usable identifier)", t.Unmatchable, t.MatchAttempts)
		}
	}
	fmt.Fprintln(&b)

	if t.PermitsFound > 0 {
		fmt.Fprintln(&b, "PERMIT RESULTS")
		fmt.Fprintln(&b, rule)
		fmt.Fprintf(&b, "Total Permits Found: %d\n", t.PermitsFound)
		fmt.Fprintf(&b, "New Building Permits: %d\n", t.NBPermitsFound)
		writeTopCounts(&b, "Permit Types (Top 5):", t.PermitTypes, 5)
		writeTopCounts(&b, "Permits by Borough:", t.BoroughCounts, len(t.BoroughCounts))
		fmt.Fprintln(&b)
	}

	if t.APICalls > 0 {
		fmt.Fprintln(&b, "API PERFORMANCE")
		fmt.Fprintln(&b, rule)
		fmt.Fprintf(&b, "API Calls: %d\n", t.APICalls)
		fmt.Fprintf(&b, "Errors: %d\n", t.APIErrors)
		success := float64(t.APICalls-t.APIErrors) / float64(t.APICalls) * 100
		fmt.Fprintf(&b, "Success Rate: %.1f%%\n", success)
		fmt.Fprintln(&b)
	}

	if len(t.stages) > 0 {
		fmt.Fprintln(&b, "PIPELINE STAGES")
		fmt.Fprintln(&b, rule)
		for _, s := range t.stages {
			fmt.Fprintf(&b, "  %s: %d records", s.Stage, s.Records)
			if s.Note != "" {
				fmt.Fprintf(&b, " (%s)", s.Note)
			}
			fmt.Fprintln(&b)
		}
		fmt.Fprintln(&b)
	}

	fmt.Fprintln(&b, "Data Quality Report Complete")
	fmt.Fprintln(&b, divider)
	return b.String()
}

// SaveReport writes the report into dir with a timestamped filename and
// returns the path written.
func (t *Tracker) SaveReport(dir, baseName string) (string, error) {
	if baseName == "" {
		baseName = "data_quality_report"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create reports dir: %w", err)
	}

	filename := filepath.Join(dir, fmt.Sprintf("%s_%s.txt", baseName, time.Now().Format("20060102_150405")))
	if err := os.WriteFile(filename, []byte(t.Report()), 0o644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return filename, nil
}

func writeRate(b *strings.Builder, label string, n, total int) {
	pct := 0.0
	if total > 0 {
		pct = float64(n) / float64(total) * 100
	}
	fmt.Fprintf(b, "  %s: %d (%.1f%%)\n", label, n, pct)
}

func writeTopCounts(b *strings.Builder, label string, counts map[string]int, limit int) {
	if len(counts) == 0 {
		return
	}
	type kv struct {
		key string
		n   int
	}
	sorted := make([]kv, 0, len(counts))
	for k, n := range counts {
		sorted = append(sorted, kv{k, n})
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].n != sorted[j].n {
			return sorted[i].n > sorted[j].n
		}
		return sorted[i].key < sorted[j].key
	})
	fmt.Fprintln(b, label)
	for i, entry := range sorted {
		if i >= limit {
			break
		}
		fmt.Fprintf(b, "  %s: %d\n", entry.key, entry.n)
	}
}
