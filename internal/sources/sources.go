// Package sources defines the typed records and query shapes for each
// NYC Open Data dataset the pipeline reads: the HPD affordable housing
// snapshot, the two DOB permit systems, the two certificate-of-occupancy
// systems, the condominium lot map, and the LL44 financing awards.
package sources

import (
	"fmt"
	"log"
	"strings"

	"github.com/nyc-housing-linkage/internal/debug"
)

// Dataset resource identifiers on data.cityofnewyork.us.
const (
	DatasetHPDBuildings = "hg8x-zxpr"
	DatasetHPDProjects  = "hq68-rnsi"
	DatasetLegacyJobs   = "ic3t-wcy2"
	DatasetModernJobs   = "w9ak-ipjd"
	DatasetModernCO     = "pkdm-hqz6"
	DatasetLegacyCO     = "bs8b-p36w"
	DatasetCondoUnits   = "p8u6-a6it"
	DatasetLL44Awards   = "gmi7-62cd"
)

// Batch sizes tuned against SODA URL length limits: identifier filters
// tolerate large disjunctions, parcel triples and project IDs do not.
const (
	binBatchSize    = 300
	parcelBatchSize = 50
	coBatchSize     = 50
	awardBatchSize  = 50
)

const queryLimit = 50000

// BatchStats reports how a batched query run went. A failed batch is
// skipped, not fatal, so callers need the split to tell "no matches"
// apart from "the source errored".
type BatchStats struct {
	Batches int
	Failed  int
}

func (s *BatchStats) add(other BatchStats) {
	s.Batches += other.Batches
	s.Failed += other.Failed
}

// orFilter builds "col='v1' OR col='v2' ..." for an identifier batch.
func orFilter(column string, values []string) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, fmt.Sprintf("%s='%s'", column, escapeQuotes(v)))
	}
	return strings.Join(parts, " OR ")
}

// escapeQuotes doubles single quotes for embedding in a SoQL literal.
func escapeQuotes(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// batches splits values into chunks of size n.
func batches(values []string, n int) [][]string {
	var out [][]string
	for i := 0; i < len(values); i += n {
		end := i + n
		if end > len(values) {
			end = len(values)
		}
		out = append(out, values[i:end])
	}
	return out
}

// logBatchError reports a skipped batch with truncated diagnostics.
func logBatchError(dataset string, batch int, err error) {
	log.Printf("  dataset %s batch %d failed, skipping: %s", dataset, batch, debug.Truncate(err.Error(), 200))
}
