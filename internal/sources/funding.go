package sources

import (
	"context"
	"fmt"

	"github.com/nyc-housing-linkage/internal/opendata"
)

type awardRow struct {
	ProjectID string `json:"projectid"`
}

// FundingSource queries the Local Law 44 capital funding awards dataset.
// Presence of a project ID there means the project received city
// financing; absence is itself a classification, not a miss.
type FundingSource struct {
	Client *opendata.Client
	Debug  bool
}

// FundedProjectIDs returns the subset of projectIDs that appear in the
// LL44 awards dataset.
func (s *FundingSource) FundedProjectIDs(ctx context.Context, projectIDs []string) (map[string]bool, BatchStats) {
	funded := make(map[string]bool)
	var stats BatchStats
	for _, batch := range batches(projectIDs, awardBatchSize) {
		stats.Batches++
		where := fmt.Sprintf("(%s)", orFilter("projectid", batch))
		var rows []awardRow
		if err := s.Client.Query(ctx, s.Debug, DatasetLL44Awards, where, queryLimit, &rows); err != nil {
			logBatchError(DatasetLL44Awards, stats.Batches, err)
			stats.Failed++
			continue
		}
		for _, row := range rows {
			if row.ProjectID != "" {
				funded[row.ProjectID] = true
			}
		}
	}
	return funded, stats
}

// ClassifyFinancing assigns each building's FinancingType from the
// funded-project set and returns the count per classification.
func ClassifyFinancing(buildings []Building, funded map[string]bool) map[string]int {
	counts := make(map[string]int)
	for i := range buildings {
		switch {
		case buildings[i].ProjectID == "":
			buildings[i].FinancingType = FinancingUnknown
		case funded[buildings[i].ProjectID]:
			buildings[i].FinancingType = FinancingHPD
		default:
			buildings[i].FinancingType = FinancingPrivate
		}
		counts[buildings[i].FinancingType]++
	}
	return counts
}
