package sources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nyc-housing-linkage/internal/opendata"
)

// Financing classifications assigned from the LL44 award lookup.
const (
	FinancingHPD     = "HPD Financed"
	FinancingPrivate = "Privately Financed"
	FinancingUnknown = "Unknown"
)

// Building is one row of the HPD affordable housing production snapshot
// ("Housing New York Units by Building"). One building belongs to one
// project; project-level dates are inherited when the building row lacks
// its own.
type Building struct {
	BuildingID             string `json:"building_id"`
	ProjectID              string `json:"project_id"`
	ProjectName            string `json:"project_name"`
	ProjectStartDate       string `json:"project_start_date"`
	ProjectCompletionDate  string `json:"project_completion_date"`
	BuildingCompletionDate string `json:"building_completion_date"`
	HouseNumber            string `json:"house_number"`
	StreetName             string `json:"street_name"`
	Borough                string `json:"borough"`
	Postcode               string `json:"postcode"`
	BBL                    string `json:"bbl"`
	BIN                    string `json:"bin"`
	ConstructionType       string `json:"reporting_construction_type"`
	TotalUnits             string `json:"total_units"`

	// FinancingType is assigned by the LL44 classification step, not
	// part of the upstream dataset.
	FinancingType string `json:"-"`
}

// Project is one row of the project-level HPD dataset, used to backfill
// building rows whose own project dates are blank.
type Project struct {
	ProjectID             string `json:"project_id"`
	ProjectName           string `json:"project_name"`
	ProgramGroup          string `json:"program_group"`
	ProjectStartDate      string `json:"project_start_date"`
	ProjectCompletionDate string `json:"project_completion_date"`
}

// HPDSource fetches the HPD building and project snapshots.
type HPDSource struct {
	Client *opendata.Client
	Debug  bool
}

// FetchBuildings pages through the full building snapshot in project_id
// order.
func (s *HPDSource) FetchBuildings(ctx context.Context) ([]Building, error) {
	var all []Building
	err := s.Client.FetchAll(ctx, s.Debug, DatasetHPDBuildings, "project_id", func(page json.RawMessage) (int, error) {
		var rows []Building
		if err := json.Unmarshal(page, &rows); err != nil {
			return 0, err
		}
		all = append(all, rows...)
		return len(rows), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch building snapshot: %w", err)
	}
	return all, nil
}

// FetchProjects pages through the project-level snapshot.
func (s *HPDSource) FetchProjects(ctx context.Context) ([]Project, error) {
	var all []Project
	err := s.Client.FetchAll(ctx, s.Debug, DatasetHPDProjects, "project_id", func(page json.RawMessage) (int, error) {
		var rows []Project
		if err := json.Unmarshal(page, &rows); err != nil {
			return 0, err
		}
		all = append(all, rows...)
		return len(rows), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch project snapshot: %w", err)
	}
	return all, nil
}

// EnrichProjectDates fills blank building-level project dates from the
// project snapshot. Building-level values win when present; the filled
// count is returned for reporting.
func EnrichProjectDates(buildings []Building, projects []Project) int {
	byID := make(map[string]Project, len(projects))
	for _, p := range projects {
		if p.ProjectID != "" {
			byID[p.ProjectID] = p
		}
	}

	filled := 0
	for i := range buildings {
		p, ok := byID[buildings[i].ProjectID]
		if !ok {
			continue
		}
		if buildings[i].ProjectStartDate == "" && p.ProjectStartDate != "" {
			buildings[i].ProjectStartDate = p.ProjectStartDate
			filled++
		}
		if buildings[i].ProjectCompletionDate == "" && p.ProjectCompletionDate != "" {
			buildings[i].ProjectCompletionDate = p.ProjectCompletionDate
			filled++
		}
		if buildings[i].ProjectName == "" {
			buildings[i].ProjectName = p.ProjectName
		}
	}
	return filled
}
