// Package audit persists per-run match decisions to Postgres so that
// tier assignments can be compared across pipeline runs. The whole
// package is optional at runtime; without a configured database the
// pipeline simply skips it.
package audit

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nyc-housing-linkage/internal/debug"
	"github.com/nyc-housing-linkage/internal/matcher"
)

// Tracker records match runs and per-building results.
type Tracker struct {
	db *sql.DB
}

// NewTracker creates an audit tracker on an open connection.
func NewTracker(db *sql.DB) *Tracker {
	return &Tracker{db: db}
}

// EnsureSchema creates the audit tables when missing.
func (t *Tracker) EnsureSchema() error {
	_, err := t.db.Exec(`
		CREATE TABLE IF NOT EXISTS match_run (
			run_id UUID PRIMARY KEY,
			started_at TIMESTAMPTZ NOT NULL,
			finished_at TIMESTAMPTZ,
			buildings INTEGER NOT NULL DEFAULT 0,
			batches INTEGER NOT NULL DEFAULT 0,
			failed_batches INTEGER NOT NULL DEFAULT 0
		);
		CREATE TABLE IF NOT EXISTS match_result (
			result_id BIGSERIAL PRIMARY KEY,
			run_id UUID NOT NULL REFERENCES match_run(run_id),
			building_id TEXT NOT NULL,
			project_id TEXT,
			bin TEXT,
			bbl TEXT,
			legacy_tier TEXT NOT NULL,
			modern_tier TEXT NOT NULL,
			legacy_records INTEGER NOT NULL DEFAULT 0,
			modern_records INTEGER NOT NULL DEFAULT 0,
			unmatchable BOOLEAN NOT NULL DEFAULT FALSE,
			recorded_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_match_result_run ON match_result(run_id);
	`)
	if err != nil {
		return fmt.Errorf("failed to create audit schema: %w", err)
	}
	return nil
}

// StartRun inserts the match_run row.
func (t *Tracker) StartRun(runID uuid.UUID, buildings int) error {
	_, err := t.db.Exec(`
		INSERT INTO match_run (run_id, started_at, buildings)
		VALUES ($1, $2, $3)
	`, runID, time.Now(), buildings)
	if err != nil {
		return fmt.Errorf("failed to insert match run: %w", err)
	}
	return nil
}

// RecordResult writes the whole cascade result for one run in a single
// transaction.
func (t *Tracker) RecordResult(localDebug bool, runID uuid.UUID, result *matcher.Result) error {
	debug.Header(localDebug)
	defer debug.Footer(localDebug)
	debug.Output(localDebug, "recording %d match results for run %s", len(result.Matches), runID)

	tx, err := t.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO match_result (
			run_id, building_id, project_id, bin, bbl,
			legacy_tier, modern_tier, legacy_records, modern_records,
			unmatchable, recorded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, m := range result.Matches {
		if _, err := stmt.Exec(runID, m.BuildingID, m.ProjectID, m.BIN, m.BBL,
			string(m.LegacyTier), string(m.ModernTier), m.LegacyCount, m.ModernCount,
			m.Unmatchable, now); err != nil {
			return fmt.Errorf("failed to insert result for building %s: %w", m.BuildingID, err)
		}
	}

	if _, err := tx.Exec(`
		UPDATE match_run SET finished_at = $1, batches = $2, failed_batches = $3
		WHERE run_id = $4
	`, now, result.Stats.Batches, result.Stats.Failed, runID); err != nil {
		return fmt.Errorf("failed to finish match run: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit audit records: %w", err)
	}
	debug.Output(localDebug, "audit trail committed for run %s", runID)
	return nil
}

// TierCount is one row of a run's tier breakdown.
type TierCount struct {
	Tier  string
	Count int
}

// RunStatistics returns how many buildings resolved at each tier for a
// run, best tier across the two systems, unmatchable buildings counted
// separately.
func (t *Tracker) RunStatistics(runID uuid.UUID) ([]TierCount, int, error) {
	rows, err := t.db.Query(`
		SELECT tier, COUNT(*) FROM (
			SELECT CASE WHEN lr <= mr THEN legacy_tier ELSE modern_tier END AS tier FROM (
				SELECT legacy_tier, modern_tier,
					CASE legacy_tier WHEN 'BIN' THEN 0 WHEN 'BBL' THEN 1 WHEN 'Condo' THEN 2 WHEN 'Address' THEN 3 ELSE 4 END AS lr,
					CASE modern_tier WHEN 'BIN' THEN 0 WHEN 'BBL' THEN 1 WHEN 'Condo' THEN 2 WHEN 'Address' THEN 3 ELSE 4 END AS mr
				FROM match_result
				WHERE run_id = $1 AND NOT unmatchable
			) ranked
		) best
		GROUP BY tier
		ORDER BY tier
	`, runID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query tier breakdown: %w", err)
	}
	defer rows.Close()

	var counts []TierCount
	for rows.Next() {
		var tc TierCount
		if err := rows.Scan(&tc.Tier, &tc.Count); err != nil {
			return nil, 0, fmt.Errorf("failed to scan tier count: %w", err)
		}
		counts = append(counts, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var unmatchable int
	err = t.db.QueryRow(`
		SELECT COUNT(*) FROM match_result WHERE run_id = $1 AND unmatchable
	`, runID).Scan(&unmatchable)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count unmatchable: %w", err)
	}
	return counts, unmatchable, nil
}
