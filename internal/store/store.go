// Package store persists pipeline snapshots as CSV files under a data
// directory, with a freshness policy for the expensive upstream fetches.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Well-known snapshot filenames.
const (
	BuildingsFile  = "affordable_housing_buildings.csv"
	ClassifiedFile = "affordable_housing_with_financing.csv"
	PermitsFile    = "dob_filings.csv"
	COFile         = "co_filings.csv"
	TimelineHPD    = "timeline_hpd_financed.csv"
	TimelinePriv   = "timeline_privately_financed.csv"
	MatchesFile    = "match_provenance.csv"
)

// Store resolves snapshot paths under one data directory:
// raw fetches in data/raw, derived outputs in data/processed.
type Store struct {
	DataDir string
}

func New(dataDir string) *Store {
	if dataDir == "" {
		dataDir = "data"
	}
	return &Store{DataDir: dataDir}
}

// RawPath returns the path of a raw snapshot file.
func (s *Store) RawPath(name string) string {
	return filepath.Join(s.DataDir, "raw", name)
}

// ProcessedPath returns the path of a derived output file.
func (s *Store) ProcessedPath(name string) string {
	return filepath.Join(s.DataDir, "processed", name)
}

// IsFresh reports whether path exists and was modified within maxAge.
func (s *Store) IsFresh(path string, maxAge time.Duration) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return time.Since(info.ModTime()) < maxAge
}

// Backup moves an existing snapshot aside before a refresh, returning the
// backup path. A missing file is not an error; there is nothing to keep.
func (s *Store) Backup(path string) (string, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return "", nil
	}
	backup := fmt.Sprintf("%s.backup_%s", path, time.Now().Format("20060102_150405"))
	if err := os.Rename(path, backup); err != nil {
		return "", fmt.Errorf("failed to back up %s: %w", path, err)
	}
	return backup, nil
}

func ensureDir(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	return nil
}
