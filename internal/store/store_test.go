package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nyc-housing-linkage/internal/sources"
	"github.com/nyc-housing-linkage/internal/timeline"
)

func TestFreshnessPolicy(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	path := filepath.Join(dir, "snapshot.csv")

	if s.IsFresh(path, time.Hour) {
		t.Error("missing file reported fresh")
	}

	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !s.IsFresh(path, time.Hour) {
		t.Error("new file reported stale")
	}

	stale := time.Now().Add(-25 * time.Hour)
	if err := os.Chtimes(path, stale, stale); err != nil {
		t.Fatal(err)
	}
	if s.IsFresh(path, 24*time.Hour) {
		t.Error("day-old file reported fresh under 24h policy")
	}
}

func TestBackup(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	path := filepath.Join(dir, "snapshot.csv")

	// nothing to back up
	backup, err := s.Backup(path)
	if err != nil || backup != "" {
		t.Fatalf("Backup of missing file = %q, %v", backup, err)
	}

	if err := os.WriteFile(path, []byte("old data"), 0o644); err != nil {
		t.Fatal(err)
	}
	backup, err = s.Backup(path)
	if err != nil {
		t.Fatalf("Backup: %v", err)
	}
	if !strings.Contains(backup, ".backup_") {
		t.Errorf("backup path = %q", backup)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("original still present after backup")
	}
	data, err := os.ReadFile(backup)
	if err != nil || string(data) != "old data" {
		t.Errorf("backup content = %q, %v", data, err)
	}
}

func TestBuildingsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "raw", "buildings.csv")

	in := []sources.Building{
		{BuildingID: "987654", ProjectID: "44218", ProjectName: "MORRIS AVENUE APTS",
			ProjectStartDate: "2014-06-01", HouseNumber: "655", StreetName: "MORRIS AVENUE",
			Borough: "BRONX", BBL: "2028950041", BIN: "2124684", FinancingType: sources.FinancingHPD},
		{BuildingID: "987655", BIN: "1000000"},
	}
	if err := SaveBuildings(path, in); err != nil {
		t.Fatalf("SaveBuildings: %v", err)
	}

	out, err := LoadBuildings(path)
	if err != nil {
		t.Fatalf("LoadBuildings: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("loaded %d buildings, want 2", len(out))
	}
	if out[0] != in[0] {
		t.Errorf("building mismatch:\n got %+v\nwant %+v", out[0], in[0])
	}
}

func TestPermitsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "processed", "permits.csv")

	legacyIn := []sources.LegacyFiling{
		{BIN: "1234567", Job: "120481110", Doc: "01", JobType: "NB", Borough: "MANHATTAN",
			Block: "01982", Lot: "00032", PreFilingDate: "06/14/2011", FullyPermitted: "03/01/2012"},
	}
	modernIn := []sources.ModernFiling{
		{BIN: "4112233", JobFilingNumber: "Q00055001-I1", JobType: "New Building", Borough: "QUEENS",
			Block: "2895", Lot: "41", FilingDate: "2019-03-01", ApprovedDate: "2020-07-15"},
	}

	if err := SavePermits(path, legacyIn, modernIn); err != nil {
		t.Fatalf("SavePermits: %v", err)
	}
	legacy, modern, err := LoadPermits(path)
	if err != nil {
		t.Fatalf("LoadPermits: %v", err)
	}
	if len(legacy) != 1 || len(modern) != 1 {
		t.Fatalf("loaded %d legacy / %d modern, want 1/1", len(legacy), len(modern))
	}
	if legacy[0] != legacyIn[0] {
		t.Errorf("legacy mismatch:\n got %+v\nwant %+v", legacy[0], legacyIn[0])
	}
	if modern[0] != modernIn[0] {
		t.Errorf("modern mismatch:\n got %+v\nwant %+v", modern[0], modernIn[0])
	}
}

func TestCOsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "processed", "cos.csv")

	legacyIn := []sources.LegacyCO{
		{BIN: "2124684", IssueDate: "11/30/2017", IssueType: "Temporary", JobNumber: "220412541"},
	}
	modernIn := []sources.ModernCO{
		{BIN: "1089591", IssuanceDate: "2021-05-05", FilingType: "Final", Status: "Issued"},
	}

	if err := SaveCOs(path, legacyIn, modernIn); err != nil {
		t.Fatalf("SaveCOs: %v", err)
	}
	legacy, modern, err := LoadCOs(path)
	if err != nil {
		t.Fatalf("LoadCOs: %v", err)
	}
	if len(legacy) != 1 || len(modern) != 1 {
		t.Fatalf("loaded %d legacy / %d modern, want 1/1", len(legacy), len(modern))
	}
	if legacy[0] != legacyIn[0] || modern[0] != modernIn[0] {
		t.Errorf("round trip mismatch: %+v %+v", legacy[0], modern[0])
	}
}

func TestTimelineRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "processed", "timeline.csv")

	in := []timeline.Event{
		{BIN: "1234567", Address: "228 WEST 129 STREET", Date: "06/14/2011",
			Source: "DOB", Event: "DOB NB Application submitted", Detail: "Job: 120481110"},
	}
	if err := SaveTimeline(path, in); err != nil {
		t.Fatalf("SaveTimeline: %v", err)
	}
	out, err := LoadTimeline(path)
	if err != nil {
		t.Fatalf("LoadTimeline: %v", err)
	}
	if len(out) != 1 || out[0] != in[0] {
		t.Errorf("round trip mismatch: %+v", out)
	}
}
