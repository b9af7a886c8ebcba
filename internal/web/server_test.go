package web

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nyc-housing-linkage/internal/store"
	"github.com/nyc-housing-linkage/internal/timeline"
)

func newTestServer(t *testing.T) (*Server, *store.Store, string) {
	t.Helper()
	dataDir := t.TempDir()
	reportsDir := t.TempDir()
	st := store.New(dataDir)
	return NewServer("127.0.0.1:0", st, reportsDir), st, reportsDir
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	s, _, _ := newTestServer(t)
	rec := get(t, s, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestReportServesLatest(t *testing.T) {
	s, _, reportsDir := newTestServer(t)

	// two reports; the lexically newest timestamped name wins
	old := filepath.Join(reportsDir, "data_quality_report_20250101_000000.txt")
	newer := filepath.Join(reportsDir, "data_quality_report_20250601_120000.txt")
	os.WriteFile(old, []byte("old report"), 0o644)
	os.WriteFile(newer, []byte("new report"), 0o644)

	rec := get(t, s, "/report")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Body.String() != "new report" {
		t.Errorf("body = %q, want the newest report", rec.Body.String())
	}
}

func TestReportMissing(t *testing.T) {
	s, _, _ := newTestServer(t)
	if rec := get(t, s, "/report"); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestTimelineDownload(t *testing.T) {
	s, st, _ := newTestServer(t)

	events := []timeline.Event{
		{BIN: "1234567", Date: "06/14/2011", Source: "DOB", Event: "DOB NB Application submitted"},
	}
	if err := store.SaveTimeline(st.ProcessedPath(store.TimelineHPD), events); err != nil {
		t.Fatal(err)
	}

	rec := get(t, s, "/timelines/hpd")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "DOB NB Application submitted") {
		t.Errorf("body = %q", rec.Body.String())
	}

	// not generated yet
	if rec := get(t, s, "/timelines/private"); rec.Code != http.StatusNotFound {
		t.Errorf("missing snapshot status = %d, want 404", rec.Code)
	}
	// unknown stream
	if rec := get(t, s, "/timelines/everything"); rec.Code != http.StatusNotFound {
		t.Errorf("unknown stream status = %d, want 404", rec.Code)
	}
}
