package opendata

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type testRow struct {
	BIN string `json:"bin"`
}

func TestQueryDecodesRows(t *testing.T) {
	var gotWhere, gotLimit string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/abcd-1234.json") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		gotWhere = r.URL.Query().Get("$where")
		gotLimit = r.URL.Query().Get("$limit")
		w.Write([]byte(`[{"bin":"1089591"},{"bin":"3335555"}]`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	var rows []testRow
	if err := c.Query(context.Background(), false, "abcd-1234", `bin in('1089591','3335555')`, 2000, &rows); err != nil {
		t.Fatalf("Query: %v", err)
	}

	if len(rows) != 2 || rows[0].BIN != "1089591" {
		t.Errorf("rows = %+v", rows)
	}
	if gotWhere != `bin in('1089591','3335555')` {
		t.Errorf("$where = %q", gotWhere)
	}
	if gotLimit != "2000" {
		t.Errorf("$limit = %q", gotLimit)
	}

	stats := c.Stats()
	if stats.Calls != 1 || stats.Errors != 0 {
		t.Errorf("stats = %+v, want 1 call 0 errors", stats)
	}
}

func TestQueryErrorStatusCounted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	var rows []testRow
	err := c.Query(context.Background(), false, "abcd-1234", "", 10, &rows)
	if err == nil {
		t.Fatal("expected error for status 429")
	}
	if !strings.Contains(err.Error(), "status 429") {
		t.Errorf("error = %v, want status in message", err)
	}

	stats := c.Stats()
	if stats.Calls != 1 || stats.Errors != 1 {
		t.Errorf("stats = %+v, want 1 call 1 error", stats)
	}
}

func TestQuerySendsAppToken(t *testing.T) {
	var gotToken string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-App-Token")
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, AppToken: "secret-token"})
	var rows []testRow
	if err := c.Query(context.Background(), false, "abcd-1234", "", 0, &rows); err != nil {
		t.Fatalf("Query: %v", err)
	}
	if gotToken != "secret-token" {
		t.Errorf("X-App-Token = %q", gotToken)
	}
}

func TestFetchAllPaginates(t *testing.T) {
	var offsets []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		offsets = append(offsets, r.URL.Query().Get("$offset"))
		if r.URL.Query().Get("$order") != "bin" {
			t.Errorf("$order = %q", r.URL.Query().Get("$order"))
		}
		// two full pages of 2, then a short page
		switch r.URL.Query().Get("$offset") {
		case "0":
			w.Write([]byte(`[{"bin":"1"},{"bin":"2"}]`))
		case "2":
			w.Write([]byte(`[{"bin":"3"},{"bin":"4"}]`))
		default:
			w.Write([]byte(`[{"bin":"5"}]`))
		}
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, PageSize: 2})
	var all []testRow
	err := c.FetchAll(context.Background(), false, "abcd-1234", "bin", func(page json.RawMessage) (int, error) {
		var rows []testRow
		if err := json.Unmarshal(page, &rows); err != nil {
			return 0, err
		}
		all = append(all, rows...)
		return len(rows), nil
	})
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}

	if len(all) != 5 {
		t.Errorf("fetched %d rows, want 5", len(all))
	}
	want := []string{"0", "2", "4"}
	if len(offsets) != len(want) {
		t.Fatalf("offsets = %v, want %v", offsets, want)
	}
	for i := range want {
		if offsets[i] != want[i] {
			t.Errorf("offset[%d] = %q, want %q", i, offsets[i], want[i])
		}
	}
}

func TestFetchAllHonorsMaxRecords(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`[{"bin":"1"},{"bin":"2"}]`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, PageSize: 2, MaxRecords: 4})
	err := c.FetchAll(context.Background(), false, "abcd-1234", "", func(page json.RawMessage) (int, error) {
		var rows []testRow
		if err := json.Unmarshal(page, &rows); err != nil {
			return 0, err
		}
		return len(rows), nil
	})
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if calls != 2 {
		t.Errorf("made %d requests, want 2 (capped at 4 records)", calls)
	}
}
