package timeline

import (
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{"us slash format", "06/14/2011", "2011-06-14", true},
		{"iso date", "2019-03-01", "2019-03-01", true},
		{"iso timestamp with fraction", "2019-03-01T14:22:01.000", "2019-03-01", true},
		{"us dash format", "06-14-2011", "2011-06-14", true},
		{"slash iso order", "2011/06/14", "2011-06-14", true},
		{"trailing time after space", "06/14/2011 00:00:00", "2011-06-14", true},
		{"empty", "", "", false},
		{"nan", "nan", "", false},
		{"garbage", "not a date", "", false},
		{"month out of range", "13/45/2011", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseDate(tt.input)
			if ok != tt.ok {
				t.Fatalf("ParseDate(%q) ok = %v, want %v", tt.input, ok, tt.ok)
			}
			if ok && got.Format("2006-01-02") != tt.want {
				t.Errorf("ParseDate(%q) = %s, want %s", tt.input, got.Format("2006-01-02"), tt.want)
			}
		})
	}
}

func TestEarliestDate(t *testing.T) {
	tests := []struct {
		name       string
		candidates []string
		want       string
		ok         bool
	}{
		{"picks earliest not first", []string{"01/01/2013", "06/14/2011"}, "06/14/2011", true},
		{"skips unparseable", []string{"nan", "", "06/14/2011"}, "06/14/2011", true},
		{"all unparseable", []string{"", "nan"}, "", false},
		{"mixed formats compared correctly", []string{"2011-07-01", "06/14/2011"}, "06/14/2011", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := earliestDate(tt.candidates...)
			if ok != tt.ok || got != tt.want {
				t.Errorf("earliestDate(%v) = %q/%v, want %q/%v", tt.candidates, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestLatestDate(t *testing.T) {
	got, ok := latestDate("06/14/2011", "2019-03-01", "garbage")
	if !ok || got != "2019-03-01" {
		t.Errorf("latestDate = %q/%v, want 2019-03-01/true", got, ok)
	}

	if parsed, ok := ParseDate(got); !ok || !parsed.Equal(time.Date(2019, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("ParseDate(%q) = %v", got, parsed)
	}
}
