package timeline

import (
	"testing"

	"github.com/nyc-housing-linkage/internal/sources"
)

func TestAssembleOrdering(t *testing.T) {
	hpd := []Event{
		{BIN: "2000001", Date: "2015-01-01", Event: "HPD financing submitted", Address: "655 MORRIS AVENUE"},
	}
	dob := []Event{
		{BIN: "1000001", Date: "06/14/2011", Event: "DOB NB Application submitted"},
		{BIN: "1000001", Date: "not a date", Event: "DOB NB Application approved"},
		{BIN: "1000001", Date: "01/02/2010", Event: "DOB NB Application submitted"},
	}
	co := []Event{
		{BIN: "2000001", Date: "2017-06-30", Event: "Certificate of Occupancy issued (Final)", Address: "N/A"},
	}

	got := Assemble(hpd, dob, co)

	wantOrder := []string{
		"01/02/2010", // BIN 1000001 earliest first
		"06/14/2011",
		"not a date", // unparseable sorts last within its BIN
		"2015-01-01", // then BIN 2000001
		"2017-06-30",
	}
	if len(got) != len(wantOrder) {
		t.Fatalf("got %d events, want %d", len(got), len(wantOrder))
	}
	for i, want := range wantOrder {
		if got[i].Date != want {
			t.Errorf("event[%d].Date = %q, want %q", i, got[i].Date, want)
		}
	}

	// CO events inherit the building's address
	if got[4].Address != "655 MORRIS AVENUE" {
		t.Errorf("CO address = %q, want backfilled building address", got[4].Address)
	}
}

func TestPartitionByFinancing(t *testing.T) {
	buildings := []sources.Building{
		{BIN: "1000001", FinancingType: sources.FinancingHPD},
		{BIN: "2000001", FinancingType: sources.FinancingPrivate},
	}
	events := []Event{
		{BIN: "1000001", Event: "HPD financing submitted"},
		{BIN: "2000001", Event: "DOB NB Application submitted"},
		{BIN: "9999999", Event: "Certificate of Occupancy issued (Final)"},
	}

	hpd, private, unclassified := PartitionByFinancing(events, buildings)

	if len(hpd) != 1 || hpd[0].BIN != "1000001" {
		t.Errorf("hpd = %+v", hpd)
	}
	if len(private) != 1 || private[0].BIN != "2000001" {
		t.Errorf("private = %+v", private)
	}
	if len(unclassified) != 1 || unclassified[0].BIN != "9999999" {
		t.Errorf("unclassified = %+v", unclassified)
	}
}
