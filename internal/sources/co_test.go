package sources

import (
	"reflect"
	"testing"
)

func TestOccupancyBINs(t *testing.T) {
	buildings := []Building{
		{BuildingID: "1", BIN: "1089591"}, // no permit match, still queried
		{BuildingID: "2", BIN: "1000000"}, // borough placeholder, skipped
		{BuildingID: "3", BIN: ""},
		{BuildingID: "4", BIN: "3335555.0"}, // float artifact, normalized
	}
	legacy := []LegacyFiling{
		{BIN: "3335555"}, // duplicate of building 4
		{BIN: "2124684"}, // parcel-tier match, BIN known only from the filing
	}
	modern := []ModernFiling{
		{BIN: "4456789"},
		{BIN: "4456789"},
	}

	got := OccupancyBINs(buildings, legacy, modern)

	want := []string{"1089591", "2124684", "3335555", "4456789"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("OccupancyBINs = %v, want %v", got, want)
	}
}

func TestOccupancyBINsNoSnapshots(t *testing.T) {
	if got := OccupancyBINs(nil, nil, nil); len(got) != 0 {
		t.Errorf("got %v, want none", got)
	}
}
