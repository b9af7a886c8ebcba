package timeline

import (
	"sort"

	"github.com/nyc-housing-linkage/internal/normalize"
	"github.com/nyc-housing-linkage/internal/sources"
)

// Assemble merges event streams into one timeline: BIN ascending, then
// parsed date ascending, unparseable dates last. Building addresses win
// over the "N/A" placeholder the CO extractors emit.
func Assemble(streams ...[]Event) []Event {
	var all []Event
	for _, s := range streams {
		all = append(all, s...)
	}

	// backfill addresses from any event that knows one
	addr := make(map[string]string)
	for _, e := range all {
		if e.Address != "" && e.Address != "N/A" && addr[e.BIN] == "" {
			addr[e.BIN] = e.Address
		}
	}
	for i := range all {
		if (all[i].Address == "" || all[i].Address == "N/A") && addr[all[i].BIN] != "" {
			all[i].Address = addr[all[i].BIN]
		}
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].BIN != all[j].BIN {
			return all[i].BIN < all[j].BIN
		}
		ti, oki := ParseDate(all[i].Date)
		tj, okj := ParseDate(all[j].Date)
		if oki != okj {
			return oki
		}
		if !oki {
			return false
		}
		return ti.Before(tj)
	})
	return all
}

// PartitionByFinancing splits a timeline into the publicly and privately
// financed streams using each building's LL44 classification. Events on
// BINs absent from the snapshot (surfaced by permit records) follow
// neither stream and are returned third.
func PartitionByFinancing(events []Event, buildings []sources.Building) (hpd, private, unclassified []Event) {
	financing := make(map[string]string)
	for _, b := range buildings {
		if bin := normalize.BIN(b.BIN); bin != "" {
			financing[bin] = b.FinancingType
		}
	}

	for _, e := range events {
		switch financing[e.BIN] {
		case sources.FinancingHPD:
			hpd = append(hpd, e)
		case sources.FinancingPrivate:
			private = append(private, e)
		default:
			unclassified = append(unclassified, e)
		}
	}
	return hpd, private, unclassified
}
