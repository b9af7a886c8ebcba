// Package matcher links HPD buildings to DOB permit filings through a
// cascade of identifier tiers: BIN, then parcel (BBL), then condo-related
// parcels, then structured address. The first tier that produces records
// for a building wins; later tiers only run for buildings still empty-handed.
package matcher

import (
	"context"

	"github.com/nyc-housing-linkage/internal/normalize"
	"github.com/nyc-housing-linkage/internal/sources"
)

// Tier identifies which cascade stage produced a building's match.
type Tier string

const (
	TierBIN     Tier = "BIN"
	TierBBL     Tier = "BBL"
	TierCondo   Tier = "Condo"
	TierAddress Tier = "Address"
	TierNone    Tier = "None"
)

var tierRank = map[Tier]int{
	TierBIN:     0,
	TierBBL:     1,
	TierCondo:   2,
	TierAddress: 3,
	TierNone:    4,
}

// betterTier returns the earlier of two cascade tiers.
func betterTier(a, b Tier) Tier {
	if tierRank[a] <= tierRank[b] {
		return a
	}
	return b
}

// PermitSource is the slice of sources.PermitSource the cascade needs.
type PermitSource interface {
	LegacyByBIN(ctx context.Context, bins []string) ([]sources.LegacyFiling, sources.BatchStats)
	ModernByBIN(ctx context.Context, bins []string) ([]sources.ModernFiling, sources.BatchStats)
	LegacyByParcel(ctx context.Context, parcels []normalize.BBL) ([]sources.LegacyFiling, sources.BatchStats)
	ModernByParcel(ctx context.Context, parcels []normalize.BBL) ([]sources.ModernFiling, sources.BatchStats)
	LegacyByAddress(ctx context.Context, addrs []sources.AddressQuery) ([]sources.LegacyFiling, sources.BatchStats)
	ModernByAddress(ctx context.Context, addrs []sources.AddressQuery) ([]sources.ModernFiling, sources.BatchStats)
}

// CondoResolver expands a BBL into its condo complex's parcel set.
type CondoResolver interface {
	RelatedParcels(ctx context.Context, bbl string) []string
}

// BuildingMatch is the per-building provenance record. The two permit
// systems cascade independently, so each carries its own tier.
type BuildingMatch struct {
	BuildingID  string
	ProjectID   string
	BIN         string
	BBL         string
	LegacyTier  Tier
	ModernTier  Tier
	LegacyCount int
	ModernCount int
	// Unmatchable means no usable identifier existed at all; a terminal
	// classification, distinct from "searched and found nothing".
	Unmatchable bool
}

// Tier returns the building's best tier across the two systems.
func (m BuildingMatch) Tier() Tier {
	return betterTier(m.LegacyTier, m.ModernTier)
}

// Matched reports whether any permit system produced records.
func (m BuildingMatch) Matched() bool {
	return m.LegacyTier != TierNone || m.ModernTier != TierNone
}

// Result is the cascade output: the combined filing sets, reduced to
// initial documents and deduplicated, plus per-building provenance.
type Result struct {
	Legacy  []sources.LegacyFiling
	Modern  []sources.ModernFiling
	Matches []BuildingMatch
	Stats   sources.BatchStats
}

// MatchedBINs returns every distinct BIN known for matched buildings:
// the buildings' own BINs plus BINs carried on the matched filings.
// Parcel and address tier matches surface BINs this way, which is what
// makes the later occupancy lookup possible for them.
func (r *Result) MatchedBINs() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(raw string) {
		bin := normalize.BIN(raw)
		if bin == "" || seen[bin] || !normalize.UsableBIN(bin) {
			return
		}
		seen[bin] = true
		out = append(out, bin)
	}
	for _, m := range r.Matches {
		if m.Matched() {
			add(m.BIN)
		}
	}
	for _, f := range r.Legacy {
		add(f.BIN)
	}
	for _, f := range r.Modern {
		add(f.BIN)
	}
	return out
}
