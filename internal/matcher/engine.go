package matcher

import (
	"context"
	"log"
	"strings"

	"github.com/nyc-housing-linkage/internal/debug"
	"github.com/nyc-housing-linkage/internal/normalize"
	"github.com/nyc-housing-linkage/internal/quality"
	"github.com/nyc-housing-linkage/internal/sources"
)

// Engine runs the matching cascade over a building snapshot.
type Engine struct {
	Permits PermitSource
	Condos  CondoResolver
	Tracker *quality.Tracker
	Debug   bool
}

// buildingState carries one building through the cascade.
type buildingState struct {
	building *sources.Building
	bin      string // normalized, usable
	bbl      normalize.BBL
	hasBBL   bool
	addr     sources.AddressQuery
	hasAddr  bool

	// condoParcels is the condo-complex expansion of bbl, when resolved.
	condoParcels []normalize.BBL

	legacyTier Tier
	modernTier Tier
}

// Match runs the four-tier cascade. The two permit systems fall back
// independently: a building matched by BIN in one system can still need
// the parcel tier in the other.
func (e *Engine) Match(ctx context.Context, buildings []sources.Building) *Result {
	debug.Header(e.Debug)
	defer debug.Footer(e.Debug)
	stop := debug.Timing(e.Debug, "match cascade")
	defer stop()

	states := make([]*buildingState, 0, len(buildings))
	result := &Result{}

	for i := range buildings {
		st := &buildingState{
			building:   &buildings[i],
			legacyTier: TierNone,
			modernTier: TierNone,
		}
		if bin := normalize.BIN(buildings[i].BIN); normalize.UsableBIN(bin) {
			st.bin = bin
		}
		if bbl, ok := normalize.ParseBBL(buildings[i].BBL); ok {
			st.bbl = bbl
			st.hasBBL = true
			if buildings[i].Borough != "" {
				consistent, _ := normalize.CheckBorough(buildings[i].BBL, buildings[i].Borough)
				if e.Tracker != nil {
					e.Tracker.RecordBoroughCheck(consistent)
				}
				if !consistent {
					log.Printf("  warning: building %s BBL %s suggests %s but data says %s",
						buildings[i].BuildingID, buildings[i].BBL, bbl.Borough, buildings[i].Borough)
				}
			}
		}
		house := normalize.HouseNumber(buildings[i].HouseNumber)
		street := normalize.StreetName(buildings[i].StreetName)
		borough := strings.ToUpper(strings.TrimSpace(buildings[i].Borough))
		if house != "" && street != "" && borough != "" {
			st.addr = sources.AddressQuery{Borough: borough, HouseNumber: house, StreetName: street}
			st.hasAddr = true
		}
		states = append(states, st)
	}

	e.binTier(ctx, states, result)
	e.parcelTier(ctx, states, result)
	e.condoTier(ctx, states, result)
	e.addressTier(ctx, states, result)

	result.Legacy = dedupeLegacy(sources.ReduceToInitialLegacy(result.Legacy))
	result.Modern = dedupeModern(sources.ReduceToInitialModern(result.Modern))

	e.finish(states, result)
	return result
}

// binTier queries both systems for every usable BIN at once.
func (e *Engine) binTier(ctx context.Context, states []*buildingState, result *Result) {
	var bins []string
	seen := make(map[string]bool)
	for _, st := range states {
		if st.bin != "" && !seen[st.bin] {
			seen[st.bin] = true
			bins = append(bins, st.bin)
		}
	}
	if len(bins) == 0 {
		return
	}
	log.Printf("BIN tier: searching %d BINs", len(bins))

	legacy, stats := e.Permits.LegacyByBIN(ctx, bins)
	result.Stats.Batches += stats.Batches
	result.Stats.Failed += stats.Failed
	modern, stats := e.Permits.ModernByBIN(ctx, bins)
	result.Stats.Batches += stats.Batches
	result.Stats.Failed += stats.Failed

	legacyHit := sources.MatchedLegacyBINs(legacy)
	modernHit := sources.MatchedModernBINs(modern)
	for _, st := range states {
		if st.bin == "" {
			continue
		}
		if legacyHit[st.bin] {
			st.legacyTier = TierBIN
		}
		if modernHit[st.bin] {
			st.modernTier = TierBIN
		}
	}

	result.Legacy = append(result.Legacy, legacy...)
	result.Modern = append(result.Modern, modern...)
	log.Printf("BIN tier: %d legacy records, %d modern records", len(legacy), len(modern))
}

// parcelTier falls back to BBL queries per system for buildings that
// system hasn't matched yet.
func (e *Engine) parcelTier(ctx context.Context, states []*buildingState, result *Result) {
	legacyWant, modernWant := parcelFallbackSets(states, nil)
	if len(legacyWant) == 0 && len(modernWant) == 0 {
		return
	}
	log.Printf("BBL tier: %d legacy parcels, %d modern parcels", len(legacyWant), len(modernWant))

	e.queryParcels(ctx, states, result, TierBBL, legacyWant, modernWant, nil)
}

// condoTier expands still-unmatched BBLs into their condo complexes and
// retries the parcel queries on every related parcel.
func (e *Engine) condoTier(ctx context.Context, states []*buildingState, result *Result) {
	if e.Condos == nil {
		return
	}

	// related parcel set per building, only for buildings still needing one
	related := make(map[*buildingState][]normalize.BBL)
	for _, st := range states {
		if !st.hasBBL || (st.legacyTier != TierNone && st.modernTier != TierNone) {
			continue
		}
		var parcels []normalize.BBL
		for _, raw := range e.Condos.RelatedParcels(ctx, st.bbl.String()) {
			if p, ok := normalize.ParseBBL(raw); ok {
				parcels = append(parcels, p)
			}
		}
		if len(parcels) > 0 {
			related[st] = parcels
			st.condoParcels = parcels
		}
	}
	if len(related) == 0 {
		return
	}
	log.Printf("Condo tier: %d buildings with condo-related parcels", len(related))

	legacyWant, modernWant := parcelFallbackSets(states, related)
	e.queryParcels(ctx, states, result, TierCondo, legacyWant, modernWant, related)
}

// queryParcels runs the parcel queries for one tier and attributes hits
// back to buildings by parcel key.
func (e *Engine) queryParcels(ctx context.Context, states []*buildingState, result *Result, tier Tier,
	legacyWant, modernWant []normalize.BBL, related map[*buildingState][]normalize.BBL) {

	var legacy []sources.LegacyFiling
	var modern []sources.ModernFiling
	if len(legacyWant) > 0 {
		rows, stats := e.Permits.LegacyByParcel(ctx, legacyWant)
		legacy = rows
		result.Stats.Batches += stats.Batches
		result.Stats.Failed += stats.Failed
	}
	if len(modernWant) > 0 {
		rows, stats := e.Permits.ModernByParcel(ctx, modernWant)
		modern = rows
		result.Stats.Batches += stats.Batches
		result.Stats.Failed += stats.Failed
	}
	if len(legacy) == 0 && len(modern) == 0 {
		return
	}

	legacyHit := make(map[string]bool)
	for _, f := range legacy {
		legacyHit[parcelKey(f.Borough, f.Block, f.Lot)] = true
	}
	modernHit := make(map[string]bool)
	for _, f := range modern {
		modernHit[parcelKey(f.Borough, f.Block, f.Lot)] = true
	}

	for _, st := range states {
		parcels := st.ownParcels(related)
		for _, p := range parcels {
			key := parcelKey(p.Borough, p.Block, p.Lot)
			if st.legacyTier == TierNone && legacyHit[key] {
				st.legacyTier = tier
			}
			if st.modernTier == TierNone && modernHit[key] {
				st.modernTier = tier
			}
		}
	}

	result.Legacy = append(result.Legacy, legacy...)
	result.Modern = append(result.Modern, modern...)
	log.Printf("%s tier: %d legacy records, %d modern records", tier, len(legacy), len(modern))
}

// addressTier is the last resort: per-address searches for buildings
// neither system has matched by any identifier.
func (e *Engine) addressTier(ctx context.Context, states []*buildingState, result *Result) {
	for _, st := range states {
		if !st.hasAddr {
			continue
		}
		if st.legacyTier != TierNone && st.modernTier != TierNone {
			continue
		}
		if st.legacyTier == TierNone {
			rows, stats := e.Permits.LegacyByAddress(ctx, []sources.AddressQuery{st.addr})
			result.Stats.Batches += stats.Batches
			result.Stats.Failed += stats.Failed
			if len(rows) > 0 {
				st.legacyTier = TierAddress
				result.Legacy = append(result.Legacy, rows...)
			}
		}
		if st.modernTier == TierNone {
			rows, stats := e.Permits.ModernByAddress(ctx, []sources.AddressQuery{st.addr})
			result.Stats.Batches += stats.Batches
			result.Stats.Failed += stats.Failed
			if len(rows) > 0 {
				st.modernTier = TierAddress
				result.Modern = append(result.Modern, rows...)
			}
		}
	}
}

// finish builds the provenance records and feeds the quality ledger.
func (e *Engine) finish(states []*buildingState, result *Result) {
	legacyCounts, modernCounts := countIndexes(result, states)

	for _, st := range states {
		m := BuildingMatch{
			BuildingID: st.building.BuildingID,
			ProjectID:  st.building.ProjectID,
			BIN:        st.bin,
			LegacyTier: st.legacyTier,
			ModernTier: st.modernTier,
		}
		if st.hasBBL {
			m.BBL = st.bbl.String()
		}
		if st.legacyTier != TierNone {
			m.LegacyCount = legacyCounts[st]
		}
		if st.modernTier != TierNone {
			m.ModernCount = modernCounts[st]
		}
		if st.bin == "" && !st.hasBBL && !st.hasAddr {
			m.Unmatchable = true
		}

		if e.Tracker != nil {
			if m.Unmatchable {
				e.Tracker.RecordUnmatchable()
			} else {
				e.Tracker.RecordMatch(string(m.Tier()))
			}
		}
		result.Matches = append(result.Matches, m)
	}

	if e.Tracker != nil {
		for _, f := range result.Legacy {
			e.Tracker.RecordPermit(f.JobType, f.Borough)
		}
		for _, f := range result.Modern {
			e.Tracker.RecordPermit(f.JobType, f.Borough)
		}
	}
}

// countIndexes attributes each final filing to at most one building,
// preferring BIN identity over parcel identity over address.
func countIndexes(result *Result, states []*buildingState) (map[*buildingState]int, map[*buildingState]int) {
	byBIN := make(map[string]*buildingState)
	byParcel := make(map[string]*buildingState)
	byAddr := make(map[string]*buildingState)
	for _, st := range states {
		if st.bin != "" && byBIN[st.bin] == nil {
			byBIN[st.bin] = st
		}
		if st.hasBBL {
			key := parcelKey(st.bbl.Borough, st.bbl.Block, st.bbl.Lot)
			if byParcel[key] == nil {
				byParcel[key] = st
			}
		}
		for _, p := range st.condoParcels {
			key := parcelKey(p.Borough, p.Block, p.Lot)
			if byParcel[key] == nil {
				byParcel[key] = st
			}
		}
		if st.hasAddr {
			key := addressKey(st.addr)
			if byAddr[key] == nil {
				byAddr[key] = st
			}
		}
	}

	legacyCounts := make(map[*buildingState]int)
	for _, f := range result.Legacy {
		if st := ownerOf(byBIN, byParcel, byAddr, f.BIN, f.Borough, f.Block, f.Lot, f.HouseNumber, f.StreetName); st != nil {
			legacyCounts[st]++
		}
	}
	modernCounts := make(map[*buildingState]int)
	for _, f := range result.Modern {
		if st := ownerOf(byBIN, byParcel, byAddr, f.BIN, f.Borough, f.Block, f.Lot, f.HouseNumber, f.StreetName); st != nil {
			modernCounts[st]++
		}
	}
	return legacyCounts, modernCounts
}

func ownerOf(byBIN, byParcel, byAddr map[string]*buildingState, bin, borough, block, lot, house, street string) *buildingState {
	if st := byBIN[normalize.BIN(bin)]; st != nil {
		return st
	}
	if st := byParcel[parcelKey(borough, block, lot)]; st != nil {
		return st
	}
	return byAddr[addressKey(sources.AddressQuery{
		Borough:     strings.ToUpper(strings.TrimSpace(borough)),
		HouseNumber: normalize.HouseNumber(house),
		StreetName:  normalize.StreetName(street),
	})]
}

// ownParcels returns the parcels this building contributes to a tier:
// its own BBL, or its condo-related set when one was resolved.
func (st *buildingState) ownParcels(related map[*buildingState][]normalize.BBL) []normalize.BBL {
	if related != nil {
		return related[st]
	}
	if st.hasBBL {
		return []normalize.BBL{st.bbl}
	}
	return nil
}

// parcelFallbackSets collects the distinct parcels each system still
// needs to try. With a related map the condo expansions are used instead
// of the buildings' own BBLs.
func parcelFallbackSets(states []*buildingState, related map[*buildingState][]normalize.BBL) (legacy, modern []normalize.BBL) {
	seenLegacy := make(map[string]bool)
	seenModern := make(map[string]bool)
	for _, st := range states {
		parcels := st.ownParcels(related)
		for _, p := range parcels {
			key := p.String()
			if st.legacyTier == TierNone && !seenLegacy[key] {
				seenLegacy[key] = true
				legacy = append(legacy, p)
			}
			if st.modernTier == TierNone && !seenModern[key] {
				seenModern[key] = true
				modern = append(modern, p)
			}
		}
	}
	return legacy, modern
}

// parcelKey normalizes the padding differences between the two systems
// so records and buildings compare on equal terms.
func parcelKey(borough, block, lot string) string {
	return strings.ToUpper(strings.TrimSpace(borough)) + "/" + trimZeros(block) + "/" + trimZeros(lot)
}

func addressKey(a sources.AddressQuery) string {
	return a.Borough + "/" + a.HouseNumber + "/" + a.StreetName
}

func trimZeros(s string) string {
	s = strings.TrimLeft(strings.TrimSpace(s), "0")
	if s == "" {
		return "0"
	}
	return s
}

func dedupeLegacy(filings []sources.LegacyFiling) []sources.LegacyFiling {
	seen := make(map[string]bool)
	var out []sources.LegacyFiling
	for _, f := range filings {
		key := f.Job + "/" + f.Doc + "/" + f.BIN
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, f)
	}
	return out
}

func dedupeModern(filings []sources.ModernFiling) []sources.ModernFiling {
	seen := make(map[string]bool)
	var out []sources.ModernFiling
	for _, f := range filings {
		key := f.JobFilingNumber + "/" + f.BIN
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, f)
	}
	return out
}
