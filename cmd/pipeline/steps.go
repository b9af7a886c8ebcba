package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"github.com/nyc-housing-linkage/internal/audit"
	"github.com/nyc-housing-linkage/internal/db"
	"github.com/nyc-housing-linkage/internal/debug"
	"github.com/nyc-housing-linkage/internal/matcher"
	"github.com/nyc-housing-linkage/internal/opendata"
	"github.com/nyc-housing-linkage/internal/quality"
	"github.com/nyc-housing-linkage/internal/sources"
	"github.com/nyc-housing-linkage/internal/store"
	"github.com/nyc-housing-linkage/internal/timeline"
)

// Per-source request pacing, used unless OPENDATA_SLEEP overrides it.
// The occupancy dataset throttles harder than the permit datasets.
const (
	snapshotSleep = 200 * time.Millisecond
	permitSleep   = 100 * time.Millisecond
	coSleep       = 500 * time.Millisecond
)

// pipeline carries the objects every step shares: the snapshot store and
// one quality tracker per invocation.
type pipeline struct {
	store   *store.Store
	tracker *quality.Tracker
	debug   bool
}

func newPipeline(dataDir string, localDebug bool) *pipeline {
	return &pipeline{
		store:   store.New(dataDir),
		tracker: quality.NewTracker(),
		debug:   localDebug,
	}
}

// client builds an open data client, applying the step's default pacing
// when the environment does not pin one.
func (p *pipeline) client(defaultSleep time.Duration) *opendata.Client {
	cfg := opendata.ConfigFromEnv()
	if os.Getenv("OPENDATA_SLEEP") == "" {
		cfg.Sleep = defaultSleep
	}
	return opendata.NewClient(cfg)
}

// fetchStep downloads the HPD building snapshot, enriches blank building
// dates from the project dataset, and writes the raw snapshot. A fresh
// snapshot is reused unless force is set.
func (p *pipeline) fetchStep(ctx context.Context, force bool, maxAge time.Duration) error {
	path := p.store.RawPath(store.BuildingsFile)
	if !force && p.store.IsFresh(path, maxAge) {
		log.Printf("building snapshot is fresh (< %s old), skipping fetch: %s", maxAge, path)
		buildings, err := store.LoadBuildings(path)
		if err == nil {
			p.tracker.RecordStage("fetch (cached)", len(buildings), path)
		}
		return nil
	}

	client := p.client(snapshotSleep)
	src := &sources.HPDSource{Client: client, Debug: p.debug}

	buildings, err := src.FetchBuildings(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch HPD buildings: %w", err)
	}
	log.Printf("fetched %d HPD buildings", len(buildings))

	// Project dates fill in for buildings the building dataset leaves
	// blank. Losing them degrades the timeline, not the match.
	projects, err := src.FetchProjects(ctx)
	if err != nil {
		log.Printf("warning: failed to fetch HPD projects, continuing without date enrichment: %v", err)
	} else {
		filled := sources.EnrichProjectDates(buildings, projects)
		log.Printf("enriched %d blank building dates from %d projects", filled, len(projects))
	}

	if backup, err := p.store.Backup(path); err != nil {
		return err
	} else if backup != "" {
		log.Printf("previous snapshot moved to %s", backup)
	}
	if err := store.SaveBuildings(path, buildings); err != nil {
		return err
	}

	stats := client.Stats()
	p.tracker.RecordAPIActivity(stats.Calls, stats.Errors)
	p.tracker.RecordStage("fetch", len(buildings), path)
	log.Printf("saved %d buildings to %s", len(buildings), path)
	return nil
}

// classifyStep labels every building's financing from the capital funding
// awards dataset and writes the classified snapshot.
func (p *pipeline) classifyStep(ctx context.Context) error {
	buildings, err := store.LoadBuildings(p.store.RawPath(store.BuildingsFile))
	if err != nil {
		return fmt.Errorf("building snapshot required, run fetch first: %w", err)
	}

	seen := make(map[string]bool)
	var projectIDs []string
	for _, b := range buildings {
		if b.ProjectID != "" && !seen[b.ProjectID] {
			seen[b.ProjectID] = true
			projectIDs = append(projectIDs, b.ProjectID)
		}
	}
	sort.Strings(projectIDs)

	client := p.client(snapshotSleep)
	funding := &sources.FundingSource{Client: client, Debug: p.debug}
	funded, batches := funding.FundedProjectIDs(ctx, projectIDs)
	if batches.Failed > 0 {
		log.Printf("warning: %d of %d funding award batches failed", batches.Failed, batches.Batches)
	}

	counts := sources.ClassifyFinancing(buildings, funded)
	path := p.store.ProcessedPath(store.ClassifiedFile)
	if err := store.SaveBuildings(path, buildings); err != nil {
		return err
	}

	stats := client.Stats()
	p.tracker.RecordAPIActivity(stats.Calls, stats.Errors)
	p.tracker.RecordStage("classify", len(buildings), path)

	fmt.Printf("\n=== Financing Classification ===\n")
	fmt.Printf("Funded projects found: %d of %d\n", len(funded), len(projectIDs))
	for _, label := range []string{sources.FinancingHPD, sources.FinancingPrivate, sources.FinancingUnknown} {
		fmt.Printf("%-20s %d\n", label+":", counts[label])
	}
	return nil
}

// matchStep runs the permit-matching cascade over the classified snapshot
// and writes the permit and provenance snapshots. Results are also audited
// to PostgreSQL when a database is configured.
func (p *pipeline) matchStep(ctx context.Context) error {
	buildings, from, err := p.loadClassifiedOrRaw()
	if err != nil {
		return err
	}
	log.Printf("matching %d buildings from %s", len(buildings), from)

	p.tracker.AnalyzeBuildings(buildings)

	client := p.client(permitSleep)
	engine := &matcher.Engine{
		Permits: &sources.PermitSource{Client: client, Debug: p.debug},
		Condos:  &sources.CondoResolver{Client: client, Debug: p.debug},
		Tracker: p.tracker,
		Debug:   p.debug,
	}
	result := engine.Match(ctx, buildings)
	if result.Stats.Failed > 0 {
		log.Printf("warning: %d of %d permit query batches failed", result.Stats.Failed, result.Stats.Batches)
	}

	stats := client.Stats()
	p.tracker.RecordAPIActivity(stats.Calls, stats.Errors)

	permitPath := p.store.RawPath(store.PermitsFile)
	if err := store.SavePermits(permitPath, result.Legacy, result.Modern); err != nil {
		return err
	}
	matchPath := p.store.ProcessedPath(store.MatchesFile)
	if err := store.SaveMatches(matchPath, result.Matches); err != nil {
		return err
	}
	p.tracker.RecordStage("match", len(result.Legacy)+len(result.Modern), permitPath)

	p.printMatchSummary(result)
	p.auditResult(result, len(buildings))
	return nil
}

func (p *pipeline) printMatchSummary(result *matcher.Result) {
	byTier := make(map[matcher.Tier]int)
	unmatchable, unmatched := 0, 0
	for _, m := range result.Matches {
		switch {
		case m.Unmatchable:
			unmatchable++
		case m.Matched():
			byTier[m.Tier()]++
		default:
			unmatched++
		}
	}

	fmt.Printf("\n=== Match Results ===\n")
	fmt.Printf("Buildings:          %d\n", len(result.Matches))
	for _, tier := range []matcher.Tier{matcher.TierBIN, matcher.TierBBL, matcher.TierCondo, matcher.TierAddress} {
		fmt.Printf("Matched via %-8s %d\n", string(tier)+":", byTier[tier])
	}
	fmt.Printf("No permits found:   %d\n", unmatched)
	fmt.Printf("Unmatchable:        %d\n", unmatchable)
	fmt.Printf("Legacy filings:     %d\n", len(result.Legacy))
	fmt.Printf("DOB NOW filings:    %d\n", len(result.Modern))
}

// auditResult persists the run to PostgreSQL when PGDATABASE is set.
// The pipeline works from CSV snapshots alone; the database is an audit
// trail, not a dependency.
func (p *pipeline) auditResult(result *matcher.Result, buildings int) {
	if !db.IsConfigured() {
		return
	}
	conn, err := db.NewConnection()
	if err != nil {
		log.Printf("warning: audit database unavailable: %v", err)
		return
	}
	defer conn.Close()

	tracker := audit.NewTracker(conn.DB)
	if err := tracker.EnsureSchema(); err != nil {
		log.Printf("warning: failed to prepare audit schema: %v", err)
		return
	}
	if err := tracker.StartRun(p.tracker.RunID, buildings); err != nil {
		log.Printf("warning: failed to start audit run: %v", err)
		return
	}
	if err := tracker.RecordResult(p.debug, p.tracker.RunID, result); err != nil {
		log.Printf("warning: failed to record audit results: %v", err)
		return
	}

	tiers, unmatchable, err := tracker.RunStatistics(p.tracker.RunID)
	if err != nil {
		log.Printf("warning: failed to read audit statistics: %v", err)
		return
	}
	fmt.Printf("\n=== Audit Run %s ===\n", p.tracker.RunID)
	for _, tc := range tiers {
		fmt.Printf("%-10s %d\n", tc.Tier+":", tc.Count)
	}
	fmt.Printf("%-10s %d\n", "Unmatchable:", unmatchable)
}

// coStep looks up certificates of occupancy for every usable BIN the
// building and permit snapshots know and writes the occupancy snapshot.
// A building's own BIN qualifies even when no permit matched it; its
// certificates are still part of its timeline.
func (p *pipeline) coStep(ctx context.Context) error {
	legacy, modern, err := store.LoadPermits(p.store.RawPath(store.PermitsFile))
	if err != nil {
		return fmt.Errorf("permit snapshot required, run match first: %w", err)
	}
	buildings, _, err := p.loadClassifiedOrRaw()
	if err != nil {
		log.Printf("warning: no building snapshot (%v), using permit BINs only", err)
	}

	bins := sources.OccupancyBINs(buildings, legacy, modern)
	if len(bins) == 0 {
		log.Printf("no usable BINs in building or permit snapshots, nothing to look up")
		return nil
	}
	log.Printf("querying certificates of occupancy for %d BINs", len(bins))

	client := p.client(coSleep)
	occ := &sources.OccupancySource{Client: client, Debug: p.debug}
	modernCOs, mStats := occ.ModernByBIN(ctx, bins)
	legacyCOs, lStats := occ.LegacyByBIN(ctx, bins)
	if failed := mStats.Failed + lStats.Failed; failed > 0 {
		log.Printf("warning: %d of %d occupancy query batches failed", failed, mStats.Batches+lStats.Batches)
	}

	path := p.store.RawPath(store.COFile)
	if err := store.SaveCOs(path, legacyCOs, modernCOs); err != nil {
		return err
	}

	stats := client.Stats()
	p.tracker.RecordAPIActivity(stats.Calls, stats.Errors)
	p.tracker.RecordStage("co", len(legacyCOs)+len(modernCOs), path)
	log.Printf("saved %d legacy and %d DOB NOW certificates to %s", len(legacyCOs), len(modernCOs), path)
	return nil
}

// timelineStep joins every snapshot into per-building event timelines and
// writes one timeline per financing class. The occupancy snapshot is
// optional; without it the timelines simply end at permit approval.
func (p *pipeline) timelineStep() error {
	buildings, from, err := p.loadClassifiedOrRaw()
	if err != nil {
		return err
	}
	legacy, modern, err := store.LoadPermits(p.store.RawPath(store.PermitsFile))
	if err != nil {
		return fmt.Errorf("permit snapshot required, run match first: %w", err)
	}

	streams := [][]timeline.Event{
		timeline.FromBuildings(buildings),
		timeline.FromLegacyFilings(legacy),
		timeline.FromModernFilings(modern),
	}
	legacyCOs, modernCOs, err := store.LoadCOs(p.store.RawPath(store.COFile))
	if err != nil {
		log.Printf("no occupancy snapshot (%v), timelines will not include certificates", err)
	} else {
		streams = append(streams, timeline.FromModernCOs(modernCOs), timeline.FromLegacyCOs(legacyCOs))
	}

	events := timeline.Assemble(streams...)
	hpd, private, unclassified := timeline.PartitionByFinancing(events, buildings)

	hpdPath := p.store.ProcessedPath(store.TimelineHPD)
	if err := store.SaveTimeline(hpdPath, hpd); err != nil {
		return err
	}
	privPath := p.store.ProcessedPath(store.TimelinePriv)
	if err := store.SaveTimeline(privPath, private); err != nil {
		return err
	}
	p.tracker.RecordStage("timeline", len(events), from)

	fmt.Printf("\n=== Timelines ===\n")
	fmt.Printf("HPD financed events:       %d -> %s\n", len(hpd), hpdPath)
	fmt.Printf("Privately financed events: %d -> %s\n", len(private), privPath)
	if len(unclassified) > 0 {
		fmt.Printf("Events with no financing classification (dropped): %d\n", len(unclassified))
	}
	return nil
}

// reportStep analyzes whatever snapshots exist and writes the quality
// report. Steps that already ran in this invocation have fed the tracker;
// standalone report runs rebuild the building metrics from disk.
func (p *pipeline) reportStep(reportsDir string) error {
	if p.tracker.TotalRecords == 0 {
		buildings, from, err := p.loadClassifiedOrRaw()
		if err != nil {
			return err
		}
		p.tracker.AnalyzeBuildings(buildings)
		p.tracker.RecordStage("analyze", len(buildings), from)

		if legacy, modern, err := store.LoadPermits(p.store.RawPath(store.PermitsFile)); err == nil {
			for _, f := range legacy {
				p.tracker.RecordPermit(f.JobType, f.Borough)
			}
			for _, f := range modern {
				p.tracker.RecordPermit(f.JobType, f.Borough)
			}
		}
	}

	p.tracker.EndProcessing()
	path, err := p.tracker.SaveReport(reportsDir, "data_quality_report")
	if err != nil {
		return err
	}
	fmt.Print(p.tracker.Report())
	fmt.Printf("\nReport saved to %s\n", path)
	return nil
}

// runAll executes the whole pipeline in order, then writes the report.
func (p *pipeline) runAll(ctx context.Context, force bool, maxAge time.Duration, reportsDir string) error {
	p.tracker.StartProcessing()

	steps := []struct {
		name string
		fn   func() error
	}{
		{"fetch", func() error { return p.fetchStep(ctx, force, maxAge) }},
		{"classify", func() error { return p.classifyStep(ctx) }},
		{"match", func() error { return p.matchStep(ctx) }},
		{"co", func() error { return p.coStep(ctx) }},
		{"timeline", p.timelineStep},
	}
	for _, step := range steps {
		stop := debug.Timing(p.debug, step.name)
		err := step.fn()
		stop()
		if err != nil {
			return fmt.Errorf("%s step failed: %w", step.name, err)
		}
	}

	return p.reportStep(reportsDir)
}

// loadClassifiedOrRaw prefers the financing-classified snapshot and falls
// back to the raw fetch, so match can run before classify if needed.
func (p *pipeline) loadClassifiedOrRaw() ([]sources.Building, string, error) {
	classified := p.store.ProcessedPath(store.ClassifiedFile)
	if buildings, err := store.LoadBuildings(classified); err == nil {
		return buildings, classified, nil
	}
	raw := p.store.RawPath(store.BuildingsFile)
	buildings, err := store.LoadBuildings(raw)
	if err != nil {
		return nil, "", fmt.Errorf("no building snapshot found, run fetch first: %w", err)
	}
	return buildings, raw, nil
}
