// Package analyzer builds drift, timeline and comparison reports on top of
// the snapshot store and the reconciler. It persists nothing.
package analyzer

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pratik-mahalle/snapdrift/internal/domain/change"
	"github.com/pratik-mahalle/snapdrift/internal/domain/scan"
	"github.com/pratik-mahalle/snapdrift/internal/pkg/logger"
	"github.com/pratik-mahalle/snapdrift/internal/reconciler"
)

const (
	mostUnstableLimit    = 10
	recentChangesLimit   = 100
	recentChangesShown   = 20
	summaryListLimit     = 10
	driftLoadConcurrency = 4
)

// Analyzer produces historical reports
type Analyzer struct {
	scans      scan.Repository
	changes    change.Repository
	reconciler *reconciler.Reconciler
	logger     *logger.Logger
	now        func() time.Time
}

// New creates an analyzer
func New(scans scan.Repository, changes change.Repository, rec *reconciler.Reconciler, log *logger.Logger) *Analyzer {
	return &Analyzer{
		scans:      scans,
		changes:    changes,
		reconciler: rec,
		logger:     log,
		now:        time.Now,
	}
}

// AnalyzeDrift compares every scan of contextName within the last days
// against a baseline: baselineScanID if given, otherwise the oldest scan in
// the window. Fewer than two scans yield a report flagged InsufficientData.
func (a *Analyzer) AnalyzeDrift(ctx context.Context, contextName string, days int, baselineScanID *int64) (*DriftReport, error) {
	end := a.now().UTC()
	start := end.AddDate(0, 0, -days)

	var baseline *scan.Scan
	if baselineScanID != nil {
		s, err := a.scans.GetByID(ctx, *baselineScanID)
		if err != nil {
			return nil, err
		}
		baseline = s
	}

	window, err := a.scans.GetScansInRange(ctx, start, end, contextFilter(contextName))
	if err != nil {
		return nil, err
	}
	sortChronological(window)

	report := &DriftReport{
		Context:            contextName,
		PeriodDays:         days,
		AvailableScans:     len(window),
		Points:             []DriftPoint{},
		ResourcesWithDrift: []scan.ResourceKey{},
		MostUnstable:       []UnstableResource{},
		StabilityScore:     100,
	}

	if len(window) < 2 {
		report.InsufficientData = true
		report.Message = fmt.Sprintf("drift analysis needs at least 2 scans, found %d in the last %d days", len(window), days)
		if baseline != nil {
			ref := refOf(baseline)
			report.Baseline = &ref
		}
		return report, nil
	}

	if baseline == nil {
		baseline = window[0]
	}
	ref := refOf(baseline)
	report.Baseline = &ref

	var subsequent []*scan.Scan
	for _, s := range window {
		if s.ID != baseline.ID {
			subsequent = append(subsequent, s)
		}
	}

	points, err := a.driftPoints(ctx, baseline.ID, subsequent)
	if err != nil {
		return nil, err
	}
	report.Points = points
	report.TotalDriftEvents = len(points)

	drifted := map[scan.ResourceKey]bool{}
	modified := map[scan.ResourceKey]int{}
	for _, p := range points {
		for _, k := range p.Added {
			drifted[k] = true
		}
		for _, k := range p.Removed {
			drifted[k] = true
		}
		for _, k := range p.Modified {
			drifted[k] = true
			modified[k]++
		}
	}

	for k := range drifted {
		report.ResourcesWithDrift = append(report.ResourcesWithDrift, k)
	}
	sortKeys(report.ResourcesWithDrift)
	report.MostUnstable = mostUnstable(modified, mostUnstableLimit)

	if len(points) > 0 {
		last := points[len(points)-1]
		report.StabilityScore = ComputeStabilityScore(last.Score, subsequent[len(subsequent)-1].TotalResources)
	}

	a.logger.WithFields(map[string]interface{}{
		"context":      contextName,
		"baseline_id":  baseline.ID,
		"drift_points": len(points),
		"drifted":      len(report.ResourcesWithDrift),
	}).Info("Drift analysis complete")

	return report, nil
}

// driftPoints diffs each scan against the baseline, loading resources
// concurrently. Points keep the order of scans.
func (a *Analyzer) driftPoints(ctx context.Context, baselineID int64, scans []*scan.Scan) ([]DriftPoint, error) {
	base, err := a.scans.GetResourcesForScan(ctx, baselineID)
	if err != nil {
		return nil, err
	}

	points := make([]DriftPoint, len(scans))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(driftLoadConcurrency)

	for i, s := range scans {
		g.Go(func() error {
			current, err := a.scans.GetResourcesForScan(gctx, s.ID)
			if err != nil {
				return err
			}
			result := reconciler.Diff(base, current)

			p := DriftPoint{
				ScanID:    s.ID,
				Timestamp: s.Timestamp,
				Added:     make([]scan.ResourceKey, 0, len(result.Created)),
				Removed:   make([]scan.ResourceKey, 0, len(result.Deleted)),
				Modified:  make([]scan.ResourceKey, 0, len(result.Updated)),
			}
			for _, r := range result.Created {
				p.Added = append(p.Added, r.ResourceKey)
			}
			for _, r := range result.Deleted {
				p.Removed = append(p.Removed, r.ResourceKey)
			}
			for _, pair := range result.Updated {
				p.Modified = append(p.Modified, pair.New.ResourceKey)
			}
			p.Score = result.ChangeCount()

			points[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return points, nil
}

// ResourceTimeline lists every observation of key within the last days,
// oldest first, flagging entries whose hash differs from the previous one.
func (a *Analyzer) ResourceTimeline(ctx context.Context, key scan.ResourceKey, days int) (*Timeline, error) {
	since := a.now().UTC().AddDate(0, 0, -days)

	history, err := a.scans.FindResourceHistory(ctx, key, since)
	if err != nil {
		return nil, err
	}

	timeline := &Timeline{
		Key:        key,
		PeriodDays: days,
		Entries:    make([]TimelineEntry, 0, len(history)),
	}

	versions := map[string]bool{}
	for i, h := range history {
		entry := TimelineEntry{
			ScanID:    h.ScanID,
			Timestamp: h.ScanTimestamp,
			Context:   h.Context,
			Hash:      h.Resource.Hash,
		}
		if i > 0 {
			changed := h.Resource.Hash != history[i-1].Resource.Hash
			entry.Changed = &changed
			if changed {
				timeline.Summary.TotalChanges++
			}
		}
		versions[h.Resource.Hash] = true
		timeline.Entries = append(timeline.Entries, entry)
	}

	timeline.Summary.Observations = len(history)
	timeline.Summary.TotalVersions = len(versions)
	if len(history) > 0 {
		first := history[0].ScanTimestamp
		last := history[len(history)-1].ScanTimestamp
		timeline.Summary.FirstSeen = &first
		timeline.Summary.LastSeen = &last
	}

	return timeline, nil
}

// ComputeStabilityScore is 100 minus the percentage of changed resources,
// clamped to [0, 100] and rounded to two decimals. An empty cluster is
// fully stable.
func ComputeStabilityScore(changeCount, totalResources int) float64 {
	if totalResources <= 0 {
		return 100.0
	}
	ratio := 100 * float64(changeCount) / float64(totalResources)
	score := 100 - math.Min(100, math.Max(0, ratio))
	return math.Round(score*100) / 100
}

// CompareScans returns the full added, removed and modified breakdown of
// scan b against scan a, with field diffs for modified resources.
func (a *Analyzer) CompareScans(ctx context.Context, scanA, scanB int64) (*ComparisonReport, error) {
	cmp, err := a.reconciler.Compare(ctx, scanA, scanB)
	if err != nil {
		return nil, err
	}

	countA := len(cmp.Deleted) + len(cmp.Updated) + len(cmp.Unchanged)
	countB := len(cmp.Created) + len(cmp.Updated) + len(cmp.Unchanged)

	report := &ComparisonReport{
		ScanA:    ScanRef{ID: cmp.Old.ID, Timestamp: cmp.Old.Timestamp, ResourceCount: countA},
		ScanB:    ScanRef{ID: cmp.New.ID, Timestamp: cmp.New.Timestamp, ResourceCount: countB},
		Added:    make([]scan.ResourceKey, 0, len(cmp.Created)),
		Removed:  make([]scan.ResourceKey, 0, len(cmp.Deleted)),
		Modified: make([]ModifiedResource, 0, len(cmp.Updated)),
		Summary: ComparisonSummary{
			TotalAdded:     len(cmp.Created),
			TotalRemoved:   len(cmp.Deleted),
			TotalModified:  len(cmp.Updated),
			TotalUnchanged: len(cmp.Unchanged),
			NetChange:      countB - countA,
		},
	}

	for _, r := range cmp.Created {
		report.Added = append(report.Added, r.ResourceKey)
	}
	for _, r := range cmp.Deleted {
		report.Removed = append(report.Removed, r.ResourceKey)
	}
	for _, pair := range cmp.Updated {
		report.Modified = append(report.Modified, ModifiedResource{
			ResourceKey: pair.New.ResourceKey,
			OldHash:     pair.Old.Hash,
			NewHash:     pair.New.Hash,
			Diff:        a.reconciler.FieldDiff(pair),
		})
	}

	return report, nil
}

// ClusterEvolution reports resource and change counts per scan of a context
func (a *Analyzer) ClusterEvolution(ctx context.Context, contextName string, days int) (*Evolution, error) {
	end := a.now().UTC()
	scans, err := a.scans.GetScansInRange(ctx, end.AddDate(0, 0, -days), end, contextFilter(contextName))
	if err != nil {
		return nil, err
	}
	sortChronological(scans)

	evolution := &Evolution{
		Context:    contextName,
		PeriodDays: days,
		ScanCount:  len(scans),
		Points:     make([]EvolutionPoint, 0, len(scans)),
	}

	for _, s := range scans {
		records, err := a.changes.ListForScan(ctx, s.ID)
		if err != nil {
			return nil, err
		}
		evolution.Points = append(evolution.Points, EvolutionPoint{
			ScanID:         s.ID,
			Timestamp:      s.Timestamp,
			ResourceCount:  s.TotalResources,
			ChangeCount:    len(records),
			ScanType:       s.ScanType,
			ClusterVersion: s.ClusterVersion,
			NodeCount:      s.NodeCount,
		})
	}

	if n := len(evolution.Points); n > 0 {
		sum := &evolution.Summary
		sum.InitialResources = evolution.Points[0].ResourceCount
		sum.FinalResources = evolution.Points[n-1].ResourceCount
		for _, p := range evolution.Points {
			if p.ResourceCount > sum.PeakResources {
				sum.PeakResources = p.ResourceCount
			}
			sum.TotalChanges += p.ChangeCount
		}
	}

	return evolution, nil
}

// ChangeSummary lists recent change records and their statistics for the
// last days, optionally restricted to one context.
func (a *Analyzer) ChangeSummary(ctx context.Context, contextName *string, days int) (*ChangeSummary, error) {
	filter := change.Filter{
		Context: contextName,
		Since:   a.now().UTC().AddDate(0, 0, -days),
		Limit:   recentChangesLimit,
	}

	recent, err := a.changes.ListRecent(ctx, filter)
	if err != nil {
		return nil, err
	}
	stats, err := a.changes.Statistics(ctx, filter)
	if err != nil {
		return nil, err
	}

	if len(recent) > recentChangesShown {
		recent = recent[:recentChangesShown]
	}
	if recent == nil {
		recent = []change.Record{}
	}

	return &ChangeSummary{
		Context:       contextName,
		PeriodDays:    days,
		TotalChanges:  stats.Total,
		RecentChanges: recent,
		Statistics:    stats,
	}, nil
}

// HistoricalSummary aggregates scan history for the last days
func (a *Analyzer) HistoricalSummary(ctx context.Context, days int) (*scan.Summary, error) {
	return a.scans.Summary(ctx, a.now().UTC().AddDate(0, 0, -days), summaryListLimit)
}

func mostUnstable(counts map[scan.ResourceKey]int, limit int) []UnstableResource {
	out := make([]UnstableResource, 0, len(counts))
	for k, n := range counts {
		out = append(out, UnstableResource{ResourceKey: k, Changes: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Changes != out[j].Changes {
			return out[i].Changes > out[j].Changes
		}
		return out[i].ResourceKey.Compare(out[j].ResourceKey) < 0
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func sortChronological(scans []*scan.Scan) {
	sort.Slice(scans, func(i, j int) bool {
		if !scans[i].Timestamp.Equal(scans[j].Timestamp) {
			return scans[i].Timestamp.Before(scans[j].Timestamp)
		}
		return scans[i].ID < scans[j].ID
	})
}

func sortKeys(keys []scan.ResourceKey) {
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].Compare(keys[j]) < 0
	})
}

func contextFilter(name string) *string {
	if name == "" {
		return nil
	}
	return &name
}
