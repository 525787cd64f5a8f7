package reconciler

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pratik-mahalle/snapdrift/internal/canonical"
	"github.com/pratik-mahalle/snapdrift/internal/detector"
	"github.com/pratik-mahalle/snapdrift/internal/domain/change"
	"github.com/pratik-mahalle/snapdrift/internal/domain/scan"
	"github.com/pratik-mahalle/snapdrift/internal/pkg/logger"
	"github.com/pratik-mahalle/snapdrift/internal/pkg/metrics"
)

// Comparison is the outcome of diffing two stored scans
type Comparison struct {
	Old *scan.Scan `json:"old_scan"`
	New *scan.Scan `json:"new_scan"`
	Result
}

// Reconciler diffs stored scans and persists the resulting change records
type Reconciler struct {
	scans    scan.Repository
	changes  change.Repository
	detector *detector.FieldDetector
	logger   *logger.Logger
}

// New creates a reconciler over the given repositories
func New(scans scan.Repository, changes change.Repository, log *logger.Logger) *Reconciler {
	return &Reconciler{
		scans:    scans,
		changes:  changes,
		detector: detector.NewFieldDetector(),
		logger:   log,
	}
}

// Compare loads both scans and their resources concurrently and diffs them.
// Nothing is persisted.
func (r *Reconciler) Compare(ctx context.Context, oldScanID, newScanID int64) (*Comparison, error) {
	var (
		cmp                        Comparison
		oldResources, newResources []scan.Resource
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := r.scans.GetByID(gctx, oldScanID)
		cmp.Old = s
		return err
	})
	g.Go(func() error {
		s, err := r.scans.GetByID(gctx, newScanID)
		cmp.New = s
		return err
	})
	g.Go(func() error {
		rs, err := r.scans.GetResourcesForScan(gctx, oldScanID)
		oldResources = rs
		return err
	})
	g.Go(func() error {
		rs, err := r.scans.GetResourcesForScan(gctx, newScanID)
		newResources = rs
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	cmp.Result = Diff(oldResources, newResources)
	return &cmp, nil
}

// Reconcile diffs newScanID against oldScanID, or against the scan
// immediately preceding it when oldScanID is nil, and stores one change
// record per created, updated or deleted key. Records for the same pair are
// replaced, never duplicated. A first scan with no predecessor yields an
// empty list.
func (r *Reconciler) Reconcile(ctx context.Context, newScanID int64, oldScanID *int64) ([]change.Record, error) {
	start := time.Now()

	if oldScanID == nil {
		if _, err := r.scans.GetByID(ctx, newScanID); err != nil {
			return nil, err
		}
		prev, err := r.scans.GetPrevious(ctx, newScanID)
		if err != nil {
			return nil, err
		}
		if prev == nil {
			r.logger.WithFields(map[string]interface{}{
				"scan_id": newScanID,
			}).Debug("No baseline scan, nothing to reconcile")
			return []change.Record{}, nil
		}
		oldScanID = &prev.ID
	}

	cmp, err := r.Compare(ctx, *oldScanID, newScanID)
	if err != nil {
		return nil, err
	}

	records := r.Records(cmp, time.Now().UTC())
	if err := r.changes.ReplaceForPair(ctx, *oldScanID, newScanID, records); err != nil {
		r.logger.WithFields(map[string]interface{}{
			"old_scan_id": *oldScanID,
			"new_scan_id": newScanID,
		}).ErrorWithErr(err, "Failed to store change records")
		return nil, err
	}

	counts := map[string]int{
		string(change.TypeCreated): len(cmp.Created),
		string(change.TypeUpdated): len(cmp.Updated),
		string(change.TypeDeleted): len(cmp.Deleted),
	}
	metrics.RecordReconcile(time.Since(start), counts)

	r.logger.WithFields(map[string]interface{}{
		"old_scan_id": *oldScanID,
		"new_scan_id": newScanID,
		"created":     len(cmp.Created),
		"updated":     len(cmp.Updated),
		"deleted":     len(cmp.Deleted),
		"unchanged":   len(cmp.Unchanged),
	}).Info("Scans reconciled")

	return records, nil
}

// Records turns a comparison into change records ordered created, updated,
// deleted and then by key. Deletions reference the later of the two scans.
func (r *Reconciler) Records(cmp *Comparison, detectedAt time.Time) []change.Record {
	oldID, newID := cmp.Old.ID, cmp.New.ID
	later, earlier := newID, oldID
	if oldID > newID {
		later, earlier = oldID, newID
	}

	records := make([]change.Record, 0, cmp.ChangeCount())

	for _, res := range cmp.Created {
		records = append(records, change.Record{
			DetectedAt:  detectedAt,
			ResourceKey: res.ResourceKey,
			ChangeType:  change.TypeCreated,
			OldScanID:   int64Ptr(oldID),
			NewScanID:   newID,
			Summary:     fmt.Sprintf("Resource %s/%s was created", res.Kind, res.Name),
		})
	}

	for _, pair := range cmp.Updated {
		diff := r.FieldDiff(pair)
		records = append(records, change.Record{
			DetectedAt:  detectedAt,
			ResourceKey: pair.New.ResourceKey,
			ChangeType:  change.TypeUpdated,
			OldScanID:   int64Ptr(oldID),
			NewScanID:   newID,
			Diff:        diff,
			Summary:     fmt.Sprintf("Resource %s/%s was updated: %s", pair.New.Kind, pair.New.Name, r.detector.Summarize(diff)),
		})
	}

	for _, res := range cmp.Deleted {
		records = append(records, change.Record{
			DetectedAt:  detectedAt,
			ResourceKey: res.ResourceKey,
			ChangeType:  change.TypeDeleted,
			OldScanID:   int64Ptr(earlier),
			NewScanID:   later,
			Summary:     fmt.Sprintf("Resource %s/%s was deleted", res.Kind, res.Name),
		})
	}

	return records
}

// FieldDiff exposes the field-level diff used for updated records. Stored
// documents are raw, so both sides are cleaned first to keep status churn out.
func (r *Reconciler) FieldDiff(pair Pair) []change.FieldChange {
	return r.detector.Diff(canonical.Clean(pair.Old.Document), canonical.Clean(pair.New.Document))
}

func int64Ptr(v int64) *int64 {
	return &v
}
