package services

import (
	"context"
	"time"

	"github.com/pratik-mahalle/snapdrift/internal/canonical"
	"github.com/pratik-mahalle/snapdrift/internal/domain/change"
	"github.com/pratik-mahalle/snapdrift/internal/domain/scan"
	"github.com/pratik-mahalle/snapdrift/internal/pkg/errors"
	"github.com/pratik-mahalle/snapdrift/internal/pkg/logger"
	"github.com/pratik-mahalle/snapdrift/internal/pkg/metrics"
	"github.com/pratik-mahalle/snapdrift/internal/pkg/validator"
	"github.com/pratik-mahalle/snapdrift/internal/reconciler"
	"github.com/pratik-mahalle/snapdrift/internal/source"
)

// SnapshotRequest selects what to capture. A nil namespace captures the
// whole cluster.
type SnapshotRequest struct {
	Context   string  `json:"context" validate:"required,max=255"`
	Namespace *string `json:"namespace,omitempty" validate:"omitempty,max=253"`
}

// SkippedDocument is a document that could not be canonicalized
type SkippedDocument struct {
	Index  int    `json:"index"`
	Kind   string `json:"kind,omitempty"`
	Name   string `json:"name,omitempty"`
	Reason string `json:"reason"`
}

// SnapshotResult reports one captured snapshot
type SnapshotResult struct {
	ScanID         int64             `json:"scan_id"`
	Timestamp      time.Time         `json:"timestamp"`
	TotalResources int               `json:"total_resources"`
	Skipped        []SkippedDocument `json:"skipped,omitempty"`
	SourceErrors   []string          `json:"source_errors,omitempty"`
	BaselineScanID *int64            `json:"baseline_scan_id,omitempty"`
	Changes        []change.Record   `json:"changes"`
}

// CleanupResult reports a retention run
type CleanupResult struct {
	KeepDays int       `json:"keep_days"`
	Cutoff   time.Time `json:"cutoff"`
	Deleted  int64     `json:"deleted_scans"`
}

// SnapshotService captures snapshots from a source and reconciles them
// against the previous snapshot of the same scope.
type SnapshotService struct {
	source     source.Source
	scans      scan.Repository
	reconciler *reconciler.Reconciler
	validator  *validator.Validator
	logger     *logger.Logger
	now        func() time.Time
}

// NewSnapshotService creates a new snapshot service
func NewSnapshotService(src source.Source, scans scan.Repository, rec *reconciler.Reconciler, log *logger.Logger) *SnapshotService {
	return &SnapshotService{
		source:     src,
		scans:      scans,
		reconciler: rec,
		validator:  validator.New(),
		logger:     log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Snapshot fetches documents, canonicalizes them, stores the scan and its
// rows atomically and reconciles it. Documents that cannot be canonicalized
// are skipped, never fatal.
func (s *SnapshotService) Snapshot(ctx context.Context, req SnapshotRequest) (*SnapshotResult, error) {
	if errs := s.validator.Validate(req); len(errs) > 0 {
		return nil, errors.ValidationError("invalid snapshot request", errs)
	}

	start := time.Now()
	log := s.logger.WithFields(map[string]interface{}{
		"context":   req.Context,
		"namespace": derefOr(req.Namespace, ""),
	})

	fetched, err := s.source.Fetch(ctx, req.Namespace)
	if err != nil {
		metrics.RecordScan(req.Context, "failed", 0, time.Since(start))
		log.ErrorWithErr(err, "Failed to fetch resources")
		return nil, errors.Internal("failed to fetch resources", err)
	}

	result := &SnapshotResult{Changes: []change.Record{}}
	for _, ferr := range fetched.Errors {
		result.SourceErrors = append(result.SourceErrors, ferr.Error())
		log.WithError(ferr).Warn("Source reported an unreadable document")
	}

	resources := make([]scan.Resource, 0, len(fetched.Documents))
	for i, doc := range fetched.Documents {
		res, err := canonical.ToResource(doc)
		if err != nil {
			if !errors.IsInvalidDocument(err) {
				return nil, err
			}
			skipped := skippedDocument(i, doc, err)
			result.Skipped = append(result.Skipped, skipped)
			log.WithFields(map[string]interface{}{
				"index":  i,
				"kind":   skipped.Kind,
				"name":   skipped.Name,
				"reason": skipped.Reason,
			}).Warn("Skipping document")
			continue
		}
		resources = append(resources, *res)
	}
	metrics.RecordSkippedDocuments(req.Context, len(result.Skipped))

	snap := &scan.Scan{
		Timestamp:      s.now(),
		Context:        req.Context,
		Namespace:      req.Namespace,
		ScanType:       scan.TypeCluster,
		ClusterVersion: fetched.Metadata.ServerVersion,
		NodeCount:      fetched.Metadata.NodeCount,
		ClusterInfo:    fetched.Metadata.Info,
	}
	if req.Namespace != nil {
		snap.ScanType = scan.TypeNamespace
	}

	id, err := s.scans.CreateWithResources(ctx, snap, resources)
	if err != nil {
		metrics.RecordScan(req.Context, "failed", 0, time.Since(start))
		log.ErrorWithErr(err, "Failed to store snapshot")
		return nil, err
	}

	result.ScanID = id
	result.Timestamp = snap.Timestamp
	result.TotalResources = len(resources)

	prev, err := s.scans.GetPreviousInScope(ctx, id, req.Context, req.Namespace)
	if err != nil {
		return nil, err
	}
	if prev != nil {
		records, err := s.reconciler.Reconcile(ctx, id, &prev.ID)
		if err != nil {
			return nil, err
		}
		result.BaselineScanID = &prev.ID
		result.Changes = records
	}

	metrics.RecordScan(req.Context, "success", len(resources), time.Since(start))

	log.WithFields(map[string]interface{}{
		"scan_id":   id,
		"resources": len(resources),
		"skipped":   len(result.Skipped),
		"changes":   len(result.Changes),
	}).Info("Snapshot captured")

	return result, nil
}

// Cleanup deletes scans older than keepDays together with their rows and
// change records.
func (s *SnapshotService) Cleanup(ctx context.Context, keepDays int) (*CleanupResult, error) {
	if keepDays < 1 {
		return nil, errors.BadRequest("keep days must be at least 1")
	}

	cutoff := s.now().AddDate(0, 0, -keepDays)
	deleted, err := s.scans.DeleteScansOlderThan(ctx, cutoff)
	if err != nil {
		s.logger.ErrorWithErr(err, "Failed to clean up old scans")
		return nil, err
	}

	metrics.RecordRetention(deleted)

	s.logger.WithFields(map[string]interface{}{
		"keep_days": keepDays,
		"cutoff":    cutoff,
		"deleted":   deleted,
	}).Info("Old scans cleaned up")

	return &CleanupResult{KeepDays: keepDays, Cutoff: cutoff, Deleted: deleted}, nil
}

func skippedDocument(index int, doc map[string]interface{}, err error) SkippedDocument {
	skipped := SkippedDocument{Index: index, Reason: err.Error()}
	if appErr, ok := err.(*errors.AppError); ok {
		skipped.Reason = appErr.Message
	}
	skipped.Kind, _ = doc["kind"].(string)
	if meta, ok := doc["metadata"].(map[string]interface{}); ok {
		skipped.Name, _ = meta["name"].(string)
	}
	return skipped
}

func derefOr(s *string, def string) string {
	if s == nil {
		return def
	}
	return *s
}
