package scan

import (
	"context"
	"time"
)

// Repository defines the interface for snapshot storage
type Repository interface {
	// BeginScan inserts a scan header and returns its generated id
	BeginScan(ctx context.Context, s *Scan) (int64, error)

	// IngestResources writes all rows for an existing scan in one transaction
	IngestResources(ctx context.Context, scanID int64, resources []Resource) (int, error)

	// CreateWithResources writes a scan header and its rows in one transaction
	CreateWithResources(ctx context.Context, s *Scan, resources []Resource) (int64, error)

	// GetByID retrieves a scan header
	GetByID(ctx context.Context, id int64) (*Scan, error)

	// GetPrevious returns the most recent scan with an id below id, or nil
	GetPrevious(ctx context.Context, id int64) (*Scan, error)

	// GetPreviousInScope is GetPrevious restricted to the same context and namespace
	GetPreviousInScope(ctx context.Context, id int64, contextName string, namespace *string) (*Scan, error)

	// GetResourcesForScan lists the rows of one scan
	GetResourcesForScan(ctx context.Context, scanID int64) ([]Resource, error)

	// GetRecentScans lists scans newest first
	GetRecentScans(ctx context.Context, filter RecentFilter) ([]*Scan, error)

	// GetScansInRange lists scans with start <= timestamp <= end, newest first
	GetScansInRange(ctx context.Context, start, end time.Time, contextName *string) ([]*Scan, error)

	// FindResourceHistory lists observations of key since a time, oldest first
	FindResourceHistory(ctx context.Context, key ResourceKey, since time.Time) ([]HistoryEntry, error)

	// CountByKind counts the rows of a scan per kind
	CountByKind(ctx context.Context, scanID int64) (map[string]int, error)

	// CountByNamespace counts the rows of a scan per namespace
	CountByNamespace(ctx context.Context, scanID int64) (map[string]int, error)

	// Summary aggregates scan history since a point in time
	Summary(ctx context.Context, since time.Time, limit int) (*Summary, error)

	// DeleteScansOlderThan removes old scans together with their rows and change records
	DeleteScansOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
