package change

import "context"

// Repository defines the interface for change record storage
type Repository interface {
	// ReplaceForPair swaps every record of the unordered scan pair for records, atomically
	ReplaceForPair(ctx context.Context, scanA, scanB int64, records []Record) error

	// ListForScan lists records whose new scan is scanID
	ListForScan(ctx context.Context, scanID int64) ([]Record, error)

	// ListRecent lists records newest first
	ListRecent(ctx context.Context, filter Filter) ([]Record, error)

	// Statistics counts records by type, namespace and kind
	Statistics(ctx context.Context, filter Filter) (*Statistics, error)
}
