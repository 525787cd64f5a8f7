package change

import (
	"time"

	"github.com/pratik-mahalle/snapdrift/internal/domain/scan"
)

// Type is the kind of change reconciliation found for a resource
type Type string

// Change types
const (
	TypeCreated Type = "created"
	TypeUpdated Type = "updated"
	TypeDeleted Type = "deleted"
)

// Rank orders change types for stable output: created, updated, deleted.
func (t Type) Rank() int {
	switch t {
	case TypeCreated:
		return 0
	case TypeUpdated:
		return 1
	case TypeDeleted:
		return 2
	default:
		return 3
	}
}

// Field change types
const (
	FieldAdded    = "added"
	FieldRemoved  = "removed"
	FieldModified = "modified"
)

// FieldChange is one differing path between two documents
type FieldChange struct {
	Path     string      `json:"path"`
	Type     string      `json:"type"`
	OldValue interface{} `json:"old_value,omitempty"`
	NewValue interface{} `json:"new_value,omitempty"`
}

// Record is the outcome of reconciling two scans for one resource key.
// Deletions carry the key only; there is no row in the newer scan.
type Record struct {
	ID         int64     `json:"id,omitempty"`
	DetectedAt time.Time `json:"detected_at"`
	scan.ResourceKey
	ChangeType Type          `json:"change_type"`
	OldScanID  *int64        `json:"old_scan_id,omitempty"`
	NewScanID  int64         `json:"new_scan_id"`
	Diff       []FieldChange `json:"diff,omitempty"`
	Summary    string        `json:"summary,omitempty"`
}

// Filter narrows change record queries. Nil pointers mean "any".
type Filter struct {
	Context *string
	Since   time.Time
	Limit   int
}

// Statistics groups change records
type Statistics struct {
	Total       int            `json:"total"`
	ByType      map[string]int `json:"by_type"`
	ByNamespace map[string]int `json:"by_namespace"`
	ByKind      map[string]int `json:"by_kind"`
}
