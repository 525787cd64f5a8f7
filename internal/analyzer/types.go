package analyzer

import (
	"time"

	"github.com/pratik-mahalle/snapdrift/internal/domain/change"
	"github.com/pratik-mahalle/snapdrift/internal/domain/scan"
)

// ScanRef is the short form of a scan used in reports
type ScanRef struct {
	ID            int64     `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	ResourceCount int       `json:"resource_count"`
}

func refOf(s *scan.Scan) ScanRef {
	return ScanRef{ID: s.ID, Timestamp: s.Timestamp, ResourceCount: s.TotalResources}
}

// DriftPoint is one scan compared against the drift baseline
type DriftPoint struct {
	ScanID    int64              `json:"scan_id"`
	Timestamp time.Time          `json:"timestamp"`
	Score     int                `json:"drift_score"`
	Added     []scan.ResourceKey `json:"added"`
	Removed   []scan.ResourceKey `json:"removed"`
	Modified  []scan.ResourceKey `json:"modified"`
}

// UnstableResource counts how many drift points saw a resource modified
type UnstableResource struct {
	scan.ResourceKey
	Changes int `json:"changes"`
}

// DriftReport summarises drift from a baseline over a window of scans
type DriftReport struct {
	Context            string             `json:"context"`
	PeriodDays         int                `json:"period_days"`
	InsufficientData   bool               `json:"insufficient_data"`
	AvailableScans     int                `json:"available_scans"`
	Message            string             `json:"message,omitempty"`
	Baseline           *ScanRef           `json:"baseline,omitempty"`
	Points             []DriftPoint       `json:"drift_points"`
	TotalDriftEvents   int                `json:"total_drift_events"`
	ResourcesWithDrift []scan.ResourceKey `json:"resources_with_drift"`
	MostUnstable       []UnstableResource `json:"most_unstable_resources"`
	StabilityScore     float64            `json:"stability_score"`
}

// TimelineEntry is one observation of a resource. Changed is nil for the
// first entry.
type TimelineEntry struct {
	ScanID    int64     `json:"scan_id"`
	Timestamp time.Time `json:"timestamp"`
	Context   string    `json:"context,omitempty"`
	Hash      string    `json:"hash"`
	Changed   *bool     `json:"changed,omitempty"`
}

// TimelineSummary aggregates a resource timeline
type TimelineSummary struct {
	FirstSeen     *time.Time `json:"first_seen,omitempty"`
	LastSeen      *time.Time `json:"last_seen,omitempty"`
	Observations  int        `json:"observations"`
	TotalVersions int        `json:"total_versions"`
	TotalChanges  int        `json:"total_changes"`
}

// Timeline is the history of one resource key
type Timeline struct {
	Key        scan.ResourceKey `json:"resource_key"`
	PeriodDays int              `json:"period_days"`
	Entries    []TimelineEntry  `json:"timeline"`
	Summary    TimelineSummary  `json:"summary"`
}

// ModifiedResource is a key whose hash differs between two scans
type ModifiedResource struct {
	scan.ResourceKey
	OldHash string               `json:"old_hash"`
	NewHash string               `json:"new_hash"`
	Diff    []change.FieldChange `json:"diff"`
}

// ComparisonSummary counts a scan comparison
type ComparisonSummary struct {
	TotalAdded     int `json:"total_added"`
	TotalRemoved   int `json:"total_removed"`
	TotalModified  int `json:"total_modified"`
	TotalUnchanged int `json:"total_unchanged"`
	NetChange      int `json:"net_change"`
}

// ComparisonReport is a full breakdown of two scans
type ComparisonReport struct {
	ScanA    ScanRef            `json:"scan_a"`
	ScanB    ScanRef            `json:"scan_b"`
	Added    []scan.ResourceKey `json:"added"`
	Removed  []scan.ResourceKey `json:"removed"`
	Modified []ModifiedResource `json:"modified"`
	Summary  ComparisonSummary  `json:"summary"`
}

// EvolutionPoint describes one scan in a cluster's history
type EvolutionPoint struct {
	ScanID         int64         `json:"scan_id"`
	Timestamp      time.Time     `json:"timestamp"`
	ResourceCount  int           `json:"resource_count"`
	ChangeCount    int           `json:"change_count"`
	ScanType       scan.ScanType `json:"scan_type"`
	ClusterVersion string        `json:"cluster_version,omitempty"`
	NodeCount      int           `json:"node_count"`
}

// EvolutionSummary aggregates the points of an evolution
type EvolutionSummary struct {
	InitialResources int `json:"initial_resources"`
	FinalResources   int `json:"final_resources"`
	PeakResources    int `json:"peak_resources"`
	TotalChanges     int `json:"total_changes"`
}

// Evolution is the resource count history of a cluster context
type Evolution struct {
	Context    string           `json:"context"`
	PeriodDays int              `json:"period_days"`
	ScanCount  int              `json:"scan_count"`
	Points     []EvolutionPoint `json:"resource_evolution"`
	Summary    EvolutionSummary `json:"summary"`
}

// ChangeSummary lists recent change records with their statistics
type ChangeSummary struct {
	Context       *string            `json:"context,omitempty"`
	PeriodDays    int                `json:"period_days"`
	TotalChanges  int                `json:"total_changes"`
	RecentChanges []change.Record    `json:"recent_changes"`
	Statistics    *change.Statistics `json:"statistics"`
}
