package client

import "time"

// ResourceKey identifies a resource across scans
type ResourceKey struct {
	APIVersion string `json:"api_version"`
	Kind       string `json:"kind"`
	Namespace  string `json:"namespace,omitempty"`
	Namespaced bool   `json:"namespaced"`
	Name       string `json:"name"`
}

// String renders apiVersion/kind/namespace/name
func (k ResourceKey) String() string {
	if k.Namespaced {
		return k.APIVersion + "/" + k.Kind + "/" + k.Namespace + "/" + k.Name
	}
	return k.APIVersion + "/" + k.Kind + "/" + k.Name
}

// Scan is one snapshot
type Scan struct {
	ID             int64                  `json:"id"`
	Timestamp      time.Time              `json:"timestamp"`
	Context        string                 `json:"context,omitempty"`
	Namespace      *string                `json:"namespace,omitempty"`
	ScanType       string                 `json:"scan_type"`
	TotalResources int                    `json:"total_resources"`
	ClusterVersion string                 `json:"cluster_version,omitempty"`
	NodeCount      int                    `json:"node_count"`
	ClusterInfo    map[string]interface{} `json:"cluster_info,omitempty"`
}

// ScanDetail is a scan with per-kind and per-namespace resource counts
type ScanDetail struct {
	Scan
	ByKind      map[string]int `json:"by_kind"`
	ByNamespace map[string]int `json:"by_namespace"`
}

// FieldChange is one differing path between two versions of a resource
type FieldChange struct {
	Path     string      `json:"path"`
	Type     string      `json:"type"`
	OldValue interface{} `json:"old_value,omitempty"`
	NewValue interface{} `json:"new_value,omitempty"`
}

// ChangeRecord is a created, updated or deleted resource between two scans
type ChangeRecord struct {
	ID         int64     `json:"id,omitempty"`
	DetectedAt time.Time `json:"detected_at"`
	ResourceKey
	ChangeType string        `json:"change_type"`
	OldScanID  *int64        `json:"old_scan_id,omitempty"`
	NewScanID  int64         `json:"new_scan_id"`
	Diff       []FieldChange `json:"diff,omitempty"`
	Summary    string        `json:"summary,omitempty"`
}

// ScanRef is the short form of a scan used in reports
type ScanRef struct {
	ID            int64     `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	ResourceCount int       `json:"resource_count"`
}

// ModifiedResource is a resource whose content changed
type ModifiedResource struct {
	ResourceKey
	OldHash string        `json:"old_hash"`
	NewHash string        `json:"new_hash"`
	Diff    []FieldChange `json:"diff"`
}

// ComparisonSummary counts a scan comparison
type ComparisonSummary struct {
	TotalAdded     int `json:"total_added"`
	TotalRemoved   int `json:"total_removed"`
	TotalModified  int `json:"total_modified"`
	TotalUnchanged int `json:"total_unchanged"`
	NetChange      int `json:"net_change"`
}

// Comparison is the breakdown of two scans
type Comparison struct {
	ScanA    ScanRef            `json:"scan_a"`
	ScanB    ScanRef            `json:"scan_b"`
	Added    []ResourceKey      `json:"added"`
	Removed  []ResourceKey      `json:"removed"`
	Modified []ModifiedResource `json:"modified"`
	Summary  ComparisonSummary  `json:"summary"`
}

// DriftPoint is one scan compared against the baseline
type DriftPoint struct {
	ScanID    int64         `json:"scan_id"`
	Timestamp time.Time     `json:"timestamp"`
	Score     int           `json:"drift_score"`
	Added     []ResourceKey `json:"added"`
	Removed   []ResourceKey `json:"removed"`
	Modified  []ResourceKey `json:"modified"`
}

// UnstableResource is a frequently modified resource
type UnstableResource struct {
	ResourceKey
	Changes int `json:"changes"`
}

// DriftReport summarises drift from a baseline
type DriftReport struct {
	Context            string             `json:"context"`
	PeriodDays         int                `json:"period_days"`
	InsufficientData   bool               `json:"insufficient_data"`
	AvailableScans     int                `json:"available_scans"`
	Message            string             `json:"message,omitempty"`
	Baseline           *ScanRef           `json:"baseline,omitempty"`
	Points             []DriftPoint       `json:"drift_points"`
	TotalDriftEvents   int                `json:"total_drift_events"`
	ResourcesWithDrift []ResourceKey      `json:"resources_with_drift"`
	MostUnstable       []UnstableResource `json:"most_unstable_resources"`
	StabilityScore     float64            `json:"stability_score"`
}

// TimelineEntry is one observation of a resource
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

// Timeline is the history of one resource
type Timeline struct {
	Key        ResourceKey     `json:"resource_key"`
	PeriodDays int             `json:"period_days"`
	Entries    []TimelineEntry `json:"timeline"`
	Summary    TimelineSummary `json:"summary"`
}

// HealthMetrics describes scanning activity in a health report
type HealthMetrics struct {
	TotalScans          int        `json:"total_scans"`
	ScanFrequencyPerDay float64    `json:"scan_frequency_per_day"`
	LatestScanID        int64      `json:"latest_scan_id"`
	LatestScanResources int        `json:"latest_scan_resources"`
	LatestScanDate      *time.Time `json:"latest_scan_date,omitempty"`
}

// HealthReport is the health of one cluster context
type HealthReport struct {
	Context         string         `json:"context"`
	GeneratedAt     time.Time      `json:"generated_at"`
	PeriodDays      int            `json:"period_days"`
	Status          string         `json:"status"`
	Message         string         `json:"message,omitempty"`
	Score           int            `json:"health_score"`
	Metrics         *HealthMetrics `json:"metrics,omitempty"`
	Drift           *DriftReport   `json:"drift_analysis,omitempty"`
	Recommendations []string       `json:"recommendations,omitempty"`
}

// HealthResponse is the liveness probe response
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database,omitempty"`
}
