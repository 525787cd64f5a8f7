package scan

import (
	"strings"
	"time"
)

// ScanType describes the scope of a snapshot
type ScanType string

// Scan types
const (
	TypeCluster   ScanType = "cluster"
	TypeNamespace ScanType = "namespace"
)

// ResourceKey identifies a resource across scans. Cluster-scoped resources
// have Namespaced == false, which is distinct from a namespaced resource
// whose namespace is the empty string.
type ResourceKey struct {
	APIVersion string `json:"api_version"`
	Kind       string `json:"kind"`
	Namespace  string `json:"namespace,omitempty"`
	Namespaced bool   `json:"namespaced"`
	Name       string `json:"name"`
}

// NewKey builds a key; a nil namespace marks the resource as cluster-scoped.
func NewKey(apiVersion, kind string, namespace *string, name string) ResourceKey {
	k := ResourceKey{APIVersion: apiVersion, Kind: kind, Name: name}
	if namespace != nil {
		k.Namespace = *namespace
		k.Namespaced = true
	}
	return k
}

// NamespacePtr returns the namespace or nil for cluster-scoped keys.
func (k ResourceKey) NamespacePtr() *string {
	if !k.Namespaced {
		return nil
	}
	ns := k.Namespace
	return &ns
}

// String renders apiVersion/kind/namespace/name, omitting the namespace
// segment for cluster-scoped keys.
func (k ResourceKey) String() string {
	parts := []string{k.APIVersion, k.Kind}
	if k.Namespaced {
		parts = append(parts, k.Namespace)
	}
	parts = append(parts, k.Name)
	return strings.Join(parts, "/")
}

// Compare orders keys lexically by their string form.
func (k ResourceKey) Compare(o ResourceKey) int {
	if c := strings.Compare(k.String(), o.String()); c != 0 {
		return c
	}
	// names containing "/" can render identically across scopes
	switch {
	case k.Namespaced == o.Namespaced:
		return 0
	case !k.Namespaced:
		return -1
	default:
		return 1
	}
}

// Resource is one resource as captured in a single scan. Rows are
// immutable once written.
type Resource struct {
	ID     int64 `json:"id,omitempty"`
	ScanID int64 `json:"scan_id,omitempty"`
	ResourceKey
	Document    map[string]interface{} `json:"document,omitempty"`
	Hash        string                 `json:"hash"`
	Labels      map[string]string      `json:"labels,omitempty"`
	Annotations map[string]string      `json:"annotations,omitempty"`
	HelmManaged bool                   `json:"helm_managed"`
	HelmRelease string                 `json:"helm_release,omitempty"`
}

// Scan is one snapshot event
type Scan struct {
	ID             int64                  `json:"id"`
	Timestamp      time.Time              `json:"timestamp"`
	Context        string                 `json:"context,omitempty"`
	Namespace      *string                `json:"namespace,omitempty"`
	ScanType       ScanType               `json:"scan_type"`
	TotalResources int                    `json:"total_resources"`
	ClusterVersion string                 `json:"cluster_version,omitempty"`
	NodeCount      int                    `json:"node_count"`
	ClusterInfo    map[string]interface{} `json:"cluster_info,omitempty"`
}

// ClusterMetadata is reported by the resource source alongside documents
type ClusterMetadata struct {
	ServerVersion string                 `json:"server_version,omitempty" yaml:"serverVersion"`
	NodeCount     int                    `json:"node_count" yaml:"nodeCount"`
	Info          map[string]interface{} `json:"info,omitempty" yaml:"info"`
}

// RecentFilter narrows GetRecentScans. Nil pointers mean "any".
type RecentFilter struct {
	Context   *string
	Namespace *string
	SinceDays int
	Limit     int
}

// HistoryEntry is one observation of a resource, paired with the time of
// the scan that captured it.
type HistoryEntry struct {
	ScanID        int64     `json:"scan_id"`
	ScanTimestamp time.Time `json:"scan_timestamp"`
	Context       string    `json:"context,omitempty"`
	Resource      Resource  `json:"resource"`
}

// NamespaceActivity counts how many observations a namespace contributed
type NamespaceActivity struct {
	Namespace string `json:"namespace"`
	Count     int    `json:"count"`
}

// ResourceChurn counts distinct content versions of a resource
type ResourceChurn struct {
	ResourceKey
	Versions int `json:"versions"`
}

// VersionSighting tracks one cluster version across scans
type VersionSighting struct {
	Version   string    `json:"version"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
	Scans     int       `json:"scans"`
}

// Summary aggregates the scan history since a point in time
type Summary struct {
	Since                time.Time           `json:"since"`
	TotalScans           int                 `json:"total_scans"`
	FirstScan            *time.Time          `json:"first_scan,omitempty"`
	LastScan             *time.Time          `json:"last_scan,omitempty"`
	MostActiveNamespaces []NamespaceActivity `json:"most_active_namespaces"`
	MostChangedResources []ResourceChurn     `json:"most_changed_resources"`
	ClusterVersions      []VersionSighting   `json:"cluster_versions"`
}
