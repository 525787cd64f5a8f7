package sqldb

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/pratik-mahalle/snapdrift/internal/domain/change"
	"github.com/pratik-mahalle/snapdrift/internal/domain/scan"
	"github.com/pratik-mahalle/snapdrift/internal/pkg/errors"
	"github.com/pratik-mahalle/snapdrift/internal/testutil"
)

func newTestStore(t *testing.T) *DB {
	t.Helper()
	return Wrap(testutil.NewTestDB(t), SQLite{})
}

func configMaps(t *testing.T, n int) []scan.Resource {
	t.Helper()
	docs := make([]map[string]interface{}, 0, n)
	for i := 0; i < n; i++ {
		docs = append(docs, testutil.Doc("v1", "ConfigMap", "default", fmt.Sprintf("cm-%03d", i), map[string]interface{}{"index": i}))
	}
	return testutil.Resources(t, docs...)
}

func createScanAt(t *testing.T, repo scan.Repository, ts time.Time, contextName string, resources []scan.Resource) int64 {
	t.Helper()
	id, err := repo.CreateWithResources(context.Background(), &scan.Scan{Timestamp: ts, Context: contextName}, resources)
	if err != nil {
		t.Fatalf("CreateWithResources() error = %v", err)
	}
	return id
}

func TestScanRepository_CreateWithResources(t *testing.T) {
	repo := NewScanRepository(newTestStore(t))
	ctx := context.Background()

	resources := testutil.Resources(t,
		testutil.Doc("v1", "Pod", "default", "a", map[string]interface{}{"image": "nginx"}),
		testutil.Doc("v1", "Namespace", "", "default", nil),
	)
	resources[0].Labels = map[string]string{"app": "a"}

	s := &scan.Scan{Context: "prod", ClusterVersion: "v1.29.1", NodeCount: 3, ClusterInfo: map[string]interface{}{"platform": "linux"}}
	id, err := repo.CreateWithResources(ctx, s, resources)
	if err != nil {
		t.Fatalf("CreateWithResources() error = %v", err)
	}
	if id == 0 || s.ID != id {
		t.Fatalf("CreateWithResources() id = %d, scan.ID = %d", id, s.ID)
	}

	got, err := repo.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.TotalResources != 2 {
		t.Errorf("TotalResources = %d, want 2", got.TotalResources)
	}
	if got.ScanType != scan.TypeCluster {
		t.Errorf("ScanType = %q, want cluster", got.ScanType)
	}
	if got.ClusterVersion != "v1.29.1" || got.NodeCount != 3 || got.ClusterInfo["platform"] != "linux" {
		t.Errorf("cluster metadata = %q/%d/%v", got.ClusterVersion, got.NodeCount, got.ClusterInfo)
	}

	rows, err := repo.GetResourcesForScan(ctx, id)
	if err != nil {
		t.Fatalf("GetResourcesForScan() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("GetResourcesForScan() returned %d rows, want 2", len(rows))
	}
	for i, row := range rows {
		if row.ScanID != id {
			t.Errorf("row %d ScanID = %d, want %d", i, row.ScanID, id)
		}
		if row.ResourceKey != resources[i].ResourceKey {
			t.Errorf("row %d key = %s, want %s", i, row.ResourceKey, resources[i].ResourceKey)
		}
		if row.Hash != resources[i].Hash {
			t.Errorf("row %d hash mismatch", i)
		}
	}
	if rows[1].Namespaced {
		t.Error("cluster-scoped resource came back namespaced")
	}
	if rows[0].Labels["app"] != "a" {
		t.Errorf("labels = %v", rows[0].Labels)
	}
}

func TestScanRepository_CreateWithResources_Atomic(t *testing.T) {
	repo := NewScanRepository(newTestStore(t))
	ctx := context.Background()

	resources := configMaps(t, 250)
	resources[240].Document = map[string]interface{}{"bad": make(chan int)}

	_, err := repo.CreateWithResources(ctx, &scan.Scan{Context: "prod"}, resources)
	if err == nil {
		t.Fatal("CreateWithResources() expected error")
	}
	if !errors.IsStorageUnavailable(err) {
		t.Errorf("error code = %q, want %q", errors.CodeOf(err), errors.ErrCodeStorageUnavailable)
	}

	scans, err := repo.GetRecentScans(ctx, scan.RecentFilter{})
	if err != nil {
		t.Fatalf("GetRecentScans() error = %v", err)
	}
	if len(scans) != 0 {
		t.Errorf("failed ingestion left %d scans behind", len(scans))
	}
}

func TestScanRepository_IngestResources(t *testing.T) {
	repo := NewScanRepository(newTestStore(t))
	ctx := context.Background()

	tests := []struct {
		name      string
		count     int
		wantTotal int
	}{
		{"empty batch", 0, 0},
		{"single chunk", 5, 5},
		{"several chunks", 450, 450},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := repo.BeginScan(ctx, &scan.Scan{Context: "prod"})
			if err != nil {
				t.Fatalf("BeginScan() error = %v", err)
			}

			n, err := repo.IngestResources(ctx, id, configMaps(t, tt.count))
			if err != nil {
				t.Fatalf("IngestResources() error = %v", err)
			}
			if n != tt.count {
				t.Errorf("IngestResources() = %d, want %d", n, tt.count)
			}

			got, err := repo.GetByID(ctx, id)
			if err != nil {
				t.Fatalf("GetByID() error = %v", err)
			}
			if got.TotalResources != tt.wantTotal {
				t.Errorf("TotalResources = %d, want %d", got.TotalResources, tt.wantTotal)
			}
		})
	}
}

func TestScanRepository_IngestResources_UnknownScan(t *testing.T) {
	repo := NewScanRepository(newTestStore(t))

	_, err := repo.IngestResources(context.Background(), 999, configMaps(t, 1))
	if !errors.IsNotFound(err) {
		t.Errorf("IngestResources() error = %v, want NOT_FOUND", err)
	}
}

func TestScanRepository_IngestResources_RollsBack(t *testing.T) {
	repo := NewScanRepository(newTestStore(t))
	ctx := context.Background()

	id, err := repo.BeginScan(ctx, &scan.Scan{Context: "prod"})
	if err != nil {
		t.Fatalf("BeginScan() error = %v", err)
	}

	resources := configMaps(t, 300)
	resources[299].Document = map[string]interface{}{"bad": func() {}}

	if _, err := repo.IngestResources(ctx, id, resources); err == nil {
		t.Fatal("IngestResources() expected error")
	}

	rows, err := repo.GetResourcesForScan(ctx, id)
	if err != nil {
		t.Fatalf("GetResourcesForScan() error = %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("partial ingestion visible: %d rows", len(rows))
	}
}

func TestScanRepository_GetByID_NotFound(t *testing.T) {
	repo := NewScanRepository(newTestStore(t))

	_, err := repo.GetByID(context.Background(), 42)
	if !errors.IsNotFound(err) {
		t.Errorf("GetByID() error = %v, want NOT_FOUND", err)
	}
}

func TestScanRepository_StorageUnavailable(t *testing.T) {
	store := newTestStore(t)
	repo := NewScanRepository(store)
	store.Close()

	_, err := repo.GetRecentScans(context.Background(), scan.RecentFilter{})
	if !errors.IsStorageUnavailable(err) {
		t.Errorf("GetRecentScans() on closed db error = %v, want STORAGE_UNAVAILABLE", err)
	}

	for name, count := range map[string]func(context.Context, int64) (map[string]int, error){
		"CountByKind":      repo.CountByKind,
		"CountByNamespace": repo.CountByNamespace,
	} {
		if _, err := count(context.Background(), 1); !errors.IsStorageUnavailable(err) {
			t.Errorf("%s() on closed db error = %v, want STORAGE_UNAVAILABLE", name, err)
		}
	}
}

func TestScanRepository_GetRecentScans(t *testing.T) {
	repo := NewScanRepository(newTestStore(t))
	ctx := context.Background()
	now := time.Now().UTC()

	old := createScanAt(t, repo, now.AddDate(0, 0, -10), "prod", nil)
	mid := createScanAt(t, repo, now.AddDate(0, 0, -2), "prod", nil)
	staging := createScanAt(t, repo, now.Add(-time.Hour), "staging", nil)
	latest := createScanAt(t, repo, now.Add(-time.Minute), "prod", nil)

	prod := "prod"
	tests := []struct {
		name   string
		filter scan.RecentFilter
		want   []int64
	}{
		{"all newest first", scan.RecentFilter{}, []int64{latest, staging, mid, old}},
		{"by context", scan.RecentFilter{Context: &prod}, []int64{latest, mid, old}},
		{"since days", scan.RecentFilter{Context: &prod, SinceDays: 7}, []int64{latest, mid}},
		{"limit", scan.RecentFilter{Limit: 2}, []int64{latest, staging}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scans, err := repo.GetRecentScans(ctx, tt.filter)
			if err != nil {
				t.Fatalf("GetRecentScans() error = %v", err)
			}
			if got := scanIDs(scans); fmt.Sprint(got) != fmt.Sprint(tt.want) {
				t.Errorf("GetRecentScans() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScanRepository_GetScansInRange(t *testing.T) {
	repo := NewScanRepository(newTestStore(t))
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	first := createScanAt(t, repo, base, "prod", nil)
	second := createScanAt(t, repo, base.Add(time.Hour), "prod", nil)
	createScanAt(t, repo, base.Add(48*time.Hour), "prod", nil)
	other := createScanAt(t, repo, base.Add(2*time.Hour), "dev", nil)

	scans, err := repo.GetScansInRange(ctx, base, base.Add(3*time.Hour), nil)
	if err != nil {
		t.Fatalf("GetScansInRange() error = %v", err)
	}
	if got, want := scanIDs(scans), []int64{other, second, first}; fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("GetScansInRange() = %v, want %v", got, want)
	}

	prod := "prod"
	scans, err = repo.GetScansInRange(ctx, base, base.Add(3*time.Hour), &prod)
	if err != nil {
		t.Fatalf("GetScansInRange() error = %v", err)
	}
	if got, want := scanIDs(scans), []int64{second, first}; fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("GetScansInRange(prod) = %v, want %v", got, want)
	}
}

func TestScanRepository_GetPrevious(t *testing.T) {
	repo := NewScanRepository(newTestStore(t))
	ctx := context.Background()
	now := time.Now().UTC()

	first := createScanAt(t, repo, now.Add(-3*time.Hour), "prod", nil)
	dev := createScanAt(t, repo, now.Add(-2*time.Hour), "dev", nil)
	third := createScanAt(t, repo, now.Add(-time.Hour), "prod", nil)

	prev, err := repo.GetPrevious(ctx, first)
	if err != nil || prev != nil {
		t.Errorf("GetPrevious(first) = %v, %v; want nil, nil", prev, err)
	}

	prev, err = repo.GetPrevious(ctx, third)
	if err != nil || prev == nil || prev.ID != dev {
		t.Errorf("GetPrevious(third) = %v, %v; want scan %d", prev, err, dev)
	}

	prev, err = repo.GetPreviousInScope(ctx, third, "prod", nil)
	if err != nil || prev == nil || prev.ID != first {
		t.Errorf("GetPreviousInScope(third) = %v, %v; want scan %d", prev, err, first)
	}

	ns := "team-a"
	prev, err = repo.GetPreviousInScope(ctx, third, "prod", &ns)
	if err != nil || prev != nil {
		t.Errorf("GetPreviousInScope(namespace) = %v, %v; want nil, nil", prev, err)
	}
}

func TestScanRepository_FindResourceHistory(t *testing.T) {
	repo := NewScanRepository(newTestStore(t))
	ctx := context.Background()
	now := time.Now().UTC()

	v1 := testutil.Doc("v1", "Service", "default", "b", map[string]interface{}{"port": 80})
	v2 := testutil.Doc("v1", "Service", "default", "b", map[string]interface{}{"port": 8080})

	createScanAt(t, repo, now.AddDate(0, 0, -40), "prod", testutil.Resources(t, v1))
	s2 := createScanAt(t, repo, now.Add(-2*time.Hour), "prod", testutil.Resources(t, v1))
	s3 := createScanAt(t, repo, now.Add(-time.Hour), "prod", testutil.Resources(t, v2))

	key := testutil.Resource(t, v1).ResourceKey
	entries, err := repo.FindResourceHistory(ctx, key, now.AddDate(0, 0, -30))
	if err != nil {
		t.Fatalf("FindResourceHistory() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("FindResourceHistory() returned %d entries, want 2", len(entries))
	}
	if entries[0].ScanID != s2 || entries[1].ScanID != s3 {
		t.Errorf("entries out of order: %d, %d", entries[0].ScanID, entries[1].ScanID)
	}
	if entries[0].Resource.Hash == entries[1].Resource.Hash {
		t.Error("expected the port change to produce distinct hashes")
	}
	if entries[0].Context != "prod" {
		t.Errorf("Context = %q, want prod", entries[0].Context)
	}

	clusterKey := scan.NewKey("v1", "Service", nil, "b")
	entries, err = repo.FindResourceHistory(ctx, clusterKey, now.AddDate(0, 0, -30))
	if err != nil {
		t.Fatalf("FindResourceHistory() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("cluster-scoped key matched %d namespaced rows", len(entries))
	}
}

func TestScanRepository_Counts(t *testing.T) {
	repo := NewScanRepository(newTestStore(t))
	ctx := context.Background()

	id := createScanAt(t, repo, time.Now(), "prod", testutil.Resources(t,
		testutil.Doc("v1", "Pod", "default", "a", nil),
		testutil.Doc("v1", "Pod", "kube-system", "b", nil),
		testutil.Doc("v1", "Service", "default", "c", nil),
		testutil.Doc("v1", "Node", "", "n1", nil),
	))

	byKind, err := repo.CountByKind(ctx, id)
	if err != nil {
		t.Fatalf("CountByKind() error = %v", err)
	}
	if byKind["Pod"] != 2 || byKind["Service"] != 1 || byKind["Node"] != 1 {
		t.Errorf("CountByKind() = %v", byKind)
	}

	byNS, err := repo.CountByNamespace(ctx, id)
	if err != nil {
		t.Fatalf("CountByNamespace() error = %v", err)
	}
	if byNS["default"] != 2 || byNS["kube-system"] != 1 || byNS["(cluster)"] != 1 {
		t.Errorf("CountByNamespace() = %v", byNS)
	}
}

func TestScanRepository_Summary(t *testing.T) {
	repo := NewScanRepository(newTestStore(t))
	ctx := context.Background()
	now := time.Now().UTC()

	a1 := testutil.Doc("v1", "ConfigMap", "default", "a", map[string]interface{}{"v": 1})
	a2 := testutil.Doc("v1", "ConfigMap", "default", "a", map[string]interface{}{"v": 2})
	b := testutil.Doc("v1", "ConfigMap", "other", "b", nil)

	_, err := repo.CreateWithResources(ctx, &scan.Scan{Timestamp: now.Add(-2 * time.Hour), Context: "prod", ClusterVersion: "v1.28.0"}, testutil.Resources(t, a1, b))
	if err != nil {
		t.Fatal(err)
	}
	_, err = repo.CreateWithResources(ctx, &scan.Scan{Timestamp: now.Add(-time.Hour), Context: "prod", ClusterVersion: "v1.29.0"}, testutil.Resources(t, a2, b))
	if err != nil {
		t.Fatal(err)
	}

	summary, err := repo.Summary(ctx, now.AddDate(0, 0, -1), 10)
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if summary.TotalScans != 2 {
		t.Errorf("TotalScans = %d, want 2", summary.TotalScans)
	}
	if summary.FirstScan == nil || summary.LastScan == nil || !summary.FirstScan.Before(*summary.LastScan) {
		t.Errorf("FirstScan/LastScan = %v/%v", summary.FirstScan, summary.LastScan)
	}
	if len(summary.MostChangedResources) != 1 || summary.MostChangedResources[0].Name != "a" || summary.MostChangedResources[0].Versions != 2 {
		t.Errorf("MostChangedResources = %+v", summary.MostChangedResources)
	}
	if len(summary.ClusterVersions) != 2 || summary.ClusterVersions[0].Version != "v1.28.0" {
		t.Errorf("ClusterVersions = %+v", summary.ClusterVersions)
	}
	if len(summary.MostActiveNamespaces) != 2 {
		t.Errorf("MostActiveNamespaces = %+v", summary.MostActiveNamespaces)
	}

	empty, err := repo.Summary(ctx, now.Add(time.Hour), 10)
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if empty.TotalScans != 0 || empty.FirstScan != nil {
		t.Errorf("empty summary = %+v", empty)
	}
}

func TestScanRepository_DeleteScansOlderThan(t *testing.T) {
	store := newTestStore(t)
	repo := NewScanRepository(store)
	changes := NewChangeRepository(store)
	ctx := context.Background()
	now := time.Now().UTC()

	old := createScanAt(t, repo, now.AddDate(0, 0, -100), "prod", configMaps(t, 3))
	older := createScanAt(t, repo, now.AddDate(0, 0, -95), "prod", configMaps(t, 3))
	recent := createScanAt(t, repo, now.AddDate(0, 0, -1), "prod", configMaps(t, 3))

	key := scan.NewKey("v1", "ConfigMap", nil, "x")
	if err := changes.ReplaceForPair(ctx, old, older, []change.Record{
		{ResourceKey: key, ChangeType: change.TypeCreated, OldScanID: &old, NewScanID: older},
	}); err != nil {
		t.Fatal(err)
	}
	if err := changes.ReplaceForPair(ctx, older, recent, []change.Record{
		{ResourceKey: key, ChangeType: change.TypeDeleted, OldScanID: &older, NewScanID: recent},
	}); err != nil {
		t.Fatal(err)
	}

	deleted, err := repo.DeleteScansOlderThan(ctx, now.AddDate(0, 0, -90))
	if err != nil {
		t.Fatalf("DeleteScansOlderThan() error = %v", err)
	}
	if deleted != 2 {
		t.Errorf("DeleteScansOlderThan() = %d, want 2", deleted)
	}

	if _, err := repo.GetByID(ctx, old); !errors.IsNotFound(err) {
		t.Errorf("old scan still present: %v", err)
	}
	rows, _ := repo.GetResourcesForScan(ctx, old)
	if len(rows) != 0 {
		t.Errorf("old scan left %d resource rows", len(rows))
	}
	if left, _ := changes.ListForScan(ctx, recent); len(left) != 0 {
		t.Errorf("change records referencing deleted scans survived: %d", len(left))
	}
	if rows, _ := repo.GetResourcesForScan(ctx, recent); len(rows) != 3 {
		t.Errorf("recent scan has %d rows, want 3", len(rows))
	}
}

func scanIDs(scans []*scan.Scan) []int64 {
	ids := make([]int64, 0, len(scans))
	for _, s := range scans {
		ids = append(ids, s.ID)
	}
	return ids
}
