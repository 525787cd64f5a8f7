package reconciler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/pratik-mahalle/snapdrift/internal/domain/change"
	"github.com/pratik-mahalle/snapdrift/internal/domain/scan"
	apperrors "github.com/pratik-mahalle/snapdrift/internal/pkg/errors"
	"github.com/pratik-mahalle/snapdrift/internal/pkg/logger"
	"github.com/pratik-mahalle/snapdrift/internal/repository/sqldb"
	"github.com/pratik-mahalle/snapdrift/internal/testutil"
)

type fixture struct {
	scans      scan.Repository
	changes    change.Repository
	reconciler *Reconciler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := sqldb.Wrap(testutil.NewTestDB(t), sqldb.SQLite{})
	f := &fixture{
		scans:   sqldb.NewScanRepository(db),
		changes: sqldb.NewChangeRepository(db),
	}
	f.reconciler = New(f.scans, f.changes, logger.Nop())
	return f
}

func (f *fixture) snapshot(t *testing.T, docs ...map[string]interface{}) int64 {
	t.Helper()
	id, err := f.scans.CreateWithResources(context.Background(),
		&scan.Scan{Timestamp: time.Now().UTC(), Context: "test", ScanType: scan.TypeCluster},
		testutil.Resources(t, docs...))
	if err != nil {
		t.Fatalf("CreateWithResources() error = %v", err)
	}
	return id
}

func pod(name string) map[string]interface{} {
	return testutil.Doc("v1", "Pod", "default", name, map[string]interface{}{"image": "nginx"})
}

func service(port int) map[string]interface{} {
	return testutil.Doc("v1", "Service", "default", "b", map[string]interface{}{"port": port})
}

func configMap(name string) map[string]interface{} {
	return testutil.Doc("v1", "ConfigMap", "default", name, map[string]interface{}{"key": "value"})
}

func TestReconcile_Scenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.snapshot(t, pod("a"), service(80), configMap("c"))
	second := f.snapshot(t, pod("a"), service(8080), configMap("d"))

	records, err := f.reconciler.Reconcile(ctx, second, nil)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}

	type want struct {
		changeType change.Type
		key        string
	}
	expected := []want{
		{change.TypeCreated, "v1/ConfigMap/default/d"},
		{change.TypeUpdated, "v1/Service/default/b"},
		{change.TypeDeleted, "v1/ConfigMap/default/c"},
	}
	if len(records) != len(expected) {
		t.Fatalf("Reconcile() returned %d records, want %d", len(records), len(expected))
	}
	for i, w := range expected {
		rec := records[i]
		if rec.ChangeType != w.changeType || rec.ResourceKey.String() != w.key {
			t.Errorf("record %d = %s %s, want %s %s", i, rec.ChangeType, rec.ResourceKey, w.changeType, w.key)
		}
		if rec.NewScanID != second || rec.OldScanID == nil || *rec.OldScanID != first {
			t.Errorf("record %d scans = (%v, %d), want (%d, %d)", i, rec.OldScanID, rec.NewScanID, first, second)
		}
	}

	updated := records[1]
	if len(updated.Diff) != 1 || updated.Diff[0].Path != "spec.port" || updated.Diff[0].Type != change.FieldModified {
		t.Errorf("updated Diff = %+v", updated.Diff)
	}

	stored, err := f.changes.ListForScan(ctx, second)
	if err != nil {
		t.Fatalf("ListForScan() error = %v", err)
	}
	if len(stored) != 3 {
		t.Errorf("ListForScan() returned %d records, want 3", len(stored))
	}

	cmp, err := f.reconciler.Compare(ctx, first, second)
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if len(cmp.Unchanged) != 1 || cmp.Unchanged[0].Name != "a" {
		t.Errorf("Unchanged = %v, want [a]", cmp.Unchanged)
	}
}

func TestReconcile_FirstScanHasNoBaseline(t *testing.T) {
	f := newFixture(t)

	id := f.snapshot(t, pod("a"))

	records, err := f.reconciler.Reconcile(context.Background(), id, nil)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if records == nil || len(records) != 0 {
		t.Errorf("Reconcile() = %v, want empty list", records)
	}
}

func TestReconcile_IdenticalRescan(t *testing.T) {
	f := newFixture(t)

	docs := []map[string]interface{}{pod("a"), service(80), configMap("c")}
	f.snapshot(t, docs...)

	// runtime churn only
	rescanned := []map[string]interface{}{pod("a"), service(80), configMap("c")}
	for _, d := range rescanned {
		d["metadata"].(map[string]interface{})["resourceVersion"] = "42"
		d["status"] = map[string]interface{}{"phase": "Pending"}
	}
	second := f.snapshot(t, rescanned...)

	records, err := f.reconciler.Reconcile(context.Background(), second, nil)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if len(records) != 0 {
		t.Errorf("Reconcile() returned %d records for an identical rescan", len(records))
	}
}

func TestReconcile_UpdateDiffIgnoresStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	before := service(80)
	before["status"] = map[string]interface{}{"loadBalancer": "pending"}
	first := f.snapshot(t, before)

	after := service(8080)
	after["status"] = map[string]interface{}{"loadBalancer": "ready"}
	after["metadata"].(map[string]interface{})["resourceVersion"] = "7"
	second := f.snapshot(t, after)

	records, err := f.reconciler.Reconcile(ctx, second, &first)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if len(records) != 1 || records[0].ChangeType != change.TypeUpdated {
		t.Fatalf("Reconcile() = %+v, want one update", records)
	}
	diff := records[0].Diff
	if len(diff) != 1 || diff[0].Path != "spec.port" {
		t.Errorf("updated Diff = %+v, want only spec.port", diff)
	}

	cmp, err := f.reconciler.Compare(ctx, first, second)
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if _, ok := cmp.Updated[0].New.Document["status"]; !ok {
		t.Error("stored document should keep status")
	}
}

func TestReconcile_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.snapshot(t, pod("a"), service(80))
	second := f.snapshot(t, pod("z"), service(81))

	for i := 0; i < 2; i++ {
		if _, err := f.reconciler.Reconcile(ctx, second, &first); err != nil {
			t.Fatalf("Reconcile() run %d error = %v", i, err)
		}
	}

	stored, err := f.changes.ListForScan(ctx, second)
	if err != nil {
		t.Fatalf("ListForScan() error = %v", err)
	}
	if len(stored) != 3 {
		t.Errorf("ListForScan() returned %d records after two runs, want 3", len(stored))
	}
}

func TestReconcile_ReversedIDsDeletionReferencesLaterScan(t *testing.T) {
	f := newFixture(t)

	first := f.snapshot(t, pod("a"))
	second := f.snapshot(t, pod("b"))

	// caller treats the later scan as the baseline
	records, err := f.reconciler.Reconcile(context.Background(), first, &second)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}

	for _, rec := range records {
		if rec.ChangeType == change.TypeDeleted && (rec.NewScanID != second || *rec.OldScanID != first) {
			t.Errorf("deleted record scans = (%d, %d), want (%d, %d)", *rec.OldScanID, rec.NewScanID, first, second)
		}
	}
}

func TestReconcile_NotFound(t *testing.T) {
	f := newFixture(t)
	existing := f.snapshot(t, pod("a"))
	missing := int64(999)

	tests := []struct {
		name  string
		newID int64
		oldID *int64
	}{
		{"missing new scan, implicit baseline", missing, nil},
		{"missing new scan", missing, &existing},
		{"missing old scan", existing, &missing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.reconciler.Reconcile(context.Background(), tt.newID, tt.oldID)
			if !apperrors.IsNotFound(err) {
				t.Errorf("Reconcile() error = %v, want NotFound", err)
			}
		})
	}
}

func TestReconcile_StoreFailurePropagates(t *testing.T) {
	db := sqldb.Wrap(testutil.NewTestDB(t), sqldb.SQLite{})
	scans := sqldb.NewScanRepository(db)
	changes := testutil.NewMockChangeRepository()
	changes.ReplaceErr = apperrors.StorageUnavailable("write failed", nil)
	r := New(scans, changes, logger.Nop())

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := scans.CreateWithResources(ctx, &scan.Scan{Timestamp: time.Now()}, testutil.Resources(t, pod(fmt.Sprint(i)))); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := r.Reconcile(ctx, 2, nil); !apperrors.IsStorageUnavailable(err) {
		t.Errorf("Reconcile() error = %v, want StorageUnavailable", err)
	}
}

func TestDiff_Partition(t *testing.T) {
	old := testutil.Resources(t, pod("a"), pod("b"), service(80), configMap("c"))
	new := testutil.Resources(t, pod("a"), service(81), configMap("c"), configMap("d"), configMap("e"))

	result := Diff(old, new)

	seen := map[scan.ResourceKey]int{}
	for _, r := range result.Created {
		seen[r.ResourceKey]++
	}
	for _, r := range result.Deleted {
		seen[r.ResourceKey]++
	}
	for _, p := range result.Updated {
		seen[p.New.ResourceKey]++
	}
	for _, k := range result.Unchanged {
		seen[k]++
	}

	union := map[scan.ResourceKey]bool{}
	for _, r := range append(old, new...) {
		union[r.ResourceKey] = true
	}

	if len(seen) != len(union) {
		t.Errorf("partition covers %d keys, union has %d", len(seen), len(union))
	}
	for k, n := range seen {
		if n != 1 {
			t.Errorf("key %s appears in %d partitions", k, n)
		}
	}

	if len(result.Created) != 2 || result.Created[0].Name != "d" || result.Created[1].Name != "e" {
		t.Errorf("Created = %v, want sorted [d e]", result.Created)
	}
	if len(result.Deleted) != 1 || result.Deleted[0].Name != "b" {
		t.Errorf("Deleted = %v, want [b]", result.Deleted)
	}
	if result.ChangeCount() != 4 {
		t.Errorf("ChangeCount() = %d, want 4", result.ChangeCount())
	}
}

func TestDiff_NamespaceScopeDistinct(t *testing.T) {
	cluster := testutil.Doc("v1", "Thing", "", "x", nil)
	emptyNs := testutil.Doc("v1", "Thing", "", "x", nil)
	emptyNs["metadata"].(map[string]interface{})["namespace"] = ""

	result := Diff(testutil.Resources(t, cluster), testutil.Resources(t, emptyNs))
	if len(result.Created) != 1 || len(result.Deleted) != 1 {
		t.Errorf("Diff() = %d created, %d deleted, want 1 and 1", len(result.Created), len(result.Deleted))
	}
}
