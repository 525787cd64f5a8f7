package sqldb

import (
	"context"
	"testing"
	"time"

	"github.com/pratik-mahalle/snapdrift/internal/domain/change"
	"github.com/pratik-mahalle/snapdrift/internal/domain/scan"
)

func TestChangeRepository_ReplaceForPair(t *testing.T) {
	store := newTestStore(t)
	scans := NewScanRepository(store)
	repo := NewChangeRepository(store)
	ctx := context.Background()

	a := createScanAt(t, scans, time.Now().Add(-time.Hour), "prod", nil)
	b := createScanAt(t, scans, time.Now(), "prod", nil)

	ns := "default"
	records := func() []change.Record {
		return []change.Record{
			{ResourceKey: scan.NewKey("v1", "ConfigMap", &ns, "d"), ChangeType: change.TypeCreated, OldScanID: &a, NewScanID: b},
			{
				ResourceKey: scan.NewKey("v1", "Service", &ns, "b"),
				ChangeType:  change.TypeUpdated,
				OldScanID:   &a,
				NewScanID:   b,
				Diff:        []change.FieldChange{{Path: "spec.port", Type: change.FieldModified, OldValue: float64(80), NewValue: float64(8080)}},
				Summary:     "1 field(s) modified",
			},
		}
	}

	first := records()
	if err := repo.ReplaceForPair(ctx, a, b, first); err != nil {
		t.Fatalf("ReplaceForPair() error = %v", err)
	}
	if first[0].ID == 0 || first[1].ID == 0 {
		t.Error("ReplaceForPair() did not assign ids")
	}

	// same pair, reversed order: replaces instead of duplicating
	if err := repo.ReplaceForPair(ctx, b, a, records()); err != nil {
		t.Fatalf("second ReplaceForPair() error = %v", err)
	}

	got, err := repo.ListForScan(ctx, b)
	if err != nil {
		t.Fatalf("ListForScan() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListForScan() returned %d records, want 2", len(got))
	}

	updated := got[1]
	if updated.ChangeType != change.TypeUpdated || updated.Kind != "Service" {
		t.Errorf("record = %+v", updated)
	}
	if updated.OldScanID == nil || *updated.OldScanID != a {
		t.Errorf("OldScanID = %v, want %d", updated.OldScanID, a)
	}
	if len(updated.Diff) != 1 || updated.Diff[0].Path != "spec.port" || updated.Diff[0].NewValue != float64(8080) {
		t.Errorf("Diff = %+v", updated.Diff)
	}
	if updated.Summary != "1 field(s) modified" {
		t.Errorf("Summary = %q", updated.Summary)
	}
	if updated.DetectedAt.IsZero() {
		t.Error("DetectedAt not stored")
	}
}

func TestChangeRepository_ListRecentAndStatistics(t *testing.T) {
	store := newTestStore(t)
	scans := NewScanRepository(store)
	repo := NewChangeRepository(store)
	ctx := context.Background()
	now := time.Now().UTC()

	p1 := createScanAt(t, scans, now.Add(-3*time.Hour), "prod", nil)
	p2 := createScanAt(t, scans, now.Add(-2*time.Hour), "prod", nil)
	d1 := createScanAt(t, scans, now.Add(-3*time.Hour), "dev", nil)
	d2 := createScanAt(t, scans, now.Add(-time.Hour), "dev", nil)

	def := "default"
	sys := "kube-system"
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}

	must(repo.ReplaceForPair(ctx, p1, p2, []change.Record{
		{ResourceKey: scan.NewKey("v1", "Pod", &def, "a"), ChangeType: change.TypeCreated, OldScanID: &p1, NewScanID: p2},
		{ResourceKey: scan.NewKey("v1", "Pod", &sys, "b"), ChangeType: change.TypeUpdated, OldScanID: &p1, NewScanID: p2},
		{ResourceKey: scan.NewKey("v1", "Node", nil, "n"), ChangeType: change.TypeDeleted, OldScanID: &p1, NewScanID: p2},
	}))
	must(repo.ReplaceForPair(ctx, d1, d2, []change.Record{
		{ResourceKey: scan.NewKey("v1", "Service", &def, "s"), ChangeType: change.TypeCreated, OldScanID: &d1, NewScanID: d2},
	}))

	prod := "prod"
	recent, err := repo.ListRecent(ctx, change.Filter{Context: &prod})
	if err != nil {
		t.Fatalf("ListRecent() error = %v", err)
	}
	if len(recent) != 3 {
		t.Errorf("ListRecent(prod) returned %d, want 3", len(recent))
	}

	limited, err := repo.ListRecent(ctx, change.Filter{Limit: 2})
	if err != nil {
		t.Fatalf("ListRecent() error = %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("ListRecent(limit 2) returned %d", len(limited))
	}

	stats, err := repo.Statistics(ctx, change.Filter{Context: &prod})
	if err != nil {
		t.Fatalf("Statistics() error = %v", err)
	}
	if stats.Total != 3 {
		t.Errorf("Total = %d, want 3", stats.Total)
	}
	if stats.ByType["created"] != 1 || stats.ByType["updated"] != 1 || stats.ByType["deleted"] != 1 {
		t.Errorf("ByType = %v", stats.ByType)
	}
	if stats.ByNamespace["default"] != 1 || stats.ByNamespace[clusterScopedLabel] != 1 {
		t.Errorf("ByNamespace = %v", stats.ByNamespace)
	}
	if stats.ByKind["Pod"] != 2 {
		t.Errorf("ByKind = %v", stats.ByKind)
	}

	all, err := repo.Statistics(ctx, change.Filter{Since: now.AddDate(0, 0, -1)})
	if err != nil {
		t.Fatalf("Statistics() error = %v", err)
	}
	if all.Total != 4 {
		t.Errorf("Total across contexts = %d, want 4", all.Total)
	}
}
