package health

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/pratik-mahalle/snapdrift/internal/analyzer"
	"github.com/pratik-mahalle/snapdrift/internal/domain/scan"
	apperrors "github.com/pratik-mahalle/snapdrift/internal/pkg/errors"
	"github.com/pratik-mahalle/snapdrift/internal/pkg/logger"
	"github.com/pratik-mahalle/snapdrift/internal/repository/sqldb"
	"github.com/pratik-mahalle/snapdrift/internal/testutil"
)

func TestScore(t *testing.T) {
	tests := []struct {
		name      string
		drift     int
		changes   int
		frequency float64
		want      int
	}{
		{"quiet cluster", 0, 0, 1, 100},
		{"at thresholds", 10, 50, 0.5, 100},
		{"drift just above threshold", 11, 0, 1, 98},
		{"drift penalty capped", 100, 0, 1, 70},
		{"change volume rounds down", 0, 59, 1, 100},
		{"change volume penalty", 0, 120, 1, 93},
		{"change penalty capped", 0, 5000, 1, 80},
		{"infrequent scanning", 0, 0, 0.49, 80},
		{"combined", 25, 120, 0.2, 43},
		{"every penalty capped", 1000, 100000, 0, 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Score(tt.drift, tt.changes, tt.frequency); got != tt.want {
				t.Errorf("Score(%d, %d, %v) = %d, want %d", tt.drift, tt.changes, tt.frequency, got, tt.want)
			}
		})
	}
}

func TestScore_NeverNegative(t *testing.T) {
	for _, drift := range []int{0, 11, 1 << 20} {
		for _, changes := range []int{0, 51, 1 << 30} {
			for _, freq := range []float64{0, 0.1, 10} {
				if got := Score(drift, changes, freq); got < 0 || got > 100 {
					t.Errorf("Score(%d, %d, %v) = %d, out of range", drift, changes, freq, got)
				}
			}
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		score int
		want  Status
	}{
		{100, StatusHealthy},
		{80, StatusHealthy},
		{79, StatusWarning},
		{60, StatusWarning},
		{59, StatusCritical},
		{43, StatusCritical},
		{0, StatusCritical},
	}

	for _, tt := range tests {
		if got := Classify(tt.score); got != tt.want {
			t.Errorf("Classify(%d) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestRecommendations(t *testing.T) {
	tests := []struct {
		name string
		in   Inputs
		want []string
	}{
		{
			name: "healthy",
			in:   Inputs{Score: 100, ScanFrequencyPerDay: 2},
			want: []string{"Cluster appears healthy - continue regular monitoring"},
		},
		{
			name: "needs attention",
			in:   Inputs{Score: 70, ScanFrequencyPerDay: 2},
			want: []string{"Cluster health needs attention - review configuration drift"},
		},
		{
			name: "everything fires in order",
			in: Inputs{
				Score:               43,
				ScanFrequencyPerDay: 0.2,
				DriftEvents:         25,
				UnstableResources:   []string{"v1/Pod/default/a", "v1/Pod/default/b", "v1/Pod/default/c", "v1/Pod/default/d"},
				ChangeVolume:        120,
			},
			want: []string{
				"Cluster health is critical - investigate recent changes and drift",
				"Increase scanning frequency for better monitoring coverage",
				"High configuration drift detected - review change management processes",
				"Focus on stabilizing frequently changing resources: v1/Pod/default/a, v1/Pod/default/b, v1/Pod/default/c",
				"High change volume - consider implementing change freezes or approval processes",
			},
		},
		{
			name: "healthy score with unstable resources",
			in:   Inputs{Score: 90, ScanFrequencyPerDay: 1, UnstableResources: []string{"v1/Node/n1"}},
			want: []string{"Focus on stabilizing frequently changing resources: v1/Node/n1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Recommendations(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Recommendations() = %q, want %q", got, tt.want)
			}
		})
	}
}

type fakeAnalysis struct {
	drift     *analyzer.DriftReport
	driftErr  error
	changes   *analyzer.ChangeSummary
	changeErr error
}

func (f *fakeAnalysis) AnalyzeDrift(ctx context.Context, contextName string, days int, baselineScanID *int64) (*analyzer.DriftReport, error) {
	return f.drift, f.driftErr
}

func (f *fakeAnalysis) ChangeSummary(ctx context.Context, contextName *string, days int) (*analyzer.ChangeSummary, error) {
	return f.changes, f.changeErr
}

func seedScans(t *testing.T, repo scan.Repository, contextName string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		s := &scan.Scan{Timestamp: time.Now().UTC().Add(-time.Duration(n-i) * time.Hour), Context: contextName}
		if _, err := repo.CreateWithResources(context.Background(), s, nil); err != nil {
			t.Fatalf("CreateWithResources() error = %v", err)
		}
	}
}

func newScanRepo(t *testing.T) scan.Repository {
	t.Helper()
	return sqldb.NewScanRepository(sqldb.Wrap(testutil.NewTestDB(t), sqldb.SQLite{}))
}

func TestReporter_Report(t *testing.T) {
	repo := newScanRepo(t)
	seedScans(t, repo, "prod", 2)

	analysis := &fakeAnalysis{
		drift: &analyzer.DriftReport{
			TotalDriftEvents: 25,
			MostUnstable: []analyzer.UnstableResource{
				{ResourceKey: scan.NewKey("v1", "Node", nil, "n1"), Changes: 4},
			},
		},
		changes: &analyzer.ChangeSummary{TotalChanges: 120},
	}
	r := NewReporter(repo, analysis, logger.Nop())

	report, err := r.Report(context.Background(), "prod", 10)
	if err != nil {
		t.Fatalf("Report() error = %v", err)
	}

	// frequency 2/10 = 0.2
	if report.Score != 43 || report.Status != StatusCritical {
		t.Errorf("Score = %d, Status = %s, want 43 critical", report.Score, report.Status)
	}
	if report.Metrics == nil || report.Metrics.TotalScans != 2 || report.Metrics.ScanFrequencyPerDay != 0.2 {
		t.Errorf("Metrics = %+v", report.Metrics)
	}
	if len(report.Recommendations) != 5 {
		t.Errorf("Recommendations = %q, want 5", report.Recommendations)
	}
}

func TestReporter_DegradesWhenAnalysisFails(t *testing.T) {
	repo := newScanRepo(t)
	seedScans(t, repo, "prod", 3)

	analysis := &fakeAnalysis{
		driftErr:  apperrors.StorageUnavailable("drift query failed", nil),
		changeErr: errors.New("change query failed"),
	}
	r := NewReporter(repo, analysis, logger.Nop())

	report, err := r.Report(context.Background(), "prod", 1)
	if err != nil {
		t.Fatalf("Report() error = %v", err)
	}
	if report.Score != 100 || report.Status != StatusHealthy {
		t.Errorf("Score = %d, Status = %s, want 100 healthy", report.Score, report.Status)
	}
	if report.Drift != nil || report.Changes != nil {
		t.Error("failed sub-analyses should be omitted from the report")
	}
}

func TestReporter_NoData(t *testing.T) {
	repo := newScanRepo(t)
	seedScans(t, repo, "dev", 1)

	r := NewReporter(repo, &fakeAnalysis{}, logger.Nop())

	report, err := r.Report(context.Background(), "prod", 7)
	if err != nil {
		t.Fatalf("Report() error = %v", err)
	}
	if report.Status != StatusNoData || report.Message == "" {
		t.Errorf("Report() = %+v, want no_data", report)
	}
}

func TestReporter_ScanListFailurePropagates(t *testing.T) {
	mock := testutil.NewMockScanRepository(newScanRepo(t))
	mock.RecentError = apperrors.StorageUnavailable("database is locked", nil)

	r := NewReporter(mock, &fakeAnalysis{}, logger.Nop())

	if _, err := r.Report(context.Background(), "prod", 7); !apperrors.IsStorageUnavailable(err) {
		t.Errorf("Report() error = %v, want StorageUnavailable", err)
	}
}

func TestReporter_WithAnalyzer(t *testing.T) {
	db := sqldb.Wrap(testutil.NewTestDB(t), sqldb.SQLite{})
	scans := sqldb.NewScanRepository(db)
	changes := sqldb.NewChangeRepository(db)
	a := analyzer.New(scans, changes, nil, logger.Nop())

	seedScans(t, scans, "prod", 1)

	report, err := NewReporter(scans, a, logger.Nop()).Report(context.Background(), "prod", 1)
	if err != nil {
		t.Fatalf("Report() error = %v", err)
	}
	if report.Drift == nil || !report.Drift.InsufficientData {
		t.Errorf("Drift = %+v, want insufficient data", report.Drift)
	}
	if report.Status != StatusHealthy {
		t.Errorf("Status = %s, want healthy", report.Status)
	}
}
