package health

import (
	"context"
	"math"
	"time"

	"github.com/pratik-mahalle/snapdrift/internal/analyzer"
	"github.com/pratik-mahalle/snapdrift/internal/domain/scan"
	"github.com/pratik-mahalle/snapdrift/internal/pkg/logger"
	"github.com/pratik-mahalle/snapdrift/internal/pkg/metrics"
)

const recentScanLimit = 50

// Analysis is the part of the analyzer a health report draws on
type Analysis interface {
	AnalyzeDrift(ctx context.Context, contextName string, days int, baselineScanID *int64) (*analyzer.DriftReport, error)
	ChangeSummary(ctx context.Context, contextName *string, days int) (*analyzer.ChangeSummary, error)
}

// Metrics describes scanning activity in the report window
type Metrics struct {
	TotalScans          int        `json:"total_scans"`
	ScanFrequencyPerDay float64    `json:"scan_frequency_per_day"`
	LatestScanID        int64      `json:"latest_scan_id"`
	LatestScanResources int        `json:"latest_scan_resources"`
	LatestScanDate      *time.Time `json:"latest_scan_date,omitempty"`
}

// Report is the cluster health report for one context
type Report struct {
	Context         string                  `json:"context"`
	GeneratedAt     time.Time               `json:"generated_at"`
	PeriodDays      int                     `json:"period_days"`
	Status          Status                  `json:"status"`
	Message         string                  `json:"message,omitempty"`
	Score           int                     `json:"health_score"`
	Metrics         *Metrics                `json:"metrics,omitempty"`
	Drift           *analyzer.DriftReport   `json:"drift_analysis,omitempty"`
	Changes         *analyzer.ChangeSummary `json:"change_summary,omitempty"`
	Recommendations []string                `json:"recommendations,omitempty"`
}

// Reporter builds health reports
type Reporter struct {
	scans    scan.Repository
	analysis Analysis
	logger   *logger.Logger
}

// NewReporter creates a health reporter
func NewReporter(scans scan.Repository, analysis Analysis, log *logger.Logger) *Reporter {
	return &Reporter{scans: scans, analysis: analysis, logger: log}
}

// Report builds the health report of contextName over the last days. Failing
// drift or change analysis is logged and counts as zero; failing to list
// scans is returned.
func (r *Reporter) Report(ctx context.Context, contextName string, days int) (*Report, error) {
	var filter *string
	if contextName != "" {
		filter = &contextName
	}

	recent, err := r.scans.GetRecentScans(ctx, scan.RecentFilter{
		Context:   filter,
		SinceDays: days,
		Limit:     recentScanLimit,
	})
	if err != nil {
		return nil, err
	}

	report := &Report{
		Context:     contextName,
		GeneratedAt: time.Now().UTC(),
		PeriodDays:  days,
	}

	if len(recent) == 0 {
		report.Status = StatusNoData
		report.Message = "No recent scan data available"
		return report, nil
	}

	var frequency float64
	if days > 0 {
		frequency = float64(len(recent)) / float64(days)
	}

	latest := recent[0]
	latestAt := latest.Timestamp
	report.Metrics = &Metrics{
		TotalScans:          len(recent),
		ScanFrequencyPerDay: math.Round(frequency*100) / 100,
		LatestScanID:        latest.ID,
		LatestScanResources: latest.TotalResources,
		LatestScanDate:      &latestAt,
	}

	log := r.logger.WithFields(map[string]interface{}{
		"context": contextName,
		"days":    days,
	})

	in := Inputs{ScanFrequencyPerDay: frequency}

	drift, err := r.analysis.AnalyzeDrift(ctx, contextName, days, nil)
	if err != nil {
		log.WithError(err).Warn("Drift analysis failed, scoring without drift data")
	} else if drift != nil {
		report.Drift = drift
		in.DriftEvents = drift.TotalDriftEvents
		for _, u := range drift.MostUnstable {
			in.UnstableResources = append(in.UnstableResources, u.ResourceKey.String())
		}
	}

	changes, err := r.analysis.ChangeSummary(ctx, filter, days)
	if err != nil {
		log.WithError(err).Warn("Change summary failed, scoring without change data")
	} else if changes != nil {
		report.Changes = changes
		in.ChangeVolume = changes.TotalChanges
	}

	report.Score = Score(in.DriftEvents, in.ChangeVolume, frequency)
	report.Status = Classify(report.Score)
	in.Score = report.Score
	report.Recommendations = Recommendations(in)

	metrics.SetHealth(contextName, report.Score, in.DriftEvents)

	log.WithFields(map[string]interface{}{
		"score":  report.Score,
		"status": report.Status,
	}).Info("Health report generated")

	return report, nil
}
