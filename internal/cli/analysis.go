package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pratik-mahalle/snapdrift/internal/api/handlers"
	"github.com/pratik-mahalle/snapdrift/internal/domain/scan"
)

func checkDays(days int) error {
	if days < 1 || days > handlers.MaxWindowDays {
		return fmt.Errorf("days must be between 1 and %d", handlers.MaxWindowDays)
	}
	return nil
}

func newCompareCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "compare <scan-a> <scan-b>",
		Short: "Compare two scans",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			scanA, err := parseID(args[0], "scan id")
			if err != nil {
				return err
			}
			scanB, err := parseID(args[1], "scan id")
			if err != nil {
				return err
			}

			a, err := o.openApp(cmd.Context())
			if err != nil {
				return err
			}
			report, err := a.analyzer.CompareScans(cmd.Context(), scanA, scanB)
			if err != nil {
				return err
			}

			p := o.printer(cmd.OutOrStdout())
			if p.structured() {
				return p.print(report)
			}

			s := report.Summary
			p.line("Scan %d (%d resources) -> scan %d (%d resources)",
				report.ScanA.ID, report.ScanA.ResourceCount, report.ScanB.ID, report.ScanB.ResourceCount)
			p.line("added %d, removed %d, modified %d, unchanged %d, net %+d",
				s.TotalAdded, s.TotalRemoved, s.TotalModified, s.TotalUnchanged, s.NetChange)

			t := p.table("CHANGE", "RESOURCE", "DETAIL")
			for _, k := range report.Added {
				t.AddRow(p.formatStatus("created"), truncate(k.String(), 60), "")
			}
			for _, m := range report.Modified {
				paths := make([]string, 0, len(m.Diff))
				for _, d := range m.Diff {
					paths = append(paths, d.Path)
				}
				t.AddRow(p.formatStatus("updated"), truncate(m.String(), 60), truncate(strings.Join(paths, ", "), 60))
			}
			for _, k := range report.Removed {
				t.AddRow(p.formatStatus("deleted"), truncate(k.String(), 60), "")
			}
			if len(report.Added)+len(report.Modified)+len(report.Removed) > 0 {
				t.Render()
			}
			return nil
		},
	}
}

func newDriftCmd(o *options) *cobra.Command {
	var (
		contextName string
		days        int
		baseline    int64
	)

	cmd := &cobra.Command{
		Use:   "drift",
		Short: "Analyse drift from a baseline scan",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := o.openApp(cmd.Context())
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("days") {
				days = a.cfg.Scanner.DriftWindowDays
			}
			if err := checkDays(days); err != nil {
				return err
			}
			if contextName == "" {
				contextName = a.cfg.Scanner.Context
			}
			var baselineID *int64
			if cmd.Flags().Changed("baseline") {
				baselineID = &baseline
			}

			report, err := a.analyzer.AnalyzeDrift(cmd.Context(), contextName, days, baselineID)
			if err != nil {
				return err
			}

			p := o.printer(cmd.OutOrStdout())
			if p.structured() {
				return p.print(report)
			}
			if report.InsufficientData {
				p.line("%s: %s", p.formatStatus("insufficient_data"), report.Message)
				return nil
			}

			p.line("Context %s, %d scans over %d days, baseline scan %d",
				report.Context, report.AvailableScans, report.PeriodDays, report.Baseline.ID)
			p.line("%d drift events across %d resources, stability %.2f",
				report.TotalDriftEvents, len(report.ResourcesWithDrift), report.StabilityScore)

			t := p.table("SCAN", "TIMESTAMP", "ADDED", "REMOVED", "MODIFIED", "SCORE")
			for _, pt := range report.Points {
				t.AddRow(
					strconv.FormatInt(pt.ScanID, 10),
					formatTime(pt.Timestamp),
					strconv.Itoa(len(pt.Added)),
					strconv.Itoa(len(pt.Removed)),
					strconv.Itoa(len(pt.Modified)),
					strconv.Itoa(pt.Score),
				)
			}
			t.Render()

			if len(report.MostUnstable) > 0 {
				p.line("")
				u := p.table("UNSTABLE RESOURCE", "CHANGES")
				for _, r := range report.MostUnstable {
					u.AddRow(truncate(r.String(), 70), strconv.Itoa(r.Changes))
				}
				u.Render()
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&contextName, "context", "", "cluster context (default SCAN_CONTEXT)")
	cmd.Flags().IntVar(&days, "days", 7, "window in days (default DRIFT_WINDOW_DAYS)")
	cmd.Flags().Int64Var(&baseline, "baseline", 0, "baseline scan id (default the oldest scan in the window)")

	return cmd
}

func newTimelineCmd(o *options) *cobra.Command {
	var (
		apiVersion string
		kind       string
		namespace  string
		days       int
	)

	cmd := &cobra.Command{
		Use:   "timeline <name>",
		Short: "Show every observation of one resource",
		Long: `Show every observation of one resource. Omit --namespace to select a
cluster-scoped resource.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkDays(days); err != nil {
				return err
			}
			var ns *string
			if cmd.Flags().Changed("namespace") {
				ns = &namespace
			}
			key := scan.NewKey(apiVersion, kind, ns, args[0])

			a, err := o.openApp(cmd.Context())
			if err != nil {
				return err
			}
			timeline, err := a.analyzer.ResourceTimeline(cmd.Context(), key, days)
			if err != nil {
				return err
			}

			p := o.printer(cmd.OutOrStdout())
			if p.structured() {
				return p.print(timeline)
			}
			if timeline.Summary.Observations == 0 {
				p.line("%s was not observed in the last %d days", key, days)
				return nil
			}

			t := p.table("SCAN", "TIMESTAMP", "CONTEXT", "HASH", "CHANGED")
			for _, e := range timeline.Entries {
				changed := "-"
				if e.Changed != nil {
					changed = strconv.FormatBool(*e.Changed)
				}
				t.AddRow(strconv.FormatInt(e.ScanID, 10), formatTime(e.Timestamp), e.Context, truncate(e.Hash, 16), changed)
			}
			t.Render()
			s := timeline.Summary
			p.line("%d observations, %d versions, %d changes", s.Observations, s.TotalVersions, s.TotalChanges)
			return nil
		},
	}

	cmd.Flags().StringVar(&apiVersion, "api-version", "v1", "resource apiVersion")
	cmd.Flags().StringVar(&kind, "kind", "", "resource kind")
	cmd.Flags().StringVarP(&namespace, "namespace", "n", "", "resource namespace")
	cmd.Flags().IntVar(&days, "days", 30, "window in days")
	_ = cmd.MarkFlagRequired("kind")

	return cmd
}

func newHealthCmd(o *options) *cobra.Command {
	var (
		contextName string
		days        int
	)

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Score the health of a cluster context",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := o.openApp(cmd.Context())
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("days") {
				days = a.cfg.Scanner.DriftWindowDays
			}
			if err := checkDays(days); err != nil {
				return err
			}
			if contextName == "" {
				contextName = a.cfg.Scanner.Context
			}

			report, err := a.reporter.Report(cmd.Context(), contextName, days)
			if err != nil {
				return err
			}

			p := o.printer(cmd.OutOrStdout())
			if p.structured() {
				return p.print(report)
			}
			if report.Metrics == nil {
				p.line("%s: %s", report.Context, report.Message)
				return nil
			}

			p.line("%s: %s (score %d)", report.Context, p.formatStatus(string(report.Status)), report.Score)
			m := report.Metrics
			p.line("  %d scans, %.2f per day, latest scan %d with %d resources at %s",
				m.TotalScans, m.ScanFrequencyPerDay, m.LatestScanID, m.LatestScanResources, formatTimePtr(m.LatestScanDate))
			for _, r := range report.Recommendations {
				p.line("  - %s", r)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&contextName, "context", "", "cluster context (default SCAN_CONTEXT)")
	cmd.Flags().IntVar(&days, "days", 7, "window in days (default DRIFT_WINDOW_DAYS)")

	return cmd
}
