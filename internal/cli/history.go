package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/pratik-mahalle/snapdrift/internal/domain/scan"
)

func newHistoryCmd(o *options) *cobra.Command {
	var (
		contextName string
		namespace   string
		days        int
		limit       int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent scans, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := o.openApp(cmd.Context())
			if err != nil {
				return err
			}

			filter := scan.RecentFilter{SinceDays: days, Limit: limit}
			if cmd.Flags().Changed("context") {
				filter.Context = &contextName
			}
			if cmd.Flags().Changed("namespace") {
				filter.Namespace = &namespace
			}

			scans, err := a.scans.GetRecentScans(cmd.Context(), filter)
			if err != nil {
				return err
			}

			p := o.printer(cmd.OutOrStdout())
			if p.structured() {
				return p.print(scans)
			}
			if len(scans) == 0 {
				p.line("No scans found")
				return nil
			}

			t := p.table("ID", "TIMESTAMP", "CONTEXT", "NAMESPACE", "TYPE", "RESOURCES", "VERSION", "NODES")
			for _, s := range scans {
				t.AddRow(
					strconv.FormatInt(s.ID, 10),
					formatTime(s.Timestamp),
					s.Context,
					formatNamespace(s.Namespace),
					string(s.ScanType),
					strconv.Itoa(s.TotalResources),
					s.ClusterVersion,
					strconv.Itoa(s.NodeCount),
				)
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&contextName, "context", "", "only scans of this context")
	cmd.Flags().StringVarP(&namespace, "namespace", "n", "", "only scans of this namespace")
	cmd.Flags().IntVar(&days, "days", 0, "only scans from the last N days")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of scans")

	return cmd
}

func newChangesCmd(o *options) *cobra.Command {
	var (
		contextName string
		days        int
	)

	cmd := &cobra.Command{
		Use:   "changes [scan-id]",
		Short: "Show the changes detected by a scan, or recent changes",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := o.openApp(cmd.Context())
			if err != nil {
				return err
			}
			p := o.printer(cmd.OutOrStdout())

			if len(args) == 1 {
				id, err := parseID(args[0], "scan id")
				if err != nil {
					return err
				}
				if _, err := a.scans.GetByID(cmd.Context(), id); err != nil {
					return err
				}
				records, err := a.changes.ListForScan(cmd.Context(), id)
				if err != nil {
					return err
				}
				if p.structured() {
					return p.print(records)
				}
				if len(records) == 0 {
					p.line("Scan %d has no recorded changes", id)
					return nil
				}
				renderChanges(p, records)
				return nil
			}

			var ctxFilter *string
			if cmd.Flags().Changed("context") {
				ctxFilter = &contextName
			}
			summary, err := a.analyzer.ChangeSummary(cmd.Context(), ctxFilter, days)
			if err != nil {
				return err
			}
			if p.structured() {
				return p.print(summary)
			}

			p.line("%d changes in the last %d days", summary.TotalChanges, summary.PeriodDays)
			if st := summary.Statistics; st != nil && st.Total > 0 {
				p.line("  by type:      %s", sortedCounts(st.ByType))
				p.line("  by kind:      %s", sortedCounts(st.ByKind))
				p.line("  by namespace: %s", sortedCounts(st.ByNamespace))
			}
			renderChanges(p, summary.RecentChanges)
			return nil
		},
	}

	cmd.Flags().StringVar(&contextName, "context", "", "only changes of this context")
	cmd.Flags().IntVar(&days, "days", 7, "window in days")

	return cmd
}

func newSummaryCmd(o *options) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Summarise the scan history",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := o.openApp(cmd.Context())
			if err != nil {
				return err
			}

			summary, err := a.analyzer.HistoricalSummary(cmd.Context(), days)
			if err != nil {
				return err
			}

			p := o.printer(cmd.OutOrStdout())
			if p.structured() {
				return p.print(summary)
			}

			p.line("%d scans since %s (first %s, last %s)",
				summary.TotalScans, formatTime(summary.Since), formatTimePtr(summary.FirstScan), formatTimePtr(summary.LastScan))

			if len(summary.MostActiveNamespaces) > 0 {
				p.line("")
				t := p.table("NAMESPACE", "OBSERVATIONS")
				for _, n := range summary.MostActiveNamespaces {
					t.AddRow(n.Namespace, strconv.Itoa(n.Count))
				}
				t.Render()
			}
			if len(summary.MostChangedResources) > 0 {
				p.line("")
				t := p.table("RESOURCE", "VERSIONS")
				for _, r := range summary.MostChangedResources {
					t.AddRow(truncate(r.String(), 70), strconv.Itoa(r.Versions))
				}
				t.Render()
			}
			if len(summary.ClusterVersions) > 0 {
				p.line("")
				t := p.table("VERSION", "FIRST SEEN", "LAST SEEN", "SCANS")
				for _, v := range summary.ClusterVersions {
					t.AddRow(v.Version, formatTime(v.FirstSeen), formatTime(v.LastSeen), strconv.Itoa(v.Scans))
				}
				t.Render()
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 30, "window in days")

	return cmd
}

func newEvolutionCmd(o *options) *cobra.Command {
	var (
		contextName string
		days        int
	)

	cmd := &cobra.Command{
		Use:   "evolution",
		Short: "Show how resource counts evolved for a context",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := o.openApp(cmd.Context())
			if err != nil {
				return err
			}
			if contextName == "" {
				contextName = a.cfg.Scanner.Context
			}

			evo, err := a.analyzer.ClusterEvolution(cmd.Context(), contextName, days)
			if err != nil {
				return err
			}

			p := o.printer(cmd.OutOrStdout())
			if p.structured() {
				return p.print(evo)
			}
			if evo.ScanCount == 0 {
				p.line("No scans for context %s in the last %d days", evo.Context, evo.PeriodDays)
				return nil
			}

			t := p.table("SCAN", "TIMESTAMP", "TYPE", "RESOURCES", "CHANGES", "VERSION", "NODES")
			for _, pt := range evo.Points {
				t.AddRow(
					strconv.FormatInt(pt.ScanID, 10),
					formatTime(pt.Timestamp),
					string(pt.ScanType),
					strconv.Itoa(pt.ResourceCount),
					strconv.Itoa(pt.ChangeCount),
					pt.ClusterVersion,
					strconv.Itoa(pt.NodeCount),
				)
			}
			t.Render()
			p.line("resources: initial %d, final %d, peak %d; %d changes",
				evo.Summary.InitialResources, evo.Summary.FinalResources, evo.Summary.PeakResources, evo.Summary.TotalChanges)
			return nil
		},
	}

	cmd.Flags().StringVar(&contextName, "context", "", "cluster context (default SCAN_CONTEXT)")
	cmd.Flags().IntVar(&days, "days", 30, "window in days")

	return cmd
}
