package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/pratik-mahalle/snapdrift/pkg/client"
)

func newRemoteCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Query a running snapdrift server",
		Long:  `Query a running snapdrift server over its HTTP API. Use --server or server_url to select it.`,
	}

	cmd.AddCommand(newRemoteScansCmd(o))
	cmd.AddCommand(newRemoteChangesCmd(o))
	cmd.AddCommand(newRemoteDriftCmd(o))
	cmd.AddCommand(newRemoteTimelineCmd(o))
	cmd.AddCommand(newRemoteHealthCmd(o))

	return cmd
}

func newRemoteScansCmd(o *options) *cobra.Command {
	var (
		contextName string
		namespace   string
		days        int
		limit       int
	)

	cmd := &cobra.Command{
		Use:   "scans",
		Short: "List recent scans",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := &client.ScanListOptions{Days: days, Limit: limit}
			if cmd.Flags().Changed("context") {
				opts.Context = &contextName
			}
			if cmd.Flags().Changed("namespace") {
				opts.Namespace = &namespace
			}

			scans, err := o.apiClient().Scans().List(cmd.Context(), opts)
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

			t := p.table("ID", "TIMESTAMP", "CONTEXT", "NAMESPACE", "TYPE", "RESOURCES")
			for _, s := range scans {
				t.AddRow(
					strconv.FormatInt(s.ID, 10),
					formatTime(s.Timestamp),
					s.Context,
					formatNamespace(s.Namespace),
					s.ScanType,
					strconv.Itoa(s.TotalResources),
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

func newRemoteChangesCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "changes <scan-id>",
		Short: "Show the changes detected by a scan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "scan id")
			if err != nil {
				return err
			}

			records, err := o.apiClient().Scans().Changes(cmd.Context(), id)
			if err != nil {
				return err
			}

			p := o.printer(cmd.OutOrStdout())
			if p.structured() {
				return p.print(records)
			}
			if len(records) == 0 {
				p.line("Scan %d has no recorded changes", id)
				return nil
			}

			t := p.table("CHANGE", "RESOURCE", "SUMMARY")
			for _, rec := range records {
				t.AddRow(p.formatStatus(rec.ChangeType), truncate(rec.String(), 60), truncate(rec.Summary, 50))
			}
			t.Render()
			return nil
		},
	}
}

func newRemoteDriftCmd(o *options) *cobra.Command {
	var (
		opts     client.DriftOptions
		baseline int64
	)

	cmd := &cobra.Command{
		Use:   "drift",
		Short: "Analyse drift on the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("baseline") {
				opts.BaselineID = &baseline
			}

			report, err := o.apiClient().Analysis().Drift(cmd.Context(), opts)
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

			p.line("Context %s, %d scans over %d days", report.Context, report.AvailableScans, report.PeriodDays)
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
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Context, "context", "", "cluster context (default the server's)")
	cmd.Flags().IntVar(&opts.Days, "days", 0, "window in days (default the server's)")
	cmd.Flags().Int64Var(&baseline, "baseline", 0, "baseline scan id")

	return cmd
}

func newRemoteTimelineCmd(o *options) *cobra.Command {
	var (
		key  client.ResourceKey
		days int
	)

	cmd := &cobra.Command{
		Use:   "timeline <name>",
		Short: "Show every observation of one resource",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key.Name = args[0]
			key.Namespaced = cmd.Flags().Changed("namespace")

			timeline, err := o.apiClient().Analysis().Timeline(cmd.Context(), key, days)
			if err != nil {
				return err
			}

			p := o.printer(cmd.OutOrStdout())
			if p.structured() {
				return p.print(timeline)
			}

			t := p.table("SCAN", "TIMESTAMP", "HASH", "CHANGED")
			for _, e := range timeline.Entries {
				changed := "-"
				if e.Changed != nil {
					changed = strconv.FormatBool(*e.Changed)
				}
				t.AddRow(strconv.FormatInt(e.ScanID, 10), formatTime(e.Timestamp), truncate(e.Hash, 16), changed)
			}
			t.Render()
			p.line("%d observations, %d versions, %d changes",
				timeline.Summary.Observations, timeline.Summary.TotalVersions, timeline.Summary.TotalChanges)
			return nil
		},
	}

	cmd.Flags().StringVar(&key.APIVersion, "api-version", "v1", "resource apiVersion")
	cmd.Flags().StringVar(&key.Kind, "kind", "", "resource kind")
	cmd.Flags().StringVarP(&key.Namespace, "namespace", "n", "", "resource namespace")
	cmd.Flags().IntVar(&days, "days", 0, "window in days (default the server's)")
	_ = cmd.MarkFlagRequired("kind")

	return cmd
}

func newRemoteHealthCmd(o *options) *cobra.Command {
	var (
		contextName string
		days        int
	)

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check the server and score a context",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := o.apiClient()
			if _, err := c.Ready(cmd.Context()); err != nil {
				return err
			}

			report, err := c.Analysis().Health(cmd.Context(), contextName, days)
			if err != nil {
				return err
			}

			p := o.printer(cmd.OutOrStdout())
			if p.structured() {
				return p.print(report)
			}
			p.line("%s: %s (score %d)", report.Context, p.formatStatus(report.Status), report.Score)
			for _, r := range report.Recommendations {
				p.line("  - %s", r)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&contextName, "context", "", "cluster context")
	cmd.Flags().IntVar(&days, "days", 0, "window in days (default the server's)")

	return cmd
}
