package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/pratik-mahalle/snapdrift/internal/domain/change"
	"github.com/pratik-mahalle/snapdrift/internal/services"
)

func newScanCmd(o *options) *cobra.Command {
	var (
		manifests   string
		contextName string
		namespace   string
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Capture a snapshot and reconcile it with the previous one",
		Long: `Read resource manifests, store them as a new snapshot and record what was
created, updated or deleted since the previous snapshot of the same scope.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := o.openApp(cmd.Context())
			if err != nil {
				return err
			}
			if manifests != "" {
				a.withSource(manifests)
			}

			req := services.SnapshotRequest{Context: a.cfg.Scanner.Context}
			if contextName != "" {
				req.Context = contextName
			}
			if cmd.Flags().Changed("namespace") {
				req.Namespace = &namespace
			} else if a.cfg.Scanner.Namespace != "" {
				ns := a.cfg.Scanner.Namespace
				req.Namespace = &ns
			}

			result, err := a.snapshots.Snapshot(cmd.Context(), req)
			if err != nil {
				return err
			}

			p := o.printer(cmd.OutOrStdout())
			if p.structured() {
				return p.print(result)
			}

			p.line("Scan %d captured %d resources at %s", result.ScanID, result.TotalResources, formatTime(result.Timestamp))
			for _, msg := range result.SourceErrors {
				p.line("  source error: %s", msg)
			}
			for _, s := range result.Skipped {
				p.line("  skipped document %d (%s %s): %s", s.Index, s.Kind, s.Name, s.Reason)
			}
			if result.BaselineScanID == nil {
				p.line("No previous scan in scope; nothing to reconcile")
				return nil
			}
			p.line("Compared with scan %d: %d changes", *result.BaselineScanID, len(result.Changes))
			renderChanges(p, result.Changes)
			return nil
		},
	}

	cmd.Flags().StringVar(&manifests, "manifests", "", "manifest directory (overrides SCAN_MANIFEST_DIR)")
	cmd.Flags().StringVar(&contextName, "context", "", "cluster context name (overrides SCAN_CONTEXT)")
	cmd.Flags().StringVarP(&namespace, "namespace", "n", "", "capture a single namespace")

	return cmd
}

func newCleanupCmd(o *options) *cobra.Command {
	var keepDays int

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete scans older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := o.openApp(cmd.Context())
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("keep-days") {
				keepDays = a.cfg.Scanner.RetentionDays
			}

			result, err := a.snapshots.Cleanup(cmd.Context(), keepDays)
			if err != nil {
				return err
			}

			p := o.printer(cmd.OutOrStdout())
			if p.structured() {
				return p.print(result)
			}
			p.line("Deleted %d scans older than %s (%d days)", result.Deleted, formatTime(result.Cutoff), result.KeepDays)
			return nil
		},
	}

	cmd.Flags().IntVar(&keepDays, "keep-days", 0, "days of history to keep (default RETENTION_DAYS)")

	return cmd
}

func renderChanges(p *printer, records []change.Record) {
	if len(records) == 0 {
		return
	}
	t := p.table("CHANGE", "RESOURCE", "OLD SCAN", "NEW SCAN", "SUMMARY")
	for _, rec := range records {
		old := "-"
		if rec.OldScanID != nil {
			old = strconv.FormatInt(*rec.OldScanID, 10)
		}
		t.AddRow(
			p.formatStatus(string(rec.ChangeType)),
			truncate(rec.String(), 60),
			old,
			strconv.FormatInt(rec.NewScanID, 10),
			truncate(rec.Summary, 50),
		)
	}
	t.Render()
}

func parseID(arg, name string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid %s %q", name, arg)
	}
	return id, nil
}
