package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"access-sync/core/reconcile"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	syncDryRun bool
	syncPolicy string
	syncJSON   bool
)

// syncCmd runs a single pass from the command line.
var syncCmd = &cobra.Command{
	Use:   "sync [types...]",
	Short: "Mirror the device into the database once",
	Long: `Runs one reconciliation pass. Without arguments the types configured in
SYNC_TYPES are visited in the fixed order portals, users, access_rules,
time_zones, access_logs.

Examples:
  # Plan only, nothing is written
  sync --dry-run

  # Users and portals, stop on malformed device data
  sync users portals --policy abort

  # Machine readable report
  sync --json > report.json`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "Plan the pass without writing to the database")
	syncCmd.Flags().StringVar(&syncPolicy, "policy", "", "Protocol error policy for this pass (continue|abort)")
	syncCmd.Flags().BoolVar(&syncJSON, "json", false, "Print the full pass report as JSON")

	RootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	types, err := reconcile.ParseEntityTypes(args)
	if err != nil {
		return err
	}
	opts := reconcile.RunOptions{Types: types, DryRun: syncDryRun}
	if syncPolicy != "" {
		if opts.Policy, err = reconcile.ParsePolicy(syncPolicy); err != nil {
			return err
		}
	}

	env, err := newEnvironment()
	if err != nil {
		return err
	}
	defer env.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc := env.feature.Service()
	if err := svc.Prepare(ctx); err != nil {
		return fmt.Errorf("failed to prepare archive: %w", err)
	}

	report := svc.RunSync(ctx, opts)
	if syncJSON {
		out, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
	} else {
		printPassReport(env.logger, report)
	}

	if report.Status == reconcile.PassFailed {
		return fmt.Errorf("sync pass %s failed: %s", report.ID, report.Error)
	}
	return nil
}

// printPassReport logs one line per type and the failures of each.
func printPassReport(l *zap.Logger, report *reconcile.PassReport) {
	for _, tr := range report.Types {
		l.Info("Type report",
			zap.String("type", string(tr.Type)),
			zap.String("status", string(tr.Status)),
			zap.Int("total", tr.Total),
			zap.Int("created", tr.Created),
			zap.Int("updated", tr.Updated),
			zap.Int("unchanged", tr.Unchanged),
			zap.Int("failed", tr.Failed),
		)
		for _, w := range tr.Warnings {
			l.Warn("Type warning", zap.String("type", string(tr.Type)), zap.String("warning", w))
		}

		// Show at most 5 failures per type
		maxShow := min(len(tr.Failures), 5)
		for _, f := range tr.Failures[:maxShow] {
			l.Warn("Record failed",
				zap.String("type", string(tr.Type)),
				zap.Int64("external_id", f.ExternalID),
				zap.String("label", f.Label),
				zap.String("error", f.Error),
			)
		}
		if len(tr.Failures) > maxShow {
			l.Warn("Additional failures not shown", zap.Int("count", len(tr.Failures)-maxShow))
		}
	}

	created, updated, unchanged, failed := report.Totals()
	l.Info("Pass report",
		zap.String("id", report.ID),
		zap.String("status", string(report.Status)),
		zap.Bool("dry_run", report.DryRun),
		zap.Int("created", created),
		zap.Int("updated", updated),
		zap.Int("unchanged", unchanged),
		zap.Int("failed", failed),
	)
}
