package cmd

import (
	"context"
	"fmt"
	"sort"

	"access-sync/core/config"
	"access-sync/core/database"
	"access-sync/core/logger"
	"access-sync/feature/access/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCheck bool

// migrateCmd creates the mirrored tables and the pass history table.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Long: `Creates or updates the portals, users, access_rules, time_zones, access_logs
and sync_runs tables. With --check the schema is only inspected and missing
columns are reported.`,
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateCheck, "check", false, "Only report missing tables or columns")
	RootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	l, err := logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer l.Sync()

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return err
	}
	gw := store.New(db, l)

	if !migrateCheck {
		if err := gw.Migrate(context.Background()); err != nil {
			return err
		}
		l.Info("Schema migrated", zap.String("database", cfg.Database.Name))
		return nil
	}

	problems, err := gw.CheckSchema()
	if err != nil {
		return err
	}
	if len(problems) == 0 {
		l.Info("Schema is up to date")
		return nil
	}

	tables := make([]string, 0, len(problems))
	for name := range problems {
		tables = append(tables, name)
	}
	sort.Strings(tables)
	for _, name := range tables {
		l.Warn("Missing columns", zap.String("table", name), zap.Strings("columns", problems[name]))
	}
	return fmt.Errorf("schema check failed for %d table(s); run migrate", len(problems))
}
