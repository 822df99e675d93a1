package cmd

import (
	"fmt"
	"os"

	"access-sync/core/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "access-sync",
	Short: "iDFace access-control mirror",
	Long: `access-sync mirrors portals, users, access rules, time zones and access logs
from an iDFace access-control device into a relational database.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		// Console encoding at debug level gives ISO8601 timestamps on the terminal.
		l, logErr := logger.New(logger.Config{Level: "debug", Format: "console"})
		if logErr == nil {
			l.Error("command failed", zap.Error(err))
			_ = l.Sync()
		} else {
			fmt.Println(err)
		}
		os.Exit(1)
	}
}
