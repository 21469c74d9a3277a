// Package cli implements the rewardplane command line.
package cli

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/learnreward/rewardplane/internal/daemon"
	"github.com/learnreward/rewardplane/internal/infra/observability"
)

var homeDir string

var rootCmd = &cobra.Command{
	Use:   "rewardplane",
	Short: "Reward token control plane",
	Long: `rewardplane authorizes who may mint learning rewards, under which policy
limits, and how those limits change through multi-signature governance.

State lives in $REWARDPLANE_HOME (default ~/.rewardplane). Run
'rewardplane init --authority NAME' once, then 'rewardplane serve'.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&homeDir, "home", "", "Home directory (default $REWARDPLANE_HOME or ~/.rewardplane)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// home returns the --home flag or the environment default.
func home() string {
	if homeDir != "" {
		return homeDir
	}
	return daemon.Home()
}

// loadConfig reads the config in the home directory.
func loadConfig() (*daemon.Config, error) {
	return daemon.Load(daemon.ConfigPath(home()))
}

// newLogger builds the CLI logger from the [log] section.
func newLogger(cfg *daemon.Config) zerolog.Logger {
	return observability.NewLogger(cfg.Log, os.Stderr)
}
