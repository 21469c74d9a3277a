package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/learnreward/rewardplane/internal/daemon"
)

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().String("authority", "", "Principal that owns the program (required)")
	initCmd.Flags().String("asset", "", "Reward mint identifier (default from config)")
	_ = initCmd.MarkFlagRequired("authority")
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Bootstrap the program state and config",
	Long: `Write config.toml with a fresh signing key if none exists, then create the
program state owned by --authority using the [policy] section. Bootstrapping
runs once; a second init fails.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	authority, _ := cmd.Flags().GetString("authority")
	asset, _ := cmd.Flags().GetString("asset")

	path := daemon.ConfigPath(home())
	cfg, err := daemon.Load(path)
	if err != nil {
		return err
	}
	generated, err := cfg.EnsureSigningKey()
	if err != nil {
		return err
	}
	if asset != "" {
		cfg.Ledger.Asset = asset
	}
	if generated || asset != "" {
		if err := cfg.Save(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	}

	d, err := daemon.New(home(), cfg, newLogger(cfg))
	if err != nil {
		return err
	}
	defer d.Close()

	p, err := d.Initialize(cmd.Context(), authority)
	if err != nil {
		return fmt.Errorf("initialize program: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Program initialized\n  authority: %s\n  asset:     %s\n", p.Authority, p.MintID)
	return nil
}
