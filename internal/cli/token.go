package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/learnreward/rewardplane/internal/daemon"
)

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().Duration("ttl", 0, "Token lifetime (default security.token_ttl)")
}

var tokenCmd = &cobra.Command{
	Use:   "token PRINCIPAL",
	Short: "Issue a bearer token for a principal",
	Long: `Sign a bearer token with the configured key. Pass it to the API as
'Authorization: Bearer <token>'. Intended for development and operators.`,
	Args: cobra.ExactArgs(1),
	RunE: runToken,
}

func runToken(cmd *cobra.Command, args []string) error {
	ttl, _ := cmd.Flags().GetDuration("ttl")
	if ttl < 0 {
		return fmt.Errorf("--ttl must be positive, got %s", ttl)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	d, err := daemon.New(home(), cfg, newLogger(cfg))
	if err != nil {
		return err
	}
	defer d.Close()

	tok, err := d.IssueToken(args[0], ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), tok)
	return nil
}
