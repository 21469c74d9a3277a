package cli

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/learnreward/rewardplane/internal/daemon"
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Override the listen address (host:port)")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the control plane API",
	Long:  `Start the HTTP API. The server stops gracefully on SIGINT or SIGTERM.`,
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		if err := setAddr(cfg, addr); err != nil {
			return err
		}
	}
	log := newLogger(cfg)

	d, err := daemon.New(home(), cfg, log)
	if err != nil {
		return err
	}
	defer d.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return d.Run(ctx)
}

// setAddr overrides the [api] listener from a host:port string.
func setAddr(cfg *daemon.Config, addr string) error {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid --addr %q: %w", addr, err)
	}
	p, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("invalid --addr port %q", port)
	}
	cfg.API.Host = host
	cfg.API.Port = p
	return nil
}
