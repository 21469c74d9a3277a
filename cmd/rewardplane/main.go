// Command rewardplane runs the reward token control plane.
package main

import (
	"os"

	"github.com/learnreward/rewardplane/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
