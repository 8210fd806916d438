package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/avandelay/loom/internal/config"
	"github.com/avandelay/loom/internal/logging"
)

var cfg *config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "loom: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		logging.InitStderr()

		loaded, err := config.Load()
		if err != nil {
			logging.Warn("config load failed, using defaults", "error", err)
			loaded = config.DefaultConfig()
		}
		cfg = loaded
	}
}
