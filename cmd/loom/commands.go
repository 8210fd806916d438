package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/avandelay/loom/internal/audit"
	"github.com/avandelay/loom/internal/config"
	"github.com/avandelay/loom/internal/model"
)

var (
	linkType      string
	linkLimit     int
	minConfidence float64

	rootCmd = &cobra.Command{
		Use:   "loom",
		Short: "Link discovery and adaptive learning engine",
		Long: `Loom correlates incident reports with monitored message channels,
builds a scored link graph, and adapts its own monitoring priorities
and vocabulary from link outcomes.`,
	}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Execute one discovery cycle and exit",
		RunE:  runOnce,
	}

	daemonCmd = &cobra.Command{
		Use:   "daemon",
		Short: "Run discovery cycles on the configured interval until interrupted",
		RunE:  runDaemon,
	}

	reportCmd = &cobra.Command{
		Use:   "report",
		Short: "Show a summary of links, channel tiers, and vocabulary",
		RunE:  runReport,
	}

	profilesCmd = &cobra.Command{
		Use:   "profiles [channel]",
		Short: "Show latest channel profiles, or one channel's full history",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runProfiles,
	}

	linksCmd = &cobra.Command{
		Use:   "links",
		Short: "List discovered links",
		RunE:  runLinks,
	}

	vocabCmd = &cobra.Command{
		Use:   "vocab",
		Short: "Manage the discovery vocabulary",
		RunE:  runVocabList,
	}

	vocabApproveCmd = &cobra.Command{
		Use:   "approve <term>",
		Short: "Activate a proposed term",
		Args:  cobra.ExactArgs(1),
		RunE:  runVocabApprove,
	}

	vocabRejectCmd = &cobra.Command{
		Use:   "reject <term>",
		Short: "Reject a proposed term",
		Args:  cobra.ExactArgs(1),
		RunE:  runVocabReject,
	}

	seedCmd = &cobra.Command{
		Use:   "seed <file.json>",
		Short: "Load channels, incidents, and messages from a JSON fixture",
		Args:  cobra.ExactArgs(1),
		RunE:  runSeed,
	}
)

func init() {
	linksCmd.Flags().StringVar(&linkType, "type", "", "filter by link type (temporal|spatial|social|content)")
	linksCmd.Flags().IntVar(&linkLimit, "limit", 50, "maximum links to show")
	linksCmd.Flags().Float64Var(&minConfidence, "min-confidence", 0, "minimum confidence")

	vocabCmd.AddCommand(vocabApproveCmd, vocabRejectCmd)
	rootCmd.AddCommand(runCmd, daemonCmd, reportCmd, profilesCmd, linksCmd, vocabCmd, seedCmd)
}

// openStore creates the data directory if needed and opens the database.
func openStore() (*model.Store, error) {
	dataDir := config.DataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return model.NewStore(filepath.Join(dataDir, "loom.db"))
}

// openTrail opens the JSONL audit trail in the data directory.
func openTrail() (*audit.Trail, error) {
	return audit.Open(filepath.Join(config.DataDir(), "audit.jsonl"))
}
