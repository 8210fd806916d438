package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/avandelay/loom/internal/audit"
	"github.com/avandelay/loom/internal/config"
	"github.com/avandelay/loom/internal/cycle"
	"github.com/avandelay/loom/internal/logging"
)

func runOnce(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	trail, err := openTrail()
	if err != nil {
		return err
	}
	defer trail.Close()

	runner := cycle.NewRunner(cfg, store, trail)
	result, err := runner.Run(cmd.Context(), time.Now())
	if err != nil {
		return fmt.Errorf("cycle failed: %w", err)
	}

	fmt.Printf("cycle %d committed: %d links, %d profiles, %d terms mined, %d links discounted\n",
		result.Seq, result.LinksUpserted, result.ProfilesWritten, result.TermsMined, result.LinksDiscounted)
	return nil
}

func runDaemon(cmd *cobra.Command, args []string) error {
	// The daemon logs to a dated file; stderr may be detached.
	if err := logging.Init(config.DataDir()); err != nil {
		return err
	}
	defer logging.Close()

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	trail, err := openTrail()
	if err != nil {
		return err
	}
	defer trail.Close()
	trail.Emit(audit.Event{Kind: audit.KindStartup})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner := cycle.NewRunner(cfg, store, trail)
	runner.Start(ctx)
	logging.Info("daemon started", "interval_minutes", cfg.CycleIntervalMinutes)

	<-ctx.Done()
	logging.Info("shutting down")
	runner.Wait()
	trail.Emit(audit.Event{Kind: audit.KindShutdown})
	return nil
}
