// Command harness runs the streaming compute worker harness as a
// standalone process: it polls a work service for leased items, drives
// an executor pipeline over them, batches results into commits, and
// serves a diagnostics surface, per §5.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/streamharness/pkg/config"
	"github.com/cuemby/streamharness/pkg/executor"
	"github.com/cuemby/streamharness/pkg/harness"
	"github.com/cuemby/streamharness/pkg/log"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "harness [computation-spec...]",
	Short: "Streaming compute worker harness",
	Long: `harness polls a work service for leased work items, drives them
through an executor pipeline, and reports results back as batched
commits, with a bounded worker pool and memory-pressure pushback.

Each positional argument is a YAML-encoded startup computation
descriptor (id + spec) to pre-register before polling begins;
computations referenced later but not pre-registered are fetched lazily
on first sight.`,
	Version: Version,
	RunE:    run,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"streamharness version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	config.BindFlags(rootCmd)

	cobra.OnInitialize(initLogging)
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOutput, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{
		Level:      log.Level(level),
		JSONOutput: jsonOutput,
	})
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cmd)
	if err != nil {
		return err
	}

	descriptors, err := config.ParseComputationDescriptors(args)
	if err != nil {
		return err
	}

	// The pipeline-execution engine and the state-fetch RPC are external
	// collaborators (§1); EchoFactory and NoopStateFetcher stand in for
	// them here so the binary is runnable on its own against a work
	// service, the same role LocalClient plays on the transport side.
	h, err := harness.New(cfg, executor.EchoFactory{}, executor.NoopStateFetcher{}, descriptors)
	if err != nil {
		return fmt.Errorf("building harness: %w", err)
	}

	h.Start()
	log.WithComponent("main").Info().Uint64("client_id", h.ClientID()).Msg("harness running, press Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace+10*time.Second)
	defer cancel()

	if err := h.Stop(ctx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}
