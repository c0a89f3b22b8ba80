// Package cmd defines the CLI commands for the lore-crawler executable.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/JakeFAU/lore-crawler/internal/config"
)

const lockName = ".lore-crawler.lock"

type crawlFlags struct {
	limit     int
	driver    string
	outputDir string
	replayDir string
	serve     bool
}

func newCrawlCmd() *cobra.Command {
	var flags crawlFlags
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Runs one crawl of the champion catalog",
		Long: `Opens one browser page, extracts the champion catalog and processes every
champion in order. Progress is checkpointed after each champion. Ctrl-C stops
the run between stages and still writes everything recorded so far.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawl(cmd, flags)
		},
	}
	cmd.Flags().IntVar(&flags.limit, "limit", -1, "process at most N champions (0 means all; default from config)")
	cmd.Flags().StringVar(&flags.driver, "driver", "", "browser driver: chromedp, rod or replay")
	cmd.Flags().StringVar(&flags.outputDir, "output-dir", "", "directory for checkpoint and final files")
	cmd.Flags().StringVar(&flags.replayDir, "replay-dir", "", "snapshot directory served by the replay driver")
	cmd.Flags().BoolVar(&flags.serve, "serve", false, "expose health, metrics and progress over HTTP during the run")
	return cmd
}

func runCrawl(cmd *cobra.Command, flags crawlFlags) error {
	cfg, err := resolveConfig(cmd.Context())
	if err != nil {
		return err
	}
	cfg = applyFlags(cfg, flags)
	if err := cfg.Validate(); err != nil {
		return err
	}

	if cfg.Output.Backend == config.BackendLocal {
		unlock, err := lockOutputDir(cfg.Output.Dir)
		if err != nil {
			return err
		}
		defer unlock()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner, err := newApp(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application services: %w", err)
	}
	defer func() {
		_ = runner.Close(context.WithoutCancel(ctx))
	}()

	summary, runErr := runner.Run(ctx)
	if summary.RunID != "" {
		fmt.Fprintln(cmd.OutOrStdout(), renderSummary(summary, cfg))
	}
	if runErr != nil {
		return fmt.Errorf("crawl failed: %w", runErr)
	}
	return nil
}

func applyFlags(cfg config.Config, flags crawlFlags) config.Config {
	if flags.limit >= 0 {
		cfg.Crawl.Limit = flags.limit
	}
	if flags.driver != "" {
		cfg.Browser.Driver = flags.driver
	}
	if flags.outputDir != "" {
		cfg.Output.Dir = flags.outputDir
	}
	if flags.replayDir != "" {
		cfg.Browser.ReplayDir = flags.replayDir
	}
	if flags.serve {
		cfg.Server.Enabled = true
	}
	return cfg
}

// lockOutputDir takes an exclusive lock so two runs never interleave writes
// to the same checkpoint file.
func lockOutputDir(dir string) (func(), error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	lock := flock.New(filepath.Join(dir, lockName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring output lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("another crawl is writing to %s", dir)
	}
	return func() { _ = lock.Unlock() }, nil
}
