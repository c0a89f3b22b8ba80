package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/lore-crawler/internal/app"
	"github.com/JakeFAU/lore-crawler/internal/config"
	"github.com/JakeFAU/lore-crawler/internal/orchestrator"
)

var cfgFile string

// cfgKeyType is the key for storing the loaded Config in the context.
type cfgKeyType string

const cfgKey cfgKeyType = "config"

// Runner is the slice of *app.App the commands use, so tests can inject a
// fake.
type Runner interface {
	RunID() string
	Run(ctx context.Context) (orchestrator.Summary, error)
	Close(ctx context.Context) error
}

// newApp is the application factory. It's a variable so tests can replace it.
var newApp = func(ctx context.Context, cfg config.Config) (Runner, error) {
	return app.Build(ctx, cfg)
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lore-crawler",
		Short: "Harvests champion lore from the League of Legends Universe site.",
		Long: `lore-crawler walks the champion catalog of the League of Legends Universe
site in a real browser, reads each champion's detail, biography and story
pages, checkpoints after every champion and writes the final CSV and JSON.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		// Loads configuration before any subcommand runs.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), cfgKey, cfg))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); CRAWLER_* env vars override it")
	cmd.AddCommand(newCrawlCmd())
	return cmd
}

func resolveConfig(ctx context.Context) (config.Config, error) {
	cfg, ok := ctx.Value(cfgKey).(config.Config)
	if !ok {
		return config.Config{}, errors.New("configuration not loaded")
	}
	return cfg, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
