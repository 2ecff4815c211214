// cmd/rbacsync/main.go
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dangerclosesec/rbacsync/internal/backend/gateway"
	"github.com/dangerclosesec/rbacsync/internal/config"
	"github.com/dangerclosesec/rbacsync/internal/engine"
	"github.com/dangerclosesec/rbacsync/internal/model"
	"github.com/dangerclosesec/rbacsync/internal/stateio"
)

var version = "dev"

var (
	stateFile      string
	prune          bool
	dryRun         bool
	maxConcurrency int
	timeout        time.Duration
	verbose        bool
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&stateFile, "file", "f", "state.yaml", "Desired state YAML file")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Minute, "Maximum time for one pass")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	// plan must be able to preview deletions, so it takes --prune too.
	planCmd.Flags().BoolVar(&prune, "prune", false, "Include deletions of live entities absent from desired state")
	applyCmd.Flags().BoolVar(&prune, "prune", false, "Delete live entities absent from desired state")
	applyCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Compute and report the plan without applying it")
	applyCmd.Flags().IntVar(&maxConcurrency, "max-concurrency", 0, "Worker pool size per tier (0 uses the configured default)")

	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(versionCmd)
}

var rootCmd = &cobra.Command{
	Use:   "rbacsync",
	Short: "rbacsync converges backend RBAC state to a declared desired state",
	Long: `rbacsync reads a declarative description of organizations, teams,
users, role definitions and role assignments and applies it
idempotently against a backend service API.`,
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the operations a pass would execute, in order",
	Run: func(cmd *cobra.Command, args []string) {
		eng, logger := setup()
		desired := loadState(logger)

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		plan, err := eng.Plan(ctx, desired)
		if err != nil {
			logger.Error("planning failed", "error", err)
			os.Exit(1)
		}
		if plan.Empty() {
			fmt.Println("No changes. Live state matches desired state.")
			return
		}
		for i, tier := range plan.Tiers {
			fmt.Printf("Tier %d:\n", i+1)
			for _, op := range tier {
				fmt.Printf("  %s\n", op)
			}
		}
	},
}

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Converge live state to the desired state file",
	Run: func(cmd *cobra.Command, args []string) {
		eng, logger := setup()
		desired := loadState(logger)

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		report, err := eng.Reconcile(ctx, desired)
		if err != nil && report.Status == engine.StatusFailed {
			logger.Error("pass aborted", "error", err)
			os.Exit(1)
		}

		fmt.Println(report.Summary())
		if details := report.Details(); details != "" {
			fmt.Println(details)
		}

		switch report.Status {
		case engine.StatusFailed:
			os.Exit(1)
		case engine.StatusPartiallyConverged:
			os.Exit(2)
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the rbacsync version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("rbacsync %s\n", version)
	},
}

// setup builds the logger, configuration, adapter and engine for one
// invocation. Flags override environment configuration where set.
func setup() (*engine.Engine, *slog.Logger) {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg := config.Load()

	level := slog.LevelInfo
	if verbose || cfg.LogLevel == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	adapter := gateway.New(&gateway.Config{
		BaseURL:  cfg.Gateway.URL,
		Username: cfg.Gateway.Username,
		Password: cfg.Gateway.Password,
		Timeout:  cfg.Gateway.Timeout,
	}, logger)

	opts := engine.Options{
		Prune:          cfg.Engine.Prune || prune,
		MaxConcurrency: cfg.Engine.MaxConcurrency,
		RetryLimit:     cfg.Engine.RetryLimit,
		RetryBackoff:   cfg.Engine.RetryBackoff,
		DryRun:         dryRun,
		Logger:         logger,
	}
	if maxConcurrency > 0 {
		opts.MaxConcurrency = maxConcurrency
	}

	return engine.New(adapter, opts), logger
}

func loadState(logger *slog.Logger) *model.DesiredState {
	desired, err := stateio.Load(stateFile)
	if err != nil {
		logger.Error("failed to load desired state", "file", stateFile, "error", err)
		os.Exit(1)
	}
	return desired
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
