package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yungbote/custrisk-backend/internal/app"
	types "github.com/yungbote/custrisk-backend/internal/domain"
	"github.com/yungbote/custrisk-backend/internal/platform/logger"
	"github.com/yungbote/custrisk-backend/internal/platform/shutdown"
	"github.com/yungbote/custrisk-backend/internal/seed"
)

var (
	rootCmd = &cobra.Command{
		Use:   "riskctl",
		Short: "Operational tooling for the customer risk backend",
		Long: `riskctl talks to the same database and prediction oracle as the API server,
configured through the same CONFIG_PATH file and environment variables.`,
		SilenceUsage: true,
	}
	seedCmd = &cobra.Command{
		Use:   "seed",
		Short: "Generate demo customers, score them, and open mitigations for high-risk results",
		Args:  cobra.NoArgs,
		RunE:  runSeed,
	}

	seedCount        int
	seedDistribution string
	seedConcurrency  int
	seedRandSeed     uint64
)

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().IntVarP(&seedCount, "count", "n", 20, "Number of customers to generate")
	seedCmd.Flags().StringVar(&seedDistribution, "risk-distribution", "40,40,20", "Percentage split of low,medium,high risk profiles")
	seedCmd.Flags().IntVar(&seedConcurrency, "concurrency", 4, "Customers processed in parallel")
	seedCmd.Flags().Uint64Var(&seedRandSeed, "rand-seed", 0, "Random seed for a reproducible run (0 = random)")
}

func runSeed(cmd *cobra.Command, _ []string) error {
	dist, err := seed.ParseDistribution(seedDistribution)
	if err != nil {
		return err
	}
	cfg, err := app.LoadConfig()
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	ctx, stop := shutdown.NotifyContext(cmd.Context())
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Sync()
		return err
	}
	defer a.Close()

	seeder := seed.NewSeeder(log, a.Services.Customers, a.Services.Workflow, a.Services.Mitigations)
	sum, err := seeder.Run(ctx, seed.Options{
		Count:        seedCount,
		Distribution: dist,
		Concurrency:  seedConcurrency,
		RandSeed:     seedRandSeed,
	})
	if sum != nil {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "======== Seed Summary ========")
		fmt.Fprintf(out, "Customers created: %d (failed: %d)\n", sum.Created, sum.Failed)
		for _, level := range types.RiskLevels {
			fmt.Fprintf(out, "  - %s profile: %d requested, %d scored %s\n", level, sum.Requested[level], sum.Predicted[level], level)
		}
		fmt.Fprintf(out, "Mitigations created: %d\n", sum.Mitigations)
	}
	return err
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "riskctl: %v\n", err)
		os.Exit(1)
	}
}
