package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"horse.fit/presscheck/internal/cli"
	"horse.fit/presscheck/internal/config"
	"horse.fit/presscheck/internal/db"
	"horse.fit/presscheck/internal/logging"
)

func runSweep(args []string) int {
	fs := flag.NewFlagSet("sweep", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 2*time.Minute, "Command timeout")
	retentionDays := fs.Int("retention-days", 0, "Override RETENTION_DAYS for this sweep")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "sweep does not accept positional arguments")
		return 2
	}

	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	days := cfg.RetentionDays
	if *retentionDays > 0 {
		days = *retentionDays
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("sweep failed to connect to database")
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	stats, err := pool.SweepExpired(ctx, time.Now().UTC(), days)
	if err != nil {
		logger.Error().Err(err).Msg("retention sweep failed")
		fmt.Fprintf(os.Stderr, "Sweep failed: %v\n", err)
		return 1
	}

	logger.Info().
		Int("retention_days", days).
		Int64("briefing_items", stats.BriefingItems).
		Int64("briefing_caches", stats.BriefingCaches).
		Int64("reported_items", stats.ReportedItems).
		Msg("retention sweep complete")
	fmt.Printf("ok: purged %d briefing items, %d cache headers, %d history rows\n",
		stats.BriefingItems, stats.BriefingCaches, stats.ReportedItems)
	return 0
}
