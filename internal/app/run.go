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
	"horse.fit/presscheck/internal/runner"
)

func runOnce(args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	subjectUUID := fs.String("subject", "", "Subject UUID to run for")
	variantRaw := fs.String("variant", "check", "Pipeline variant: check or briefing")
	timeout := fs.Duration("timeout", 30*time.Minute, "Run timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *subjectUUID == "" {
		fmt.Fprintln(os.Stderr, "--subject is required")
		return 2
	}
	variant, err := runner.ParseVariant(*variantRaw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid variant: %v\n", err)
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

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("run failed to connect to database")
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	coordinator, err := buildCoordinator(cfg, pool, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to build pipeline")
		fmt.Fprintf(os.Stderr, "Failed to build pipeline: %v\n", err)
		return 1
	}

	if err := coordinator.Run(ctx, *subjectUUID, variant); err != nil {
		switch {
		case errors.Is(err, runner.ErrAlreadyRunning):
			fmt.Fprintln(os.Stderr, "A run for this subject is still in progress")
		case errors.Is(err, db.ErrSubjectNotFound):
			fmt.Fprintln(os.Stderr, "Subject not found")
		default:
			logger.Error().Err(err).Str("variant", string(variant)).Msg("run failed")
			fmt.Fprintf(os.Stderr, "Run failed: %v\n", err)
		}
		return 1
	}

	fmt.Printf("ok: %s run complete\n", variant)
	return 0
}
