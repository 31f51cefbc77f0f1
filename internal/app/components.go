package app

import (
	"fmt"

	"github.com/rs/zerolog"

	"horse.fit/presscheck/internal/classify"
	"horse.fit/presscheck/internal/config"
	"horse.fit/presscheck/internal/db"
	"horse.fit/presscheck/internal/filter"
	"horse.fit/presscheck/internal/newswire"
	"horse.fit/presscheck/internal/notify"
	"horse.fit/presscheck/internal/pipeline"
	"horse.fit/presscheck/internal/reader"
	"horse.fit/presscheck/internal/runner"
)

// buildCoordinator wires the full pipeline stack: collection client,
// filters, fetcher, classifier, both pipeline variants, delivery channel,
// and the coordinator on top.
func buildCoordinator(cfg *config.Config, pool *db.Pool, logger zerolog.Logger) (*runner.Coordinator, error) {
	allowlist, err := filter.NewAllowlist()
	if err != nil {
		return nil, fmt.Errorf("load publisher allowlist: %w", err)
	}

	wire := newswire.NewClient(cfg.NewswireClientID, cfg.NewswireClientSecret, logger)
	fetcher := reader.NewFetcher(cfg.FetchConcurrency)

	completer := classify.NewClient(cfg.ClassifierAPIKey)
	selector := classify.NewSelector(completer, cfg.PrefilterModel)
	extractor := classify.NewExtractor(completer, cfg.ClassifierModel, logger)

	check := pipeline.NewCheck(pipeline.CheckParams{
		Pool:      pool,
		Searcher:  wire,
		Allowlist: allowlist,
		Selector:  selector,
		Fetcher:   fetcher,
		Analyzer:  extractor,
		Ceiling:   cfg.CheckMaxWindow,
		Lookback:  cfg.HistoryLookback,
		Logger:    logger,
	})

	briefing := pipeline.NewBriefing(pipeline.BriefingParams{
		Pool:      pool,
		Searcher:  wire,
		Allowlist: allowlist,
		Selector:  selector,
		Fetcher:   fetcher,
		Analyzer:  extractor,
		Ceiling:   cfg.BriefingMaxWindow,
		Location:  cfg.Location(),
		Logger:    logger,
	})

	var notifier notify.Notifier = notify.Discard{}
	if cfg.NotifyWebhookURL != "" {
		notifier = notify.NewWebhook(cfg.NotifyWebhookURL, logger)
	}

	return runner.NewCoordinator(runner.CoordinatorParams{
		Pool:        pool,
		Check:       check,
		Briefing:    briefing,
		Notifier:    notifier,
		Concurrency: cfg.PipelineConcurrency,
		Logger:      logger,
	}), nil
}
