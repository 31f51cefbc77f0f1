package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/presscheck/internal/classify"
	"horse.fit/presscheck/internal/db"
	"horse.fit/presscheck/internal/filter"
	"horse.fit/presscheck/internal/newswire"
)

// Collection caps. The relevance pre-filter absorbs the noise, so the raw
// cap can stay generous.
const (
	checkMaxResults    = 200
	briefingMaxResults = 300
)

// Searcher is the collection service surface the pipelines depend on.
type Searcher interface {
	Search(ctx context.Context, keywords []string, since time.Time, maxResults int) ([]newswire.Candidate, error)
}

// BodyFetcher retrieves article bodies for shortlisted URLs. A nil body
// value marks a per-URL failure; the batch itself only fails wholesale.
type BodyFetcher interface {
	FetchBatch(ctx context.Context, urls []string) (map[string]*string, error)
}

// CheckAnalyzer is the structured-extraction surface of the check variant.
type CheckAnalyzer interface {
	AnalyzeCheck(ctx context.Context, req classify.CheckRequest) ([]classify.CheckItem, error)
}

// CheckStore is the persistence surface of the check variant.
type CheckStore interface {
	UpdateLastCheckAt(ctx context.Context, subjectID int64, at time.Time) error
	ListRecentReportedItems(ctx context.Context, subjectID int64, since time.Time) ([]db.HistoryItem, error)
	SaveReportedItems(ctx context.Context, subjectID int64, checkedAt time.Time, items []db.SaveReportedItemParams) error
}

// bookkeepingTimeout bounds the last-run timestamp update that still has to
// happen after the run's own context is gone.
const bookkeepingTimeout = 10 * time.Second

// bookkeepingContext detaches from the run context's cancellation so the
// timestamp advances even when the run failed by deadline or cancel.
func bookkeepingContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), bookkeepingTimeout)
}

// CheckItem is one reconciled check-run result ready for delivery.
type CheckItem struct {
	Category     classify.CheckCategory
	TopicCluster string
	Title        string
	URL          string
	Publisher    string
	Summary      string
	Reason       string
	KeyFacts     []string
	SourceCount  int
	PublishedAt  *time.Time
}

// CheckOutcome summarizes one check run. Empty reports that some stage
// yielded nothing, which is a normal successful outcome.
type CheckOutcome struct {
	Since       time.Time
	Now         time.Time
	Items       []CheckItem
	PreFiltered int
}

// Empty reports whether the run produced nothing reportable.
func (o CheckOutcome) Empty() bool {
	for _, item := range o.Items {
		if item.Category.Reportable() {
			return false
		}
	}
	return true
}

// Check is the check-variant pipeline: collect, filter, fetch, classify,
// reconcile, persist history.
type Check struct {
	pool      CheckStore
	searcher  Searcher
	allowlist *filter.Allowlist
	selector  filter.IndexSelector
	fetcher   BodyFetcher
	analyzer  CheckAnalyzer
	ceiling   time.Duration
	lookback  time.Duration
	logger    zerolog.Logger
}

type CheckParams struct {
	Pool      CheckStore
	Searcher  Searcher
	Allowlist *filter.Allowlist
	Selector  filter.IndexSelector
	Fetcher   BodyFetcher
	Analyzer  CheckAnalyzer
	Ceiling   time.Duration
	Lookback  time.Duration
	Logger    zerolog.Logger
}

func NewCheck(params CheckParams) *Check {
	return &Check{
		pool:      params.Pool,
		searcher:  params.Searcher,
		allowlist: params.Allowlist,
		selector:  params.Selector,
		fetcher:   params.Fetcher,
		analyzer:  params.Analyzer,
		ceiling:   params.Ceiling,
		lookback:  params.Lookback,
		logger:    params.Logger,
	}
}

// Run executes one check run for the subject. The last-check timestamp is
// advanced on every exit path, success or failure, so a transient failure
// cannot widen future windows past the ceiling.
func (c *Check) Run(ctx context.Context, subject db.SubjectRow) (outcome CheckOutcome, err error) {
	now := time.Now().UTC()
	since := ComputeWindow(subject.LastCheckAt, now, c.ceiling)
	outcome = CheckOutcome{Since: since, Now: now}

	logger := c.logger.With().Str("subject", subject.Name).Str("variant", "check").Logger()

	defer func() {
		bookCtx, cancel := bookkeepingContext(ctx)
		defer cancel()
		if advanceErr := c.pool.UpdateLastCheckAt(bookCtx, subject.SubjectID, now); advanceErr != nil {
			logger.Error().Err(advanceErr).Msg("failed to advance last_check_at")
			if err == nil {
				err = advanceErr
			}
		}
	}()

	candidates, err := c.searcher.Search(ctx, subject.Keywords, since, checkMaxResults)
	if err != nil {
		return outcome, fmt.Errorf("collect candidates: %w", err)
	}
	if len(candidates) == 0 {
		return outcome, nil
	}

	candidates = c.allowlist.ByPublisher(candidates)
	if len(candidates) == 0 {
		return outcome, nil
	}

	candidates = filter.ByTitle(candidates)
	if len(candidates) == 0 {
		return outcome, nil
	}

	beforeRelevance := len(candidates)
	candidates = filter.ByRelevance(ctx, c.selector, subject.Department, candidates, logger)
	outcome.PreFiltered = beforeRelevance - len(candidates)
	if len(candidates) == 0 {
		return outcome, nil
	}

	if err := attachBodies(ctx, c.fetcher, candidates); err != nil {
		return outcome, fmt.Errorf("fetch bodies: %w", err)
	}

	history, err := c.pool.ListRecentReportedItems(ctx, subject.SubjectID, now.Add(-c.lookback))
	if err != nil {
		return outcome, fmt.Errorf("load history: %w", err)
	}

	results, err := c.analyzer.AnalyzeCheck(ctx, classify.CheckRequest{
		Department: subject.Department,
		Candidates: toClassifyCandidates(candidates),
		History:    toHistoryEntries(history),
	})
	if err != nil {
		return outcome, fmt.Errorf("classify candidates: %w", err)
	}

	for _, result := range results {
		fields := ResolveSource(result.Title, result.SourceIndices, result.MergedIndices, candidates)
		publisher := fields.Publisher
		if publisher == "" {
			publisher = result.Publisher
		}
		outcome.Items = append(outcome.Items, CheckItem{
			Category:     result.Category,
			TopicCluster: result.TopicCluster,
			Title:        fields.Title,
			URL:          fields.URL,
			Publisher:    publisher,
			Summary:      result.Summary,
			Reason:       result.Reason,
			KeyFacts:     result.KeyFacts,
			SourceCount:  fields.SourceCount,
			PublishedAt:  fields.PublishedAt,
		})
	}

	if err := c.saveHistory(ctx, subject.SubjectID, now, outcome.Items); err != nil {
		return outcome, fmt.Errorf("save history: %w", err)
	}

	logger.Info().
		Int("candidates", len(candidates)).
		Int("items", len(outcome.Items)).
		Int("pre_filtered", outcome.PreFiltered).
		Msg("check run complete")
	return outcome, nil
}

// saveHistory records every classified cluster, skips included, so later
// runs can deduplicate against topics that were already seen and set aside.
func (c *Check) saveHistory(ctx context.Context, subjectID int64, now time.Time, items []CheckItem) error {
	var params []db.SaveReportedItemParams
	for _, item := range items {
		var urls []string
		if item.URL != "" {
			urls = []string{item.URL}
		}
		params = append(params, db.SaveReportedItemParams{
			TopicCluster: item.TopicCluster,
			KeyFacts:     item.KeyFacts,
			Summary:      item.Summary,
			ArticleURLs:  urls,
			Category:     string(item.Category),
		})
	}
	return c.pool.SaveReportedItems(ctx, subjectID, now, params)
}

// attachBodies fetches article bodies for the shortlisted candidates and
// fills them in place. URLs that failed individually stay bodyless.
func attachBodies(ctx context.Context, fetcher BodyFetcher, candidates []newswire.Candidate) error {
	urls := make([]string, 0, len(candidates))
	for _, c := range candidates {
		urls = append(urls, c.Link)
	}
	bodies, err := fetcher.FetchBatch(ctx, urls)
	if err != nil {
		return err
	}
	for i := range candidates {
		if body := bodies[candidates[i].Link]; body != nil {
			candidates[i].Body = *body
		}
	}
	return nil
}

func toClassifyCandidates(candidates []newswire.Candidate) []classify.Candidate {
	out := make([]classify.Candidate, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, classify.Candidate{
			Publisher:   c.Publisher,
			Title:       c.Title,
			URL:         c.Link,
			Body:        c.Body,
			PublishedAt: c.PublishedAt,
		})
	}
	return out
}

func toHistoryEntries(history []db.HistoryItem) []classify.HistoryEntry {
	out := make([]classify.HistoryEntry, 0, len(history))
	for _, h := range history {
		out = append(out, classify.HistoryEntry{
			CheckedAt:    h.CheckedAt,
			TopicCluster: h.TopicCluster,
			KeyFacts:     h.KeyFacts,
		})
	}
	return out
}
