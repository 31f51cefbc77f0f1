package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/presscheck/internal/classify"
	"horse.fit/presscheck/internal/db"
	"horse.fit/presscheck/internal/filter"
)

// recentTagDays is how far back previously delivered tags are surfaced to
// the classifier for follow-up detection.
const recentTagDays = 3

// BriefingAnalyzer is the structured-extraction surface of the briefing
// variant.
type BriefingAnalyzer interface {
	AnalyzeBriefing(ctx context.Context, req classify.BriefingRequest) ([]classify.BriefingItem, error)
}

// BriefingStore is the persistence surface of the briefing variant.
type BriefingStore interface {
	UpdateLastBriefingAt(ctx context.Context, subjectID int64, at time.Time) error
	GetOrCreateBriefingCache(ctx context.Context, subjectID int64, day string) (int64, bool, error)
	ListBriefingItems(ctx context.Context, cacheID int64) ([]db.BriefingItemRow, error)
	ListRecentBriefingTags(ctx context.Context, subjectID int64, sinceDay string) ([]string, error)
	UpdateBriefingItem(ctx context.Context, itemUUID string, params db.UpdateBriefingItemParams) error
	InsertBriefingItems(ctx context.Context, cacheID int64, items []db.InsertBriefingItemParams) ([]string, error)
}

// BriefingOutcome summarizes one briefing run. Items is the full same-day
// set after the diff, changed entries first.
type BriefingOutcome struct {
	Day      string
	FirstRun bool
	Since    time.Time
	Now      time.Time
	Items    []DiffItem
}

// Changed counts items the run modified or added.
func (o BriefingOutcome) Changed() int {
	n := 0
	for _, item := range o.Items {
		if item.Action != ActionUnchanged {
			n++
		}
	}
	return n
}

// Briefing is the briefing-variant pipeline. The same-day cache decides the
// scenario: an empty cache makes this the day's first run, a populated one
// an update run that diffs against it.
type Briefing struct {
	pool      BriefingStore
	searcher  Searcher
	allowlist *filter.Allowlist
	selector  filter.IndexSelector
	fetcher   BodyFetcher
	analyzer  BriefingAnalyzer
	ceiling   time.Duration
	location  *time.Location
	logger    zerolog.Logger
}

type BriefingParams struct {
	Pool      BriefingStore
	Searcher  Searcher
	Allowlist *filter.Allowlist
	Selector  filter.IndexSelector
	Fetcher   BodyFetcher
	Analyzer  BriefingAnalyzer
	Ceiling   time.Duration
	Location  *time.Location
	Logger    zerolog.Logger
}

func NewBriefing(params BriefingParams) *Briefing {
	return &Briefing{
		pool:      params.Pool,
		searcher:  params.Searcher,
		allowlist: params.Allowlist,
		selector:  params.Selector,
		fetcher:   params.Fetcher,
		analyzer:  params.Analyzer,
		ceiling:   params.Ceiling,
		location:  params.Location,
		logger:    params.Logger,
	}
}

// Run executes one briefing run for the subject. As with the check variant,
// the last-briefing timestamp advances on every exit path.
func (b *Briefing) Run(ctx context.Context, subject db.SubjectRow) (outcome BriefingOutcome, err error) {
	now := time.Now().UTC()
	localNow := now.In(b.location)
	day := localNow.Format("2006-01-02")
	since := ComputeWindow(subject.LastBriefingAt, now, b.ceiling)
	outcome = BriefingOutcome{Day: day, Since: since, Now: now}

	logger := b.logger.With().Str("subject", subject.Name).Str("variant", "briefing").Str("day", day).Logger()

	defer func() {
		bookCtx, cancel := bookkeepingContext(ctx)
		defer cancel()
		if advanceErr := b.pool.UpdateLastBriefingAt(bookCtx, subject.SubjectID, now); advanceErr != nil {
			logger.Error().Err(advanceErr).Msg("failed to advance last_briefing_at")
			if err == nil {
				err = advanceErr
			}
		}
	}()

	cacheID, _, err := b.pool.GetOrCreateBriefingCache(ctx, subject.SubjectID, day)
	if err != nil {
		return outcome, fmt.Errorf("open briefing cache: %w", err)
	}
	existing, err := b.pool.ListBriefingItems(ctx, cacheID)
	if err != nil {
		return outcome, fmt.Errorf("load briefing cache: %w", err)
	}
	outcome.FirstRun = len(existing) == 0

	candidates, err := b.searcher.Search(ctx, subject.Keywords, since, briefingMaxResults)
	if err != nil {
		return outcome, fmt.Errorf("collect candidates: %w", err)
	}
	if len(candidates) == 0 {
		outcome.Items = unchangedOnly(existing)
		return outcome, nil
	}

	candidates = b.allowlist.ByPublisher(candidates)
	if len(candidates) == 0 {
		outcome.Items = unchangedOnly(existing)
		return outcome, nil
	}

	candidates = filter.ByTitle(candidates)
	if len(candidates) == 0 {
		outcome.Items = unchangedOnly(existing)
		return outcome, nil
	}

	candidates = filter.ByRelevance(ctx, b.selector, subject.Department, candidates, logger)
	if len(candidates) == 0 {
		outcome.Items = unchangedOnly(existing)
		return outcome, nil
	}

	if err := attachBodies(ctx, b.fetcher, candidates); err != nil {
		return outcome, fmt.Errorf("fetch bodies: %w", err)
	}

	sinceDay := localNow.AddDate(0, 0, -recentTagDays).Format("2006-01-02")
	recentTags, err := b.pool.ListRecentBriefingTags(ctx, subject.SubjectID, sinceDay)
	if err != nil {
		return outcome, fmt.Errorf("load recent tags: %w", err)
	}

	results, err := b.analyzer.AnalyzeBriefing(ctx, classify.BriefingRequest{
		Department: subject.Department,
		Date:       day,
		RecentTags: recentTags,
		Existing:   toExistingEntries(existing),
		Candidates: toClassifyCandidates(candidates),
	})
	if err != nil {
		return outcome, fmt.Errorf("classify candidates: %w", err)
	}

	items := Diff(existing, results, candidates)
	if err := b.persistDiff(ctx, cacheID, items); err != nil {
		return outcome, fmt.Errorf("persist briefing delta: %w", err)
	}
	outcome.Items = items

	logger.Info().
		Int("candidates", len(candidates)).
		Int("items", len(items)).
		Int("changed", outcome.Changed()).
		Bool("first_run", outcome.FirstRun).
		Msg("briefing run complete")
	return outcome, nil
}

// persistDiff writes the delta back: modifications in place by stable item
// identifier, additions as a single batch insert. Unchanged rows are never
// rewritten.
func (b *Briefing) persistDiff(ctx context.Context, cacheID int64, items []DiffItem) error {
	var (
		inserts   []db.InsertBriefingItemParams
		insertPos []int
	)
	for i, item := range items {
		switch item.Action {
		case ActionModified:
			if err := b.pool.UpdateBriefingItem(ctx, item.Row.ItemUUID, item.Update); err != nil {
				return fmt.Errorf("update item %s: %w", item.Row.ItemUUID, err)
			}
		case ActionAdded:
			inserts = append(inserts, item.Insert)
			insertPos = append(insertPos, i)
		}
	}

	if len(inserts) == 0 {
		return nil
	}
	uuids, err := b.pool.InsertBriefingItems(ctx, cacheID, inserts)
	if err != nil {
		return err
	}
	for i, pos := range insertPos {
		items[pos].Row.ItemUUID = uuids[i]
	}
	return nil
}

func unchangedOnly(existing []db.BriefingItemRow) []DiffItem {
	items := make([]DiffItem, 0, len(existing))
	for _, row := range existing {
		items = append(items, DiffItem{Action: ActionUnchanged, Row: row})
	}
	return items
}

func toExistingEntries(existing []db.BriefingItemRow) []classify.ExistingEntry {
	entries := make([]classify.ExistingEntry, 0, len(existing))
	for _, row := range existing {
		entries = append(entries, classify.ExistingEntry{
			Title:   row.Title,
			Summary: row.Summary,
			Tags:    row.Tags,
		})
	}
	return entries
}
