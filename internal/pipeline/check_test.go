package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/presscheck/internal/classify"
	"horse.fit/presscheck/internal/db"
	"horse.fit/presscheck/internal/filter"
	"horse.fit/presscheck/internal/newswire"
)

type stubCheckStore struct {
	history []db.HistoryItem
	saved   []db.SaveReportedItemParams

	updateCalled bool
	updateCtxErr error
	updatedAt    time.Time
}

func (s *stubCheckStore) UpdateLastCheckAt(ctx context.Context, _ int64, at time.Time) error {
	s.updateCalled = true
	s.updateCtxErr = ctx.Err()
	s.updatedAt = at
	return nil
}

func (s *stubCheckStore) ListRecentReportedItems(context.Context, int64, time.Time) ([]db.HistoryItem, error) {
	return s.history, nil
}

func (s *stubCheckStore) SaveReportedItems(_ context.Context, _ int64, _ time.Time, items []db.SaveReportedItemParams) error {
	s.saved = items
	return nil
}

type stubSearcher struct {
	candidates []newswire.Candidate
	err        error
}

func (s stubSearcher) Search(context.Context, []string, time.Time, int) ([]newswire.Candidate, error) {
	return s.candidates, s.err
}

// passSelector shortlists everything it is shown.
type passSelector struct{}

func (passSelector) SelectIndices(_ context.Context, _ string, entries []filter.RelevanceEntry) ([]int, error) {
	indices := make([]int, len(entries))
	for i := range entries {
		indices[i] = i + 1
	}
	return indices, nil
}

type stubFetcher struct{}

func (stubFetcher) FetchBatch(_ context.Context, urls []string) (map[string]*string, error) {
	bodies := make(map[string]*string, len(urls))
	for _, u := range urls {
		body := "본문"
		bodies[u] = &body
	}
	return bodies, nil
}

type stubCheckAnalyzer struct {
	items []classify.CheckItem
}

func (s stubCheckAnalyzer) AnalyzeCheck(context.Context, classify.CheckRequest) ([]classify.CheckItem, error) {
	return s.items, nil
}

func checkSubject() db.SubjectRow {
	return db.SubjectRow{SubjectID: 1, Name: "경쟁사", Department: "사회", Keywords: []string{"검찰"}}
}

func TestCheckRun_BookkeepingSurvivesCancelledContext(t *testing.T) {
	t.Parallel()

	store := &stubCheckStore{}
	check := NewCheck(CheckParams{
		Pool:     store,
		Searcher: stubSearcher{err: context.Canceled},
		Ceiling:  3 * time.Hour,
		Logger:   zerolog.Nop(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := check.Run(ctx, checkSubject())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected the run to fail with the cancel, got %v", err)
	}
	if !store.updateCalled {
		t.Fatalf("last_check_at was not advanced on the failure path")
	}
	if store.updateCtxErr != nil {
		t.Fatalf("bookkeeping ran on a dead context: %v", store.updateCtxErr)
	}
	if store.updatedAt.IsZero() {
		t.Fatalf("bookkeeping timestamp not set")
	}
}

func TestCheckRun_SkippedClustersRecordedInHistory(t *testing.T) {
	t.Parallel()

	published := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	candidates := []newswire.Candidate{
		{
			Title:       "검찰, 전직 임원 구속영장 청구",
			Link:        "https://news.example.com/1",
			OriginLink:  "https://news.example.com/1",
			PublishedAt: published,
		},
		{
			Title:       "시청 앞 도로 통제 안내",
			Link:        "https://news.example.com/2",
			OriginLink:  "https://news.example.com/2",
			PublishedAt: published,
		},
	}

	store := &stubCheckStore{}
	check := NewCheck(CheckParams{
		Pool:      store,
		Searcher:  stubSearcher{candidates: candidates},
		Allowlist: filter.NewAllowlistFrom([]filter.Publisher{{Name: "예시일보", Domain: "example.com"}}),
		Selector:  passSelector{},
		Fetcher:   stubFetcher{},
		Analyzer: stubCheckAnalyzer{items: []classify.CheckItem{
			{
				Category:      classify.CheckImportant,
				TopicCluster:  "임원 수사",
				Title:         "검찰, 전직 임원 구속영장 청구",
				Summary:       "검찰이 구속영장을 청구했다.",
				KeyFacts:      []string{"구속영장 청구"},
				SourceIndices: []int{1},
			},
			{
				Category:      classify.CheckSkip,
				TopicCluster:  "도로 통제",
				Title:         "시청 앞 도로 통제 안내",
				Summary:       "단순 교통 안내.",
				SourceIndices: []int{2},
			},
		}},
		Ceiling:  3 * time.Hour,
		Lookback: 72 * time.Hour,
		Logger:   zerolog.Nop(),
	})

	outcome, err := check.Run(context.Background(), checkSubject())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(outcome.Items) != 2 {
		t.Fatalf("expected 2 classified items, got %d", len(outcome.Items))
	}
	if outcome.Empty() {
		t.Fatalf("outcome with an important item must not be empty")
	}

	if len(store.saved) != 2 {
		t.Fatalf("expected skip clusters in history, saved %d rows", len(store.saved))
	}
	categories := map[string]bool{}
	for _, row := range store.saved {
		categories[row.Category] = true
	}
	if !categories["important"] || !categories["skip"] {
		t.Fatalf("history rows missing a category: %+v", store.saved)
	}
}
