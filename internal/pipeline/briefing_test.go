package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/presscheck/internal/db"
)

type stubBriefingStore struct {
	updateCalled bool
	updateCtxErr error
}

func (s *stubBriefingStore) UpdateLastBriefingAt(ctx context.Context, _ int64, _ time.Time) error {
	s.updateCalled = true
	s.updateCtxErr = ctx.Err()
	return nil
}

func (s *stubBriefingStore) GetOrCreateBriefingCache(context.Context, int64, string) (int64, bool, error) {
	return 1, true, nil
}

func (s *stubBriefingStore) ListBriefingItems(context.Context, int64) ([]db.BriefingItemRow, error) {
	return nil, nil
}

func (s *stubBriefingStore) ListRecentBriefingTags(context.Context, int64, string) ([]string, error) {
	return nil, nil
}

func (s *stubBriefingStore) UpdateBriefingItem(context.Context, string, db.UpdateBriefingItemParams) error {
	return nil
}

func (s *stubBriefingStore) InsertBriefingItems(context.Context, int64, []db.InsertBriefingItemParams) ([]string, error) {
	return nil, nil
}

func TestBriefingRun_BookkeepingSurvivesCancelledContext(t *testing.T) {
	t.Parallel()

	store := &stubBriefingStore{}
	briefing := NewBriefing(BriefingParams{
		Pool:     store,
		Searcher: stubSearcher{err: context.Canceled},
		Ceiling:  24 * time.Hour,
		Location: time.UTC,
		Logger:   zerolog.Nop(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	subject := db.SubjectRow{SubjectID: 7, Name: "경쟁사", Department: "사회"}
	_, err := briefing.Run(ctx, subject)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected the run to fail with the cancel, got %v", err)
	}
	if !store.updateCalled {
		t.Fatalf("last_briefing_at was not advanced on the failure path")
	}
	if store.updateCtxErr != nil {
		t.Fatalf("bookkeeping ran on a dead context: %v", store.updateCtxErr)
	}
}
