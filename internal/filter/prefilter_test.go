package filter

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"horse.fit/presscheck/internal/newswire"
)

type stubSelector struct {
	indices []int
	err     error
	entries []RelevanceEntry
}

func (s *stubSelector) SelectIndices(_ context.Context, _ string, entries []RelevanceEntry) ([]int, error) {
	s.entries = entries
	return s.indices, s.err
}

func relevanceCandidates() []newswire.Candidate {
	return []newswire.Candidate{
		{Title: "첫 번째 기사", Publisher: "예시일보"},
		{Title: "두 번째 기사", Publisher: "중앙방송"},
		{Title: "세 번째 기사", Publisher: "예시일보"},
	}
}

func TestByRelevance_SelectsSubset(t *testing.T) {
	t.Parallel()

	selector := &stubSelector{indices: []int{3, 1}}
	kept := ByRelevance(context.Background(), selector, "사회", relevanceCandidates(), zerolog.Nop())

	if len(kept) != 2 {
		t.Fatalf("expected 2 kept, got %d", len(kept))
	}
	if kept[0].Title != "세 번째 기사" || kept[1].Title != "첫 번째 기사" {
		t.Fatalf("unexpected selection: %+v", kept)
	}
	if len(selector.entries) != 3 {
		t.Fatalf("selector saw %d entries, want 3", len(selector.entries))
	}
}

func TestByRelevance_FailsOpenOnError(t *testing.T) {
	t.Parallel()

	selector := &stubSelector{err: errors.New("upstream timeout")}
	kept := ByRelevance(context.Background(), selector, "사회", relevanceCandidates(), zerolog.Nop())
	if len(kept) != 3 {
		t.Fatalf("expected full candidate set on failure, got %d", len(kept))
	}
}

func TestByRelevance_NoneRelevantIsEmpty(t *testing.T) {
	t.Parallel()

	selector := &stubSelector{err: ErrNoneRelevant}
	kept := ByRelevance(context.Background(), selector, "사회", relevanceCandidates(), zerolog.Nop())
	if len(kept) != 0 {
		t.Fatalf("expected empty set for deliberate empty shortlist, got %d", len(kept))
	}
}

func TestByRelevance_InvalidIndicesFailOpen(t *testing.T) {
	t.Parallel()

	selector := &stubSelector{indices: []int{0, 4, -2}}
	kept := ByRelevance(context.Background(), selector, "사회", relevanceCandidates(), zerolog.Nop())
	if len(kept) != 3 {
		t.Fatalf("expected fail-open when no index is usable, got %d", len(kept))
	}
}

func TestByRelevance_DuplicateIndicesCollapsed(t *testing.T) {
	t.Parallel()

	selector := &stubSelector{indices: []int{2, 2, 2}}
	kept := ByRelevance(context.Background(), selector, "사회", relevanceCandidates(), zerolog.Nop())
	if len(kept) != 1 || kept[0].Title != "두 번째 기사" {
		t.Fatalf("expected single deduplicated pick, got %+v", kept)
	}
}

func TestByRelevance_EmptyInput(t *testing.T) {
	t.Parallel()

	selector := &stubSelector{}
	kept := ByRelevance(context.Background(), selector, "사회", nil, zerolog.Nop())
	if kept != nil {
		t.Fatalf("expected nil for empty input, got %+v", kept)
	}
	if selector.entries != nil {
		t.Fatalf("selector must not be called for empty input")
	}
}
