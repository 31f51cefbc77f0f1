package filter

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"horse.fit/presscheck/internal/newswire"
)

// ErrNoneRelevant signals that the classification service judged every
// candidate irrelevant. Callers must treat this as a legitimate empty
// shortlist, not as a transport failure.
var ErrNoneRelevant = errors.New("no relevant candidates")

// RelevanceEntry is one (publisher, title, snippet) tuple submitted for
// index selection.
type RelevanceEntry struct {
	Publisher string
	Title     string
	Snippet   string
}

// IndexSelector asks the classification service to shortlist candidates by
// 1-based index before any body fetch happens. Implementations return
// ErrNoneRelevant for a deliberate empty shortlist.
type IndexSelector interface {
	SelectIndices(ctx context.Context, department string, entries []RelevanceEntry) ([]int, error)
}

// ByRelevance runs the pre-filter stage. On transport or classification
// failure it fails open and returns the full candidate set, so a flaky
// collaborator can never silently suppress all content. A deliberate empty
// shortlist (ErrNoneRelevant) returns an empty set instead.
func ByRelevance(
	ctx context.Context,
	selector IndexSelector,
	department string,
	candidates []newswire.Candidate,
	logger zerolog.Logger,
) []newswire.Candidate {
	if len(candidates) == 0 {
		return nil
	}

	entries := make([]RelevanceEntry, 0, len(candidates))
	for _, candidate := range candidates {
		entries = append(entries, RelevanceEntry{
			Publisher: candidate.Publisher,
			Title:     candidate.Title,
			Snippet:   candidate.Snippet,
		})
	}

	indices, err := selector.SelectIndices(ctx, department, entries)
	if err != nil {
		if errors.Is(err, ErrNoneRelevant) {
			return []newswire.Candidate{}
		}
		logger.Warn().Err(err).Int("candidates", len(candidates)).
			Msg("relevance pre-filter failed, passing full candidate set")
		return candidates
	}

	kept := make([]newswire.Candidate, 0, len(indices))
	seen := make(map[int]struct{}, len(indices))
	for _, idx := range indices {
		if idx < 1 || idx > len(candidates) {
			continue
		}
		if _, dup := seen[idx]; dup {
			continue
		}
		seen[idx] = struct{}{}
		kept = append(kept, candidates[idx-1])
	}

	if len(kept) == 0 {
		// The service answered but produced nothing usable; same fail-open
		// rule as a transport failure.
		logger.Warn().Int("candidates", len(candidates)).
			Msg("relevance pre-filter returned no usable indices, passing full candidate set")
		return candidates
	}
	return kept
}
