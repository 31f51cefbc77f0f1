package pipeline

import (
	"regexp"
	"strings"
	"time"

	"horse.fit/presscheck/internal/newswire"
)

var (
	titleBracketRe = regexp.MustCompile(`\[[^\]]*\]\s*`)
	whitespaceRe   = regexp.MustCompile(`\s+`)
)

// substring matching below this normalized length is too collision-prone
// to trust.
const minSubstringMatchLen = 15

// NormalizeTitle strips bracketed tags like [단독] and collapses whitespace,
// producing the form used for cross-source title matching.
func NormalizeTitle(title string) string {
	stripped := titleBracketRe.ReplaceAllString(title, "")
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(stripped, " "))
}

// SourceFields are the candidate-borrowed display fields attached to one
// classified item during reconciliation.
type SourceFields struct {
	Title       string
	URL         string
	Publisher   string
	PublishedAt *time.Time
	SourceCount int

	// TitleFromSource reports whether Title was taken from a matched
	// candidate. On the index-fallback path the classifier's own title is
	// kept so it stays consistent with the generated summary.
	TitleFromSource bool
}

// matchCandidate finds the source candidate for a classifier-provided title.
// Tiers, in order: exact match, normalized match, then substring containment
// for sufficiently long normalized titles. Returns -1 when nothing matches.
func matchCandidate(classifierTitle string, candidates []newswire.Candidate) int {
	if classifierTitle == "" {
		return -1
	}

	for i, c := range candidates {
		if c.Title == classifierTitle {
			return i
		}
	}

	norm := NormalizeTitle(classifierTitle)
	if norm == "" {
		return -1
	}
	for i, c := range candidates {
		if NormalizeTitle(c.Title) == norm {
			return i
		}
	}

	if len([]rune(norm)) >= minSubstringMatchLen {
		for i, c := range candidates {
			normC := NormalizeTitle(c.Title)
			if normC == "" {
				continue
			}
			if strings.Contains(normC, norm) || strings.Contains(norm, normC) {
				return i
			}
		}
	}

	return -1
}

// ResolveSource reconciles one classified item against the candidate list.
// Title matching wins; failing that, the first declared source index is used
// as a fallback that borrows publisher/URL/time but never the title. Items
// matching nothing keep empty fields rather than failing the run.
func ResolveSource(classifierTitle string, sourceIndices, mergedIndices []int, candidates []newswire.Candidate) SourceFields {
	n := len(candidates)
	validSources := validIndices(sourceIndices, n)
	validMerged := validIndices(mergedIndices, n)

	distinct := make(map[int]struct{}, len(validSources)+len(validMerged))
	for _, idx := range validSources {
		distinct[idx] = struct{}{}
	}
	for _, idx := range validMerged {
		distinct[idx] = struct{}{}
	}

	fields := SourceFields{
		Title:       classifierTitle,
		SourceCount: len(distinct),
	}
	if fields.SourceCount < 1 {
		fields.SourceCount = 1
	}

	if idx := matchCandidate(classifierTitle, candidates); idx >= 0 {
		matched := candidates[idx]
		fields.Title = matched.Title
		fields.TitleFromSource = true
		fields.URL = matched.Link
		fields.Publisher = matched.Publisher
		if !matched.PublishedAt.IsZero() {
			at := matched.PublishedAt
			fields.PublishedAt = &at
		}
		return fields
	}

	if len(validSources) > 0 {
		src := candidates[validSources[0]-1]
		fields.URL = src.Link
		fields.Publisher = src.Publisher
		if !src.PublishedAt.IsZero() {
			at := src.PublishedAt
			fields.PublishedAt = &at
		}
	}
	return fields
}

func validIndices(indices []int, n int) []int {
	valid := indices[:0:0]
	for _, idx := range indices {
		if idx >= 1 && idx <= n {
			valid = append(valid, idx)
		}
	}
	return valid
}
