package filter

import (
	"strings"

	"horse.fit/presscheck/internal/langdetect"
	"horse.fit/presscheck/internal/newswire"
)

// skipTitleTags mark non-text content (photo sets, video clips, card news)
// that carries nothing worth classifying.
var skipTitleTags = []string{
	"[포토]",
	"[사진]",
	"[영상]",
	"[동영상]",
	"[화보]",
	"[카드뉴스]",
	"[인포그래픽]",
}

// HasSkipTag reports whether a title carries a non-text-content marker.
func HasSkipTag(title string) bool {
	for _, tag := range skipTitleTags {
		if strings.Contains(title, tag) {
			return true
		}
	}
	return false
}

// ByTitle drops candidates whose title marks non-text content or whose
// title+snippet is in a language the pipeline does not handle. Runs before
// any fetch or classification call.
func ByTitle(candidates []newswire.Candidate) []newswire.Candidate {
	kept := make([]newswire.Candidate, 0, len(candidates))
	for _, candidate := range candidates {
		if HasSkipTag(candidate.Title) {
			continue
		}
		if !langdetect.IsReportable(candidate.Title + " " + candidate.Snippet) {
			continue
		}
		kept = append(kept, candidate)
	}
	return kept
}
