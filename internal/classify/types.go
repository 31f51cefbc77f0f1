package classify

// CheckCategory buckets one cluster of candidates in a check run.
type CheckCategory string

const (
	CheckExclusive CheckCategory = "exclusive"
	CheckImportant CheckCategory = "important"
	CheckSkip      CheckCategory = "skip"
)

func (c CheckCategory) Valid() bool {
	switch c {
	case CheckExclusive, CheckImportant, CheckSkip:
		return true
	}
	return false
}

// Reportable reports whether items of this category go out in a check
// notification. Skipped clusters are still recorded in history.
func (c CheckCategory) Reportable() bool {
	return c == CheckExclusive || c == CheckImportant
}

// CheckItem is one classified topic cluster from a check run. SourceIndices
// and MergedIndices are 1-based positions into the candidate list the
// classifier was shown; SourceIndices carry the cluster, MergedIndices are
// duplicates folded into it.
type CheckItem struct {
	Category      CheckCategory `json:"category"`
	TopicCluster  string        `json:"topic_cluster"`
	Publisher     string        `json:"publisher"`
	Title         string        `json:"title"`
	URL           string        `json:"url"`
	Summary       string        `json:"summary"`
	Reason        string        `json:"reason"`
	KeyFacts      []string      `json:"key_facts"`
	SourceIndices []int         `json:"source_indices"`
	MergedIndices []int         `json:"merged_indices"`
}

// BriefingCategory tells whether a briefing item continues an already
// tracked story or opens a new one.
type BriefingCategory string

const (
	BriefingFollowUp BriefingCategory = "follow_up"
	BriefingNew      BriefingCategory = "new"
)

func (c BriefingCategory) Valid() bool {
	return c == BriefingFollowUp || c == BriefingNew
}

// BriefingItem is one classified item from a briefing run. On an update run
// ExistingRef points (1-based) at the cached item it revises; zero means a
// fresh item.
type BriefingItem struct {
	Category      BriefingCategory `json:"category"`
	Exclusive     bool             `json:"exclusive"`
	ExistingRef   int              `json:"existing_ref"`
	Title         string           `json:"title"`
	URL           string           `json:"url"`
	Summary       string           `json:"summary"`
	Reason        string           `json:"reason"`
	Tags          []string         `json:"tags"`
	SourceIndices []int            `json:"source_indices"`
	MergedIndices []int            `json:"merged_indices"`
}
