package pipeline

import (
	"sort"
	"time"

	"horse.fit/presscheck/internal/classify"
	"horse.fit/presscheck/internal/db"
	"horse.fit/presscheck/internal/newswire"
)

// Action tags a cached briefing item after a diff. The tag is carried
// explicitly on the value, never inferred from which fields happen to be set.
type Action string

const (
	ActionUnchanged Action = "unchanged"
	ActionModified  Action = "modified"
	ActionAdded     Action = "added"
)

// DiffItem is one briefing entry after diffing against the same-day cache.
// For unchanged and modified items Row is the (possibly updated) persisted
// row; for added items Row is filled from the new classification result and
// ItemUUID is assigned at insert time.
type DiffItem struct {
	Action Action
	Row    db.BriefingItemRow

	// Update carries the in-place mutation for modified items.
	Update db.UpdateBriefingItemParams

	// Insert carries the full new row for added items.
	Insert db.InsertBriefingItemParams
}

// Diff reconciles a briefing-run classification result against the existing
// same-day cache. On a first run (empty existing set) every result becomes
// an added item. On an update run, results referencing an existing item by
// 1-based position become modifications of that item; the rest become added
// items; existing items no result references are tagged unchanged.
//
// Changed items come back newest-published-first, unchanged items after
// them. Running the diff twice with no new results yields all-unchanged.
func Diff(existing []db.BriefingItemRow, results []classify.BriefingItem, candidates []newswire.Candidate) []DiffItem {
	touched := make(map[int]bool, len(results))

	var changed []DiffItem
	for _, result := range results {
		fields := ResolveSource(result.Title, result.SourceIndices, result.MergedIndices, candidates)

		if result.ExistingRef >= 1 && result.ExistingRef <= len(existing) {
			pos := result.ExistingRef - 1
			if touched[pos] {
				// Two results pointing at the same cached item would
				// duplicate one event; keep the first, drop the rest.
				continue
			}
			touched[pos] = true

			row := existing[pos]
			row.Summary = result.Summary
			row.Reason = result.Reason
			row.Tags = result.Tags
			row.Exclusive = result.Exclusive

			changed = append(changed, DiffItem{
				Action: ActionModified,
				Row:    row,
				Update: db.UpdateBriefingItemParams{
					Summary:   result.Summary,
					Reason:    result.Reason,
					Tags:      result.Tags,
					Exclusive: result.Exclusive,
				},
			})
			continue
		}

		insert := db.InsertBriefingItemParams{
			Title:       fields.Title,
			URL:         fields.URL,
			Publisher:   fields.Publisher,
			Summary:     result.Summary,
			Reason:      result.Reason,
			Tags:        result.Tags,
			Category:    string(result.Category),
			Exclusive:   result.Exclusive,
			SourceCount: fields.SourceCount,
			PublishedAt: fields.PublishedAt,
		}
		changed = append(changed, DiffItem{
			Action: ActionAdded,
			Row: db.BriefingItemRow{
				Title:       insert.Title,
				URL:         insert.URL,
				Publisher:   insert.Publisher,
				Summary:     insert.Summary,
				Reason:      insert.Reason,
				Tags:        insert.Tags,
				Category:    insert.Category,
				Exclusive:   insert.Exclusive,
				SourceCount: insert.SourceCount,
				PublishedAt: insert.PublishedAt,
			},
			Insert: insert,
		})
	}

	sort.SliceStable(changed, func(i, j int) bool {
		return publishedAfter(changed[i].Row.PublishedAt, changed[j].Row.PublishedAt)
	})

	items := changed
	for pos, row := range existing {
		if touched[pos] {
			continue
		}
		items = append(items, DiffItem{Action: ActionUnchanged, Row: row})
	}
	return items
}

func publishedAfter(a, b *time.Time) bool {
	switch {
	case a == nil:
		return false
	case b == nil:
		return true
	default:
		return a.After(*b)
	}
}
