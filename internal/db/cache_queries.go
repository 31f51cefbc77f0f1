package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BriefingItemRow is one decoded briefing_items row.
type BriefingItemRow struct {
	BriefingItemID int64
	ItemUUID       string
	Title          string
	URL            string
	Publisher      string
	Summary        string
	Reason         string
	Tags           []string
	Category       string
	Exclusive      bool
	SourceCount    int
	PublishedAt    *time.Time
}

// GetOrCreateBriefingCache returns the cache header for (subject, day),
// creating it when the day has no cache yet. The second return reports
// whether a new header was created.
func (p *Pool) GetOrCreateBriefingCache(ctx context.Context, subjectID int64, day string) (int64, bool, error) {
	day = strings.TrimSpace(day)

	const insertQ = `
INSERT INTO briefing_caches (subject_id, day)
VALUES ($1, $2)
ON CONFLICT (subject_id, day) DO NOTHING
RETURNING briefing_cache_id
`

	var cacheID int64
	err := p.QueryRow(ctx, insertQ, subjectID, day).Scan(&cacheID)
	if err == nil {
		return cacheID, true, nil
	}
	if !errors.Is(err, ErrNoRows) {
		return 0, false, fmt.Errorf("create briefing cache: %w", err)
	}

	const selectQ = `SELECT briefing_cache_id FROM briefing_caches WHERE subject_id = $1 AND day = $2`
	if err := p.QueryRow(ctx, selectQ, subjectID, day).Scan(&cacheID); err != nil {
		return 0, false, fmt.Errorf("query briefing cache: %w", err)
	}
	return cacheID, false, nil
}

func (p *Pool) ListBriefingItems(ctx context.Context, cacheID int64) ([]BriefingItemRow, error) {
	const q = `
SELECT
	b.briefing_item_id,
	b.item_uuid::text,
	b.title,
	b.url,
	b.publisher,
	b.summary,
	b.reason,
	b.tags,
	b.category,
	b.exclusive,
	b.source_count,
	b.published_at
FROM briefing_items b
WHERE b.briefing_cache_id = $1
ORDER BY b.briefing_item_id
`

	rows, err := p.Query(ctx, q, cacheID)
	if err != nil {
		return nil, fmt.Errorf("query briefing items: %w", err)
	}
	defer rows.Close()

	items := make([]BriefingItemRow, 0, 16)
	for rows.Next() {
		var (
			row     BriefingItemRow
			tagsRaw []byte
		)
		if err := rows.Scan(
			&row.BriefingItemID,
			&row.ItemUUID,
			&row.Title,
			&row.URL,
			&row.Publisher,
			&row.Summary,
			&row.Reason,
			&tagsRaw,
			&row.Category,
			&row.Exclusive,
			&row.SourceCount,
			&row.PublishedAt,
		); err != nil {
			return nil, fmt.Errorf("scan briefing item row: %w", err)
		}
		if err := json.Unmarshal(tagsRaw, &row.Tags); err != nil {
			return nil, fmt.Errorf("decode briefing item tags: %w", err)
		}
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate briefing items: %w", err)
	}

	return items, nil
}

// InsertBriefingItemParams carries one new briefing entry.
type InsertBriefingItemParams struct {
	Title       string
	URL         string
	Publisher   string
	Summary     string
	Reason      string
	Tags        []string
	Category    string
	Exclusive   bool
	SourceCount int
	PublishedAt *time.Time
}

// InsertBriefingItems persists new entries in one transaction and returns
// their generated stable identifiers in input order.
func (p *Pool) InsertBriefingItems(ctx context.Context, cacheID int64, items []InsertBriefingItemParams) ([]string, error) {
	if len(items) == 0 {
		return nil, nil
	}

	tx, err := p.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin briefing insert: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const q = `
INSERT INTO briefing_items
	(item_uuid, briefing_cache_id, title, url, publisher, summary, reason, tags, category, exclusive, source_count, published_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
`

	itemUUIDs := make([]string, 0, len(items))
	for _, item := range items {
		tagsJSON, err := json.Marshal(emptyIfNil(item.Tags))
		if err != nil {
			return nil, fmt.Errorf("encode briefing item tags: %w", err)
		}

		itemUUID := uuid.NewString()
		sourceCount := item.SourceCount
		if sourceCount < 1 {
			sourceCount = 1
		}

		if _, err := tx.Exec(ctx, q,
			itemUUID,
			cacheID,
			item.Title,
			item.URL,
			item.Publisher,
			item.Summary,
			item.Reason,
			tagsJSON,
			item.Category,
			item.Exclusive,
			sourceCount,
			item.PublishedAt,
		); err != nil {
			return nil, fmt.Errorf("insert briefing item: %w", err)
		}
		itemUUIDs = append(itemUUIDs, itemUUID)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit briefing insert: %w", err)
	}
	return itemUUIDs, nil
}

// UpdateBriefingItemParams carries the fields an update-run may replace.
// Fields are replaced wholesale, never appended.
type UpdateBriefingItemParams struct {
	Summary   string
	Reason    string
	Tags      []string
	Exclusive bool
}

func (p *Pool) UpdateBriefingItem(ctx context.Context, itemUUID string, params UpdateBriefingItemParams) error {
	tagsJSON, err := json.Marshal(emptyIfNil(params.Tags))
	if err != nil {
		return fmt.Errorf("encode briefing item tags: %w", err)
	}

	const q = `
UPDATE briefing_items
SET summary = $1,
	reason = $2,
	tags = $3,
	exclusive = $4,
	updated_at = now()
WHERE item_uuid = $5::uuid
`

	tag, err := p.Exec(ctx, q, params.Summary, params.Reason, tagsJSON, params.Exclusive, strings.TrimSpace(itemUUID))
	if err != nil {
		return fmt.Errorf("update briefing item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update briefing item %s: %w", itemUUID, ErrNoRows)
	}
	return nil
}

// ListRecentBriefingTags collects distinct tags from the last N days of
// briefing items, most recent day first.
func (p *Pool) ListRecentBriefingTags(ctx context.Context, subjectID int64, sinceDay string) ([]string, error) {
	const q = `
SELECT b.tags
FROM briefing_items b
JOIN briefing_caches c ON c.briefing_cache_id = b.briefing_cache_id
WHERE c.subject_id = $1
  AND c.day >= $2
ORDER BY c.day DESC, b.briefing_item_id
`

	rows, err := p.Query(ctx, q, subjectID, strings.TrimSpace(sinceDay))
	if err != nil {
		return nil, fmt.Errorf("query briefing tags: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]struct{}, 32)
	tags := make([]string, 0, 32)
	for rows.Next() {
		var tagsRaw []byte
		if err := rows.Scan(&tagsRaw); err != nil {
			return nil, fmt.Errorf("scan briefing tags: %w", err)
		}
		var rowTags []string
		if err := json.Unmarshal(tagsRaw, &rowTags); err != nil {
			return nil, fmt.Errorf("decode briefing tags: %w", err)
		}
		for _, tag := range rowTags {
			tag = strings.TrimSpace(tag)
			if tag == "" {
				continue
			}
			if _, exists := seen[tag]; exists {
				continue
			}
			seen[tag] = struct{}{}
			tags = append(tags, tag)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate briefing tags: %w", err)
	}

	return tags, nil
}

func emptyIfNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
