package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// HistoryItem is one decoded reported_items row for extractor prompts.
type HistoryItem struct {
	ReportedItemID int64
	CheckedAt      time.Time
	TopicCluster   string
	KeyFacts       []string
	Summary        string
	ArticleURLs    []string
	Category       string
}

// SaveReportedItemParams carries one history row for batch insert.
type SaveReportedItemParams struct {
	TopicCluster string
	KeyFacts     []string
	Summary      string
	ArticleURLs  []string
	Category     string
}

// SaveReportedItems persists one run's classified output in a single
// transaction so a crash cannot leave a half-written batch visible.
func (p *Pool) SaveReportedItems(ctx context.Context, subjectID int64, checkedAt time.Time, items []SaveReportedItemParams) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := p.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin history insert: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const q = `
INSERT INTO reported_items
	(subject_id, checked_at, topic_cluster, key_facts, summary, article_urls, category)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`

	for _, item := range items {
		factsJSON, err := json.Marshal(item.KeyFacts)
		if err != nil {
			return fmt.Errorf("encode key facts: %w", err)
		}
		urlsJSON, err := json.Marshal(item.ArticleURLs)
		if err != nil {
			return fmt.Errorf("encode article urls: %w", err)
		}
		if _, err := tx.Exec(ctx, q,
			subjectID,
			checkedAt.UTC(),
			item.TopicCluster,
			factsJSON,
			item.Summary,
			urlsJSON,
			item.Category,
		); err != nil {
			return fmt.Errorf("insert reported item: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit history insert: %w", err)
	}
	return nil
}

// ListRecentReportedItems returns history rows newer than since, newest first.
func (p *Pool) ListRecentReportedItems(ctx context.Context, subjectID int64, since time.Time) ([]HistoryItem, error) {
	const q = `
SELECT
	r.reported_item_id,
	r.checked_at,
	r.topic_cluster,
	r.key_facts,
	r.summary,
	r.article_urls,
	r.category
FROM reported_items r
WHERE r.subject_id = $1
  AND r.checked_at >= $2
ORDER BY r.checked_at DESC
`

	rows, err := p.Query(ctx, q, subjectID, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("query reported items: %w", err)
	}
	defer rows.Close()

	items := make([]HistoryItem, 0, 32)
	for rows.Next() {
		var (
			row      HistoryItem
			factsRaw []byte
			urlsRaw  []byte
		)
		if err := rows.Scan(
			&row.ReportedItemID,
			&row.CheckedAt,
			&row.TopicCluster,
			&factsRaw,
			&row.Summary,
			&urlsRaw,
			&row.Category,
		); err != nil {
			return nil, fmt.Errorf("scan reported item row: %w", err)
		}
		if err := json.Unmarshal(factsRaw, &row.KeyFacts); err != nil {
			return nil, fmt.Errorf("decode key facts: %w", err)
		}
		if err := json.Unmarshal(urlsRaw, &row.ArticleURLs); err != nil {
			return nil, fmt.Errorf("decode article urls: %w", err)
		}
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reported items: %w", err)
	}

	return items, nil
}
