package db

import (
	"context"
	"fmt"
	"time"
)

// SweepStats reports how many rows a retention sweep removed.
type SweepStats struct {
	BriefingItems  int64
	BriefingCaches int64
	ReportedItems  int64
}

// SweepExpired purges briefing caches older than retentionDays (keyed on
// calendar day) and history rows older than the same cutoff (keyed on
// timestamp). Both purges run in one transaction.
func (p *Pool) SweepExpired(ctx context.Context, now time.Time, retentionDays int) (SweepStats, error) {
	if retentionDays < 1 {
		return SweepStats{}, fmt.Errorf("retention days must be >= 1")
	}

	cutoff := now.UTC().AddDate(0, 0, -retentionDays)
	cutoffDay := cutoff.Format("2006-01-02")

	tx, err := p.BeginTx(ctx)
	if err != nil {
		return SweepStats{}, fmt.Errorf("begin retention sweep: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var stats SweepStats

	tag, err := tx.Exec(ctx,
		`DELETE FROM briefing_items WHERE briefing_cache_id IN (SELECT briefing_cache_id FROM briefing_caches WHERE day < $1)`,
		cutoffDay,
	)
	if err != nil {
		return SweepStats{}, fmt.Errorf("sweep briefing items: %w", err)
	}
	stats.BriefingItems = tag.RowsAffected()

	tag, err = tx.Exec(ctx, `DELETE FROM briefing_caches WHERE day < $1`, cutoffDay)
	if err != nil {
		return SweepStats{}, fmt.Errorf("sweep briefing caches: %w", err)
	}
	stats.BriefingCaches = tag.RowsAffected()

	tag, err = tx.Exec(ctx, `DELETE FROM reported_items WHERE checked_at < $1`, cutoff)
	if err != nil {
		return SweepStats{}, fmt.Errorf("sweep reported items: %w", err)
	}
	stats.ReportedItems = tag.RowsAffected()

	if err := tx.Commit(ctx); err != nil {
		return SweepStats{}, fmt.Errorf("commit retention sweep: %w", err)
	}
	return stats, nil
}
