package db

import (
	"context"
	"fmt"
	"strings"
)

// ScheduleRow is one persisted daily trigger.
type ScheduleRow struct {
	ScheduleID  int64
	SubjectID   int64
	SubjectUUID string
	Variant     string
	TimeOfDay   string
}

// ListAllSchedules returns every persisted trigger, for restore on start.
func (p *Pool) ListAllSchedules(ctx context.Context) ([]ScheduleRow, error) {
	const q = `
SELECT
	sc.schedule_id,
	sc.subject_id,
	s.subject_uuid::text,
	sc.variant,
	sc.time_of_day
FROM schedules sc
JOIN subjects s ON s.subject_id = sc.subject_id
ORDER BY sc.subject_id, sc.variant, sc.time_of_day
`
	return p.scanSchedules(ctx, q)
}

// ListSchedules returns a subject's persisted triggers.
func (p *Pool) ListSchedules(ctx context.Context, subjectID int64) ([]ScheduleRow, error) {
	const q = `
SELECT
	sc.schedule_id,
	sc.subject_id,
	s.subject_uuid::text,
	sc.variant,
	sc.time_of_day
FROM schedules sc
JOIN subjects s ON s.subject_id = sc.subject_id
WHERE sc.subject_id = $1
ORDER BY sc.variant, sc.time_of_day
`
	return p.scanSchedules(ctx, q, subjectID)
}

// ReplaceSchedules swaps a subject's trigger set for one variant atomically:
// everything for the variant is deleted, then the new times are inserted, in
// a single transaction.
func (p *Pool) ReplaceSchedules(ctx context.Context, subjectID int64, variant string, times []string) error {
	variant = strings.TrimSpace(strings.ToLower(variant))

	tx, err := p.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin schedule replace: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`DELETE FROM schedules WHERE subject_id = $1 AND variant = $2`,
		subjectID, variant,
	); err != nil {
		return fmt.Errorf("delete schedules: %w", err)
	}

	const insertQ = `INSERT INTO schedules (subject_id, variant, time_of_day) VALUES ($1, $2, $3)`
	for _, timeOfDay := range times {
		if _, err := tx.Exec(ctx, insertQ, subjectID, variant, strings.TrimSpace(timeOfDay)); err != nil {
			return fmt.Errorf("insert schedule %s: %w", timeOfDay, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit schedule replace: %w", err)
	}
	return nil
}

// DeleteAllSchedules drops every trigger a subject has, across variants.
func (p *Pool) DeleteAllSchedules(ctx context.Context, subjectID int64) error {
	if _, err := p.Exec(ctx, `DELETE FROM schedules WHERE subject_id = $1`, subjectID); err != nil {
		return fmt.Errorf("delete all schedules: %w", err)
	}
	return nil
}

func (p *Pool) scanSchedules(ctx context.Context, query string, args ...any) ([]ScheduleRow, error) {
	rows, err := p.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query schedules: %w", err)
	}
	defer rows.Close()

	items := make([]ScheduleRow, 0, 8)
	for rows.Next() {
		var row ScheduleRow
		if err := rows.Scan(
			&row.ScheduleID,
			&row.SubjectID,
			&row.SubjectUUID,
			&row.Variant,
			&row.TimeOfDay,
		); err != nil {
			return nil, fmt.Errorf("scan schedule row: %w", err)
		}
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schedules: %w", err)
	}

	return items, nil
}
