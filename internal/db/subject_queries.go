package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrSubjectNotFound = errors.New("subject not found")

// SubjectRow is a subject with keywords decoded for pipeline use.
type SubjectRow struct {
	SubjectID      int64
	SubjectUUID    string
	Name           string
	Department     string
	Keywords       []string
	LastCheckAt    *time.Time
	LastBriefingAt *time.Time
}

func (p *Pool) GetSubjectByUUID(ctx context.Context, subjectUUID string) (SubjectRow, error) {
	const q = `
SELECT
	s.subject_id,
	s.subject_uuid::text,
	s.name,
	s.department,
	s.keywords,
	s.last_check_at,
	s.last_briefing_at
FROM subjects s
WHERE s.subject_uuid = $1::uuid
LIMIT 1
`

	var (
		row         SubjectRow
		keywordsRaw []byte
	)
	err := p.QueryRow(ctx, q, strings.TrimSpace(subjectUUID)).Scan(
		&row.SubjectID,
		&row.SubjectUUID,
		&row.Name,
		&row.Department,
		&keywordsRaw,
		&row.LastCheckAt,
		&row.LastBriefingAt,
	)
	if err != nil {
		if errors.Is(err, ErrNoRows) {
			return SubjectRow{}, ErrSubjectNotFound
		}
		return SubjectRow{}, fmt.Errorf("query subject: %w", err)
	}

	if err := json.Unmarshal(keywordsRaw, &row.Keywords); err != nil {
		return SubjectRow{}, fmt.Errorf("decode subject keywords: %w", err)
	}
	return row, nil
}

func (p *Pool) ListSubjects(ctx context.Context) ([]SubjectRow, error) {
	const q = `
SELECT
	s.subject_id,
	s.subject_uuid::text,
	s.name,
	s.department,
	s.keywords,
	s.last_check_at,
	s.last_briefing_at
FROM subjects s
ORDER BY s.subject_id
`

	rows, err := p.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query subjects: %w", err)
	}
	defer rows.Close()

	items := make([]SubjectRow, 0, 16)
	for rows.Next() {
		var (
			row         SubjectRow
			keywordsRaw []byte
		)
		if err := rows.Scan(
			&row.SubjectID,
			&row.SubjectUUID,
			&row.Name,
			&row.Department,
			&keywordsRaw,
			&row.LastCheckAt,
			&row.LastBriefingAt,
		); err != nil {
			return nil, fmt.Errorf("scan subject row: %w", err)
		}
		if err := json.Unmarshal(keywordsRaw, &row.Keywords); err != nil {
			return nil, fmt.Errorf("decode subject keywords: %w", err)
		}
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subjects: %w", err)
	}

	return items, nil
}

// UpsertSubject registers or updates a subject keyed by name and returns its id.
func (p *Pool) UpsertSubject(ctx context.Context, name, department string, keywords []string) (int64, error) {
	keywordsJSON, err := json.Marshal(keywords)
	if err != nil {
		return 0, fmt.Errorf("encode keywords: %w", err)
	}

	const q = `
INSERT INTO subjects (name, department, keywords)
VALUES ($1, $2, $3)
ON CONFLICT (name)
DO UPDATE SET
	department = EXCLUDED.department,
	keywords = EXCLUDED.keywords,
	updated_at = now()
RETURNING subject_id
`

	var subjectID int64
	if err := p.QueryRow(ctx, q, strings.TrimSpace(name), strings.TrimSpace(department), keywordsJSON).Scan(&subjectID); err != nil {
		return 0, fmt.Errorf("upsert subject: %w", err)
	}
	return subjectID, nil
}

// UpdateLastCheckAt advances the check-variant run timestamp. Called at the
// end of every check run, including empty and failed ones.
func (p *Pool) UpdateLastCheckAt(ctx context.Context, subjectID int64, at time.Time) error {
	const q = `UPDATE subjects SET last_check_at = $1, updated_at = now() WHERE subject_id = $2`
	if _, err := p.Exec(ctx, q, at.UTC(), subjectID); err != nil {
		return fmt.Errorf("update last_check_at: %w", err)
	}
	return nil
}

// UpdateLastBriefingAt advances the briefing-variant run timestamp.
func (p *Pool) UpdateLastBriefingAt(ctx context.Context, subjectID int64, at time.Time) error {
	const q = `UPDATE subjects SET last_briefing_at = $1, updated_at = now() WHERE subject_id = $2`
	if _, err := p.Exec(ctx, q, at.UTC(), subjectID); err != nil {
		return fmt.Errorf("update last_briefing_at: %w", err)
	}
	return nil
}

// UpdateSubjectKeywords replaces the tracked keyword set and resets the check
// window, since history gathered under the old keywords no longer applies.
func (p *Pool) UpdateSubjectKeywords(ctx context.Context, subjectID int64, keywords []string) error {
	keywordsJSON, err := json.Marshal(keywords)
	if err != nil {
		return fmt.Errorf("encode keywords: %w", err)
	}

	tx, err := p.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin keyword update: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`UPDATE subjects SET keywords = $1, last_check_at = NULL, updated_at = now() WHERE subject_id = $2`,
		keywordsJSON, subjectID,
	); err != nil {
		return fmt.Errorf("update keywords: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`DELETE FROM reported_items WHERE subject_id = $1`,
		subjectID,
	); err != nil {
		return fmt.Errorf("clear check history: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit keyword update: %w", err)
	}
	return nil
}

// DeleteSubject removes a subject and everything hanging off it.
func (p *Pool) DeleteSubject(ctx context.Context, subjectID int64) error {
	tx, err := p.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin subject delete: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	statements := []string{
		`DELETE FROM briefing_items WHERE briefing_cache_id IN (SELECT briefing_cache_id FROM briefing_caches WHERE subject_id = $1)`,
		`DELETE FROM briefing_caches WHERE subject_id = $1`,
		`DELETE FROM reported_items WHERE subject_id = $1`,
		`DELETE FROM schedules WHERE subject_id = $1`,
		`DELETE FROM subjects WHERE subject_id = $1`,
	}
	for _, stmt := range statements {
		if _, err := tx.Exec(ctx, stmt, subjectID); err != nil {
			return fmt.Errorf("delete subject data: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit subject delete: %w", err)
	}
	return nil
}
