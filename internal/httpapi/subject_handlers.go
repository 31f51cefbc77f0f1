package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"horse.fit/presscheck/internal/db"
	"horse.fit/presscheck/internal/runner"
)

type subjectResponse struct {
	SubjectUUID    string     `json:"subject_uuid"`
	Name           string     `json:"name"`
	Department     string     `json:"department"`
	Keywords       []string   `json:"keywords"`
	LastCheckAt    *time.Time `json:"last_check_at,omitempty"`
	LastBriefingAt *time.Time `json:"last_briefing_at,omitempty"`
}

func toSubjectResponse(row db.SubjectRow) subjectResponse {
	return subjectResponse{
		SubjectUUID:    row.SubjectUUID,
		Name:           row.Name,
		Department:     row.Department,
		Keywords:       row.Keywords,
		LastCheckAt:    row.LastCheckAt,
		LastBriefingAt: row.LastBriefingAt,
	}
}

func (s *Server) handleListSubjects(c echo.Context) error {
	rows, err := s.pool.ListSubjects(c.Request().Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("list subjects failed")
		return internalError(c, "Failed to load subjects")
	}

	items := make([]subjectResponse, 0, len(rows))
	for _, row := range rows {
		items = append(items, toSubjectResponse(row))
	}
	return success(c, map[string]any{"items": items})
}

type upsertSubjectRequest struct {
	Name       string   `json:"name"`
	Department string   `json:"department"`
	Keywords   []string `json:"keywords"`
}

func (s *Server) handleUpsertSubject(c echo.Context) error {
	var req upsertSubjectRequest
	if err := c.Bind(&req); err != nil {
		return failValidation(c, map[string]string{"body": "must be valid JSON"})
	}

	fieldErrors := map[string]string{}
	if strings.TrimSpace(req.Name) == "" {
		fieldErrors["name"] = "is required"
	}
	if strings.TrimSpace(req.Department) == "" {
		fieldErrors["department"] = "is required"
	}
	keywords := cleanKeywords(req.Keywords)
	if len(keywords) == 0 {
		fieldErrors["keywords"] = "at least one keyword is required"
	}
	if len(fieldErrors) > 0 {
		return failValidation(c, fieldErrors)
	}

	subjectID, err := s.pool.UpsertSubject(c.Request().Context(), strings.TrimSpace(req.Name), strings.TrimSpace(req.Department), keywords)
	if err != nil {
		s.logger.Error().Err(err).Str("name", req.Name).Msg("upsert subject failed")
		return internalError(c, "Failed to save subject")
	}

	return successWithStatus(c, http.StatusCreated, map[string]any{
		"subject_id": subjectID,
		"name":       strings.TrimSpace(req.Name),
		"department": strings.TrimSpace(req.Department),
		"keywords":   keywords,
	})
}

func (s *Server) handleGetSubject(c echo.Context) error {
	subject, ok, err := s.loadSubject(c)
	if !ok {
		return err
	}
	return success(c, toSubjectResponse(subject))
}

type updateKeywordsRequest struct {
	Keywords []string `json:"keywords"`
}

// handleUpdateKeywords swaps a subject's keyword set. The check window and
// reported history are cleared with it, since history built on the old
// keywords would poison dedup against the new ones.
func (s *Server) handleUpdateKeywords(c echo.Context) error {
	subject, ok, err := s.loadSubject(c)
	if !ok {
		return err
	}

	var req updateKeywordsRequest
	if err := c.Bind(&req); err != nil {
		return failValidation(c, map[string]string{"body": "must be valid JSON"})
	}
	keywords := cleanKeywords(req.Keywords)
	if len(keywords) == 0 {
		return failValidation(c, map[string]string{"keywords": "at least one keyword is required"})
	}

	if err := s.pool.UpdateSubjectKeywords(c.Request().Context(), subject.SubjectID, keywords); err != nil {
		s.logger.Error().Err(err).Str("subject_uuid", subject.SubjectUUID).Msg("update keywords failed")
		return internalError(c, "Failed to update keywords")
	}

	return success(c, map[string]any{
		"subject_uuid": subject.SubjectUUID,
		"keywords":     keywords,
	})
}

func (s *Server) handleDeleteSubject(c echo.Context) error {
	subject, ok, err := s.loadSubject(c)
	if !ok {
		return err
	}

	ctx := c.Request().Context()
	if err := s.scheduler.Drop(ctx, subject.SubjectID); err != nil {
		s.logger.Error().Err(err).Str("subject_uuid", subject.SubjectUUID).Msg("drop schedules failed")
		return internalError(c, "Failed to delete subject")
	}
	if err := s.pool.DeleteSubject(ctx, subject.SubjectID); err != nil {
		s.logger.Error().Err(err).Str("subject_uuid", subject.SubjectUUID).Msg("delete subject failed")
		return internalError(c, "Failed to delete subject")
	}
	s.coordinator.Evict(subject.SubjectID)

	return success(c, map[string]any{"subject_uuid": subject.SubjectUUID})
}

type triggerRunRequest struct {
	Variant string `json:"variant"`
}

func (s *Server) handleTriggerRun(c echo.Context) error {
	subjectUUID := strings.TrimSpace(c.Param("subject_uuid"))
	if subjectUUID == "" {
		return failValidation(c, map[string]string{"subject_uuid": "is required"})
	}

	var req triggerRunRequest
	if err := c.Bind(&req); err != nil {
		return failValidation(c, map[string]string{"body": "must be valid JSON"})
	}
	variant, err := runner.ParseVariant(req.Variant)
	if err != nil {
		return failValidation(c, map[string]string{"variant": "must be check or briefing"})
	}

	if err := s.coordinator.TriggerAsync(c.Request().Context(), subjectUUID, variant); err != nil {
		switch {
		case errors.Is(err, runner.ErrAlreadyRunning):
			return failConflict(c, "A run for this subject is still in progress")
		case errors.Is(err, db.ErrSubjectNotFound):
			return failNotFound(c, "Subject not found")
		}
		s.logger.Error().Err(err).Str("subject_uuid", subjectUUID).Msg("trigger run failed")
		return internalError(c, "Failed to trigger run")
	}

	return successWithStatus(c, http.StatusAccepted, map[string]any{
		"subject_uuid": subjectUUID,
		"variant":      string(variant),
	})
}

func (s *Server) handleListSchedules(c echo.Context) error {
	subject, ok, err := s.loadSubject(c)
	if !ok {
		return err
	}

	rows, err := s.pool.ListSchedules(c.Request().Context(), subject.SubjectID)
	if err != nil {
		s.logger.Error().Err(err).Str("subject_uuid", subject.SubjectUUID).Msg("list schedules failed")
		return internalError(c, "Failed to load schedules")
	}

	type scheduleResponse struct {
		Variant   string `json:"variant"`
		TimeOfDay string `json:"time_of_day"`
	}
	items := make([]scheduleResponse, 0, len(rows))
	for _, row := range rows {
		items = append(items, scheduleResponse{Variant: row.Variant, TimeOfDay: row.TimeOfDay})
	}
	return success(c, map[string]any{"items": items})
}

type replaceSchedulesRequest struct {
	Variant string   `json:"variant"`
	Times   []string `json:"times"`
}

func (s *Server) handleReplaceSchedules(c echo.Context) error {
	subject, ok, err := s.loadSubject(c)
	if !ok {
		return err
	}

	var req replaceSchedulesRequest
	if err := c.Bind(&req); err != nil {
		return failValidation(c, map[string]string{"body": "must be valid JSON"})
	}
	variant, err := runner.ParseVariant(req.Variant)
	if err != nil {
		return failValidation(c, map[string]string{"variant": "must be check or briefing"})
	}
	for _, t := range req.Times {
		if _, err := time.Parse("15:04", t); err != nil {
			return failValidation(c, map[string]string{"times": "entries must be HH:MM wall-clock times"})
		}
	}

	if err := s.scheduler.Apply(c.Request().Context(), subject.SubjectID, subject.SubjectUUID, variant, req.Times); err != nil {
		s.logger.Error().Err(err).Str("subject_uuid", subject.SubjectUUID).Msg("replace schedules failed")
		return internalError(c, "Failed to replace schedules")
	}

	return success(c, map[string]any{
		"subject_uuid": subject.SubjectUUID,
		"variant":      string(variant),
		"times":        req.Times,
	})
}

// loadSubject resolves the :subject_uuid path parameter. On failure the
// response has already been written and ok is false.
func (s *Server) loadSubject(c echo.Context) (db.SubjectRow, bool, error) {
	subjectUUID := strings.TrimSpace(c.Param("subject_uuid"))
	if subjectUUID == "" {
		return db.SubjectRow{}, false, failValidation(c, map[string]string{"subject_uuid": "is required"})
	}

	subject, err := s.pool.GetSubjectByUUID(c.Request().Context(), subjectUUID)
	if err != nil {
		if errors.Is(err, db.ErrSubjectNotFound) {
			return db.SubjectRow{}, false, failNotFound(c, "Subject not found")
		}
		s.logger.Error().Err(err).Str("subject_uuid", subjectUUID).Msg("load subject failed")
		return db.SubjectRow{}, false, internalError(c, "Failed to load subject")
	}
	return subject, true, nil
}

func cleanKeywords(raw []string) []string {
	var keywords []string
	seen := make(map[string]struct{}, len(raw))
	for _, k := range raw {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keywords = append(keywords, k)
	}
	return keywords
}
