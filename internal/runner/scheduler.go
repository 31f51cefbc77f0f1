package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"horse.fit/presscheck/internal/db"
)

const jobTimeout = 30 * time.Minute

type scheduleKey struct {
	subjectID int64
	variant   Variant
}

// Scheduler owns the daily trigger table. Triggers are wall-clock times in
// one fixed timezone, persisted in the store and re-registered on process
// start so schedules survive restarts.
type Scheduler struct {
	pool        *db.Pool
	coordinator *Coordinator
	cron        *cron.Cron
	location    *time.Location
	logger      zerolog.Logger

	mu      sync.Mutex
	entries map[scheduleKey][]cron.EntryID
}

func NewScheduler(pool *db.Pool, coordinator *Coordinator, location *time.Location, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		pool:        pool,
		coordinator: coordinator,
		cron:        cron.New(cron.WithLocation(location)),
		location:    location,
		logger:      logger,
		entries:     make(map[scheduleKey][]cron.EntryID),
	}
}

// Restore re-registers every persisted trigger. Called once on process
// start, before Start.
func (s *Scheduler) Restore(ctx context.Context) error {
	rows, err := s.pool.ListAllSchedules(ctx)
	if err != nil {
		return fmt.Errorf("list schedules: %w", err)
	}

	restored := 0
	for _, row := range rows {
		variant, err := ParseVariant(row.Variant)
		if err != nil {
			s.logger.Warn().Err(err).Int64("subject_id", row.SubjectID).Msg("skipping persisted schedule")
			continue
		}
		if err := s.register(row.SubjectID, row.SubjectUUID, variant, row.TimeOfDay); err != nil {
			s.logger.Warn().Err(err).
				Int64("subject_id", row.SubjectID).
				Str("time", row.TimeOfDay).
				Msg("skipping persisted schedule")
			continue
		}
		restored++
	}

	s.logger.Info().Int("triggers", restored).Msg("schedules restored")
	return nil
}

// Apply replaces a subject's trigger set for one variant: the persisted
// rows are swapped atomically (delete then insert in one transaction) and
// the in-process cron entries follow.
func (s *Scheduler) Apply(ctx context.Context, subjectID int64, subjectUUID string, variant Variant, times []string) error {
	for _, t := range times {
		if _, err := time.Parse("15:04", t); err != nil {
			return fmt.Errorf("invalid trigger time %q: %w", t, err)
		}
	}

	if err := s.pool.ReplaceSchedules(ctx, subjectID, string(variant), times); err != nil {
		return fmt.Errorf("replace schedules: %w", err)
	}

	s.unregister(scheduleKey{subjectID: subjectID, variant: variant})
	for _, t := range times {
		if err := s.register(subjectID, subjectUUID, variant, t); err != nil {
			return err
		}
	}
	return nil
}

// Drop removes every trigger, persisted and in-process, for a subject.
// Used when the subject is deleted.
func (s *Scheduler) Drop(ctx context.Context, subjectID int64) error {
	if err := s.pool.DeleteAllSchedules(ctx, subjectID); err != nil {
		return fmt.Errorf("delete schedules: %w", err)
	}
	s.unregister(scheduleKey{subjectID: subjectID, variant: VariantCheck})
	s.unregister(scheduleKey{subjectID: subjectID, variant: VariantBriefing})
	return nil
}

func (s *Scheduler) register(subjectID int64, subjectUUID string, variant Variant, timeOfDay string) error {
	parsed, err := time.Parse("15:04", timeOfDay)
	if err != nil {
		return fmt.Errorf("invalid trigger time %q: %w", timeOfDay, err)
	}
	spec := fmt.Sprintf("%d %d * * *", parsed.Minute(), parsed.Hour())

	entryID, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		logger := s.logger.With().
			Int64("subject_id", subjectID).
			Str("variant", string(variant)).
			Str("time", timeOfDay).
			Logger()

		logger.Info().Msg("scheduled run starting")
		if err := s.coordinator.Run(ctx, subjectUUID, variant); err != nil {
			logger.Error().Err(err).Msg("scheduled run failed")
			return
		}
		logger.Info().Msg("scheduled run complete")
	})
	if err != nil {
		return fmt.Errorf("register trigger %s: %w", timeOfDay, err)
	}

	key := scheduleKey{subjectID: subjectID, variant: variant}
	s.mu.Lock()
	s.entries[key] = append(s.entries[key], entryID)
	s.mu.Unlock()
	return nil
}

func (s *Scheduler) unregister(key scheduleKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entryID := range s.entries[key] {
		s.cron.Remove(entryID)
	}
	delete(s.entries, key)
}

// Start begins firing triggers.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info().Msg("scheduler started")
}

// Stop halts trigger firing and returns a context that completes when
// in-flight jobs finish.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info().Msg("scheduler stopping")
	return s.cron.Stop()
}
