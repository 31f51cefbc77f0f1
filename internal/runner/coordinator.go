package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"horse.fit/presscheck/internal/db"
	"horse.fit/presscheck/internal/notify"
	"horse.fit/presscheck/internal/pipeline"
)

// ErrAlreadyRunning signals that a run for the same subject is still in
// progress. Requests are rejected immediately, never queued behind the
// holder.
var ErrAlreadyRunning = errors.New("run already in progress for subject")

// Variant names one of the two pipeline flavors.
type Variant string

const (
	VariantCheck    Variant = "check"
	VariantBriefing Variant = "briefing"
)

func ParseVariant(raw string) (Variant, error) {
	switch Variant(raw) {
	case VariantCheck:
		return VariantCheck, nil
	case VariantBriefing:
		return VariantBriefing, nil
	}
	return "", fmt.Errorf("unknown pipeline variant %q", raw)
}

// DefaultGlobalConcurrency caps how many subjects' pipelines may execute at
// once across the whole process.
const DefaultGlobalConcurrency = 5

// subjectStore resolves subjects for run requests.
type subjectStore interface {
	GetSubjectByUUID(ctx context.Context, subjectUUID string) (db.SubjectRow, error)
}

type checkPipeline interface {
	Run(ctx context.Context, subject db.SubjectRow) (pipeline.CheckOutcome, error)
}

type briefingPipeline interface {
	Run(ctx context.Context, subject db.SubjectRow) (pipeline.BriefingOutcome, error)
}

// Coordinator serializes runs per subject and caps them globally. Per
// subject the state machine is idle -> running -> idle; a second request
// while running is rejected with ErrAlreadyRunning. Across subjects a
// counting semaphore bounds concurrency; saturated callers block until a
// slot frees.
type Coordinator struct {
	pool     subjectStore
	check    checkPipeline
	briefing briefingPipeline
	notifier notify.Notifier
	logger   zerolog.Logger

	sem *semaphore.Weighted

	mu      sync.Mutex
	running map[int64]struct{}
}

type CoordinatorParams struct {
	Pool        *db.Pool
	Check       *pipeline.Check
	Briefing    *pipeline.Briefing
	Notifier    notify.Notifier
	Concurrency int
	Logger      zerolog.Logger
}

func NewCoordinator(params CoordinatorParams) *Coordinator {
	concurrency := params.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultGlobalConcurrency
	}
	return &Coordinator{
		pool:     params.Pool,
		check:    params.Check,
		briefing: params.Briefing,
		notifier: params.Notifier,
		logger:   params.Logger,
		sem:      semaphore.NewWeighted(int64(concurrency)),
		running:  make(map[int64]struct{}),
	}
}

// asyncRunTimeout bounds a triggered background run.
const asyncRunTimeout = 30 * time.Minute

// Run executes one pipeline invocation for the subject identified by UUID.
// The per-subject lock is taken before the global slot, so a rejected
// duplicate never consumes capacity. Failures are notified and propagated;
// lock and slot are released on every path.
func (c *Coordinator) Run(ctx context.Context, subjectUUID string, variant Variant) error {
	subject, err := c.pool.GetSubjectByUUID(ctx, subjectUUID)
	if err != nil {
		return err
	}

	if !c.tryAcquire(subject.SubjectID) {
		return ErrAlreadyRunning
	}
	defer c.release(subject.SubjectID)

	if err := c.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire run slot: %w", err)
	}
	defer c.sem.Release(1)

	return c.dispatch(ctx, subject, variant)
}

// TriggerAsync starts a run in the background. The per-subject lock is
// still taken synchronously so a duplicate request is rejected immediately
// rather than queued; everything after that happens off the caller's
// request path.
func (c *Coordinator) TriggerAsync(ctx context.Context, subjectUUID string, variant Variant) error {
	subject, err := c.pool.GetSubjectByUUID(ctx, subjectUUID)
	if err != nil {
		return err
	}

	if !c.tryAcquire(subject.SubjectID) {
		return ErrAlreadyRunning
	}

	go func() {
		defer c.release(subject.SubjectID)

		runCtx, cancel := context.WithTimeout(context.Background(), asyncRunTimeout)
		defer cancel()

		if err := c.sem.Acquire(runCtx, 1); err != nil {
			c.logger.Error().Err(err).Str("subject", subject.Name).Msg("failed to acquire run slot")
			return
		}
		defer c.sem.Release(1)

		if err := c.dispatch(runCtx, subject, variant); err != nil {
			c.logger.Error().Err(err).
				Str("subject", subject.Name).
				Str("variant", string(variant)).
				Msg("triggered run failed")
		}
	}()
	return nil
}

func (c *Coordinator) dispatch(ctx context.Context, subject db.SubjectRow, variant Variant) error {
	switch variant {
	case VariantCheck:
		return c.runCheck(ctx, subject)
	case VariantBriefing:
		return c.runBriefing(ctx, subject)
	}
	return fmt.Errorf("unknown pipeline variant %q", variant)
}

func (c *Coordinator) runCheck(ctx context.Context, subject db.SubjectRow) error {
	outcome, err := c.check.Run(ctx, subject)
	if err != nil {
		c.sendOrLog(ctx, notify.FormatFailure(string(VariantCheck), err))
		return err
	}

	if outcome.Empty() {
		c.sendOrLog(ctx, notify.FormatNoResults())
		return nil
	}

	c.sendOrLog(ctx, notify.FormatCheckHeader(outcome, outcome.Now))
	for _, item := range outcome.Items {
		if !item.Category.Reportable() {
			continue
		}
		c.sendOrLog(ctx, notify.FormatCheckItem(item))
	}
	return nil
}

func (c *Coordinator) runBriefing(ctx context.Context, subject db.SubjectRow) error {
	outcome, err := c.briefing.Run(ctx, subject)
	if err != nil {
		c.sendOrLog(ctx, notify.FormatFailure(string(VariantBriefing), err))
		return err
	}

	if len(outcome.Items) == 0 {
		c.sendOrLog(ctx, notify.FormatNoResults())
		return nil
	}

	c.sendOrLog(ctx, notify.FormatBriefingHeader(outcome))
	for _, item := range outcome.Items {
		c.sendOrLog(ctx, notify.FormatBriefingItem(item, !outcome.FirstRun))
	}
	return nil
}

// sendOrLog delivers one message; delivery failure is logged, not fatal,
// since the run itself already persisted its results.
func (c *Coordinator) sendOrLog(ctx context.Context, text string) {
	if err := c.notifier.Send(ctx, text); err != nil {
		c.logger.Warn().Err(err).Msg("notification delivery failed")
	}
}

func (c *Coordinator) tryAcquire(subjectID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, held := c.running[subjectID]; held {
		return false
	}
	c.running[subjectID] = struct{}{}
	return true
}

func (c *Coordinator) release(subjectID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.running, subjectID)
}

// Evict drops a subject's lock entry after the subject is deleted, keeping
// the registry from growing without bound.
func (c *Coordinator) Evict(subjectID int64) {
	c.release(subjectID)
}
