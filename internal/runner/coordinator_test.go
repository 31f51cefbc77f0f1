package runner

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"horse.fit/presscheck/internal/db"
	"horse.fit/presscheck/internal/notify"
	"horse.fit/presscheck/internal/pipeline"
)

func TestParseVariant(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"check", "briefing"} {
		variant, err := ParseVariant(raw)
		if err != nil {
			t.Fatalf("ParseVariant(%q) failed: %v", raw, err)
		}
		if string(variant) != raw {
			t.Fatalf("ParseVariant(%q) = %q", raw, variant)
		}
	}
	if _, err := ParseVariant("digest"); err == nil {
		t.Fatalf("expected error for unknown variant")
	}
	if _, err := ParseVariant(""); err == nil {
		t.Fatalf("expected error for empty variant")
	}
}

func newLockOnlyCoordinator() *Coordinator {
	return &Coordinator{running: make(map[int64]struct{})}
}

func TestTryAcquire_RejectsWhileHeld(t *testing.T) {
	t.Parallel()

	c := newLockOnlyCoordinator()

	if !c.tryAcquire(7) {
		t.Fatalf("first acquire must succeed")
	}
	if c.tryAcquire(7) {
		t.Fatalf("second acquire for the same subject must be rejected")
	}
	if !c.tryAcquire(8) {
		t.Fatalf("a different subject must not be blocked")
	}

	c.release(7)
	if !c.tryAcquire(7) {
		t.Fatalf("acquire after release must succeed")
	}
}

func TestTryAcquire_SingleWinnerUnderContention(t *testing.T) {
	t.Parallel()

	c := newLockOnlyCoordinator()

	const attempts = 32
	var wg sync.WaitGroup
	wins := make(chan struct{}, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if c.tryAcquire(42) {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	won := 0
	for range wins {
		won++
	}
	if won != 1 {
		t.Fatalf("expected exactly one winner, got %d", won)
	}
}

type stubSubjects struct{}

func (stubSubjects) GetSubjectByUUID(_ context.Context, subjectUUID string) (db.SubjectRow, error) {
	var id int64
	if _, err := fmt.Sscanf(subjectUUID, "subject-%d", &id); err != nil {
		return db.SubjectRow{}, err
	}
	return db.SubjectRow{SubjectID: id, SubjectUUID: subjectUUID, Name: subjectUUID}, nil
}

// blockingCheck parks every run until released, so the test controls how
// many runs are in flight at once.
type blockingCheck struct {
	started chan int64
	release chan struct{}
}

func (b *blockingCheck) Run(_ context.Context, subject db.SubjectRow) (pipeline.CheckOutcome, error) {
	b.started <- subject.SubjectID
	<-b.release
	return pipeline.CheckOutcome{}, nil
}

func TestRun_GlobalConcurrencyCap(t *testing.T) {
	t.Parallel()

	const capacity = 5
	const subjects = 6

	check := &blockingCheck{
		started: make(chan int64, subjects),
		release: make(chan struct{}),
	}
	c := &Coordinator{
		pool:     stubSubjects{},
		check:    check,
		notifier: notify.Discard{},
		logger:   zerolog.Nop(),
		sem:      semaphore.NewWeighted(capacity),
		running:  make(map[int64]struct{}),
	}

	errs := make(chan error, subjects)
	for i := 1; i <= subjects; i++ {
		go func(i int) {
			errs <- c.Run(context.Background(), fmt.Sprintf("subject-%d", i), VariantCheck)
		}(i)
	}

	for i := 0; i < capacity; i++ {
		select {
		case <-check.started:
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d of %d runs started", i, capacity)
		}
	}

	select {
	case id := <-check.started:
		t.Fatalf("subject %d started past the concurrency cap", id)
	case <-time.After(100 * time.Millisecond):
	}

	// Freeing one slot must unblock the waiting run.
	check.release <- struct{}{}
	select {
	case <-check.started:
	case <-time.After(2 * time.Second):
		t.Fatalf("sixth run did not start after a slot freed")
	}

	close(check.release)
	for i := 0; i < subjects; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("run failed: %v", err)
		}
	}
}

func TestEvict_ClearsLock(t *testing.T) {
	t.Parallel()

	c := newLockOnlyCoordinator()

	if !c.tryAcquire(3) {
		t.Fatalf("acquire failed")
	}
	c.Evict(3)
	if !c.tryAcquire(3) {
		t.Fatalf("acquire after Evict must succeed")
	}

	// Evicting an idle subject is a no-op.
	c.Evict(99)
}
