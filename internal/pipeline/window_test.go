package pipeline

import (
	"testing"
	"time"
)

func TestComputeWindow_NoPriorRun(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	since := ComputeWindow(nil, now, 3*time.Hour)

	if got, want := now.Sub(since), 3*time.Hour; got != want {
		t.Fatalf("expected window of %v, got %v", want, got)
	}
}

func TestComputeWindow_GapExceedsCeiling(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	last := now.Add(-10 * time.Hour)
	since := ComputeWindow(&last, now, 3*time.Hour)

	if got, want := now.Sub(since), 3*time.Hour; got != want {
		t.Fatalf("expected window capped at %v, got %v", want, got)
	}
}

func TestComputeWindow_GapWithinCeiling(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	last := now.Add(-1 * time.Hour)
	since := ComputeWindow(&last, now, 3*time.Hour)

	if got, want := now.Sub(since), 1*time.Hour; got != want {
		t.Fatalf("expected window of %v, got %v", want, got)
	}
	if !since.Equal(last) {
		t.Fatalf("expected since to equal last run time %v, got %v", last, since)
	}
}

func TestComputeWindow_FutureLastRun(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	last := now.Add(30 * time.Minute)
	since := ComputeWindow(&last, now, 3*time.Hour)

	if got, want := now.Sub(since), 3*time.Hour; got != want {
		t.Fatalf("expected clock skew to fall back to the ceiling, got window %v", got)
	}
}
