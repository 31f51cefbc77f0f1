package pipeline

import "time"

// ComputeWindow returns the start of the [since, now) collection interval.
// With no prior run, or a gap longer than the ceiling, the window is exactly
// the ceiling; otherwise it is the elapsed time since the last run. Pure
// function: advancing the stored timestamp afterwards is the caller's job,
// and must happen even when the run produced nothing.
func ComputeWindow(lastRun *time.Time, now time.Time, ceiling time.Duration) time.Time {
	if lastRun == nil {
		return now.Add(-ceiling)
	}
	elapsed := now.Sub(*lastRun)
	if elapsed <= 0 || elapsed > ceiling {
		return now.Add(-ceiling)
	}
	return now.Add(-elapsed)
}
