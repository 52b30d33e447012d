package tracker

import "time"

// ExecutionRecord holds the lifecycle record for one registered step. It is
// created at registration, mutated only through the tracker's start,
// complete and fail calls, and never destroyed during a run.
type ExecutionRecord struct {
	Name        string
	Description string
	Completed   bool
	StartTime   *time.Time
	EndTime     *time.Time
	LastError   string
}

// Started reports whether the step was ever started.
func (r *ExecutionRecord) Started() bool {
	return r.StartTime != nil
}

// Duration returns the wall time between start and end, or zero while the
// step is still pending or running.
func (r *ExecutionRecord) Duration() time.Duration {
	if r.StartTime == nil || r.EndTime == nil {
		return 0
	}
	return r.EndTime.Sub(*r.StartTime)
}
