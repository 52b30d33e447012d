package tracker

import (
	"fmt"
	"sync"
	"time"
)

// StepPhase is the transition a step event describes.
type StepPhase int

const (
	// StepStarted indicates the step's initializer began running.
	StepStarted StepPhase = iota
	// StepCompleted indicates the step finished successfully.
	StepCompleted
	// StepFailed indicates the step ended in failure.
	StepFailed
)

// String returns a string representation of the StepPhase
func (p StepPhase) String() string {
	switch p {
	case StepStarted:
		return "started"
	case StepCompleted:
		return "completed"
	case StepFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// StepEvent is one entry of the step-transition feed.
type StepEvent struct {
	Name      string
	Phase     StepPhase
	Error     string
	Progress  float64
	Timestamp time.Time
}

// UnknownStepError is returned when a lifecycle call names a step that was
// never registered.
type UnknownStepError struct {
	Name string
}

func (e *UnknownStepError) Error() string {
	return fmt.Sprintf("step %q was never registered", e.Name)
}

// ProgressTracker owns the lifecycle record of every registered step and
// publishes three broadcast feeds: step transitions, overall fractional
// progress and human-readable status text. It is safe for concurrent use;
// emission order matches the order of the mutating calls.
type ProgressTracker struct {
	mu        sync.RWMutex
	records   map[string]*ExecutionRecord
	order     []string
	completed int
	closed    bool

	steps    *feed[StepEvent]
	progress *feed[float64]
	status   *feed[string]
}

// New creates an empty progress tracker.
func New() *ProgressTracker {
	return &ProgressTracker{
		records:  make(map[string]*ExecutionRecord),
		steps:    newFeed[StepEvent](),
		progress: newFeed[float64](),
		status:   newFeed[string](),
	}
}

// AddStep registers an execution record and grows the total step count.
// Registering the same name again is a no-op.
func (t *ProgressTracker) AddStep(name, description string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.records[name]; exists {
		return
	}
	t.records[name] = &ExecutionRecord{Name: name, Description: description}
	t.order = append(t.order, name)
}

// StartStep stamps the step's start time and emits a status update.
func (t *ProgressTracker) StartStep(name string) error {
	t.mu.Lock()
	rec, ok := t.records[name]
	if !ok {
		t.mu.Unlock()
		return &UnknownStepError{Name: name}
	}
	now := time.Now()
	rec.StartTime = &now
	desc := rec.Description
	progress := t.progressLocked()
	t.mu.Unlock()

	t.steps.publish(StepEvent{Name: name, Phase: StepStarted, Progress: progress, Timestamp: now})
	t.status.publish(fmt.Sprintf("Initializing: %s", desc))
	return nil
}

// CompleteStep stamps the end time, marks the step completed and emits a
// step event, a recomputed progress fraction and a status string.
func (t *ProgressTracker) CompleteStep(name string) error {
	t.mu.Lock()
	rec, ok := t.records[name]
	if !ok {
		t.mu.Unlock()
		return &UnknownStepError{Name: name}
	}
	now := time.Now()
	rec.EndTime = &now
	if !rec.Completed {
		rec.Completed = true
		t.completed++
	}
	progress := t.progressLocked()
	status := t.statusLocked()
	t.mu.Unlock()

	t.steps.publish(StepEvent{Name: name, Phase: StepCompleted, Progress: progress, Timestamp: now})
	t.progress.publish(progress)
	t.status.publish(status)
	return nil
}

// FailStep stamps the end time and records the error message. Failed steps
// never count toward the completed total.
func (t *ProgressTracker) FailStep(name, errorMessage string) error {
	t.mu.Lock()
	rec, ok := t.records[name]
	if !ok {
		t.mu.Unlock()
		return &UnknownStepError{Name: name}
	}
	now := time.Now()
	rec.EndTime = &now
	rec.LastError = errorMessage
	progress := t.progressLocked()
	status := t.statusLocked()
	t.mu.Unlock()

	t.steps.publish(StepEvent{Name: name, Phase: StepFailed, Error: errorMessage, Progress: progress, Timestamp: now})
	t.status.publish(status)
	return nil
}

// Progress returns the completed fraction in [0.0, 1.0]; 0.0 when no steps
// are registered.
func (t *ProgressTracker) Progress() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.progressLocked()
}

func (t *ProgressTracker) progressLocked() float64 {
	if len(t.records) == 0 {
		return 0.0
	}
	return float64(t.completed) / float64(len(t.records))
}

// Status returns the current human-readable status line.
func (t *ProgressTracker) Status() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.statusLocked()
}

func (t *ProgressTracker) statusLocked() string {
	total := len(t.records)
	switch {
	case total == 0 || t.completed == 0:
		return "Starting initialization..."
	case t.completed == total:
		return "Initialization complete!"
	default:
		return fmt.Sprintf("Initializing (%d/%d)...", t.completed, total)
	}
}

// Record returns a copy of the named step's record.
func (t *ProgressTracker) Record(name string) (ExecutionRecord, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.records[name]
	if !ok {
		return ExecutionRecord{}, false
	}
	return *rec, true
}

// Records returns copies of all records in registration order.
func (t *ProgressTracker) Records() []ExecutionRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]ExecutionRecord, 0, len(t.order))
	for _, name := range t.order {
		out = append(out, *t.records[name])
	}
	return out
}

// TotalSteps returns the number of registered steps.
func (t *ProgressTracker) TotalSteps() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.records)
}

// CompletedSteps returns the number of steps that completed successfully.
func (t *ProgressTracker) CompletedSteps() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.completed
}

// Steps subscribes to the step-transition feed.
func (t *ProgressTracker) Steps() (<-chan StepEvent, func()) {
	return t.steps.subscribe()
}

// ProgressUpdates subscribes to the fractional-progress feed.
func (t *ProgressTracker) ProgressUpdates() (<-chan float64, func()) {
	return t.progress.subscribe()
}

// StatusUpdates subscribes to the status-text feed.
func (t *ProgressTracker) StatusUpdates() (<-chan string, func()) {
	return t.status.subscribe()
}

// Reset clears all steps and counters. Open subscriptions stay open.
func (t *ProgressTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records = make(map[string]*ExecutionRecord)
	t.order = nil
	t.completed = 0
}

// Close shuts down the feeds. After Close no further emissions occur.
func (t *ProgressTracker) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	t.mu.Unlock()

	t.steps.close()
	t.progress.close()
	t.status.close()
}
