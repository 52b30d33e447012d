package scheduler

import "context"

// DefaultMaxRetries is the retry budget applied by NewTask.
const DefaultMaxRetries = 3

// InitFunc is the signature for a task's initialization logic. It either
// succeeds or reports failure through the returned error.
type InitFunc func(ctx context.Context) error

// Task represents a single named unit of startup work.
type Task struct {
	// Name uniquely identifies the task and is the vertex key used when
	// other tasks declare a dependency on it.
	Name string

	// Description is a human-readable label surfaced in progress output.
	Description string

	// Initializer performs the task's work. Required.
	Initializer InitFunc

	// Fallback, if set, runs only after the initializer has exhausted its
	// retries. A successful fallback counts as task completion.
	Fallback InitFunc

	// DependsOn lists task names that must be satisfied before this task
	// may start.
	DependsOn []string

	// Critical marks the task as essential: an unrecoverable failure
	// aborts the entire startup sequence.
	Critical bool

	// MaxRetries bounds retry attempts after the first failure.
	MaxRetries int
}

// NewTask creates a task with the default retry budget.
func NewTask(name, description string, init InitFunc) *Task {
	return &Task{
		Name:        name,
		Description: description,
		Initializer: init,
		MaxRetries:  DefaultMaxRetries,
	}
}

// WithDependencies declares the tasks that must complete first.
func (t *Task) WithDependencies(names ...string) *Task {
	t.DependsOn = append(t.DependsOn, names...)
	return t
}

// WithFallback sets the recovery function run after retries are exhausted.
func (t *Task) WithFallback(fb InitFunc) *Task {
	t.Fallback = fb
	return t
}

// WithMaxRetries overrides the default retry budget.
func (t *Task) WithMaxRetries(n int) *Task {
	t.MaxRetries = n
	return t
}

// AsCritical marks the task as fatal-on-failure.
func (t *Task) AsCritical() *Task {
	t.Critical = true
	return t
}

// retryBudget normalizes a possibly negative MaxRetries.
func (t *Task) retryBudget() int {
	if t.MaxRetries < 0 {
		return 0
	}
	return t.MaxRetries
}
