package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kiptoo/ignite/internal/logger"
	"github.com/kiptoo/ignite/internal/reporter"
	"github.com/kiptoo/ignite/internal/tracker"
)

// Config contains configuration for the startup scheduler.
type Config struct {
	// Retry is the backoff policy applied between failed attempts.
	// Nil selects NewDefaultRetryPolicy.
	Retry *RetryPolicy

	// Parallelism bounds how many eligible tasks of a pass run
	// concurrently. Values below 2 select the sequential contract.
	Parallelism int

	// Tracker observes per-task lifecycle transitions. Optional.
	Tracker *tracker.ProgressTracker

	// Reporter records initialization failures. Optional.
	Reporter *reporter.ErrorReporter
}

// Result summarizes one Execute call.
type Result struct {
	// Completed lists tasks whose initializer or fallback succeeded,
	// in the order they finished.
	Completed []string

	// Tolerated lists non-critical tasks that exhausted retries and
	// fallback but were counted as satisfied anyway.
	Tolerated []string

	// Unrun lists tasks that never started because their dependencies
	// could not be satisfied, or because a critical failure aborted the
	// sequence first.
	Unrun []string

	// Stalled is true when a full pass plus the no-dependency rescue
	// pass made no progress.
	Stalled bool

	// Duration is the total wall time of the Execute call.
	Duration time.Duration
}

// Scheduler brings up a set of named initialization tasks in an order
// consistent with their declared dependencies, tolerating non-critical
// failure. It exclusively owns the task set for the duration of Execute.
type Scheduler struct {
	mu        sync.RWMutex
	tasks     map[string]*Task
	order     []string
	completed map[string]bool
	running   bool

	retry       *RetryPolicy
	parallelism int
	tracker     *tracker.ProgressTracker
	reporter    *reporter.ErrorReporter
}

// New creates a scheduler from the given configuration.
func New(cfg *Config) *Scheduler {
	if cfg == nil {
		cfg = &Config{}
	}
	retry := cfg.Retry
	if retry == nil {
		retry = NewDefaultRetryPolicy()
	}
	return &Scheduler{
		tasks:       make(map[string]*Task),
		completed:   make(map[string]bool),
		retry:       retry,
		parallelism: cfg.Parallelism,
		tracker:     cfg.Tracker,
		reporter:    cfg.Reporter,
	}
}

// AddTask registers a task before execution begins. Registering a name
// twice returns a DuplicateTaskError.
func (s *Scheduler) AddTask(t *Task) error {
	if t == nil {
		return fmt.Errorf("task cannot be nil")
	}
	if t.Name == "" {
		return fmt.Errorf("task name cannot be empty")
	}
	if t.Initializer == nil {
		return fmt.Errorf("task %q has no initializer", t.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[t.Name]; exists {
		return &DuplicateTaskError{Name: t.Name}
	}
	s.tasks[t.Name] = t
	s.order = append(s.order, t.Name)

	if s.tracker != nil {
		s.tracker.AddStep(t.Name, t.Description)
	}
	return nil
}

// IsTaskCompleted reports whether the named task has reached a state that
// counts as completed, tolerated failures included.
func (s *Scheduler) IsTaskCompleted(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.completed[name]
}

// TaskNames returns the registered task names in registration order.
func (s *Scheduler) TaskNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, len(s.order))
	copy(names, s.order)
	return names
}

// Plan returns the execution order the dependency graph implies, without
// running anything. Unregistered dependency names surface as an error, as
// do cycles.
func (s *Scheduler) Plan() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	missing := missingDependencies(s.tasks, s.order)
	for _, name := range s.order {
		if deps, ok := missing[name]; ok {
			return nil, &UnknownTaskError{Name: deps[0], RequiredBy: name}
		}
	}
	return s.buildGraph().TopologicalSort()
}

// Execute runs all registered tasks to completion or to a fatal abort.
// It returns once every task is either completed, permanently
// failed-and-tolerated, or a critical failure aborts the call. Only a
// FatalStartupError (or context cancellation) is returned as an error;
// every other failure kind is absorbed and surfaced through the tracker
// and reporter.
func (s *Scheduler) Execute(ctx context.Context) (*Result, error) {
	start := time.Now()

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, fmt.Errorf("scheduler is already executing")
	}
	s.running = true
	s.completed = make(map[string]bool)
	total := len(s.order)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	res := &Result{}

	logger.Op.WithFields(map[string]interface{}{
		"tasks":       total,
		"parallelism": s.parallelism,
	}).Debug("Starting task execution")

	for s.completedCount() < total {
		eligible := s.eligibleTasks()
		if len(eligible) == 0 {
			// Rescue pass: attempt every remaining task that declares no
			// dependencies. Guards against a dependency misdeclared
			// against an already-settled task.
			eligible = s.rescueTasks()
		}
		if len(eligible) == 0 {
			s.reportStall(res)
			break
		}

		var err error
		if s.parallelism > 1 {
			err = s.runPassParallel(ctx, eligible, res)
		} else {
			err = s.runPassSequential(ctx, eligible, res)
		}
		if err != nil {
			res.Unrun = s.remainingTasks()
			res.Duration = time.Since(start)
			return res, err
		}
	}

	res.Duration = time.Since(start)
	return res, nil
}

// runPassSequential drives each eligible task to a settled state, one at a
// time, aborting the pass on the first fatal outcome.
func (s *Scheduler) runPassSequential(ctx context.Context, eligible []string, res *Result) error {
	for _, name := range eligible {
		s.mu.RLock()
		t := s.tasks[name]
		s.mu.RUnlock()

		clean, err := s.runTask(ctx, t)
		if err != nil {
			return err
		}
		s.settle(name, clean, res)
	}
	return nil
}

// settle marks a task as satisfied for dependency purposes.
func (s *Scheduler) settle(name string, clean bool, res *Result) {
	s.mu.Lock()
	s.completed[name] = true
	s.mu.Unlock()
	if clean {
		res.Completed = append(res.Completed, name)
	} else {
		res.Tolerated = append(res.Tolerated, name)
	}
}

// runTask drives a single task through its retry and fallback sequence.
// The first return value reports whether the task completed cleanly; a
// false value with a nil error is a tolerated failure. A non-nil error is
// fatal to the whole startup sequence.
func (s *Scheduler) runTask(ctx context.Context, t *Task) (bool, error) {
	if s.tracker != nil {
		if err := s.tracker.StartStep(t.Name); err != nil {
			logger.Op.Warnf("progress tracking for %s unavailable: %v", t.Name, err)
		}
	}

	budget := t.retryBudget()
	var lastErr error
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		err := t.Initializer(ctx)
		if err == nil {
			s.completeStep(t.Name)
			logger.Op.WithFields(map[string]interface{}{
				"task":     t.Name,
				"attempts": attempt + 1,
			}).Debug("Task initialized")
			return true, nil
		}
		lastErr = err

		if attempt >= budget {
			break
		}

		delay := s.retry.BackoffDuration(attempt + 1)
		logger.User.Retryf("Retrying %s in %v (attempt %d of %d): %v",
			t.Name, delay, attempt+2, budget+1, err)
		if err := sleepCtx(ctx, delay); err != nil {
			return false, err
		}
	}

	// Retries exhausted: the terminal initializer failure is recorded even
	// when the fallback later succeeds.
	s.report(t, fmt.Sprintf("initialization failed after %d attempts: %v", budget+1, lastErr), nil)

	var fbErr error
	if t.Fallback != nil {
		logger.User.Fallbackf("Running fallback for %s", t.Name)
		fbErr = t.Fallback(ctx)
		if fbErr == nil {
			s.completeStep(t.Name)
			logger.Op.Infof("Task %s recovered via fallback", t.Name)
			return true, nil
		}
		s.report(t, fmt.Sprintf("fallback failed: %v", fbErr), fbErr)
	}

	s.failStep(t.Name, lastErr)

	if t.Critical {
		logger.User.Errorf("Critical task %s failed, aborting startup", t.Name)
		return false, &FatalStartupError{Task: t.Name, Err: lastErr, FallbackErr: fbErr}
	}

	logger.User.Warnf("Task %s failed, continuing without it", t.Name)
	return false, nil
}

func (s *Scheduler) completeStep(name string) {
	if s.tracker == nil {
		return
	}
	if err := s.tracker.CompleteStep(name); err != nil {
		logger.Op.Warnf("progress tracking for %s unavailable: %v", name, err)
	}
}

func (s *Scheduler) failStep(name string, cause error) {
	if s.tracker == nil {
		return
	}
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	if err := s.tracker.FailStep(name, msg); err != nil {
		logger.Op.Warnf("progress tracking for %s unavailable: %v", name, err)
	}
}

func (s *Scheduler) report(t *Task, message string, cause error) {
	if s.reporter == nil {
		return
	}
	var fields map[string]interface{}
	if cause != nil {
		fields = map[string]interface{}{"cause": cause.Error()}
	}
	s.reporter.Report(t.Name, message, t.Critical, fields)
}

// eligibleTasks returns not-yet-settled tasks whose dependencies are all
// satisfied, in registration order.
func (s *Scheduler) eligibleTasks() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var eligible []string
	for _, name := range s.order {
		if s.completed[name] {
			continue
		}
		ready := true
		for _, dep := range s.tasks[name].DependsOn {
			if !s.completed[dep] {
				ready = false
				break
			}
		}
		if ready {
			eligible = append(eligible, name)
		}
	}
	return eligible
}

// rescueTasks returns remaining tasks that declare no dependencies at all.
func (s *Scheduler) rescueTasks() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rescue []string
	for _, name := range s.order {
		if !s.completed[name] && len(s.tasks[name].DependsOn) == 0 {
			rescue = append(rescue, name)
		}
	}
	return rescue
}

func (s *Scheduler) remainingTasks() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var remaining []string
	for _, name := range s.order {
		if !s.completed[name] {
			remaining = append(remaining, name)
		}
	}
	return remaining
}

func (s *Scheduler) completedCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.completed)
}

// reportStall logs an unsatisfiable dependency condition. The stall is
// deliberately non-fatal: tasks that never ran stay pending and the caller
// observes them through the Result and the tracker's records.
func (s *Scheduler) reportStall(res *Result) {
	res.Stalled = true
	res.Unrun = s.remainingTasks()

	missing := missingDependencies(s.snapshotTasks(), res.Unrun)
	for task, deps := range missing {
		logger.Op.WithFields(map[string]interface{}{
			"task":         task,
			"dependencies": deps,
		}).Warn("Task depends on names that were never registered")
	}

	stuck := s.buildGraphLocked().Unsortable()
	logger.User.Warnf("Startup stalled: no runnable tasks remain, skipping %v", res.Unrun)
	if len(stuck) > 0 && len(missing) == 0 {
		logger.Op.WithFields(map[string]interface{}{
			"tasks": stuck,
		}).Warn("Dependency cycle suspected")
	}
}

func (s *Scheduler) snapshotTasks() map[string]*Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tasks := make(map[string]*Task, len(s.tasks))
	for name, t := range s.tasks {
		tasks[name] = t
	}
	return tasks
}

func (s *Scheduler) buildGraph() *Graph {
	g := NewGraph()
	for _, name := range s.order {
		g.AddNode(name)
	}
	for _, name := range s.order {
		for _, dep := range s.tasks[name].DependsOn {
			g.AddEdge(name, dep)
		}
	}
	return g
}

func (s *Scheduler) buildGraphLocked() *Graph {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.buildGraph()
}
