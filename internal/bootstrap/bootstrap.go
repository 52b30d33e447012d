package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/kiptoo/ignite/internal/logger"
	"github.com/kiptoo/ignite/internal/reporter"
	"github.com/kiptoo/ignite/internal/scheduler"
	"github.com/kiptoo/ignite/internal/tracker"
	"github.com/kiptoo/ignite/internal/utils"
)

// Options configures a bootstrap run.
type Options struct {
	// Parallelism bounds concurrent task execution; values below 2 run
	// the startup sequence strictly sequentially.
	Parallelism int

	// Retry overrides the default backoff policy.
	Retry *scheduler.RetryPolicy

	// Sim controls the simulated subsystems.
	Sim SimOptions
}

// Bootstrapper composes the fixed startup task graph and drives the
// scheduler, with the tracker and reporter wired in as observers.
type Bootstrapper struct {
	tracker  *tracker.ProgressTracker
	reporter *reporter.ErrorReporter
	sched    *scheduler.Scheduler
	sim      *simRunner
}

// New builds a bootstrapper with freshly constructed, caller-owned
// scheduler, tracker and reporter instances.
func New(opts Options) (*Bootstrapper, error) {
	trk := tracker.New()
	rep := reporter.New()
	sched := scheduler.New(&scheduler.Config{
		Retry:       opts.Retry,
		Parallelism: opts.Parallelism,
		Tracker:     trk,
		Reporter:    rep,
	})

	sim := newSimRunner(opts.Sim)
	maxRetries := opts.Sim.MaxRetries
	if maxRetries == 0 {
		maxRetries = -1 // keep per-task defaults
	}

	b := &Bootstrapper{
		tracker:  trk,
		reporter: rep,
		sched:    sched,
		sim:      sim,
	}
	for _, t := range buildSubsystems(sim, maxRetries) {
		if err := sched.AddTask(t); err != nil {
			return nil, fmt.Errorf("registering startup tasks: %w", err)
		}
	}
	return b, nil
}

// Scheduler returns the underlying scheduler.
func (b *Bootstrapper) Scheduler() *scheduler.Scheduler {
	return b.sched
}

// Tracker returns the progress tracker observing the run.
func (b *Bootstrapper) Tracker() *tracker.ProgressTracker {
	return b.tracker
}

// Reporter returns the error reporter observing the run.
func (b *Bootstrapper) Reporter() *reporter.ErrorReporter {
	return b.reporter
}

// Run executes the startup sequence, mirroring the tracker's feeds onto
// the console, and prints a closing summary. The returned error is fatal
// to startup.
func (b *Bootstrapper) Run(ctx context.Context) error {
	status, cancelStatus := b.tracker.StatusUpdates()
	steps, cancelSteps := b.tracker.Steps()
	defer cancelStatus()
	defer cancelSteps()

	done := make(chan struct{})
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for {
			select {
			case s, ok := <-status:
				if !ok {
					return
				}
				logger.User.Info(s)
			case e, ok := <-steps:
				if !ok {
					return
				}
				logger.Op.WithFields(map[string]interface{}{
					"step":     e.Name,
					"phase":    e.Phase.String(),
					"progress": fmt.Sprintf("%.0f%%", e.Progress*100),
				}).Debug("Step transition")
			case <-done:
				return
			}
		}
	}()

	logger.User.Starting("Starting up")
	res, err := b.sched.Execute(ctx)

	close(done)
	<-drained

	b.printSummary(res, err)
	return err
}

func (b *Bootstrapper) printSummary(res *scheduler.Result, err error) {
	if res == nil {
		res = &scheduler.Result{}
	}

	lines := []string{
		fmt.Sprintf("Completed: %d/%d steps (%.0f%%)",
			b.tracker.CompletedSteps(), b.tracker.TotalSteps(), b.tracker.Progress()*100),
		fmt.Sprintf("Elapsed: %v", res.Duration.Round(time.Millisecond)),
	}
	if len(res.Tolerated) > 0 {
		lines = append(lines, fmt.Sprintf("Degraded (failure tolerated): %v", res.Tolerated))
	}
	if len(res.Unrun) > 0 {
		lines = append(lines, fmt.Sprintf("Never ran: %v", res.Unrun))
	}

	switch {
	case err != nil:
		lines = append(lines, err.Error())
		fmt.Println(utils.Error("Startup aborted", lines...))
	case res.Stalled:
		lines = append(lines, "Dependency resolution stalled, see logs")
		fmt.Println(utils.Warning("Startup incomplete", lines...))
	case len(res.Tolerated) > 0:
		fmt.Println(utils.Warning("Startup finished with degraded subsystems", lines...))
	default:
		fmt.Println(utils.Success("Startup complete", lines...))
	}

	if b.reporter.HasErrors() {
		fmt.Println(b.reporter.GenerateSummary())
	}
}
