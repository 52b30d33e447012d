package bootstrap

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kiptoo/ignite/internal/scheduler"
)

// Subsystem task names.
const (
	TaskSettings     = "settings"
	TaskTheme        = "theme"
	TaskDatabase     = "database"
	TaskAudioEngine  = "audio_engine"
	TaskMusicSources = "music_sources"
	TaskAssetCache   = "asset_cache"
	TaskHotkeys      = "hotkeys"
	TaskPlayerState  = "player_state"
	TaskSyncService  = "sync_service"
)

// SimOptions controls the simulated subsystem initializers. The subsystems
// here are stand-ins: a real application would supply initializers that
// open its settings store, database, audio device and so on.
type SimOptions struct {
	// StepDelay is the simulated work time per initializer attempt.
	StepDelay time.Duration

	// FailTasks lists tasks whose initializer fails on every attempt.
	FailTasks []string

	// FlakyTasks lists tasks whose initializer fails on the first attempt
	// and succeeds on the next.
	FlakyTasks []string

	// FailFallbacks lists tasks whose fallback also fails.
	FailFallbacks []string

	// MaxRetries overrides the retry budget on every task when positive;
	// zero keeps the per-task defaults.
	MaxRetries int
}

// simRunner produces the simulated initializer and fallback closures.
type simRunner struct {
	mu       sync.Mutex
	delay    time.Duration
	fail     map[string]bool
	flaky    map[string]bool
	failFb   map[string]bool
	attempts map[string]int
}

func newSimRunner(opts SimOptions) *simRunner {
	return &simRunner{
		delay:    opts.StepDelay,
		fail:     toSet(opts.FailTasks),
		flaky:    toSet(opts.FlakyTasks),
		failFb:   toSet(opts.FailFallbacks),
		attempts: make(map[string]int),
	}
}

func toSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, name := range names {
		set[name] = true
	}
	return set
}

// initFunc returns the simulated initializer for the named subsystem.
func (s *simRunner) initFunc(name string) scheduler.InitFunc {
	return func(ctx context.Context) error {
		if err := s.work(ctx); err != nil {
			return err
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		s.attempts[name]++
		if s.fail[name] {
			return fmt.Errorf("%s: simulated initialization failure", name)
		}
		if s.flaky[name] && s.attempts[name] == 1 {
			return fmt.Errorf("%s: simulated transient failure", name)
		}
		return nil
	}
}

// fallbackFunc returns the simulated fallback for the named subsystem.
func (s *simRunner) fallbackFunc(name string) scheduler.InitFunc {
	return func(ctx context.Context) error {
		if err := s.work(ctx); err != nil {
			return err
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.failFb[name] {
			return fmt.Errorf("%s: simulated fallback failure", name)
		}
		return nil
	}
}

// Attempts returns how often the named subsystem's initializer ran.
func (s *simRunner) Attempts(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts[name]
}

func (s *simRunner) work(ctx context.Context) error {
	if s.delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(s.delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// buildSubsystems composes the fixed startup task graph. Settings load
// first; the database and audio engine are essential, everything else
// degrades gracefully with a fallback or a tolerated failure.
func buildSubsystems(sim *simRunner, maxRetries int) []*scheduler.Task {
	task := func(name, description string) *scheduler.Task {
		t := scheduler.NewTask(name, description, sim.initFunc(name))
		if maxRetries >= 0 {
			t.WithMaxRetries(maxRetries)
		}
		return t
	}

	return []*scheduler.Task{
		task(TaskSettings, "Loading settings").
			AsCritical().
			WithFallback(sim.fallbackFunc(TaskSettings)),

		task(TaskTheme, "Applying theme").
			WithDependencies(TaskSettings).
			WithFallback(sim.fallbackFunc(TaskTheme)),

		task(TaskDatabase, "Opening database").
			WithDependencies(TaskSettings).
			AsCritical(),

		task(TaskAudioEngine, "Starting audio engine").
			WithDependencies(TaskSettings).
			AsCritical(),

		task(TaskMusicSources, "Loading music sources").
			WithDependencies(TaskSettings).
			WithFallback(sim.fallbackFunc(TaskMusicSources)),

		task(TaskAssetCache, "Warming asset cache").
			WithDependencies(TaskTheme),

		task(TaskHotkeys, "Registering hotkeys").
			WithDependencies(TaskSettings),

		task(TaskPlayerState, "Restoring player state").
			WithDependencies(TaskDatabase, TaskAudioEngine),

		task(TaskSyncService, "Starting sync service").
			WithDependencies(TaskDatabase, TaskMusicSources),
	}
}
