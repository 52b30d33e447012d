package bootstrap

import (
	"context"
	"testing"

	"github.com/kiptoo/ignite/internal/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBootstrapper(t *testing.T, sim SimOptions) *Bootstrapper {
	t.Helper()
	b, err := New(Options{
		Retry: scheduler.NewCustomRetryPolicy(0, 0, 1.0),
		Sim:   sim,
	})
	require.NoError(t, err)
	t.Cleanup(b.Tracker().Close)
	return b
}

func TestRun_CleanStartup(t *testing.T) {
	b := newTestBootstrapper(t, SimOptions{})

	err := b.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1.0, b.Tracker().Progress())
	assert.Equal(t, "Initialization complete!", b.Tracker().Status())
	assert.False(t, b.Reporter().HasErrors())
	for _, name := range []string{TaskSettings, TaskDatabase, TaskAudioEngine, TaskPlayerState} {
		assert.True(t, b.Scheduler().IsTaskCompleted(name), "task %s", name)
	}
}

func TestRun_FlakySubsystemRecoversViaRetry(t *testing.T) {
	b := newTestBootstrapper(t, SimOptions{FlakyTasks: []string{TaskDatabase}})

	err := b.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, b.sim.Attempts(TaskDatabase))
	assert.Equal(t, 1.0, b.Tracker().Progress())
}

func TestRun_NonCriticalFailureIsTolerated(t *testing.T) {
	// The asset cache has no fallback; its failure must not block anything.
	b := newTestBootstrapper(t, SimOptions{
		FailTasks:  []string{TaskAssetCache},
		MaxRetries: 1,
	})

	err := b.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, b.Scheduler().IsTaskCompleted(TaskAssetCache))
	rec, ok := b.Tracker().Record(TaskAssetCache)
	require.True(t, ok)
	assert.False(t, rec.Completed)

	require.True(t, b.Reporter().HasErrors())
	assert.False(t, b.Reporter().HasCriticalErrors())
}

func TestRun_FallbackKeepsThemeAlive(t *testing.T) {
	b := newTestBootstrapper(t, SimOptions{
		FailTasks:  []string{TaskTheme},
		MaxRetries: 1,
	})

	err := b.Run(context.Background())
	require.NoError(t, err)

	// Fallback success counts as completion, dependents run normally.
	assert.True(t, b.Scheduler().IsTaskCompleted(TaskTheme))
	assert.True(t, b.Scheduler().IsTaskCompleted(TaskAssetCache))
	assert.Equal(t, 1.0, b.Tracker().Progress())

	// The terminal initializer failure is still on record.
	assert.True(t, b.Reporter().HasErrors())
}

func TestRun_CriticalFailureAbortsStartup(t *testing.T) {
	b := newTestBootstrapper(t, SimOptions{
		FailTasks:  []string{TaskDatabase},
		MaxRetries: 1,
	})

	err := b.Run(context.Background())
	require.Error(t, err)

	var fatal *scheduler.FatalStartupError
	require.ErrorAs(t, err, &fatal)
	assert.Equal(t, TaskDatabase, fatal.Task)

	// Dependents of the database never ran.
	assert.Equal(t, 0, b.sim.Attempts(TaskPlayerState))
	assert.Equal(t, 0, b.sim.Attempts(TaskSyncService))
	assert.True(t, b.Reporter().HasCriticalErrors())
}

func TestRun_SettingsFallbackSavesCriticalTask(t *testing.T) {
	// Settings is critical but carries a fallback to built-in defaults.
	b := newTestBootstrapper(t, SimOptions{
		FailTasks:  []string{TaskSettings},
		MaxRetries: 1,
	})

	err := b.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, b.Scheduler().IsTaskCompleted(TaskSettings))
	assert.Equal(t, 1.0, b.Tracker().Progress())
}

func TestRun_ParallelMatchesSequentialSemantics(t *testing.T) {
	b, err := New(Options{
		Parallelism: 4,
		Retry:       scheduler.NewCustomRetryPolicy(0, 0, 1.0),
		Sim:         SimOptions{FlakyTasks: []string{TaskMusicSources}},
	})
	require.NoError(t, err)
	t.Cleanup(b.Tracker().Close)

	require.NoError(t, b.Run(context.Background()))

	assert.Equal(t, 1.0, b.Tracker().Progress())
	assert.Equal(t, 2, b.sim.Attempts(TaskMusicSources))
}

func TestPlan_CoversEveryTask(t *testing.T) {
	b := newTestBootstrapper(t, SimOptions{})

	order, err := b.Scheduler().Plan()
	require.NoError(t, err)

	assert.Len(t, order, len(b.Scheduler().TaskNames()))
	assert.Equal(t, TaskSettings, order[0], "settings must come up first")
}
