package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newParallelScheduler(parallelism int) *Scheduler {
	return New(&Config{Retry: testRetryPolicy(), Parallelism: parallelism})
}

func TestParallel_AllTasksComplete(t *testing.T) {
	s := newParallelScheduler(4)
	rec := &callRecorder{}

	for _, name := range []string{"a", "b", "c", "d"} {
		require.NoError(t, s.AddTask(succeedingTask(rec, name)))
	}
	require.NoError(t, s.AddTask(succeedingTask(rec, "e", "a", "b", "c", "d")))

	res, err := s.Execute(context.Background())
	require.NoError(t, err)

	assert.Len(t, res.Completed, 5)
	assert.Equal(t, "e", res.Completed[4], "dependent settles after the first pass")
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		assert.Equal(t, 1, rec.count(name))
	}
}

func TestParallel_DependencyGatingHolds(t *testing.T) {
	// Independent tasks run concurrently, but a dependent task must not
	// start until everything it depends on has finished.
	s := newParallelScheduler(4)

	var depsDone int32
	mkDep := func(name string) *Task {
		return NewTask(name, name, func(ctx context.Context) error {
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt32(&depsDone, 1)
			return nil
		})
	}
	require.NoError(t, s.AddTask(mkDep("a")))
	require.NoError(t, s.AddTask(mkDep("b")))

	var observed int32
	require.NoError(t, s.AddTask(NewTask("c", "c", func(ctx context.Context) error {
		atomic.StoreInt32(&observed, atomic.LoadInt32(&depsDone))
		return nil
	}).WithDependencies("a", "b")))

	_, err := s.Execute(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&observed),
		"both dependencies must be settled before the dependent starts")
}

func TestParallel_WorkerBoundRespected(t *testing.T) {
	s := newParallelScheduler(2)

	var running, peak int32
	var mu sync.Mutex
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		require.NoError(t, s.AddTask(NewTask(name, name, func(ctx context.Context) error {
			n := atomic.AddInt32(&running, 1)
			mu.Lock()
			if n > peak {
				peak = n
			}
			mu.Unlock()
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&running, -1)
			return nil
		})))
	}

	_, err := s.Execute(context.Background())
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, peak, int32(2))
}

func TestParallel_CriticalFailureAbortsLaterPasses(t *testing.T) {
	s := newParallelScheduler(4)
	rec := &callRecorder{}

	x := NewTask("x", "x", func(ctx context.Context) error {
		rec.record("x")
		return errors.New("boom")
	}).AsCritical().WithMaxRetries(0)
	require.NoError(t, s.AddTask(x))
	require.NoError(t, s.AddTask(succeedingTask(rec, "y", "x")))

	res, err := s.Execute(context.Background())
	require.Error(t, err)

	var fatal *FatalStartupError
	require.ErrorAs(t, err, &fatal)
	assert.Equal(t, 0, rec.count("y"))
	assert.Contains(t, res.Unrun, "y")
}

func TestParallel_ToleratedFailureStillUnblocksDependents(t *testing.T) {
	s := newParallelScheduler(4)
	rec := &callRecorder{}

	x := failingTask(rec, "x")
	x.WithMaxRetries(0)
	require.NoError(t, s.AddTask(x))
	require.NoError(t, s.AddTask(succeedingTask(rec, "y", "x")))

	res, err := s.Execute(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, rec.count("y"))
	assert.Equal(t, []string{"x"}, res.Tolerated)
}
