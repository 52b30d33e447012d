package scheduler

import (
	"context"
	"sync"
)

// runPassParallel runs every eligible task of one pass concurrently under a
// bounded worker pool and joins before the pass boundary. Dependency gating
// is unchanged: eligibility was computed against the completed set before
// the pass started, so ordering guarantees hold exactly as in the
// sequential path. A critical failure aborts after the in-flight tasks of
// the pass have settled; later passes never start.
func (s *Scheduler) runPassParallel(ctx context.Context, eligible []string, res *Result) error {
	workers := make(chan struct{}, s.parallelism)

	type outcome struct {
		name  string
		clean bool
		err   error
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	outcomes := make([]outcome, 0, len(eligible))

	for _, name := range eligible {
		s.mu.RLock()
		t := s.tasks[name]
		s.mu.RUnlock()

		wg.Add(1)
		go func(t *Task) {
			defer wg.Done()

			// Acquire worker slot
			select {
			case workers <- struct{}{}:
				defer func() { <-workers }()
			case <-ctx.Done():
				mu.Lock()
				outcomes = append(outcomes, outcome{name: t.Name, err: ctx.Err()})
				mu.Unlock()
				return
			}

			clean, err := s.runTask(ctx, t)
			mu.Lock()
			outcomes = append(outcomes, outcome{name: t.Name, clean: clean, err: err})
			mu.Unlock()
		}(t)
	}

	wg.Wait()

	// Settle in registration order so Result ordering stays deterministic.
	byName := make(map[string]outcome, len(outcomes))
	for _, o := range outcomes {
		byName[o.name] = o
	}
	var firstErr error
	for _, name := range eligible {
		o, ok := byName[name]
		if !ok {
			continue
		}
		if o.err != nil {
			if firstErr == nil {
				firstErr = o.err
			}
			continue
		}
		s.settle(o.name, o.clean, res)
	}
	return firstErr
}
