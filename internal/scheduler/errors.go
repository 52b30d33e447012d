package scheduler

import "fmt"

// DuplicateTaskError is returned by AddTask when a task name is already
// registered. Duplicate registration is always a caller error.
type DuplicateTaskError struct {
	Name string
}

func (e *DuplicateTaskError) Error() string {
	return fmt.Sprintf("task %q is already registered", e.Name)
}

// UnknownTaskError is returned when a declared dependency names a task
// that was never registered.
type UnknownTaskError struct {
	Name       string
	RequiredBy string
}

func (e *UnknownTaskError) Error() string {
	return fmt.Sprintf("task %q depends on unregistered task %q", e.RequiredBy, e.Name)
}

// FatalStartupError is the only error kind that crosses Execute's boundary.
// It carries the critical task that aborted the startup sequence together
// with its terminal initializer error and, when a fallback ran, the
// fallback's error.
type FatalStartupError struct {
	Task        string
	Err         error
	FallbackErr error
}

func (e *FatalStartupError) Error() string {
	if e.FallbackErr != nil {
		return fmt.Sprintf("critical task %q failed: %v (fallback failed: %v)", e.Task, e.Err, e.FallbackErr)
	}
	return fmt.Sprintf("critical task %q failed: %v", e.Task, e.Err)
}

func (e *FatalStartupError) Unwrap() error {
	return e.Err
}
