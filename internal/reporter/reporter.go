package reporter

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kiptoo/ignite/internal/logger"
)

// ErrorRecord is one initialization failure. Records are immutable once
// created.
type ErrorRecord struct {
	TaskName  string
	Message   string
	Critical  bool
	Timestamp time.Time
	Context   map[string]interface{}
}

// CriticalHandler is invoked for every critical record, in reporting
// order. It is the integration point for a future crash-reporting backend.
type CriticalHandler func(ErrorRecord)

// ErrorReporter is an append-only log of initialization failures, tagged
// critical or non-critical. It is written to by the scheduler and read by
// any number of listeners.
type ErrorReporter struct {
	mu              sync.RWMutex
	records         []ErrorRecord
	enabled         bool
	criticalHandler CriticalHandler
}

// New creates an enabled reporter.
func New() *ErrorReporter {
	return &ErrorReporter{enabled: true}
}

// SetCriticalHandler registers the hook run for critical records.
func (r *ErrorReporter) SetCriticalHandler(fn CriticalHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.criticalHandler = fn
}

// SetReportingEnabled toggles reporting process-wide. While disabled,
// Report is a no-op.
func (r *ErrorReporter) SetReportingEnabled(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enabled = enabled
}

// Report appends an error record and logs it. Critical errors additionally
// run the critical handler.
func (r *ErrorReporter) Report(taskName, message string, critical bool, context map[string]interface{}) {
	r.mu.Lock()
	if !r.enabled {
		r.mu.Unlock()
		return
	}

	rec := ErrorRecord{
		TaskName:  taskName,
		Message:   message,
		Critical:  critical,
		Timestamp: time.Now(),
		Context:   copyContext(context),
	}
	r.records = append(r.records, rec)
	handler := r.criticalHandler
	r.mu.Unlock()

	fields := map[string]interface{}{
		"task":     taskName,
		"critical": critical,
	}
	for k, v := range rec.Context {
		fields[k] = v
	}

	if critical {
		logger.Op.WithFields(fields).Error(message)
		if handler != nil {
			handler(rec)
		}
	} else {
		logger.Op.WithFields(fields).Warn(message)
	}
}

// GetErrors returns a snapshot of all records in reporting order.
func (r *ErrorReporter) GetErrors() []ErrorRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return copyRecords(r.records, func(ErrorRecord) bool { return true })
}

// GetCriticalErrors returns a snapshot of the critical records.
func (r *ErrorReporter) GetCriticalErrors() []ErrorRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return copyRecords(r.records, func(rec ErrorRecord) bool { return rec.Critical })
}

// GetNonCriticalErrors returns a snapshot of the non-critical records.
func (r *ErrorReporter) GetNonCriticalErrors() []ErrorRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return copyRecords(r.records, func(rec ErrorRecord) bool { return !rec.Critical })
}

// HasErrors reports whether anything was recorded.
func (r *ErrorReporter) HasErrors() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records) > 0
}

// HasCriticalErrors reports whether any critical record exists.
func (r *ErrorReporter) HasCriticalErrors() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rec := range r.records {
		if rec.Critical {
			return true
		}
	}
	return false
}

// Clear removes all records.
func (r *ErrorReporter) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = nil
}

// GenerateSummary renders a deterministic human-readable report, critical
// errors first.
func (r *ErrorReporter) GenerateSummary() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.records) == 0 {
		return "No startup errors reported."
	}

	critical := 0
	for _, rec := range r.records {
		if rec.Critical {
			critical++
		}
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Startup errors: %d total (%d critical, %d non-critical)\n",
		len(r.records), critical, len(r.records)-critical))

	if critical > 0 {
		sb.WriteString("Critical:\n")
		for _, rec := range r.records {
			if rec.Critical {
				sb.WriteString(fmt.Sprintf("  - %s: %s\n", rec.TaskName, rec.Message))
			}
		}
	}
	if critical < len(r.records) {
		sb.WriteString("Non-critical:\n")
		for _, rec := range r.records {
			if !rec.Critical {
				sb.WriteString(fmt.Sprintf("  - %s: %s\n", rec.TaskName, rec.Message))
			}
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func copyRecords(records []ErrorRecord, keep func(ErrorRecord) bool) []ErrorRecord {
	out := make([]ErrorRecord, 0, len(records))
	for _, rec := range records {
		if keep(rec) {
			rec.Context = copyContext(rec.Context)
			out = append(out, rec)
		}
	}
	return out
}

func copyContext(context map[string]interface{}) map[string]interface{} {
	if context == nil {
		return nil
	}
	out := make(map[string]interface{}, len(context))
	for k, v := range context {
		out[k] = v
	}
	return out
}
