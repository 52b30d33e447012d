package reporter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReport_AppendsRecords(t *testing.T) {
	rep := New()

	rep.Report("database", "open failed", true, nil)
	rep.Report("theme", "bad palette", false, map[string]interface{}{"file": "dark.json"})

	assert.True(t, rep.HasErrors())
	assert.True(t, rep.HasCriticalErrors())

	errs := rep.GetErrors()
	require.Len(t, errs, 2)
	assert.Equal(t, "database", errs[0].TaskName)
	assert.True(t, errs[0].Critical)
	assert.False(t, errs[0].Timestamp.IsZero())
	assert.Equal(t, "dark.json", errs[1].Context["file"])
}

func TestGetErrors_FiltersByCriticality(t *testing.T) {
	rep := New()

	rep.Report("a", "boom", true, nil)
	rep.Report("b", "meh", false, nil)
	rep.Report("c", "also boom", true, nil)

	assert.Len(t, rep.GetCriticalErrors(), 2)
	assert.Len(t, rep.GetNonCriticalErrors(), 1)
}

func TestGetErrors_ReturnsDefensiveSnapshots(t *testing.T) {
	rep := New()
	rep.Report("a", "boom", false, map[string]interface{}{"k": "v"})

	snapshot := rep.GetErrors()
	snapshot[0].Message = "tampered"
	snapshot[0].Context["k"] = "tampered"

	fresh := rep.GetErrors()
	assert.Equal(t, "boom", fresh[0].Message)
	assert.Equal(t, "v", fresh[0].Context["k"])
}

func TestGenerateSummary_CriticalFirst(t *testing.T) {
	rep := New()

	rep.Report("theme", "bad palette", false, nil)
	rep.Report("database", "open failed", true, nil)

	summary := rep.GenerateSummary()
	assert.Contains(t, summary, "2 total (1 critical, 1 non-critical)")

	criticalIdx := strings.Index(summary, "database: open failed")
	nonCriticalIdx := strings.Index(summary, "theme: bad palette")
	require.GreaterOrEqual(t, criticalIdx, 0)
	require.GreaterOrEqual(t, nonCriticalIdx, 0)
	assert.Less(t, criticalIdx, nonCriticalIdx, "critical errors are listed first")
}

func TestGenerateSummary_Empty(t *testing.T) {
	rep := New()
	assert.Equal(t, "No startup errors reported.", rep.GenerateSummary())
}

func TestGenerateSummary_Deterministic(t *testing.T) {
	rep := New()
	rep.Report("a", "one", false, nil)
	rep.Report("b", "two", true, nil)

	assert.Equal(t, rep.GenerateSummary(), rep.GenerateSummary())
}

func TestClear_RemovesRecords(t *testing.T) {
	rep := New()
	rep.Report("a", "boom", true, nil)

	rep.Clear()

	assert.False(t, rep.HasErrors())
	assert.False(t, rep.HasCriticalErrors())
	assert.Empty(t, rep.GetErrors())
}

func TestSetReportingEnabled_DisablesReport(t *testing.T) {
	rep := New()

	rep.SetReportingEnabled(false)
	rep.Report("a", "dropped", true, nil)
	assert.False(t, rep.HasErrors())

	rep.SetReportingEnabled(true)
	rep.Report("a", "kept", true, nil)
	assert.True(t, rep.HasErrors())
}

func TestCriticalHandler_FiresForCriticalOnly(t *testing.T) {
	rep := New()

	var seen []string
	rep.SetCriticalHandler(func(rec ErrorRecord) {
		seen = append(seen, rec.TaskName)
	})

	rep.Report("a", "boom", true, nil)
	rep.Report("b", "meh", false, nil)

	assert.Equal(t, []string{"a"}, seen)
}
