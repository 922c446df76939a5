package profileengine

import (
	"testing"
	"time"

	"github.com/gofhir/profileengine/issue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecordOperation(t *testing.T) {
	m := NewMetrics()
	m.RecordOperation(10*time.Millisecond, true)
	m.RecordOperation(20*time.Millisecond, false)

	assert.Equal(t, uint64(2), m.OperationsTotal())
	assert.Equal(t, uint64(1), m.OperationsSucceeded())
	assert.InDelta(t, 0.5, m.SuccessRate(), 0.0001)
}

func TestMetricsRecordIssues(t *testing.T) {
	m := NewMetrics()
	m.RecordIssues([]issue.Issue{
		issue.Errorf(issue.CodeInvalidPrimitive, "Patient.name", "bad"),
		issue.Warnf(issue.CodeUnexpectedProperty, "Patient.bogus", "unknown"),
		issue.Warnf(issue.CodeUnexpectedProperty, "Patient.bogus2", "unknown"),
	})

	snap := m.Snapshot()
	assert.Equal(t, uint64(1), snap.ErrorsTotal)
	assert.Equal(t, uint64(2), snap.WarningsTotal)
}

func TestMetricsStageStats(t *testing.T) {
	m := NewMetrics()
	m.RecordStage("merge", 5*time.Millisecond, 2)
	m.RecordStage("merge", 15*time.Millisecond, 0)

	stats, ok := m.StageStats("merge")
	require.True(t, ok)
	assert.Equal(t, uint64(2), stats.Invocations)
	assert.Equal(t, uint64(2), stats.IssuesFound)
	assert.Equal(t, 10*time.Millisecond, stats.AvgTime)
}

func TestMetricsCacheHitRate(t *testing.T) {
	m := NewMetrics()
	m.RecordCacheHit()
	m.RecordCacheHit()
	m.RecordCacheMiss()

	assert.InDelta(t, 2.0/3.0, m.CacheHitRate(), 0.0001)
}

func TestMetricsPoolLeaks(t *testing.T) {
	m := NewMetrics()
	m.RecordPoolAcquire()
	m.RecordPoolAcquire()
	m.RecordPoolRelease()

	assert.Equal(t, int64(1), m.PoolLeaks())
}

func TestMetricsReset(t *testing.T) {
	m := NewMetrics()
	m.RecordOperation(time.Millisecond, true)
	m.Reset()
	assert.Equal(t, uint64(0), m.OperationsTotal())
}

func TestNilMetricsIsNoOp(t *testing.T) {
	var m *Metrics
	require.NotPanics(t, func() {
		m.RecordOperation(time.Millisecond, true)
		m.RecordCacheHit()
		m.RecordIssues(nil)
		_ = m.Snapshot()
	})
}
