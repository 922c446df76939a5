package profileengine

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofhir/profileengine/issue"
)

// Metrics tracks parse/serialize/snapshot/search/repository operation
// counts and timings using lock-free atomic operations. All methods are
// safe for concurrent use. A nil *Metrics is valid and every method on it
// is a no-op, so callers can pass Options.Metrics through unconditionally.
type Metrics struct {
	opsTotal     atomic.Uint64
	opsSucceeded atomic.Uint64

	opTimeTotal atomic.Uint64
	opTimeMin   atomic.Uint64
	opTimeMax   atomic.Uint64

	cacheHits   atomic.Uint64
	cacheMisses atomic.Uint64

	poolAcquires atomic.Uint64
	poolReleases atomic.Uint64

	errorsTotal   atomic.Uint64
	warningsTotal atomic.Uint64

	stageTiming sync.Map // map[string]*stageMetrics
}

// stageMetrics tracks metrics for a single named stage (e.g. "parse",
// "merge", "serialize", "search.compile", "repository.create").
type stageMetrics struct {
	invocations atomic.Uint64
	totalTime   atomic.Uint64
	issuesFound atomic.Uint64
}

// NewMetrics creates a new Metrics instance.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.opTimeMin.Store(^uint64(0))
	return m
}

// RecordOperation records one completed operation's duration and outcome.
func (m *Metrics) RecordOperation(duration time.Duration, succeeded bool) {
	if m == nil {
		return
	}
	m.opsTotal.Add(1)
	if succeeded {
		m.opsSucceeded.Add(1)
	}

	ns := uint64(duration.Nanoseconds())
	m.opTimeTotal.Add(ns)

	for {
		old := m.opTimeMin.Load()
		if ns >= old {
			break
		}
		if m.opTimeMin.CompareAndSwap(old, ns) {
			break
		}
	}
	for {
		old := m.opTimeMax.Load()
		if ns <= old {
			break
		}
		if m.opTimeMax.CompareAndSwap(old, ns) {
			break
		}
	}
}

// RecordCacheHit records a datatype/base-definition cache hit.
func (m *Metrics) RecordCacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Add(1)
}

// RecordCacheMiss records a datatype/base-definition cache miss.
func (m *Metrics) RecordCacheMiss() {
	if m == nil {
		return
	}
	m.cacheMisses.Add(1)
}

// RecordPoolAcquire records a sync.Pool acquire.
func (m *Metrics) RecordPoolAcquire() {
	if m == nil {
		return
	}
	m.poolAcquires.Add(1)
}

// RecordPoolRelease records a sync.Pool release.
func (m *Metrics) RecordPoolRelease() {
	if m == nil {
		return
	}
	m.poolReleases.Add(1)
}

// RecordIssues tallies a batch of diagnostics by severity.
func (m *Metrics) RecordIssues(issues []issue.Issue) {
	if m == nil {
		return
	}
	for _, iss := range issues {
		if iss.IsError() {
			m.errorsTotal.Add(1)
		} else {
			m.warningsTotal.Add(1)
		}
	}
}

// RecordStage records timing and issue count for a named pipeline stage.
func (m *Metrics) RecordStage(stage string, duration time.Duration, issuesFound int) {
	if m == nil {
		return
	}
	sm := m.getOrCreateStage(stage)
	sm.invocations.Add(1)
	sm.totalTime.Add(uint64(duration.Nanoseconds()))
	sm.issuesFound.Add(uint64(issuesFound))
}

func (m *Metrics) getOrCreateStage(name string) *stageMetrics {
	if v, ok := m.stageTiming.Load(name); ok {
		return v.(*stageMetrics)
	}
	sm := &stageMetrics{}
	actual, _ := m.stageTiming.LoadOrStore(name, sm)
	return actual.(*stageMetrics)
}

// --- Query methods ---

func (m *Metrics) OperationsTotal() uint64 {
	if m == nil {
		return 0
	}
	return m.opsTotal.Load()
}

func (m *Metrics) OperationsSucceeded() uint64 {
	if m == nil {
		return 0
	}
	return m.opsSucceeded.Load()
}

// SuccessRate returns the fraction of recorded operations that succeeded.
func (m *Metrics) SuccessRate() float64 {
	if m == nil {
		return 0
	}
	total := m.opsTotal.Load()
	if total == 0 {
		return 0
	}
	return float64(m.opsSucceeded.Load()) / float64(total)
}

func (m *Metrics) AverageOperationTime() time.Duration {
	if m == nil {
		return 0
	}
	total := m.opsTotal.Load()
	if total == 0 {
		return 0
	}
	return time.Duration(m.opTimeTotal.Load() / total)
}

func (m *Metrics) CacheHitRate() float64 {
	if m == nil {
		return 0
	}
	hits, misses := m.cacheHits.Load(), m.cacheMisses.Load()
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// PoolLeaks returns potential pool leaks (acquires - releases).
func (m *Metrics) PoolLeaks() int64 {
	if m == nil {
		return 0
	}
	return int64(m.poolAcquires.Load()) - int64(m.poolReleases.Load())
}

// StageStats holds statistics for a single named stage.
type StageStats struct {
	Name        string
	Invocations uint64
	TotalTime   time.Duration
	AvgTime     time.Duration
	IssuesFound uint64
}

func (m *Metrics) StageStats(name string) (StageStats, bool) {
	if m == nil {
		return StageStats{Name: name}, false
	}
	v, ok := m.stageTiming.Load(name)
	if !ok {
		return StageStats{Name: name}, false
	}
	sm := v.(*stageMetrics)
	invocations := sm.invocations.Load()
	totalTime := sm.totalTime.Load()
	var avg time.Duration
	if invocations > 0 {
		avg = time.Duration(totalTime / invocations)
	}
	return StageStats{
		Name:        name,
		Invocations: invocations,
		TotalTime:   time.Duration(totalTime),
		AvgTime:     avg,
		IssuesFound: sm.issuesFound.Load(),
	}, true
}

// Snapshot is a point-in-time copy of all metrics.
type Snapshot struct {
	Timestamp time.Time `json:"timestamp"`

	OperationsTotal     uint64  `json:"operations_total"`
	OperationsSucceeded uint64  `json:"operations_succeeded"`
	SuccessRate         float64 `json:"success_rate"`

	AvgOperationTimeNs uint64 `json:"avg_operation_time_ns"`
	MinOperationTimeNs uint64 `json:"min_operation_time_ns"`
	MaxOperationTimeNs uint64 `json:"max_operation_time_ns"`

	CacheHits    uint64  `json:"cache_hits"`
	CacheMisses  uint64  `json:"cache_misses"`
	CacheHitRate float64 `json:"cache_hit_rate"`

	PoolAcquires uint64 `json:"pool_acquires"`
	PoolReleases uint64 `json:"pool_releases"`
	PoolLeaks    int64  `json:"pool_leaks"`

	ErrorsTotal   uint64 `json:"errors_total"`
	WarningsTotal uint64 `json:"warnings_total"`

	Stages []StageStats `json:"stages,omitempty"`
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{Timestamp: time.Now()}
	}
	total := m.opsTotal.Load()
	cacheHits, cacheMisses := m.cacheHits.Load(), m.cacheMisses.Load()

	var avgTime, hitRate float64
	if total > 0 {
		avgTime = float64(m.opTimeTotal.Load()) / float64(total)
	}
	if cacheTotal := cacheHits + cacheMisses; cacheTotal > 0 {
		hitRate = float64(cacheHits) / float64(cacheTotal)
	}

	minTime := m.opTimeMin.Load()
	if minTime == ^uint64(0) {
		minTime = 0
	}

	var stages []StageStats
	m.stageTiming.Range(func(key, value any) bool {
		sm := value.(*stageMetrics)
		invocations := sm.invocations.Load()
		totalTime := sm.totalTime.Load()
		var avg time.Duration
		if invocations > 0 {
			avg = time.Duration(totalTime / invocations)
		}
		stages = append(stages, StageStats{
			Name:        key.(string),
			Invocations: invocations,
			TotalTime:   time.Duration(totalTime),
			AvgTime:     avg,
			IssuesFound: sm.issuesFound.Load(),
		})
		return true
	})

	return Snapshot{
		Timestamp:           time.Now(),
		OperationsTotal:     total,
		OperationsSucceeded: m.opsSucceeded.Load(),
		SuccessRate:         m.SuccessRate(),
		AvgOperationTimeNs:  uint64(avgTime),
		MinOperationTimeNs:  minTime,
		MaxOperationTimeNs:  m.opTimeMax.Load(),
		CacheHits:           cacheHits,
		CacheMisses:         cacheMisses,
		CacheHitRate:        hitRate,
		PoolAcquires:        m.poolAcquires.Load(),
		PoolReleases:        m.poolReleases.Load(),
		PoolLeaks:           m.PoolLeaks(),
		ErrorsTotal:         m.errorsTotal.Load(),
		WarningsTotal:       m.warningsTotal.Load(),
		Stages:              stages,
	}
}

// Reset clears all metrics.
func (m *Metrics) Reset() {
	if m == nil {
		return
	}
	m.opsTotal.Store(0)
	m.opsSucceeded.Store(0)
	m.opTimeTotal.Store(0)
	m.opTimeMin.Store(^uint64(0))
	m.opTimeMax.Store(0)
	m.cacheHits.Store(0)
	m.cacheMisses.Store(0)
	m.poolAcquires.Store(0)
	m.poolReleases.Store(0)
	m.errorsTotal.Store(0)
	m.warningsTotal.Store(0)
	m.stageTiming.Range(func(key, _ any) bool {
		m.stageTiming.Delete(key)
		return true
	})
}
