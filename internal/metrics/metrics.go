// Package metrics tracks process-local publish counters. The numbers are
// operational visibility only: they reset on restart and never drive control
// flow.
package metrics

import (
	"sync"
	"time"

	"publishd/internal/pkg/logger"
)

// Recorder accumulates publish outcomes. It is injected where needed rather
// than held in package globals, so tests and multi-daemon setups each get
// their own counters.
type Recorder struct {
	mu            sync.Mutex
	log           *logger.Logger
	successCount  int64
	failureCount  int64
	totalDuration time.Duration
}

// Snapshot is a point-in-time aggregate of the recorded outcomes.
type Snapshot struct {
	SuccessCount    int64 `json:"successCount"`
	FailureCount    int64 `json:"failureCount"`
	TotalDurationMs int64 `json:"totalDurationMs"`
	AvgDurationMs   int64 `json:"avgDurationMs"`
}

// NewRecorder creates a recorder that logs a snapshot after every outcome.
func NewRecorder(log *logger.Logger) *Recorder {
	return &Recorder{log: log.WithComponent("metrics")}
}

// RecordSuccess counts one successful publish.
func (r *Recorder) RecordSuccess(duration time.Duration) {
	r.record("success", duration, true)
}

// RecordFailure counts one failed publish.
func (r *Recorder) RecordFailure(duration time.Duration) {
	r.record("failure", duration, false)
}

func (r *Recorder) record(outcome string, duration time.Duration, success bool) {
	r.mu.Lock()
	if success {
		r.successCount++
	} else {
		r.failureCount++
	}
	r.totalDuration += duration
	snap := r.snapshotLocked()
	r.mu.Unlock()

	r.log.Info("publish outcome recorded",
		"outcome", outcome,
		"last_duration_ms", duration.Milliseconds(),
		"success_count", snap.SuccessCount,
		"failure_count", snap.FailureCount,
		"avg_duration_ms", snap.AvgDurationMs,
	)
}

// Snapshot returns the current aggregate.
func (r *Recorder) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Recorder) snapshotLocked() Snapshot {
	snap := Snapshot{
		SuccessCount:    r.successCount,
		FailureCount:    r.failureCount,
		TotalDurationMs: r.totalDuration.Milliseconds(),
	}
	if total := snap.SuccessCount + snap.FailureCount; total > 0 {
		snap.AvgDurationMs = snap.TotalDurationMs / total
	}
	return snap
}
