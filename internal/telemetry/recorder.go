package telemetry

import (
	"log/slog"
	"sync/atomic"
	"time"
)

// Recorder tracks pipeline-level telemetry across sessions.
type Recorder struct {
	log *slog.Logger

	totalSessions       atomic.Uint64
	activeSessions      atomic.Int64
	totalTicks          atomic.Uint64
	totalSkippedTicks   atomic.Uint64
	totalInferences     atomic.Uint64
	totalFragments      atomic.Uint64
	totalRejected       atomic.Uint64
	totalUtterances     atomic.Uint64
	totalSamples        atomic.Uint64
	totalInferenceNanos atomic.Int64
}

// Snapshot captures cumulative metrics recorded so far.
type Snapshot struct {
	TotalSessions     uint64
	ActiveSessions    int64
	TotalTicks        uint64
	TotalSkippedTicks uint64
	TotalInferences   uint64
	TotalFragments    uint64
	TotalRejected     uint64
	TotalUtterances   uint64
	TotalSamples      uint64
	TotalInference    time.Duration
}

// NewRecorder constructs a Recorder using the provided logger.
func NewRecorder(logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		log: logger.With("component", "telemetry.Recorder"),
	}
}

// Snapshot returns an immutable view of the recorder totals.
func (r *Recorder) Snapshot() Snapshot {
	if r == nil {
		return Snapshot{}
	}
	return Snapshot{
		TotalSessions:     r.totalSessions.Load(),
		ActiveSessions:    r.activeSessions.Load(),
		TotalTicks:        r.totalTicks.Load(),
		TotalSkippedTicks: r.totalSkippedTicks.Load(),
		TotalInferences:   r.totalInferences.Load(),
		TotalFragments:    r.totalFragments.Load(),
		TotalRejected:     r.totalRejected.Load(),
		TotalUtterances:   r.totalUtterances.Load(),
		TotalSamples:      r.totalSamples.Load(),
		TotalInference:    time.Duration(r.totalInferenceNanos.Load()),
	}
}

// SessionMetrics accumulates statistics for a single streaming session.
type SessionMetrics struct {
	recorder *Recorder
	log      *slog.Logger

	sessionID string
	started   time.Time

	ticks      int
	skipped    int
	inferences int
	fragments  int
	rejected   int
	utterances int
	samples    int
	closed     atomic.Bool
}

// StartSession initialises a SessionMetrics instance bound to the recorder.
func (r *Recorder) StartSession(sessionID string) *SessionMetrics {
	if r == nil {
		return nil
	}
	r.totalSessions.Add(1)
	r.activeSessions.Add(1)
	return &SessionMetrics{
		recorder:  r,
		log:       r.log.With("session_id", sessionID),
		sessionID: sessionID,
		started:   time.Now(),
	}
}

// RecordTick counts one scheduler tick; skipped marks a tick that issued no
// inference (in-flight guard, short window, or silence).
func (s *SessionMetrics) RecordTick(skipped bool) {
	if s == nil {
		return
	}
	s.ticks++
	s.recorder.totalTicks.Add(1)
	if skipped {
		s.skipped++
		s.recorder.totalSkippedTicks.Add(1)
	}
}

// RecordSamples counts captured samples appended to the store.
func (s *SessionMetrics) RecordSamples(n int) {
	if s == nil || n <= 0 {
		return
	}
	s.samples += n
	s.recorder.totalSamples.Add(uint64(n))
}

// RecordInference counts one completed inference call and its duration.
func (s *SessionMetrics) RecordInference(d time.Duration) {
	if s == nil {
		return
	}
	s.inferences++
	s.recorder.totalInferences.Add(1)
	s.recorder.totalInferenceNanos.Add(int64(d))
}

// RecordFragment counts an engine fragment; rejected marks hallucinations
// discarded by the filter.
func (s *SessionMetrics) RecordFragment(rejected bool) {
	if s == nil {
		return
	}
	if rejected {
		s.rejected++
		s.recorder.totalRejected.Add(1)
		return
	}
	s.fragments++
	s.recorder.totalFragments.Add(1)
}

// RecordUtterance counts a finalized utterance.
func (s *SessionMetrics) RecordUtterance() {
	if s == nil {
		return
	}
	s.utterances++
	s.recorder.totalUtterances.Add(1)
}

// Finish logs a summary and updates active session counters.
func (s *SessionMetrics) Finish(err error) {
	if s == nil {
		return
	}
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	defer s.recorder.activeSessions.Add(-1)

	duration := time.Since(s.started)
	args := []any{
		"duration_ms", duration.Milliseconds(),
		"ticks", s.ticks,
		"skipped_ticks", s.skipped,
		"inferences", s.inferences,
		"fragments", s.fragments,
		"rejected", s.rejected,
		"utterances", s.utterances,
		"samples", s.samples,
	}

	if err != nil {
		s.log.Error("session completed with error", append(args, "error", err)...)
		return
	}
	s.log.Info("session completed", args...)
}
