package stream

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/talkboard/talkboard/internal/audio"
	"github.com/talkboard/talkboard/internal/config"
	"github.com/talkboard/talkboard/internal/engine"
	"github.com/talkboard/talkboard/internal/telemetry"
)

// inferenceResult carries one completed engine call back into the scheduler
// loop, which is the only goroutine that touches text state.
type inferenceResult struct {
	text    string
	err     error
	elapsed time.Duration
}

// Scheduler owns the periodic inference loop. Each tick reads the freshest
// window from the sample store, applies the silence heuristic, and runs at
// most one inference at a time; a tick that finds an inference in flight is
// a full no-op for that interval. Ticks never queue: the store always holds
// the freshest audio regardless of how many cadence slots were missed.
type Scheduler struct {
	cfg     config.Config
	store   *audio.SampleStore
	eng     engine.Engine
	filter  *HallucinationFilter
	tracker *Tracker
	log     *slog.Logger
	metrics *telemetry.SessionMetrics
	emit    func(Event)

	// now is injectable so silence finalization is testable without real
	// wall-clock waits.
	now func() time.Time

	inFlight atomic.Bool
	results  chan inferenceResult

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool

	// Tick-confined state, owned by the loop goroutine.
	startedAt    time.Time
	silenceTicks int
	lastAccepted time.Time
}

// NewScheduler wires the loop's collaborators. emit receives utterance events
// and must be cheap; the session funnels them to its single-writer loop.
func NewScheduler(cfg config.Config, store *audio.SampleStore, eng engine.Engine, metrics *telemetry.SessionMetrics, emit func(Event), logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	merge := MergeOptions{
		CJK:         IsCJKLanguage(cfg.Language, cfg.CJKLanguages),
		FavorLatest: cfg.MergePolicy == config.MergeFavorLatest,
	}
	return &Scheduler{
		cfg:     cfg,
		store:   store,
		eng:     eng,
		filter:  NewHallucinationFilter(cfg.Denylist),
		tracker: NewTracker(merge),
		log:     logger.With("component", "scheduler"),
		metrics: metrics,
		emit:    emit,
		now:     time.Now,
		results: make(chan inferenceResult, 1),
	}
}

// Start clears the sample store, resets silence and utterance state, and
// launches the periodic loop. Idle → Running.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}

	s.store.Clear()
	s.silenceTicks = 0
	s.startedAt = s.now()
	s.lastAccepted = s.startedAt
	s.tracker = NewTracker(s.tracker.merge)
	s.inFlight.Store(false)

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	done := make(chan struct{})
	s.done = done
	s.running = true

	go s.run(loopCtx, done)
	s.log.Info("scheduler started", "step_ms", s.cfg.StepMs, "window_s", s.cfg.WindowSeconds)
}

// Stop cancels the loop, finalizes any open utterance, clears the store, and
// resets transient state. Idempotent. Running → Idle.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.done = nil
	wasRunning := s.running
	s.running = false
	s.mu.Unlock()

	if !wasRunning {
		return
	}
	cancel()
	<-done

	// The loop has exited; tracker access is safe from here.
	if ev, ok := s.tracker.Finalize(); ok {
		s.metrics.RecordUtterance()
		s.dispatch(ev)
	}
	s.store.Clear()
	s.silenceTicks = 0
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.cfg.Step())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		case res := <-s.results:
			s.handleResult(res)
		}
	}
}

// tick is one cadence slot. It must never block past one interval beyond the
// engine's own deadline, so inference runs asynchronously and its result is
// consumed by the loop on a later iteration.
func (s *Scheduler) tick(ctx context.Context) {
	// At-most-one-concurrent-inference: a tick overlapping a pending call is
	// skipped entirely, not queued.
	if s.inFlight.Load() {
		s.metrics.RecordTick(true)
		return
	}

	window := s.store.Latest(s.cfg.Window())
	if len(window) < s.samplesFor(s.cfg.MinAudio()) {
		s.metrics.RecordTick(true)
		return
	}

	now := s.now()
	warmedUp := now.Sub(s.startedAt) >= s.cfg.Warmup()
	if warmedUp && s.store.RMS(s.cfg.SilenceWindow()) < s.cfg.SilenceRMS {
		s.silenceTicks++
		s.metrics.RecordTick(true)
		if s.silenceTicks > s.cfg.SilenceDebounce {
			s.maybeFinalize(now)
		}
		return
	}
	s.silenceTicks = 0

	window = s.padWindow(window)
	s.metrics.RecordTick(false)
	s.inFlight.Store(true)

	started := now
	go func() {
		text, err := s.eng.Transcribe(ctx, window, s.cfg.Language)
		res := inferenceResult{text: text, err: err, elapsed: s.now().Sub(started)}
		select {
		case s.results <- res:
		case <-ctx.Done():
		}
	}()
}

// handleResult processes one finished inference on the loop goroutine.
func (s *Scheduler) handleResult(res inferenceResult) {
	s.inFlight.Store(false)
	s.metrics.RecordInference(res.elapsed)

	if res.err != nil {
		if errors.Is(res.err, context.DeadlineExceeded) || errors.Is(res.err, context.Canceled) {
			s.log.Debug("inference timed out", "elapsed_ms", res.elapsed.Milliseconds())
			return
		}
		// Recoverable: a single-tick failure never aborts the session.
		s.log.Warn("inference failed", "error", res.err)
		return
	}

	text := strings.TrimSpace(res.text)
	if text == "" {
		return
	}
	if s.filter.IsHallucination(text) {
		s.metrics.RecordFragment(true)
		s.log.Debug("fragment rejected", "text", text)
		return
	}
	s.metrics.RecordFragment(false)

	now := s.now()
	ev := s.tracker.Accept(text, now)
	s.lastAccepted = now
	s.silenceTicks = 0
	s.dispatch(ev)
}

// maybeFinalize freezes the open utterance once the quiet period after the
// last accepted fragment has elapsed. The deadline is an explicit value
// compared against the injected clock rather than a timer primitive.
func (s *Scheduler) maybeFinalize(now time.Time) {
	if !s.tracker.Open() {
		return
	}
	if now.Sub(s.lastAccepted) < s.cfg.SilenceHold() {
		return
	}
	if ev, ok := s.tracker.Finalize(); ok {
		s.metrics.RecordUtterance()
		s.log.Debug("utterance finalized", "id", ev.Utterance.ID, "chars", len(ev.Utterance.Text))
		s.dispatch(ev)
	}
}

func (s *Scheduler) dispatch(ev Event) {
	if s.emit != nil {
		s.emit(ev)
	}
}

// padWindow extends a short window with trailing zeros up to the engine's
// minimum input duration.
func (s *Scheduler) padWindow(window []float32) []float32 {
	min := s.samplesFor(s.cfg.EngineMinAudio())
	if len(window) >= min {
		return window
	}
	padded := make([]float32, min)
	copy(padded, window)
	return padded
}

func (s *Scheduler) samplesFor(d time.Duration) int {
	return int(float64(s.cfg.SampleRate) * d.Seconds())
}
