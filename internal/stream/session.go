package stream

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/talkboard/talkboard/internal/audio"
	"github.com/talkboard/talkboard/internal/capture"
	"github.com/talkboard/talkboard/internal/config"
	"github.com/talkboard/talkboard/internal/engine"
	"github.com/talkboard/talkboard/internal/telemetry"
)

// Snapshot is the UI-facing view of a session: an append/update-only
// conversation of utterance values, the open utterance's latest merged text,
// and readiness flags. Snapshots are values; the presentation layer never
// shares mutable state with the pipeline.
type Snapshot struct {
	Conversation []Utterance `json:"conversation"`
	Partial      string      `json:"partial"`
	Running      bool        `json:"running"`
	Ready        bool        `json:"ready"`
	LoadProgress float64     `json:"load_progress"`
}

// Session owns one capture-to-transcript run. All UI-facing state transitions
// are funneled through its run loop, the single writer of the snapshot; the
// capture callback only converts and appends under the store's bounded lock.
type Session struct {
	cfg      config.Config
	log      *slog.Logger
	eng      engine.Engine
	cap      capture.Capture
	store    *audio.SampleStore
	sched    *Scheduler
	recorder *telemetry.Recorder
	metrics  *telemetry.SessionMetrics

	events chan Event
	done   chan struct{}

	mu       sync.Mutex
	running  bool
	snapshot Snapshot
	subs     map[chan Event]struct{}
}

// NewSession assembles the pipeline around the given engine and capture
// strategy.
func NewSession(cfg config.Config, eng engine.Engine, cap capture.Capture, recorder *telemetry.Recorder, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = telemetry.NewRecorder(logger)
	}
	return &Session{
		cfg:      cfg,
		log:      logger.With("component", "session"),
		eng:      eng,
		cap:      cap,
		store:    audio.NewSampleStore(cfg.SampleRate, cfg.BufferCap()),
		recorder: recorder,
		subs:     make(map[chan Event]struct{}),
	}
}

// Start loads the model, starts capture, and launches the scheduler. Any
// setup failure leaves the session cleanly stopped with all resources
// released.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.mu.Unlock()

	sessionID := uuid.NewString()
	s.metrics = s.recorder.StartSession(sessionID)
	s.log.Info("session starting", "session_id", sessionID, "engine", s.eng.Name(), "language", s.cfg.Language)

	if err := s.eng.Load(ctx); err != nil {
		s.metrics.Finish(err)
		s.setStopped()
		return fmt.Errorf("session: load model: %w", err)
	}

	metrics := s.metrics
	s.cap.OnSamples(func(samples []float32) {
		s.store.Append(samples)
		metrics.RecordSamples(len(samples))
	})
	if err := s.cap.Start(ctx); err != nil {
		_ = s.eng.Close()
		s.metrics.Finish(err)
		s.setStopped()
		return fmt.Errorf("session: start capture: %w", err)
	}

	s.events = make(chan Event, 16)
	s.done = make(chan struct{})
	s.sched = NewScheduler(s.cfg, s.store, s.eng, s.metrics, s.enqueue, s.log)

	s.mu.Lock()
	s.snapshot = Snapshot{Running: true, Ready: true, LoadProgress: 1}
	s.mu.Unlock()

	go s.run()
	s.sched.Start(ctx)
	return nil
}

// Stop tears the pipeline down in order: capture first so no new audio
// arrives, then the scheduler (which finalizes any open utterance), then the
// event loop and the engine. Idempotent.
func (s *Session) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.cap.Stop()
	s.sched.Stop()
	close(s.events)
	<-s.done
	if err := s.eng.Close(); err != nil {
		s.log.Warn("failed to close engine", "error", err)
	}
	s.metrics.Finish(nil)

	s.mu.Lock()
	s.snapshot.Running = false
	s.snapshot.Partial = ""
	s.mu.Unlock()
	s.log.Info("session stopped")
}

// Snapshot returns a copy of the current UI-facing state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.snapshot
	out.Conversation = append([]Utterance(nil), s.snapshot.Conversation...)
	return out
}

// Subscribe registers an event receiver, returning the channel and a cancel
// function. Slow subscribers drop events rather than stalling the pipeline.
func (s *Session) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 32)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subs[ch]; ok {
			delete(s.subs, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

// enqueue hands a scheduler event to the run loop without blocking the
// scheduler. The snapshot always reflects the freshest state on the next
// event, so dropping under backpressure loses nothing durable.
func (s *Session) enqueue(ev Event) {
	select {
	case s.events <- ev:
	default:
		s.log.Warn("event queue full, dropping event", "kind", ev.Kind)
	}
}

// run is the single writer of the published snapshot.
func (s *Session) run() {
	defer close(s.done)
	for ev := range s.events {
		s.apply(ev)
		s.fanout(ev)
	}
}

func (s *Session) apply(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev.Kind {
	case EventUtteranceOpened:
		s.snapshot.Conversation = append(s.snapshot.Conversation, ev.Utterance)
		s.snapshot.Partial = ev.Utterance.Text
	case EventPartialUpdated:
		s.updateUtteranceLocked(ev.Utterance)
		s.snapshot.Partial = ev.Utterance.Text
	case EventUtteranceFinalized:
		s.updateUtteranceLocked(ev.Utterance)
		s.snapshot.Partial = ""
	}
}

func (s *Session) updateUtteranceLocked(u Utterance) {
	for i := len(s.snapshot.Conversation) - 1; i >= 0; i-- {
		if s.snapshot.Conversation[i].ID == u.ID {
			s.snapshot.Conversation[i] = u
			return
		}
	}
	// An utterance finalized by Stop can arrive after its open event was
	// dropped under backpressure; append rather than lose it.
	s.snapshot.Conversation = append(s.snapshot.Conversation, u)
}

func (s *Session) fanout(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (s *Session) setStopped() {
	s.mu.Lock()
	s.running = false
	s.snapshot = Snapshot{}
	s.mu.Unlock()
}
