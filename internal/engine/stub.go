package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/talkboard/talkboard/internal/appinfo"
)

// StubEngine produces deterministic transcripts without invoking a model.
// When a script is supplied, successive calls return its entries in order,
// which makes the scheduler pipeline testable end to end.
type StubEngine struct {
	log *slog.Logger

	mu      sync.Mutex
	loaded  bool
	script  []string
	calls   int
	samples int
}

// NewStubEngine returns an Engine that generates placeholder transcripts.
func NewStubEngine(logger *slog.Logger) *StubEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &StubEngine{
		log: logger.With(
			"component", "engine.stub",
			"app", appinfo.Info.Slug,
		),
	}
}

// SetScript replaces the scripted responses. Calls beyond the script return
// empty output.
func (e *StubEngine) SetScript(fragments []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.script = append([]string(nil), fragments...)
	e.calls = 0
}

// Name implements the Engine interface.
func (e *StubEngine) Name() string { return "stub" }

// Load implements the Engine interface.
func (e *StubEngine) Load(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loaded = true
	return nil
}

// Close implements the Engine interface.
func (e *StubEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loaded = false
	return nil
}

// Transcribe implements the Engine interface.
func (e *StubEngine) Transcribe(ctx context.Context, samples []float32, language string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(samples) == 0 {
		return "", nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.loaded {
		return "", ErrModelNotLoaded
	}
	e.samples += len(samples)

	var text string
	if e.calls < len(e.script) {
		text = e.script[e.calls]
	} else if len(e.script) == 0 {
		text = fmt.Sprintf("[stub] heard %d samples", len(samples))
	}
	e.calls++

	e.log.Debug("stub transcript", "samples", len(samples), "language", language, "call", e.calls)
	return text, nil
}

// Calls reports how many inference calls were made.
func (e *StubEngine) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}
