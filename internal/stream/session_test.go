package stream

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/talkboard/talkboard/internal/capture"
	"github.com/talkboard/talkboard/internal/config"
	"github.com/talkboard/talkboard/internal/engine"
)

// fakeCapture pushes a fixed set of samples to the consumer on Start.
type fakeCapture struct {
	mu       sync.Mutex
	consumer capture.Consumer
	chunks   [][]float32
	startErr error
	stops    int
}

func (c *fakeCapture) OnSamples(fn capture.Consumer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.consumer = fn
}

func (c *fakeCapture) Start(ctx context.Context) error {
	if c.startErr != nil {
		return c.startErr
	}
	c.mu.Lock()
	consume := c.consumer
	chunks := c.chunks
	c.mu.Unlock()
	for _, chunk := range chunks {
		consume(chunk)
	}
	return nil
}

func (c *fakeCapture) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stops++
}

func sessionConfig() config.Config {
	cfg := testConfig()
	cfg.StepMs = 5
	cfg.MinAudioMs = 100
	cfg.EngineMinAudioMs = 100
	cfg.SilenceWindowMs = 100
	// Keep warm-up longer than the test so silence never finalizes early;
	// Stop performs the finalization under test.
	cfg.WarmupMs = 60000
	return cfg
}

func TestSessionEndToEnd(t *testing.T) {
	t.Parallel()

	eng := engine.NewStubEngine(nil)
	eng.SetScript([]string{"hel", "hello wor", "hello world"})
	cap := &fakeCapture{chunks: [][]float32{speech(2000)}}

	sess := NewSession(sessionConfig(), eng, cap, nil, nil)
	events, unsubscribe := sess.Subscribe()
	defer unsubscribe()

	if err := sess.Start(context.Background()); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	waitForCond(t, func() bool { return sess.Snapshot().Partial == "hello world" })

	snap := sess.Snapshot()
	if !snap.Running || !snap.Ready {
		t.Fatalf("snapshot flags = %+v, want running and ready", snap)
	}
	if len(snap.Conversation) != 1 {
		t.Fatalf("conversation has %d utterances, want 1", len(snap.Conversation))
	}
	if snap.Conversation[0].Final {
		t.Fatalf("utterance finalized while speech is ongoing")
	}

	sess.Stop()
	sess.Stop()

	snap = sess.Snapshot()
	if snap.Running {
		t.Fatalf("snapshot still running after Stop")
	}
	if snap.Partial != "" {
		t.Fatalf("partial text not cleared on finalization: %q", snap.Partial)
	}
	if len(snap.Conversation) != 1 {
		t.Fatalf("conversation has %d utterances, want exactly 1", len(snap.Conversation))
	}
	final := snap.Conversation[0]
	if !final.Final || final.Text != "hello world" {
		t.Fatalf("final utterance = %+v, want finalized %q", final, "hello world")
	}

	// The subscriber saw the open event first and a finalize event last.
	var seen []Event
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				t.Fatalf("subscription closed unexpectedly")
			}
			seen = append(seen, ev)
			if ev.Kind == EventUtteranceFinalized {
				goto done
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("no finalize event observed; saw %+v", seen)
		}
	}
done:
	if seen[0].Kind != EventUtteranceOpened {
		t.Fatalf("first observed event kind = %d, want opened", seen[0].Kind)
	}
}

func TestSessionStartCaptureFailure(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("device busy")
	eng := engine.NewStubEngine(nil)
	cap := &fakeCapture{startErr: wantErr}

	sess := NewSession(sessionConfig(), eng, cap, nil, nil)
	err := sess.Start(context.Background())
	if !errors.Is(err, wantErr) {
		t.Fatalf("Start error = %v, want wrapped %v", err, wantErr)
	}
	if sess.Snapshot().Running {
		t.Fatalf("failed start left session marked running")
	}

	// A clean retry is possible after the failure is fixed.
	cap.startErr = nil
	cap.chunks = [][]float32{speech(500)}
	if err := sess.Start(context.Background()); err != nil {
		t.Fatalf("retry Start returned error: %v", err)
	}
	sess.Stop()
}

func TestSessionStartModelLoadFailure(t *testing.T) {
	t.Parallel()

	eng := engine.NewExternalEngine("no-such-transcriber-binary", nil, "", 16000, 0, nil)
	cap := &fakeCapture{}

	sess := NewSession(sessionConfig(), eng, cap, nil, nil)
	err := sess.Start(context.Background())
	if !errors.Is(err, engine.ErrModelLoad) {
		t.Fatalf("Start error = %v, want ErrModelLoad", err)
	}
	if sess.Snapshot().Running {
		t.Fatalf("failed start left session running")
	}
}
