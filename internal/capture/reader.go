package capture

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/talkboard/talkboard/internal/audio"
)

// ReaderCapture streams raw little-endian PCM16 audio from an io.Reader
// (typically stdin or a pipe fed by an external recorder) and converts each
// read into canonical chunks. It tolerates whatever buffer sizes the source
// produces.
type ReaderCapture struct {
	r    io.Reader
	conv audio.Converter
	log  *slog.Logger

	mu       sync.Mutex
	consumer Consumer
	cancel   context.CancelFunc
	done     chan struct{}
	started  bool
}

// NewReaderCapture wraps an already-open PCM stream.
func NewReaderCapture(r io.Reader, conv audio.Converter, logger *slog.Logger) *ReaderCapture {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReaderCapture{
		r:    r,
		conv: conv,
		log:  logger.With("component", "capture.reader"),
	}
}

// OnSamples registers the consumer callback. Must be set before Start.
func (c *ReaderCapture) OnSamples(fn Consumer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.consumer = fn
}

// Start launches the read loop. Fails with a *DeviceError when the stream is
// unavailable.
func (c *ReaderCapture) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return nil
	}
	if c.r == nil {
		return &DeviceError{Source: "reader", Err: io.ErrClosedPipe}
	}

	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	done := make(chan struct{})
	c.done = done
	c.started = true
	consume := c.consumer

	go func() {
		defer close(done)
		readLoop(loopCtx, c.r, c.conv, consume, c.log)
	}()
	return nil
}

// Stop cancels the read loop and waits for it to drain. The underlying
// stream is closed when it supports closing, which unblocks a pending Read.
// Safe to call more than once.
func (c *ReaderCapture) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	done := c.done
	c.cancel = nil
	c.done = nil
	c.started = false
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	if closer, ok := c.r.(io.Closer); ok {
		_ = closer.Close()
	}
	if done != nil {
		<-done
	}
}
