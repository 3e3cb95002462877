package capture

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/talkboard/talkboard/internal/audio"
)

// PolledFileCapture tails a growing raw PCM16 file written by an external
// recorder, reading newly appended bytes at a fixed poll interval. It is the
// fallback strategy for platforms where no continuous stream is available.
type PolledFileCapture struct {
	path string
	poll time.Duration
	conv audio.Converter
	log  *slog.Logger

	mu       sync.Mutex
	consumer Consumer
	cancel   context.CancelFunc
	done     chan struct{}
	started  bool
}

// NewPolledFileCapture tails path at the given interval.
func NewPolledFileCapture(path string, poll time.Duration, conv audio.Converter, logger *slog.Logger) *PolledFileCapture {
	if logger == nil {
		logger = slog.Default()
	}
	if poll <= 0 {
		poll = 200 * time.Millisecond
	}
	return &PolledFileCapture{
		path: path,
		poll: poll,
		conv: conv,
		log:  logger.With("component", "capture.polledfile", "path", path),
	}
}

// OnSamples registers the consumer callback. Must be set before Start.
func (c *PolledFileCapture) OnSamples(fn Consumer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.consumer = fn
}

// Start verifies the file can be opened and launches the poll loop. Fails
// with ErrPermissionDenied or a *DeviceError when the recorder file is not
// usable.
func (c *PolledFileCapture) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return nil
	}

	f, err := os.Open(c.path)
	if err != nil {
		return classifyOpenError(c.path, err)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	done := make(chan struct{})
	c.done = done
	c.started = true
	consume := c.consumer

	go func() {
		defer close(done)
		defer f.Close()
		c.pollLoop(loopCtx, f, consume)
	}()
	return nil
}

// Stop cancels the poll loop and waits for it to release the file. Safe to
// call more than once.
func (c *PolledFileCapture) Stop() {
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
	if done != nil {
		<-done
	}
}

func (c *PolledFileCapture) pollLoop(ctx context.Context, f *os.File, consume Consumer) {
	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()

	buf := make([]byte, 32*1024)
	aligner := newFrameAligner(c.conv)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		// Drain whatever the recorder appended since the last poll. A poll
		// can catch the recorder mid-write, so the aligner carries any
		// trailing partial frame to the next round.
		for {
			n, err := f.Read(buf)
			if n > 0 && consume != nil {
				if samples := aligner.convert(buf[:n]); len(samples) > 0 {
					consume(samples)
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					c.log.Warn("poll read error", "error", err)
					return
				}
				break
			}
			if n == 0 {
				break
			}
		}
	}
}
