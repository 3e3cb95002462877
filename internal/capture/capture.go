// Package capture bridges continuous raw audio input into canonical mono
// 16 kHz float32 chunks delivered to a consumer callback. The consumer must
// never block; it is expected to do conversion-free work such as a bounded
// lock append into the sample store.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/talkboard/talkboard/internal/audio"
	"github.com/talkboard/talkboard/internal/config"
)

// ErrPermissionDenied indicates the audio source exists but cannot be opened
// by this process. Surfaced distinctly from device errors so the caller can
// prompt differently.
var ErrPermissionDenied = errors.New("capture: permission denied")

// DeviceError wraps a device or format negotiation failure that prevents a
// session from starting.
type DeviceError struct {
	Source string
	Err    error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("capture: open %s: %v", e.Source, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// Consumer receives one converted chunk per arriving hardware buffer.
type Consumer func(samples []float32)

// Capture is the contract shared by all capture strategies. Start may fail
// with ErrPermissionDenied or a *DeviceError; Stop is idempotent and releases
// all resources.
type Capture interface {
	Start(ctx context.Context) error
	Stop()
	OnSamples(fn Consumer)
}

// Resolve picks a capture strategy for the session from configuration. The
// choice is made once per session and never switched mid-session: "stdin" or
// "-" selects the stream reader, any other value is treated as a growing PCM
// file to poll.
func Resolve(cfg config.Config, logger *slog.Logger) Capture {
	if logger == nil {
		logger = slog.Default()
	}
	conv := converterFor(cfg)

	source := strings.TrimSpace(cfg.CaptureSource)
	switch source {
	case "", "stdin", "-":
		logger.Info("capture strategy resolved", "strategy", "reader", "source", "stdin")
		return NewReaderCapture(os.Stdin, conv, logger)
	default:
		logger.Info("capture strategy resolved", "strategy", "polled-file", "source", source)
		return NewPolledFileCapture(source, cfg.CapturePoll(), conv, logger)
	}
}

func converterFor(cfg config.Config) audio.Converter {
	return audio.Converter{
		InputRate:     cfg.CaptureSampleRate,
		InputChannels: cfg.CaptureChannels,
		TargetRate:    cfg.SampleRate,
	}
}

func classifyOpenError(source string, err error) error {
	if errors.Is(err, os.ErrPermission) {
		return fmt.Errorf("%w: %s", ErrPermissionDenied, source)
	}
	return &DeviceError{Source: source, Err: err}
}

// frameAligner carries the tail bytes of a read that ends mid-frame so PCM16
// byte alignment survives arbitrary read sizes. Pipes legally return odd
// counts, and a recorder caught mid-write leaves a partial frame at the end
// of a growing file; converting such a chunk on its own would shift every
// later sample by a byte.
type frameAligner struct {
	conv    audio.Converter
	pending []byte
}

func newFrameAligner(conv audio.Converter) *frameAligner {
	return &frameAligner{conv: conv}
}

// convert consumes whole frames from the carried bytes plus the new chunk and
// holds the remainder for the next call. The carry never exceeds one frame.
func (a *frameAligner) convert(chunk []byte) []float32 {
	frameBytes := 2
	if a.conv.InputChannels > 1 {
		frameBytes = 2 * a.conv.InputChannels
	}

	a.pending = append(a.pending, chunk...)
	usable := len(a.pending) - len(a.pending)%frameBytes
	if usable == 0 {
		return nil
	}
	samples := a.conv.Convert(a.pending[:usable])
	rest := copy(a.pending, a.pending[usable:])
	a.pending = a.pending[:rest]
	return samples
}

// readLoop pumps raw buffers from r through the converter into the consumer
// until the context is cancelled or the reader is exhausted. Buffer sizes
// from the source vary; frame alignment is preserved across reads.
func readLoop(ctx context.Context, r io.Reader, conv audio.Converter, consume Consumer, log *slog.Logger) {
	buf := make([]byte, 8192)
	aligner := newFrameAligner(conv)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		n, err := r.Read(buf)
		if n > 0 && consume != nil {
			if samples := aligner.convert(buf[:n]); len(samples) > 0 {
				consume(samples)
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && log != nil {
				log.Warn("capture read error", "error", err)
			}
			return
		}
	}
}
