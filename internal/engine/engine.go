// Package engine defines the inference boundary consumed by the streaming
// scheduler. The acoustic model itself is an external collaborator; only its
// contract lives here, together with a deterministic stub and an
// external-process backend.
package engine

import (
	"context"
	"errors"
)

// ErrModelNotLoaded is returned by Transcribe when Load has not succeeded.
// Calls without a loaded model fail immediately rather than hanging.
var ErrModelNotLoaded = errors.New("engine: model not loaded")

// ErrModelLoad wraps a missing or malformed model file during Load.
var ErrModelLoad = errors.New("engine: model load failed")

// Engine is the transcription primitive: fixed-duration audio samples plus a
// language hint in, text out. Implementations enforce an internal deadline
// and return empty output rather than hanging; empty input yields empty
// output with no error. Output is trimmed UTF-8 with detected segments joined
// by single spaces.
type Engine interface {
	// Load prepares the model. Fails with ErrModelLoad when the model file
	// is missing or malformed.
	Load(ctx context.Context) error
	// Transcribe runs one inference over a window of mono 16 kHz samples.
	Transcribe(ctx context.Context, samples []float32, language string) (string, error)
	// Close releases all resources; idempotent.
	Close() error
	// Name identifies the backend for logs and feed metadata.
	Name() string
}
