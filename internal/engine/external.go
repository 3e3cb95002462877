package engine

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// ExternalEngine shells out to a whisper-style command-line binary once per
// inference window. The window is handed over as a temporary WAV file and the
// transcript is read from stdout, one segment per line. The per-call deadline
// is enforced through the command's context; a deadline hit yields empty
// output rather than an error so the scheduler treats it as "no new
// information".
type ExternalEngine struct {
	command    string
	args       []string
	modelPath  string
	sampleRate int
	timeout    time.Duration
	log        *slog.Logger

	mu     sync.Mutex
	loaded bool
}

// NewExternalEngine configures an exec-based backend. The command is invoked
// as: command [args...] -m <model> -l <language> -f <wav>.
func NewExternalEngine(command string, args []string, modelPath string, sampleRate int, timeout time.Duration, logger *slog.Logger) *ExternalEngine {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &ExternalEngine{
		command:    command,
		args:       append([]string(nil), args...),
		modelPath:  modelPath,
		sampleRate: sampleRate,
		timeout:    timeout,
		log:        logger.With("component", "engine.external", "command", command),
	}
}

// Name implements the Engine interface.
func (e *ExternalEngine) Name() string { return filepath.Base(e.command) }

// Load verifies the command and model file exist.
func (e *ExternalEngine) Load(ctx context.Context) error {
	if strings.TrimSpace(e.command) == "" {
		return fmt.Errorf("%w: no engine command configured", ErrModelLoad)
	}
	if _, err := exec.LookPath(e.command); err != nil {
		return fmt.Errorf("%w: %v", ErrModelLoad, err)
	}
	if e.modelPath != "" {
		info, err := os.Stat(e.modelPath)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrModelLoad, err)
		}
		if info.IsDir() || info.Size() == 0 {
			return fmt.Errorf("%w: %s is not a model file", ErrModelLoad, e.modelPath)
		}
	}

	e.mu.Lock()
	e.loaded = true
	e.mu.Unlock()
	e.log.Info("external engine ready", "model_path", e.modelPath)
	return nil
}

// Close implements the Engine interface.
func (e *ExternalEngine) Close() error {
	e.mu.Lock()
	e.loaded = false
	e.mu.Unlock()
	return nil
}

// Transcribe implements the Engine interface.
func (e *ExternalEngine) Transcribe(ctx context.Context, samples []float32, language string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(samples) == 0 {
		return "", nil
	}

	e.mu.Lock()
	loaded := e.loaded
	e.mu.Unlock()
	if !loaded {
		return "", ErrModelNotLoaded
	}

	wavPath, err := writeTempWAV(samples, e.sampleRate)
	if err != nil {
		return "", fmt.Errorf("engine: write window: %w", err)
	}
	defer os.Remove(wavPath)

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	args := append(append([]string(nil), e.args...), "-m", e.modelPath)
	if lang := strings.TrimSpace(language); lang != "" {
		args = append(args, "-l", lang)
	}
	args = append(args, "-f", wavPath)

	cmd := exec.CommandContext(callCtx, e.command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		e.log.Debug("inference deadline exceeded", "timeout", e.timeout)
		return "", nil
	}
	if runErr != nil {
		return "", fmt.Errorf("engine: %s: %w (%s)", e.command, runErr, strings.TrimSpace(stderr.String()))
	}

	return joinSegments(&stdout), nil
}

// joinSegments collapses the one-segment-per-line CLI output into a single
// space-joined, trimmed string.
func joinSegments(out *bytes.Buffer) string {
	var builder strings.Builder
	scanner := bufio.NewScanner(out)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if builder.Len() > 0 {
			builder.WriteByte(' ')
		}
		builder.WriteString(line)
	}
	return strings.TrimSpace(builder.String())
}

// writeTempWAV stores samples as a 16-bit mono PCM WAV file.
func writeTempWAV(samples []float32, sampleRate int) (string, error) {
	f, err := os.CreateTemp("", "talkboard-window-*.wav")
	if err != nil {
		return "", err
	}
	defer f.Close()

	dataLen := 2 * len(samples)
	header := make([]byte, 44)
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:], uint32(36+dataLen))
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:], 16)
	binary.LittleEndian.PutUint16(header[20:], 1) // PCM
	binary.LittleEndian.PutUint16(header[22:], 1) // mono
	binary.LittleEndian.PutUint32(header[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:], uint32(sampleRate*2))
	binary.LittleEndian.PutUint16(header[32:], 2)
	binary.LittleEndian.PutUint16(header[34:], 16)
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:], uint32(dataLen))
	if _, err := f.Write(header); err != nil {
		os.Remove(f.Name())
		return "", err
	}

	pcm := make([]byte, dataLen)
	for i, v := range samples {
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		binary.LittleEndian.PutUint16(pcm[2*i:], uint16(int16(v*32767)))
	}
	if _, err := f.Write(pcm); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}
