package config

import (
	"fmt"
	"time"
)

const (
	// DefaultListenAddr is used when no explicit address is configured for
	// the transcript feed server.
	DefaultListenAddr = "127.0.0.1:8585"
	DefaultLanguage   = "auto"
	DefaultLogLevel   = "info"

	// DefaultSampleRate is the canonical pipeline rate. Everything past the
	// capture converter runs at mono 16 kHz float32.
	DefaultSampleRate = 16000

	DefaultBufferSeconds    = 30
	DefaultWindowSeconds    = 10
	DefaultStepMs           = 250
	DefaultMinAudioMs       = 500
	DefaultEngineMinAudioMs = 1000
	DefaultEngineTimeoutMs  = 8000

	DefaultSilenceRMS      = 0.01
	DefaultSilenceWindowMs = 1000
	DefaultSilenceDebounce = 3
	DefaultWarmupMs        = 3000
	DefaultSilenceHoldMs   = 1200

	DefaultCaptureSource     = "stdin"
	DefaultCaptureSampleRate = 48000
	DefaultCaptureChannels   = 1
	DefaultCapturePollMs     = 200

	// MergeFavorExisting keeps accumulated text when a new fragment neither
	// extends nor overlaps it; MergeFavorLatest adopts the newer transcript
	// when it is at least as long, treating it as a re-read of the window.
	MergeFavorExisting = "favor-existing"
	MergeFavorLatest   = "favor-latest"
)

// Config captures every tunable of the streaming pipeline. Duration-valued
// fields are millisecond integers so they round-trip cleanly through YAML and
// environment variables; accessor methods return time.Duration.
type Config struct {
	ListenAddr string `yaml:"listen_addr"`
	LogLevel   string `yaml:"log_level"`
	Language   string `yaml:"language"`

	ModelPath     string   `yaml:"model_path"`
	EngineCommand string   `yaml:"engine_command"`
	EngineArgs    []string `yaml:"engine_args"`
	UseStubEngine bool     `yaml:"use_stub_engine"`

	EngineTimeoutMs  int `yaml:"engine_timeout_ms"`
	EngineMinAudioMs int `yaml:"engine_min_audio_ms"`

	SampleRate    int `yaml:"sample_rate"`
	BufferSeconds int `yaml:"buffer_seconds"`
	WindowSeconds int `yaml:"window_seconds"`
	StepMs        int `yaml:"step_ms"`
	MinAudioMs    int `yaml:"min_audio_ms"`

	SilenceRMS      float64 `yaml:"silence_rms"`
	SilenceWindowMs int     `yaml:"silence_window_ms"`
	SilenceDebounce int     `yaml:"silence_debounce"`
	WarmupMs        int     `yaml:"warmup_ms"`
	SilenceHoldMs   int     `yaml:"silence_hold_ms"`

	MergePolicy  string   `yaml:"merge_policy"`
	CJKLanguages []string `yaml:"cjk_languages"`
	Denylist     []string `yaml:"denylist"`

	CaptureSource     string `yaml:"capture_source"`
	CaptureSampleRate int    `yaml:"capture_sample_rate"`
	CaptureChannels   int    `yaml:"capture_channels"`
	CapturePollMs     int    `yaml:"capture_poll_ms"`
}

// Validate applies defaults, checks required fields, and rejects
// out-of-range values.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.Language == "" {
		c.Language = DefaultLanguage
	}
	if c.EngineTimeoutMs == 0 {
		c.EngineTimeoutMs = DefaultEngineTimeoutMs
	}
	if c.EngineMinAudioMs == 0 {
		c.EngineMinAudioMs = DefaultEngineMinAudioMs
	}
	if c.SampleRate == 0 {
		c.SampleRate = DefaultSampleRate
	}
	if c.BufferSeconds == 0 {
		c.BufferSeconds = DefaultBufferSeconds
	}
	if c.WindowSeconds == 0 {
		c.WindowSeconds = DefaultWindowSeconds
	}
	if c.StepMs == 0 {
		c.StepMs = DefaultStepMs
	}
	if c.MinAudioMs == 0 {
		c.MinAudioMs = DefaultMinAudioMs
	}
	if c.SilenceRMS == 0 {
		c.SilenceRMS = DefaultSilenceRMS
	}
	if c.SilenceWindowMs == 0 {
		c.SilenceWindowMs = DefaultSilenceWindowMs
	}
	if c.SilenceDebounce == 0 {
		c.SilenceDebounce = DefaultSilenceDebounce
	}
	if c.WarmupMs == 0 {
		c.WarmupMs = DefaultWarmupMs
	}
	if c.SilenceHoldMs == 0 {
		c.SilenceHoldMs = DefaultSilenceHoldMs
	}
	if c.MergePolicy == "" {
		c.MergePolicy = MergeFavorExisting
	}
	if len(c.CJKLanguages) == 0 {
		c.CJKLanguages = []string{"zh", "ja", "ko", "yue"}
	}
	if c.CaptureSource == "" {
		c.CaptureSource = DefaultCaptureSource
	}
	if c.CaptureSampleRate == 0 {
		c.CaptureSampleRate = DefaultCaptureSampleRate
	}
	if c.CaptureChannels == 0 {
		c.CaptureChannels = DefaultCaptureChannels
	}
	if c.CapturePollMs == 0 {
		c.CapturePollMs = DefaultCapturePollMs
	}

	if c.SampleRate <= 0 {
		return fmt.Errorf("config: sample_rate must be > 0, got %d", c.SampleRate)
	}
	if c.BufferSeconds <= 0 {
		return fmt.Errorf("config: buffer_seconds must be > 0, got %d", c.BufferSeconds)
	}
	if c.WindowSeconds <= 0 {
		return fmt.Errorf("config: window_seconds must be > 0, got %d", c.WindowSeconds)
	}
	if c.WindowSeconds > c.BufferSeconds {
		return fmt.Errorf("config: window_seconds (%d) must not exceed buffer_seconds (%d)", c.WindowSeconds, c.BufferSeconds)
	}
	if c.StepMs <= 0 {
		return fmt.Errorf("config: step_ms must be > 0, got %d", c.StepMs)
	}
	if c.MinAudioMs <= 0 {
		return fmt.Errorf("config: min_audio_ms must be > 0, got %d", c.MinAudioMs)
	}
	if c.EngineMinAudioMs <= 0 {
		return fmt.Errorf("config: engine_min_audio_ms must be > 0, got %d", c.EngineMinAudioMs)
	}
	if c.EngineTimeoutMs <= 0 {
		return fmt.Errorf("config: engine_timeout_ms must be > 0, got %d", c.EngineTimeoutMs)
	}
	if c.SilenceRMS < 0 {
		return fmt.Errorf("config: silence_rms must be >= 0, got %g", c.SilenceRMS)
	}
	if c.SilenceWindowMs <= 0 {
		return fmt.Errorf("config: silence_window_ms must be > 0, got %d", c.SilenceWindowMs)
	}
	if c.SilenceDebounce < 0 {
		return fmt.Errorf("config: silence_debounce must be >= 0, got %d", c.SilenceDebounce)
	}
	if c.WarmupMs < 0 {
		return fmt.Errorf("config: warmup_ms must be >= 0, got %d", c.WarmupMs)
	}
	if c.SilenceHoldMs < 0 {
		return fmt.Errorf("config: silence_hold_ms must be >= 0, got %d", c.SilenceHoldMs)
	}
	if c.CaptureSampleRate <= 0 {
		return fmt.Errorf("config: capture_sample_rate must be > 0, got %d", c.CaptureSampleRate)
	}
	if c.CaptureChannels <= 0 {
		return fmt.Errorf("config: capture_channels must be > 0, got %d", c.CaptureChannels)
	}
	if c.CapturePollMs <= 0 {
		return fmt.Errorf("config: capture_poll_ms must be > 0, got %d", c.CapturePollMs)
	}
	switch c.MergePolicy {
	case MergeFavorExisting, MergeFavorLatest:
	default:
		return fmt.Errorf("config: merge_policy must be %q or %q, got %q", MergeFavorExisting, MergeFavorLatest, c.MergePolicy)
	}
	return nil
}

// Step is the scheduler tick cadence.
func (c Config) Step() time.Duration { return time.Duration(c.StepMs) * time.Millisecond }

// Window is the inference window duration.
func (c Config) Window() time.Duration { return time.Duration(c.WindowSeconds) * time.Second }

// BufferCap is the sample store capacity duration.
func (c Config) BufferCap() time.Duration { return time.Duration(c.BufferSeconds) * time.Second }

// MinAudio is the floor below which a window is not worth transcribing.
func (c Config) MinAudio() time.Duration { return time.Duration(c.MinAudioMs) * time.Millisecond }

// EngineMinAudio is the engine's minimum input duration; shorter windows are
// zero-padded up to it.
func (c Config) EngineMinAudio() time.Duration {
	return time.Duration(c.EngineMinAudioMs) * time.Millisecond
}

// EngineTimeout bounds a single inference call.
func (c Config) EngineTimeout() time.Duration {
	return time.Duration(c.EngineTimeoutMs) * time.Millisecond
}

// SilenceWindow is the trailing sub-window used for the RMS silence check.
func (c Config) SilenceWindow() time.Duration {
	return time.Duration(c.SilenceWindowMs) * time.Millisecond
}

// Warmup is the grace period after stream start during which no window is
// treated as silent.
func (c Config) Warmup() time.Duration { return time.Duration(c.WarmupMs) * time.Millisecond }

// SilenceHold is the quiet duration after the last accepted fragment that
// finalizes the open utterance.
func (c Config) SilenceHold() time.Duration {
	return time.Duration(c.SilenceHoldMs) * time.Millisecond
}

// CapturePoll is the polling interval of the file-based capture strategy.
func (c Config) CapturePoll() time.Duration {
	return time.Duration(c.CapturePollMs) * time.Millisecond
}
