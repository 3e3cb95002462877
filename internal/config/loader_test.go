package config_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/talkboard/talkboard/internal/config"
)

func TestLoaderDefaults(t *testing.T) {
	loader := config.Loader{
		Lookup: func(string) (string, bool) { return "", false },
	}
	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.ListenAddr != config.DefaultListenAddr {
		t.Fatalf("expected listen addr %q, got %q", config.DefaultListenAddr, cfg.ListenAddr)
	}
	if cfg.Language != config.DefaultLanguage {
		t.Fatalf("expected language %q, got %q", config.DefaultLanguage, cfg.Language)
	}
	if cfg.LogLevel != config.DefaultLogLevel {
		t.Fatalf("expected log level %q, got %q", config.DefaultLogLevel, cfg.LogLevel)
	}
	if cfg.SampleRate != config.DefaultSampleRate {
		t.Fatalf("expected sample rate %d, got %d", config.DefaultSampleRate, cfg.SampleRate)
	}
	if cfg.WindowSeconds != config.DefaultWindowSeconds {
		t.Fatalf("expected window seconds %d, got %d", config.DefaultWindowSeconds, cfg.WindowSeconds)
	}
	if cfg.StepMs != config.DefaultStepMs {
		t.Fatalf("expected step ms %d, got %d", config.DefaultStepMs, cfg.StepMs)
	}
	if cfg.SilenceRMS != config.DefaultSilenceRMS {
		t.Fatalf("expected silence rms %g, got %g", config.DefaultSilenceRMS, cfg.SilenceRMS)
	}
	if cfg.MergePolicy != config.MergeFavorExisting {
		t.Fatalf("expected merge policy %q, got %q", config.MergeFavorExisting, cfg.MergePolicy)
	}
	if cfg.UseStubEngine {
		t.Fatalf("expected stub engine disabled by default")
	}
	if len(cfg.CJKLanguages) == 0 {
		t.Fatalf("expected default CJK language set")
	}
}

func TestLoaderFileAndOverrides(t *testing.T) {
	env := map[string]string{
		"TALKBOARD_CONFIG_FILE":     "/etc/talkboard.yaml",
		"TALKBOARD_LISTEN_ADDR":     "0.0.0.0:9000",
		"TALKBOARD_LANGUAGE":        "en",
		"TALKBOARD_USE_STUB_ENGINE": "true",
		"TALKBOARD_STEP_MS":         "300",
	}
	file := strings.Join([]string{
		"listen_addr: 127.0.0.1:7000",
		"language: pl",
		"log_level: debug",
		"model_path: /models/base.bin",
		"window_seconds: 8",
		"merge_policy: favor-latest",
	}, "\n")

	loader := config.Loader{
		Lookup: func(key string) (string, bool) {
			value, ok := env[key]
			return value, ok
		},
		ReadFile: func(path string) ([]byte, error) {
			if path != "/etc/talkboard.yaml" {
				t.Fatalf("unexpected config file path %q", path)
			}
			return []byte(file), nil
		},
	}

	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	assertEqual(t, "0.0.0.0:9000", cfg.ListenAddr, "listen addr")
	assertEqual(t, "en", cfg.Language, "language")
	assertEqual(t, "debug", cfg.LogLevel, "log level")
	assertEqual(t, "/models/base.bin", cfg.ModelPath, "model path")
	assertEqual(t, config.MergeFavorLatest, cfg.MergePolicy, "merge policy")
	if cfg.WindowSeconds != 8 {
		t.Fatalf("expected window seconds 8, got %d", cfg.WindowSeconds)
	}
	if cfg.StepMs != 300 {
		t.Fatalf("expected step ms 300, got %d", cfg.StepMs)
	}
	if !cfg.UseStubEngine {
		t.Fatalf("expected stub engine enabled")
	}
}

func TestLoaderFileReadError(t *testing.T) {
	wantErr := errors.New("boom")
	loader := config.Loader{
		Lookup: func(key string) (string, bool) {
			if key == "TALKBOARD_CONFIG_FILE" {
				return "missing.yaml", true
			}
			return "", false
		},
		ReadFile: func(string) ([]byte, error) { return nil, wantErr },
	}
	if _, err := loader.Load(); !errors.Is(err, wantErr) {
		t.Fatalf("expected wrapped read error, got %v", err)
	}
}

func TestValidateRejectsBadMergePolicy(t *testing.T) {
	cfg := config.Config{MergePolicy: "newest-wins"}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected merge policy validation error")
	}
}

func TestValidateRejectsWindowLargerThanBuffer(t *testing.T) {
	cfg := config.Config{BufferSeconds: 5, WindowSeconds: 10}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected window/buffer validation error")
	}
}

func TestValidateRejectsOutOfRangeValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"negative sample rate", func(c *config.Config) { c.SampleRate = -16000 }},
		{"negative buffer seconds", func(c *config.Config) { c.BufferSeconds = -1 }},
		{"negative step", func(c *config.Config) { c.StepMs = -250 }},
		{"negative min audio", func(c *config.Config) { c.MinAudioMs = -500 }},
		{"negative engine min audio", func(c *config.Config) { c.EngineMinAudioMs = -1 }},
		{"negative engine timeout", func(c *config.Config) { c.EngineTimeoutMs = -1 }},
		{"negative silence rms", func(c *config.Config) { c.SilenceRMS = -0.5 }},
		{"negative silence window", func(c *config.Config) { c.SilenceWindowMs = -1 }},
		{"negative silence debounce", func(c *config.Config) { c.SilenceDebounce = -3 }},
		{"negative warmup", func(c *config.Config) { c.WarmupMs = -3000 }},
		{"negative silence hold", func(c *config.Config) { c.SilenceHoldMs = -1200 }},
		{"negative capture sample rate", func(c *config.Config) { c.CaptureSampleRate = -48000 }},
		{"negative capture channels", func(c *config.Config) { c.CaptureChannels = -2 }},
		{"negative capture poll", func(c *config.Config) { c.CapturePollMs = -200 }},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			var cfg config.Config
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func assertEqual(t *testing.T, want, got, label string) {
	t.Helper()
	if want != got {
		t.Fatalf("unexpected %s: want %q, got %q", label, want, got)
	}
}
