package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Loader loads configuration from an optional YAML file plus environment
// variables; environment values win. Tests can override Lookup and ReadFile
// to inject deterministic inputs.
type Loader struct {
	Lookup   func(string) (string, bool)
	ReadFile func(string) ([]byte, error)
}

// Load retrieves the pipeline configuration and validates it. The file named
// by TALKBOARD_CONFIG_FILE is decoded first when present; individual
// TALKBOARD_* variables then override single fields.
func (l Loader) Load() (Config, error) {
	if l.Lookup == nil {
		l.Lookup = os.LookupEnv
	}
	if l.ReadFile == nil {
		l.ReadFile = os.ReadFile
	}

	var cfg Config

	if path, ok := l.Lookup("TALKBOARD_CONFIG_FILE"); ok && strings.TrimSpace(path) != "" {
		raw, err := l.ReadFile(strings.TrimSpace(path))
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	overrideString(l.Lookup, "TALKBOARD_LISTEN_ADDR", &cfg.ListenAddr)
	overrideString(l.Lookup, "TALKBOARD_LOG_LEVEL", &cfg.LogLevel)
	overrideString(l.Lookup, "TALKBOARD_LANGUAGE", &cfg.Language)
	overrideString(l.Lookup, "TALKBOARD_MODEL_PATH", &cfg.ModelPath)
	overrideString(l.Lookup, "TALKBOARD_ENGINE_COMMAND", &cfg.EngineCommand)
	overrideString(l.Lookup, "TALKBOARD_CAPTURE_SOURCE", &cfg.CaptureSource)
	overrideString(l.Lookup, "TALKBOARD_MERGE_POLICY", &cfg.MergePolicy)
	overrideBool(l.Lookup, "TALKBOARD_USE_STUB_ENGINE", &cfg.UseStubEngine)
	overrideInt(l.Lookup, "TALKBOARD_STEP_MS", &cfg.StepMs)
	overrideInt(l.Lookup, "TALKBOARD_CAPTURE_SAMPLE_RATE", &cfg.CaptureSampleRate)
	overrideInt(l.Lookup, "TALKBOARD_CAPTURE_CHANNELS", &cfg.CaptureChannels)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func overrideString(lookup func(string) (string, bool), key string, target *string) {
	if lookup == nil || target == nil {
		return
	}
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		*target = strings.TrimSpace(value)
	}
}

func overrideBool(lookup func(string) (string, bool), key string, target *bool) {
	if lookup == nil || target == nil {
		return
	}
	if value, ok := lookup(key); ok {
		if parsed, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			*target = parsed
		}
	}
}

func overrideInt(lookup func(string) (string, bool), key string, target *int) {
	if lookup == nil || target == nil {
		return
	}
	if value, ok := lookup(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			*target = parsed
		}
	}
}
