package engine

import (
	"log/slog"
	"strings"

	"github.com/talkboard/talkboard/internal/config"
)

// New resolves configuration to an Engine instance. The external backend is
// used when an engine command is configured; otherwise the stub engine keeps
// the pipeline runnable and a warning explains why.
func New(cfg config.Config, logger *slog.Logger) Engine {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.UseStubEngine {
		logger.Warn("stub engine forced by configuration")
		return NewStubEngine(logger)
	}

	if strings.TrimSpace(cfg.EngineCommand) == "" {
		logger.Warn("no engine command configured; using stub engine")
		return NewStubEngine(logger)
	}

	return NewExternalEngine(
		cfg.EngineCommand,
		cfg.EngineArgs,
		cfg.ModelPath,
		cfg.SampleRate,
		cfg.EngineTimeout(),
		logger,
	)
}
