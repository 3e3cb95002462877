package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/talkboard/talkboard/internal/appinfo"
	"github.com/talkboard/talkboard/internal/capture"
	"github.com/talkboard/talkboard/internal/config"
	"github.com/talkboard/talkboard/internal/engine"
	"github.com/talkboard/talkboard/internal/feed"
	"github.com/talkboard/talkboard/internal/stream"
	"github.com/talkboard/talkboard/internal/telemetry"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// A local .env is a development convenience; absence is not an error.
	_ = godotenv.Load()

	cfg, err := config.Loader{}.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("starting "+appinfo.Info.BinaryName,
		"listen_addr", cfg.ListenAddr,
		"language", cfg.Language,
		"capture_source", cfg.CaptureSource,
		"model_path", cfg.ModelPath,
	)

	recorder := telemetry.NewRecorder(logger)
	eng := engine.New(cfg, logger)

	src := capture.Resolve(cfg, logger)
	sess := stream.NewSession(cfg, eng, src, recorder, logger)
	if err := sess.Start(ctx); err != nil {
		if errors.Is(err, capture.ErrPermissionDenied) {
			logger.Error("audio capture permission denied", "source", cfg.CaptureSource, "error", err)
		} else {
			logger.Error("failed to start session", "error", err)
		}
		os.Exit(1)
	}

	mux := http.NewServeMux()
	mux.Handle("/ws", feed.NewServer(sess, eng.Name(), cfg.Language, logger))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if !sess.Snapshot().Ready {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutdown requested, stopping feed server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("graceful shutdown timed out, forcing close", "error", err)
			_ = httpServer.Close()
		}
	}()

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("feed server terminated with error", "error", err)
		sess.Stop()
		os.Exit(1)
	}

	sess.Stop()

	if snapshot := recorder.Snapshot(); snapshot.TotalSessions > 0 {
		logger.Info("telemetry totals",
			"total_sessions", snapshot.TotalSessions,
			"total_ticks", snapshot.TotalTicks,
			"total_skipped_ticks", snapshot.TotalSkippedTicks,
			"total_inferences", snapshot.TotalInferences,
			"total_fragments", snapshot.TotalFragments,
			"total_rejected", snapshot.TotalRejected,
			"total_utterances", snapshot.TotalUtterances,
			"total_samples", snapshot.TotalSamples,
		)
	}

	logger.Info(appinfo.Info.BinaryName + " stopped")
}

func newLogger(level string) *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	return slog.New(handler)
}

func parseLevel(value string) slog.Leveler {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug
	case "info", "":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
