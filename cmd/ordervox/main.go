// Command ordervox is the voice interaction server for the ordering kiosk.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ordervox/ordervox/internal/app"
	"github.com/ordervox/ordervox/internal/config"
	"github.com/ordervox/ordervox/internal/intent"
	intentmock "github.com/ordervox/ordervox/internal/intent/mock"
	"github.com/ordervox/ordervox/pkg/platform/coquitts"
	"github.com/ordervox/ordervox/pkg/platform/malgocap"
	"github.com/ordervox/ordervox/pkg/platform/whisperasr"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "ordervox: config file %q not found, copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "ordervox: %v\n", err)
		}
		return 1
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("ordervox starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"language", cfg.Recognition.DefaultLanguage,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engines, closeEngines, err := buildEngines(cfg, logger)
	if err != nil {
		slog.Error("failed to build platform engines", "err", err)
		return 1
	}
	defer closeEngines()

	application, err := app.New(ctx, cfg, engines, logger)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	slog.Info("server ready, press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// buildEngines constructs the real platform adapters: miniaudio capture and
// playback, two whisper.cpp recognizer instances (the fallback runs with the
// standard-language chain), a Coqui TTS synthesizer and the configured
// intent resolver.
func buildEngines(cfg *config.Config, log *slog.Logger) (app.Engines, func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	capture, err := malgocap.New(log)
	if err != nil {
		return app.Engines{}, nil, fmt.Errorf("audio context: %w", err)
	}
	closers = append(closers, func() { capture.Close() })

	if cfg.Recognition.ModelPath == "" {
		closeAll()
		return app.Engines{}, nil, errors.New("recognition.model_path is required")
	}
	primary, err := whisperasr.New(cfg.Recognition.ModelPath, capture,
		whisperasr.WithSampleRate(cfg.Audio.SampleRate),
		whisperasr.WithLogger(log),
	)
	if err != nil {
		closeAll()
		return app.Engines{}, nil, fmt.Errorf("whisper model: %w", err)
	}
	closers = append(closers, func() { primary.Close() })

	fallback, err := whisperasr.New(cfg.Recognition.ModelPath, capture,
		whisperasr.WithSampleRate(cfg.Audio.SampleRate),
		whisperasr.WithLogger(log),
	)
	if err != nil {
		closeAll()
		return app.Engines{}, nil, fmt.Errorf("whisper fallback model: %w", err)
	}
	closers = append(closers, func() { fallback.Close() })

	if cfg.Synthesis.ServerURL == "" {
		closeAll()
		return app.Engines{}, nil, errors.New("synthesis.server_url is required")
	}
	synth, err := coquitts.New(cfg.Synthesis.ServerURL, malgocap.NewPlayer(capture),
		coquitts.WithLogger(log),
	)
	if err != nil {
		closeAll()
		return app.Engines{}, nil, fmt.Errorf("coqui synthesizer: %w", err)
	}

	resolver, err := buildResolver(cfg.Resolver)
	if err != nil {
		closeAll()
		return app.Engines{}, nil, err
	}

	return app.Engines{
		Recognizer:         primary,
		FallbackRecognizer: fallback,
		Synthesizer:        synth,
		Capture:            capture,
		Resolver:           resolver,
	}, closeAll, nil
}

func buildResolver(cfg config.ResolverConfig) (intent.Resolver, error) {
	switch cfg.Name {
	case "openai":
		var opts []intent.OpenAIOption
		if cfg.BaseURL != "" {
			opts = append(opts, intent.WithBaseURL(cfg.BaseURL))
		}
		if cfg.Timeout > 0 {
			opts = append(opts, intent.WithTimeout(cfg.Timeout.Std()))
		}
		return intent.NewOpenAIResolver(cfg.APIKey, cfg.Model, opts...)
	case "mock":
		return &intentmock.Resolver{}, nil
	default:
		return nil, fmt.Errorf("unknown resolver %q", cfg.Name)
	}
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
