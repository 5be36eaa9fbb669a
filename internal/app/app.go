// Package app wires the voice pipeline subsystems into a running kiosk
// service.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves the HTTP surface until the context is cancelled,
// and Shutdown tears everything down in order.
//
// Platform adapters (recognizer, synthesizer, capture, resolver) are
// injected through the Engines struct; main.go builds the real ones, tests
// pass mocks.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/ordervox/ordervox/internal/audioinput"
	"github.com/ordervox/ordervox/internal/config"
	"github.com/ordervox/ordervox/internal/dialect"
	"github.com/ordervox/ordervox/internal/events"
	"github.com/ordervox/ordervox/internal/health"
	"github.com/ordervox/ordervox/internal/intent"
	"github.com/ordervox/ordervox/internal/observe"
	"github.com/ordervox/ordervox/internal/recognition"
	"github.com/ordervox/ordervox/internal/resilience"
	"github.com/ordervox/ordervox/internal/session"
	"github.com/ordervox/ordervox/internal/synthesis"
	"github.com/ordervox/ordervox/internal/transcript"
	"github.com/ordervox/ordervox/pkg/platform"
)

// Engines holds the platform adapters the pipeline runs against. All fields
// are required. FallbackRecognizer may be a second instance of the same
// implementation when the platform has no cheaper fallback mode.
type Engines struct {
	Recognizer         platform.Recognizer
	FallbackRecognizer platform.Recognizer
	Synthesizer        platform.Synthesizer
	Capture            platform.Capture
	Resolver           intent.Resolver
}

func (e *Engines) validate() error {
	switch {
	case e.Recognizer == nil:
		return errors.New("app: Engines.Recognizer is required")
	case e.FallbackRecognizer == nil:
		return errors.New("app: Engines.FallbackRecognizer is required")
	case e.Synthesizer == nil:
		return errors.New("app: Engines.Synthesizer is required")
	case e.Capture == nil:
		return errors.New("app: Engines.Capture is required")
	case e.Resolver == nil:
		return errors.New("app: Engines.Resolver is required")
	}
	return nil
}

// App owns all subsystem lifetimes.
type App struct {
	cfg     *config.Config
	log     *slog.Logger
	bus     *events.Bus
	metrics *observe.Metrics

	recognition  *recognition.Engine
	speech       *synthesis.Engine
	audio        *audioinput.Manager
	breaker      *resilience.Breaker
	orchestrator *session.Orchestrator
	nav          *uiNavigator
	cart         *cartManager
	stats        *pipelineStats
	bridge       *events.Bridge

	server          *http.Server
	metricsShutdown func(context.Context) error

	mu     sync.Mutex
	runCtx context.Context

	stopOnce sync.Once
}

// New wires all subsystems together. It does not start anything; call Run.
func New(ctx context.Context, cfg *config.Config, engines Engines, log *slog.Logger) (*App, error) {
	if err := engines.validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}

	metricsShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "ordervox"})
	if err != nil {
		return nil, fmt.Errorf("app: init telemetry: %w", err)
	}
	metrics, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		metricsShutdown(ctx)
		return nil, fmt.Errorf("app: init metrics: %w", err)
	}

	a := &App{
		cfg:             cfg,
		log:             log,
		bus:             events.NewBus(),
		metrics:         metrics,
		metricsShutdown: metricsShutdown,
	}

	language := cfg.Recognition.DefaultLanguage

	a.recognition = recognition.New(
		engines.Recognizer,
		engines.FallbackRecognizer,
		recognition.Config{
			Language:        language,
			FallbackChain:   fallbackChain(cfg, language),
			MaxAlternatives: cfg.Recognition.MaxAlternatives,
			RetryBudget:     cfg.Recognition.RetryBudget,
			SessionTimeout:  cfg.Recognition.SessionTimeout.Std(),
			NoSpeechTimeout: cfg.Recognition.NoSpeechTimeout.Std(),
		},
		a.bus, metrics, log,
	)

	selector := synthesis.NewVoiceSelector(engines.Synthesizer, voicePrefs(cfg))
	a.speech = synthesis.NewEngine(
		engines.Synthesizer,
		selector,
		cfg.Synthesis.CacheCapacity,
		synthesis.EngineConfig{
			QueueCapacity:      cfg.Synthesis.QueueCapacity,
			MaxUtteranceLength: cfg.Synthesis.MaxUtteranceLength,
			ChunkPause:         cfg.Synthesis.ChunkPause.Std(),
			DefaultLanguage:    language,
			Prosody:            prosodyTable(cfg),
		},
		a.bus, metrics, log,
	)

	norm := dialect.NewNormalizer(dialect.SwissGerman())
	processor := transcript.NewProcessor(norm, a.bus,
		transcript.WithThreshold(cfg.Recognition.ConfidenceThreshold),
		transcript.WithSpeaker(a.speech),
		transcript.WithLogger(log),
	)

	gate := 0.0
	if cfg.Audio.NoiseGate {
		gate = cfg.Audio.NoiseGateThreshold
	}
	a.audio = audioinput.NewManager(engines.Capture, audioinput.Config{
		SampleRate:       uint32(cfg.Audio.SampleRate),
		Channels:         uint32(cfg.Audio.Channels),
		Gain:             cfg.Audio.Gain,
		NoiseGate:        gate,
		EchoCancellation: true,
		NoiseSuppression: true,
		AutoGainControl:  true,
	}, a.bus, log)

	a.breaker = resilience.NewBreaker(resilience.BreakerConfig{
		Name:         "resolver",
		MaxFailures:  cfg.Resolver.MaxFailures,
		ResetTimeout: cfg.Resolver.ResetTimeout.Std(),
	}, log)

	a.nav = newUINavigator(a.bus)
	a.cart = newCartManager(a.bus, a.nav)
	a.stats = newPipelineStats(a.bus)

	a.orchestrator = session.NewOrchestrator(
		session.Config{
			Language:        language,
			ResolverTimeout: cfg.Resolver.Timeout.Std(),
		},
		a.recognition, a.speech, processor, a.audio,
		engines.Resolver, a.breaker,
		a.bus, metrics, log,
	)
	a.orchestrator.SetHandlers(a.nav, a.cart)

	a.bridge = events.NewBridge(a.bus)

	a.server = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           a.routes(engines),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return a, nil
}

// routes builds the HTTP surface: telemetry, health, the websocket event
// bridge, and the session/cart API the kiosk frontend drives.
func (a *App) routes(engines Engines) *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("GET /metrics", promhttp.Handler())

	health.New(
		health.Checker{
			Name: "synthesizer",
			Check: func(ctx context.Context) error {
				_, err := engines.Synthesizer.Voices(ctx)
				return err
			},
		},
		health.Checker{
			Name: "recognizer",
			Check: func(context.Context) error {
				if a.recognition.State() == recognition.StateUnavailable {
					return errors.New("recognition unavailable")
				}
				return nil
			},
		},
		// The resolver is optional for readiness: with the circuit open the
		// kiosk still takes direct voice commands.
		health.Checker{
			Name:     "resolver",
			Optional: true,
			Check: func(context.Context) error {
				if a.breaker.State() == resilience.StateOpen {
					return errors.New("resolver circuit open")
				}
				return nil
			},
		},
	).Register(mux)

	mux.Handle("GET /events", a.bridge)

	mux.HandleFunc("POST /api/session/start", a.handleSessionStart)
	mux.HandleFunc("POST /api/session/end", a.handleSessionEnd)
	mux.HandleFunc("GET /api/session", a.handleSessionStatus)
	mux.HandleFunc("GET /api/cart", a.handleCart)

	return mux
}

// Run starts the synthesis engine and the HTTP server and blocks until ctx
// is cancelled or the server fails.
func (a *App) Run(ctx context.Context) error {
	a.mu.Lock()
	a.runCtx = ctx
	a.mu.Unlock()

	if err := a.speech.Start(ctx); err != nil {
		return fmt.Errorf("app: start synthesis: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.log.Info("server listening", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("app: http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Shutdown tears down all subsystems. Safe to call more than once.
func (a *App) Shutdown(ctx context.Context) error {
	var err error
	a.stopOnce.Do(func() {
		a.log.Info("shutting down")
		a.orchestrator.EndSession()
		a.stats.Close()
		a.bridge.Close()
		if serr := a.server.Shutdown(ctx); serr != nil && !errors.Is(serr, http.ErrServerClosed) {
			err = serr
		}
		if merr := a.metricsShutdown(ctx); merr != nil && err == nil {
			err = merr
		}
	})
	return err
}

// sessionContext returns the context sessions run under. Before Run it
// falls back to the background context so tests can start sessions without
// running the server.
func (a *App) sessionContext() context.Context {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runCtx != nil {
		return a.runCtx
	}
	return context.Background()
}

// fallbackChain looks up the recognition fallback chain configured for the
// given language.
func fallbackChain(cfg *config.Config, language string) []string {
	if lc := cfg.Language(language); lc != nil {
		return lc.Fallbacks
	}
	return nil
}

// voicePrefs builds the per-language synthesis voice preferences.
func voicePrefs(cfg *config.Config) map[string]synthesis.VoicePrefs {
	prefs := make(map[string]synthesis.VoicePrefs, len(cfg.Languages))
	for _, lc := range cfg.Languages {
		prefs[lc.Code] = synthesis.VoicePrefs{
			Primary:  lc.PrimaryVoices,
			Fallback: lc.FallbackVoices,
		}
	}
	return prefs
}

// prosodyTable builds the per-language base prosody parameters.
func prosodyTable(cfg *config.Config) map[string]synthesis.Prosody {
	table := make(map[string]synthesis.Prosody, len(cfg.Languages))
	for _, lc := range cfg.Languages {
		table[lc.Code] = synthesis.Prosody{
			Pitch:  lc.Prosody.Pitch,
			Rate:   lc.Prosody.Rate,
			Volume: lc.Prosody.Volume,
		}
	}
	return table
}
