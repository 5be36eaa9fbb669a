// Package recognition drives speech recognition runs against the
// platform's recognizer primitives. It owns the lifecycle state machine,
// the retry budget with fallback-engine switching, the language fallback
// chain and the session / no-speech timeouts.
package recognition

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ordervox/ordervox/internal/events"
	"github.com/ordervox/ordervox/internal/observe"
	"github.com/ordervox/ordervox/internal/voiceerr"
	"github.com/ordervox/ordervox/pkg/platform"
	"github.com/ordervox/ordervox/pkg/types"
)

// Config holds the tunables for a recognition engine.
type Config struct {
	// Language is the primary recognition language, e.g. "de-CH".
	Language string

	// FallbackChain lists languages to try, in order, once the engine
	// switches to the fallback recognizer. Later retries clamp to the
	// last entry. Empty means the fallback keeps the primary language.
	FallbackChain []string

	// MaxAlternatives is passed to the primary recognizer.
	MaxAlternatives int

	// RetryBudget is the number of automatic restarts after a
	// retryable platform error before the error is surfaced.
	RetryBudget int

	// SessionTimeout bounds the total run duration.
	SessionTimeout time.Duration

	// NoSpeechTimeout bounds the wait for the first result.
	NoSpeechTimeout time.Duration
}

// FinalFunc receives each final transcript.
type FinalFunc func(types.TranscriptResult)

// FailureFunc receives errors that exhausted the retry budget.
type FailureFunc func(*voiceerr.Error)

// Engine runs recognition sessions over a primary and a fallback
// platform recognizer. All exported methods are safe for concurrent use.
type Engine struct {
	cfg     Config
	bus     *events.Bus
	metrics *observe.Metrics
	log     *slog.Logger

	primary  platform.Recognizer
	fallback platform.Recognizer

	onFinal   FinalFunc
	onFailure FailureFunc

	mu            sync.Mutex
	state         State
	gen           uint64 // incremented on stop/restart; stale callbacks check it
	ctx           context.Context
	active        platform.Recognizer
	usingFallback bool
	chainIdx      int
	retriesLeft   int
	sessionID     string
	language      string
	startedAt     time.Time
	sawResult     bool
	sessionTimer  *time.Timer
	noSpeechTimer *time.Timer
}

// New builds an engine. A nil primary recognizer puts the engine into
// the unavailable state; a nil fallback disables engine switching and
// retries restart the primary instead.
func New(primary, fallback platform.Recognizer, cfg Config, bus *events.Bus, metrics *observe.Metrics, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	e := &Engine{
		cfg:      cfg,
		bus:      bus,
		metrics:  metrics,
		log:      log.With("component", "recognition"),
		primary:  primary,
		fallback: fallback,
		state:    StateIdle,
		language: cfg.Language,
	}
	if primary == nil {
		e.state = StateUnavailable
		e.log.Warn("speech recognition unavailable on this platform")
		return e
	}
	bus.Publish(events.Initialized, events.LanguagePayload{Language: cfg.Language})
	return e
}

// OnFinal registers the final-transcript callback. Must be called
// before Start.
func (e *Engine) OnFinal(fn FinalFunc) { e.onFinal = fn }

// OnFailure registers the surfaced-error callback. Must be called
// before Start.
func (e *Engine) OnFailure(fn FailureFunc) { e.onFailure = fn }

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// SessionID returns the identifier of the current or most recent run.
func (e *Engine) SessionID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sessionID
}

// Language returns the language the active recognizer is configured for.
func (e *Engine) Language() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.language
}

// UsingFallback reports whether the fallback recognizer is active.
func (e *Engine) UsingFallback() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.usingFallback
}

// Start begins a new recognition run. It fails when the engine is
// unavailable or a run is already active.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case StateUnavailable:
		return voiceerr.Unsupported("speech recognition")
	case StateListening, StateProcessing:
		return voiceerr.Recognition(voiceerr.PlatformAborted, nil)
	}

	e.gen++
	e.ctx = ctx
	e.sessionID = uuid.NewString()
	e.retriesLeft = e.cfg.RetryBudget
	e.chainIdx = -1
	e.usingFallback = false
	e.language = e.cfg.Language
	e.sawResult = false
	e.active = e.primary

	gen := e.gen
	e.wireLocked(e.primary, gen)
	if err := e.primary.Start(ctx, platform.RecognizerConfig{
		Language:        e.cfg.Language,
		Continuous:      true,
		InterimResults:  true,
		MaxAlternatives: e.cfg.MaxAlternatives,
	}); err != nil {
		e.state = StateError
		verr := voiceerr.Recognition(voiceerr.PlatformAborted, err)
		e.metrics.RecordError(context.Background(), string(verr.Code))
		return verr
	}

	e.state = StateListening
	e.startedAt = time.Now()
	e.armTimersLocked(gen)
	e.metrics.SessionsStarted.Add(context.Background(), 1)
	e.metrics.ActiveSessions.Add(context.Background(), 1)
	e.log.Info("recognition started", "session", e.sessionID, "language", e.language)
	e.bus.Publish(events.ListeningStarted, events.ResultPayload{SessionID: e.sessionID})
	return nil
}

// Stop cancels any active run and returns the engine to idle. It is
// the universal recovery path and succeeds from every state except
// unavailable, where it is a no-op.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateUnavailable {
		return nil
	}
	wasActive := e.state == StateListening || e.state == StateProcessing
	e.finishRunLocked()
	if wasActive {
		e.log.Info("recognition stopped", "session", e.sessionID)
	}
	return nil
}

// finishRunLocked tears down timers and the active recognizer and
// returns the engine to idle. Caller holds e.mu.
func (e *Engine) finishRunLocked() {
	e.gen++
	e.cancelTimersLocked()
	if e.active != nil && (e.state == StateListening || e.state == StateProcessing) {
		e.active.Abort()
		e.metrics.ActiveSessions.Add(context.Background(), -1)
	}
	e.state = StateIdle
	e.bus.Publish(events.ListeningStopped, events.ResultPayload{SessionID: e.sessionID})
}

func (e *Engine) wireLocked(rec platform.Recognizer, gen uint64) {
	rec.OnResult(func(res platform.Result) { e.handleResult(gen, res) })
	rec.OnError(func(code string, err error) { e.handleError(gen, code, err) })
	rec.OnEnd(func() { e.handleEnd(gen) })
}

func (e *Engine) armTimersLocked(gen uint64) {
	e.cancelTimersLocked()
	if e.cfg.SessionTimeout > 0 {
		e.sessionTimer = time.AfterFunc(e.cfg.SessionTimeout, func() { e.handleTimeout(gen, "session") })
	}
	if e.cfg.NoSpeechTimeout > 0 {
		e.noSpeechTimer = time.AfterFunc(e.cfg.NoSpeechTimeout, func() { e.handleTimeout(gen, "no_speech") })
	}
}

func (e *Engine) cancelTimersLocked() {
	if e.sessionTimer != nil {
		e.sessionTimer.Stop()
		e.sessionTimer = nil
	}
	if e.noSpeechTimer != nil {
		e.noSpeechTimer.Stop()
		e.noSpeechTimer = nil
	}
}

func (e *Engine) handleResult(gen uint64, res platform.Result) {
	e.mu.Lock()
	if gen != e.gen || e.state != StateListening {
		e.mu.Unlock()
		return
	}
	if !e.sawResult {
		e.sawResult = true
		if e.noSpeechTimer != nil {
			e.noSpeechTimer.Stop()
			e.noSpeechTimer = nil
		}
	}

	tr := types.TranscriptResult{
		SessionID:     e.sessionID,
		Language:      e.language,
		Text:          res.Text,
		Confidence:    res.Confidence,
		HasConfidence: res.HasConfidence,
		Final:         res.Final,
		Timestamp:     res.Timestamp,
	}
	for _, alt := range res.Alternatives {
		tr.Alternatives = append(tr.Alternatives, types.Alternative{Text: alt.Text, Confidence: alt.Confidence})
	}
	if tr.Timestamp.IsZero() {
		tr.Timestamp = time.Now()
	}

	e.bus.Publish(events.Result, events.ResultPayload{
		SessionID:  tr.SessionID,
		Text:       tr.Text,
		Confidence: tr.Confidence,
		Final:      tr.Final,
	})

	if !res.Final {
		e.mu.Unlock()
		return
	}

	e.state = StateProcessing
	e.cancelTimersLocked()
	e.metrics.RecordRecognition(context.Background(), tr.Language, time.Since(e.startedAt))
	onFinal := e.onFinal
	e.mu.Unlock()

	if onFinal != nil {
		onFinal(tr)
	}

	e.mu.Lock()
	if gen == e.gen && e.state == StateProcessing {
		e.finishRunLocked()
	}
	e.mu.Unlock()
}

func (e *Engine) handleError(gen uint64, code string, cause error) {
	e.mu.Lock()
	if gen != e.gen || e.state != StateListening {
		e.mu.Unlock()
		return
	}

	verr := classifyPlatform(code, cause)
	if verr.Retryable && e.retriesLeft > 0 {
		e.retriesLeft--
		e.log.Warn("recognition error, retrying",
			"session", e.sessionID, "platform_code", code, "retries_left", e.retriesLeft)
		if err := e.switchAndRestartLocked(); err == nil {
			e.mu.Unlock()
			return
		}
		// Restart itself failed; fall through and surface.
		verr = classifyPlatform(code, cause)
	}

	e.state = StateError
	e.cancelTimersLocked()
	e.metrics.ActiveSessions.Add(context.Background(), -1)
	e.metrics.RecordError(context.Background(), string(verr.Code))
	e.log.Error("recognition failed", "session", e.sessionID, "platform_code", code, "error", verr)
	e.bus.Publish(events.Error, events.ErrorPayload{
		Code:      string(verr.Code),
		Message:   verr.Message(e.language),
		Retryable: verr.Retryable,
	})
	onFailure := e.onFailure
	e.mu.Unlock()

	if onFailure != nil {
		onFailure(verr)
	}
}

// switchAndRestartLocked moves the run to the fallback recognizer (on
// the first retry) and advances the language fallback chain, then
// restarts recognition. Caller holds e.mu.
func (e *Engine) switchAndRestartLocked() error {
	prevLang := e.language
	next := e.active
	if e.fallback != nil && !e.usingFallback {
		e.usingFallback = true
		next = e.fallback
		e.metrics.FallbackSwitches.Add(context.Background(), 1)
	}
	if len(e.cfg.FallbackChain) > 0 && e.usingFallback {
		if e.chainIdx < len(e.cfg.FallbackChain)-1 {
			e.chainIdx++
		}
		e.language = e.cfg.FallbackChain[e.chainIdx]
	}

	e.gen++
	gen := e.gen
	e.active = next
	e.wireLocked(next, gen)
	if err := next.Start(e.ctx, platform.RecognizerConfig{
		Language:        e.language,
		Continuous:      !e.usingFallback,
		InterimResults:  !e.usingFallback,
		MaxAlternatives: e.maxAlternativesLocked(),
	}); err != nil {
		return err
	}
	e.armTimersLocked(gen)
	if e.language != prevLang {
		e.log.Info("language fallback", "from", prevLang, "to", e.language)
		e.bus.Publish(events.LanguageChanged, events.LanguagePayload{Language: e.language})
	}
	return nil
}

func (e *Engine) maxAlternativesLocked() int {
	if e.usingFallback {
		return 1
	}
	return e.cfg.MaxAlternatives
}

// classifyPlatform maps a platform recognizer error code to the pipeline
// taxonomy. The not-allowed family means microphone permission was revoked
// mid-run and is reported as permission_denied.
func classifyPlatform(code string, cause error) *voiceerr.Error {
	switch code {
	case voiceerr.PlatformNotAllowed, voiceerr.PlatformServiceNotAllowed:
		verr := voiceerr.PermissionDenied(cause)
		verr.PlatformCode = code
		return verr
	default:
		return voiceerr.Recognition(code, cause)
	}
}

// handleEnd fires when the platform recognizer finishes on its own,
// e.g. a non-continuous fallback run completing without a result.
func (e *Engine) handleEnd(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.gen || e.state != StateListening {
		return
	}
	e.finishRunLocked()
}

func (e *Engine) handleTimeout(gen uint64, kind string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.gen || e.state != StateListening {
		return
	}
	if kind == "no_speech" && e.sawResult {
		return
	}
	sessionID := e.sessionID
	e.log.Info("recognition timeout", "session", sessionID, "kind", kind)
	e.finishRunLocked()
	e.bus.Publish(events.Timeout, events.TimeoutPayload{SessionID: sessionID, Kind: kind})
}
