// Package whisperasr implements [platform.Recognizer] over the
// whisper.cpp CGO bindings. The model file is loaded once per Recognizer
// and shared across runs; libwhisper.a and whisper.h must be available at
// link time (LIBRARY_PATH / C_INCLUDE_PATH).
//
// whisper.cpp is an offline batch transcriber, so the adapter supplies
// the streaming behavior itself: it pulls PCM from a [platform.Capture]
// stream, segments it on sustained silence, and runs inference per
// utterance. Confidence scores are not reported (HasConfidence is false
// on every result); the transcript processor estimates them downstream.
package whisperasr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/ordervox/ordervox/internal/voiceerr"
	"github.com/ordervox/ordervox/pkg/platform"
)

const (
	defaultSampleRate   = 16000
	defaultRMSThreshold = 300.0
	defaultHoldover     = 600 * time.Millisecond
	defaultMaxUtterance = 12 * time.Second
)

// Option configures a Recognizer.
type Option func(*Recognizer)

// WithSampleRate sets the capture sample rate in Hz. Whisper models are
// trained on 16 kHz audio; other rates degrade accuracy.
func WithSampleRate(hz int) Option {
	return func(r *Recognizer) { r.sampleRate = hz }
}

// WithRMSThreshold sets the silence floor on the raw 16-bit PCM scale.
func WithRMSThreshold(v float64) Option {
	return func(r *Recognizer) { r.rmsThreshold = v }
}

// WithHoldover sets the sustained-silence duration that ends an utterance.
func WithHoldover(d time.Duration) Option {
	return func(r *Recognizer) { r.holdover = d }
}

// WithMaxUtterance caps buffered speech before a forced inference pass.
func WithMaxUtterance(d time.Duration) Option {
	return func(r *Recognizer) { r.maxUtterance = d }
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(r *Recognizer) { r.log = log }
}

// Recognizer is a whisper.cpp-backed speech recognizer.
type Recognizer struct {
	model   whisperlib.Model
	capture platform.Capture

	sampleRate   int
	rmsThreshold float64
	holdover     time.Duration
	maxUtterance time.Duration
	log          *slog.Logger

	mu       sync.Mutex
	running  bool
	stream   platform.Stream
	stopCh   chan struct{}
	abortCh  chan struct{}
	onResult func(platform.Result)
	onError  func(code string, err error)
	onEnd    func()
}

var _ platform.Recognizer = (*Recognizer)(nil)

// New loads the model at modelPath and binds the recognizer to a capture
// device. Call Close when done.
func New(modelPath string, capture platform.Capture, opts ...Option) (*Recognizer, error) {
	if modelPath == "" {
		return nil, errors.New("whisperasr: model path must not be empty")
	}
	if capture == nil {
		return nil, errors.New("whisperasr: capture device required")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisperasr: load model %q: %w", modelPath, err)
	}

	r := &Recognizer{
		model:        model,
		capture:      capture,
		sampleRate:   defaultSampleRate,
		rmsThreshold: defaultRMSThreshold,
		holdover:     defaultHoldover,
		maxUtterance: defaultMaxUtterance,
		log:          slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	r.log = r.log.With("component", "whisperasr")
	return r, nil
}

// Close releases the model. No run may be active.
func (r *Recognizer) Close() error {
	if r.model != nil {
		return r.model.Close()
	}
	return nil
}

// OnResult implements platform.Recognizer.
func (r *Recognizer) OnResult(fn func(platform.Result)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onResult = fn
}

// OnError implements platform.Recognizer.
func (r *Recognizer) OnError(fn func(code string, err error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onError = fn
}

// OnEnd implements platform.Recognizer.
func (r *Recognizer) OnEnd(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onEnd = fn
}

// Start opens the capture stream and begins segmenting audio.
func (r *Recognizer) Start(ctx context.Context, cfg platform.RecognizerConfig) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return errors.New("whisperasr: already running")
	}
	r.mu.Unlock()

	stream, err := r.capture.Open(ctx, platform.CaptureConfig{
		SampleRate:       uint32(r.sampleRate),
		Channels:         1,
		EchoCancellation: true,
		NoiseSuppression: true,
		AutoGainControl:  true,
	})
	if err != nil {
		if voiceerr.CodeOf(err) == voiceerr.CodePermissionDenied {
			return err
		}
		return voiceerr.PermissionDenied(err)
	}

	r.mu.Lock()
	r.running = true
	r.stream = stream
	r.stopCh = make(chan struct{})
	r.abortCh = make(chan struct{})
	stopCh, abortCh := r.stopCh, r.abortCh
	r.mu.Unlock()

	go r.run(ctx, cfg, stream, stopCh, abortCh)
	return nil
}

// Stop flushes buffered speech; a final result may still be delivered
// before the end callback fires.
func (r *Recognizer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running && r.stopCh != nil {
		close(r.stopCh)
		r.stopCh = nil
	}
	return nil
}

// Abort discards buffered speech and ends the run immediately.
func (r *Recognizer) Abort() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running && r.abortCh != nil {
		close(r.abortCh)
		r.abortCh = nil
	}
	return nil
}

func (r *Recognizer) run(ctx context.Context, cfg platform.RecognizerConfig, stream platform.Stream, stopCh, abortCh <-chan struct{}) {
	seg := newSegmenter(r.rmsThreshold, r.holdover, r.maxUtterance)
	lang := whisperLanguage(cfg.Language)
	emitted := false

	finish := func(graceful bool) {
		stream.Close()
		r.mu.Lock()
		r.running = false
		r.stream = nil
		r.stopCh = nil
		r.abortCh = nil
		onError := r.onError
		onEnd := r.onEnd
		r.mu.Unlock()

		// A graceful run that never produced speech reports no-speech, the
		// same way browser engines do, so callers can retry or fall back.
		if graceful && !emitted && !cfg.Continuous && onError != nil {
			onError(voiceerr.PlatformNoSpeech, errors.New("no speech detected"))
		}
		if onEnd != nil {
			onEnd()
		}
	}

	for {
		select {
		case <-ctx.Done():
			finish(false)
			return
		case <-abortCh:
			finish(false)
			return
		case <-stopCh:
			if pcm, ok := seg.flush(); ok {
				emitted = r.transcribe(pcm, lang, cfg) || emitted
			}
			finish(true)
			return
		case frame, ok := <-stream.Frames():
			if !ok {
				if pcm, flushed := seg.flush(); flushed {
					emitted = r.transcribe(pcm, lang, cfg) || emitted
				}
				finish(true)
				return
			}
			pcm, complete := seg.feed(frame.Data, frame.SampleRate, frame.Channels)
			if !complete {
				continue
			}
			if r.transcribe(pcm, lang, cfg) {
				emitted = true
				if !cfg.Continuous {
					finish(true)
					return
				}
			}
		}
	}
}

// transcribe runs inference on one utterance and delivers the result.
// It reports whether a non-empty final result was emitted.
func (r *Recognizer) transcribe(pcm []byte, lang string, cfg platform.RecognizerConfig) bool {
	start := time.Now()
	text, err := r.infer(pcm, lang)
	if err != nil {
		r.log.Error("inference failed", "error", err)
		r.mu.Lock()
		onError := r.onError
		r.mu.Unlock()
		if onError != nil {
			onError(voiceerr.PlatformAborted, err)
		}
		return false
	}
	if text == "" {
		return false
	}
	r.log.Debug("utterance transcribed",
		"chars", len(text), "audio", pcmDuration(pcm, r.sampleRate, 1), "took", time.Since(start))

	r.mu.Lock()
	onResult := r.onResult
	r.mu.Unlock()
	if onResult == nil {
		return true
	}

	if cfg.InterimResults {
		onResult(platform.Result{Text: text, Final: false, Timestamp: time.Now()})
	}
	onResult(platform.Result{Text: text, Final: true, Timestamp: time.Now()})
	return true
}

// infer runs whisper.cpp over one utterance. Contexts are not reusable
// across goroutines, so each call creates its own from the shared model.
func (r *Recognizer) infer(pcm []byte, lang string) (string, error) {
	samples := samplesFromPCM(pcm, 1)

	wctx, err := r.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whisperasr: create context: %w", err)
	}
	if err := wctx.SetLanguage(lang); err != nil {
		r.log.Warn("language not accepted, using model default", "language", lang, "error", err)
	}
	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisperasr: process: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whisperasr: read segment: %w", err)
		}
		if t := strings.TrimSpace(segment.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " "), nil
}

// whisperLanguage maps a BCP-47 tag to the ISO 639-1 code whisper
// expects ("de-CH" becomes "de").
func whisperLanguage(tag string) string {
	if tag == "" {
		return "en"
	}
	base, _, _ := strings.Cut(tag, "-")
	return strings.ToLower(base)
}
