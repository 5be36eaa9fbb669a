// Package platform defines the interfaces over the platform-provided speech
// engines: the recognizer, the synthesizer, and the microphone capture
// device. The pipeline never talks to a concrete engine directly; it is
// wired against these interfaces so that adapters (whisperasr, malgocap) and
// test mocks are interchangeable.
//
// Platform engines are asynchronous: a recognizer delivers results and
// errors through registered callbacks, and a synthesizer call blocks only
// for the duration of its own utterance. None of the engines is guaranteed
// to be present; constructors of adapter packages return a typed
// unsupported error when the capability is missing, and callers must check
// at initialization.
//
// This package lives under pkg/ because external adapter implementations
// are expected to satisfy these interfaces.
package platform

import (
	"context"
	"time"
)

// Alternative is one recognition hypothesis.
type Alternative struct {
	Text       string
	Confidence float64
}

// Result is a single recognition result delivered by a [Recognizer].
// Results are immutable once emitted.
type Result struct {
	// Text is the top hypothesis.
	Text string

	// Confidence is the platform-reported confidence in [0,1]. Valid only
	// when HasConfidence is true; some platforms omit per-result scores.
	Confidence    float64
	HasConfidence bool

	// Alternatives lists further hypotheses ordered by descending
	// confidence. May be empty.
	Alternatives []Alternative

	// Final marks an authoritative result; non-final results are interim
	// guesses that may still change.
	Final bool

	// Timestamp marks when the platform committed this result.
	Timestamp time.Time
}

// RecognizerConfig describes one recognition run.
type RecognizerConfig struct {
	// Language is the BCP-47 tag to recognize (e.g. "de-CH", "de", "en-US").
	Language string

	// Continuous keeps the recognizer running across utterance boundaries.
	Continuous bool

	// InterimResults enables delivery of non-final hypotheses.
	InterimResults bool

	// MaxAlternatives bounds the number of hypotheses per result. Values
	// below 1 are treated as 1.
	MaxAlternatives int
}

// Recognizer is a platform speech recognizer. Implementations deliver
// results asynchronously through the registered callbacks; callbacks run on
// the implementation's internal goroutine and must not block.
//
// Exactly one run may be active at a time per instance. Implementations
// must be safe for concurrent use of Stop/Abort against a running Start.
type Recognizer interface {
	// Start begins a recognition run with the given configuration. It
	// returns once the run is armed; results arrive via OnResult. Starting
	// an already-running recognizer returns an error.
	Start(ctx context.Context, cfg RecognizerConfig) error

	// Stop gracefully ends the run: buffered audio is flushed and a final
	// result may still be delivered before OnEnd fires. No-op when idle.
	Stop() error

	// Abort ends the run immediately, discarding buffered audio. Pending
	// results are dropped. No-op when idle.
	Abort() error

	// OnResult registers the result callback. One callback at a time;
	// subsequent calls replace the previous registration.
	OnResult(fn func(Result))

	// OnError registers the error callback. code is the platform error
	// identifier (see voiceerr platform codes).
	OnError(fn func(code string, err error))

	// OnEnd registers the callback fired when a run terminates for any
	// reason (natural end, Stop, Abort, fatal error).
	OnEnd(fn func())
}

// Voice describes one installed synthesis voice.
type Voice struct {
	// Name is the platform voice identifier (e.g. "de-CH-LeniNeural").
	Name string

	// Language is the BCP-47 tag of the voice.
	Language string

	// Default marks the platform's default voice.
	Default bool
}

// Utterance is one unit of speech to synthesize, with final (post prosody
// mapping) parameters.
type Utterance struct {
	Text     string
	Voice    string
	Language string

	// Volume in [0,1], Rate in [0.1,10], Pitch in [0,2]; 1 means default
	// for rate and pitch.
	Volume float64
	Rate   float64
	Pitch  float64
}

// Synthesizer is a platform speech synthesizer.
//
// Implementations must be safe for concurrent use; the pipeline serializes
// Speak calls itself so at most one utterance plays at a time.
type Synthesizer interface {
	// Voices lists the installed voices. The list may change between calls
	// as the platform loads voices lazily.
	Voices(ctx context.Context) ([]Voice, error)

	// Speak synthesizes and plays u, blocking until playback completes or
	// ctx is cancelled. Cancelling ctx stops the utterance at the platform
	// level. The returned duration is the actual (or best-estimate) playback
	// length.
	Speak(ctx context.Context, u Utterance) (time.Duration, error)
}

// CaptureConfig holds the constraints requested from the microphone.
type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32

	// Standard capture constraints. Adapters enable what the platform
	// supports and ignore the rest.
	EchoCancellation bool
	NoiseSuppression bool
	AutoGainControl  bool
}

// Frame is one chunk of captured PCM audio (S16LE interleaved).
type Frame struct {
	Data       []byte
	SampleRate int
	Channels   int
	Timestamp  time.Duration
}

// Stream is an open microphone stream. Close must be called exactly once.
type Stream interface {
	// Frames returns the channel delivering captured audio. The channel is
	// closed when the stream is closed or the device fails.
	Frames() <-chan Frame

	// Close stops capture, releases the device and closes the Frames
	// channel. Safe to call more than once; subsequent calls return nil.
	Close() error
}

// Capture acquires the microphone.
type Capture interface {
	// Open requests microphone access with the given constraints. It fails
	// with a permission_denied pipeline error when the platform refuses
	// access.
	Open(ctx context.Context, cfg CaptureConfig) (Stream, error)
}
