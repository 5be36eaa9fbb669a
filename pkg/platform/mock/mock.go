// Package mock provides test doubles for the platform engine interfaces.
//
// Use Recognizer to script result and error delivery from tests, Synthesizer
// to verify utterance parameters and control playback duration, and Capture
// to feed synthetic PCM frames to the audio input manager.
//
// Example:
//
//	rec := mock.NewRecognizer()
//	engine.Attach(rec)
//	rec.EmitResult(platform.Result{Text: "show menu", Final: true})
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/ordervox/ordervox/pkg/platform"
)

// StartCall records a single invocation of Recognizer.Start.
type StartCall struct {
	// Cfg is the RecognizerConfig passed to Start.
	Cfg platform.RecognizerConfig
}

// Recognizer is a mock implementation of platform.Recognizer. Tests drive it
// by calling EmitResult, EmitError and EmitEnd; the registered callbacks are
// invoked synchronously on the caller's goroutine.
type Recognizer struct {
	mu sync.Mutex

	// StartErr, if non-nil, is returned from Start.
	StartErr error

	// StartCalls records every call to Start.
	StartCalls []StartCall

	// StopCalls and AbortCalls count the respective invocations.
	StopCalls  int
	AbortCalls int

	running  bool
	onResult func(platform.Result)
	onError  func(code string, err error)
	onEnd    func()
}

// NewRecognizer returns a ready-to-use mock recognizer.
func NewRecognizer() *Recognizer { return &Recognizer{} }

// Ensure Recognizer implements platform.Recognizer at compile time.
var _ platform.Recognizer = (*Recognizer)(nil)

// Start records the call and marks the recognizer running.
func (r *Recognizer) Start(_ context.Context, cfg platform.RecognizerConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.StartCalls = append(r.StartCalls, StartCall{Cfg: cfg})
	if r.StartErr != nil {
		return r.StartErr
	}
	r.running = true
	return nil
}

// Stop records the call and fires the end callback if running.
func (r *Recognizer) Stop() error {
	r.mu.Lock()
	r.StopCalls++
	wasRunning := r.running
	r.running = false
	end := r.onEnd
	r.mu.Unlock()

	if wasRunning && end != nil {
		end()
	}
	return nil
}

// Abort records the call and fires the end callback if running.
func (r *Recognizer) Abort() error {
	r.mu.Lock()
	r.AbortCalls++
	wasRunning := r.running
	r.running = false
	end := r.onEnd
	r.mu.Unlock()

	if wasRunning && end != nil {
		end()
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

// Running reports whether the mock considers itself started.
func (r *Recognizer) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// EmitResult delivers a result to the registered callback.
func (r *Recognizer) EmitResult(res platform.Result) {
	r.mu.Lock()
	fn := r.onResult
	r.mu.Unlock()
	if fn != nil {
		fn(res)
	}
}

// EmitError delivers a platform error to the registered callback and marks
// the run ended.
func (r *Recognizer) EmitError(code string, err error) {
	r.mu.Lock()
	r.running = false
	fn := r.onError
	r.mu.Unlock()
	if fn != nil {
		fn(code, err)
	}
}

// EmitEnd fires the end callback.
func (r *Recognizer) EmitEnd() {
	r.mu.Lock()
	r.running = false
	fn := r.onEnd
	r.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// SpeakCall records a single invocation of Synthesizer.Speak.
type SpeakCall struct {
	// Utterance is the value passed to Speak.
	Utterance platform.Utterance
}

// Synthesizer is a mock implementation of platform.Synthesizer.
type Synthesizer struct {
	mu sync.Mutex

	// VoiceList is returned from Voices.
	VoiceList []platform.Voice

	// VoicesErr, if non-nil, is returned from Voices.
	VoicesErr error

	// SpeakDuration is the duration returned from Speak. Zero means 10ms.
	SpeakDuration time.Duration

	// SpeakErr, if non-nil, is returned from every Speak call.
	SpeakErr error

	// Block makes Speak wait for ctx cancellation before returning,
	// simulating a long utterance.
	Block bool

	// SpeakCalls records every call to Speak.
	SpeakCalls []SpeakCall
}

// Ensure Synthesizer implements platform.Synthesizer at compile time.
var _ platform.Synthesizer = (*Synthesizer)(nil)

// Voices implements platform.Synthesizer.
func (s *Synthesizer) Voices(_ context.Context) ([]platform.Voice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.VoicesErr != nil {
		return nil, s.VoicesErr
	}
	out := make([]platform.Voice, len(s.VoiceList))
	copy(out, s.VoiceList)
	return out, nil
}

// Speak records the call and returns the configured duration or error.
func (s *Synthesizer) Speak(ctx context.Context, u platform.Utterance) (time.Duration, error) {
	s.mu.Lock()
	s.SpeakCalls = append(s.SpeakCalls, SpeakCall{Utterance: u})
	err := s.SpeakErr
	d := s.SpeakDuration
	block := s.Block
	s.mu.Unlock()

	if err != nil {
		return 0, err
	}
	if block {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	if d == 0 {
		d = 10 * time.Millisecond
	}
	return d, nil
}

// Calls returns a snapshot of recorded Speak calls.
func (s *Synthesizer) Calls() []SpeakCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SpeakCall, len(s.SpeakCalls))
	copy(out, s.SpeakCalls)
	return out
}

// Capture is a mock implementation of platform.Capture.
type Capture struct {
	mu sync.Mutex

	// OpenErr, if non-nil, is returned from Open (e.g. a permission error).
	OpenErr error

	// OpenCalls records the configs passed to Open.
	OpenCalls []platform.CaptureConfig

	// LastStream is the stream returned by the most recent Open.
	LastStream *CaptureStream
}

// Ensure Capture implements platform.Capture at compile time.
var _ platform.Capture = (*Capture)(nil)

// Open records the call and returns a fresh CaptureStream.
func (c *Capture) Open(_ context.Context, cfg platform.CaptureConfig) (platform.Stream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.OpenCalls = append(c.OpenCalls, cfg)
	if c.OpenErr != nil {
		return nil, c.OpenErr
	}
	s := &CaptureStream{frames: make(chan platform.Frame, 64)}
	c.LastStream = s
	return s, nil
}

// CaptureStream is the mock platform.Stream handed out by Capture. Tests
// push frames with Feed and assert release with Closed.
type CaptureStream struct {
	mu     sync.Mutex
	frames chan platform.Frame
	closed bool

	// CloseCalls counts Close invocations.
	CloseCalls int
}

// Frames implements platform.Stream.
func (s *CaptureStream) Frames() <-chan platform.Frame { return s.frames }

// Close implements platform.Stream.
func (s *CaptureStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCalls++
	if !s.closed {
		s.closed = true
		close(s.frames)
	}
	return nil
}

// Closed reports whether the stream has been closed.
func (s *CaptureStream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Feed pushes a frame into the stream. Feeding a closed stream is a no-op.
func (s *CaptureStream) Feed(f platform.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.frames <- f
}
