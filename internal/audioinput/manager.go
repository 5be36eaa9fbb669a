// Package audioinput manages the microphone lifecycle for a recognition
// session: scoped acquisition with guaranteed release, software gain, a
// noise gate, and the level/voice-activity analysis feeding the UI events.
//
// The stream is exclusively owned by the active session. Acquire opens it,
// Release closes it, and every session exit path must call Release exactly
// once; Release is idempotent so defensive double calls are harmless.
package audioinput

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/ordervox/ordervox/internal/events"
	"github.com/ordervox/ordervox/internal/voiceerr"
	"github.com/ordervox/ordervox/pkg/platform"
)

// Config holds the microphone tunables.
type Config struct {
	SampleRate uint32
	Channels   uint32

	// Gain is a software multiplier applied to the measured level.
	Gain float64

	// NoiseGate is the normalized RMS level below which the signal counts
	// as silence for voice-activity detection.
	NoiseGate float64

	// Standard capture constraints, forwarded to the platform.
	EchoCancellation bool
	NoiseSuppression bool
	AutoGainControl  bool

	// LevelInterval throttles audioLevel events. Zero means 100ms.
	LevelInterval time.Duration

	// Hangover is how long the level must stay under the gate before
	// voice activity is reported as ended. Zero means 400ms.
	Hangover time.Duration
}

var errAlreadyAcquired = errors.New("microphone already acquired")

// Manager owns the microphone stream. Safe for concurrent use.
type Manager struct {
	capture platform.Capture
	cfg     Config
	bus     *events.Bus
	log     *slog.Logger

	mu        sync.Mutex
	stream    platform.Stream
	done      chan struct{}
	active    bool
	acquiring bool
	voicing   bool
}

// NewManager builds a manager over the given capture device.
func NewManager(capture platform.Capture, cfg Config, bus *events.Bus, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	if cfg.LevelInterval <= 0 {
		cfg.LevelInterval = 100 * time.Millisecond
	}
	if cfg.Hangover <= 0 {
		cfg.Hangover = 400 * time.Millisecond
	}
	return &Manager{
		capture: capture,
		cfg:     cfg,
		bus:     bus,
		log:     log.With("component", "audioinput"),
	}
}

// Acquire opens the microphone and starts the level analysis. It fails
// with a permission_denied error when the platform refuses access, and
// with unsupported when no capture device exists. Acquiring twice without
// a Release in between is an error.
func (m *Manager) Acquire(ctx context.Context) error {
	if m.capture == nil {
		return voiceerr.Unsupported("microphone capture")
	}

	// Reserve the device before the potentially slow Open so a concurrent
	// Acquire fails instead of opening a second stream.
	m.mu.Lock()
	if m.active || m.acquiring {
		m.mu.Unlock()
		return errAlreadyAcquired
	}
	m.acquiring = true
	m.mu.Unlock()

	stream, err := m.capture.Open(ctx, platform.CaptureConfig{
		SampleRate:       m.cfg.SampleRate,
		Channels:         m.cfg.Channels,
		EchoCancellation: m.cfg.EchoCancellation,
		NoiseSuppression: m.cfg.NoiseSuppression,
		AutoGainControl:  m.cfg.AutoGainControl,
	})
	if err != nil {
		m.mu.Lock()
		m.acquiring = false
		m.mu.Unlock()
		m.log.Error("microphone acquisition failed", "error", err)
		return voiceerr.PermissionDenied(err)
	}

	m.mu.Lock()
	m.stream = stream
	m.done = make(chan struct{})
	m.active = true
	m.acquiring = false
	m.voicing = false
	done := m.done
	m.mu.Unlock()

	m.log.Info("microphone acquired", "sample_rate", m.cfg.SampleRate, "channels", m.cfg.Channels)
	go m.analyse(stream, done)
	return nil
}

// Release closes the microphone stream. Safe to call when not acquired.
func (m *Manager) Release() error {
	m.mu.Lock()
	if !m.active {
		m.mu.Unlock()
		return nil
	}
	stream := m.stream
	done := m.done
	m.stream = nil
	m.active = false
	m.mu.Unlock()

	err := stream.Close()
	<-done
	m.log.Info("microphone released")
	return err
}

// Active reports whether the microphone is currently held.
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// analyse consumes frames until the stream closes, publishing throttled
// audioLevel events and voiceActivity transitions.
func (m *Manager) analyse(stream platform.Stream, done chan struct{}) {
	defer close(done)

	var (
		lastLevel  time.Time
		belowSince time.Time
	)

	for frame := range stream.Frames() {
		level := clampLevel(rms(frame.Data) * m.cfg.Gain)
		now := time.Now()

		if now.Sub(lastLevel) >= m.cfg.LevelInterval {
			lastLevel = now
			m.bus.Publish(events.AudioLevel, events.LevelPayload{Level: level})
		}

		if level >= m.cfg.NoiseGate {
			belowSince = time.Time{}
			m.setVoicing(true)
			continue
		}
		if belowSince.IsZero() {
			belowSince = now
		}
		if now.Sub(belowSince) >= m.cfg.Hangover {
			m.setVoicing(false)
		}
	}
	m.setVoicing(false)
}

func (m *Manager) setVoicing(active bool) {
	m.mu.Lock()
	changed := m.voicing != active
	m.voicing = active
	m.mu.Unlock()
	if changed {
		m.bus.Publish(events.VoiceActivity, events.ActivityPayload{Active: active})
	}
}

// rms computes the normalized root-mean-square level of S16LE samples.
func rms(data []byte) float64 {
	if len(data) < 2 {
		return 0
	}
	var sum float64
	n := len(data) / 2
	for i := 0; i < n; i++ {
		s := int16(uint16(data[2*i]) | uint16(data[2*i+1])<<8)
		v := float64(s) / 32768
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}

func clampLevel(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < 0 {
		return 0
	}
	return v
}
