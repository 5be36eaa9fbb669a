// Package malgocap implements [platform.Capture] over the miniaudio
// library (via the malgo bindings). One Capture owns a malgo context and
// can open multiple independent device streams from it.
package malgocap

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/ordervox/ordervox/internal/voiceerr"
	"github.com/ordervox/ordervox/pkg/platform"
)

const (
	defaultSampleRate uint32 = 16000
	defaultChannels   uint32 = 1

	// frameBuffer is the per-stream channel depth. The device callback
	// drops frames rather than block when the consumer falls behind.
	frameBuffer = 64
)

// Capture opens microphone streams through miniaudio.
type Capture struct {
	ctx *malgo.AllocatedContext
	log *slog.Logger
}

var _ platform.Capture = (*Capture)(nil)

// New initialises the audio backend. It fails with a typed unsupported
// error when no backend is available (headless hosts, missing audio
// subsystem).
func New(log *slog.Logger) (*Capture, error) {
	if log == nil {
		log = slog.Default()
	}
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, voiceerr.Unsupported(fmt.Sprintf("audio capture: %v", err))
	}
	return &Capture{ctx: ctx, log: log.With("component", "malgocap")}, nil
}

// Close tears down the audio backend. Open streams must be closed first.
func (c *Capture) Close() error {
	if err := c.ctx.Uninit(); err != nil {
		return err
	}
	c.ctx.Free()
	return nil
}

// Open starts capturing from the default device with the requested
// constraints. Echo cancellation, noise suppression and auto gain are
// handled by the OS capture path where available; miniaudio exposes no
// per-stream switches for them, so the flags are accepted and ignored.
func (c *Capture) Open(ctx context.Context, cfg platform.CaptureConfig) (platform.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sampleRate := cfg.SampleRate
	if sampleRate == 0 {
		sampleRate = defaultSampleRate
	}
	channels := cfg.Channels
	if channels == 0 {
		channels = defaultChannels
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = channels
	deviceConfig.SampleRate = sampleRate

	s := &stream{
		frames:     make(chan platform.Frame, frameBuffer),
		sampleRate: int(sampleRate),
		channels:   int(channels),
		log:        c.log,
	}

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, data []byte, frameCount uint32) {
			s.deliver(data, frameCount)
		},
	}

	dev, err := malgo.InitDevice(c.ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return nil, voiceerr.PermissionDenied(fmt.Errorf("init capture device: %w", err))
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		return nil, voiceerr.PermissionDenied(fmt.Errorf("start capture device: %w", err))
	}
	s.dev = dev

	c.log.Info("microphone opened", "sample_rate", sampleRate, "channels", channels)
	return s, nil
}

// stream is one open device stream.
type stream struct {
	dev        *malgo.Device
	frames     chan platform.Frame
	sampleRate int
	channels   int
	log        *slog.Logger

	mu       sync.Mutex
	closed   bool
	elapsed  time.Duration
	dropped  int
	loggedAt time.Time
}

var _ platform.Stream = (*stream)(nil)

// deliver runs on the miniaudio callback thread. It must never block:
// when the consumer falls behind, frames are dropped and counted.
func (s *stream) deliver(data []byte, frameCount uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	frame := platform.Frame{
		Data:       append([]byte(nil), data...),
		SampleRate: s.sampleRate,
		Channels:   s.channels,
		Timestamp:  s.elapsed,
	}
	s.elapsed += time.Duration(frameCount) * time.Second / time.Duration(s.sampleRate)

	select {
	case s.frames <- frame:
	default:
		s.dropped++
		if time.Since(s.loggedAt) > time.Second {
			s.log.Warn("capture consumer behind, dropping frames", "dropped", s.dropped)
			s.loggedAt = time.Now()
		}
	}
}

// Frames implements platform.Stream.
func (s *stream) Frames() <-chan platform.Frame { return s.frames }

// Close stops the device and closes the frame channel.
func (s *stream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	// Uninit blocks until the data callback has returned, so closing the
	// channel afterwards cannot race a late deliver.
	s.dev.Uninit()
	close(s.frames)
	return nil
}
