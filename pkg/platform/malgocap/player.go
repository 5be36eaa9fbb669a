package malgocap

import (
	"context"
	"fmt"

	"github.com/gen2brain/malgo"
)

// Player plays S16LE mono PCM through the default output device. It
// shares the Capture's malgo context. One utterance plays at a time; the
// synthesis pipeline already serializes callers.
type Player struct {
	ctx *malgo.AllocatedContext
}

// NewPlayer returns a player backed by the capture's audio context.
func NewPlayer(c *Capture) *Player {
	return &Player{ctx: c.ctx}
}

// Play blocks until the PCM has been played or ctx is cancelled.
func (p *Player) Play(ctx context.Context, pcm []byte, sampleRate int) error {
	if len(pcm) == 0 {
		return nil
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = 1
	deviceConfig.SampleRate = uint32(sampleRate)

	done := make(chan struct{})
	var off int
	callbacks := malgo.DeviceCallbacks{
		Data: func(out, _ []byte, _ uint32) {
			if off >= len(pcm) {
				return
			}
			n := copy(out, pcm[off:])
			off += n
			if off >= len(pcm) {
				close(done)
			}
		},
	}

	dev, err := malgo.InitDevice(p.ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return fmt.Errorf("init playback device: %w", err)
	}
	defer dev.Uninit()

	if err := dev.Start(); err != nil {
		return fmt.Errorf("start playback device: %w", err)
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
