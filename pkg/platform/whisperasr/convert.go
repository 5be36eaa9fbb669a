package whisperasr

import (
	"encoding/binary"
	"math"
	"time"
)

// samplesFromPCM converts S16LE PCM to float32 in [-1,1), down-mixing
// interleaved channels to mono by averaging. A trailing odd byte is
// ignored.
func samplesFromPCM(pcm []byte, channels int) []float32 {
	if channels < 1 {
		channels = 1
	}
	frames := len(pcm) / (2 * channels)
	out := make([]float32, frames)
	for i := range frames {
		var sum float32
		for ch := range channels {
			off := (i*channels + ch) * 2
			sum += float32(int16(binary.LittleEndian.Uint16(pcm[off:off+2]))) / 32768.0
		}
		out[i] = sum / float32(channels)
	}
	return out
}

// pcmRMS returns the root-mean-square energy of S16LE PCM on the raw
// 16-bit scale (0..32767).
func pcmRMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := range n {
		s := float64(int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2])))
		sum += s * s
	}
	return math.Sqrt(sum / float64(n))
}

// pcmDuration returns the play time of S16LE PCM at the given rate.
func pcmDuration(pcm []byte, sampleRate, channels int) time.Duration {
	if sampleRate <= 0 || channels <= 0 {
		return 0
	}
	frames := len(pcm) / (2 * channels)
	return time.Duration(frames) * time.Second / time.Duration(sampleRate)
}
