package whisperasr

import (
	"encoding/binary"
	"math"
	"testing"
	"time"
)

// tone builds n mono S16LE samples of constant amplitude.
func tone(amplitude int16, n int) []byte {
	out := make([]byte, n*2)
	for i := range n {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(amplitude))
	}
	return out
}

func TestSamplesFromPCMMono(t *testing.T) {
	pcm := tone(16384, 4)
	samples := samplesFromPCM(pcm, 1)
	if len(samples) != 4 {
		t.Fatalf("len = %d, want 4", len(samples))
	}
	for _, s := range samples {
		if math.Abs(float64(s)-0.5) > 1e-6 {
			t.Fatalf("sample = %v, want 0.5", s)
		}
	}
}

func TestSamplesFromPCMStereoDownmix(t *testing.T) {
	// Interleaved L=16384, R=0 should average to 0.25.
	pcm := make([]byte, 8)
	binary.LittleEndian.PutUint16(pcm[0:], 16384)
	binary.LittleEndian.PutUint16(pcm[2:], 0)
	binary.LittleEndian.PutUint16(pcm[4:], 16384)
	binary.LittleEndian.PutUint16(pcm[6:], 0)

	samples := samplesFromPCM(pcm, 2)
	if len(samples) != 2 {
		t.Fatalf("len = %d, want 2", len(samples))
	}
	for _, s := range samples {
		if math.Abs(float64(s)-0.25) > 1e-6 {
			t.Fatalf("sample = %v, want 0.25", s)
		}
	}
}

func TestPCMRMS(t *testing.T) {
	if got := pcmRMS(nil); got != 0 {
		t.Fatalf("rms of empty = %v", got)
	}
	if got := pcmRMS(tone(1000, 160)); math.Abs(got-1000) > 1e-6 {
		t.Fatalf("rms = %v, want 1000", got)
	}
}

func TestPCMDuration(t *testing.T) {
	// 160 mono samples at 16 kHz = 10ms.
	if got := pcmDuration(tone(0, 160), 16000, 1); got != 10*time.Millisecond {
		t.Fatalf("duration = %v, want 10ms", got)
	}
	if got := pcmDuration(tone(0, 160), 0, 1); got != 0 {
		t.Fatalf("duration with zero rate = %v, want 0", got)
	}
}

func TestSegmenterCutsOnSilence(t *testing.T) {
	seg := newSegmenter(300, 30*time.Millisecond, time.Second)

	// Leading silence is discarded, not buffered.
	if _, ok := seg.feed(tone(0, 160), 16000, 1); ok {
		t.Fatal("silence alone must not produce an utterance")
	}

	// 20ms of speech.
	for range 2 {
		if _, ok := seg.feed(tone(8000, 160), 16000, 1); ok {
			t.Fatal("utterance ended too early")
		}
	}

	// 30ms of trailing silence closes the utterance.
	var utterance []byte
	done := false
	for range 3 {
		utterance, done = seg.feed(tone(0, 160), 16000, 1)
		if done {
			break
		}
	}
	if !done {
		t.Fatal("sustained silence did not close the utterance")
	}
	// 2 speech frames + 3 silence frames, 320 bytes each.
	if len(utterance) != 5*320 {
		t.Fatalf("utterance = %d bytes, want %d", len(utterance), 5*320)
	}

	// Segmenter is reset afterwards.
	if _, ok := seg.feed(tone(0, 160), 16000, 1); ok {
		t.Fatal("reset segmenter must ignore silence")
	}
}

func TestSegmenterForcedCutAtMaxUtterance(t *testing.T) {
	seg := newSegmenter(300, time.Second, 30*time.Millisecond)

	var done bool
	frames := 0
	for range 10 {
		frames++
		if _, done = seg.feed(tone(8000, 160), 16000, 1); done {
			break
		}
	}
	if !done {
		t.Fatal("max utterance cap did not force a cut")
	}
	if frames != 3 {
		t.Fatalf("cut after %d frames, want 3 (30ms)", frames)
	}
}

func TestSegmenterFlush(t *testing.T) {
	seg := newSegmenter(300, time.Second, time.Second)

	if _, ok := seg.flush(); ok {
		t.Fatal("flush of empty segmenter must be a no-op")
	}

	seg.feed(tone(8000, 160), 16000, 1)
	utterance, ok := seg.flush()
	if !ok || len(utterance) != 320 {
		t.Fatalf("flush = (%d bytes, %v), want pending speech", len(utterance), ok)
	}
}

func TestWhisperLanguage(t *testing.T) {
	cases := map[string]string{
		"":      "en",
		"de-CH": "de",
		"de":    "de",
		"FR-fr": "fr",
	}
	for tag, want := range cases {
		if got := whisperLanguage(tag); got != want {
			t.Errorf("whisperLanguage(%q) = %q, want %q", tag, got, want)
		}
	}
}
