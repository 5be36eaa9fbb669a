package coquitts

import (
	"context"
	"encoding/binary"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ordervox/ordervox/pkg/platform"
)

// buildWAV wraps S16LE mono PCM in a minimal RIFF/WAVE container.
func buildWAV(pcm []byte, sampleRate int, channels int) []byte {
	wav := make([]byte, 0, 44+len(pcm))
	wav = append(wav, []byte("RIFF")...)
	wav = binary.LittleEndian.AppendUint32(wav, uint32(36+len(pcm)))
	wav = append(wav, []byte("WAVE")...)

	wav = append(wav, []byte("fmt ")...)
	wav = binary.LittleEndian.AppendUint32(wav, 16)
	wav = binary.LittleEndian.AppendUint16(wav, 1) // PCM
	wav = binary.LittleEndian.AppendUint16(wav, uint16(channels))
	wav = binary.LittleEndian.AppendUint32(wav, uint32(sampleRate))
	wav = binary.LittleEndian.AppendUint32(wav, uint32(sampleRate*channels*2))
	wav = binary.LittleEndian.AppendUint16(wav, uint16(channels*2))
	wav = binary.LittleEndian.AppendUint16(wav, 16)

	wav = append(wav, []byte("data")...)
	wav = binary.LittleEndian.AppendUint32(wav, uint32(len(pcm)))
	return append(wav, pcm...)
}

// samples builds n constant-amplitude S16LE mono samples.
func samples(amplitude int16, n int) []byte {
	out := make([]byte, n*2)
	for i := range n {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(amplitude))
	}
	return out
}

type fakePlayer struct {
	mu     sync.Mutex
	played [][]byte
	rates  []int
	err    error
}

func (f *fakePlayer) Play(_ context.Context, pcm []byte, sampleRate int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.played = append(f.played, pcm)
	f.rates = append(f.rates, sampleRate)
	return nil
}

func TestNewValidation(t *testing.T) {
	if _, err := New("", &fakePlayer{}); err == nil {
		t.Fatal("empty server URL should fail")
	}
	if _, err := New("http://localhost:5002", nil); err == nil {
		t.Fatal("nil player should fail")
	}
}

func TestSpeakSynthesizesAndPlays(t *testing.T) {
	pcm := samples(8000, 1600) // 100ms at 16kHz
	var gotQuery struct {
		text, speaker, language string
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != ttsEndpoint {
			t.Errorf("unexpected path %q", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		q := r.URL.Query()
		gotQuery.text = q.Get("text")
		gotQuery.speaker = q.Get("speaker_id")
		gotQuery.language = q.Get("language_id")
		w.Header().Set("Content-Type", "audio/wav")
		w.Write(buildWAV(pcm, 16000, 1))
	}))
	defer srv.Close()

	player := &fakePlayer{}
	s, err := New(srv.URL, player)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	d, err := s.Speak(context.Background(), platform.Utterance{
		Text:     "zwei cola bitte",
		Voice:    "leni",
		Language: "de-CH",
		Volume:   1,
		Rate:     1,
		Pitch:    1,
	})
	if err != nil {
		t.Fatalf("Speak: %v", err)
	}

	if gotQuery.text != "zwei cola bitte" || gotQuery.speaker != "leni" || gotQuery.language != "de" {
		t.Fatalf("query = %+v", gotQuery)
	}
	if len(player.played) != 1 || len(player.played[0]) != len(pcm) {
		t.Fatalf("played %d buffers", len(player.played))
	}
	if player.rates[0] != 16000 {
		t.Fatalf("playback rate = %d, want 16000", player.rates[0])
	}
	if d != 100*time.Millisecond {
		t.Fatalf("duration = %v, want 100ms", d)
	}
}

func TestSpeakAppliesRate(t *testing.T) {
	pcm := samples(8000, 1600)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write(buildWAV(pcm, 16000, 1))
	}))
	defer srv.Close()

	player := &fakePlayer{}
	s, err := New(srv.URL, player)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Double speed halves the sample count and the duration.
	d, err := s.Speak(context.Background(), platform.Utterance{Text: "hallo", Volume: 1, Rate: 2, Pitch: 1})
	if err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if got := len(player.played[0]); got != len(pcm)/2 {
		t.Fatalf("resampled to %d bytes, want %d", got, len(pcm)/2)
	}
	if d != 50*time.Millisecond {
		t.Fatalf("duration = %v, want 50ms", d)
	}
}

func TestSpeakServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model exploded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	s, err := New(srv.URL, &fakePlayer{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := s.Speak(context.Background(), platform.Utterance{Text: "hallo", Volume: 1, Rate: 1}); err == nil {
		t.Fatal("expected an error for a 500 response")
	}
}

func TestVoicesMultiSpeaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != detailsEndpoint {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"model_name":"tts_models/de/thorsten/vits","language":"de","speakers":["leni","thorsten"]}`))
	}))
	defer srv.Close()

	s, err := New(srv.URL, &fakePlayer{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	voices, err := s.Voices(context.Background())
	if err != nil {
		t.Fatalf("Voices: %v", err)
	}
	if len(voices) != 2 {
		t.Fatalf("got %d voices, want 2", len(voices))
	}
	if voices[0].Name != "leni" || !voices[0].Default || voices[0].Language != "de" {
		t.Fatalf("first voice = %+v", voices[0])
	}
	if voices[1].Default {
		t.Fatal("only the first voice is the default")
	}
}

func TestVoicesSingleSpeaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"model_name":"tts_models/de/thorsten/vits","language":"de"}`))
	}))
	defer srv.Close()

	s, err := New(srv.URL, &fakePlayer{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	voices, err := s.Voices(context.Background())
	if err != nil {
		t.Fatalf("Voices: %v", err)
	}
	if len(voices) != 1 || !voices[0].Default || voices[0].Name != "tts_models/de/thorsten/vits" {
		t.Fatalf("voices = %+v", voices)
	}
}

func TestParseWAVVariableHeader(t *testing.T) {
	pcm := samples(100, 10)
	wav := buildWAV(pcm, 22050, 1)
	info, err := parseWAV(wav)
	if err != nil {
		t.Fatalf("parseWAV: %v", err)
	}
	if info.sampleRate != 22050 || info.channels != 1 || info.dataOffset != 44 {
		t.Fatalf("info = %+v", info)
	}

	if _, err := parseWAV([]byte("not a wav")); err == nil {
		t.Fatal("garbage must not parse")
	}
}

func TestResampleMonoHalvesAndDoubles(t *testing.T) {
	pcm := samples(1000, 100)
	down := resampleMono(pcm, 16000, 8000)
	if len(down) != 100 {
		t.Fatalf("downsampled to %d bytes, want 100", len(down))
	}
	up := resampleMono(pcm, 16000, 32000)
	if len(up) != 400 {
		t.Fatalf("upsampled to %d bytes, want 400", len(up))
	}
	// Constant signal stays constant under linear interpolation.
	for i := 0; i+1 < len(up); i += 2 {
		if got := int16(binary.LittleEndian.Uint16(up[i:])); got != 1000 {
			t.Fatalf("sample %d = %d, want 1000", i/2, got)
		}
	}
}

func TestApplyVolume(t *testing.T) {
	pcm := samples(1000, 4)
	half := applyVolume(pcm, 0.5)
	for i := 0; i+1 < len(half); i += 2 {
		if got := int16(binary.LittleEndian.Uint16(half[i:])); got != 500 {
			t.Fatalf("sample = %d, want 500", got)
		}
	}
	if &applyVolume(pcm, 1)[0] != &pcm[0] {
		t.Fatal("full volume should not copy")
	}
}

func TestDownmixMono(t *testing.T) {
	// L=1000, R=0 interleaved.
	stereo := make([]byte, 8)
	binary.LittleEndian.PutUint16(stereo[0:], 1000)
	binary.LittleEndian.PutUint16(stereo[4:], 1000)
	mono := downmixMono(stereo, 2)
	if len(mono) != 4 {
		t.Fatalf("mono = %d bytes, want 4", len(mono))
	}
	for i := 0; i < 4; i += 2 {
		if got := int16(binary.LittleEndian.Uint16(mono[i:])); got != 500 {
			t.Fatalf("sample = %d, want 500", got)
		}
	}
}
