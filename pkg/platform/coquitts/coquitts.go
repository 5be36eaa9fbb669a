// Package coquitts implements [platform.Synthesizer] over a locally
// running Coqui TTS server (the standard ghcr.io/coqui-ai/tts-cpu REST
// API). Synthesis is one GET /api/tts call per utterance; the WAV
// response is stripped to raw PCM and handed to a [Player] for output.
//
// The utterance volume and rate parameters are applied to the PCM before
// playback: volume by sample scaling, rate by linear resampling. The
// standard server has no prosody control, so pitch adjustments beyond
// the rate shift are ignored.
package coquitts

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ordervox/ordervox/pkg/platform"
)

const (
	defaultTimeout  = 30 * time.Second
	ttsEndpoint     = "/api/tts"
	detailsEndpoint = "/details"
)

// Player plays raw S16LE mono PCM. [malgocap.NewPlayer] provides the
// production implementation.
type Player interface {
	Play(ctx context.Context, pcm []byte, sampleRate int) error
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Synthesizer) { s.client.Timeout = d }
}

// WithHTTPClient replaces the HTTP client, mainly for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Synthesizer) { s.client = c }
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Synthesizer) { s.log = log }
}

// Synthesizer talks to one Coqui TTS server. Safe for concurrent use.
type Synthesizer struct {
	serverURL string
	player    Player
	client    *http.Client
	log       *slog.Logger
}

var _ platform.Synthesizer = (*Synthesizer)(nil)

// New creates a synthesizer for the server at serverURL (e.g.
// "http://localhost:5002").
func New(serverURL string, player Player, opts ...Option) (*Synthesizer, error) {
	if serverURL == "" {
		return nil, errors.New("coquitts: server URL must not be empty")
	}
	if player == nil {
		return nil, errors.New("coquitts: player required")
	}
	s := &Synthesizer{
		serverURL: strings.TrimRight(serverURL, "/"),
		player:    player,
		client:    &http.Client{Timeout: defaultTimeout},
		log:       slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.With("component", "coquitts")
	return s, nil
}

// detailsResponse is the body of GET /details. Speakers is nil for
// single-speaker models.
type detailsResponse struct {
	ModelName string   `json:"model_name"`
	Language  string   `json:"language"`
	Speakers  []string `json:"speakers"`
}

// Voices implements platform.Synthesizer. Multi-speaker models yield one
// voice per speaker; single-speaker models yield one voice named after
// the model.
func (s *Synthesizer) Voices(ctx context.Context) ([]platform.Voice, error) {
	var details detailsResponse
	if err := s.getJSON(ctx, detailsEndpoint, &details); err != nil {
		return nil, err
	}

	if len(details.Speakers) == 0 {
		return []platform.Voice{{
			Name:     details.ModelName,
			Language: details.Language,
			Default:  true,
		}}, nil
	}

	voices := make([]platform.Voice, len(details.Speakers))
	for i, speaker := range details.Speakers {
		voices[i] = platform.Voice{
			Name:     speaker,
			Language: details.Language,
			Default:  i == 0,
		}
	}
	return voices, nil
}

// Speak implements platform.Synthesizer.
func (s *Synthesizer) Speak(ctx context.Context, u platform.Utterance) (time.Duration, error) {
	pcm, sampleRate, err := s.synthesize(ctx, u)
	if err != nil {
		return 0, err
	}

	pcm = applyVolume(pcm, u.Volume)
	if u.Rate > 0 && u.Rate != 1 {
		// Resampling to rate/u.Rate and playing at the original rate
		// shortens the audio by the rate factor.
		pcm = resampleMono(pcm, sampleRate, int(float64(sampleRate)/u.Rate))
	}

	duration := time.Duration(len(pcm)/2) * time.Second / time.Duration(sampleRate)
	if err := s.player.Play(ctx, pcm, sampleRate); err != nil {
		return 0, err
	}
	return duration, nil
}

// synthesize performs one GET /api/tts call and returns mono PCM plus
// its sample rate.
func (s *Synthesizer) synthesize(ctx context.Context, u platform.Utterance) ([]byte, int, error) {
	params := url.Values{}
	params.Set("text", u.Text)
	if u.Voice != "" {
		params.Set("speaker_id", u.Voice)
	}
	if u.Language != "" {
		base, _, _ := strings.Cut(u.Language, "-")
		params.Set("language_id", strings.ToLower(base))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.serverURL+ttsEndpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, 0, fmt.Errorf("coquitts: create request: %w", err)
	}
	req.Header.Set("Accept", "audio/wav")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("coquitts: GET %s: %w", ttsEndpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("coquitts: GET %s returned status %d", ttsEndpoint, resp.StatusCode)
	}

	wav, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("coquitts: read response: %w", err)
	}

	info, err := parseWAV(wav)
	if err != nil {
		return nil, 0, err
	}
	pcm := wav[info.dataOffset:]
	if info.channels > 1 {
		pcm = downmixMono(pcm, info.channels)
	}
	return pcm, info.sampleRate, nil
}

func (s *Synthesizer) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.serverURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("coquitts: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("coquitts: GET %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("coquitts: GET %s returned status %d", endpoint, resp.StatusCode)
	}
	if err := decodeJSON(resp.Body, out); err != nil {
		return fmt.Errorf("coquitts: decode %s: %w", endpoint, err)
	}
	return nil
}

// applyVolume scales S16LE samples by v in [0,1]. v of 1 (or an unset 0
// treated as 1 upstream) returns the input unchanged.
func applyVolume(pcm []byte, v float64) []byte {
	if v >= 1 || v < 0 || len(pcm) < 2 {
		return pcm
	}
	out := make([]byte, len(pcm))
	for i := 0; i+1 < len(pcm); i += 2 {
		sample := int16(binary.LittleEndian.Uint16(pcm[i : i+2]))
		binary.LittleEndian.PutUint16(out[i:], uint16(int16(float64(sample)*v)))
	}
	return out
}
