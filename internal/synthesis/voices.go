package synthesis

import (
	"context"
	"sync"
	"time"

	"github.com/ordervox/ordervox/internal/dialect"
	"github.com/ordervox/ordervox/internal/voiceerr"
	"github.com/ordervox/ordervox/pkg/platform"
)

// VoicePrefs lists preferred voice names for one language, in order.
type VoicePrefs struct {
	Primary  []string
	Fallback []string
}

// voiceListTTL bounds how long a fetched platform voice list is reused.
// Platforms load voices lazily, so a failed selection retries the fetch.
const voiceListTTL = 30 * time.Second

// VoiceSelector resolves the best available platform voice per language
// using a fixed waterfall: configured primary names, configured fallback
// names, any voice whose locale shares the base language, then the
// platform default. Safe for concurrent use.
type VoiceSelector struct {
	synth platform.Synthesizer
	prefs map[string]VoicePrefs

	mu        sync.Mutex
	voices    []platform.Voice
	fetchedAt time.Time
}

// NewVoiceSelector builds a selector over the given synthesizer. prefs is
// keyed by full language tag (e.g. "de-CH").
func NewVoiceSelector(synth platform.Synthesizer, prefs map[string]VoicePrefs) *VoiceSelector {
	return &VoiceSelector{synth: synth, prefs: prefs}
}

// Select resolves the voice for language. It fails with an unsupported
// error when the platform reports no voices at all.
func (s *VoiceSelector) Select(ctx context.Context, language string) (platform.Voice, error) {
	voices, err := s.list(ctx)
	if err != nil {
		return platform.Voice{}, voiceerr.Synthesis(err)
	}
	if len(voices) == 0 {
		return platform.Voice{}, voiceerr.Unsupported("synthesis voices")
	}

	byName := make(map[string]platform.Voice, len(voices))
	for _, v := range voices {
		byName[v.Name] = v
	}

	p := s.prefs[language]
	for _, name := range p.Primary {
		if v, ok := byName[name]; ok {
			return v, nil
		}
	}
	for _, name := range p.Fallback {
		if v, ok := byName[name]; ok {
			return v, nil
		}
	}

	base := dialect.BaseLanguage(language)
	for _, v := range voices {
		if dialect.BaseLanguage(v.Language) == base {
			return v, nil
		}
	}
	for _, v := range voices {
		if v.Default {
			return v, nil
		}
	}
	return voices[0], nil
}

func (s *VoiceSelector) list(ctx context.Context) ([]platform.Voice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.voices != nil && time.Since(s.fetchedAt) < voiceListTTL {
		return s.voices, nil
	}
	voices, err := s.synth.Voices(ctx)
	if err != nil {
		return nil, err
	}
	s.voices = voices
	s.fetchedAt = time.Now()
	return voices, nil
}
