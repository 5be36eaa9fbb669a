package synthesis

import (
	"fmt"
	"regexp"

	"github.com/ordervox/ordervox/pkg/types"
)

// toneProfile holds the multiplicative prosody adjustments and the
// emphasis template for one tone. The template wraps the text in
// SSML-lite markup; platform synthesizers take plain text, so the tags
// are stripped again after application and only the multipliers remain
// in the utterance parameters.
type toneProfile struct {
	pitch    float64
	rate     float64
	volume   float64
	template string
}

var toneProfiles = map[types.Tone]toneProfile{
	types.ToneNeutral:      {pitch: 1, rate: 1, volume: 1, template: "%s"},
	types.ToneFriendly:     {pitch: 1.1, rate: 1.05, volume: 1, template: `<prosody pitch="+10%%">%s</prosody>`},
	types.ToneProfessional: {pitch: 0.95, rate: 0.95, volume: 1, template: "%s"},
	types.ToneExcited:      {pitch: 1.2, rate: 1.15, volume: 1.05, template: `<emphasis level="strong">%s</emphasis>`},
	types.ToneCalm:         {pitch: 0.9, rate: 0.85, volume: 0.95, template: "%s"},
	types.ToneError:        {pitch: 0.95, rate: 0.9, volume: 1, template: `<emphasis level="moderate">%s</emphasis>`},
	types.ToneSuccess:      {pitch: 1.1, rate: 1.05, volume: 1, template: `<emphasis level="moderate">%s</emphasis>`},
}

var markupTags = regexp.MustCompile(`</?[a-z]+[^>]*>`)

// applyTone renders text through the tone's emphasis template and strips
// the markup back out. Unknown tones behave as neutral.
func applyTone(text string, tone types.Tone) (string, toneProfile) {
	profile, ok := toneProfiles[tone]
	if !ok {
		profile = toneProfiles[types.ToneNeutral]
	}
	rendered := fmt.Sprintf(profile.template, text)
	return markupTags.ReplaceAllString(rendered, ""), profile
}

// clamp bounds v to [lo, hi].
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
