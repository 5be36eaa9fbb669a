package transcript

import (
	"strings"
	"unicode/utf8"
)

// Weights tunes the confidence heuristic used when the platform omits a
// per-result score. The defaults are calibrated against kitchen-noise
// recordings; override only individual fields.
type Weights struct {
	// Base is the starting score for any non-empty transcript.
	Base float64

	// WordBonus is added per word, up to WordCap words.
	WordBonus float64
	WordCap   int

	// ShortPenalty is subtracted when the transcript is a single word of
	// fewer than four characters; those are mostly noise artifacts.
	ShortPenalty float64

	// FragmentPenalty is subtracted per hesitation token (ähm, äh, hm...).
	FragmentPenalty float64

	// LengthPenalty is subtracted when the average word length falls
	// outside the typical 3..9 character range of spoken German.
	LengthPenalty float64
}

// DefaultWeights returns the tuned defaults.
func DefaultWeights() Weights {
	return Weights{
		Base:            0.5,
		WordBonus:       0.06,
		WordCap:         6,
		ShortPenalty:    0.25,
		FragmentPenalty: 0.15,
		LengthPenalty:   0.1,
	}
}

// hesitations are filler tokens that carry no content in any supported
// language.
var hesitations = map[string]bool{
	"ähm": true, "äh": true, "hm": true, "hmm": true,
	"mhm": true, "um": true, "uh": true, "er": true,
	"euh": true, "ehm": true,
}

// Estimate derives a confidence score in [0,1] from the transcript text
// alone. Longer, fuller utterances score higher; fragments and hesitations
// score lower. Empty text scores zero.
func Estimate(text string, w Weights) float64 {
	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		return 0
	}

	score := w.Base

	n := len(words)
	if n > w.WordCap {
		n = w.WordCap
	}
	score += float64(n) * w.WordBonus

	if len(words) == 1 && utf8.RuneCountInString(words[0]) < 4 {
		score -= w.ShortPenalty
	}

	var runeTotal int
	for _, word := range words {
		runeTotal += utf8.RuneCountInString(word)
		if hesitations[strings.Trim(word, ".,!?")] {
			score -= w.FragmentPenalty
		}
	}
	avg := float64(runeTotal) / float64(len(words))
	if avg < 3 || avg > 9 {
		score -= w.LengthPenalty
	}

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
