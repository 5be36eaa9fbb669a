// Package phonetic ranks spoken words against a known vocabulary using
// Double Metaphone codes with Jaro-Winkler similarity as the tie-breaker.
//
// Recognition output for short command words is noisy ("tschäckaut" for
// "checkout", "warechorb" for "warenkorb"); a phonetic candidate
// filter plus string-similarity ranking recovers the intended word far more
// reliably than exact matching. Candidates that share no phonetic code with
// the input must clear a stricter similarity threshold.
package phonetic

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// Option configures a [Matcher].
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score for a
// phonetically-overlapping candidate. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(m *Matcher) { m.phoneticThreshold = threshold }
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score for a candidate
// with no phonetic overlap. Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) { m.fuzzyThreshold = threshold }
}

// Matcher ranks utterance fragments against a vocabulary. Read-only after
// construction, safe for concurrent use.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// New returns a matcher with the supplied options.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Best returns the vocabulary entry most similar to input, its score, and
// whether any entry cleared its threshold. When matched is false, input is
// returned unchanged. Both input and entries may be multi-word phrases.
func (m *Matcher) Best(input string, vocabulary []string) (match string, score float64, matched bool) {
	input = strings.ToLower(strings.TrimSpace(input))
	if input == "" || len(vocabulary) == 0 {
		return input, 0, false
	}
	inputTokens := strings.Fields(input)
	inputCodes := phoneticCodes(inputTokens)

	var (
		bestEntry    string
		bestScore    float64
		bestPhonetic bool
	)
	for _, entry := range vocabulary {
		candidate := strings.ToLower(strings.TrimSpace(entry))
		if candidate == "" {
			continue
		}
		candTokens := strings.Fields(candidate)
		overlap := codesOverlap(inputCodes, phoneticCodes(candTokens))
		s := similarity(inputTokens, candTokens, input, candidate)

		switch {
		case overlap && s >= m.phoneticThreshold:
			if !bestPhonetic || s > bestScore {
				bestEntry, bestScore, bestPhonetic = entry, s, true
			}
		case !overlap && !bestPhonetic && s >= m.fuzzyThreshold && s > bestScore:
			bestEntry, bestScore = entry, s
		}
	}
	if bestEntry == "" {
		return input, 0, false
	}
	return bestEntry, bestScore, true
}

// phoneticCodes returns the union of Double Metaphone codes over tokens.
func phoneticCodes(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		primary, secondary := matchr.DoubleMetaphone(t)
		if primary != "" {
			codes[primary] = struct{}{}
		}
		if secondary != "" {
			codes[secondary] = struct{}{}
		}
	}
	return codes
}

func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// similarity is the best Jaro-Winkler score across full strings, the
// space-stripped concatenations, and all token pairs. The concatenated
// comparison catches split compounds ("waren korb"), the pairwise one
// catches a single misheard word inside a phrase.
func similarity(inputTokens, candTokens []string, inputFull, candFull string) float64 {
	score := matchr.JaroWinkler(inputFull, candFull, false)
	if len(inputTokens) > 1 || len(candTokens) > 1 {
		joined := matchr.JaroWinkler(strings.Join(inputTokens, ""), strings.Join(candTokens, ""), false)
		if joined > score {
			score = joined
		}
	}
	for _, it := range inputTokens {
		for _, ct := range candTokens {
			if s := matchr.JaroWinkler(it, ct, false); s > score {
				score = s
			}
		}
	}
	return score
}
