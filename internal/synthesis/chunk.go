package synthesis

import "strings"

// splitChunks breaks text into sentence-bounded chunks of at most max
// runes. Sentences are grouped greedily; a single sentence longer than max
// is split at word boundaries. Text within the limit comes back as a
// single chunk.
func splitChunks(text string, max int) []string {
	text = strings.TrimSpace(text)
	if max <= 0 || len([]rune(text)) <= max {
		if text == "" {
			return nil
		}
		return []string{text}
	}

	var chunks []string
	var current strings.Builder
	currentLen := 0

	flush := func() {
		if currentLen > 0 {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
			currentLen = 0
		}
	}

	for _, sentence := range splitSentences(text) {
		runes := len([]rune(sentence))
		if runes > max {
			flush()
			chunks = append(chunks, splitWords(sentence, max)...)
			continue
		}
		if currentLen > 0 && currentLen+1+runes > max {
			flush()
		}
		if currentLen > 0 {
			current.WriteByte(' ')
			currentLen++
		}
		current.WriteString(sentence)
		currentLen += runes
	}
	flush()
	return chunks
}

// splitSentences cuts text after sentence-final punctuation, keeping the
// punctuation with the sentence.
func splitSentences(text string) []string {
	var out []string
	var b strings.Builder
	for _, r := range text {
		b.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(b.String()); s != "" {
				out = append(out, s)
			}
			b.Reset()
		}
	}
	if s := strings.TrimSpace(b.String()); s != "" {
		out = append(out, s)
	}
	return out
}

// splitWords breaks an overlong sentence at word boundaries. A single word
// longer than max becomes its own chunk; platforms handle those fine.
func splitWords(sentence string, max int) []string {
	var out []string
	var b strings.Builder
	currentLen := 0
	for _, word := range strings.Fields(sentence) {
		runes := len([]rune(word))
		if currentLen > 0 && currentLen+1+runes > max {
			out = append(out, b.String())
			b.Reset()
			currentLen = 0
		}
		if currentLen > 0 {
			b.WriteByte(' ')
			currentLen++
		}
		b.WriteString(word)
		currentLen += runes
	}
	if currentLen > 0 {
		out = append(out, b.String())
	}
	return out
}
