package session

import (
	"sync"
	"time"

	"github.com/ordervox/ordervox/internal/intent"
)

// HistoryEntry is one audited dispatch: what was heard, how it was
// interpreted, and what happened.
type HistoryEntry struct {
	// Transcript is the normalized accepted transcript.
	Transcript string

	// Confidence is the gated confidence of the transcript.
	Confidence float64

	// Analysis is the interpretation that drove the dispatch. For local
	// command matches only Intent and Category are filled.
	Analysis intent.Analysis

	// Result describes the dispatch outcome ("navigated to menu",
	// "added 2x cola", an error string).
	Result string

	// Timestamp records when the dispatch completed.
	Timestamp time.Time
}

// History is the bounded, session-scoped command audit trail. It enforces
// a maximum entry count and a maximum age; entries beyond either limit are
// evicted on every Add. Safe for concurrent use.
type History struct {
	mu      sync.RWMutex
	entries []HistoryEntry
	maxSize int
	maxAge  time.Duration
}

// NewHistory creates a history retaining at most maxSize entries, each for
// at most maxAge.
func NewHistory(maxSize int, maxAge time.Duration) *History {
	return &History{
		entries: make([]HistoryEntry, 0, maxSize),
		maxSize: maxSize,
		maxAge:  maxAge,
	}
}

// Add appends an entry and evicts entries exceeding the size or age limit.
func (h *History) Add(entry HistoryEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	h.entries = append(h.entries, entry)
	h.evict()
}

// evict drops entries over the size limit (oldest first) and entries older
// than maxAge. Caller holds h.mu.
func (h *History) evict() {
	if len(h.entries) > h.maxSize {
		h.entries = h.entries[len(h.entries)-h.maxSize:]
	}
	if h.maxAge <= 0 {
		return
	}
	cutoff := time.Now().Add(-h.maxAge)
	idx := 0
	for idx < len(h.entries) && h.entries[idx].Timestamp.Before(cutoff) {
		idx++
	}
	if idx > 0 {
		h.entries = h.entries[idx:]
	}
}

// Recent returns up to n entries in chronological order, newest last.
func (h *History) Recent(n int) []HistoryEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if n > len(h.entries) {
		n = len(h.entries)
	}
	out := make([]HistoryEntry, n)
	copy(out, h.entries[len(h.entries)-n:])
	return out
}

// Transcripts returns the transcripts of up to n recent entries,
// chronological order, for the resolver's session context.
func (h *History) Transcripts(n int) []string {
	recent := h.Recent(n)
	out := make([]string, len(recent))
	for i, e := range recent {
		out[i] = e.Transcript
	}
	return out
}

// Len returns the number of retained entries.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

// Clear drops all entries. Called when a session ends.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = h.entries[:0]
}
