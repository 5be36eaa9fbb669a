// Package types defines the shared types used across the ordervox packages.
//
// These types form the lingua franca between the recognition engine, the
// transcript processor, the session orchestrator, and the synthesis engine.
// They are intentionally minimal; each package defines its own domain
// types, but cross-cutting data structures live here to avoid circular
// imports.
package types

import "time"

// Alternative is one recognition hypothesis with its score.
type Alternative struct {
	Text       string
	Confidence float64
}

// TranscriptResult is a recognition result flowing through the pipeline.
// It is immutable once emitted.
type TranscriptResult struct {
	// SessionID identifies the recognition session that produced the result.
	SessionID string

	// Language is the BCP-47 tag the result was recognized in. After a
	// fallback-engine switch this is the fallback language, not the
	// session's original one.
	Language string

	// Text is the top hypothesis, before dialect normalization.
	Text string

	// Confidence is in [0,1]. Valid only when HasConfidence is true; when
	// false the platform did not report a score and the transcript
	// processor estimates one.
	Confidence    float64
	HasConfidence bool

	// Alternatives lists further hypotheses, best first.
	Alternatives []Alternative

	// Final marks an authoritative result; interim results may still change.
	Final bool

	// Timestamp marks when the result was emitted.
	Timestamp time.Time
}

// Priority orders queued speech requests.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
)

// String returns the lowercase priority name.
func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityNormal:
		return "normal"
	case PriorityLow:
		return "low"
	default:
		return "unknown"
	}
}

// Tone selects the prosody character of a synthesized utterance.
type Tone string

const (
	ToneNeutral      Tone = "neutral"
	ToneFriendly     Tone = "friendly"
	ToneProfessional Tone = "professional"
	ToneExcited      Tone = "excited"
	ToneCalm         Tone = "calm"
	ToneError        Tone = "error"
	ToneSuccess      Tone = "success"
)

// Entity is a structured parameter extracted from a transcript, either by
// the external intent resolver or by local extraction.
type Entity struct {
	// Type classifies the entity ("product", "quantity", "modifier", ...).
	Type string

	// Value is the surface form ("pizza", "zwei", "ohne zwiebeln").
	Value string

	// Position is the token index of the entity in the normalized
	// transcript, used by the proximity pairing heuristic.
	Position int
}

// OrderItem is one line of an order intent handed to the order handler.
type OrderItem struct {
	Product   string
	Quantity  int
	Modifiers []string
}
