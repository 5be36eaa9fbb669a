// Package transcript post-processes final recognition results before they
// reach intent resolution: dialect normalization, confidence estimation for
// platforms that omit scores, and the low-confidence clarification gate.
package transcript

import (
	"context"
	"log/slog"

	"github.com/ordervox/ordervox/internal/dialect"
	"github.com/ordervox/ordervox/internal/events"
	"github.com/ordervox/ordervox/internal/voiceerr"
	"github.com/ordervox/ordervox/pkg/types"
)

// Speaker voices the clarification prompt when a transcript is rejected.
// Implemented by the synthesis engine; prompts are spoken at high priority
// so they jump ahead of queued announcements.
type Speaker interface {
	Clarify(ctx context.Context, language, prompt string) error
}

// Option is a functional option for configuring a [Processor].
type Option func(*Processor)

// WithThreshold sets the minimum confidence for a transcript to pass the
// gate. Default: 0.65.
func WithThreshold(threshold float64) Option {
	return func(p *Processor) { p.threshold = threshold }
}

// WithWeights overrides the confidence-estimation weights.
func WithWeights(w Weights) Option {
	return func(p *Processor) { p.weights = w }
}

// WithSpeaker attaches the clarification speaker. When nil (the default)
// rejected transcripts only publish events.
func WithSpeaker(s Speaker) Option {
	return func(p *Processor) { p.speaker = s }
}

// WithLogger sets the logger. Default: slog.Default.
func WithLogger(log *slog.Logger) Option {
	return func(p *Processor) { p.log = log }
}

// Processor gates final transcripts on confidence and normalizes dialect
// vocabulary. Safe for concurrent use; it holds no mutable state.
type Processor struct {
	norm      *dialect.Normalizer
	bus       *events.Bus
	threshold float64
	weights   Weights
	speaker   Speaker
	log       *slog.Logger
}

// NewProcessor builds a processor over the given normalizer and event bus.
func NewProcessor(norm *dialect.Normalizer, bus *events.Bus, opts ...Option) *Processor {
	p := &Processor{
		norm:      norm,
		bus:       bus,
		threshold: 0.65,
		weights:   DefaultWeights(),
		log:       slog.Default(),
	}
	for _, o := range opts {
		o(p)
	}
	p.log = p.log.With("component", "transcript")
	return p
}

// clarificationPrompts holds the spoken clarification text per base
// language. Looked up via the same base-language fallback as error messages.
var clarificationPrompts = map[string]string{
	"en": "I did not quite catch that. Could you repeat it?",
	"de": "Das habe ich nicht ganz verstanden. Können Sie das wiederholen?",
	"fr": "Je n'ai pas bien compris. Pouvez-vous répéter ?",
	"it": "Non ho capito bene. Può ripetere?",
}

// Process gates a final transcript on confidence, then normalizes it. The
// gate runs on the raw recognizer text; only accepted transcripts are
// dialect-normalized, and rejected ones carry the text as heard. It returns
// the result and true when the transcript passed. Rejected transcripts
// publish low_confidence and clarification_requested events and trigger the
// spoken clarification; the returned error is the speaker failure, if any.
func (p *Processor) Process(ctx context.Context, tr types.TranscriptResult) (types.TranscriptResult, bool, error) {
	if !tr.HasConfidence {
		tr.Confidence = Estimate(tr.Text, p.weights)
		tr.HasConfidence = true
		p.log.Debug("estimated confidence", "session", tr.SessionID, "confidence", tr.Confidence)
	}

	if tr.Confidence >= p.threshold {
		tr.Text = p.norm.Normalize(tr.Text, tr.Language)
		return tr, true, nil
	}

	p.log.Info("transcript below confidence threshold",
		"session", tr.SessionID, "confidence", tr.Confidence, "threshold", p.threshold)
	p.bus.Publish(events.LowConfidence, events.ResultPayload{
		SessionID:  tr.SessionID,
		Text:       tr.Text,
		Confidence: tr.Confidence,
		Final:      true,
	})

	prompt := clarificationPrompt(tr.Language)
	p.bus.Publish(events.ClarificationRequested, events.ClarificationPayload{
		SessionID: tr.SessionID,
		Prompt:    prompt,
	})

	if p.speaker != nil {
		if err := p.speaker.Clarify(ctx, tr.Language, prompt); err != nil {
			// Queue overflow here just means the user is already being
			// spoken to; drop the prompt rather than failing the gate.
			if voiceerr.CodeOf(err) == voiceerr.CodeQueueOverflow {
				p.log.Warn("clarification prompt dropped", "error", err)
				return tr, false, nil
			}
			return tr, false, err
		}
	}
	return tr, false, nil
}

// Threshold returns the configured gate threshold.
func (p *Processor) Threshold() float64 { return p.threshold }

func clarificationPrompt(language string) string {
	if msg, ok := clarificationPrompts[dialect.BaseLanguage(language)]; ok {
		return msg
	}
	return clarificationPrompts["en"]
}
