package transcript

import (
	"context"
	"sync"
	"testing"

	"github.com/ordervox/ordervox/internal/dialect"
	"github.com/ordervox/ordervox/internal/events"
	"github.com/ordervox/ordervox/internal/voiceerr"
	"github.com/ordervox/ordervox/pkg/types"
)

// clarifyCall records a single Clarify invocation.
type clarifyCall struct {
	language string
	prompt   string
}

type fakeSpeaker struct {
	mu    sync.Mutex
	err   error
	calls []clarifyCall
}

func (s *fakeSpeaker) Clarify(_ context.Context, language, prompt string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, clarifyCall{language: language, prompt: prompt})
	return s.err
}

func result(text string, confidence float64) types.TranscriptResult {
	return types.TranscriptResult{
		SessionID:     "s1",
		Language:      "de-CH",
		Text:          text,
		Confidence:    confidence,
		HasConfidence: true,
		Final:         true,
	}
}

func TestProcessAcceptsAboveThreshold(t *testing.T) {
	bus := events.NewBus()
	p := NewProcessor(dialect.Default(), bus)

	out, ok, err := p.Process(context.Background(), result("zwei cola bitte", 0.9))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !ok {
		t.Fatal("transcript above threshold must pass")
	}
	if out.Text != "zwei cola bitte" {
		t.Fatalf("text = %q", out.Text)
	}
}

func TestProcessNormalizesDialect(t *testing.T) {
	bus := events.NewBus()
	p := NewProcessor(dialect.Default(), bus)

	out, ok, _ := p.Process(context.Background(), result("chund ig es weggli ha", 0.9))
	if !ok {
		t.Fatal("expected acceptance")
	}
	if out.Text != "können ig es brötchen ha" {
		t.Fatalf("normalized text = %q", out.Text)
	}
}

func TestProcessRejectsBelowThreshold(t *testing.T) {
	bus := events.NewBus()
	var lowConf, clarified int
	var clarPrompt string
	bus.Subscribe(events.LowConfidence, func(events.Event) { lowConf++ })
	bus.Subscribe(events.ClarificationRequested, func(ev events.Event) {
		clarified++
		clarPrompt = ev.Payload.(events.ClarificationPayload).Prompt
	})
	speaker := &fakeSpeaker{}
	p := NewProcessor(dialect.Default(), bus, WithSpeaker(speaker))

	_, ok, err := p.Process(context.Background(), result("bier", 0.3))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if ok {
		t.Fatal("transcript below threshold must be rejected")
	}
	if lowConf != 1 || clarified != 1 {
		t.Fatalf("events: low_confidence=%d clarification=%d, want 1/1", lowConf, clarified)
	}
	if len(speaker.calls) != 1 {
		t.Fatalf("speaker called %d times, want 1", len(speaker.calls))
	}
	// de-CH transcripts get the German prompt, and the spoken prompt
	// matches the published one.
	if speaker.calls[0].language != "de-CH" || speaker.calls[0].prompt != clarPrompt {
		t.Fatalf("clarify call = %+v, event prompt = %q", speaker.calls[0], clarPrompt)
	}
	if clarPrompt != clarificationPrompts["de"] {
		t.Fatalf("prompt = %q, want german prompt", clarPrompt)
	}
}

func TestProcessRejectedKeepsRawText(t *testing.T) {
	bus := events.NewBus()
	var published string
	bus.Subscribe(events.LowConfidence, func(ev events.Event) {
		published = ev.Payload.(events.ResultPayload).Text
	})
	p := NewProcessor(dialect.Default(), bus)

	// Dialect vocabulary that would change under normalization.
	out, ok, err := p.Process(context.Background(), result("weggli", 0.3))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if ok {
		t.Fatal("expected rejection")
	}
	if out.Text != "weggli" {
		t.Fatalf("rejected text = %q, want the transcript as heard", out.Text)
	}
	if published != "weggli" {
		t.Fatalf("low_confidence text = %q, want the transcript as heard", published)
	}
}

func TestProcessCustomThreshold(t *testing.T) {
	bus := events.NewBus()
	p := NewProcessor(dialect.Default(), bus, WithThreshold(0.2))

	if _, ok, _ := p.Process(context.Background(), result("bier", 0.3)); !ok {
		t.Fatal("0.3 must pass a 0.2 threshold")
	}
}

func TestProcessEstimatesMissingConfidence(t *testing.T) {
	bus := events.NewBus()
	p := NewProcessor(dialect.Default(), bus)

	tr := result("ich möchte zwei grosse cola und ein hähnchen bitte", 0)
	tr.HasConfidence = false
	out, ok, _ := p.Process(context.Background(), tr)
	if !ok {
		t.Fatalf("long utterance estimated at %.2f, expected acceptance", out.Confidence)
	}
	if !out.HasConfidence || out.Confidence <= 0 {
		t.Fatalf("confidence not estimated: %+v", out)
	}
}

func TestProcessQueueOverflowDropsPrompt(t *testing.T) {
	bus := events.NewBus()
	speaker := &fakeSpeaker{err: voiceerr.QueueOverflow(16)}
	p := NewProcessor(dialect.Default(), bus, WithSpeaker(speaker))

	_, ok, err := p.Process(context.Background(), result("hm", 0.1))
	if ok {
		t.Fatal("expected rejection")
	}
	if err != nil {
		t.Fatalf("queue overflow must not be surfaced: %v", err)
	}
}

func TestProcessSpeakerFailureSurfaces(t *testing.T) {
	bus := events.NewBus()
	speaker := &fakeSpeaker{err: voiceerr.Synthesis(nil)}
	p := NewProcessor(dialect.Default(), bus, WithSpeaker(speaker))

	_, _, err := p.Process(context.Background(), result("hm", 0.1))
	if voiceerr.CodeOf(err) != voiceerr.CodeSynthesis {
		t.Fatalf("err = %v, want synthesis failure", err)
	}
}

func TestEstimate(t *testing.T) {
	w := DefaultWeights()
	cases := []struct {
		name string
		text string
		low  float64
		high float64
	}{
		{"empty", "", 0, 0},
		{"short fragment", "eh", 0, 0.35},
		{"hesitation only", "ähm äh", 0, 0.45},
		{"single word", "cola", 0.4, 0.7},
		{"full order", "ich möchte zwei cola und ein bier bitte", 0.75, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Estimate(tc.text, w)
			if got < tc.low || got > tc.high {
				t.Fatalf("Estimate(%q) = %.2f, want in [%.2f, %.2f]", tc.text, got, tc.low, tc.high)
			}
			if got < 0 || got > 1 {
				t.Fatalf("Estimate out of range: %.2f", got)
			}
		})
	}

	// Longer utterances never score below shorter prefixes of themselves.
	if Estimate("zwei cola", w) > Estimate("zwei cola und ein bier", w) {
		t.Fatal("longer utterance scored lower than its prefix")
	}
}
