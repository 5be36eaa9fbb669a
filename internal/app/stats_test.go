package app

import (
	"sync"
	"testing"

	"github.com/ordervox/ordervox/internal/events"
)

func TestStatsPublishesMetricsUpdates(t *testing.T) {
	bus := events.NewBus()
	stats := newPipelineStats(bus)
	defer stats.Close()

	var mu sync.Mutex
	var updates []events.MetricsPayload
	bus.Subscribe(events.MetricsUpdate, func(ev events.Event) {
		mu.Lock()
		updates = append(updates, ev.Payload.(events.MetricsPayload))
		mu.Unlock()
	})

	bus.Publish(events.Result, events.ResultPayload{Text: "zwei cola", Confidence: 0.9, Final: true})
	bus.Publish(events.LowConfidence, events.ResultPayload{Text: "mumble", Confidence: 0.2})
	bus.Publish(events.SpeechStart, events.SpeechPayload{RequestID: "r1", Text: "hallo"})
	bus.Publish(events.SpeechStart, events.SpeechPayload{RequestID: "r2", Text: "hallo", Cached: true})
	bus.Publish(events.Error, events.ErrorPayload{Code: "network", Retryable: true})
	bus.Publish(events.Timeout, events.TimeoutPayload{Kind: "no_speech"})
	// Events without counters must not produce an update.
	bus.Publish(events.Navigation, events.NavigationPayload{Target: "menu"})

	mu.Lock()
	defer mu.Unlock()
	if len(updates) != 6 {
		t.Fatalf("got %d metricsUpdate events, want 6", len(updates))
	}
	last := updates[len(updates)-1]
	want := events.MetricsPayload{
		Transcripts:   1,
		LowConfidence: 1,
		Utterances:    2,
		CachedSpeech:  1,
		Errors:        1,
		Timeouts:      1,
	}
	if last != want {
		t.Fatalf("final snapshot = %+v, want %+v", last, want)
	}
	if got := stats.Snapshot(); got != want {
		t.Fatalf("Snapshot() = %+v, want %+v", got, want)
	}
}
