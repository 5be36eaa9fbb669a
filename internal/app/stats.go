package app

import (
	"sync"

	"github.com/ordervox/ordervox/internal/events"
)

// pipelineStats folds bus events into running counters and republishes a
// metricsUpdate snapshot whenever a counter changes, so the frontend can
// show pipeline health without scraping /metrics.
type pipelineStats struct {
	bus *events.Bus

	mu   sync.Mutex
	snap events.MetricsPayload

	unsubscribe func()
}

func newPipelineStats(bus *events.Bus) *pipelineStats {
	s := &pipelineStats{bus: bus}
	s.unsubscribe = bus.SubscribeAll(s.observe)
	return s
}

func (s *pipelineStats) observe(ev events.Event) {
	s.mu.Lock()
	switch ev.Type {
	case events.Result:
		s.snap.Transcripts++
	case events.LowConfidence:
		s.snap.LowConfidence++
	case events.SpeechStart:
		s.snap.Utterances++
		if p, ok := ev.Payload.(events.SpeechPayload); ok && p.Cached {
			s.snap.CachedSpeech++
		}
	case events.Error:
		s.snap.Errors++
	case events.Timeout:
		s.snap.Timeouts++
	default:
		// Everything else, including our own metricsUpdate, leaves the
		// counters alone.
		s.mu.Unlock()
		return
	}
	snap := s.snap
	s.mu.Unlock()

	s.bus.Publish(events.MetricsUpdate, snap)
}

// Snapshot returns the current counter values.
func (s *pipelineStats) Snapshot() events.MetricsPayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Close detaches the stats collector from the bus.
func (s *pipelineStats) Close() {
	s.unsubscribe()
}
