// Package events implements the typed publish/subscribe bus that carries
// pipeline state changes, results, errors and metric updates to the
// surrounding application.
//
// Each component publishes only the event types it owns; consumers subscribe
// per type. Delivery is synchronous and in subscription order, matching the
// single-threaded event-driven model of the pipeline: a handler runs to
// completion before the publisher continues.
package events

import (
	"sync"
	"time"
)

// Type names a pipeline event.
type Type string

const (
	Initialized            Type = "initialized"
	ListeningStarted       Type = "listening_started"
	ListeningStopped       Type = "listening_stopped"
	Result                 Type = "result"
	Error                  Type = "error"
	LowConfidence          Type = "low_confidence"
	ClarificationRequested Type = "clarification_requested"
	SpeechStart            Type = "speechStart"
	SpeechEnd              Type = "speechEnd"
	QueueUpdated           Type = "queueUpdated"
	MetricsUpdate          Type = "metricsUpdate"
	LanguageChanged        Type = "languageChanged"
	Timeout                Type = "timeout"
	AudioLevel             Type = "audioLevel"
	VoiceActivity          Type = "voiceActivity"
	Navigation             Type = "navigation"
	CartUpdated            Type = "cartUpdated"
)

// Event is a single published occurrence. Payload holds one of the typed
// payload structs below, depending on Type.
type Event struct {
	Type    Type      `json:"type"`
	Time    time.Time `json:"time"`
	Payload any       `json:"payload,omitempty"`
}

// ResultPayload accompanies [Result] events.
type ResultPayload struct {
	SessionID  string  `json:"session_id"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Final      bool    `json:"final"`
}

// ErrorPayload accompanies [Error] events.
type ErrorPayload struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// SpeechPayload accompanies [SpeechStart] and [SpeechEnd] events.
type SpeechPayload struct {
	RequestID string `json:"request_id"`
	Text      string `json:"text"`
	Cached    bool   `json:"cached"`
}

// QueuePayload accompanies [QueueUpdated] events.
type QueuePayload struct {
	Depth int `json:"depth"`
}

// LevelPayload accompanies [AudioLevel] events; Level is normalized to [0,1].
type LevelPayload struct {
	Level float64 `json:"level"`
}

// ActivityPayload accompanies [VoiceActivity] events.
type ActivityPayload struct {
	Active bool `json:"active"`
}

// TimeoutPayload accompanies [Timeout] events. Kind is "session" or
// "no_speech".
type TimeoutPayload struct {
	SessionID string `json:"session_id"`
	Kind      string `json:"kind"`
}

// LanguagePayload accompanies [LanguageChanged] events.
type LanguagePayload struct {
	Language string `json:"language"`
}

// ClarificationPayload accompanies [ClarificationRequested] events.
type ClarificationPayload struct {
	SessionID string `json:"session_id"`
	Prompt    string `json:"prompt"`
}

// MetricsPayload accompanies [MetricsUpdate] events. It is a running
// snapshot of pipeline counters since startup.
type MetricsPayload struct {
	Transcripts   int `json:"transcripts"`
	LowConfidence int `json:"low_confidence"`
	Utterances    int `json:"utterances"`
	CachedSpeech  int `json:"cached_speech"`
	Errors        int `json:"errors"`
	Timeouts      int `json:"timeouts"`
}

// NavigationPayload accompanies [Navigation] events.
type NavigationPayload struct {
	Target string `json:"target"`
}

// CartPayload accompanies [CartUpdated] events.
type CartPayload struct {
	Items   int    `json:"items"`
	Summary string `json:"summary"`
}

// Handler receives published events. Handlers must not block; they run on
// the publisher's goroutine.
type Handler func(Event)

// subscriber pairs a handler with its registration id for removal.
type subscriber struct {
	id int
	fn Handler
}

// Bus is the pipeline event bus. The zero value is not usable; construct
// with [NewBus]. All methods are safe for concurrent use, though the
// pipeline itself publishes from a single goroutine.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	byType map[Type][]subscriber
	all    []subscriber
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{byType: make(map[Type][]subscriber)}
}

// Subscribe registers fn for events of type t and returns an unsubscribe
// function. Handlers registered for the same type are invoked in
// subscription order.
func (b *Bus) Subscribe(t Type, fn Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.byType[t] = append(b.byType[t], subscriber{id: id, fn: fn})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.byType[t] = removeSubscriber(b.byType[t], id)
	}
}

// SubscribeAll registers fn for every event type. Used by the websocket
// bridge and by tests that record full event streams.
func (b *Bus) SubscribeAll(fn Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.all = append(b.all, subscriber{id: id, fn: fn})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.all = removeSubscriber(b.all, id)
	}
}

// Publish delivers an event of type t with the given payload to all matching
// subscribers, stamping the current time.
func (b *Bus) Publish(t Type, payload any) {
	ev := Event{Type: t, Time: time.Now(), Payload: payload}

	b.mu.RLock()
	typed := make([]subscriber, len(b.byType[t]))
	copy(typed, b.byType[t])
	all := make([]subscriber, len(b.all))
	copy(all, b.all)
	b.mu.RUnlock()

	for _, s := range typed {
		s.fn(ev)
	}
	for _, s := range all {
		s.fn(ev)
	}
}

func removeSubscriber(subs []subscriber, id int) []subscriber {
	for i, s := range subs {
		if s.id == id {
			return append(subs[:i:i], subs[i+1:]...)
		}
	}
	return subs
}
