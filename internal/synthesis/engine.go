// Package synthesis implements the text-to-speech half of the voice
// pipeline: voice selection, the prioritized speech queue, duration
// caching, chunking of long announcements, and tone-based prosody mapping.
//
// Requests are queued by priority (high before normal before low, stable
// within a tier) and a single poller speaks them one at a time, so at most
// one utterance ever plays. Callers get a [Handle] that resolves once the
// whole request (all chunks) finished, was cancelled, or failed.
package synthesis

import (
	"container/heap"
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ordervox/ordervox/internal/events"
	"github.com/ordervox/ordervox/internal/observe"
	"github.com/ordervox/ordervox/internal/voiceerr"
	"github.com/ordervox/ordervox/pkg/platform"
	"github.com/ordervox/ordervox/pkg/types"
)

// Prosody holds the per-language base parameters. Tone multipliers are
// applied on top of these.
type Prosody struct {
	Pitch  float64
	Rate   float64
	Volume float64
}

// EngineConfig holds the synthesis engine tunables.
type EngineConfig struct {
	// QueueCapacity bounds the number of queued requests (chunks count
	// individually). Speak rejects with a queue_overflow error beyond it.
	QueueCapacity int

	// MaxUtteranceLength is the chunking threshold in runes.
	MaxUtteranceLength int

	// ChunkPause is the gap between consecutive chunks of one request.
	ChunkPause time.Duration

	// PollInterval is the queue poll cadence. Zero means 10ms.
	PollInterval time.Duration

	// DefaultLanguage is used when a Speak call does not name one.
	DefaultLanguage string

	// Prosody maps language tag to base parameters. Missing languages use
	// neutral defaults (1/1/1).
	Prosody map[string]Prosody
}

// Engine is the synthesis engine. Construct with [NewEngine], then call
// [Engine.Start] once to launch the queue poller.
type Engine struct {
	synth    platform.Synthesizer
	selector *VoiceSelector
	cache    *durationCache
	bus      *events.Bus
	metrics  *observe.Metrics
	log      *slog.Logger
	cfg      EngineConfig

	mu          sync.Mutex
	queue       requestQueue
	seq         uint64
	speaking    bool
	cancelSpeak context.CancelFunc
	running     bool
}

// NewEngine builds an engine over the given synthesizer and voice
// selector. cacheCapacity bounds the duration cache.
func NewEngine(synth platform.Synthesizer, selector *VoiceSelector, cacheCapacity int, cfg EngineConfig, bus *events.Bus, metrics *observe.Metrics, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Millisecond
	}
	return &Engine{
		synth:    synth,
		selector: selector,
		cache:    newDurationCache(cacheCapacity),
		bus:      bus,
		metrics:  metrics,
		log:      log.With("component", "synthesis"),
		cfg:      cfg,
	}
}

// Start launches the queue poller. It fails when the platform has no
// synthesizer or the engine is already running. The poller exits when ctx
// is cancelled.
func (e *Engine) Start(ctx context.Context) error {
	if e.synth == nil {
		return voiceerr.Unsupported("speech synthesis")
	}
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return errors.New("synthesis: engine already running")
	}
	e.running = true
	e.mu.Unlock()

	go e.run(ctx)
	return nil
}

func (e *Engine) run(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			e.Stop()
			e.mu.Lock()
			e.running = false
			e.mu.Unlock()
			return
		case <-ticker.C:
			e.pollOnce(ctx)
		}
	}
}

// SpeakOption configures a single Speak call.
type SpeakOption func(*speakParams)

type speakParams struct {
	priority  types.Priority
	tone      types.Tone
	language  string
	voiceName string
	volume    *float64
	rate      *float64
	pitch     *float64
	cache     bool
}

// WithPriority sets the queue priority. Default: normal.
func WithPriority(p types.Priority) SpeakOption {
	return func(sp *speakParams) { sp.priority = p }
}

// WithTone sets the prosody tone. Default: neutral.
func WithTone(t types.Tone) SpeakOption {
	return func(sp *speakParams) { sp.tone = t }
}

// WithLanguage sets the utterance language. Default: the engine's
// configured default language.
func WithLanguage(language string) SpeakOption {
	return func(sp *speakParams) { sp.language = language }
}

// WithVoiceName pins a specific platform voice, bypassing the selector.
func WithVoiceName(name string) SpeakOption {
	return func(sp *speakParams) { sp.voiceName = name }
}

// WithVolume overrides the language's base volume.
func WithVolume(v float64) SpeakOption {
	return func(sp *speakParams) { sp.volume = &v }
}

// WithRate overrides the language's base rate.
func WithRate(r float64) SpeakOption {
	return func(sp *speakParams) { sp.rate = &r }
}

// WithPitch overrides the language's base pitch.
func WithPitch(p float64) SpeakOption {
	return func(sp *speakParams) { sp.pitch = &p }
}

// WithCaching controls whether the completed duration is stored. Default:
// true.
func WithCaching(enabled bool) SpeakOption {
	return func(sp *speakParams) { sp.cache = enabled }
}

// Handle tracks one Speak call across all of its chunks.
type Handle struct {
	// ID identifies the request in speechStart/speechEnd events.
	ID string

	g *group
}

// Done returns a channel that receives exactly one value once every chunk
// of the request completed: nil on success, a cancellation error when the
// request was rejected by Stop, or the first synthesis error otherwise.
func (h *Handle) Done() <-chan error { return h.g.doneCh }

// group aggregates chunk completions into one Handle resolution.
type group struct {
	mu        sync.Mutex
	remaining int
	firstErr  error
	resolved  bool
	doneCh    chan error
}

func newGroup(chunks int) *group {
	return &group{remaining: chunks, doneCh: make(chan error, 1)}
}

// complete records one chunk outcome and resolves the group after the
// last one.
func (g *group) complete(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.resolved {
		return
	}
	if err != nil && g.firstErr == nil {
		g.firstErr = err
	}
	g.remaining--
	if g.remaining <= 0 {
		g.resolved = true
		g.doneCh <- g.firstErr
	}
}

// fail resolves the group immediately, regardless of remaining chunks.
// Used when Stop rejects queued requests.
func (g *group) fail(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.resolved {
		return
	}
	g.resolved = true
	g.doneCh <- err
}

// Speak builds a speech request and queues it. Long text is split into
// sentence-bounded chunks that are queued back to back at the same
// priority. The call returns once the request is queued; completion is
// observable through the returned handle. It fails synchronously with a
// queue_overflow error when the queue is at capacity.
func (e *Engine) Speak(ctx context.Context, text string, opts ...SpeakOption) (*Handle, error) {
	if e.synth == nil {
		return nil, voiceerr.Unsupported("speech synthesis")
	}

	sp := speakParams{
		priority: types.PriorityNormal,
		tone:     types.ToneNeutral,
		language: e.cfg.DefaultLanguage,
		cache:    true,
	}
	for _, o := range opts {
		o(&sp)
	}

	processed, profile := applyTone(text, sp.tone)
	chunks := splitChunks(processed, e.cfg.MaxUtteranceLength)
	if len(chunks) == 0 {
		return nil, voiceerr.Synthesis(errors.New("empty utterance text"))
	}

	base := e.baseProsody(sp.language)
	if sp.volume != nil {
		base.Volume = *sp.volume
	}
	if sp.rate != nil {
		base.Rate = *sp.rate
	}
	if sp.pitch != nil {
		base.Pitch = *sp.pitch
	}
	utter := platform.Utterance{
		Language: sp.language,
		Volume:   clamp(base.Volume*profile.volume, 0, 1),
		Rate:     clamp(base.Rate*profile.rate, 0.1, 10),
		Pitch:    clamp(base.Pitch*profile.pitch, 0, 2),
	}

	if sp.voiceName != "" {
		utter.Voice = sp.voiceName
	} else {
		voice, err := e.selector.Select(ctx, sp.language)
		if err != nil {
			return nil, err
		}
		utter.Voice = voice.Name
	}

	id := uuid.NewString()
	g := newGroup(len(chunks))

	e.mu.Lock()
	if len(e.queue)+len(chunks) > e.cfg.QueueCapacity {
		e.mu.Unlock()
		e.metrics.QueueOverflows.Add(context.Background(), 1)
		e.log.Warn("speech request rejected, queue full",
			"capacity", e.cfg.QueueCapacity, "chunks", len(chunks))
		return nil, voiceerr.QueueOverflow(e.cfg.QueueCapacity)
	}
	for i, chunk := range chunks {
		e.seq++
		r := &request{
			id:       id,
			text:     chunk,
			utter:    utter,
			tone:     sp.tone,
			priority: sp.priority,
			cache:    sp.cache,
			chunked:  i > 0,
			enqueued: time.Now(),
			seq:      e.seq,
			group:    g,
		}
		r.utter.Text = chunk
		heap.Push(&e.queue, r)
	}
	depth := len(e.queue)
	e.mu.Unlock()

	e.metrics.QueueDepth.Add(context.Background(), int64(len(chunks)))
	e.bus.Publish(events.QueueUpdated, events.QueuePayload{Depth: depth})
	return &Handle{ID: id, g: g}, nil
}

func (e *Engine) baseProsody(language string) Prosody {
	if p, ok := e.cfg.Prosody[language]; ok {
		if p.Pitch == 0 {
			p.Pitch = 1
		}
		if p.Rate == 0 {
			p.Rate = 1
		}
		if p.Volume == 0 {
			p.Volume = 1
		}
		return p
	}
	return Prosody{Pitch: 1, Rate: 1, Volume: 1}
}

// QueueDepth returns the number of queued (not yet started) requests.
func (e *Engine) QueueDepth() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

// CacheLen returns the number of cached durations.
func (e *Engine) CacheLen() int { return e.cache.Len() }

// Stop rejects every queued request with a cancellation error and cancels
// the in-flight utterance at the platform level. The engine keeps running
// and accepts new requests afterwards.
func (e *Engine) Stop() {
	e.mu.Lock()
	drained := make([]*request, len(e.queue))
	copy(drained, e.queue)
	e.queue = e.queue[:0]
	cancel := e.cancelSpeak
	e.mu.Unlock()

	for _, r := range drained {
		r.group.fail(voiceerr.Cancelled())
	}
	if cancel != nil {
		cancel()
	}
	if len(drained) > 0 {
		e.metrics.QueueDepth.Add(context.Background(), -int64(len(drained)))
		e.log.Info("speech queue cleared", "rejected", len(drained))
	}
	e.bus.Publish(events.QueueUpdated, events.QueuePayload{Depth: 0})
}

// pollOnce dequeues and speaks the head request when nothing is playing.
func (e *Engine) pollOnce(ctx context.Context) {
	e.mu.Lock()
	if e.speaking || e.queue.Len() == 0 {
		e.mu.Unlock()
		return
	}
	r := heap.Pop(&e.queue).(*request)
	e.speaking = true
	speakCtx, cancel := context.WithCancel(ctx)
	e.cancelSpeak = cancel
	depth := e.queue.Len()
	e.mu.Unlock()

	e.metrics.QueueDepth.Add(context.Background(), -1)
	e.bus.Publish(events.QueueUpdated, events.QueuePayload{Depth: depth})
	e.log.Debug("dequeued", "request", r.id, "priority", r.priority, "queue_wait", time.Since(r.enqueued))

	e.speakOne(speakCtx, r)
	cancel()

	e.mu.Lock()
	e.speaking = false
	e.cancelSpeak = nil
	e.mu.Unlock()
}

func (e *Engine) speakOne(ctx context.Context, r *request) {
	if r.chunked && e.cfg.ChunkPause > 0 {
		select {
		case <-ctx.Done():
			r.group.complete(voiceerr.Cancelled())
			return
		case <-time.After(e.cfg.ChunkPause):
		}
	}

	key := cacheKey{
		language: r.utter.Language,
		voice:    r.utter.Voice,
		volume:   r.utter.Volume,
		rate:     r.utter.Rate,
		pitch:    r.utter.Pitch,
		tone:     r.tone,
		text:     r.text,
	}
	if d, ok := e.cache.Get(key); ok {
		e.metrics.RecordCacheLookup(context.Background(), true)
		e.bus.Publish(events.SpeechStart, events.SpeechPayload{RequestID: r.id, Text: r.text, Cached: true})
		e.bus.Publish(events.SpeechEnd, events.SpeechPayload{RequestID: r.id, Text: r.text, Cached: true})
		e.log.Debug("cache hit", "request", r.id, "duration", d)
		r.group.complete(nil)
		return
	}
	e.metrics.RecordCacheLookup(context.Background(), false)

	e.bus.Publish(events.SpeechStart, events.SpeechPayload{RequestID: r.id, Text: r.text})
	d, err := e.synth.Speak(ctx, r.utter)
	e.bus.Publish(events.SpeechEnd, events.SpeechPayload{RequestID: r.id, Text: r.text})

	if err != nil {
		var verr *voiceerr.Error
		if errors.Is(err, context.Canceled) {
			verr = voiceerr.Cancelled()
		} else {
			verr = voiceerr.Synthesis(err)
		}
		// Per-utterance failures are logged and skipped; the queue moves on.
		e.log.Error("utterance failed", "request", r.id, "error", err)
		e.metrics.RecordError(context.Background(), string(verr.Code))
		r.group.complete(verr)
		return
	}

	e.metrics.SynthesisDuration.Record(context.Background(), d.Seconds())
	if r.cache {
		e.cache.Put(key, d)
	}
	r.group.complete(nil)
}

// Clarify speaks a clarification prompt at high priority so it jumps
// ahead of queued announcements. It satisfies the transcript processor's
// Speaker interface.
func (e *Engine) Clarify(ctx context.Context, language, prompt string) error {
	_, err := e.Speak(ctx, prompt,
		WithLanguage(language),
		WithPriority(types.PriorityHigh),
		WithTone(types.ToneFriendly),
	)
	return err
}
