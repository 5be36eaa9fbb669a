// Package session orchestrates one voice interaction session: it owns the
// microphone lifecycle, routes accepted transcripts to fixed-vocabulary
// command handlers or the external intent resolver, merges entities,
// dispatches by intent category, and drives the spoken confirmations.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ordervox/ordervox/internal/audioinput"
	"github.com/ordervox/ordervox/internal/dialect"
	"github.com/ordervox/ordervox/internal/events"
	"github.com/ordervox/ordervox/internal/intent"
	"github.com/ordervox/ordervox/internal/observe"
	"github.com/ordervox/ordervox/internal/recognition"
	"github.com/ordervox/ordervox/internal/resilience"
	"github.com/ordervox/ordervox/internal/synthesis"
	"github.com/ordervox/ordervox/internal/transcript"
	"github.com/ordervox/ordervox/internal/voiceerr"
	"github.com/ordervox/ordervox/pkg/types"
)

// Navigator receives navigation dispatches from voice commands and
// resolved navigation intents.
type Navigator interface {
	// Navigate moves the application to the named view ("menu", "cart",
	// "checkout", ...).
	Navigate(ctx context.Context, target string) error

	// CurrentPage returns the active view, passed to the intent resolver
	// as context.
	CurrentPage() string
}

// OrderManager receives order dispatches.
type OrderManager interface {
	// AddItems adds the resolved items to the cart.
	AddItems(ctx context.Context, items []types.OrderItem) error

	// ShowCart displays the cart view.
	ShowCart(ctx context.Context) error

	// Checkout starts the checkout flow.
	Checkout(ctx context.Context) error

	// Cancel abandons the current order.
	Cancel(ctx context.Context) error

	// Summary returns a short spoken-friendly cart description.
	Summary() string
}

// Config holds the orchestrator tunables.
type Config struct {
	// Language is the session language (BCP-47), used for spoken
	// confirmations and entity extraction.
	Language string

	// ResolverTimeout bounds each intent resolver call.
	ResolverTimeout time.Duration

	// HistorySize and HistoryMaxAge bound the command audit trail.
	HistorySize   int
	HistoryMaxAge time.Duration
}

// Orchestrator is the session layer. Construct with [NewOrchestrator],
// wire handlers with [Orchestrator.SetHandlers], then StartSession /
// EndSession per interaction.
type Orchestrator struct {
	cfg       Config
	engine    *recognition.Engine
	speech    *synthesis.Engine
	processor *transcript.Processor
	audio     *audioinput.Manager
	resolver  intent.Resolver
	breaker   *resilience.Breaker
	matcher   *CommandMatcher
	history   *History
	bus       *events.Bus
	metrics   *observe.Metrics
	log       *slog.Logger

	nav    Navigator
	orders OrderManager

	mu         sync.Mutex
	active     bool
	ctx        context.Context
	lastSpoken string
}

// NewOrchestrator wires the session layer over the pipeline components.
func NewOrchestrator(
	cfg Config,
	engine *recognition.Engine,
	speech *synthesis.Engine,
	processor *transcript.Processor,
	audio *audioinput.Manager,
	resolver intent.Resolver,
	breaker *resilience.Breaker,
	bus *events.Bus,
	metrics *observe.Metrics,
	log *slog.Logger,
) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	if cfg.ResolverTimeout <= 0 {
		cfg.ResolverTimeout = 5 * time.Second
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 50
	}
	o := &Orchestrator{
		cfg:       cfg,
		engine:    engine,
		speech:    speech,
		processor: processor,
		audio:     audio,
		resolver:  resolver,
		breaker:   breaker,
		matcher:   NewCommandMatcher(),
		history:   NewHistory(cfg.HistorySize, cfg.HistoryMaxAge),
		bus:       bus,
		metrics:   metrics,
		log:       log.With("component", "session"),
	}
	engine.OnFinal(o.handleTranscript)
	engine.OnFailure(o.handleFailure)
	return o
}

// SetHandlers wires the application-side handlers. Must be called before
// StartSession.
func (o *Orchestrator) SetHandlers(nav Navigator, orders OrderManager) {
	o.nav = nav
	o.orders = orders
}

// History returns the session's command audit trail.
func (o *Orchestrator) History() *History { return o.history }

// Active reports whether a session is running.
func (o *Orchestrator) Active() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active
}

// StartSession acquires the microphone and arms recognition. The
// microphone is released again on every failure path.
func (o *Orchestrator) StartSession(ctx context.Context) error {
	o.mu.Lock()
	if o.active {
		o.mu.Unlock()
		return fmt.Errorf("session: already active")
	}
	o.mu.Unlock()

	if err := o.audio.Acquire(ctx); err != nil {
		o.publishError(err)
		return err
	}
	if err := o.engine.Start(ctx); err != nil {
		o.audio.Release()
		o.publishError(err)
		return err
	}

	o.mu.Lock()
	o.active = true
	o.ctx = ctx
	o.mu.Unlock()
	o.log.Info("session started", "session", o.engine.SessionID(), "language", o.cfg.Language)
	return nil
}

// EndSession stops recognition and synthesis and releases the microphone.
// It is the universal cleanup path and safe to call in any state.
func (o *Orchestrator) EndSession() error {
	o.mu.Lock()
	wasActive := o.active
	o.active = false
	o.lastSpoken = ""
	o.mu.Unlock()

	err := o.engine.Stop()
	o.speech.Stop()
	if relErr := o.audio.Release(); err == nil {
		err = relErr
	}
	o.history.Clear()
	if wasActive {
		o.log.Info("session ended")
	}
	return err
}

// handleFailure reacts to a surfaced recognition failure: the error is
// spoken to the customer and the session torn down.
func (o *Orchestrator) handleFailure(verr *voiceerr.Error) {
	ctx := o.sessionContext()
	o.say(ctx, verr.Message(o.cfg.Language), types.ToneError)
	o.EndSession()
}

// handleTranscript runs for every final recognition result.
func (o *Orchestrator) handleTranscript(tr types.TranscriptResult) {
	ctx := o.sessionContext()

	// A final result ends the recognition run; re-arm so the conversation
	// continues until EndSession.
	defer o.resumeListening()

	tr, ok, err := o.processor.Process(ctx, tr)
	if err != nil {
		o.log.Error("clarification prompt failed", "error", err)
	}
	if !ok {
		return
	}

	if cmd, matched := o.matcher.Match(tr.Text, tr.Language); matched {
		o.dispatchCommand(ctx, cmd, tr)
		return
	}
	o.dispatchResolved(ctx, tr)
}

// resumeListening restarts recognition for the next utterance. It runs
// asynchronously because the engine is still finishing the current run
// when the final-transcript callback returns.
func (o *Orchestrator) resumeListening() {
	o.mu.Lock()
	active, ctx := o.active, o.ctx
	o.mu.Unlock()
	if !active {
		return
	}

	go func() {
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			o.mu.Lock()
			stillActive := o.active
			o.mu.Unlock()
			if !stillActive {
				return
			}
			if err := o.engine.Start(ctx); err == nil {
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
		o.log.Warn("could not resume listening")
	}()
}

// dispatchCommand executes a fixed-vocabulary command.
func (o *Orchestrator) dispatchCommand(ctx context.Context, cmd Command, tr types.TranscriptResult) {
	o.log.Info("voice command", "command", cmd, "text", tr.Text)

	var (
		result   string
		category intent.Category
		err      error
	)
	switch cmd {
	case CommandShowMenu:
		category = intent.CategoryNavigation
		err = o.nav.Navigate(ctx, "menu")
		result = "navigated to menu"
		o.say(ctx, o.text("menu_shown"), types.ToneFriendly)
	case CommandShowCart:
		category = intent.CategoryNavigation
		err = o.orders.ShowCart(ctx)
		result = "cart displayed"
		if summary := o.orders.Summary(); summary == "" {
			o.say(ctx, o.text("cart_empty"), types.ToneNeutral)
		} else {
			o.say(ctx, fmt.Sprintf(o.text("cart_shown"), summary), types.ToneNeutral)
		}
	case CommandCheckout:
		category = intent.CategoryOrder
		err = o.orders.Checkout(ctx)
		result = "checkout started"
		o.say(ctx, o.text("checkout_started"), types.ToneProfessional)
	case CommandHelp:
		category = intent.CategoryHelp
		result = "help spoken"
		o.say(ctx, o.text("help"), types.ToneFriendly)
	case CommandRepeat:
		category = intent.CategoryHelp
		result = "repeated last prompt"
		o.mu.Lock()
		last := o.lastSpoken
		o.mu.Unlock()
		if last == "" {
			last = o.text("nothing_to_repeat")
		}
		o.say(ctx, last, types.ToneNeutral)
	case CommandCancel:
		category = intent.CategoryOrder
		err = o.orders.Cancel(ctx)
		result = "order cancelled"
		o.say(ctx, o.text("cancelled"), types.ToneCalm)
	}
	if err != nil {
		o.log.Error("command handler failed", "command", cmd, "error", err)
		result = "handler error: " + err.Error()
	}

	o.history.Add(HistoryEntry{
		Transcript: tr.Text,
		Confidence: tr.Confidence,
		Analysis:   intent.Analysis{Intent: string(cmd), Category: category, Confidence: 1},
		Result:     result,
	})
}

// dispatchResolved forwards the transcript to the external resolver and
// dispatches on the returned category.
func (o *Orchestrator) dispatchResolved(ctx context.Context, tr types.TranscriptResult) {
	sctx := intent.SessionContext{
		SessionID:   tr.SessionID,
		Language:    tr.Language,
		Page:        o.nav.CurrentPage(),
		CartSummary: o.orders.Summary(),
		History:     o.history.Transcripts(5),
	}

	var analysis intent.Analysis
	start := time.Now()
	err := o.breaker.Execute(ctx, func(ctx context.Context) error {
		rctx, cancel := context.WithTimeout(ctx, o.cfg.ResolverTimeout)
		defer cancel()
		var rerr error
		analysis, rerr = o.resolver.Resolve(rctx, tr.Text, sctx)
		return rerr
	})
	o.metrics.ResolverDuration.Record(context.Background(), time.Since(start).Seconds())

	if err != nil {
		o.log.Warn("intent resolution failed", "error", err)
		o.say(ctx, o.text("unknown"), types.ToneNeutral)
		o.history.Add(HistoryEntry{
			Transcript: tr.Text,
			Confidence: tr.Confidence,
			Analysis:   intent.Analysis{Category: intent.CategoryUnknown},
			Result:     "resolver error: " + err.Error(),
		})
		return
	}

	local := extractLocalEntities(tr.Text, tr.Language)
	analysis.Entities = mergeEntities(analysis.Entities, local)

	result := o.dispatchAnalysis(ctx, analysis, tr)
	o.history.Add(HistoryEntry{
		Transcript: tr.Text,
		Confidence: tr.Confidence,
		Analysis:   analysis,
		Result:     result,
	})
}

func (o *Orchestrator) dispatchAnalysis(ctx context.Context, analysis intent.Analysis, tr types.TranscriptResult) string {
	switch analysis.Category {
	case intent.CategoryOrder:
		items := analysis.SuggestedItems
		if len(items) == 0 {
			items = pairEntities(analysis.Entities)
		}
		if len(items) == 0 {
			o.say(ctx, o.text("unknown"), types.ToneNeutral)
			return "order intent without items"
		}
		if err := o.orders.AddItems(ctx, items); err != nil {
			o.log.Error("add to cart failed", "error", err)
			o.say(ctx, o.text("order_failed"), types.ToneError)
			return "add failed: " + err.Error()
		}
		o.say(ctx, fmt.Sprintf(o.text("items_added"), describeItems(items)), types.ToneSuccess)
		return fmt.Sprintf("added %d item(s)", len(items))

	case intent.CategoryNavigation:
		target := navigationTarget(analysis)
		if err := o.nav.Navigate(ctx, target); err != nil {
			o.log.Error("navigation failed", "target", target, "error", err)
			return "navigation failed: " + err.Error()
		}
		o.say(ctx, fmt.Sprintf(o.text("navigated"), target), types.ToneNeutral)
		return "navigated to " + target

	case intent.CategoryInformation:
		reply := analysis.Reply
		if reply == "" {
			reply = o.text("unknown")
		}
		o.say(ctx, reply, types.ToneProfessional)
		return "information spoken"

	case intent.CategoryHelp:
		o.say(ctx, o.text("help"), types.ToneFriendly)
		return "help spoken"

	default:
		o.say(ctx, o.text("unknown"), types.ToneNeutral)
		return "unknown intent"
	}
}

// navigationTarget extracts the view name from a navigation analysis: a
// "target" entity wins, then the intent name after a "go_to_" prefix.
func navigationTarget(analysis intent.Analysis) string {
	for _, e := range analysis.Entities {
		if e.Type == "target" {
			return e.Value
		}
	}
	if t := strings.TrimPrefix(analysis.Intent, "go_to_"); t != "" && t != analysis.Intent {
		return t
	}
	return "menu"
}

// say speaks text as a session confirmation and remembers it for the
// repeat command. Queue overflow is logged, not surfaced; the customer is
// already being spoken to.
func (o *Orchestrator) say(ctx context.Context, text string, tone types.Tone) {
	if text == "" {
		return
	}
	o.mu.Lock()
	o.lastSpoken = text
	o.mu.Unlock()

	_, err := o.speech.Speak(ctx, text,
		synthesis.WithLanguage(o.cfg.Language),
		synthesis.WithTone(tone),
	)
	if err != nil {
		o.log.Warn("confirmation not queued", "error", err)
	}
}

func (o *Orchestrator) sessionContext() context.Context {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.ctx != nil {
		return o.ctx
	}
	return context.Background()
}

func (o *Orchestrator) publishError(err error) {
	var code, msg string
	retryable := false
	var verr *voiceerr.Error
	if errors.As(err, &verr) {
		code = string(verr.Code)
		msg = verr.Message(o.cfg.Language)
		retryable = verr.Retryable
	} else {
		code = "internal"
		msg = err.Error()
	}
	o.metrics.RecordError(context.Background(), code)
	o.bus.Publish(events.Error, events.ErrorPayload{Code: code, Message: msg, Retryable: retryable})
}

// text returns the localized confirmation string for key.
func (o *Orchestrator) text(key string) string {
	base := dialect.BaseLanguage(o.cfg.Language)
	if byKey, ok := confirmations[base]; ok {
		if msg, ok := byKey[key]; ok {
			return msg
		}
	}
	return confirmations["en"][key]
}

// describeItems renders order items for a spoken confirmation, e.g.
// "2x Cola, 1x Hähnchen (gross)".
func describeItems(items []types.OrderItem) string {
	parts := make([]string, len(items))
	for i, item := range items {
		s := fmt.Sprintf("%dx %s", item.Quantity, item.Product)
		if len(item.Modifiers) > 0 {
			s += " (" + strings.Join(item.Modifiers, ", ") + ")"
		}
		parts[i] = s
	}
	return strings.Join(parts, ", ")
}

// confirmations holds the spoken confirmation texts per base language.
var confirmations = map[string]map[string]string{
	"en": {
		"cart_empty":        "Your cart is empty.",
		"menu_shown":        "Here is the menu.",
		"cart_shown":        "Your cart: %s",
		"checkout_started":  "Taking you to checkout.",
		"cancelled":         "Okay, I cancelled that.",
		"help":              "You can say things like: show the menu, two colas please, show my cart, or checkout.",
		"nothing_to_repeat": "I have not said anything yet.",
		"unknown":           "I did not understand that. Try saying: show the menu, or order something like two colas.",
		"items_added":       "Added %s to your cart.",
		"order_failed":      "Sorry, I could not add that to your cart.",
		"navigated":         "Showing %s.",
	},
	"de": {
		"cart_empty":        "Ihr Warenkorb ist leer.",
		"menu_shown":        "Hier ist die Speisekarte.",
		"cart_shown":        "Ihr Warenkorb: %s",
		"checkout_started":  "Ich bringe Sie zur Kasse.",
		"cancelled":         "In Ordnung, ich habe das abgebrochen.",
		"help":              "Sie können zum Beispiel sagen: zeig mir die Speisekarte, zwei Cola bitte, zeig meinen Warenkorb, oder zur Kasse.",
		"nothing_to_repeat": "Ich habe noch nichts gesagt.",
		"unknown":           "Das habe ich nicht verstanden. Sagen Sie zum Beispiel: zeig mir die Speisekarte, oder bestellen Sie etwas wie zwei Cola.",
		"items_added":       "%s wurde zum Warenkorb hinzugefügt.",
		"order_failed":      "Entschuldigung, das konnte ich nicht zum Warenkorb hinzufügen.",
		"navigated":         "Ich zeige %s.",
	},
	"fr": {
		"cart_empty":        "Votre panier est vide.",
		"menu_shown":        "Voici le menu.",
		"cart_shown":        "Votre panier : %s",
		"checkout_started":  "Je vous amène au paiement.",
		"cancelled":         "D'accord, j'ai annulé.",
		"help":              "Vous pouvez dire par exemple : montre le menu, deux colas s'il vous plaît, montre mon panier, ou payer.",
		"nothing_to_repeat": "Je n'ai encore rien dit.",
		"unknown":           "Je n'ai pas compris. Essayez : montre le menu, ou commandez par exemple deux colas.",
		"items_added":       "%s ajouté au panier.",
		"order_failed":      "Désolé, je n'ai pas pu l'ajouter au panier.",
		"navigated":         "J'affiche %s.",
	},
	"it": {
		"cart_empty":        "Il tuo carrello è vuoto.",
		"menu_shown":        "Ecco il menu.",
		"cart_shown":        "Il tuo carrello: %s",
		"checkout_started":  "Ti porto alla cassa.",
		"cancelled":         "Va bene, ho annullato.",
		"help":              "Puoi dire ad esempio: mostra il menu, due cole per favore, mostra il carrello, oppure pagare.",
		"nothing_to_repeat": "Non ho ancora detto nulla.",
		"unknown":           "Non ho capito. Prova a dire: mostra il menu, oppure ordina qualcosa come due cole.",
		"items_added":       "%s aggiunto al carrello.",
		"order_failed":      "Spiacente, non sono riuscito ad aggiungerlo al carrello.",
		"navigated":         "Mostro %s.",
	},
}
