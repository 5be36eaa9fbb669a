// Package intent defines the external intent resolver boundary. Transcripts
// that are no fixed-vocabulary command are forwarded here, together with the
// session context, to obtain a structured interpretation.
package intent

import (
	"context"

	"github.com/ordervox/ordervox/pkg/types"
)

// Category is the coarse action class of a resolved intent. Dispatch in the
// session orchestrator branches on it.
type Category string

const (
	CategoryOrder       Category = "order"
	CategoryNavigation  Category = "navigation"
	CategoryInformation Category = "information"
	CategoryHelp        Category = "help"
	CategoryUnknown     Category = "unknown"
)

// SessionContext carries the conversational state the resolver may use.
type SessionContext struct {
	// SessionID identifies the recognition session.
	SessionID string

	// Language is the transcript language after normalization (BCP-47).
	Language string

	// Page is the application view the customer is currently on.
	Page string

	// CartSummary is a short textual description of the current cart.
	CartSummary string

	// History holds the most recent accepted transcripts, oldest first.
	History []string
}

// Analysis is the resolver's structured interpretation of a transcript.
type Analysis struct {
	// Intent is the fine-grained intent name (e.g. "add_to_cart").
	Intent string `json:"intent"`

	// Category classifies the intent for dispatch.
	Category Category `json:"category"`

	// Confidence is the resolver's own confidence in [0,1].
	Confidence float64 `json:"confidence"`

	// Entities are the extracted parameters (product, quantity, modifier).
	Entities []types.Entity `json:"entities"`

	// SuggestedItems are concrete order items derived from the entities.
	SuggestedItems []types.OrderItem `json:"suggested_items"`

	// Reply is an optional short answer to speak for information intents.
	Reply string `json:"reply,omitempty"`
}

// Resolver turns a transcript plus session context into an [Analysis].
//
// Implementations must honour ctx cancellation; the session layer wraps
// calls in a timeout and a circuit breaker.
type Resolver interface {
	Resolve(ctx context.Context, transcript string, sctx SessionContext) (Analysis, error)
}
