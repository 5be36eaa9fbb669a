// Package mock provides an in-memory mock implementation of
// [intent.Resolver] for use in unit tests.
//
// The mock is safe for concurrent use, records method calls, and exposes
// exported fields for configuring return values.
package mock

import (
	"context"
	"sync"

	"github.com/ordervox/ordervox/internal/intent"
)

// ResolveCall records the arguments of a single [Resolver.Resolve]
// invocation.
type ResolveCall struct {
	// Transcript is the text passed to Resolve.
	Transcript string

	// Context is the session context passed to Resolve.
	Context intent.SessionContext
}

// Resolver is a mock implementation of [intent.Resolver].
type Resolver struct {
	mu sync.Mutex

	// Result is returned by Resolve when ResultFn is nil.
	Result intent.Analysis

	// ResultFn, when set, computes the result per call.
	ResultFn func(transcript string) intent.Analysis

	// Err, if non-nil, is returned by every Resolve call.
	Err error

	// ResolveCalls records every call to Resolve.
	ResolveCalls []ResolveCall
}

// Ensure Resolver implements intent.Resolver at compile time.
var _ intent.Resolver = (*Resolver)(nil)

// Resolve records the call and returns the configured analysis or error.
func (r *Resolver) Resolve(_ context.Context, transcript string, sctx intent.SessionContext) (intent.Analysis, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ResolveCalls = append(r.ResolveCalls, ResolveCall{Transcript: transcript, Context: sctx})
	if r.Err != nil {
		return intent.Analysis{}, r.Err
	}
	if r.ResultFn != nil {
		return r.ResultFn(transcript), nil
	}
	return r.Result, nil
}

// Calls returns a snapshot of recorded Resolve calls.
func (r *Resolver) Calls() []ResolveCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ResolveCall, len(r.ResolveCalls))
	copy(out, r.ResolveCalls)
	return out
}
