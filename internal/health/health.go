// Package health reports whether the kiosk is able to take voice orders.
//
// Two probes are exposed:
//
//   - /healthz: liveness; a process that can answer HTTP is alive.
//   - /readyz:  readiness; runs every registered [Checker] and reports
//     per-component results. Required components (speech recognition,
//     synthesis) gate readiness; optional ones (the intent resolver, which
//     the kiosk degrades around) only downgrade the status to "degraded".
//
// The response lists components in registration order together with the
// time each probe took, so an operator can see at a glance which part of
// the pipeline is slow or down.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// checkTimeout bounds a single readiness probe.
const checkTimeout = 5 * time.Second

// Checker probes one pipeline component. Check returns nil when the
// component can serve and must respect context cancellation. Optional
// components do not gate readiness; their failure reports "degraded".
type Checker struct {
	Name     string
	Optional bool
	Check    func(ctx context.Context) error
}

// Overall status values reported by /readyz.
const (
	statusOK       = "ok"
	statusDegraded = "degraded"
	statusFail     = "fail"
)

// componentResult is one entry in the readiness report.
type componentResult struct {
	Component string `json:"component"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	Duration  string `json:"duration"`
}

// report is the JSON body served by both probes.
type report struct {
	Status     string            `json:"status"`
	Components []componentResult `json:"components,omitempty"`
}

// Handler serves the liveness and readiness probes. The checker list is
// fixed at construction time, so it is safe for concurrent use.
type Handler struct {
	checkers []Checker
}

// New creates a [Handler] that runs the given checkers, in order, on each
// /readyz request.
func New(checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{checkers: c}
}

// Healthz always answers 200.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, report{Status: statusOK})
}

// Readyz runs every checker and answers 200 while all required components
// pass. Failing optional components leave the code at 200 but mark the
// overall status "degraded"; a failing required component answers 503.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	res := report{Status: statusOK, Components: make([]componentResult, 0, len(h.checkers))}

	for _, c := range h.checkers {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		start := time.Now()
		err := c.Check(ctx)
		elapsed := time.Since(start)
		cancel()

		entry := componentResult{
			Component: c.Name,
			Status:    statusOK,
			Duration:  elapsed.Round(time.Microsecond).String(),
		}
		if err != nil {
			entry.Status = statusFail
			entry.Error = err.Error()
			if c.Optional {
				if res.Status == statusOK {
					res.Status = statusDegraded
				}
			} else {
				res.Status = statusFail
			}
		}
		res.Components = append(res.Components, entry)
	}

	code := http.StatusOK
	if res.Status == statusFail {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, res)
}

// Register adds the probe routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
