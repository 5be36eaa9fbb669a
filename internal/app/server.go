package app

import (
	"encoding/json"
	"net/http"
	"time"
)

// historyDTO is the wire form of one session history entry.
type historyDTO struct {
	Transcript string    `json:"transcript"`
	Confidence float64   `json:"confidence"`
	Intent     string    `json:"intent"`
	Category   string    `json:"category"`
	Result     string    `json:"result"`
	Timestamp  time.Time `json:"timestamp"`
}

func (a *App) handleSessionStart(w http.ResponseWriter, _ *http.Request) {
	if err := a.orchestrator.StartSession(a.sessionContext()); err != nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"active": true})
}

func (a *App) handleSessionEnd(w http.ResponseWriter, _ *http.Request) {
	if err := a.orchestrator.EndSession(); err != nil {
		a.log.Warn("session end", "error", err)
	}
	writeJSON(w, http.StatusOK, map[string]bool{"active": false})
}

func (a *App) handleSessionStatus(w http.ResponseWriter, _ *http.Request) {
	entries := a.orchestrator.History().Recent(20)
	history := make([]historyDTO, len(entries))
	for i, e := range entries {
		history[i] = historyDTO{
			Transcript: e.Transcript,
			Confidence: e.Confidence,
			Intent:     e.Analysis.Intent,
			Category:   string(e.Analysis.Category),
			Result:     e.Result,
			Timestamp:  e.Timestamp,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"active":  a.orchestrator.Active(),
		"page":    a.nav.CurrentPage(),
		"history": history,
	})
}

func (a *App) handleCart(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"lines":   a.cart.Lines(),
		"summary": a.cart.Summary(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encoding failure", http.StatusInternalServerError)
	}
}
