package app

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ordervox/ordervox/internal/config"
	"github.com/ordervox/ordervox/internal/intent"
	intentmock "github.com/ordervox/ordervox/internal/intent/mock"
	"github.com/ordervox/ordervox/pkg/platform"
	"github.com/ordervox/ordervox/pkg/platform/mock"
	"github.com/ordervox/ordervox/pkg/types"
)

type appEnv struct {
	app      *App
	srv      *httptest.Server
	primary  *mock.Recognizer
	synth    *mock.Synthesizer
	capture  *mock.Capture
	resolver *intentmock.Resolver
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Recognition.DefaultLanguage = "de-CH"
	cfg.Languages = []config.LanguageConfig{
		{
			Code:          "de-CH",
			Fallbacks:     []string{"de"},
			PrimaryVoices: []string{"de-CH-LeniNeural"},
			Prosody:       config.ProsodyConfig{Pitch: 1, Rate: 1, Volume: 1},
		},
	}
	return cfg
}

func newAppEnv(t *testing.T) *appEnv {
	t.Helper()

	env := &appEnv{
		primary: mock.NewRecognizer(),
		synth: &mock.Synthesizer{VoiceList: []platform.Voice{
			{Name: "de-CH-LeniNeural", Language: "de-CH", Default: true},
		}},
		capture:  &mock.Capture{},
		resolver: &intentmock.Resolver{},
	}

	a, err := New(context.Background(), testConfig(), Engines{
		Recognizer:         env.primary,
		FallbackRecognizer: mock.NewRecognizer(),
		Synthesizer:        env.synth,
		Capture:            env.capture,
		Resolver:           env.resolver,
	}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	env.app = a
	env.srv = httptest.NewServer(a.server.Handler)
	t.Cleanup(func() {
		env.srv.Close()
		a.Shutdown(context.Background())
	})
	return env
}

func (env *appEnv) do(t *testing.T, method, path string) (int, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, env.srv.URL+path, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := env.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, body
}

// waitListening blocks until the recognizer is running again. Recognition
// re-arms asynchronously after each dispatched utterance.
func waitListening(t *testing.T, r *mock.Recognizer) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if r.Running() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("recognizer did not resume listening")
}

func TestNewRejectsMissingEngines(t *testing.T) {
	_, err := New(context.Background(), testConfig(), Engines{}, nil)
	if err == nil {
		t.Fatal("expected error for empty Engines")
	}
}

// TestServer exercises the HTTP surface end to end against one wired App.
// Subtests run in order and share the app state.
func TestServer(t *testing.T) {
	env := newAppEnv(t)

	t.Run("healthz", func(t *testing.T) {
		status, body := env.do(t, http.MethodGet, "/healthz")
		if status != http.StatusOK {
			t.Fatalf("status = %d, body %s", status, body)
		}
	})

	t.Run("readyz", func(t *testing.T) {
		status, body := env.do(t, http.MethodGet, "/readyz")
		if status != http.StatusOK {
			t.Fatalf("status = %d, body %s", status, body)
		}
		var res struct {
			Status     string `json:"status"`
			Components []struct {
				Component string `json:"component"`
				Status    string `json:"status"`
			} `json:"components"`
		}
		if err := json.Unmarshal(body, &res); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if res.Status != "ok" {
			t.Fatalf("status = %q, body %s", res.Status, body)
		}
		seen := make(map[string]string, len(res.Components))
		for _, c := range res.Components {
			seen[c.Component] = c.Status
		}
		for _, name := range []string{"synthesizer", "recognizer", "resolver"} {
			if seen[name] != "ok" {
				t.Fatalf("component %s = %q, body %s", name, seen[name], body)
			}
		}
	})

	t.Run("metrics", func(t *testing.T) {
		status, _ := env.do(t, http.MethodGet, "/metrics")
		if status != http.StatusOK {
			t.Fatalf("status = %d", status)
		}
	})

	t.Run("session lifecycle", func(t *testing.T) {
		status, body := env.do(t, http.MethodPost, "/api/session/start")
		if status != http.StatusOK {
			t.Fatalf("start status = %d, body %s", status, body)
		}
		if len(env.primary.StartCalls) == 0 {
			t.Fatal("recognizer was not started")
		}
		if len(env.capture.OpenCalls) == 0 {
			t.Fatal("microphone was not acquired")
		}

		if status, _ := env.do(t, http.MethodPost, "/api/session/start"); status != http.StatusConflict {
			t.Fatalf("second start status = %d, want 409", status)
		}

		status, body = env.do(t, http.MethodGet, "/api/session")
		if status != http.StatusOK {
			t.Fatalf("session status = %d", status)
		}
		var st struct {
			Active bool   `json:"active"`
			Page   string `json:"page"`
		}
		if err := json.Unmarshal(body, &st); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if !st.Active || st.Page != "home" {
			t.Fatalf("status = %+v, want active on home", st)
		}
	})

	t.Run("spoken command updates page and history", func(t *testing.T) {
		env.primary.EmitResult(platform.Result{
			Text:          "zeig mir die speisekarte",
			Confidence:    0.92,
			HasConfidence: true,
			Final:         true,
		})

		status, body := env.do(t, http.MethodGet, "/api/session")
		if status != http.StatusOK {
			t.Fatalf("status = %d", status)
		}
		var st struct {
			Page    string       `json:"page"`
			History []historyDTO `json:"history"`
		}
		if err := json.Unmarshal(body, &st); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if st.Page != "menu" {
			t.Errorf("page = %q, want menu", st.Page)
		}
		if len(st.History) != 1 || st.History[0].Intent != "show_menu" {
			t.Errorf("history = %+v", st.History)
		}
	})

	t.Run("resolved order fills cart", func(t *testing.T) {
		waitListening(t, env.primary)
		env.resolver.Result = intent.Analysis{
			Intent:     "order_items",
			Category:   intent.CategoryOrder,
			Confidence: 0.9,
			SuggestedItems: []types.OrderItem{
				{Product: "Cola", Quantity: 2},
			},
		}

		env.primary.EmitResult(platform.Result{
			Text:          "ich hätte gerne zwei cola und dazu noch etwas",
			Confidence:    0.9,
			HasConfidence: true,
			Final:         true,
		})

		status, body := env.do(t, http.MethodGet, "/api/cart")
		if status != http.StatusOK {
			t.Fatalf("status = %d", status)
		}
		if !strings.Contains(string(body), "2x Cola") {
			t.Fatalf("cart = %s, want 2x Cola", body)
		}
	})

	t.Run("end session", func(t *testing.T) {
		status, _ := env.do(t, http.MethodPost, "/api/session/end")
		if status != http.StatusOK {
			t.Fatalf("status = %d", status)
		}
		if !env.capture.LastStream.Closed() {
			t.Error("microphone stream not released")
		}

		status, body := env.do(t, http.MethodGet, "/api/session")
		if status != http.StatusOK {
			t.Fatalf("status = %d", status)
		}
		var st struct {
			Active  bool         `json:"active"`
			History []historyDTO `json:"history"`
		}
		if err := json.Unmarshal(body, &st); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if st.Active {
			t.Error("session still active after end")
		}
		if len(st.History) != 0 {
			t.Errorf("history not cleared: %+v", st.History)
		}
	})
}
