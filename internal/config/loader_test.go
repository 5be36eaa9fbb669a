package config

import (
	"strings"
	"testing"
	"time"
)

const validYAML = `
server:
  listen_addr: ":9090"
  log_level: debug
recognition:
  default_language: de-CH
  retry_budget: 2
  session_timeout: 20s
  no_speech_timeout: 5s
  confidence_threshold: 0.7
synthesis:
  queue_capacity: 8
  cache_capacity: 20
  max_utterance_length: 150
  chunk_pause: 250ms
languages:
  - code: de-CH
    fallbacks: [de]
    primary_voices: ["de-CH-LeniNeural"]
    fallback_voices: ["de-DE-KatjaNeural"]
    prosody:
      rate: 0.95
  - code: de
  - code: en-US
`

func TestLoadFromReader_Valid(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.ListenAddr != ":9090" {
		t.Errorf("listen_addr = %q, want :9090", cfg.Server.ListenAddr)
	}
	if cfg.Recognition.DefaultLanguage != "de-CH" {
		t.Errorf("default_language = %q, want de-CH", cfg.Recognition.DefaultLanguage)
	}
	if got := cfg.Recognition.SessionTimeout.Std(); got != 20*time.Second {
		t.Errorf("session_timeout = %s, want 20s", got)
	}
	if got := cfg.Synthesis.ChunkPause.Std(); got != 250*time.Millisecond {
		t.Errorf("chunk_pause = %s, want 250ms", got)
	}

	deCH := cfg.Language("de-CH")
	if deCH == nil {
		t.Fatal("Language(de-CH) returned nil")
	}
	if len(deCH.Fallbacks) != 1 || deCH.Fallbacks[0] != "de" {
		t.Errorf("de-CH fallbacks = %v, want [de]", deCH.Fallbacks)
	}
	// Unset prosody fields receive neutral defaults.
	if deCH.Prosody.Pitch != 1.0 || deCH.Prosody.Volume != 1.0 {
		t.Errorf("prosody defaults not applied: %+v", deCH.Prosody)
	}
	if deCH.Prosody.Rate != 0.95 {
		t.Errorf("explicit prosody.rate overwritten: %v", deCH.Prosody.Rate)
	}
}

func TestLoadFromReader_Defaults(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader("languages:\n  - code: en-US\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Recognition.ConfidenceThreshold != 0.65 {
		t.Errorf("confidence_threshold default = %v, want 0.65", cfg.Recognition.ConfidenceThreshold)
	}
	if cfg.Synthesis.QueueCapacity != 16 {
		t.Errorf("queue_capacity default = %d, want 16", cfg.Synthesis.QueueCapacity)
	}
	if cfg.Recognition.DefaultLanguage != "en-US" {
		t.Errorf("default_language should fall back to first language, got %q", cfg.Recognition.DefaultLanguage)
	}
	if cfg.Audio.SampleRate != 16000 || cfg.Audio.Channels != 1 {
		t.Errorf("audio defaults wrong: %+v", cfg.Audio)
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader("bogus_field: 1\nlanguages:\n  - code: en-US\n"))
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestValidate_JoinsAllErrors(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader(`
server:
  log_level: loud
recognition:
  confidence_threshold: 1.5
  session_timeout: 5s
  no_speech_timeout: 10s
languages:
  - code: de-CH
    fallbacks: [de-CH]
  - code: de-CH
`))
	if err == nil {
		t.Fatal("expected validation errors")
	}
	msg := err.Error()
	for _, want := range []string{
		"log_level",
		"confidence_threshold",
		"no_speech_timeout",
		"fallback chain",
		"duplicate",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("joined error missing %q:\n%s", want, msg)
		}
	}
}

func TestValidate_DefaultLanguageMustExist(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader(`
recognition:
  default_language: fr-CH
languages:
  - code: de-CH
`))
	if err == nil || !strings.Contains(err.Error(), "default_language") {
		t.Fatalf("expected default_language error, got %v", err)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := Validate(cfg); err != nil {
		t.Fatalf("Default() must validate cleanly: %v", err)
	}
}
