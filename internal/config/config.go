// Package config provides the configuration schema and loader for the
// ordervox voice pipeline.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// LogLevel controls log verbosity for the ordervox server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Duration wraps time.Duration with YAML support for values like "30s".
type Duration time.Duration

// UnmarshalYAML parses a Go duration string.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the root configuration structure for ordervox.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Audio       AudioConfig       `yaml:"audio"`
	Recognition RecognitionConfig `yaml:"recognition"`
	Synthesis   SynthesisConfig   `yaml:"synthesis"`
	Resolver    ResolverConfig    `yaml:"resolver"`
	Languages   []LanguageConfig  `yaml:"languages"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address for the metrics/health/event endpoints
	// (e.g. ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// AudioConfig holds microphone capture and processing settings.
type AudioConfig struct {
	// SampleRate in Hz. Default 16000.
	SampleRate int `yaml:"sample_rate"`

	// Channels: 1 for mono. Default 1.
	Channels int `yaml:"channels"`

	// NoiseGate enables the software noise gate stage.
	NoiseGate bool `yaml:"noise_gate"`

	// NoiseGateThreshold is the normalized [0,1] level below which frames
	// are muted by the gate. Default 0.02.
	NoiseGateThreshold float64 `yaml:"noise_gate_threshold"`

	// Gain is a linear amplification factor applied before the gate.
	// Default 1.0.
	Gain float64 `yaml:"gain"`
}

// RecognitionConfig holds recognition engine settings.
type RecognitionConfig struct {
	// ModelPath points at the whisper.cpp model file (e.g.
	// "models/ggml-base.bin"). Required unless recognition runs against an
	// injected engine.
	ModelPath string `yaml:"model_path"`

	// DefaultLanguage is the BCP-47 tag used when a session does not request
	// a language (e.g. "de-CH").
	DefaultLanguage string `yaml:"default_language"`

	// MaxAlternatives bounds hypotheses per result on the primary engine.
	// The fallback engine always uses 1. Default 3.
	MaxAlternatives int `yaml:"max_alternatives"`

	// RetryBudget is the number of fallback-engine retries after a
	// recoverable error before the error is surfaced. Default 2.
	RetryBudget int `yaml:"retry_budget"`

	// SessionTimeout aborts LISTENING when no final result arrives within
	// this window. Default 30s.
	SessionTimeout Duration `yaml:"session_timeout"`

	// NoSpeechTimeout aborts when no result at all arrives. Must be shorter
	// than SessionTimeout. Default 8s.
	NoSpeechTimeout Duration `yaml:"no_speech_timeout"`

	// ConfidenceThreshold gates transcripts: results below it trigger the
	// clarification flow instead of intent resolution. Default 0.65.
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
}

// SynthesisConfig holds speech synthesis settings.
type SynthesisConfig struct {
	// ServerURL is the Coqui TTS server address (e.g.
	// "http://localhost:5002"). Required unless synthesis runs against an
	// injected engine.
	ServerURL string `yaml:"server_url"`

	// QueueCapacity bounds the speech request queue; requests beyond it are
	// rejected. Default 16.
	QueueCapacity int `yaml:"queue_capacity"`

	// CacheCapacity bounds the synthesis metadata cache. Default 50.
	CacheCapacity int `yaml:"cache_capacity"`

	// MaxUtteranceLength is the character count beyond which text is split
	// into sentence-bounded chunks. Default 200.
	MaxUtteranceLength int `yaml:"max_utterance_length"`

	// ChunkPause is the silence inserted between chunks. Default 300ms.
	ChunkPause Duration `yaml:"chunk_pause"`
}

// ResolverConfig configures the client for the external intent resolver
// service. The resolver itself is an external collaborator.
type ResolverConfig struct {
	// Name selects the resolver client implementation ("openai", "mock").
	Name string `yaml:"name"`

	// APIKey authenticates against the resolver service.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the service endpoint. Empty means the client default.
	BaseURL string `yaml:"base_url"`

	// Model selects the resolver model (e.g. "gpt-4o-mini").
	Model string `yaml:"model"`

	// Timeout is the per-request deadline. Default 5s.
	Timeout Duration `yaml:"timeout"`

	// MaxFailures opens the circuit breaker after this many consecutive
	// failures. Default 3.
	MaxFailures int `yaml:"max_failures"`

	// ResetTimeout is how long the breaker stays open before probing.
	// Default 30s.
	ResetTimeout Duration `yaml:"reset_timeout"`
}

// LanguageConfig describes one supported language: its recognition fallback
// chain, synthesis voice lists, and default prosody.
type LanguageConfig struct {
	// Code is the BCP-47 tag (e.g. "de-CH", "de", "en-US").
	Code string `yaml:"code"`

	// Fallbacks is the ordered chain of standard-language codes tried when
	// recognition of a dialect language fails recoverably (e.g. de-CH → de).
	// Empty for non-dialect languages.
	Fallbacks []string `yaml:"fallbacks"`

	// PrimaryVoices is the ordered preference list of synthesis voice names.
	PrimaryVoices []string `yaml:"primary_voices"`

	// FallbackVoices is tried when no primary voice is installed.
	FallbackVoices []string `yaml:"fallback_voices"`

	// Prosody holds the default pitch/rate/volume for this language.
	Prosody ProsodyConfig `yaml:"prosody"`
}

// ProsodyConfig holds default synthesis parameters. Zero values mean
// "platform default" and are replaced by 1.0 (pitch, rate) and 1.0 (volume)
// at load time.
type ProsodyConfig struct {
	Pitch  float64 `yaml:"pitch"`
	Rate   float64 `yaml:"rate"`
	Volume float64 `yaml:"volume"`
}
