package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default returns a configuration with all defaults applied and a single
// English language entry. Used when no config file is given.
func Default() *Config {
	cfg := &Config{
		Languages: []LanguageConfig{{Code: "en-US"}},
	}
	applyDefaults(cfg)
	return cfg
}

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills zero values with documented defaults.
func applyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}

	if cfg.Audio.SampleRate == 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.Channels == 0 {
		cfg.Audio.Channels = 1
	}
	if cfg.Audio.NoiseGateThreshold == 0 {
		cfg.Audio.NoiseGateThreshold = 0.02
	}
	if cfg.Audio.Gain == 0 {
		cfg.Audio.Gain = 1.0
	}

	if cfg.Recognition.DefaultLanguage == "" {
		if len(cfg.Languages) > 0 {
			cfg.Recognition.DefaultLanguage = cfg.Languages[0].Code
		} else {
			cfg.Recognition.DefaultLanguage = "en-US"
		}
	}
	if cfg.Recognition.MaxAlternatives == 0 {
		cfg.Recognition.MaxAlternatives = 3
	}
	if cfg.Recognition.RetryBudget == 0 {
		cfg.Recognition.RetryBudget = 2
	}
	if cfg.Recognition.SessionTimeout == 0 {
		cfg.Recognition.SessionTimeout = Duration(30 * time.Second)
	}
	if cfg.Recognition.NoSpeechTimeout == 0 {
		cfg.Recognition.NoSpeechTimeout = Duration(8 * time.Second)
	}
	if cfg.Recognition.ConfidenceThreshold == 0 {
		cfg.Recognition.ConfidenceThreshold = 0.65
	}

	if cfg.Synthesis.QueueCapacity == 0 {
		cfg.Synthesis.QueueCapacity = 16
	}
	if cfg.Synthesis.CacheCapacity == 0 {
		cfg.Synthesis.CacheCapacity = 50
	}
	if cfg.Synthesis.MaxUtteranceLength == 0 {
		cfg.Synthesis.MaxUtteranceLength = 200
	}
	if cfg.Synthesis.ChunkPause == 0 {
		cfg.Synthesis.ChunkPause = Duration(300 * time.Millisecond)
	}

	if cfg.Resolver.Timeout == 0 {
		cfg.Resolver.Timeout = Duration(5 * time.Second)
	}
	if cfg.Resolver.MaxFailures == 0 {
		cfg.Resolver.MaxFailures = 3
	}
	if cfg.Resolver.ResetTimeout == 0 {
		cfg.Resolver.ResetTimeout = Duration(30 * time.Second)
	}

	for i := range cfg.Languages {
		p := &cfg.Languages[i].Prosody
		if p.Pitch == 0 {
			p.Pitch = 1.0
		}
		if p.Rate == 0 {
			p.Rate = 1.0
		}
		if p.Volume == 0 {
			p.Volume = 1.0
		}
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.Audio.SampleRate < 8000 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d is too low; minimum 8000", cfg.Audio.SampleRate))
	}
	if cfg.Audio.Channels != 1 && cfg.Audio.Channels != 2 {
		errs = append(errs, fmt.Errorf("audio.channels %d is invalid; must be 1 or 2", cfg.Audio.Channels))
	}
	if cfg.Audio.NoiseGateThreshold < 0 || cfg.Audio.NoiseGateThreshold > 1 {
		errs = append(errs, fmt.Errorf("audio.noise_gate_threshold %.3f is out of range [0, 1]", cfg.Audio.NoiseGateThreshold))
	}

	if cfg.Recognition.ConfidenceThreshold < 0 || cfg.Recognition.ConfidenceThreshold > 1 {
		errs = append(errs, fmt.Errorf("recognition.confidence_threshold %.2f is out of range [0, 1]", cfg.Recognition.ConfidenceThreshold))
	}
	if cfg.Recognition.RetryBudget < 0 {
		errs = append(errs, fmt.Errorf("recognition.retry_budget must not be negative"))
	}
	if cfg.Recognition.NoSpeechTimeout.Std() >= cfg.Recognition.SessionTimeout.Std() {
		errs = append(errs, fmt.Errorf("recognition.no_speech_timeout (%s) must be shorter than session_timeout (%s)",
			cfg.Recognition.NoSpeechTimeout.Std(), cfg.Recognition.SessionTimeout.Std()))
	}

	if cfg.Synthesis.QueueCapacity < 1 {
		errs = append(errs, fmt.Errorf("synthesis.queue_capacity must be at least 1"))
	}
	if cfg.Synthesis.CacheCapacity < 1 {
		errs = append(errs, fmt.Errorf("synthesis.cache_capacity must be at least 1"))
	}

	if len(cfg.Languages) == 0 {
		errs = append(errs, fmt.Errorf("at least one language must be configured"))
	}

	codes := make(map[string]int, len(cfg.Languages))
	for i, lang := range cfg.Languages {
		prefix := fmt.Sprintf("languages[%d]", i)
		if lang.Code == "" {
			errs = append(errs, fmt.Errorf("%s.code is required", prefix))
			continue
		}
		if prev, ok := codes[lang.Code]; ok {
			errs = append(errs, fmt.Errorf("%s.code %q is a duplicate of languages[%d]", prefix, lang.Code, prev))
		}
		codes[lang.Code] = i

		for _, fb := range lang.Fallbacks {
			if fb == lang.Code {
				errs = append(errs, fmt.Errorf("%s: fallback chain must not contain the language itself", prefix))
			}
		}
		if lang.Prosody.Rate < 0.1 || lang.Prosody.Rate > 10 {
			errs = append(errs, fmt.Errorf("%s.prosody.rate %.2f is out of range [0.1, 10]", prefix, lang.Prosody.Rate))
		}
		if lang.Prosody.Pitch < 0 || lang.Prosody.Pitch > 2 {
			errs = append(errs, fmt.Errorf("%s.prosody.pitch %.2f is out of range [0, 2]", prefix, lang.Prosody.Pitch))
		}
		if lang.Prosody.Volume < 0 || lang.Prosody.Volume > 1 {
			errs = append(errs, fmt.Errorf("%s.prosody.volume %.2f is out of range [0, 1]", prefix, lang.Prosody.Volume))
		}
	}

	if def := cfg.Recognition.DefaultLanguage; def != "" {
		if _, ok := codes[def]; !ok && len(cfg.Languages) > 0 {
			errs = append(errs, fmt.Errorf("recognition.default_language %q is not among the configured languages", def))
		}
	}

	return errors.Join(errs...)
}

// Language returns the configured entry for code, or nil when absent.
func (c *Config) Language(code string) *LanguageConfig {
	for i := range c.Languages {
		if c.Languages[i].Code == code {
			return &c.Languages[i]
		}
	}
	return nil
}
