package voiceerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestRecognition_RetryableClassification(t *testing.T) {
	cases := []struct {
		platformCode string
		retryable    bool
	}{
		{PlatformNoSpeech, true},
		{PlatformNetwork, true},
		{PlatformAborted, true},
		{PlatformNotAllowed, false},
		{PlatformServiceNotAllowed, false},
		{PlatformBadLanguage, false},
		{"something-else", false},
	}
	for _, tc := range cases {
		err := Recognition(tc.platformCode, nil)
		if err.Retryable != tc.retryable {
			t.Errorf("Recognition(%q).Retryable = %v, want %v", tc.platformCode, err.Retryable, tc.retryable)
		}
		if !IsRetryable(err) && tc.retryable {
			t.Errorf("IsRetryable(Recognition(%q)) = false, want true", tc.platformCode)
		}
	}
}

func TestIsRetryable_Wrapped(t *testing.T) {
	inner := Recognition(PlatformNetwork, errors.New("socket closed"))
	wrapped := fmt.Errorf("engine restart: %w", inner)
	if !IsRetryable(wrapped) {
		t.Error("IsRetryable should see through fmt.Errorf wrapping")
	}
	if CodeOf(wrapped) != CodeRecognition {
		t.Errorf("CodeOf = %q, want %q", CodeOf(wrapped), CodeRecognition)
	}
}

func TestIsRetryable_NonPipelineError(t *testing.T) {
	if IsRetryable(errors.New("plain")) {
		t.Error("plain errors must not be retryable")
	}
	if CodeOf(errors.New("plain")) != "" {
		t.Error("CodeOf on a plain error must be empty")
	}
}

func TestMessage_LocalizationAndFallback(t *testing.T) {
	err := PermissionDenied(nil)

	de := err.Message("de")
	if de == "" || de == err.Message("en") {
		t.Errorf("expected a distinct German message, got %q", de)
	}
	// Regional variants resolve to their base language.
	if err.Message("de-CH") != de {
		t.Errorf("de-CH should resolve to the de message")
	}
	// Unknown languages fall back to English.
	if err.Message("ja") != err.Message("en") {
		t.Error("unknown language should fall back to English")
	}
}

func TestError_StringIncludesPlatformCode(t *testing.T) {
	err := Recognition(PlatformNoSpeech, errors.New("nothing heard"))
	got := err.Error()
	want := "recognition_failed (no-speech): nothing heard"
	if got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestQueueOverflow_Code(t *testing.T) {
	err := QueueOverflow(10)
	if CodeOf(err) != CodeQueueOverflow {
		t.Errorf("CodeOf = %q, want %q", CodeOf(err), CodeQueueOverflow)
	}
	if IsRetryable(err) {
		t.Error("queue overflow is not retryable")
	}
}
