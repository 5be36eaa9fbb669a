// Package voiceerr defines the typed error taxonomy for the voice pipeline.
//
// Every public operation in the pipeline fails with an [*Error] carrying a
// stable machine [Code], a retryability flag, and a localized human-readable
// message. Callers classify failures with [errors.As] and [IsRetryable]
// rather than string matching.
package voiceerr

import (
	"errors"
	"fmt"
	"strings"
)

// Code is a stable machine-readable error classifier.
type Code string

const (
	// CodePermissionDenied means microphone access was refused. Fatal for the
	// session, never retried.
	CodePermissionDenied Code = "permission_denied"

	// CodeRecognition covers platform recognition failures. Retryability
	// depends on the platform error code, see [Recognition].
	CodeRecognition Code = "recognition_failed"

	// CodeUnsupported means the platform lacks a required capability
	// (recognition or synthesis). Fatal at initialization.
	CodeUnsupported Code = "unsupported"

	// CodeSynthesis covers failures of a single utterance. Logged and
	// skipped; never blocks subsequent queued requests.
	CodeSynthesis Code = "synthesis_failed"

	// CodeQueueOverflow means a speech request was rejected because the
	// synthesis queue is at capacity.
	CodeQueueOverflow Code = "queue_overflow"

	// CodeCancelled means a queued speech request was rejected by stop().
	CodeCancelled Code = "cancelled"

	// CodeTimeout means no final recognition result arrived in time.
	CodeTimeout Code = "timeout"
)

// Platform recognition error identifiers, mirroring the codes reported by
// platform recognizers. The retryable set maps to the fallback-engine path.
const (
	PlatformNoSpeech          = "no-speech"
	PlatformNetwork           = "network"
	PlatformAborted           = "aborted"
	PlatformNotAllowed        = "not-allowed"
	PlatformServiceNotAllowed = "service-not-allowed"
	PlatformBadLanguage       = "language-not-supported"
)

// Error is the typed error returned by all pipeline operations.
type Error struct {
	// Code classifies the failure.
	Code Code

	// PlatformCode holds the raw platform error identifier when the failure
	// originated in a platform engine, empty otherwise.
	PlatformCode string

	// Retryable reports whether the fallback/retry path may be attempted.
	Retryable bool

	// Cause is the wrapped underlying error, may be nil.
	Cause error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	if e.PlatformCode != "" {
		b.WriteString(" (")
		b.WriteString(e.PlatformCode)
		b.WriteString(")")
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause for errors.Is/As chains.
func (e *Error) Unwrap() error { return e.Cause }

// messages maps code → language → user-facing text. The language key is the
// base code (e.g. "de" serves "de-CH" via [baseLang]).
var messages = map[Code]map[string]string{
	CodePermissionDenied: {
		"en": "Microphone access was denied. Please allow microphone use and try again.",
		"de": "Der Mikrofonzugriff wurde verweigert. Bitte erlauben Sie die Mikrofonnutzung und versuchen Sie es erneut.",
		"fr": "L'accès au microphone a été refusé. Veuillez autoriser le microphone et réessayer.",
		"it": "L'accesso al microfono è stato negato. Consenti l'uso del microfono e riprova.",
	},
	CodeRecognition: {
		"en": "I could not understand you. Please try again.",
		"de": "Ich habe Sie nicht verstanden. Bitte versuchen Sie es erneut.",
		"fr": "Je ne vous ai pas compris. Veuillez réessayer.",
		"it": "Non ho capito. Riprova per favore.",
	},
	CodeUnsupported: {
		"en": "Voice control is not supported on this device.",
		"de": "Sprachsteuerung wird auf diesem Gerät nicht unterstützt.",
		"fr": "La commande vocale n'est pas prise en charge sur cet appareil.",
		"it": "Il controllo vocale non è supportato su questo dispositivo.",
	},
	CodeSynthesis: {
		"en": "Speech output failed.",
		"de": "Die Sprachausgabe ist fehlgeschlagen.",
		"fr": "La sortie vocale a échoué.",
		"it": "L'uscita vocale non è riuscita.",
	},
	CodeQueueOverflow: {
		"en": "Too many pending voice prompts. Please wait a moment.",
		"de": "Zu viele ausstehende Sprachansagen. Bitte warten Sie einen Moment.",
		"fr": "Trop d'annonces vocales en attente. Veuillez patienter.",
		"it": "Troppi annunci vocali in sospeso. Attendere un momento.",
	},
	CodeCancelled: {
		"en": "The voice prompt was cancelled.",
		"de": "Die Sprachansage wurde abgebrochen.",
		"fr": "L'annonce vocale a été annulée.",
		"it": "L'annuncio vocale è stato annullato.",
	},
	CodeTimeout: {
		"en": "I did not hear anything. Please try again.",
		"de": "Ich habe nichts gehört. Bitte versuchen Sie es erneut.",
		"fr": "Je n'ai rien entendu. Veuillez réessayer.",
		"it": "Non ho sentito nulla. Riprova per favore.",
	},
}

// Message returns the localized user-facing text for this error. Unknown
// languages fall back to English.
func (e *Error) Message(language string) string {
	byLang, ok := messages[e.Code]
	if !ok {
		return string(e.Code)
	}
	if msg, ok := byLang[baseLang(language)]; ok {
		return msg
	}
	return byLang["en"]
}

// baseLang strips a regional suffix: "de-CH" → "de".
func baseLang(language string) string {
	if i := strings.IndexByte(language, '-'); i > 0 {
		return strings.ToLower(language[:i])
	}
	return strings.ToLower(language)
}

// PermissionDenied builds the fatal microphone-denied error.
func PermissionDenied(cause error) *Error {
	return &Error{Code: CodePermissionDenied, Retryable: false, Cause: cause}
}

// retryablePlatformCodes lists platform recognition errors that are eligible
// for the fallback-engine retry path.
var retryablePlatformCodes = map[string]bool{
	PlatformNoSpeech: true,
	PlatformNetwork:  true,
	PlatformAborted:  true,
}

// Recognition builds a recognition error from a platform error code. The
// retryable flag is derived from the code: no-speech, network and aborted are
// retryable, everything else is surfaced without retry.
func Recognition(platformCode string, cause error) *Error {
	return &Error{
		Code:         CodeRecognition,
		PlatformCode: platformCode,
		Retryable:    retryablePlatformCodes[platformCode],
		Cause:        cause,
	}
}

// Unsupported builds the fatal capability-missing error. what names the
// missing capability ("recognition", "synthesis").
func Unsupported(what string) *Error {
	return &Error{
		Code:  CodeUnsupported,
		Cause: fmt.Errorf("platform does not support %s", what),
	}
}

// Synthesis builds a per-utterance synthesis failure.
func Synthesis(cause error) *Error {
	return &Error{Code: CodeSynthesis, Retryable: false, Cause: cause}
}

// QueueOverflow builds the synchronous queue-full rejection.
func QueueOverflow(capacity int) *Error {
	return &Error{
		Code:  CodeQueueOverflow,
		Cause: fmt.Errorf("synthesis queue is at capacity (%d)", capacity),
	}
}

// Cancelled builds the rejection delivered to queued requests on stop().
func Cancelled() *Error {
	return &Error{Code: CodeCancelled}
}

// Timeout builds the session / no-speech timeout error.
func Timeout(cause error) *Error {
	return &Error{Code: CodeTimeout, Retryable: false, Cause: cause}
}

// IsRetryable reports whether err (or any error it wraps) is a retryable
// pipeline error.
func IsRetryable(err error) bool {
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Retryable
	}
	return false
}

// CodeOf extracts the machine code from err, or "" when err is not a
// pipeline error.
func CodeOf(err error) Code {
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Code
	}
	return ""
}
