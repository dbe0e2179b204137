package provider

import (
	"fmt"
	"unicode/utf8"
)

// Kind classifies a provider failure for translation into an HTTP status.
type Kind int

const (
	// KindConfig means the server is missing the provider credential. No request was sent.
	KindConfig Kind = iota + 1
	// KindUpstream is a non-2xx response or an unreadable body.
	KindUpstream
	// KindEnvelope is a 2xx response whose {code, data, message} envelope reports failure.
	KindEnvelope
	// KindTransport covers dial, TLS, timeout and cancellation failures.
	KindTransport
	// KindUnavailable means the circuit breaker rejected the call.
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindUpstream:
		return "upstream"
	case KindEnvelope:
		return "envelope"
	case KindTransport:
		return "transport"
	case KindUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Error is returned by every Client call that fails.
type Error struct {
	Provider string
	Kind     Kind
	Status   int
	Message  string
	Err      error
}

func (e *Error) Error() string {
	switch {
	case e.Status != 0:
		return fmt.Sprintf("%s %s error (status %d): %s", e.Provider, e.Kind, e.Status, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s %s error: %s: %v", e.Provider, e.Kind, e.Message, e.Err)
	default:
		return fmt.Sprintf("%s %s error: %s", e.Provider, e.Kind, e.Message)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NotConfigured is the error for a provider whose credential is missing.
func NotConfigured(name string) *Error {
	return &Error{Provider: name, Kind: KindConfig, Message: name + " API key is not configured"}
}

// MaxErrorBody bounds how much of an upstream body is surfaced in errors.
const MaxErrorBody = 500

// Truncate shortens s to at most n bytes, marking the cut. The cut never splits a
// multi-byte character.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
