// Package providers contains clients for generative endpoints used as the
// knowledge-store fallback.
package providers

import "context"

// Provider is the interface a generation endpoint client must implement.
type Provider interface {
	// Generate sends one prompt and returns the generated text. userID is
	// passed through as a routing/session parameter where the endpoint
	// supports it. Implementations bound the call with their own timeout.
	Generate(ctx context.Context, prompt, userID string) (string, error)

	// Name returns the provider identifier (e.g. "gemini").
	Name() string
}

// ErrorKind classifies fallback failures for logging.
type ErrorKind string

const (
	// KindUnavailable covers transport errors, timeouts and non-2xx
	// responses from the upstream endpoint.
	KindUnavailable ErrorKind = "upstream_unavailable"

	// KindMalformed covers 2xx responses whose body lacks a usable
	// generated-text field.
	KindMalformed ErrorKind = "malformed_upstream_response"
)

// UpstreamError wraps a provider failure with its classification.
type UpstreamError struct {
	Kind ErrorKind
	Err  error
}

func (e *UpstreamError) Error() string { return string(e.Kind) + ": " + e.Err.Error() }
func (e *UpstreamError) Unwrap() error { return e.Err }
