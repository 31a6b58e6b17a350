package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the model-call boundary. Callers match with
// errors.Is; the wrapped cause is preserved.
var (
	// ErrTimeout means the call exceeded its deadline. Once the deadline
	// fires no further retries are attempted.
	ErrTimeout = errors.New("llm: timed out")

	// ErrMalformedResponse means the model returned something that could
	// not be parsed or validated against the expected JSON contract.
	// Never retried.
	ErrMalformedResponse = errors.New("llm: malformed response")

	// ErrAuth covers 401/403 from the provider. Never retried.
	ErrAuth = errors.New("llm: authentication failed")

	// ErrInvalidRequest covers 400-class validation failures. Never retried.
	ErrInvalidRequest = errors.New("llm: invalid request")

	// ErrTransient covers rate limits, network failures, and 5xx responses.
	// Retried with backoff.
	ErrTransient = errors.New("llm: transient failure")
)

var transientMarkers = []string{
	"429",
	"rate limit",
	"too many requests",
	"timeout",
	"network",
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"service unavailable",
	"temporary failure",
	"500",
	"502",
	"503",
	"504",
}

// Classify wraps a raw provider error with the matching sentinel so callers
// can branch on errors.Is without string matching. Provider SDKs surface
// HTTP failures as opaque errors, so classification falls back to status
// markers in the message; anything unrecognized is treated as transient.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "401"), strings.Contains(msg, "unauthorized"),
		strings.Contains(msg, "403"), strings.Contains(msg, "forbidden"):
		return fmt.Errorf("%w: %v", ErrAuth, err)
	case strings.Contains(msg, "400"), strings.Contains(msg, "bad request"):
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return fmt.Errorf("%w: %v", ErrTransient, err)
		}
	}

	return fmt.Errorf("%w: %v", ErrTransient, err)
}

// IsRetryable reports whether a classified error is worth retrying.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransient)
}
