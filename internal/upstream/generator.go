package upstream

import (
	"context"
	"errors"
	"fmt"
)

// Generator executes one text-generation request against the upstream
// provider.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Kind classifies an upstream failure.
type Kind string

const (
	KindRateLimited Kind = "rate_limited"
	KindAuth        Kind = "auth"
	KindBadRequest  Kind = "bad_request"
	KindNetwork     Kind = "network"
	KindUnknown     Kind = "unknown"
)

// Error is a classified upstream failure. The raw kind is kept so callers
// can report it without parsing provider messages.
type Error struct {
	Kind       Kind
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("upstream %s (status %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("upstream %s: %s", e.Kind, e.Message)
}

// IsRateLimited reports whether err is an upstream rate-limit failure,
// the only kind the invoker retries.
func IsRateLimited(err error) bool {
	var ue *Error
	return errors.As(err, &ue) && ue.Kind == KindRateLimited
}
