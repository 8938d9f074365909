package upstream

import (
	"context"
	"time"

	"github.com/dmarchetti/vera/internal/reliability"
)

const (
	DefaultMaxRetries   = 3
	DefaultInitialDelay = 2 * time.Second
	DefaultBackoffCap   = 30 * time.Second
)

// Invoker executes one logical generation request, masking transient rate
// limiting with exponential backoff. Any other failure, or a rate limit with
// retries exhausted, is returned as-is. At most one upstream call is in
// flight per invocation, and none after a terminal result.
type Invoker struct {
	gen          Generator
	maxRetries   int
	initialDelay time.Duration
	backoffCap   time.Duration
	onRetry      func(attempt int, delay time.Duration)
}

func NewInvoker(gen Generator, maxRetries int, initialDelay, backoffCap time.Duration) *Invoker {
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}
	if initialDelay <= 0 {
		initialDelay = DefaultInitialDelay
	}
	if backoffCap <= 0 {
		backoffCap = DefaultBackoffCap
	}
	return &Invoker{
		gen:          gen,
		maxRetries:   maxRetries,
		initialDelay: initialDelay,
		backoffCap:   backoffCap,
	}
}

// SetRetryHook installs a callback invoked before each backoff wait.
func (iv *Invoker) SetRetryHook(hook func(attempt int, delay time.Duration)) {
	iv.onRetry = hook
}

// Generate issues the call, retrying only rate-limited failures up to
// maxRetries times with delays of initialDelay * 2^attempt. A cancelled
// context abandons the wait without a further upstream call.
func (iv *Invoker) Generate(ctx context.Context, prompt string) (string, error) {
	for attempt := 0; ; attempt++ {
		text, err := iv.gen.Generate(ctx, prompt)
		if err == nil {
			return text, nil
		}
		if !IsRateLimited(err) || attempt >= iv.maxRetries {
			return "", err
		}

		delay := reliability.ExponentialBackoff(attempt, iv.initialDelay, iv.backoffCap)
		if iv.onRetry != nil {
			iv.onRetry(attempt, delay)
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
	}
}
