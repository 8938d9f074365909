package reliability

import "time"

// IsRetryableHTTPStatus classifies status codes worth retrying against the
// generation API. Only explicit rate limiting qualifies: 4xx are caller bugs,
// and retrying 5xx replays the same prompt for the same result.
func IsRetryableHTTPStatus(code int) bool {
	return code == 429
}

// ExponentialBackoff computes a deterministic capped backoff duration.
// attempt is zero-indexed: attempt 0 waits base, attempt 1 waits 2*base.
func ExponentialBackoff(attempt int, base, cap time.Duration) time.Duration {
	if attempt <= 0 {
		return base
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if cap > 0 && d >= cap {
			return cap
		}
	}
	return d
}
