package core

import "time"

// CachedResponse is an upstream HTTP response kept by the transport cache.
type CachedResponse struct {
	StatusCode int        `json:"status_code"`
	Body       string     `json:"body,omitempty"`
	CheckedAt  time.Time  `json:"checked_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

// Fresh reports whether the response may still be served at now.
func (c *CachedResponse) Fresh(now time.Time) bool {
	return c != nil && (c.ExpiresAt == nil || now.Before(*c.ExpiresAt))
}

// RateLimitState is the limiter bookkeeping for one upstream host: a fixed
// request window plus an optional backoff imposed by the host itself.
type RateLimitState struct {
	RequestCount int
	WindowStart  time.Time
	BackoffUntil *time.Time
	Last429At    *time.Time
}

// BackoffRemaining returns how long the host asked us to stay away, or zero
// once the backoff has elapsed.
func (s *RateLimitState) BackoffRemaining(now time.Time) time.Duration {
	if s == nil || s.BackoffUntil == nil || !now.Before(*s.BackoffUntil) {
		return 0
	}
	return s.BackoffUntil.Sub(now)
}
