package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/namelens/entryguard/internal/core"
)

// RateLimiter keeps outbound calls inside a fixed request window per upstream
// host and honours backoffs the host asks for. State lives in Store, so it
// survives restarts and is shared by every checker of a run. Without a Store
// every call is allowed.
type RateLimiter struct {
	Store  RateLimitStore
	Limits map[string]RateLimit
	Clock  func() time.Time
	Margin float64

	// MaxWait caps how long Wait holds a caller; zero means DefaultMaxWait.
	MaxWait time.Duration

	mu sync.Mutex
}

// DefaultMaxWait bounds the time Wait spends queued for one host.
const DefaultMaxWait = 30 * time.Second

var (
	// ErrRateLimited means no request slot opened up within MaxWait.
	ErrRateLimited = errors.New("rate limited")

	// ErrLimiterStore wraps a state store failure. The call was still allowed.
	ErrLimiterStore = errors.New("rate limit store unavailable")
)

type RateLimit struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// RateLimitStore persists limiter state per host
type RateLimitStore interface {
	GetRateLimit(ctx context.Context, endpoint string) (*core.RateLimitState, error)
	UpdateRateLimit(ctx context.Context, endpoint string, state *core.RateLimitState) error
}

// fallbackLimit applies to hosts missing from Limits.
var fallbackLimit = RateLimit{RequestsPerWindow: 30, WindowDuration: time.Minute}

// DefaultLimits are conservative windows for the hosts a run talks to.
var DefaultLimits = map[string]RateLimit{
	"api.github.com":             {RequestsPerWindow: 5000, WindowDuration: time.Hour},
	"api.similarweb.com":         {RequestsPerWindow: 10, WindowDuration: time.Second},
	"blocklistproject.github.io": {RequestsPerWindow: 60, WindowDuration: time.Minute},
	"www.facebook.com":           {RequestsPerWindow: 30, WindowDuration: time.Minute},
}

// Acquire takes one request slot for endpoint, or reports how long until one
// frees up. A store failure comes back with allowed=true.
func (r *RateLimiter) Acquire(ctx context.Context, endpoint string) (bool, time.Duration, error) {
	if r.disabled(endpoint) {
		return true, 0, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	state, err := r.load(ctx, endpoint)
	if err != nil {
		return true, 0, err
	}

	// Server-imposed backoff wins over the local window
	now := r.now()
	if wait := state.BackoffRemaining(now); wait > 0 {
		return false, wait, nil
	}

	// New window, or count within the current one
	limit := r.limitFor(endpoint)
	windowEnd := state.WindowStart.Add(limit.WindowDuration)
	if state.WindowStart.IsZero() || now.After(windowEnd) {
		state.WindowStart, state.RequestCount = now, 0
	} else if state.RequestCount >= limit.RequestsPerWindow {
		return false, windowEnd.Sub(now), nil
	}

	state.RequestCount++
	return true, 0, r.Store.UpdateRateLimit(ctx, endpoint, state)
}

// Wait blocks until a request slot for endpoint is free and takes it. It gives
// up with ErrRateLimited once the next opening lies beyond MaxWait, or with the
// context error when ctx ends first. An error wrapping ErrLimiterStore still
// means the slot was granted.
func (r *RateLimiter) Wait(ctx context.Context, endpoint string) error {
	budget := DefaultMaxWait
	if r != nil && r.MaxWait > 0 {
		budget = r.MaxWait
	}

	for {
		allowed, wait, err := r.Acquire(ctx, endpoint)
		if allowed {
			if err != nil {
				return fmt.Errorf("%w: %v", ErrLimiterStore, err)
			}
			return nil
		}

		wait = max(wait, time.Millisecond)
		if wait > budget {
			return fmt.Errorf("%w: %s free in %s", ErrRateLimited, endpoint, wait.Round(time.Second))
		}
		budget -= wait

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Pending is Acquire without taking the slot.
func (r *RateLimiter) Pending(ctx context.Context, endpoint string) (time.Duration, error) {
	if r.disabled(endpoint) {
		return 0, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	state, err := r.load(ctx, endpoint)
	if err != nil {
		return 0, err
	}

	now := r.now()
	if wait := state.BackoffRemaining(now); wait > 0 {
		return wait, nil
	}
	limit := r.limitFor(endpoint)
	windowEnd := state.WindowStart.Add(limit.WindowDuration)
	if !now.After(windowEnd) && state.RequestCount >= limit.RequestsPerWindow {
		return windowEnd.Sub(now), nil
	}
	return 0, nil
}

// Backoff records a 403 or 429 from endpoint. A positive retryAfter blocks
// the host until it has elapsed.
func (r *RateLimiter) Backoff(ctx context.Context, endpoint string, retryAfter time.Duration) error {
	if r.disabled(endpoint) {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	state, err := r.load(ctx, endpoint)
	if err != nil {
		return err
	}

	now := r.now()
	state.Last429At = &now
	if retryAfter > 0 {
		until := now.Add(retryAfter)
		state.BackoffUntil = &until
	}
	return r.Store.UpdateRateLimit(ctx, endpoint, state)
}

// Configure applies per-host overrides, in requests per minute, on top of
// DefaultLimits and scales every limit by margin when it is in (0, 1].
func (r *RateLimiter) Configure(overrides map[string]int, margin float64) {
	if r == nil {
		return
	}
	if margin > 0 && margin <= 1 {
		r.Margin = margin
	}
	if len(overrides) == 0 {
		return
	}

	if r.Limits == nil {
		r.Limits = make(map[string]RateLimit, len(DefaultLimits)+len(overrides))
		for host, limit := range DefaultLimits {
			r.Limits[host] = limit
		}
	}
	for host, perMinute := range overrides {
		if host = strings.TrimSpace(host); host != "" && perMinute > 0 {
			r.Limits[host] = RateLimit{RequestsPerWindow: perMinute, WindowDuration: time.Minute}
		}
	}
}

// RetryAfter reads a Retry-After header given in seconds or as an HTTP date.
func RetryAfter(header http.Header, now time.Time) time.Duration {
	value := strings.TrimSpace(header.Get("Retry-After"))
	if value == "" {
		return 0
	}
	if seconds, err := time.ParseDuration(value + "s"); err == nil {
		return max(seconds, 0)
	}
	if at, err := http.ParseTime(value); err == nil {
		return max(at.Sub(now), 0)
	}
	return 0
}

func (r *RateLimiter) disabled(endpoint string) bool {
	return r == nil || r.Store == nil || strings.TrimSpace(endpoint) == ""
}

func (r *RateLimiter) load(ctx context.Context, endpoint string) (*core.RateLimitState, error) {
	state, err := r.Store.GetRateLimit(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	if state == nil {
		state = &core.RateLimitState{}
	}
	return state, nil
}

func (r *RateLimiter) limitFor(endpoint string) RateLimit {
	limits := r.Limits
	if limits == nil {
		limits = DefaultLimits
	}
	limit, ok := limits[endpoint]
	if !ok {
		limit = fallbackLimit
	}

	if r.Margin > 0 && r.Margin <= 1 {
		limit.RequestsPerWindow = max(1, int(math.Floor(float64(limit.RequestsPerWindow)*r.Margin)))
	}
	return limit
}

func (r *RateLimiter) now() time.Time {
	if r.Clock != nil {
		return r.Clock()
	}
	return time.Now().UTC()
}
