package engine

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/namelens/entryguard/internal/core"
)

type memoryRateStore struct {
	mu    sync.Mutex
	state map[string]core.RateLimitState
}

func (m *memoryRateStore) GetRateLimit(ctx context.Context, endpoint string) (*core.RateLimitState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if val, ok := m.state[endpoint]; ok {
		return &val, nil
	}
	return nil, nil
}

func (m *memoryRateStore) UpdateRateLimit(ctx context.Context, endpoint string, state *core.RateLimitState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		m.state = make(map[string]core.RateLimitState)
	}
	m.state[endpoint] = *state
	return nil
}

func TestRateLimiterWindow(t *testing.T) {
	store := &memoryRateStore{}
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := &RateLimiter{
		Store: store,
		Limits: map[string]RateLimit{
			"api.similarweb.com": {RequestsPerWindow: 1, WindowDuration: time.Minute},
		},
		Clock: func() time.Time { return clock },
	}

	allowed, _, err := limiter.Acquire(context.Background(), "api.similarweb.com")
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, wait, err := limiter.Acquire(context.Background(), "api.similarweb.com")
	require.NoError(t, err)
	require.False(t, allowed)
	require.Equal(t, time.Minute, wait)

	clock = clock.Add(2 * time.Minute)
	allowed, _, err = limiter.Acquire(context.Background(), "api.similarweb.com")
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestRateLimiterBackoff(t *testing.T) {
	store := &memoryRateStore{}
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := &RateLimiter{
		Store: store,
		Clock: func() time.Time { return now },
	}

	require.NoError(t, limiter.Backoff(context.Background(), "api.github.com", 30*time.Second))

	wait, err := limiter.Pending(context.Background(), "api.github.com")
	require.NoError(t, err)
	require.Equal(t, 30*time.Second, wait)

	allowed, wait, err := limiter.Acquire(context.Background(), "api.github.com")
	require.NoError(t, err)
	require.False(t, allowed)
	require.Equal(t, 30*time.Second, wait)

	state := store.state["api.github.com"]
	require.NotNil(t, state.Last429At)
	require.Zero(t, state.RequestCount)

	now = now.Add(31 * time.Second)
	allowed, _, err = limiter.Acquire(context.Background(), "api.github.com")
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestRateLimiterBackoffWithoutRetryAfter(t *testing.T) {
	store := &memoryRateStore{}
	limiter := &RateLimiter{Store: store}

	require.NoError(t, limiter.Backoff(context.Background(), "www.facebook.com", 0))

	wait, err := limiter.Pending(context.Background(), "www.facebook.com")
	require.NoError(t, err)
	require.Zero(t, wait)
	require.Nil(t, store.state["www.facebook.com"].BackoffUntil)
}

func TestRateLimiterConcurrentAcquire(t *testing.T) {
	store := &memoryRateStore{}
	limiter := &RateLimiter{
		Store: store,
		Limits: map[string]RateLimit{
			"www.facebook.com": {RequestsPerWindow: 5, WindowDuration: time.Hour},
		},
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			allowed, _, err := limiter.Acquire(context.Background(), "www.facebook.com")
			assert.NoError(t, err)
			if allowed {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 5, granted)
}

func TestRateLimiterConfigure(t *testing.T) {
	limiter := &RateLimiter{Store: &memoryRateStore{}}

	limiter.Configure(map[string]int{"api.similarweb.com": 20, " ": 5, "www.facebook.com": 0}, 0.9)

	require.Equal(t, RateLimit{RequestsPerWindow: 18, WindowDuration: time.Minute}, limiter.limitFor("api.similarweb.com"))
	require.Equal(t, 27, limiter.limitFor("www.facebook.com").RequestsPerWindow)
	require.Equal(t, 27, limiter.limitFor("unknown.example").RequestsPerWindow)
	require.Equal(t, 4500, limiter.limitFor("api.github.com").RequestsPerWindow)
	require.Len(t, limiter.Limits, len(DefaultLimits))
}

func TestRateLimiterMarginKeepsOneRequest(t *testing.T) {
	limiter := &RateLimiter{
		Limits: map[string]RateLimit{"tiny.example": {RequestsPerWindow: 1, WindowDuration: time.Minute}},
	}
	limiter.Configure(nil, 0.1)
	require.Equal(t, 1, limiter.limitFor("tiny.example").RequestsPerWindow)

	limiter.Configure(nil, 1.5)
	require.Equal(t, 0.1, limiter.Margin)
}

func TestRateLimiterWithoutStoreAllows(t *testing.T) {
	for _, limiter := range []*RateLimiter{nil, {}} {
		for i := 0; i < 3; i++ {
			allowed, wait, err := limiter.Acquire(context.Background(), "api.github.com")
			require.NoError(t, err)
			require.True(t, allowed)
			require.Zero(t, wait)
		}
		require.NoError(t, limiter.Backoff(context.Background(), "api.github.com", time.Minute))
	}
}

type failingRateStore struct{}

func (failingRateStore) GetRateLimit(context.Context, string) (*core.RateLimitState, error) {
	return nil, errors.New("database is locked")
}

func (failingRateStore) UpdateRateLimit(context.Context, string, *core.RateLimitState) error {
	return errors.New("database is locked")
}

func TestRateLimiterWaitGivesUpBeyondMaxWait(t *testing.T) {
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := &RateLimiter{
		Store:   &memoryRateStore{},
		Limits:  map[string]RateLimit{"api.similarweb.com": {RequestsPerWindow: 1, WindowDuration: time.Minute}},
		Clock:   func() time.Time { return clock },
		MaxWait: 10 * time.Millisecond,
	}

	require.NoError(t, limiter.Wait(context.Background(), "api.similarweb.com"))
	err := limiter.Wait(context.Background(), "api.similarweb.com")
	require.ErrorIs(t, err, ErrRateLimited)
}

func TestRateLimiterWaitSleepsUntilWindowOpens(t *testing.T) {
	limiter := &RateLimiter{
		Store:   &memoryRateStore{},
		Limits:  map[string]RateLimit{"api.similarweb.com": {RequestsPerWindow: 1, WindowDuration: 40 * time.Millisecond}},
		MaxWait: 5 * time.Second,
	}

	start := time.Now()
	require.NoError(t, limiter.Wait(context.Background(), "api.similarweb.com"))
	require.NoError(t, limiter.Wait(context.Background(), "api.similarweb.com"))
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestRateLimiterWaitHonoursContext(t *testing.T) {
	limiter := &RateLimiter{
		Store:   &memoryRateStore{},
		Limits:  map[string]RateLimit{"api.similarweb.com": {RequestsPerWindow: 1, WindowDuration: time.Minute}},
		MaxWait: 2 * time.Minute,
	}
	require.NoError(t, limiter.Wait(context.Background(), "api.similarweb.com"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, limiter.Wait(ctx, "api.similarweb.com"), context.DeadlineExceeded)
}

func TestRateLimiterWaitStoreFailureStillAllows(t *testing.T) {
	limiter := &RateLimiter{Store: failingRateStore{}}

	err := limiter.Wait(context.Background(), "api.similarweb.com")
	require.ErrorIs(t, err, ErrLimiterStore)
	assert.NotErrorIs(t, err, ErrRateLimited)

	var nilLimiter *RateLimiter
	assert.NoError(t, nilLimiter.Wait(context.Background(), "api.similarweb.com"))
}

func TestRetryAfter(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	header := func(value string) http.Header {
		h := http.Header{}
		if value != "" {
			h.Set("Retry-After", value)
		}
		return h
	}

	assert.Equal(t, 30*time.Second, RetryAfter(header("30"), now))
	assert.Equal(t, 90*time.Second, RetryAfter(header(now.Add(90*time.Second).Format(http.TimeFormat)), now))
	assert.Zero(t, RetryAfter(header(now.Add(-time.Minute).Format(http.TimeFormat)), now))
	assert.Zero(t, RetryAfter(header("-5"), now))
	assert.Zero(t, RetryAfter(header("soon"), now))
	assert.Zero(t, RetryAfter(header(""), now))
}
