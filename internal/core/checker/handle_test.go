package checker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/namelens/entryguard/internal/core"
	"github.com/namelens/entryguard/internal/core/engine"
)

func TestHandleCheckerFound(t *testing.T) {
	var path atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path.Store(r.URL.Path)
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	checker := &HandleChecker{Client: server.Client(), BaseURL: server.URL}

	outcome := checker.Check(context.Background(), "@example")
	assert.True(t, outcome.Passed)
	assert.Equal(t, "/example", path.Load())
}

func TestHandleCheckerNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	checker := &HandleChecker{Client: server.Client(), BaseURL: server.URL}

	outcome := checker.Check(context.Background(), "missing")
	assert.False(t, outcome.Passed)
	assert.False(t, outcome.Advisory)
	assert.Equal(t, "Facebook handle not found", outcome.Title)
	assert.Equal(t, "Failed to fetch Facebook page missing; the page may be private", outcome.Message)
}

func TestHandleCheckerRateLimitedIsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	parsed, err := url.Parse(server.URL)
	require.NoError(t, err)
	store := &memoryRateStore{}
	checker := &HandleChecker{
		Client:  server.Client(),
		BaseURL: server.URL,
		Limiter: &engine.RateLimiter{Store: store},
	}

	outcome := checker.Check(context.Background(), "example")
	assert.False(t, outcome.Passed)
	assert.False(t, outcome.Advisory)
	assert.Equal(t, "Facebook handle not found", outcome.Title)
	assert.Equal(t, core.LogError, engine.Classify(outcome, engine.SeverityError))

	state, err := store.GetRateLimit(context.Background(), parsed.Hostname())
	require.NoError(t, err)
	require.NotNil(t, state)
	require.NotNil(t, state.BackoffUntil)
}

func TestHandleCheckerLimiterDenialIsFailure(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	parsed, err := url.Parse(server.URL)
	require.NoError(t, err)
	frozen := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	checker := &HandleChecker{
		Client:  server.Client(),
		BaseURL: server.URL,
		Limiter: &engine.RateLimiter{
			Store:   &memoryRateStore{},
			Limits:  map[string]engine.RateLimit{parsed.Hostname(): {RequestsPerWindow: 1, WindowDuration: time.Minute}},
			Clock:   func() time.Time { return frozen },
			MaxWait: 10 * time.Millisecond,
		},
	}

	assert.True(t, checker.Check(context.Background(), "first").Passed)

	outcome := checker.Check(context.Background(), "second")
	assert.False(t, outcome.Passed)
	assert.False(t, outcome.Advisory)
	assert.Equal(t, int64(1), calls.Load())
}

func TestHandleCheckerCachesDefinitiveAnswers(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	store := newMemoryResponseStore()
	checker := &HandleChecker{Store: store, UseCache: true, Client: server.Client(), BaseURL: server.URL}

	require.True(t, checker.Check(context.Background(), "Example").Passed)
	require.True(t, checker.Check(context.Background(), "example").Passed)
	assert.Equal(t, int64(1), calls.Load())

	ttl, ok := store.ttl(core.CheckTypeHandle, "example")
	require.True(t, ok)
	assert.Equal(t, DefaultHandleTTL, ttl)
}
