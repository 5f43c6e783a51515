package checker

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/namelens/entryguard/internal/core"
	"github.com/namelens/entryguard/internal/metrics"
)

// DefaultPositiveTTL applies to definitive answers when no policy is set.
const DefaultPositiveTTL = 14 * 24 * time.Hour

// CachePolicy controls how long upstream responses are reused.
//
// PositiveTTL covers definitive answers (2xx and 404). ErrorTTL covers rate
// limited and failed responses, and 2xx bodies without a usable answer. Zero
// or negative means those are never cached.
type CachePolicy struct {
	PositiveTTL time.Duration
	ErrorTTL    time.Duration
}

func cachePolicyWithDefaults(policy CachePolicy) CachePolicy {
	if policy.PositiveTTL == 0 {
		policy.PositiveTTL = DefaultPositiveTTL
	}
	return policy
}

func cacheTTL(policy CachePolicy, statusCode int) time.Duration {
	policy = cachePolicyWithDefaults(policy)

	switch {
	case statusCode >= 200 && statusCode < 300, statusCode == http.StatusNotFound:
		return policy.PositiveTTL
	default:
		return policy.ErrorTTL
	}
}

type responseCache struct {
	store     ResponseStore
	enabled   bool
	policy    CachePolicy
	checkType core.CheckType
}

func (c responseCache) get(ctx context.Context, key string) *core.CachedResponse {
	if c.store == nil || !c.enabled {
		return nil
	}
	cached, err := c.store.GetCachedResponse(ctx, strings.ToLower(key), c.checkType)
	if err != nil || !cached.Fresh(time.Now().UTC()) {
		cached = nil
	}
	metrics.RecordCacheLookup(string(c.checkType), cached != nil)
	return cached
}

func (c responseCache) put(ctx context.Context, key string, statusCode int, body string, now time.Time) {
	c.putTTL(ctx, key, statusCode, body, now, cacheTTL(c.policy, statusCode))
}

// putRetryable stores a 2xx that carried no usable answer under ErrorTTL.
func (c responseCache) putRetryable(ctx context.Context, key string, statusCode int, body string, now time.Time) {
	c.putTTL(ctx, key, statusCode, body, now, c.policy.ErrorTTL)
}

func (c responseCache) putTTL(ctx context.Context, key string, statusCode int, body string, now time.Time, ttl time.Duration) {
	if c.store == nil || !c.enabled || ttl <= 0 {
		return
	}

	_ = c.store.SetCachedResponse(ctx, strings.ToLower(key), c.checkType, &core.CachedResponse{
		StatusCode: statusCode,
		Body:       body,
		CheckedAt:  now,
	}, ttl)
}
