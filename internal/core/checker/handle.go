package checker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/namelens/entryguard/internal/core"
	"github.com/namelens/entryguard/internal/core/engine"
)

const (
	handleCheckName      = "Facebook"
	defaultHandleBaseURL = "https://www.facebook.com"

	// DefaultHandleTTL applies to definitive handle answers when no policy is set.
	DefaultHandleTTL = 7 * 24 * time.Hour
)

// HandleChecker verifies that a Facebook contact page exists.
type HandleChecker struct {
	Store       ResponseStore
	Client      *http.Client
	Limiter     *engine.RateLimiter
	CachePolicy CachePolicy
	UseCache    bool
	BaseURL     string
	UserAgent   string
	Logger      *logging.Logger
	Clock       func() time.Time
}

// Name returns the label used in log lines.
func (c *HandleChecker) Name() string {
	return handleCheckName
}

// Check fetches the public page for handle.
func (c *HandleChecker) Check(ctx context.Context, handle string) core.Outcome {
	if ctx == nil {
		ctx = context.Background()
	}

	value := strings.TrimPrefix(strings.TrimSpace(handle), "@")
	if value == "" {
		return core.Failure("Invalid handle", "contact handle is required")
	}

	cache := c.cache()
	if cached := cache.get(ctx, value); cached != nil {
		return c.evaluate(value, cached.StatusCode)
	}

	baseURL := parseBaseURL(c.BaseURL, defaultHandleBaseURL)
	endpoint := baseURL.Hostname()

	if err := c.Limiter.Wait(ctx, endpoint); err != nil {
		if c.Logger != nil {
			c.Logger.Warn("rate limiter", zap.String("handle", value), zap.Error(err))
		}
		if !errors.Is(err, engine.ErrLimiterStore) {
			return handleNotFound(value)
		}
	}

	req, err := newGet(ctx, baseURL.JoinPath(url.PathEscape(value)).String(), c.UserAgent)
	if err != nil {
		return handleNotFound(value)
	}

	resp, err := httpClient(c.Client).Do(req)
	if err != nil {
		if c.Logger != nil {
			c.Logger.Warn("handle request failed", zap.String("handle", value), zap.Error(err))
		}
		return handleNotFound(value)
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	if resp.StatusCode == http.StatusTooManyRequests {
		if retry := engine.RetryAfter(resp.Header, c.now()); retry > 0 {
			_ = c.Limiter.Backoff(ctx, endpoint, retry)
		}
	}

	cache.put(ctx, value, resp.StatusCode, "", c.now())
	return c.evaluate(value, resp.StatusCode)
}

func (c *HandleChecker) evaluate(handle string, statusCode int) core.Outcome {
	switch {
	case isSuccess(statusCode):
		return core.Success(handle)
	default:
		if c.Logger != nil {
			c.Logger.Debug("handle lookup failed", zap.String("handle", handle), zap.Int("status_code", statusCode))
		}
		return handleNotFound(handle)
	}
}

func handleNotFound(handle string) core.Outcome {
	return core.Failure("Facebook handle not found",
		fmt.Sprintf("Failed to fetch Facebook page %s; the page may be private", handle))
}

func (c *HandleChecker) cache() responseCache {
	policy := c.CachePolicy
	if policy.PositiveTTL == 0 {
		policy.PositiveTTL = DefaultHandleTTL
	}
	return responseCache{
		store:     c.Store,
		enabled:   c.UseCache,
		policy:    policy,
		checkType: core.CheckTypeHandle,
	}
}

func (c *HandleChecker) now() time.Time {
	if c.Clock != nil {
		return c.Clock()
	}
	return time.Now().UTC()
}
