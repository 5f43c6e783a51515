package checker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/namelens/entryguard/internal/core"
	"github.com/namelens/entryguard/internal/core/engine"
)

const (
	rankCheckName      = "SimilarWeb"
	defaultRankBaseURL = "https://api.similarweb.com"
)

// RankChecker validates a domain's global traffic rank.
type RankChecker struct {
	Store       ResponseStore
	Client      *http.Client
	Limiter     *engine.RateLimiter
	CachePolicy CachePolicy
	UseCache    bool
	BaseURL     string
	UserAgent   string
	Logger      *logging.Logger
	Clock       func() time.Time

	// APIKeys are rotated at random per call.
	APIKeys []string

	// Threshold is the highest acceptable rank; zero disables the limit.
	Threshold int64

	// Pick selects an index in [0, n); defaults to math/rand.
	Pick func(n int) int
}

type rankPayload struct {
	Meta struct {
		Status string `json:"status"`
	} `json:"meta"`
	SimilarRank *struct {
		Rank int64 `json:"rank"`
	} `json:"similar_rank"`
}

// Name returns the label used in log lines.
func (c *RankChecker) Name() string {
	return rankCheckName
}

// Check looks up the rank of domain's base domain.
func (c *RankChecker) Check(ctx context.Context, domain string) core.Outcome {
	if ctx == nil {
		ctx = context.Background()
	}

	display := strings.TrimSpace(domain)
	lookup := BaseDomain(display)
	if lookup == "" {
		return core.Failure("Invalid domain", "domain is required")
	}

	cache := c.cache()
	if cached := cache.get(ctx, lookup); cached != nil {
		c.debug("rank cache hit", lookup, cached.StatusCode)
		return c.evaluate(display, cached.StatusCode, cached.Body)
	}

	baseURL := parseBaseURL(c.BaseURL, defaultRankBaseURL)
	endpoint := baseURL.Hostname()

	key := c.apiKey()
	if key == "" {
		return core.ReviewRequired("Manual review required",
			fmt.Sprintf("No SimilarWeb API key configured to rank %s; manual review required.", display))
	}

	if err := c.Limiter.Wait(ctx, endpoint); err != nil {
		c.warn("rate limiter", lookup, err)
		if !errors.Is(err, engine.ErrLimiterStore) {
			return rankFetchFailure()
		}
	}

	reqURL := baseURL.JoinPath("v1", "similar-rank", lookup, "rank")
	query := url.Values{}
	query.Set("api_key", key)
	reqURL.RawQuery = query.Encode()

	req, err := newGet(ctx, reqURL.String(), c.UserAgent)
	if err != nil {
		return rankFetchFailure()
	}
	req.Header.Set("Accept", "application/json")

	resp, err := httpClient(c.Client).Do(req)
	if err != nil {
		c.warn("rank request failed", lookup, err)
		return rankFetchFailure()
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	body, err := readBody(resp)
	if err != nil {
		c.warn("rank response unreadable", lookup, err)
		return rankFetchFailure()
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusForbidden {
		if retry := engine.RetryAfter(resp.Header, c.now()); retry > 0 {
			_ = c.Limiter.Backoff(ctx, endpoint, retry)
		}
	}

	if isSuccess(resp.StatusCode) && !rankAnswered(body) {
		cache.putRetryable(ctx, lookup, resp.StatusCode, body, c.now())
	} else {
		cache.put(ctx, lookup, resp.StatusCode, body, c.now())
	}
	return c.evaluate(display, resp.StatusCode, body)
}

func (c *RankChecker) evaluate(domain string, statusCode int, body string) core.Outcome {
	switch {
	case statusCode == http.StatusNotFound:
		return unranked(domain)
	case statusCode == http.StatusForbidden || statusCode == http.StatusTooManyRequests:
		return core.ReviewRequired("Manual review required",
			fmt.Sprintf("SimilarWeb refused the rank lookup for %s (HTTP %d); manual review required.", domain, statusCode))
	case !isSuccess(statusCode):
		return rankFetchFailure()
	}

	var payload rankPayload
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return rankFetchFailure()
	}

	// Upstream API trouble must not block the pull request.
	if payload.Meta.Status != "Success" {
		if c != nil && c.Logger != nil {
			c.Logger.Warn("rank API returned non-success status",
				zap.String("domain", domain),
				zap.String("status", payload.Meta.Status))
		}
		return core.Skipped(fmt.Sprintf("rank API status %q", payload.Meta.Status))
	}

	if payload.SimilarRank == nil {
		return unranked(domain)
	}

	rank := payload.SimilarRank.Rank
	if c != nil && c.Threshold > 0 && rank > c.Threshold {
		return core.Failure(fmt.Sprintf("%s rank exceeds limit", domain),
			fmt.Sprintf("%s SimilarWeb rank %s exceeds the limit of %s.", domain, humanize.Comma(rank), humanize.Comma(c.Threshold)))
	}

	c.debug("rank resolved", domain, statusCode)
	return core.Success(humanize.Comma(rank))
}

// rankAnswered reports whether a 2xx body is a definitive rank answer.
func rankAnswered(body string) bool {
	var payload rankPayload
	return json.Unmarshal([]byte(body), &payload) == nil && payload.Meta.Status == "Success"
}

func unranked(domain string) core.Outcome {
	return core.Failure(fmt.Sprintf("%s is unranked", domain),
		fmt.Sprintf("%s doesn't have a SimilarWeb rank.", domain))
}

func rankFetchFailure() core.Outcome {
	return core.Failure("Rank lookup failed", "Unable to fetch website rank")
}

func (c *RankChecker) apiKey() string {
	keys := make([]string, 0, len(c.APIKeys))
	for _, key := range c.APIKeys {
		if key = strings.TrimSpace(key); key != "" {
			keys = append(keys, key)
		}
	}
	switch len(keys) {
	case 0:
		return ""
	case 1:
		return keys[0]
	}

	pick := c.Pick
	if pick == nil {
		pick = rand.IntN
	}
	return keys[pick(len(keys))]
}

func (c *RankChecker) cache() responseCache {
	return responseCache{
		store:     c.Store,
		enabled:   c.UseCache,
		policy:    c.CachePolicy,
		checkType: core.CheckTypeRank,
	}
}

func (c *RankChecker) debug(msg, domain string, statusCode int) {
	if c == nil || c.Logger == nil {
		return
	}
	c.Logger.Debug(msg, zap.String("domain", domain), zap.Int("status_code", statusCode))
}

func (c *RankChecker) warn(msg, domain string, err error) {
	if c.Logger == nil {
		return
	}
	c.Logger.Warn(msg, zap.String("domain", domain), zap.Error(err))
}

func (c *RankChecker) now() time.Time {
	if c.Clock != nil {
		return c.Clock()
	}
	return time.Now().UTC()
}
