package checker

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/namelens/entryguard/internal/core"
	"github.com/namelens/entryguard/internal/core/engine"
)

const (
	blocklistCheckName = "Blocklist"

	// DefaultBlocklistTTL bounds how long a fetched list is reused.
	DefaultBlocklistTTL = 24 * time.Hour

	// DefaultBlocklistFailureTTL bounds how long a failed fetch is remembered.
	DefaultBlocklistFailureTTL = time.Minute
)

// DefaultBlocklists maps each category to its plain domain list.
var DefaultBlocklists = map[string]string{
	"malware": "https://blocklistproject.github.io/Lists/alt-version/malware-nl.txt",
	"piracy":  "https://blocklistproject.github.io/Lists/alt-version/piracy-nl.txt",
	"porn":    "https://blocklistproject.github.io/Lists/alt-version/porn-nl.txt",
}

// BlocklistChecker tests a domain against categorized domain lists.
type BlocklistChecker struct {
	Lists     map[string]string
	Cache     *BlocklistCache
	Client    *http.Client
	Limiter   *engine.RateLimiter
	UserAgent string
	Logger    *logging.Logger

	once sync.Once
}

// Name returns the label used in log lines.
func (c *BlocklistChecker) Name() string {
	return blocklistCheckName
}

// Check reports whether domain appears in any configured list.
//
// Membership is exact; subdomains of a listed domain are not matched. A list
// that cannot be fetched counts as no match.
func (c *BlocklistChecker) Check(ctx context.Context, domain string) core.Outcome {
	if ctx == nil {
		ctx = context.Background()
	}

	domain = strings.TrimSpace(domain)
	if domain == "" {
		return core.Failure("Invalid domain", "domain is required")
	}

	cache := c.cache()
	lists := c.lists()

	categories := make([]string, 0, len(lists))
	for category := range lists {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	// Shared fetches outlive any single caller.
	fetchCtx := context.WithoutCancel(ctx)

	var (
		mu      sync.Mutex
		matched string
	)
	var group errgroup.Group
	for _, category := range categories {
		source := lists[category]
		group.Go(func() error {
			set, err := cache.Get(fetchCtx, category, func(ctx context.Context) (DomainSet, error) {
				return c.fetch(ctx, source)
			})
			if err != nil {
				c.warn("blocklist unavailable", category, err)
				return nil
			}
			if !set.Has(domain) {
				return nil
			}
			mu.Lock()
			if matched == "" {
				matched = category
			}
			mu.Unlock()
			return nil
		})
	}
	_ = group.Wait()

	if matched != "" {
		return core.Failure(fmt.Sprintf("%s is blocklisted", domain),
			fmt.Sprintf("%s is categorized as a %s website.", domain, matched))
	}

	return core.Outcome{Passed: true, Message: fmt.Sprintf("%s not found in any list", domain)}
}

func (c *BlocklistChecker) fetch(ctx context.Context, source string) (DomainSet, error) {
	parsed, err := url.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("parse list url: %w", err)
	}

	endpoint := parsed.Hostname()
	if err := c.Limiter.Wait(ctx, endpoint); err != nil {
		if !errors.Is(err, engine.ErrLimiterStore) {
			return nil, err
		}
		c.warn("rate limiter", endpoint, err)
	}

	req, err := newGet(ctx, source, c.UserAgent)
	if err != nil {
		return nil, err
	}

	resp, err := httpClient(c.Client).Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	if !isSuccess(resp.StatusCode) {
		if retry := engine.RetryAfter(resp.Header, time.Now()); retry > 0 {
			_ = c.Limiter.Backoff(ctx, endpoint, retry)
		}
		return nil, fmt.Errorf("fetch %s: HTTP %d", source, resp.StatusCode)
	}

	return ParseDomainList(resp.Body)
}

// ParseDomainList reads one domain per line, ignoring blanks and # comments.
func ParseDomainList(r io.Reader) (DomainSet, error) {
	set := make(DomainSet)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		set[line] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return set, nil
}

func (c *BlocklistChecker) lists() map[string]string {
	if len(c.Lists) > 0 {
		return c.Lists
	}
	return DefaultBlocklists
}

func (c *BlocklistChecker) cache() *BlocklistCache {
	c.once.Do(func() {
		if c.Cache == nil {
			c.Cache = NewBlocklistCache(DefaultBlocklistTTL, DefaultBlocklistFailureTTL)
		}
	})
	return c.Cache
}

func (c *BlocklistChecker) warn(msg, category string, err error) {
	if c.Logger == nil {
		return
	}
	c.Logger.Warn(msg, zap.String("list", category), zap.Error(err))
}
