package checker

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newListServer(t *testing.T, lists map[string]string) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		body, ok := lists[strings.TrimPrefix(r.URL.Path, "/")]
		if !ok {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func listURLs(server *httptest.Server, categories ...string) map[string]string {
	urls := make(map[string]string, len(categories))
	for _, category := range categories {
		urls[category] = server.URL + "/" + category
	}
	return urls
}

func TestBlocklistCheckerMatch(t *testing.T) {
	server, _ := newListServer(t, map[string]string{
		"malware": "# malware list\nbad.example\n",
		"piracy":  "pirate.example\n",
	})

	checker := &BlocklistChecker{Lists: listURLs(server, "malware", "piracy"), Client: server.Client()}

	outcome := checker.Check(context.Background(), "pirate.example")
	assert.False(t, outcome.Passed)
	assert.Equal(t, "pirate.example is categorized as a piracy website.", outcome.Message)
}

func TestBlocklistCheckerNoMatch(t *testing.T) {
	server, _ := newListServer(t, map[string]string{
		"malware": "bad.example\n",
	})

	checker := &BlocklistChecker{Lists: listURLs(server, "malware"), Client: server.Client()}

	outcome := checker.Check(context.Background(), "good.example")
	assert.True(t, outcome.Passed)
	assert.False(t, outcome.Skipped)
	assert.Equal(t, "good.example not found in any list", outcome.Message)
}

func TestBlocklistCheckerExactMatchOnly(t *testing.T) {
	server, _ := newListServer(t, map[string]string{
		"malware": "bad.example\n",
	})

	checker := &BlocklistChecker{Lists: listURLs(server, "malware"), Client: server.Client()}

	assert.True(t, checker.Check(context.Background(), "sub.bad.example").Passed)
	assert.True(t, checker.Check(context.Background(), "BAD.example").Passed)
	assert.False(t, checker.Check(context.Background(), " bad.example ").Passed)
}

func TestBlocklistCheckerUnavailableListIsNoMatch(t *testing.T) {
	server, calls := newListServer(t, map[string]string{
		"malware": "bad.example\n",
	})

	checker := &BlocklistChecker{Lists: listURLs(server, "malware", "porn"), Client: server.Client()}

	first := checker.Check(context.Background(), "other.example")
	assert.True(t, first.Passed)

	second := checker.Check(context.Background(), "bad.example")
	assert.False(t, second.Passed)

	// The failed category is remembered instead of refetched.
	assert.Equal(t, int64(2), calls.Load())
}

func TestBlocklistCheckerFetchesEachListOnce(t *testing.T) {
	server, calls := newListServer(t, map[string]string{
		"malware": "bad.example\n",
		"piracy":  "pirate.example\n",
		"porn":    "adult.example\n",
	})

	checker := &BlocklistChecker{Lists: listURLs(server, "malware", "piracy", "porn"), Client: server.Client()}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = checker.Check(context.Background(), "example.org")
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(3), calls.Load())
	assert.Equal(t, int64(3), checker.Cache.Fetches())
}

func TestBlocklistCheckerCancelledCallerKeepsSharedFetch(t *testing.T) {
	server, _ := newListServer(t, map[string]string{
		"malware": "bad.example\n",
	})

	checker := &BlocklistChecker{Lists: listURLs(server, "malware"), Client: server.Client()}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome := checker.Check(ctx, "bad.example")
	assert.False(t, outcome.Passed)
}

func TestBlocklistCacheExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cache := NewBlocklistCache(time.Hour, time.Minute)
	cache.Clock = func() time.Time { return now }

	loads := 0
	load := func(context.Context) (DomainSet, error) {
		loads++
		return DomainSet{"bad.example": {}}, nil
	}

	set, err := cache.Get(context.Background(), "malware", load)
	require.NoError(t, err)
	assert.True(t, set.Has("bad.example"))

	_, err = cache.Get(context.Background(), "malware", load)
	require.NoError(t, err)
	assert.Equal(t, 1, loads)

	now = now.Add(2 * time.Hour)
	_, err = cache.Get(context.Background(), "malware", load)
	require.NoError(t, err)
	assert.Equal(t, 2, loads)
}

func TestBlocklistCacheRemembersFailure(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cache := NewBlocklistCache(time.Hour, time.Minute)
	cache.Clock = func() time.Time { return now }

	loads := 0
	load := func(context.Context) (DomainSet, error) {
		loads++
		return nil, errors.New("boom")
	}

	_, err := cache.Get(context.Background(), "malware", load)
	require.Error(t, err)

	_, err = cache.Get(context.Background(), "malware", load)
	require.ErrorIs(t, err, ErrListUnavailable)
	assert.Equal(t, 1, loads)

	now = now.Add(2 * time.Minute)
	_, err = cache.Get(context.Background(), "malware", load)
	require.Error(t, err)
	assert.Equal(t, 2, loads)
}

func TestParseDomainList(t *testing.T) {
	set, err := ParseDomainList(strings.NewReader("# header\n\n  Bad.Example  \nother.example\n#commented.example\n"))
	require.NoError(t, err)
	assert.Len(t, set, 2)
	assert.True(t, set.Has("Bad.Example"))
	assert.False(t, set.Has("bad.example"))
	assert.True(t, set.Has("other.example"))
	assert.False(t, set.Has("commented.example"))
}
