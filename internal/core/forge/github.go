package forge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/namelens/entryguard/internal/core"
	"github.com/namelens/entryguard/internal/core/engine"
)

const (
	defaultAPIURL     = "https://api.github.com"
	defaultEntriesDir = "entries/"
	defaultUserAgent  = "2factorauth/twofactorauth (+https://2fa.directory/bots)"
	pageSize          = 100
	maxPages          = 30
	maxBodyBytes      = 8 << 20
)

// GitHubDiscoverer lists the entry files touched by a pull request.
type GitHubDiscoverer struct {
	// Owner is used when a repository is given without an owner.
	Owner      string
	APIURL     string
	Token      string
	EntriesDir string
	UserAgent  string
	Client     *http.Client
	Limiter    *engine.RateLimiter
	Logger     *logging.Logger
}

type pullFile struct {
	Filename string `json:"filename"`
	Status   string `json:"status"`
	RawURL   string `json:"raw_url"`
}

type entryDocument struct {
	AdditionalDomains []string `json:"additional-domains"`
	Contact           struct {
		Facebook string `json:"facebook"`
	} `json:"contact"`
}

// Discover returns one entry per added or modified entry file, in listing order.
func (d *GitHubDiscoverer) Discover(ctx context.Context, repository string, pr int) ([]core.Entry, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if pr <= 0 {
		return nil, &FetchError{Op: "list files", Err: fmt.Errorf("invalid pull request number %d", pr)}
	}

	repo, err := d.repository(repository)
	if err != nil {
		return nil, &FetchError{Op: "list files", Err: err}
	}

	files, err := d.listFiles(ctx, repo, pr)
	if err != nil {
		return nil, err
	}

	entries := make([]core.Entry, 0, len(files))
	for _, file := range files {
		if !d.isEntryFile(file) {
			continue
		}

		entry, err := d.fetchEntry(ctx, file)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if d.Logger != nil {
		d.Logger.Debug("entries discovered",
			zap.String("repository", repo),
			zap.Int("pull_request", pr),
			zap.Int("files", len(files)),
			zap.Int("entries", len(entries)))
	}

	return entries, nil
}

func (d *GitHubDiscoverer) listFiles(ctx context.Context, repo string, pr int) ([]pullFile, error) {
	base, err := url.Parse(strings.TrimRight(d.apiURL(), "/"))
	if err != nil {
		return nil, &FetchError{Op: "list files", URL: d.apiURL(), Err: err}
	}

	var files []pullFile
	for page := 1; page <= maxPages; page++ {
		reqURL := base.JoinPath("repos", repo, "pulls", strconv.Itoa(pr), "files")
		query := url.Values{}
		query.Set("per_page", strconv.Itoa(pageSize))
		query.Set("page", strconv.Itoa(page))
		reqURL.RawQuery = query.Encode()

		body, err := d.get(ctx, "list files", reqURL.String(), "application/vnd.github.v3+json")
		if err != nil {
			return nil, err
		}

		var batch []pullFile
		if err := json.Unmarshal(body, &batch); err != nil {
			return nil, &FetchError{Op: "list files", URL: reqURL.String(), Err: err}
		}
		files = append(files, batch...)

		if len(batch) < pageSize {
			break
		}
	}

	return files, nil
}

func (d *GitHubDiscoverer) fetchEntry(ctx context.Context, file pullFile) (core.Entry, error) {
	body, err := d.get(ctx, "fetch entry", file.RawURL, "")
	if err != nil {
		return core.Entry{}, err
	}

	doc, err := decodeEntry(body)
	if err != nil {
		return core.Entry{}, &FetchError{Op: "decode entry", URL: file.RawURL, Err: err}
	}

	entry := core.Entry{
		File:          file.Filename,
		Domain:        DomainFromPath(file.Filename),
		ContactHandle: strings.TrimSpace(doc.Contact.Facebook),
	}
	for _, domain := range doc.AdditionalDomains {
		if domain = strings.TrimSpace(domain); domain != "" {
			entry.AdditionalDomains = append(entry.AdditionalDomains, domain)
		}
	}
	return entry, nil
}

func (d *GitHubDiscoverer) get(ctx context.Context, op, target, accept string) ([]byte, error) {
	parsed, err := url.Parse(target)
	if err != nil || parsed.Host == "" {
		if err == nil {
			err = errors.New("missing host")
		}
		return nil, &FetchError{Op: op, URL: target, Err: err}
	}

	endpoint := parsed.Hostname()
	if err := d.Limiter.Wait(ctx, endpoint); err != nil {
		if !errors.Is(err, engine.ErrLimiterStore) {
			return nil, &FetchError{Op: op, URL: target, StatusCode: http.StatusTooManyRequests, Err: err}
		}
		if d.Logger != nil {
			d.Logger.Warn("rate limiter", zap.String("endpoint", endpoint), zap.Error(err))
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &FetchError{Op: op, URL: target, Err: err}
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	req.Header.Set("User-Agent", d.userAgent())
	if token := strings.TrimSpace(d.Token); token != "" && d.sameHost(parsed) {
		req.Header.Set("Authorization", "token "+token)
	}

	resp, err := d.client().Do(req)
	if err != nil {
		return nil, &FetchError{Op: op, URL: target, Err: err}
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests {
		if retry := engine.RetryAfter(resp.Header, time.Now()); retry > 0 {
			_ = d.Limiter.Backoff(ctx, endpoint, retry)
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &FetchError{Op: op, URL: target, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &FetchError{Op: op, URL: target, Err: err}
	}
	return body, nil
}

// decodeEntry reads the entry object stored under the document's first key.
func decodeEntry(body []byte) (entryDocument, error) {
	var doc entryDocument

	dec := json.NewDecoder(bytes.NewReader(body))
	tok, err := dec.Token()
	if err != nil {
		return doc, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return doc, errors.New("entry document is not an object")
	}

	if !dec.More() {
		return doc, nil
	}
	if _, err := dec.Token(); err != nil {
		return doc, err
	}

	var first json.RawMessage
	if err := dec.Decode(&first); err != nil {
		return doc, err
	}

	target := []byte(first)
	if trimmed := bytes.TrimSpace(first); len(trimmed) == 0 || trimmed[0] != '{' {
		target = body
	}
	if err := json.Unmarshal(target, &doc); err != nil {
		return doc, err
	}
	return doc, nil
}

// DomainFromPath derives the entry domain from its file name:
// entries/e/example.com.json -> example.com.
func DomainFromPath(filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if ext := path.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}

func (d *GitHubDiscoverer) isEntryFile(file pullFile) bool {
	if strings.EqualFold(file.Status, "removed") {
		return false
	}
	dir := d.EntriesDir
	if strings.TrimSpace(dir) == "" {
		dir = defaultEntriesDir
	}
	return strings.HasPrefix(file.Filename, dir) && strings.HasSuffix(file.Filename, ".json")
}

func (d *GitHubDiscoverer) repository(value string) (string, error) {
	value = strings.Trim(strings.TrimSpace(value), "/")
	if value == "" {
		return "", errors.New("repository is required")
	}
	if strings.Contains(value, "/") {
		return value, nil
	}
	owner := strings.TrimSpace(d.Owner)
	if owner == "" {
		return "", fmt.Errorf("repository %q has no owner", value)
	}
	return owner + "/" + value, nil
}

func (d *GitHubDiscoverer) sameHost(target *url.URL) bool {
	api, err := url.Parse(d.apiURL())
	if err != nil {
		return false
	}
	return strings.EqualFold(api.Host, target.Host)
}

func (d *GitHubDiscoverer) apiURL() string {
	if strings.TrimSpace(d.APIURL) != "" {
		return d.APIURL
	}
	return defaultAPIURL
}

func (d *GitHubDiscoverer) userAgent() string {
	if strings.TrimSpace(d.UserAgent) != "" {
		return d.UserAgent
	}
	return defaultUserAgent
}

func (d *GitHubDiscoverer) client() *http.Client {
	if d.Client != nil {
		return d.Client
	}
	return &http.Client{Timeout: 15 * time.Second}
}
