package checker

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultUserAgent identifies outbound requests to upstream services.
const DefaultUserAgent = "2factorauth/twofactorauth (+https://2fa.directory/bots)"

const maxBodyBytes = 4 << 20

func httpClient(client *http.Client) *http.Client {
	if client != nil {
		return client
	}
	return &http.Client{Timeout: 10 * time.Second}
}

func parseBaseURL(value, fallback string) *url.URL {
	if strings.TrimSpace(value) != "" {
		if parsed, err := url.Parse(strings.TrimRight(value, "/")); err == nil {
			return parsed
		}
	}
	parsed, _ := url.Parse(fallback)
	return parsed
}

func newGet(ctx context.Context, target, userAgent string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(userAgent) == "" {
		userAgent = DefaultUserAgent
	}
	req.Header.Set("User-Agent", userAgent)
	return req, nil
}

func readBody(resp *http.Response) (string, error) {
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func isSuccess(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}
