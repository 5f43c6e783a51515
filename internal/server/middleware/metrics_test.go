package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fulmenhq/gofulmen/telemetry"
	telemetrytesting "github.com/fulmenhq/gofulmen/telemetry/testing"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/namelens/entryguard/internal/observability"
)

func setupTelemetry(t *testing.T) *telemetrytesting.FakeCollector {
	t.Helper()

	collector := telemetrytesting.NewFakeCollector()
	sys, err := telemetry.NewSystem(&telemetry.Config{Enabled: true, Emitter: collector})
	require.NoError(t, err)

	original := observability.TelemetrySystem
	observability.TelemetrySystem = sys
	t.Cleanup(func() { observability.TelemetrySystem = original })

	return collector
}

func serveWithMetrics(handler http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	RequestID(RequestMetrics(handler)).ServeHTTP(rec, req)
	return rec
}

func TestRequestMetricsEmitsPerStatus(t *testing.T) {
	cases := []struct {
		name       string
		status     int
		wantErrors bool
	}{
		{"annotations returned", http.StatusOK, false},
		{"check fault", http.StatusBadRequest, true},
		{"discovery failure", http.StatusInternalServerError, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			collector := setupTelemetry(t)

			rec := serveWithMetrics(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set(runIDHeader, "run-1")
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte("::warning file=f,title=t::m"))
			}, httptest.NewRequest(http.MethodGet, "/twofactorauth/4821", nil))

			assert.Equal(t, tc.status, rec.Code)
			assert.Greater(t, collector.CountMetricsByName("http_requests_total"), 0)
			assert.Greater(t, collector.CountMetricsByName("http_request_duration_ms"), 0)
			assert.Greater(t, collector.CountMetricsByName("http_response_size_bytes"), 0)
			if tc.wantErrors {
				assert.Greater(t, collector.CountMetricsByName("http_errors_total"), 0)
			} else {
				assert.Zero(t, collector.CountMetricsByName("http_errors_total"))
			}
		})
	}
}

func TestRequestMetricsRecordsRequestSize(t *testing.T) {
	collector := setupTelemetry(t)

	req := httptest.NewRequest(http.MethodPost, "/twofactorauth/1", strings.NewReader("{}"))
	req.Header.Set("Content-Length", "1024")
	serveWithMetrics(func(w http.ResponseWriter, r *http.Request) {}, req)

	assert.Greater(t, collector.CountMetricsByName("http_request_size_bytes"), 0)
}

func TestRequestMetricsWithoutTelemetry(t *testing.T) {
	original := observability.TelemetrySystem
	observability.TelemetrySystem = nil
	t.Cleanup(func() { observability.TelemetrySystem = original })

	rec := serveWithMetrics(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotImplemented)
	}, httptest.NewRequest(http.MethodGet, "/passkeys/1", nil))

	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestRequestIDPropagation(t *testing.T) {
	setupTelemetry(t)

	var seen string
	rec := serveWithMetrics(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}, func() *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(RequestIDHeader, "ci-run-7")
		return req
	}())

	assert.Equal(t, "ci-run-7", seen)
	assert.Equal(t, "ci-run-7", rec.Header().Get(RequestIDHeader))
}

func TestRequestIDGenerated(t *testing.T) {
	rec := httptest.NewRecorder()
	RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Len(t, rec.Header().Get(RequestIDHeader), 36)
}

func TestGetEndpointPattern(t *testing.T) {
	tests := []struct {
		path     string
		expected string
	}{
		{"/health", "/health/*"},
		{"/health/live", "/health/*"},
		{"/health/ready", "/health/*"},
		{"/health/startup", "/health/*"},
		{"/version", "/version"},
		{"/metrics", "/metrics"},
		{"/twofactorauth/4821", "/{repo}/{pr}"},
		{"/twofactorauth/4821/", "/{repo}/{pr}"},
		{"/api/users/123", "/unknown"},
		{"/", "/"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.expected, getEndpointPattern(httptest.NewRequest(http.MethodGet, tt.path, nil)))
		})
	}
}

func TestGetEndpointPatternPrefersRoute(t *testing.T) {
	router := chi.NewRouter()
	var pattern string
	router.Get("/{repo}/{pr}", func(w http.ResponseWriter, r *http.Request) {
		pattern = getEndpointPattern(r)
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/passkeys/12", nil))
	assert.Equal(t, "/{repo}/{pr}", pattern)
}
