package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/namelens/entryguard/internal/core"
)

type stubRunner struct {
	result *core.RunResult
	err    error

	repository string
	pr         int
	calls      int
}

func (s *stubRunner) Run(ctx context.Context, repository string, pr int) (*core.RunResult, error) {
	s.calls++
	s.repository = repository
	s.pr = pr
	return s.result, s.err
}

func newValidateRouter(runner Runner) *chi.Mux {
	h := &ValidateHandler{
		Runner:      runner,
		Directories: map[string]bool{"twofactorauth": true, "passkeys": false},
	}
	r := chi.NewRouter()
	r.Method(http.MethodGet, "/{repo}/{pr}", h)
	r.Method(http.MethodGet, "/{repo}/{pr}/", h)
	return r
}

func serve(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestValidateHandlerWritesAnnotations(t *testing.T) {
	runner := &stubRunner{result: &core.RunResult{
		ID: "run-1",
		Log: []core.LogEntry{
			{Kind: core.LogMessage, Check: "Blocklist", File: "entries/e/example.com.json", Text: "example.com not found in any list"},
			{Kind: core.LogError, Check: "SimilarWeb", File: "entries/e/example.com.json", Title: "example.com is unranked", Text: "example.com doesn't have a SimilarWeb rank."},
		},
	}}

	rec := serve(t, newValidateRouter(runner), "/twofactorauth/4821")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "run-1", rec.Header().Get(RunIDHeader))
	assert.Equal(t, "twofactorauth", runner.repository)
	assert.Equal(t, 4821, runner.pr)
	assert.Contains(t, rec.Body.String(), "::error file=entries/e/example.com.json,title=example.com is unranked::")
}

func TestValidateHandlerAcceptsTrailingSlash(t *testing.T) {
	runner := &stubRunner{result: &core.RunResult{}}

	rec := serve(t, newValidateRouter(runner), "/twofactorauth/7/")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, runner.calls)
	assert.Empty(t, rec.Body.String())
}

func TestValidateHandlerDiscoveryFailure(t *testing.T) {
	runner := &stubRunner{result: &core.RunResult{ID: "run-2"}, err: errors.New("list files: HTTP 502")}

	rec := serve(t, newValidateRouter(runner), "/twofactorauth/9")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "::error title=Entry discovery failed::list files: HTTP 502", rec.Body.String())
}

func TestValidateHandlerRejectsRequests(t *testing.T) {
	cases := []struct {
		name   string
		path   string
		status int
	}{
		{name: "unknown directory", path: "/elsewhere/1", status: http.StatusNotFound},
		{name: "disabled directory", path: "/passkeys/1", status: http.StatusNotImplemented},
		{name: "non-numeric pr", path: "/twofactorauth/abc", status: http.StatusBadRequest},
		{name: "zero pr", path: "/twofactorauth/0", status: http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			runner := &stubRunner{}
			rec := serve(t, newValidateRouter(runner), tc.path)

			assert.Equal(t, tc.status, rec.Code)
			assert.Zero(t, runner.calls)
		})
	}
}
