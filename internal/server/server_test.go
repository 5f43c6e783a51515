package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/namelens/entryguard/internal/core"
	apperrors "github.com/namelens/entryguard/internal/errors"
	"github.com/namelens/entryguard/internal/server/handlers"
)

type fakeRunner struct {
	result *core.RunResult
	calls  int
}

func (f *fakeRunner) Run(ctx context.Context, repository string, pr int) (*core.RunResult, error) {
	f.calls++
	return f.result, nil
}

func TestServerUsesStandardErrorHandlers(t *testing.T) {
	srv := New("127.0.0.1", 0)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/does/not/exist", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)

	var body apperrors.HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "NOT_FOUND", body.Error.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestServerRoutesValidation(t *testing.T) {
	runner := &fakeRunner{result: &core.RunResult{
		ID: "run-9",
		Log: []core.LogEntry{{
			Kind: core.LogWarning, Check: "SimilarWeb", File: "entries/a/app.example.com.json",
			Title: "app.example.com is unranked", Text: "app.example.com doesn't have a SimilarWeb rank.",
		}},
	}}
	srv := New("127.0.0.1", 0, WithRunner(runner, map[string]bool{"twofactorauth": true, "passkeys": false}))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/twofactorauth/12/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "run-9", rec.Header().Get(handlers.RunIDHeader))
	assert.Equal(t,
		"::warning file=entries/a/app.example.com.json,title=app.example.com is unranked::app.example.com doesn't have a SimilarWeb rank.",
		rec.Body.String())

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/passkeys/12", nil))
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
	assert.Equal(t, 1, runner.calls)
}

func TestServerStaticRoutesWinOverValidation(t *testing.T) {
	handlers.InitHealthManager("test")
	runner := &fakeRunner{result: &core.RunResult{}}
	srv := New("127.0.0.1", 0, WithRunner(runner, map[string]bool{"health": true}))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, runner.calls)
}

func TestServerWithoutRunnerHasNoValidationRoute(t *testing.T) {
	srv := New("127.0.0.1", 0)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/twofactorauth/1", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminEndpointRequiresToken(t *testing.T) {
	srv := New("127.0.0.1", 0)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/signal", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	srv = New("127.0.0.1", 0, WithAdminToken("secret"))
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/signal", nil))
	assert.NotEqual(t, http.StatusNotFound, rec.Code)
	assert.NotEqual(t, http.StatusOK, rec.Code)
}
