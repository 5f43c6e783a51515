package handlers

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/namelens/entryguard/internal/core"
	"github.com/namelens/entryguard/internal/core/report"
	apperrors "github.com/namelens/entryguard/internal/errors"
)

// RunIDHeader carries the ID of the validation run that produced a response.
const RunIDHeader = "X-Run-ID"

// Runner validates the entries touched by a pull request.
type Runner interface {
	Run(ctx context.Context, repository string, pr int) (*core.RunResult, error)
}

// ValidateHandler serves GET /{repo}/{pr}. The repository name selects a
// directory; only enabled directories are validated.
type ValidateHandler struct {
	Runner      Runner
	Directories map[string]bool
	Logger      *logging.Logger
}

func (h *ValidateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	repo := chi.URLParam(r, "repo")
	enabled, known := h.Directories[repo]
	switch {
	case !known:
		respondWithError(w, r, apperrors.NewNotFoundError("Unknown directory "+strconv.Quote(repo)))
		return
	case !enabled:
		respondWithError(w, r, apperrors.NewNotImplementedError("Not Implemented"))
		return
	}

	pr, err := strconv.Atoi(chi.URLParam(r, "pr"))
	if err != nil || pr <= 0 {
		respondWithError(w, r, apperrors.NewInvalidInputError("pull request number must be a positive integer"))
		return
	}

	if h.Runner == nil {
		respondWithError(w, r, apperrors.NewInternalError("validation pipeline not configured"))
		return
	}

	result, runErr := h.Runner.Run(r.Context(), repo, pr)
	resp := report.Build(result, runErr)

	if h.Logger != nil {
		summary := report.Summarize(result)
		h.Logger.Info("validation response",
			zap.String("repository", repo),
			zap.Int("pull_request", pr),
			zap.Int("status", resp.Status),
			zap.Int("entries", summary.Entries),
			zap.Int("errors", summary.Errors),
			zap.Int("warnings", summary.Warnings))
	}

	if result != nil && result.ID != "" {
		w.Header().Set(RunIDHeader, result.ID)
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(resp.Status)
	_, _ = io.WriteString(w, resp.Body)
}
