package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/fulmenhq/gofulmen/errors"
	"go.uber.org/zap"

	"github.com/namelens/entryguard/internal/metrics"
	"github.com/namelens/entryguard/internal/observability"
)

// ErrorResponse is the JSON body written for a recovered panic. It mirrors
// the shape produced by internal/errors, which this package cannot import.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail is the inner object of ErrorResponse.
type ErrorDetail struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

// Recovery turns a handler panic into a 500 error envelope. Panics inside
// individual checks never get here; the orchestrator records those as faults.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				envelope := panicEnvelope(r, rec, debug.Stack())
				metrics.RecordPanic()
				if logger := observability.ServerLogger; logger != nil {
					logger.Error("handler panicked",
						zap.String("path", r.URL.Path),
						zap.String("request_id", envelope.CorrelationID),
						zap.Any("panic", rec))
				}
				writeEnvelope(w, envelope, http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, r)
	})
}

func panicEnvelope(r *http.Request, rec any, stack []byte) *errors.ErrorEnvelope {
	envelope := errors.NewErrorEnvelope("INTERNAL_ERROR", fmt.Sprintf("panic: %v", rec)).
		WithCorrelationID(GetRequestID(r.Context()))
	envelope, _ = envelope.WithContext(map[string]interface{}{
		"stack_trace": string(stack),
		"path":        r.URL.Path,
	})
	envelope, _ = envelope.WithSeverity(errors.SeverityCritical)
	return envelope
}

func writeEnvelope(w http.ResponseWriter, envelope *errors.ErrorEnvelope, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: ErrorDetail{
		Code:      envelope.Code,
		Message:   envelope.Message,
		Details:   envelope.Context,
		RequestID: envelope.CorrelationID,
	}})
}
