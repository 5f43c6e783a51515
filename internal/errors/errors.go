// Package errors maps failures onto gofulmen error envelopes and writes them
// as JSON HTTP responses.
package errors

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/fulmenhq/gofulmen/errors"
	"go.uber.org/zap"

	"github.com/namelens/entryguard/internal/metrics"
	"github.com/namelens/entryguard/internal/observability"
	"github.com/namelens/entryguard/internal/server/middleware"
)

// Error codes carried in envelopes.
const (
	CodeInvalidInput    = "INVALID_INPUT"
	CodeNotFound        = "NOT_FOUND"
	CodeMethodNotAllow  = "METHOD_NOT_ALLOWED"
	CodeNotImplemented  = "NOT_IMPLEMENTED"
	CodeInternal        = "INTERNAL_ERROR"
	CodeDatabase        = "DATABASE_ERROR"
	CodeExternalService = "EXTERNAL_SERVICE_ERROR"
	CodeUnavailable     = "SERVICE_UNAVAILABLE"
	CodeTimeout         = "TIMEOUT"
	CodeConfigInvalid   = "CONFIG_INVALID"
)

// statusByCode is the HTTP status for each known code; anything else is a 500.
var statusByCode = map[string]int{
	CodeInvalidInput:    http.StatusBadRequest,
	"VALIDATION_FAILED": http.StatusBadRequest,
	CodeNotFound:        http.StatusNotFound,
	CodeMethodNotAllow:  http.StatusMethodNotAllowed,
	CodeNotImplemented:  http.StatusNotImplemented,
	CodeTimeout:         http.StatusGatewayTimeout,
	CodeExternalService: http.StatusBadGateway,
	CodeUnavailable:     http.StatusServiceUnavailable,
}

// New builds an envelope for code. Server-side codes are marked high
// severity, caller mistakes medium.
func New(code, message string) *errors.ErrorEnvelope {
	envelope := errors.NewErrorEnvelope(code, message)
	severity := errors.SeverityMedium
	if HTTPStatusFromCode(code) >= http.StatusInternalServerError {
		severity = errors.SeverityHigh
	}
	if updated, err := envelope.WithSeverity(severity); err == nil {
		envelope = updated
	}
	return envelope
}

func NewInvalidInputError(message string) *errors.ErrorEnvelope {
	return New(CodeInvalidInput, message)
}

func NewNotFoundError(message string) *errors.ErrorEnvelope {
	return New(CodeNotFound, message)
}

func NewMethodNotAllowedError(message string) *errors.ErrorEnvelope {
	return New(CodeMethodNotAllow, message)
}

// NewNotImplementedError marks a route that exists but is switched off.
func NewNotImplementedError(message string) *errors.ErrorEnvelope {
	return New(CodeNotImplemented, message)
}

func NewInternalError(message string) *errors.ErrorEnvelope {
	return New(CodeInternal, message)
}

func NewConfigInvalidError(message string) *errors.ErrorEnvelope {
	return New(CodeConfigInvalid, message)
}

// Wrap builds an envelope for err, correlated with the request in ctx. The
// cause is kept as wrapped_error context.
func Wrap(ctx context.Context, code string, err error, message string) *errors.ErrorEnvelope {
	envelope := EnsureCorrelationID(New(code, message), ctx)
	return withCause(envelope.WithTraceID(envelope.CorrelationID), err)
}

func WrapInternal(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	return Wrap(ctx, CodeInternal, err, message)
}

func WrapDatabaseError(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	return Wrap(ctx, CodeDatabase, err, message)
}

func WrapConfigInvalid(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	return Wrap(ctx, CodeConfigInvalid, err, message)
}

// EnsureEnvelope returns err itself when it already is an envelope and wraps
// it as an internal error otherwise.
func EnsureEnvelope(err error) *errors.ErrorEnvelope {
	switch e := err.(type) {
	case nil:
		envelope := New(CodeInternal, "unexpected nil error")
		if updated, werr := envelope.WithSeverity(errors.SeverityCritical); werr == nil {
			envelope = updated
		}
		return envelope
	case *errors.ErrorEnvelope:
		if e != nil {
			return e
		}
	}
	return withCause(New(CodeInternal, "unexpected error"), err)
}

// EnsureCorrelationID attaches the request ID from ctx, or a generated one
// prefixed with "fallback-".
func EnsureCorrelationID(envelope *errors.ErrorEnvelope, ctx context.Context) *errors.ErrorEnvelope {
	if envelope == nil || envelope.CorrelationID != "" {
		return envelope
	}

	id := ""
	if ctx != nil {
		id = middleware.GetRequestID(ctx)
	}
	if id == "" {
		id = "fallback-" + errors.GenerateCorrelationID()
	}
	return envelope.WithCorrelationID(id)
}

// HTTPStatusFromCode resolves the HTTP status code for an error code.
func HTTPStatusFromCode(code string) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func withCause(envelope *errors.ErrorEnvelope, err error) *errors.ErrorEnvelope {
	if envelope == nil || err == nil {
		return envelope
	}
	if updated, werr := envelope.WithContext(map[string]interface{}{"wrapped_error": err.Error()}); werr == nil {
		return updated
	}
	return envelope
}

// responseDetails merges envelope details and context; details win on
// conflicting keys.
func responseDetails(envelope *errors.ErrorEnvelope) map[string]interface{} {
	if len(envelope.Details)+len(envelope.Context) == 0 {
		return nil
	}
	details := make(map[string]interface{}, len(envelope.Details)+len(envelope.Context))
	for key, value := range envelope.Context {
		details[key] = value
	}
	for key, value := range envelope.Details {
		details[key] = value
	}
	return details
}

// HTTPErrorDetail is the error body returned to callers.
type HTTPErrorDetail struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

// HTTPErrorResponse wraps HTTPErrorDetail under an "error" key.
type HTTPErrorResponse struct {
	Error HTTPErrorDetail `json:"error"`
}

// RespondWithError writes err as a JSON envelope, logging and counting it.
func RespondWithError(w http.ResponseWriter, r *http.Request, err error) {
	if w == nil {
		return
	}

	var ctx context.Context
	if r != nil {
		ctx = r.Context()
	}
	envelope := EnsureCorrelationID(EnsureEnvelope(err), ctx)
	status := HTTPStatusFromCode(envelope.Code)

	logEnvelope(envelope, status)
	metrics.RecordError(envelope.Code, status)
	if r != nil {
		metrics.RecordErrorByEndpoint(r.URL.Path, envelope.Code)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(HTTPErrorResponse{Error: HTTPErrorDetail{
		Code:      envelope.Code,
		Message:   envelope.Message,
		Details:   responseDetails(envelope),
		RequestID: envelope.CorrelationID,
	}})
}

func logEnvelope(envelope *errors.ErrorEnvelope, status int) {
	logger := observability.ServerLogger
	if logger == nil {
		return
	}

	fields := make([]zap.Field, 0, len(envelope.Context)+4)
	fields = append(fields,
		zap.String("error_code", envelope.Code),
		zap.Int("http_status", status),
		zap.String("severity", string(envelope.Severity)),
		zap.String("request_id", envelope.CorrelationID))
	for key, value := range envelope.Context {
		fields = append(fields, zap.Any(key, value))
	}

	switch envelope.Severity {
	case errors.SeverityCritical, errors.SeverityHigh:
		logger.Error(envelope.Message, fields...)
	case errors.SeverityMedium:
		logger.Warn(envelope.Message, fields...)
	default:
		logger.Info(envelope.Message, fields...)
	}
}
