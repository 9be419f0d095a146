package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recipematch/internal/domain"
)

// ErrorCode is the machine-readable code in error responses.
type ErrorCode string

const (
	CodeBadRequest       ErrorCode = "bad_request"
	CodeValidationFailed ErrorCode = "validation_failed"
	CodeUnauthorized     ErrorCode = "unauthorized"
	CodeIndexNotReady    ErrorCode = "index_not_ready"
	CodeUpstreamError    ErrorCode = "upstream_error"
	CodeUpstreamTimeout  ErrorCode = "upstream_timeout"
	CodeInternalError    ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// errorHandlers is checked in order; the first match wins.
var errorHandlers = []errorHandler{
	invalidRequestHandler,
	timeoutHandler,
	sentinelHandler(domain.ErrIndexNotReady, http.StatusServiceUnavailable, CodeIndexNotReady),
	sentinelHandler(domain.ErrUpstream, http.StatusBadGateway, CodeUpstreamError),
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// sentinelHandler returns an errorHandler that matches a single sentinel
// error and replies with the sentinel's own message.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, sentinel.Error())
		return true
	}
}

// invalidRequestHandler exposes the field-level message of a validation error.
func invalidRequestHandler(w http.ResponseWriter, err error) bool {
	var ire *domain.InvalidRequestError
	if errors.As(err, &ire) {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, ire.Error())
		return true
	}
	if errors.Is(err, domain.ErrInvalidRequest) {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, domain.ErrInvalidRequest.Error())
		return true
	}
	return false
}

// timeoutHandler maps upstream failures caused by an expired stage deadline.
func timeoutHandler(w http.ResponseWriter, err error) bool {
	if !errors.Is(err, domain.ErrUpstream) || !errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	writeError(w, http.StatusGatewayTimeout, CodeUpstreamTimeout, "upstream timed out")
	return true
}

func handleDomainError(w http.ResponseWriter, logger *zap.Logger, err error) {
	for _, h := range errorHandlers {
		if h(w, err) {
			if errors.Is(err, domain.ErrInvalidRequest) {
				logger.Debug("Request rejected", zap.Error(err))
			} else {
				logger.Error("Upstream failure", zap.Error(err))
			}
			return
		}
	}
	logger.Error("Internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
