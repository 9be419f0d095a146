package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrInvalidRequest signals a malformed request rejected before the pipeline runs.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrUpstream signals that an external collaborator failed.
	ErrUpstream = errors.New("upstream failure")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrReasoningProviderError signals a classifier or rewriter failure.
	ErrReasoningProviderError = errors.New("reasoning provider error")
	// ErrIndexNotReady signals that the recipe index has not been created yet.
	ErrIndexNotReady = errors.New("recipe index not ready")
)

// Upstream stages reported in UpstreamError.
const (
	StageClassify = "classify"
	StageRewrite  = "rewrite"
	StageEmbed    = "embed"
	StageSearch   = "search"
	StageLexical  = "lexical"
)

// UpstreamError attributes a collaborator failure to a pipeline stage.
// It matches both ErrUpstream and the underlying cause under errors.Is.
type UpstreamError struct {
	Stage string
	Err   error
}

// NewUpstreamError wraps err for the given stage.
func NewUpstreamError(stage string, err error) error {
	return &UpstreamError{Stage: stage, Err: err}
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrUpstream.Error(), e.Stage, e.Err)
}

func (e *UpstreamError) Unwrap() []error { return []error{ErrUpstream, e.Err} }

// InvalidRequestError carries a client-facing validation message.
type InvalidRequestError struct {
	Field   string
	Message string
}

// NewInvalidRequest creates a validation error for the given field.
func NewInvalidRequest(field, message string) error {
	return &InvalidRequestError{Field: field, Message: message}
}

func (e *InvalidRequestError) Error() string {
	return e.Field + ": " + e.Message
}

func (e *InvalidRequestError) Unwrap() error { return ErrInvalidRequest }
