package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeFetch represents network retrieval failures
	ErrorTypeFetch ErrorType = "fetch"
	// ErrorTypeExtract represents documents whose metadata cannot be parsed
	ErrorTypeExtract ErrorType = "extract"
	// ErrorTypeGraph represents graph database errors
	ErrorTypeGraph ErrorType = "graph"
	// ErrorTypeIndex represents search index errors
	ErrorTypeIndex ErrorType = "index"
	// ErrorTypeIngest represents a document whose graph write failed
	ErrorTypeIngest ErrorType = "ingest"
	// ErrorTypePipeline represents batch-level failures
	ErrorTypePipeline ErrorType = "pipeline"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeContext represents context cancellation/timeout errors
	ErrorTypeContext ErrorType = "context"
)

// BaseError is the base error type with common fields
type BaseError struct {
	Type      ErrorType
	Message   string
	Timestamp time.Time
	Err       error // Wrapped error
}

// Error implements the error interface
func (e *BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error for error unwrapping
func (e *BaseError) Unwrap() error {
	return e.Err
}

// ErrType reports the category. Typed wrappers embedding *BaseError inherit it.
func (e *BaseError) ErrType() ErrorType {
	return e.Type
}

// NewBaseError creates a new base error
func NewBaseError(errType ErrorType, message string, err error) *BaseError {
	return &BaseError{
		Type:      errType,
		Message:   message,
		Timestamp: time.Now(),
		Err:       err,
	}
}

// ErrInvalidInput is returned when a caller passes a value the operation cannot accept
var ErrInvalidInput = stderrors.New("invalid input")

// Fetch Errors

// ErrFetchFailed is returned when a document cannot be retrieved
type ErrFetchFailed struct {
	*BaseError
	URL        string
	StatusCode int
}

func NewFetchFailed(url string, statusCode int, err error) *ErrFetchFailed {
	msg := fmt.Sprintf("failed to fetch %s", url)
	if statusCode != 0 {
		msg = fmt.Sprintf("failed to fetch %s: HTTP %d", url, statusCode)
	}
	return &ErrFetchFailed{
		BaseError:  NewBaseError(ErrorTypeFetch, msg, err),
		URL:        url,
		StatusCode: statusCode,
	}
}

// Extract Errors

// ErrMalformedDocument is returned when a document's embedded metadata cannot be read
type ErrMalformedDocument struct {
	*BaseError
	Reason string
}

func NewMalformedDocument(reason string, err error) *ErrMalformedDocument {
	return &ErrMalformedDocument{
		BaseError: NewBaseError(ErrorTypeExtract, fmt.Sprintf("malformed document: %s", reason), err),
		Reason:    reason,
	}
}

// Graph Errors

// ErrGraphConnectionFailed is returned when Neo4j connection fails
type ErrGraphConnectionFailed struct {
	*BaseError
	URI string
}

func NewGraphConnectionFailed(uri string, err error) *ErrGraphConnectionFailed {
	return &ErrGraphConnectionFailed{
		BaseError: NewBaseError(ErrorTypeGraph, fmt.Sprintf("failed to connect to Neo4j: %s", uri), err),
		URI:       uri,
	}
}

// ErrStoreUnavailable is returned when a graph lookup or write cannot complete
type ErrStoreUnavailable struct {
	*BaseError
	Operation string
}

func NewStoreUnavailable(operation string, err error) *ErrStoreUnavailable {
	return &ErrStoreUnavailable{
		BaseError: NewBaseError(ErrorTypeGraph, fmt.Sprintf("graph store unavailable: %s", operation), err),
		Operation: operation,
	}
}

// Index Errors

// ErrIndexUnavailable is returned when the search index rejects or cannot take a write
type ErrIndexUnavailable struct {
	*BaseError
	DocumentID string
}

func NewIndexUnavailable(documentID string, err error) *ErrIndexUnavailable {
	return &ErrIndexUnavailable{
		BaseError:  NewBaseError(ErrorTypeIndex, fmt.Sprintf("search index unavailable for document %s", documentID), err),
		DocumentID: documentID,
	}
}

// Ingest Errors

// ErrIngestionFailed wraps a graph failure while ingesting one document.
// Entities resolved before the failure may already exist.
type ErrIngestionFailed struct {
	*BaseError
	SourceLocation string
}

func NewIngestionFailed(sourceLocation string, err error) *ErrIngestionFailed {
	return &ErrIngestionFailed{
		BaseError:      NewBaseError(ErrorTypeIngest, fmt.Sprintf("ingestion failed: %s", sourceLocation), err),
		SourceLocation: sourceLocation,
	}
}

// Pipeline Errors

// ErrBatchAborted is returned when the driver gives up on a run
type ErrBatchAborted struct {
	*BaseError
	ConsecutiveFailures int
}

func NewBatchAborted(consecutive int, err error) *ErrBatchAborted {
	return &ErrBatchAborted{
		BaseError:           NewBaseError(ErrorTypePipeline, fmt.Sprintf("batch aborted after %d consecutive infrastructure failures", consecutive), err),
		ConsecutiveFailures: consecutive,
	}
}

// Context Errors

// ErrContextTimeout is returned when an operation exceeds its deadline
type ErrContextTimeout struct {
	*BaseError
	Operation string
	Timeout   time.Duration
}

func NewContextTimeout(operation string, timeout time.Duration, err error) *ErrContextTimeout {
	return &ErrContextTimeout{
		BaseError: NewBaseError(ErrorTypeContext, fmt.Sprintf("context timeout: %s (timeout: %v)", operation, timeout), err),
		Operation: operation,
		Timeout:   timeout,
	}
}

// Config Errors

// ErrConfigValidationFailed is returned when configuration validation fails
type ErrConfigValidationFailed struct {
	*BaseError
	Field  string
	Reason string
}

func NewConfigValidationFailed(field, reason string) *ErrConfigValidationFailed {
	return &ErrConfigValidationFailed{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("config validation failed: %s - %s", field, reason), nil),
		Field:     field,
		Reason:    reason,
	}
}

// ErrConfigMissingRequired is returned when a required config value is missing
type ErrConfigMissingRequired struct {
	*BaseError
	Field string
}

func NewConfigMissingRequired(field string) *ErrConfigMissingRequired {
	return &ErrConfigMissingRequired{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("missing required config: %s", field), nil),
		Field:     field,
	}
}

// Helper functions

type typed interface {
	ErrType() ErrorType
}

// ErrorTypeOf returns the category of the outermost typed error in the chain,
// or "" when none is present.
func ErrorTypeOf(err error) ErrorType {
	var t typed
	if stderrors.As(err, &t) {
		return t.ErrType()
	}
	return ""
}

// HasErrorType reports whether any error in the wrap chain has the given category
func HasErrorType(err error, errType ErrorType) bool {
	for err != nil {
		if t, ok := err.(typed); ok && t.ErrType() == errType {
			return true
		}
		err = stderrors.Unwrap(err)
	}
	return false
}

// IsInfrastructure reports whether the failure points at an unreachable
// backing store rather than at the document itself.
func IsInfrastructure(err error) bool {
	return HasErrorType(err, ErrorTypeGraph) || HasErrorType(err, ErrorTypeIndex)
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	switch {
	case HasErrorType(err, ErrorTypeContext), HasErrorType(err, ErrorTypeExtract):
		return false
	case HasErrorType(err, ErrorTypeFetch):
		var fetchErr *ErrFetchFailed
		if stderrors.As(err, &fetchErr) && fetchErr.StatusCode >= 400 && fetchErr.StatusCode < 500 {
			return false
		}
		return true
	case IsInfrastructure(err):
		return true
	}
	return false
}
