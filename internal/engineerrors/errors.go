package engineerrors

import (
	"errors"
	"fmt"
)

// EngineError is the structured error type returned by every package in
// this module that can fail in a way callers should be able to branch on.
type EngineError struct {
	Code     Code
	Message  string
	Category Category
	Severity Severity
	Details  map[string]string
	Cause    error
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the wrapped cause, if any, so errors.Is/errors.As and
// errors.Unwrap work across the chain.
func (e *EngineError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *EngineError with the same Code, so
// sentinel-style checks like errors.Is(err, engineerrors.New(CodeDocumentNotFound, "", nil))
// work without comparing messages or causes.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithDetail attaches a key/value pair of diagnostic context and returns
// the error for chaining.
func (e *EngineError) WithDetail(key, value string) *EngineError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New builds an EngineError for code, deriving its category and severity.
func New(code Code, message string, cause error) *EngineError {
	return &EngineError{
		Code:     code,
		Message:  message,
		Category: categoryFor(code),
		Severity: severityFor(code),
		Cause:    cause,
	}
}

// DocumentNotFound builds the error for a missing document at path.
func DocumentNotFound(path string) *EngineError {
	return New(CodeDocumentNotFound, "document not found", nil).WithDetail("path", path)
}

// ChunkNotFound builds the error for a missing chunk ID.
func ChunkNotFound(chunkID string) *EngineError {
	return New(CodeChunkNotFound, "chunk not found", nil).WithDetail("chunk_id", chunkID)
}

// InvalidPath builds the error for a path that failed validation.
func InvalidPath(path, reason string) *EngineError {
	return New(CodeInvalidPath, reason, nil).WithDetail("path", path)
}

// EmbeddingFailed wraps a provider failure. Severity is Warning: callers
// may proceed with an unembedded chunk.
func EmbeddingFailed(cause error) *EngineError {
	return New(CodeEmbeddingFailed, "embedding provider failed", cause)
}

// BackendError wraps an unexpected storage backend failure.
func BackendError(op string, cause error) *EngineError {
	return New(CodeBackendError, "backend operation failed", cause).WithDetail("op", op)
}

// DimensionMismatch builds the error for a vector whose length does not
// match the backend's configured dimension.
func DimensionMismatch(want, got int) *EngineError {
	return New(CodeDimensionMismatch, "embedding dimension mismatch", nil).
		WithDetail("want", fmt.Sprintf("%d", want)).
		WithDetail("got", fmt.Sprintf("%d", got))
}

// IsFatal reports whether err (an *EngineError, possibly wrapped) has
// fatal severity.
func IsFatal(err error) bool {
	var ee *EngineError
	if !errors.As(err, &ee) {
		return false
	}
	return ee.Severity == SeverityFatal
}

// CodeOf extracts the Code carried by err, if err is (or wraps) an
// *EngineError. It returns the empty Code otherwise.
func CodeOf(err error) Code {
	var ee *EngineError
	if !errors.As(err, &ee) {
		return ""
	}
	return ee.Code
}
