package engineerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDocumentNotFoundIs(t *testing.T) {
	err := DocumentNotFound("daily/2026-07-31.md")
	assert.True(t, errors.Is(err, New(CodeDocumentNotFound, "", nil)))
	assert.False(t, errors.Is(err, New(CodeChunkNotFound, "", nil)))
	assert.Equal(t, CategoryNotFound, err.Category)
	assert.Equal(t, SeverityFatal, err.Severity)
	assert.Equal(t, "daily/2026-07-31.md", err.Details["path"])
}

func TestEmbeddingFailedIsWarningSeverity(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := EmbeddingFailed(cause)
	assert.Equal(t, SeverityWarning, err.Severity)
	assert.False(t, IsFatal(err))
	assert.ErrorIs(t, err, cause)
}

func TestBackendErrorIsFatal(t *testing.T) {
	err := BackendError("insert_chunk", fmt.Errorf("disk full"))
	assert.True(t, IsFatal(err))
	assert.Equal(t, CategoryBackend, err.Category)
}

func TestDimensionMismatchDetails(t *testing.T) {
	err := DimensionMismatch(768, 384)
	assert.Equal(t, "768", err.Details["want"])
	assert.Equal(t, "384", err.Details["got"])
	assert.Equal(t, CategoryValidation, err.Category)
}

func TestCodeOfUnwrapsThroughFmtErrorf(t *testing.T) {
	wrapped := fmt.Errorf("indexing failed: %w", ChunkNotFound("c-1"))
	assert.Equal(t, CodeChunkNotFound, CodeOf(wrapped))
}

func TestCodeOfNonEngineError(t *testing.T) {
	assert.Equal(t, Code(""), CodeOf(errors.New("plain error")))
	assert.False(t, IsFatal(errors.New("plain error")))
}

func TestWithDetailChaining(t *testing.T) {
	err := InvalidPath("../escape", "path escapes workspace root").
		WithDetail("reason", "traversal")
	assert.Equal(t, "traversal", err.Details["reason"])
	assert.Equal(t, "../escape", err.Details["path"])
}
