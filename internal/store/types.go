// Package store defines the storage backend contract for the memory
// engine: document and chunk persistence, lexical ranking, and vector
// ranking. Two backends implement it: sqlitestore (embedded, pure Go) and
// pgstore (PostgreSQL + pgvector).
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Scope identifies whose memory a document belongs to. AgentID is nil for
// documents shared across every agent acting on behalf of UserID.
type Scope struct {
	UserID  string
	AgentID *uuid.UUID
}

// Document is a single markdown file in the workspace's virtual hierarchy.
type Document struct {
	ID        uuid.UUID
	Scope     Scope
	Path      string
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Chunk is one retrievable slice of a document's content.
type Chunk struct {
	ID         uuid.UUID
	DocumentID uuid.UUID
	ChunkIndex int
	Content    string
	Embedding  []float32 // nil until embedded
	CreatedAt  time.Time
}

// EntryKind distinguishes a file from a directory in a ListDirectory result.
type EntryKind string

const (
	EntryKindFile      EntryKind = "file"
	EntryKindDirectory EntryKind = "directory"
)

// WorkspaceEntry is one file or directory returned by ListDirectory.
type WorkspaceEntry struct {
	Path string
	Kind EntryKind
}

// LexicalResult is one chunk returned by a backend's lexical ranking,
// ordered best match first.
type LexicalResult struct {
	ChunkID    string
	DocumentID string
	ChunkIndex int
	Score      float64
}

// VectorResult is one chunk returned by a backend's vector ranking,
// ordered most similar first.
type VectorResult struct {
	ChunkID    string
	DocumentID string
	ChunkIndex int
	Score      float64
}

// ErrDimensionMismatch is returned when a vector's length does not match
// the backend's configured embedding dimension.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}

// Backend is the storage contract every memory engine backend implements.
// Path-based lookups, listing and search are scoped to a single (user,
// agent) pair. GetDocumentByID, UpdateDocument, DeleteChunks, InsertChunk
// and UpdateChunkEmbedding take no scope: they act on a document or chunk
// ID already known to belong to the caller's scope.
type Backend interface {
	// GetDocumentByPath returns the document at path, or an
	// engineerrors DocumentNotFound error if none exists.
	GetDocumentByPath(ctx context.Context, scope Scope, path string) (*Document, error)

	// GetDocumentByID returns the document with the given ID.
	GetDocumentByID(ctx context.Context, id uuid.UUID) (*Document, error)

	// GetOrCreateDocumentByPath returns the document at path, creating an
	// empty one if none exists yet.
	GetOrCreateDocumentByPath(ctx context.Context, scope Scope, path string) (*Document, error)

	// UpdateDocument overwrites a document's content and bumps UpdatedAt.
	UpdateDocument(ctx context.Context, id uuid.UUID, content string) (*Document, error)

	// DeleteDocumentByPath removes a document and all of its chunks.
	DeleteDocumentByPath(ctx context.Context, scope Scope, path string) error

	// ListDirectory lists the immediate children of dirPath (files and
	// subdirectories, non-recursive). dirPath "" lists the workspace root.
	ListDirectory(ctx context.Context, scope Scope, dirPath string) ([]WorkspaceEntry, error)

	// ListAllPaths returns every document path in scope, in no particular
	// order.
	ListAllPaths(ctx context.Context, scope Scope) ([]string, error)

	// DeleteChunks removes every chunk belonging to documentID.
	DeleteChunks(ctx context.Context, documentID uuid.UUID) error

	// InsertChunk persists a new chunk. chunk.ID is assigned if zero.
	InsertChunk(ctx context.Context, chunk *Chunk) error

	// UpdateChunkEmbedding sets (or replaces) a chunk's embedding vector.
	UpdateChunkEmbedding(ctx context.Context, chunkID uuid.UUID, embedding []float32) error

	// GetChunksWithoutEmbeddings returns up to limit chunks in scope that
	// have no embedding yet, for backfilling.
	GetChunksWithoutEmbeddings(ctx context.Context, scope Scope, limit int) ([]*Chunk, error)

	// LexicalSearch ranks chunks in scope against query using the
	// backend's lexical index (FTS5 or to_tsvector/ts_rank).
	LexicalSearch(ctx context.Context, scope Scope, query string, limit int) ([]LexicalResult, error)

	// VectorSearch ranks chunks in scope by cosine similarity to
	// queryVector using the backend's ANN index.
	VectorSearch(ctx context.Context, scope Scope, queryVector []float32, limit int) ([]VectorResult, error)

	// Close releases resources held by the backend.
	Close() error
}
