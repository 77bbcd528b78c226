package pgstore

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duskvault/memengine/internal/store"
)

// These tests exercise pgstore.Backend against a real PostgreSQL instance
// with the pgvector extension installed. They require MEMENGINE_TEST_DSN
// and are skipped in short mode, matching the rest of this module's
// integration test conventions.
func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	dsn := os.Getenv("MEMENGINE_TEST_DSN")
	if dsn == "" {
		t.Skip("MEMENGINE_TEST_DSN not set, skipping postgres integration test")
	}

	b, err := Open(context.Background(), dsn, 4, 3)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestPostgresBackend_GetOrCreateDocumentByPath(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()
	scope := store.Scope{UserID: "user-pg-1"}

	doc, err := b.GetOrCreateDocumentByPath(ctx, scope, "notes/today.md")
	require.NoError(t, err)
	assert.Equal(t, "notes/today.md", doc.Path)

	again, err := b.GetOrCreateDocumentByPath(ctx, scope, "notes/today.md")
	require.NoError(t, err)
	assert.Equal(t, doc.ID, again.ID)
}

func TestPostgresBackend_LexicalAndVectorSearch(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()
	scope := store.Scope{UserID: "user-pg-2"}

	doc, err := b.GetOrCreateDocumentByPath(ctx, scope, "a.md")
	require.NoError(t, err)

	require.NoError(t, b.InsertChunk(ctx, &store.Chunk{
		DocumentID: doc.ID, ChunkIndex: 0, Content: "the quick fox", Embedding: []float32{1, 0, 0},
	}))

	lexical, err := b.LexicalSearch(ctx, scope, "fox", 10)
	require.NoError(t, err)
	assert.NotEmpty(t, lexical)

	vector, err := b.VectorSearch(ctx, scope, []float32{1, 0, 0}, 10)
	require.NoError(t, err)
	assert.NotEmpty(t, vector)
}
