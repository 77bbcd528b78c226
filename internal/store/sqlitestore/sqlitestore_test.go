package sqlitestore

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duskvault/memengine/internal/engineerrors"
	"github.com/duskvault/memengine/internal/store"
)

func newTestBackend(t *testing.T, dimensions int) *Backend {
	t.Helper()
	b, err := Open("", dimensions)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestGetOrCreateDocumentByPath_CreatesThenReturnsSame(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t, 4)
	scope := store.Scope{UserID: "user-1"}

	doc, err := b.GetOrCreateDocumentByPath(ctx, scope, "notes/today.md")
	require.NoError(t, err)
	assert.Equal(t, "notes/today.md", doc.Path)
	assert.Equal(t, "", doc.Content)

	again, err := b.GetOrCreateDocumentByPath(ctx, scope, "notes/today.md")
	require.NoError(t, err)
	assert.Equal(t, doc.ID, again.ID)
}

func TestGetDocumentByPath_NotFound(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t, 4)
	scope := store.Scope{UserID: "user-1"}

	_, err := b.GetDocumentByPath(ctx, scope, "missing.md")
	require.Error(t, err)
	assert.Equal(t, engineerrors.CodeDocumentNotFound, engineerrors.CodeOf(err))
}

func TestUpdateDocument_ChangesContentAndTimestamp(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t, 4)
	scope := store.Scope{UserID: "user-1"}

	doc, err := b.GetOrCreateDocumentByPath(ctx, scope, "a.md")
	require.NoError(t, err)

	updated, err := b.UpdateDocument(ctx, doc.ID, "hello world")
	require.NoError(t, err)
	assert.Equal(t, "hello world", updated.Content)
	assert.True(t, !updated.UpdatedAt.Before(doc.UpdatedAt))
}

func TestDeleteDocumentByPath_RemovesDocumentAndChunks(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t, 4)
	scope := store.Scope{UserID: "user-1"}

	doc, err := b.GetOrCreateDocumentByPath(ctx, scope, "a.md")
	require.NoError(t, err)
	require.NoError(t, b.InsertChunk(ctx, &store.Chunk{DocumentID: doc.ID, ChunkIndex: 0, Content: "hello"}))

	require.NoError(t, b.DeleteDocumentByPath(ctx, scope, "a.md"))

	_, err = b.GetDocumentByPath(ctx, scope, "a.md")
	require.Error(t, err)
	assert.Equal(t, engineerrors.CodeDocumentNotFound, engineerrors.CodeOf(err))
}

func TestListDirectory_SeparatesFilesAndSyntheticDirectories(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t, 4)
	scope := store.Scope{UserID: "user-1"}

	for _, p := range []string{"root.md", "notes/today.md", "notes/archive/old.md"} {
		_, err := b.GetOrCreateDocumentByPath(ctx, scope, p)
		require.NoError(t, err)
	}

	entries, err := b.ListDirectory(ctx, scope, "")
	require.NoError(t, err)

	byPath := make(map[string]store.EntryKind)
	for _, e := range entries {
		byPath[e.Path] = e.Kind
	}
	assert.Equal(t, store.EntryKindFile, byPath["root.md"])
	assert.Equal(t, store.EntryKindDirectory, byPath["notes"])
	assert.NotContains(t, byPath, "notes/today.md")

	nested, err := b.ListDirectory(ctx, scope, "notes")
	require.NoError(t, err)
	nestedByPath := make(map[string]store.EntryKind)
	for _, e := range nested {
		nestedByPath[e.Path] = e.Kind
	}
	assert.Equal(t, store.EntryKindFile, nestedByPath["notes/today.md"])
	assert.Equal(t, store.EntryKindDirectory, nestedByPath["notes/archive"])
}

func TestLexicalSearch_FindsCamelCaseTokens(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t, 4)
	scope := store.Scope{UserID: "user-1"}

	doc, err := b.GetOrCreateDocumentByPath(ctx, scope, "a.md")
	require.NoError(t, err)
	require.NoError(t, b.InsertChunk(ctx, &store.Chunk{DocumentID: doc.ID, ChunkIndex: 0, Content: "func getUserById"}))
	require.NoError(t, b.InsertChunk(ctx, &store.Chunk{DocumentID: doc.ID, ChunkIndex: 1, Content: "func deletePost"}))

	results, err := b.LexicalSearch(ctx, scope, "user", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 0, results[0].ChunkIndex)
}

func TestLexicalSearch_ScopeIsolation(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t, 4)
	scopeA := store.Scope{UserID: "user-a"}
	scopeB := store.Scope{UserID: "user-b"}

	docA, err := b.GetOrCreateDocumentByPath(ctx, scopeA, "a.md")
	require.NoError(t, err)
	require.NoError(t, b.InsertChunk(ctx, &store.Chunk{DocumentID: docA.ID, ChunkIndex: 0, Content: "shared secret token"}))

	results, err := b.LexicalSearch(ctx, scopeB, "secret", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestVectorSearch_ReturnsNearestByContent(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t, 3)
	scope := store.Scope{UserID: "user-1"}

	doc, err := b.GetOrCreateDocumentByPath(ctx, scope, "a.md")
	require.NoError(t, err)

	require.NoError(t, b.InsertChunk(ctx, &store.Chunk{
		DocumentID: doc.ID, ChunkIndex: 0, Content: "near", Embedding: []float32{1, 0, 0},
	}))
	require.NoError(t, b.InsertChunk(ctx, &store.Chunk{
		DocumentID: doc.ID, ChunkIndex: 1, Content: "far", Embedding: []float32{0, 1, 0},
	}))

	results, err := b.VectorSearch(ctx, scope, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, 0, results[0].ChunkIndex)
}

func TestVectorSearch_DimensionMismatch(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t, 3)
	scope := store.Scope{UserID: "user-1"}

	_, err := b.VectorSearch(ctx, scope, []float32{1, 0}, 5)
	require.Error(t, err)
	var mismatch store.ErrDimensionMismatch
	assert.ErrorAs(t, err, &mismatch)
}

func TestVectorSearch_SharedDocumentsVisibleToAllAgents(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t, 2)
	shared := store.Scope{UserID: "user-1"}
	agentID := uuid.New()
	agentScope := store.Scope{UserID: "user-1", AgentID: &agentID}

	doc, err := b.GetOrCreateDocumentByPath(ctx, shared, "shared.md")
	require.NoError(t, err)
	require.NoError(t, b.InsertChunk(ctx, &store.Chunk{
		DocumentID: doc.ID, ChunkIndex: 0, Content: "shared memory", Embedding: []float32{1, 0},
	}))

	results, err := b.VectorSearch(ctx, agentScope, []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestGetChunksWithoutEmbeddings_ReturnsUnembeddedOnly(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t, 2)
	scope := store.Scope{UserID: "user-1"}

	doc, err := b.GetOrCreateDocumentByPath(ctx, scope, "a.md")
	require.NoError(t, err)
	require.NoError(t, b.InsertChunk(ctx, &store.Chunk{DocumentID: doc.ID, ChunkIndex: 0, Content: "embedded", Embedding: []float32{1, 0}}))
	require.NoError(t, b.InsertChunk(ctx, &store.Chunk{DocumentID: doc.ID, ChunkIndex: 1, Content: "pending"}))

	chunks, err := b.GetChunksWithoutEmbeddings(ctx, scope, 10)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "pending", chunks[0].Content)
}

func TestUpdateChunkEmbedding_MakesChunkSearchable(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t, 2)
	scope := store.Scope{UserID: "user-1"}

	doc, err := b.GetOrCreateDocumentByPath(ctx, scope, "a.md")
	require.NoError(t, err)
	require.NoError(t, b.InsertChunk(ctx, &store.Chunk{DocumentID: doc.ID, ChunkIndex: 0, Content: "pending"}))

	chunks, err := b.GetChunksWithoutEmbeddings(ctx, scope, 10)
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	require.NoError(t, b.UpdateChunkEmbedding(ctx, chunks[0].ID, []float32{1, 1}))

	results, err := b.VectorSearch(ctx, scope, []float32{1, 1}, 5)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}
