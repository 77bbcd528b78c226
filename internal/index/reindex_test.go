package index

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duskvault/memengine/internal/chunk"
	"github.com/duskvault/memengine/internal/embed"
	"github.com/duskvault/memengine/internal/store"
	"github.com/duskvault/memengine/internal/store/sqlitestore"
)

func newTestBackend(t *testing.T) store.Backend {
	t.Helper()
	b, err := sqlitestore.Open("", embed.HashDimensions)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestReindex_ChunksAndEmbedsDocument(t *testing.T) {
	ctx := context.Background()
	backend := newTestBackend(t)
	scope := store.Scope{UserID: "user-1"}

	doc, err := backend.GetOrCreateDocumentByPath(ctx, scope, "notes.md")
	require.NoError(t, err)
	_, err = backend.UpdateDocument(ctx, doc.ID, "first paragraph\n\nsecond paragraph")
	require.NoError(t, err)

	ix := New(backend, embed.NewHashEmbedder(), chunk.DefaultConfig())
	require.NoError(t, ix.Reindex(ctx, doc.ID))

	unembedded, err := backend.GetChunksWithoutEmbeddings(ctx, scope, 10)
	require.NoError(t, err)
	assert.Empty(t, unembedded)

	// Both short paragraphs fit in one default-sized chunk.
	results, err := backend.LexicalSearch(ctx, scope, "paragraph", 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestReindex_ReplacesPreviousChunks(t *testing.T) {
	ctx := context.Background()
	backend := newTestBackend(t)
	scope := store.Scope{UserID: "user-1"}

	doc, err := backend.GetOrCreateDocumentByPath(ctx, scope, "notes.md")
	require.NoError(t, err)

	_, err = backend.UpdateDocument(ctx, doc.ID, "alpha content")
	require.NoError(t, err)
	ix := New(backend, nil, chunk.DefaultConfig())
	require.NoError(t, ix.Reindex(ctx, doc.ID))

	_, err = backend.UpdateDocument(ctx, doc.ID, "beta content entirely different")
	require.NoError(t, err)
	require.NoError(t, ix.Reindex(ctx, doc.ID))

	alphaResults, err := backend.LexicalSearch(ctx, scope, "alpha", 10)
	require.NoError(t, err)
	assert.Empty(t, alphaResults)

	betaResults, err := backend.LexicalSearch(ctx, scope, "beta", 10)
	require.NoError(t, err)
	assert.NotEmpty(t, betaResults)
}

func TestReindex_NoEmbedderLeavesChunksUnembedded(t *testing.T) {
	ctx := context.Background()
	backend := newTestBackend(t)
	scope := store.Scope{UserID: "user-1"}

	doc, err := backend.GetOrCreateDocumentByPath(ctx, scope, "notes.md")
	require.NoError(t, err)
	_, err = backend.UpdateDocument(ctx, doc.ID, "some content here")
	require.NoError(t, err)

	ix := New(backend, nil, chunk.DefaultConfig())
	require.NoError(t, ix.Reindex(ctx, doc.ID))

	unembedded, err := backend.GetChunksWithoutEmbeddings(ctx, scope, 10)
	require.NoError(t, err)
	assert.Len(t, unembedded, 1)
}

type failingEmbedder struct{ embed.Embedder }

func (failingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, assertErr{}
}

type assertErr struct{}

func (assertErr) Error() string { return "embedding provider unavailable" }

func TestReindex_EmbeddingFailureIsNonFatal(t *testing.T) {
	ctx := context.Background()
	backend := newTestBackend(t)
	scope := store.Scope{UserID: "user-1"}

	doc, err := backend.GetOrCreateDocumentByPath(ctx, scope, "notes.md")
	require.NoError(t, err)
	_, err = backend.UpdateDocument(ctx, doc.ID, "content that fails to embed")
	require.NoError(t, err)

	ix := New(backend, failingEmbedder{}, chunk.DefaultConfig())
	require.NoError(t, ix.Reindex(ctx, doc.ID))

	unembedded, err := backend.GetChunksWithoutEmbeddings(ctx, scope, 10)
	require.NoError(t, err)
	assert.Len(t, unembedded, 1)
}

func TestBackfill_EmbedsPendingChunksAndReportsCount(t *testing.T) {
	ctx := context.Background()
	backend := newTestBackend(t)
	scope := store.Scope{UserID: "user-1"}

	doc, err := backend.GetOrCreateDocumentByPath(ctx, scope, "notes.md")
	require.NoError(t, err)
	_, err = backend.UpdateDocument(ctx, doc.ID, "alpha\n\nbeta")
	require.NoError(t, err)

	ix := New(backend, nil, chunk.DefaultConfig())
	require.NoError(t, ix.Reindex(ctx, doc.ID))

	// "alpha\n\nbeta" packs into a single chunk under the default config.
	count, err := Backfill(ctx, backend, embed.NewHashEmbedder(), scope, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	unembedded, err := backend.GetChunksWithoutEmbeddings(ctx, scope, 10)
	require.NoError(t, err)
	assert.Empty(t, unembedded)
}

func TestBackfill_NilEmbedderIsNoop(t *testing.T) {
	ctx := context.Background()
	backend := newTestBackend(t)
	scope := store.Scope{UserID: "user-1"}

	count, err := Backfill(ctx, backend, nil, scope, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
