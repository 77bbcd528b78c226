// Package index implements the indexing pipeline that keeps a document's
// chunks consistent with its content: chunk, replace, and best-effort
// embed.
package index

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/duskvault/memengine/internal/chunk"
	"github.com/duskvault/memengine/internal/embed"
	"github.com/duskvault/memengine/internal/engineerrors"
	"github.com/duskvault/memengine/internal/store"
)

// Indexer runs the reindexing algorithm against one backend, optionally
// embedding each chunk as it is produced.
type Indexer struct {
	Backend     store.Backend
	Embedder    embed.Embedder // nil disables embedding
	ChunkConfig chunk.Config
}

// New builds an Indexer. A nil embedder is valid: chunks are inserted
// without embeddings and can be backfilled later.
func New(backend store.Backend, embedder embed.Embedder, chunkConfig chunk.Config) *Indexer {
	return &Indexer{Backend: backend, Embedder: embedder, ChunkConfig: chunkConfig}
}

// Reindex rebuilds documentID's chunk set from its current content:
// delete the old chunks, chunk the content fresh, and insert the new
// chunks in order, embedding each one best-effort. A chunk whose
// embedding call fails is inserted without an embedding; the failure is
// logged and indexing continues. Deletion and insertion are not globally
// atomic — an interrupted call may leave a partial chunk set, repaired
// by the next successful reindex.
func (ix *Indexer) Reindex(ctx context.Context, documentID uuid.UUID) error {
	doc, err := ix.Backend.GetDocumentByID(ctx, documentID)
	if err != nil {
		return err
	}

	chunks := chunk.ChunkDocument(doc.Content, ix.ChunkConfig)

	if err := ix.Backend.DeleteChunks(ctx, documentID); err != nil {
		return engineerrors.BackendError("Reindex.DeleteChunks", err)
	}

	for i, content := range chunks {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		c := &store.Chunk{
			DocumentID: documentID,
			ChunkIndex: i,
			Content:    content,
		}

		if ix.Embedder != nil {
			vec, err := ix.Embedder.Embed(ctx, content)
			if err != nil {
				slog.Warn("chunk_embedding_failed",
					slog.String("document_id", documentID.String()),
					slog.Int("chunk_index", i),
					slog.String("error", err.Error()))
			} else {
				c.Embedding = vec
			}
		}

		if err := ix.Backend.InsertChunk(ctx, c); err != nil {
			return engineerrors.BackendError("Reindex.InsertChunk", err)
		}
	}

	return nil
}

// Backfill embeds up to limit chunks in scope that have no embedding yet.
// Individual embedding failures are logged and skipped; it returns the
// number of chunks successfully embedded.
func Backfill(ctx context.Context, backend store.Backend, embedder embed.Embedder, scope store.Scope, limit int) (int, error) {
	if embedder == nil {
		return 0, nil
	}

	chunks, err := backend.GetChunksWithoutEmbeddings(ctx, scope, limit)
	if err != nil {
		return 0, engineerrors.BackendError("Backfill.GetChunksWithoutEmbeddings", err)
	}

	embedded := 0
	for _, c := range chunks {
		select {
		case <-ctx.Done():
			return embedded, ctx.Err()
		default:
		}

		vec, err := embedder.Embed(ctx, c.Content)
		if err != nil {
			slog.Warn("chunk_backfill_embedding_failed",
				slog.String("chunk_id", c.ID.String()),
				slog.String("error", err.Error()))
			continue
		}

		if err := backend.UpdateChunkEmbedding(ctx, c.ID, vec); err != nil {
			slog.Warn("chunk_backfill_persist_failed",
				slog.String("chunk_id", c.ID.String()),
				slog.String("error", err.Error()))
			continue
		}
		embedded++
	}

	return embedded, nil
}
