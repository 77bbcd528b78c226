// Package pgstore implements store.Backend over PostgreSQL: documents and
// chunks in ordinary tables, lexical ranking via to_tsvector/ts_rank, and
// vector ranking via a pgvector column with an ivfflat cosine index.
package pgstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/google/uuid"

	"github.com/duskvault/memengine/internal/engineerrors"
	"github.com/duskvault/memengine/internal/store"
)

// Backend implements store.Backend on top of a PostgreSQL connection pool.
type Backend struct {
	pool       *pgxpool.Pool
	dimensions int
}

var _ store.Backend = (*Backend)(nil)

// Open connects to Postgres and ensures the schema (pgvector extension,
// documents/chunks tables, indexes) exists.
func Open(ctx context.Context, dsn string, maxConns int, dimensions int) (*Backend, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("pgstore: parse database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgstore: connect: %w", err)
	}

	b := &Backend{pool: pool, dimensions: dimensions}
	if err := b.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return b, nil
}

func (b *Backend) ensureSchema(ctx context.Context) error {
	const statements = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS documents (
	id UUID PRIMARY KEY,
	user_id TEXT NOT NULL,
	agent_id UUID,
	path TEXT NOT NULL,
	content TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS documents_scope_path_idx
	ON documents (user_id, COALESCE(agent_id, '00000000-0000-0000-0000-000000000000'::uuid), path);
CREATE INDEX IF NOT EXISTS documents_scope_idx ON documents (user_id, agent_id);

CREATE TABLE IF NOT EXISTS chunks (
	id UUID PRIMARY KEY,
	document_id UUID NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	chunk_index INT NOT NULL,
	content TEXT NOT NULL,
	content_tsv TSVECTOR GENERATED ALWAYS AS (to_tsvector('english', content)) STORED,
	embedding vector(%[1]d),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS chunks_document_idx ON chunks (document_id);
CREATE INDEX IF NOT EXISTS chunks_tsv_idx ON chunks USING GIN (content_tsv);

DO $$
BEGIN
	IF NOT EXISTS (
		SELECT 1 FROM pg_indexes
		WHERE schemaname = current_schema() AND indexname = 'chunks_embedding_idx'
	) THEN
		EXECUTE 'CREATE INDEX chunks_embedding_idx ON chunks USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)';
	END IF;
END
$$;
`
	_, err := b.pool.Exec(ctx, fmt.Sprintf(statements, b.dimensions))
	if err != nil && strings.Contains(err.Error(), "ivfflat") {
		// ivfflat needs a minimum row count to build; ignore and let it be
		// created later once enough chunks exist.
		return nil
	}
	return err
}

func scopeWhere(scope store.Scope, startArg int) (string, []any) {
	if scope.AgentID == nil {
		return fmt.Sprintf("d.user_id = $%d AND d.agent_id IS NULL", startArg), []any{scope.UserID}
	}
	return fmt.Sprintf("d.user_id = $%d AND (d.agent_id IS NULL OR d.agent_id = $%d)", startArg, startArg+1),
		[]any{scope.UserID, *scope.AgentID}
}

func scanDocument(row pgx.Row) (*store.Document, error) {
	var d store.Document
	var agentID *uuid.UUID
	if err := row.Scan(&d.ID, &d.Scope.UserID, &agentID, &d.Path, &d.Content, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	d.Scope.AgentID = agentID
	return &d, nil
}

const documentColumns = "id, user_id, agent_id, path, content, created_at, updated_at"

func (b *Backend) GetDocumentByPath(ctx context.Context, scope store.Scope, path string) (*store.Document, error) {
	where, args := scopeWhere(scope, 1)
	args = append(args, path)
	row := b.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM documents d WHERE %s AND d.path = $%d
		ORDER BY d.agent_id IS NULL LIMIT 1
	`, documentColumns, where, len(args)), args...)

	doc, err := scanDocument(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, engineerrors.DocumentNotFound(path)
		}
		return nil, engineerrors.BackendError("GetDocumentByPath", err)
	}
	return doc, nil
}

func (b *Backend) GetDocumentByID(ctx context.Context, id uuid.UUID) (*store.Document, error) {
	row := b.pool.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM documents d WHERE d.id = $1`, documentColumns), id)
	doc, err := scanDocument(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, engineerrors.DocumentNotFound(id.String())
		}
		return nil, engineerrors.BackendError("GetDocumentByID", err)
	}
	return doc, nil
}

func (b *Backend) GetOrCreateDocumentByPath(ctx context.Context, scope store.Scope, path string) (*store.Document, error) {
	doc, err := b.GetDocumentByPath(ctx, scope, path)
	if err == nil {
		return doc, nil
	}
	if engineerrors.CodeOf(err) != engineerrors.CodeDocumentNotFound {
		return nil, err
	}

	id := uuid.New()
	now := time.Now().UTC()
	_, err = b.pool.Exec(ctx, `
		INSERT INTO documents(id, user_id, agent_id, path, content, created_at, updated_at)
		VALUES ($1, $2, $3, $4, '', $5, $5)
		ON CONFLICT DO NOTHING
	`, id, scope.UserID, scope.AgentID, path, now)
	if err != nil {
		return nil, engineerrors.BackendError("GetOrCreateDocumentByPath", err)
	}

	// A concurrent creator may have won the insert; re-read so every caller
	// observes the same row.
	return b.GetDocumentByPath(ctx, scope, path)
}

func (b *Backend) UpdateDocument(ctx context.Context, id uuid.UUID, content string) (*store.Document, error) {
	now := time.Now().UTC()
	tag, err := b.pool.Exec(ctx, `UPDATE documents SET content = $1, updated_at = $2 WHERE id = $3`, content, now, id)
	if err != nil {
		return nil, engineerrors.BackendError("UpdateDocument", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, engineerrors.DocumentNotFound(id.String())
	}

	row := b.pool.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM documents d WHERE d.id = $1`, documentColumns), id)
	doc, err := scanDocument(row)
	if err != nil {
		return nil, engineerrors.BackendError("UpdateDocument", err)
	}
	return doc, nil
}

func (b *Backend) DeleteDocumentByPath(ctx context.Context, scope store.Scope, path string) error {
	where, args := scopeWhere(scope, 1)
	args = append(args, path)
	tag, err := b.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM documents d WHERE %s AND d.path = $%d`, where, len(args)), args...)
	if err != nil {
		return engineerrors.BackendError("DeleteDocumentByPath", err)
	}
	if tag.RowsAffected() == 0 {
		return engineerrors.DocumentNotFound(path)
	}
	return nil
}

func (b *Backend) ListDirectory(ctx context.Context, scope store.Scope, dirPath string) ([]store.WorkspaceEntry, error) {
	paths, err := b.ListAllPaths(ctx, scope)
	if err != nil {
		return nil, err
	}
	return listImmediateChildren(paths, dirPath), nil
}

func (b *Backend) ListAllPaths(ctx context.Context, scope store.Scope) ([]string, error) {
	where, args := scopeWhere(scope, 1)
	rows, err := b.pool.Query(ctx, fmt.Sprintf(`SELECT d.path FROM documents d WHERE %s`, where), args...)
	if err != nil {
		return nil, engineerrors.BackendError("ListAllPaths", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, engineerrors.BackendError("ListAllPaths", err)
		}
		paths = append(paths, p)
	}
	if paths == nil {
		paths = []string{}
	}
	return paths, rows.Err()
}

func (b *Backend) DeleteChunks(ctx context.Context, documentID uuid.UUID) error {
	_, err := b.pool.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID)
	if err != nil {
		return engineerrors.BackendError("DeleteChunks", err)
	}
	return nil
}

func (b *Backend) InsertChunk(ctx context.Context, chunk *store.Chunk) error {
	if chunk.ID == uuid.Nil {
		chunk.ID = uuid.New()
	}
	if chunk.CreatedAt.IsZero() {
		chunk.CreatedAt = time.Now().UTC()
	}

	var embedding any
	if chunk.Embedding != nil {
		if len(chunk.Embedding) != b.dimensions {
			return store.ErrDimensionMismatch{Expected: b.dimensions, Got: len(chunk.Embedding)}
		}
		embedding = pgvector.NewVector(chunk.Embedding)
	}

	_, err := b.pool.Exec(ctx, `
		INSERT INTO chunks(id, document_id, chunk_index, content, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, chunk.ID, chunk.DocumentID, chunk.ChunkIndex, chunk.Content, embedding, chunk.CreatedAt)
	if err != nil {
		return engineerrors.BackendError("InsertChunk", err)
	}
	return nil
}

func (b *Backend) UpdateChunkEmbedding(ctx context.Context, chunkID uuid.UUID, embedding []float32) error {
	if len(embedding) != b.dimensions {
		return store.ErrDimensionMismatch{Expected: b.dimensions, Got: len(embedding)}
	}

	tag, err := b.pool.Exec(ctx, `UPDATE chunks SET embedding = $1 WHERE id = $2`, pgvector.NewVector(embedding), chunkID)
	if err != nil {
		return engineerrors.BackendError("UpdateChunkEmbedding", err)
	}
	if tag.RowsAffected() == 0 {
		return engineerrors.ChunkNotFound(chunkID.String())
	}
	return nil
}

func (b *Backend) GetChunksWithoutEmbeddings(ctx context.Context, scope store.Scope, limit int) ([]*store.Chunk, error) {
	where, args := scopeWhere(scope, 1)
	args = append(args, limit)
	rows, err := b.pool.Query(ctx, fmt.Sprintf(`
		SELECT c.id, c.document_id, c.chunk_index, c.content, c.created_at
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE %s AND c.embedding IS NULL
		LIMIT $%d
	`, where, len(args)), args...)
	if err != nil {
		return nil, engineerrors.BackendError("GetChunksWithoutEmbeddings", err)
	}
	defer rows.Close()

	var chunks []*store.Chunk
	for rows.Next() {
		c := &store.Chunk{}
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.ChunkIndex, &c.Content, &c.CreatedAt); err != nil {
			return nil, engineerrors.BackendError("GetChunksWithoutEmbeddings", err)
		}
		chunks = append(chunks, c)
	}
	if chunks == nil {
		chunks = []*store.Chunk{}
	}
	return chunks, rows.Err()
}

// LexicalSearch ranks chunks in scope using Postgres's native
// to_tsvector/ts_rank full text search.
func (b *Backend) LexicalSearch(ctx context.Context, scope store.Scope, query string, limit int) ([]store.LexicalResult, error) {
	if strings.TrimSpace(query) == "" {
		return []store.LexicalResult{}, nil
	}

	where, args := scopeWhere(scope, 2)
	args = append([]any{query}, args...)
	args = append(args, limit)

	sqlQuery := fmt.Sprintf(`
		SELECT c.id, c.document_id, c.chunk_index, ts_rank(c.content_tsv, plainto_tsquery('english', $1)) AS score
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE %s AND c.content_tsv @@ plainto_tsquery('english', $1)
		ORDER BY score DESC
		LIMIT $%d
	`, where, len(args))

	rows, err := b.pool.Query(ctx, sqlQuery, args...)
	if err != nil {
		return nil, engineerrors.BackendError("LexicalSearch", err)
	}
	defer rows.Close()

	var results []store.LexicalResult
	for rows.Next() {
		var r store.LexicalResult
		var chunkID, documentID uuid.UUID
		if err := rows.Scan(&chunkID, &documentID, &r.ChunkIndex, &r.Score); err != nil {
			return nil, engineerrors.BackendError("LexicalSearch", err)
		}
		r.ChunkID = chunkID.String()
		r.DocumentID = documentID.String()
		results = append(results, r)
	}
	if results == nil {
		results = []store.LexicalResult{}
	}
	return results, rows.Err()
}

// VectorSearch ranks chunks in scope by cosine distance using pgvector's
// <=> operator and an ivfflat index.
func (b *Backend) VectorSearch(ctx context.Context, scope store.Scope, queryVector []float32, limit int) ([]store.VectorResult, error) {
	if len(queryVector) != b.dimensions {
		return nil, store.ErrDimensionMismatch{Expected: b.dimensions, Got: len(queryVector)}
	}

	where, args := scopeWhere(scope, 2)
	args = append([]any{pgvector.NewVector(queryVector)}, args...)
	args = append(args, limit)

	sqlQuery := fmt.Sprintf(`
		SELECT c.id, c.document_id, c.chunk_index, 1 - (c.embedding <=> $1) AS score
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE %s AND c.embedding IS NOT NULL
		ORDER BY c.embedding <=> $1
		LIMIT $%d
	`, where, len(args))

	rows, err := b.pool.Query(ctx, sqlQuery, args...)
	if err != nil {
		return nil, engineerrors.BackendError("VectorSearch", err)
	}
	defer rows.Close()

	var results []store.VectorResult
	for rows.Next() {
		var r store.VectorResult
		var chunkID, documentID uuid.UUID
		if err := rows.Scan(&chunkID, &documentID, &r.ChunkIndex, &r.Score); err != nil {
			return nil, engineerrors.BackendError("VectorSearch", err)
		}
		r.ChunkID = chunkID.String()
		r.DocumentID = documentID.String()
		results = append(results, r)
	}
	if results == nil {
		results = []store.VectorResult{}
	}
	return results, rows.Err()
}

func (b *Backend) Close() error {
	b.pool.Close()
	return nil
}
