// Package sqlitestore implements store.Backend over an embedded SQLite
// database: documents and chunks in ordinary tables, lexical ranking via
// an FTS5 virtual table, and vector ranking via an in-memory coder/hnsw
// graph per scope, rebuilt from the chunks table on open.
package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // pure Go driver, no CGO

	"github.com/duskvault/memengine/internal/engineerrors"
	"github.com/duskvault/memengine/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	agent_id TEXT,
	path TEXT NOT NULL,
	content TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_documents_scope_path
	ON documents(user_id, COALESCE(agent_id, ''), path);
CREATE INDEX IF NOT EXISTS idx_documents_scope ON documents(user_id, agent_id);

CREATE TABLE IF NOT EXISTS chunks (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	chunk_index INTEGER NOT NULL,
	content TEXT NOT NULL,
	embedding BLOB,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id);
`

// Backend implements store.Backend on top of a single SQLite database
// file (or an in-memory database when path is "").
type Backend struct {
	mu         sync.RWMutex
	db         *sql.DB
	dimensions int
	stopWords  map[string]struct{}
	graphs     map[string]*scopeGraph
	closed     bool
}

var _ store.Backend = (*Backend)(nil)

// Open creates or opens a SQLite-backed store.Backend. dimensions fixes
// the embedding width VectorSearch and UpdateChunkEmbedding will enforce.
// An empty path opens an in-memory database, useful for tests.
func Open(path string, dimensions int) (*Backend, error) {
	var dsn string
	if path == "" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlitestore: create directory: %w", err)
		}
		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlitestore: set pragma %q: %w", p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlitestore: init schema: %w", err)
	}
	if _, err := db.Exec(lexicalSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlitestore: init fts schema: %w", err)
	}

	b := &Backend{
		db:         db,
		dimensions: dimensions,
		stopWords:  BuildStopWordMap(defaultStopWords),
		graphs:     make(map[string]*scopeGraph),
	}

	if err := b.loadVectorGraphs(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlitestore: rebuild vector graphs: %w", err)
	}

	return b, nil
}

// loadVectorGraphs rebuilds every scope's in-memory HNSW graph from the
// chunks already persisted on disk. Called once at Open.
func (b *Backend) loadVectorGraphs(ctx context.Context) error {
	rows, err := b.db.QueryContext(ctx, `
		SELECT c.id, c.document_id, c.chunk_index, c.embedding, d.user_id, d.agent_id
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE c.embedding IS NOT NULL
	`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var chunkID, documentID, userID string
		var chunkIndex int
		var embedding []byte
		var agentID sql.NullString
		if err := rows.Scan(&chunkID, &documentID, &chunkIndex, &embedding, &userID, &agentID); err != nil {
			return err
		}
		scope := store.Scope{UserID: userID}
		if agentID.Valid {
			id, err := uuid.Parse(agentID.String)
			if err != nil {
				slog.Warn("sqlitestore_skip_malformed_agent_id", slog.String("chunk_id", chunkID))
				continue
			}
			scope.AgentID = &id
		}
		vec := decodeEmbedding(embedding)
		if vec == nil {
			continue
		}
		b.upsertVector(scope, chunkRef{chunkID: chunkID, documentID: documentID, chunkIndex: chunkIndex}, vec)
	}
	return rows.Err()
}

func scopeToColumns(scope store.Scope) (userID string, agentID sql.NullString) {
	userID = scope.UserID
	if scope.AgentID != nil {
		agentID = sql.NullString{String: scope.AgentID.String(), Valid: true}
	}
	return
}

func (b *Backend) scanDocument(row interface{ Scan(...any) error }) (*store.Document, error) {
	var d store.Document
	var id string
	var userID string
	var agentID sql.NullString
	var createdAt, updatedAt int64
	if err := row.Scan(&id, &userID, &agentID, &d.Path, &d.Content, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: malformed document id %q: %w", id, err)
	}
	d.ID = parsed
	d.Scope = store.Scope{UserID: userID}
	if agentID.Valid {
		aid, err := uuid.Parse(agentID.String)
		if err != nil {
			return nil, fmt.Errorf("sqlitestore: malformed agent id %q: %w", agentID.String, err)
		}
		d.Scope.AgentID = &aid
	}
	d.CreatedAt = time.Unix(0, createdAt)
	d.UpdatedAt = time.Unix(0, updatedAt)
	return &d, nil
}

const documentColumns = `id, user_id, agent_id, path, content, created_at, updated_at`

func (b *Backend) GetDocumentByPath(ctx context.Context, scope store.Scope, path string) (*store.Document, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, fmt.Errorf("sqlitestore: backend is closed")
	}

	clause, args := scopeFilterSQL(scope)
	row := b.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s FROM documents d WHERE %s AND d.path = ?
		ORDER BY d.agent_id IS NULL LIMIT 1
	`, documentColumns, clause), append(args, path)...)

	doc, err := b.scanDocument(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, engineerrors.DocumentNotFound(path)
		}
		return nil, engineerrors.BackendError("GetDocumentByPath", err)
	}
	return doc, nil
}

func (b *Backend) GetDocumentByID(ctx context.Context, id uuid.UUID) (*store.Document, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, fmt.Errorf("sqlitestore: backend is closed")
	}

	row := b.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT %s FROM documents d WHERE d.id = ?`, documentColumns), id.String())
	doc, err := b.scanDocument(row)
	if err != nil {
		if err == sql.ErrNoRows {
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

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, fmt.Errorf("sqlitestore: backend is closed")
	}

	// Another caller may have created the document between the lookup above
	// and taking the write lock; return that row instead of a duplicate insert.
	clause, args := scopeFilterSQL(scope)
	row := b.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s FROM documents d WHERE %s AND d.path = ?
		ORDER BY d.agent_id IS NULL LIMIT 1
	`, documentColumns, clause), append(args, path)...)
	existing, scanErr := b.scanDocument(row)
	if scanErr == nil {
		return existing, nil
	}
	if scanErr != sql.ErrNoRows {
		return nil, engineerrors.BackendError("GetOrCreateDocumentByPath", scanErr)
	}

	now := time.Now()
	id := uuid.New()
	userID, agentID := scopeToColumns(scope)

	_, err = b.db.ExecContext(ctx, `
		INSERT INTO documents(id, user_id, agent_id, path, content, created_at, updated_at)
		VALUES (?, ?, ?, ?, '', ?, ?)
	`, id.String(), userID, agentID, path, now.UnixNano(), now.UnixNano())
	if err != nil {
		return nil, engineerrors.BackendError("GetOrCreateDocumentByPath", err)
	}

	return &store.Document{
		ID:        id,
		Scope:     scope,
		Path:      path,
		Content:   "",
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (b *Backend) UpdateDocument(ctx context.Context, id uuid.UUID, content string) (*store.Document, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, fmt.Errorf("sqlitestore: backend is closed")
	}

	now := time.Now()
	res, err := b.db.ExecContext(ctx, `UPDATE documents SET content = ?, updated_at = ? WHERE id = ?`,
		content, now.UnixNano(), id.String())
	if err != nil {
		return nil, engineerrors.BackendError("UpdateDocument", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return nil, engineerrors.DocumentNotFound(id.String())
	}

	row := b.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT %s FROM documents d WHERE d.id = ?`, documentColumns), id.String())
	doc, err := b.scanDocument(row)
	if err != nil {
		return nil, engineerrors.BackendError("UpdateDocument", err)
	}
	return doc, nil
}

func (b *Backend) DeleteDocumentByPath(ctx context.Context, scope store.Scope, path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("sqlitestore: backend is closed")
	}

	clause, args := scopeFilterSQL(scope)
	row := b.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT d.id FROM documents d WHERE %s AND d.path = ?`, clause), append(args, path)...)
	var idStr string
	if err := row.Scan(&idStr); err != nil {
		if err == sql.ErrNoRows {
			return engineerrors.DocumentNotFound(path)
		}
		return engineerrors.BackendError("DeleteDocumentByPath", err)
	}

	chunkRows, err := b.db.QueryContext(ctx, `SELECT id FROM chunks WHERE document_id = ?`, idStr)
	if err != nil {
		return engineerrors.BackendError("DeleteDocumentByPath", err)
	}
	var chunkIDs []string
	for chunkRows.Next() {
		var cid string
		if err := chunkRows.Scan(&cid); err != nil {
			chunkRows.Close()
			return engineerrors.BackendError("DeleteDocumentByPath", err)
		}
		chunkIDs = append(chunkIDs, cid)
	}
	chunkRows.Close()

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return engineerrors.BackendError("DeleteDocumentByPath", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, cid := range chunkIDs {
		if err := b.deleteChunkContent(ctx, tx, cid); err != nil {
			return engineerrors.BackendError("DeleteDocumentByPath", err)
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, idStr); err != nil {
		return engineerrors.BackendError("DeleteDocumentByPath", err)
	}
	if err := tx.Commit(); err != nil {
		return engineerrors.BackendError("DeleteDocumentByPath", err)
	}

	for _, cid := range chunkIDs {
		b.removeVector(scope, cid)
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
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, fmt.Errorf("sqlitestore: backend is closed")
	}

	clause, args := scopeFilterSQL(scope)
	rows, err := b.db.QueryContext(ctx, fmt.Sprintf(`SELECT d.path FROM documents d WHERE %s`, clause), args...)
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
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("sqlitestore: backend is closed")
	}

	doc, scope, err := b.documentScope(ctx, documentID)
	if err != nil {
		return err
	}

	rows, err := b.db.QueryContext(ctx, `SELECT id FROM chunks WHERE document_id = ?`, documentID.String())
	if err != nil {
		return engineerrors.BackendError("DeleteChunks", err)
	}
	var chunkIDs []string
	for rows.Next() {
		var cid string
		if err := rows.Scan(&cid); err != nil {
			rows.Close()
			return engineerrors.BackendError("DeleteChunks", err)
		}
		chunkIDs = append(chunkIDs, cid)
	}
	rows.Close()

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return engineerrors.BackendError("DeleteChunks", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, cid := range chunkIDs {
		if err := b.deleteChunkContent(ctx, tx, cid); err != nil {
			return engineerrors.BackendError("DeleteChunks", err)
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, documentID.String()); err != nil {
		return engineerrors.BackendError("DeleteChunks", err)
	}
	if err := tx.Commit(); err != nil {
		return engineerrors.BackendError("DeleteChunks", err)
	}
	_ = doc

	for _, cid := range chunkIDs {
		b.removeVector(scope, cid)
	}
	return nil
}

func (b *Backend) documentScope(ctx context.Context, documentID uuid.UUID) (*store.Document, store.Scope, error) {
	row := b.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT %s FROM documents d WHERE d.id = ?`, documentColumns), documentID.String())
	doc, err := b.scanDocument(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, store.Scope{}, engineerrors.DocumentNotFound(documentID.String())
		}
		return nil, store.Scope{}, engineerrors.BackendError("documentScope", err)
	}
	return doc, doc.Scope, nil
}

func (b *Backend) InsertChunk(ctx context.Context, chunk *store.Chunk) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("sqlitestore: backend is closed")
	}

	if chunk.ID == uuid.Nil {
		chunk.ID = uuid.New()
	}
	if chunk.CreatedAt.IsZero() {
		chunk.CreatedAt = time.Now()
	}

	_, scope, err := b.documentScope(ctx, chunk.DocumentID)
	if err != nil {
		return err
	}

	var embeddingBlob any
	if chunk.Embedding != nil {
		if len(chunk.Embedding) != b.dimensions {
			return store.ErrDimensionMismatch{Expected: b.dimensions, Got: len(chunk.Embedding)}
		}
		embeddingBlob = encodeEmbedding(chunk.Embedding)
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return engineerrors.BackendError("InsertChunk", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO chunks(id, document_id, chunk_index, content, embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, chunk.ID.String(), chunk.DocumentID.String(), chunk.ChunkIndex, chunk.Content, embeddingBlob, chunk.CreatedAt.UnixNano())
	if err != nil {
		return engineerrors.BackendError("InsertChunk", err)
	}

	if err := b.indexChunkContent(ctx, tx, chunk.ID.String(), chunk.DocumentID.String(), chunk.Content); err != nil {
		return engineerrors.BackendError("InsertChunk", err)
	}

	if err := tx.Commit(); err != nil {
		return engineerrors.BackendError("InsertChunk", err)
	}

	if chunk.Embedding != nil {
		ref := chunkRef{chunkID: chunk.ID.String(), documentID: chunk.DocumentID.String(), chunkIndex: chunk.ChunkIndex}
		b.upsertVector(scope, ref, chunk.Embedding)
	}
	return nil
}

func (b *Backend) UpdateChunkEmbedding(ctx context.Context, chunkID uuid.UUID, embedding []float32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("sqlitestore: backend is closed")
	}
	if len(embedding) != b.dimensions {
		return store.ErrDimensionMismatch{Expected: b.dimensions, Got: len(embedding)}
	}

	var documentID string
	var chunkIndex int
	row := b.db.QueryRowContext(ctx, `SELECT document_id, chunk_index FROM chunks WHERE id = ?`, chunkID.String())
	if err := row.Scan(&documentID, &chunkIndex); err != nil {
		if err == sql.ErrNoRows {
			return engineerrors.ChunkNotFound(chunkID.String())
		}
		return engineerrors.BackendError("UpdateChunkEmbedding", err)
	}

	docID, err := uuid.Parse(documentID)
	if err != nil {
		return engineerrors.BackendError("UpdateChunkEmbedding", err)
	}
	_, scope, err := b.documentScope(ctx, docID)
	if err != nil {
		return err
	}

	_, err = b.db.ExecContext(ctx, `UPDATE chunks SET embedding = ? WHERE id = ?`,
		encodeEmbedding(embedding), chunkID.String())
	if err != nil {
		return engineerrors.BackendError("UpdateChunkEmbedding", err)
	}

	ref := chunkRef{chunkID: chunkID.String(), documentID: documentID, chunkIndex: chunkIndex}
	b.upsertVector(scope, ref, embedding)
	return nil
}

func (b *Backend) GetChunksWithoutEmbeddings(ctx context.Context, scope store.Scope, limit int) ([]*store.Chunk, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, fmt.Errorf("sqlitestore: backend is closed")
	}

	clause, args := scopeFilterSQL(scope)
	rows, err := b.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT c.id, c.document_id, c.chunk_index, c.content, c.created_at
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE %s AND c.embedding IS NULL
		LIMIT ?
	`, clause), append(args, limit)...)
	if err != nil {
		return nil, engineerrors.BackendError("GetChunksWithoutEmbeddings", err)
	}
	defer rows.Close()

	var chunks []*store.Chunk
	for rows.Next() {
		var id, docID string
		var createdAt int64
		c := &store.Chunk{}
		if err := rows.Scan(&id, &docID, &c.ChunkIndex, &c.Content, &createdAt); err != nil {
			return nil, engineerrors.BackendError("GetChunksWithoutEmbeddings", err)
		}
		parsedID, err := uuid.Parse(id)
		if err != nil {
			return nil, engineerrors.BackendError("GetChunksWithoutEmbeddings", err)
		}
		parsedDocID, err := uuid.Parse(docID)
		if err != nil {
			return nil, engineerrors.BackendError("GetChunksWithoutEmbeddings", err)
		}
		c.ID = parsedID
		c.DocumentID = parsedDocID
		c.CreatedAt = time.Unix(0, createdAt)
		chunks = append(chunks, c)
	}
	if chunks == nil {
		chunks = []*store.Chunk{}
	}
	return chunks, rows.Err()
}

func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	_, _ = b.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return b.db.Close()
}
