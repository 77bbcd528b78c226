package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/duskvault/memengine/internal/store"
)

// porter unicode61 stems tokens (fox/foxes, run/running) the same way
// pgstore's to_tsvector('english', ...) does, so the two backends agree
// on which queries match which content.
const lexicalSchema = `
CREATE VIRTUAL TABLE IF NOT EXISTS fts_chunks USING fts5(
	chunk_id UNINDEXED,
	document_id UNINDEXED,
	content,
	tokenize='porter unicode61'
);
`

// indexChunkContent writes (or rewrites) a chunk's pre-tokenized content
// into the FTS5 index. FTS5 virtual tables have no UPSERT, so an existing
// row is deleted first.
func (b *Backend) indexChunkContent(ctx context.Context, tx *sql.Tx, chunkID, documentID, content string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM fts_chunks WHERE chunk_id = ?`, chunkID); err != nil {
		return fmt.Errorf("delete existing fts row: %w", err)
	}

	tokens := TokenizeProse(content)
	tokens = FilterStopWords(tokens, b.stopWords)
	processed := strings.Join(tokens, " ")

	_, err := tx.ExecContext(ctx,
		`INSERT INTO fts_chunks(chunk_id, document_id, content) VALUES (?, ?, ?)`,
		chunkID, documentID, processed)
	if err != nil {
		return fmt.Errorf("insert fts row: %w", err)
	}
	return nil
}

func (b *Backend) deleteChunkContent(ctx context.Context, tx *sql.Tx, chunkID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM fts_chunks WHERE chunk_id = ?`, chunkID)
	return err
}

// LexicalSearch ranks chunks in scope against query using SQLite FTS5's
// bm25() ranking function. FTS5 returns bm25 scores as negative numbers
// where lower (more negative) is a better match; we negate so that higher
// scores mean better matches, consistent with VectorSearch.
func (b *Backend) LexicalSearch(ctx context.Context, scope store.Scope, query string, limit int) ([]store.LexicalResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("sqlitestore: backend is closed")
	}
	if strings.TrimSpace(query) == "" {
		return []store.LexicalResult{}, nil
	}

	tokens := TokenizeProse(query)
	tokens = FilterStopWords(tokens, b.stopWords)
	if len(tokens) == 0 {
		return []store.LexicalResult{}, nil
	}
	matchQuery := strings.Join(tokens, " ")

	scopeClause, scopeArgs := scopeFilterSQL(scope)
	sqlQuery := fmt.Sprintf(`
		SELECT f.chunk_id, f.document_id, c.chunk_index, bm25(fts_chunks) AS score
		FROM fts_chunks f
		JOIN chunks c ON c.id = f.chunk_id
		JOIN documents d ON d.id = f.document_id
		WHERE fts_chunks MATCH ? AND %s
		ORDER BY score
		LIMIT ?
	`, scopeClause)

	args := append([]any{matchQuery}, scopeArgs...)
	args = append(args, limit)

	rows, err := b.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		if strings.Contains(err.Error(), "fts5:") || strings.Contains(err.Error(), "syntax error") {
			return []store.LexicalResult{}, nil
		}
		return nil, fmt.Errorf("sqlitestore: lexical search: %w", err)
	}
	defer rows.Close()

	var results []store.LexicalResult
	for rows.Next() {
		var r store.LexicalResult
		var rawScore float64
		if err := rows.Scan(&r.ChunkID, &r.DocumentID, &r.ChunkIndex, &rawScore); err != nil {
			return nil, fmt.Errorf("sqlitestore: scan lexical result: %w", err)
		}
		r.Score = -rawScore
		results = append(results, r)
	}
	if results == nil {
		results = []store.LexicalResult{}
	}
	return results, rows.Err()
}
