// Package workspace implements the public facade over a storage backend: a
// filesystem-like tree of markdown documents, scoped to one (user, agent)
// pair, indexed for hybrid search as a side effect of every write.
package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/duskvault/memengine/internal/chunk"
	"github.com/duskvault/memengine/internal/embed"
	"github.com/duskvault/memengine/internal/engineerrors"
	"github.com/duskvault/memengine/internal/index"
	"github.com/duskvault/memengine/internal/search"
	"github.com/duskvault/memengine/internal/store"
)

// backfillBatchSize bounds how many chunks BackfillEmbeddings processes
// per call.
const backfillBatchSize = 100

// Workspace binds a (user_id, agent_id?) scope and an optional embedding
// provider over one storage backend. It holds no mutable state beyond its
// immutable scope and handles, so a single Workspace value may be used
// concurrently by independent callers; the backend itself is responsible
// for any serialization it requires (see store.Backend).
type Workspace struct {
	scope    store.Scope
	backend  store.Backend
	embedder embed.Embedder // nil disables semantic search and indexing
	indexer  *index.Indexer
}

// Option configures a Workspace at construction.
type Option func(*Workspace)

// WithAgent scopes the workspace to a specific agent within the user's
// account. Omitting it leaves documents visible to every agent of that
// user (the shared scope).
func WithAgent(agentID uuid.UUID) Option {
	return func(w *Workspace) { w.scope.AgentID = &agentID }
}

// WithEmbedder attaches an embedding provider, enabling semantic search and
// embedding as an effect of indexing.
func WithEmbedder(embedder embed.Embedder) Option {
	return func(w *Workspace) { w.embedder = embedder }
}

// WithChunkConfig overrides the default chunking configuration used when
// indexing documents.
func WithChunkConfig(cfg chunk.Config) Option {
	return func(w *Workspace) { w.indexer.ChunkConfig = cfg }
}

// New builds a Workspace bound to userID over backend, applying any
// options. The backend is shared across all workspaces in a process,
// typically via a connection pool.
func New(backend store.Backend, userID string, opts ...Option) *Workspace {
	w := &Workspace{
		scope:   store.Scope{UserID: userID},
		backend: backend,
	}
	w.indexer = index.New(backend, nil, chunk.DefaultConfig())
	for _, opt := range opts {
		opt(w)
	}
	w.indexer.Backend = backend
	w.indexer.Embedder = w.embedder
	return w
}

// UserID returns the bound user identifier.
func (w *Workspace) UserID() string { return w.scope.UserID }

// AgentID returns the bound agent identifier, or nil for the shared scope.
func (w *Workspace) AgentID() *uuid.UUID { return w.scope.AgentID }

// ==================== File operations ====================

// Read returns the document at path.
func (w *Workspace) Read(ctx context.Context, path string) (*store.Document, error) {
	return w.backend.GetDocumentByPath(ctx, w.scope, normalizePath(path))
}

// Write creates or overwrites the document at path with content and
// reindexes it.
func (w *Workspace) Write(ctx context.Context, path, content string) (*store.Document, error) {
	path = normalizePath(path)
	doc, err := w.backend.GetOrCreateDocumentByPath(ctx, w.scope, path)
	if err != nil {
		return nil, err
	}
	if _, err := w.backend.UpdateDocument(ctx, doc.ID, content); err != nil {
		return nil, err
	}
	if err := w.indexer.Reindex(ctx, doc.ID); err != nil {
		return nil, err
	}
	return w.backend.GetDocumentByID(ctx, doc.ID)
}

// Append adds content to the document at path, creating it if absent. A
// single newline separates existing content from the appended content;
// when the document was empty, content becomes the entire body.
func (w *Workspace) Append(ctx context.Context, path, content string) error {
	path = normalizePath(path)
	doc, err := w.backend.GetOrCreateDocumentByPath(ctx, w.scope, path)
	if err != nil {
		return err
	}

	newContent := content
	if doc.Content != "" {
		newContent = doc.Content + "\n" + content
	}

	if _, err := w.backend.UpdateDocument(ctx, doc.ID, newContent); err != nil {
		return err
	}
	return w.indexer.Reindex(ctx, doc.ID)
}

// Exists reports whether a document exists at path.
func (w *Workspace) Exists(ctx context.Context, path string) (bool, error) {
	_, err := w.backend.GetDocumentByPath(ctx, w.scope, normalizePath(path))
	if err == nil {
		return true, nil
	}
	if engineerrors.CodeOf(err) == engineerrors.CodeDocumentNotFound {
		return false, nil
	}
	return false, err
}

// Delete removes the document at path and its chunks.
func (w *Workspace) Delete(ctx context.Context, path string) error {
	return w.backend.DeleteDocumentByPath(ctx, w.scope, normalizePath(path))
}

// List returns the immediate children of dir (files and synthesized
// subdirectories, non-recursive). Use "" for the workspace root.
func (w *Workspace) List(ctx context.Context, dir string) ([]store.WorkspaceEntry, error) {
	return w.backend.ListDirectory(ctx, w.scope, normalizeDirectory(dir))
}

// ListAll returns every document path in scope.
func (w *Workspace) ListAll(ctx context.Context) ([]string, error) {
	return w.backend.ListAllPaths(ctx, w.scope)
}

// ReadOrCreate returns the document at path, creating an empty one (and
// indexing it) if it doesn't already exist.
func (w *Workspace) ReadOrCreate(ctx context.Context, path string) (*store.Document, error) {
	path = normalizePath(path)
	doc, err := w.backend.GetOrCreateDocumentByPath(ctx, w.scope, path)
	if err != nil {
		return nil, err
	}
	if err := w.indexer.Reindex(ctx, doc.ID); err != nil {
		return nil, err
	}
	return doc, nil
}

// ==================== Convenience methods ====================

// Memory returns MEMORY.md, creating it if absent.
func (w *Workspace) Memory(ctx context.Context) (*store.Document, error) {
	return w.ReadOrCreate(ctx, PathMEMORY)
}

// TodayLog returns today's daily log (UTC), creating it if absent.
func (w *Workspace) TodayLog(ctx context.Context) (*store.Document, error) {
	return w.DailyLog(ctx, time.Now().UTC().Format("2006-01-02"))
}

// DailyLog returns the daily log for date ("YYYY-MM-DD"), creating it if
// absent.
func (w *Workspace) DailyLog(ctx context.Context, date string) (*store.Document, error) {
	return w.ReadOrCreate(ctx, dailyLogPath(date))
}

// HeartbeatChecklist returns HEARTBEAT.md's content, or the in-memory seed
// template when the file has never been created. The seed is never
// persisted by this call; that avoids an unintended write on read.
func (w *Workspace) HeartbeatChecklist(ctx context.Context) (string, error) {
	doc, err := w.Read(ctx, PathHEARTBEAT)
	if err == nil {
		return doc.Content, nil
	}
	if engineerrors.CodeOf(err) == engineerrors.CodeDocumentNotFound {
		return heartbeatTemplate, nil
	}
	return "", err
}

// ==================== Memory operations ====================

// AppendMemory appends entry to MEMORY.md, separated from existing content
// by a blank line.
func (w *Workspace) AppendMemory(ctx context.Context, entry string) error {
	doc, err := w.Memory(ctx)
	if err != nil {
		return err
	}
	newContent := entry
	if doc.Content != "" {
		newContent = doc.Content + "\n\n" + entry
	}
	if _, err := w.backend.UpdateDocument(ctx, doc.ID, newContent); err != nil {
		return err
	}
	return w.indexer.Reindex(ctx, doc.ID)
}

// AppendDailyLog appends a UTC-timestamped entry to today's daily log:
// "[HH:MM:SS] entry", one per line.
func (w *Workspace) AppendDailyLog(ctx context.Context, entry string) error {
	now := time.Now().UTC()
	path := dailyLogPath(now.Format("2006-01-02"))
	line := fmt.Sprintf("[%s] %s", now.Format("15:04:05"), entry)
	return w.Append(ctx, path, line)
}

// ==================== System prompt ====================

var identitySections = []struct {
	path   string
	header string
}{
	{PathAGENTS, "## Agent Instructions"},
	{PathSOUL, "## Core Values"},
	{PathUSER, "## User Context"},
	{PathIDENTITY, "## Identity"},
}

// SystemPrompt composes a prompt from the non-empty content of the four
// canonical identity files, each under a fixed header, followed by today's
// and yesterday's daily logs, joined by "\n\n---\n\n".
func (w *Workspace) SystemPrompt(ctx context.Context) (string, error) {
	var parts []string

	for _, section := range identitySections {
		doc, err := w.Read(ctx, section.path)
		if err != nil {
			continue
		}
		if doc.Content != "" {
			parts = append(parts, section.header+"\n\n"+doc.Content)
		}
	}

	now := time.Now().UTC()
	today := now.Format("2006-01-02")
	yesterday := now.AddDate(0, 0, -1).Format("2006-01-02")
	for _, entry := range []struct {
		date, header string
	}{
		{today, "## Today's Notes"},
		{yesterday, "## Yesterday's Notes"},
	} {
		doc, err := w.Read(ctx, dailyLogPath(entry.date))
		if err != nil {
			continue
		}
		if doc.Content != "" {
			parts = append(parts, entry.header+"\n\n"+doc.Content)
		}
	}

	result := ""
	for i, p := range parts {
		if i > 0 {
			result += "\n\n---\n\n"
		}
		result += p
	}
	return result, nil
}

// ==================== Search ====================

// Search runs a hybrid search with the default configuration, truncated to
// limit results.
func (w *Workspace) Search(ctx context.Context, query string, limit int) ([]search.Result, error) {
	cfg := search.DefaultConfig()
	cfg.Limit = limit
	return w.SearchWithConfig(ctx, query, cfg)
}

// SearchWithConfig runs a hybrid search with cfg. If an embedding provider
// is configured, the query is embedded once and fused with the lexical
// ranking via Reciprocal Rank Fusion; otherwise only the lexical ranking
// contributes.
func (w *Workspace) SearchWithConfig(ctx context.Context, query string, cfg search.Config) ([]search.Result, error) {
	lexical, err := w.backend.LexicalSearch(ctx, w.scope, query, cfg.Limit)
	if err != nil {
		return nil, err
	}

	var vector []store.VectorResult
	if w.embedder != nil {
		queryVec, err := w.embedder.Embed(ctx, query)
		if err != nil {
			return nil, engineerrors.EmbeddingFailed(err)
		}
		vector, err = w.backend.VectorSearch(ctx, w.scope, queryVec, cfg.Limit)
		if err != nil {
			return nil, err
		}
	}

	return search.Fuse(lexical, vector, cfg), nil
}

// ==================== Seeding ====================

// SeedIfEmpty creates any canonical file (README, MEMORY, IDENTITY, SOUL,
// AGENTS, USER, TOOLS, BOOT, BOOTSTRAP, HEARTBEAT) that doesn't already
// exist, from its bundled template. Existing files are never overwritten.
// Per-file errors other than "not found" are logged and the file is
// skipped; the call otherwise succeeds with a possibly-reduced count.
func (w *Workspace) SeedIfEmpty(ctx context.Context) (int, error) {
	count := 0
	for _, seed := range seedTemplates {
		_, err := w.Read(ctx, seed.path)
		if err == nil {
			continue
		}
		if engineerrors.CodeOf(err) != engineerrors.CodeDocumentNotFound {
			slog.Warn("workspace_seed_check_failed",
				slog.String("path", seed.path), slog.String("error", err.Error()))
			continue
		}

		if _, err := w.Write(ctx, seed.path, seed.template); err != nil {
			slog.Warn("workspace_seed_write_failed",
				slog.String("path", seed.path), slog.String("error", err.Error()))
			continue
		}
		count++
	}

	if count > 0 {
		slog.Info("workspace_seeded", slog.Int("count", count))
	}
	return count, nil
}

// BackfillEmbeddings embeds up to a bounded batch of chunks in scope that
// have no embedding yet. Returns 0 without error when no embedder is
// configured.
func (w *Workspace) BackfillEmbeddings(ctx context.Context) (int, error) {
	return index.Backfill(ctx, w.backend, w.embedder, w.scope, backfillBatchSize)
}
