package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver

	"github.com/ctxgen/ragserve-go/internal/rag"
)

// SQLite is a DocumentStore backed by a local SQLite database. The corpus
// survives restarts; on startup the server re-embeds and re-indexes the
// stored documents into the vector index.
type SQLite struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default path for the document database.
// It resolves to ~/.ragserve/documents.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("docstore: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".ragserve")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("docstore: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "documents.db"), nil
}

// OpenSQLite opens (or creates) a SQLite document store at the given path and
// runs the schema migration. Use ":memory:" for an in-memory database in tests.
func OpenSQLite(path string) (*SQLite, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("docstore: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLite) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS documents (
    seq        INTEGER PRIMARY KEY AUTOINCREMENT,
    id         TEXT    NOT NULL UNIQUE,
    title      TEXT    NOT NULL,
    content    TEXT    NOT NULL,
    url        TEXT    NOT NULL DEFAULT '',
    metadata   TEXT    NOT NULL DEFAULT '{}',  -- JSON object
    created_at INTEGER NOT NULL                -- Unix timestamp (seconds)
);
CREATE INDEX IF NOT EXISTS idx_documents_id ON documents (id);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("docstore: migrate: %w", err)
	}
	return nil
}

// Put stores doc under doc.ID, overwriting any existing record. The upsert
// preserves the original seq so insertion order survives overwrites.
func (s *SQLite) Put(ctx context.Context, doc rag.Document) (bool, error) {
	md, err := json.Marshal(metadataOrEmpty(doc.Metadata))
	if err != nil {
		return false, fmt.Errorf("docstore: marshal metadata for %q: %w", doc.ID, err)
	}

	var exists bool
	err = s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM documents WHERE id = ?)`, doc.ID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("docstore: put lookup %q: %w", doc.ID, err)
	}

	const q = `
INSERT INTO documents (id, title, content, url, metadata, created_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    title = excluded.title,
    content = excluded.content,
    url = excluded.url,
    metadata = excluded.metadata,
    created_at = excluded.created_at`
	if _, err := s.db.ExecContext(ctx, q, doc.ID, doc.Title, doc.Content, doc.URL, string(md), doc.CreatedAt.Unix()); err != nil {
		return false, fmt.Errorf("docstore: put %q: %w", doc.ID, err)
	}
	return !exists, nil
}

// Get returns the document for id.
func (s *SQLite) Get(ctx context.Context, id string) (rag.Document, bool, error) {
	const q = `SELECT id, title, content, url, metadata, created_at FROM documents WHERE id = ?`
	doc, err := scanDocument(s.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return rag.Document{}, false, nil
	}
	if err != nil {
		return rag.Document{}, false, fmt.Errorf("docstore: get %q: %w", id, err)
	}
	return doc, true, nil
}

// List returns all documents in insertion order.
func (s *SQLite) List(ctx context.Context) ([]rag.Document, error) {
	const q = `SELECT id, title, content, url, metadata, created_at FROM documents ORDER BY seq ASC`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("docstore: list: %w", err)
	}
	defer rows.Close()

	var docs []rag.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("docstore: list scan: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("docstore: list rows: %w", err)
	}
	return docs, nil
}

// Remove deletes the document for id. Absent ids are a no-op.
func (s *SQLite) Remove(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id); err != nil {
		return fmt.Errorf("docstore: remove %q: %w", id, err)
	}
	return nil
}

// Count returns the number of stored documents.
func (s *SQLite) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("docstore: count: %w", err)
	}
	return n, nil
}

// Close releases the database connection pool.
func (s *SQLite) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("docstore: close: %w", err)
	}
	return nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanDocument reads one documents row.
func scanDocument(sc scanner) (rag.Document, error) {
	var doc rag.Document
	var md string
	var ts int64
	if err := sc.Scan(&doc.ID, &doc.Title, &doc.Content, &doc.URL, &md, &ts); err != nil {
		return rag.Document{}, err
	}
	if md != "" && md != "{}" {
		if err := json.Unmarshal([]byte(md), &doc.Metadata); err != nil {
			return rag.Document{}, fmt.Errorf("unmarshal metadata for %q: %w", doc.ID, err)
		}
	}
	doc.CreatedAt = time.Unix(ts, 0).UTC()
	return doc, nil
}

// metadataOrEmpty normalises nil metadata to an empty object for storage.
func metadataOrEmpty(md map[string]any) map[string]any {
	if md == nil {
		return map[string]any{}
	}
	return md
}
