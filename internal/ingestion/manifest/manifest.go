package manifest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/floatchat/floatchat-backend/internal/platform/logger"
)

// Entry is what the crawler knows about one remote file. ContentHash is only
// set after a fully successful download.
type Entry struct {
	URL          string
	Size         int64
	LastModified string
	ContentHash  string
	UpdatedAt    time.Time
}

// Manifest is the persistent fingerprint map keyed by remote path. It is the
// sole source of truth for "have we seen this file"; the download directory
// is just a cache.
type Manifest struct {
	db  *sql.DB
	log *logger.Logger
}

func Open(path string, baseLog *logger.Logger) (*Manifest, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("manifest dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	// One writer at a time; the tick lock already guarantees that, this just
	// keeps a stray reader from failing on a busy database.
	db.SetMaxOpenConns(1)

	const schema = `
CREATE TABLE IF NOT EXISTS remote_files (
	url TEXT PRIMARY KEY,
	size INTEGER NOT NULL DEFAULT 0,
	last_modified TEXT NOT NULL DEFAULT '',
	content_hash TEXT NOT NULL DEFAULT '',
	updated_at TEXT NOT NULL
);`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("manifest schema: %w", err)
	}
	return &Manifest{db: db, log: baseLog.With("service", "FingerprintManifest")}, nil
}

func (m *Manifest) Close() error {
	return m.db.Close()
}

// Get returns the stored entry for a URL, or nil when unseen.
func (m *Manifest) Get(ctx context.Context, url string) (*Entry, error) {
	row := m.db.QueryRowContext(ctx, `
SELECT url, size, last_modified, content_hash, updated_at
FROM remote_files WHERE url = ?`, url)

	var (
		e         Entry
		updatedAt string
	)
	err := row.Scan(&e.URL, &e.Size, &e.LastModified, &e.ContentHash, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("manifest get: %w", err)
	}
	if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
		e.UpdatedAt = t
	}
	return &e, nil
}

// Put upserts an entry.
func (m *Manifest) Put(ctx context.Context, e Entry) error {
	_, err := m.db.ExecContext(ctx, `
INSERT INTO remote_files (url, size, last_modified, content_hash, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(url) DO UPDATE SET
	size = excluded.size,
	last_modified = excluded.last_modified,
	content_hash = excluded.content_hash,
	updated_at = excluded.updated_at`,
		e.URL, e.Size, e.LastModified, e.ContentHash, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("manifest put: %w", err)
	}
	return nil
}

// Delete evicts one entry, re-enabling download of a path that previously
// failed permanently.
func (m *Manifest) Delete(ctx context.Context, url string) error {
	_, err := m.db.ExecContext(ctx, `DELETE FROM remote_files WHERE url = ?`, url)
	if err != nil {
		return fmt.Errorf("manifest delete: %w", err)
	}
	return nil
}

// ShouldDownload implements the fingerprint rule: fetch when the URL is
// unseen or its size/last-modified differ from the stored values.
func (m *Manifest) ShouldDownload(ctx context.Context, url string, size int64, lastModified string) (bool, error) {
	entry, err := m.Get(ctx, url)
	if err != nil {
		return false, err
	}
	if entry == nil {
		return true, nil
	}
	if size > 0 && entry.Size != size {
		return true, nil
	}
	if lastModified != "" && entry.LastModified != lastModified {
		return true, nil
	}
	return false, nil
}
