package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"
)

const metadataSchema = `
CREATE TABLE IF NOT EXISTS files (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	path        TEXT NOT NULL UNIQUE,
	category    TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	size        INTEGER NOT NULL DEFAULT 0,
	created_at  INTEGER NOT NULL DEFAULT 0,
	updated_at  INTEGER NOT NULL DEFAULT 0,
	accessed_at INTEGER NOT NULL DEFAULT 0,
	indexed_at  INTEGER NOT NULL DEFAULT 0
);
`

// SQLiteMetadataStore implements MetadataStore.
type SQLiteMetadataStore struct {
	db     *sql.DB
	path   string
	mu     sync.RWMutex
	closed bool
}

var _ MetadataStore = (*SQLiteMetadataStore)(nil)

// NewMetadataStore opens (creating if needed) the metadata database at path.
// An empty path gives an in-memory store.
func NewMetadataStore(path string, opts Options) (*SQLiteMetadataStore, error) {
	db, err := openDB(path, opts)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(metadataSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteMetadataStore{db: db, path: path}, nil
}

// Upsert inserts rec or updates the existing row for rec.Path, keeping its id.
func (s *SQLiteMetadataStore) Upsert(ctx context.Context, rec *FileRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	rec.IndexedAt = time.Now().Unix()
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO files (path, category, description, size, created_at, updated_at, accessed_at, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			category    = excluded.category,
			description = excluded.description,
			size        = excluded.size,
			created_at  = excluded.created_at,
			updated_at  = excluded.updated_at,
			accessed_at = excluded.accessed_at,
			indexed_at  = excluded.indexed_at
		RETURNING id`,
		rec.Path, rec.Category, rec.Description, rec.Size,
		rec.CreatedAt, rec.UpdatedAt, rec.AccessedAt, rec.IndexedAt,
	).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("upsert file %s: %w", rec.Path, err)
	}
	return nil
}

func (s *SQLiteMetadataStore) Get(ctx context.Context, path string) (*FileRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	var rec FileRecord
	err := s.db.QueryRowContext(ctx, `
		SELECT id, path, category, description, size, created_at, updated_at, accessed_at, indexed_at
		FROM files WHERE path = ?`, path,
	).Scan(&rec.ID, &rec.Path, &rec.Category, &rec.Description, &rec.Size,
		&rec.CreatedAt, &rec.UpdatedAt, &rec.AccessedAt, &rec.IndexedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get file %s: %w", path, err)
	}
	return &rec, nil
}

func (s *SQLiteMetadataStore) Delete(ctx context.Context, path string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrClosed
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM files WHERE path = ?`, path)
	if err != nil {
		return false, fmt.Errorf("delete file %s: %w", path, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *SQLiteMetadataStore) Rename(ctx context.Context, oldPath, newPath string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrClosed
	}
	if oldPath == newPath {
		return false, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM files WHERE path = ?`, oldPath).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("rename %s: %w", oldPath, err)
	}
	if exists == 0 {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM files WHERE path = ?`, newPath); err != nil {
		return false, fmt.Errorf("rename %s: clear destination: %w", oldPath, err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE files SET path = ? WHERE path = ?`, newPath, oldPath); err != nil {
		return false, fmt.Errorf("rename %s -> %s: %w", oldPath, newPath, err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit rename: %w", err)
	}
	return true, nil
}

func (s *SQLiteMetadataStore) PathsUnder(ctx context.Context, root string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT path FROM files WHERE path = ? OR path LIKE ? ESCAPE '\' ORDER BY path`,
		root, likePrefix(root))
	if err != nil {
		return nil, fmt.Errorf("list paths under %s: %w", root, err)
	}
	return scanPaths(rows)
}

func (s *SQLiteMetadataStore) Paths(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	rows, err := s.db.QueryContext(ctx, `SELECT path FROM files ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("list paths: %w", err)
	}
	return scanPaths(rows)
}

func (s *SQLiteMetadataStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrClosed
	}

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM files`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count files: %w", err)
	}
	return n, nil
}

// LastIndexed is the most recent IndexedAt, or the zero time for an empty store.
func (s *SQLiteMetadataStore) LastIndexed(ctx context.Context) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return time.Time{}, ErrClosed
	}

	var ts sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(indexed_at) FROM files`).Scan(&ts); err != nil {
		return time.Time{}, fmt.Errorf("last indexed: %w", err)
	}
	if !ts.Valid || ts.Int64 == 0 {
		return time.Time{}, nil
	}
	return time.Unix(ts.Int64, 0), nil
}

// CountByCategory returns the number of records per category.
func (s *SQLiteMetadataStore) CountByCategory(ctx context.Context) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	rows, err := s.db.QueryContext(ctx, `SELECT category, COUNT(*) FROM files GROUP BY category`)
	if err != nil {
		return nil, fmt.Errorf("count by category: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var cat string
		var n int
		if err := rows.Scan(&cat, &n); err != nil {
			return nil, err
		}
		out[cat] = n
	}
	return out, rows.Err()
}

// Close is idempotent.
func (s *SQLiteMetadataStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return closeDB(s.db)
}
