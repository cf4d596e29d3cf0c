package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
)

const vectorSchema = `
CREATE TABLE IF NOT EXISTS spaces (
	space TEXT PRIMARY KEY,
	dim   INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS vectors (
	id    INTEGER PRIMARY KEY AUTOINCREMENT,
	path  TEXT NOT NULL,
	space TEXT NOT NULL,
	dim   INTEGER NOT NULL,
	vec   BLOB NOT NULL,
	UNIQUE(path, space)
);
CREATE INDEX IF NOT EXISTS idx_vectors_path ON vectors(path);
`

// SQLiteVectorStore implements VectorStore. Vectors are stored as
// little-endian float32 blobs.
type SQLiteVectorStore struct {
	db     *sql.DB
	path   string
	mu     sync.RWMutex
	closed bool
}

var _ VectorStore = (*SQLiteVectorStore)(nil)

// NewVectorStore opens (creating if needed) the vector database at path.
// An empty path gives an in-memory store.
func NewVectorStore(path string, opts Options) (*SQLiteVectorStore, error) {
	db, err := openDB(path, opts)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(vectorSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteVectorStore{db: db, path: path}, nil
}

// Upsert stores rec, registering rec.Space's dimension on first use.
func (s *SQLiteVectorStore) Upsert(ctx context.Context, rec *VectorRecord) error {
	if rec.Dim <= 0 || len(rec.Vec) != rec.Dim {
		return ErrDimensionMismatch{Space: rec.Space, Expected: rec.Dim, Got: len(rec.Vec)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var dim int
	err = tx.QueryRowContext(ctx, `SELECT dim FROM spaces WHERE space = ?`, rec.Space).Scan(&dim)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := tx.ExecContext(ctx, `INSERT INTO spaces (space, dim) VALUES (?, ?)`, rec.Space, rec.Dim); err != nil {
			return fmt.Errorf("register space %s: %w", rec.Space, err)
		}
	case err != nil:
		return fmt.Errorf("lookup space %s: %w", rec.Space, err)
	case dim != rec.Dim:
		return ErrDimensionMismatch{Space: rec.Space, Expected: dim, Got: rec.Dim}
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO vectors (path, space, dim, vec) VALUES (?, ?, ?, ?)
		ON CONFLICT(path, space) DO UPDATE SET dim = excluded.dim, vec = excluded.vec
		RETURNING id`,
		rec.Path, rec.Space, rec.Dim, encodeVector(rec.Vec),
	).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("upsert vector %s: %w", rec.Path, err)
	}
	return tx.Commit()
}

func (s *SQLiteVectorStore) Get(ctx context.Context, path, space string) (*VectorRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	var rec VectorRecord
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT id, path, space, dim, vec FROM vectors WHERE path = ? AND space = ?`, path, space,
	).Scan(&rec.ID, &rec.Path, &rec.Space, &rec.Dim, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get vector %s: %w", path, err)
	}
	if rec.Vec, err = decodeVector(blob, rec.Dim); err != nil {
		return nil, fmt.Errorf("get vector %s: %w", path, err)
	}
	return &rec, nil
}

func (s *SQLiteVectorStore) Delete(ctx context.Context, path, space string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrClosed
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM vectors WHERE path = ? AND space = ?`, path, space)
	if err != nil {
		return false, fmt.Errorf("delete vector %s: %w", path, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *SQLiteVectorStore) Rename(ctx context.Context, oldPath, newPath string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	if oldPath == newPath {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Only spaces the source has are displaced at the destination.
	_, err = tx.ExecContext(ctx, `
		DELETE FROM vectors WHERE path = ? AND space IN (SELECT space FROM vectors WHERE path = ?)`,
		newPath, oldPath)
	if err != nil {
		return 0, fmt.Errorf("rename %s: clear destination: %w", oldPath, err)
	}
	res, err := tx.ExecContext(ctx, `UPDATE vectors SET path = ? WHERE path = ?`, newPath, oldPath)
	if err != nil {
		return 0, fmt.Errorf("rename %s -> %s: %w", oldPath, newPath, err)
	}
	n, _ := res.RowsAffected()
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit rename: %w", err)
	}
	return int(n), nil
}

func (s *SQLiteVectorStore) Paths(ctx context.Context, space string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	rows, err := s.db.QueryContext(ctx, `SELECT path FROM vectors WHERE space = ? ORDER BY path`, space)
	if err != nil {
		return nil, fmt.Errorf("list vector paths: %w", err)
	}
	return scanPaths(rows)
}

func (s *SQLiteVectorStore) Spaces(ctx context.Context) ([]SpaceInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT s.space, s.dim, COUNT(v.id)
		FROM spaces s LEFT JOIN vectors v ON v.space = s.space
		GROUP BY s.space, s.dim ORDER BY s.space`)
	if err != nil {
		return nil, fmt.Errorf("list spaces: %w", err)
	}
	defer rows.Close()

	var out []SpaceInfo
	for rows.Next() {
		var si SpaceInfo
		if err := rows.Scan(&si.Space, &si.Dim, &si.Count); err != nil {
			return nil, err
		}
		out = append(out, si)
	}
	return out, rows.Err()
}

// Close is idempotent.
func (s *SQLiteVectorStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return closeDB(s.db)
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(blob []byte, dim int) ([]float32, error) {
	if len(blob) != 4*dim {
		return nil, fmt.Errorf("vector blob has %d bytes, want %d", len(blob), 4*dim)
	}
	vec := make([]float32, dim)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[4*i:]))
	}
	return vec, nil
}
