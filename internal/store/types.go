// Package store persists the index: a metadata store of FileRecords and a
// vector store of VectorRecords, both SQLite tables keyed by path.
//
// The two stores are independent. Callers update them one after the other
// and accept that a path may briefly have metadata without a vector.
package store

import (
	"context"
	"errors"
	"fmt"
)

// FileRecord is one indexed file. Path is unique.
type FileRecord struct {
	ID          int64
	Path        string
	Category    string
	Description string
	Size        int64
	// Unix seconds from stat.
	CreatedAt  int64
	UpdatedAt  int64
	AccessedAt int64
	// IndexedAt is set by the store on every upsert.
	IndexedAt int64
}

// VectorRecord is one embedding. (Path, Space) is unique and Dim must match
// both len(Vec) and the dimension registered for Space.
type VectorRecord struct {
	ID    int64
	Path  string
	Space string
	Dim   int
	Vec   []float32
}

// SpaceInfo summarises one embedding space.
type SpaceInfo struct {
	Space string
	Dim   int
	Count int
}

// MetadataStore persists FileRecords.
type MetadataStore interface {
	Upsert(ctx context.Context, rec *FileRecord) error
	// Get returns nil, nil when path has no record.
	Get(ctx context.Context, path string) (*FileRecord, error)
	// Delete reports whether a record existed.
	Delete(ctx context.Context, path string) (bool, error)
	// Rename rewrites the path in place, replacing any record already at
	// newPath. It reports false and changes nothing when oldPath is absent.
	Rename(ctx context.Context, oldPath, newPath string) (bool, error)
	// PathsUnder lists recorded paths equal to or below root.
	PathsUnder(ctx context.Context, root string) ([]string, error)
	// Paths lists every recorded path.
	Paths(ctx context.Context) ([]string, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

// VectorStore persists VectorRecords.
type VectorStore interface {
	Upsert(ctx context.Context, rec *VectorRecord) error
	// Get returns nil, nil when (path, space) has no record.
	Get(ctx context.Context, path, space string) (*VectorRecord, error)
	Delete(ctx context.Context, path, space string) (bool, error)
	// Rename moves every space's vector from oldPath to newPath and returns
	// the number of rows moved.
	Rename(ctx context.Context, oldPath, newPath string) (int, error)
	// Paths lists the paths that have a vector in space.
	Paths(ctx context.Context, space string) ([]string, error)
	Spaces(ctx context.Context) ([]SpaceInfo, error)
	Close() error
}

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store is closed")

// ErrDimensionMismatch rejects a vector whose length disagrees with its space.
type ErrDimensionMismatch struct {
	Space    string
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch in space %q: expected %d, got %d (remove vectors.db to re-embed with a new model)",
		e.Space, e.Expected, e.Got)
}
