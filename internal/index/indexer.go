// Package index keeps the metadata and vector stores in step with the files
// on disk, one path at a time.
//
// The two stores are written one after the other without a shared
// transaction. A failure between the writes leaves a path with metadata but
// no vector; the next event for that path, or a consistency repair, fixes it.
package index

import (
	"context"
	"os"

	"github.com/Aman-CERP/fileindex/internal/embed"
	fierrors "github.com/Aman-CERP/fileindex/internal/errors"
	"github.com/Aman-CERP/fileindex/internal/extract"
	"github.com/Aman-CERP/fileindex/internal/store"
)

// Outcome reports what an operation did.
type Outcome int

const (
	// OutcomeSkipped means nothing was written: unsupported type, or a
	// move whose source was never indexed.
	OutcomeSkipped Outcome = iota
	OutcomeIndexed
	OutcomeRemoved
	OutcomeMoved
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIndexed:
		return "INDEXED"
	case OutcomeRemoved:
		return "REMOVED"
	case OutcomeMoved:
		return "MOVED"
	default:
		return "SKIPPED"
	}
}

// Extractor describes a file. A nil result with a nil error means the file
// type is unsupported.
type Extractor interface {
	Extract(ctx context.Context, path string) (*extract.Result, error)
}

// Indexer applies add, remove and move to both stores. It owns neither
// store; callers open and close them.
type Indexer struct {
	meta     store.MetadataStore
	vectors  store.VectorStore
	extract  Extractor
	embedder embed.Embedder
}

// New creates an Indexer.
func New(meta store.MetadataStore, vectors store.VectorStore, ex Extractor, embedder embed.Embedder) *Indexer {
	return &Indexer{meta: meta, vectors: vectors, extract: ex, embedder: embedder}
}

// Space is the embedding space this indexer writes vectors to.
func (ix *Indexer) Space() string {
	return ix.embedder.Space()
}

// IndexPath extracts, describes and embeds path, then upserts both records.
// A missing path is a not-found error; a non-regular one an extraction error.
func (ix *Indexer) IndexPath(ctx context.Context, path string) (Outcome, error) {
	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return OutcomeSkipped, fierrors.NotFound(path, err)
		}
		return OutcomeSkipped, fierrors.ExtractionError(path, err)
	}
	if !info.Mode().IsRegular() {
		return OutcomeSkipped, fierrors.NotRegular(path)
	}

	res, err := ix.extract.Extract(ctx, path)
	if err != nil {
		return OutcomeSkipped, err
	}
	if res == nil {
		return OutcomeSkipped, nil
	}

	rec := &store.FileRecord{
		Path:        path,
		Category:    string(res.Category),
		Description: res.Description,
		Size:        res.Size,
		CreatedAt:   res.CreatedAt,
		UpdatedAt:   res.UpdatedAt,
		AccessedAt:  res.AccessedAt,
	}
	if err := ix.meta.Upsert(ctx, rec); err != nil {
		return OutcomeSkipped, fierrors.StoreError("metadata", "upsert", err).WithDetail("path", path)
	}

	vec, err := ix.embedder.Embed(ctx, res.Description)
	if err != nil {
		if fierrors.GetCode(err) == "" {
			err = fierrors.New(fierrors.ErrCodeEmbeddingFailed, "embedding failed: "+path, err)
		}
		return OutcomeSkipped, err
	}

	vrec := &store.VectorRecord{
		Path:  path,
		Space: ix.embedder.Space(),
		Dim:   ix.embedder.Dimensions(),
		Vec:   vec,
	}
	if err := ix.vectors.Upsert(ctx, vrec); err != nil {
		return OutcomeSkipped, fierrors.StoreError("vector", "upsert", err).WithDetail("path", path)
	}
	return OutcomeIndexed, nil
}

// RemovePath deletes the vector, then the metadata. Both deletes are no-ops
// when nothing is recorded, so removing an unknown path reports
// OutcomeSkipped without error.
func (ix *Indexer) RemovePath(ctx context.Context, path string) (Outcome, error) {
	hadVec, err := ix.vectors.Delete(ctx, path, ix.embedder.Space())
	if err != nil {
		return OutcomeSkipped, fierrors.StoreError("vector", "delete", err).WithDetail("path", path)
	}
	hadMeta, err := ix.meta.Delete(ctx, path)
	if err != nil {
		return OutcomeSkipped, fierrors.StoreError("metadata", "delete", err).WithDetail("path", path)
	}
	if hadVec || hadMeta {
		return OutcomeRemoved, nil
	}
	return OutcomeSkipped, nil
}

// MovePath rewrites oldPath to newPath in place in both stores, then checks
// the result against the file now at newPath. When nothing was recorded for
// oldPath, or the moved record's size or modification time disagrees with
// disk, newPath is indexed from scratch. A newPath that is already gone is
// left to its delete event.
func (ix *Indexer) MovePath(ctx context.Context, oldPath, newPath string) (Outcome, error) {
	out, hasVector, err := ix.rename(ctx, oldPath, newPath)
	if err != nil {
		return out, err
	}

	info, err := os.Lstat(newPath)
	if err != nil {
		return out, nil
	}
	if !info.Mode().IsRegular() {
		if out == OutcomeMoved {
			return ix.RemovePath(ctx, newPath)
		}
		return out, nil
	}
	rec, err := ix.meta.Get(ctx, newPath)
	if err != nil {
		return out, fierrors.StoreError("metadata", "get", err).WithDetail("path", newPath)
	}
	if rec != nil && hasVector && rec.Size == info.Size() && rec.UpdatedAt == info.ModTime().Unix() {
		return out, nil
	}
	return ix.IndexPath(ctx, newPath)
}

// rename rewrites both stores and reports whether newPath now has a vector
// in the active space.
func (ix *Indexer) rename(ctx context.Context, oldPath, newPath string) (Outcome, bool, error) {
	moved, err := ix.meta.Rename(ctx, oldPath, newPath)
	if err != nil {
		return OutcomeSkipped, false, fierrors.StoreError("metadata", "rename", err).
			WithDetail("src", oldPath).WithDetail("dst", newPath)
	}
	n, err := ix.vectors.Rename(ctx, oldPath, newPath)
	if err != nil {
		return OutcomeSkipped, false, fierrors.StoreError("vector", "rename", err).
			WithDetail("src", oldPath).WithDetail("dst", newPath)
	}
	vec, err := ix.vectors.Get(ctx, newPath, ix.embedder.Space())
	if err != nil {
		return OutcomeSkipped, false, fierrors.StoreError("vector", "get", err).WithDetail("path", newPath)
	}
	if moved || n > 0 {
		return OutcomeMoved, vec != nil, nil
	}
	return OutcomeSkipped, vec != nil, nil
}
