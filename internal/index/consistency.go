package index

import (
	"context"
	"log/slog"
	"time"

	"github.com/Aman-CERP/fileindex/internal/store"
)

// InconsistencyType categorizes a cross-store mismatch.
type InconsistencyType int

const (
	// InconsistencyMissingVector is metadata without a vector in the
	// current space: the vector write failed after the metadata write.
	InconsistencyMissingVector InconsistencyType = iota
	// InconsistencyOrphanVector is a vector whose path has no metadata,
	// typically left by a move that failed halfway.
	InconsistencyOrphanVector
)

func (t InconsistencyType) String() string {
	switch t {
	case InconsistencyMissingVector:
		return "missing_vector"
	case InconsistencyOrphanVector:
		return "orphan_vector"
	default:
		return "unknown"
	}
}

// Inconsistency is one mismatched path.
type Inconsistency struct {
	Type InconsistencyType
	Path string
}

// CheckResult is the outcome of a consistency check.
type CheckResult struct {
	// Checked is the number of metadata records examined.
	Checked         int
	Inconsistencies []Inconsistency
	Duration        time.Duration
}

// Count returns the number of issues of type t.
func (r *CheckResult) Count(t InconsistencyType) int {
	n := 0
	for _, i := range r.Inconsistencies {
		if i.Type == t {
			n++
		}
	}
	return n
}

// ConsistencyChecker compares the path sets of the two stores for one
// embedding space.
type ConsistencyChecker struct {
	meta    store.MetadataStore
	vectors store.VectorStore
	space   string
}

// NewConsistencyChecker creates a checker for space.
func NewConsistencyChecker(meta store.MetadataStore, vectors store.VectorStore, space string) *ConsistencyChecker {
	return &ConsistencyChecker{meta: meta, vectors: vectors, space: space}
}

// Check lists every path present in one store but not the other.
func (c *ConsistencyChecker) Check(ctx context.Context) (*CheckResult, error) {
	start := time.Now()

	metaPaths, err := c.meta.Paths(ctx)
	if err != nil {
		return nil, err
	}
	vecPaths, err := c.vectors.Paths(ctx, c.space)
	if err != nil {
		return nil, err
	}

	inMeta := make(map[string]bool, len(metaPaths))
	for _, p := range metaPaths {
		inMeta[p] = true
	}
	inVec := make(map[string]bool, len(vecPaths))
	for _, p := range vecPaths {
		inVec[p] = true
	}

	var issues []Inconsistency
	for _, p := range metaPaths {
		if !inVec[p] {
			issues = append(issues, Inconsistency{Type: InconsistencyMissingVector, Path: p})
		}
	}
	for _, p := range vecPaths {
		if !inMeta[p] {
			issues = append(issues, Inconsistency{Type: InconsistencyOrphanVector, Path: p})
		}
	}

	return &CheckResult{
		Checked:         len(metaPaths),
		Inconsistencies: issues,
		Duration:        time.Since(start),
	}, nil
}

// Repair deletes orphan vectors and returns the paths that need
// re-indexing. Deletion is best-effort: failures are logged and skipped.
func (c *ConsistencyChecker) Repair(ctx context.Context, issues []Inconsistency) []string {
	var reindex []string
	deleted := 0
	for _, issue := range issues {
		switch issue.Type {
		case InconsistencyOrphanVector:
			if _, err := c.vectors.Delete(ctx, issue.Path, c.space); err != nil {
				slog.Warn("failed to delete orphan vector",
					slog.String("path", issue.Path),
					slog.String("error", err.Error()))
				continue
			}
			deleted++
		case InconsistencyMissingVector:
			reindex = append(reindex, issue.Path)
		}
	}
	if deleted > 0 {
		slog.Info("deleted orphan vectors", slog.Int("count", deleted))
	}
	return reindex
}
