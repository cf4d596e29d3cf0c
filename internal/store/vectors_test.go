package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVectorStore(t *testing.T, driver string) *SQLiteVectorStore {
	t.Helper()
	s, err := NewVectorStore(filepath.Join(t.TempDir(), "vectors.db"), Options{Driver: driver})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestVectorStore_UpsertAndGet(t *testing.T) {
	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			// Given: an empty store
			s := newTestVectorStore(t, driver)
			ctx := context.Background()

			// When: a vector is stored twice for the same path and space
			require.NoError(t, s.Upsert(ctx, &VectorRecord{Path: "/w/a.txt", Space: "static-v1", Dim: 3, Vec: []float32{1, 2, 3}}))
			require.NoError(t, s.Upsert(ctx, &VectorRecord{Path: "/w/a.txt", Space: "static-v1", Dim: 3, Vec: []float32{0.5, -1, 0.25}}))

			// Then: the latest vector round-trips exactly
			got, err := s.Get(ctx, "/w/a.txt", "static-v1")
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, []float32{0.5, -1, 0.25}, got.Vec)
			assert.Equal(t, 3, got.Dim)

			spaces, err := s.Spaces(ctx)
			require.NoError(t, err)
			assert.Equal(t, []SpaceInfo{{Space: "static-v1", Dim: 3, Count: 1}}, spaces)
		})
	}
}

func TestVectorStore_DimensionMismatch(t *testing.T) {
	// Given: a space registered with 3 dimensions
	s := newTestVectorStore(t, DriverModernc)
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, &VectorRecord{Path: "/a", Space: "sp", Dim: 3, Vec: []float32{1, 2, 3}}))

	// When: a 2-dimensional vector is stored in the same space
	err := s.Upsert(ctx, &VectorRecord{Path: "/b", Space: "sp", Dim: 2, Vec: []float32{1, 2}})

	// Then: it is rejected
	var mismatch ErrDimensionMismatch
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 3, mismatch.Expected)
	assert.Equal(t, 2, mismatch.Got)

	// And: a vector whose length disagrees with its own Dim is rejected too
	err = s.Upsert(ctx, &VectorRecord{Path: "/c", Space: "sp", Dim: 3, Vec: []float32{1}})
	require.ErrorAs(t, err, &mismatch)
}

func TestVectorStore_SeparateSpaces(t *testing.T) {
	// Given: one path embedded in two spaces of different size
	s := newTestVectorStore(t, DriverModernc)
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, &VectorRecord{Path: "/a", Space: "one", Dim: 2, Vec: []float32{1, 2}}))
	require.NoError(t, s.Upsert(ctx, &VectorRecord{Path: "/a", Space: "two", Dim: 4, Vec: []float32{1, 2, 3, 4}}))

	// When: one space is deleted
	ok, err := s.Delete(ctx, "/a", "one")
	require.NoError(t, err)

	// Then: the other is untouched
	assert.True(t, ok)
	got, err := s.Get(ctx, "/a", "two")
	require.NoError(t, err)
	require.NotNil(t, got)
	missing, err := s.Get(ctx, "/a", "one")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestVectorStore_Rename(t *testing.T) {
	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			// Given: a vector at a and a different vector already at b
			s := newTestVectorStore(t, driver)
			ctx := context.Background()
			require.NoError(t, s.Upsert(ctx, &VectorRecord{Path: "/w/a", Space: "sp", Dim: 2, Vec: []float32{1, 1}}))
			require.NoError(t, s.Upsert(ctx, &VectorRecord{Path: "/w/b", Space: "sp", Dim: 2, Vec: []float32{9, 9}}))

			// When: a is renamed onto b
			n, err := s.Rename(ctx, "/w/a", "/w/b")

			// Then: b holds a's vector and a is gone
			require.NoError(t, err)
			assert.Equal(t, 1, n)
			got, err := s.Get(ctx, "/w/b", "sp")
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, []float32{1, 1}, got.Vec)
			old, err := s.Get(ctx, "/w/a", "sp")
			require.NoError(t, err)
			assert.Nil(t, old)
		})
	}
}

func TestVectorStore_RenameMissingSource(t *testing.T) {
	s := newTestVectorStore(t, DriverModernc)
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, &VectorRecord{Path: "/w/b", Space: "sp", Dim: 1, Vec: []float32{7}}))

	n, err := s.Rename(ctx, "/w/a", "/w/b")

	require.NoError(t, err)
	assert.Zero(t, n)
	got, err := s.Get(ctx, "/w/b", "sp")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []float32{7}, got.Vec)
}

func TestVectorStore_Closed(t *testing.T) {
	s := newTestVectorStore(t, DriverModernc)
	require.NoError(t, s.Close())

	_, err := s.Spaces(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	assert.NoError(t, s.Close())
}

func TestDecodeVector_RejectsShortBlob(t *testing.T) {
	_, err := decodeVector([]byte{1, 2, 3}, 1)
	assert.Error(t, err)
}

func TestVectorStore_Paths(t *testing.T) {
	s := newTestVectorStore(t, DriverModernc)
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, &VectorRecord{Path: "/b", Space: "sp", Dim: 1, Vec: []float32{1}}))
	require.NoError(t, s.Upsert(ctx, &VectorRecord{Path: "/a", Space: "sp", Dim: 1, Vec: []float32{1}}))
	require.NoError(t, s.Upsert(ctx, &VectorRecord{Path: "/c", Space: "other", Dim: 1, Vec: []float32{1}}))

	paths, err := s.Paths(ctx, "sp")

	require.NoError(t, err)
	assert.Equal(t, []string{"/a", "/b"}, paths)
}
