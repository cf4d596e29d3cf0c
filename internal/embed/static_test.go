package embed

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func cosine(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (norm(a) * norm(b))
}

func TestStaticEmbedder_Shape(t *testing.T) {
	// Given: a static embedder
	e := NewStaticEmbedder()
	defer e.Close()

	// When: a description is embedded
	vec, err := e.Embed(context.Background(), `The file "a.txt" has a size of 5 B. Context: hello.`)

	// Then: it has the declared dimension and unit length
	require.NoError(t, err)
	assert.Len(t, vec, e.Dimensions())
	assert.InDelta(t, 1.0, norm(vec), 1e-5)
	assert.Equal(t, StaticSpace, e.Space())
}

func TestStaticEmbedder_Deterministic(t *testing.T) {
	e := NewStaticEmbedder()
	a, err := e.Embed(context.Background(), "quarterly budget spreadsheet")
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), "quarterly budget spreadsheet")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestStaticEmbedder_SimilarTextIsCloser(t *testing.T) {
	// Given: two related texts and one unrelated text
	e := NewStaticEmbedder()
	ctx := context.Background()
	base, _ := e.Embed(ctx, "holiday photos from the beach in summer")
	near, _ := e.Embed(ctx, "summer beach holiday photos")
	far, _ := e.Embed(ctx, "tax invoice for accounting department")

	// Then: the related pair scores higher
	assert.Greater(t, cosine(base, near), cosine(base, far))
}

func TestStaticEmbedder_BlankAndClosed(t *testing.T) {
	e := NewStaticEmbedder()

	vec, err := e.Embed(context.Background(), "   ")
	require.NoError(t, err)
	assert.Len(t, vec, StaticDimensions)
	assert.Zero(t, norm(vec))

	require.NoError(t, e.Close())
	_, err = e.Embed(context.Background(), "x")
	assert.Error(t, err)
	assert.False(t, e.Available(context.Background()))
}

func TestStaticEmbedder_Batch(t *testing.T) {
	e := NewStaticEmbedder()
	out, err := e.EmbedBatch(context.Background(), []string{"one", "two", ""})
	require.NoError(t, err)
	require.Len(t, out, 3)
	single, _ := e.Embed(context.Background(), "two")
	assert.Equal(t, single, out[1])
}

func TestWords_SplitsCamelAndUnderscore(t *testing.T) {
	assert.Equal(t, []string{"quarterly", "report", "2024"}, words("quarterlyReport_2024"))
	assert.Equal(t, []string{"html", "parser"}, words("HTMLParser"))
}
