package vectorindex

import (
	"context"
	"strings"
	"testing"

	"github.com/philippgille/chromem-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubEmbedding maps texts onto fixed unit vectors by topic keyword so
// similarity is deterministic without a model.
func stubEmbedding(ctx context.Context, text string) ([]float32, error) {
	switch {
	case strings.Contains(text, "npm"):
		return []float32{1, 0, 0}, nil
	case strings.Contains(text, "deploy"):
		return []float32{0, 1, 0}, nil
	default:
		return []float32{0, 0, 1}, nil
	}
}

func newTestIndex(t *testing.T) *ChromemIndex {
	t.Helper()
	idx, err := New(Options{
		Collection:    "test",
		EmbeddingFunc: chromem.EmbeddingFunc(stubEmbedding),
	})
	require.NoError(t, err)
	return idx
}

func TestChromemIndex_AddAndQuery(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, "mem_1", "npm cache corruption", map[string]string{"kind": "semantic"}))
	require.NoError(t, idx.Add(ctx, "mem_2", "deploy token rotation", nil))

	results, err := idx.Query(ctx, "npm prefix problems", 2)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "mem_1", results[0].ID)
	assert.Greater(t, results[0].Similarity, float32(0.9))
}

func TestChromemIndex_QueryClampsK(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, "mem_1", "npm cache corruption", nil))

	// Asking for more results than documents must not error.
	results, err := idx.Query(ctx, "npm", 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestChromemIndex_EmptyCollection(t *testing.T) {
	idx := newTestIndex(t)
	results, err := idx.Query(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}
