package vectorstore

import (
	"context"
	"strings"
	"testing"

	chromem "github.com/philippgille/chromem-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// hashEmbedding is a deterministic embedding function for tests: documents
// sharing words get closer vectors than unrelated ones.
func hashEmbedding(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, 32)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		var h uint32
		for _, r := range word {
			h = h*31 + uint32(r)
		}
		vec[h%32]++
	}
	// Normalize so chromem's cosine similarity behaves.
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm > 0 {
		inv := 1 / sqrt32(norm)
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec, nil
}

func sqrt32(x float32) float32 {
	// Newton iteration is plenty for test vectors.
	z := x
	for i := 0; i < 10; i++ {
		z -= (z*z - x) / (2 * z)
	}
	return z
}

func newTestStore(t *testing.T) *ChromemStore {
	t.Helper()
	store, err := NewChromemStore(ChromemConfig{}, chromem.EmbeddingFunc(hashEmbedding), zap.NewNop())
	require.NoError(t, err)
	return store
}

func TestNewChromemStore_RequiresEmbedding(t *testing.T) {
	_, err := NewChromemStore(ChromemConfig{}, nil, zap.NewNop())
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestChromemStore_AddAndSearch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ids, err := store.AddDocuments(ctx, []Document{
		{ID: "s1", Content: "hardwood flooring underlayment requirements", Metadata: map[string]string{"source": "09-64-00"}},
		{ID: "s2", Content: "concrete slab curing and finishing", Metadata: map[string]string{"source": "03-30-00"}},
		{ID: "s3", Content: "interior door hardware schedules", Metadata: map[string]string{"source": "08-71-00"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s2", "s3"}, ids)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	results, err := store.Search(ctx, "hardwood flooring underlayment", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "s1", results[0].ID)
	assert.Equal(t, "09-64-00", results[0].Metadata["source"])
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
}

func TestChromemStore_AddDocuments_Empty(t *testing.T) {
	store := newTestStore(t)
	_, err := store.AddDocuments(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyDocuments)
}

func TestChromemStore_AddDocuments_GeneratesIDs(t *testing.T) {
	store := newTestStore(t)

	ids, err := store.AddDocuments(context.Background(), []Document{
		{Content: "passage without an id"},
	})
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.NotEmpty(t, ids[0])
}

func TestChromemStore_Search_EmptyCollection(t *testing.T) {
	store := newTestStore(t)

	results, err := store.Search(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestChromemStore_Search_KExceedsCount(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.AddDocuments(ctx, []Document{
		{ID: "only", Content: "a single passage"},
	})
	require.NoError(t, err)

	results, err := store.Search(ctx, "single passage", 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestChromemStore_Search_InvalidArgs(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Search(context.Background(), "q", 0)
	assert.Error(t, err)

	_, err = store.Search(context.Background(), "", 5)
	assert.Error(t, err)
}
