package embedding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMockService_Deterministic(t *testing.T) {
	m := NewMockService(16)
	ctx := context.Background()

	v1, err := m.Embed(ctx, "the quick brown fox")
	require.NoError(t, err)
	v2, err := m.Embed(ctx, "the quick brown fox")
	require.NoError(t, err)
	require.Equal(t, v1, v2)
}

func TestMockService_DistinctTextsDiffer(t *testing.T) {
	m := NewMockService(16)
	ctx := context.Background()

	v1, err := m.Embed(ctx, "cats are great pets")
	require.NoError(t, err)
	v2, err := m.Embed(ctx, "quantum mechanics is strange")
	require.NoError(t, err)
	require.NotEqual(t, v1, v2)
}

func TestMockService_DimensionInvariant(t *testing.T) {
	m := NewMockService(12)
	ctx := context.Background()

	vecs, err := m.EmbedBatch(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	for _, v := range vecs {
		require.Len(t, v, 12)
	}
	require.Equal(t, 12, m.Dimension())
}

func TestMockService_BatchPreservesOrder(t *testing.T) {
	m := NewMockService(8)
	ctx := context.Background()

	texts := []string{"alpha", "beta", "gamma"}
	batch, err := m.EmbedBatch(ctx, texts)
	require.NoError(t, err)

	for i, text := range texts {
		single, err := m.Embed(ctx, text)
		require.NoError(t, err)
		require.Equal(t, single, batch[i])
	}
}
