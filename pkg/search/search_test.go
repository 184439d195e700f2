package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentmind/mindgraph/pkg/storage"
)

func node(id string, emb []float32, tags ...string) *storage.Node {
	return &storage.Node{
		ID:        storage.NodeID(id),
		Content:   "node " + id,
		Tags:      tags,
		Embedding: emb,
	}
}

func TestBruteForceRank(t *testing.T) {
	ctx := context.Background()
	ranker := NewBruteForce()

	t.Run("orders by descending similarity", func(t *testing.T) {
		candidates := []*storage.Node{
			node("far", []float32{0, 1}),
			node("near", []float32{1, 0.1}),
			node("exact", []float32{1, 0}),
		}
		matches, err := ranker.Rank(ctx, []float32{1, 0}, candidates, Options{MinCosine: -1})
		require.NoError(t, err)
		require.Len(t, matches, 3)
		assert.Equal(t, storage.NodeID("exact"), matches[0].Node.ID)
		assert.Equal(t, storage.NodeID("near"), matches[1].Node.ID)
		assert.Equal(t, storage.NodeID("far"), matches[2].Node.ID)
		assert.InDelta(t, 1.0, matches[0].Cosine, 1e-9)
	})

	t.Run("ties break by ascending node id", func(t *testing.T) {
		candidates := []*storage.Node{
			node("b", []float32{2, 0}),
			node("a", []float32{1, 0}), // same direction, same cosine
			node("c", []float32{3, 0}),
		}
		matches, err := ranker.Rank(ctx, []float32{1, 0}, candidates, Options{MinCosine: -1})
		require.NoError(t, err)
		require.Len(t, matches, 3)
		assert.Equal(t, storage.NodeID("a"), matches[0].Node.ID)
		assert.Equal(t, storage.NodeID("b"), matches[1].Node.ID)
		assert.Equal(t, storage.NodeID("c"), matches[2].Node.ID)
	})

	t.Run("top k clamps results", func(t *testing.T) {
		candidates := []*storage.Node{
			node("a", []float32{1, 0}),
			node("b", []float32{0.9, 0.1}),
			node("c", []float32{0, 1}),
		}
		matches, err := ranker.Rank(ctx, []float32{1, 0}, candidates, Options{TopK: 2, MinCosine: -1})
		require.NoError(t, err)
		assert.Len(t, matches, 2)

		// Larger than candidate count returns all.
		matches, err = ranker.Rank(ctx, []float32{1, 0}, candidates, Options{TopK: 50, MinCosine: -1})
		require.NoError(t, err)
		assert.Len(t, matches, 3)
	})

	t.Run("tag filter is match-any", func(t *testing.T) {
		candidates := []*storage.Node{
			node("a", []float32{1, 0}, "go", "db"),
			node("b", []float32{1, 0}, "rust"),
			node("c", []float32{1, 0}),
		}

		matches, err := ranker.Rank(ctx, []float32{1, 0}, candidates, Options{
			Tags:      []string{"go", "zig"},
			MinCosine: -1,
		})
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, storage.NodeID("a"), matches[0].Node.ID)

		// Empty filter matches all.
		matches, err = ranker.Rank(ctx, []float32{1, 0}, candidates, Options{MinCosine: -1})
		require.NoError(t, err)
		assert.Len(t, matches, 3)
	})

	t.Run("min cosine threshold", func(t *testing.T) {
		candidates := []*storage.Node{
			node("close", []float32{1, 0}),
			node("orthogonal", []float32{0, 1}),
			node("opposite", []float32{-1, 0}),
		}
		matches, err := ranker.Rank(ctx, []float32{1, 0}, candidates, Options{MinCosine: 0.5})
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, storage.NodeID("close"), matches[0].Node.ID)
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		candidates := []*storage.Node{node("a", []float32{1, 0, 0})}
		_, err := ranker.Rank(ctx, []float32{1, 0}, candidates, Options{MinCosine: -1})
		assert.ErrorIs(t, err, ErrDimensionMismatch)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := ranker.Rank(cancelled, []float32{1, 0}, []*storage.Node{node("a", []float32{1, 0})}, Options{MinCosine: -1})
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("no candidates", func(t *testing.T) {
		matches, err := ranker.Rank(ctx, []float32{1, 0}, nil, Options{MinCosine: -1})
		require.NoError(t, err)
		assert.Empty(t, matches)
	})
}

func TestScore(t *testing.T) {
	assert.InDelta(t, 1.0, Score(1), 1e-9)
	assert.InDelta(t, 0.5, Score(0), 1e-9)
	assert.InDelta(t, 0.0, Score(-1), 1e-9)
	assert.Equal(t, 1.0, Score(1.0000001), "drift above 1 clamps")
	assert.Equal(t, 0.0, Score(-1.0000001), "drift below -1 clamps")
}
