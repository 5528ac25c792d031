package index

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testVectors() [][]float32 {
	return [][]float32{
		{1, 0, 0, 0},
		{0.9, 0.1, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 5, 0},
	}
}

func TestBuildNormalizes(t *testing.T) {
	idx, err := Build(testVectors())
	require.NoError(t, err)
	require.Equal(t, 4, idx.Len())
	require.Equal(t, 4, idx.Dimension())

	for row := 0; row < idx.Len(); row++ {
		vec, err := idx.Reconstruct(row)
		require.NoError(t, err)
		var norm float64
		for _, v := range vec {
			norm += float64(v) * float64(v)
		}
		assert.InDelta(t, 1.0, norm, 1e-5, "row %d not unit length", row)
	}
}

func TestBuildRejectsMixedDimensions(t *testing.T) {
	_, err := Build([][]float32{{1, 0}, {1, 0, 0}})
	assert.Error(t, err)
}

func TestBuildRejectsEmpty(t *testing.T) {
	_, err := Build(nil)
	assert.Error(t, err)
}

func TestSearchSelfSimilarity(t *testing.T) {
	idx, err := Build(testVectors())
	require.NoError(t, err)

	for row := 0; row < idx.Len(); row++ {
		query, err := idx.Reconstruct(row)
		require.NoError(t, err)

		results, err := idx.Search(query, 1)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, row, results[0].Row)
		assert.InDelta(t, 1.0, float64(results[0].Score), 1e-5)
	}
}

func TestSearchOrdering(t *testing.T) {
	idx, err := Build(testVectors())
	require.NoError(t, err)

	query, err := idx.Reconstruct(0)
	require.NoError(t, err)
	results, err := idx.Search(query, 4)
	require.NoError(t, err)
	require.Len(t, results, 4)

	// Descending score; row 1 is the closest neighbor of row 0.
	assert.Equal(t, 0, results[0].Row)
	assert.Equal(t, 1, results[1].Row)
	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i].Score, results[i-1].Score)
	}
}

func TestSearchDeterministicTieBreak(t *testing.T) {
	// Rows 1 and 2 are identical, so their scores are bitwise equal
	// for any query; ascending row id must decide their order.
	idx, err := Build([][]float32{
		{1, 0},
		{0, 1},
		{0, 1},
	})
	require.NoError(t, err)

	query := []float32{0, 1}
	first, err := idx.Search(query, 3)
	require.NoError(t, err)
	second, err := idx.Search(query, 3)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, first[0].Row)
	assert.Equal(t, 2, first[1].Row)
	assert.Equal(t, 0, first[2].Row)
}

func TestSearchKLargerThanIndex(t *testing.T) {
	idx, err := Build(testVectors())
	require.NoError(t, err)

	results, err := idx.Search([]float32{1, 0, 0, 0}, 100)
	require.NoError(t, err)
	assert.Len(t, results, 4)
}

func TestSearchNonPositiveK(t *testing.T) {
	idx, err := Build(testVectors())
	require.NoError(t, err)

	results, err := idx.Search([]float32{1, 0, 0, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchDimensionMismatch(t *testing.T) {
	idx, err := Build(testVectors())
	require.NoError(t, err)

	_, err = idx.Search([]float32{1, 0}, 1)
	assert.Error(t, err)
}

func TestReconstructRowNotFound(t *testing.T) {
	idx, err := Build(testVectors())
	require.NoError(t, err)

	_, err = idx.Reconstruct(-1)
	assert.ErrorIs(t, err, ErrRowNotFound)
	_, err = idx.Reconstruct(4)
	assert.ErrorIs(t, err, ErrRowNotFound)
}

func TestReconstructReturnsCopy(t *testing.T) {
	idx, err := Build(testVectors())
	require.NoError(t, err)

	vec, err := idx.Reconstruct(0)
	require.NoError(t, err)
	vec[0] = float32(math.NaN())

	again, err := idx.Reconstruct(0)
	require.NoError(t, err)
	assert.False(t, math.IsNaN(float64(again[0])))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	idx, err := Build(testVectors())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "verses.index")
	require.NoError(t, idx.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, idx.Len(), loaded.Len())
	require.Equal(t, idx.Dimension(), loaded.Dimension())

	for row := 0; row < idx.Len(); row++ {
		want, err := idx.Reconstruct(row)
		require.NoError(t, err)
		got, err := loaded.Reconstruct(row)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}
