package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studybible/versesim/internal/corpus"
	"github.com/studybible/versesim/internal/index"
)

func newTestService(t *testing.T, meta []corpus.VerseUnit, vectors [][]float32) *Service {
	t.Helper()
	idx, err := index.Build(vectors)
	require.NoError(t, err)
	return NewService(&index.Store{Index: idx, Meta: meta})
}

func genesisService(t *testing.T) *Service {
	meta := []corpus.VerseUnit{
		{Book: "Genesis", Chapter: 1, Verse: 1, Text: "In the beginning God created the heavens and the earth"},
		{Book: "Genesis", Chapter: 1, Verse: 2, Text: "The earth was formless and void"},
		{Book: "Genesis", Chapter: 1, Verse: 3, Text: "Then God said, Let there be light"},
		{Book: "John", Chapter: 1, Verse: 1, Text: "In the beginning was the Word"},
	}
	vectors := [][]float32{
		{1, 0, 0},
		{0.8, 0.2, 0},
		{0, 0, 1},
		{0.9, 0.1, 0},
	}
	return newTestService(t, meta, vectors)
}

func TestFindSimilarExcludesSelf(t *testing.T) {
	svc := genesisService(t)

	matches, err := svc.FindSimilar("Genesis", 1, 1, 3)
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	for _, m := range matches {
		assert.NotEqual(t, "Genesis 1:1", m.Reference)
	}
}

func TestFindSimilarOrdering(t *testing.T) {
	svc := genesisService(t)

	matches, err := svc.FindSimilar("Genesis", 1, 1, 3)
	require.NoError(t, err)
	require.Len(t, matches, 3)

	// John 1:1 is the nearest neighbor of Genesis 1:1 in this corpus.
	assert.Equal(t, "John 1:1", matches[0].Reference)
	assert.Equal(t, "In the beginning was the Word", matches[0].Text)
	assert.Equal(t, "Genesis 1:2", matches[1].Reference)
	assert.Equal(t, "Genesis 1:3", matches[2].Reference)
}

func TestFindSimilarRespectsK(t *testing.T) {
	svc := genesisService(t)

	matches, err := svc.FindSimilar("Genesis", 1, 1, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "John 1:1", matches[0].Reference)
}

func TestFindSimilarDefaultK(t *testing.T) {
	svc := genesisService(t)

	matches, err := svc.FindSimilar("Genesis", 1, 1, 0)
	require.NoError(t, err)
	// DefaultK exceeds the corpus; everything but the query comes back.
	assert.Len(t, matches, 3)
}

func TestFindSimilarUnknownReference(t *testing.T) {
	svc := genesisService(t)

	matches, err := svc.FindSimilar("Genesis", 99, 1, 5)
	require.NoError(t, err)
	assert.NotNil(t, matches)
	assert.Empty(t, matches)

	matches, err = svc.FindSimilar("Nonexistent", 1, 1, 5)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestFindSimilarBookCaseInsensitive(t *testing.T) {
	svc := genesisService(t)

	matches, err := svc.FindSimilar("genesis", 1, 1, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
}

func TestFindSimilarSingleVerseCorpus(t *testing.T) {
	meta := []corpus.VerseUnit{
		{Book: "Genesis", Chapter: 1, Verse: 1, Text: "In the beginning God created the heavens and the earth"},
	}
	svc := newTestService(t, meta, [][]float32{{1, 0, 0}})

	// The only stored vector is the query itself; self-exclusion
	// leaves nothing.
	matches, err := svc.FindSimilar("Genesis", 1, 1, 1)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestFindSimilarDeterministic(t *testing.T) {
	svc := genesisService(t)

	first, err := svc.FindSimilar("Genesis", 1, 1, 3)
	require.NoError(t, err)
	second, err := svc.FindSimilar("Genesis", 1, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestGetStatus(t *testing.T) {
	svc := genesisService(t)

	status := svc.GetStatus()
	assert.Equal(t, 4, status.Vectors)
	assert.Equal(t, 3, status.Dimension)
	assert.Equal(t, int64(4*3*4), status.MemoryBytes)
}
