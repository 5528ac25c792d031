package index

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studybible/versesim/internal/corpus"
)

func testMeta() []corpus.VerseUnit {
	return []corpus.VerseUnit{
		{Book: "Genesis", Chapter: 1, Verse: 1, Text: "In the beginning"},
		{Book: "Genesis", Chapter: 1, Verse: 2, Text: "The earth was formless"},
		{Book: "John", Chapter: 3, Verse: 16, Text: "For God so loved the world"},
	}
}

func writeTestStore(t *testing.T, meta []corpus.VerseUnit, vectors [][]float32) (indexPath, metaPath string) {
	t.Helper()
	dir := t.TempDir()
	indexPath = filepath.Join(dir, "verses.index")
	metaPath = filepath.Join(dir, "metadata.json")

	idx, err := Build(vectors)
	require.NoError(t, err)
	require.NoError(t, idx.Save(indexPath))
	require.NoError(t, SaveMetadata(metaPath, meta))
	return indexPath, metaPath
}

func TestMetadataRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata.json")
	meta := testMeta()

	require.NoError(t, SaveMetadata(path, meta))
	loaded, err := LoadMetadata(path)
	require.NoError(t, err)
	assert.Equal(t, meta, loaded)
}

func TestOpenAligned(t *testing.T) {
	vectors := [][]float32{{1, 0}, {0, 1}, {1, 1}}
	indexPath, metaPath := writeTestStore(t, testMeta(), vectors)

	store, err := Open(indexPath, metaPath)
	require.NoError(t, err)
	assert.Equal(t, 3, store.Index.Len())
	assert.Len(t, store.Meta, 3)
}

func TestOpenMisalignedIsCorrupt(t *testing.T) {
	// Two vectors against three metadata rows.
	vectors := [][]float32{{1, 0}, {0, 1}}
	indexPath, metaPath := writeTestStore(t, testMeta(), vectors)

	_, err := Open(indexPath, metaPath)
	assert.ErrorIs(t, err, ErrIndexCorrupt)
}

func TestLoadTruncatedIndexIsCorrupt(t *testing.T) {
	vectors := [][]float32{{1, 0}, {0, 1}, {1, 1}}
	indexPath, _ := writeTestStore(t, testMeta(), vectors)

	data, err := os.ReadFile(indexPath)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(indexPath, data[:len(data)-5], 0644))

	_, err = Load(indexPath)
	assert.ErrorIs(t, err, ErrIndexCorrupt)
}

func TestLoadWrongMagicIsCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bogus.index")
	require.NoError(t, os.WriteFile(path, []byte("not a vector matrix"), 0644))

	_, err := Load(path)
	assert.ErrorIs(t, err, ErrIndexCorrupt)
}

func TestLoadMalformedMetadataIsCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0644))

	_, err := LoadMetadata(path)
	assert.ErrorIs(t, err, ErrIndexCorrupt)
}

func TestVectorsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "embeddings.f32")
	vectors := [][]float32{{1, 2, 3}, {4, 5, 6}}

	require.NoError(t, WriteVectors(path, vectors))
	loaded, err := ReadVectors(path)
	require.NoError(t, err)
	assert.Equal(t, vectors, loaded)
}
