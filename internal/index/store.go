package index

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/studybible/versesim/internal/corpus"
)

// Store couples a loaded index with its row-aligned verse metadata.
// Metadata row i describes the vector at row id i; that alignment is
// the only way to dereference a search hit.
type Store struct {
	Index *Flat
	Meta  []corpus.VerseUnit
}

// SaveMetadata writes the row-aligned metadata document.
func SaveMetadata(path string, meta []corpus.VerseUnit) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// LoadMetadata reads a metadata document written by SaveMetadata.
func LoadMetadata(path string) ([]corpus.VerseUnit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var meta []corpus.VerseUnit
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %v", ErrIndexCorrupt, path, err)
	}
	return meta, nil
}

// Open loads an index and its metadata and verifies row alignment.
// A length mismatch is ErrIndexCorrupt; misaligned data is never
// served.
func Open(indexPath, metaPath string) (*Store, error) {
	idx, err := Load(indexPath)
	if err != nil {
		return nil, err
	}
	meta, err := LoadMetadata(metaPath)
	if err != nil {
		return nil, err
	}
	if idx.Len() != len(meta) {
		return nil, fmt.Errorf("%w: %d vectors but %d metadata rows", ErrIndexCorrupt, idx.Len(), len(meta))
	}

	log.Info().
		Int("vectors", idx.Len()).
		Int("dimension", idx.Dimension()).
		Msg("Index loaded")
	return &Store{Index: idx, Meta: meta}, nil
}
