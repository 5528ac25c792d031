package search

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/studybible/versesim/internal/index"
)

// DefaultK is the number of neighbors returned when the caller does
// not ask for a specific count.
const DefaultK = 50

// Match is one similar verse in display form.
type Match struct {
	Reference string `json:"reference"`
	Text      string `json:"text"`
}

// Service answers similarity queries against a loaded read-only index.
// It holds no per-request state; concurrent calls are independent.
type Service struct {
	store *index.Store
	rows  map[string]int
}

// NewService builds the reference-to-row lookup over the store's
// metadata.
func NewService(store *index.Store) *Service {
	rows := make(map[string]int, len(store.Meta))
	for i, unit := range store.Meta {
		key := refKey(unit.Book, unit.Chapter, unit.Verse)
		if _, dup := rows[key]; dup {
			continue
		}
		rows[key] = i
	}
	return &Service{store: store, rows: rows}
}

func refKey(book string, chapter, verse int) string {
	return fmt.Sprintf("%s|%d|%d", strings.ToLower(book), chapter, verse)
}

// FindSimilar returns up to k verses most similar to the referenced
// one, never including the queried verse itself. A reference absent
// from the corpus is a valid query with an empty result, not an error.
// k <= 0 means DefaultK.
func (s *Service) FindSimilar(book string, chapter, verse, k int) ([]Match, error) {
	if k <= 0 {
		k = DefaultK
	}

	row, ok := s.rows[refKey(book, chapter, verse)]
	if !ok {
		return []Match{}, nil
	}

	// The stored vector is already normalized; searching with it makes
	// the verse its own best hit, hence k+1 and self-exclusion below.
	query, err := s.store.Index.Reconstruct(row)
	if err != nil {
		if errors.Is(err, index.ErrRowNotFound) {
			return []Match{}, nil
		}
		return nil, err
	}

	results, err := s.store.Index.Search(query, k+1)
	if err != nil {
		return nil, err
	}

	matches := make([]Match, 0, k)
	for _, r := range results {
		if r.Row == row {
			continue
		}
		if len(matches) == k {
			break
		}
		unit := s.store.Meta[r.Row]
		matches = append(matches, Match{Reference: unit.Reference(), Text: unit.Text})
	}

	log.Debug().
		Str("reference", s.store.Meta[row].Reference()).
		Int("k", k).
		Int("matches", len(matches)).
		Msg("Similarity query served")
	return matches, nil
}

// Status describes the loaded index.
type Status struct {
	Vectors     int   `json:"vectors"`
	Dimension   int   `json:"dimension"`
	MemoryBytes int64 `json:"memoryBytes"`
}

// GetStatus reports index size for the status endpoint.
func (s *Service) GetStatus() Status {
	idx := s.store.Index
	return Status{
		Vectors:     idx.Len(),
		Dimension:   idx.Dimension(),
		MemoryBytes: int64(idx.Len()) * int64(idx.Dimension()) * 4,
	}
}
