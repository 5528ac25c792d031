package index

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	// ErrRowNotFound means a row id is outside the index.
	ErrRowNotFound = errors.New("row not found")

	// ErrIndexCorrupt means persisted vectors and metadata disagree in
	// shape. Detected eagerly at load, never at search time.
	ErrIndexCorrupt = errors.New("index corrupt")
)

// Flat is an exact inner-product index over a fixed set of vectors.
// Rows are L2-normalized exactly once at build time, so inner product
// equals cosine similarity. A built index is immutable and safe for
// concurrent searches without locking.
type Flat struct {
	dim  int
	data []float32 // row-major, len = rows*dim
}

// Result is one search hit.
type Result struct {
	Row   int
	Score float32
}

// Build constructs an index from vectors. Row id = position in the
// input. All vectors must share one dimensionality.
func Build(vectors [][]float32) (*Flat, error) {
	if len(vectors) == 0 {
		return nil, errors.New("no vectors to index")
	}
	dim := len(vectors[0])
	if dim == 0 {
		return nil, errors.New("zero-dimensional vectors")
	}

	data := make([]float32, 0, len(vectors)*dim)
	for i, vec := range vectors {
		if len(vec) != dim {
			return nil, fmt.Errorf("vector %d has dimension %d, want %d", i, len(vec), dim)
		}
		data = append(data, normalize(vec)...)
	}
	return &Flat{dim: dim, data: data}, nil
}

// Len returns the number of stored vectors.
func (f *Flat) Len() int { return len(f.data) / f.dim }

// Dimension returns the fixed vector dimensionality.
func (f *Flat) Dimension() int { return f.dim }

// Search scans every stored vector and returns up to k rows ordered by
// descending inner product, ties broken by ascending row id. The query
// is assumed normalized already (Reconstruct returns normalized rows);
// it is never re-normalized here. k larger than the index returns
// everything.
func (f *Flat) Search(query []float32, k int) ([]Result, error) {
	if len(query) != f.dim {
		return nil, fmt.Errorf("query has dimension %d, want %d", len(query), f.dim)
	}
	if k <= 0 {
		return nil, nil
	}

	n := f.Len()
	results := make([]Result, n)
	for row := 0; row < n; row++ {
		stored := f.data[row*f.dim : (row+1)*f.dim]
		var dot float32
		for j, q := range query {
			dot += q * stored[j]
		}
		results[row] = Result{Row: row, Score: dot}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Row < results[j].Row
	})

	if k > n {
		k = n
	}
	return results[:k], nil
}

// Reconstruct returns a copy of the stored (normalized) vector for a
// row id.
func (f *Flat) Reconstruct(row int) ([]float32, error) {
	if row < 0 || row >= f.Len() {
		return nil, fmt.Errorf("%w: row %d of %d", ErrRowNotFound, row, f.Len())
	}
	vec := make([]float32, f.dim)
	copy(vec, f.data[row*f.dim:(row+1)*f.dim])
	return vec, nil
}

// Save persists the index to a single file.
func (f *Flat) Save(path string) error {
	return writeMatrix(path, f.dim, f.data)
}

// Load reads an index persisted by Save. Vectors were normalized at
// build time; normalization is not re-applied.
func Load(path string) (*Flat, error) {
	dim, data, err := readMatrix(path)
	if err != nil {
		return nil, err
	}
	return &Flat{dim: dim, data: data}, nil
}

// normalize returns vec scaled to unit length. The zero vector stays
// zero.
func normalize(vec []float32) []float32 {
	var sum float32
	for _, v := range vec {
		sum += v * v
	}
	out := make([]float32, len(vec))
	if sum == 0 {
		return out
	}
	norm := float32(math.Sqrt(float64(sum)))
	for i, v := range vec {
		out[i] = v / norm
	}
	return out
}
