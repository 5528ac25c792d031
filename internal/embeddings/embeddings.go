package embeddings

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/rs/zerolog/log"
)

var (
	// ErrEncoderUnavailable means the external encoder could not be
	// loaded; nothing downstream can proceed without it.
	ErrEncoderUnavailable = errors.New("encoder unavailable")

	// ErrEmbeddingFailed is a per-text failure; the caller decides
	// whether to skip the unit or abort the batch.
	ErrEmbeddingFailed = errors.New("embedding failed")
)

// Encoder maps text to a fixed-length vector. Implementations own any
// backing model for their lifetime and release it on Close.
type Encoder interface {
	// Embed returns the vector for one text. Empty input is passed to
	// the encoder as-is; its representation of empty text is whatever
	// the model produces, not reinterpreted here.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedAll embeds texts preserving input order one-to-one.
	EmbedAll(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension is the fixed output vector length.
	Dimension() int

	Close() error
}

// BatchOptions controls a batch embedding pass.
type BatchOptions struct {
	// Workers bounds parallelism; <= 0 means GOMAXPROCS.
	Workers int

	// SkipFailures drops failed texts instead of aborting. Skipped
	// input positions are reported so the caller can drop the matching
	// metadata rows and keep the matrix row-aligned.
	SkipFailures bool
}

// EmbedBatch embeds texts in parallel. Result position i always holds
// the vector for texts[i] regardless of completion order. With
// SkipFailures set, failed positions are removed from the returned
// matrix and listed (ascending) in skipped; otherwise the first failure
// aborts the batch.
func EmbedBatch(ctx context.Context, enc Encoder, texts []string, opts BatchOptions) (vectors [][]float32, skipped []int, err error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(texts) {
		workers = len(texts)
	}

	results := make([][]float32, len(texts))
	failures := make([]error, len(texts))

	jobs := make(chan int)
	batchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				vec, embedErr := enc.Embed(batchCtx, texts[i])
				if embedErr != nil {
					failures[i] = embedErr
					if !opts.SkipFailures {
						cancel()
					}
					continue
				}
				results[i] = vec
			}
		}()
	}

feed:
	for i := range texts {
		select {
		case jobs <- i:
		case <-batchCtx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if !opts.SkipFailures {
		// Prefer the real failure over cancellations it caused in
		// other workers.
		var firstErr error
		firstIdx := -1
		for i, failure := range failures {
			if failure == nil {
				continue
			}
			if firstErr == nil || (errors.Is(firstErr, context.Canceled) && !errors.Is(failure, context.Canceled)) {
				firstErr = failure
				firstIdx = i
			}
		}
		if firstErr != nil {
			return nil, nil, fmt.Errorf("text %d: %w", firstIdx, firstErr)
		}
	}
	for i, failure := range failures {
		if failure == nil {
			continue
		}
		log.Warn().Int("position", i).Err(failure).Msg("Skipping unit after embedding failure")
		skipped = append(skipped, i)
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	vectors = make([][]float32, 0, len(texts)-len(skipped))
	for i, vec := range results {
		if failures[i] != nil {
			continue
		}
		vectors = append(vectors, vec)
	}
	return vectors, skipped, nil
}
