package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/studybible/versesim/internal/corpus"
	"github.com/studybible/versesim/internal/embeddings"
	"github.com/studybible/versesim/internal/index"
)

var (
	embedCorpus       string
	embedVectors      string
	embedMetadata     string
	embedWorkers      int
	embedSkipFailures bool
)

var embedCmd = &cobra.Command{
	Use:   "embed",
	Short: "Generate verse embeddings with the encoder",
	Long: `Loads the encoder and embeds every verse of the normalized corpus
as "{book} {chapter}:{verse} {text}". Writes the raw embedding matrix
and the row-aligned metadata document. By default any embedding failure
aborts the batch; --skip-failures drops the failed verse from both
artifacts instead, keeping them aligned.`,
	RunE: runEmbed,
}

func init() {
	embedCmd.Flags().StringVar(&embedCorpus, "corpus", "corpus.json", "Path to the normalized corpus document")
	embedCmd.Flags().StringVar(&embedVectors, "vectors", "bible_verse_embeddings.f32", "Output path for the embedding matrix")
	embedCmd.Flags().StringVar(&embedMetadata, "metadata", "bible_verse_metadata.json", "Output path for the metadata document")
	embedCmd.Flags().IntVar(&embedWorkers, "workers", 0, "Embedding workers (0 = number of CPUs)")
	embedCmd.Flags().BoolVar(&embedSkipFailures, "skip-failures", false, "Skip verses that fail to embed instead of aborting")
	rootCmd.AddCommand(embedCmd)
}

func runEmbed(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(embedCorpus)
	if err != nil {
		return fmt.Errorf("reading corpus document: %w", err)
	}
	var doc corpus.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decoding corpus document: %w", err)
	}
	if len(doc.BibleVerses) == 0 {
		return fmt.Errorf("corpus document has no verses")
	}

	loadCtx, cancel := context.WithTimeout(context.Background(), cfg.EncoderTimeout)
	defer cancel()
	enc, err := embeddings.NewONNXEncoder(loadCtx, embeddings.ONNXConfig{
		ModelPath:     cfg.ModelPath,
		TokenizerPath: cfg.TokenizerPath,
		Threads:       cfg.EncoderThreads,
	})
	if err != nil {
		return err
	}
	defer enc.Close()

	texts := make([]string, len(doc.BibleVerses))
	for i, unit := range doc.BibleVerses {
		texts[i] = unit.Reference() + " " + unit.Text
	}

	log.Info().Int("verses", len(texts)).Msg("Embedding corpus")
	vectors, skipped, err := embeddings.EmbedBatch(context.Background(), enc, texts, embeddings.BatchOptions{
		Workers:      embedWorkers,
		SkipFailures: embedSkipFailures,
	})
	if err != nil {
		return fmt.Errorf("embedding corpus: %w", err)
	}

	meta := dropRows(doc.BibleVerses, skipped)
	if len(vectors) != len(meta) {
		return fmt.Errorf("embedding pass produced %d vectors for %d metadata rows", len(vectors), len(meta))
	}

	if err := index.WriteVectors(embedVectors, vectors); err != nil {
		return err
	}
	if err := index.SaveMetadata(embedMetadata, meta); err != nil {
		return err
	}

	log.Info().
		Int("embedded", len(vectors)).
		Int("skipped", len(skipped)).
		Int("dimension", enc.Dimension()).
		Str("vectors", embedVectors).
		Str("metadata", embedMetadata).
		Msg("Embeddings generated")
	return nil
}

// dropRows removes the listed positions, preserving order. Positions
// are ascending, as EmbedBatch reports them.
func dropRows(units []corpus.VerseUnit, skipped []int) []corpus.VerseUnit {
	if len(skipped) == 0 {
		return units
	}
	out := make([]corpus.VerseUnit, 0, len(units)-len(skipped))
	next := 0
	for i, unit := range units {
		if next < len(skipped) && skipped[next] == i {
			next++
			continue
		}
		out = append(out, unit)
	}
	return out
}
