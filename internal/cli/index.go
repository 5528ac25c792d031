package cli

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/studybible/versesim/internal/index"
)

var (
	indexVectors  string
	indexMetadata string
	indexOut      string
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build the searchable vector index",
	Long: `Normalizes the embedding matrix row by row and persists it as a
flat inner-product index. The matrix and metadata must be row-aligned;
a length mismatch fails the build.`,
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().StringVar(&indexVectors, "vectors", "bible_verse_embeddings.f32", "Path to the embedding matrix")
	indexCmd.Flags().StringVar(&indexMetadata, "metadata", "bible_verse_metadata.json", "Path to the metadata document")
	indexCmd.Flags().StringVar(&indexOut, "out", "bible_verses.index", "Output path for the built index")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	vectors, err := index.ReadVectors(indexVectors)
	if err != nil {
		return err
	}
	meta, err := index.LoadMetadata(indexMetadata)
	if err != nil {
		return err
	}
	if len(vectors) != len(meta) {
		return fmt.Errorf("%w: %d vectors but %d metadata rows", index.ErrIndexCorrupt, len(vectors), len(meta))
	}

	idx, err := index.Build(vectors)
	if err != nil {
		return fmt.Errorf("building index: %w", err)
	}
	if err := idx.Save(indexOut); err != nil {
		return err
	}

	log.Info().
		Int("vectors", idx.Len()).
		Int("dimension", idx.Dimension()).
		Str("out", indexOut).
		Msg("Index built")
	return nil
}
