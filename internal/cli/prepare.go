package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/studybible/versesim/internal/corpus"
)

var (
	prepareBible    string
	prepareAnalysis string
	prepareOut      string
)

var prepareCmd = &cobra.Command{
	Use:   "prepare",
	Short: "Normalize the verse corpus and commentary",
	Long: `Parses delimited verse rows (book,chapter,verse,"text") and a
plain-text commentary file into the normalized corpus document.
Malformed rows are dropped and counted, not fatal.`,
	RunE: runPrepare,
}

func init() {
	prepareCmd.Flags().StringVar(&prepareBible, "bible", "", "Path to the verse CSV file")
	prepareCmd.Flags().StringVar(&prepareAnalysis, "analysis", "", "Path to the commentary text file")
	prepareCmd.Flags().StringVar(&prepareOut, "out", "corpus.json", "Output path for the normalized corpus document")
	prepareCmd.MarkFlagRequired("bible")
	prepareCmd.MarkFlagRequired("analysis")
	rootCmd.AddCommand(prepareCmd)
}

func runPrepare(cmd *cobra.Command, args []string) error {
	bibleFile, err := os.Open(prepareBible)
	if err != nil {
		return fmt.Errorf("opening verse file: %w", err)
	}
	defer bibleFile.Close()

	analysisFile, err := os.Open(prepareAnalysis)
	if err != nil {
		return fmt.Errorf("opening analysis file: %w", err)
	}
	defer analysisFile.Close()

	doc, stats, err := corpus.Normalize(bibleFile, analysisFile)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding corpus document: %w", err)
	}
	if err := os.WriteFile(prepareOut, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", prepareOut, err)
	}

	log.Info().
		Int("verses", stats.Verses).
		Int("paragraphs", stats.Paragraphs).
		Int("malformed", stats.Malformed).
		Int("duplicates", stats.Duplicates).
		Str("out", prepareOut).
		Msg("Corpus normalized")
	return nil
}
