package cli

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/studybible/versesim/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "versesim",
	Short: "Semantic verse similarity pipeline and API",
	Long: `versesim turns a verse corpus and theological commentary into a
queryable similarity service. The offline pipeline runs prepare, embed
and index in order; serve answers similarity queries over the built
index.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		zerolog.TimeFieldFormat = time.RFC3339
		if cfg.Debug {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		} else {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
		}
	},
}

// Execute runs the CLI.
func Execute() {
	cfg = config.Load()
	rootCmd.PersistentFlags().BoolVar(&cfg.Debug, "debug", cfg.Debug, "Enable debug logging")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
