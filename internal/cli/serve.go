package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/studybible/versesim/internal/api"
	"github.com/studybible/versesim/internal/index"
	"github.com/studybible/versesim/internal/search"
)

var (
	serveIndex    string
	serveMetadata string
	servePort     string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the similarity query API",
	Long: `Loads the built index and metadata read-only and serves
POST /api/similar_verses. Vector and metadata row counts are verified
at load; mismatched artifacts refuse to start.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveIndex, "index", "", "Path to the built index (default from INDEX_PATH)")
	serveCmd.Flags().StringVar(&serveMetadata, "metadata", "", "Path to the metadata document (default from METADATA_PATH)")
	serveCmd.Flags().StringVar(&servePort, "port", "", "Port to listen on (default from PORT)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if serveIndex == "" {
		serveIndex = cfg.IndexPath
	}
	if serveMetadata == "" {
		serveMetadata = cfg.MetadataPath
	}
	if servePort == "" {
		servePort = cfg.Port
	}

	store, err := index.Open(serveIndex, serveMetadata)
	if err != nil {
		return err
	}
	searchService := search.NewService(store)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{echo.GET, echo.POST, echo.OPTIONS},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))

	apiHandler := api.NewHandler(searchService)
	apiHandler.RegisterRoutes(e)

	go func() {
		log.Info().Str("port", servePort).Msg("Starting HTTP server")
		if err := e.Start(fmt.Sprintf(":%s", servePort)); err != nil {
			log.Error().Err(err).Msg("Server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error shutting down server")
	}
	return nil
}
