package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jonathan/court-case-fetcher/internal/db"
	"github.com/jonathan/court-case-fetcher/internal/scraper"
	"github.com/jonathan/court-case-fetcher/internal/server"
)

var (
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Start an HTTP server that exposes case search, case listing, statistics
and order PDF endpoints. Without database_url the server still searches but
does not cache results or serve listings.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 8080, "Port to listen on (overrides server.port)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, selectors, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = servePort
	}

	ctx := cmd.Context()
	logger := slog.Default()

	orchestrator, err := scraper.NewFromConfig(cfg, selectors, logger, nil)
	if err != nil {
		return fmt.Errorf("failed to create orchestrator: %w", err)
	}

	var store server.Store
	if cfg.DatabaseURL != "" {
		database, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer database.Close()

		if err := database.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
		store = database
	} else {
		logger.Warn("database_url not set; searches will not be cached or listed")
	}

	srv, err := server.New(server.Options{
		Searcher: orchestrator,
		Store:    store,
		Config:   cfg.Server,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.Run(ctx)
}
