package main

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jonathan/court-case-fetcher/internal/observability"
	"github.com/jonathan/court-case-fetcher/internal/scraper"
	"github.com/jonathan/court-case-fetcher/internal/types"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search the portal for one case",
	Long:  "Search the court portal for a case by type, number and filing year and print the case record with its orders.",
	RunE:  runSearch,
}

var (
	searchType   string
	searchNumber string
	searchYear   int
	searchJSON   bool
)

func init() {
	searchCmd.Flags().StringVar(&searchType, "type", "", "Case type, e.g. W.P.(C) (required)")
	searchCmd.Flags().StringVar(&searchNumber, "number", "", "Case number (required)")
	searchCmd.Flags().IntVar(&searchYear, "year", 0, "Filing year (required)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "Print the outcome as JSON")

	_ = searchCmd.MarkFlagRequired("type")
	_ = searchCmd.MarkFlagRequired("number")
	_ = searchCmd.MarkFlagRequired("year")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, _ []string) error {
	req, err := types.NewSearchRequest(searchType, searchNumber, searchYear)
	if err != nil {
		return err
	}

	cfg, selectors, err := loadConfig()
	if err != nil {
		return err
	}

	var onProgress scraper.ProgressCallback
	if verbose {
		onProgress = observability.NewPrinter(cmd.ErrOrStderr()).PrintProgress
	}

	orchestrator, err := scraper.NewFromConfig(cfg, selectors, slog.Default(), onProgress)
	if err != nil {
		return fmt.Errorf("failed to create orchestrator: %w", err)
	}

	outcome, err := orchestrator.Search(cmd.Context(), req)
	if err != nil {
		return err
	}

	if searchJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(outcome)
	}

	observability.NewPrinter(cmd.OutOrStdout()).PrintOutcome(outcome)
	return nil
}
