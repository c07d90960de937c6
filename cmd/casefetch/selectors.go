package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/court-case-fetcher/internal/config"
	"github.com/jonathan/court-case-fetcher/internal/schemas"
)

var selectorsCmd = &cobra.Command{
	Use:   "selectors",
	Short: "Validate a selector file and print the effective selector set",
	Long: `Validate a selector file against the selector-set schema and print the
set the pipeline would use: the built-in selectors overlaid with the file.
Without --file the built-in set is printed.`,
	RunE: runSelectors,
}

var selectorsFile string

func init() {
	selectorsCmd.Flags().StringVarP(&selectorsFile, "file", "f", "", "Path to selector file")
	rootCmd.AddCommand(selectorsCmd)
}

func runSelectors(cmd *cobra.Command, _ []string) error {
	if selectorsFile != "" {
		if err := schemas.ValidateSelectorsFile(selectorsFile); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "%s is valid\n", selectorsFile)
	}

	set, err := config.LoadSelectors(selectorsFile)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(set)
}
