package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/cover-letter-studio/internal/fetch"
	"github.com/jonathan/cover-letter-studio/internal/ingestion"
	"github.com/jonathan/cover-letter-studio/internal/llm"
	"github.com/jonathan/cover-letter-studio/internal/observability"
)

var (
	fetchURL     string
	fetchBrowser bool
	fetchJSON    bool
	fetchNoLLM   bool
)

var fetchJobCmd = &cobra.Command{
	Use:   "fetch-job",
	Short: "Read a job posting from a URL",
	Long:  "Fetch a job posting and extract title, company, description and deadline as a draft for generate.",
	RunE:  runFetchJob,
}

func init() {
	fetchJobCmd.Flags().StringVarP(&fetchURL, "url", "u", "", "URL of the job posting (required)")
	fetchJobCmd.Flags().BoolVar(&fetchBrowser, "browser", false, "Render the page in headless Chrome when plain HTTP gives too little text")
	fetchJobCmd.Flags().BoolVar(&fetchJSON, "json", false, "Print the draft as JSON")
	fetchJobCmd.Flags().BoolVar(&fetchNoLLM, "no-llm", false, "Extract fields from page metadata only")
	_ = fetchJobCmd.MarkFlagRequired("url")
	rootCmd.AddCommand(fetchJobCmd)
}

func runFetchJob(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadRuntime()
	if err != nil {
		return err
	}
	defer log.Sync()

	if err := fetch.ValidateURL(fetchURL); err != nil {
		return err
	}

	var client llm.Client
	if !fetchNoLLM {
		client, err = newLLMClient(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer client.Close()
	}

	importer := ingestion.NewImporter(client, log)
	importer.Fetcher = &fetch.CachedFetcher{Log: log}
	draft, err := importer.Import(cmd.Context(), fetchURL, fetchBrowser || cfg.UseBrowser)
	if err != nil {
		return fmt.Errorf("failed to import job posting: %w", err)
	}

	if fetchJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(draft)
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintDraft(draft)
	return nil
}
