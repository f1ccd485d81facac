// Package main provides the entry point for the decision-scraper CLI.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/promisingcoder/decision-scraper/internal/config"
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for decision-scraper.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decision-scraper <url>...",
		Short: "Find the decision-makers of a company from its website",
		Long: `decision-scraper finds the owners, executives and founders of a company
from its website and extracts their contact details.

It fetches the root page, follows the links most likely to name people
(about, team, leadership, contact), reduces each page to its main text and
asks a language model to extract the decision-makers mentioned there.
Results from all pages are merged per person and ranked by confidence.

The API key is read from --api-key, then OPENAI_API_KEY. A .env file in the
current directory or in the XDG config directory is loaded first.

Examples:
  # Scrape one site
  decision-scraper https://example.com

  # Scrape several sites, two at a time, and print JSON
  decision-scraper --batch 2 --output json https://a.example https://b.example

  # Keep a Markdown report next to the terminal output
  decision-scraper --report-file report.md https://example.com

  # Use a local OpenAI-compatible server
  decision-scraper --base-url http://localhost:11434/v1 --model llama3.1 https://example.com

Exit codes:
  0  success, also when no decision-makers were found
  1  other failure
  2  invalid URL or usage
  3  authentication failure
  4  root page unreachable`,
		Version:       getVersion(),
		Args:          cobra.ArbitraryArgs,
		RunE:          runRootCmd,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Provider flags
	cmd.Flags().StringP("api-key", "k", "",
		"API key for the extraction provider (default: $"+config.APIKeyEnv+")")
	cmd.Flags().String("model", config.DefaultModel,
		"Chat model used for extraction")
	cmd.Flags().String("base-url", "",
		"OpenAI-compatible API base URL (default: $"+config.BaseURLEnv+" or "+config.DefaultBaseURL+")")

	// Scrape behavior flags
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages,
		"Maximum number of pages to fetch per site, root page included")
	cmd.Flags().IntP("max-concurrency", "n", config.DefaultMaxConcurrency,
		"Maximum number of concurrent page fetches and extraction calls")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Overall deadline per site; partial results are returned when it expires")
	cmd.Flags().Duration("fetch-timeout", config.DefaultFetchTimeout,
		"Deadline for each page request")
	cmd.Flags().Bool("no-robots", false,
		"Ignore robots.txt when choosing sub-pages")

	// Batch flags
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of sites scraped at the same time")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .decision-scraper in current or home directory)")

	// Report flags
	cmd.Flags().StringP("output", "o", string(config.OutputTable),
		"Output format: table, json or markdown")
	cmd.Flags().String("report-file", "",
		"Also write the report to this file; .json and .md select the format")
	cmd.Flags().Bool("notes", false,
		"Show extraction notes in table output")
	cmd.Flags().String("log-format", logFormatText,
		"Log format: text or json")

	// Add subcommands
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command and exits with the matching exit code.
func Execute() {
	err := NewRootCmd().Execute()
	if err == nil {
		return
	}

	var reported *reportedError
	if !errors.As(err, &reported) {
		fmt.Fprintf(os.Stderr, "Error: %s\n", oneLine(err))
	}
	os.Exit(exitCode(err))
}
