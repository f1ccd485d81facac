package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/promisingcoder/decision-scraper/internal/config"
	"github.com/promisingcoder/decision-scraper/internal/log"
	"github.com/promisingcoder/decision-scraper/internal/model"
	"github.com/promisingcoder/decision-scraper/internal/pipeline"
	"github.com/promisingcoder/decision-scraper/internal/report"
	"github.com/spf13/cobra"
)

// Process exit codes.
const (
	exitOK          = 0
	exitFailure     = 1
	exitUsage       = 2
	exitAuth        = 3
	exitUnreachable = 4
)

// Log formats accepted by --log-format.
const (
	logFormatText = "text"
	logFormatJSON = "json"
)

// usageError marks errors caused by bad arguments or flags.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

// reportedError wraps an error that was already printed to stderr.
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

// exitCode maps an error to the process exit code.
func exitCode(err error) int {
	var usage *usageError
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &usage), errors.Is(err, model.ErrInvalidURL):
		return exitUsage
	case errors.Is(err, model.ErrAuthentication), errors.Is(err, config.ErrNoAPIKey):
		return exitAuth
	case errors.Is(err, model.ErrRootUnreachable):
		return exitUnreachable
	default:
		return exitFailure
	}
}

// oneLine collapses err's message to a single line.
func oneLine(err error) string {
	return strings.Join(strings.Fields(err.Error()), " ")
}

// runRootCmd executes the scrape.
func runRootCmd(cmd *cobra.Command, args []string) error {
	cfg, logFormat, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return &usageError{err: fmt.Errorf("configuration error: %w", err)}
	}

	logger, err := setupLogger(cmd.ErrOrStderr(), cfg.Verbose, logFormat)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runScrape(ctx, cmd, cfg, logger)
}

// buildConfig creates a Config from cobra command flags, the config file and
// the environment.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, string, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error

	cfg.Verbose = getVerboseFlag(cmd)

	if cfg.MaxPages, err = flags.GetInt("max-pages"); err != nil {
		return nil, "", err
	}
	if cfg.MaxConcurrency, err = flags.GetInt("max-concurrency"); err != nil {
		return nil, "", err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, "", err
	}
	if cfg.FetchTimeout, err = flags.GetDuration("fetch-timeout"); err != nil {
		return nil, "", err
	}
	if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
		return nil, "", err
	}
	if cfg.Model, err = flags.GetString("model"); err != nil {
		return nil, "", err
	}

	noRobots, err := flags.GetBool("no-robots")
	if err != nil {
		return nil, "", err
	}
	cfg.RespectRobots = !noRobots

	output, err := flags.GetString("output")
	if err != nil {
		return nil, "", err
	}
	if cfg.Output, err = config.ParseOutputFormat(output); err != nil {
		return nil, "", &usageError{err: fmt.Errorf("%w: %q", err, output)}
	}

	if cfg.ReportFile, err = flags.GetString("report-file"); err != nil {
		return nil, "", err
	}
	if cfg.ShowNotes, err = flags.GetBool("notes"); err != nil {
		return nil, "", err
	}

	logFormat, err := flags.GetString("log-format")
	if err != nil {
		return nil, "", err
	}

	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, "", err
	}

	// If the user explicitly specified a config file path, error if not found.
	// If no path was specified, silently use an empty config.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		cfg.SiteConfigs, err = config.LoadConfigFile(configPath)
		if errors.Is(err, config.ErrInvalidConfigFile) {
			return nil, "", &usageError{err: fmt.Errorf("config file %s: %w", configPath, err)}
		}
		if err != nil {
			return nil, "", fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	case cfg.ConfigFilePath != "":
		return nil, "", &usageError{err: fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)}
	default:
		cfg.SiteConfigs = &config.File{Sites: make(map[string]config.SiteConfig)}
	}

	// Variables already set in the environment win over .env files.
	if _, err := config.LoadDotEnv(config.DotEnvDirs()...); err != nil {
		return nil, "", fmt.Errorf("failed to load .env file: %w", err)
	}

	apiKey, err := flags.GetString("api-key")
	if err != nil {
		return nil, "", err
	}
	// A missing key is reported per site as an authentication failure.
	if key, err := config.ResolveAPIKey(apiKey); err == nil {
		cfg.APIKey = key
	}

	baseURL, err := flags.GetString("base-url")
	if err != nil {
		return nil, "", err
	}
	cfg.BaseURL = config.ResolveBaseURL(baseURL)

	cfg.Targets = args

	return cfg, logFormat, nil
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// setupLogger creates a structured logger that masks secrets.
func setupLogger(w io.Writer, verbose bool, format string) (*slog.Logger, error) {
	switch strings.ToLower(format) {
	case logFormatText, "":
		return log.NewSecureLogger(w, verbose), nil
	case logFormatJSON:
		return log.NewSecureJSONLogger(w, verbose), nil
	default:
		return nil, &usageError{err: fmt.Errorf("invalid log format %q: use text or json", format)}
	}
}

// runScrape scrapes every target, prints the reports of the sites that
// succeeded and one line per site that failed.
func runScrape(ctx context.Context, cmd *cobra.Command, cfg *config.Config, logger *slog.Logger) error {
	stderr := cmd.ErrOrStderr()

	logger.Info("starting scrape",
		"targets", len(cfg.Targets),
		"batch_size", cfg.BatchSize,
		"max_pages", cfg.MaxPages,
		"model", cfg.Model,
	)

	scraper := pipeline.NewScraper(cfg, pipeline.WithScraperLogger(logger))
	bp := pipeline.NewBatchProcessor(scraper.Scrape,
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)

	progress := newProgress(len(cfg.Targets), !cfg.Verbose)
	progress.Start()

	sites := make([]pipeline.SiteResult, len(cfg.Targets))
	batchErr := bp.ProcessBatchWithCallback(ctx, cfg.Targets, func(r pipeline.SiteResult, index int) {
		sites[index] = r
		progress.Done(r.URL)
	})
	progress.Stop()

	results := make([]*model.ScrapeResult, 0, len(sites))
	var firstErr error
	for _, site := range sites {
		if site.Err != nil {
			fmt.Fprintf(stderr, "Error: %s\n", oneLine(site.Err))
			if firstErr == nil {
				firstErr = site.Err
			}
			continue
		}
		results = append(results, site.Result)
	}

	if len(results) > 0 {
		if err := outputReport(cmd.OutOrStdout(), cfg, results); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		fmt.Fprintln(stderr, report.Summary(results))
	}

	if firstErr != nil {
		return &reportedError{err: firstErr}
	}
	if batchErr != nil {
		return batchErr
	}
	return nil
}

// outputReport writes the results to stdout and, when configured, to the
// report file.
func outputReport(stdout io.Writer, cfg *config.Config, results []*model.ScrapeResult) error {
	writer := newReportWriter(stdout, cfg.Output, cfg.ShowNotes)

	if cfg.ReportFile != "" {
		// Create directories if they don't exist
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		// Reports contain personal contact details, so only the owner may read them.
		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()

		writer = report.NewMultiWriter(writer, newReportWriter(f, reportFileFormat(cfg.ReportFile, cfg.Output), cfg.ShowNotes))
	}

	var err error
	if len(cfg.Targets) == 1 {
		_, err = writer.Write(results[0])
	} else {
		_, err = writer.WriteAll(results)
	}
	return err
}

// newReportWriter returns the writer for format. Notes only affect tables;
// JSON and Markdown reports always carry them.
func newReportWriter(w io.Writer, format config.OutputFormat, notes bool) report.Writer {
	switch format {
	case config.OutputJSON:
		return report.NewJSONWriter(w, report.WithPrettyPrint())
	case config.OutputMarkdown:
		return report.NewMarkdownWriter(w)
	default:
		return report.NewTableWriter(w, report.WithErrorDetails(true), report.WithNotes(notes))
	}
}

// reportFileFormat picks the report file format from its extension.
func reportFileFormat(path string, fallback config.OutputFormat) config.OutputFormat {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return config.OutputJSON
	case ".md", ".markdown":
		return config.OutputMarkdown
	default:
		return fallback
	}
}

// progress shows a spinner on stderr while sites are scraped.
// The spinner stays silent when stderr is not a terminal.
type progress struct {
	mu      sync.Mutex
	spinner *spinner.Spinner
	total   int
	done    int
	enabled bool
}

func newProgress(total int, enabled bool) *progress {
	return &progress{
		spinner: spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriterFile(os.Stderr)),
		total:   total,
		enabled: enabled,
	}
}

func (p *progress) Start() {
	if !p.enabled {
		return
	}
	p.spinner.Suffix = fmt.Sprintf(" Scraping %s...", pluralSites(p.total))
	p.spinner.Start()
}

func (p *progress) Done(rawURL string) {
	if !p.enabled {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done++
	p.spinner.Lock()
	p.spinner.Suffix = fmt.Sprintf(" [%d/%d] finished %s", p.done, p.total, rawURL)
	p.spinner.Unlock()
}

func (p *progress) Stop() {
	if p.enabled {
		p.spinner.Stop()
	}
}

func pluralSites(n int) string {
	if n == 1 {
		return "1 site"
	}
	return fmt.Sprintf("%d sites", n)
}
