package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "decision-scraper"

	// DefaultMaxPages bounds the pages fetched per site, root included.
	DefaultMaxPages = 20

	// DefaultMaxConcurrency bounds concurrent child fetches and extraction calls.
	DefaultMaxConcurrency = 5

	// DefaultTimeout is the overall deadline for one site. When it expires the
	// run returns whatever pages completed.
	DefaultTimeout = 3 * time.Minute

	// DefaultFetchTimeout is the deadline for a single HTTP attempt.
	DefaultFetchTimeout = 20 * time.Second

	// DefaultMaxRetries is the number of retries after a transient failure.
	DefaultMaxRetries = 2

	// DefaultRetryBackoff is the delay before the first retry. It doubles per attempt.
	DefaultRetryBackoff = 500 * time.Millisecond

	// DefaultMaxRedirects is the redirect hop limit for page fetches.
	DefaultMaxRedirects = 5

	// DefaultMaxCandidates caps the link discoverer output.
	DefaultMaxCandidates = 25

	// DefaultUserAgent is a current desktop browser user agent. Many small
	// business sites block unknown clients.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

	// DefaultMaxBodySize limits the response body read per page.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultTokenBudget is the extractor input budget in tokens per page.
	DefaultTokenBudget = 6000

	// CharsPerToken converts a token budget to a character budget.
	CharsPerToken = 4

	// DefaultModel is the chat model used for extraction.
	DefaultModel = "gpt-4o-mini"

	// DefaultBaseURL is the OpenAI-compatible API base URL.
	DefaultBaseURL = "https://api.openai.com/v1"

	// DefaultBatchSize is the number of sites scraped at the same time.
	DefaultBatchSize = 1

	// APIKeyEnv is the environment variable holding the API key.
	APIKeyEnv = "OPENAI_API_KEY"

	// BaseURLEnv overrides the API base URL.
	BaseURLEnv = "OPENAI_BASE_URL"
)

// OutputFormat selects how results are rendered.
type OutputFormat string

const (
	// OutputTable renders a human-readable table.
	OutputTable OutputFormat = "table"
	// OutputJSON renders the ScrapeResult as JSON.
	OutputJSON OutputFormat = "json"
	// OutputMarkdown renders a Markdown report.
	OutputMarkdown OutputFormat = "markdown"
)

// ParseOutputFormat parses a format name case-insensitively.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case OutputTable, OutputJSON, OutputMarkdown:
		return f, nil
	case "md":
		return OutputMarkdown, nil
	default:
		return "", ErrInvalidOutputFormat
	}
}

// Config holds all options for a scrape. It is populated from CLI flags or
// library options and passed down explicitly; there is no global state.
type Config struct {
	// APIKey authenticates against the extraction provider.
	APIKey string

	// Model is the chat model name.
	Model string

	// BaseURL is the OpenAI-compatible API base URL.
	BaseURL string

	// MaxPages bounds the pages fetched per site, root included.
	MaxPages int

	// MaxConcurrency bounds concurrent child fetches and extraction calls.
	MaxConcurrency int

	// Timeout is the overall deadline per site.
	Timeout time.Duration

	// FetchTimeout is the deadline per HTTP attempt.
	FetchTimeout time.Duration

	// MaxRetries is the number of retries for transient failures.
	MaxRetries int

	// RetryBackoff is the initial retry delay.
	RetryBackoff time.Duration

	// MaxRedirects is the redirect hop limit.
	MaxRedirects int

	// MaxCandidates caps the link discoverer output.
	MaxCandidates int

	// UserAgent is sent with every page request.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes.
	MaxBodySize int64

	// TokenBudget is the per-page extractor input budget in tokens.
	TokenBudget int

	// RespectRobots skips sub-pages disallowed by robots.txt.
	RespectRobots bool

	// BatchSize is the number of sites scraped at the same time.
	BatchSize int

	// Output is the report format.
	Output OutputFormat

	// ReportFile is written in addition to stdout when set.
	ReportFile string

	// ShowNotes adds the merge notes column to table reports.
	ShowNotes bool

	// Verbose enables debug logging.
	Verbose bool

	// ConfigFilePath is an explicit config file path.
	ConfigFilePath string

	// SiteConfigs holds per-site settings loaded from the config file.
	SiteConfigs *File

	// Targets are the root URLs to scrape.
	Targets []string
}

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		Model:          DefaultModel,
		BaseURL:        DefaultBaseURL,
		MaxPages:       DefaultMaxPages,
		MaxConcurrency: DefaultMaxConcurrency,
		Timeout:        DefaultTimeout,
		FetchTimeout:   DefaultFetchTimeout,
		MaxRetries:     DefaultMaxRetries,
		RetryBackoff:   DefaultRetryBackoff,
		MaxRedirects:   DefaultMaxRedirects,
		MaxCandidates:  DefaultMaxCandidates,
		UserAgent:      DefaultUserAgent,
		MaxBodySize:    DefaultMaxBodySize,
		TokenBudget:    DefaultTokenBudget,
		RespectRobots:  true,
		BatchSize:      DefaultBatchSize,
		Output:         OutputTable,
	}
}

// SiteConfig returns the per-site settings for host, or the zero value when
// no config file was loaded.
func (c *Config) SiteConfig(host string) SiteConfig {
	if c.SiteConfigs == nil {
		return SiteConfig{}
	}
	return c.SiteConfigs.GetSiteConfig(host)
}

// CharBudget converts the token budget to a character budget.
func (c *Config) CharBudget() int {
	return c.TokenBudget * CharsPerToken
}

// XDGConfigDir returns the XDG config directory for decision-scraper.
// On Linux: ~/.config/decision-scraper
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}
	if c.MaxPages <= 0 {
		return ErrInvalidMaxPages
	}
	if c.MaxConcurrency <= 0 {
		return ErrInvalidMaxConcurrency
	}
	if c.Timeout <= 0 || c.FetchTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.MaxRetries < 0 || c.RetryBackoff < 0 {
		return ErrInvalidRetry
	}
	if c.TokenBudget <= 0 {
		return ErrInvalidTokenBudget
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if _, err := ParseOutputFormat(string(c.Output)); err != nil {
		return err
	}
	return nil
}
