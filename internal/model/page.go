package model

import (
	"strings"
	"time"
)

// FetchResult is the outcome of a single HTTP fetch.
// A failed fetch is still a FetchResult: Err is set and RawContent is empty,
// so later stages can skip or report the page without special control flow.
// A FetchResult is never modified after the fetcher returns it.
type FetchResult struct {
	// URL is the URL that was requested.
	URL string `json:"url"`

	// FinalURL is the URL after following redirects.
	// Relative links on the page resolve against this URL.
	FinalURL string `json:"final_url"`

	// StatusCode is the HTTP status of the last response, 0 if no response arrived.
	StatusCode int `json:"status_code"`

	// RawContent is the response body, capped at the fetcher's body limit.
	RawContent []byte `json:"-"`

	// ContentType is the media type from the Content-Type header.
	ContentType string `json:"content_type,omitempty"`

	// Duration is the wall time spent on the fetch, retries included.
	Duration time.Duration `json:"duration"`

	// Attempts is the number of HTTP attempts made.
	Attempts int `json:"attempts"`

	// Err is set when the fetch failed.
	Err error `json:"-"`
}

// OK reports whether the fetch produced usable content.
func (r *FetchResult) OK() bool {
	return r != nil && r.Err == nil && len(r.RawContent) > 0
}

// BaseURL returns the URL that relative links should be resolved against.
func (r *FetchResult) BaseURL() string {
	if r.FinalURL != "" {
		return r.FinalURL
	}
	return r.URL
}

// IsHTML reports whether the content type denotes an HTML document.
// An empty content type is treated as HTML because many small sites omit it.
func (r *FetchResult) IsHTML() bool {
	ct := strings.ToLower(r.ContentType)
	return ct == "" || strings.Contains(ct, "html")
}

// PageCandidate is a sub-page the link discoverer considers likely to name
// decision-makers or list contact details.
type PageCandidate struct {
	// URL is the absolute, normalized URL of the page.
	URL string `json:"url"`

	// RelevanceScore is in [0,1]; higher means more likely to be useful.
	RelevanceScore float64 `json:"relevance_score"`

	// Reason explains which signals produced the score.
	Reason string `json:"reason"`

	// Rank is the 1-based position in the discoverer's ordering.
	// The root page has rank 0.
	Rank int `json:"rank"`
}

// ReducedContent is page text ready for entity extraction.
// It is derived deterministically from a FetchResult's raw content.
type ReducedContent struct {
	// SourceURL is the page the text came from.
	SourceURL string `json:"source_url"`

	// Text is the condensed page text (Markdown).
	Text string `json:"text"`

	// Truncated is true when Text was cut to fit the budget.
	Truncated bool `json:"truncated"`

	// Title is the page title, if one could be determined.
	Title string `json:"title,omitempty"`

	// SiteName is the site or organization name from page metadata.
	SiteName string `json:"site_name,omitempty"`
}

// Empty reports whether there is no text to extract from.
func (c ReducedContent) Empty() bool {
	return strings.TrimSpace(c.Text) == ""
}
