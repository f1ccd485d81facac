package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies every error a pipeline run can produce.
type ErrorKind string

const (
	// KindInvalidURL means the root URL is not an absolute HTTP(S) URL.
	KindInvalidURL ErrorKind = "invalid_url"

	// KindAuthentication means the extraction provider rejected the API key.
	KindAuthentication ErrorKind = "authentication_failure"

	// KindRootUnreachable means the root page could not be fetched.
	KindRootUnreachable ErrorKind = "root_page_unreachable"

	// KindChildFetch means a sub-page fetch failed.
	KindChildFetch ErrorKind = "child_fetch_failure"

	// KindChildTimeout means a page did not complete before its deadline.
	KindChildTimeout ErrorKind = "child_page_timeout"

	// KindExtractionParse means the provider response could not be parsed.
	KindExtractionParse ErrorKind = "extraction_parse_failure"

	// KindExtraction means the provider call failed for a reason other
	// than authentication, after retries.
	KindExtraction ErrorKind = "extraction_failure"
)

// Fatal reports whether errors of this kind abort the run.
func (k ErrorKind) Fatal() bool {
	switch k {
	case KindInvalidURL, KindAuthentication, KindRootUnreachable:
		return true
	default:
		return false
	}
}

// Sentinel errors for the fatal kinds. FatalError values match them with errors.Is.
var (
	// ErrInvalidURL is returned for a malformed or non-HTTP(S) root URL.
	ErrInvalidURL = errors.New("invalid URL")

	// ErrAuthentication is returned when the extraction provider rejects the API key.
	ErrAuthentication = errors.New("authentication failed")

	// ErrRootUnreachable is returned when the root page cannot be fetched.
	ErrRootUnreachable = errors.New("root page unreachable")
)

// FatalError aborts a pipeline run. No ScrapeResult is produced alongside it.
type FatalError struct {
	Kind ErrorKind
	URL  string
	Err  error
}

// NewFatalError creates a FatalError of the given kind.
func NewFatalError(kind ErrorKind, url string, err error) *FatalError {
	return &FatalError{Kind: kind, URL: url, Err: err}
}

// Error returns a single-line message.
func (e *FatalError) Error() string {
	var msg string
	switch {
	case e.Err == nil:
		msg = e.sentinel().Error()
	case errors.Is(e.Err, e.sentinel()):
		msg = e.Err.Error()
	default:
		msg = fmt.Sprintf("%v: %v", e.sentinel(), e.Err)
	}
	if e.URL != "" && !strings.Contains(msg, e.URL) {
		msg = fmt.Sprintf("%s (%s)", msg, e.URL)
	}
	return singleLine(msg)
}

// Unwrap returns the underlying cause.
func (e *FatalError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel error for the kind.
func (e *FatalError) Is(target error) bool {
	return target == e.sentinel()
}

func (e *FatalError) sentinel() error {
	switch e.Kind {
	case KindInvalidURL:
		return ErrInvalidURL
	case KindAuthentication:
		return ErrAuthentication
	default:
		return ErrRootUnreachable
	}
}

// PageError describes a per-page failure that was recorded and skipped.
type PageError struct {
	URL     string    `json:"url"`
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// NewPageError builds a PageError with a short, single-line cause description.
func NewPageError(kind ErrorKind, url string, err error) PageError {
	msg := string(kind)
	if err != nil {
		msg = err.Error()
	}
	return PageError{URL: url, Kind: kind, Message: singleLine(msg)}
}

// Error implements the error interface.
func (e PageError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.URL, e.Message)
}

func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
