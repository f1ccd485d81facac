package report

import (
	"fmt"
	"io"

	"github.com/promisingcoder/decision-scraper/internal/model"
)

// Writer defines the interface for report output.
// Implementations render scrape results in various formats.
type Writer interface {
	// Write outputs one site's result.
	// Returns the number of bytes written and any error encountered.
	Write(result *model.ScrapeResult) (int, error)

	// WriteAll outputs the results of several sites.
	WriteAll(results []*model.ScrapeResult) (int, error)
}

// MultiWriter writes to multiple Writers, for example the terminal and a
// report file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the result to all configured Writers.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(result *model.ScrapeResult) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(result)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteAll outputs the results to all configured Writers.
func (m *MultiWriter) WriteAll(results []*model.ScrapeResult) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteAll(results)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// Summary describes a whole run in one line, for example
// "2 sites scraped, 5 decision-makers found, 3 pages failed".
func Summary(results []*model.ScrapeResult) string {
	var people, failed int
	for _, r := range results {
		people += len(r.DecisionMakers)
		failed += r.FailedPages()
	}

	sites := "1 site"
	if len(results) != 1 {
		sites = fmt.Sprintf("%d sites", len(results))
	}
	found := "1 decision-maker"
	if people != 1 {
		found = fmt.Sprintf("%d decision-makers", people)
	}
	pages := "1 page failed"
	if failed != 1 {
		pages = fmt.Sprintf("%d pages failed", failed)
	}
	return fmt.Sprintf("%s scraped, %s found, %s", sites, found, pages)
}
