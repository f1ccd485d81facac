package report

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/promisingcoder/decision-scraper/internal/model"
)

// TableWriter outputs human-readable tables for terminal display, followed
// by a summary of failed pages.
type TableWriter struct {
	baseWriter

	// showNotes adds a notes column with extraction remarks.
	showNotes bool

	// showErrors lists every failed page below the summary line.
	showErrors bool
}

// TableWriterOption configures a TableWriter.
type TableWriterOption func(*TableWriter)

// WithNotes adds the extraction notes column.
func WithNotes(show bool) TableWriterOption {
	return func(w *TableWriter) {
		w.showNotes = show
	}
}

// WithErrorDetails lists each failed page with its cause.
func WithErrorDetails(show bool) TableWriterOption {
	return func(w *TableWriter) {
		w.showErrors = show
	}
}

// NewTableWriter creates a TableWriter that outputs to the given writer.
func NewTableWriter(output io.Writer, opts ...TableWriterOption) *TableWriter {
	w := &TableWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs one result.
func (w *TableWriter) Write(result *model.ScrapeResult) (int, error) {
	var buf bytes.Buffer
	if err := w.render(&buf, result); err != nil {
		return 0, err
	}
	return w.output.Write(buf.Bytes())
}

// WriteAll outputs the results one after another.
func (w *TableWriter) WriteAll(results []*model.ScrapeResult) (int, error) {
	var buf bytes.Buffer
	for i, result := range results {
		if i > 0 {
			buf.WriteString("\n")
		}
		if err := w.render(&buf, result); err != nil {
			return 0, err
		}
	}
	return w.output.Write(buf.Bytes())
}

func (w *TableWriter) render(buf *bytes.Buffer, result *model.ScrapeResult) error {
	fmt.Fprintf(buf, "Decision makers for %s\n", result.RootURL)

	if result.HasDecisionMakers() {
		if err := w.renderTable(buf, result.DecisionMakers); err != nil {
			return err
		}
	} else {
		buf.WriteString("No decision-makers found.\n")
	}

	fmt.Fprintf(buf, "%d pages visited", result.PagesVisited)
	if result.PagesSkipped > 0 {
		fmt.Fprintf(buf, ", %d skipped", result.PagesSkipped)
	}
	if result.TimedOut {
		buf.WriteString(", timed out (partial results)")
	}
	buf.WriteString("\n")

	if len(result.Errors) > 0 {
		buf.WriteString(failedSummary(result))
		buf.WriteString("\n")
		if w.showErrors {
			for _, e := range result.Errors {
				fmt.Fprintf(buf, "  - %s: %s: %s\n", e.URL, e.Kind, e.Message)
			}
		}
	}

	return nil
}

func (w *TableWriter) renderTable(out io.Writer, dms []model.DecisionMaker) error {
	table := tablewriter.NewWriter(out)

	header := []any{"Name", "Title", "Email", "Phone", "LinkedIn", "Confidence", "Source"}
	if w.showNotes {
		header = append(header, "Notes")
	}
	table.Header(header...)

	for _, dm := range dms {
		row := []string{
			dash(dm.Name),
			dash(dm.Title),
			dash(dm.Email),
			dash(dm.Phone),
			dash(dm.LinkedIn),
			formatConfidence(dm.Confidence),
			dash(dm.SourceURL),
		}
		if w.showNotes {
			row = append(row, dash(strings.Join(dm.ExtractionNotes, "; ")))
		}
		if err := table.Append(row); err != nil {
			return fmt.Errorf("render table row: %w", err)
		}
	}

	if err := table.Render(); err != nil {
		return fmt.Errorf("render table: %w", err)
	}
	return nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
