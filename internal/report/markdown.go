package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/promisingcoder/decision-scraper/internal/model"
)

// MarkdownWriter outputs results in Markdown format for sharing.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs one result as a Markdown document.
func (w *MarkdownWriter) Write(result *model.ScrapeResult) (int, error) {
	return w.WriteAll([]*model.ScrapeResult{result})
}

// WriteAll outputs every result as a section of one Markdown document.
func (w *MarkdownWriter) WriteAll(results []*model.ScrapeResult) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Decision Makers Report")
	md.PlainText("")

	for _, result := range results {
		w.writeSite(md, result)
	}

	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeSite writes the section for one site.
func (w *MarkdownWriter) writeSite(md *markdown.Markdown, result *model.ScrapeResult) {
	md.H2(result.RootURL)
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Root URL", "`" + result.RootURL + "`"},
			{"Scraped At", result.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", result.Duration.Round(time.Millisecond).String()},
			{"Pages Visited", strconv.Itoa(result.PagesVisited)},
			{"Pages Skipped", strconv.Itoa(result.PagesSkipped)},
			{"Status", statusText(result)},
		},
	})
	md.PlainText("")

	w.writeDecisionMakers(md, result)
	w.writeFailures(md, result)
}

// writeDecisionMakers writes the people table and their extraction notes.
func (w *MarkdownWriter) writeDecisionMakers(md *markdown.Markdown, result *model.ScrapeResult) {
	md.H3("Decision Makers")
	md.PlainText("")

	if !result.HasDecisionMakers() {
		md.Note("No decision-makers were found on this site.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(result.DecisionMakers))
	for i, dm := range result.DecisionMakers {
		rows[i] = []string{
			cell(dm.Name),
			cell(dm.Title),
			cell(dm.Email),
			cell(dm.Phone),
			cell(dm.LinkedIn),
			formatConfidence(dm.Confidence),
			cell(dm.SourceURL),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Name", "Title", "Email", "Phone", "LinkedIn", "Confidence", "Source"},
		Rows:   rows,
	})
	md.PlainText("")

	for _, dm := range result.DecisionMakers {
		if len(dm.ExtractionNotes) > 0 {
			md.Details(dm.Name, "- "+strings.Join(dm.ExtractionNotes, "\n- "))
		}
	}
	md.PlainText("")
}

// writeFailures writes the per-page errors, if any.
func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, result *model.ScrapeResult) {
	if len(result.Errors) == 0 {
		return
	}

	md.H3("Failed Pages")
	md.PlainText("")
	md.Warningf("%s.", failedSummary(result))
	md.PlainText("")

	rows := make([][]string, len(result.Errors))
	for i, e := range result.Errors {
		rows[i] = []string{cell(e.URL), string(e.Kind), cell(truncateString(e.Message, 80))}
	}
	md.Table(markdown.TableSet{
		Header: []string{"URL", "Kind", "Cause"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by decision-scraper*")
}

// cell makes a value safe for a Markdown table cell.
func cell(s string) string {
	if s == "" {
		return "-"
	}
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.Join(strings.Fields(s), " ")
}

func formatConfidence(c float64) string {
	return strconv.FormatFloat(c, 'f', 2, 64)
}

// statusText describes how the run ended.
func statusText(result *model.ScrapeResult) string {
	switch {
	case result.TimedOut:
		return "Timed out (partial results)"
	case len(result.Errors) > 0:
		return fmt.Sprintf("Complete, %s", failedSummary(result))
	default:
		return "Complete"
	}
}

// failedSummary returns "N pages failed".
func failedSummary(result *model.ScrapeResult) string {
	n := result.FailedPages()
	if n == 1 {
		return "1 page failed"
	}
	return fmt.Sprintf("%d pages failed", n)
}

// truncateString truncates a string to maxLen runes with ellipsis.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
