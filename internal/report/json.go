package report

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/promisingcoder/decision-scraper/internal/model"
)

// JSONWriter outputs results as JSON for other programs.
// A single result is written as an object, several as an array.
// URLs are written unescaped, so "&" stays "&".
type JSONWriter struct {
	baseWriter

	prefix string
	indent string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables indented output with the given line prefix and
// per-level indent.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.prefix = prefix
		w.indent = indent
	}
}

// WithPrettyPrint indents with two spaces.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter that outputs compact JSON to output.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the result as a JSON object.
func (w *JSONWriter) Write(result *model.ScrapeResult) (int, error) {
	return w.encode(result)
}

// WriteAll outputs the results as a JSON array. A nil slice is written as [].
func (w *JSONWriter) WriteAll(results []*model.ScrapeResult) (int, error) {
	if results == nil {
		results = []*model.ScrapeResult{}
	}
	return w.encode(results)
}

// encode buffers the document so a failed encoding writes nothing.
// The encoder ends the document with a newline.
func (w *JSONWriter) encode(v any) (int, error) {
	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if w.prefix != "" || w.indent != "" {
		enc.SetIndent(w.prefix, w.indent)
	}
	if err := enc.Encode(v); err != nil {
		return 0, err
	}

	return w.output.Write(buf.Bytes())
}
