// Package report renders scrape results.
//
// This package contains writers for different output formats:
//   - TableWriter: terminal tables with a "N pages failed" summary
//   - JSONWriter: the ScrapeResult as JSON for other programs
//   - MarkdownWriter: a shareable Markdown document
//
// Writers implement the Writer interface, allowing them to be used
// interchangeably and composed with MultiWriter.
package report
