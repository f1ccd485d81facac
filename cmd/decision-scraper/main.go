// Package main provides the entry point for the decision-scraper CLI.
//
// decision-scraper finds the owners, executives and founders of a company
// from its website and prints their contact details.
//
// Usage:
//
//	decision-scraper https://example.com
//	decision-scraper --output json https://a.example https://b.example
//
// See --help for all available options.
package main

// main is the entry point for decision-scraper.
func main() {
	Execute()
}
