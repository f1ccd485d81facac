// Package model defines the core data structures used throughout decision-scraper.
//
// This package contains the following main types:
//   - FetchResult: the outcome of fetching one URL, success or failure
//   - PageCandidate: a sub-page the link discoverer considers worth fetching
//   - ReducedContent: page text after boilerplate removal and truncation
//   - DecisionMaker: one person extracted from a page
//   - ScrapeResult: the final, ranked result of a pipeline run
//
// It also holds the error taxonomy shared by every stage: FatalError for
// conditions that abort a run and PageError for per-page failures that are
// recorded and skipped.
//
// The models are serializable to JSON for report output.
package model
