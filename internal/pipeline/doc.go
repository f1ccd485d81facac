// Package pipeline drives one scrape from the root page to the final result.
//
// A run moves through the states
//
//	Init → FetchingRoot → DiscoveringLinks → FetchingChildren → Extracting → Aggregating → Done
//
// with each state implemented as a Step. Errored is reached only when the
// root page cannot be fetched or the provider rejects the API key; every
// other failure is recorded as a per-page error and the run continues.
//
// Sub-page fetches and extractions run concurrently under an errgroup
// limit. The set of sub-pages is fixed before the first one is fetched and
// each task owns one page slot, so completion order only affects the order
// records reach the aggregator, which does not depend on it.
//
// Scraper builds the steps and the per-run HTTP resources. BatchProcessor
// runs several sites with bounded concurrency.
package pipeline
