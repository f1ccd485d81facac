// Package crawler fetches pages and picks which links on a root page are
// worth visiting.
//
// # Components
//
//   - Fetcher: HTTP GET with per-attempt timeouts, bounded redirects, a body
//     size cap and retries for transient failures. Failures are recorded on
//     the returned model.FetchResult instead of being returned.
//   - Parser: walks an HTML document and collects anchors together with the
//     page region (navigation, header, footer, body) they appear in.
//   - Discoverer: scores links on the root page's registrable domain by
//     keyword, position and depth, and returns a ranked candidate list.
//   - FetchRobots: loads the robots.txt group that applies to the fetcher's
//     user agent.
//
// A Fetcher owns its connection pool and belongs to one run. Parser and
// Discoverer hold no mutable state and are safe for concurrent use.
//
// # Usage
//
//	f := crawler.NewFetcher(crawler.WithUserAgent(ua))
//	defer f.Close()
//
//	root := f.Fetch(ctx, "https://example.com/", 20*time.Second)
//	candidates := crawler.NewDiscoverer().Discover(root)
package crawler
