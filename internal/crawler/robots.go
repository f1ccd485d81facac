package crawler

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/temoto/robotstxt"
)

// FetchRobots retrieves robots.txt for the site of root and returns the
// group that applies to the fetcher's user agent. It returns nil, meaning
// everything is allowed, when robots.txt is missing, unreachable, or the
// server fails; only an explicit file can restrict the crawl.
func FetchRobots(ctx context.Context, f *Fetcher, root *url.URL, timeout time.Duration) *robotstxt.Group {
	robotsURL := &url.URL{Scheme: root.Scheme, Host: root.Host, Path: "/robots.txt"}

	res := f.Fetch(ctx, robotsURL.String(), timeout)
	if res.StatusCode == 0 || res.StatusCode >= http.StatusInternalServerError {
		return nil
	}

	data, err := robotstxt.FromStatusAndBytes(res.StatusCode, res.RawContent)
	if err != nil {
		f.logger.Debug("ignoring unparsable robots.txt", "url", robotsURL.String(), "error", err)
		return nil
	}

	return data.FindGroup(f.UserAgent())
}
