package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/promisingcoder/decision-scraper/internal/config"
	"github.com/promisingcoder/decision-scraper/internal/model"
	"github.com/promisingcoder/decision-scraper/internal/retry"
)

// Fetch errors. They are stored in model.FetchResult.Err, never returned.
var (
	// ErrUnsupportedContentType is set when the response is not an HTML or text document.
	ErrUnsupportedContentType = errors.New("unsupported content type")

	// ErrEmptyBody is set when a successful response carried no content.
	ErrEmptyBody = errors.New("empty response body")

	// ErrTooManyRedirects is set when the redirect hop limit was reached.
	ErrTooManyRedirects = errors.New("too many redirects")
)

// StatusError reports a non-2xx/3xx HTTP status.
type StatusError struct {
	Code int
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d %s", e.Code, http.StatusText(e.Code))
}

// Transient reports whether the status is worth retrying.
func (e *StatusError) Transient() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= http.StatusInternalServerError
}

// Fetcher retrieves pages over HTTP. A Fetcher owns its connection pool and
// is meant to live for a single pipeline run; call Close when the run ends.
// It is safe for concurrent use.
type Fetcher struct {
	client       *http.Client
	userAgent    string
	maxBodySize  int64
	maxRedirects int
	policy       retry.Policy
	headers      map[string]string
	cookie       string
	logger       *slog.Logger
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) FetcherOption {
	return func(f *Fetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithMaxBodySize limits how many bytes of a response body are read.
func WithMaxBodySize(size int64) FetcherOption {
	return func(f *Fetcher) {
		if size > 0 {
			f.maxBodySize = size
		}
	}
}

// WithMaxRedirects sets the redirect hop limit.
func WithMaxRedirects(n int) FetcherOption {
	return func(f *Fetcher) {
		if n >= 0 {
			f.maxRedirects = n
		}
	}
}

// WithRetryPolicy sets the retry policy for transient failures.
func WithRetryPolicy(p retry.Policy) FetcherOption {
	return func(f *Fetcher) {
		f.policy = p
	}
}

// WithHeaders adds headers to every request.
func WithHeaders(headers map[string]string) FetcherOption {
	return func(f *Fetcher) {
		for k, v := range headers {
			f.headers[k] = v
		}
	}
}

// WithCookie sets the Cookie header for every request.
func WithCookie(cookie string) FetcherOption {
	return func(f *Fetcher) {
		f.cookie = cookie
	}
}

// WithHTTPClient replaces the default client. The client is copied so its
// redirect policy can be set without affecting the caller's value.
func WithHTTPClient(client *http.Client) FetcherOption {
	return func(f *Fetcher) {
		if client != nil {
			c := *client
			f.client = &c
		}
	}
}

// WithFetcherLogger sets the logger.
func WithFetcherLogger(logger *slog.Logger) FetcherOption {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewFetcher creates a Fetcher with its own transport.
func NewFetcher(opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		userAgent:    config.DefaultUserAgent,
		maxBodySize:  config.DefaultMaxBodySize,
		maxRedirects: config.DefaultMaxRedirects,
		policy:       retry.DefaultPolicy(),
		headers:      make(map[string]string),
		logger:       slog.Default(),
	}

	for _, opt := range opts {
		opt(f)
	}

	if f.client == nil {
		f.client = &http.Client{Transport: newTransport()}
	}
	f.client.CheckRedirect = f.checkRedirect

	return f
}

func newTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
		MaxIdleConns:          32,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       30 * time.Second,
	}
}

func (f *Fetcher) checkRedirect(_ *http.Request, via []*http.Request) error {
	if len(via) > f.maxRedirects {
		return fmt.Errorf("%w: stopped after %d hops", ErrTooManyRedirects, f.maxRedirects)
	}
	return nil
}

// Close releases idle connections held by the fetcher.
func (f *Fetcher) Close() {
	f.client.CloseIdleConnections()
}

// UserAgent returns the User-Agent sent with requests.
func (f *Fetcher) UserAgent() string {
	return f.userAgent
}

// Fetch performs a GET for pageURL. Each attempt is bounded by timeout;
// transient failures are retried with backoff. Fetch never returns an error:
// failures are reported through FetchResult.Err with RawContent left empty.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string, timeout time.Duration) *model.FetchResult {
	start := time.Now()

	var last response
	attempts, err := retry.Do(ctx, f.policy, IsTransient, func(ctx context.Context) error {
		var err error
		last, err = f.fetchOnce(ctx, pageURL, timeout)
		return err
	})

	result := &model.FetchResult{
		URL:         pageURL,
		FinalURL:    last.finalURL,
		StatusCode:  last.statusCode,
		ContentType: last.contentType,
		Duration:    time.Since(start),
		Attempts:    attempts,
	}
	if result.FinalURL == "" {
		result.FinalURL = pageURL
	}

	if err != nil {
		result.Err = err
		f.logger.Debug("fetch failed",
			"url", pageURL,
			"status", last.statusCode,
			"attempts", attempts,
			"error", err,
		)
		return result
	}

	result.RawContent = last.body
	f.logger.Debug("fetched page",
		"url", pageURL,
		"final_url", result.FinalURL,
		"status", result.StatusCode,
		"bytes", len(last.body),
		"attempts", attempts,
		"duration", result.Duration,
	)
	return result
}

// response is the outcome of one HTTP attempt.
type response struct {
	finalURL    string
	statusCode  int
	contentType string
	body        []byte
}

func (f *Fetcher) fetchOnce(ctx context.Context, pageURL string, timeout time.Duration) (response, error) {
	var out response

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return out, err
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	for k, v := range f.headers {
		req.Header.Set(k, v)
	}
	if f.cookie != "" {
		req.Header.Set("Cookie", f.cookie)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return out, err
	}
	defer resp.Body.Close()

	out.finalURL = resp.Request.URL.String()
	out.statusCode = resp.StatusCode
	out.contentType = mediaType(resp.Header.Get("Content-Type"))

	if resp.StatusCode >= http.StatusBadRequest {
		// Drain a little so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return out, &StatusError{Code: resp.StatusCode}
	}

	if !acceptableContentType(out.contentType) {
		return out, fmt.Errorf("%w: %s", ErrUnsupportedContentType, out.contentType)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		return out, err
	}
	if len(body) == 0 {
		return out, ErrEmptyBody
	}
	out.body = body

	return out, nil
}

func mediaType(header string) string {
	if header == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(header)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.Split(header, ";")[0]))
	}
	return mt
}

func acceptableContentType(mt string) bool {
	return mt == "" ||
		strings.HasPrefix(mt, "text/") ||
		strings.Contains(mt, "html") ||
		strings.HasSuffix(mt, "xml")
}

// IsTransient reports whether a fetch error is worth retrying:
// timeouts, connection resets, 429 and 5xx statuses.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Transient()
	}

	return IsTimeout(err) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET)
}

// IsTimeout reports whether err was caused by a deadline.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
