package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/promisingcoder/decision-scraper/internal/model"
	"github.com/promisingcoder/decision-scraper/internal/retry"
	"github.com/temoto/robotstxt"
)

// noWait retries immediately so tests stay fast.
var noWait = retry.Policy{MaxRetries: 2}

func htmlHandler(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, body)
	}
}

// TestFetcher tests HTTP fetching, retries and failure reporting.
func TestFetcher(t *testing.T) {
	t.Parallel()

	t.Run("fetches html page", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(htmlHandler("<html><body>Hello</body></html>"))
		defer srv.Close()

		f := NewFetcher(WithRetryPolicy(noWait))
		defer f.Close()

		res := f.Fetch(context.Background(), srv.URL, time.Second)
		if !res.OK() {
			t.Fatalf("expected successful fetch, got error: %v", res.Err)
		}
		if res.StatusCode != http.StatusOK {
			t.Errorf("expected status 200, got %d", res.StatusCode)
		}
		if res.Attempts != 1 {
			t.Errorf("expected 1 attempt, got %d", res.Attempts)
		}
		if res.ContentType != "text/html" {
			t.Errorf("expected content type text/html, got %q", res.ContentType)
		}
		if !strings.Contains(string(res.RawContent), "Hello") {
			t.Errorf("unexpected body %q", res.RawContent)
		}
	})

	t.Run("retries transient server errors", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, "<p>third time</p>")
		}))
		defer srv.Close()

		f := NewFetcher(WithRetryPolicy(noWait))
		defer f.Close()

		res := f.Fetch(context.Background(), srv.URL, time.Second)
		if !res.OK() {
			t.Fatalf("expected success after retries, got %v", res.Err)
		}
		if res.Attempts != 3 {
			t.Errorf("expected 3 attempts, got %d", res.Attempts)
		}
	})

	t.Run("gives up after retries are exhausted", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		f := NewFetcher(WithRetryPolicy(noWait))
		defer f.Close()

		res := f.Fetch(context.Background(), srv.URL, time.Second)
		if res.OK() {
			t.Fatal("expected failure")
		}
		if !errors.Is(res.Err, retry.ErrExhausted) {
			t.Errorf("expected ErrExhausted, got %v", res.Err)
		}
		if len(res.RawContent) != 0 {
			t.Error("failed fetch must not carry content")
		}
	})

	t.Run("does not retry client errors", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			http.NotFound(w, nil)
		}))
		defer srv.Close()

		f := NewFetcher(WithRetryPolicy(noWait))
		defer f.Close()

		res := f.Fetch(context.Background(), srv.URL, time.Second)
		var statusErr *StatusError
		if !errors.As(res.Err, &statusErr) || statusErr.Code != http.StatusNotFound {
			t.Fatalf("expected 404 StatusError, got %v", res.Err)
		}
		if res.StatusCode != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", res.StatusCode)
		}
		if calls.Load() != 1 {
			t.Errorf("expected 1 request, got %d", calls.Load())
		}
	})

	t.Run("rejects unsupported content type", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte{0x89, 0x50, 0x4e, 0x47})
		}))
		defer srv.Close()

		f := NewFetcher(WithRetryPolicy(noWait))
		defer f.Close()

		res := f.Fetch(context.Background(), srv.URL, time.Second)
		if !errors.Is(res.Err, ErrUnsupportedContentType) {
			t.Errorf("expected ErrUnsupportedContentType, got %v", res.Err)
		}
	})

	t.Run("reports empty body", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html")
		}))
		defer srv.Close()

		f := NewFetcher(WithRetryPolicy(noWait))
		defer f.Close()

		res := f.Fetch(context.Background(), srv.URL, time.Second)
		if !errors.Is(res.Err, ErrEmptyBody) {
			t.Errorf("expected ErrEmptyBody, got %v", res.Err)
		}
	})

	t.Run("caps body size", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(htmlHandler(strings.Repeat("a", 100)))
		defer srv.Close()

		f := NewFetcher(WithRetryPolicy(noWait), WithMaxBodySize(10))
		defer f.Close()

		res := f.Fetch(context.Background(), srv.URL, time.Second)
		if !res.OK() {
			t.Fatalf("unexpected error: %v", res.Err)
		}
		if len(res.RawContent) != 10 {
			t.Errorf("expected 10 bytes, got %d", len(res.RawContent))
		}
	})

	t.Run("follows redirects and records final URL", func(t *testing.T) {
		t.Parallel()

		mux := http.NewServeMux()
		mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/new", http.StatusMovedPermanently)
		})
		mux.HandleFunc("/new", htmlHandler("<p>moved</p>"))
		srv := httptest.NewServer(mux)
		defer srv.Close()

		f := NewFetcher(WithRetryPolicy(noWait))
		defer f.Close()

		res := f.Fetch(context.Background(), srv.URL+"/old", time.Second)
		if !res.OK() {
			t.Fatalf("unexpected error: %v", res.Err)
		}
		if res.URL != srv.URL+"/old" {
			t.Errorf("expected requested URL to be kept, got %q", res.URL)
		}
		if res.FinalURL != srv.URL+"/new" {
			t.Errorf("expected final URL %s/new, got %q", srv.URL, res.FinalURL)
		}
		if res.BaseURL() != res.FinalURL {
			t.Errorf("expected base URL to be the final URL")
		}
	})

	t.Run("stops at redirect limit", func(t *testing.T) {
		t.Parallel()

		var hops atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			n := hops.Add(1)
			http.Redirect(w, r, fmt.Sprintf("/hop/%d", n), http.StatusFound)
		}))
		defer srv.Close()

		f := NewFetcher(WithRetryPolicy(noWait), WithMaxRedirects(2))
		defer f.Close()

		res := f.Fetch(context.Background(), srv.URL, time.Second)
		if !errors.Is(res.Err, ErrTooManyRedirects) {
			t.Errorf("expected ErrTooManyRedirects, got %v", res.Err)
		}
		if res.Attempts != 1 {
			t.Errorf("redirect loops must not be retried, got %d attempts", res.Attempts)
		}
	})

	t.Run("times out slow pages", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}))
		defer srv.Close()

		f := NewFetcher(WithRetryPolicy(retry.Policy{}))
		defer f.Close()

		res := f.Fetch(context.Background(), srv.URL, 50*time.Millisecond)
		if res.OK() {
			t.Fatal("expected timeout")
		}
		if !IsTimeout(res.Err) {
			t.Errorf("expected timeout error, got %v", res.Err)
		}
		if res.StatusCode != 0 {
			t.Errorf("expected no status, got %d", res.StatusCode)
		}
	})

	t.Run("sends configured headers", func(t *testing.T) {
		t.Parallel()

		got := make(chan http.Header, 1)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got <- r.Header.Clone()
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, "ok")
		}))
		defer srv.Close()

		f := NewFetcher(
			WithRetryPolicy(noWait),
			WithUserAgent("test-agent/1.0"),
			WithCookie("session=abc"),
			WithHeaders(map[string]string{"X-Custom": "value"}),
		)
		defer f.Close()

		res := f.Fetch(context.Background(), srv.URL, time.Second)
		if !res.OK() {
			t.Fatalf("unexpected error: %v", res.Err)
		}

		h := <-got
		if ua := h.Get("User-Agent"); ua != "test-agent/1.0" {
			t.Errorf("expected user agent test-agent/1.0, got %q", ua)
		}
		if cookie := h.Get("Cookie"); cookie != "session=abc" {
			t.Errorf("expected cookie session=abc, got %q", cookie)
		}
		if custom := h.Get("X-Custom"); custom != "value" {
			t.Errorf("expected X-Custom header, got %q", custom)
		}
	})

	t.Run("unreachable host", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(htmlHandler("x"))
		addr := srv.URL
		srv.Close()

		f := NewFetcher(WithRetryPolicy(retry.Policy{}))
		defer f.Close()

		res := f.Fetch(context.Background(), addr, time.Second)
		if res.Err == nil {
			t.Fatal("expected connection error")
		}
		if res.Attempts != 1 {
			t.Errorf("expected 1 attempt, got %d", res.Attempts)
		}
	})
}

// TestIsTransient tests retry classification of fetch errors.
func TestIsTransient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"429", &StatusError{Code: http.StatusTooManyRequests}, true},
		{"500", &StatusError{Code: http.StatusInternalServerError}, true},
		{"502 wrapped", fmt.Errorf("get: %w", &StatusError{Code: http.StatusBadGateway}), true},
		{"404", &StatusError{Code: http.StatusNotFound}, false},
		{"403", &StatusError{Code: http.StatusForbidden}, false},
		{"deadline", context.DeadlineExceeded, true},
		{"url timeout", &url.Error{Op: "Get", URL: "http://x", Err: context.DeadlineExceeded}, true},
		{"content type", ErrUnsupportedContentType, false},
		{"canceled", context.Canceled, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

// TestParser tests HTML link extraction.
func TestParser(t *testing.T) {
	t.Parallel()

	parse := func(t *testing.T, base, doc string) *ParseResult {
		t.Helper()
		parser, err := NewParser(base)
		if err != nil {
			t.Fatalf("failed to create parser: %v", err)
		}
		result, err := parser.Parse(strings.NewReader(doc))
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}
		return result
	}

	t.Run("extracts title", func(t *testing.T) {
		t.Parallel()

		result := parse(t, "https://example.com/", `<html><head><title>  Acme
			Roofing </title></head><body></body></html>`)
		if result.Title != "Acme Roofing" {
			t.Errorf("expected title 'Acme Roofing', got %q", result.Title)
		}
	})

	t.Run("classifies link locations", func(t *testing.T) {
		t.Parallel()

		result := parse(t, "https://example.com/", `<html><body>
			<header><a href="/h">Header</a><nav><a href="/n">Nav</a></nav></header>
			<div role="navigation"><a href="/r">Role</a></div>
			<main><a href="/b">Body</a></main>
			<footer><a href="/f">Footer</a></footer>
		</body></html>`)

		want := map[string]Location{
			"https://example.com/h": LocationHeader,
			"https://example.com/n": LocationNav,
			"https://example.com/r": LocationNav,
			"https://example.com/b": LocationBody,
			"https://example.com/f": LocationFooter,
		}
		if len(result.Links) != len(want) {
			t.Fatalf("expected %d links, got %d: %v", len(want), len(result.Links), result.Links)
		}
		for _, link := range result.Links {
			if want[link.URL] != link.Location {
				t.Errorf("link %s: expected %s, got %s", link.URL, want[link.URL], link.Location)
			}
		}
	})

	t.Run("resolves relative links against base element", func(t *testing.T) {
		t.Parallel()

		result := parse(t, "https://example.com/a/page", `<html><head>
			<base href="https://example.com/site/"></head>
			<body><a href="team">Team</a></body></html>`)
		if len(result.Links) != 1 || result.Links[0].URL != "https://example.com/site/team" {
			t.Errorf("expected base-relative link, got %v", result.Links)
		}
	})

	t.Run("skips non navigational links", func(t *testing.T) {
		t.Parallel()

		result := parse(t, "https://example.com/", `<html><body>
			<a href="mailto:ceo@example.com">Email</a>
			<a href="tel:+15551234567">Call</a>
			<a href="javascript:void(0)">JS</a>
			<a href="#top">Top</a>
			<a href="ftp://example.com/file">FTP</a>
			<a href="">Empty</a>
			<a href="/about">About</a>
		</body></html>`)
		if len(result.Links) != 1 || result.Links[0].URL != "https://example.com/about" {
			t.Errorf("expected only /about, got %v", result.Links)
		}
	})

	t.Run("falls back to attributes for anchor text", func(t *testing.T) {
		t.Parallel()

		result := parse(t, "https://example.com/", `<html><body>
			<a href="/a" title="Our Team"></a>
			<a href="/b" aria-label="Leadership"></a>
			<a href="/c"><img src="x.png" alt="Meet the Owner"></a>
		</body></html>`)

		want := []string{"Our Team", "Leadership", "Meet the Owner"}
		if len(result.Links) != len(want) {
			t.Fatalf("expected %d links, got %d", len(want), len(result.Links))
		}
		for i, link := range result.Links {
			if link.Text != want[i] {
				t.Errorf("link %d: expected text %q, got %q", i, want[i], link.Text)
			}
		}
	})

	t.Run("ignores links inside scripts", func(t *testing.T) {
		t.Parallel()

		result := parse(t, "https://example.com/", `<html><body>
			<noscript><a href="/noscript">No</a></noscript>
			<template><a href="/tpl">Tpl</a></template>
		</body></html>`)
		if len(result.Links) != 0 {
			t.Errorf("expected no links, got %v", result.Links)
		}
	})
}

func rootPage(body string) *model.FetchResult {
	return &model.FetchResult{
		URL:         "https://www.example.com/",
		FinalURL:    "https://www.example.com/",
		StatusCode:  http.StatusOK,
		ContentType: "text/html",
		RawContent:  []byte(body),
	}
}

const discoverPage = `<html><body>
<nav>
	<a href="/about">About Us</a>
	<a href="/contact">Contact</a>
</nav>
<a href="/team/leadership">Our Leadership</a>
<a href="/blog/post-1">Blog</a>
<a href="https://other.com/about">Partner</a>
<a href="https://shop.example.com/team">Team</a>
<a href="/">Home</a>
<a href="/about#history">About again</a>
<a href="/files/brochure.pdf">Brochure</a>
<footer><a href="/legal">Privacy Policy</a></footer>
</body></html>`

// TestDiscoverer tests candidate selection and ordering.
func TestDiscoverer(t *testing.T) {
	t.Parallel()

	t.Run("ranks same-site candidates", func(t *testing.T) {
		t.Parallel()

		got := NewDiscoverer().Discover(rootPage(discoverPage))

		want := []string{
			"https://www.example.com/about",
			"https://shop.example.com/team",
			"https://www.example.com/team/leadership",
			"https://www.example.com/contact",
		}
		if len(got) != len(want) {
			t.Fatalf("expected %d candidates, got %d: %+v", len(want), len(got), got)
		}
		for i, c := range got {
			if c.URL != want[i] {
				t.Errorf("candidate %d: expected %s, got %s", i, want[i], c.URL)
			}
			if c.Rank != i+1 {
				t.Errorf("candidate %d: expected rank %d, got %d", i, i+1, c.Rank)
			}
			if c.RelevanceScore <= 0 || c.RelevanceScore > 1 {
				t.Errorf("candidate %d: score %v out of range", i, c.RelevanceScore)
			}
			if c.Reason == "" {
				t.Errorf("candidate %d: missing reason", i)
			}
		}
		for i := 1; i < len(got); i++ {
			if got[i].RelevanceScore > got[i-1].RelevanceScore {
				t.Errorf("candidates not ordered by score: %+v", got)
			}
		}
	})

	t.Run("is deterministic", func(t *testing.T) {
		t.Parallel()

		d := NewDiscoverer()
		first := d.Discover(rootPage(discoverPage))
		second := d.Discover(rootPage(discoverPage))
		if fmt.Sprint(first) != fmt.Sprint(second) {
			t.Errorf("expected identical output, got %v and %v", first, second)
		}
	})

	t.Run("failed fetch yields nothing", func(t *testing.T) {
		t.Parallel()

		res := rootPage("")
		res.Err = errors.New("boom")
		if got := NewDiscoverer().Discover(res); len(got) != 0 {
			t.Errorf("expected no candidates, got %v", got)
		}
	})

	t.Run("caps candidate count", func(t *testing.T) {
		t.Parallel()

		got := NewDiscoverer(WithMaxCandidates(2)).Discover(rootPage(discoverPage))
		if len(got) != 2 {
			t.Fatalf("expected 2 candidates, got %d", len(got))
		}
		if got[0].URL != "https://www.example.com/about" {
			t.Errorf("expected best candidate first, got %s", got[0].URL)
		}
	})

	t.Run("keeps shallow pages without keywords last", func(t *testing.T) {
		t.Parallel()

		got := NewDiscoverer().Discover(rootPage(`<html><body>
			<a href="/services">Services</a>
			<a href="/services/roofing/metal">Metal roofs</a>
			<a href="/our-team">Team</a>
		</body></html>`))
		if len(got) != 2 {
			t.Fatalf("expected 2 candidates, got %+v", got)
		}
		if got[0].URL != "https://www.example.com/our-team" || got[1].URL != "https://www.example.com/services" {
			t.Errorf("unexpected order: %+v", got)
		}
	})

	t.Run("honors robots group", func(t *testing.T) {
		t.Parallel()

		data, err := robotstxt.FromString("User-agent: *\nDisallow: /about\n")
		if err != nil {
			t.Fatalf("failed to parse robots: %v", err)
		}

		got := NewDiscoverer(WithRobots(data.FindGroup("test-agent"))).Discover(rootPage(discoverPage))
		for _, c := range got {
			if strings.HasSuffix(c.URL, "/about") {
				t.Errorf("expected /about to be disallowed, got %+v", got)
			}
		}
	})

	t.Run("honors site patterns", func(t *testing.T) {
		t.Parallel()

		got := NewDiscoverer(WithIgnorePatterns([]string{"/contact"})).Discover(rootPage(discoverPage))
		for _, c := range got {
			if strings.HasSuffix(c.URL, "/contact") {
				t.Errorf("expected /contact to be ignored, got %+v", got)
			}
		}

		got = NewDiscoverer(WithFollowPatterns([]string{"/team/*"})).Discover(rootPage(discoverPage))
		if len(got) != 2 {
			t.Errorf("expected only /team pages, got %+v", got)
		}
	})
}

// TestMatchPattern tests glob matching of URL paths.
func TestMatchPattern(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		pattern string
		path    string
		want    bool
	}{
		{"prefix match", "/team/*", "/team/leadership", true},
		{"prefix exact", "/team/*", "/team", true},
		{"prefix no match", "/team/*", "/about", false},
		{"prefix partial no match", "/team/*", "/teammates", false},
		{"extension", "*.pdf", "/docs/file.pdf", true},
		{"extension no match", "*.pdf", "/docs/file.html", false},
		{"exact match", "/contact", "/contact", true},
		{"exact no match", "/contact", "/contact-us", false},
		{"single char wildcard", "/v?/team", "/v1/team", true},
		{"root path", "/", "/", true},
		{"base name glob", "*staff*", "/about/our-staff", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := matchPattern(tt.pattern, tt.path); got != tt.want {
				t.Errorf("matchPattern(%q, %q) = %v, want %v", tt.pattern, tt.path, got, tt.want)
			}
		})
	}
}

// TestFetchRobots tests loading robots.txt rules.
func TestFetchRobots(t *testing.T) {
	t.Parallel()

	allowed := func(g *robotstxt.Group, p string) bool {
		return g == nil || g.Test(p)
	}

	t.Run("applies disallow rules", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/robots.txt" {
				http.NotFound(w, r)
				return
			}
			w.Header().Set("Content-Type", "text/plain")
			fmt.Fprint(w, "User-agent: *\nDisallow: /private\n")
		}))
		defer srv.Close()

		f := NewFetcher(WithRetryPolicy(noWait))
		defer f.Close()

		root, _ := url.Parse(srv.URL + "/home")
		group := FetchRobots(context.Background(), f, root, time.Second)
		if allowed(group, "/private/team") {
			t.Error("expected /private/team to be disallowed")
		}
		if !allowed(group, "/about") {
			t.Error("expected /about to be allowed")
		}
	})

	t.Run("missing file allows everything", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.NotFoundHandler())
		defer srv.Close()

		f := NewFetcher(WithRetryPolicy(noWait))
		defer f.Close()

		root, _ := url.Parse(srv.URL)
		if group := FetchRobots(context.Background(), f, root, time.Second); !allowed(group, "/team") {
			t.Error("expected everything to be allowed")
		}
	})

	t.Run("server error allows everything", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		f := NewFetcher(WithRetryPolicy(retry.Policy{}))
		defer f.Close()

		root, _ := url.Parse(srv.URL)
		if group := FetchRobots(context.Background(), f, root, time.Second); group != nil {
			t.Errorf("expected nil group, got %+v", group)
		}
	})
}
