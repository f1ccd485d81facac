package model

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// ParseRootURL validates that raw is a well-formed absolute HTTP(S) URL.
// The returned error is a *FatalError of kind KindInvalidURL.
func ParseRootURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, NewFatalError(KindInvalidURL, raw, fmt.Errorf("%w: empty URL", ErrInvalidURL))
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, NewFatalError(KindInvalidURL, raw, fmt.Errorf("%w: %w", ErrInvalidURL, err))
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, NewFatalError(KindInvalidURL, raw,
			fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme))
	}
	if u.Hostname() == "" {
		return nil, NewFatalError(KindInvalidURL, raw, fmt.Errorf("%w: missing host", ErrInvalidURL))
	}

	u.Scheme = scheme
	return u, nil
}

// NormalizeURL returns a canonical form of u for deduplication:
// lowercase scheme and host, no fragment, no query, no trailing slash
// except for the root path.
func NormalizeURL(u *url.URL) string {
	n := *u
	n.Scheme = strings.ToLower(n.Scheme)
	n.Host = strings.ToLower(n.Host)
	n.Fragment = ""
	n.RawFragment = ""
	n.RawQuery = ""
	n.ForceQuery = false
	n.User = nil

	// Drop default ports.
	if port := n.Port(); (n.Scheme == "http" && port == "80") || (n.Scheme == "https" && port == "443") {
		n.Host = n.Hostname()
	}

	path := strings.TrimRight(n.Path, "/")
	if path == "" {
		path = "/"
	}
	n.Path = path
	n.RawPath = ""

	return n.String()
}

// RegistrableDomain returns the registrable domain (eTLD+1) of host.
// IP addresses, single-label hosts such as localhost, and hosts the public
// suffix list cannot resolve are returned unchanged (lowercased, port removed).
func RegistrableDomain(host string) string {
	h := strings.ToLower(strings.TrimSuffix(host, "."))
	if hostOnly, _, err := net.SplitHostPort(h); err == nil {
		h = hostOnly
	}
	h = strings.Trim(h, "[]")
	if h == "" {
		return ""
	}
	if net.ParseIP(h) != nil || !strings.Contains(h, ".") {
		return h
	}

	domain, err := publicsuffix.EffectiveTLDPlusOne(h)
	if err != nil {
		return h
	}
	return domain
}

// DomainOf returns the registrable domain of a raw URL, or "" if it cannot be parsed.
func DomainOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return RegistrableDomain(u.Host)
}
