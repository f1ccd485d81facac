package crawler

import (
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// Location is the structural region of the page a link was found in.
type Location int

const (
	// LocationBody is main page content.
	LocationBody Location = iota
	// LocationNav is a <nav> element or role="navigation".
	LocationNav
	// LocationHeader is a <header> element.
	LocationHeader
	// LocationFooter is a <footer> element.
	LocationFooter
)

// String returns the lowercase region name.
func (l Location) String() string {
	switch l {
	case LocationNav:
		return "navigation"
	case LocationHeader:
		return "header"
	case LocationFooter:
		return "footer"
	default:
		return "body"
	}
}

// Link is an anchor found on a page.
type Link struct {
	// URL is absolute, resolved against the page's base URL.
	URL string

	// Text is the visible anchor text, whitespace-collapsed. Falls back to
	// the title or aria-label attribute, or the alt text of an image inside
	// the link.
	Text string

	// Location is the page region containing the link.
	Location Location
}

// ParseResult contains what the link discoverer needs from an HTML page.
type ParseResult struct {
	// Title is the text of the <title> element.
	Title string

	// Links are all http(s) anchors in document order.
	Links []Link
}

// Parser extracts links from HTML. It is immutable and safe for concurrent use.
type Parser struct {
	baseURL *url.URL
}

// NewParser creates a new HTML parser with the given base URL.
// The base URL is used to resolve relative links.
func NewParser(baseURL string) (*Parser, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	return &Parser{baseURL: u}, nil
}

// Parse parses HTML content and collects the title and links.
// A <base href> element changes the resolution base for the rest of the document.
func (p *Parser) Parse(content io.Reader) (*ParseResult, error) {
	doc, err := html.Parse(content)
	if err != nil {
		return nil, err
	}

	result := &ParseResult{Links: make([]Link, 0)}
	base := p.baseURL

	var walk func(n *html.Node, loc Location)
	walk = func(n *html.Node, loc Location) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if result.Title == "" {
					result.Title = collapse(textOf(n))
				}
			case "base":
				if href := getAttr(n, "href"); href != "" {
					if u, err := url.Parse(strings.TrimSpace(href)); err == nil {
						base = base.ResolveReference(u)
					}
				}
			case "nav":
				loc = LocationNav
			case "header":
				if loc == LocationBody {
					loc = LocationHeader
				}
			case "footer":
				loc = LocationFooter
			case "a":
				if link, ok := p.linkFrom(n, base, loc); ok {
					result.Links = append(result.Links, link)
				}
			case "script", "style", "noscript", "template":
				return
			}
			if strings.EqualFold(getAttr(n, "role"), "navigation") {
				loc = LocationNav
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, loc)
		}
	}

	walk(doc, LocationBody)

	return result, nil
}

func (p *Parser) linkFrom(n *html.Node, base *url.URL, loc Location) (Link, bool) {
	resolved := resolveURL(base, getAttr(n, "href"))
	if resolved == "" {
		return Link{}, false
	}

	text := collapse(textOf(n))
	if text == "" {
		text = collapse(getAttr(n, "title"))
	}
	if text == "" {
		text = collapse(getAttr(n, "aria-label"))
	}
	if text == "" {
		text = collapse(imageAlt(n))
	}

	return Link{URL: resolved, Text: text, Location: loc}, true
}

// resolveURL resolves href against base. It returns "" for non-navigational
// links (javascript:, mailto:, tel:, data:, bare fragments) and non-HTTP schemes.
func resolveURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}

	lower := strings.ToLower(href)
	for _, prefix := range []string{"javascript:", "mailto:", "tel:", "data:", "sms:", "fax:"} {
		if strings.HasPrefix(lower, prefix) {
			return ""
		}
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}

	resolved := base.ResolveReference(u)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	return resolved.String()
}

// textOf concatenates the text nodes below n.
func textOf(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func imageAlt(n *html.Node) string {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == "img" {
			if alt := getAttr(c, "alt"); alt != "" {
				return alt
			}
		}
		if alt := imageAlt(c); alt != "" {
			return alt
		}
	}
	return ""
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
