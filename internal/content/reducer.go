package content

import (
	"bytes"
	"fmt"
	"html"
	"log/slog"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"github.com/promisingcoder/decision-scraper/internal/config"
	"github.com/promisingcoder/decision-scraper/internal/model"
)

// removedSelector lists elements dropped before conversion.
const removedSelector = "script, style, noscript, template, svg, iframe, nav, footer, form, aside"

// contactHeading introduces contact details rescued from removed blocks.
const contactHeading = "## Contact details"

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)

	// Go regexp has no backreferences, so each raw-text element gets its own pattern.
	rawTextPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?is)<script\b.*?</script\s*>`),
		regexp.MustCompile(`(?is)<style\b.*?</style\s*>`),
		regexp.MustCompile(`(?is)<noscript\b.*?</noscript\s*>`),
		regexp.MustCompile(`(?is)<template\b.*?</template\s*>`),
		regexp.MustCompile(`(?s)<!--.*?-->`),
	}
	tagPattern = regexp.MustCompile(`(?s)<[^>]*>`)

	spaceRun   = regexp.MustCompile(`[ \t\f\v\x{00a0}]+`)
	blankLines = regexp.MustCompile(`\n{3,}`)
)

// Reducer condenses raw HTML into text small enough for entity extraction.
// It holds no mutable state and is safe for concurrent use.
type Reducer struct {
	charBudget int
	logger     *slog.Logger
}

// Option configures a Reducer.
type Option func(*Reducer)

// WithCharBudget sets the maximum length of reduced text in characters.
func WithCharBudget(chars int) Option {
	return func(r *Reducer) {
		if chars > 0 {
			r.charBudget = chars
		}
	}
}

// WithTokenBudget sets the budget in tokens, at four characters per token.
func WithTokenBudget(tokens int) Option {
	return WithCharBudget(tokens * config.CharsPerToken)
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reducer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewReducer creates a Reducer.
func NewReducer(opts ...Option) *Reducer {
	r := &Reducer{
		charBudget: config.DefaultTokenBudget * config.CharsPerToken,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CharBudget returns the configured character budget.
func (r *Reducer) CharBudget() int {
	return r.charBudget
}

// Reduce converts raw page content to condensed Markdown. It never fails:
// when structured parsing or conversion breaks, markup is stripped instead.
// The same input always yields the same output.
func (r *Reducer) Reduce(sourceURL string, raw []byte) model.ReducedContent {
	out := model.ReducedContent{SourceURL: sourceURL}
	if len(bytes.TrimSpace(raw)) == 0 {
		return out
	}

	body, contacts, title, err := r.convert(raw)
	if err != nil {
		r.logger.Debug("falling back to tag stripping", "url", sourceURL, "error", err)
		body = StripTags(string(raw))
		contacts = nil
	}
	out.Title = title

	if article, err := readability.FromReader(bytes.NewReader(raw), parseURL(sourceURL)); err == nil {
		if t := collapseLine(article.Title); t != "" {
			out.Title = t
		}
		out.SiteName = collapseLine(article.SiteName)
	}

	body = collapseWhitespace(body)
	section := contactSection(contacts, body)

	budget := r.charBudget
	if section != "" {
		budget -= utf8.RuneCountInString(section) + 2
	}
	if budget <= 0 {
		// The contact section alone does not fit; cut everything together.
		body, section = joinSection(body, section), ""
		budget = r.charBudget
	}

	body, out.Truncated = truncate(body, budget)
	out.Text = joinSection(body, section)

	return out
}

// convert removes boilerplate elements, rescues contact links found inside
// them and renders the remaining document as Markdown.
func (r *Reducer) convert(raw []byte) (markdown string, contacts []string, title string, err error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return "", nil, "", fmt.Errorf("parse html: %w", err)
	}

	title = collapseLine(doc.Find("title").First().Text())

	removed := doc.Find(removedSelector)
	contacts = collectContacts(removed)
	removed.Remove()
	doc.Find("head").Remove()

	page, err := doc.Html()
	if err != nil {
		return "", nil, title, fmt.Errorf("render html: %w", err)
	}

	markdown, err = htmltomarkdown.ConvertString(page)
	if err != nil {
		return "", nil, title, fmt.Errorf("convert to markdown: %w", err)
	}

	return markdown, contacts, title, nil
}

// collectContacts gathers mailto, tel and LinkedIn links, plus plain-text
// email addresses, from a selection.
func collectContacts(sel *goquery.Selection) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" || seen[strings.ToLower(s)] {
			return
		}
		seen[strings.ToLower(s)] = true
		out = append(out, s)
	}

	sel.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		href = strings.TrimSpace(href)
		lower := strings.ToLower(href)
		label := collapseLine(a.Text())

		switch {
		case strings.HasPrefix(lower, "mailto:"):
			addr := strings.SplitN(href[len("mailto:"):], "?", 2)[0]
			add(labelled("Email", label, addr))
		case strings.HasPrefix(lower, "tel:"):
			add(labelled("Phone", label, href[len("tel:"):]))
		case strings.Contains(lower, "linkedin.com/"):
			add(labelled("LinkedIn", label, href))
		}
	})

	sel.Each(func(_ int, s *goquery.Selection) {
		for _, addr := range emailPattern.FindAllString(s.Text(), -1) {
			if !containsFold(out, addr) {
				add("Email: " + addr)
			}
		}
	})

	return out
}

func labelled(kind, label, value string) string {
	value, _ = url.PathUnescape(value)
	if label == "" || strings.EqualFold(label, value) {
		return kind + ": " + value
	}
	return fmt.Sprintf("%s: %s (%s)", kind, value, label)
}

func containsFold(list []string, s string) bool {
	s = strings.ToLower(s)
	for _, item := range list {
		if strings.Contains(strings.ToLower(item), s) {
			return true
		}
	}
	return false
}

// contactSection renders rescued contact details that the body does not
// already mention. Entries are sorted so the output is stable.
func contactSection(contacts []string, body string) string {
	if len(contacts) == 0 {
		return ""
	}

	lowerBody := strings.ToLower(body)
	var lines []string
	for _, c := range contacts {
		value := c[strings.Index(c, ": ")+2:]
		if i := strings.Index(value, " ("); i > 0 {
			value = value[:i]
		}
		if strings.Contains(lowerBody, strings.ToLower(value)) {
			continue
		}
		lines = append(lines, "- "+c)
	}
	if len(lines) == 0 {
		return ""
	}
	sort.Strings(lines)

	return contactHeading + "\n\n" + strings.Join(lines, "\n")
}

func joinSection(body, section string) string {
	switch {
	case section == "":
		return body
	case body == "":
		return section
	default:
		return body + "\n\n" + section
	}
}

// truncate cuts s to at most limit runes, preferring the last line break and
// then the last word break in the final fifth of the allowed text.
func truncate(s string, limit int) (string, bool) {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s, false
	}

	cut := s
	n := 0
	for i := range s {
		if n == limit {
			cut = s[:i]
			break
		}
		n++
	}

	floor := len(cut) * 4 / 5
	if i := strings.LastIndexByte(cut, '\n'); i > floor {
		cut = cut[:i]
	} else if i := strings.LastIndexAny(cut, " \t"); i > floor {
		cut = cut[:i]
	}

	return strings.TrimRight(cut, " \t\n"), true
}

// StripTags removes all markup from s and returns whitespace-collapsed text.
func StripTags(s string) string {
	for _, re := range rawTextPatterns {
		s = re.ReplaceAllString(s, " ")
	}
	s = tagPattern.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	return collapseWhitespace(s)
}

// collapseWhitespace squeezes horizontal whitespace, trims every line and
// allows at most one blank line in a row.
func collapseWhitespace(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(spaceRun.ReplaceAllString(line, " "))
	}
	s = strings.Join(lines, "\n")

	return strings.TrimSpace(blankLines.ReplaceAllString(s, "\n\n"))
}

func collapseLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func parseURL(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		return &url.URL{}
	}
	return u
}
