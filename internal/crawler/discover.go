package crawler

import (
	"bytes"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"path"
	"sort"
	"strings"

	"github.com/promisingcoder/decision-scraper/internal/config"
	"github.com/promisingcoder/decision-scraper/internal/model"
	"github.com/temoto/robotstxt"
)

// Keyword tokens matched against URL path segments and anchor text.
// A token matches when it starts with a keyword.
var (
	// highKeywords suggest pages that name owners, executives or staff.
	highKeywords = []string{
		"about", "team", "leader", "executive", "management", "staff", "people",
		"founder", "director", "board", "bios", "principal", "partner", "owner",
		"who", "meet", "story", "company", "doctor", "dentist", "provider",
		"attorney", "lawyer", "credential", "impressum", "imprint",
	}

	// mediumKeywords suggest contact pages that may pair names with emails.
	mediumKeywords = []string{
		"contact", "touch", "reach", "review", "testimonial", "warranty", "guarantee",
	}

	// skipTokens mark pages that never list decision-makers.
	skipTokens = map[string]bool{
		"blog": true, "news": true, "press": true, "article": true, "articles": true,
		"post": true, "posts": true, "category": true, "tag": true, "tags": true,
		"cart": true, "shop": true, "store": true, "product": true, "products": true,
		"pricing": true, "faq": true, "faqs": true, "privacy": true, "terms": true,
		"cookie": true, "cookies": true, "sitemap": true, "feed": true, "rss": true,
		"login": true, "signin": true, "signup": true, "register": true, "account": true,
		"checkout": true, "wp": true, "cdn": true, "careers": true, "jobs": true,
	}

	// skipExtensions are non-HTML resources.
	skipExtensions = map[string]bool{
		".pdf": true, ".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".svg": true,
		".webp": true, ".css": true, ".js": true, ".zip": true, ".xml": true, ".ico": true,
		".woff": true, ".woff2": true, ".ttf": true, ".mp4": true, ".mp3": true,
		".doc": true, ".docx": true, ".xls": true, ".xlsx": true,
	}
)

// Score weights. A candidate's score is the sum of the applicable weights,
// clamped to [0,1].
const (
	weightPathHigh   = 0.5
	weightPathMedium = 0.3
	weightTextHigh   = 0.3
	weightTextMedium = 0.2
	weightShallow    = 0.05
	weightNav        = 0.15
	weightHeader     = 0.1
	weightFooter     = 0.05
	depthPenalty     = 0.05
	maxDepthPenalty  = 0.2
)

// Discoverer selects sub-pages likely to name decision-makers.
// Discover is a pure function of the fetched page, so a Discoverer can be
// reused and called concurrently.
type Discoverer struct {
	maxCandidates  int
	robots         *robotstxt.Group
	ignorePatterns []string
	followPatterns []string
	logger         *slog.Logger
}

// DiscovererOption configures a Discoverer.
type DiscovererOption func(*Discoverer)

// WithMaxCandidates caps the number of returned candidates.
func WithMaxCandidates(n int) DiscovererOption {
	return func(d *Discoverer) {
		if n > 0 {
			d.maxCandidates = n
		}
	}
}

// WithRobots drops candidates disallowed by a robots.txt group.
func WithRobots(group *robotstxt.Group) DiscovererOption {
	return func(d *Discoverer) {
		d.robots = group
	}
}

// WithIgnorePatterns drops candidates whose path matches any glob pattern.
func WithIgnorePatterns(patterns []string) DiscovererOption {
	return func(d *Discoverer) {
		d.ignorePatterns = patterns
	}
}

// WithFollowPatterns keeps only candidates whose path matches a glob pattern.
func WithFollowPatterns(patterns []string) DiscovererOption {
	return func(d *Discoverer) {
		d.followPatterns = patterns
	}
}

// WithDiscovererLogger sets the logger.
func WithDiscovererLogger(logger *slog.Logger) DiscovererOption {
	return func(d *Discoverer) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDiscoverer creates a Discoverer.
func NewDiscoverer(opts ...DiscovererOption) *Discoverer {
	d := &Discoverer{
		maxCandidates: config.DefaultMaxCandidates,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Discover returns candidate sub-pages of a fetched root page, ordered by
// descending relevance and then URL. Only links on the root URL's
// registrable domain are returned. A failed fetch yields no candidates.
func (d *Discoverer) Discover(result *model.FetchResult) []model.PageCandidate {
	if !result.OK() || !result.IsHTML() {
		return nil
	}

	root, err := url.Parse(result.URL)
	if err != nil {
		return nil
	}
	rootDomain := model.RegistrableDomain(root.Host)

	parser, err := NewParser(result.BaseURL())
	if err != nil {
		return nil
	}
	parsed, err := parser.Parse(bytes.NewReader(result.RawContent))
	if err != nil {
		d.logger.Debug("link parsing failed", "url", result.URL, "error", err)
		return nil
	}

	exclude := map[string]bool{NormalizeRaw(result.URL): true, NormalizeRaw(result.BaseURL()): true}
	best := make(map[string]model.PageCandidate)

	for _, link := range parsed.Links {
		u, err := url.Parse(link.URL)
		if err != nil {
			continue
		}
		if model.RegistrableDomain(u.Host) != rootDomain {
			continue
		}

		normalized := model.NormalizeURL(u)
		if exclude[normalized] {
			continue
		}
		if !allowedByPatterns(normalized, d.ignorePatterns, d.followPatterns) {
			continue
		}
		if d.robots != nil && !d.robots.Test(pathOf(u)) {
			continue
		}

		score, reason, ok := scoreLink(u, link)
		if !ok {
			continue
		}

		if prev, seen := best[normalized]; seen && prev.RelevanceScore >= score {
			continue
		}
		best[normalized] = model.PageCandidate{URL: normalized, RelevanceScore: score, Reason: reason}
	}

	candidates := make([]model.PageCandidate, 0, len(best))
	for _, c := range best {
		candidates = append(candidates, c)
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].RelevanceScore != candidates[j].RelevanceScore {
			return candidates[i].RelevanceScore > candidates[j].RelevanceScore
		}
		return candidates[i].URL < candidates[j].URL
	})

	if len(candidates) > d.maxCandidates {
		candidates = candidates[:d.maxCandidates]
	}
	for i := range candidates {
		candidates[i].Rank = i + 1
	}

	d.logger.Debug("discovered links",
		"url", result.URL,
		"links", len(parsed.Links),
		"candidates", len(candidates),
	)

	return candidates
}

// NormalizeRaw normalizes a raw URL, returning it unchanged if it cannot be parsed.
func NormalizeRaw(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return model.NormalizeURL(u)
}

// scoreLink computes the relevance of a link. ok is false when the link
// should not be fetched at all.
func scoreLink(u *url.URL, link Link) (float64, string, bool) {
	p := strings.ToLower(pathOf(u))
	if skipExtensions[path.Ext(p)] {
		return 0, "", false
	}

	pathTokens := tokenize(p)
	textTokens := tokenize(strings.ToLower(link.Text))

	var score float64
	var reasons []string

	pathHit, pathLevel := matchKeywords(pathTokens)
	switch pathLevel {
	case levelHigh:
		score += weightPathHigh
		reasons = append(reasons, fmt.Sprintf("path matches %q", pathHit))
	case levelMedium:
		score += weightPathMedium
		reasons = append(reasons, fmt.Sprintf("path matches %q", pathHit))
	}

	if hasSkipToken(pathTokens) {
		return 0, "", false
	}
	if pathLevel == levelNone && hasSkipToken(textTokens) {
		return 0, "", false
	}

	textHit, textLevel := matchKeywords(textTokens)
	switch textLevel {
	case levelHigh:
		score += weightTextHigh
		reasons = append(reasons, fmt.Sprintf("link text matches %q", textHit))
	case levelMedium:
		score += weightTextMedium
		reasons = append(reasons, fmt.Sprintf("link text matches %q", textHit))
	}

	depth := len(pathTokensBySegment(p))
	if score == 0 {
		// Shallow pages without keywords fill any budget left over.
		if depth > 1 {
			return 0, "", false
		}
		score = weightShallow
		reasons = append(reasons, "shallow page")
	}

	switch link.Location {
	case LocationNav:
		score += weightNav
		reasons = append(reasons, "in navigation")
	case LocationHeader:
		score += weightHeader
		reasons = append(reasons, "in header")
	case LocationFooter:
		score += weightFooter
		reasons = append(reasons, "in footer")
	}

	if depth > 1 {
		penalty := math.Min(float64(depth-1)*depthPenalty, maxDepthPenalty)
		score -= penalty
		reasons = append(reasons, fmt.Sprintf("depth %d", depth))
	}

	score = math.Round(math.Max(0, math.Min(1, score))*100) / 100
	if score == 0 {
		return 0, "", false
	}

	return score, strings.Join(reasons, "; "), true
}

type keywordLevel int

const (
	levelNone keywordLevel = iota
	levelMedium
	levelHigh
)

// matchKeywords returns the strongest keyword level among tokens and the
// token that produced it.
func matchKeywords(tokens []string) (string, keywordLevel) {
	for _, tok := range tokens {
		for _, kw := range highKeywords {
			if strings.HasPrefix(tok, kw) {
				return tok, levelHigh
			}
		}
	}
	for _, tok := range tokens {
		for _, kw := range mediumKeywords {
			if strings.HasPrefix(tok, kw) {
				return tok, levelMedium
			}
		}
	}
	return "", levelNone
}

func hasSkipToken(tokens []string) bool {
	for _, tok := range tokens {
		if skipTokens[tok] {
			return true
		}
	}
	return false
}

// tokenize splits s into lowercase alphanumeric words.
func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return (r < 'a' || r > 'z') && (r < '0' || r > '9')
	})
}

func pathTokensBySegment(p string) []string {
	return strings.FieldsFunc(p, func(r rune) bool { return r == '/' })
}

func pathOf(u *url.URL) string {
	if u.Path == "" {
		return "/"
	}
	return u.Path
}
