package model

import (
	"math"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DecisionMaker is a person holding ownership, executive or founding
// authority at the organization behind a website.
type DecisionMaker struct {
	// Name is the person's name as written on the page. Never empty.
	Name string `json:"name"`

	// Title is the stated role, e.g. "CEO" or "Owner".
	Title string `json:"title,omitempty"`

	// Email is the contact email, if the page associates one with the person.
	Email string `json:"email,omitempty"`

	// Phone is the contact phone number, if stated.
	Phone string `json:"phone,omitempty"`

	// LinkedIn is the LinkedIn profile URL, if linked from the page.
	LinkedIn string `json:"linkedin,omitempty"`

	// SourceURL is the page the record was extracted from. Never empty.
	SourceURL string `json:"source_url"`

	// Confidence is in [0,1].
	Confidence float64 `json:"confidence"`

	// ExtractionNotes records remarks made while extracting or merging.
	ExtractionNotes []string `json:"extraction_notes,omitempty"`

	// CompanyDomain is the registrable domain of the site the person belongs to.
	CompanyDomain string `json:"company_domain,omitempty"`
}

// Valid reports whether d satisfies the record invariants.
func (d DecisionMaker) Valid() bool {
	return strings.TrimSpace(d.Name) != "" &&
		strings.TrimSpace(d.SourceURL) != "" &&
		d.Confidence >= 0 && d.Confidence <= 1
}

// IdentityKey returns the deduplication key for d: the normalized name plus
// the company domain, or the normalized name plus title when the domain is unknown.
func (d DecisionMaker) IdentityKey() string {
	name := NormalizeName(d.Name)
	if domain := strings.ToLower(strings.TrimSpace(d.CompanyDomain)); domain != "" {
		return name + "@" + domain
	}
	return name + "|" + strings.ToLower(strings.Join(strings.Fields(d.Title), " "))
}

// ClampConfidence limits c to [0,1]. NaN becomes 0.
func ClampConfidence(c float64) float64 {
	switch {
	case math.IsNaN(c), c < 0:
		return 0
	case c > 1:
		return 1
	default:
		return c
	}
}

var (
	namePrefixPattern = regexp.MustCompile(`^(dr|mr|mrs|ms|miss|prof|rev)\.?\s+`)

	// "do" is also a surname, so it only counts after a comma.
	credentialPattern = regexp.MustCompile(`((,\s*|\s+)(dds|dmd|md|phd|esq|cpa)|,\s*do)\.?\s*$`)

	generationPattern = regexp.MustCompile(`(,\s*|\s+)(jr|sr|ii|iii|iv)\.?\s*$`)
)

// NormalizeName lowercases name, strips honorifics and credential suffixes,
// folds diacritics and collapses punctuation and whitespace.
// "Dr. José Núñez, DDS" and "jose nunez" normalize to the same value.
// Generational suffixes are kept: "John Smith Jr." and "John Smith Sr."
// are different people.
func NormalizeName(name string) string {
	n := strings.ToLower(strings.Join(strings.Fields(name), " "))

	var generation string
	for {
		stripped := namePrefixPattern.ReplaceAllString(n, "")
		stripped = credentialPattern.ReplaceAllString(stripped, "")
		if generation == "" {
			if m := generationPattern.FindStringSubmatch(stripped); m != nil {
				generation = m[2]
				stripped = stripped[:len(stripped)-len(m[0])]
			}
		}
		stripped = strings.TrimSpace(stripped)
		if stripped == n || stripped == "" {
			break
		}
		n = stripped
	}
	if generation != "" && !strings.HasSuffix(n, " "+generation) {
		n += " " + generation
	}

	n = foldDiacritics(n)

	n = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '\'', r == '-':
			return r
		default:
			return ' '
		}
	}, n)

	return strings.Join(strings.Fields(n), " ")
}

// foldDiacritics removes combining marks, e.g. "é" becomes "e".
// Transformers are stateful, so a new chain is built per call.
func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return folded
}
