// Package aggregate merges decision-maker records extracted from many pages
// of one site into a deduplicated, ranked list.
//
// The merge is commutative and associative: every choice between two
// records is made by a total order on record content and page rank, never
// by arrival order, so the output does not depend on which page finished
// first.
package aggregate

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"unicode"

	"github.com/promisingcoder/decision-scraper/internal/model"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// PageRecords are the records extracted from one page.
type PageRecords struct {
	// URL is the page the records came from.
	URL string

	// Rank is the page's position in the link discoverer's ordering.
	// The root page has rank 0.
	Rank int

	DecisionMakers []model.DecisionMaker
}

// ranked is a record with the rank of the page it came from.
type ranked struct {
	dm   model.DecisionMaker
	rank int
}

// compare orders records by which should win when they disagree: higher
// confidence first, then the better-ranked page, then lexical order.
func compare(a, b ranked) int {
	if c := cmp.Compare(b.dm.Confidence, a.dm.Confidence); c != 0 {
		return c
	}
	if c := cmp.Compare(a.rank, b.rank); c != 0 {
		return c
	}
	return cmp.Or(
		strings.Compare(a.dm.Title, b.dm.Title),
		strings.Compare(a.dm.Name, b.dm.Name),
		strings.Compare(a.dm.SourceURL, b.dm.SourceURL),
		strings.Compare(a.dm.Email, b.dm.Email),
		strings.Compare(a.dm.Phone, b.dm.Phone),
		strings.Compare(a.dm.LinkedIn, b.dm.LinkedIn),
	)
}

// group accumulates the records sharing one identity key.
type group struct {
	key     string
	records []ranked
}

// Aggregate groups records by identity key and merges each group into one
// record. Records without a name are dropped. The result is ordered by
// confidence descending, then by the best rank of the pages a person was
// found on, then by identity key.
func Aggregate(pages []PageRecords) []model.DecisionMaker {
	groups := make(map[string]*group)

	for _, page := range pages {
		for _, dm := range page.DecisionMakers {
			if strings.TrimSpace(dm.Name) == "" {
				continue
			}
			if dm.SourceURL == "" {
				dm.SourceURL = page.URL
			}
			dm.Confidence = model.ClampConfidence(dm.Confidence)

			key := dm.IdentityKey()
			g, ok := groups[key]
			if !ok {
				g = &group{key: key}
				groups[key] = g
			}
			g.records = append(g.records, ranked{dm: dm, rank: page.Rank})
		}
	}

	type merged struct {
		dm        model.DecisionMaker
		firstSeen int
		key       string
	}
	out := make([]merged, 0, len(groups))
	for _, g := range groups {
		dm, firstSeen := mergeGroup(g.records)
		out = append(out, merged{dm: dm, firstSeen: firstSeen, key: g.key})
	}

	slices.SortFunc(out, func(a, b merged) int {
		return cmp.Or(
			cmp.Compare(b.dm.Confidence, a.dm.Confidence),
			cmp.Compare(a.firstSeen, b.firstSeen),
			strings.Compare(a.key, b.key),
		)
	})

	result := make([]model.DecisionMaker, len(out))
	for i, m := range out {
		result[i] = m.dm
	}
	return result
}

// mergeGroup merges records of one identity and returns the best page rank.
func mergeGroup(records []ranked) (model.DecisionMaker, int) {
	slices.SortFunc(records, compare)

	best := records[0]
	dm := model.DecisionMaker{
		Name:          DisplayName(best.dm.Name),
		SourceURL:     best.dm.SourceURL,
		CompanyDomain: best.dm.CompanyDomain,
		Confidence:    best.dm.Confidence,
	}

	// records is sorted best first, so the first non-empty value wins.
	dm.Title = firstField(records, func(d model.DecisionMaker) string { return d.Title })
	dm.Email = firstField(records, func(d model.DecisionMaker) string { return d.Email })
	dm.Phone = firstField(records, func(d model.DecisionMaker) string { return d.Phone })
	dm.LinkedIn = firstField(records, func(d model.DecisionMaker) string { return d.LinkedIn })

	firstSeen := best.rank
	notes := make(map[string]struct{})
	sources := make(map[string]struct{})
	for _, r := range records {
		firstSeen = min(firstSeen, r.rank)
		sources[r.dm.SourceURL] = struct{}{}
		for _, n := range r.dm.ExtractionNotes {
			notes[n] = struct{}{}
		}
	}
	if len(sources) > 1 {
		notes[fmt.Sprintf("merged from %d pages", len(sources))] = struct{}{}
	}
	if titles := distinctTitles(records); len(titles) > 1 {
		notes[fmt.Sprintf("conflicting titles: %s", strings.Join(titles, ", "))] = struct{}{}
	}

	if len(notes) > 0 {
		dm.ExtractionNotes = make([]string, 0, len(notes))
		for n := range notes {
			dm.ExtractionNotes = append(dm.ExtractionNotes, n)
		}
		slices.Sort(dm.ExtractionNotes)
	}

	return dm, firstSeen
}

func firstField(records []ranked, field func(model.DecisionMaker) string) string {
	for _, r := range records {
		if v := strings.TrimSpace(field(r.dm)); v != "" {
			return v
		}
	}
	return ""
}

// distinctTitles returns the sorted set of differing titles, compared
// case-insensitively.
func distinctTitles(records []ranked) []string {
	seen := make(map[string]string)
	for _, r := range records {
		t := strings.TrimSpace(r.dm.Title)
		if t == "" {
			continue
		}
		lower := strings.ToLower(t)
		if prev, ok := seen[lower]; !ok || t < prev {
			seen[lower] = t
		}
	}
	titles := make([]string, 0, len(seen))
	for _, t := range seen {
		titles = append(titles, t)
	}
	slices.Sort(titles)
	return titles
}

// DisplayName title-cases names written entirely in upper or lower case.
// Mixed-case names such as "McDonald" are kept as written.
func DisplayName(name string) string {
	name = strings.Join(strings.Fields(name), " ")

	hasUpper := strings.ContainsFunc(name, unicode.IsUpper)
	hasLower := strings.ContainsFunc(name, unicode.IsLower)
	if hasUpper && hasLower {
		return name
	}
	return cases.Title(language.Und).String(name)
}
