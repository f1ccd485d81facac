package extract

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/promisingcoder/decision-scraper/internal/model"
)

// Confidence levels used when the provider reports none.
const (
	ConfidenceVerbatimRole = 0.85
	ConfidenceKnownRole    = 0.6
	ConfidenceUnknownRole  = 0.4
)

var (
	// knownRolePattern matches titles that confirm decision authority.
	knownRolePattern = regexp.MustCompile(`(?i)owner|founder|president|director|partner|principal|chief|` +
		`\b(ceo|cto|cfo|coo|cmo|cio|cpo|vp|md|dds|dmd|cpa)\b|vice.president|managing|general.manager|` +
		`plumb|electric|contrac|hvac|roofing|landscap|master|licensed|journeyman|` +
		`dentist|doctor|physician|surgeon|attorney|lawyer|architect|engineer|broker|realtor|\bagent\b`)

	// junkNamePattern matches values that are not person names.
	junkNamePattern = regexp.MustCompile(`(?i)^(http|www\.|/|@|#|\d{3,}|n/?a$|none$|null$|unknown$|` +
		`team$|staff$|our team$|contact us$|home$|services?$)`)

	// businessNamePattern matches words found in company names.
	businessNamePattern = regexp.MustCompile(`(?i)\b(service|services|plumbing|electric|hvac|roofing|dental|clinic|` +
		`company|inc|llc|corp|ltd|group|associates|solutions|` +
		`construction|repair|maintenance|installation)\b`)

	// nonDecisionTitlePattern matches roles without decision authority.
	nonDecisionTitlePattern = regexp.MustCompile(`(?i)team.lead|coordinator|` +
		`technician|\btech\b|assistant|receptionist|dispatcher|` +
		`secretary|clerk|\bintern\b|trainee|` +
		`specialist|analyst|developer|designer|` +
		`accountant|bookkeeper|payroll|` +
		`customer.service|\bsupport\b|` +
		`estimator|supervisor|foreman|hygienist`)

	managerPattern          = regexp.MustCompile(`(?i)\bmanager\b`)
	managerExceptionPattern = regexp.MustCompile(`(?i)general.manager|managing`)

	emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9\-]+(\.[A-Za-z0-9\-]+)*\.[A-Za-z]{2,}$`)
	phonePattern = regexp.MustCompile(`(?i)^\+?[\d\s().\-/]+((x|ext\.?)\s*\d+)?$`)
)

// rejectReason returns why a candidate is not a decision-maker, or "" if it is.
func rejectReason(c Candidate) string {
	name := strings.TrimSpace(c.Name)

	switch {
	case utf8.RuneCountInString(name) < 2:
		return "name too short"
	case junkNamePattern.MatchString(name):
		return "not a person name"
	case !strings.ContainsFunc(name, unicode.IsLetter):
		return "name has no letters"
	case businessNamePattern.MatchString(name):
		return "business name"
	case c.Title != "" && IsNonDecisionTitle(c.Title):
		return "non-decision title"
	case c.Title == "" && !strings.ContainsFunc(name, unicode.IsSpace):
		return "first name only without title"
	}
	return ""
}

// IsNonDecisionTitle reports whether title names a role without decision
// authority. "Manager" alone disqualifies, but "General Manager" and
// "Managing ..." do not.
func IsNonDecisionTitle(title string) bool {
	if nonDecisionTitlePattern.MatchString(title) {
		return true
	}
	return managerPattern.MatchString(title) && !managerExceptionPattern.MatchString(title)
}

// IsKnownRole reports whether title names a recognized decision role.
func IsKnownRole(title string) bool {
	return title != "" && knownRolePattern.MatchString(title)
}

// Confidence scores a record. A provider-reported value wins after clamping.
// Otherwise a known role written verbatim in the page text scores highest,
// a known role not found verbatim scores lower, and anything else lowest.
func Confidence(c Candidate, pageText string) (float64, string) {
	if c.Confidence != nil {
		return model.ClampConfidence(*c.Confidence), "confidence reported by model"
	}
	if !IsKnownRole(c.Title) {
		return ConfidenceUnknownRole, "title is not a recognized decision role"
	}
	if containsFold(collapse(pageText), collapse(c.Title)) {
		return ConfidenceVerbatimRole, "title stated verbatim on page"
	}
	return ConfidenceKnownRole, "known role not stated verbatim on page"
}

// cleanEmail returns a syntactically valid address or "".
func cleanEmail(s string) (string, bool) {
	if s == "" {
		return "", true
	}
	s = strings.TrimSpace(s)
	if len(s) > 7 && strings.EqualFold(s[:7], "mailto:") {
		s = s[7:]
	}
	s = strings.SplitN(s, "?", 2)[0]
	if !emailPattern.MatchString(s) {
		return "", false
	}
	return s, true
}

// cleanPhone returns a plausible phone number or "".
func cleanPhone(s string) (string, bool) {
	if s == "" {
		return "", true
	}
	s = strings.TrimSpace(s)
	if len(s) > 4 && strings.EqualFold(s[:4], "tel:") {
		s = s[4:]
	}
	if !phonePattern.MatchString(s) {
		return "", false
	}

	digits := 0
	main := s
	if i := strings.IndexAny(strings.ToLower(s), "xe"); i > 0 {
		main = s[:i]
	}
	for _, r := range main {
		if unicode.IsDigit(r) {
			digits++
		}
	}
	if digits < 7 || digits > 15 {
		return "", false
	}
	return collapse(s), true
}

// cleanLinkedIn returns an absolute LinkedIn URL or "".
func cleanLinkedIn(s string) (string, bool) {
	if s == "" {
		return "", true
	}
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}

	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	if host != "linkedin.com" && !strings.HasSuffix(host, ".linkedin.com") {
		return "", false
	}
	if strings.Trim(u.Path, "/") == "" {
		return "", false
	}
	return u.String(), true
}

// contactFields validates contact values in place, dropping invalid ones
// and returning a note for each.
func contactFields(dm *model.DecisionMaker) []string {
	var notes []string

	if v, ok := cleanEmail(dm.Email); ok {
		dm.Email = v
	} else {
		notes = append(notes, fmt.Sprintf("discarded invalid email %q", dm.Email))
		dm.Email = ""
	}
	if v, ok := cleanPhone(dm.Phone); ok {
		dm.Phone = v
	} else {
		notes = append(notes, fmt.Sprintf("discarded invalid phone %q", dm.Phone))
		dm.Phone = ""
	}
	if v, ok := cleanLinkedIn(dm.LinkedIn); ok {
		dm.LinkedIn = v
	} else {
		notes = append(notes, fmt.Sprintf("discarded invalid LinkedIn URL %q", dm.LinkedIn))
		dm.LinkedIn = ""
	}

	return notes
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func containsFold(s, substr string) bool {
	return substr != "" && strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
