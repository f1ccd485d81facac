package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// ErrMalformedResponse is returned when provider output cannot be read as
// decision-maker records, even after JSON repair.
var ErrMalformedResponse = errors.New("malformed extraction response")

// Candidate is one unvalidated record as returned by the provider.
type Candidate struct {
	Name     string
	Title    string
	Email    string
	Phone    string
	LinkedIn string

	// Confidence is nil when the provider did not report one.
	Confidence *float64
}

// Parse reads provider output. It accepts an object with a
// "decision_makers" array, or an array whose items are either such objects
// or records themselves. Invalid JSON is repaired before giving up.
func Parse(raw string) ([]Candidate, error) {
	text := stripCodeFence(strings.TrimSpace(raw))
	if text == "" {
		return nil, fmt.Errorf("%w: empty output", ErrMalformedResponse)
	}

	var doc any
	repaired := false
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		repaired = true
		fixed, repairErr := jsonrepair.JSONRepair(text)
		if repairErr != nil {
			return nil, fmt.Errorf("%w: %w (repair failed: %v)", ErrMalformedResponse, err, repairErr)
		}
		if err := json.Unmarshal([]byte(fixed), &doc); err != nil {
			return nil, fmt.Errorf("%w: repaired JSON is still invalid: %w", ErrMalformedResponse, err)
		}
	}

	var records []any
	switch v := doc.(type) {
	case map[string]any:
		list, err := recordList(v)
		if err != nil {
			return nil, err
		}
		records = list
	case []any:
		// Repair turns prose into an array of strings; an empty array
		// only counts when the model wrote it.
		if repaired && len(v) == 0 {
			return nil, fmt.Errorf("%w: no records after repair", ErrMalformedResponse)
		}
		for _, item := range v {
			obj, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: array item is %T, not an object", ErrMalformedResponse, item)
			}
			if _, nested := obj["decision_makers"]; nested {
				list, err := recordList(obj)
				if err != nil {
					return nil, err
				}
				records = append(records, list...)
				continue
			}
			records = append(records, obj)
		}
	default:
		return nil, fmt.Errorf("%w: expected an object or array, got %T", ErrMalformedResponse, doc)
	}

	out := make([]Candidate, 0, len(records))
	for _, r := range records {
		obj, ok := r.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: decision_makers item is %T, not an object", ErrMalformedResponse, r)
		}
		out = append(out, Candidate{
			Name:       stringField(obj, "name"),
			Title:      stringField(obj, "title"),
			Email:      stringField(obj, "email"),
			Phone:      stringField(obj, "phone"),
			LinkedIn:   firstNonEmpty(stringField(obj, "linkedin"), stringField(obj, "linkedin_url")),
			Confidence: numberField(obj, "confidence"),
		})
	}

	return out, nil
}

func recordList(obj map[string]any) ([]any, error) {
	value, ok := obj["decision_makers"]
	if !ok {
		return nil, fmt.Errorf("%w: missing decision_makers", ErrMalformedResponse)
	}
	switch list := value.(type) {
	case nil:
		return nil, nil
	case []any:
		return list, nil
	default:
		return nil, fmt.Errorf("%w: decision_makers is %T, not an array", ErrMalformedResponse, value)
	}
}

// stripCodeFence removes a surrounding ```json ... ``` block.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}

// nullish values are what models write instead of JSON null.
var nullish = map[string]bool{
	"": true, "null": true, "none": true, "n/a": true, "na": true, "unknown": true, "not found": true, "-": true,
}

func stringField(obj map[string]any, key string) string {
	var s string
	switch v := obj[key].(type) {
	case string:
		s = v
	case float64:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
	s = strings.TrimSpace(s)
	if nullish[strings.ToLower(s)] {
		return ""
	}
	return s
}

func numberField(obj map[string]any, key string) *float64 {
	switch v := obj[key].(type) {
	case float64:
		return &v
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
