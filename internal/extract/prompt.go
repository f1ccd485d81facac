package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/promisingcoder/decision-scraper/internal/model"
)

// SchemaName names the structured output schema sent to the provider.
const SchemaName = "decision_makers_response"

// SystemPrompt instructs the model to extract only explicitly stated facts.
const SystemPrompt = `You extract decision-maker information from the content of a single web page.

Follow every rule:
1. Only extract people who are named explicitly on the page.
2. Only include people whose senior or executive role is stated on the page. Qualifying roles:
   - Corporate: Owner, CEO, Founder, Co-Founder, President, Vice President (VP), Director,
     Managing Director, Partner, Principal, General Manager.
   - C-suite: CTO, CFO, COO, CMO, CIO, CPO, or any other "Chief" title.
   - Practice owners: Doctor (MD, DO), Dentist (DDS, DMD), Attorney, Architect, or any
     licensed professional who is the named principal or owner of the practice shown.
3. Exclude regular employees, managers, supervisors, coordinators, analysts, engineers,
   designers, hygienists, assistants, receptionists and other non-executive staff.
4. Return email, phone and linkedin only when the page shows them in direct association
   with the person. Otherwise return null. Never guess or generate contact information.
5. A general phone number or email may be attached to the primary decision maker when the
   page clearly belongs to that person's practice or business.
6. If the person is clearly the owner but no title is written, use "Owner".
7. Set confidence between 0 and 1 to reflect how explicitly the page supports the record,
   or null if you cannot judge.
8. Never fabricate names, titles, emails, phone numbers or LinkedIn URLs.
9. Keep the exact spelling of names and titles as written on the page.
10. If there are no qualifying people, return {"decision_makers": []}.

Answer with JSON matching the provided schema.`

// responseSchema is the strict JSON Schema for provider output. Strict mode
// requires every property to be listed as required; optional values are nullable.
var responseSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "decision_makers": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "name": {"type": "string", "description": "Full name exactly as written on the page."},
          "title": {"type": ["string", "null"], "description": "Role or title as stated on the page."},
          "email": {"type": ["string", "null"], "description": "Email address associated with the person, or null."},
          "phone": {"type": ["string", "null"], "description": "Phone number associated with the person, or null."},
          "linkedin": {"type": ["string", "null"], "description": "LinkedIn profile URL linked from the page, or null."},
          "confidence": {"type": ["number", "null"], "description": "How explicitly the page supports this record, 0 to 1."}
        },
        "required": ["name", "title", "email", "phone", "linkedin", "confidence"],
        "additionalProperties": false
      }
    }
  },
  "required": ["decision_makers"],
  "additionalProperties": false
}`)

// ResponseSchema returns a copy of the output schema.
func ResponseSchema() json.RawMessage {
	return append(json.RawMessage(nil), responseSchema...)
}

// BuildPrompt renders the user message for one page.
func BuildPrompt(content model.ReducedContent) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Page URL: %s\n", content.SourceURL)
	if content.Title != "" {
		fmt.Fprintf(&sb, "Page title: %s\n", content.Title)
	}
	if content.SiteName != "" {
		fmt.Fprintf(&sb, "Site name: %s\n", content.SiteName)
	}
	if content.Truncated {
		sb.WriteString("Note: the page content was shortened to fit; extract only from what is shown.\n")
	}

	sb.WriteString("\nPage content (Markdown):\n---\n")
	sb.WriteString(content.Text)
	sb.WriteString("\n---\n")

	return sb.String()
}
