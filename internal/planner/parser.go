package planner

import (
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Plan is the parsed output of a completed generation.
type Plan struct {
	Domain      string        `json:"domain"`
	Language    string        `json:"language"`
	Title       string        `json:"title"`
	Summary     string        `json:"summary,omitempty"`
	Sections    []PlanSection `json:"sections"`
	Channels    []string      `json:"channels,omitempty"`
	GeneratedAt time.Time     `json:"generated_at"`
}

// PlanSection is one actionable block of the plan.
type PlanSection struct {
	Heading string   `json:"heading"`
	Actions []string `json:"actions,omitempty"`
}

// ParsePlan extracts a Plan from the raw agent output. The payload is
// expected to be a JSON document, possibly wrapped in a markdown code fence.
// A nil return is always a parse failure; callers must not treat the raw
// payload as safe to surface.
func ParsePlan(raw string, req Request) *Plan {
	cleaned := stripCodeFence(raw)
	if cleaned == "" || !gjson.Valid(cleaned) {
		return nil
	}

	doc := gjson.Parse(cleaned)

	title := strings.TrimSpace(doc.Get("title").String())
	if title == "" {
		return nil
	}

	plan := &Plan{
		Domain:      req.Domain,
		Language:    req.Language,
		Title:       title,
		Summary:     strings.TrimSpace(doc.Get("summary").String()),
		GeneratedAt: time.Now().UTC(),
	}

	for _, section := range doc.Get("sections").Array() {
		heading := strings.TrimSpace(section.Get("heading").String())
		if heading == "" {
			heading = strings.TrimSpace(section.Get("title").String())
		}
		if heading == "" {
			continue
		}

		parsed := PlanSection{Heading: heading}
		for _, action := range section.Get("actions").Array() {
			if text := strings.TrimSpace(action.String()); text != "" {
				parsed.Actions = append(parsed.Actions, text)
			}
		}
		plan.Sections = append(plan.Sections, parsed)
	}

	if len(plan.Sections) == 0 {
		return nil
	}

	for _, channel := range doc.Get("channels").Array() {
		if text := strings.TrimSpace(channel.String()); text != "" {
			plan.Channels = append(plan.Channels, text)
		}
	}

	return plan
}

func stripCodeFence(raw string) string {
	cleaned := strings.TrimSpace(raw)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSpace(cleaned)
		if idx := strings.LastIndex(cleaned, "```"); idx != -1 {
			cleaned = cleaned[:idx]
		}
	}
	return strings.TrimSpace(strings.Trim(cleaned, "`"))
}
