package planner

import "testing"

func TestParsePlan(t *testing.T) {
	req := Request{Domain: "example.com", Language: "en"}

	raw := `{
		"title": "Marketing plan for example.com",
		"summary": "Focus on retention.",
		"sections": [
			{"heading": "Week 1", "actions": ["Set up tracking", "Import contacts"]},
			{"heading": "Week 2", "actions": ["Launch welcome flow"]}
		],
		"channels": ["email", "sms"]
	}`

	plan := ParsePlan(raw, req)
	if plan == nil {
		t.Fatalf("expected a plan")
	}

	if plan.Title != "Marketing plan for example.com" {
		t.Fatalf("unexpected title: %q", plan.Title)
	}
	if plan.Domain != "example.com" || plan.Language != "en" {
		t.Fatalf("plan not stamped with the request: %+v", plan)
	}
	if len(plan.Sections) != 2 {
		t.Fatalf("expected 2 sections, got %d", len(plan.Sections))
	}
	if len(plan.Sections[0].Actions) != 2 {
		t.Fatalf("expected 2 actions in the first section, got %d", len(plan.Sections[0].Actions))
	}
	if len(plan.Channels) != 2 {
		t.Fatalf("expected 2 channels, got %d", len(plan.Channels))
	}
	if plan.GeneratedAt.IsZero() {
		t.Fatalf("expected a generation timestamp")
	}
}

func TestParsePlanStripsCodeFence(t *testing.T) {
	raw := "```json\n{\"title\":\"Fenced plan\",\"sections\":[{\"heading\":\"Start\",\"actions\":[\"Do it\"]}]}\n```"

	plan := ParsePlan(raw, Request{Domain: "example.com"})
	if plan == nil {
		t.Fatalf("expected a plan from fenced output")
	}
	if plan.Title != "Fenced plan" {
		t.Fatalf("unexpected title: %q", plan.Title)
	}
}

func TestParsePlanAcceptsTitleAsSectionHeading(t *testing.T) {
	raw := `{"title":"Plan","sections":[{"title":"Alt heading","actions":["First"]}]}`

	plan := ParsePlan(raw, Request{})
	if plan == nil {
		t.Fatalf("expected a plan")
	}
	if plan.Sections[0].Heading != "Alt heading" {
		t.Fatalf("expected the section title fallback, got %q", plan.Sections[0].Heading)
	}
}

func TestParsePlanRejectsUnusablePayloads(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"prose", "Sorry, I could not generate a plan today."},
		{"invalid json", `{"title": "Broken"`},
		{"missing title", `{"sections":[{"heading":"Week 1","actions":["x"]}]}`},
		{"missing sections", `{"title":"No sections"}`},
		{"sections without headings", `{"title":"Plan","sections":[{"actions":["x"]}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if plan := ParsePlan(tt.raw, Request{}); plan != nil {
				t.Fatalf("expected nil for %s, got %+v", tt.name, plan)
			}
		})
	}
}

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"surrounding whitespace", "  {\"a\":1}  ", `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripCodeFence(tt.in); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
