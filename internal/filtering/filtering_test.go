package filtering

import (
	"testing"

	"go.uber.org/zap"

	"github.com/brevera/stackmatch/internal/catalog"
)

func testCatalog() *catalog.Vendors {
	return &catalog.Vendors{
		Items: []*catalog.Vendor{
			{
				ID:                  "brevo",
				Name:                "Brevo",
				Tagline:             "All-in-one marketing platform",
				TargetSegments:      []catalog.Segment{catalog.SegmentSMB, catalog.SegmentMM},
				SupportedGoals:      []catalog.Goal{catalog.GoalRetention, catalog.GoalAcquisition},
				Complexity:          catalog.ComplexityLight,
				Channels:            []string{"email", "sms", "whatsapp"},
				NativeIntegrations:  []string{"shopify", "woocommerce"},
				StartingPriceBucket: catalog.PriceFree,
				G2:                  catalog.ReviewSource{Rating: 4.5},
				Capterra:            catalog.ReviewSource{Rating: 4.5},
			},
			{
				ID:                  "klavora",
				Name:                "Klavora",
				Tagline:             "E-commerce email and sms",
				TargetSegments:      []catalog.Segment{catalog.SegmentSMB, catalog.SegmentMM},
				SupportedGoals:      []catalog.Goal{catalog.GoalRetention},
				Complexity:          catalog.ComplexityMedium,
				Channels:            []string{"email", "sms"},
				NativeIntegrations:  []string{"shopify"},
				StartingPriceBucket: catalog.PriceMid,
				G2:                  catalog.ReviewSource{Rating: 4.6},
				Capterra:            catalog.ReviewSource{Rating: 4.4},
			},
			{
				ID:                  "fortress",
				Name:                "Fortress Cloud",
				Tagline:             "Enterprise marketing suite",
				TargetSegments:      []catalog.Segment{catalog.SegmentENT},
				SupportedGoals:      []catalog.Goal{catalog.GoalCRM, catalog.GoalOmnichannel},
				Complexity:          catalog.ComplexityHeavy,
				Channels:            []string{"email", "sms", "push", "whatsapp"},
				NativeIntegrations:  []string{"salesforce"},
				GovernanceFeatures:  []string{"SSO", "RBAC"},
				StartingPriceBucket: catalog.PriceHigh,
				G2:                  catalog.ReviewSource{Rating: 4.2},
				Capterra:            catalog.ReviewSource{Rating: 4.0},
			},
			{
				ID:                  "dripster",
				Name:                "Dripster",
				Tagline:             "Email automation for creators",
				TargetSegments:      []catalog.Segment{catalog.SegmentSMB},
				SupportedGoals:      []catalog.Goal{catalog.GoalActivation},
				Complexity:          catalog.ComplexityLight,
				Channels:            []string{"email"},
				StartingPriceBucket: catalog.PriceLow,
				G2:                  catalog.ReviewSource{Rating: 4.8},
				Capterra:            catalog.ReviewSource{Rating: 4.8},
			},
		},
	}
}

func TestFilterKeepsFullMatchAtTierZero(t *testing.T) {
	pipeline := NewPipeline(2, zap.NewNop())
	profile := catalog.UserProfile{CompanySize: catalog.SegmentSMB, PrimaryGoal: catalog.GoalRetention}

	result := pipeline.Filter(testCatalog(), profile, nil, "")

	if result.Relaxed {
		t.Fatalf("did not expect relaxation, got level %d", result.RelaxationLevel)
	}
	if result.RelaxationLevel != 0 {
		t.Fatalf("expected level 0, got %d", result.RelaxationLevel)
	}
	if result.Vendors.Len() != 2 {
		t.Fatalf("expected 2 vendors, got %d", result.Vendors.Len())
	}
	if result.Vendors.FindByID("fortress") != nil {
		t.Fatalf("enterprise vendor should not match an SMB profile")
	}
}

func TestFilterRelaxesAdvancedFirst(t *testing.T) {
	pipeline := NewPipeline(2, zap.NewNop())
	profile := catalog.UserProfile{CompanySize: catalog.SegmentSMB, PrimaryGoal: catalog.GoalRetention}
	// Only brevo covers whatsapp, so tier 0 yields a single candidate and
	// the advanced constraints are dropped at tier 1.
	advanced := &catalog.AdvancedFilters{Channels: []string{"whatsapp"}}

	result := pipeline.Filter(testCatalog(), profile, advanced, "")

	if !result.Relaxed {
		t.Fatalf("expected relaxation")
	}
	if result.RelaxationLevel != 1 {
		t.Fatalf("expected level 1, got %d", result.RelaxationLevel)
	}
	if result.Vendors.Len() != 2 {
		t.Fatalf("expected 2 vendors after dropping advanced, got %d", result.Vendors.Len())
	}

	if len(result.Steps) != 2 {
		t.Fatalf("expected 2 evaluated tiers, got %d", len(result.Steps))
	}
	if result.Steps[0].Accepted || result.Steps[0].Count != 1 {
		t.Fatalf("unexpected tier 0 step: %+v", result.Steps[0])
	}
}

func TestFilterFallsThroughToSearchTier(t *testing.T) {
	pipeline := NewPipeline(3, zap.NewNop())
	// No vendor targets ENT with an Activation goal, and only one ENT
	// vendor exists at all, so segment tiers stay below the threshold.
	profile := catalog.UserProfile{CompanySize: catalog.SegmentENT, PrimaryGoal: catalog.GoalActivation}

	result := pipeline.Filter(testCatalog(), profile, nil, "enterprise")

	if result.RelaxationLevel != 3 {
		t.Fatalf("expected level 3, got %d", result.RelaxationLevel)
	}
	if result.Vendors.Len() != 1 {
		t.Fatalf("expected 1 vendor from search, got %d", result.Vendors.Len())
	}
	if result.Vendors.Items[0].ID != "fortress" {
		t.Fatalf("expected fortress, got %s", result.Vendors.Items[0].ID)
	}
}

func TestFilterNeverReturnsEmpty(t *testing.T) {
	pipeline := NewPipeline(DefaultMinResults, zap.NewNop())
	profile := catalog.UserProfile{CompanySize: catalog.SegmentENT, PrimaryGoal: catalog.GoalActivation}

	// A search no vendor matches forces the pipeline all the way down to
	// the whole-catalog fallback.
	result := pipeline.Filter(testCatalog(), profile, nil, "no such vendor anywhere")

	if result.RelaxationLevel != 4 {
		t.Fatalf("expected level 4, got %d", result.RelaxationLevel)
	}
	if result.Vendors.Len() != testCatalog().Len() {
		t.Fatalf("expected the whole catalog, got %d vendors", result.Vendors.Len())
	}
	if !result.Relaxed {
		t.Fatalf("expected relaxation flag at level 4")
	}
}

func TestFilterPreservesCatalogOrder(t *testing.T) {
	pipeline := NewPipeline(2, nil)
	profile := catalog.UserProfile{CompanySize: catalog.SegmentSMB, PrimaryGoal: catalog.GoalRetention}

	result := pipeline.Filter(testCatalog(), profile, nil, "")

	if result.Vendors.Items[0].ID != "brevo" || result.Vendors.Items[1].ID != "klavora" {
		t.Fatalf("expected catalog order brevo, klavora, got %v", result.Vendors.Names())
	}
}

func TestMeetsAdvanced(t *testing.T) {
	vendors := testCatalog()
	brevo := vendors.FindByID("brevo")
	fortress := vendors.FindByID("fortress")

	tests := []struct {
		name     string
		vendor   *catalog.Vendor
		advanced *catalog.AdvancedFilters
		want     bool
	}{
		{"all channels covered", brevo, &catalog.AdvancedFilters{Channels: []string{"email", "sms"}}, true},
		{"missing channel", brevo, &catalog.AdvancedFilters{Channels: []string{"push"}}, false},
		{"missing integration", brevo, &catalog.AdvancedFilters{Integrations: []string{"salesforce"}}, false},
		{"high budget sensitivity excludes high bucket", fortress, &catalog.AdvancedFilters{BudgetSensitivity: catalog.SensitivityHigh}, false},
		{"governance requires a signal", brevo, &catalog.AdvancedFilters{Governance: true}, false},
		{"governance satisfied", fortress, &catalog.AdvancedFilters{Governance: true}, true},
		{"low tolerance rejects heavy vendor", fortress, &catalog.AdvancedFilters{ImplementationTolerance: catalog.SensitivityLow}, false},
		{"empty tolerance is unconstrained", fortress, &catalog.AdvancedFilters{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := meetsAdvanced(tt.vendor, tt.advanced); got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestMatchesSearch(t *testing.T) {
	vendor := &catalog.Vendor{
		Name:        "Brevo",
		Tagline:     "All-in-one marketing platform",
		Description: "Email, SMS and WhatsApp campaigns",
	}

	if !matchesSearch(vendor, "") {
		t.Fatalf("empty search must match everything")
	}
	if !matchesSearch(vendor, "WHATSAPP") {
		t.Fatalf("search should be case-insensitive over the description")
	}
	if matchesSearch(vendor, "salesforce") {
		t.Fatalf("unexpected match")
	}
}
