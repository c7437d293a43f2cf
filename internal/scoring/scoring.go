// Package scoring computes a 0-100 fit score and up to three human-readable
// reasons for a vendor given a user profile and an optional advanced filter
// set. Scoring is pure and deterministic: the same inputs always produce the
// same score and reasons, and no input can make it fail.
package scoring

import (
	"fmt"
	"math"
	"strings"

	"github.com/brevera/stackmatch/internal/catalog"
)

const maxReasons = 3

// Breakdown carries the named partial scores that add up (together with the
// base, industry and flat bonuses) to the final score before clamping.
type Breakdown struct {
	Segment      int `json:"segment"`
	Goal         int `json:"goal"`
	Rating       int `json:"rating"`
	Channels     int `json:"channels"`
	Integrations int `json:"integrations"`
	Budget       int `json:"budget"`
}

// VendorScore is the derived, per-request scoring result. It is recomputed
// on every call and never cached.
type VendorScore struct {
	VendorID  string    `json:"vendor_id"`
	Score     int       `json:"score"`
	Breakdown Breakdown `json:"breakdown"`
	Reasons   []string  `json:"reasons"`
}

// Engine scores vendors with a fixed set of weights. A zero-value weight set
// is replaced by the defaults so an Engine is always usable.
type Engine struct {
	weights Weights
}

func NewEngine(weights Weights) *Engine {
	if weights == (Weights{}) {
		weights = DefaultWeights()
	}
	return &Engine{weights: weights}
}

func (e *Engine) Weights() Weights {
	return e.weights
}

// Score computes the vendor's fit score. advanced may be nil, which means
// "no advanced constraints" and contributes nothing either way.
func (e *Engine) Score(vendor *catalog.Vendor, profile catalog.UserProfile, advanced *catalog.AdvancedFilters) VendorScore {
	w := e.weights
	result := VendorScore{VendorID: vendor.ID}
	reasons := make([]string, 0, maxReasons)

	total := w.Base

	if vendor.TargetsSegment(profile.CompanySize) {
		result.Breakdown.Segment = w.Segment
		total += w.Segment
		reasons = append(reasons, fmt.Sprintf("Targets %s companies like yours", segmentLabel(profile.CompanySize)))
	}

	if goalMatches := countGoalMatches(profile.PrimaryGoal, vendor.StrengthTags); goalMatches > 0 {
		bonus := min(goalMatches*w.PerGoalTag, w.GoalMax)
		result.Breakdown.Goal = bonus
		total += bonus
		reasons = append(reasons, fmt.Sprintf("Strong fit for your %s goal", strings.ToLower(string(profile.PrimaryGoal))))
	}

	avgRating := vendor.AverageRating()
	ratingBonus := int(math.Round(avgRating / 5 * float64(w.RatingMax)))
	result.Breakdown.Rating = ratingBonus
	total += ratingBonus
	if avgRating >= 4.5 {
		reasons = append(reasons, fmt.Sprintf("Top-rated by users (%.1f/5 average)", avgRating))
	}

	if profile.HasIndustry() && matchesIndustry(vendor.StrengthTags, profile.Industry) {
		total += w.Industry
		reasons = append(reasons, fmt.Sprintf("Proven in %s", profile.Industry))
	}

	if advanced != nil {
		total += e.applyAdvanced(vendor, advanced, &result, &reasons)
	}

	if vendor.IsHouseBrand {
		total += w.HouseBrand
	}

	result.Score = clamp(total, 0, 100)
	if len(reasons) > maxReasons {
		reasons = reasons[:maxReasons]
	}
	result.Reasons = reasons

	return result
}

func (e *Engine) applyAdvanced(vendor *catalog.Vendor, advanced *catalog.AdvancedFilters, result *VendorScore, reasons *[]string) int {
	w := e.weights
	total := 0

	channelMatches := 0
	for _, channel := range advanced.Channels {
		if vendor.HasChannel(channel) {
			channelMatches++
		}
	}
	if channelMatches > 0 {
		bonus := min(channelMatches, w.MaxChannelMatches) * w.PerChannel
		result.Breakdown.Channels = bonus
		total += bonus
		if channelMatches >= 3 {
			*reasons = append(*reasons, fmt.Sprintf("Covers %d of your required channels", channelMatches))
		}
	}

	integrationMatches := 0
	for _, integration := range advanced.Integrations {
		if vendor.HasIntegration(integration) {
			integrationMatches++
		}
	}
	if integrationMatches > 0 {
		bonus := min(integrationMatches, w.MaxIntegrationMatches) * w.PerIntegration
		result.Breakdown.Integrations = bonus
		total += bonus
		if integrationMatches >= 2 {
			*reasons = append(*reasons, fmt.Sprintf("Native integrations with %d tools in your stack", integrationMatches))
		}
	}

	if budget := budgetPoints(vendor.StartingPriceBucket, advanced.BudgetSensitivity, w.BudgetMax); budget > 0 {
		result.Breakdown.Budget = budget
		total += budget
		if budget == w.BudgetMax {
			*reasons = append(*reasons, "Pricing fits your budget expectations")
		}
	}

	if advanced.Governance && vendor.HasGovernanceSignal() {
		total += w.Governance
		*reasons = append(*reasons, "Enterprise-grade security and governance")
	}

	if vendor.CompatibleComplexity(advanced.ImplementationTolerance) {
		total += w.Complexity
		*reasons = append(*reasons, "Implementation effort matches your capacity")
	}

	return total
}

// matchesIndustry does a case-insensitive substring check of the industry
// name (and a hyphenated variant, e.g. "e commerce" -> "e-commerce") against
// the vendor's strength tags.
func matchesIndustry(strengthTags []string, industry string) bool {
	needle := strings.ToLower(strings.TrimSpace(industry))
	if needle == "" {
		return false
	}
	hyphenated := strings.ReplaceAll(needle, " ", "-")

	for _, tag := range strengthTags {
		lowered := strings.ToLower(tag)
		if strings.Contains(lowered, needle) || strings.Contains(lowered, hyphenated) {
			return true
		}
	}
	return false
}

func segmentLabel(segment catalog.Segment) string {
	switch segment {
	case catalog.SegmentSMB:
		return "small and mid-sized"
	case catalog.SegmentMM:
		return "mid-market"
	case catalog.SegmentENT:
		return "enterprise"
	default:
		return string(segment)
	}
}

func clamp(value, low, high int) int {
	if value < low {
		return low
	}
	if value > high {
		return high
	}
	return value
}
