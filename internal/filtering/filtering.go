// Package filtering narrows the vendor catalog for a user profile through a
// progressive relaxation pipeline: filters are dropped tier by tier, from
// strictest to loosest, until enough candidates remain. As long as the
// catalog itself is non-empty the pipeline never returns an empty result.
package filtering

import (
	"strings"

	"go.uber.org/zap"

	"github.com/brevera/stackmatch/internal/catalog"
	"github.com/brevera/stackmatch/internal/scoring"
)

// DefaultMinResults is the minimum candidate count a tier must produce to be
// accepted, for tiers that are allowed to fall through.
const DefaultMinResults = 3

// Result is the outcome of one filtering run.
type Result struct {
	Vendors         *catalog.Vendors
	Relaxed         bool
	RelaxationLevel int
	Steps           []TierStep
}

// TierStep records how many candidates a tier produced, in evaluation order.
type TierStep struct {
	Level    int
	Count    int
	Accepted bool
}

// tier describes which constraints stay active at one relaxation level.
// Tiers are evaluated in order; the first one meeting its threshold wins.
type tier struct {
	level       int
	useAdvanced bool
	useGoal     bool
	useSegment  bool
	useSearch   bool
}

var tiers = []tier{
	{level: 0, useAdvanced: true, useGoal: true, useSegment: true, useSearch: true},
	{level: 1, useGoal: true, useSegment: true, useSearch: true},
	{level: 2, useSegment: true, useSearch: true},
	{level: 3, useSearch: true},
	{level: 4},
}

// Pipeline runs the relaxation tiers. A zero MinResults falls back to
// DefaultMinResults; a nil logger disables step logging.
type Pipeline struct {
	MinResults int
	Logger     *zap.Logger
}

func NewPipeline(minResults int, logger *zap.Logger) *Pipeline {
	if minResults <= 0 {
		minResults = DefaultMinResults
	}
	return &Pipeline{MinResults: minResults, Logger: logger}
}

// Filter applies the relaxation tiers to the given vendor list. advanced may
// be nil, meaning no advanced constraints; search may be empty. The returned
// list preserves catalog order within each tier.
func (p *Pipeline) Filter(vendors *catalog.Vendors, profile catalog.UserProfile, advanced *catalog.AdvancedFilters, search string) Result {
	minResults := p.MinResults
	if minResults <= 0 {
		minResults = DefaultMinResults
	}

	result := Result{Vendors: &catalog.Vendors{}}

	for _, t := range tiers {
		candidates := applyTier(vendors, t, profile, advanced, search)

		accepted := false
		switch t.level {
		case 4:
			// Final fallback: the whole catalog, unconditionally.
			accepted = true
		case 3:
			accepted = candidates.Len() > 0
		default:
			accepted = candidates.Len() >= minResults
		}

		result.Steps = append(result.Steps, TierStep{Level: t.level, Count: candidates.Len(), Accepted: accepted})

		if p.Logger != nil {
			p.Logger.Debug("relaxation tier evaluated",
				zap.Int("level", t.level),
				zap.Int("candidates", candidates.Len()),
				zap.Bool("accepted", accepted),
			)
		}

		if accepted {
			result.Vendors = candidates
			result.RelaxationLevel = t.level
			result.Relaxed = t.level > 0
			return result
		}
	}

	// Unreachable: tier 4 always accepts.
	return result
}

// FilterAndSort composes Filter with Sort, carrying the relaxation metadata
// through unchanged.
func (p *Pipeline) FilterAndSort(vendors *catalog.Vendors, profile catalog.UserProfile, advanced *catalog.AdvancedFilters, search string, order Order, engine *scoring.Engine) Result {
	result := p.Filter(vendors, profile, advanced, search)
	result.Vendors = Sort(result.Vendors, order, engine, profile, advanced)
	return result
}

func applyTier(vendors *catalog.Vendors, t tier, profile catalog.UserProfile, advanced *catalog.AdvancedFilters, search string) *catalog.Vendors {
	if t.level == 4 {
		return vendors.Clone()
	}

	matched := &catalog.Vendors{}
	for _, vendor := range vendors.Items {
		if t.useSegment && !vendor.TargetsSegment(profile.CompanySize) {
			continue
		}
		if t.useGoal && !vendor.SupportsGoal(profile.PrimaryGoal) {
			continue
		}
		if t.useAdvanced && advanced != nil && !meetsAdvanced(vendor, advanced) {
			continue
		}
		if t.useSearch && !matchesSearch(vendor, search) {
			continue
		}
		matched.Items = append(matched.Items, vendor)
	}
	return matched
}

// meetsAdvanced treats the advanced filter set as hard requirements: every
// requested channel and integration must be covered, the price bucket must
// be compatible with the budget sensitivity, governance must be signalled
// when required, and the vendor's complexity must fit the stated tolerance.
func meetsAdvanced(vendor *catalog.Vendor, advanced *catalog.AdvancedFilters) bool {
	for _, channel := range advanced.Channels {
		if !vendor.HasChannel(channel) {
			return false
		}
	}
	for _, integration := range advanced.Integrations {
		if !vendor.HasIntegration(integration) {
			return false
		}
	}
	if advanced.BudgetSensitivity == catalog.SensitivityHigh && vendor.StartingPriceBucket == catalog.PriceHigh {
		return false
	}
	if advanced.Governance && !vendor.HasGovernanceSignal() {
		return false
	}
	if advanced.ImplementationTolerance != "" && !vendor.CompatibleComplexity(advanced.ImplementationTolerance) {
		return false
	}
	return true
}

// matchesSearch does a case-insensitive substring match against the vendor
// name, tagline and description. An empty search matches everything.
func matchesSearch(vendor *catalog.Vendor, search string) bool {
	needle := strings.ToLower(strings.TrimSpace(search))
	if needle == "" {
		return true
	}
	for _, haystack := range []string{vendor.Name, vendor.Tagline, vendor.Description} {
		if strings.Contains(strings.ToLower(haystack), needle) {
			return true
		}
	}
	return false
}
