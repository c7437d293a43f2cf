package catalog

import (
	"encoding/json"
	"os"
	"strings"
)

// Segment is a company-size bucket used to match a vendor's target market
// against the user profile.
type Segment string

const (
	SegmentSMB Segment = "SMB"
	SegmentMM  Segment = "MM"
	SegmentENT Segment = "ENT"
)

// Goal is the user's primary marketing objective.
type Goal string

const (
	GoalAcquisition Goal = "Acquisition"
	GoalActivation  Goal = "Activation"
	GoalRetention   Goal = "Retention"
	GoalOmnichannel Goal = "Omnichannel"
	GoalCRM         Goal = "CRM"
)

// Complexity describes how heavy a vendor is to implement and operate.
type Complexity string

const (
	ComplexityLight  Complexity = "light"
	ComplexityMedium Complexity = "medium"
	ComplexityHeavy  Complexity = "heavy"
)

// PriceBucket is the vendor's starting price tier.
type PriceBucket string

const (
	PriceFree PriceBucket = "free"
	PriceLow  PriceBucket = "low"
	PriceMid  PriceBucket = "mid"
	PriceHigh PriceBucket = "high"
)

// Sensitivity grades how strict the user is about a dimension (budget,
// implementation effort).
type Sensitivity string

const (
	SensitivityLow    Sensitivity = "low"
	SensitivityMedium Sensitivity = "medium"
	SensitivityHigh   Sensitivity = "high"
)

// IndustryGeneral is the sentinel industry value meaning "no specific
// industry". It disables the industry-fit bonus.
const IndustryGeneral = "General"

// ReviewSource holds aggregated review data from one external review site.
type ReviewSource struct {
	Rating       float64 `json:"rating"`
	ReviewsCount int     `json:"reviews_count"`
	URL          string  `json:"url,omitempty"`
	LastChecked  string  `json:"last_checked,omitempty"`
}

// Vendor is a single immutable catalog record. Records are created once at
// catalog load time and never mutated afterwards.
type Vendor struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Tagline     string `json:"tagline,omitempty"`
	Description string `json:"description,omitempty"`
	LogoURL     string `json:"logo_url,omitempty"`
	Website     string `json:"website,omitempty"`

	TargetSegments []Segment `json:"target_segments"`
	SupportedGoals []Goal    `json:"supported_goals"`
	StrengthTags   []string  `json:"strength_tags,omitempty"`
	WeaknessTags   []string  `json:"weakness_tags,omitempty"`
	IndustryFocus  []string  `json:"industry_focus,omitempty"`

	Complexity          Complexity  `json:"complexity"`
	Channels            []string    `json:"channels,omitempty"`
	NativeIntegrations  []string    `json:"native_integrations,omitempty"`
	GovernanceFeatures  []string    `json:"governance_features,omitempty"`
	PricingModel        string      `json:"pricing_model,omitempty"`
	StartingPriceBucket PriceBucket `json:"starting_price_bucket"`

	G2       ReviewSource `json:"g2"`
	Capterra ReviewSource `json:"capterra"`

	IsHouseBrand bool `json:"is_house_brand,omitempty"`
}

// AverageRating returns the mean of the two review source ratings.
func (v *Vendor) AverageRating() float64 {
	return (v.G2.Rating + v.Capterra.Rating) / 2
}

// TargetsSegment reports whether the vendor markets to the given segment.
func (v *Vendor) TargetsSegment(s Segment) bool {
	for _, t := range v.TargetSegments {
		if t == s {
			return true
		}
	}
	return false
}

// SupportsGoal reports whether the vendor lists the given goal.
func (v *Vendor) SupportsGoal(g Goal) bool {
	for _, sg := range v.SupportedGoals {
		if sg == g {
			return true
		}
	}
	return false
}

// HasChannel reports whether the vendor covers the given channel tag.
func (v *Vendor) HasChannel(channel string) bool {
	return containsFold(v.Channels, channel)
}

// HasIntegration reports whether the vendor natively integrates with the
// given product name.
func (v *Vendor) HasIntegration(name string) bool {
	return containsFold(v.NativeIntegrations, name)
}

// governanceKeywords signal enterprise-grade security and control.
var governanceKeywords = []string{"enterprise", "sso", "rbac", "governance", "compliance", "security"}

// HasGovernanceSignal reports whether any governance keyword appears in the
// vendor's strength tags or governance features.
func (v *Vendor) HasGovernanceSignal() bool {
	for _, tag := range append(append([]string{}, v.StrengthTags...), v.GovernanceFeatures...) {
		lowered := strings.ToLower(tag)
		for _, keyword := range governanceKeywords {
			if strings.Contains(lowered, keyword) {
				return true
			}
		}
	}
	return false
}

// CompatibleComplexity reports whether the vendor's implementation weight
// fits the given tolerance. Low tolerance accepts only light vendors, medium
// accepts light and medium, high accepts anything.
func (v *Vendor) CompatibleComplexity(tolerance Sensitivity) bool {
	switch tolerance {
	case SensitivityLow:
		return v.Complexity == ComplexityLight
	case SensitivityMedium:
		return v.Complexity == ComplexityLight || v.Complexity == ComplexityMedium
	case SensitivityHigh:
		return true
	default:
		return false
	}
}

func containsFold(list []string, target string) bool {
	for _, item := range list {
		if strings.EqualFold(strings.TrimSpace(item), strings.TrimSpace(target)) {
			return true
		}
	}
	return false
}

// UserProfile is the per-request profile the engines score against.
type UserProfile struct {
	CompanySize Segment `json:"company_size"`
	Industry    string  `json:"industry,omitempty"`
	PrimaryGoal Goal    `json:"primary_goal"`
}

// HasIndustry reports whether the profile carries a specific industry. The
// "General" sentinel and an empty value both mean no industry preference.
func (p UserProfile) HasIndustry() bool {
	industry := strings.TrimSpace(p.Industry)
	return industry != "" && !strings.EqualFold(industry, IndustryGeneral)
}

// AdvancedFilters is the optional finer-grained filter set. A nil
// *AdvancedFilters means "no advanced constraints" and is a first-class
// input, not an error.
type AdvancedFilters struct {
	Channels                []string    `json:"channels,omitempty"`
	Integrations            []string    `json:"integrations,omitempty"`
	BudgetSensitivity       Sensitivity `json:"budget_sensitivity,omitempty"`
	Governance              bool        `json:"governance,omitempty"`
	ImplementationTolerance Sensitivity `json:"implementation_tolerance,omitempty"`
}

// Vendors is an ordered vendor list. Order follows the catalog file and is
// the tie-break order for recommended sorting.
type Vendors struct {
	Items []*Vendor
}

func (v *Vendors) Len() int {
	return len(v.Items)
}

func (v *Vendors) FindByID(id string) *Vendor {
	for _, vendor := range v.Items {
		if vendor.ID == id {
			return vendor
		}
	}
	return nil
}

func (v *Vendors) Names() []string {
	names := make([]string, 0, len(v.Items))
	for _, vendor := range v.Items {
		names = append(names, vendor.Name)
	}
	return names
}

// Clone returns a shallow copy of the list. Vendor records themselves are
// shared and read-only.
func (v *Vendors) Clone() *Vendors {
	items := make([]*Vendor, len(v.Items))
	copy(items, v.Items)
	return &Vendors{Items: items}
}

func (v *Vendors) DumpToTmpFile() (string, error) {
	file, err := os.CreateTemp("", "vendors_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return file.Name(), nil
}
