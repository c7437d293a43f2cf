package scoring

import (
	"strings"

	"github.com/brevera/stackmatch/internal/catalog"
)

// goalKeywords maps a primary goal to the strength-tag keywords that signal
// the vendor is strong at it. Matching is a case-insensitive substring test
// of the keyword inside each strength tag.
var goalKeywords = map[catalog.Goal][]string{
	catalog.GoalAcquisition: {"acquisition", "lead generation", "landing page", "forms", "ads", "seo", "inbound"},
	catalog.GoalActivation:  {"activation", "onboarding", "lifecycle", "product-led", "behavioral"},
	catalog.GoalRetention:   {"retention", "loyalty", "winback", "re-engagement", "email marketing", "churn"},
	catalog.GoalOmnichannel: {"omnichannel", "cross-channel", "sms", "push", "whatsapp", "in-app"},
	catalog.GoalCRM:         {"crm", "sales pipeline", "deals", "contact management", "lead scoring"},
}

func countGoalMatches(goal catalog.Goal, strengthTags []string) int {
	keywords := goalKeywords[goal]
	if len(keywords) == 0 {
		return 0
	}

	matches := 0
	for _, tag := range strengthTags {
		lowered := strings.ToLower(tag)
		for _, keyword := range keywords {
			if strings.Contains(lowered, keyword) {
				matches++
				break
			}
		}
	}
	return matches
}

// budgetPoints rewards vendors whose starting price bucket aligns with the
// user's budget sensitivity. Stricter sensitivity rewards cheaper buckets;
// low sensitivity tolerates any bucket with a flat token award.
func budgetPoints(bucket catalog.PriceBucket, sensitivity catalog.Sensitivity, max int) int {
	switch sensitivity {
	case catalog.SensitivityHigh:
		switch bucket {
		case catalog.PriceFree, catalog.PriceLow:
			return max
		case catalog.PriceMid:
			return max / 2
		default:
			return 0
		}
	case catalog.SensitivityMedium:
		switch bucket {
		case catalog.PriceFree, catalog.PriceLow, catalog.PriceMid:
			return max * 2 / 3
		default:
			return max / 3
		}
	case catalog.SensitivityLow:
		return max / 2
	default:
		return 0
	}
}
