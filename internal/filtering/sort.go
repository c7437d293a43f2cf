package filtering

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/brevera/stackmatch/internal/catalog"
	"github.com/brevera/stackmatch/internal/scoring"
)

// Order selects a sort criterion. Sorting never changes the candidate set,
// only its order.
type Order string

const (
	OrderRecommended Order = "recommended"
	OrderRating      Order = "rating"
	OrderComplexity  Order = "complexity"
	OrderName        Order = "name"
)

// ParseOrder converts free-form user input into an Order. An empty string
// defaults to recommended.
func ParseOrder(s string) (Order, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(OrderRecommended):
		return OrderRecommended, nil
	case string(OrderRating):
		return OrderRating, nil
	case string(OrderComplexity):
		return OrderComplexity, nil
	case string(OrderName):
		return OrderName, nil
	}
	return "", fmt.Errorf("unknown sort order %q (want recommended, rating, complexity or name)", s)
}

var complexityRank = map[catalog.Complexity]int{
	catalog.ComplexityLight:  0,
	catalog.ComplexityMedium: 1,
	catalog.ComplexityHeavy:  2,
}

// Sort returns a new list ordered by the given criterion. All orders are
// stable: ties keep the incoming (catalog) order, so sorting an already
// sorted list is a no-op. The engine, profile and advanced set are only
// consulted for OrderRecommended.
func Sort(vendors *catalog.Vendors, order Order, engine *scoring.Engine, profile catalog.UserProfile, advanced *catalog.AdvancedFilters) *catalog.Vendors {
	sorted := vendors.Clone()
	items := sorted.Items

	switch order {
	case OrderRating:
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].AverageRating() > items[j].AverageRating()
		})
	case OrderComplexity:
		sort.SliceStable(items, func(i, j int) bool {
			return complexityRank[items[i].Complexity] < complexityRank[items[j].Complexity]
		})
	case OrderName:
		collator := collate.New(language.English, collate.IgnoreCase)
		sort.SliceStable(items, func(i, j int) bool {
			return collator.CompareString(items[i].Name, items[j].Name) < 0
		})
	default: // OrderRecommended
		if engine == nil {
			engine = scoring.NewEngine(scoring.DefaultWeights())
		}
		scores := make(map[string]int, len(items))
		for _, vendor := range items {
			scores[vendor.ID] = engine.Score(vendor, profile, advanced).Score
		}
		sort.SliceStable(items, func(i, j int) bool {
			return scores[items[i].ID] > scores[items[j].ID]
		})
	}

	return sorted
}
