package scoring

// Weights holds the point values of the additive scoring model. The exact
// numbers are policy and can be overridden via configuration; the final score
// is always clamped into [0,100] regardless of how they are tuned.
type Weights struct {
	Base int `mapstructure:"base"`

	Segment int `mapstructure:"segment"`

	// PerGoalTag points per matched strength tag, total capped at GoalMax.
	PerGoalTag int `mapstructure:"per-goal-tag"`
	GoalMax    int `mapstructure:"goal-max"`

	// RatingMax is awarded in full for a perfect 5.0 average rating and
	// scales linearly below it.
	RatingMax int `mapstructure:"rating-max"`

	Industry int `mapstructure:"industry"`

	// PerChannel points per covered required channel, at most
	// MaxChannelMatches channels counted.
	PerChannel        int `mapstructure:"per-channel"`
	MaxChannelMatches int `mapstructure:"max-channel-matches"`

	PerIntegration        int `mapstructure:"per-integration"`
	MaxIntegrationMatches int `mapstructure:"max-integration-matches"`

	BudgetMax int `mapstructure:"budget-max"`

	Governance int `mapstructure:"governance"`
	Complexity int `mapstructure:"complexity"`

	// HouseBrand is the fixed nudge for the catalog owner's own product,
	// applied after all other bonuses and before the clamp.
	HouseBrand int `mapstructure:"house-brand"`
}

// DefaultWeights returns the stock point model.
func DefaultWeights() Weights {
	return Weights{
		Base:                  40,
		Segment:               20,
		PerGoalTag:            5,
		GoalMax:               15,
		RatingMax:             10,
		Industry:              10,
		PerChannel:            3,
		MaxChannelMatches:     3,
		PerIntegration:        2,
		MaxIntegrationMatches: 4,
		BudgetMax:             6,
		Governance:            5,
		Complexity:            5,
		HouseBrand:            3,
	}
}
