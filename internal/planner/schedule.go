package planner

import "time"

// Schedule is the controller's timing policy. Both the poll interval and the
// progress estimate are pure functions of the attempt count, so the policy
// stays testable without real waits.
type Schedule struct {
	// Short/Medium/Long are the poll intervals of the three backoff phases.
	Short  time.Duration
	Medium time.Duration
	Long   time.Duration

	// ShortPhaseEnd and MediumPhaseEnd are the last attempt numbers of the
	// first two phases.
	ShortPhaseEnd  int
	MediumPhaseEnd int
}

// DefaultSchedule polls every 2s for the first 10 attempts, every 5s up to
// attempt 20 and every 10s beyond that.
func DefaultSchedule() Schedule {
	return Schedule{
		Short:          2 * time.Second,
		Medium:         5 * time.Second,
		Long:           10 * time.Second,
		ShortPhaseEnd:  10,
		MediumPhaseEnd: 20,
	}
}

// Interval returns the wait before the given poll attempt (1-based). The
// schedule is a monotonically non-decreasing step function of the attempt
// number and never resets within one job's lifetime.
func (s Schedule) Interval(attempt int) time.Duration {
	switch {
	case attempt <= s.ShortPhaseEnd:
		return s.Short
	case attempt <= s.MediumPhaseEnd:
		return s.Medium
	default:
		return s.Long
	}
}

// progressCeiling keeps the estimate from implying certainty: the estimate
// never reaches 100 until actual completion.
const progressCeiling = 85

// ProgressEstimate maps a poll count to a cosmetic 0-85 completion estimate.
// Early polls advance it quickly, later polls ever more slowly, and it never
// exceeds the ceiling.
func ProgressEstimate(pollCount int) int {
	if pollCount <= 0 {
		return 0
	}
	estimate := progressCeiling * pollCount / (pollCount + 8)
	if estimate > progressCeiling {
		estimate = progressCeiling
	}
	return estimate
}
