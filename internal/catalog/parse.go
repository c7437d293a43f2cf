package catalog

import (
	"fmt"
	"strings"
)

// ParseSegment converts free-form user input into a Segment.
func ParseSegment(s string) (Segment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "smb", "small", "startup":
		return SegmentSMB, nil
	case "mm", "mid", "mid-market", "midmarket":
		return SegmentMM, nil
	case "ent", "enterprise":
		return SegmentENT, nil
	}
	return "", fmt.Errorf("unknown company size %q (want SMB, MM or ENT)", s)
}

// ParseGoal converts free-form user input into a Goal.
func ParseGoal(s string) (Goal, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "acquisition":
		return GoalAcquisition, nil
	case "activation":
		return GoalActivation, nil
	case "retention":
		return GoalRetention, nil
	case "omnichannel":
		return GoalOmnichannel, nil
	case "crm":
		return GoalCRM, nil
	}
	return "", fmt.Errorf("unknown goal %q (want Acquisition, Activation, Retention, Omnichannel or CRM)", s)
}

// ParseSensitivity converts free-form user input into a Sensitivity.
// An empty string means the dimension is unconstrained.
func ParseSensitivity(s string) (Sensitivity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return "", nil
	case "low":
		return SensitivityLow, nil
	case "medium":
		return SensitivityMedium, nil
	case "high":
		return SensitivityHigh, nil
	}
	return "", fmt.Errorf("unknown sensitivity %q (want low, medium or high)", s)
}
