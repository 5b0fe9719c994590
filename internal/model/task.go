package model

// Strategy selects a predefined weight profile for the matcher.
type Strategy string

const (
	StrategyBalanced    Strategy = "balanced"
	StrategyPerformance Strategy = "performance"
	StrategySpeed       Strategy = "speed"
	StrategyAccuracy    Strategy = "accuracy"
)

// KnownStrategy reports whether s names a defined weight profile.
// Unknown strategies are normalized to balanced by the matcher, never
// surfaced as errors.
func KnownStrategy(s Strategy) bool {
	switch s {
	case StrategyBalanced, StrategyPerformance, StrategySpeed, StrategyAccuracy:
		return true
	default:
		return false
	}
}

// TaskRequirement describes one incoming task for matching. Ephemeral —
// created per request and discarded after scoring.
type TaskRequirement struct {
	RequiredCapabilities []string   `json:"required_capabilities"`
	InferredComplexity   Complexity `json:"inferred_complexity"`
	// DomainHint is an optional category tag inferred from the task text.
	DomainHint string `json:"domain_hint,omitempty"`
}
