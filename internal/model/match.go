package model

// Scoring criterion names, used as ScoreBreakdown keys and as weight
// profile keys in the scoring config.
const (
	CriterionSpecialization = "specialization"
	CriterionCapabilities   = "capabilities"
	CriterionSuccessRate    = "success_rate"
	CriterionAverageTime    = "average_time"
	CriterionComplexity     = "complexity"
	CriterionWorkload       = "workload"
)

// Criteria lists every scoring criterion in weight-table order.
var Criteria = []string{
	CriterionSpecialization,
	CriterionCapabilities,
	CriterionSuccessRate,
	CriterionAverageTime,
	CriterionComplexity,
	CriterionWorkload,
}

// MatchResult is one ranked candidate from a matching call.
type MatchResult struct {
	AgentID string  `json:"agent_id"`
	Score   float64 `json:"score"`
	// ScoreBreakdown maps criterion name to its weighted contribution,
	// so callers and tests can explain why an agent ranked where it did.
	ScoreBreakdown map[string]float64 `json:"score_breakdown"`
	// Confidence expresses how much better the top match is than the
	// runner-up, in [0,1]. Identical on every result of one call.
	Confidence float64 `json:"confidence"`
}
