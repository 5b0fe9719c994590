package model

import (
	"fmt"
)

// Complexity is the task complexity band an agent typically handles.
type Complexity string

const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

// ComplexityRank returns the numeric rank of a complexity band.
// Used for adjacency scoring — only relative distance matters.
func ComplexityRank(c Complexity) int {
	switch c {
	case ComplexityLow:
		return 0
	case ComplexityMedium:
		return 1
	case ComplexityHigh:
		return 2
	default:
		return 1
	}
}

// ParseComplexity normalizes a complexity string, defaulting to medium.
func ParseComplexity(s string) Complexity {
	switch Complexity(s) {
	case ComplexityLow, ComplexityMedium, ComplexityHigh:
		return Complexity(s)
	default:
		return ComplexityMedium
	}
}

// AgentRecord is one entry in the agent catalog: immutable identity
// fields loaded at startup plus statistics fields folded back in by the
// execution tracker.
type AgentRecord struct {
	ID                     string     `json:"id"`
	Category               string     `json:"category"`
	Capabilities           []string   `json:"capabilities"`
	Description            string     `json:"description"`
	SpecializationKeywords []string   `json:"specialization_keywords"`
	Complexity             Complexity `json:"complexity"`

	// Statistics. HistoricalSuccessRate and AverageTaskTimeSeconds are
	// recomputed from the execution log; CurrentWorkload is maintained by
	// the orchestrator via the registry.
	HistoricalSuccessRate  float64 `json:"historical_success_rate"`
	AverageTaskTimeSeconds float64 `json:"average_task_time_seconds"`
	CurrentWorkload        int     `json:"current_workload"`
}

// HasCapability reports whether the agent declares the given capability tag.
func (a AgentRecord) HasCapability(tag string) bool {
	for _, c := range a.Capabilities {
		if c == tag {
			return true
		}
	}
	return false
}

// ValidateAgentID checks that an agent ID conforms to the allowed format.
// Agent IDs must be 1-255 ASCII characters: alphanumeric, dots, hyphens,
// and underscores.
func ValidateAgentID(id string) error {
	if len(id) == 0 {
		return fmt.Errorf("agent_id is required")
	}
	if len(id) > 255 {
		return fmt.Errorf("agent_id must be at most 255 characters")
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		if (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') && (c < '0' || c > '9') &&
			c != '.' && c != '-' && c != '_' {
			return fmt.Errorf("agent_id contains invalid character at position %d: %q", i, c)
		}
	}
	return nil
}
