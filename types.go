package hive

import (
	"time"

	"github.com/agenthive/hive/internal/model"
)

// Agent is one catalog entry with live statistics.
type Agent struct {
	ID                     string   `json:"id"`
	Category               string   `json:"category"`
	Capabilities           []string `json:"capabilities"`
	Description            string   `json:"description,omitempty"`
	SpecializationKeywords []string `json:"specialization_keywords,omitempty"`
	Complexity             string   `json:"complexity"`
	SuccessRate            float64  `json:"success_rate"`
	AverageTaskTimeSeconds float64  `json:"average_task_time_seconds"`
	CurrentWorkload        int      `json:"current_workload"`
}

// TaskRequest describes the task to select an agent for.
type TaskRequest struct {
	RequiredCapabilities []string `json:"required_capabilities,omitempty"`
	Complexity           string   `json:"complexity,omitempty"`
	DomainHint           string   `json:"domain_hint,omitempty"`
	Strategy             string   `json:"strategy,omitempty"`
	Limit                int      `json:"limit,omitempty"`
}

// Match is one ranked candidate from SelectAgent.
type Match struct {
	AgentID        string             `json:"agent_id"`
	Score          float64            `json:"score"`
	ScoreBreakdown map[string]float64 `json:"score_breakdown"`
	Confidence     float64            `json:"confidence"`
}

// ExecutionInput is the input to RecordExecution.
type ExecutionInput struct {
	AgentID         string  `json:"agent_id"`
	Success         bool    `json:"success"`
	ExecutionTimeMs int64   `json:"execution_time_ms"`
	SessionID       *string `json:"session_id,omitempty"`
	UserID          *string `json:"user_id,omitempty"`
}

// Execution is one recorded execution outcome.
type Execution struct {
	ID              string    `json:"id"`
	AgentID         string    `json:"agent_id"`
	Success         bool      `json:"success"`
	ExecutionTimeMs int64     `json:"execution_time_ms"`
	CreatedAt       time.Time `json:"created_at"`
}

// Pattern is one stable success pattern: a run of consecutive
// successes, with a strength that decays since it was last seen.
type Pattern struct {
	Length    int       `json:"length"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
	Strength  float64   `json:"strength"`
}

// AgentStats is the live statistics view for one agent.
type AgentStats struct {
	AgentID            string    `json:"agent_id"`
	SuccessRate        float64   `json:"success_rate"`
	AverageTimeSeconds float64   `json:"average_time_seconds"`
	TotalExecutions    int64     `json:"total_executions"`
	CurrentWorkload    int       `json:"current_workload"`
	Patterns           []Pattern `json:"patterns,omitempty"`
}

func toPublicAgent(rec model.AgentRecord) Agent {
	return Agent{
		ID:                     rec.ID,
		Category:               rec.Category,
		Capabilities:           append([]string(nil), rec.Capabilities...),
		Description:            rec.Description,
		SpecializationKeywords: append([]string(nil), rec.SpecializationKeywords...),
		Complexity:             string(rec.Complexity),
		SuccessRate:            rec.HistoricalSuccessRate,
		AverageTaskTimeSeconds: rec.AverageTaskTimeSeconds,
		CurrentWorkload:        rec.CurrentWorkload,
	}
}

func toPublicMatch(r model.MatchResult) Match {
	return Match{
		AgentID:        r.AgentID,
		Score:          r.Score,
		ScoreBreakdown: r.ScoreBreakdown,
		Confidence:     r.Confidence,
	}
}

func toPublicExecution(e model.ProcedureExecution) Execution {
	return Execution{
		ID:              e.ID,
		AgentID:         e.AgentID,
		Success:         e.Success,
		ExecutionTimeMs: e.ExecutionTimeMs,
		CreatedAt:       e.CreatedAtTime(),
	}
}

func toPublicPattern(p model.Pattern) Pattern {
	return Pattern{
		Length:    p.Length,
		FirstSeen: time.UnixMilli(p.FirstSeen).UTC(),
		LastSeen:  time.UnixMilli(p.LastSeen).UTC(),
		Strength:  p.Strength,
	}
}
