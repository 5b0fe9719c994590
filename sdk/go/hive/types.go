package hive

import "time"

// SelectRequest describes the task to select an agent for.
type SelectRequest struct {
	RequiredCapabilities []string `json:"required_capabilities,omitempty"`
	Complexity           string   `json:"complexity,omitempty"`
	DomainHint           string   `json:"domain_hint,omitempty"`
	Strategy             string   `json:"strategy,omitempty"`
	Limit                int      `json:"limit,omitempty"`
}

// SelectResponse is the ranked result of a selection.
type SelectResponse struct {
	Results      []Match `json:"results"`
	StrategyUsed string  `json:"strategy_used"`
}

// Match is one ranked candidate.
type Match struct {
	AgentID        string             `json:"agent_id"`
	Score          float64            `json:"score"`
	ScoreBreakdown map[string]float64 `json:"score_breakdown"`
	Confidence     float64            `json:"confidence"`
}

// RecordExecutionRequest reports one completed task outcome.
type RecordExecutionRequest struct {
	AgentID         string  `json:"agent_id"`
	Success         bool    `json:"success"`
	ExecutionTimeMs int64   `json:"execution_time_ms"`
	SessionID       *string `json:"session_id,omitempty"`
	UserID          *string `json:"user_id,omitempty"`
}

// Execution is one recorded execution row.
type Execution struct {
	ID              string  `json:"id"`
	AgentID         string  `json:"agent_id"`
	SessionID       *string `json:"session_id,omitempty"`
	UserID          *string `json:"user_id,omitempty"`
	Success         bool    `json:"success"`
	ExecutionTimeMs int64   `json:"execution_time_ms"`
	// CreatedAt is epoch milliseconds.
	CreatedAt int64 `json:"created_at"`
}

// CreatedAtTime converts the epoch-millisecond timestamp to time.Time.
func (e Execution) CreatedAtTime() time.Time {
	return time.UnixMilli(e.CreatedAt).UTC()
}

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

// Pattern is one stable success pattern for an agent.
type Pattern struct {
	AgentID string `json:"agent_id"`
	Length  int    `json:"length"`
	// FirstSeen and LastSeen are epoch milliseconds.
	FirstSeen int64   `json:"first_seen"`
	LastSeen  int64   `json:"last_seen"`
	Strength  float64 `json:"strength"`
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

// WorkloadState is the workload after an acquire or release.
type WorkloadState struct {
	AgentID         string `json:"agent_id"`
	CurrentWorkload int    `json:"current_workload"`
}

// HealthResponse is the server health report.
type HealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	Agents        int    `json:"agents"`
	StorageStatus string `json:"storage_status"`
}
