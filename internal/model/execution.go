package model

import (
	"fmt"
	"time"
)

// ProcedureExecution is one recorded agent invocation. Rows are
// append-only: created on every invocation, never mutated.
type ProcedureExecution struct {
	ID              string  `json:"id"`
	AgentID         string  `json:"agent_id"`
	SessionID       *string `json:"session_id,omitempty"`
	UserID          *string `json:"user_id,omitempty"`
	Success         bool    `json:"success"`
	ExecutionTimeMs int64   `json:"execution_time_ms"`
	// CreatedAt is epoch milliseconds, matching the persisted column.
	CreatedAt int64 `json:"created_at"`
}

// CreatedAtTime returns CreatedAt as a time.Time.
func (e ProcedureExecution) CreatedAtTime() time.Time {
	return time.UnixMilli(e.CreatedAt)
}

// ValidateExecution checks recordExecution inputs. Validation failures
// are caller errors: surfaced immediately, never retried, no partial write.
func ValidateExecution(agentID string, executionTimeMs int64) error {
	if err := ValidateAgentID(agentID); err != nil {
		return err
	}
	if executionTimeMs < 0 {
		return fmt.Errorf("execution_time_ms must be >= 0, got %d", executionTimeMs)
	}
	return nil
}

// AgentAggregate is the per-agent rollup computed from execution rows.
type AgentAggregate struct {
	AgentID   string
	Total     int64
	Successes int64
	// MeanTimeMs is the arithmetic mean of execution_time_ms. Zero when
	// Total is zero.
	MeanTimeMs float64
}

// Pattern is a run of consecutive successful executions detected in an
// agent's recent history. Strength decays with time since last occurrence.
// FirstSeen and LastSeen are epoch milliseconds, like CreatedAt.
type Pattern struct {
	AgentID   string `json:"agent_id"`
	Length    int    `json:"length"`
	FirstSeen int64  `json:"first_seen"`
	LastSeen  int64  `json:"last_seen"`
	// Strength is the decayed base rate in [floor, 1].
	Strength float64 `json:"strength"`
}
