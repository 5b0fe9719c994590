package model

import "time"

// Error codes returned in the HTTP error envelope.
const (
	ErrCodeInvalidInput       = "invalid_input"
	ErrCodeInvalidAgentID     = "invalid_agent_id"
	ErrCodeInvalidDuration    = "invalid_duration"
	ErrCodeEmptyCandidateSet  = "empty_candidate_set"
	ErrCodeNotFound           = "not_found"
	ErrCodeUnauthorized       = "unauthorized"
	ErrCodeRateLimited        = "rate_limited"
	ErrCodeStorageUnavailable = "storage_unavailable"
	ErrCodeInternalError      = "internal_error"
)

// APIResponse is the standard response envelope for all HTTP API responses.
type APIResponse struct {
	Data any          `json:"data,omitempty"`
	Meta ResponseMeta `json:"meta"`
}

// APIError is the standard error response envelope.
type APIError struct {
	Error ErrorDetail  `json:"error"`
	Meta  ResponseMeta `json:"meta"`
}

// ErrorDetail carries a machine-readable code and a human-readable message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ResponseMeta is attached to every response for request correlation.
type ResponseMeta struct {
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// SelectRequest is the body of POST /v1/select.
type SelectRequest struct {
	RequiredCapabilities []string `json:"required_capabilities,omitempty"`
	Complexity           string   `json:"complexity,omitempty"`
	DomainHint           string   `json:"domain_hint,omitempty"`
	Strategy             string   `json:"strategy,omitempty"`
	// Limit caps the number of ranked results returned. 0 means all.
	Limit int `json:"limit,omitempty"`
}

// SelectResponse is the body of POST /v1/select.
type SelectResponse struct {
	Results []MatchResult `json:"results"`
	// StrategyUsed is the profile that actually scored the candidates;
	// it differs from the request when an unknown strategy fell back.
	StrategyUsed string `json:"strategy_used"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	Agents        int    `json:"agents"`
	StorageStatus string `json:"storage_status"`
}

// RecordExecutionRequest is the body of POST /v1/executions.
type RecordExecutionRequest struct {
	AgentID         string  `json:"agent_id"`
	Success         bool    `json:"success"`
	ExecutionTimeMs int64   `json:"execution_time_ms"`
	SessionID       *string `json:"session_id,omitempty"`
	UserID          *string `json:"user_id,omitempty"`
}

// AgentStatsResponse is the body of GET /v1/agents/{agent_id}/stats.
type AgentStatsResponse struct {
	AgentID            string    `json:"agent_id"`
	SuccessRate        float64   `json:"success_rate"`
	AverageTimeSeconds float64   `json:"average_time_seconds"`
	TotalExecutions    int64     `json:"total_executions"`
	CurrentWorkload    int       `json:"current_workload"`
	Patterns           []Pattern `json:"patterns,omitempty"`
}
