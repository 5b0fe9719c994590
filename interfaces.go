package hive

import "context"

// Selector is the selection surface of the App. Orchestrators that only
// pick agents can depend on this instead of the full App.
type Selector interface {
	SelectAgent(ctx context.Context, req TaskRequest) ([]Match, error)
}

// Recorder is the outcome-recording surface of the App.
type Recorder interface {
	RecordExecution(ctx context.Context, in ExecutionInput) (Execution, error)
	AgentStats(ctx context.Context, agentID string) (AgentStats, error)
}

var (
	_ Selector = (*App)(nil)
	_ Recorder = (*App)(nil)
)
