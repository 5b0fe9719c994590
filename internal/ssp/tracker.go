// Package ssp implements the Stable Success Pattern tracker: it records
// every procedure execution in the append-only log and derives the
// per-agent aggregate statistics the matcher consumes.
package ssp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/agenthive/hive/internal/catalog"
	"github.com/agenthive/hive/internal/model"
	"github.com/agenthive/hive/internal/storage"
	"github.com/agenthive/hive/internal/telemetry"
)

// Caller errors: surfaced immediately, never retried, no partial write.
var (
	ErrInvalidAgentID  = errors.New("ssp: invalid agent id")
	ErrInvalidDuration = errors.New("ssp: invalid duration")
)

// Config tunes the tracker. Zero values are replaced with defaults.
type Config struct {
	// StatsTTL bounds how often RefreshAgentStatistics recomputes the
	// same agent's aggregates. Races within the window just recompute —
	// redundant work, not a correctness issue.
	StatsTTL time.Duration
	// DefaultAvgTaskTime is reported for agents with no recorded rows.
	DefaultAvgTaskTime time.Duration
	// RetryAttempts and RetryBaseDelay bound the insert retry loop.
	RetryAttempts  int
	RetryBaseDelay time.Duration
	// PatternDecay is the weekly decay factor for pattern strength.
	PatternDecay float64
	// PatternMinRun is the shortest success run reported as a pattern.
	PatternMinRun int
}

func (c Config) withDefaults() Config {
	if c.StatsTTL <= 0 {
		c.StatsTTL = time.Minute
	}
	if c.DefaultAvgTaskTime <= 0 {
		c.DefaultAvgTaskTime = time.Minute
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = 3
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = 50 * time.Millisecond
	}
	if c.PatternDecay <= 0 || c.PatternDecay >= 1 {
		c.PatternDecay = 0.95
	}
	if c.PatternMinRun <= 0 {
		c.PatternMinRun = 3
	}
	return c
}

// Tracker records executions and folds aggregate statistics back into
// the shared registry.
type Tracker struct {
	store    storage.ExecutionStore
	registry *catalog.Registry
	logger   *slog.Logger
	cfg      Config
	now      func() time.Time

	mu          sync.Mutex
	refreshedAt map[string]time.Time

	recordDuration metric.Float64Histogram
}

// New creates a Tracker. The registry is shared with the matcher's
// caller; statistics folded in here are visible on the next snapshot.
func New(store storage.ExecutionStore, registry *catalog.Registry, logger *slog.Logger, cfg Config) *Tracker {
	meter := telemetry.Meter("hive/ssp")
	recDur, _ := meter.Float64Histogram("hive.ssp.record.duration",
		metric.WithDescription("Time to persist one execution row (ms)"),
		metric.WithUnit("ms"),
	)
	return &Tracker{
		store:          store,
		registry:       registry,
		logger:         logger,
		cfg:            cfg.withDefaults(),
		now:            time.Now,
		refreshedAt:    make(map[string]time.Time),
		recordDuration: recDur,
	}
}

// SetClock replaces the tracker's clock. Tests only.
func (t *Tracker) SetClock(now func() time.Time) { t.now = now }

// RecordInput is the input to Record.
type RecordInput struct {
	AgentID         string
	Success         bool
	ExecutionTimeMs int64
	SessionID       *string
	UserID          *string
}

// Record validates the input and appends one execution row. Transient
// storage failures are retried with jittered backoff before the error
// surfaces; validation failures are never retried. Registry statistics
// are not updated synchronously — they are recomputed on read through
// RefreshAgentStatistics.
func (t *Tracker) Record(ctx context.Context, input RecordInput) (model.ProcedureExecution, error) {
	if err := model.ValidateAgentID(input.AgentID); err != nil {
		return model.ProcedureExecution{}, fmt.Errorf("%w: %v", ErrInvalidAgentID, err)
	}
	if input.ExecutionTimeMs < 0 {
		return model.ProcedureExecution{}, fmt.Errorf("%w: execution_time_ms must be >= 0, got %d",
			ErrInvalidDuration, input.ExecutionTimeMs)
	}

	exec := model.ProcedureExecution{
		ID:              uuid.New().String(),
		AgentID:         input.AgentID,
		SessionID:       input.SessionID,
		UserID:          input.UserID,
		Success:         input.Success,
		ExecutionTimeMs: input.ExecutionTimeMs,
		CreatedAt:       t.now().UnixMilli(),
	}

	start := t.now()
	err := storage.WithRetry(ctx, t.cfg.RetryAttempts, t.cfg.RetryBaseDelay, func() error {
		return t.store.InsertExecution(ctx, exec)
	})
	t.recordDuration.Record(ctx, float64(time.Since(start).Milliseconds()),
		metric.WithAttributes(attribute.Bool("hive.success", input.Success)))
	if err != nil {
		return model.ProcedureExecution{}, fmt.Errorf("ssp: record execution: %w", err)
	}

	// The cached aggregate for this agent is now stale.
	t.mu.Lock()
	delete(t.refreshedAt, exec.AgentID)
	t.mu.Unlock()

	return exec, nil
}

// SuccessRate returns successes/total over all rows for the agent.
// Zero rows yield the neutral prior 0.5 so untested agents are neither
// favored nor penalized.
func (t *Tracker) SuccessRate(ctx context.Context, agentID string) (float64, error) {
	agg, err := t.store.AgentAggregate(ctx, agentID)
	if err != nil {
		return 0, fmt.Errorf("ssp: success rate: %w", err)
	}
	if agg.Total == 0 {
		return 0.5, nil
	}
	return float64(agg.Successes) / float64(agg.Total), nil
}

// AverageExecutionTime returns the mean execution time in seconds.
// Zero rows yield the configured default.
func (t *Tracker) AverageExecutionTime(ctx context.Context, agentID string) (float64, error) {
	agg, err := t.store.AgentAggregate(ctx, agentID)
	if err != nil {
		return 0, fmt.Errorf("ssp: average execution time: %w", err)
	}
	if agg.Total == 0 {
		return t.cfg.DefaultAvgTaskTime.Seconds(), nil
	}
	return agg.MeanTimeMs / 1000.0, nil
}

// AgentAggregate exposes the raw rollup for stats endpoints.
func (t *Tracker) AgentAggregate(ctx context.Context, agentID string) (model.AgentAggregate, error) {
	agg, err := t.store.AgentAggregate(ctx, agentID)
	if err != nil {
		return model.AgentAggregate{}, fmt.Errorf("ssp: aggregate: %w", err)
	}
	return agg, nil
}

// RefreshAgentStatistics recomputes the agent's aggregates and folds
// them into the registry, skipping the query while the previous refresh
// is within the TTL. On storage failure the registry keeps its
// last-known values and the error is returned for the caller to log —
// matching must proceed, not block on a broken log.
func (t *Tracker) RefreshAgentStatistics(ctx context.Context, agentID string) error {
	t.mu.Lock()
	last, ok := t.refreshedAt[agentID]
	t.mu.Unlock()
	if ok && t.now().Sub(last) < t.cfg.StatsTTL {
		return nil
	}

	agg, err := t.store.AgentAggregate(ctx, agentID)
	if err != nil {
		return fmt.Errorf("ssp: refresh statistics for %s: %w", agentID, err)
	}

	rate := 0.5
	avgSeconds := t.cfg.DefaultAvgTaskTime.Seconds()
	if agg.Total > 0 {
		rate = float64(agg.Successes) / float64(agg.Total)
		avgSeconds = agg.MeanTimeMs / 1000.0
	}
	t.registry.ApplyStats(agentID, rate, avgSeconds)

	t.mu.Lock()
	t.refreshedAt[agentID] = t.now()
	t.mu.Unlock()
	return nil
}

// RefreshAll lazily refreshes every registered agent ahead of a
// matching call. Storage failures degrade gracefully: one warning, stop
// refreshing, and let the matcher score on last-known statistics.
func (t *Tracker) RefreshAll(ctx context.Context) {
	for _, rec := range t.registry.Snapshot() {
		if err := t.RefreshAgentStatistics(ctx, rec.ID); err != nil {
			t.logger.Warn("stats refresh failed, matching on cached statistics", "error", err)
			return
		}
	}
}

// InvalidateStats drops the TTL marker for an agent. Tests only.
func (t *Tracker) InvalidateStats(agentID string) {
	t.mu.Lock()
	delete(t.refreshedAt, agentID)
	t.mu.Unlock()
}
