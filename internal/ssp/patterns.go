package ssp

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/agenthive/hive/internal/model"
)

// DefaultPatternWindow is how many recent executions DetectPatterns
// scans when the caller passes windowSize <= 0.
const DefaultPatternWindow = 20

// patternStrengthFloor keeps long-decayed patterns visible instead of
// letting them vanish to zero.
const patternStrengthFloor = 0.1

// DetectPatterns scans the agent's most recent windowSize executions
// and reports every run of at least PatternMinRun consecutive
// successes. Each run's strength starts at its share of the window and
// decays by PatternDecay per week since the run was last seen, floored
// at patternStrengthFloor. Runs are returned oldest first.
func (t *Tracker) DetectPatterns(ctx context.Context, agentID string, windowSize int) ([]model.Pattern, error) {
	if err := model.ValidateAgentID(agentID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAgentID, err)
	}
	if windowSize <= 0 {
		windowSize = DefaultPatternWindow
	}

	recent, err := t.store.RecentExecutions(ctx, agentID, windowSize)
	if err != nil {
		return nil, fmt.Errorf("ssp: detect patterns: %w", err)
	}
	if len(recent) == 0 {
		return nil, nil
	}

	// RecentExecutions is newest first; walk oldest to newest so runs
	// come out in chronological order.
	ordered := make([]model.ProcedureExecution, len(recent))
	for i, e := range recent {
		ordered[len(recent)-1-i] = e
	}

	var patterns []model.Pattern
	runStart := -1
	for i := 0; i <= len(ordered); i++ {
		if i < len(ordered) && ordered[i].Success {
			if runStart < 0 {
				runStart = i
			}
			continue
		}
		if runStart >= 0 {
			if runLen := i - runStart; runLen >= t.cfg.PatternMinRun {
				first := ordered[runStart]
				last := ordered[i-1]
				patterns = append(patterns, model.Pattern{
					AgentID:   agentID,
					Length:    runLen,
					FirstSeen: first.CreatedAt,
					LastSeen:  last.CreatedAt,
					Strength:  t.patternStrength(runLen, windowSize, last.CreatedAtTime()),
				})
			}
			runStart = -1
		}
	}
	return patterns, nil
}

// patternStrength is the run's share of the window decayed weekly since
// the run last occurred.
func (t *Tracker) patternStrength(runLen, windowSize int, lastSeen time.Time) float64 {
	base := float64(runLen) / float64(windowSize)
	weeks := t.now().Sub(lastSeen).Hours() / (24 * 7)
	if weeks < 0 {
		weeks = 0
	}
	strength := base * math.Pow(t.cfg.PatternDecay, weeks)
	return math.Max(strength, patternStrengthFloor)
}
