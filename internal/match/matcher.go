// Package match implements the capability matcher: a weighted
// multi-criteria scorer that ranks candidate agents for a task
// requirement. Scoring is purely functional — the matcher reads agent
// statistics but never mutates them.
package match

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/agenthive/hive/internal/model"
	"github.com/agenthive/hive/internal/telemetry"
)

// ErrEmptyCandidateSet is returned when no candidates are supplied.
// Caller error: surfaced immediately, never retried.
var ErrEmptyCandidateSet = errors.New("match: empty candidate set")

// Score floors. Slow and busy agents never score zero on the
// normalized criteria — they stay rankable, just heavily discounted.
const (
	timeScoreFloor     = 0.1
	workloadScoreFloor = 0.1
)

// Specialization tiers (anti-pattern penalties come from the config).
const (
	specializationExact   = 1.0
	specializationPartial = 0.5
	specializationDefault = 0.3
)

// Matcher ranks candidate agents using a configured scoring table.
type Matcher struct {
	cfg    ScoringConfig
	logger *slog.Logger

	selectionDuration metric.Float64Histogram
}

// New creates a Matcher with the given scoring config.
func New(cfg ScoringConfig, logger *slog.Logger) *Matcher {
	meter := telemetry.Meter("hive/match")
	selDur, _ := meter.Float64Histogram("hive.match.selection.duration",
		metric.WithDescription("Time to score and rank candidates (ms)"),
		metric.WithUnit("ms"),
	)
	return &Matcher{
		cfg:               cfg,
		logger:            logger,
		selectionDuration: selDur,
	}
}

// scored pairs a candidate with its computed result for sorting.
type scored struct {
	agent  model.AgentRecord
	result model.MatchResult
}

// SelectBestMatch scores every candidate for the requirement and
// returns results sorted by descending score. Ties break toward the
// lower current workload, then lexicographic agent id, so rankings are
// deterministic. An unknown strategy falls back to balanced with a
// logged warning — never an error.
func (m *Matcher) SelectBestMatch(req model.TaskRequirement, candidates []model.AgentRecord, strategy model.Strategy) ([]model.MatchResult, error) {
	if len(candidates) == 0 {
		return nil, ErrEmptyCandidateSet
	}
	start := time.Now()

	weights, known := m.cfg.profile(strategy)
	if !known {
		m.logger.Warn("unknown strategy, using balanced", "strategy", string(strategy))
		strategy = model.StrategyBalanced
	}

	fastest := fastestTime(candidates)
	leastBusy := lowestWorkload(candidates)

	results := make([]scored, 0, len(candidates))
	for _, agent := range candidates {
		breakdown := map[string]float64{
			model.CriterionSpecialization: weights.Specialization * m.specializationScore(req.DomainHint, agent),
			model.CriterionCapabilities:   weights.Capabilities * capabilityScore(req.RequiredCapabilities, agent),
			model.CriterionSuccessRate:    weights.SuccessRate * agent.HistoricalSuccessRate,
			model.CriterionAverageTime:    weights.AverageTime * timeScore(fastest, agent.AverageTaskTimeSeconds),
			model.CriterionComplexity:     weights.Complexity * complexityScore(req.InferredComplexity, agent.Complexity),
			model.CriterionWorkload:       weights.Workload * workloadScore(leastBusy, agent.CurrentWorkload),
		}
		var total float64
		for _, contribution := range breakdown {
			total += contribution
		}
		results = append(results, scored{
			agent: agent,
			result: model.MatchResult{
				AgentID:        agent.ID,
				Score:          total,
				ScoreBreakdown: breakdown,
			},
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.result.Score != b.result.Score {
			return a.result.Score > b.result.Score
		}
		if a.agent.CurrentWorkload != b.agent.CurrentWorkload {
			return a.agent.CurrentWorkload < b.agent.CurrentWorkload
		}
		return a.agent.ID < b.agent.ID
	})

	confidence := confidenceFromScores(results)
	out := make([]model.MatchResult, len(results))
	for i, s := range results {
		s.result.Confidence = confidence
		out[i] = s.result
	}

	m.selectionDuration.Record(context.Background(), float64(time.Since(start).Milliseconds()),
		metric.WithAttributes(
			attribute.String("hive.strategy", string(strategy)),
			attribute.Int("hive.candidates", len(candidates)),
		))

	return out, nil
}

// specializationScore is the dominant criterion: domain/category fit.
// Exact category match scores 1.0, keyword overlap 0.5, a flagged
// anti-pattern pair its configured penalty, anything else the default.
func (m *Matcher) specializationScore(domainHint string, agent model.AgentRecord) float64 {
	if domainHint == "" {
		return specializationDefault
	}
	if agent.Category == domainHint {
		return specializationExact
	}

	domain, hasDomain := m.cfg.Domains[domainHint]
	if hasDomain {
		for _, cat := range domain.Categories {
			if cat == agent.Category {
				return specializationExact
			}
		}
	}
	if penalty, flagged := m.cfg.antiPatternPenalty(domainHint, agent.Category); flagged {
		return penalty
	}
	if hasDomain && keywordOverlap(domain.Keywords, agent.SpecializationKeywords) {
		return specializationPartial
	}
	return specializationDefault
}

func keywordOverlap(domainKeywords, agentKeywords []string) bool {
	set := make(map[string]bool, len(domainKeywords))
	for _, k := range domainKeywords {
		set[k] = true
	}
	for _, k := range agentKeywords {
		if set[k] {
			return true
		}
	}
	return false
}

// capabilityScore is the fraction of required capabilities the agent
// declares. No required capabilities means the criterion is neutral.
func capabilityScore(required []string, agent model.AgentRecord) float64 {
	if len(required) == 0 {
		return 0.5
	}
	var have int
	for _, tag := range required {
		if agent.HasCapability(tag) {
			have++
		}
	}
	return float64(have) / float64(len(required))
}

// timeScore inverse-normalizes against the fastest candidate: the
// fastest scores 1.0, slower agents proportionally less, floored.
func timeScore(fastest, avgSeconds float64) float64 {
	if avgSeconds <= 0 || fastest <= 0 {
		return 1.0
	}
	score := fastest / avgSeconds
	if score < timeScoreFloor {
		return timeScoreFloor
	}
	return score
}

// complexityScore rewards an exact complexity band match, with partial
// credit for adjacent bands.
func complexityScore(want, have model.Complexity) float64 {
	distance := model.ComplexityRank(want) - model.ComplexityRank(have)
	if distance < 0 {
		distance = -distance
	}
	switch distance {
	case 0:
		return 1.0
	case 1:
		return 0.5
	default:
		return 0.2
	}
}

// workloadScore inverse-normalizes current workload: the least busy
// candidate scores 1.0, floored for the busiest.
func workloadScore(leastBusy, workload int) float64 {
	score := float64(leastBusy+1) / float64(workload+1)
	if score < workloadScoreFloor {
		return workloadScoreFloor
	}
	return score
}

// confidenceGapScale is the top-vs-runner-up score gap that maps to
// full confidence. A gap of zero maps to 0.5.
const confidenceGapScale = 0.3

func confidenceFromScores(sorted []scored) float64 {
	if len(sorted) == 1 {
		return 1.0
	}
	gap := sorted[0].result.Score - sorted[1].result.Score
	if gap >= confidenceGapScale {
		return 1.0
	}
	return 0.5 + gap/confidenceGapScale*0.5
}

// fastestTime returns the lowest positive average task time among
// candidates, or 0 when none have timing history.
func fastestTime(candidates []model.AgentRecord) float64 {
	var fastest float64
	for _, a := range candidates {
		if a.AverageTaskTimeSeconds <= 0 {
			continue
		}
		if fastest == 0 || a.AverageTaskTimeSeconds < fastest {
			fastest = a.AverageTaskTimeSeconds
		}
	}
	return fastest
}

func lowestWorkload(candidates []model.AgentRecord) int {
	lowest := candidates[0].CurrentWorkload
	for _, a := range candidates[1:] {
		if a.CurrentWorkload < lowest {
			lowest = a.CurrentWorkload
		}
	}
	return lowest
}

// Fallback returns the deterministic last-resort choice when scoring is
// unusable: the least busy candidate, then lexicographic id. A failed
// match must never halt task execution.
func Fallback(candidates []model.AgentRecord) (model.AgentRecord, error) {
	if len(candidates) == 0 {
		return model.AgentRecord{}, ErrEmptyCandidateSet
	}
	best := candidates[0]
	for _, a := range candidates[1:] {
		if a.CurrentWorkload < best.CurrentWorkload ||
			(a.CurrentWorkload == best.CurrentWorkload && a.ID < best.ID) {
			best = a
		}
	}
	return best, nil
}
