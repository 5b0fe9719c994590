package match

import (
	_ "embed"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/agenthive/hive/internal/model"
)

//go:embed scoring.yaml
var defaultScoringYAML []byte

// Weights is one strategy's weight profile over the six criteria.
// Every profile must sum to 1.0 within tolerance.
type Weights struct {
	Specialization float64 `yaml:"specialization"`
	Capabilities   float64 `yaml:"capabilities"`
	SuccessRate    float64 `yaml:"success_rate"`
	AverageTime    float64 `yaml:"average_time"`
	Complexity     float64 `yaml:"complexity"`
	Workload       float64 `yaml:"workload"`
}

// Sum returns the total weight across all criteria.
func (w Weights) Sum() float64 {
	return w.Specialization + w.Capabilities + w.SuccessRate +
		w.AverageTime + w.Complexity + w.Workload
}

// Domain describes one task domain for specialization scoring: the
// categories considered an exact fit and the keywords considered a
// partial fit.
type Domain struct {
	Categories []string `yaml:"categories"`
	Keywords   []string `yaml:"keywords"`
}

// AntiPattern flags a (domain, category) pair as a known poor fit.
// Penalty replaces the specialization score, capped at 0.2.
type AntiPattern struct {
	Domain   string  `yaml:"domain"`
	Category string  `yaml:"category"`
	Penalty  float64 `yaml:"penalty"`
}

// ScoringConfig holds the weight profiles, domain tables, and
// anti-pattern table. Both the weights and the anti-pattern heuristics
// are data, not code, so they can be tuned and unit-tested on their own.
type ScoringConfig struct {
	Profiles     map[model.Strategy]Weights `yaml:"profiles"`
	Domains      map[string]Domain          `yaml:"domains"`
	AntiPatterns []AntiPattern              `yaml:"anti_patterns"`
}

// weightSumTolerance bounds floating point drift in profile sums.
const weightSumTolerance = 1e-6

// DefaultScoringConfig parses the embedded scoring table.
func DefaultScoringConfig() (ScoringConfig, error) {
	return parseScoringConfig(defaultScoringYAML)
}

// LoadScoringConfig reads a scoring table from a YAML file.
func LoadScoringConfig(path string) (ScoringConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ScoringConfig{}, fmt.Errorf("match: read scoring config %s: %w", path, err)
	}
	return parseScoringConfig(data)
}

func parseScoringConfig(data []byte) (ScoringConfig, error) {
	var cfg ScoringConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return ScoringConfig{}, fmt.Errorf("match: parse scoring config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return ScoringConfig{}, err
	}
	return cfg, nil
}

// Validate checks profile completeness, weight sums, and penalty bounds.
func (c ScoringConfig) Validate() error {
	if _, ok := c.Profiles[model.StrategyBalanced]; !ok {
		return fmt.Errorf("match: scoring config must define the %q profile", model.StrategyBalanced)
	}
	for name, w := range c.Profiles {
		if math.Abs(w.Sum()-1.0) > weightSumTolerance {
			return fmt.Errorf("match: profile %q weights sum to %v, want 1.0", name, w.Sum())
		}
	}
	for _, ap := range c.AntiPatterns {
		if ap.Domain == "" || ap.Category == "" {
			return fmt.Errorf("match: anti-pattern entries need both domain and category")
		}
		if ap.Penalty < 0 || ap.Penalty > 0.2 {
			return fmt.Errorf("match: anti-pattern %s/%s penalty %v out of range [0, 0.2]",
				ap.Domain, ap.Category, ap.Penalty)
		}
	}
	return nil
}

// profile returns the weight profile for strategy, falling back to
// balanced and reporting whether the strategy was recognized.
func (c ScoringConfig) profile(strategy model.Strategy) (Weights, bool) {
	if w, ok := c.Profiles[strategy]; ok {
		return w, true
	}
	return c.Profiles[model.StrategyBalanced], false
}

// antiPatternPenalty returns the penalty for (domain, category) and
// whether the pair is flagged.
func (c ScoringConfig) antiPatternPenalty(domain, category string) (float64, bool) {
	for _, ap := range c.AntiPatterns {
		if ap.Domain == domain && ap.Category == category {
			return ap.Penalty, true
		}
	}
	return 0, false
}
