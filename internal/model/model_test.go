package model

import (
	"strings"
	"testing"
)

func TestParseComplexity(t *testing.T) {
	cases := map[string]Complexity{
		"low":     ComplexityLow,
		"medium":  ComplexityMedium,
		"high":    ComplexityHigh,
		"":        ComplexityMedium,
		"extreme": ComplexityMedium,
		"LOW":     ComplexityMedium,
	}
	for in, want := range cases {
		if got := ParseComplexity(in); got != want {
			t.Errorf("ParseComplexity(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestComplexityRankOrdering(t *testing.T) {
	if ComplexityRank(ComplexityLow) >= ComplexityRank(ComplexityMedium) {
		t.Fatal("low should rank below medium")
	}
	if ComplexityRank(ComplexityMedium) >= ComplexityRank(ComplexityHigh) {
		t.Fatal("medium should rank below high")
	}
	if ComplexityRank("unknown") != ComplexityRank(ComplexityMedium) {
		t.Fatal("unknown complexity should rank as medium")
	}
}

func TestValidateAgentID(t *testing.T) {
	valid := []string{"backend-developer", "agent_1", "a", "ml.specialist-v2", strings.Repeat("x", 255)}
	for _, id := range valid {
		if err := ValidateAgentID(id); err != nil {
			t.Errorf("ValidateAgentID(%q) = %v, want nil", id, err)
		}
	}

	invalid := []string{"", "has spaces", "emoji-é", "slash/name", strings.Repeat("x", 256)}
	for _, id := range invalid {
		if err := ValidateAgentID(id); err == nil {
			t.Errorf("ValidateAgentID(%q) = nil, want error", id)
		}
	}
}

func TestValidateExecution(t *testing.T) {
	if err := ValidateExecution("backend-developer", 0); err != nil {
		t.Fatalf("zero duration should be valid: %v", err)
	}
	if err := ValidateExecution("backend-developer", -1); err == nil {
		t.Fatal("negative duration should be rejected")
	}
	if err := ValidateExecution("", 100); err == nil {
		t.Fatal("empty agent id should be rejected")
	}
}

func TestKnownStrategy(t *testing.T) {
	for _, s := range []Strategy{StrategyBalanced, StrategyPerformance, StrategySpeed, StrategyAccuracy} {
		if !KnownStrategy(s) {
			t.Errorf("KnownStrategy(%q) = false, want true", s)
		}
	}
	if KnownStrategy("cheapest") {
		t.Error("KnownStrategy should reject undefined strategies")
	}
}

func TestHasCapability(t *testing.T) {
	a := AgentRecord{Capabilities: []string{"testing", "debugging"}}
	if !a.HasCapability("testing") {
		t.Fatal("expected capability present")
	}
	if a.HasCapability("Testing") {
		t.Fatal("capability match is case-sensitive")
	}
}
