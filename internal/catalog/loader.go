// Package catalog loads the static agent catalog and owns the shared
// agent registry. The catalog is read once at startup; identity fields
// are immutable afterwards, statistics fields are updated through the
// registry by the execution tracker and the orchestrator.
package catalog

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/agenthive/hive/internal/model"
)

// catalogEntry is the on-disk JSON shape: one object per agent.
type catalogEntry struct {
	ID                     string   `json:"id"`
	Category               string   `json:"category"`
	Capabilities           []string `json:"capabilities"`
	Description            string   `json:"description"`
	Complexity             string   `json:"complexity,omitempty"`
	SpecializationKeywords []string `json:"specialization_keywords,omitempty"`
}

// LoadFile reads a JSON agent catalog from path.
func LoadFile(path string) ([]model.AgentRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %s: %w", path, err)
	}
	defer f.Close()
	return Load(f)
}

// Load parses a JSON agent catalog (an array of agent objects) from r.
// Duplicate ids and missing required fields are errors — a malformed
// catalog should fail startup, not surface later as bad matches.
func Load(r io.Reader) ([]model.AgentRecord, error) {
	var entries []catalogEntry
	dec := json.NewDecoder(r)
	if err := dec.Decode(&entries); err != nil {
		return nil, fmt.Errorf("catalog: decode: %w", err)
	}

	seen := make(map[string]bool, len(entries))
	records := make([]model.AgentRecord, 0, len(entries))
	for i, e := range entries {
		if err := model.ValidateAgentID(e.ID); err != nil {
			return nil, fmt.Errorf("catalog: entry %d: %w", i, err)
		}
		if seen[e.ID] {
			return nil, fmt.Errorf("catalog: duplicate agent id %q", e.ID)
		}
		seen[e.ID] = true
		if e.Category == "" {
			return nil, fmt.Errorf("catalog: agent %q: category is required", e.ID)
		}

		keywords := e.SpecializationKeywords
		if len(keywords) == 0 {
			keywords = DeriveKeywords(e.Category, e.Description)
		}

		records = append(records, model.AgentRecord{
			ID:                     e.ID,
			Category:               e.Category,
			Capabilities:           append([]string(nil), e.Capabilities...),
			Description:            e.Description,
			SpecializationKeywords: keywords,
			Complexity:             model.ParseComplexity(e.Complexity),
		})
	}
	return records, nil
}

// stopwords excluded from derived specialization keywords. Short
// function words carry no specialization signal.
var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "for": true, "from": true, "in": true, "is": true,
	"it": true, "its": true, "of": true, "on": true, "or": true, "that": true,
	"the": true, "to": true, "with": true, "you": true, "your": true,
	"use": true, "when": true, "this": true, "can": true, "will": true,
}

// DeriveKeywords builds a specialization keyword set from an agent's
// category and description: the category split on hyphens plus every
// distinct lowercased word of four or more letters, minus stopwords.
// Sorted for deterministic output.
func DeriveKeywords(category, description string) []string {
	set := make(map[string]bool)
	for _, part := range strings.Split(category, "-") {
		if part != "" {
			set[strings.ToLower(part)] = true
		}
	}
	for _, word := range strings.FieldsFunc(strings.ToLower(description), func(r rune) bool {
		return (r < 'a' || r > 'z') && (r < '0' || r > '9')
	}) {
		if len(word) < 4 || stopwords[word] {
			continue
		}
		set[word] = true
	}
	keywords := make([]string, 0, len(set))
	for w := range set {
		keywords = append(keywords, w)
	}
	sort.Strings(keywords)
	return keywords
}
