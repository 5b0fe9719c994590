package catalog

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthive/hive/internal/model"
)

func TestLoadParsesCatalog(t *testing.T) {
	const doc = `[
		{"id": "backend-developer", "category": "development",
		 "capabilities": ["api-design", "databases"],
		 "description": "Builds server-side services and APIs",
		 "complexity": "high"},
		{"id": "copywriter", "category": "content",
		 "capabilities": ["copywriting"],
		 "description": "Writes marketing copy",
		 "complexity": "low",
		 "specialization_keywords": ["marketing", "copy"]}
	]`

	records, err := Load(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "backend-developer", records[0].ID)
	assert.Equal(t, model.ComplexityHigh, records[0].Complexity)
	// No explicit keywords: derived from category and description.
	assert.Contains(t, records[0].SpecializationKeywords, "development")
	assert.Contains(t, records[0].SpecializationKeywords, "services")

	// Explicit keywords are taken as-is.
	assert.Equal(t, []string{"marketing", "copy"}, records[1].SpecializationKeywords)
}

func TestLoadRejectsDuplicateIDs(t *testing.T) {
	const doc = `[
		{"id": "qa-engineer", "category": "quality"},
		{"id": "qa-engineer", "category": "quality"}
	]`
	_, err := Load(strings.NewReader(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestLoadRejectsMissingCategory(t *testing.T) {
	_, err := Load(strings.NewReader(`[{"id": "qa-engineer"}]`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "category")
}

func TestLoadRejectsInvalidID(t *testing.T) {
	_, err := Load(strings.NewReader(`[{"id": "bad id!", "category": "quality"}]`))
	require.Error(t, err)
}

func TestDefaultCatalogIsValid(t *testing.T) {
	records, err := Default()
	require.NoError(t, err)
	assert.NotEmpty(t, records)
	for _, rec := range records {
		assert.NoError(t, model.ValidateAgentID(rec.ID))
		assert.NotEmpty(t, rec.Category)
		assert.NotEmpty(t, rec.SpecializationKeywords, "agent %s", rec.ID)
	}
}

func TestDeriveKeywords(t *testing.T) {
	kw := DeriveKeywords("backend-developer", "Builds and maintains APIs for the data layer")
	assert.Contains(t, kw, "backend")
	assert.Contains(t, kw, "developer")
	assert.Contains(t, kw, "maintains")
	assert.Contains(t, kw, "apis")
	// Short words and stopwords are dropped.
	assert.NotContains(t, kw, "and")
	assert.NotContains(t, kw, "the")
	assert.NotContains(t, kw, "for")
	// Deterministic ordering.
	again := DeriveKeywords("backend-developer", "Builds and maintains APIs for the data layer")
	assert.Equal(t, kw, again)
}

func TestRegistrySeedsNeutralStats(t *testing.T) {
	reg, err := NewRegistry([]model.AgentRecord{
		{ID: "qa-engineer", Category: "quality"},
		{ID: "backend-developer", Category: "development", HistoricalSuccessRate: 0.9, AverageTaskTimeSeconds: 12},
	}, 60)
	require.NoError(t, err)

	fresh, ok := reg.Get("qa-engineer")
	require.True(t, ok)
	assert.Equal(t, 0.5, fresh.HistoricalSuccessRate)
	assert.Equal(t, 60.0, fresh.AverageTaskTimeSeconds)

	seeded, ok := reg.Get("backend-developer")
	require.True(t, ok)
	assert.Equal(t, 0.9, seeded.HistoricalSuccessRate)
	assert.Equal(t, 12.0, seeded.AverageTaskTimeSeconds)
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	_, err := NewRegistry([]model.AgentRecord{
		{ID: "qa-engineer", Category: "quality"},
		{ID: "qa-engineer", Category: "quality"},
	}, 60)
	require.Error(t, err)
}

func TestRegistrySnapshotIsSortedCopy(t *testing.T) {
	reg, err := NewRegistry([]model.AgentRecord{
		{ID: "zeta", Category: "quality"},
		{ID: "alpha", Category: "quality"},
	}, 60)
	require.NoError(t, err)

	snap := reg.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "alpha", snap[0].ID)
	assert.Equal(t, "zeta", snap[1].ID)

	// Mutating the snapshot must not leak into the registry.
	snap[0].CurrentWorkload = 99
	rec, _ := reg.Get("alpha")
	assert.Equal(t, 0, rec.CurrentWorkload)
}

func TestRegistryApplyStats(t *testing.T) {
	reg, err := NewRegistry([]model.AgentRecord{{ID: "qa-engineer", Category: "quality"}}, 60)
	require.NoError(t, err)

	reg.ApplyStats("qa-engineer", 0.8, 2.5)
	rec, _ := reg.Get("qa-engineer")
	assert.Equal(t, 0.8, rec.HistoricalSuccessRate)
	assert.Equal(t, 2.5, rec.AverageTaskTimeSeconds)

	// Unknown ids are ignored, not errors.
	reg.ApplyStats("ghost", 1.0, 1.0)
	assert.Equal(t, 1, reg.Len())
}

func TestRegistryWorkloadLifecycle(t *testing.T) {
	reg, err := NewRegistry([]model.AgentRecord{{ID: "qa-engineer", Category: "quality"}}, 60)
	require.NoError(t, err)

	require.True(t, reg.Acquire("qa-engineer"))
	require.True(t, reg.Acquire("qa-engineer"))
	rec, _ := reg.Get("qa-engineer")
	assert.Equal(t, 2, rec.CurrentWorkload)

	require.True(t, reg.Release("qa-engineer"))
	require.True(t, reg.Release("qa-engineer"))
	require.True(t, reg.Release("qa-engineer")) // clamped at zero
	rec, _ = reg.Get("qa-engineer")
	assert.Equal(t, 0, rec.CurrentWorkload)

	assert.False(t, reg.Acquire("ghost"))
	assert.False(t, reg.Release("ghost"))
}
