package mcp

import (
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthive/hive/internal/catalog"
	"github.com/agenthive/hive/internal/match"
	"github.com/agenthive/hive/internal/model"
	"github.com/agenthive/hive/internal/ssp"
	"github.com/agenthive/hive/internal/storage"
)

func newTestMCP(t *testing.T) *Server {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)

	store, err := storage.OpenSQLite(context.Background(),
		filepath.Join(t.TempDir(), "executions.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close(context.Background()) })

	records, err := catalog.Default()
	require.NoError(t, err)
	registry, err := catalog.NewRegistry(records, 60)
	require.NoError(t, err)

	scoring, err := match.DefaultScoringConfig()
	require.NoError(t, err)
	tracker := ssp.New(store, registry, logger, ssp.Config{StatsTTL: time.Minute})

	return New(registry, match.New(scoring, logger), tracker, logger, "test")
}

func toolRequest(args map[string]any) mcplib.CallToolRequest {
	req := mcplib.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func textContent(t *testing.T, result *mcplib.CallToolResult) string {
	t.Helper()
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(mcplib.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestSelectAgentTool(t *testing.T) {
	s := newTestMCP(t)

	result, err := s.handleSelectAgent(context.Background(), toolRequest(map[string]any{
		"domain_hint": "development",
		"complexity":  "high",
		"limit":       float64(2),
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var payload struct {
		Results []model.MatchResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(textContent(t, result)), &payload))
	require.Len(t, payload.Results, 2)
	assert.GreaterOrEqual(t, payload.Results[0].Score, payload.Results[1].Score)
}

func TestRecordExecutionTool(t *testing.T) {
	s := newTestMCP(t)

	result, err := s.handleRecordExecution(context.Background(), toolRequest(map[string]any{
		"agent_id":          "backend-developer",
		"success":           true,
		"execution_time_ms": float64(1500),
		"session_id":        "sess-1",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var payload map[string]string
	require.NoError(t, json.Unmarshal([]byte(textContent(t, result)), &payload))
	assert.Equal(t, "recorded", payload["status"])
	assert.Equal(t, "backend-developer", payload["agent_id"])
	assert.NotEmpty(t, payload["execution_id"])
}

func TestRecordExecutionToolRejectsInvalidInput(t *testing.T) {
	s := newTestMCP(t)

	// Missing execution_time_ms defaults to a negative sentinel.
	result, err := s.handleRecordExecution(context.Background(), toolRequest(map[string]any{
		"agent_id": "backend-developer",
		"success":  true,
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, err = s.handleRecordExecution(context.Background(), toolRequest(map[string]any{
		"agent_id":          "",
		"success":           true,
		"execution_time_ms": float64(100),
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestAgentStatsTool(t *testing.T) {
	s := newTestMCP(t)
	ctx := context.Background()

	_, err := s.handleRecordExecution(ctx, toolRequest(map[string]any{
		"agent_id":          "backend-developer",
		"success":           true,
		"execution_time_ms": float64(2000),
	}))
	require.NoError(t, err)

	result, err := s.handleAgentStats(ctx, toolRequest(map[string]any{
		"agent_id": "backend-developer",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var stats model.AgentStatsResponse
	require.NoError(t, json.Unmarshal([]byte(textContent(t, result)), &stats))
	assert.Equal(t, "backend-developer", stats.AgentID)
	assert.Equal(t, int64(1), stats.TotalExecutions)
	assert.Equal(t, 1.0, stats.SuccessRate)

	result, err = s.handleAgentStats(ctx, toolRequest(map[string]any{
		"agent_id": "ghost",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestCatalogResource(t *testing.T) {
	s := newTestMCP(t)

	req := mcplib.ReadResourceRequest{}
	req.Params.URI = "hive://agents/catalog"
	contents, err := s.handleCatalog(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, contents, 1)

	text, ok := contents[0].(mcplib.TextResourceContents)
	require.True(t, ok)
	assert.Equal(t, "application/json", text.MIMEType)

	var agents []model.AgentRecord
	require.NoError(t, json.Unmarshal([]byte(text.Text), &agents))
	assert.NotEmpty(t, agents)
}
