// Package mcp implements the Model Context Protocol server for hive.
//
// The MCP server exposes the same capabilities as the HTTP API through
// MCP resources and tools, so MCP-compatible orchestrators can select
// agents and record outcomes without speaking the REST API.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/agenthive/hive/internal/catalog"
	"github.com/agenthive/hive/internal/match"
	"github.com/agenthive/hive/internal/model"
	"github.com/agenthive/hive/internal/ssp"
)

// Server wraps the MCP server with hive's matching and tracking layer.
type Server struct {
	mcpServer *mcpserver.MCPServer
	registry  *catalog.Registry
	matcher   *match.Matcher
	tracker   *ssp.Tracker
	logger    *slog.Logger
}

// New creates and configures a new MCP server with all resources and tools.
func New(registry *catalog.Registry, matcher *match.Matcher, tracker *ssp.Tracker, logger *slog.Logger, version string) *Server {
	s := &Server{
		registry: registry,
		matcher:  matcher,
		tracker:  tracker,
		logger:   logger,
	}

	s.mcpServer = mcpserver.NewMCPServer(
		"hive",
		version,
		mcpserver.WithResourceCapabilities(true, true),
		mcpserver.WithToolCapabilities(true),
	)

	s.registerResources()
	s.registerTools()

	return s
}

// MCPServer returns the underlying mcp-go server for transport setup.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

func (s *Server) registerResources() {
	// hive://agents/catalog — the full agent catalog with live statistics.
	s.mcpServer.AddResource(
		mcplib.NewResource(
			"hive://agents/catalog",
			"Agent Catalog",
			mcplib.WithResourceDescription("All registered agents with capabilities, statistics, and current workload"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleCatalog,
	)
}

func (s *Server) registerTools() {
	// hive_select_agent — rank agents for a task requirement.
	s.mcpServer.AddTool(
		mcplib.NewTool("hive_select_agent",
			mcplib.WithDescription("Rank registered agents for a task and return the best matches with score breakdowns"),
			mcplib.WithString("domain_hint", mcplib.Description("Task domain, e.g. development, security, content")),
			mcplib.WithString("complexity", mcplib.Description("Estimated task complexity: low, medium, or high")),
			mcplib.WithString("strategy", mcplib.Description("Scoring strategy: balanced, performance, speed, or accuracy")),
			mcplib.WithArray("required_capabilities", mcplib.Description("Capability tags the agent must cover")),
			mcplib.WithNumber("limit", mcplib.Description("Maximum results to return")),
		),
		s.handleSelectAgent,
	)

	// hive_record_execution — append one execution outcome.
	s.mcpServer.AddTool(
		mcplib.NewTool("hive_record_execution",
			mcplib.WithDescription("Record the outcome of a completed agent task in the execution log"),
			mcplib.WithString("agent_id", mcplib.Description("Agent identifier"), mcplib.Required()),
			mcplib.WithBoolean("success", mcplib.Description("Whether the task succeeded"), mcplib.Required()),
			mcplib.WithNumber("execution_time_ms", mcplib.Description("Task duration in milliseconds"), mcplib.Required()),
			mcplib.WithString("session_id", mcplib.Description("Optional session identifier")),
			mcplib.WithString("user_id", mcplib.Description("Optional user identifier")),
		),
		s.handleRecordExecution,
	)

	// hive_agent_stats — statistics and stable patterns for one agent.
	s.mcpServer.AddTool(
		mcplib.NewTool("hive_agent_stats",
			mcplib.WithDescription("Get success rate, average execution time, and stable success patterns for an agent"),
			mcplib.WithString("agent_id", mcplib.Description("Agent identifier"), mcplib.Required()),
			mcplib.WithNumber("window", mcplib.Description("Pattern detection window size (recent executions)")),
		),
		s.handleAgentStats,
	)
}

func (s *Server) handleCatalog(_ context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	data, err := json.MarshalIndent(s.registry.Snapshot(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal catalog: %w", err)
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleSelectAgent(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	req := model.TaskRequirement{
		DomainHint:           request.GetString("domain_hint", ""),
		InferredComplexity:   model.ParseComplexity(request.GetString("complexity", "")),
		RequiredCapabilities: request.GetStringSlice("required_capabilities", nil),
	}
	strategy := model.Strategy(request.GetString("strategy", string(model.StrategyBalanced)))

	s.tracker.RefreshAll(ctx)

	results, err := s.matcher.SelectBestMatch(req, s.registry.Snapshot(), strategy)
	if err != nil {
		if errors.Is(err, match.ErrEmptyCandidateSet) {
			return errorResult("no candidate agents registered"), nil
		}
		return errorResult(fmt.Sprintf("selection failed: %v", err)), nil
	}

	if limit := request.GetInt("limit", 0); limit > 0 && limit < len(results) {
		results = results[:limit]
	}
	resultData, _ := json.MarshalIndent(map[string]any{
		"results": results,
	}, "", "  ")

	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: string(resultData)},
		},
	}, nil
}

func (s *Server) handleRecordExecution(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	input := ssp.RecordInput{
		AgentID:         request.GetString("agent_id", ""),
		Success:         request.GetBool("success", false),
		ExecutionTimeMs: int64(request.GetFloat("execution_time_ms", -1)),
	}
	if v := request.GetString("session_id", ""); v != "" {
		input.SessionID = &v
	}
	if v := request.GetString("user_id", ""); v != "" {
		input.UserID = &v
	}

	exec, err := s.tracker.Record(ctx, input)
	if err != nil {
		return errorResult(fmt.Sprintf("record failed: %v", err)), nil
	}

	resultData, _ := json.Marshal(map[string]any{
		"execution_id": exec.ID,
		"agent_id":     exec.AgentID,
		"status":       "recorded",
	})
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: string(resultData)},
		},
	}, nil
}

func (s *Server) handleAgentStats(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	agentID := request.GetString("agent_id", "")
	if agentID == "" {
		return errorResult("agent_id is required"), nil
	}
	rec, ok := s.registry.Get(agentID)
	if !ok {
		return errorResult("unknown agent: " + agentID), nil
	}

	agg, err := s.tracker.AgentAggregate(ctx, agentID)
	if err != nil {
		return errorResult(fmt.Sprintf("stats failed: %v", err)), nil
	}
	rate, err := s.tracker.SuccessRate(ctx, agentID)
	if err != nil {
		return errorResult(fmt.Sprintf("stats failed: %v", err)), nil
	}
	avg, err := s.tracker.AverageExecutionTime(ctx, agentID)
	if err != nil {
		return errorResult(fmt.Sprintf("stats failed: %v", err)), nil
	}
	patterns, err := s.tracker.DetectPatterns(ctx, agentID, request.GetInt("window", 0))
	if err != nil {
		return errorResult(fmt.Sprintf("pattern detection failed: %v", err)), nil
	}

	resultData, _ := json.MarshalIndent(model.AgentStatsResponse{
		AgentID:            agentID,
		SuccessRate:        rate,
		AverageTimeSeconds: avg,
		TotalExecutions:    agg.Total,
		CurrentWorkload:    rec.CurrentWorkload,
		Patterns:           patterns,
	}, "", "  ")

	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: string(resultData)},
		},
	}, nil
}

func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
