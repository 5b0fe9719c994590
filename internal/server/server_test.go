package server

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthive/hive/api"
	"github.com/agenthive/hive/internal/catalog"
	"github.com/agenthive/hive/internal/match"
	"github.com/agenthive/hive/internal/model"
	"github.com/agenthive/hive/internal/ssp"
	"github.com/agenthive/hive/internal/storage"
)

func newTestServer(t *testing.T, apiKey string) *Server {
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

	return New(ServerConfig{
		Registry:            registry,
		Matcher:             match.New(scoring, logger),
		Tracker:             tracker,
		Store:               store,
		Logger:              logger,
		Port:                0,
		Version:             "test",
		APIKey:              apiKey,
		MaxRequestBodyBytes: 1 << 20,
		OpenAPISpec:         api.OpenAPISpec,
	})
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeData[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var envelope struct {
		Data T                  `json:"data"`
		Meta model.ResponseMeta `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.NotEmpty(t, envelope.Meta.RequestID)
	return envelope.Data
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) model.ErrorDetail {
	t.Helper()
	var envelope model.APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope.Error
}

func TestSelectReturnsRankedResults(t *testing.T) {
	srv := newTestServer(t, "")

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/v1/select", model.SelectRequest{
		DomainHint: "development",
		Strategy:   "balanced",
		Limit:      3,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeData[model.SelectResponse](t, rec)
	require.Len(t, resp.Results, 3)
	assert.Equal(t, "balanced", resp.StrategyUsed)
	// Scores descend.
	assert.GreaterOrEqual(t, resp.Results[0].Score, resp.Results[1].Score)
	assert.GreaterOrEqual(t, resp.Results[1].Score, resp.Results[2].Score)
	// A development-domain task must rank a development agent on top.
	top, ok := srvRegistryGet(srv, resp.Results[0].AgentID)
	require.True(t, ok)
	assert.Equal(t, "development", top.Category)
}

func TestSelectUnknownStrategyFallsBack(t *testing.T) {
	srv := newTestServer(t, "")

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/v1/select", model.SelectRequest{
		Strategy: "cheapest",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeData[model.SelectResponse](t, rec)
	assert.Equal(t, "balanced", resp.StrategyUsed)
}

func TestSelectRejectsMalformedBody(t *testing.T) {
	srv := newTestServer(t, "")

	req := httptest.NewRequest(http.MethodPost, "/v1/select", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, model.ErrCodeInvalidInput, decodeError(t, rec).Code)
}

func TestRecordExecutionLifecycle(t *testing.T) {
	srv := newTestServer(t, "")

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/v1/executions", model.RecordExecutionRequest{
		AgentID:         "backend-developer",
		Success:         true,
		ExecutionTimeMs: 2000,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	exec := decodeData[model.ProcedureExecution](t, rec)
	assert.NotEmpty(t, exec.ID)
	assert.Equal(t, "backend-developer", exec.AgentID)

	// The recorded outcome shows up in the stats endpoint.
	rec = doJSON(t, srv.Handler(), http.MethodGet, "/v1/agents/backend-developer/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decodeData[model.AgentStatsResponse](t, rec)
	assert.Equal(t, int64(1), stats.TotalExecutions)
	assert.Equal(t, 1.0, stats.SuccessRate)
	assert.InDelta(t, 2.0, stats.AverageTimeSeconds, 1e-9)
}

func TestRecordExecutionValidation(t *testing.T) {
	srv := newTestServer(t, "")

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/v1/executions", model.RecordExecutionRequest{
		AgentID:         "",
		ExecutionTimeMs: 100,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, model.ErrCodeInvalidAgentID, decodeError(t, rec).Code)

	rec = doJSON(t, srv.Handler(), http.MethodPost, "/v1/executions", model.RecordExecutionRequest{
		AgentID:         "backend-developer",
		ExecutionTimeMs: -5,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, model.ErrCodeInvalidDuration, decodeError(t, rec).Code)
}

func TestListAgents(t *testing.T) {
	srv := newTestServer(t, "")

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/v1/agents", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	agents := decodeData[[]model.AgentRecord](t, rec)
	assert.NotEmpty(t, agents)
}

func TestAgentStatsUnknownAgent(t *testing.T) {
	srv := newTestServer(t, "")

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/v1/agents/ghost/stats", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, model.ErrCodeNotFound, decodeError(t, rec).Code)
}

func TestWorkloadAcquireRelease(t *testing.T) {
	srv := newTestServer(t, "")

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/v1/agents/backend-developer/workload/acquire", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	state := decodeData[map[string]any](t, rec)
	assert.Equal(t, float64(1), state["current_workload"])

	rec = doJSON(t, srv.Handler(), http.MethodPost, "/v1/agents/backend-developer/workload/release", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	state = decodeData[map[string]any](t, rec)
	assert.Equal(t, float64(0), state["current_workload"])

	rec = doJSON(t, srv.Handler(), http.MethodPost, "/v1/agents/ghost/workload/acquire", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, "")

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	health := decodeData[model.HealthResponse](t, rec)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "test", health.Version)
	assert.Greater(t, health.Agents, 0)
}

func TestAuthEnforcement(t *testing.T) {
	srv := newTestServer(t, "sekrit")

	// No credentials: rejected.
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/v1/agents", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, model.ErrCodeUnauthorized, decodeError(t, rec).Code)

	// Wrong scheme: rejected.
	req := httptest.NewRequest(http.MethodGet, "/v1/agents", nil)
	req.Header.Set("Authorization", "Basic sekrit")
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	// Wrong token: rejected.
	req = httptest.NewRequest(http.MethodGet, "/v1/agents", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rr = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	// Correct token: accepted.
	req = httptest.NewRequest(http.MethodGet, "/v1/agents", nil)
	req.Header.Set("Authorization", "Bearer sekrit")
	rr = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	// Health stays open for probes.
	rec = doJSON(t, srv.Handler(), http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestOpenAPISpecServed(t *testing.T) {
	srv := newTestServer(t, "sekrit")

	// Reachable without credentials, like /health.
	req := httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/yaml", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "openapi: 3.1.0")
}

func TestRequestIDPropagation(t *testing.T) {
	srv := newTestServer(t, "")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))
	var envelope model.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "req-123", envelope.Meta.RequestID)
}

func TestBodySizeLimit(t *testing.T) {
	srv := newTestServerWithBodyLimit(t, 64)

	huge := model.SelectRequest{DomainHint: string(bytes.Repeat([]byte("x"), 256))}
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/v1/select", huge)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func newTestServerWithBodyLimit(t *testing.T, limit int64) *Server {
	t.Helper()
	srv := newTestServer(t, "")
	srv.handlers.maxRequestBodyBytes = limit
	return srv
}

// srvRegistryGet reaches through to the registry for assertions.
func srvRegistryGet(srv *Server, id string) (model.AgentRecord, bool) {
	return srv.handlers.registry.Get(id)
}
