package server

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/agenthive/hive/internal/catalog"
	"github.com/agenthive/hive/internal/match"
	"github.com/agenthive/hive/internal/model"
	"github.com/agenthive/hive/internal/ssp"
	"github.com/agenthive/hive/internal/storage"
)

// Handlers holds HTTP handler dependencies.
type Handlers struct {
	registry            *catalog.Registry
	matcher             *match.Matcher
	tracker             *ssp.Tracker
	store               storage.ExecutionStore
	logger              *slog.Logger
	startedAt           time.Time
	version             string
	maxRequestBodyBytes int64
	openapiSpec         []byte
}

// HandlersDeps holds all dependencies for constructing Handlers.
type HandlersDeps struct {
	Registry            *catalog.Registry
	Matcher             *match.Matcher
	Tracker             *ssp.Tracker
	Store               storage.ExecutionStore
	Logger              *slog.Logger
	Version             string
	MaxRequestBodyBytes int64
	OpenAPISpec         []byte
}

// NewHandlers creates a new Handlers with all dependencies.
func NewHandlers(d HandlersDeps) *Handlers {
	return &Handlers{
		registry:            d.Registry,
		matcher:             d.Matcher,
		tracker:             d.Tracker,
		store:               d.Store,
		logger:              d.Logger,
		startedAt:           time.Now(),
		version:             d.Version,
		maxRequestBodyBytes: d.MaxRequestBodyBytes,
		openapiSpec:         d.OpenAPISpec,
	}
}

// HandleSelect handles POST /v1/select: score every registered agent
// for the requirement and return the ranked results.
func (h *Handlers) HandleSelect(w http.ResponseWriter, r *http.Request) {
	var req model.SelectRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}

	// Fold fresh execution statistics into the registry before scoring.
	// Degrades to last-known values when storage is down.
	h.tracker.RefreshAll(r.Context())

	requirement := model.TaskRequirement{
		RequiredCapabilities: req.RequiredCapabilities,
		InferredComplexity:   model.ParseComplexity(req.Complexity),
		DomainHint:           req.DomainHint,
	}
	strategy := model.Strategy(req.Strategy)
	if req.Strategy == "" {
		strategy = model.StrategyBalanced
	}

	results, err := h.matcher.SelectBestMatch(requirement, h.registry.Snapshot(), strategy)
	if err != nil {
		if errors.Is(err, match.ErrEmptyCandidateSet) {
			writeError(w, r, http.StatusUnprocessableEntity, model.ErrCodeEmptyCandidateSet, "no candidate agents registered")
			return
		}
		h.logger.Error("selection failed", "error", err, "request_id", RequestIDFromContext(r.Context()))
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "selection failed")
		return
	}

	used := strategy
	if !model.KnownStrategy(used) {
		used = model.StrategyBalanced
	}
	if req.Limit > 0 && req.Limit < len(results) {
		results = results[:req.Limit]
	}
	writeJSON(w, r, http.StatusOK, model.SelectResponse{
		Results:      results,
		StrategyUsed: string(used),
	})
}

// HandleRecordExecution handles POST /v1/executions: append one
// execution outcome to the log. Outcomes for agents no longer in the
// catalog are accepted — the log is append-only history, not a view of
// the current catalog.
func (h *Handlers) HandleRecordExecution(w http.ResponseWriter, r *http.Request) {
	var req model.RecordExecutionRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}

	exec, err := h.tracker.Record(r.Context(), ssp.RecordInput{
		AgentID:         req.AgentID,
		Success:         req.Success,
		ExecutionTimeMs: req.ExecutionTimeMs,
		SessionID:       req.SessionID,
		UserID:          req.UserID,
	})
	if err != nil {
		switch {
		case errors.Is(err, ssp.ErrInvalidAgentID):
			writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidAgentID, err.Error())
		case errors.Is(err, ssp.ErrInvalidDuration):
			writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidDuration, err.Error())
		case errors.Is(err, storage.ErrUnavailable):
			writeError(w, r, http.StatusServiceUnavailable, model.ErrCodeStorageUnavailable, "execution log unavailable")
		default:
			h.logger.Error("record execution failed", "error", err, "request_id", RequestIDFromContext(r.Context()))
			writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "record execution failed")
		}
		return
	}
	writeJSON(w, r, http.StatusCreated, exec)
}

// HandleListAgents handles GET /v1/agents: the current catalog with
// live statistics and workload.
func (h *Handlers) HandleListAgents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, h.registry.Snapshot())
}

// HandleAgentStats handles GET /v1/agents/{agent_id}/stats.
func (h *Handlers) HandleAgentStats(w http.ResponseWriter, r *http.Request) {
	agentID := r.PathValue("agent_id")
	rec, ok := h.registry.Get(agentID)
	if !ok {
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "unknown agent: "+agentID)
		return
	}

	agg, err := h.tracker.AgentAggregate(r.Context(), agentID)
	if err != nil {
		writeStorageError(w, r, h.logger, "agent stats", err)
		return
	}
	rate, err := h.tracker.SuccessRate(r.Context(), agentID)
	if err != nil {
		writeStorageError(w, r, h.logger, "agent stats", err)
		return
	}
	avg, err := h.tracker.AverageExecutionTime(r.Context(), agentID)
	if err != nil {
		writeStorageError(w, r, h.logger, "agent stats", err)
		return
	}
	patterns, err := h.tracker.DetectPatterns(r.Context(), agentID, 0)
	if err != nil {
		writeStorageError(w, r, h.logger, "agent stats", err)
		return
	}

	writeJSON(w, r, http.StatusOK, model.AgentStatsResponse{
		AgentID:            agentID,
		SuccessRate:        rate,
		AverageTimeSeconds: avg,
		TotalExecutions:    agg.Total,
		CurrentWorkload:    rec.CurrentWorkload,
		Patterns:           patterns,
	})
}

// HandleWorkloadAcquire handles POST /v1/agents/{agent_id}/workload/acquire.
func (h *Handlers) HandleWorkloadAcquire(w http.ResponseWriter, r *http.Request) {
	h.handleWorkload(w, r, h.registry.Acquire)
}

// HandleWorkloadRelease handles POST /v1/agents/{agent_id}/workload/release.
func (h *Handlers) HandleWorkloadRelease(w http.ResponseWriter, r *http.Request) {
	h.handleWorkload(w, r, h.registry.Release)
}

func (h *Handlers) handleWorkload(w http.ResponseWriter, r *http.Request, apply func(string) bool) {
	agentID := r.PathValue("agent_id")
	if !apply(agentID) {
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "unknown agent: "+agentID)
		return
	}
	rec, _ := h.registry.Get(agentID)
	writeJSON(w, r, http.StatusOK, map[string]any{
		"agent_id":         agentID,
		"current_workload": rec.CurrentWorkload,
	})
}

// HandleHealth handles GET /health. Reports degraded, not failed, when
// storage is unreachable: selection still works on cached statistics.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	storageStatus := "ok"
	if err := h.store.Ping(r.Context()); err != nil {
		storageStatus = "unavailable"
	}
	status := "ok"
	if storageStatus != "ok" {
		status = "degraded"
	}
	writeJSON(w, r, http.StatusOK, model.HealthResponse{
		Status:        status,
		Version:       h.version,
		Agents:        h.registry.Len(),
		StorageStatus: storageStatus,
	})
}

// HandleOpenAPISpec serves the embedded OpenAPI specification.
func (h *Handlers) HandleOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	if len(h.openapiSpec) == 0 {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(h.openapiSpec)
}

func writeStorageError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, op string, err error) {
	if errors.Is(err, storage.ErrUnavailable) {
		writeError(w, r, http.StatusServiceUnavailable, model.ErrCodeStorageUnavailable, "execution log unavailable")
		return
	}
	logger.Error(op+" failed", "error", err, "request_id", RequestIDFromContext(r.Context()))
	writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, op+" failed")
}
