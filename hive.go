// Package hive is the public API for embedding the hive agent selector.
//
// An orchestrator imports this package to construct the selection core
// in-process, or runs cmd/hive for the HTTP/MCP sidecar:
//
//	app, err := hive.New(
//	    hive.WithVersion(version),
//	    hive.WithLogger(logger),
//	    hive.WithDatabaseURL("/var/lib/hive/executions.db"),
//	)
//	if err != nil { ... }
//	matches, err := app.SelectAgent(ctx, hive.TaskRequest{DomainHint: "development"})
//
// The import graph enforces a strict no-cycle rule: hive (root) imports
// internal/*, but internal/* never imports hive (root). Public types
// (Agent, Match, Execution, ...) are standalone structs with no internal
// imports; conversion helpers live here because this is the only file
// that sees both sides of the boundary.
package hive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/agenthive/hive/api"
	"github.com/agenthive/hive/internal/catalog"
	"github.com/agenthive/hive/internal/config"
	"github.com/agenthive/hive/internal/match"
	"github.com/agenthive/hive/internal/mcp"
	"github.com/agenthive/hive/internal/model"
	"github.com/agenthive/hive/internal/ratelimit"
	"github.com/agenthive/hive/internal/server"
	"github.com/agenthive/hive/internal/ssp"
	"github.com/agenthive/hive/internal/storage"
	"github.com/agenthive/hive/internal/telemetry"
)

// ErrNoCandidates is returned by SelectAgent when the catalog is empty.
var ErrNoCandidates = errors.New("hive: no candidate agents")

// ErrUnknownAgent is returned when an agent id is not in the catalog.
var ErrUnknownAgent = errors.New("hive: unknown agent")

// App is the hive selector lifecycle. Construct with New(); use the
// selection methods directly, or Run() to serve the HTTP/MCP API.
type App struct {
	cfg          config.Config
	registry     *catalog.Registry
	matcher      *match.Matcher
	tracker      *ssp.Tracker
	store        storage.ExecutionStore
	srv          *server.Server
	limiter      ratelimit.Limiter
	otelShutdown func(context.Context) error
	logger       *slog.Logger
	version      string
}

// New initialises the selector. It loads the catalog and scoring
// config, opens the execution log, runs migrations, and wires all
// subsystems. It does NOT start any goroutines or accept HTTP
// connections — call Run() for the server form.
func New(opts ...Option) (*App, error) {
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.port != 0 {
		cfg.Port = o.port
	}
	if o.databaseURL != "" {
		cfg.DatabaseURL = o.databaseURL
	}
	if o.catalogPath != "" {
		cfg.CatalogPath = o.catalogPath
	}
	if o.scoringPath != "" {
		cfg.ScoringConfigPath = o.scoringPath
	}
	if o.apiKey != "" {
		cfg.APIKey = o.apiKey
	}
	version := o.version
	if version == "" {
		version = "dev"
	}

	logger.Info("hive starting", "version", version, "port", cfg.Port)

	otelShutdown, err := telemetry.Init(context.Background(), cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	// Agent catalog: option override, then configured file, then the
	// embedded default roster.
	records := o.catalog
	switch {
	case len(records) > 0:
	case cfg.CatalogPath != "":
		records, err = catalog.LoadFile(cfg.CatalogPath)
	default:
		records, err = catalog.Default()
	}
	if err != nil {
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("catalog: %w", err)
	}

	registry, err := catalog.NewRegistry(records, cfg.DefaultAvgTaskTime.Seconds())
	if err != nil {
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("catalog: %w", err)
	}
	logger.Info("catalog loaded", "agents", registry.Len())

	// Scoring config: configured file or the embedded default table.
	scoring, err := match.DefaultScoringConfig()
	if err != nil {
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("scoring config: %w", err)
	}
	if cfg.ScoringConfigPath != "" {
		scoring, err = match.LoadScoringConfig(cfg.ScoringConfigPath)
		if err != nil {
			_ = otelShutdown(context.Background())
			return nil, fmt.Errorf("scoring config: %w", err)
		}
		logger.Info("scoring config loaded", "path", cfg.ScoringConfigPath)
	}
	matcher := match.New(scoring, logger)

	// Execution log.
	store, err := storage.Open(context.Background(), cfg.DatabaseURL, logger)
	if err != nil {
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("storage: %w", err)
	}

	tracker := ssp.New(store, registry, logger, ssp.Config{
		StatsTTL:           cfg.StatsTTL,
		DefaultAvgTaskTime: cfg.DefaultAvgTaskTime,
		RetryAttempts:      cfg.RetryAttempts,
		RetryBaseDelay:     cfg.RetryBaseDelay,
		PatternDecay:       cfg.PatternDecay,
	})

	mcpSrv := mcp.New(registry, matcher, tracker, logger, version)

	var limiter ratelimit.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = ratelimit.NewMemoryLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	}

	srv := server.New(server.ServerConfig{
		Registry:            registry,
		Matcher:             matcher,
		Tracker:             tracker,
		Store:               store,
		Logger:              logger,
		MCPServer:           mcpSrv.MCPServer(),
		Limiter:             limiter,
		Port:                cfg.Port,
		ReadTimeout:         cfg.ReadTimeout,
		WriteTimeout:        cfg.WriteTimeout,
		Version:             version,
		APIKey:              cfg.APIKey,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		OpenAPISpec:         api.OpenAPISpec,
	})

	return &App{
		cfg:          cfg,
		registry:     registry,
		matcher:      matcher,
		tracker:      tracker,
		store:        store,
		srv:          srv,
		limiter:      limiter,
		otelShutdown: otelShutdown,
		logger:       logger,
		version:      version,
	}, nil
}

// Handler returns the root HTTP handler, for embedding or tests.
func (a *App) Handler() http.Handler {
	return a.srv.Handler()
}

// SelectAgent scores every cataloged agent against the task and returns
// ranked matches. Statistics are refreshed lazily before scoring;
// storage failures degrade to last-known values.
func (a *App) SelectAgent(ctx context.Context, req TaskRequest) ([]Match, error) {
	a.tracker.RefreshAll(ctx)

	strategy := model.Strategy(req.Strategy)
	if req.Strategy == "" {
		strategy = model.StrategyBalanced
	}
	results, err := a.matcher.SelectBestMatch(model.TaskRequirement{
		RequiredCapabilities: req.RequiredCapabilities,
		InferredComplexity:   model.ParseComplexity(req.Complexity),
		DomainHint:           req.DomainHint,
	}, a.registry.Snapshot(), strategy)
	if err != nil {
		if errors.Is(err, match.ErrEmptyCandidateSet) {
			return nil, ErrNoCandidates
		}
		return nil, err
	}

	if req.Limit > 0 && req.Limit < len(results) {
		results = results[:req.Limit]
	}
	out := make([]Match, len(results))
	for i, r := range results {
		out[i] = toPublicMatch(r)
	}
	return out, nil
}

// RecordExecution appends one execution outcome to the log.
func (a *App) RecordExecution(ctx context.Context, in ExecutionInput) (Execution, error) {
	exec, err := a.tracker.Record(ctx, ssp.RecordInput{
		AgentID:         in.AgentID,
		Success:         in.Success,
		ExecutionTimeMs: in.ExecutionTimeMs,
		SessionID:       in.SessionID,
		UserID:          in.UserID,
	})
	if err != nil {
		return Execution{}, err
	}
	return toPublicExecution(exec), nil
}

// AgentStats returns live statistics and stable success patterns for
// one agent.
func (a *App) AgentStats(ctx context.Context, agentID string) (AgentStats, error) {
	rec, ok := a.registry.Get(agentID)
	if !ok {
		return AgentStats{}, fmt.Errorf("%w: %s", ErrUnknownAgent, agentID)
	}
	agg, err := a.tracker.AgentAggregate(ctx, agentID)
	if err != nil {
		return AgentStats{}, err
	}
	rate, err := a.tracker.SuccessRate(ctx, agentID)
	if err != nil {
		return AgentStats{}, err
	}
	avg, err := a.tracker.AverageExecutionTime(ctx, agentID)
	if err != nil {
		return AgentStats{}, err
	}
	patterns, err := a.tracker.DetectPatterns(ctx, agentID, 0)
	if err != nil {
		return AgentStats{}, err
	}

	stats := AgentStats{
		AgentID:            agentID,
		SuccessRate:        rate,
		AverageTimeSeconds: avg,
		TotalExecutions:    agg.Total,
		CurrentWorkload:    rec.CurrentWorkload,
	}
	for _, p := range patterns {
		stats.Patterns = append(stats.Patterns, toPublicPattern(p))
	}
	return stats, nil
}

// Agents returns the current catalog with live statistics.
func (a *App) Agents() []Agent {
	snapshot := a.registry.Snapshot()
	out := make([]Agent, len(snapshot))
	for i, rec := range snapshot {
		out[i] = toPublicAgent(rec)
	}
	return out
}

// AcquireWorkload marks one more in-flight task for the agent.
func (a *App) AcquireWorkload(agentID string) error {
	if !a.registry.Acquire(agentID) {
		return fmt.Errorf("%w: %s", ErrUnknownAgent, agentID)
	}
	return nil
}

// ReleaseWorkload marks one task finished for the agent.
func (a *App) ReleaseWorkload(agentID string) error {
	if !a.registry.Release(agentID) {
		return fmt.Errorf("%w: %s", ErrUnknownAgent, agentID)
	}
	return nil
}

// Run starts the HTTP server and the statistics warm-up loop, then
// blocks until ctx is cancelled or a fatal server error occurs. On
// return, Shutdown is called automatically — callers should not call
// Shutdown separately.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := a.srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Keep registry statistics warm so the first selection after a quiet
	// period doesn't pay for a full refresh.
	g.Go(func() error {
		ticker := time.NewTicker(a.cfg.StatsTTL)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				a.tracker.RefreshAll(gctx)
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		return a.Shutdown(context.Background())
	})

	return g.Wait()
}

// Shutdown drains the HTTP server, closes the execution log, and flushes
// the OTEL providers.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("hive shutting down")

	httpCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := a.srv.Shutdown(httpCtx); err != nil {
		a.logger.Error("http shutdown error", "error", err)
	}

	if a.limiter != nil {
		_ = a.limiter.Close()
	}

	if err := a.store.Close(ctx); err != nil {
		a.logger.Error("storage close error", "error", err)
	}

	if err := a.otelShutdown(ctx); err != nil {
		a.logger.Error("otel shutdown error", "error", err)
	}
	return nil
}
