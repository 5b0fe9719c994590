package storage

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agenthive/hive/internal/model"
	"github.com/agenthive/hive/migrations"
)

// PostgresStore is the pgx-backed execution log for deployments that
// already run Postgres. Same row shape as the SQLite backend.
type PostgresStore struct {
	pool         *pgxpool.Pool
	logger       *slog.Logger
	queryTimeout time.Duration
}

// OpenPostgres connects a pool to dsn and runs migrations.
func OpenPostgres(ctx context.Context, dsn string, logger *slog.Logger) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: parse pool DSN: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("storage: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage: ping pool: %w", err)
	}

	s := &PostgresStore{pool: pool, logger: logger, queryTimeout: DefaultQueryTimeout}
	if err := s.runMigrations(ctx, migrations.Postgres()); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// runMigrations executes unapplied migration files in name order,
// tracking applied files in schema_migrations so each runs at most once.
func (s *PostgresStore) runMigrations(ctx context.Context, migrationsFS fs.FS) error {
	if _, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`); err != nil {
		return fmt.Errorf("storage: create schema_migrations: %w", err)
	}

	applied := make(map[string]bool)
	rows, err := s.pool.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("storage: load applied migrations: %w", err)
	}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return fmt.Errorf("storage: scan applied migration: %w", err)
		}
		applied[v] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("storage: iterate applied migrations: %w", err)
	}

	entries, err := fs.ReadDir(migrationsFS, ".")
	if err != nil {
		return fmt.Errorf("storage: read migrations dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") || applied[name] {
			continue
		}
		content, err := fs.ReadFile(migrationsFS, name)
		if err != nil {
			return fmt.Errorf("storage: read migration %s: %w", name, err)
		}
		s.logger.Info("running migration", "backend", "postgres", "file", name)
		if _, err := s.pool.Exec(ctx, string(content)); err != nil {
			return fmt.Errorf("storage: execute migration %s: %w", name, err)
		}
		if _, err := s.pool.Exec(ctx,
			`INSERT INTO schema_migrations (version) VALUES ($1) ON CONFLICT DO NOTHING`, name,
		); err != nil {
			return fmt.Errorf("storage: record migration %s: %w", name, err)
		}
	}
	return nil
}

func (s *PostgresStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.queryTimeout)
}

// InsertExecution appends one row.
func (s *PostgresStore) InsertExecution(ctx context.Context, exec model.ProcedureExecution) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	success := 0
	if exec.Success {
		success = 1
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO procedure_executions (id, agent_id, session_id, user_id, success, execution_time_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		exec.ID, exec.AgentID, exec.SessionID, exec.UserID, success, exec.ExecutionTimeMs, exec.CreatedAt,
	)
	if err != nil {
		return unavailable("insert execution", err)
	}
	return nil
}

// AgentAggregate returns the per-agent rollup via one aggregate query.
func (s *PostgresStore) AgentAggregate(ctx context.Context, agentID string) (model.AgentAggregate, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	agg := model.AgentAggregate{AgentID: agentID}
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(success), 0),
		        COALESCE(AVG(execution_time_ms), 0)
		 FROM procedure_executions WHERE agent_id = $1`,
		agentID,
	).Scan(&agg.Total, &agg.Successes, &agg.MeanTimeMs)
	if err != nil {
		return model.AgentAggregate{}, unavailable("agent aggregate", err)
	}
	return agg, nil
}

// RecentExecutions returns up to limit rows for the agent, newest first.
func (s *PostgresStore) RecentExecutions(ctx context.Context, agentID string, limit int) ([]model.ProcedureExecution, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT id, agent_id, session_id, user_id, success, execution_time_ms, created_at
		 FROM procedure_executions
		 WHERE agent_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`,
		agentID, limit,
	)
	if err != nil {
		return nil, unavailable("recent executions", err)
	}
	defer rows.Close()

	var out []model.ProcedureExecution
	for rows.Next() {
		var e model.ProcedureExecution
		var success int
		if err := rows.Scan(&e.ID, &e.AgentID, &e.SessionID, &e.UserID, &success, &e.ExecutionTimeMs, &e.CreatedAt); err != nil {
			return nil, unavailable("scan execution", err)
		}
		e.Success = success != 0
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate executions", err)
	}
	return out, nil
}

// CountAll returns the total number of execution rows.
func (s *PostgresStore) CountAll(ctx context.Context) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM procedure_executions`).Scan(&n); err != nil {
		return 0, unavailable("count executions", err)
	}
	return n, nil
}

// Ping checks connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.pool.Ping(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// Close shuts down the connection pool.
func (s *PostgresStore) Close(_ context.Context) error {
	s.pool.Close()
	return nil
}
