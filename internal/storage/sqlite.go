package storage

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/agenthive/hive/internal/model"
	"github.com/agenthive/hive/migrations"
)

// SQLiteStore is the default embedded execution log.
type SQLiteStore struct {
	db           *sql.DB
	logger       *slog.Logger
	queryTimeout time.Duration
}

// OpenSQLite opens (creating if needed) a SQLite execution log at path
// and runs migrations. Parent directories are created for file-backed
// databases; ":memory:" is supported for tests.
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*SQLiteStore, error) {
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("storage: create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage: open sqlite %s: %w", path, err)
	}
	// Each pooled connection to ":memory:" would get its own database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	// Concurrent recorders share one writer; WAL plus a busy timeout
	// keeps independent appends from failing under contention.
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("storage: %s: %w", pragma, err)
		}
	}

	s := &SQLiteStore{db: db, logger: logger, queryTimeout: DefaultQueryTimeout}
	if err := s.runMigrations(ctx, migrations.SQLite()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// runMigrations executes unapplied migration files in name order,
// tracking applied files in schema_migrations so each runs at most once.
func (s *SQLiteStore) runMigrations(ctx context.Context, migrationsFS fs.FS) error {
	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT PRIMARY KEY,
			applied_at INTEGER NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("storage: create schema_migrations: %w", err)
	}

	applied := make(map[string]bool)
	rows, err := s.db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("storage: load applied migrations: %w", err)
	}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			_ = rows.Close()
			return fmt.Errorf("storage: scan applied migration: %w", err)
		}
		applied[v] = true
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return fmt.Errorf("storage: iterate applied migrations: %w", err)
	}
	_ = rows.Close()

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
		s.logger.Info("running migration", "backend", "sqlite", "file", name)
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("storage: execute migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`,
			name, time.Now().UnixMilli(),
		); err != nil {
			return fmt.Errorf("storage: record migration %s: %w", name, err)
		}
	}
	return nil
}

func (s *SQLiteStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.queryTimeout)
}

// InsertExecution appends one row.
func (s *SQLiteStore) InsertExecution(ctx context.Context, exec model.ProcedureExecution) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	success := 0
	if exec.Success {
		success = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO procedure_executions (id, agent_id, session_id, user_id, success, execution_time_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		exec.ID, exec.AgentID, exec.SessionID, exec.UserID, success, exec.ExecutionTimeMs, exec.CreatedAt,
	)
	if err != nil {
		return unavailable("insert execution", err)
	}
	return nil
}

// AgentAggregate returns the per-agent rollup via one aggregate query.
func (s *SQLiteStore) AgentAggregate(ctx context.Context, agentID string) (model.AgentAggregate, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	agg := model.AgentAggregate{AgentID: agentID}
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(success), 0),
		        COALESCE(AVG(execution_time_ms), 0)
		 FROM procedure_executions WHERE agent_id = ?`,
		agentID,
	).Scan(&agg.Total, &agg.Successes, &agg.MeanTimeMs)
	if err != nil {
		return model.AgentAggregate{}, unavailable("agent aggregate", err)
	}
	return agg, nil
}

// RecentExecutions returns up to limit rows for the agent, newest first.
func (s *SQLiteStore) RecentExecutions(ctx context.Context, agentID string, limit int) ([]model.ProcedureExecution, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, agent_id, session_id, user_id, success, execution_time_ms, created_at
		 FROM procedure_executions
		 WHERE agent_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
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
func (s *SQLiteStore) CountAll(ctx context.Context) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM procedure_executions`).Scan(&n); err != nil {
		return 0, unavailable("count executions", err)
	}
	return n, nil
}

// Ping checks connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.db.PingContext(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// Close shuts down the database handle.
func (s *SQLiteStore) Close(_ context.Context) error {
	return s.db.Close()
}
