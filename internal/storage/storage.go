// Package storage provides the append-only execution log behind the
// SSP tracker.
//
// Two backends implement the same ExecutionStore interface: an embedded
// SQLite database (the default) and PostgreSQL for deployments that
// already run one. The scoring and tracking logic never sees which one
// is in use — either can be swapped without touching it.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/agenthive/hive/internal/model"
)

// ErrUnavailable wraps persistence failures (connection, disk,
// corruption). Callers must treat it as non-fatal: matching proceeds on
// cached statistics, and recording retries a bounded number of times
// before surfacing it.
var ErrUnavailable = errors.New("storage: unavailable")

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("storage: not found")

// DefaultQueryTimeout bounds every database call so a hung storage
// layer surfaces as ErrUnavailable instead of blocking agent selection.
const DefaultQueryTimeout = 5 * time.Second

// ExecutionStore is the persistence interface for procedure executions.
// Inserts are independent and order-insensitive; statistics are derived
// via aggregate queries, never incremental mutation of shared counters.
type ExecutionStore interface {
	// InsertExecution appends one row. The row is never mutated afterwards.
	InsertExecution(ctx context.Context, exec model.ProcedureExecution) error

	// AgentAggregate returns the per-agent rollup (total, successes,
	// mean execution time). A zero-row agent yields a zero aggregate,
	// not an error.
	AgentAggregate(ctx context.Context, agentID string) (model.AgentAggregate, error)

	// RecentExecutions returns up to limit rows for the agent, newest first.
	RecentExecutions(ctx context.Context, agentID string, limit int) ([]model.ProcedureExecution, error)

	// CountAll returns the total number of rows across all agents.
	// There is no pruning in the core; operators watch this for growth.
	CountAll(ctx context.Context) (int64, error)

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Open picks a backend from the URL: postgres:// and postgresql://
// connect via pgx, anything else is treated as a SQLite file path
// (":memory:" included). Migrations run before Open returns.
func Open(ctx context.Context, url string, logger *slog.Logger) (ExecutionStore, error) {
	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		return OpenPostgres(ctx, url, logger)
	}
	return OpenSQLite(ctx, url, logger)
}

// unavailable wraps a driver error into the ErrUnavailable taxonomy
// while preserving the cause for errors.As/Is inspection.
func unavailable(op string, err error) error {
	return fmt.Errorf("storage: %s: %w", op, errors.Join(ErrUnavailable, err))
}
