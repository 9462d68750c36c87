package pgconn

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dd0wney/pg-topology-discoverer/pkg/logging"
)

// pgxConnection is the concrete topology.Connection backed by a single
// pgx.Conn. Never shared: one instance per probed host, owned exclusively
// by that host's HostProbe between cycles.
type pgxConnection struct {
	conn   *pgx.Conn
	logger logging.Logger
}

// CheckReadOnly reports whether the server is currently in recovery, i.e.
// a replica. pg_is_in_recovery() is PostgreSQL's own authoritative answer
// to "am I a standby" and is cheaper than parsing SHOW transaction_read_only,
// which can also be true on a promotable read-only primary session.
func (c *pgxConnection) CheckReadOnly(ctx context.Context) (bool, error) {
	var readOnly bool
	if err := c.conn.QueryRow(ctx, "SELECT pg_is_in_recovery()").Scan(&readOnly); err != nil {
		return false, fmt.Errorf("pgconn: check read-only: %w", err)
	}
	return readOnly, nil
}

// Execute runs sql and returns its single-row, single-column text result.
// Only ever called with ShowSyncStandbyNames in this codebase, but kept
// general since the interface promises it.
func (c *pgxConnection) Execute(ctx context.Context, sql string) (string, error) {
	var value string
	if err := c.conn.QueryRow(ctx, sql).Scan(&value); err != nil {
		return "", fmt.Errorf("pgconn: execute %q: %w", sql, err)
	}
	return value, nil
}

// Close releases the underlying connection. Idempotent from the caller's
// perspective: pgx.Conn.Close is safe to call once per successful connect.
func (c *pgxConnection) Close(ctx context.Context) error {
	if err := c.conn.Close(ctx); err != nil {
		c.logger.Warn("error closing probe connection", logging.Error(err))
		return fmt.Errorf("pgconn: close: %w", err)
	}
	return nil
}
