// Package pgconn adapts github.com/jackc/pgx/v5 to the
// topology.Connection/Connector contract: one dedicated, unpooled
// connection per probed host, tagged with a fixed application_name so
// probe connections are trivially identifiable in server logs.
package pgconn

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dd0wney/pg-topology-discoverer/pkg/logging"
	"github.com/dd0wney/pg-topology-discoverer/pkg/topology"
)

// ProbeApplicationName is the sentinel application_name every probe
// connection identifies itself with. Cosmetic, but stable across the
// process's lifetime -- the pgx analogue of a constant connection ID: pgx
// exposes no raw numeric connection-ID slot, but application_name is what
// operators actually grep pg_stat_activity for.
const ProbeApplicationName = "pg_topology_probe"

// Settings configures every connection a Connector opens.
type Settings struct {
	// ConnectTimeout bounds TCP connect and the startup/auth handshake.
	// Zero means the caller's context deadline (if any) governs alone.
	ConnectTimeout time.Duration
}

// Connector opens pgx-backed probe connections.
type Connector struct {
	settings Settings
	logger   logging.Logger
}

// NewConnector creates a Connector. A nil logger falls back to a no-op one.
func NewConnector(settings Settings, logger logging.Logger) *Connector {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Connector{settings: settings, logger: logger}
}

// Connect opens one pgx.Conn against dsn, tagged with ProbeApplicationName.
// The returned topology.Connection owns the connection exclusively; it is
// never shared with client-facing pooled traffic.
func (c *Connector) Connect(ctx context.Context, dsn string) (topology.Connection, error) {
	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("pgconn: parse dsn: %w", err)
	}
	if cfg.RuntimeParams == nil {
		cfg.RuntimeParams = map[string]string{}
	}
	cfg.RuntimeParams["application_name"] = ProbeApplicationName
	if c.settings.ConnectTimeout > 0 {
		cfg.ConnectTimeout = c.settings.ConnectTimeout
	}

	conn, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgconn: connect: %w", err)
	}

	return &pgxConnection{conn: conn, logger: c.logger}, nil
}

// AppNameFromDSN derives the application_name a probed host should be
// matched against in pg_stat_replication: the DSN's host, escaped so it
// cannot itself be mistaken for a separator token by
// topology.ParseSyncStandbyNames's tokenizer.
func AppNameFromDSN(dsn string) string {
	cfg, err := pgx.ParseConfig(dsn)
	if err != nil || cfg.Host == "" {
		return "unknown"
	}
	return EscapeHostName(cfg.Host)
}

// EscapeHostName strips characters that topology.ParseSyncStandbyNames
// treats as token separators, so a host name is never accidentally split
// when it appears inside synchronous_standby_names.
func EscapeHostName(host string) string {
	var b strings.Builder
	b.Grow(len(host))
	for i := 0; i < len(host); i++ {
		c := host[i]
		switch c {
		case ' ', ',', '(', ')', '"':
			continue
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
