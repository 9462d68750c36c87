// Package topology discovers the role of each host in a PostgreSQL
// quorum-commit replication cluster and publishes two read-optimized
// views of the result: hosts ordered by round-trip time, and hosts
// grouped by role.
package topology

import (
	"context"
	"time"
)

// HostRole classifies a host as observed by the most recent discovery cycle.
type HostRole int

const (
	// RoleNone means the host is unreachable or has not been probed yet.
	RoleNone HostRole = iota
	// RoleMaster means the host answered as read-write.
	RoleMaster
	// RoleSlave means the host answered as read-only and was not promoted.
	RoleSlave
	// RoleSyncSlave means the host answered as read-only and its app_name
	// was listed in the master's synchronous_standby_names.
	RoleSyncSlave
)

// String renders a role the way it appears in logs and JSON responses.
func (r HostRole) String() string {
	switch r {
	case RoleMaster:
		return "master"
	case RoleSlave:
		return "slave"
	case RoleSyncSlave:
		return "sync_slave"
	default:
		return "none"
	}
}

// UnknownRTT is the sentinel round-trip time for a host with role None.
const UnknownRTT time.Duration = -1

// Connection is the wire-protocol collaborator a HostProbe drives. It is
// deliberately narrow: the discoverer never issues writes and never pools
// connections for client traffic, it only ever needs these three calls.
type Connection interface {
	// CheckReadOnly reports whether the server is currently a replica.
	CheckReadOnly(ctx context.Context) (bool, error)
	// Execute runs sql and returns a single-row, single-column text result.
	Execute(ctx context.Context, sql string) (string, error)
	// Close releases the connection. Safe to call once per successful Connect.
	Close(ctx context.Context) error
}

// Connector opens probe connections. Implementations own connection-level
// concerns (TLS, auth, application_name tagging); HostProbe only calls
// Connect and never inspects the DSN itself beyond what Connector needs.
type Connector interface {
	Connect(ctx context.Context, dsn string) (Connection, error)
}

// HostState is the per-host record owned exclusively by the DiscoveryLoop's
// probe goroutine for the duration of one cycle. Between cycles it persists
// so a live connection can be reused on the next probe.
//
// Invariant: role == RoleNone implies connection == nil, rtt == UnknownRTT,
// and detectedSyncSlaves is empty. The five fields that describe a probe
// result move together; see HostProbe.RunCheck.
type HostState struct {
	// AppName is the host name extracted from the DSN, escaped to match
	// PostgreSQL's application_name column in pg_stat_replication.
	// Constant for the state's lifetime.
	AppName string

	connection         Connection
	role               HostRole
	rtt                time.Duration
	detectedSyncSlaves []string
	lastErr            error
}

// NewHostState creates the state slot for one DSN position. appName must
// already be derived and escaped; HostState never parses a DSN itself.
func NewHostState(appName string) *HostState {
	return &HostState{
		AppName: appName,
		role:    RoleNone,
		rtt:     UnknownRTT,
	}
}

// Role returns the host's role as of the last completed probe.
func (s *HostState) Role() HostRole { return s.role }

// RTT returns the host's round-trip time as of the last completed probe.
func (s *HostState) RTT() time.Duration { return s.rtt }

// DetectedSyncSlaves returns the sync-standby names this host reported the
// last time it was probed as master. Empty for any other role.
func (s *HostState) DetectedSyncSlaves() []string { return s.detectedSyncSlaves }

// LastError returns the error from the most recent failed probe, or nil if
// the last probe succeeded or none has run yet.
func (s *HostState) LastError() error { return s.lastErr }

// Close releases the probe connection synchronously, as required during
// discoverer teardown. Safe to call on a state with no live connection.
func (s *HostState) Close(ctx context.Context) error {
	if s.connection == nil {
		return nil
	}
	err := s.connection.Close(ctx)
	s.connection = nil
	return err
}
