package topology

import (
	"context"
	"time"

	"github.com/dd0wney/pg-topology-discoverer/pkg/logging"
)

// CheckTimeout is the single deadline governing connect, read-only check,
// and sync-standby-names lookup collectively for one probe.
const CheckTimeout = 1 * time.Second

// ShowSyncStandbyNames is the SQL issued against a detected master to
// discover which replicas it considers synchronous.
const ShowSyncStandbyNames = "SHOW synchronous_standby_names"

// HostProbe drives one HostState through a single check cycle. It holds no
// state of its own: everything it reads and mutates lives on the HostState
// passed to RunCheck, so a HostProbe value can be shared or copied freely.
type HostProbe struct {
	Connector Connector
	Logger    logging.Logger
}

// NewHostProbe creates a HostProbe. A nil logger falls back to a no-op one.
func NewHostProbe(connector Connector, logger logging.Logger) *HostProbe {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &HostProbe{Connector: connector, Logger: logger}
}

// RunCheck probes the host described by dsn and updates state in place.
//
// On success: state.role is Master or Slave, state.rtt >= 0, the
// connection is retained for the next cycle, and if the role is Master,
// detectedSyncSlaves reflects ParseSyncStandbyNames's output.
//
// On any failure, state is reset to the None tuple: role=None, rtt=Unknown,
// detectedSyncSlaves=empty, and the connection (if any) is dropped, since a
// connection that just failed is presumed possibly broken. The reset runs
// via a deferred guard that is released only once every step below
// succeeds, so any early return -- including a panic recovery path added
// later -- leaves state consistent.
func (p *HostProbe) RunCheck(ctx context.Context, index int, dsn string, state *HostState) {
	released := false
	defer func() {
		if released {
			return
		}
		if state.connection != nil {
			_ = state.connection.Close(ctx)
			state.connection = nil
		}
		state.role = RoleNone
		state.rtt = UnknownRTT
		state.detectedSyncSlaves = nil
	}()

	deadline := time.Now().Add(CheckTimeout)
	checkCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	if state.connection == nil {
		conn, err := p.Connector.Connect(checkCtx, dsn)
		if err != nil {
			state.lastErr = err
			p.Logger.Warn("failed to connect to host",
				logging.HostIndex(index),
				logging.AppName(state.AppName),
				logging.Error(err))
			return
		}
		state.connection = conn
	}

	start := time.Now()
	readOnly, err := state.connection.CheckReadOnly(checkCtx)
	if err != nil {
		state.lastErr = err
		p.Logger.Warn("broken connection during read-only check",
			logging.HostIndex(index),
			logging.AppName(state.AppName),
			logging.Error(err))
		return
	}
	rtt := time.Since(start)

	role := RoleMaster
	if readOnly {
		role = RoleSlave
	}

	var syncSlaves []string
	if role == RoleMaster {
		row, err := state.connection.Execute(checkCtx, ShowSyncStandbyNames)
		if err != nil {
			state.lastErr = err
			p.Logger.Warn("failed to read synchronous_standby_names",
				logging.HostIndex(index),
				logging.AppName(state.AppName),
				logging.Error(err))
			return
		}
		syncSlaves = ParseSyncStandbyNames(row)
		p.Logger.Debug("sync slaves detected",
			logging.HostIndex(index),
			logging.AppName(state.AppName),
			logging.Count(len(syncSlaves)))
	}

	state.role = role
	state.rtt = rtt
	state.detectedSyncSlaves = syncSlaves
	state.lastErr = nil
	released = true

	p.Logger.Debug("host probed",
		logging.HostIndex(index),
		logging.AppName(state.AppName),
		logging.Role(role.String()),
		logging.Latency(rtt))
}
