package topology

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dd0wney/pg-topology-discoverer/pkg/logging"
)

// DefaultDiscoveryInterval is the cadence used when a caller does not
// configure one explicitly.
const DefaultDiscoveryInterval = 1 * time.Second

// DiscoveryTaskName names the periodic task for logs and diagnostics.
const DiscoveryTaskName = "pg_topology"

// MetricsRecorder receives observability signals from a discovery cycle.
// A Discoverer works with a nil recorder; wiring one is the caller's
// choice, so the topology package never reaches for a global metrics
// registry itself.
type MetricsRecorder interface {
	RecordCycle(duration time.Duration, roleCounts map[HostRole]int)
	RecordProbeError(index int)
	RecordProbeRTT(index int, rtt time.Duration)
}

// Discoverer owns the fixed DSN list, one HostState per DSN, and the
// published views consumers read. It is safe to call its exported methods
// concurrently with a running periodic task.
type Discoverer struct {
	dsns     []string
	states   []*HostState
	probe    *HostProbe
	views    *PublishedViews
	logger   logging.Logger
	metrics  MetricsRecorder
	interval time.Duration

	tickerStop chan struct{}
	tickerDone chan struct{}
	cycleMu    sync.Mutex // serializes RunDiscovery against concurrent Stop
}

// NewDiscoverer builds a Discoverer for the given DSNs and immediately runs
// one discovery cycle so published views are non-empty before any client
// observes them, matching the construction contract in the design.
// appNameFn derives a host's application_name from its DSN; callers should
// pass a function that also escapes the result to match PostgreSQL's
// application_name column.
func NewDiscoverer(
	ctx context.Context,
	dsns []string,
	connector Connector,
	appNameFn func(dsn string) string,
	logger logging.Logger,
	metrics MetricsRecorder,
) *Discoverer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	states := make([]*HostState, len(dsns))
	for i, dsn := range dsns {
		states[i] = NewHostState(appNameFn(dsn))
	}

	d := &Discoverer{
		dsns:     dsns,
		states:   states,
		probe:    NewHostProbe(connector, logger),
		views:    NewPublishedViews(),
		logger:   logger,
		metrics:  metrics,
		interval: DefaultDiscoveryInterval,
	}
	d.RunDiscovery(ctx)
	return d
}

// SetDiscoveryInterval overrides the periodic task's cadence. Must be called
// before StartPeriodicTask; it has no effect on an already-running task.
func (d *Discoverer) SetDiscoveryInterval(interval time.Duration) {
	d.interval = interval
}

// DsnList returns the immutable DSN list, stable for the discoverer's life.
func (d *Discoverer) DsnList() []string { return d.dsns }

// AliveByRtt returns the current snapshot of alive host indices by RTT.
func (d *Discoverer) AliveByRtt() []int { return d.views.AliveByRtt() }

// IndicesByRole returns the current snapshot of host indices grouped by role.
func (d *Discoverer) IndicesByRole() map[HostRole][]int { return d.views.IndicesByRole() }

// SyncQuorumState reports the current master's configured sync-standby
// target count and how many of those targets are currently alive and
// promoted, for use with health.SyncQuorumCheck. Returns 0, 0 if no master
// is currently alive.
func (d *Discoverer) SyncQuorumState() (targets, matched int) {
	byRole := d.views.IndicesByRole()
	masterIdxs := byRole[RoleMaster]
	if len(masterIdxs) == 0 {
		return 0, 0
	}
	master := d.states[masterIdxs[0]]
	return len(master.DetectedSyncSlaves()), len(byRole[RoleSyncSlave])
}

// HostState exposes the current per-host record for diagnostics (e.g. the
// health package). Returns nil if index is out of range.
func (d *Discoverer) HostState(index int) *HostState {
	if index < 0 || index >= len(d.states) {
		return nil
	}
	return d.states[index]
}

// RunDiscovery performs one full cycle synchronously: fan out a probe per
// host, join in index order, promote sync slaves, sort by RTT, and publish.
// It returns only after publication completes.
func (d *Discoverer) RunDiscovery(ctx context.Context) {
	d.cycleMu.Lock()
	defer d.cycleMu.Unlock()

	start := time.Now()

	var wg sync.WaitGroup
	for i, dsn := range d.dsns {
		wg.Add(1)
		go func(i int, dsn string) {
			defer wg.Done()
			d.probe.RunCheck(ctx, i, dsn, d.states[i])
		}(i, dsn)
	}
	wg.Wait()

	alive := make([]int, 0, len(d.states))
	for i, state := range d.states {
		d.logger.Debug("host checked",
			logging.HostIndex(i),
			logging.AppName(state.AppName),
			logging.Role(state.Role().String()))
		if state.Role() != RoleNone {
			alive = append(alive, i)
			if d.metrics != nil {
				d.metrics.RecordProbeRTT(i, state.RTT())
			}
		}
		if state.LastError() != nil && d.metrics != nil {
			d.metrics.RecordProbeError(i)
		}
	}

	promoteSyncSlaves(d.states, alive, d.logger)

	sort.SliceStable(alive, func(a, b int) bool {
		return d.states[alive[a]].RTT() < d.states[alive[b]].RTT()
	})

	byRole := make(map[HostRole][]int)
	for _, idx := range alive {
		role := d.states[idx].Role()
		byRole[role] = append(byRole[role], idx)
		// A synchronous replica is still a valid target for slave reads.
		if role == RoleSyncSlave {
			byRole[RoleSlave] = append(byRole[RoleSlave], idx)
		}
	}

	d.views.Publish(alive, byRole)

	if d.metrics != nil {
		roleCounts := make(map[HostRole]int, len(byRole))
		for role, idxs := range byRole {
			roleCounts[role] = len(idxs)
		}
		d.metrics.RecordCycle(time.Since(start), roleCounts)
	}
}

// promoteSyncSlaves finds the unique master among alive hosts and, for
// each name in its detected sync-slave list, promotes any alive Slave
// whose app_name matches case-insensitively. Quadratic in
// |alive| x |sync names|, acceptable at expected cluster sizes.
func promoteSyncSlaves(states []*HostState, alive []int, logger logging.Logger) {
	var master *HostState
	for _, idx := range alive {
		if states[idx].Role() == RoleMaster {
			master = states[idx]
			break
		}
	}
	if master == nil || len(master.DetectedSyncSlaves()) == 0 {
		return
	}

	for _, syncName := range master.DetectedSyncSlaves() {
		for _, idx := range alive {
			state := states[idx]
			if state.Role() == RoleSlave && strings.EqualFold(state.AppName, syncName) {
				state.role = RoleSyncSlave
				logger.Debug("promoted to sync slave",
					logging.HostIndex(idx),
					logging.AppName(state.AppName))
			}
		}
	}
}

// StartPeriodicTask registers RunDiscovery on a fixed interval with strong
// scheduling: a tick is never dropped, a slow cycle merely delays the next
// one, and ticks that fell due during it run back to back once it returns.
// Call once: a second call before StopPeriodicTask starts a second loop and
// replaces the stop channel, so StopPeriodicTask then halts only the second.
func (d *Discoverer) StartPeriodicTask(ctx context.Context) {
	d.tickerStop = make(chan struct{})
	d.tickerDone = make(chan struct{})

	go func() {
		defer close(d.tickerDone)
		next := time.Now().Add(d.interval)
		timer := time.NewTimer(d.interval)
		defer timer.Stop()

		d.logger.Info("periodic task started",
			logging.String("task", DiscoveryTaskName),
			logging.Latency(d.interval))

		for {
			select {
			case <-d.tickerStop:
				return
			case <-ctx.Done():
				return
			case <-timer.C:
				d.RunDiscovery(ctx)
				// Each tick is scheduled one interval after the previous
				// one; a tick already overdue fires immediately.
				next = next.Add(d.interval)
				timer.Reset(time.Until(next))
			}
		}
	}()
}

// StopPeriodicTask halts the scheduler and blocks until any in-flight
// cycle has returned, so a caller can safely tear down host states right
// after this returns.
func (d *Discoverer) StopPeriodicTask() {
	if d.tickerStop == nil {
		return
	}
	close(d.tickerStop)
	<-d.tickerDone

	// Ensure a cycle that was mid-flight when tickerStop closed has fully
	// released host state before we return.
	d.cycleMu.Lock()
	d.cycleMu.Unlock() //nolint:staticcheck // synchronization barrier only
}

// Close stops the periodic task (if running) and closes every host's probe
// connection synchronously, in index order.
func (d *Discoverer) Close(ctx context.Context) error {
	d.StopPeriodicTask()

	var firstErr error
	for _, state := range d.states {
		if err := state.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
