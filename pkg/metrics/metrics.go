package metrics

import (
	"strconv"
	"time"

	"github.com/dd0wney/pg-topology-discoverer/pkg/topology"
)

// RecordHTTPRequest records an HTTP request with its duration
func (r *Registry) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	r.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	r.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// RecordProbeRTT implements topology.MetricsRecorder by observing one
// host's probe round-trip time.
func (r *Registry) RecordProbeRTT(hostIndex int, rtt time.Duration) {
	r.ProbeRTTSeconds.WithLabelValues(strconv.Itoa(hostIndex)).Observe(rtt.Seconds())
}

// RecordProbeError implements topology.MetricsRecorder by incrementing the
// per-host probe error counter.
func (r *Registry) RecordProbeError(hostIndex int) {
	r.ProbeErrorsTotal.WithLabelValues(strconv.Itoa(hostIndex)).Inc()
}

// RecordCycle implements topology.MetricsRecorder by observing the cycle's
// wall-clock duration and republishing the current per-role host counts.
// roleCounts follows IndicesByRole: every sync slave is also counted in the
// slave bucket. A role missing from roleCounts is published as zero.
func (r *Registry) RecordCycle(duration time.Duration, roleCounts map[topology.HostRole]int) {
	r.DiscoveryCycleDuration.Observe(duration.Seconds())
	r.DiscoveryCyclesTotal.Inc()

	total := 0
	for _, role := range []topology.HostRole{topology.RoleMaster, topology.RoleSlave, topology.RoleSyncSlave} {
		count := roleCounts[role]
		r.HostsByRole.WithLabelValues(role.String()).Set(float64(count))
		if role != topology.RoleSyncSlave {
			total += count
		}
	}
	r.AliveHostsTotal.Set(float64(total))
}
