package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initTopologyMetrics() {
	r.ProbeRTTSeconds = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pg_topology_probe_rtt_seconds",
			Help:    "Round-trip latency of a single host's read-only check probe",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"host_index"},
	)

	r.ProbeErrorsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "pg_topology_probe_errors_total",
			Help: "Total number of failed probes, by host index",
		},
		[]string{"host_index"},
	)

	r.DiscoveryCycleDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pg_topology_discovery_cycle_duration_seconds",
			Help:    "Wall-clock duration of one full discovery cycle across all hosts",
			Buckets: prometheus.DefBuckets,
		},
	)

	r.HostsByRole = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pg_topology_hosts_by_role",
			Help: "Number of alive hosts currently classified in each role",
		},
		[]string{"role"},
	)

	r.AliveHostsTotal = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "pg_topology_alive_hosts_total",
			Help: "Number of hosts that answered their probe in the last discovery cycle",
		},
	)

	r.DiscoveryCyclesTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "pg_topology_discovery_cycles_total",
			Help: "Total number of completed discovery cycles",
		},
	)
}
