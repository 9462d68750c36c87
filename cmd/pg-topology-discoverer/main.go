package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dd0wney/pg-topology-discoverer/pkg/config"
	"github.com/dd0wney/pg-topology-discoverer/pkg/health"
	"github.com/dd0wney/pg-topology-discoverer/pkg/logging"
	"github.com/dd0wney/pg-topology-discoverer/pkg/metrics"
	"github.com/dd0wney/pg-topology-discoverer/pkg/pgconn"
	"github.com/dd0wney/pg-topology-discoverer/pkg/topology"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	flag.Parse()

	logger := logging.NewJSONLogger(os.Stdout, logging.InfoLevel)
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		logger.SetLevel(logging.ParseLevel(lvl))
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", logging.Error(err))
		os.Exit(1)
	}

	logger.Info("pg-topology-discoverer starting",
		logging.Count(len(cfg.DSNs)),
		logging.String("listen_addr", cfg.ListenAddr))

	registry := metrics.NewRegistry()

	connector := pgconn.NewConnector(pgconn.Settings{ConnectTimeout: cfg.ProbeTimeout}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	discoverer := topology.NewDiscoverer(ctx, cfg.DSNs, connector, pgconn.AppNameFromDSN, logger, registry)
	discoverer.SetDiscoveryInterval(cfg.DiscoveryInterval)
	discoverer.StartPeriodicTask(ctx)

	checker := health.NewHealthChecker()
	checker.RegisterReadinessCheck("master_presence", health.MasterPresenceCheck(func() map[string]int {
		byRole := discoverer.IndicesByRole()
		return map[string]int{
			"alive":  len(discoverer.AliveByRtt()),
			"master": len(byRole[topology.RoleMaster]),
		}
	}))
	checker.RegisterReadinessCheck("sync_quorum", health.SyncQuorumCheck(discoverer.SyncQuorumState))
	checker.RegisterLivenessCheck("process", func() health.Check {
		return health.SimpleCheck("process")
	})
	checker.RegisterCheck("postgres_connectivity", health.DatabaseCheck(func() error {
		if len(discoverer.AliveByRtt()) == 0 {
			return fmt.Errorf("no reachable postgres hosts")
		}
		return nil
	}))
	checker.RegisterCheck("memory", health.MemoryCheck(func() (alloc, sys uint64) {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		return m.Alloc, m.Sys
	}))
	checker.RegisterCheck("disk_space", health.DiskSpaceCheck(diskUsage))

	mux := http.NewServeMux()
	mux.HandleFunc("/alive", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, discoverer.AliveByRtt())
	})
	mux.HandleFunc("/roles", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, roleView(discoverer))
	})
	mux.Handle("/healthz", checker.HTTPHandler())
	mux.Handle("/ready", checker.ReadinessHandler())
	mux.Handle("/live", checker.LivenessHandler())
	mux.Handle("/metrics", promhttp.HandlerFor(registry.GetPrometheusRegistry(), promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: instrument(registry, mux),
	}

	go func() {
		logger.Info("http server listening", logging.String("addr", cfg.ListenAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server failed", logging.Error(err))
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown error", logging.Error(err))
	}

	cancel()
	if err := discoverer.Close(shutdownCtx); err != nil {
		logger.Warn("discoverer close error", logging.Error(err))
	}
}

// diskUsage reports used and total bytes on the filesystem backing the
// process's working directory, for health.DiskSpaceCheck.
func diskUsage() (used, total uint64) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(".", &stat); err != nil {
		return 0, 1
	}
	total = stat.Blocks * uint64(stat.Bsize)
	free := stat.Bfree * uint64(stat.Bsize)
	return total - free, total
}

func roleView(d *topology.Discoverer) map[string][]int {
	out := make(map[string][]int)
	for role, indices := range d.IndicesByRole() {
		out[role.String()] = indices
	}
	return out
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// instrument wraps h with the HTTP request counter/latency metrics.
func instrument(registry *metrics.Registry, h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h.ServeHTTP(rec, r)
		registry.RecordHTTPRequest(r.Method, r.URL.Path, http.StatusText(rec.status), time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
