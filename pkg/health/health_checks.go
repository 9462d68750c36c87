package health

import "time"

// Common health check functions

// SimpleCheck creates a simple health check that always returns healthy
func SimpleCheck(name string) Check {
	return Check{
		Name:        name,
		Status:      StatusHealthy,
		LastChecked: time.Now(),
	}
}

// DatabaseCheck creates a health check for database connectivity
func DatabaseCheck(pingFunc func() error) CheckFunc {
	return func() Check {
		check := Check{
			Name: "database",
		}

		if err := pingFunc(); err != nil {
			check.Status = StatusUnhealthy
			check.Message = err.Error()
		} else {
			check.Status = StatusHealthy
			check.Message = "Connected"
		}

		return check
	}
}

// MasterPresenceCheck reports whether the last completed discovery cycle
// found exactly one master among alive hosts. getRoleCounts should return
// the current size of each role bucket, e.g. from a Discoverer's
// IndicesByRole snapshot.
func MasterPresenceCheck(getRoleCounts func() map[string]int) CheckFunc {
	return func() Check {
		check := Check{
			Name:    "master_presence",
			Details: make(map[string]any),
		}

		counts := getRoleCounts()
		masters := counts["master"]
		check.Details["master_count"] = masters
		check.Details["alive_count"] = counts["alive"]

		switch {
		case counts["alive"] == 0:
			check.Status = StatusUnhealthy
			check.Message = "No hosts reachable"
		case masters == 0:
			check.Status = StatusUnhealthy
			check.Message = "No master found among alive hosts"
		case masters > 1:
			check.Status = StatusUnhealthy
			check.Message = "Multiple masters found among alive hosts"
		default:
			check.Status = StatusHealthy
			check.Message = "Exactly one master present"
		}

		return check
	}
}

// SyncQuorumCheck reports whether the master's synchronous_standby_names
// entries currently resolve to at least one alive, promoted sync slave.
// A master with a non-empty target list but zero matching sync slaves means
// every commit is stalled waiting on quorum that will never arrive.
func SyncQuorumCheck(getSyncState func() (targets, matched int)) CheckFunc {
	return func() Check {
		check := Check{
			Name:    "sync_quorum",
			Details: make(map[string]any),
		}

		targets, matched := getSyncState()
		check.Details["sync_targets"] = targets
		check.Details["sync_matched"] = matched

		switch {
		case targets == 0:
			check.Status = StatusHealthy
			check.Message = "Synchronous replication not configured"
		case matched == 0:
			check.Status = StatusUnhealthy
			check.Message = "No configured sync standby is alive; commits may stall"
		case matched < targets:
			check.Status = StatusDegraded
			check.Message = "Fewer sync standbys alive than configured"
		default:
			check.Status = StatusHealthy
			check.Message = "Sync quorum satisfied"
		}

		return check
	}
}

// DiskSpaceCheck creates a health check for disk space
func DiskSpaceCheck(getUsage func() (used, total uint64)) CheckFunc {
	return func() Check {
		check := Check{
			Name:    "disk_space",
			Details: make(map[string]any),
		}

		used, total := getUsage()

		usagePercent := float64(used) / float64(total) * 100

		check.Details["used_bytes"] = used
		check.Details["total_bytes"] = total
		check.Details["usage_percent"] = usagePercent

		if usagePercent > 95 {
			check.Status = StatusUnhealthy
			check.Message = "Critical disk space"
		} else if usagePercent > 80 {
			check.Status = StatusDegraded
			check.Message = "Low disk space"
		} else {
			check.Status = StatusHealthy
			check.Message = "Sufficient disk space"
		}

		return check
	}
}

// MemoryCheck creates a health check for memory usage
func MemoryCheck(getUsage func() (alloc, sys uint64)) CheckFunc {
	return func() Check {
		check := Check{
			Name:    "memory",
			Details: make(map[string]any),
		}

		alloc, sys := getUsage()

		check.Details["alloc_bytes"] = alloc
		check.Details["sys_bytes"] = sys

		// Consider degraded if allocated memory > 90% of system memory
		usagePercent := float64(alloc) / float64(sys) * 100

		if usagePercent > 90 {
			check.Status = StatusDegraded
			check.Message = "High memory usage"
		} else {
			check.Status = StatusHealthy
			check.Message = "Memory usage normal"
		}

		return check
	}
}
