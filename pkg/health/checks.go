package health

import "time"

// SimpleCheck creates a check that always reports healthy
func SimpleCheck(name string) Check {
	return Check{
		Name:        name,
		Status:      StatusHealthy,
		LastChecked: time.Now(),
	}
}

// PipelineCheck reports on the ingestion pipeline. No active session is a
// valid idle state, not a failure.
func PipelineCheck(getState func() (sessions int, failed int)) CheckFunc {
	return func() Check {
		check := Check{
			Name:    "pipeline",
			Details: make(map[string]any),
		}

		sessions, failed := getState()

		check.Details["active_sessions"] = sessions
		check.Details["failed_sessions"] = failed

		switch {
		case sessions == 0 && failed == 0:
			check.Status = StatusHealthy
			check.Message = "No radio connected"
		case failed > 0 && sessions == failed:
			check.Status = StatusUnhealthy
			check.Message = "All sessions failed configuration"
		case failed > 0:
			check.Status = StatusDegraded
			check.Message = "Some sessions failed configuration"
		default:
			check.Status = StatusHealthy
			check.Message = "Sessions healthy"
		}

		return check
	}
}

// TopologyCheck reports the size of the shared topology. An empty graph is
// healthy; it just means no neighbor info has arrived yet.
func TopologyCheck(getSize func() (nodes, edges int)) CheckFunc {
	return func() Check {
		check := Check{
			Name:    "topology",
			Details: make(map[string]any),
		}

		nodes, edges := getSize()

		check.Details["nodes"] = nodes
		check.Details["edges"] = edges

		check.Status = StatusHealthy
		if nodes == 0 {
			check.Message = "Topology empty"
		} else {
			check.Message = "Topology populated"
		}

		return check
	}
}

// EventBusCheck reports whether the event bus still accepts publishes
func EventBusCheck(isShutdown func() bool, subscriberCount func() int) CheckFunc {
	return func() Check {
		check := Check{
			Name:    "event_bus",
			Details: make(map[string]any),
		}

		check.Details["subscribers"] = subscriberCount()

		if isShutdown() {
			check.Status = StatusUnhealthy
			check.Message = "Bus shut down"
		} else {
			check.Status = StatusHealthy
			check.Message = "Bus accepting publishes"
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
