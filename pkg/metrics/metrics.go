package metrics

import (
	"time"
)

// Event outcomes
const (
	EventOK      = "ok"
	EventSkipped = "skipped"
	EventError   = "error"
)

// Configuration outcomes
const (
	ConfigSuccess = "success"
	ConfigTimeout = "timeout"
)

// RecordEvent records one handled decoded event
func (r *Registry) RecordEvent(packetType, status string, duration time.Duration) {
	r.EventsTotal.WithLabelValues(packetType, status).Inc()
	r.EventHandleSeconds.Observe(duration.Seconds())
}

// RecordDispatchFailure records a downstream forwarding failure
func (r *Registry) RecordDispatchFailure(sink string) {
	r.DispatchFailures.WithLabelValues(sink).Inc()
}

// UpdateGraphSize updates the topology gauges
func (r *Registry) UpdateGraphSize(nodes, edges int) {
	r.GraphNodes.Set(float64(nodes))
	r.GraphEdges.Set(float64(edges))
}

// RecordRegeneration counts one topology rebuild
func (r *Registry) RecordRegeneration() {
	r.GraphRegenerations.Inc()
}

// SessionStarted bumps the active session gauge
func (r *Registry) SessionStarted() {
	r.SessionsActive.Inc()
}

// SessionEnded drops the active session gauge
func (r *Registry) SessionEnded() {
	r.SessionsActive.Dec()
}

// RecordConfigOutcome records the result of one configuration round
func (r *Registry) RecordConfigOutcome(outcome string) {
	r.ConfigOutcomes.WithLabelValues(outcome).Inc()
}
