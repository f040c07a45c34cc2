package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all metrics for the application
type Registry struct {
	// Ingestion metrics
	EventsTotal        *prometheus.CounterVec
	EventHandleSeconds prometheus.Histogram
	DispatchFailures   *prometheus.CounterVec

	// Topology metrics
	GraphNodes         prometheus.Gauge
	GraphEdges         prometheus.Gauge
	GraphRegenerations prometheus.Counter

	// Session metrics
	SessionsActive prometheus.Gauge
	ConfigOutcomes *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewRegistry creates a new metrics registry with all metrics initialized
func NewRegistry() *Registry {
	r := &Registry{
		EventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meshmap_events_total",
			Help: "Decoded device events processed, by packet type and outcome",
		}, []string{"type", "status"}),
		EventHandleSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "meshmap_event_handle_seconds",
			Help:    "Time spent handling one decoded event end to end",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		DispatchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meshmap_dispatch_failures_total",
			Help: "Downstream forwarding failures, by sink",
		}, []string{"sink"}),
		GraphNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "meshmap_graph_nodes",
			Help: "Nodes in the current topology",
		}),
		GraphEdges: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "meshmap_graph_edges",
			Help: "Edges in the current topology",
		}),
		GraphRegenerations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meshmap_graph_regenerations_total",
			Help: "Topology rebuilds triggered by device events",
		}),
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "meshmap_sessions_active",
			Help: "Device sessions currently registered",
		}),
		ConfigOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meshmap_configuration_outcomes_total",
			Help: "Configuration round outcomes, by result",
		}, []string{"outcome"}),
		registry: prometheus.NewRegistry(),
	}

	r.registry.MustRegister(
		r.EventsTotal,
		r.EventHandleSeconds,
		r.DispatchFailures,
		r.GraphNodes,
		r.GraphEdges,
		r.GraphRegenerations,
		r.SessionsActive,
		r.ConfigOutcomes,
	)

	return r
}

// PrometheusRegistry returns the underlying prometheus registry for
// exposition handlers.
func (r *Registry) PrometheusRegistry() *prometheus.Registry {
	return r.registry
}
