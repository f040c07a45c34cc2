package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rfmesh/meshmap/pkg/config"
	"github.com/rfmesh/meshmap/pkg/events"
	"github.com/rfmesh/meshmap/pkg/geo"
	"github.com/rfmesh/meshmap/pkg/health"
	"github.com/rfmesh/meshmap/pkg/ingest"
	"github.com/rfmesh/meshmap/pkg/logging"
	"github.com/rfmesh/meshmap/pkg/metrics"
)

// Server ties the HTTP routes to the ingestion pipeline and event bus.
type Server struct {
	pipeline *ingest.Pipeline
	bus      *events.Bus
	checker  *health.Checker
	metrics  *metrics.Registry
	log      logging.Logger

	metricsEnabled bool
	wsWriteTimeout time.Duration

	graceful *GracefulServer
}

// New builds the server and its route table from the configuration.
func New(cfg config.Config, pipeline *ingest.Pipeline, bus *events.Bus, checker *health.Checker, reg *metrics.Registry, log logging.Logger) *Server {
	if log == nil {
		log = logging.NewNopLogger()
	}
	s := &Server{
		pipeline:       pipeline,
		bus:            bus,
		checker:        checker,
		metrics:        reg,
		log:            log,
		metricsEnabled: cfg.Server.MetricsEnabled,
		wsWriteTimeout: cfg.Events.WebsocketWriteTimeout.Std(),
	}
	s.graceful = NewGracefulServer(cfg.Server.ListenAddr, s.Handler(), log)
	return s
}

// Start serves until shutdown.
func (s *Server) Start() error {
	return s.graceful.Start()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(timeout time.Duration) error {
	return s.graceful.Shutdown(timeout)
}

// SetReload installs the SIGHUP configuration reload hook.
func (s *Server) SetReload(fn ReloadFunc) {
	s.graceful.SetReloadFunc(fn)
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.checker.HTTPHandler())
	mux.HandleFunc("GET /readyz", s.checker.ReadinessHandler())
	mux.HandleFunc("GET /livez", s.checker.LivenessHandler())

	if s.metricsEnabled && s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(
			s.metrics.PrometheusRegistry(),
			promhttp.HandlerOpts{},
		))
	}

	mux.HandleFunc("GET /api/graph", s.handleGraph)
	mux.HandleFunc("GET /api/graph/geojson", s.handleGraphGeoJSON)
	mux.HandleFunc("GET /api/session", s.handleSessionStatus)
	mux.HandleFunc("GET /ws", s.handleWebsocket)

	return mux
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.pipeline.GraphSnapshot())
}

func (s *Server) handleGraphGeoJSON(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(geo.EdgeFeatures(s.pipeline.GraphSnapshot())); err != nil {
		s.log.Error("failed to encode geojson response", logging.Error(err))
	}
}

func (s *Server) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	port := r.URL.Query().Get("port")
	if port == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "port query parameter required"})
		return
	}

	status, err := s.pipeline.SessionStatus(port)
	if err != nil {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"port":   port,
		"status": status.String(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("failed to encode response", logging.Error(err))
	}
}
