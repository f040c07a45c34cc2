package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rfmesh/meshmap/pkg/config"
	"github.com/rfmesh/meshmap/pkg/events"
	"github.com/rfmesh/meshmap/pkg/health"
	"github.com/rfmesh/meshmap/pkg/ingest"
	"github.com/rfmesh/meshmap/pkg/metrics"
)

func newTestServer(t *testing.T) (*Server, *events.Bus, *ingest.Pipeline) {
	t.Helper()

	bus := events.NewBus()
	reg := metrics.NewRegistry()
	pipeline := ingest.New(bus, reg, nil, time.Minute)

	checker := health.NewChecker()
	checker.RegisterReadinessCheck("bus", health.EventBusCheck(bus.IsShutdown, bus.TotalSubscribers))

	s := New(config.Default(), pipeline, bus, checker, reg, nil)

	t.Cleanup(func() {
		pipeline.Shutdown()
		bus.Shutdown()
	})
	return s, bus, pipeline
}

func TestGraphEndpointEmptyTopology(t *testing.T) {
	s, _, _ := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/graph")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var snapshot events.GraphSnapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snapshot))
	assert.Empty(t, snapshot.Nodes)
	assert.Empty(t, snapshot.Edges)
}

func TestGeoJSONEndpoint(t *testing.T) {
	s, _, _ := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/graph/geojson")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/geo+json", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"FeatureCollection","features":[]}`, string(body))
}

func TestSessionEndpoint(t *testing.T) {
	s, _, _ := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/session")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/api/session?port=/dev/ttyUSB0")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestProbeAndMetricsEndpoints(t *testing.T) {
	s, _, _ := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	for _, path := range []string{"/healthz", "/readyz", "/livez", "/metrics"} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err, path)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

func TestReadinessFailsAfterBusShutdown(t *testing.T) {
	s, bus, _ := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	bus.Shutdown()

	resp, err := http.Get(ts.URL + "/readyz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
