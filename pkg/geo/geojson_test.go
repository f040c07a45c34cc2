package geo

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rfmesh/meshmap/pkg/events"
	"github.com/rfmesh/meshmap/pkg/graph"
)

func TestEdgeFeaturesSkipsUnpositionedEndpoints(t *testing.T) {
	snapshot := events.GraphSnapshot{
		Nodes: []graph.Node{
			{Key: "alpha", Latitude: 51.50, Longitude: -0.12, Altitude: 25},
			{Key: "bravo", Latitude: 51.48, Longitude: -0.10, Altitude: 12},
			{Key: "nofix"},
		},
		Edges: []events.GraphEdge{
			{U: "alpha", V: "bravo", Weight: 7.5},
			{U: "alpha", V: "nofix", Weight: 3},
		},
	}

	fc := EdgeFeatures(snapshot)

	require.Len(t, fc.Features, 1)
	f := fc.Features[0]
	assert.Equal(t, "alpha-bravo", f.ID)
	assert.Equal(t, "LineString", f.Geometry.Type)
	require.Len(t, f.Geometry.Coordinates, 2)
	assert.Equal(t, []float64{-0.12, 51.50, 25}, f.Geometry.Coordinates[0])
	assert.Equal(t, []float64{-0.10, 51.48, 12}, f.Geometry.Coordinates[1])
	assert.Equal(t, EdgeProperties{Weight: 7.5}, f.Properties)
}

func TestEdgeFeaturesEmptySnapshot(t *testing.T) {
	fc := EdgeFeatures(events.GraphSnapshot{})

	assert.Equal(t, "FeatureCollection", fc.Type)
	assert.NotNil(t, fc.Features)

	// An empty collection must serialize with an empty array, not null
	raw, err := json.Marshal(fc)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"FeatureCollection","features":[]}`, string(raw))
}

func TestEdgeFeaturesUnknownEndpointKey(t *testing.T) {
	snapshot := events.GraphSnapshot{
		Nodes: []graph.Node{{Key: "alpha", Latitude: 1, Longitude: 1}},
		Edges: []events.GraphEdge{{U: "alpha", V: "ghost", Weight: 1}},
	}

	fc := EdgeFeatures(snapshot)
	assert.Empty(t, fc.Features)
}
