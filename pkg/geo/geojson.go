// Package geo renders topology snapshots as GeoJSON for map frontends.
package geo

import (
	"fmt"

	"github.com/rfmesh/meshmap/pkg/events"
	"github.com/rfmesh/meshmap/pkg/graph"
)

// FeatureCollection is a GeoJSON feature collection.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// Feature is a single GeoJSON feature. Properties marshals to null when
// unset, which is valid GeoJSON.
type Feature struct {
	Type       string   `json:"type"`
	ID         string   `json:"id"`
	Geometry   Geometry `json:"geometry"`
	Properties any      `json:"properties"`
}

// Geometry holds LineString coordinates as [lon, lat, alt] positions.
type Geometry struct {
	Type        string      `json:"type"`
	Coordinates [][]float64 `json:"coordinates"`
}

// EdgeProperties annotates an edge feature with its link quality.
type EdgeProperties struct {
	Weight float64 `json:"weight"`
}

func positioned(n graph.Node) bool {
	return n.Latitude != 0 && n.Longitude != 0
}

// EdgeFeatures renders every edge whose endpoints both have a position fix
// as a LineString feature. Nodes still waiting for a fix report 0/0 and
// would otherwise draw lines to the Gulf of Guinea, so their edges are
// skipped.
func EdgeFeatures(snapshot events.GraphSnapshot) FeatureCollection {
	byKey := make(map[string]graph.Node, len(snapshot.Nodes))
	for _, n := range snapshot.Nodes {
		byKey[n.Key] = n
	}

	fc := FeatureCollection{
		Type:     "FeatureCollection",
		Features: []Feature{},
	}
	for _, e := range snapshot.Edges {
		u, uOK := byKey[e.U]
		v, vOK := byKey[e.V]
		if !uOK || !vOK || !positioned(u) || !positioned(v) {
			continue
		}
		fc.Features = append(fc.Features, Feature{
			Type: "Feature",
			ID:   fmt.Sprintf("%s-%s", u.Key, v.Key),
			Geometry: Geometry{
				Type: "LineString",
				Coordinates: [][]float64{
					{u.Longitude, u.Latitude, u.Altitude},
					{v.Longitude, v.Latitude, v.Altitude},
				},
			},
			Properties: EdgeProperties{Weight: e.Weight},
		})
	}
	return fc
}
