// Package events carries state-change notifications out of the ingestion
// core: an in-process bus for local consumers (websocket hub, health), an
// NNG bridge for out-of-process consumers, and the payload types shared by
// both.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/rfmesh/meshmap/pkg/device"
	"github.com/rfmesh/meshmap/pkg/graph"
)

// Topics published by the ingestion pipeline
const (
	TopicDeviceUpdated = "device.updated"
	TopicGraphUpdated  = "graph.updated"
	TopicConfiguration = "configuration.status"
	TopicNotification  = "notification"
)

// Topics returns every topic the pipeline publishes.
func Topics() []string {
	return []string{TopicDeviceUpdated, TopicGraphUpdated, TopicConfiguration, TopicNotification}
}

// Envelope wraps every published payload with identity and timing.
type Envelope struct {
	ID      string    `json:"id"`
	Topic   string    `json:"topic"`
	Time    time.Time `json:"time"`
	Payload any       `json:"payload"`
}

func newEnvelope(topic string, payload any) Envelope {
	return Envelope{
		ID:      uuid.NewString(),
		Topic:   topic,
		Time:    time.Now(),
		Payload: payload,
	}
}

// ConfigurationStatus reports the outcome of one configuration round.
type ConfigurationStatus struct {
	Port       string `json:"port"`
	Successful bool   `json:"successful"`
	Message    string `json:"message,omitempty"`
}

// GraphEdge is one edge of a topology snapshot, endpoints by node key.
type GraphEdge struct {
	U      string  `json:"u"`
	V      string  `json:"v"`
	Weight float64 `json:"weight"`
}

// GraphSnapshot is a detached copy of the topology for dispatch.
type GraphSnapshot struct {
	Nodes []graph.Node `json:"nodes"`
	Edges []GraphEdge  `json:"edges"`
}

// NewGraphSnapshot copies the graph's nodes and edges into a snapshot,
// resolving edge endpoints to node keys.
func NewGraphSnapshot(g *graph.Graph) GraphSnapshot {
	nodes := g.Nodes()
	edges := g.Edges()

	snapshot := GraphSnapshot{
		Nodes: nodes,
		Edges: make([]GraphEdge, 0, len(edges)),
	}
	for _, e := range edges {
		u, uOK := g.GetNode(e.U)
		v, vOK := g.GetNode(e.V)
		if !uOK || !vOK {
			continue
		}
		snapshot.Edges = append(snapshot.Edges, GraphEdge{U: u.Key, V: v.Key, Weight: e.Weight})
	}
	return snapshot
}

// Dispatcher is the pipeline's outbound contract. Every method may fail;
// the pipeline logs failures and keeps processing.
type Dispatcher interface {
	// DeviceUpdated forwards an updated device record
	DeviceUpdated(snapshot device.Snapshot) error
	// GraphUpdated forwards the rebuilt topology
	GraphUpdated(snapshot GraphSnapshot) error
	// ConfigurationStatus forwards the outcome of a configuration round
	ConfigurationStatus(status ConfigurationStatus) error
	// Notify forwards a user-facing notification request
	Notify(n device.Notification) error
}
