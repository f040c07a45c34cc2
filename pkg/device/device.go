// Package device holds the per-connection session state: the configuration
// state machine, the device's view of the mesh (node db and neighbor
// tables), and the translation of decoded packets into update results the
// ingestion pipeline acts on.
package device

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/rfmesh/meshmap/pkg/graph"
	"github.com/rfmesh/meshmap/pkg/logging"
)

var (
	// ErrInvalidTransition is returned when a status change violates the
	// session state machine
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrNilPacket is returned when a nil packet reaches the session
	ErrNilPacket = errors.New("nil packet")
)

// NodeInfo is the device's record of one mesh node.
type NodeInfo struct {
	Key       string    `json:"key"`
	LongName  string    `json:"longName,omitempty"`
	ShortName string    `json:"shortName,omitempty"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Altitude  float64   `json:"altitude"`
	SNR       float64   `json:"snr"`
	LastHeard time.Time `json:"lastHeard"`
}

// Neighbor is one entry of a node's neighbor table: who it hears and how
// well.
type Neighbor struct {
	Key string  `json:"key"`
	SNR float64 `json:"snr"`
}

// Notification is a user-facing notification request (title and body only;
// rendering belongs to the notification system).
type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// UpdateResult carries the independent facets of handling one packet. Any
// combination may be set by a single event.
type UpdateResult struct {
	// DeviceUpdated means the externally visible device record changed
	DeviceUpdated bool
	// RegenerateGraph means the shared topology must be rebuilt from the
	// device's current node db and neighbor tables
	RegenerateGraph bool
	// ConfigurationSuccess means this packet completed the configuration
	// round
	ConfigurationSuccess bool
	// Notification, when non-nil, is forwarded to the notification system
	Notification *Notification
}

// Device is the session state for one physical connection. It is owned by
// the pipeline's device registry and must only be touched under the
// registry lock.
type Device struct {
	Port      string
	SessionID uuid.UUID
	ConfigID  uint32

	nodeKey   string
	status    Status
	nodes     map[string]NodeInfo
	neighbors map[string][]Neighbor

	log logging.Logger
}

// New creates a session for the given port in the Disconnected state.
// configID is the sequence id of this configuration round; a
// ConfigCompletePacket with any other id is stale and ignored.
func New(port string, configID uint32, log logging.Logger) *Device {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Device{
		Port:      port,
		SessionID: uuid.New(),
		ConfigID:  configID,
		status:    StatusDisconnected,
		nodes:     make(map[string]NodeInfo),
		neighbors: make(map[string][]Neighbor),
		log:       log.With(logging.Port(port)),
	}
}

// Status returns the current session status.
func (d *Device) Status() Status {
	return d.status
}

// NodeKey returns the mesh node key of the connected radio, if announced.
func (d *Device) NodeKey() string {
	return d.nodeKey
}

// SetStatus advances the session state machine. Invalid transitions are
// rejected with ErrInvalidTransition and leave the status untouched.
func (d *Device) SetStatus(to Status) error {
	if !d.status.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, d.status, to)
	}
	d.log.Debug("session status change",
		logging.String("from", d.status.String()),
		logging.String("to", to.String()))
	d.status = to
	return nil
}

// HandlePacket applies one decoded packet to the session and reports which
// downstream effects the pipeline must carry out.
func (d *Device) HandlePacket(p Packet) (UpdateResult, error) {
	if p == nil {
		return UpdateResult{}, ErrNilPacket
	}

	switch pkt := p.(type) {
	case MyNodeInfoPacket:
		d.nodeKey = pkt.NodeKey
		return UpdateResult{DeviceUpdated: true}, nil

	case NodeInfoPacket:
		d.upsertNode(pkt.Node)
		return UpdateResult{DeviceUpdated: true, RegenerateGraph: true}, nil

	case PositionPacket:
		node := d.nodes[pkt.NodeKey]
		node.Key = pkt.NodeKey
		node.Latitude = pkt.Latitude
		node.Longitude = pkt.Longitude
		node.Altitude = pkt.Altitude
		node.LastHeard = time.Now()
		d.nodes[pkt.NodeKey] = node
		return UpdateResult{DeviceUpdated: true, RegenerateGraph: true}, nil

	case NeighborInfoPacket:
		if _, known := d.nodes[pkt.NodeKey]; !known {
			d.nodes[pkt.NodeKey] = NodeInfo{Key: pkt.NodeKey, LastHeard: time.Now()}
		}
		d.neighbors[pkt.NodeKey] = slices.Clone(pkt.Neighbors)
		return UpdateResult{DeviceUpdated: true, RegenerateGraph: true}, nil

	case ChannelPacket:
		return UpdateResult{DeviceUpdated: true}, nil

	case ConfigCompletePacket:
		if pkt.ConfigID != d.ConfigID {
			d.log.Warn("stale configuration round ignored",
				logging.ConfigID(pkt.ConfigID),
				logging.Uint32("expected", d.ConfigID))
			return UpdateResult{}, nil
		}
		if d.status != StatusConfiguring {
			d.log.Warn("configuration complete outside configuring state",
				logging.String("status", d.status.String()))
			return UpdateResult{}, nil
		}
		if err := d.SetStatus(StatusConfigured); err != nil {
			return UpdateResult{}, err
		}
		return UpdateResult{DeviceUpdated: true, ConfigurationSuccess: true}, nil

	case TextMessagePacket:
		return UpdateResult{
			DeviceUpdated: true,
			Notification: &Notification{
				Title: fmt.Sprintf("New message from %s", pkt.From),
				Body:  pkt.Body,
			},
		}, nil

	default:
		// Unrecognized variants are skipped, matching the decode loop's
		// tolerance for packets it has no use for
		d.log.Debug("unhandled packet variant", logging.Any("packet", p))
		return UpdateResult{}, nil
	}
}

func (d *Device) upsertNode(info NodeInfo) {
	existing, known := d.nodes[info.Key]
	if known {
		// A node-info refresh without position keeps the last fix
		if info.Latitude == 0 && info.Longitude == 0 {
			info.Latitude = existing.Latitude
			info.Longitude = existing.Longitude
			info.Altitude = existing.Altitude
		}
	}
	if info.LastHeard.IsZero() {
		info.LastHeard = time.Now()
	}
	d.nodes[info.Key] = info
}

// RebuildGraph merges the device's node db and neighbor tables into the
// shared topology: every known node exists, positioned nodes carry their
// fix, and each neighbor observation refreshes the link weight in place
// (first parallel ordinal) so repeated observations do not pile up edges.
func (d *Device) RebuildGraph(g *graph.Graph) {
	for _, key := range slices.Sorted(maps.Keys(d.nodes)) {
		info := d.nodes[key]
		if _, ok := g.IndexOf(key); !ok {
			g.AddNode(key)
		}
		if info.Latitude != 0 || info.Longitude != 0 {
			g.SetNodePosition(key, info.Latitude, info.Longitude, info.Altitude)
		}
	}

	for _, key := range slices.Sorted(maps.Keys(d.neighbors)) {
		if _, ok := g.IndexOf(key); !ok {
			g.AddNode(key)
		}
		for _, nb := range d.neighbors[key] {
			if nb.Key == key {
				continue
			}
			if _, ok := g.IndexOf(nb.Key); !ok {
				g.AddNode(nb.Key)
			}
			g.UpdateEdge(key, nb.Key, nb.SNR, 0)
		}
	}
}

// Snapshot is the externally visible copy of a session's state.
type Snapshot struct {
	Port      string     `json:"port"`
	SessionID string     `json:"sessionId"`
	Status    string     `json:"status"`
	NodeKey   string     `json:"nodeKey,omitempty"`
	Nodes     []NodeInfo `json:"nodes"`
}

// Snapshot returns a copy of the device record for dispatch, nodes sorted
// by key for deterministic output.
func (d *Device) Snapshot() Snapshot {
	nodes := make([]NodeInfo, 0, len(d.nodes))
	for _, key := range slices.Sorted(maps.Keys(d.nodes)) {
		nodes = append(nodes, d.nodes[key])
	}
	return Snapshot{
		Port:      d.Port,
		SessionID: d.SessionID.String(),
		Status:    d.status.String(),
		NodeKey:   d.nodeKey,
		Nodes:     nodes,
	}
}
